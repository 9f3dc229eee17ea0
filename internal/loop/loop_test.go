package loop

import (
	"testing"

	"github.com/voxterm/voxterm/internal/config"
	"github.com/voxterm/voxterm/internal/hud"
	"github.com/voxterm/voxterm/internal/voice"
)

func TestCompilePromptRegexInvalidReturnsNil(t *testing.T) {
	if re := compilePromptRegex("("); re != nil {
		t.Fatalf("expected nil for invalid regex, got %v", re)
	}
}

func TestCompilePromptRegexValid(t *testing.T) {
	re := compilePromptRegex(`\$\s*$`)
	if re == nil || !re.MatchString("foo$ ") {
		t.Fatalf("expected valid regex to compile and match")
	}
}

func TestTruncatePreviewShortPassesThrough(t *testing.T) {
	if got := truncatePreview("hello", 10); got != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestTruncatePreviewLongIsTruncated(t *testing.T) {
	got := truncatePreview("0123456789abcdef", 5)
	if got != "01234…" {
		t.Fatalf("got %q", got)
	}
}

func TestSourceLabelAndMapSource(t *testing.T) {
	if sourceLabel(voice.SourceNative) != "native" {
		t.Fatalf("expected native label")
	}
	if sourceLabel(voice.SourcePython) != "python" {
		t.Fatalf("expected python label")
	}
	if mapSource(voice.SourceNative) != 0 {
		t.Fatalf("expected SourceNative to map to transcript.SourceNative (0)")
	}
}

func TestStyleForMapsAllConfigStyles(t *testing.T) {
	cases := map[config.HUDStyle]hud.Style{
		config.HUDFull:    hud.StyleFull,
		config.HUDMinimal: hud.StyleMinimal,
		config.HUDHidden:  hud.StyleHidden,
	}
	for in, want := range cases {
		if got := styleFor(in); got != want {
			t.Errorf("styleFor(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestInitialReservedRowsMatchesHudHeight(t *testing.T) {
	cases := map[config.HUDStyle]int{
		config.HUDFull:    4,
		config.HUDMinimal: 1,
		config.HUDHidden:  1,
	}
	for style, want := range cases {
		if got := InitialReservedRows(style); got != want {
			t.Errorf("InitialReservedRows(%v) = %d, want %d", style, got, want)
		}
	}
}

func TestRightPanelForMapsAllConfigPanels(t *testing.T) {
	cases := map[config.RightPanel]hud.RightPanelKind{
		config.PanelOff:       hud.RightPanelOff,
		config.PanelRibbon:    hud.RightPanelRibbon,
		config.PanelDots:      hud.RightPanelDots,
		config.PanelHeartbeat: hud.RightPanelHeartbeat,
	}
	for in, want := range cases {
		if got := rightPanelFor(in); got != want {
			t.Errorf("rightPanelFor(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestOnOff(t *testing.T) {
	if onOff(true) != "on" || onOff(false) != "off" {
		t.Fatalf("onOff mismatch")
	}
}
