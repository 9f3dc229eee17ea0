package hud

import (
	"testing"

	"github.com/voxterm/voxterm/internal/theme"
)

func TestHeightMatchesStyle(t *testing.T) {
	if h := Height(StyleFull, false, false); h != 4 {
		t.Fatalf("full height = %d, want 4", h)
	}
	if h := Height(StyleMinimal, true, false); h != 1 {
		t.Fatalf("minimal height = %d, want 1", h)
	}
	if h := Height(StyleHidden, false, false); h != 1 {
		t.Fatalf("hidden idle height = %d, want 1", h)
	}
}

func TestFormatFullProducesFourLinesWithinWidth(t *testing.T) {
	th := theme.New("default", theme.CapANSI16)
	s := State{Style: StyleFull, ModeLabel: "Default", DurationMs: 1500, Message: "listening"}
	res := Format(s, th, 80)
	if len(res.Lines) != 4 {
		t.Fatalf("got %d lines, want 4", len(res.Lines))
	}
	for i, l := range res.Lines {
		if n := visibleLen(l); n > 80 {
			t.Fatalf("line %d visible width %d exceeds 80", i, n)
		}
	}
}

func TestFormatMinimalSingleLine(t *testing.T) {
	th := theme.New("default", theme.CapPlain)
	s := State{Style: StyleMinimal, ModeLabel: "Default"}
	res := Format(s, th, 40)
	if len(res.Lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(res.Lines))
	}
}

func TestButtonsDoNotOverlap(t *testing.T) {
	th := theme.New("default", theme.CapTrueColor)
	s := State{Style: StyleFull, ModeLabel: "Default", QueueDepth: 2, LastLatencyMs: 120}
	res := Format(s, th, 100)
	for i := range res.Buttons {
		for j := range res.Buttons {
			if i == j {
				continue
			}
			a, b := res.Buttons[i], res.Buttons[j]
			if a.Row != b.Row {
				continue
			}
			aEnd := a.Col + a.Width
			bEnd := b.Col + b.Width
			if a.Col < bEnd && b.Col < aEnd {
				t.Fatalf("buttons overlap: %+v and %+v", a, b)
			}
		}
	}
}

func TestNarrowWidthFallsBackToSingleLine(t *testing.T) {
	th := theme.New("default", theme.CapPlain)
	s := State{Style: StyleFull, ModeLabel: "Default"}
	res := Format(s, th, 10)
	if len(res.Lines) != 1 {
		t.Fatalf("got %d lines for narrow width, want 1", len(res.Lines))
	}
}

func TestHiddenBannerIsZeroRowsWhileRecording(t *testing.T) {
	th := theme.New("default", theme.CapPlain)
	idle := Format(State{Style: StyleHidden, ModeLabel: "Default"}, th, 40)
	if len(idle.Lines) != 1 {
		t.Fatalf("expected idle hidden banner to occupy 1 row, got %d", len(idle.Lines))
	}
	recording := Format(State{Style: StyleHidden, ModeLabel: "Default", Recording: true, Indicator: IndicatorRecording}, th, 40)
	if len(recording.Lines) != 0 {
		t.Fatalf("expected recording hidden banner to occupy 0 rows, got %d", len(recording.Lines))
	}
}
