package writer

import (
	"bytes"
	"testing"
	"time"

	"github.com/voxterm/voxterm/internal/hud"
	"github.com/voxterm/voxterm/internal/theme"
)

func newTestWriter(buf *bytes.Buffer) *Writer {
	th := theme.New("default", theme.CapPlain)
	return New(buf, 24, 80, th, NewButtonRegistry(), 32)
}

func TestPtyOutputWritesVerbatim(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)
	go w.Run()

	w.In <- Message{Kind: MsgPtyOutput, Bytes: []byte("hello")}
	w.In <- Message{Kind: MsgShutdown}
	<-w.Done()

	if !bytes.Contains(buf.Bytes(), []byte("hello")) {
		t.Fatalf("expected output to contain %q, got %q", "hello", buf.String())
	}
}

func TestRedrawIsDebouncedNotImmediate(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)
	go w.Run()

	w.In <- Message{Kind: MsgSetState, State: hud.State{Style: hud.StyleMinimal, ModeLabel: "Default"}}
	// Immediately after the message there should be no redraw yet: the
	// band uses cursor-save sequences, absent until the debounce fires.
	time.Sleep(5 * time.Millisecond)
	before := buf.Len()

	time.Sleep(80 * time.Millisecond)
	after := buf.Len()

	w.In <- Message{Kind: MsgShutdown}
	<-w.Done()

	if after <= before {
		t.Fatalf("expected a debounced redraw to have written bytes: before=%d after=%d", before, after)
	}
}

func TestEnableDisableMouseEmitsSGRSequences(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)
	go w.Run()

	w.In <- Message{Kind: MsgEnableMouse}
	w.In <- Message{Kind: MsgShutdown}
	<-w.Done()

	if !bytes.Contains(buf.Bytes(), []byte("\033[?1000h\033[?1006h")) {
		t.Fatalf("expected mouse-enable sequence in output")
	}
	if !bytes.Contains(buf.Bytes(), []byte("\033[?1000l\033[?1006l")) {
		t.Fatalf("expected teardown to disable mouse")
	}
}

func TestButtonRegistryHitTest(t *testing.T) {
	reg := NewButtonRegistry()
	reg.Set([]hud.Button{{Key: "^R", Label: "rec", Row: 3, Col: 2, Width: 5}})

	if _, ok := reg.HitTest(3, 2); !ok {
		t.Fatalf("expected hit at button start")
	}
	if _, ok := reg.HitTest(3, 6); !ok {
		t.Fatalf("expected hit within button width")
	}
	if _, ok := reg.HitTest(3, 7); ok {
		t.Fatalf("expected miss just past button width")
	}
	if _, ok := reg.HitTest(4, 2); ok {
		t.Fatalf("expected miss on wrong row")
	}
}
