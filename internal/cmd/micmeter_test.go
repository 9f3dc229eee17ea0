package cmd

import (
	"bytes"
	"testing"
)

func TestMicMeterScreenRendersWithinBounds(t *testing.T) {
	screen := newMicMeterScreen(8, 40)
	frame := screen.Render(-50, -40)
	if len(frame) == 0 {
		t.Fatalf("expected non-empty frame")
	}
	if !bytes.Contains(frame, []byte("\033[?25l")) {
		t.Fatalf("expected frame to hide the cursor")
	}
}

func TestMicMeterScreenShowsSpeechAboveThreshold(t *testing.T) {
	screen := newMicMeterScreen(8, 60)
	frame := screen.Render(-10, -40)
	if !bytes.Contains(frame, []byte("SPEECH")) {
		t.Fatalf("expected frame above threshold to render SPEECH, got %q", frame)
	}
}

func TestMicMeterScreenShowsSilenceBelowThreshold(t *testing.T) {
	screen := newMicMeterScreen(8, 60)
	frame := screen.Render(-70, -40)
	if !bytes.Contains(frame, []byte("silence")) {
		t.Fatalf("expected frame below threshold to render silence, got %q", frame)
	}
}
