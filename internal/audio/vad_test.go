package audio

import "testing"

func TestRMSDbSilenceIsFloor(t *testing.T) {
	if got := RMSDb(make([]float32, 100)); got != -120 {
		t.Fatalf("expected floor -120 for all-zero frame, got %v", got)
	}
	if got := RMSDb(nil); got != -120 {
		t.Fatalf("expected floor -120 for empty frame, got %v", got)
	}
}

func TestRMSDbFullScaleIsZero(t *testing.T) {
	frame := make([]float32, 100)
	for i := range frame {
		frame[i] = 1
	}
	if got := RMSDb(frame); got < -0.01 || got > 0.01 {
		t.Fatalf("expected ~0 dB for full-scale frame, got %v", got)
	}
}

func TestSimpleThresholdVadClassifiesAboveAndBelowThreshold(t *testing.T) {
	v := NewSimpleThresholdVad(-40)
	loud := make([]float32, 50)
	for i := range loud {
		loud[i] = 1
	}
	if got := v.ProcessFrame(loud); got != Speech {
		t.Fatalf("expected Speech for full-scale frame, got %v", got)
	}
	if got := v.ProcessFrame(make([]float32, 50)); got != Silence {
		t.Fatalf("expected Silence for zero frame, got %v", got)
	}
	if got := v.ProcessFrame(nil); got != Uncertain {
		t.Fatalf("expected Uncertain for empty frame, got %v", got)
	}
}

func TestSmootherMajorityVote(t *testing.T) {
	s := NewSmoother(3)
	s.Push(Speech)
	s.Push(Speech)
	if got := s.Push(Silence); got != Speech {
		t.Fatalf("expected majority Speech, got %v", got)
	}
}

func TestSmootherTieResolvesToPrevious(t *testing.T) {
	s := NewSmoother(2)
	s.Push(Speech)
	got := s.Push(Silence) // 1-1 tie, size 2
	if got != s.previous {
		t.Fatalf("tie should resolve to previous decision")
	}
}

func TestSmootherResetClearsWindow(t *testing.T) {
	s := NewSmoother(3)
	s.Push(Speech)
	s.Push(Speech)
	s.Reset()
	if len(s.window) != 0 {
		t.Fatalf("expected window cleared after Reset")
	}
	if got := s.Push(Silence); got != Silence {
		t.Fatalf("expected fresh window to report its own single push, got %v", got)
	}
}

func TestNewSmootherClampsWindowSize(t *testing.T) {
	if s := NewSmoother(0); s.size != 1 {
		t.Fatalf("expected clamp to 1, got %d", s.size)
	}
	if s := NewSmoother(50); s.size != 10 {
		t.Fatalf("expected clamp to 10, got %d", s.size)
	}
}

func TestVadConfigFrameSamples(t *testing.T) {
	c := VadConfig{FrameMs: 20, SampleRateHz: 16_000}
	if got := c.FrameSamples(); got != 320 {
		t.Fatalf("expected 320 samples, got %d", got)
	}
}
