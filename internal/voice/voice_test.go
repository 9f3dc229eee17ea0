package voice

import (
	"testing"

	"github.com/voxterm/voxterm/internal/audio"
	"github.com/voxterm/voxterm/internal/config"
)

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.NoPythonFallback = false
	return cfg
}

func TestSanitizeTranscriptStripsNonSpeechMarkers(t *testing.T) {
	cases := map[string]string{
		"hello [silence] world":     "hello world",
		"[BLANK_AUDIO]":             "",
		"(music) turn left (music)": "turn left",
		"noisy []  text":            "noisy text",
		"clean text":                "clean text",
	}
	for in, want := range cases {
		if got := SanitizeTranscript(in); got != want {
			t.Errorf("SanitizeTranscript(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeTranscriptCollapsesWhitespace(t *testing.T) {
	got := SanitizeTranscript("a   b\t\tc\n\nd")
	want := "a b c d"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestManagerAdjustSensitivityClamps(t *testing.T) {
	m := NewManager(testConfig())
	if v := m.AdjustSensitivity(-1000); v != -80 {
		t.Fatalf("expected floor clamp, got %v", v)
	}
	if v := m.AdjustSensitivity(1000); v != -10 {
		t.Fatalf("expected ceiling clamp, got %v", v)
	}
}

func TestManagerIsIdleInitially(t *testing.T) {
	m := NewManager(testConfig())
	if !m.IsIdle() {
		t.Fatalf("fresh manager should be idle")
	}
	if m.ActiveSource() != SourceNone {
		t.Fatalf("fresh manager should have no active source")
	}
}

func TestManagerStartCaptureRejectsWhenBusy(t *testing.T) {
	m := NewManager(testConfig())
	m.job = &Job{done: make(chan Result, 1), stop: nil}
	if _, ok := m.StartCapture("manual"); ok {
		t.Fatalf("expected StartCapture to refuse while a job is active")
	}
}

func TestManagerCancelCaptureMarksPendingAndSuppressesResult(t *testing.T) {
	m := NewManager(testConfig())
	m.job = &Job{ID: "t", stop: audio.NewStopFlag(), done: make(chan Result, 1)}

	m.CancelCapture()
	if !m.job.stop.IsSet() {
		t.Fatalf("expected cancel to set the job's stop flag")
	}
	m.job.done <- Result{Kind: ResultTranscript, Text: "should be dropped"}

	if _, ok := m.PollMessage(); ok {
		t.Fatalf("cancelled capture's result should be suppressed")
	}
	if !m.IsIdle() {
		t.Fatalf("manager should be idle again after the suppressed poll")
	}
}

func TestManagerPollMessageDeliversResult(t *testing.T) {
	m := NewManager(testConfig())
	m.job = &Job{ID: "t", stop: audio.NewStopFlag(), done: make(chan Result, 1)}
	m.job.done <- Result{Kind: ResultTranscript, Text: "hello"}

	res, ok := m.PollMessage()
	if !ok || res.Text != "hello" {
		t.Fatalf("expected delivered transcript, got %+v ok=%v", res, ok)
	}
	if !m.IsIdle() {
		t.Fatalf("manager should be idle after delivering the result")
	}
}

func TestPerformVoiceCaptureErrorsWhenNoNativeComponentsAndFallbackDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.NoPythonFallback = true
	job := &Job{stop: nil}
	res := performVoiceCapture(job, cfg, SourcePython, nil, nil, nil)
	if res.Kind != ResultError {
		t.Fatalf("expected error result when fallback disabled and native unavailable, got %+v", res)
	}
}
