package audio

import "time"

// CaptureState tracks a single capture's timing across frames and
// decides when to stop, per spec §3's capture-state machine
// (total_ms, speech_ms, silence_tail_ms).
type CaptureState struct {
	cfg CaptureConfig

	totalMs        int
	speechMs       int
	silenceTailMs  int
	framesDropped  int64
	framesProcessed int
}

// CaptureConfig names the same bounds as the CLI flags in spec §6.
type CaptureConfig struct {
	FrameMs       int
	MaxDurationMs int
	SilenceTailMs int
	LookbackMs    int
}

// NewCaptureState builds a state machine for one capture.
func NewCaptureState(cfg CaptureConfig) *CaptureState {
	return &CaptureState{cfg: cfg}
}

// OnFrame advances the state machine by one frame's smoothed decision.
// It returns a non-nil StopReason when the capture should end.
func (c *CaptureState) OnFrame(d Decision) *StopReason {
	c.framesProcessed++
	c.totalMs += c.cfg.FrameMs

	switch d {
	case Speech:
		c.speechMs += c.cfg.FrameMs
		c.silenceTailMs = 0
	case Silence:
		c.silenceTailMs += c.cfg.FrameMs
		if c.speechMs > 0 && c.silenceTailMs >= c.cfg.SilenceTailMs {
			return &StopReason{Kind: StopVadSilence, TailMs: c.silenceTailMs}
		}
	case Uncertain:
		// Neither resets nor extends the silence tail; treated as a
		// no-op frame so a handful of ambiguous frames mid-utterance
		// don't prematurely end the capture or reset an accumulating
		// silence tail.
	}

	if c.totalMs >= c.cfg.MaxDurationMs {
		return &StopReason{Kind: StopMaxDuration}
	}
	return nil
}

// OnTimeout is called when a frame receive times out (no audio arrived
// within the expected window); it counts toward total duration so a
// stalled device still eventually hits MaxDuration.
func (c *CaptureState) OnTimeout() *StopReason {
	c.totalMs += c.cfg.FrameMs
	if c.totalMs >= c.cfg.MaxDurationMs {
		return &StopReason{Kind: StopMaxDuration}
	}
	return nil
}

// IncDropped records that the dispatcher or recorder lock contention
// dropped a frame (spec §7 "Frame drops").
func (c *CaptureState) IncDropped() { c.framesDropped++ }

// Metrics returns the capture result metrics (spec §3 "Capture result").
type Metrics struct {
	CaptureMs        int
	SpeechMs         int
	SilenceTailMs    int
	FramesProcessed  int
	FramesDropped    int64
	TranscribeMs     int
	EarlyStopReason  string
}

func (c *CaptureState) Metrics(transcribeDur time.Duration, reason StopReason) Metrics {
	return Metrics{
		CaptureMs:       c.totalMs,
		SpeechMs:        c.speechMs,
		SilenceTailMs:   c.silenceTailMs,
		FramesProcessed: c.framesProcessed,
		FramesDropped:   c.framesDropped,
		TranscribeMs:    int(transcribeDur.Milliseconds()),
		EarlyStopReason: reasonString(reason),
	}
}

func reasonString(r StopReason) string {
	switch r.Kind {
	case StopVadSilence:
		return "vad_silence"
	case StopMaxDuration:
		return "max_duration"
	case StopManualStop:
		return "manual_stop"
	case StopTimeout:
		return "timeout"
	case StopError:
		if r.Err != nil {
			return "error: " + r.Err.Error()
		}
		return "error"
	default:
		return "unknown"
	}
}
