// Package audio implements the capture-side signal pipeline: downmixing,
// resampling to 16 kHz mono, frame-level voice activity detection with
// hysteresis, and the live dB meter the HUD reads. Grounded on
// team-hashing-lokutor-orchestrator/pkg/orchestrator/vad.go's RMS VAD
// shape, generalized to operate on float32 frames (VoxTerm's internal
// representation per spec §3) instead of raw PCM16 bytes.
package audio

import "math"

// Decision is a VAD engine's per-frame classification (spec §3).
type Decision int

const (
	Silence Decision = iota
	Speech
	Uncertain
)

// VadEngine decides speech/silence per frame. Two implementations satisfy
// this contract: SimpleThresholdVad (always available) and an ML-based
// engine behind a build tag (spec §4.6). This is one of the two dynamic
// dispatch seams the design notes call out (§9), alongside backend.CodexBackend.
type VadEngine interface {
	ProcessFrame(frame []float32) Decision
	Reset()
}

// VadConfig configures engine construction, named to mirror the CLI
// flags in spec §6 (--voice-vad-threshold-db, --voice-vad-frame-ms, ...).
type VadConfig struct {
	ThresholdDb     float64
	FrameMs         int
	SampleRateHz    int
	SmoothingFrames int
}

// FrameSamples returns the frame length in samples for this config.
func (c VadConfig) FrameSamples() int {
	return c.FrameMs * c.SampleRateHz / 1000
}

// SimpleThresholdVad decides from RMS energy compared to a dB threshold,
// grounded directly on RMSVAD.calculateRMS/Process but re-expressed
// per-frame (the orchestrator's RMSVAD tracks its own speaking/silence
// timers across an entire stream; here that responsibility moves up to
// CaptureState so VadEngine stays a pure per-frame classifier and
// capture-duration policy lives in one place).
type SimpleThresholdVad struct {
	thresholdDb float64
}

// NewSimpleThresholdVad builds a threshold VAD at the given dB floor.
func NewSimpleThresholdVad(thresholdDb float64) *SimpleThresholdVad {
	return &SimpleThresholdVad{thresholdDb: thresholdDb}
}

func (v *SimpleThresholdVad) ProcessFrame(frame []float32) Decision {
	if len(frame) == 0 {
		return Uncertain
	}
	db := RMSDb(frame)
	if db > v.thresholdDb {
		return Speech
	}
	return Silence
}

func (v *SimpleThresholdVad) Reset() {}

// RMSDb computes the RMS energy of frame in dBFS (20*log10(rms)), the
// same normalized-sample RMS the teacher pack's RMSVAD.calculateRMS
// computes from PCM16, adapted to float32 samples already in [-1, 1].
func RMSDb(frame []float32) float64 {
	if len(frame) == 0 {
		return -120
	}
	var sum float64
	for _, s := range frame {
		f := float64(s)
		sum += f * f
	}
	rms := math.Sqrt(sum / float64(len(frame)))
	if rms <= 0 {
		return -120
	}
	db := 20 * math.Log10(rms)
	if db < -120 {
		return -120
	}
	return db
}

// Smoother keeps the last k decisions and emits the majority, with ties
// resolved to the previous emitted decision (spec §3 "VAD decision").
type Smoother struct {
	window   []Decision
	size     int
	previous Decision
}

// NewSmoother builds a majority-vote smoother of the given window size,
// clamped to [1, 10] per spec §6's --voice-vad-smoothing-frames bound.
func NewSmoother(size int) *Smoother {
	if size < 1 {
		size = 1
	}
	if size > 10 {
		size = 10
	}
	return &Smoother{size: size, previous: Silence}
}

// Push records a new raw decision and returns the smoothed output.
func (s *Smoother) Push(d Decision) Decision {
	s.window = append(s.window, d)
	if len(s.window) > s.size {
		s.window = s.window[len(s.window)-s.size:]
	}
	var speech, silence, uncertain int
	for _, w := range s.window {
		switch w {
		case Speech:
			speech++
		case Silence:
			silence++
		default:
			uncertain++
		}
	}
	var out Decision
	switch {
	case speech > silence && speech > uncertain:
		out = Speech
	case silence > speech && silence > uncertain:
		out = Silence
	case uncertain > speech && uncertain > silence:
		out = Uncertain
	default:
		out = s.previous // tie → previous
	}
	s.previous = out
	return out
}

func (s *Smoother) Reset() {
	s.window = s.window[:0]
	s.previous = Silence
}
