package audio

import "sync/atomic"

// StopReason explains why a capture ended (spec §3 "VAD decision").
type StopReason struct {
	Kind    StopKind
	TailMs  int   // populated for StopVadSilence
	Err     error // populated for StopError
}

type StopKind int

const (
	StopVadSilence StopKind = iota
	StopMaxDuration
	StopManualStop
	StopTimeout
	StopError
)

// labeledFrame pairs a frame's samples with the smoothed VAD decision
// that covers it, so FrameAccumulator can later trim trailing silence
// without re-running the VAD.
type labeledFrame struct {
	samples []float32
	label   Decision
}

// FrameAccumulator is a capacity-bounded ring of labeled frames. On
// overflow, the oldest frame is dropped — the teacher pack has no direct
// analog (VoxTerm's audio domain has no example in h2), so this is
// grounded on spec §3/§6 directly: buffer_ms * sample_rate / 1000 is the
// capacity, named explicitly by --voice-buffer-ms.
type FrameAccumulator struct {
	frames       []labeledFrame
	capacity     int // samples
	totalSamples int
}

// NewFrameAccumulator builds an accumulator bounded to bufferMs of audio
// at sampleRateHz.
func NewFrameAccumulator(bufferMs, sampleRateHz int) *FrameAccumulator {
	return &FrameAccumulator{capacity: bufferMs * sampleRateHz / 1000}
}

// Push appends a frame, dropping the oldest frames first if capacity is
// exceeded.
func (a *FrameAccumulator) Push(samples []float32, label Decision) {
	cp := make([]float32, len(samples))
	copy(cp, samples)
	a.frames = append(a.frames, labeledFrame{samples: cp, label: label})
	a.totalSamples += len(cp)
	for a.totalSamples > a.capacity && len(a.frames) > 0 {
		oldest := a.frames[0]
		a.totalSamples -= len(oldest.samples)
		a.frames = a.frames[1:]
	}
}

// TotalSamples reports the current buffered sample count.
func (a *FrameAccumulator) TotalSamples() int { return a.totalSamples }

// IntoAudio finalizes the buffer into one sample slice. When reason is
// StopVadSilence and the trailing silence run exceeds lookbackMs, the
// trailing silence is trimmed down to exactly lookbackSamples (spec §3
// invariant and §8 testable property): straddling frames are split,
// zero-length frames are removed.
func (a *FrameAccumulator) IntoAudio(reason StopReason, lookbackMs, sampleRateHz int) []float32 {
	if reason.Kind == StopVadSilence {
		lookbackSamples := lookbackMs * sampleRateHz / 1000
		a.trimTrailingSilence(lookbackSamples)
	}
	out := make([]float32, 0, a.totalSamples)
	for _, f := range a.frames {
		out = append(out, f.samples...)
	}
	return out
}

// trimTrailingSilence drops trailing Silence-labeled samples down to
// exactly lookbackSamples, splitting a straddling frame and discarding
// any frame left with zero samples. Idempotent once the trailing
// silence run is already <= lookbackSamples (spec §8).
func (a *FrameAccumulator) trimTrailingSilence(lookbackSamples int) {
	// Find how many trailing samples, across whole trailing Silence
	// frames, exceed lookbackSamples.
	trailingSilence := 0
	cut := len(a.frames)
	for i := len(a.frames) - 1; i >= 0; i-- {
		if a.frames[i].label != Silence {
			break
		}
		trailingSilence += len(a.frames[i].samples)
		cut = i
	}
	excess := trailingSilence - lookbackSamples
	if excess <= 0 {
		return
	}
	// Remove whole frames from `cut` onward that are entirely excess,
	// then trim the remainder from the first kept silence frame's tail
	// so exactly lookbackSamples of trailing silence remain.
	removed := 0
	i := cut
	for i < len(a.frames) && removed+len(a.frames[i].samples) <= excess {
		removed += len(a.frames[i].samples)
		a.totalSamples -= len(a.frames[i].samples)
		i++
	}
	a.frames = append(a.frames[:cut], a.frames[i:]...)
	remainder := excess - removed
	if remainder > 0 && cut < len(a.frames) {
		f := &a.frames[cut]
		if remainder >= len(f.samples) {
			a.totalSamples -= len(f.samples)
			a.frames = append(a.frames[:cut], a.frames[cut+1:]...)
		} else {
			a.totalSamples -= remainder
			f.samples = f.samples[remainder:]
		}
	}
	// Drop any zero-length frame left behind.
	out := a.frames[:0]
	for _, f := range a.frames {
		if len(f.samples) > 0 {
			out = append(out, f)
		}
	}
	a.frames = out
}

// FrameDispatcher accumulates interleaved device samples (already
// downmixed to mono) into fixed target-length frames, emitting a frame
// only when full and counting per-callback drops when the output
// channel is saturated — mirroring the atomic drop-counter pattern in
// the lokutor-orchestrator malgo callback
// (team-hashing-lokutor-orchestrator/cmd/agent/main.go's onSamples),
// generalized from "compute RMS inline" to "hand off fixed-length
// frames for a VAD engine to classify".
type FrameDispatcher struct {
	frameLen int
	pending  []float32
	out      chan<- []float32
	drops    *int64
}

// NewFrameDispatcher builds a dispatcher emitting frameLen-sample frames
// onto out (a bounded channel sized by --voice-channel-capacity). drops
// must point at a counter the caller reads with atomic.LoadInt64.
func NewFrameDispatcher(frameLen int, out chan<- []float32, drops *int64) *FrameDispatcher {
	return &FrameDispatcher{frameLen: frameLen, out: out, drops: drops}
}

// Push appends mono samples and emits any complete frames. Never blocks:
// a full channel increments *drops and discards that frame.
func (d *FrameDispatcher) Push(mono []float32) {
	d.pending = append(d.pending, mono...)
	for len(d.pending) >= d.frameLen {
		frame := make([]float32, d.frameLen)
		copy(frame, d.pending[:d.frameLen])
		d.pending = d.pending[d.frameLen:]
		select {
		case d.out <- frame:
		default:
			atomic.AddInt64(d.drops, 1)
		}
	}
}
