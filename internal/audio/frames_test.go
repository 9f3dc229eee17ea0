package audio

import "testing"

func TestFrameAccumulatorDropsOldestOnOverflow(t *testing.T) {
	a := NewFrameAccumulator(10, 1000) // capacity: 10 samples
	a.Push([]float32{1, 2, 3, 4, 5}, Speech)
	a.Push([]float32{6, 7, 8, 9, 10}, Speech)
	if a.TotalSamples() != 10 {
		t.Fatalf("expected 10 samples at capacity, got %d", a.TotalSamples())
	}
	a.Push([]float32{11, 12}, Speech)
	if a.TotalSamples() != 7 {
		t.Fatalf("expected whole oldest frame dropped (10+2-5 = 7 samples), got %d", a.TotalSamples())
	}
	out := a.IntoAudio(StopReason{Kind: StopManualStop}, 0, 1000)
	if out[0] != 6 {
		t.Fatalf("expected first surviving sample to be 6, got %v", out[0])
	}
}

func TestFrameAccumulatorTrimsTrailingSilenceToLookback(t *testing.T) {
	a := NewFrameAccumulator(10_000, 1000)
	a.Push([]float32{1, 2, 3}, Speech)
	a.Push([]float32{4, 5}, Silence)
	a.Push([]float32{6, 7, 8}, Silence)

	out := a.IntoAudio(StopReason{Kind: StopVadSilence}, 2, 1000) // keep 2ms = 2 samples of trailing silence
	want := []float32{1, 2, 3, 7, 8}
	if len(out) != len(want) {
		t.Fatalf("got %v, want %v", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("got %v, want %v", out, want)
		}
	}
}

func TestFrameAccumulatorTrimIsIdempotentWhenAlreadyShort(t *testing.T) {
	a := NewFrameAccumulator(10_000, 1000)
	a.Push([]float32{1, 2, 3}, Speech)
	a.Push([]float32{4}, Silence)

	out := a.IntoAudio(StopReason{Kind: StopVadSilence}, 100, 1000) // lookback far exceeds trailing silence
	want := []float32{1, 2, 3, 4}
	if len(out) != len(want) {
		t.Fatalf("got %v, want %v", out, want)
	}
}

func TestFrameAccumulatorNoTrimForNonSilenceStop(t *testing.T) {
	a := NewFrameAccumulator(10_000, 1000)
	a.Push([]float32{1, 2, 3}, Speech)
	a.Push([]float32{4, 5}, Silence)

	out := a.IntoAudio(StopReason{Kind: StopMaxDuration}, 0, 1000)
	if len(out) != 5 {
		t.Fatalf("expected no trimming for StopMaxDuration, got %v", out)
	}
}

func TestFrameDispatcherEmitsFixedLengthFrames(t *testing.T) {
	out := make(chan []float32, 4)
	var drops int64
	d := NewFrameDispatcher(4, out, &drops)

	d.Push([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9})
	close(out)

	var frames [][]float32
	for f := range out {
		frames = append(frames, f)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 complete frames, got %d", len(frames))
	}
	if frames[0][0] != 1 || frames[1][0] != 5 {
		t.Fatalf("unexpected frame contents: %v", frames)
	}
}

func TestFrameDispatcherCountsDropsWhenChannelFull(t *testing.T) {
	out := make(chan []float32) // unbuffered, nothing draining
	var drops int64
	d := NewFrameDispatcher(2, out, &drops)

	d.Push([]float32{1, 2, 3, 4})
	if drops != 2 {
		t.Fatalf("expected 2 dropped frames, got %d", drops)
	}
}
