package audio

import "testing"

func TestResampleIdentityWhenRatesMatch(t *testing.T) {
	r := NewResampler(16_000, 16_000)
	in := []float32{0.1, 0.2, -0.3, 0.4}
	out := r.Resample(in)
	if len(out) != len(in) {
		t.Fatalf("expected identity pass-through, got len %d", len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d mutated: got %v want %v", i, out[i], in[i])
		}
	}
}

func TestResampleEmptyInput(t *testing.T) {
	r := NewResampler(48_000, 16_000)
	if out := r.Resample(nil); len(out) != 0 {
		t.Fatalf("expected empty output for empty input, got %v", out)
	}
}

func TestResampleGuardBoundsBypassProcessing(t *testing.T) {
	in := make([]float32, 100)
	for i := range in {
		in[i] = float32(i) / 100
	}

	below := NewResampler(minGuardRate-1, 16_000)
	if out := below.Resample(in); len(out) != len(in) {
		t.Fatalf("expected identity below guard rate, got len %d", len(out))
	}

	above := NewResampler(maxGuardRate+1, 16_000)
	if out := above.Resample(in); len(out) != len(in) {
		t.Fatalf("expected identity above guard rate, got len %d", len(out))
	}
}

func TestResampleOutputLengthMatchesRatio(t *testing.T) {
	in := make([]float32, 4800) // 100ms @ 48kHz
	for i := range in {
		in[i] = float32(i%100) / 100
	}
	r := NewResampler(48_000, 16_000)
	out := r.Resample(in)
	want := len(in) * 16_000 / 48_000
	if diff := len(out) - want; diff < -2 || diff > 2 {
		t.Fatalf("downsample length %d not within margin of %d", len(out), want)
	}
}

func TestResampleUpsampleLengthMatchesRatio(t *testing.T) {
	in := make([]float32, 1600) // 100ms @ 16kHz
	for i := range in {
		in[i] = float32(i%50) / 50
	}
	r := NewResampler(16_000, 48_000)
	out := r.Resample(in)
	want := len(in) * 3
	if diff := len(out) - want; diff < -2 || diff > 2 {
		t.Fatalf("upsample length %d not within margin of %d", len(out), want)
	}
}

func TestLowpassFIRAttenuatesHighFrequencyEnergy(t *testing.T) {
	const n = 2000
	nyquistTone := make([]float32, n)
	for i := range nyquistTone {
		if i%2 == 0 {
			nyquistTone[i] = 1
		} else {
			nyquistTone[i] = -1
		}
	}
	filtered := lowpassFIR(nyquistTone, 0.05, 41)

	energyBefore := sumSquares(nyquistTone)
	energyAfter := sumSquares(filtered)
	if energyAfter >= energyBefore {
		t.Fatalf("expected low-pass filter to reduce near-Nyquist energy: before=%v after=%v", energyBefore, energyAfter)
	}
}

func sumSquares(xs []float32) float64 {
	var sum float64
	for _, x := range xs {
		sum += float64(x) * float64(x)
	}
	return sum
}
