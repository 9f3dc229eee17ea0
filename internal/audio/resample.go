package audio

import "math"

// Resampler converts device-rate mono audio to the pipeline's target
// rate (16 kHz per spec §3, though the target is configurable via
// --voice-sample-rate). No resampling library appears anywhere in the
// retrieved corpus (DESIGN.md), so this hand-written windowed-sinc
// FIR + linear-interpolation chain implements spec §4.6's algorithm
// literally, grounded in shape on
// other_examples/1b6d967b_NeboLoop-nebo__internal-voice-pipeline.go.go's
// linear-interpolation resample() for the upsampling/fallback path.
type Resampler struct {
	deviceRate int
	targetRate int
}

// NewResampler builds a resampler for the given device/target rates.
func NewResampler(deviceRate, targetRate int) *Resampler {
	return &Resampler{deviceRate: deviceRate, targetRate: targetRate}
}

// minGuardRate/maxGuardRate bound device rates beyond which resampling
// is skipped entirely (spec §8 "Device rates outside guard bounds →
// identity, no panic").
const (
	minGuardRate = 2000
	maxGuardRate = 1_600_000
)

// Resample converts in (mono, deviceRate) to mono at targetRate.
func (r *Resampler) Resample(in []float32) []float32 {
	if len(in) == 0 {
		return in
	}
	if r.deviceRate == r.targetRate {
		return in
	}
	if r.deviceRate < minGuardRate || r.deviceRate > maxGuardRate {
		return in
	}
	return r.basic(in)
}

// basic implements the fallback path named in spec §4.6: a
// Hamming-windowed sinc FIR low-pass before downsampling (to prevent
// aliasing), then linear interpolation to the exact target length; pure
// linear interpolation when upsampling.
func (r *Resampler) basic(in []float32) []float32 {
	ratio := float64(r.targetRate) / float64(r.deviceRate)
	src := in
	if ratio < 1 {
		cutoff := math.Min(0.5*ratio, 0.499)
		decimation := r.deviceRate / r.targetRate
		if decimation < 1 {
			decimation = 1
		}
		taps := 2*decimation*4 + 1 // odd tap count scaled by decimation ratio
		src = lowpassFIR(in, cutoff, taps)
	}
	return linearResample(src, ratio, len(in))
}

// lowpassFIR applies a Hamming-windowed sinc low-pass filter at the
// given normalized cutoff (cycles/sample, Nyquist = 0.5) with the given
// odd tap count.
func lowpassFIR(in []float32, cutoff float64, taps int) []float32 {
	if taps < 3 {
		taps = 3
	}
	if taps%2 == 0 {
		taps++
	}
	kernel := make([]float64, taps)
	mid := taps / 2
	var sum float64
	for i := 0; i < taps; i++ {
		n := i - mid
		var sinc float64
		if n == 0 {
			sinc = 2 * cutoff
		} else {
			x := 2 * math.Pi * cutoff * float64(n)
			sinc = math.Sin(x) / (math.Pi * float64(n))
		}
		window := 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(taps-1))
		kernel[i] = sinc * window
		sum += kernel[i]
	}
	if sum != 0 {
		for i := range kernel {
			kernel[i] /= sum
		}
	}

	out := make([]float32, len(in))
	for i := range in {
		var acc float64
		for k := 0; k < taps; k++ {
			idx := i + k - mid
			var s float64
			switch {
			case idx < 0:
				s = float64(in[0]) // pad with last/first sample
			case idx >= len(in):
				s = float64(in[len(in)-1])
			default:
				s = float64(in[idx])
			}
			acc += s * kernel[k]
		}
		out[i] = float32(acc)
	}
	return out
}

// linearResample produces exactly round(len(in)*ratio) output samples
// (spec §8: "output length is round(in_len*target/device) ± small
// margin") via linear interpolation over the (possibly pre-filtered)
// source.
func linearResample(in []float32, ratio float64, origLen int) []float32 {
	outLen := int(math.Round(float64(origLen) * ratio))
	if outLen <= 0 {
		return nil
	}
	out := make([]float32, outLen)
	srcLen := len(in)
	if srcLen == 1 {
		for i := range out {
			out[i] = in[0]
		}
		return out
	}
	step := float64(srcLen-1) / float64(outLen-1)
	if outLen == 1 {
		step = 0
	}
	for i := 0; i < outLen; i++ {
		pos := float64(i) * step
		lo := int(math.Floor(pos))
		if lo >= srcLen-1 {
			out[i] = in[srcLen-1]
			continue
		}
		frac := pos - float64(lo)
		out[i] = float32(float64(in[lo])*(1-frac) + float64(in[lo+1])*frac)
	}
	return out
}
