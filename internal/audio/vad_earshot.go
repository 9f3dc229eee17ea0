//go:build earshot

package audio

// AdaptiveEnergyVad is the ML/energy-based engine behind the "earshot"
// build tag (spec §4.6: "An ML / energy-based engine behind a
// compile-time feature ... contract-identical"). It tracks a running
// noise floor and trips on energy relative to that floor rather than a
// fixed dB threshold, which is the distinguishing behavior a
// Silero-style detector would contribute over SimpleThresholdVad without
// requiring an actual ONNX/model binding (out of scope per spec §1 — the
// STT model is the only model treated as opaque; VAD engines are
// pluggable Go implementations).
type AdaptiveEnergyVad struct {
	floorDb   float64
	marginDb  float64
	alpha     float64 // floor-tracking smoothing factor
	primed    bool
}

// NewAdaptiveEnergyVad builds an adaptive-floor VAD. marginDb is how far
// above the tracked noise floor a frame must sit to count as speech.
func NewAdaptiveEnergyVad(marginDb float64) *AdaptiveEnergyVad {
	if marginDb <= 0 {
		marginDb = 12
	}
	return &AdaptiveEnergyVad{marginDb: marginDb, alpha: 0.05, floorDb: -60}
}

func (v *AdaptiveEnergyVad) ProcessFrame(frame []float32) Decision {
	if len(frame) == 0 {
		return Uncertain
	}
	db := RMSDb(frame)
	if !v.primed {
		v.floorDb = db
		v.primed = true
	}
	isSpeech := db > v.floorDb+v.marginDb
	if !isSpeech {
		// Only adapt the floor during presumed-silence frames so a long
		// utterance doesn't drag the floor up and mask its own tail.
		v.floorDb = v.floorDb*(1-v.alpha) + db*v.alpha
	}
	if isSpeech {
		return Speech
	}
	return Silence
}

func (v *AdaptiveEnergyVad) Reset() {
	v.primed = false
	v.floorDb = -60
}

func newEarshotVad(thresholdDb float64) VadEngine {
	return NewAdaptiveEnergyVad(0)
}
