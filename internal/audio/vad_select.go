package audio

// SelectVadEngine builds the VAD engine for a capture given whether the
// caller asked for the "earshot" engine (spec §4.6: "An ML / energy-based
// engine behind a compile-time feature ... contract-identical" with the
// always-available threshold engine). When the repo isn't built with the
// earshot tag, newEarshotVad falls back to SimpleThresholdVad so selecting
// it is never a hard error, only a silent downgrade.
func SelectVadEngine(earshot bool, thresholdDb float64) VadEngine {
	if earshot {
		return newEarshotVad(thresholdDb)
	}
	return NewSimpleThresholdVad(thresholdDb)
}
