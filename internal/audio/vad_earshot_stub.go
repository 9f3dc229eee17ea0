//go:build !earshot

package audio

// newEarshotVad falls back to the always-available threshold engine when
// the binary wasn't built with the earshot tag.
func newEarshotVad(thresholdDb float64) VadEngine {
	return NewSimpleThresholdVad(thresholdDb)
}
