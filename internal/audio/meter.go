package audio

import (
	"math"
	"sync/atomic"
)

// LiveMeter is a single lock-free atomic RMS-dB value, written by the
// capture loop and read by the HUD's right panel (spec §4.6/§5: "single
// atomic dB value (lock-free)"). The dB value is bit-packed into an
// atomic.Uint64 since there is no atomic float64, matching the bit-cast
// pattern used across the retrieved examples wherever a float needs
// lock-free sharing.
type LiveMeter struct {
	bits atomic.Uint64
}

// NewLiveMeter builds a meter starting at the floor (-120 dB = silence).
func NewLiveMeter() *LiveMeter {
	m := &LiveMeter{}
	m.Set(-120)
	return m
}

// Set stores a new dB reading.
func (m *LiveMeter) Set(db float64) {
	m.bits.Store(math.Float64bits(db))
}

// Get returns the last stored dB reading.
func (m *LiveMeter) Get() float64 {
	return math.Float64frombits(m.bits.Load())
}
