package audio

import "testing"

func TestLiveMeterStartsAtFloor(t *testing.T) {
	m := NewLiveMeter()
	if got := m.Get(); got != -120 {
		t.Fatalf("expected fresh meter at floor -120, got %v", got)
	}
}

func TestLiveMeterSetGetRoundTrips(t *testing.T) {
	m := NewLiveMeter()
	m.Set(-27.5)
	if got := m.Get(); got != -27.5 {
		t.Fatalf("got %v, want -27.5", got)
	}
}
