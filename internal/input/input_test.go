package input

import (
	"bytes"
	"io"
	"testing"
)

func decodeAll(t *testing.T, data []byte) []Event {
	t.Helper()
	out := make(chan Event, 64)
	Run(bytes.NewReader(data), out)
	var events []Event
	for ev := range out {
		events = append(events, ev)
	}
	return events
}

func TestPlainBytesFormARun(t *testing.T) {
	events := decodeAll(t, []byte("hello"))
	if len(events) != 1 || events[0].Kind != EventBytes || string(events[0].Bytes) != "hello" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestCtrlRIsVoiceTriggerHotKey(t *testing.T) {
	events := decodeAll(t, []byte{0x12})
	if len(events) != 1 || events[0].Kind != EventHotKey || events[0].HotKey != HotKeyVoiceTrigger {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestEnterIsASeparateEvent(t *testing.T) {
	events := decodeAll(t, []byte("ab\rcd"))
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3: %+v", len(events), events)
	}
	if events[0].Kind != EventBytes || string(events[0].Bytes) != "ab" {
		t.Fatalf("first event wrong: %+v", events[0])
	}
	if events[1].Kind != EventEnter {
		t.Fatalf("second event should be Enter: %+v", events[1])
	}
	if events[2].Kind != EventBytes || string(events[2].Bytes) != "cd" {
		t.Fatalf("third event wrong: %+v", events[2])
	}
}

func TestSGRMouseClickDecoded(t *testing.T) {
	events := decodeAll(t, []byte("\x1b[<0;10;5M"))
	if len(events) != 1 || events[0].Kind != EventMouse {
		t.Fatalf("unexpected events: %+v", events)
	}
	m := events[0].Mouse
	if m.X != 10 || m.Y != 5 || m.Button != 0 || !m.Press {
		t.Fatalf("unexpected mouse event: %+v", m)
	}
}

func TestSGRMouseReleaseDecoded(t *testing.T) {
	events := decodeAll(t, []byte("\x1b[<0;10;5m"))
	if len(events) != 1 || events[0].Kind != EventMouse || events[0].Mouse.Press {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestSurroundingBytesPreserveOrderAroundHotKey(t *testing.T) {
	events := decodeAll(t, append(append([]byte("pre"), 0x12), []byte("post")...))
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3: %+v", len(events), events)
	}
	if string(events[0].Bytes) != "pre" || events[1].HotKey != HotKeyVoiceTrigger || string(events[2].Bytes) != "post" {
		t.Fatalf("unexpected ordering: %+v", events)
	}
}

func TestSplitSGRSequenceAcrossReadsStillDecodes(t *testing.T) {
	r1, w := io.Pipe()
	out := make(chan Event, 8)
	go Run(r1, out)

	w.Write([]byte("\x1b[<0;1"))
	w.Write([]byte("0;5M"))
	w.Close()

	var got []Event
	for ev := range out {
		got = append(got, ev)
	}
	if len(got) != 1 || got[0].Kind != EventMouse {
		t.Fatalf("unexpected events across split read: %+v", got)
	}
}
