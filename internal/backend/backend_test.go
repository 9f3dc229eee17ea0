package backend

import "testing"

func TestEventQueueFIFOUnderCapacity(t *testing.T) {
	var q EventQueue
	q.Push(Event{Kind: EventStarted})
	q.Push(Event{Kind: EventToken, Text: "a"})
	first, ok := q.Pop()
	if !ok || first.Kind != EventStarted {
		t.Fatalf("expected Started first, got %+v", first)
	}
}

func TestEventQueueEvictsTokensBeforeStatus(t *testing.T) {
	var q EventQueue
	for i := 0; i < eventQueueCapacity; i++ {
		q.Push(Event{Kind: EventToken, Text: "x"})
	}
	q.Push(Event{Kind: EventStatus, Msg: "working"})
	// A token should have been evicted, not the status we just pushed, and
	// the queue should still be at capacity with the status present.
	if q.Len() != eventQueueCapacity {
		t.Fatalf("queue length = %d, want %d", q.Len(), eventQueueCapacity)
	}
	foundStatus := false
	for _, item := range q.items {
		if item.Kind == EventStatus {
			foundStatus = true
		}
	}
	if !foundStatus {
		t.Fatalf("expected the new Status event to survive eviction")
	}
}

func TestEventQueueNeverEvictsTerminalEvents(t *testing.T) {
	var q EventQueue
	for i := 0; i < eventQueueCapacity; i++ {
		q.Push(Event{Kind: EventFinished})
	}
	before := q.Len()
	q.Push(Event{Kind: EventToken, Text: "dropped"})
	if q.Len() != before {
		t.Fatalf("queue length changed from %d to %d; new event should have been dropped", before, q.Len())
	}
	for _, item := range q.items {
		if item.Kind != EventFinished {
			t.Fatalf("a terminal event was evicted: %+v", item)
		}
	}
}

func TestCancelMarksJobCanceled(t *testing.T) {
	b := NewCliBackend("true", nil, "/tmp", nil)
	job, err := b.Start(Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	b.Cancel(job.ID)
	if !job.Canceled() {
		t.Fatalf("expected job to be marked canceled")
	}
}
