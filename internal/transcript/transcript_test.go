package transcript

import (
	"testing"

	"github.com/voxterm/voxterm/internal/config"
)

func TestQueueFIFOOrder(t *testing.T) {
	var q Queue
	q.Push(Pending{Text: "one"})
	q.Push(Pending{Text: "two"})
	first, ok := q.Pop()
	if !ok || first.Text != "one" {
		t.Fatalf("expected FIFO order, got %+v", first)
	}
	second, ok := q.Pop()
	if !ok || second.Text != "two" {
		t.Fatalf("expected second item \"two\", got %+v", second)
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("expected empty queue after draining")
	}
}

func TestQueueDropsOldestOnOverflow(t *testing.T) {
	var q Queue
	for i := 0; i < maxQueueDepth+5; i++ {
		q.Push(Pending{Text: string(rune('a' + i%26))})
	}
	if q.Len() != maxQueueDepth {
		t.Fatalf("queue depth = %d, want %d", q.Len(), maxQueueDepth)
	}
}

func TestDeliverAutoAppendsEnter(t *testing.T) {
	d := Deliver("hello", config.SendAuto)
	if !d.AppendEnter || d.Text != "hello" {
		t.Fatalf("unexpected delivery: %+v", d)
	}
}

func TestDeliverInsertDoesNotAppendEnter(t *testing.T) {
	d := Deliver("hello", config.SendInsert)
	if d.AppendEnter {
		t.Fatalf("insert mode should not append enter: %+v", d)
	}
}

func TestPromptReadyEitherConditionOpensGate(t *testing.T) {
	if !PromptReady(true, false) {
		t.Fatalf("prompt seen after last enter should open gate")
	}
	if !PromptReady(false, true) {
		t.Fatalf("idle threshold should open gate")
	}
	if PromptReady(false, false) {
		t.Fatalf("neither condition should keep gate closed")
	}
}
