// Package transcript implements the pending-transcript FIFO and the gating
// logic that decides when a completed voice transcript is delivered to the
// child, per spec §4.9. Grounded on spec §4.9 directly; the bounded-queue
// drop-oldest shape follows the same pattern used throughout this codebase
// for every other bounded channel (input, writer, voice job events).
package transcript

import "github.com/voxterm/voxterm/internal/config"

// Source identifies which pipeline produced a transcript (spec §4.5
// "Record the effective source on the job").
type Source int

const (
	SourceNative Source = iota
	SourcePython
)

// Pending is one queued transcript awaiting a ready prompt.
type Pending struct {
	Text   string
	Source Source
}

// maxQueueDepth bounds pending_transcripts (spec §4.9 "drop-oldest on
// overflow"); sized generously since a human operator will notice long
// before a real queue gets anywhere near this deep.
const maxQueueDepth = 32

// Queue is the FIFO of pending_transcripts.
type Queue struct {
	items []Pending
}

// Push appends text, dropping the oldest entry if the queue is already at
// capacity.
func (q *Queue) Push(p Pending) {
	q.items = append(q.items, p)
	if len(q.items) > maxQueueDepth {
		q.items = q.items[len(q.items)-maxQueueDepth:]
	}
}

// Pop removes and returns the oldest pending transcript, if any.
func (q *Queue) Pop() (Pending, bool) {
	if len(q.items) == 0 {
		return Pending{}, false
	}
	p := q.items[0]
	q.items = q.items[1:]
	return p, true
}

func (q *Queue) Len() int { return len(q.items) }

// Delivery is what the event loop should do with a transcript once it's
// decided to hand it to the child (spec §4.9 "Delivery").
type Delivery struct {
	Text        string
	AppendEnter bool // Auto mode: send text + "\n" immediately
}

// Deliver decides how to hand text to the child for the given send mode.
// Insert mode delivers text only, leaving Enter to the user; Auto mode
// appends a newline itself.
func Deliver(text string, mode config.SendMode) Delivery {
	return Delivery{Text: text, AppendEnter: mode == config.SendAuto}
}

// PromptReady reports whether the delivery gate is open: either a prompt
// was observed strictly after the most recent Enter VoxTerm itself sent, or
// the PTY has been idle for at least idleMs (spec §4.9 "Delivery is gated
// on prompt ready").
func PromptReady(promptSeenAfterLastEnter bool, ptyIdleForAtLeastThreshold bool) bool {
	return promptSeenAfterLastEnter || ptyIdleForAtLeastThreshold
}
