// Package backend implements the non-overlay, optional Codex/Claude/Gemini
// backend path of spec §4.10: a CodexBackend interface, a CliBackend that
// prefers a persistent PTY session and falls back to a one-shot spawn, and
// a bounded per-job event queue with priority-based eviction. Grounded on
// h2/internal/session/agent/harness/harness.go's Harness interface (the
// identity/config/launch/runtime method grouping) and
// h2/internal/session/agent/monitor/events.go's typed-event-plus-payload
// shape, generalized from h2's agent-telemetry events to the backend job
// events spec §4.10 names.
package backend

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Request describes one backend job to start (spec §4.10 "start(request)").
type Request struct {
	Prompt     string
	WorkingDir string
}

// JobID identifies a running or finished backend job.
type JobID string

// CodexBackend is the trait named in spec §4.10.
type CodexBackend interface {
	Start(req Request) (*Job, error)
	Cancel(id JobID)
	WorkingDir() string
}

// CodexSession is the persistent-PTY-session abstraction CliBackend tries
// first; internal/pty.Session satisfies this narrow subset of its API.
type CodexSession interface {
	WriteLine(text string) (int, error)
	Output() <-chan []byte
}

// EventKind enumerates spec §4.10's event enum.
type EventKind int

const (
	EventStarted EventKind = iota
	EventStatus
	EventToken
	EventRecoverableError
	EventFatalError
	EventFinished
	EventCanceled
)

// Event is the tagged union of backend job events (spec §4.10).
type Event struct {
	Kind EventKind

	Mode string // Started

	Msg string // Status / RecoverableError / FatalError

	Text string // Token

	Phase         string // RecoverableError / FatalError
	RetryAvail    bool   // RecoverableError
	DisablePTY    bool   // FatalError / Canceled

	Lines  []string // Finished
	Status string   // Finished
	Stats  map[string]any
}

// terminal reports whether this event kind ends the job (spec §4.10
// "drops the oldest non-terminal event").
func (e Event) terminal() bool {
	switch e.Kind {
	case EventFinished, EventCanceled, EventFatalError:
		return true
	default:
		return false
	}
}

// evictionPriority ranks non-terminal event kinds from most to least
// droppable, per spec §4.10: "drops the oldest non-terminal event (token
// first, then status, then recoverable error / started)".
func evictionPriority(k EventKind) int {
	switch k {
	case EventToken:
		return 0
	case EventStatus:
		return 1
	case EventRecoverableError, EventStarted:
		return 2
	default:
		return 3
	}
}

// eventQueueCapacity is spec §4.10's "capacity 1024".
const eventQueueCapacity = 1024

// EventQueue is the bounded, priority-evicting queue backing each Job.
type EventQueue struct {
	mu    sync.Mutex
	items []Event
}

// Push appends ev, evicting per spec §4.10's policy if at capacity: the
// oldest event with the lowest eviction priority (most droppable) is
// removed; the new event is itself dropped only if every queued event is
// terminal (nothing droppable remains).
func (q *EventQueue) Push(ev Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) < eventQueueCapacity {
		q.items = append(q.items, ev)
		return
	}
	victim := -1
	victimPrio := -1
	for i, item := range q.items {
		if item.terminal() {
			continue
		}
		p := evictionPriority(item.Kind)
		if victim == -1 || p < victimPrio {
			victimPrio = p
			victim = i
		}
	}
	if victim == -1 {
		// Nothing droppable remains: drop the new event instead.
		return
	}
	q.items = append(q.items[:victim], q.items[victim+1:]...)
	q.items = append(q.items, ev)
}

// Pop removes and returns the oldest queued event, if any.
func (q *EventQueue) Pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Event{}, false
	}
	ev := q.items[0]
	q.items = q.items[1:]
	return ev, true
}

func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Job is a running or finished backend job (spec §4.10 "BoundedEventQueue
// plus a signal channel").
type Job struct {
	ID       JobID
	Events   *EventQueue
	Signal   chan struct{} // closed to wake a consumer blocked waiting on events
	canceled atomic.Bool
}

func newJob() *Job {
	return &Job{
		ID:     JobID(uuid.NewString()),
		Events: &EventQueue{},
		Signal: make(chan struct{}),
	}
}

func (j *Job) emit(ev Event) {
	j.Events.Push(ev)
	select {
	case <-j.Signal:
	default:
		close(j.Signal)
	}
}

// Canceled reports whether Cancel has been called for this job.
func (j *Job) Canceled() bool { return j.canceled.Load() }

// sigtermGrace is spec §4.10's "after 500 ms, SIGKILL" escalation gap.
const sigtermGrace = 500 * time.Millisecond

// CliBackend implements CodexBackend by trying a persistent PTY session
// first (a CodexSession, typically backed by internal/pty.Session) and,
// on failure, spawning the CLI once with the prompt piped to stdin via
// "codex exec -" (spec §4.10).
type CliBackend struct {
	command    string
	args       []string
	workingDir string

	mu      sync.Mutex
	session CodexSession
	jobs    map[JobID]*Job
}

// NewCliBackend builds a CliBackend. session may be nil (no persistent
// session attempted; every job uses the one-shot spawn path).
func NewCliBackend(command string, args []string, workingDir string, session CodexSession) *CliBackend {
	return &CliBackend{
		command:    command,
		args:       args,
		workingDir: workingDir,
		session:    session,
		jobs:       make(map[JobID]*Job),
	}
}

func (b *CliBackend) WorkingDir() string { return b.workingDir }

// Start launches req either against the persistent session or, if that
// fails or is unavailable, via a one-shot spawn (spec §4.10 "Start").
func (b *CliBackend) Start(req Request) (*Job, error) {
	job := newJob()
	b.mu.Lock()
	b.jobs[job.ID] = job
	b.mu.Unlock()

	if b.session != nil {
		if _, err := b.session.WriteLine(req.Prompt); err == nil {
			job.emit(Event{Kind: EventStarted, Mode: "persistent"})
			go b.drainSession(job)
			return job, nil
		}
	}

	job.emit(Event{Kind: EventStarted, Mode: "spawn"})
	go b.runSpawn(job, req)
	return job, nil
}

func (b *CliBackend) drainSession(job *Job) {
	for chunk := range b.session.Output() {
		if job.Canceled() {
			job.emit(Event{Kind: EventCanceled})
			return
		}
		job.emit(Event{Kind: EventToken, Text: string(chunk)})
	}
}

// runSpawn implements the fallback: spawn `command args... exec -`, with
// the prompt written to stdin, collecting stdout as Token events (spec
// §4.10 "falling back to spawning the CLI once with the prompt on stdin,
// then codex exec -").
func (b *CliBackend) runSpawn(job *Job, req Request) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	args := append(append([]string{}, b.args...), "exec", "-")
	cmd := exec.CommandContext(ctx, b.command, args...)
	if req.WorkingDir != "" {
		cmd.Dir = req.WorkingDir
	} else {
		cmd.Dir = b.workingDir
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		job.emit(Event{Kind: EventFatalError, Phase: "spawn", Msg: err.Error()})
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		job.emit(Event{Kind: EventFatalError, Phase: "spawn", Msg: err.Error()})
		return
	}

	if err := cmd.Start(); err != nil {
		job.emit(Event{Kind: EventFatalError, Phase: "spawn", Msg: fmt.Sprintf("start %s: %v", b.command, err)})
		return
	}

	go func() {
		stdin.Write([]byte(req.Prompt))
		stdin.Close()
	}()

	done := make(chan struct{})
	go b.watchCancel(job, cmd, done)

	buf := make([]byte, 4096)
	var lines []string
	for {
		n, rerr := stdout.Read(buf)
		if n > 0 {
			job.emit(Event{Kind: EventToken, Text: string(buf[:n])})
			lines = append(lines, string(buf[:n]))
		}
		if rerr != nil {
			break
		}
	}
	close(done)

	waitErr := cmd.Wait()
	if job.Canceled() {
		job.emit(Event{Kind: EventCanceled})
		return
	}
	if waitErr != nil {
		job.emit(Event{Kind: EventFatalError, Phase: "exec", Msg: waitErr.Error()})
		return
	}
	job.emit(Event{Kind: EventFinished, Lines: lines, Status: "ok"})
}

// watchCancel escalates SIGTERM then, after sigtermGrace, SIGKILL once the
// job is marked canceled (spec §4.10 "child processes receive SIGTERM and,
// after 500 ms, SIGKILL").
func (b *CliBackend) watchCancel(job *Job, cmd *exec.Cmd, done <-chan struct{}) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !job.Canceled() {
				continue
			}
			if cmd.Process == nil {
				return
			}
			cmd.Process.Signal(processTermSignal())
			select {
			case <-done:
				return
			case <-time.After(sigtermGrace):
				cmd.Process.Kill()
				return
			}
		}
	}
}

// Cancel marks job as canceled; the one-shot spawn path escalates
// SIGTERM→SIGKILL, the persistent-session path stops forwarding tokens.
func (b *CliBackend) Cancel(id JobID) {
	b.mu.Lock()
	job, ok := b.jobs[id]
	b.mu.Unlock()
	if !ok {
		return
	}
	job.canceled.Store(true)
}
