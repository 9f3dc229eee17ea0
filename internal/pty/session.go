// Package pty hosts a child process under a pseudo-terminal: spawn,
// bidirectional forwarding, terminal-capability auto-replies, winsize
// control, and Drop-safe teardown. Grounded on
// h2/internal/virtualterminal/vt.go's VT type (StartPTY/PipeOutput/Resize)
// generalized from "pipe straight into a midterm virtual terminal buffer"
// to "push raw chunks onto a bounded channel for the event loop to
// consume" (spec §3 "PTY session").
package pty

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
)

// Mode selects how the reader thread treats bytes before handing them to
// the output channel (spec §4.1 "Two reader variants").
type Mode int

const (
	// ModePassthrough preserves SGR/color but intercepts terminal
	// queries and resolves BS erasures; CR passes through (overlay mode).
	ModePassthrough Mode = iota
	// ModeSanitized strips all CSI/OSC and NUL bytes; CR and BS pass
	// through unchanged (non-overlay backend path).
	ModeSanitized
)

// Session owns a PTY master fd and child process (spec §3 "PTY session").
type Session struct {
	Ptm       *os.File
	cmd       *exec.Cmd
	mode      Mode
	rows      int
	cols      int
	outCh     chan []byte
	closeOnce sync.Once

	waitOnce sync.Once
	waitDone chan struct{}

	mu sync.Mutex
}

// outputChanCapacity is the bounded channel capacity named in spec §3.
const outputChanCapacity = 100

// Spawn forks/execs command under a new PTY at the given size, matching
// the contract in spec §4.1: setsid + controlling tty + dup2 stdio +
// chdir + TERM env are all handled by creack/pty's StartWithSize (which
// performs the fork/exec dance in the child before any Go runtime state
// is reused), the same call the teacher's VT.StartPTY makes.
func Spawn(command string, args []string, dir, term string, rows, cols int, mode Mode) (*Session, error) {
	cmd := exec.Command(command, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(), "TERM="+term)

	ptm, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return nil, fmt.Errorf("start command %q: %w", command, err)
	}

	s := &Session{
		Ptm:   ptm,
		cmd:   cmd,
		mode:  mode,
		rows:  rows,
		cols:  cols,
		outCh: make(chan []byte, outputChanCapacity),
	}
	go s.readLoop()
	return s, nil
}

// Output returns the channel of raw byte chunks the reader thread
// produces. Closed when the reader thread exits (EOF or fatal error).
func (s *Session) Output() <-chan []byte { return s.outCh }

// readLoop is the PTY reader thread (spec §4.1 "Reader thread"): reads
// up to 4096 bytes per iteration, retries on EAGAIN/EINTR after a 10ms
// sleep, and exits cleanly on EOF.
func (s *Session) readLoop() {
	defer close(s.outCh)
	buf := make([]byte, 4096)
	var parser queryParser
	for {
		n, err := s.Ptm.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			var forward []byte
			switch s.mode {
			case ModePassthrough:
				forward = parser.scanPassthrough(chunk, s.Ptm, s.winsize)
			default:
				forward = scanSanitized(chunk)
			}
			if len(forward) > 0 {
				s.outCh <- forward
			}
		}
		if err != nil {
			if isRetryable(err) {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return
		}
	}
}

func (s *Session) winsize() (rows, cols int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rows == 0 {
		return 24, s.cols
	}
	return s.rows, s.cols
}

// Write sends p to the PTY master, retrying on EINTR and advancing the
// slice on partial writes, sleeping briefly on EAGAIN (spec §4.1 "Write
// contract").
func (s *Session) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := s.Ptm.Write(p[total:])
		total += n
		if err != nil {
			if isRetryable(err) {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			return total, err
		}
	}
	return total, nil
}

// WriteLine writes text, appending "\n" iff text doesn't already end
// with one (spec §4.1 "Write contract").
func (s *Session) WriteLine(text string) (int, error) {
	if len(text) == 0 || text[len(text)-1] != '\n' {
		text += "\n"
	}
	return s.Write([]byte(text))
}

// Resize applies a new terminal size: ioctl(TIOCSWINSZ) then SIGWINCH to
// the child (spec §4.1 "Winsize contract").
func (s *Session) Resize(rows, cols int) error {
	s.mu.Lock()
	s.rows, s.cols = rows, cols
	s.mu.Unlock()
	if err := pty.Setsize(s.Ptm, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		return err
	}
	if s.cmd.Process != nil {
		return signalWinch(s.cmd.Process.Pid)
	}
	return nil
}

// Close tears the session down per spec §4.1 "Teardown": exit\n, wait
// <=500ms (polling every 50ms), else SIGTERM + wait <=500ms, else
// SIGKILL + reap. The fd is closed last, and exactly once (spec §3
// invariant).
func (s *Session) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		s.teardownChild()
		closeErr = s.Ptm.Close()
	})
	return closeErr
}

func (s *Session) teardownChild() {
	if s.cmd.Process == nil {
		return
	}
	s.WriteLine("exit")
	if s.waitFor(500 * time.Millisecond) {
		return
	}
	_ = signalTerm(s.cmd.Process.Pid)
	if s.waitFor(500 * time.Millisecond) {
		return
	}
	_ = signalKill(s.cmd.Process.Pid)
	s.waitFor(2 * time.Second)
}

// waitFor polls every 50ms up to d for the child to exit. cmd.Wait() is
// launched exactly once for the session's lifetime (calling it twice is
// an error per os/exec) and shared across the exit\n / SIGTERM / SIGKILL
// escalation steps via waitDone.
func (s *Session) waitFor(d time.Duration) bool {
	s.waitOnce.Do(func() {
		s.waitDone = make(chan struct{})
		go func() {
			s.cmd.Wait()
			close(s.waitDone)
		}()
	})
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			select {
			case <-s.waitDone:
				return true
			default:
				return false
			}
		}
		tick := 50 * time.Millisecond
		if remaining < tick {
			tick = remaining
		}
		select {
		case <-s.waitDone:
			return true
		case <-time.After(tick):
		}
	}
}
