// Package prompt tracks the child's current input line from raw PTY bytes,
// detects when it looks like a shell/agent prompt (via an explicit regex or
// auto-learning), and answers the idle/auto-trigger questions the voice
// auto-re-arm logic depends on. Grounded on
// h2/internal/session/agent/shared/outputcollector/output.go's idle/active
// timer bookkeeping, generalized from "has the agent gone quiet" to "is the
// line we're looking at a prompt" per spec §4.8.
package prompt

import (
	"regexp"
	"strings"
	"time"
)

// Tracker holds the current-line buffer and learned-prompt state. Not safe
// for concurrent use; the event loop owns it on its single thread.
type Tracker struct {
	explicitRe *regexp.Regexp
	autoLearn  bool

	line        []byte
	learned     string
	hasLearned  bool

	lastOutputAt    time.Time
	lastPromptSeenAt time.Time
	hasLastOutput    bool
	hasLastPrompt    bool
}

// endChars are the glyphs spec §4.8 accepts for auto-learned prompts.
// Feed keeps only printable ASCII in the line buffer, so of these only
// '>', '$' and '#' can end a learned prompt.
const endChars = ">›❯$#"

// New builds a Tracker. explicitRegex may be nil (no override supplied);
// autoLearn enables the auto-learn-from-idle-line heuristic.
func New(explicitRegex *regexp.Regexp, autoLearn bool) *Tracker {
	return &Tracker{explicitRe: explicitRegex, autoLearn: autoLearn}
}

// Feed processes a chunk of raw PTY bytes, stripping ANSI but preserving
// \n, \r, \t (spec §4.8). now is passed explicitly (rather than read from
// the wall clock inside the package) so tests can drive it deterministically
// and so the event loop's single time.Now() call per tick is authoritative.
func (t *Tracker) Feed(chunk []byte, now time.Time) {
	if len(chunk) > 0 {
		t.lastOutputAt = now
		t.hasLastOutput = true
	}
	stripped := stripANSIKeepControls(chunk)
	for _, b := range stripped {
		switch b {
		case '\n':
			t.finalizeLine(now, "line_complete")
			t.line = t.line[:0]
		case '\r':
			t.line = t.line[:0]
		case '\t':
			t.line = append(t.line, ' ')
		default:
			if b >= 0x20 && b < 0x7F {
				t.line = append(t.line, b)
			}
		}
	}
}

// finalizeLine checks the just-completed current line against the explicit
// regex or learned prompt.
func (t *Tracker) finalizeLine(now time.Time, reason string) {
	line := string(t.line)
	if t.matches(line) {
		t.lastPromptSeenAt = now
		t.hasLastPrompt = true
	}
}

// matches reports whether line is a recognized prompt line, per spec §4.8
// "Matching": explicit regex always takes precedence; failing that, an
// already-learned prompt; auto-learning of a brand-new prompt happens
// separately in CheckIdleLearn since it depends on idle timing, not just
// line content.
func (t *Tracker) matches(line string) bool {
	if t.explicitRe != nil {
		return t.explicitRe.MatchString(line)
	}
	if t.hasLearned {
		return strings.TrimRight(line, " \t") == t.learned
	}
	return false
}

// CheckIdleLearn implements the auto-learn half of spec §4.8's "Matching":
// if auto-learn is allowed and no prompt is yet learned, a line that (1) is
// the latest line seen after idle_timeout of silence, (2) is <=80 chars,
// (3) ends in one of endChars is adopted as the learned prompt. Call this
// once per tick after idle_timeout of PTY silence has been confirmed by the
// caller (the event loop already tracks last-output via IdleReady).
func (t *Tracker) CheckIdleLearn(now time.Time, idleTimeout time.Duration) {
	if t.explicitRe != nil || t.hasLearned || !t.autoLearn {
		return
	}
	if !t.IdleReady(now, idleTimeout) {
		return
	}
	line := strings.TrimRight(string(t.line), " \t")
	if line == "" || len(line) > 80 {
		return
	}
	if !strings.ContainsAny(line[len(line)-1:], endChars) {
		return
	}
	t.learned = line
	t.hasLearned = true
	t.lastPromptSeenAt = now
	t.hasLastPrompt = true
}

// IdleReady reports whether no PTY output has been seen for at least
// timeout (spec §4.8 "idle_ready").
func (t *Tracker) IdleReady(now time.Time, timeout time.Duration) bool {
	if !t.hasLastOutput {
		return true
	}
	return now.Sub(t.lastOutputAt) >= timeout
}

// ShouldAutoTrigger implements spec §4.8's three-way disjunction for
// whether an auto-voice re-arm should fire now.
func (t *Tracker) ShouldAutoTrigger(now time.Time, timeout time.Duration, lastTriggerAt time.Time, hasLastTrigger bool) bool {
	// (a) first-prompt case: nothing has ever come from the child and no
	// trigger has fired yet.
	if !t.hasLastOutput && !hasLastTrigger {
		return true
	}
	// (b) a prompt was detected strictly after the last trigger.
	if t.hasLastPrompt && (!hasLastTrigger || t.lastPromptSeenAt.After(lastTriggerAt)) {
		return true
	}
	// (c) idle timer elapsed and last-output is strictly after the last
	// trigger.
	if t.IdleReady(now, timeout) && t.hasLastOutput && (!hasLastTrigger || t.lastOutputAt.After(lastTriggerAt)) {
		return true
	}
	return false
}

// LastPromptSeenAt returns the last time a line matched, and whether one
// has ever matched.
func (t *Tracker) LastPromptSeenAt() (time.Time, bool) {
	return t.lastPromptSeenAt, t.hasLastPrompt
}

// LastOutputAt returns the last time any PTY bytes were fed, and whether
// any have ever arrived.
func (t *Tracker) LastOutputAt() (time.Time, bool) {
	return t.lastOutputAt, t.hasLastOutput
}

// stripANSIKeepControls removes CSI/OSC/other ESC sequences but passes
// through \n, \r, \t, and printable bytes unchanged — the "VT-state parser"
// of spec §4.8, narrower than internal/pty's query-reply scanner since the
// prompt tracker never needs to answer anything, only to see clean lines.
func stripANSIKeepControls(chunk []byte) []byte {
	out := make([]byte, 0, len(chunk))
	i := 0
	for i < len(chunk) {
		b := chunk[i]
		if b == 0x1B && i+1 < len(chunk) {
			switch chunk[i+1] {
			case '[':
				j := i + 2
				for j < len(chunk) && chunk[j] >= 0x30 && chunk[j] <= 0x3F {
					j++
				}
				for j < len(chunk) && chunk[j] >= 0x20 && chunk[j] <= 0x2F {
					j++
				}
				if j < len(chunk) {
					j++ // consume final byte
				}
				i = j
				continue
			case ']':
				j := i + 2
				for j < len(chunk) {
					if chunk[j] == 0x07 {
						j++
						break
					}
					if chunk[j] == 0x1B && j+1 < len(chunk) && chunk[j+1] == '\\' {
						j += 2
						break
					}
					j++
				}
				i = j
				continue
			default:
				i += 2
				continue
			}
		}
		out = append(out, b)
		i++
	}
	return out
}
