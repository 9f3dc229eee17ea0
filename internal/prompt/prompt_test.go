package prompt

import (
	"regexp"
	"testing"
	"time"
)

var base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestExplicitRegexMatch(t *testing.T) {
	tr := New(regexp.MustCompile(`^\$ $`), false)
	tr.Feed([]byte("$ \n"), base)
	seen, ok := tr.LastPromptSeenAt()
	if !ok || !seen.Equal(base) {
		t.Fatalf("expected prompt match at base time, got ok=%v seen=%v", ok, seen)
	}
}

func TestAutoLearnAdoptsIdleLineEndingInPromptChar(t *testing.T) {
	tr := New(nil, true)
	tr.Feed([]byte("myprompt> "), base)
	// No newline yet: line is still the "current line". Simulate idle past
	// timeout with no further output.
	later := base.Add(500 * time.Millisecond)
	tr.CheckIdleLearn(later, 300*time.Millisecond)
	if !tr.hasLearned || tr.learned != "myprompt>" {
		t.Fatalf("expected learned prompt %q, got %q (hasLearned=%v)", "myprompt>", tr.learned, tr.hasLearned)
	}
}

func TestAutoLearnRejectsLineNotEndingInPromptChar(t *testing.T) {
	tr := New(nil, true)
	tr.Feed([]byte("just some text"), base)
	later := base.Add(500 * time.Millisecond)
	tr.CheckIdleLearn(later, 300*time.Millisecond)
	if tr.hasLearned {
		t.Fatalf("should not have learned a prompt from non-prompt-like text")
	}
}

func TestIdleReadyTrueBeforeAnyOutput(t *testing.T) {
	tr := New(nil, false)
	if !tr.IdleReady(base, time.Second) {
		t.Fatalf("expected idle-ready true with no output yet")
	}
}

func TestIdleReadyFalseJustAfterOutput(t *testing.T) {
	tr := New(nil, false)
	tr.Feed([]byte("x"), base)
	if tr.IdleReady(base.Add(10*time.Millisecond), 100*time.Millisecond) {
		t.Fatalf("expected idle-ready false shortly after output")
	}
	if !tr.IdleReady(base.Add(200*time.Millisecond), 100*time.Millisecond) {
		t.Fatalf("expected idle-ready true once timeout elapses")
	}
}

func TestShouldAutoTriggerFirstPromptCase(t *testing.T) {
	tr := New(nil, false)
	if !tr.ShouldAutoTrigger(base, time.Second, time.Time{}, false) {
		t.Fatalf("expected first-prompt case to trigger")
	}
}

func TestShouldAutoTriggerPromptAfterLastTrigger(t *testing.T) {
	tr := New(regexp.MustCompile(`\$ $`), false)
	lastTrigger := base
	tr.Feed([]byte("$ \n"), base.Add(time.Second))
	if !tr.ShouldAutoTrigger(base.Add(2*time.Second), time.Minute, lastTrigger, true) {
		t.Fatalf("expected trigger: prompt seen after last trigger")
	}
}

func TestShouldAutoTriggerFalseWhenPromptBeforeLastTrigger(t *testing.T) {
	tr := New(regexp.MustCompile(`\$ $`), false)
	tr.Feed([]byte("$ \n"), base)
	lastTrigger := base.Add(time.Second)
	// No further output since; idle not yet elapsed.
	if tr.ShouldAutoTrigger(base.Add(1100*time.Millisecond), time.Minute, lastTrigger, true) {
		t.Fatalf("expected no trigger: prompt predates last trigger and idle not elapsed")
	}
}
