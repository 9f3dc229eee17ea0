package theme

import "testing"

func TestDetectCapabilityNoColorFlagWins(t *testing.T) {
	t.Setenv("COLORTERM", "truecolor")
	if got := DetectCapability(true); got != CapPlain {
		t.Fatalf("got %v", got)
	}
}

func TestDetectCapabilityNoColorEnvWins(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if got := DetectCapability(false); got != CapPlain {
		t.Fatalf("got %v", got)
	}
}

func TestDetectCapabilityTrueColorFromColorterm(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("COLORTERM", "truecolor")
	if got := DetectCapability(false); got != CapTrueColor {
		t.Fatalf("got %v", got)
	}
}

func TestDetectCapability256FromTermSuffix(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("COLORTERM", "")
	t.Setenv("TERM_PROGRAM", "")
	t.Setenv("TERM", "xterm-256color")
	if got := DetectCapability(false); got != CapANSI256 {
		t.Fatalf("got %v", got)
	}
}

func TestDetectCapabilityDumbTermIsPlain(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("COLORTERM", "")
	t.Setenv("TERM_PROGRAM", "")
	t.Setenv("TERM", "dumb")
	if got := DetectCapability(false); got != CapPlain {
		t.Fatalf("got %v", got)
	}
}

func TestSeqIsEmptyAtPlainCapability(t *testing.T) {
	th := New("default", CapPlain)
	if got := th.Seq(RoleError); got != "" {
		t.Fatalf("expected empty sequence at CapPlain, got %q", got)
	}
}

func TestSeqNonEmptyAboveCapPlain(t *testing.T) {
	th := New("default", CapANSI256)
	if got := th.Seq(RoleError); got == "" {
		t.Fatalf("expected non-empty sequence at CapANSI256")
	}
}

func TestNewUnknownPaletteFallsBackToDefault(t *testing.T) {
	known := New("default", CapTrueColor)
	unknown := New("does-not-exist", CapTrueColor)
	if unknown.Seq(RoleBrand) != known.Seq(RoleBrand) {
		t.Fatalf("expected unknown palette to fall back to default's sequences")
	}
}

func TestNamesListsBuiltins(t *testing.T) {
	names := Names()
	if len(names) != 3 {
		t.Fatalf("got %v", names)
	}
}
