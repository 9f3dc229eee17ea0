// Package theme defines the color-palette contract the HUD renders
// against. Palette values themselves are just ANSI SGR fragments; the
// interesting part this package owns is capability detection — whether
// the host terminal can render truecolor, ANSI-256, or must fall back to
// plain text.
package theme

import (
	"os"
	"strings"

	"github.com/muesli/termenv"
)

// Capability describes how much color a terminal can render.
type Capability int

const (
	CapPlain Capability = iota
	CapANSI16
	CapANSI256
	CapTrueColor
)

// Role names a semantic slot a theme fills; the actual escape sequence is
// looked up per-capability so the HUD never hard-codes color codes.
type Role int

const (
	RoleBrand Role = iota
	RoleBorder
	RoleIdle
	RoleListening
	RoleProcessing
	RoleError
	RoleMuted
	RoleMeterLow
	RoleMeterMid
	RoleMeterHigh
	RoleButton
	RoleButtonFocused
)

// Theme maps roles to ANSI SGR prefixes for a given capability level.
type Theme struct {
	Name string
	Cap  Capability
	seqs map[Role]string
}

// Reset is the universal SGR reset sequence.
const Reset = "\033[0m"

// DetectCapability inspects NO_COLOR, COLORTERM, TERM_PROGRAM, and TERM to
// decide how much color the host terminal supports, mirroring the
// teacher's termenv-based probing in overlay.Run (ForegroundColor /
// BackgroundColor / HasDarkBackground) but reduced to a capability tier
// instead of resolved RGB values, since the HUD only needs to pick a
// palette tier.
func DetectCapability(noColorFlag bool) Capability {
	if noColorFlag || os.Getenv("NO_COLOR") != "" {
		return CapPlain
	}
	if v := os.Getenv("COLORTERM"); v == "truecolor" || v == "24bit" {
		return CapTrueColor
	}
	switch os.Getenv("TERM_PROGRAM") {
	case "iTerm.app", "WezTerm", "vscode", "Hyper":
		return CapTrueColor
	}
	term := os.Getenv("TERM")
	if strings.HasSuffix(term, "-256color") {
		return CapANSI256
	}
	if term == "" || term == "dumb" {
		return CapPlain
	}
	// Fall back to termenv's own environment probe for anything else; it
	// already knows about the long tail of terminal emulators.
	switch termenv.EnvColorProfile() {
	case termenv.TrueColor:
		return CapTrueColor
	case termenv.ANSI256:
		return CapANSI256
	case termenv.ANSI:
		return CapANSI16
	default:
		return CapANSI16
	}
}

// New builds a Theme for the named palette at the given capability.
// Palette definitions are data, not logic: unknown names fall back to
// "default" rather than erroring, since a bad --theme flag shouldn't be a
// fatal-setup error.
func New(name string, cap Capability) *Theme {
	t := &Theme{Name: name, Cap: cap}
	t.seqs = palette(name, cap)
	return t
}

// Seq returns the SGR prefix for a role, or "" at CapPlain.
func (t *Theme) Seq(r Role) string {
	if t.Cap == CapPlain {
		return ""
	}
	return t.seqs[r]
}

// Names lists the built-in palette names, used by --theme cycling and the
// ThemePicker overlay.
func Names() []string { return []string{"default", "solarized", "mono"} }

func palette(name string, cap Capability) map[Role]string {
	switch name {
	case "solarized":
		return map[Role]string{
			RoleBrand:         fg(cap, "38;5;37", "33;1"),
			RoleBorder:        fg(cap, "38;5;240", "2"),
			RoleIdle:          fg(cap, "38;5;244", "2"),
			RoleListening:     fg(cap, "38;5;40", "32"),
			RoleProcessing:    fg(cap, "38;5;214", "33"),
			RoleError:         fg(cap, "38;5;160", "31"),
			RoleMuted:         fg(cap, "38;5;240", "2"),
			RoleMeterLow:      fg(cap, "38;5;40", "32"),
			RoleMeterMid:      fg(cap, "38;5;214", "33"),
			RoleMeterHigh:     fg(cap, "38;5;160", "31"),
			RoleButton:        fg(cap, "38;5;33", "36"),
			RoleButtonFocused: fg(cap, "38;5;33;7", "36;7"),
		}
	case "mono":
		return map[Role]string{
			RoleBrand: "1", RoleBorder: "2", RoleIdle: "2", RoleListening: "1",
			RoleProcessing: "1", RoleError: "1;7", RoleMuted: "2",
			RoleMeterLow: "2", RoleMeterMid: "1", RoleMeterHigh: "1;7",
			RoleButton: "4", RoleButtonFocused: "4;7",
		}
	default:
		return map[Role]string{
			RoleBrand:         fg(cap, "38;2;120;170;255", "36;1"),
			RoleBorder:        fg(cap, "38;5;238", "2"),
			RoleIdle:          fg(cap, "38;5;250", "37"),
			RoleListening:     fg(cap, "38;2;90;220;120", "32"),
			RoleProcessing:    fg(cap, "38;2;240;190;80", "33"),
			RoleError:         fg(cap, "38;2;230;90;90", "31"),
			RoleMuted:         fg(cap, "38;5;242", "2"),
			RoleMeterLow:      fg(cap, "38;2;90;220;120", "32"),
			RoleMeterMid:      fg(cap, "38;2;240;190;80", "33"),
			RoleMeterHigh:     fg(cap, "38;2;230;90;90", "31"),
			RoleButton:        fg(cap, "38;5;74", "36"),
			RoleButtonFocused: fg(cap, "38;5;74;7", "36;7"),
		}
	}
}

func fg(cap Capability, trueColorCode, ansiCode string) string {
	if cap == CapTrueColor || cap == CapANSI256 {
		return "\033[" + trueColorCode + "m"
	}
	return "\033[" + ansiCode + "m"
}
