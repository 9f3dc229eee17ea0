// Package macros loads and matches voice macros: an ordered list of
// (pattern, expansion) pairs applied to a normalized transcript (spec §3
// "Voice macros"). There is no voice-intent-mode setting; the event loop
// applies macros to every transcript.
package macros

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Macro is one pattern/expansion pair. Patterns match against the
// normalized (lowercased, whitespace-collapsed) transcript.
type Macro struct {
	Pattern    string `toml:"pattern"`
	Expansion  string `toml:"expansion"`
	WholeMatch bool   `toml:"whole_match"`
}

type fileFormat struct {
	Macro []Macro `toml:"macro"`
}

// Set is an ordered list of macros, matched first-to-last.
type Set struct {
	macros []Macro
}

// DefaultPath returns ".voxterm/voice_macros.toml" relative to dir.
func DefaultPath(workingDir string) string {
	return filepath.Join(workingDir, ".voxterm", "voice_macros.toml")
}

// Load reads the macros file at path. A missing file is not an error —
// it yields an empty Set, matching the teacher's config.LoadFrom
// "not-exist is empty config" convention.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Set{}, nil
		}
		return nil, err
	}
	var ff fileFormat
	if err := toml.Unmarshal(data, &ff); err != nil {
		return nil, err
	}
	return &Set{macros: ff.Macro}, nil
}

// Normalize lowercases and collapses whitespace, the normalization
// applied before matching.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Match returns the expansion for the first macro whose pattern matches
// the normalized transcript, and true if one matched. WholeMatch macros
// require an exact match; others match as a substring.
func (s *Set) Match(transcript string) (string, bool) {
	if s == nil {
		return "", false
	}
	norm := Normalize(transcript)
	for _, m := range s.macros {
		pat := Normalize(m.Pattern)
		if pat == "" {
			continue
		}
		if m.WholeMatch {
			if norm == pat {
				return m.Expansion, true
			}
			continue
		}
		if strings.Contains(norm, pat) {
			return m.Expansion, true
		}
	}
	return "", false
}

// Len reports how many macros are loaded.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.macros)
}
