package voice

import (
	"regexp"
	"strings"
)

// nonSpeechMarkers strips STT non-speech bracketed/parenthesized markers
// (spec §4.5 "sanitize_transcript"), case-insensitively. The base set comes
// straight from the spec; [inaudible] and (silence) are added per
// DESIGN.md's Open Question decision, grounded on the equivalent marker
// lists in other_examples/ad6007e0_bikemazzell-skald-go (tokensToFilter)
// and other_examples/cff64482_MrWong99-glyphoxa's whisper wrapper.
var nonSpeechMarkers = regexp.MustCompile(`(?i)\[\s*(silence|blank_audio|noise|inaudible)?\s*\]|\(\s*(music|silence|noise)?\s*\)`)

var whitespaceRun = regexp.MustCompile(`\s+`)

// SanitizeTranscript strips non-speech markers and collapses whitespace
// (spec §4.5).
func SanitizeTranscript(text string) string {
	stripped := nonSpeechMarkers.ReplaceAllString(text, " ")
	collapsed := whitespaceRun.ReplaceAllString(stripped, " ")
	return strings.TrimSpace(collapsed)
}
