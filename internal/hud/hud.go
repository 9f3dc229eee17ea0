// Package hud renders the status banner as a pure function of state, theme,
// and width. It performs no I/O; internal/writer calls format_status_banner
// (here Format) and owns when/where the resulting lines hit stdout. Grounded
// on h2/internal/overlay/render.go's RenderBar (mode label/style, status,
// queue indicator, right-align/truncation under width pressure) generalized
// from a single fixed bar to the three-style (Full/Minimal/Hidden) layout of
// spec §4.7.
package hud

import (
	"fmt"
	"strings"

	"github.com/voxterm/voxterm/internal/theme"
)

// Indicator is the animated glyph for the main row, driven by the event
// loop's spinner/pulse tick (spec §4.4 "advance spinner/heartbeat
// animations").
type Indicator int

const (
	IndicatorIdle Indicator = iota
	IndicatorRecording
	IndicatorProcessing
)

// Style selects which banner layout Format renders (spec §4.7).
type Style int

const (
	StyleFull Style = iota
	StyleMinimal
	StyleHidden
)

// ModeTag labels the voice-intent pipeline/mode badges in the main row.
type ModeTag struct {
	PipelineTag string // "native" / "python" / ""
	IntentTag   string // "dictate" / "command" / ""
}

// State is everything the renderer needs; the event loop assembles one each
// tick from the voice manager, prompt tracker, and its own timers.
type State struct {
	Style         Style
	Indicator     Indicator
	SpinnerFrame  int // advances every tick while Processing
	PulseOn       bool
	ModeLabel     string
	ModeTag       ModeTag
	DurationMs    int
	Db            float64
	HasDb         bool
	Message       string
	Preview       string
	QueueDepth    int
	QueuePaused   bool
	LastLatencyMs int
	AutoVoice     bool
	SendAuto      bool
	RightPanel    RightPanelKind
	RecordingOnly bool
	MeterLevels   []float64 // ring of recent normalized [0,1] levels, most-recent last
	Recording     bool
	Processing    bool
}

type RightPanelKind int

const (
	RightPanelOff RightPanelKind = iota
	RightPanelRibbon
	RightPanelDots
	RightPanelHeartbeat
)

// Button is a clickable region recorded by Format and consumed by
// ButtonRegistry (spec §4.2 "Buttons").
type Button struct {
	Key       string // shortcut key this button duplicates, e.g. "^R"
	Label     string
	Row, Col  int // 1-based, relative to the banner's own rows
	Width     int
}

// Result is what Format returns: the rendered lines (each a full row,
// without trailing newline) and any clickable buttons within them.
type Result struct {
	Lines   []string
	Buttons []Button
}

// Height returns how many rows a style occupies at a given recording state,
// matching spec §4.2's "Hidden style is 0 rows while recording, 1-row
// discoverable launcher while idle".
func Height(style Style, recording, processing bool) int {
	switch style {
	case StyleFull:
		return 4
	case StyleMinimal:
		return 1
	case StyleHidden:
		if recording || processing {
			return 0
		}
		return 1
	default:
		return 1
	}
}

// narrowWidth is the width under which Full's shortcuts row drops a pill
// (spec §4.7 "A compact variant drops one pill under COMPACT width").
const narrowWidth = 70

// Format is the pure function format_status_banner(state, theme, width).
func Format(s State, th *theme.Theme, width int) Result {
	if width < 20 {
		return formatSingleLineFallback(s, th, width)
	}
	switch s.Style {
	case StyleFull:
		return formatFull(s, th, width)
	case StyleMinimal:
		return formatMinimal(s, th, width)
	default:
		return formatHidden(s, th, width)
	}
}

func formatSingleLineFallback(s State, th *theme.Theme, width int) Result {
	label := indicatorGlyph(s) + " " + s.ModeLabel
	return Result{Lines: []string{padTrunc(label, width)}}
}

func indicatorGlyph(s State) string {
	switch s.Indicator {
	case IndicatorRecording:
		if s.PulseOn {
			return "●"
		}
		return "○"
	case IndicatorProcessing:
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		return frames[s.SpinnerFrame%len(frames)]
	default:
		return "·"
	}
}

func indicatorRole(s State) theme.Role {
	switch s.Indicator {
	case IndicatorRecording:
		return theme.RoleListening
	case IndicatorProcessing:
		return theme.RoleProcessing
	default:
		return theme.RoleIdle
	}
}

func formatFull(s State, th *theme.Theme, width int) Result {
	border := th.Seq(theme.RoleBorder)
	reset := theme.Reset

	top := border + "╭" + strings.Repeat("─", max(0, width-2)) + "╮" + reset
	top = centerBrand(top, width, th)

	mainBody := formatMainRow(s, th, width-2)
	main := border + "│" + reset + mainBody + border + "│" + reset

	shortcuts, buttons := formatShortcutsRow(s, th, width-2)
	shortcutsLine := border + "│" + reset + shortcuts + border + "│" + reset

	bottom := border + "╰" + strings.Repeat("─", max(0, width-2)) + "╯" + reset

	for i := range buttons {
		buttons[i].Row = 3
	}

	return Result{
		Lines:   []string{top, main, shortcutsLine, bottom},
		Buttons: buttons,
	}
}

func centerBrand(topLine string, width int, th *theme.Theme) string {
	brand := " VoxTerm "
	if len(brand)+4 > width {
		return topLine
	}
	border := th.Seq(theme.RoleBorder)
	reset := theme.Reset
	brandStyled := th.Seq(theme.RoleBrand) + brand + reset
	left := (width - len(brand)) / 2
	return border + "╭" + strings.Repeat("─", max(0, left-1)) + reset +
		brandStyled + border +
		strings.Repeat("─", max(0, width-2-left-len(brand)+1)) + "╮" + reset
}

func formatMainRow(s State, th *theme.Theme, innerWidth int) string {
	ind := th.Seq(indicatorRole(s)) + indicatorGlyph(s) + theme.Reset
	label := s.ModeLabel
	if s.ModeTag.PipelineTag != "" {
		label += " " + s.ModeTag.PipelineTag
	}
	if s.ModeTag.IntentTag != "" {
		label += " " + s.ModeTag.IntentTag
	}

	dur := formatDuration(s.DurationMs)
	db := ""
	if s.HasDb {
		db = fmt.Sprintf("%.0fdB", s.Db)
	}

	msg := s.Message
	if msg == "" {
		msg = s.Preview
	}

	segments := []string{ind + " " + label, dur}
	if db != "" {
		segments = append(segments, db)
	}
	if msg != "" {
		segments = append(segments, msg)
	}

	right := formatRightPanel(s, th)

	body := " " + strings.Join(segments, " │ ")
	avail := innerWidth - visibleLen(right) - 1
	if visibleLen(body) > avail {
		body = truncateVisible(body, max(0, avail-1)) + "…"
	}
	pad := innerWidth - visibleLen(body) - visibleLen(right)
	if pad < 0 {
		pad = 0
	}
	return body + strings.Repeat(" ", pad) + right
}

func formatRightPanel(s State, th *theme.Theme) string {
	switch s.RightPanel {
	case RightPanelRibbon:
		return renderRibbon(s, th)
	case RightPanelDots:
		return renderDots(s, th)
	case RightPanelHeartbeat:
		return renderHeartbeat(s, th)
	default:
		return ""
	}
}

var ribbonBlocks = []rune("▁▂▃▄▅▆▇█")

func renderRibbon(s State, th *theme.Theme) string {
	if s.RecordingOnly && !s.Recording {
		return ""
	}
	n := 8
	levels := s.MeterLevels
	if len(levels) > n {
		levels = levels[len(levels)-n:]
	}
	var b strings.Builder
	for _, lvl := range levels {
		role := meterRole(lvl)
		idx := int(lvl * float64(len(ribbonBlocks)-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(ribbonBlocks) {
			idx = len(ribbonBlocks) - 1
		}
		b.WriteString(th.Seq(role))
		b.WriteRune(ribbonBlocks[idx])
	}
	b.WriteString(theme.Reset)
	return b.String()
}

func renderDots(s State, th *theme.Theme) string {
	if s.RecordingOnly && !s.Recording {
		return ""
	}
	normalized := 0.0
	if s.HasDb {
		normalized = normalizeDb(s.Db)
	}
	filled := int(normalized*5 + 0.5)
	var b strings.Builder
	role := meterRole(normalized)
	b.WriteString(th.Seq(role))
	for i := 0; i < 5; i++ {
		if i < filled {
			b.WriteRune('●')
		} else {
			b.WriteRune('○')
		}
	}
	b.WriteString(theme.Reset)
	return b.String()
}

func renderHeartbeat(s State, th *theme.Theme) string {
	if s.RecordingOnly && !s.Recording {
		return ""
	}
	glyph := "♡"
	if s.PulseOn {
		glyph = "♥"
	}
	return th.Seq(theme.RoleListening) + glyph + theme.Reset
}

func meterRole(normalized float64) theme.Role {
	switch {
	case normalized >= 0.75:
		return theme.RoleMeterHigh
	case normalized >= 0.4:
		return theme.RoleMeterMid
	default:
		return theme.RoleMeterLow
	}
}

// normalizeDb maps the vad threshold range [-80, 0] to [0, 1].
func normalizeDb(db float64) float64 {
	n := (db + 80) / 80
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

type pill struct {
	key   string
	label string
}

func formatShortcutsRow(s State, th *theme.Theme, innerWidth int) (string, []Button) {
	pills := []pill{
		{"^R", "rec"},
		{"^V", "auto"},
		{"^T", "send"},
		{"^O", "set"},
		{"^U", "hud"},
		{"?", "help"},
		{"^Y", "theme"},
	}
	if innerWidth < narrowWidth {
		pills = pills[:len(pills)-1]
	}

	var body strings.Builder
	var buttons []Button
	col := 2
	body.WriteString(" ")
	for i, p := range pills {
		if i > 0 {
			body.WriteString(th.Seq(theme.RoleMuted) + " · " + theme.Reset)
			col += 3
		}
		label := "[" + p.label + "]"
		body.WriteString(th.Seq(theme.RoleButton) + label + theme.Reset)
		buttons = append(buttons, Button{Key: p.key, Label: p.label, Col: col, Width: len(label)})
		col += len(label)
	}

	if s.QueueDepth > 0 {
		badge := fmt.Sprintf(" Q:%d", s.QueueDepth)
		if s.QueuePaused {
			badge += "⏸"
		}
		body.WriteString(th.Seq(theme.RoleMuted) + badge + theme.Reset)
		col += len(badge)
	}
	if s.LastLatencyMs > 0 {
		role := latencyRole(s.LastLatencyMs)
		badge := fmt.Sprintf(" %dms", s.LastLatencyMs)
		body.WriteString(th.Seq(role) + badge + theme.Reset)
		col += len(badge)
	}

	rendered := body.String()
	pad := innerWidth - visibleLen(rendered)
	if pad > 0 {
		rendered += strings.Repeat(" ", pad)
	}
	return rendered, buttons
}

func latencyRole(ms int) theme.Role {
	switch {
	case ms < 300:
		return theme.RoleListening
	case ms < 500:
		return theme.RoleProcessing
	default:
		return theme.RoleError
	}
}

func formatMinimal(s State, th *theme.Theme, width int) Result {
	ind := th.Seq(indicatorRole(s)) + indicatorGlyph(s) + theme.Reset
	label := s.ModeLabel
	db := ""
	if s.HasDb {
		db = fmt.Sprintf(" %.0fdB", s.Db)
	}
	msg := s.Message
	left := ind + " " + label + db
	if msg != "" {
		left += " " + msg
	}

	back := "[back]"
	avail := width - visibleLen(left) - 1
	var buttons []Button
	line := left
	if avail >= len(back) {
		pad := width - visibleLen(left) - len(back)
		line = left + strings.Repeat(" ", max(0, pad)) + th.Seq(theme.RoleButton) + back + theme.Reset
		buttons = append(buttons, Button{Key: "^U", Label: "back", Row: 1, Col: width - len(back) + 1, Width: len(back)})
	} else if visibleLen(left) > width {
		line = truncateVisible(left, width)
	}
	return Result{Lines: []string{line}, Buttons: buttons}
}

func formatHidden(s State, th *theme.Theme, width int) Result {
	if s.Recording || s.Processing {
		// Height(StyleHidden, true, ...) reserves 0 rows for this case; the
		// child owns the full terminal height, so there is no row to draw.
		return Result{}
	}
	label := th.Seq(theme.RoleMuted) + "VoxTerm · Ctrl+U" + theme.Reset
	open := "[open]"
	pad := width - visibleLen(label) - len(open)
	line := label
	var buttons []Button
	if pad >= 0 {
		line += strings.Repeat(" ", pad) + th.Seq(theme.RoleButton) + open + theme.Reset
		buttons = append(buttons, Button{Key: "^U", Label: "open", Row: 1, Col: width - len(open) + 1, Width: len(open)})
	}
	return Result{Lines: []string{line}, Buttons: buttons}
}

func formatDuration(ms int) string {
	totalSec := ms / 1000
	return fmt.Sprintf("%d:%02d", totalSec/60, totalSec%60)
}

// visibleLen counts runes, skipping ANSI SGR escape sequences, so padding
// calculations aren't thrown off by color codes.
func visibleLen(s string) int {
	n := 0
	inEsc := false
	for _, r := range s {
		if inEsc {
			if r == 'm' {
				inEsc = false
			}
			continue
		}
		if r == 0x1B {
			inEsc = true
			continue
		}
		n++
	}
	return n
}

func truncateVisible(s string, n int) string {
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	count := 0
	inEsc := false
	for _, r := range s {
		if inEsc {
			b.WriteRune(r)
			if r == 'm' {
				inEsc = false
			}
			continue
		}
		if r == 0x1B {
			inEsc = true
			b.WriteRune(r)
			continue
		}
		if count >= n {
			continue
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}

func padTrunc(s string, width int) string {
	l := visibleLen(s)
	if l > width {
		return truncateVisible(s, width)
	}
	return s + strings.Repeat(" ", width-l)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
