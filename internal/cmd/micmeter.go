package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/vito/midterm"
)

// micMeterScreen owns the full-screen calibration view (spec §4.14). It is
// not an overlay on a child PTY — VoxTerm owns the whole terminal here — so
// rather than the passthrough-plus-reserved-band model internal/writer uses
// for the main session, it drives a midterm.Terminal directly as a
// framebuffer: each tick writes a synthetic "screen" of ANSI text into vt
// (exactly the technique h2/internal/overlay/overlay.go uses for a child's
// real PTY output) and renders the resulting cells to the real terminal.
type micMeterScreen struct {
	vt         *midterm.Terminal
	rows, cols int
}

func newMicMeterScreen(rows, cols int) *micMeterScreen {
	return &micMeterScreen{vt: midterm.NewTerminal(rows, cols), rows: rows, cols: cols}
}

// Render draws one frame: level, threshold, bar, and the VAD's current
// decision at this db reading (spec §4.14 "live dB meter and the VAD's
// current decision").
func (m *micMeterScreen) Render(db, thresholdDb float64) []byte {
	decision := "silence"
	style := "\033[32m"
	if db > thresholdDb {
		decision = "SPEECH"
		style = "\033[1;32m"
	}

	var frame strings.Builder
	frame.WriteString("\033[2J\033[H")
	frame.WriteString("\033[1mvoxterm mic-meter\033[0m  (q or ctrl-c to exit)\r\n")
	fmt.Fprintf(&frame, "threshold: %.1f dB\r\n\r\n", thresholdDb)
	fmt.Fprintf(&frame, "%6.1f dB  %s%s\033[0m  %s\r\n", db, style, meterBar(db, thresholdDb), decision)
	m.vt.Write([]byte(frame.String()))

	return m.renderScreen()
}

// renderScreen walks the virtual terminal's cell content row by row,
// matching h2/internal/overlay/render.go's RenderScreen/RenderLine: position
// to each row, clear it, and replay the formatted regions midterm parsed
// out of the frame just written.
func (m *micMeterScreen) renderScreen() []byte {
	var buf bytes.Buffer
	buf.WriteString("\033[?25l")
	for row := 0; row < m.rows; row++ {
		fmt.Fprintf(&buf, "\033[%d;1H\033[2K", row+1)
		m.renderLine(&buf, row)
	}
	return buf.Bytes()
}

func (m *micMeterScreen) renderLine(buf *bytes.Buffer, row int) {
	if row >= len(m.vt.Content) {
		return
	}
	line := m.vt.Content[row]
	var pos int
	var lastFormat midterm.Format
	for region := range m.vt.Format.Regions(row) {
		f := region.F
		if f != lastFormat {
			buf.WriteString("\033[0m")
			buf.WriteString(f.Render())
			lastFormat = f
		}
		end := pos + region.Size

		if pos < len(line) {
			contentEnd := end
			if contentEnd > len(line) {
				contentEnd = len(line)
			}
			buf.WriteString(string(line[pos:contentEnd]))
		}

		padStart := len(line)
		if padStart < pos {
			padStart = pos
		}
		if padStart < end {
			buf.WriteString(strings.Repeat(" ", end-padStart))
		}

		pos = end
	}
	buf.WriteString("\033[0m")
}
