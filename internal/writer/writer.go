// Package writer runs the dedicated stdout-owning thread: it writes raw PTY
// bytes verbatim, and separately owns the HUD band at the bottom of the
// screen, redrawing it on a debounce timer rather than on every byte.
// Grounded on h2/internal/overlay/render.go's RenderBar/RenderScreen (save
// cursor, position, clear line, write, restore) and overlay.go's TickStatus
// goroutine, generalized from "redraw on a 1s ticker" to the idle/max-age
// debounce policy of spec §4.2.
package writer

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/voxterm/voxterm/internal/hud"
	"github.com/voxterm/voxterm/internal/theme"
)

// idleDebounce and maxDrawAge implement spec §4.2's redraw policy: redraw
// after 50ms of PTY idle, or 500ms after the first change since the last
// draw, whichever comes first; never immediately on a message.
const (
	idleDebounce = 50 * time.Millisecond
	maxDrawAge   = 500 * time.Millisecond
)

// Message is the writer's mailbox item (spec §4.2 "Messages").
type Message struct {
	Kind         MessageKind
	Bytes        []byte
	State        hud.State
	Text         string
	OverlayLines []string
	BellCount    int
	Rows, Cols   int
	Theme        *theme.Theme
}

type MessageKind int

const (
	MsgPtyOutput MessageKind = iota
	MsgStatus
	MsgShowOverlay
	MsgClearOverlay
	MsgClearStatus
	MsgBell
	MsgResize
	MsgSetTheme
	MsgEnableMouse
	MsgDisableMouse
	MsgSetState
	MsgShutdown
)

// ButtonRegistry is the mutex-guarded map the writer populates on redraw and
// the event loop reads on mouse click (spec §5 "Shared-resource policy").
type ButtonRegistry struct {
	mu      sync.Mutex
	buttons []hud.Button
}

func NewButtonRegistry() *ButtonRegistry { return &ButtonRegistry{} }

func (r *ButtonRegistry) Set(buttons []hud.Button) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buttons = buttons
}

// HitTest returns the button whose region contains (row, col), or false.
func (r *ButtonRegistry) HitTest(row, col int) (hud.Button, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.buttons {
		if b.Row == row && col >= b.Col && col < b.Col+b.Width {
			return b, true
		}
	}
	return hud.Button{}, false
}

// Writer owns out (normally os.Stdout) and processes Messages sent on In.
type Writer struct {
	out      io.Writer
	In       chan Message
	buttons  *ButtonRegistry
	done     chan struct{}

	rows, cols int
	overlay    []string // non-HUD panel content, e.g. --mic-meter is separate
	state      hud.State
	th         *theme.Theme
	dirty      bool
	lastDraw   time.Time
	mouseOn    bool
	bandHeight int
}

// New builds a Writer; channelCapacity bounds In per spec §3 "bounded
// channel" conventions used throughout the loop/writer/input trio.
func New(out io.Writer, rows, cols int, th *theme.Theme, buttons *ButtonRegistry, channelCapacity int) *Writer {
	return &Writer{
		out:     out,
		In:      make(chan Message, channelCapacity),
		buttons: buttons,
		done:    make(chan struct{}),
		rows:    rows,
		cols:    cols,
		th:      th,
	}
}

// Run is the writer thread's main loop; call it in its own goroutine. It
// returns when it processes a Shutdown message.
func (w *Writer) Run() {
	defer close(w.done)
	idleTimer := time.NewTimer(idleDebounce)
	if !idleTimer.Stop() {
		<-idleTimer.C
	}
	maxTimer := time.NewTimer(maxDrawAge)
	if !maxTimer.Stop() {
		<-maxTimer.C
	}

	for {
		select {
		case msg, ok := <-w.In:
			if !ok {
				return
			}
			wasDirty := w.dirty
			if w.handle(msg) {
				w.teardown()
				return
			}
			if w.dirty {
				resetTimer(idleTimer, idleDebounce)
				if !wasDirty {
					resetTimer(maxTimer, maxDrawAge)
				}
			}
		case <-idleTimer.C:
			if w.dirty {
				w.redraw()
			}
			stopTimer(maxTimer)
		case <-maxTimer.C:
			if w.dirty {
				w.redraw()
			}
			stopTimer(idleTimer)
		}
	}
}

// Done reports the writer has exited after Shutdown.
func (w *Writer) Done() <-chan struct{} { return w.done }

func resetTimer(t *time.Timer, d time.Duration) {
	stopTimer(t)
	t.Reset(d)
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

// handle applies one message's effect and returns true iff the writer
// should shut down.
func (w *Writer) handle(msg Message) bool {
	switch msg.Kind {
	case MsgPtyOutput:
		w.out.Write(msg.Bytes)
		w.dirty = true
	case MsgStatus:
		w.state.Message = msg.Text
		w.dirty = true
	case MsgShowOverlay:
		w.overlay = msg.OverlayLines
		w.dirty = true
	case MsgClearOverlay:
		w.overlay = nil
		w.dirty = true
	case MsgClearStatus:
		w.state = hud.State{}
		w.dirty = true
	case MsgBell:
		w.out.Write([]byte(strings.Repeat("\a", msg.BellCount)))
	case MsgResize:
		w.rows, w.cols = msg.Rows, msg.Cols
		w.dirty = true
	case MsgSetTheme:
		w.th = msg.Theme
		w.dirty = true
	case MsgEnableMouse:
		w.mouseOn = true
		w.out.Write([]byte("\033[?1000h\033[?1006h"))
	case MsgDisableMouse:
		w.mouseOn = false
		w.out.Write([]byte("\033[?1000l\033[?1006l"))
	case MsgSetState:
		w.state = msg.State
		w.dirty = true
	case MsgShutdown:
		return true
	}
	return false
}

func (w *Writer) teardown() {
	if w.mouseOn {
		w.out.Write([]byte("\033[?1000l\033[?1006l"))
	}
	w.clearBand()
}

// redraw draws the HUD band at the bottom of the screen, per spec §4.2
// "Drawing primitives": save cursor, position to the band's first row,
// clear+write each line, advance, restore cursor. Never touches rows above
// its own band.
func (w *Writer) redraw() {
	res := hud.Format(w.state, w.th, w.cols)
	if len(w.overlay) > 0 {
		// ShowOverlay takes over the band entirely while active (spec §4.2
		// "multi-row panel at the bottom"); the HUD resumes once
		// ClearOverlay arrives.
		res = hud.Result{Lines: w.overlay}
	}
	w.bandHeight = len(res.Lines)
	startRow := w.rows - w.bandHeight + 1

	if w.buttons != nil {
		// Button.Row is relative to the band (1-based); translate to the
		// absolute screen row the event loop's mouse-click handler sees.
		absolute := make([]hud.Button, len(res.Buttons))
		for i, b := range res.Buttons {
			absolute[i] = b
			if b.Row == 0 {
				absolute[i].Row = startRow
			} else {
				absolute[i].Row = startRow + b.Row - 1
			}
		}
		w.buttons.Set(absolute)
	}

	var b strings.Builder
	b.WriteString("\0337\033[s") // ESC 7 + ESC [ s: save cursor (both forms for wide terminal compat)
	for i, line := range res.Lines {
		row := startRow + i
		b.WriteString("\033[")
		b.WriteString(itoa(row))
		b.WriteString(";1H\033[2K")
		b.WriteString(line)
	}
	b.WriteString("\0338\033[u") // ESC 8 + ESC [ u: restore cursor
	w.out.Write([]byte(b.String()))

	w.dirty = false
	w.lastDraw = time.Now()
}

func (w *Writer) clearBand() {
	if w.bandHeight == 0 {
		return
	}
	var b strings.Builder
	b.WriteString("\0337\033[s")
	startRow := w.rows - w.bandHeight + 1
	for i := 0; i < w.bandHeight; i++ {
		b.WriteString("\033[")
		b.WriteString(itoa(startRow + i))
		b.WriteString(";1H\033[2K")
	}
	b.WriteString("\0338\033[u")
	w.out.Write([]byte(b.String()))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
