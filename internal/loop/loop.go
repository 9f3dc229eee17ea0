// Package loop runs VoxTerm's single-threaded event loop: it multiplexes
// stdin input, PTY output, voice-manager messages, and a ~50ms timer tick,
// dispatches hot-keys and mouse clicks to the same actions, drives the
// prompt tracker's auto-voice re-arm, and owns shutdown sequencing.
// Grounded on h2/internal/overlay/overlay.go's Run (raw-mode setup via
// term.MakeRaw/Restore, SIGWINCH resize watcher, goroutines for
// input-read/output-pipe feeding a single coordinating owner) generalized
// from "feed a midterm virtual terminal" to "multiplex five event sources
// into the dispatch switch of spec §4.4".
package loop

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/voxterm/voxterm/internal/applog"
	"github.com/voxterm/voxterm/internal/config"
	"github.com/voxterm/voxterm/internal/hud"
	"github.com/voxterm/voxterm/internal/input"
	"github.com/voxterm/voxterm/internal/macros"
	"github.com/voxterm/voxterm/internal/prompt"
	"github.com/voxterm/voxterm/internal/pty"
	"github.com/voxterm/voxterm/internal/theme"
	"github.com/voxterm/voxterm/internal/transcript"
	"github.com/voxterm/voxterm/internal/voice"
	"github.com/voxterm/voxterm/internal/writer"
)

// tick is the event loop's ~50ms select interval (spec §4.4).
const tick = 50 * time.Millisecond

// InitialReservedRows returns how many rows the HUD occupies for the given
// configured style before the loop has started (idle, not-yet-recording),
// so the caller can size the child PTY before spawning it (spec §3 "child's
// reported window height = terminal height − HUD height (0/1/4 rows for
// Hidden/Minimal/Full)").
func InitialReservedRows(style config.HUDStyle) int {
	return hud.Height(styleFor(style), false, false)
}

// Stats summarizes one session for the exit banner (spec §4.4 "prints
// session stats").
type Stats struct {
	Captures    int
	Delivered   int
	NativeCount int
	PythonCount int
}

// Loop owns every subsystem for one VoxTerm run.
type Loop struct {
	cfg     config.Config
	session *pty.Session
	stdin   io.Reader

	wr      *writer.Writer
	buttons *writer.ButtonRegistry

	voiceMgr *voice.Manager
	prompt   *prompt.Tracker
	pending  transcript.Queue
	macros   *macros.Set
	log      *applog.Logger

	th        *theme.Theme
	themeIdx  int
	hudStyle  config.HUDStyle
	autoVoice bool
	sendMode  config.SendMode
	mouseOn   bool

	recording      bool
	recordingStart time.Time
	processing     bool
	spinnerFrame   int
	pulseOn        bool
	statusMsg      string
	statusUntil    time.Time
	preview        string
	lastPipeline   string
	lastLatencyMs  int

	lastEnterAt      time.Time
	hasLastEnter     bool
	lastAutoTrigger  time.Time
	hasLastAutoTrig  bool

	stats Stats

	restoreFd int
	restore   *term.State

	rows, cols       int
	lastReservedRows int
}

// New wires together one run's subsystems. session must already be
// spawned (ModePassthrough). stdin/stdout are normally os.Stdin/os.Stdout.
func New(cfg config.Config, session *pty.Session, stdin io.Reader, stdout io.Writer, rows, cols int, macroSet *macros.Set, log *applog.Logger) *Loop {
	th := theme.New(cfg.Theme, theme.DetectCapability(cfg.NoColor))
	buttons := writer.NewButtonRegistry()
	wr := writer.New(stdout, rows, cols, th, buttons, cfg.ChannelCapacity)

	l := &Loop{
		cfg:              cfg,
		session:          session,
		stdin:            stdin,
		wr:               wr,
		buttons:          buttons,
		voiceMgr:         voice.NewManager(cfg),
		prompt:           buildPromptTracker(cfg),
		macros:           macroSet,
		log:              log,
		th:               th,
		hudStyle:         cfg.HUD,
		autoVoice:        cfg.AutoVoice,
		sendMode:         cfg.VoiceSendMode,
		rows:             rows,
		cols:             cols,
		lastReservedRows: InitialReservedRows(cfg.HUD),
	}
	return l
}

// Run enters raw mode, starts the writer/input goroutines, and processes
// events until Exit or stdin/PTY closes. It restores terminal state and
// prints session stats before returning.
func (l *Loop) Run() Stats {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		if restored, err := term.MakeRaw(fd); err == nil {
			l.restoreFd = fd
			l.restore = restored
			defer l.restoreTerminal()
		}
	}

	go l.wr.Run()

	inputCh := make(chan input.Event, 256)
	go input.Run(l.stdin, inputCh)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGWINCH)
	defer signal.Stop(sigCh)
	go l.watchResize(sigCh)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	ptyOut := l.session.Output()

loop:
	for {
		select {
		case ev, ok := <-inputCh:
			if !ok {
				break loop
			}
			if l.handleInput(ev) {
				break loop
			}
		case chunk, ok := <-ptyOut:
			if !ok {
				break loop
			}
			l.wr.In <- writer.Message{Kind: writer.MsgPtyOutput, Bytes: chunk}
			l.prompt.Feed(chunk, time.Now())
		case <-ticker.C:
			l.onTick()
		}
	}

	l.shutdown()
	return l.stats
}

// buildPromptTracker resolves the explicit regex (if any) per spec §4.8;
// config validation does not check --prompt-regex, so an invalid pattern
// leaves the tracker without an explicit regex (see compilePromptRegex).
func buildPromptTracker(cfg config.Config) *prompt.Tracker {
	re := compilePromptRegex(cfg.PromptRegex)
	return prompt.New(re, re == nil)
}

// compilePromptRegex compiles cfg.PromptRegex, if set. config.Validate
// does not check the pattern; an invalid one is treated as unset rather
// than fatal.
func compilePromptRegex(pattern string) *regexp.Regexp {
	if pattern == "" {
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	return re
}

func (l *Loop) restoreTerminal() {
	if l.restore != nil {
		term.Restore(l.restoreFd, l.restore)
	}
}

func (l *Loop) watchResize(sigCh <-chan os.Signal) {
	for range sigCh {
		fd := int(os.Stdin.Fd())
		cols, rows, err := term.GetSize(fd)
		if err != nil {
			continue
		}
		l.rows, l.cols = rows, cols
		l.resizeChildForHUD()
		l.wr.In <- writer.Message{Kind: writer.MsgResize, Rows: rows, Cols: cols}
	}
}

// currentReservedRows is the HUD's live row count for the loop's present
// style and recording/processing state (spec §3's 0/1/4-row contract).
func (l *Loop) currentReservedRows() int {
	return hud.Height(styleFor(l.hudStyle), l.recording, l.processing)
}

// resizeChildForHUD re-sizes the child PTY whenever the HUD's reserved row
// count has changed since the last resize, so a style cycle (^U) or a
// recording/processing transition under Hidden never leaves the child
// window undersized or short rows dead between the child and the banner.
func (l *Loop) resizeChildForHUD() {
	reserved := l.currentReservedRows()
	if reserved == l.lastReservedRows {
		return
	}
	l.lastReservedRows = reserved
	childRows := l.rows - reserved
	if childRows < 1 {
		childRows = 1
	}
	l.session.Resize(childRows, l.cols)
}

// handleInput dispatches one decoded input.Event per spec §4.4's "Actions
// the loop may take on input". Returns true iff the loop should exit.
func (l *Loop) handleInput(ev input.Event) bool {
	switch ev.Kind {
	case input.EventBytes:
		l.session.Write(ev.Bytes)
	case input.EventEnter:
		l.handleEnter()
	case input.EventHotKey:
		return l.handleHotKey(ev.HotKey)
	case input.EventMouse:
		if ev.Mouse.Press {
			if b, ok := l.buttons.HitTest(ev.Mouse.Y, ev.Mouse.X); ok {
				return l.dispatchAction(b.Key)
			}
		}
	}
	return false
}

// handleEnter implements spec §4.4's EnterKey rule: try to flush a
// prompt-settled pending transcript first; otherwise forward \r verbatim.
func (l *Loop) handleEnter() {
	if l.tryFlushPending() {
		return
	}
	l.session.Write([]byte("\r"))
	l.lastEnterAt = time.Now()
	l.hasLastEnter = true
}

func (l *Loop) handleHotKey(hk input.HotKey) bool {
	switch hk {
	case input.HotKeyExit:
		return true
	case input.HotKeyVoiceTrigger:
		l.startCapture("manual")
	case input.HotKeyToggleAuto:
		l.autoVoice = !l.autoVoice
		l.setStatus(fmt.Sprintf("auto-voice %s", onOff(l.autoVoice)))
	case input.HotKeyToggleSendMode:
		if l.sendMode == config.SendAuto {
			l.sendMode = config.SendInsert
		} else {
			l.sendMode = config.SendAuto
		}
		l.setStatus(fmt.Sprintf("send mode: %s", l.sendMode))
	case input.HotKeySensitivityUp:
		v := l.voiceMgr.AdjustSensitivity(5)
		l.setStatus(fmt.Sprintf("sensitivity %.0fdB", v))
	case input.HotKeySensitivityDn:
		v := l.voiceMgr.AdjustSensitivity(-5)
		l.setStatus(fmt.Sprintf("sensitivity %.0fdB", v))
	case input.HotKeyToggleHUD:
		l.cycleHUDStyle()
	case input.HotKeyThemePicker:
		l.cycleTheme()
	case input.HotKeySettings:
		l.toggleMouse()
	case input.HotKeyHelp:
		l.showHelp()
	}
	return false
}

// dispatchAction maps a clicked button's Key to the same action its
// keyboard shortcut performs (spec §4.4 "MouseClick ... dispatches the
// same action as its keyboard shortcut").
func (l *Loop) dispatchAction(key string) bool {
	switch key {
	case "^Q":
		return true
	case "^R":
		l.startCapture("manual")
	case "^V":
		return l.handleHotKey(input.HotKeyToggleAuto)
	case "^T":
		return l.handleHotKey(input.HotKeyToggleSendMode)
	case "^U":
		return l.handleHotKey(input.HotKeyToggleHUD)
	case "^O":
		return l.handleHotKey(input.HotKeySettings)
	case "^Y":
		return l.handleHotKey(input.HotKeyThemePicker)
	case "?":
		return l.handleHotKey(input.HotKeyHelp)
	}
	return false
}

func (l *Loop) cycleHUDStyle() {
	switch l.hudStyle {
	case config.HUDFull:
		l.hudStyle = config.HUDMinimal
	case config.HUDMinimal:
		l.hudStyle = config.HUDHidden
	default:
		l.hudStyle = config.HUDFull
	}
	l.resizeChildForHUD()
}

func (l *Loop) cycleTheme() {
	names := theme.Names()
	l.themeIdx = (l.themeIdx + 1) % len(names)
	l.th = theme.New(names[l.themeIdx], l.th.Cap)
	l.wr.In <- writer.Message{Kind: writer.MsgSetTheme, Theme: l.th}
}

func (l *Loop) toggleMouse() {
	l.mouseOn = !l.mouseOn
	if l.mouseOn {
		l.wr.In <- writer.Message{Kind: writer.MsgEnableMouse}
	} else {
		l.wr.In <- writer.Message{Kind: writer.MsgDisableMouse}
	}
}

func (l *Loop) showHelp() {
	l.wr.In <- writer.Message{Kind: writer.MsgShowOverlay, OverlayLines: []string{
		"^R record  ^V auto  ^T send-mode  ^U hud  ^O mouse  ^Y theme  ^Q quit",
	}}
}

func (l *Loop) setStatus(msg string) {
	l.statusMsg = msg
	l.statusUntil = time.Now().Add(2 * time.Second)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// startCapture begins a voice job if the manager is idle (spec §4.5
// start_capture).
func (l *Loop) startCapture(trigger string) {
	if !l.voiceMgr.IsIdle() {
		return
	}
	if _, ok := l.voiceMgr.StartCapture(trigger); ok {
		l.recording = true
		l.recordingStart = time.Now()
		l.stats.Captures++
	}
}

// onTick implements spec §4.4's per-tick duties.
func (l *Loop) onTick() {
	l.spinnerFrame++
	l.pulseOn = !l.pulseOn
	if !l.statusUntil.IsZero() && time.Now().After(l.statusUntil) {
		l.statusMsg = ""
		l.statusUntil = time.Time{}
	}

	l.prompt.CheckIdleLearn(time.Now(), time.Duration(l.cfg.TranscriptIdleMs)*time.Millisecond)
	l.pollVoice()
	if !l.voiceMgr.IsIdle() && l.voiceMgr.IsProcessing() {
		l.recording = false
		l.processing = true
	}
	l.checkAutoVoiceRearm()
	l.flushPendingIfReady()
	l.resizeChildForHUD()
	l.redrawHUD()
}

// pollVoice drains at most one voice-manager message per tick and applies
// spec §4.9's Transcript/Empty/Error flow.
func (l *Loop) pollVoice() {
	res, ok := l.voiceMgr.PollMessage()
	if !ok {
		return
	}
	l.recording = false
	l.processing = false

	switch res.Kind {
	case voice.ResultTranscript:
		l.onTranscript(res)
	case voice.ResultEmpty:
		l.rearmAfterEmptyOrError()
	case voice.ResultError:
		if l.log != nil {
			l.log.Errorf("voice_error", "%v", res.Err)
		}
		l.setStatus("voice error: " + errString(res.Err))
		l.rearmAfterEmptyOrError()
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (l *Loop) onTranscript(res voice.Result) {
	if !l.recordingStart.IsZero() {
		l.lastLatencyMs = int(time.Since(l.recordingStart).Milliseconds())
	}
	l.lastPipeline = sourceLabel(res.Source)
	l.preview = truncatePreview(res.Text, 60)

	text := res.Text
	if l.macros != nil {
		if expansion, matched := l.macros.Match(text); matched {
			text = expansion
		}
	}

	if l.promptReady() && l.pending.Len() == 0 {
		l.deliver(text)
	} else {
		l.pending.Push(transcript.Pending{Text: text, Source: mapSource(res.Source)})
	}

	switch res.Source {
	case voice.SourceNative:
		l.stats.NativeCount++
	case voice.SourcePython:
		l.stats.PythonCount++
	}

	if l.autoVoice && l.sendMode == config.SendInsert && l.pending.Len() == 0 && l.voiceMgr.IsIdle() {
		l.startCapture("auto")
	}
}

func sourceLabel(s voice.Source) string {
	if s == voice.SourcePython {
		return "python"
	}
	return "native"
}

func mapSource(s voice.Source) transcript.Source {
	if s == voice.SourcePython {
		return transcript.SourcePython
	}
	return transcript.SourceNative
}

// rearmAfterEmptyOrError implements spec §4.9 step 2: treat as a re-arm by
// updating the prompt tracker's last-output timestamp so the next idle
// window triggers auto-voice again.
func (l *Loop) rearmAfterEmptyOrError() {
	// A lone NUL byte counts as output for the timestamp but is never
	// appended to the tracker's current line.
	l.prompt.Feed([]byte{0}, time.Now())
}

// promptReady implements spec §4.9's delivery gate.
func (l *Loop) promptReady() bool {
	promptAt, hasPrompt := l.prompt.LastPromptSeenAt()
	promptAfterEnter := hasPrompt && (!l.hasLastEnter || promptAt.After(l.lastEnterAt))
	idleReady := l.prompt.IdleReady(time.Now(), time.Duration(l.cfg.TranscriptIdleMs)*time.Millisecond)
	return transcript.PromptReady(promptAfterEnter, idleReady)
}

func (l *Loop) deliver(text string) {
	d := transcript.Deliver(text, l.sendMode)
	if d.AppendEnter {
		l.session.WriteLine(d.Text)
		l.lastEnterAt = time.Now()
		l.hasLastEnter = true
	} else {
		l.session.Write([]byte(d.Text))
	}
	l.stats.Delivered++
}

// tryFlushPending delivers the oldest pending transcript if the gate is
// open, used both by handleEnter and the per-tick flush.
func (l *Loop) tryFlushPending() bool {
	if l.pending.Len() == 0 || !l.promptReady() {
		return false
	}
	p, ok := l.pending.Pop()
	if !ok {
		return false
	}
	l.deliver(p.Text)
	return true
}

func (l *Loop) flushPendingIfReady() {
	for l.pending.Len() > 0 && l.promptReady() {
		if !l.tryFlushPending() {
			break
		}
	}
}

// checkAutoVoiceRearm implements spec §4.9's "Auto-voice re-arm": on every
// tick, if auto-voice is on, manager idle, and should_auto_trigger →
// start a new capture with trigger Auto.
func (l *Loop) checkAutoVoiceRearm() {
	if !l.autoVoice || !l.voiceMgr.IsIdle() {
		return
	}
	timeout := time.Duration(l.cfg.AutoVoiceIdleMs) * time.Millisecond
	if l.prompt.ShouldAutoTrigger(time.Now(), timeout, l.lastAutoTrigger, l.hasLastAutoTrig) {
		l.lastAutoTrigger = time.Now()
		l.hasLastAutoTrig = true
		l.startCapture("auto")
	}
}

func truncatePreview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

func (l *Loop) redrawHUD() {
	state := hud.State{
		Style:         styleFor(l.hudStyle),
		SpinnerFrame:  l.spinnerFrame,
		PulseOn:       l.pulseOn,
		ModeTag:       hud.ModeTag{PipelineTag: l.lastPipeline},
		Message:       l.statusMsg,
		Preview:       l.preview,
		QueueDepth:    l.pending.Len(),
		LastLatencyMs: l.lastLatencyMs,
		AutoVoice:     l.autoVoice,
		SendAuto:      l.sendMode == config.SendAuto,
		RightPanel:    rightPanelFor(l.cfg.RightPanel),
		RecordingOnly: l.cfg.RightPanelRecOnly,
		Recording:     l.recording,
		Processing:    l.processing,
	}
	if l.recording {
		state.Indicator = hud.IndicatorRecording
		state.DurationMs = int(time.Since(l.recordingStart).Milliseconds())
	} else if l.processing {
		state.Indicator = hud.IndicatorProcessing
	}
	db := l.voiceMgr.Meter().Get()
	state.Db = db
	state.HasDb = l.recording

	l.wr.In <- writer.Message{Kind: writer.MsgSetState, State: state}
}

func styleFor(s config.HUDStyle) hud.Style {
	switch s {
	case config.HUDMinimal:
		return hud.StyleMinimal
	case config.HUDHidden:
		return hud.StyleHidden
	default:
		return hud.StyleFull
	}
}

func rightPanelFor(p config.RightPanel) hud.RightPanelKind {
	switch p {
	case config.PanelRibbon:
		return hud.RightPanelRibbon
	case config.PanelDots:
		return hud.RightPanelDots
	case config.PanelHeartbeat:
		return hud.RightPanelHeartbeat
	default:
		return hud.RightPanelOff
	}
}

// shutdown implements spec §4.4's "Cancellation & shutdown": ClearStatus +
// Shutdown to the writer, restore terminal raw state (deferred in Run),
// print session stats.
func (l *Loop) shutdown() {
	l.wr.In <- writer.Message{Kind: writer.MsgClearStatus}
	l.wr.In <- writer.Message{Kind: writer.MsgShutdown}
	<-l.wr.Done()
	if l.log != nil {
		l.log.Event("session_end", map[string]any{
			"captures":  l.stats.Captures,
			"delivered": l.stats.Delivered,
			"native":    l.stats.NativeCount,
			"python":    l.stats.PythonCount,
		})
	}
}
