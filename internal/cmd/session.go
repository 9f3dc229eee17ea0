package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/voxterm/voxterm/internal/audio"
	"github.com/voxterm/voxterm/internal/config"
	"github.com/voxterm/voxterm/internal/loop"
	"github.com/voxterm/voxterm/internal/macros"
	"github.com/voxterm/voxterm/internal/pty"
)

// runSession is the primary mode: size the terminal the child will see,
// spawn it under a PTY, and hand off to the event loop. Grounded on
// h2/internal/overlay/overlay.go's Run (term.GetSize before PTY spawn,
// reporting a terminal-detection error rather than guessing a size).
func runSession(cfg config.Config) error {
	fd := int(os.Stdin.Fd())
	cols, rows, err := term.GetSize(fd)
	if err != nil {
		return fmt.Errorf("get terminal size (is this a terminal?): %w", err)
	}

	dir := cfg.WorkingDir
	if dir == "" {
		dir, _ = os.Getwd()
	}

	childRows := rows - loop.InitialReservedRows(cfg.HUD)
	if childRows < 1 {
		childRows = 1
	}

	session, err := pty.Spawn(cfg.BackendCommand, cfg.BackendArgs, dir, cfg.Term, childRows, cols, pty.ModePassthrough)
	if err != nil {
		return fmt.Errorf("spawn %s: %w", cfg.BackendCommand, err)
	}

	macroSet, err := macros.Load(macroPathFor(cfg))
	if err != nil {
		macroSet = &macros.Set{}
	}

	log := buildLogger(cfg)
	defer log.Close()

	if !cfg.NoStartupBanner {
		fmt.Fprintf(os.Stderr, "voxterm: hosting %s %v (ctrl-r to record, ? for help)\n", cfg.BackendCommand, cfg.BackendArgs)
	}

	l := loop.New(cfg, session, os.Stdin, os.Stdout, rows, cols, macroSet, log)
	stats := l.Run()

	if !cfg.NoStartupBanner {
		fmt.Fprintf(os.Stderr, "voxterm: %d capture(s), %d delivered\n", stats.Captures, stats.Delivered)
	}
	return nil
}

// runMicMeter runs VoxTerm's full-screen calibration view so the operator
// can pick --voice-vad-threshold-db without spawning a child or entering
// the full event loop (spec §4.14). It owns the whole terminal rather than
// reserving a band, so it drives its own raw-mode/midterm render loop
// instead of internal/loop's passthrough event loop.
func runMicMeter(cfg config.Config) error {
	fd := int(os.Stdin.Fd())
	cols, rows, err := term.GetSize(fd)
	if err != nil {
		return fmt.Errorf("get terminal size (is this a terminal?): %w", err)
	}

	recorder, err := audio.NewRecorder("")
	if err != nil {
		return fmt.Errorf("open microphone: %w", err)
	}
	meter := audio.NewLiveMeter()
	stop := audio.NewStopFlag()

	go func() {
		vad := audio.NewSimpleThresholdVad(cfg.VadThresholdDb)
		captureCfg := audio.CaptureConfig{
			FrameMs:       cfg.VadFrameMs,
			MaxDurationMs: int(time.Hour / time.Millisecond),
			SilenceTailMs: int(time.Hour / time.Millisecond),
			LookbackMs:    cfg.LookbackMs,
		}
		_, _, _ = recorder.RecordWithVad(captureCfg, vad, cfg.SampleRateHz, 16_000, cfg.ChannelCapacity, cfg.VadSmoothingFrames, stop, meter)
	}()

	var restore *term.State
	if term.IsTerminal(fd) {
		restore, _ = term.MakeRaw(fd)
	}
	defer func() {
		if restore != nil {
			term.Restore(fd, restore)
		}
		fmt.Print("\033[?25h\033[0m\r\n")
	}()

	screen := newMicMeterScreen(rows, cols)

	keyCh := make(chan byte, 16)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				keyCh <- buf[0]
			}
			if err != nil {
				return
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			os.Stdout.Write(screen.Render(meter.Get(), cfg.VadThresholdDb))
		case b := <-keyCh:
			// Raw mode disables ISIG, so ctrl-c (0x03) arrives as a plain
			// byte rather than SIGINT; treat it the same as 'q'.
			if b == 'q' || b == 0x03 {
				stop.Set()
				return nil
			}
		case <-sigCh:
			stop.Set()
			return nil
		}
	}
}

func meterBar(db, thresholdDb float64) string {
	const width = 40
	norm := (db + 80) / 80
	if norm < 0 {
		norm = 0
	}
	if norm > 1 {
		norm = 1
	}
	filled := int(norm * float64(width))
	bar := make([]byte, width)
	for i := range bar {
		switch {
		case i < filled && float64(i)/float64(width)*80-80 >= thresholdDb:
			bar[i] = '#'
		case i < filled:
			bar[i] = '-'
		default:
			bar[i] = ' '
		}
	}
	return "[" + string(bar) + "]"
}

// execInherit runs command with the host's stdio attached, used for
// --login's handoff to the child CLI's own auth flow.
func execInherit(command string, args []string, dir string) error {
	c := exec.Command(command, args...)
	c.Dir = dir
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}
