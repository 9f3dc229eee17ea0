// Package cmd wires VoxTerm's CLI surface together with cobra, following
// h2/internal/cmd/root.go's NewRootCmd shape (a root command whose
// PersistentPreRunE does one-time setup, with leaf behavior split into
// small RunE closures) generalized from h2's many session-management
// subcommands to VoxTerm's single primary mode plus a handful of
// one-shot diagnostic flags (spec §6).
package cmd

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/voxterm/voxterm/internal/applog"
	"github.com/voxterm/voxterm/internal/audio"
	"github.com/voxterm/voxterm/internal/config"
	"github.com/voxterm/voxterm/internal/macros"
)

// NewRootCmd builds the voxterm root command.
func NewRootCmd() *cobra.Command {
	cfg := config.Defaults()
	var hudStyleFlag, rightPanelFlag, vadEngineFlag, sendModeFlag string
	var minimalHUD, wantCodex, wantClaude, wantGemini bool

	root := &cobra.Command{
		Use:   "voxterm -- <command> [args...]",
		Short: "Voice-capture overlay for interactive AI-coding CLIs",
		Long: `VoxTerm hosts an interactive CLI (codex, claude, gemini, or a custom
command) inside a pseudo-terminal, adds hot-key-triggered voice capture, and
shows a heads-up display with mode, audio level, and clickable controls.`,
		SilenceUsage: true,
		RunE: func(c *cobra.Command, args []string) error {
			if err := resolveFlagEnums(&cfg, hudStyleFlag, rightPanelFlag, vadEngineFlag, sendModeFlag, minimalHUD); err != nil {
				return err
			}
			if c.Flags().Changed("backend") {
				extra := cfg.BackendArgs
				if err := config.SetBackend(&cfg, cfg.BackendCommand); err != nil {
					return err
				}
				cfg.BackendArgs = append(cfg.BackendArgs, extra...)
			}
			config.ApplyEnv(&cfg)
			if err := config.LoadFile(&cfg); err != nil {
				return err
			}
			switch {
			case wantCodex:
				cfg.BackendCommand, cfg.BackendArgs = "codex", nil
			case wantClaude:
				cfg.BackendCommand, cfg.BackendArgs = "claude", nil
			case wantGemini:
				cfg.BackendCommand, cfg.BackendArgs = "gemini", nil
			}
			if len(args) > 0 {
				if err := config.SetBackend(&cfg, args[0]); err != nil {
					return err
				}
				cfg.BackendArgs = append(cfg.BackendArgs, args[1:]...)
			}
			switch cfg.BackendCommand {
			case "codex":
				if cfg.CodexCmd != "" {
					cfg.BackendCommand = cfg.CodexCmd
				}
			case "claude":
				if cfg.ClaudeCmd != "" {
					cfg.BackendCommand = cfg.ClaudeCmd
				}
			}
			if cfg.Term == "" {
				if t := os.Getenv("TERM"); t != "" {
					cfg.Term = t
				} else {
					cfg.Term = "xterm-256color"
				}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			switch {
			case cfg.ListInputDevices:
				return runListInputDevices()
			case cfg.Doctor:
				return runDoctor(cfg)
			case cfg.MicMeter:
				return runMicMeter(cfg)
			case cfg.Login:
				return runLogin(cfg)
			}

			return runSession(cfg)
		},
	}

	bindFlags(root, &cfg, &hudStyleFlag, &rightPanelFlag, &vadEngineFlag, &sendModeFlag, &minimalHUD, &wantCodex, &wantClaude, &wantGemini)
	return root
}

func bindFlags(cmd *cobra.Command, cfg *config.Config, hudStyleFlag, rightPanelFlag, vadEngineFlag, sendModeFlag *string, minimalHUD, wantCodex, wantClaude, wantGemini *bool) {
	f := cmd.Flags()

	f.StringVar(&cfg.BackendCommand, "backend", cfg.BackendCommand, "choose child CLI or custom command (codex|claude|gemini|\"cmd ...\")")
	f.BoolVar(wantCodex, "codex", false, "shorthand for --backend codex")
	f.BoolVar(wantClaude, "claude", false, "shorthand for --backend claude")
	f.BoolVar(wantGemini, "gemini", false, "shorthand for --backend gemini")
	f.StringVar(&cfg.CodexCmd, "codex-cmd", "", "override the resolved codex binary path")
	f.StringVar(&cfg.ClaudeCmd, "claude-cmd", "", "override the resolved claude binary path")
	f.StringSliceVar(&cfg.BackendArgs, "codex-arg", nil, "extra args to child (repeatable)")
	f.StringVar(&cfg.Term, "term", "", "TERM exported to child (default host TERM or xterm-256color)")

	f.StringVar(&cfg.PromptRegex, "prompt-regex", "", "override prompt detection")
	f.StringVar(&cfg.PromptLog, "prompt-log", "", "log prompt events")

	f.BoolVar(&cfg.AutoVoice, "auto-voice", false, "start in auto mode")
	f.IntVar(&cfg.AutoVoiceIdleMs, "auto-voice-idle-ms", cfg.AutoVoiceIdleMs, "idle before auto re-arm (>=100)")
	f.IntVar(&cfg.TranscriptIdleMs, "transcript-idle-ms", cfg.TranscriptIdleMs, "idle gate for delivery (>=50)")
	f.StringVar(sendModeFlag, "voice-send-mode", "auto", "delivery mode (auto|insert)")
	f.StringVar(vadEngineFlag, "voice-vad-engine", "simple", "VAD impl (simple|earshot)")
	f.Float64Var(&cfg.VadThresholdDb, "voice-vad-threshold-db", cfg.VadThresholdDb, "VAD threshold (-120..0)")
	f.IntVar(&cfg.VadFrameMs, "voice-vad-frame-ms", cfg.VadFrameMs, "frame size (5..120)")
	f.IntVar(&cfg.VadSmoothingFrames, "voice-vad-smoothing-frames", cfg.VadSmoothingFrames, "smoother window (1..10)")
	f.IntVar(&cfg.MaxCaptureMs, "voice-max-capture-ms", cfg.MaxCaptureMs, "cap duration (1..hard-limit)")
	f.IntVar(&cfg.SilenceTailMs, "voice-silence-tail-ms", cfg.SilenceTailMs, "stop after silence (>=200, <=max-capture)")
	f.IntVar(&cfg.MinSpeechMsBeforeSTT, "voice-min-speech-ms-before-stt-start", cfg.MinSpeechMsBeforeSTT, "gate STT")
	f.IntVar(&cfg.LookbackMs, "voice-lookback-ms", cfg.LookbackMs, "trim trailing silence to this (<=max-capture)")
	f.IntVar(&cfg.BufferMs, "voice-buffer-ms", cfg.BufferMs, "ring capacity (>=max-capture, <=120000)")
	f.IntVar(&cfg.ChannelCapacity, "voice-channel-capacity", cfg.ChannelCapacity, "frame channel (8..1024)")
	f.IntVar(&cfg.SttTimeoutMs, "voice-stt-timeout-ms", cfg.SttTimeoutMs, "STT timeout")
	f.IntVar(&cfg.SampleRateHz, "voice-sample-rate", cfg.SampleRateHz, "target rate (8000..96000)")
	f.StringVar(&cfg.WhisperModel, "whisper-model", cfg.WhisperModel, "STT model name")
	f.StringVar(&cfg.WhisperModelPath, "whisper-model-path", "", "STT model path")
	f.IntVar(&cfg.WhisperBeamSize, "whisper-beam-size", cfg.WhisperBeamSize, "decoder hint (0..10)")
	f.Float64Var(&cfg.WhisperTemperature, "whisper-temperature", cfg.WhisperTemperature, "decoder hint (0..5)")
	f.StringVar(&cfg.FfmpegDevice, "ffmpeg-device", "", "audio fallback device (<=256 chars, no shell metachars)")
	f.StringVar(&cfg.Lang, "lang", cfg.Lang, "ISO-639-1 primary, optional -REGION, or auto")
	f.BoolVar(&cfg.NoPythonFallback, "no-python-fallback", false, "disable Python STT fallback")

	f.StringVar(&cfg.Theme, "theme", cfg.Theme, "theming")
	f.BoolVar(&cfg.NoColor, "no-color", false, "disable color")
	f.StringVar(hudStyleFlag, "hud-style", "full", "HUD mode (full|minimal|hidden)")
	f.BoolVar(minimalHUD, "minimal-hud", false, "shorthand for --hud-style minimal")
	f.StringVar(rightPanelFlag, "hud-right-panel", "ribbon", "right panel (off|ribbon|dots|heartbeat)")
	f.BoolVar(&cfg.RightPanelRecOnly, "hud-right-panel-recording-only", false, "only animate the right panel while recording")

	f.BoolVar(&cfg.MicMeter, "mic-meter", false, "run the calibration UI and exit")
	f.BoolVar(&cfg.ListInputDevices, "list-input-devices", false, "print devices and exit")
	f.BoolVar(&cfg.Login, "login", false, "run the child's login subcommand and exit")
	f.BoolVar(&cfg.Doctor, "doctor", false, "print a diagnostic report and exit")
}

// resolveFlagEnums resolves the string-typed enum flags (HUD style, right
// panel, VAD engine, send mode) into their config types, applying
// --minimal-hud over --hud-style.
func resolveFlagEnums(cfg *config.Config, hudStyle, rightPanel, vadEngine, sendMode string, minimalHUD bool) error {
	style, err := config.ParseHUDStyle(hudStyle)
	if err != nil {
		return err
	}
	if minimalHUD {
		style = config.HUDMinimal
	}
	cfg.HUD = style

	panel, err := config.ParseRightPanel(rightPanel)
	if err != nil {
		return err
	}
	cfg.RightPanel = panel

	engine, err := config.ParseVadEngine(vadEngine)
	if err != nil {
		return err
	}
	cfg.VadEngine = engine

	if sendMode == "insert" {
		cfg.VoiceSendMode = config.SendInsert
	} else {
		cfg.VoiceSendMode = config.SendAuto
	}
	return nil
}

func runListInputDevices() error {
	names, err := audio.ListDevices()
	if err != nil {
		return fmt.Errorf("list input devices: %w", err)
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

// runDoctor prints the diagnostic report named in spec §4.4's status
// banner context: backend command + args, TERM capability, whisper model
// path/availability, Python fallback availability.
func runDoctor(cfg config.Config) error {
	fmt.Printf("backend:        %s %v\n", cfg.BackendCommand, cfg.BackendArgs)
	fmt.Printf("term:           %s (stdin is a tty: %v)\n", cfg.Term, isatty.IsTerminal(os.Stdin.Fd()))
	fmt.Printf("whisper model:  %s (path override: %q)\n", cfg.WhisperModel, cfg.WhisperModelPath)
	fmt.Printf("python fallback: enabled=%v interpreter=%s\n", !cfg.NoPythonFallback, cfg.PythonPath)

	devices, err := audio.ListDevices()
	if err != nil {
		fmt.Printf("audio devices:  error: %v\n", err)
	} else {
		fmt.Printf("audio devices:  %d found\n", len(devices))
		for _, d := range devices {
			fmt.Printf("  - %s\n", d)
		}
	}
	return nil
}

// runLogin execs the backend's own login subcommand and exits with its
// status; the specific subcommand name is a backend convention VoxTerm
// does not otherwise model.
func runLogin(cfg config.Config) error {
	loginArgs := append(append([]string{}, cfg.BackendArgs...), "login")
	return execInherit(cfg.BackendCommand, loginArgs, cfg.WorkingDir)
}

func macroPathFor(cfg config.Config) string {
	dir := cfg.WorkingDir
	if dir == "" {
		dir, _ = os.Getwd()
	}
	return macros.DefaultPath(dir)
}

func buildLogger(cfg config.Config) *applog.Logger {
	return applog.New(cfg.PromptLog != "", cfg.PromptLog, "voxterm")
}
