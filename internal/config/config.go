// Package config resolves VoxTerm's CLI flags, optional config file, and
// environment variables into one validated Config, following the
// teacher's load-with-defaults + explicit validate() pattern
// (h2/internal/config/config.go) generalized from h2's per-user bridge
// settings to VoxTerm's per-run voice/backend/HUD settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

// SendMode controls whether a recognized transcript is delivered
// immediately or only inserted for the operator to confirm (spec §3/§4.9).
type SendMode int

const (
	SendAuto SendMode = iota
	SendInsert
)

func (m SendMode) String() string {
	if m == SendInsert {
		return "insert"
	}
	return "auto"
}

// HUDStyle selects the banner layout (spec §3/§4.7).
type HUDStyle int

const (
	HUDFull HUDStyle = iota
	HUDMinimal
	HUDHidden
)

// RightPanel selects the HUD's right-hand decoration (spec §4.7).
type RightPanel int

const (
	PanelOff RightPanel = iota
	PanelRibbon
	PanelDots
	PanelHeartbeat
)

// VadEngineKind selects the VAD implementation (spec §4.6).
type VadEngineKind int

const (
	VadSimple VadEngineKind = iota
	VadEarshot
)

// HardMaxCaptureMs bounds --voice-max-capture-ms (spec §6: "(1..hard-limit)").
const HardMaxCaptureMs = 120_000

// Config is the fully resolved, validated set of knobs VoxTerm runs with.
type Config struct {
	// Backend selection.
	BackendCommand string // resolved executable ("codex", "claude", "gemini", or custom)
	BackendArgs    []string
	CodexCmd       string // overrides the resolved binary when BackendCommand == "codex"
	ClaudeCmd      string // overrides the resolved binary when BackendCommand == "claude"
	Term           string

	// Prompt tracker.
	PromptRegex string
	PromptLog   string

	// Voice.
	AutoVoice               bool
	AutoVoiceIdleMs         int
	TranscriptIdleMs        int
	VoiceSendMode           SendMode
	VadEngine               VadEngineKind
	VadThresholdDb          float64
	VadFrameMs              int
	VadSmoothingFrames      int
	MaxCaptureMs            int
	SilenceTailMs           int
	MinSpeechMsBeforeSTT    int
	LookbackMs              int
	BufferMs                int
	ChannelCapacity         int
	SttTimeoutMs            int
	SampleRateHz            int
	WhisperModel            string
	WhisperModelPath        string
	WhisperBeamSize         int
	WhisperTemperature      float64
	FfmpegDevice            string
	Lang                    string
	NoPythonFallback        bool
	PythonPath              string
	PythonScript            string

	// Presentation.
	Theme              string
	NoColor            bool
	HUD                HUDStyle
	RightPanel         RightPanel
	RightPanelRecOnly  bool

	// One-shot modes.
	MicMeter          bool
	ListInputDevices  bool
	Login             bool
	Doctor            bool

	// Ambient.
	WorkingDir       string
	NoStartupBanner  bool
}

// Defaults returns the baseline config before flags/env/file overrides,
// matching the numeric defaults named throughout spec §6.
func Defaults() Config {
	return Config{
		BackendCommand:       "codex",
		Term:                 "xterm-256color",
		AutoVoiceIdleMs:      1500,
		TranscriptIdleMs:     400,
		VoiceSendMode:        SendAuto,
		VadEngine:            VadSimple,
		VadThresholdDb:       -40,
		VadFrameMs:           20,
		VadSmoothingFrames:   3,
		MaxCaptureMs:         30_000,
		SilenceTailMs:        900,
		MinSpeechMsBeforeSTT: 150,
		LookbackMs:           300,
		BufferMs:             32_000,
		ChannelCapacity:      64,
		SttTimeoutMs:         15_000,
		SampleRateHz:         16_000,
		WhisperModel:         "base.en",
		WhisperBeamSize:      0,
		WhisperTemperature:   0,
		Lang:                 "auto",
		PythonPath:           "python3",
		PythonScript:         "",
		Theme:                "default",
		HUD:                  HUDFull,
		RightPanel:           PanelRibbon,
	}
}

// fileOverrides is the shape of the optional ~/.voxterm/config.yaml,
// mirroring h2's config.yaml: only the fields a user is likely to want
// as a persistent default, not the full flag surface.
type fileOverrides struct {
	Backend          string  `yaml:"backend"`
	Theme            string  `yaml:"theme"`
	HUD              string  `yaml:"hud_style"`
	VoiceSendMode    string  `yaml:"voice_send_mode"`
	VadThresholdDb   float64 `yaml:"voice_vad_threshold_db"`
	NoPythonFallback bool    `yaml:"no_python_fallback"`
}

// ConfigDir returns ~/.voxterm.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".voxterm")
	}
	return filepath.Join(home, ".voxterm")
}

// LoadFile reads ~/.voxterm/config.yaml into cfg, leaving cfg's existing
// values untouched for anything the file doesn't mention. A missing file
// is not an error, matching h2's LoadFrom.
func LoadFile(cfg *Config) error {
	return LoadFileFrom(cfg, filepath.Join(ConfigDir(), "config.yaml"))
}

func LoadFileFrom(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var fo fileOverrides
	if err := yaml.Unmarshal(data, &fo); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if fo.Backend != "" {
		if err := applyBackend(cfg, fo.Backend); err != nil {
			return err
		}
	}
	if fo.Theme != "" {
		cfg.Theme = fo.Theme
	}
	if fo.HUD != "" {
		if s, ok := parseHUDStyle(fo.HUD); ok {
			cfg.HUD = s
		}
	}
	if fo.VoiceSendMode != "" {
		if strings.EqualFold(fo.VoiceSendMode, "insert") {
			cfg.VoiceSendMode = SendInsert
		} else {
			cfg.VoiceSendMode = SendAuto
		}
	}
	if fo.VadThresholdDb != 0 {
		cfg.VadThresholdDb = fo.VadThresholdDb
	}
	cfg.NoPythonFallback = cfg.NoPythonFallback || fo.NoPythonFallback
	return nil
}

// ApplyEnv resolves the VOXTERM_* and color-capability environment
// variables named in spec §6.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("VOXTERM_CWD"); v != "" {
		cfg.WorkingDir = v
	}
	if v := os.Getenv("VOXTERM_PROMPT_LOG"); v != "" && cfg.PromptLog == "" {
		cfg.PromptLog = v
	}
	if v := os.Getenv("VOXTERM_PROMPT_REGEX"); v != "" && cfg.PromptRegex == "" {
		cfg.PromptRegex = v
	}
	if v := os.Getenv("VOXTERM_NO_STARTUP_BANNER"); v != "" {
		cfg.NoStartupBanner = isTruthyEnv(v)
	}
	if os.Getenv("NO_COLOR") != "" {
		cfg.NoColor = true
	}
}

func isTruthyEnv(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// applyBackend resolves a --backend value to a command + args, shelling
// custom "cmd ..." strings through shlex the same way h2's bridge
// whitelisting tokenizes whitelisted-command arguments
// (h2/internal/bridge/exec.go: shlex.Split(args)).
func applyBackend(cfg *Config, value string) error {
	switch value {
	case "codex", "claude", "gemini":
		cfg.BackendCommand = value
		cfg.BackendArgs = nil
		return nil
	}
	argv, err := shlex.Split(value)
	if err != nil {
		return fmt.Errorf("invalid --backend command: %w", err)
	}
	if len(argv) == 0 {
		return fmt.Errorf("invalid --backend command: empty")
	}
	cfg.BackendCommand = argv[0]
	cfg.BackendArgs = argv[1:]
	return nil
}

// SetBackend is the flag-facing entry point for --backend and the
// positional command argument.
func SetBackend(cfg *Config, value string) error { return applyBackend(cfg, value) }

func parseHUDStyle(s string) (HUDStyle, bool) {
	switch strings.ToLower(s) {
	case "full":
		return HUDFull, true
	case "minimal":
		return HUDMinimal, true
	case "hidden":
		return HUDHidden, true
	}
	return 0, false
}

// ParseHUDStyle is the exported flag parser for --hud-style.
func ParseHUDStyle(s string) (HUDStyle, error) {
	v, ok := parseHUDStyle(s)
	if !ok {
		return 0, fmt.Errorf("invalid --hud-style %q (want full|minimal|hidden)", s)
	}
	return v, nil
}

// ParseRightPanel is the exported flag parser for --hud-right-panel.
func ParseRightPanel(s string) (RightPanel, error) {
	switch strings.ToLower(s) {
	case "off", "":
		return PanelOff, nil
	case "ribbon":
		return PanelRibbon, nil
	case "dots":
		return PanelDots, nil
	case "heartbeat":
		return PanelHeartbeat, nil
	}
	return 0, fmt.Errorf("invalid --hud-right-panel %q", s)
}

// ParseVadEngine is the exported flag parser for --voice-vad-engine.
func ParseVadEngine(s string) (VadEngineKind, error) {
	switch strings.ToLower(s) {
	case "simple", "":
		return VadSimple, nil
	case "earshot":
		return VadEarshot, nil
	}
	return 0, fmt.Errorf("invalid --voice-vad-engine %q", s)
}

// Validate enforces every bound named in spec §6's flag table. It is
// called once, before any PTY is spawned, so a bad flag is a fatal-setup
// error (spec §7) rather than a runtime surprise.
func (c *Config) Validate() error {
	if c.BackendCommand == "" {
		return fmt.Errorf("no backend command resolved")
	}
	if len(c.BackendArgs) > 64 {
		return fmt.Errorf("--codex-arg: at most 64 args allowed, got %d", len(c.BackendArgs))
	}
	var totalArgBytes int
	for _, a := range c.BackendArgs {
		totalArgBytes += len(a)
	}
	if totalArgBytes > 8*1024 {
		return fmt.Errorf("--codex-arg: total size exceeds 8 KiB")
	}
	if c.AutoVoiceIdleMs < 100 {
		return fmt.Errorf("--auto-voice-idle-ms must be >= 100, got %d", c.AutoVoiceIdleMs)
	}
	if c.TranscriptIdleMs < 50 {
		return fmt.Errorf("--transcript-idle-ms must be >= 50, got %d", c.TranscriptIdleMs)
	}
	if c.VadThresholdDb < -120 || c.VadThresholdDb > 0 {
		return fmt.Errorf("--voice-vad-threshold-db must be in [-120, 0], got %v", c.VadThresholdDb)
	}
	if c.VadFrameMs < 5 || c.VadFrameMs > 120 {
		return fmt.Errorf("--voice-vad-frame-ms must be in [5, 120], got %d", c.VadFrameMs)
	}
	if c.VadSmoothingFrames < 1 || c.VadSmoothingFrames > 10 {
		return fmt.Errorf("--voice-vad-smoothing-frames must be in [1, 10], got %d", c.VadSmoothingFrames)
	}
	if c.MaxCaptureMs < 1 || c.MaxCaptureMs > HardMaxCaptureMs {
		return fmt.Errorf("--voice-max-capture-ms must be in [1, %d], got %d", HardMaxCaptureMs, c.MaxCaptureMs)
	}
	if c.SilenceTailMs < 200 || c.SilenceTailMs > c.MaxCaptureMs {
		return fmt.Errorf("--voice-silence-tail-ms must be >= 200 and <= max-capture-ms, got %d", c.SilenceTailMs)
	}
	if c.LookbackMs > c.MaxCaptureMs {
		return fmt.Errorf("--voice-lookback-ms must be <= max-capture-ms, got %d", c.LookbackMs)
	}
	if c.BufferMs < c.MaxCaptureMs || c.BufferMs > 120_000 {
		return fmt.Errorf("--voice-buffer-ms must be in [max-capture-ms, 120000], got %d", c.BufferMs)
	}
	if c.ChannelCapacity < 8 || c.ChannelCapacity > 1024 {
		return fmt.Errorf("--voice-channel-capacity must be in [8, 1024], got %d", c.ChannelCapacity)
	}
	if c.SampleRateHz < 8000 || c.SampleRateHz > 96_000 {
		return fmt.Errorf("--voice-sample-rate must be in [8000, 96000], got %d", c.SampleRateHz)
	}
	if c.WhisperBeamSize < 0 || c.WhisperBeamSize > 10 {
		return fmt.Errorf("--whisper-beam-size must be in [0, 10], got %d", c.WhisperBeamSize)
	}
	if c.WhisperTemperature < 0 || c.WhisperTemperature > 5 {
		return fmt.Errorf("--whisper-temperature must be in [0, 5], got %v", c.WhisperTemperature)
	}
	if len(c.FfmpegDevice) > 256 {
		return fmt.Errorf("--ffmpeg-device: must be <= 256 chars")
	}
	if strings.ContainsAny(c.FfmpegDevice, ";&|`$(){}<>\n") {
		return fmt.Errorf("--ffmpeg-device: contains shell metacharacters")
	}
	if err := validateLang(c.Lang); err != nil {
		return err
	}
	return nil
}

func validateLang(lang string) error {
	if lang == "" || lang == "auto" {
		return nil
	}
	parts := strings.SplitN(lang, "-", 2)
	if len(parts[0]) != 2 {
		return fmt.Errorf("--lang: primary code must be ISO-639-1 (2 letters) or \"auto\", got %q", lang)
	}
	for _, r := range parts[0] {
		if r < 'a' || r > 'z' {
			if r >= 'A' && r <= 'Z' {
				continue
			}
			return fmt.Errorf("--lang: invalid primary code %q", lang)
		}
	}
	return nil
}

// AdjustSensitivity clamps a delta-adjusted VAD threshold to [-80, -10]
// dB, the runtime clamp named in spec §4.4 (distinct from the wider
// [-120, 0] CLI validation range, which bounds the flag, not live
// adjustment).
func AdjustSensitivity(currentDb, deltaDb float64) float64 {
	v := currentDb + deltaDb
	if v < -80 {
		v = -80
	}
	if v > -10 {
		v = -10
	}
	return v
}
