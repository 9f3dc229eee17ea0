// Python fallback: invokes the configured Python interpreter and pipeline
// script with the relevant CLI flags translated to equivalents, plus
// --no-codex --emit-json, and parses its stdout as the capture result
// (spec §4.5 "Python fallback"). Grounded on h2/internal/bridge/exec.go's
// pattern of building argv then reading a subprocess's output to
// completion, generalized from "run a fixed whitelisted command" to "run a
// configured interpreter with flag passthrough".
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/voxterm/voxterm/internal/audio"
	"github.com/voxterm/voxterm/internal/config"
)

// PythonResult is the JSON document VoxTerm expects on the fallback
// script's stdout (spec §4.5: "the transcript field is the only one
// required; metrics are logged if present").
type PythonResult struct {
	Transcript string         `json:"transcript"`
	Metrics    map[string]any `json:"metrics,omitempty"`
}

// RunPythonFallback invokes cfg's Python interpreter/script with flags
// derived from cfg plus --no-codex --emit-json, reading stdout/stderr to
// completion or until stop is set.
func RunPythonFallback(ctx context.Context, pythonPath, scriptPath string, cfg config.Config, stop *audio.StopFlag) (PythonResult, error) {
	args := buildPythonArgs(cfg)
	cmd := exec.CommandContext(ctx, pythonPath, append([]string{scriptPath}, args...)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return PythonResult{}, fmt.Errorf("start python fallback: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	if stop != nil {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case err := <-done:
				return parsePythonOutput(stdout.String(), err, stderr.String())
			case <-ticker.C:
				if stop.IsSet() && cmd.Process != nil {
					cmd.Process.Kill()
				}
			}
		}
	}

	err := <-done
	return parsePythonOutput(stdout.String(), err, stderr.String())
}

func buildPythonArgs(cfg config.Config) []string {
	args := []string{
		"--no-codex", "--emit-json",
		"--voice-vad-threshold-db", ftoa(cfg.VadThresholdDb),
		"--voice-max-capture-ms", itoa(cfg.MaxCaptureMs),
		"--voice-silence-tail-ms", itoa(cfg.SilenceTailMs),
		"--voice-sample-rate", itoa(cfg.SampleRateHz),
		"--lang", cfg.Lang,
	}
	if cfg.FfmpegDevice != "" {
		args = append(args, "--ffmpeg-device", cfg.FfmpegDevice)
	}
	return args
}

// parsePythonOutput tries the whole stdout as one JSON document first,
// then falls back to the last "{...}" line, optionally prefixed with
// "JSON:" (spec §4.5).
func parsePythonOutput(stdout string, waitErr error, stderr string) (PythonResult, error) {
	var result PythonResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(stdout)), &result); err == nil {
		return result, nil
	}

	lines := strings.Split(stdout, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		line = strings.TrimPrefix(line, "JSON:")
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") {
			if err := json.Unmarshal([]byte(line), &result); err == nil {
				return result, nil
			}
		}
	}

	if waitErr != nil {
		return PythonResult{}, fmt.Errorf("python fallback failed: %w (stderr: %s)", waitErr, strings.TrimSpace(stderr))
	}
	return PythonResult{}, fmt.Errorf("python fallback produced no parseable JSON output")
}

func itoa(n int) string { return fmt.Sprintf("%d", n) }
func ftoa(f float64) string { return fmt.Sprintf("%g", f) }
