// Package voice implements the voice manager and capture job worker (spec
// §4.5): it owns the lazily-initialized recorder/transcriber pair, decides
// native-vs-Python-fallback per capture, and hands finished transcripts back
// to the event loop through a small message channel. Grounded on
// h2/internal/session/agent/harness/harness.go's Start/Cancel/poll shape
// (one active job at a time, cancellation via a shared stop flag, results
// delivered through a channel the owner polls) and
// h2/internal/session/agent/shared/outputcollector/output.go's idle-timer
// bookkeeping pattern, both generalized from "agent subprocess" to "voice
// capture job".
package voice

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxterm/voxterm/internal/audio"
	"github.com/voxterm/voxterm/internal/config"
)

var errNoFallbackAvailable = errors.New("native voice path unavailable and python fallback disabled")

// Source identifies which pipeline produced (or is producing) a transcript.
type Source int

const (
	SourceNone Source = iota
	SourceNative
	SourcePython
)

// ResultKind tags a finished capture's outcome (spec §4.5 step 2).
type ResultKind int

const (
	ResultTranscript ResultKind = iota
	ResultEmpty
	ResultError
)

// Result is what a capture worker sends back on completion.
type Result struct {
	Kind    ResultKind
	Text    string
	Source  Source
	Metrics audio.Metrics
	Err     error
}

// Job tracks one in-flight capture.
type Job struct {
	ID        string
	Trigger   string
	Source    Source
	StartedAt time.Time
	stop      *audio.StopFlag
	done      chan Result

	// transcribing flips true once audio capture has ended and the worker
	// has moved on to STT (spec §4.7's Processing indicator, distinct from
	// Recording).
	transcribing atomic.Bool
}

// Manager is the voice subsystem's single owner, matching spec §4.5's
// "Holds config, a lazily-initialized recorder, a lazily-initialized
// transcriber, the current VoiceJob, a cancel-pending flag, the active
// capture source, and a shared LiveMeter".
type Manager struct {
	mu sync.Mutex

	cfg config.Config

	recorder    *audio.Recorder
	recorderErr error

	transcriber    nativeTranscriber
	transcriberErr error

	job           *Job
	cancelPending bool
	activeSource  Source

	meter *audio.LiveMeter
}

// NewManager builds a manager; recorder/transcriber are not opened until
// the first capture needs them.
func NewManager(cfg config.Config) *Manager {
	return &Manager{cfg: cfg, meter: audio.NewLiveMeter(), activeSource: SourceNone}
}

// Meter exposes the live dB meter for the HUD to read.
func (m *Manager) Meter() *audio.LiveMeter { return m.meter }

// AdjustSensitivity nudges the VAD threshold by deltaDb, clamped to
// [-80, -10] dB, and returns the new value (spec §4.5).
func (m *Manager) AdjustSensitivity(deltaDb float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := config.AdjustSensitivity(m.cfg.VadThresholdDb, deltaDb)
	m.cfg.VadThresholdDb = next
	return next
}

// IsIdle reports whether no capture is in flight.
func (m *Manager) IsIdle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.job == nil
}

// ActiveSource reports which pipeline the in-flight capture (if any) is
// using.
func (m *Manager) ActiveSource() Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeSource
}

// IsProcessing reports whether the in-flight job has finished recording and
// is now transcribing, so the loop can show Processing instead of Recording.
func (m *Manager) IsProcessing() bool {
	m.mu.Lock()
	job := m.job
	m.mu.Unlock()
	return job != nil && job.transcribing.Load()
}

// CancelCapture sets the worker's stop flag and marks cancel-pending so the
// next terminal message is dropped silently (spec §4.5).
func (m *Manager) CancelCapture() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.job == nil {
		return
	}
	m.cancelPending = true
	m.job.stop.Set()
}

// RequestEarlyStop sets the worker's stop flag without suppressing the
// resulting message (spec §4.5: "message is still delivered").
func (m *Manager) RequestEarlyStop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.job == nil {
		return
	}
	m.job.stop.Set()
}

// StartCapture builds and launches a capture job if idle, returning its
// descriptor. It is a no-op (ok=false) if a job is already running.
func (m *Manager) StartCapture(trigger string) (Job, bool) {
	m.mu.Lock()
	if m.job != nil {
		m.mu.Unlock()
		return Job{}, false
	}
	cfg := m.cfg
	source, recorder, transcriber := m.resolveSource()
	m.activeSource = source
	job := &Job{
		ID:        trigger + "-" + itoa(int(time.Now().UnixNano()%1_000_000)),
		Trigger:   trigger,
		Source:    source,
		StartedAt: time.Now(),
		stop:      audio.NewStopFlag(),
		done:      make(chan Result, 1),
	}
	m.job = job
	m.mu.Unlock()

	go runCapture(job, cfg, source, recorder, transcriber, m.meter)
	return *job, true
}

// resolveSource implements the start_capture policy from spec §4.5: the
// native path needs both a working transcriber and a working recorder;
// either missing flips the source to Python (or, if Python fallback is
// disabled, the worker will fail outright — decided in runCapture/
// performCapture rather than here since an unconfigured transcriber and a
// recorder init failure may only surface during the attempt).
func (m *Manager) resolveSource() (Source, *audio.Recorder, nativeTranscriber) {
	recorder := m.ensureRecorderLocked()
	transcriber := m.ensureTranscriberLocked()
	if recorder != nil && transcriber != nil {
		return SourceNative, recorder, transcriber
	}
	return SourcePython, recorder, transcriber
}

func (m *Manager) ensureRecorderLocked() *audio.Recorder {
	if m.recorder != nil {
		return m.recorder
	}
	if m.recorderErr != nil {
		return nil
	}
	rec, err := audio.NewRecorder("")
	if err != nil {
		m.recorderErr = err
		return nil
	}
	m.recorder = rec
	return rec
}

func (m *Manager) ensureTranscriberLocked() nativeTranscriber {
	if m.transcriber != nil {
		return m.transcriber
	}
	if m.transcriberErr != nil {
		return nil
	}
	t, err := NewWhisperTranscriber(m.cfg.WhisperModel, m.cfg.WhisperModelPath)
	if err != nil {
		m.transcriberErr = err
		return nil
	}
	m.transcriber = t
	return t
}

// PollMessage does a non-blocking try-receive on the active job's result
// channel. On a terminal message it joins the worker and clears job state,
// matching spec §4.5. Returns ok=false when there is nothing to report yet.
func (m *Manager) PollMessage() (Result, bool) {
	m.mu.Lock()
	job := m.job
	m.mu.Unlock()
	if job == nil {
		return Result{}, false
	}

	select {
	case res := <-job.done:
		m.mu.Lock()
		cancelled := m.cancelPending
		m.cancelPending = false
		m.job = nil
		m.activeSource = SourceNone
		m.mu.Unlock()
		if cancelled {
			return Result{}, false
		}
		return res, true
	default:
		return Result{}, false
	}
}

// runCapture is the per-job worker goroutine implementing
// perform_voice_capture (spec §4.5 step 1-2).
func runCapture(job *Job, cfg config.Config, source Source, recorder *audio.Recorder, transcriber nativeTranscriber, meter *audio.LiveMeter) {
	job.done <- performVoiceCapture(job, cfg, source, recorder, transcriber, meter)
}

func performVoiceCapture(job *Job, cfg config.Config, source Source, recorder *audio.Recorder, transcriber nativeTranscriber, meter *audio.LiveMeter) Result {
	if source != SourceNative {
		return runPythonFallbackCapture(job, cfg)
	}

	text, metrics, err := captureVoiceNative(job, cfg, recorder, transcriber, meter)
	if err != nil {
		if cfg.NoPythonFallback {
			return Result{Kind: ResultError, Source: SourceNative, Metrics: metrics, Err: err}
		}
		return runPythonFallbackCapture(job, cfg)
	}
	if text == "" {
		return Result{Kind: ResultEmpty, Source: SourceNative, Metrics: metrics}
	}
	return Result{Kind: ResultTranscript, Text: text, Source: SourceNative, Metrics: metrics}
}

// captureVoiceNative implements spec §4.5's capture_voice_native: build a
// VadConfig, record under the recorder's own internal lock via
// RecordWithVad, then transcribe and sanitize.
func captureVoiceNative(job *Job, cfg config.Config, recorder *audio.Recorder, transcriber nativeTranscriber, meter *audio.LiveMeter) (string, audio.Metrics, error) {
	vad := audio.SelectVadEngine(cfg.VadEngine == config.VadEarshot, cfg.VadThresholdDb)
	captureCfg := audio.CaptureConfig{
		FrameMs:       cfg.VadFrameMs,
		MaxDurationMs: cfg.MaxCaptureMs,
		SilenceTailMs: cfg.SilenceTailMs,
		LookbackMs:    cfg.LookbackMs,
	}

	metrics, samples, err := recorder.RecordWithVad(captureCfg, vad, cfg.SampleRateHz, 16_000, cfg.ChannelCapacity, cfg.VadSmoothingFrames, job.stop, meter)
	if err != nil {
		return "", metrics, err
	}
	if len(samples) == 0 {
		return "", metrics, nil
	}

	job.transcribing.Store(true)
	text, err := transcriber.Transcribe(samples, cfg)
	if err != nil {
		return "", metrics, err
	}
	return SanitizeTranscript(text), metrics, nil
}

func runPythonFallbackCapture(job *Job, cfg config.Config) Result {
	if cfg.NoPythonFallback {
		return Result{Kind: ResultError, Source: SourcePython, Err: errNoFallbackAvailable}
	}
	ctx := context.Background()
	res, err := RunPythonFallback(ctx, cfg.PythonPath, cfg.PythonScript, cfg, job.stop)
	if err != nil {
		return Result{Kind: ResultError, Source: SourcePython, Err: err}
	}
	text := SanitizeTranscript(res.Transcript)
	if text == "" {
		return Result{Kind: ResultEmpty, Source: SourcePython}
	}
	return Result{Kind: ResultTranscript, Text: text, Source: SourcePython}
}
