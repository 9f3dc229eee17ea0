package audio

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// Recorder owns the malgo audio context/device lifecycle, grounded on
// team-hashing-lokutor-orchestrator/cmd/agent/main.go's malgo wiring
// (InitContext, DefaultDeviceConfig(Duplex)/Capture, DeviceCallbacks.Data)
// narrowed to capture-only. Captures request mono FormatF32 from
// miniaudio, which converts from whatever sample format and channel
// count the device natively delivers.
type Recorder struct {
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	name   string
}

// ListDevices returns all capture device names, backing --list-input-devices
// and --doctor (spec §6).
func ListDevices() ([]string, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	defer ctx.Uninit()
	defer ctx.Free()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate capture devices: %w", err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

// NewRecorder initializes the audio context and stores preferred as the
// recorder's device name. It fails only if the audio context cannot be
// initialized; preferred is not looked up or matched against ListDevices,
// and captures always open the host default capture device.
func NewRecorder(preferred string) (*Recorder, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	r := &Recorder{ctx: ctx, name: preferred}
	return r, nil
}

// deviceConfig builds a capture-only malgo config at deviceRate.
func deviceConfig(deviceRate int) malgo.DeviceConfig {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1 // mono; the callbacks decode one channel per frame
	cfg.SampleRate = uint32(deviceRate)
	cfg.Alsa.NoMMap = 1
	return cfg
}

// downmix averages interleaved channels to mono float32, the
// "downmixing ... averaging channels" step of spec §4.6.
func downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(interleaved))
		copy(out, interleaved)
		return out
	}
	n := len(interleaved) / channels
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// bytesToF32Mono converts a raw capture callback buffer (assumed
// malgo.FormatF32) into mono float32 samples.
func bytesToF32Mono(raw []byte, channels int) []float32 {
	n := len(raw) / 4
	interleaved := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := uint32(raw[i*4]) | uint32(raw[i*4+1])<<8 | uint32(raw[i*4+2])<<16 | uint32(raw[i*4+3])<<24
		interleaved[i] = math.Float32frombits(bits)
	}
	return downmix(interleaved, channels)
}

// RecordFor starts a capture stream, accumulates samples under a lock for
// the given duration, then stops and resamples to targetRateHz (spec
// §4.6 "record_for(duration)").
func (r *Recorder) RecordFor(duration time.Duration, deviceRateHz, targetRateHz int) ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var bufMu sync.Mutex
	var buf []float32
	channels := 1

	cfg := deviceConfig(deviceRateHz)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_ []byte, in []byte, _ uint32) {
			if len(in) == 0 {
				return
			}
			mono := bytesToF32Mono(in, channels)
			bufMu.Lock()
			buf = append(buf, mono...)
			bufMu.Unlock()
		},
	}
	device, err := malgo.InitDevice(r.ctx.Context, cfg, callbacks)
	if err != nil {
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	defer device.Uninit()
	if err := device.Start(); err != nil {
		return nil, fmt.Errorf("start capture device: %w", err)
	}
	time.Sleep(duration)
	device.Stop()

	bufMu.Lock()
	out := make([]float32, len(buf))
	copy(out, buf)
	bufMu.Unlock()

	return NewResampler(deviceRateHz, targetRateHz).Resample(out), nil
}

// RecordWithVad starts a capture stream whose callback pushes fixed
// device-rate frames through a FrameDispatcher; a consumer loop resamples
// each frame to the target rate, runs it through vad and a Smoother,
// updates meter, and feeds CaptureState until a StopReason is produced or
// stopFlag is observed set (spec §4.5/§4.6 "record_with_vad").
func (r *Recorder) RecordWithVad(cfg CaptureConfig, vad VadEngine, deviceRateHz, targetRateHz, channelCapacity int, smoothing int, stopFlag *StopFlag, meter *LiveMeter) (Metrics, []float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frameLen := cfg.FrameMs * targetRateHz / 1000
	frames := make(chan []float32, channelCapacity)
	var drops int64

	resampler := NewResampler(deviceRateHz, targetRateHz)
	dispatcher := NewFrameDispatcher(frameLen, frames, &drops)

	devCfg := deviceConfig(deviceRateHz)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_ []byte, in []byte, _ uint32) {
			if len(in) == 0 {
				return
			}
			mono := bytesToF32Mono(in, 1)
			dispatcher.Push(resampler.Resample(mono))
		},
	}
	device, err := malgo.InitDevice(r.ctx.Context, devCfg, callbacks)
	if err != nil {
		return Metrics{}, nil, fmt.Errorf("init capture device: %w", err)
	}
	defer device.Uninit()
	if err := device.Start(); err != nil {
		return Metrics{}, nil, fmt.Errorf("start capture device: %w", err)
	}
	defer device.Stop()

	state := NewCaptureState(cfg)
	smoother := NewSmoother(smoothing)
	acc := NewFrameAccumulator(cfg.MaxDurationMs*2, targetRateHz)

	frameTimeout := time.Duration(cfg.FrameMs*4) * time.Millisecond
	var reason StopReason
	for {
		if stopFlag != nil && stopFlag.IsSet() {
			reason = StopReason{Kind: StopManualStop}
			break
		}
		select {
		case frame, ok := <-frames:
			if !ok {
				reason = StopReason{Kind: StopError, Err: fmt.Errorf("frame channel closed")}
			} else {
				raw := vad.ProcessFrame(frame)
				label := smoother.Push(raw)
				if meter != nil {
					meter.Set(RMSDb(frame))
				}
				acc.Push(frame, label)
				if sr := state.OnFrame(label); sr != nil {
					reason = *sr
				} else {
					continue
				}
			}
		case <-time.After(frameTimeout):
			if stopFlag != nil && stopFlag.IsSet() {
				reason = StopReason{Kind: StopManualStop}
			} else if sr := state.OnTimeout(); sr != nil {
				reason = *sr
			} else {
				continue
			}
		}
		break
	}
	state.framesDropped = drops

	audioOut := acc.IntoAudio(reason, cfg.LookbackMs, targetRateHz)
	metrics := state.Metrics(0, reason)
	if reason.Kind == StopError {
		return metrics, audioOut, reason.Err
	}
	return metrics, audioOut, nil
}

// Close releases the recorder's audio context.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx != nil {
		r.ctx.Uninit()
		r.ctx.Free()
		r.ctx = nil
	}
	return nil
}

// StopFlag is a shared atomic boolean used to request manual/early stop
// (spec §4.5 "cancel_capture"/"request_early_stop").
type StopFlag struct{ v atomic.Bool }

func NewStopFlag() *StopFlag     { return &StopFlag{} }
func (f *StopFlag) Set()         { f.v.Store(true) }
func (f *StopFlag) IsSet() bool  { return f.v.Load() }
