// Package devaudio wires the engine's realtime Render/Capture callbacks to
// physical audio hardware via gen2brain/malgo, generalized from the
// teacher's capture-only MalgoSource into a symmetric capture+playback
// device manager: one malgo.Device each for input and output, hot-plug
// detected by polling device enumeration on a ticker (malgo has no native
// hot-plug callback, matching the teacher's own capture-only source, which
// also has none).
package devaudio

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/resonantfield/tapedeck/internal/errors"
	"github.com/resonantfield/tapedeck/internal/logging"
)

// DeviceInfo describes one enumerated capture or playback device.
type DeviceInfo struct {
	ID        string
	Name      string
	IsDefault bool
}

// RenderFunc fills out (interleaved stereo float32) for one playback
// callback; the engine's Engine.RenderBlock satisfies this signature.
type RenderFunc func(out []float32) error

// CaptureFunc receives one block of interleaved captured float32 frames.
type CaptureFunc func(in []float32)

// Manager owns the malgo context plus the currently open playback and
// capture devices. Only one of each may be open at a time, matching the
// spec's single-interface-in/single-interface-out model.
type Manager struct {
	ctx *malgo.AllocatedContext

	mu       sync.Mutex
	playback *malgo.Device
	capture  *malgo.Device

	sampleRate int
	channels   int

	logger *slog.Logger

	hotplugCancel context.CancelFunc
}

// New initializes the malgo backend context for the current platform.
func New(sampleRate, channels int) (*Manager, error) {
	logger := logging.ForService("devaudio")
	if logger == nil {
		logger = slog.Default()
	}

	ctx, err := malgo.InitContext(backendsForPlatform(), malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("devaudio").
			Category(errors.CategoryDevice).
			Context("operation", "init_context").
			Build()
	}

	return &Manager{
		ctx:        ctx,
		sampleRate: sampleRate,
		channels:   channels,
		logger:     logger.With("component", "devaudio"),
	}, nil
}

func backendsForPlatform() []malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return []malgo.Backend{malgo.BackendAlsa, malgo.BackendPulseAudio}
	case "windows":
		return []malgo.Backend{malgo.BackendWasapi}
	case "darwin":
		return []malgo.Backend{malgo.BackendCoreaudio}
	default:
		return []malgo.Backend{malgo.BackendNull}
	}
}

// ListPlaybackDevices enumerates available playback devices.
func (m *Manager) ListPlaybackDevices() ([]DeviceInfo, error) {
	return m.listDevices(malgo.Playback)
}

// ListCaptureDevices enumerates available capture devices.
func (m *Manager) ListCaptureDevices() ([]DeviceInfo, error) {
	return m.listDevices(malgo.Capture)
}

func (m *Manager) listDevices(kind malgo.DeviceType) ([]DeviceInfo, error) {
	infos, err := m.ctx.Devices(kind)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("devaudio").
			Category(errors.CategoryDevice).
			Context("operation", "enumerate_devices").
			Build()
	}
	out := make([]DeviceInfo, len(infos))
	for i, d := range infos {
		out[i] = DeviceInfo{ID: d.ID.String(), Name: d.Name(), IsDefault: d.IsDefault != 0}
	}
	return out, nil
}

// OpenPlayback starts a playback device calling render for each block. An
// empty deviceID selects the system default.
func (m *Manager) OpenPlayback(deviceID string, blockFrames int, render RenderFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.playback != nil {
		return alreadyOpen("playback")
	}

	devInfo, err := m.resolveDevice(malgo.Playback, deviceID)
	if err != nil {
		return err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = uint32(m.channels)
	cfg.SampleRate = uint32(m.sampleRate)
	cfg.PeriodSizeInFrames = uint32(blockFrames)
	if devInfo != nil {
		cfg.Playback.DeviceID = devInfo.ID.Pointer()
	}

	scratch := make([]float32, blockFrames*m.channels)
	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, framecount uint32) {
			n := int(framecount) * m.channels
			if n > len(scratch) {
				n = len(scratch)
			}
			if err := render(scratch[:n]); err != nil {
				m.logger.Warn("render callback failed", "error", err)
				for i := range scratch[:n] {
					scratch[i] = 0
				}
			}
			floatsToBytesLE(scratch[:n], out)
		},
	}

	device, err := malgo.InitDevice(m.ctx.Context, cfg, callbacks)
	if err != nil {
		return deviceInitFailed("playback", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return deviceStartFailed("playback", err)
	}
	m.playback = device
	return nil
}

// OpenCapture starts a capture device delivering each block to onCapture.
func (m *Manager) OpenCapture(deviceID string, blockFrames int, onCapture CaptureFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.capture != nil {
		return alreadyOpen("capture")
	}

	devInfo, err := m.resolveDevice(malgo.Capture, deviceID)
	if err != nil {
		return err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = uint32(m.channels)
	cfg.SampleRate = uint32(m.sampleRate)
	cfg.PeriodSizeInFrames = uint32(blockFrames)
	if devInfo != nil {
		cfg.Capture.DeviceID = devInfo.ID.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, framecount uint32) {
			onCapture(bytesToFloatsLE(in, int(framecount)*m.channels))
		},
	}

	device, err := malgo.InitDevice(m.ctx.Context, cfg, callbacks)
	if err != nil {
		return deviceInitFailed("capture", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return deviceStartFailed("capture", err)
	}
	m.capture = device
	return nil
}

func (m *Manager) resolveDevice(kind malgo.DeviceType, deviceID string) (*malgo.DeviceInfo, error) {
	if deviceID == "" {
		return nil, nil
	}
	infos, err := m.ctx.Devices(kind)
	if err != nil {
		return nil, errors.Wrap(err).Component("devaudio").Category(errors.CategoryDevice).Build()
	}
	for i := range infos {
		if infos[i].ID.String() == deviceID {
			return &infos[i], nil
		}
	}
	return nil, deviceNotFound(deviceID)
}

// ClosePlayback stops and releases the playback device, if open.
func (m *Manager) ClosePlayback() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playback == nil {
		return nil
	}
	_ = m.playback.Stop()
	m.playback.Uninit()
	m.playback = nil
	return nil
}

// CloseCapture stops and releases the capture device, if open.
func (m *Manager) CloseCapture() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capture == nil {
		return nil
	}
	_ = m.capture.Stop()
	m.capture.Uninit()
	m.capture = nil
	return nil
}

// WatchDeviceChanges polls the device list every interval and invokes
// onChange whenever the capture or playback device set changes, since
// malgo exposes no native hot-plug notification.
func (m *Manager) WatchDeviceChanges(ctx context.Context, interval time.Duration, onChange func(playback, capture []DeviceInfo)) {
	ctx, cancel := context.WithCancel(ctx)
	m.hotplugCancel = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var lastPlaybackCount, lastCaptureCount int
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pb, err := m.ListPlaybackDevices()
				if err != nil {
					continue
				}
				cap_, err := m.ListCaptureDevices()
				if err != nil {
					continue
				}
				if len(pb) != lastPlaybackCount || len(cap_) != lastCaptureCount {
					lastPlaybackCount, lastCaptureCount = len(pb), len(cap_)
					onChange(pb, cap_)
				}
			}
		}
	}()
}

// Close stops any open devices and releases the malgo context.
func (m *Manager) Close() error {
	if m.hotplugCancel != nil {
		m.hotplugCancel()
	}
	_ = m.ClosePlayback()
	_ = m.CloseCapture()
	return m.ctx.Uninit()
}

func floatsToBytesLE(src []float32, dst []byte) {
	for i, v := range src {
		bits := math.Float32bits(v)
		dst[4*i] = byte(bits)
		dst[4*i+1] = byte(bits >> 8)
		dst[4*i+2] = byte(bits >> 16)
		dst[4*i+3] = byte(bits >> 24)
	}
}

func bytesToFloatsLE(src []byte, count int) []float32 {
	out := make([]float32, count)
	for i := 0; i < count && 4*i+3 < len(src); i++ {
		bits := uint32(src[4*i]) | uint32(src[4*i+1])<<8 | uint32(src[4*i+2])<<16 | uint32(src[4*i+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}

func alreadyOpen(kind string) error {
	return errors.New(errors.NewStd(kind + " device already open")).
		Category(errors.CategoryState).
		Component("devaudio").
		Build()
}

func deviceNotFound(id string) error {
	return errors.New(errors.NewStd("device not found")).
		Category(errors.CategoryNotFound).
		Component("devaudio").
		Context("device_id", id).
		Build()
}

func deviceInitFailed(kind string, err error) error {
	return errors.Wrap(err).
		Component("devaudio").
		Category(errors.CategoryDevice).
		Context("operation", "init_device").
		Context("kind", kind).
		Build()
}

func deviceStartFailed(kind string, err error) error {
	return errors.Wrap(err).
		Component("devaudio").
		Category(errors.CategoryDevice).
		Context("operation", "start_device").
		Context("kind", kind).
		Build()
}
