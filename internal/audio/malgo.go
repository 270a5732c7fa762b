package audio

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/gen2brain/malgo"

	"github.com/petems/wavspool/internal/config"
)

// miniaudio reports a native data format with sample rate 0 when the device
// accepts any rate in its standard range.
const (
	malgoMinRate = 8000
	malgoMaxRate = 384000
)

type malgoCapture struct {
	deviceID string
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	id       malgo.DeviceID // kept alive while the device holds a pointer to it
	stopping atomic.Bool
}

// NewMalgo initializes a miniaudio context.
func NewMalgo(cfg config.AudioConfig) (Capture, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize miniaudio: %w", err)
	}
	return &malgoCapture{deviceID: cfg.DeviceID, ctx: ctx}, nil
}

func (m *malgoCapture) lookup() (malgo.DeviceInfo, error) {
	infos, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	if len(infos) == 0 {
		return malgo.DeviceInfo{}, ErrNoDevice
	}

	for _, info := range infos {
		if m.deviceID == "" && info.IsDefault != 0 {
			return info, nil
		}
		if m.deviceID != "" && info.Name() == m.deviceID {
			return info, nil
		}
	}
	if m.deviceID == "" {
		return infos[0], nil
	}
	return malgo.DeviceInfo{}, fmt.Errorf("%w: %s", ErrNoDevice, m.deviceID)
}

func malgoFormat(f malgo.FormatType) SampleFormat {
	switch f {
	case malgo.FormatF32:
		return FormatFloat32
	case malgo.FormatS16:
		return FormatInt16
	case malgo.FormatS24:
		return FormatInt24
	case malgo.FormatS32:
		return FormatInt32
	case malgo.FormatU8:
		return FormatUint8
	default:
		return FormatUnknown
	}
}

// SupportedConfigs lists the device's native data formats. miniaudio
// converts format and channel count, so every entry counts toward the rate.
func (m *malgoCapture) SupportedConfigs() ([]ConfigRange, error) {
	info, err := m.lookup()
	if err != nil {
		return nil, err
	}

	full, err := m.ctx.DeviceInfo(malgo.Capture, info.ID, malgo.Shared)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", info.Name(), err)
	}

	ranges := make([]ConfigRange, 0, full.FormatCount)
	for i := 0; i < int(full.FormatCount) && i < len(full.Formats); i++ {
		f := full.Formats[i]
		r := ConfigRange{
			Channels:      int(f.Channels),
			MinSampleRate: int(f.SampleRate),
			MaxSampleRate: int(f.SampleRate),
			Format:        malgoFormat(f.Format),
		}
		if f.SampleRate == 0 {
			r.MinSampleRate, r.MaxSampleRate = malgoMinRate, malgoMaxRate
		}
		ranges = append(ranges, r)
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoConfig, info.Name())
	}
	return ranges, nil
}

func (m *malgoCapture) Start(ctx context.Context, cfg StreamConfig, cb Callbacks) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := m.lookup()
	if err != nil {
		return err
	}
	m.id = info.ID

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.Capture.DeviceID = m.id.Pointer()
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	channels := cfg.Channels
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, frames uint32) {
			n := int(frames) * channels
			if n == 0 || len(in) < n*BytesPerSample {
				return
			}
			cb.Data(unsafe.Slice((*float32)(unsafe.Pointer(&in[0])), n))
		},
		Stop: func() {
			if !m.stopping.Load() && cb.Error != nil {
				cb.Error(errors.New("capture device stopped unexpectedly"))
			}
		},
	}

	m.stopping.Store(false)
	device, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	m.device = device
	return nil
}

func (m *malgoCapture) Stop() error {
	if m.device == nil {
		return nil
	}
	m.stopping.Store(true)
	return m.device.Stop()
}

func (m *malgoCapture) ListDevices() ([]AudioDevice, error) {
	infos, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]AudioDevice, 0, len(infos))
	for _, info := range infos {
		result = append(result, AudioDevice{
			ID:      info.Name(),
			Name:    info.Name(),
			Default: info.IsDefault != 0,
		})
	}
	return result, nil
}

func (m *malgoCapture) Close() error {
	if m.device != nil {
		m.stopping.Store(true)
		m.device.Uninit()
		m.device = nil
	}
	if err := m.ctx.Uninit(); err != nil {
		return err
	}
	m.ctx.Free()
	return nil
}
