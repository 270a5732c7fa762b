package audio

import (
	"context"
	"errors"
	"fmt"

	"github.com/petems/wavspool/internal/config"
)

// Sample layout shared by every backend: mono, 32-bit IEEE float.
const (
	BitDepth       = 32
	BytesPerSample = BitDepth / 8
)

var (
	// ErrNoDevice is returned when no matching input device exists.
	ErrNoDevice = errors.New("no input device available")
	// ErrNoConfig is returned when the device advertises no usable input
	// configuration.
	ErrNoConfig = errors.New("no supported input configuration")
)

// SampleFormat names a sample encoding.
type SampleFormat string

const (
	FormatFloat32 SampleFormat = "f32"
	FormatInt16   SampleFormat = "s16"
	FormatInt24   SampleFormat = "s24"
	FormatInt32   SampleFormat = "s32"
	FormatUint8   SampleFormat = "u8"
	FormatUnknown SampleFormat = "unknown"
)

// StreamConfig is the negotiated stream layout. It is fixed once capture
// starts and shared read-only by the capture and writer sides.
type StreamConfig struct {
	Channels   int
	SampleRate int
	BitDepth   int
	Format     SampleFormat
}

func (c StreamConfig) String() string {
	return fmt.Sprintf("%dch %dHz %dbit %s", c.Channels, c.SampleRate, c.BitDepth, c.Format)
}

// ConfigRange is one supported input configuration as advertised by a
// device. Fixed-rate configurations have MinSampleRate == MaxSampleRate.
type ConfigRange struct {
	Channels      int
	MinSampleRate int
	MaxSampleRate int
	Format        SampleFormat
}

func (r ConfigRange) String() string {
	if r.MinSampleRate == r.MaxSampleRate {
		return fmt.Sprintf("%dch %dHz %s", r.Channels, r.MaxSampleRate, r.Format)
	}
	return fmt.Sprintf("%dch %d-%dHz %s", r.Channels, r.MinSampleRate, r.MaxSampleRate, r.Format)
}

// Callbacks receive stream events. Data runs on the backend's real-time
// thread and in is only valid for the duration of the call. Error may be
// called from any thread.
type Callbacks struct {
	Data  func(in []float32)
	Error func(err error)
}

// Capture defines the interface for audio capture
type Capture interface {
	SupportedConfigs() ([]ConfigRange, error)
	Start(ctx context.Context, cfg StreamConfig, cb Callbacks) error
	Stop() error
	ListDevices() ([]AudioDevice, error)
	Close() error
}

// AudioDevice represents an audio input device
type AudioDevice struct {
	ID      string
	Name    string
	Default bool
}

// New opens the capture backend named in cfg.
func New(cfg config.AudioConfig) (Capture, error) {
	switch cfg.Backend {
	case config.BackendPortAudio, "":
		return NewPortAudio(cfg)
	case config.BackendPulse:
		return NewPulse(cfg)
	case config.BackendMalgo:
		return NewMalgo(cfg)
	default:
		return nil, fmt.Errorf("unknown capture backend %q", cfg.Backend)
	}
}
