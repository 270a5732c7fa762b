package audio

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/petems/wavspool/internal/config"
)

// standardRates are probed because PortAudio answers "is this rate
// supported" rather than listing ranges.
var standardRates = []int{8000, 11025, 16000, 22050, 32000, 44100, 48000, 88200, 96000, 176400, 192000}

type portAudioCapture struct {
	deviceID        string
	framesPerBuffer int
	stream          *portaudio.Stream
}

// NewPortAudio creates a new PortAudio-based audio capture
func NewPortAudio(cfg config.AudioConfig) (Capture, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioCapture{
		deviceID:        cfg.DeviceID,
		framesPerBuffer: cfg.FramesPerBuffer,
	}, nil
}

func (p *portAudioCapture) device() (*portaudio.DeviceInfo, error) {
	if p.deviceID == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == p.deviceID && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoDevice, p.deviceID)
}

func (p *portAudioCapture) params(device *portaudio.DeviceInfo, sampleRate int) portaudio.StreamParameters {
	frames := p.framesPerBuffer
	if frames == 0 {
		frames = portaudio.FramesPerBufferUnspecified
	}
	return portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: config.Channels,
			Latency:  device.DefaultHighInputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: frames,
	}
}

// SupportedConfigs probes the standard rates for mono float32 input.
func (p *portAudioCapture) SupportedConfigs() ([]ConfigRange, error) {
	device, err := p.device()
	if err != nil {
		return nil, err
	}

	var ranges []ConfigRange
	probe := func([]float32) {}
	for _, rate := range standardRates {
		if err := portaudio.IsFormatSupported(p.params(device, rate), probe); err != nil {
			continue
		}
		ranges = append(ranges, ConfigRange{
			Channels:      config.Channels,
			MinSampleRate: rate,
			MaxSampleRate: rate,
			Format:        FormatFloat32,
		})
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoConfig, device.Name)
	}
	return ranges, nil
}

func (p *portAudioCapture) Start(ctx context.Context, cfg StreamConfig, cb Callbacks) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	device, err := p.device()
	if err != nil {
		return err
	}

	callback := func(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		if flags&portaudio.InputOverflow != 0 && cb.Error != nil {
			cb.Error(fmt.Errorf("input overflow on %s", device.Name))
		}
		cb.Data(in)
	}

	stream, err := portaudio.OpenStream(p.params(device, cfg.SampleRate), callback)
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	p.stream = stream
	return nil
}

func (p *portAudioCapture) Stop() error {
	if p.stream != nil {
		return p.stream.Stop()
	}
	return nil
}

func (p *portAudioCapture) ListDevices() ([]AudioDevice, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]AudioDevice, 0, len(devices))
	defaultDevice, _ := portaudio.DefaultInputDevice()

	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, AudioDevice{
				ID:      d.Name,
				Name:    d.Name,
				Default: d == defaultDevice,
			})
		}
	}

	return result, nil
}

func (p *portAudioCapture) Close() error {
	if p.stream != nil {
		p.stream.Close()
		p.stream = nil
	}
	return portaudio.Terminate()
}
