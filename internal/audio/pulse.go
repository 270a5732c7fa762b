package audio

import (
	"context"
	"errors"
	"fmt"

	"github.com/jfreymuth/pulse"

	"github.com/petems/wavspool/internal/config"
)

// The PulseAudio server resamples to whatever rate a record stream asks
// for, so a source supports every rate up to the server maximum.
const (
	pulseMinRate = 1
	pulseMaxRate = 384000
)

// errPulseClosed reports a record stream the server closed on its own, for
// example when the source was unplugged.
var errPulseClosed = errors.New("record stream closed by the PulseAudio server")

// recordStream is the part of *pulse.RecordStream the backend drives.
type recordStream interface {
	Start()
	Stop()
	Close()
	Closed() bool
	Running() bool
}

type pulseCapture struct {
	deviceID string
	client   *pulse.Client
	stream   recordStream
	cb       Callbacks
}

// NewPulse connects to the PulseAudio server.
func NewPulse(cfg config.AudioConfig) (Capture, error) {
	client, err := pulse.NewClient(pulse.ClientApplicationName("wavspool"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PulseAudio: %w", err)
	}
	return &pulseCapture{deviceID: cfg.DeviceID, client: client}, nil
}

func (p *pulseCapture) source() (*pulse.Source, error) {
	if p.deviceID == "" {
		source, err := p.client.DefaultSource()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
		}
		return source, nil
	}

	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate sources: %w", err)
	}
	for _, s := range sources {
		if s.Name() == p.deviceID {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoDevice, p.deviceID)
}

func (p *pulseCapture) SupportedConfigs() ([]ConfigRange, error) {
	if _, err := p.source(); err != nil {
		return nil, err
	}
	return []ConfigRange{{
		Channels:      config.Channels,
		MinSampleRate: pulseMinRate,
		MaxSampleRate: pulseMaxRate,
		Format:        FormatFloat32,
	}}, nil
}

func (p *pulseCapture) Start(ctx context.Context, cfg StreamConfig, cb Callbacks) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	source, err := p.source()
	if err != nil {
		return err
	}

	stream, err := p.client.NewRecord(
		func(in []float32) { cb.Data(in) },
		pulse.RecordMono,
		pulse.RecordSampleRate(cfg.SampleRate),
		pulse.RecordSource(source),
		pulse.RecordMediaName("wavspool capture"),
	)
	if err != nil {
		return fmt.Errorf("failed to create record stream: %w", err)
	}

	if got := stream.SampleRate(); got != cfg.SampleRate {
		stream.Close()
		return fmt.Errorf("record stream opened at %d Hz, want %d Hz", got, cfg.SampleRate)
	}

	stream.Start()
	p.stream = stream
	p.cb = cb
	return nil
}

// Stop halts the record stream. The library has no error callback, so a
// stream the server already closed is reported through Callbacks.Error here.
func (p *pulseCapture) Stop() error {
	if p.stream == nil {
		return nil
	}
	if p.stream.Closed() {
		if p.cb.Error != nil {
			p.cb.Error(errPulseClosed)
		}
		return nil
	}
	if p.stream.Running() {
		p.stream.Stop()
	}
	return nil
}

func (p *pulseCapture) ListDevices() ([]AudioDevice, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	var defaultName string
	if def, err := p.client.DefaultSource(); err == nil {
		defaultName = def.Name()
	}

	result := make([]AudioDevice, 0, len(sources))
	for _, s := range sources {
		result = append(result, AudioDevice{
			ID:      s.Name(),
			Name:    s.Name(),
			Default: s.Name() == defaultName,
		})
	}
	return result, nil
}

func (p *pulseCapture) Close() error {
	if p.stream != nil {
		p.stream.Close()
		p.stream = nil
	}
	p.client.Close()
	return nil
}
