package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/petems/wavspool/internal/queue"
)

// Recorder constants. They are fixed for every run and not exposed as flags.
const (
	PreferredSampleRate = 48000
	Channels            = 1

	// CacheSizeBytes is the memory budget for buffered audio; half of it is
	// accumulated before a file is written.
	CacheSizeBytes      = 512 * 1024 * 1024
	FlushThresholdBytes = CacheSizeBytes / 2
)

// Capture backends.
const (
	BackendPortAudio = "portaudio"
	BackendPulse     = "pulse"
	BackendMalgo     = "malgo"
)

type Config struct {
	OutputDir    string
	LogLevel     string
	MetricsAddr  string
	PollInterval time.Duration
	Audio        AudioConfig
	Queue        QueueConfig
}

type AudioConfig struct {
	Backend         string
	DeviceID        string // empty selects the system default
	FramesPerBuffer int    // 0 lets the backend choose
}

type QueueConfig struct {
	Capacity int    // in blocks
	Overflow string // see queue.ParsePolicy
}

// Default returns the configuration used when no flags are given.
func Default() *Config {
	return &Config{
		OutputDir:    ".",
		LogLevel:     "info",
		PollInterval: 100 * time.Millisecond,
		Audio: AudioConfig{
			Backend:         BackendPortAudio,
			FramesPerBuffer: 512,
		},
		Queue: QueueConfig{
			Capacity: 4096,
			Overflow: "drop-oldest",
		},
	}
}

// RegisterFlags binds the configurable fields to fs, using the current
// values as defaults.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.OutputDir, "output-dir", "o", c.OutputDir, "directory the WAV files are written to")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (trace, debug, info, warn, error)")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "serve Prometheus metrics on this address (disabled when empty)")
	fs.DurationVar(&c.PollInterval, "poll-interval", c.PollInterval, "how often the writer and key watcher wake up when idle")
	fs.StringVarP(&c.Audio.Backend, "backend", "b", c.Audio.Backend, "capture backend (portaudio, pulse, malgo)")
	fs.StringVarP(&c.Audio.DeviceID, "device", "d", c.Audio.DeviceID, "input device name (system default when empty)")
	fs.IntVar(&c.Audio.FramesPerBuffer, "frames-per-buffer", c.Audio.FramesPerBuffer, "frames per capture callback (0 lets the backend choose)")
	fs.IntVar(&c.Queue.Capacity, "queue-capacity", c.Queue.Capacity, "number of captured blocks buffered between capture and writer")
	fs.StringVar(&c.Queue.Overflow, "overflow", c.Queue.Overflow, "what to discard when the queue is full (drop-oldest, drop-newest)")
}

// Validate checks the values that flags can set.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output directory must not be empty")
	}
	switch c.Audio.Backend {
	case BackendPortAudio, BackendPulse, BackendMalgo:
	default:
		return fmt.Errorf("unknown capture backend %q", c.Audio.Backend)
	}
	if c.Audio.FramesPerBuffer < 0 {
		return fmt.Errorf("frames per buffer must not be negative, got %d", c.Audio.FramesPerBuffer)
	}
	if c.Queue.Capacity < 1 {
		return fmt.Errorf("queue capacity must be at least 1, got %d", c.Queue.Capacity)
	}
	if _, err := queue.ParsePolicy(c.Queue.Overflow); err != nil {
		return err
	}
	if c.PollInterval <= 0 || c.PollInterval > time.Second {
		return fmt.Errorf("poll interval must be in (0, 1s], got %s", c.PollInterval)
	}
	return nil
}
