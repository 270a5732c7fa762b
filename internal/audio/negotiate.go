package audio

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/petems/wavspool/internal/config"
)

// SelectSampleRate picks the stream rate from the advertised ranges: the
// preferred rate when the highest advertised rate reaches it, otherwise the
// highest advertised rate.
func SelectSampleRate(ranges []ConfigRange, preferred int) (int, error) {
	maxRate := 0
	for _, r := range ranges {
		if r.MaxSampleRate > maxRate {
			maxRate = r.MaxSampleRate
		}
	}
	if maxRate <= 0 {
		return 0, ErrNoConfig
	}
	if maxRate >= preferred {
		return preferred, nil
	}
	return maxRate, nil
}

// Negotiate queries c for its supported configurations, logs each one and
// returns the mono float32 stream configuration to capture with.
func Negotiate(c Capture, log zerolog.Logger) (StreamConfig, error) {
	ranges, err := c.SupportedConfigs()
	if err != nil {
		return StreamConfig{}, fmt.Errorf("failed to query input configurations: %w", err)
	}

	for _, r := range ranges {
		log.Info().Stringer("format", r).Msg("Supported format")
	}

	rate, err := SelectSampleRate(ranges, config.PreferredSampleRate)
	if err != nil {
		return StreamConfig{}, err
	}

	sc := StreamConfig{
		Channels:   config.Channels,
		SampleRate: rate,
		BitDepth:   BitDepth,
		Format:     FormatFloat32,
	}
	log.Info().Stringer("stream", sc).Msg("Negotiated stream configuration")
	return sc, nil
}
