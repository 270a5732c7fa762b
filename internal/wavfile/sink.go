// Package wavfile writes and reads the recorder's output files: 32-bit IEEE
// float WAV, one file per flush, named by the local time of the flush.
package wavfile

import (
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"

	"github.com/petems/wavspool/internal/audio"
)

// formatIEEEFloat is the WAVE_FORMAT_IEEE_FLOAT format tag.
const formatIEEEFloat = 3

// chunkSamples bounds the scratch buffer used while encoding.
const chunkSamples = 16 * 1024

// Sink creates one finalized WAV file per call.
type Sink struct {
	log zerolog.Logger
}

func NewSink(log zerolog.Logger) *Sink {
	return &Sink{log: log}
}

// WriteFile writes samples to path. The data goes to path+".part" first and
// is renamed into place once the header is patched and the file is synced,
// so path only ever holds a complete file. On error the part file is
// removed. samples is not retained.
func (s *Sink) WriteFile(path string, cfg audio.StreamConfig, samples []float32) (err error) {
	if cfg.BitDepth != 32 || cfg.Format != audio.FormatFloat32 {
		return fmt.Errorf("unsupported sample layout %s", cfg)
	}

	tmpPath := path + ".part"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}
	defer func() {
		if err != nil {
			out.Close()
			os.Remove(tmpPath)
		}
	}()

	enc := wav.NewEncoder(out, cfg.SampleRate, cfg.BitDepth, cfg.Channels, formatIEEEFloat)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: cfg.Channels,
			SampleRate:  cfg.SampleRate,
		},
		SourceBitDepth: cfg.BitDepth,
		Data:           make([]int, 0, min(chunkSamples, max(len(samples), 1))),
	}
	progress := newProgress(path, len(samples), s.log)

	// The encoder only emits the header on Write, so an empty flush still
	// goes through one (empty) Write.
	for off := 0; ; off += chunkSamples {
		end := min(off+chunkSamples, len(samples))
		buf.Data = buf.Data[:0]
		for _, v := range samples[off:end] {
			// The encoder stores 32-bit values as int32; carrying the float
			// bits through int keeps them intact.
			buf.Data = append(buf.Data, int(math.Float32bits(v)))
		}
		if err := enc.Write(buf); err != nil {
			return fmt.Errorf("failed to write samples: %w", err)
		}
		progress.add(end - off)
		if end == len(samples) {
			break
		}
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize header: %w", err)
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmpPath, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
