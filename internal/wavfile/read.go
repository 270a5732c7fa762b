package wavfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/wav"
)

// Info is the header of a WAV file.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Format     int // WAVE format tag, 3 for IEEE float
}

// Float reports whether the file holds IEEE float samples.
func (i Info) Float() bool {
	return i.Format == formatIEEEFloat
}

// Read loads a 32-bit float WAV file written by Sink.
func Read(path string) (Info, []float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, nil, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if err := d.FwdToPCM(); err != nil {
		return Info{}, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	info := Info{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
		Format:     int(d.WavAudioFormat),
	}
	if !info.Float() || info.BitDepth != 32 {
		return info, nil, fmt.Errorf("%s: unsupported format %d with %d-bit samples", path, info.Format, info.BitDepth)
	}

	raw := make([]byte, d.PCMLen())
	if _, err := io.ReadFull(d.PCMChunk, raw); err != nil {
		return info, nil, fmt.Errorf("failed to read samples from %s: %w", path, err)
	}

	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return info, samples, nil
}
