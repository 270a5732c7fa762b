package wavfile

import (
	"time"

	"github.com/rs/zerolog"
)

// progress logs how far a large write has got, at most every two seconds.
type progress struct {
	path    string
	total   int
	written int
	lastLog time.Time
	log     zerolog.Logger
}

func newProgress(path string, total int, log zerolog.Logger) *progress {
	return &progress{path: path, total: total, lastLog: time.Now(), log: log}
}

func (p *progress) add(n int) {
	p.written += n

	now := time.Now()
	if now.Sub(p.lastLog) < 2*time.Second || p.total == 0 {
		return
	}
	p.lastLog = now

	p.log.Info().
		Str("file", p.path).
		Float64("percent", float64(p.written)/float64(p.total)*100).
		Int("samples", p.written).
		Msg("Writing file")
}
