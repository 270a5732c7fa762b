package wavfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const timestampLayout = "2006-01-02_15-04-05"

// Namer hands out file names from the local time at second resolution. A
// second that already produced a name, or whose name exists on disk, gets a
// numeric suffix: 2024-05-01_12-00-00.wav, 2024-05-01_12-00-00_1.wav, ...
type Namer struct {
	dir  string
	now  func() time.Time
	last string
	seq  int
}

func NewNamer(dir string) *Namer {
	return &Namer{dir: dir, now: time.Now}
}

// Next returns an unused path for the next file.
func (n *Namer) Next() (string, error) {
	base := n.now().Format(timestampLayout)
	if base != n.last {
		n.last = base
		n.seq = 0
	}

	for {
		name := base
		if n.seq > 0 {
			name = fmt.Sprintf("%s_%d", base, n.seq)
		}
		n.seq++

		path := filepath.Join(n.dir, name+".wav")
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check %s: %w", path, err)
		}
	}
}
