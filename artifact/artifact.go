// Package artifact manages the temporary audio file produced by one
// recording.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"hark/encoder"
)

const prefix = "hark-"

// ErrMissing is returned when an artifact does not exist or holds no audio.
var ErrMissing = errors.New("audio artifact missing or empty")

// Artifact is a reference to one temp file. The zero value refers to nothing.
type Artifact struct {
	Path string
}

// New picks a fresh, collision-free path in dir. No file is created.
func New(dir string) Artifact {
	return Artifact{Path: filepath.Join(dir, prefix+uuid.NewString()+encoder.Extension)}
}

func (a Artifact) IsZero() bool { return a.Path == "" }

// Size returns the file size, failing with ErrMissing when the file is
// absent or empty.
func (a Artifact) Size() (int64, error) {
	if a.IsZero() {
		return 0, ErrMissing
	}
	info, err := os.Stat(a.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("%s: %w", a.Path, ErrMissing)
	}
	if err != nil {
		return 0, err
	}
	if info.IsDir() || info.Size() == 0 {
		return 0, fmt.Errorf("%s: %w", a.Path, ErrMissing)
	}
	return info.Size(), nil
}

// ReadAll reads the whole artifact after checking it is non-empty.
func (a Artifact) ReadAll() ([]byte, error) {
	if _, err := a.Size(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(a.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", a.Path, ErrMissing)
	}
	return data, err
}

// Remove deletes the file. Removing an absent file is not an error.
func (a Artifact) Remove() error {
	if a.IsZero() {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Sweep deletes artifacts in dir older than maxAge, left behind by crashed
// runs. It returns the number of files removed.
func Sweep(dir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, encoder.Extension) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err == nil {
			removed++
		}
	}
	return removed, nil
}
