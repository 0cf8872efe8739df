// Package clipboard copies transcripts to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"
	"strings"

	cb "github.com/atotto/clipboard"
)

var ErrEmpty = errors.New("nothing to copy")

// ErrUnsupported is returned when no clipboard backend (xclip, xsel,
// wl-copy, pbcopy) is available.
var ErrUnsupported = errors.New("clipboard not available")

func Copy(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmpty
	}
	if cb.Unsupported {
		return ErrUnsupported
	}
	return cb.WriteAll(text)
}

func Read() (string, error) {
	if cb.Unsupported {
		return "", ErrUnsupported
	}
	return cb.ReadAll()
}

// Check writes a probe string, reads it back and restores the previous
// contents.
func Check() error {
	prev, err := Read()
	if err != nil {
		return err
	}
	defer cb.WriteAll(prev)

	const probe = "hark clipboard check"
	if err := Copy(probe); err != nil {
		return err
	}
	got, err := Read()
	if err != nil {
		return err
	}
	if got != probe {
		return fmt.Errorf("clipboard read back %q, want %q", got, probe)
	}
	return nil
}
