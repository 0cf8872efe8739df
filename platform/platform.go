// Package platform holds the capability differences between hosts: how
// microphone access is obtained and where artifacts are stored.
package platform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrPermissionDenied = errors.New("microphone permission not granted")

type IO interface {
	Name() string
	// AcquireMicrophone blocks until access is granted or refused. A refusal
	// wraps ErrPermissionDenied.
	AcquireMicrophone(ctx context.Context) error
	// TempDir returns the artifact directory, creating it if needed.
	TempDir() (string, error)
}

const (
	ModePassive = "passive"
	ModeConsent = "consent"
)

// Select builds the IO for a configured permission mode.
func Select(mode string) (IO, error) {
	switch mode {
	case "", ModePassive:
		return NewPassive(), nil
	case ModeConsent:
		return NewConsent()
	default:
		return nil, fmt.Errorf("unknown permission mode %q (use %s or %s)", mode, ModePassive, ModeConsent)
	}
}

func defaultTempDir() string {
	return filepath.Join(os.TempDir(), "hark")
}

func ensureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	return dir, nil
}

// Passive is for hosts where the sound server mediates access itself
// (PulseAudio, PipeWire, CoreAudio's first-open prompt).
type Passive struct {
	Dir string
}

func NewPassive() *Passive {
	return &Passive{Dir: defaultTempDir()}
}

func (p *Passive) Name() string { return ModePassive }

func (p *Passive) AcquireMicrophone(context.Context) error { return nil }

func (p *Passive) TempDir() (string, error) { return ensureDir(p.Dir) }
