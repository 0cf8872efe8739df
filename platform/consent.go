package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const grantValue = "granted"

// Consent asks the user before the microphone is used and remembers a
// "yes" in GrantFile.
type Consent struct {
	In        io.Reader
	Out       io.Writer
	GrantFile string
	Dir       string
}

func NewConsent() (*Consent, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("locating config dir: %w", err)
	}
	return &Consent{
		In:        os.Stdin,
		Out:       os.Stdout,
		GrantFile: filepath.Join(cfgDir, "hark", "microphone_grant"),
		Dir:       defaultTempDir(),
	}, nil
}

func (c *Consent) Name() string { return ModeConsent }

func (c *Consent) TempDir() (string, error) { return ensureDir(c.Dir) }

func (c *Consent) granted() bool {
	data, err := os.ReadFile(c.GrantFile)
	if err != nil {
		return false
	}
	first, _, _ := strings.Cut(string(data), "\n")
	return strings.TrimSpace(first) == grantValue
}

func (c *Consent) AcquireMicrophone(ctx context.Context) error {
	if c.granted() {
		return nil
	}

	fmt.Fprint(c.Out, "Allow hark to use the microphone? [y/N] ")

	answer := make(chan string, 1)
	go func() {
		line, err := readLine(c.In)
		if err != nil && line == "" {
			close(answer)
			return
		}
		answer <- line
	}()

	var line string
	select {
	case <-ctx.Done():
		fmt.Fprintln(c.Out)
		interrupt(c.In, answer)
		return fmt.Errorf("%w: %v", ErrPermissionDenied, ctx.Err())
	case l, ok := <-answer:
		if !ok {
			return fmt.Errorf("%w: no answer", ErrPermissionDenied)
		}
		line = l
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
	default:
		return ErrPermissionDenied
	}

	if err := os.MkdirAll(filepath.Dir(c.GrantFile), 0700); err != nil {
		return fmt.Errorf("saving grant: %w", err)
	}
	stamp := fmt.Sprintf("%s\n%s\n", grantValue, time.Now().Format(time.RFC3339))
	if err := os.WriteFile(c.GrantFile, []byte(stamp), 0600); err != nil {
		return fmt.Errorf("saving grant: %w", err)
	}
	return nil
}

// Revoke forgets a stored grant so the next run asks again.
func (c *Consent) Revoke() error {
	if err := os.Remove(c.GrantFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// readLine reads up to and including the first newline one byte at a time,
// leaving everything after it unread for later consumers of r.
func readLine(r io.Reader) (string, error) {
	var line []byte
	b := make([]byte, 1)
	for {
		n, err := r.Read(b)
		if n == 1 {
			line = append(line, b[0])
			if b[0] == '\n' {
				return string(line), nil
			}
		}
		if err != nil {
			return string(line), err
		}
	}
}

type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// interrupt unblocks a pending readLine when r supports read deadlines,
// waits for it and then clears the deadline. On other readers the read is
// left to finish on its own; cancellation only happens at shutdown.
func interrupt(r io.Reader, pending <-chan string) {
	d, ok := r.(deadliner)
	if !ok || d.SetReadDeadline(time.Now()) != nil {
		return
	}
	<-pending
	d.SetReadDeadline(time.Time{})
}
