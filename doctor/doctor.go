// Package doctor runs a non-interactive preflight of everything a recording
// cycle touches.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"hark/artifact"
	"hark/audio"
	"hark/config"
	"hark/encoder"
	"hark/platform"
	"hark/recorder"
	"hark/transcriber"
)

// Target is what the checks run against.
type Target struct {
	Config *config.Config
	Audio  audio.Context
	IO     platform.IO
	Client *transcriber.Client

	// CaptureFor is how long the capture check records.
	CaptureFor time.Duration
	// RoundTrip uploads the captured clip when a credential is configured.
	RoundTrip bool

	Hotkey    func() (string, error)
	Clipboard func() error
}

type check struct {
	name string
	run  func(ctx context.Context, t *Target, s *state) (string, error)
}

// state carries results between checks.
type state struct {
	device *audio.DeviceInfo
	clip   artifact.Artifact
}

var errSkipped = errors.New("skipped")

var checks = []check{
	{"configuration", checkConfig},
	{"artifact directory", checkTempDir},
	{"capture devices", checkDevices},
	{"microphone capture", checkCapture},
	{"endpoint", checkEndpoint},
	{"transcription round trip", checkRoundTrip},
	{"hotkey", checkHotkey},
	{"clipboard", checkClipboard},
}

// Run executes every check, printing one PASS/FAIL/SKIP line each, and
// returns an exit code (0=all pass, 1=any fail).
func Run(ctx context.Context, w io.Writer, t Target) int {
	fmt.Fprintln(w, "hark doctor - system diagnostics")
	fmt.Fprintln(w, "================================")

	failed := 0
	s := &state{}
	defer func() { s.clip.Remove() }()
	for i, c := range checks {
		msg, err := c.run(ctx, &t, s)
		prefix := fmt.Sprintf("[%d/%d] %-26s", i+1, len(checks), c.name)
		switch {
		case errors.Is(err, errSkipped):
			fmt.Fprintf(w, "%s SKIP %s\n", prefix, msg)
		case err != nil:
			failed++
			fmt.Fprintf(w, "%s FAIL %v\n", prefix, err)
		default:
			fmt.Fprintf(w, "%s PASS %s\n", prefix, msg)
		}
	}

	fmt.Fprintln(w)
	if failed > 0 {
		fmt.Fprintf(w, "%d check(s) failed.\n", failed)
		return 1
	}
	fmt.Fprintln(w, "All checks passed!")
	return 0
}

func checkConfig(_ context.Context, t *Target, _ *state) (string, error) {
	c := t.Config
	if !c.HasCredential() {
		return "", errors.New("HARK_API_KEY is not set")
	}
	return fmt.Sprintf("%s, model %s, permission %s", c.Provider, c.Model, c.Permission), nil
}

func checkTempDir(_ context.Context, t *Target, _ *state) (string, error) {
	dir, err := t.IO.TempDir()
	if err != nil {
		return "", err
	}
	return dir, nil
}

func checkDevices(_ context.Context, t *Target, s *state) (string, error) {
	devices, err := t.Audio.Devices()
	if err != nil {
		return "", fmt.Errorf("cannot list devices: %w", err)
	}
	if len(devices) == 0 {
		return "", errors.New("no capture devices found")
	}
	if name := t.Config.Device; name != "" {
		d, err := audio.FindDevice(t.Audio, name)
		if err != nil {
			return "", fmt.Errorf("configured device %q: %w", name, err)
		}
		s.device = d
		return fmt.Sprintf("%d found, using %s", len(devices), d.Name), nil
	}
	return fmt.Sprintf("%d found, using system default", len(devices)), nil
}

func checkCapture(ctx context.Context, t *Target, s *state) (string, error) {
	dir, err := t.IO.TempDir()
	if err != nil {
		return "", err
	}
	if err := t.IO.AcquireMicrophone(ctx); err != nil {
		return "", err
	}

	rec := recorder.New(t.Audio, s.device, dir)
	if err := rec.Open(); err != nil {
		return "", err
	}
	defer rec.Close()

	if _, err := rec.Start(); err != nil {
		return "", err
	}
	select {
	case <-time.After(t.CaptureFor):
	case <-ctx.Done():
	}
	a, err := rec.Stop()
	if err != nil {
		return "", err
	}

	frames := rec.Frames()
	if frames == 0 {
		a.Remove()
		return "", errors.New("no audio captured")
	}
	size, err := a.Size()
	if err != nil {
		return "", err
	}
	s.clip = a
	return fmt.Sprintf("%.1fs captured, %.1f KB %s", float64(frames)/encoder.SampleRate, float64(size)/1024, encoder.Format), nil
}

func checkEndpoint(ctx context.Context, t *Target, _ *state) (string, error) {
	start := time.Now()
	if err := t.Client.Reachable(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s reachable in %s", t.Client.Provider().URL, time.Since(start).Round(time.Millisecond)), nil
}

func checkRoundTrip(ctx context.Context, t *Target, s *state) (string, error) {
	switch {
	case !t.RoundTrip:
		return "disabled", errSkipped
	case !t.Config.HasCredential():
		return "no credential", errSkipped
	case s.clip.IsZero():
		return "no captured clip", errSkipped
	}

	res, err := t.Client.Transcribe(ctx, s.clip, t.Config.APIKey)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		text = "(no speech detected)"
	}
	return fmt.Sprintf("%q in %d attempt(s)", text, res.Attempts), nil
}

func checkHotkey(_ context.Context, t *Target, _ *state) (string, error) {
	if t.Hotkey == nil {
		return "not available", errSkipped
	}
	return t.Hotkey()
}

func checkClipboard(_ context.Context, t *Target, _ *state) (string, error) {
	if t.Clipboard == nil {
		return "not available", errSkipped
	}
	if err := t.Clipboard(); err != nil {
		return "", err
	}
	return "copy works", nil
}
