package recorder

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"hark/audio"
	"hark/encoder"
)

// pcmOf returns n frames of a simple ramp.
func pcmOf(n int) []byte {
	pcm := make([]byte, n*2)
	for i := range n {
		v := int16((i % 400) * 50)
		pcm[i*2] = byte(v)
		pcm[i*2+1] = byte(v >> 8)
	}
	return pcm
}

func newOpen(t *testing.T, pcm []byte) (*Recorder, *audio.FakeContext) {
	t.Helper()
	ctx := audio.NewFakeContext(pcm, false)
	r := New(ctx, nil, t.TempDir())
	if err := r.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(r.Close)
	return r, ctx
}

func requireDeviceError(t *testing.T, err error, op string, target error) {
	t.Helper()
	var de *DeviceError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DeviceError", err)
	}
	if de.Op != op {
		t.Errorf("Op = %q, want %q", de.Op, op)
	}
	if target != nil && !errors.Is(err, target) {
		t.Errorf("err = %v, want %v", err, target)
	}
}

func TestRecordCycle(t *testing.T) {
	frames := encoder.BlockSize*2 + 300
	r, _ := newOpen(t, pcmOf(frames))

	if r.State() != Idle {
		t.Fatalf("state = %v, want idle", r.State())
	}
	started, err := r.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if r.State() != Recording {
		t.Fatalf("state = %v, want recording", r.State())
	}

	stopped, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if stopped.Path != started.Path {
		t.Errorf("Stop returned %s, Start allocated %s", stopped.Path, started.Path)
	}
	if r.State() != Idle {
		t.Errorf("state = %v, want idle", r.State())
	}
	if r.Frames() != uint64(frames) {
		t.Errorf("Frames = %d, want %d", r.Frames(), frames)
	}

	data, err := os.ReadFile(stopped.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data[:4]) != "fLaC" {
		t.Error("artifact is not a FLAC stream")
	}
}

func TestStartTwiceKeepsFirstArtifact(t *testing.T) {
	r, _ := newOpen(t, pcmOf(encoder.BlockSize))

	first, err := r.Start()
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Start()
	requireDeviceError(t, err, "start", ErrAlreadyRecording)
	if !second.IsZero() {
		t.Errorf("second Start returned artifact %s", second.Path)
	}
	if r.State() != Recording {
		t.Errorf("state = %v, want recording", r.State())
	}

	stopped, err := r.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if stopped.Path != first.Path {
		t.Errorf("Stop returned %s, want %s", stopped.Path, first.Path)
	}
	if n, err := stopped.Size(); err != nil || n == 0 {
		t.Errorf("first artifact Size = %d, %v", n, err)
	}

	entries, _ := os.ReadDir(filepath.Dir(first.Path))
	if len(entries) != 1 {
		t.Errorf("temp dir holds %d files, want 1", len(entries))
	}
}

func TestStopWhenNotRecording(t *testing.T) {
	r, _ := newOpen(t, nil)
	_, err := r.Stop()
	requireDeviceError(t, err, "stop", ErrNotRecording)
	if r.State() != Idle {
		t.Errorf("state = %v, want idle", r.State())
	}
}

func TestOpenFailureStaysClosed(t *testing.T) {
	ctx := audio.NewFakeContext(nil, false)
	ctx.CaptureErr = errors.New("hardware busy")
	r := New(ctx, nil, t.TempDir())

	requireDeviceError(t, r.Open(), "open", ctx.CaptureErr)
	if r.State() != Closed {
		t.Errorf("state = %v, want closed", r.State())
	}
	_, err := r.Start()
	requireDeviceError(t, err, "start", ErrClosed)
}

func TestOpenTwice(t *testing.T) {
	r, _ := newOpen(t, nil)
	requireDeviceError(t, r.Open(), "open", ErrAlreadyOpen)
}

func TestStartFailureReturnsToIdle(t *testing.T) {
	ctx := audio.NewFakeContext(nil, false)
	ctx.StartErr = errors.New("device vanished")
	dir := t.TempDir()
	r := New(ctx, nil, dir)
	if err := r.Open(); err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	_, err := r.Start()
	requireDeviceError(t, err, "start", ctx.StartErr)
	if r.State() != Idle {
		t.Errorf("state = %v, want idle", r.State())
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("failed start left %d files behind", len(entries))
	}
}

func TestCloseIdempotent(t *testing.T) {
	t.Run("from idle", func(t *testing.T) {
		r, ctx := newOpen(t, nil)
		r.Close()
		r.Close()
		if r.State() != Closed {
			t.Errorf("state = %v, want closed", r.State())
		}
		if !ctx.Captures()[0].Closed() {
			t.Error("capture device not released")
		}
	})

	t.Run("from recording", func(t *testing.T) {
		r, ctx := newOpen(t, pcmOf(1000))
		a, err := r.Start()
		if err != nil {
			t.Fatal(err)
		}
		r.Close()
		r.Close()
		if r.State() != Closed {
			t.Errorf("state = %v, want closed", r.State())
		}
		if !ctx.Captures()[0].Closed() {
			t.Error("capture device not released")
		}
		if _, err := os.Stat(a.Path); !os.IsNotExist(err) {
			t.Error("abandoned artifact not removed")
		}
	})

	t.Run("never opened", func(t *testing.T) {
		r := New(audio.NewFakeContext(nil, false), nil, t.TempDir())
		r.Close()
		if r.State() != Closed {
			t.Errorf("state = %v, want closed", r.State())
		}
	})
}

func TestReopenAfterClose(t *testing.T) {
	r, ctx := newOpen(t, pcmOf(100))
	r.Close()
	if err := r.Open(); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if len(ctx.Captures()) != 2 {
		t.Errorf("captures = %d, want 2", len(ctx.Captures()))
	}
}

func TestUniqueArtifactPerRecording(t *testing.T) {
	r, _ := newOpen(t, pcmOf(500))
	seen := map[string]bool{}
	for range 3 {
		if _, err := r.Start(); err != nil {
			t.Fatal(err)
		}
		a, err := r.Stop()
		if err != nil {
			t.Fatal(err)
		}
		if seen[a.Path] {
			t.Fatalf("artifact path reused: %s", a.Path)
		}
		seen[a.Path] = true
	}
}

func TestLevelCallback(t *testing.T) {
	r, _ := newOpen(t, pcmOf(4000))
	var calls atomic.Int32
	r.OnLevel(func(level float64) {
		if level < 0 || level > 1 {
			t.Errorf("level %f out of range", level)
		}
		calls.Add(1)
	})
	if _, err := r.Start(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Stop(); err != nil {
		t.Fatal(err)
	}
	if calls.Load() == 0 {
		t.Error("level callback never invoked")
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{Closed: "closed", Idle: "idle", Recording: "recording", State(9): "State(9)"} {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestDeviceName(t *testing.T) {
	r := New(audio.NewFakeContext(nil, false), &audio.DeviceInfo{Name: "USB Mic"}, t.TempDir())
	if got := r.DeviceName(); got != "USB Mic" {
		t.Errorf("closed DeviceName = %q", got)
	}
	r.Open()
	defer r.Close()
	if got := r.DeviceName(); got != "fake" {
		t.Errorf("open DeviceName = %q", got)
	}
}
