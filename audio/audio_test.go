package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestIsBluetooth(t *testing.T) {
	for _, tt := range []struct {
		name string
		want bool
	}{
		{"AirPods Pro", true},
		{"Bose QC45", true},
		{"Headset (BT)", true},
		{"Built-in Microphone", false},
		{"alsa_input.pci-0000_00_1f.3.analog-stereo", false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBluetooth(tt.name); got != tt.want {
				t.Errorf("IsBluetooth(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestFindDevice(t *testing.T) {
	ctx := NewFakeContext(nil, false)
	dev, err := FindDevice(ctx, "fake")
	if err != nil {
		t.Fatal(err)
	}
	if dev == nil || dev.Name != "fake" {
		t.Fatalf("FindDevice(fake) = %+v", dev)
	}
	if _, err := FindDevice(ctx, "missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("FindDevice(missing) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestPrintDevices(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintDevices(&buf, NewFakeContext(nil, false)); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "fake" {
		t.Errorf("got %q", buf.String())
	}
}

func TestFakeCaptureDeliversAllPCM(t *testing.T) {
	pcm := make([]byte, 5000)
	ctx := NewFakeContext(pcm, false)
	capture, err := ctx.NewCapture(nil, CaptureConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}

	var total int
	var frames uint32
	capture.SetCallback(func(data []byte, n uint32) {
		total += len(data)
		frames += n
	})
	if err := capture.Start(); err != nil {
		t.Fatal(err)
	}
	capture.Stop()

	if total != len(pcm) {
		t.Errorf("delivered %d bytes, want %d", total, len(pcm))
	}
	if frames != uint32(len(pcm)/2) {
		t.Errorf("frames = %d, want %d", frames, len(pcm)/2)
	}
}

func TestFakeCaptureRealtimeStops(t *testing.T) {
	ctx := NewFakeContext(make([]byte, 2048), true)
	capture, _ := ctx.NewCapture(nil, CaptureConfig{SampleRate: 16000, Channels: 1})

	var mu sync.Mutex
	calls := 0
	capture.SetCallback(func([]byte, uint32) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	if err := capture.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	capture.Stop()

	mu.Lock()
	after := calls
	mu.Unlock()
	if after == 0 {
		t.Fatal("expected callbacks in realtime mode")
	}
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != after {
		t.Errorf("callbacks continued after Stop: %d -> %d", after, calls)
	}
}

func TestFakeContextFaults(t *testing.T) {
	boom := errors.New("busy")
	ctx := NewFakeContext(nil, false)
	ctx.CaptureErr = boom
	if _, err := ctx.NewCapture(nil, CaptureConfig{}); !errors.Is(err, boom) {
		t.Errorf("NewCapture err = %v, want %v", err, boom)
	}

	ctx = NewFakeContext(nil, false)
	ctx.StartErr = boom
	capture, err := ctx.NewCapture(nil, CaptureConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if err := capture.Start(); !errors.Is(err, boom) {
		t.Errorf("Start err = %v, want %v", err, boom)
	}
}

func TestFakeCaptureClosedRefusesStart(t *testing.T) {
	ctx := NewFakeContext(nil, false)
	capture, _ := ctx.NewCapture(nil, CaptureConfig{})
	capture.Close()
	capture.Close()
	if err := capture.Start(); err == nil {
		t.Error("expected Start on closed capture to fail")
	}
	if !ctx.Captures()[0].Closed() {
		t.Error("capture should report closed")
	}
}

func TestNewFakeContextFromWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	data := make([]byte, WAVHeaderSize+8)
	copy(data, "RIFF")
	binary.LittleEndian.PutUint16(data[WAVHeaderSize:], 1234)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	ctx, err := NewFakeContextFromWAV(path, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(ctx.pcm) != 8 {
		t.Errorf("pcm length = %d, want 8", len(ctx.pcm))
	}

	short := filepath.Join(t.TempDir(), "short.wav")
	os.WriteFile(short, []byte("RIFF"), 0644)
	if _, err := NewFakeContextFromWAV(short, false); err == nil {
		t.Error("expected error for truncated WAV")
	}
}
