// Package recorder owns the capture device and turns each start/stop cycle
// into one complete FLAC artifact on disk.
package recorder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"hark/artifact"
	"hark/audio"
	"hark/encoder"
	"hark/log"
)

type State int

const (
	Closed State = iota
	Idle
	Recording
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	ErrAlreadyOpen      = errors.New("already open")
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
	ErrClosed           = errors.New("device closed")
)

// DeviceError reports a failed open, start or stop.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// LevelFunc receives the RMS level (0..1) of each captured buffer.
type LevelFunc func(rms float64)

type Recorder struct {
	ctx     audio.Context
	device  *audio.DeviceInfo
	tempDir string

	mu         sync.Mutex
	state      State
	capture    audio.CaptureDevice
	cur        *take
	lastFrames uint64
	onLevel    LevelFunc
}

// take is one in-progress recording.
type take struct {
	artifact artifact.Artifact
	file     *os.File
	enc      encoder.Encoder
	blocks   chan []int16
	done     chan struct{}
	encErr   error

	bufMu   sync.Mutex
	pending []int16
	frames  uint64
	stopped bool
}

// New returns a closed recorder. device may be nil for the system default.
func New(ctx audio.Context, device *audio.DeviceInfo, tempDir string) *Recorder {
	return &Recorder{ctx: ctx, device: device, tempDir: tempDir}
}

// OnLevel installs fn for subsequent recordings.
func (r *Recorder) OnLevel(fn LevelFunc) {
	r.mu.Lock()
	r.onLevel = fn
	r.mu.Unlock()
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Recorder) DeviceName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.capture != nil {
		return r.capture.DeviceName()
	}
	if r.device != nil {
		return r.device.Name
	}
	return audio.DefaultDeviceName
}

// Frames returns the number of frames captured by the current or most
// recent recording.
func (r *Recorder) Frames() uint64 {
	r.mu.Lock()
	cur := r.cur
	last := r.lastFrames
	r.mu.Unlock()
	if cur == nil {
		return last
	}
	cur.bufMu.Lock()
	defer cur.bufMu.Unlock()
	return cur.frames
}

func (r *Recorder) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Closed {
		return &DeviceError{Op: "open", Err: ErrAlreadyOpen}
	}
	capture, err := r.ctx.NewCapture(r.device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		return &DeviceError{Op: "open", Err: err}
	}
	r.capture = capture
	r.state = Idle
	return nil
}

// Start begins writing a new artifact. A call while already recording fails
// and leaves the running recording untouched.
func (r *Recorder) Start() (artifact.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case Closed:
		return artifact.Artifact{}, &DeviceError{Op: "start", Err: ErrClosed}
	case Recording:
		return artifact.Artifact{}, &DeviceError{Op: "start", Err: ErrAlreadyRecording}
	}

	if err := os.MkdirAll(r.tempDir, 0700); err != nil {
		return artifact.Artifact{}, &DeviceError{Op: "start", Err: err}
	}
	a := artifact.New(r.tempDir)
	f, err := os.OpenFile(a.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return artifact.Artifact{}, &DeviceError{Op: "start", Err: err}
	}
	enc, err := encoder.NewFlac(f)
	if err != nil {
		f.Close()
		a.Remove()
		return artifact.Artifact{}, &DeviceError{Op: "start", Err: err}
	}

	t := &take{
		artifact: a,
		file:     f,
		enc:      enc,
		blocks:   make(chan []int16, 64),
		done:     make(chan struct{}),
	}
	go t.encodeLoop()

	onLevel := r.onLevel
	r.capture.SetCallback(func(data []byte, frameCount uint32) {
		t.feed(data, frameCount)
		if onLevel != nil && len(data) > 1 {
			onLevel(rms(data))
		}
	})

	if err := r.capture.Start(); err != nil {
		r.capture.ClearCallback()
		t.finish()
		a.Remove()
		return artifact.Artifact{}, &DeviceError{Op: "start", Err: err}
	}

	r.cur = t
	r.state = Recording
	return a, nil
}

// Stop finalizes the artifact so it is complete and readable.
func (r *Recorder) Stop() (artifact.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Recording {
		return artifact.Artifact{}, &DeviceError{Op: "stop", Err: ErrNotRecording}
	}

	t := r.stopLocked()
	if err := t.finish(); err != nil {
		t.artifact.Remove()
		return artifact.Artifact{}, &DeviceError{Op: "stop", Err: err}
	}
	log.Encoded(t.enc.TotalFrames(), t.enc.EncodeTime())
	return t.artifact, nil
}

func (r *Recorder) stopLocked() *take {
	r.capture.Stop()
	r.capture.ClearCallback()
	t := r.cur
	r.cur = nil
	r.state = Idle
	t.bufMu.Lock()
	r.lastFrames = t.frames
	t.bufMu.Unlock()
	return t
}

// Close releases the device from any state. A recording in progress is
// abandoned and its artifact deleted. Close is idempotent.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Recording {
		t := r.stopLocked()
		t.finish()
		t.artifact.Remove()
	}
	if r.capture != nil {
		r.capture.Close()
		r.capture = nil
	}
	r.state = Closed
}

func (t *take) encodeLoop() {
	defer close(t.done)
	for block := range t.blocks {
		if t.encErr != nil {
			continue
		}
		t.encErr = t.enc.EncodeBlock(block)
	}
}

// feed runs on the audio thread.
func (t *take) feed(pcm []byte, frameCount uint32) {
	t.bufMu.Lock()
	defer t.bufMu.Unlock()
	if t.stopped {
		return
	}
	t.frames += uint64(frameCount)
	for i := 0; i+1 < len(pcm); i += 2 {
		t.pending = append(t.pending, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	for len(t.pending) >= encoder.BlockSize {
		block := make([]int16, encoder.BlockSize)
		copy(block, t.pending)
		t.pending = t.pending[encoder.BlockSize:]
		t.blocks <- block
	}
}

// finish flushes the trailing partial block, waits for the encoder and
// closes the file.
func (t *take) finish() error {
	t.bufMu.Lock()
	if !t.stopped {
		t.stopped = true
		if len(t.pending) > 0 {
			t.blocks <- t.pending
			t.pending = nil
		}
		close(t.blocks)
	}
	t.bufMu.Unlock()
	<-t.done

	err := t.encErr
	if cerr := t.enc.Close(); err == nil {
		err = cerr
	}
	if cerr := t.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func rms(pcm []byte) float64 {
	var sum float64
	n := len(pcm) / 2
	for i := 0; i+1 < len(pcm); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i:]))) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
