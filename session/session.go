// Package session drives one push-to-talk cycle at a time: permission,
// recording, upload and the resulting status.
package session

import (
	"context"
	"errors"
	"sync"

	"hark/artifact"
	"hark/encoder"
	"hark/log"
	"hark/platform"
	"hark/transcriber"
)

type State int

const (
	Idle State = iota
	Recording
	Transcribing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Event is an input delivered by the UI.
type Event int

const (
	Press Event = iota
	Release
)

func (e Event) String() string {
	if e == Press {
		return "press"
	}
	return "release"
}

// MinFrames is the shortest recording that is uploaded (100ms).
const MinFrames = encoder.SampleRate / 10

const (
	StatusIdle         = "Hold to talk"
	StatusRecording    = "Recording..."
	StatusTranscribing = "Transcribing..."
	StatusComplete     = "Transcription complete"
	StatusTooShort     = "Recording too short"
)

var (
	ErrBusy         = errors.New("transcription in progress")
	ErrNotRecording = errors.New("not recording")
)

// Snapshot is an immutable view of the controller.
type Snapshot struct {
	State   State
	Text    string // transcript of the last successful cycle
	Kind    Kind
	Message string // failure message when State is Failed
	Status  string
}

// Recorder is the part of recorder.Recorder the controller uses.
type Recorder interface {
	Start() (artifact.Artifact, error)
	Stop() (artifact.Artifact, error)
	Frames() uint64
	DeviceName() string
}

// Transcriber is the part of transcriber.Client the controller uses.
type Transcriber interface {
	Transcribe(ctx context.Context, a artifact.Artifact, credential string) (*transcriber.Result, error)
	Warm()
}

type Config struct {
	IO          platform.IO
	Recorder    Recorder
	Transcriber Transcriber
	Credential  string
	Provider    string
	Model       string
	// OnChange is called after every transition, outside the lock.
	OnChange func(Snapshot)
}

type Controller struct {
	io         platform.IO
	rec        Recorder
	tr         Transcriber
	credential string
	provider   string
	model      string
	onChange   func(Snapshot)

	mu       sync.Mutex
	snap     Snapshot
	acquired bool
	denied   error
	count    int
}

func New(cfg Config) *Controller {
	return &Controller{
		io:         cfg.IO,
		rec:        cfg.Recorder,
		tr:         cfg.Transcriber,
		credential: cfg.Credential,
		provider:   cfg.Provider,
		model:      cfg.Model,
		onChange:   cfg.OnChange,
		snap:       Snapshot{State: Idle, Status: StatusIdle},
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Count returns the number of successful transcriptions.
func (c *Controller) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Acquire runs the permission gate once. A denial is sticky: every later
// Press fails with the same error and never reaches the recorder.
func (c *Controller) Acquire(ctx context.Context) error {
	c.mu.Lock()
	err := c.acquireLocked(ctx)
	var snap Snapshot
	if err != nil {
		snap = c.failLocked(err)
	}
	c.mu.Unlock()
	if err != nil {
		c.notify(snap)
	}
	return err
}

func (c *Controller) acquireLocked(ctx context.Context) error {
	if c.denied != nil {
		return c.denied
	}
	if c.acquired {
		return nil
	}
	err := c.io.AcquireMicrophone(ctx)
	log.Permission(c.io.Name(), err == nil)
	if err != nil {
		if !errors.Is(err, platform.ErrPermissionDenied) {
			err = errors.Join(platform.ErrPermissionDenied, err)
		}
		c.denied = err
		return err
	}
	c.acquired = true
	return nil
}

// Handle applies ev. Release blocks until the transcription finishes; a
// Press arriving meanwhile is rejected with ErrBusy.
func (c *Controller) Handle(ctx context.Context, ev Event) error {
	switch ev {
	case Press:
		return c.press(ctx)
	case Release:
		return c.release(ctx)
	}
	return nil
}

func (c *Controller) press(ctx context.Context) error {
	c.mu.Lock()
	switch c.snap.State {
	case Recording:
		c.mu.Unlock()
		return nil
	case Transcribing:
		c.mu.Unlock()
		return ErrBusy
	}

	if err := c.acquireLocked(ctx); err != nil {
		snap := c.failLocked(err)
		c.mu.Unlock()
		c.notify(snap)
		return err
	}

	if c.credential != "" {
		go c.tr.Warm()
	}

	a, err := c.rec.Start()
	if err != nil {
		log.Errorf("recording start failed: %v", err)
		snap := c.failLocked(err)
		c.mu.Unlock()
		c.notify(snap)
		return err
	}
	log.RecordingStart(c.rec.DeviceName(), a.Path)
	c.snap = Snapshot{State: Recording, Text: c.snap.Text, Status: StatusRecording}
	snap := c.snap
	c.mu.Unlock()
	c.notify(snap)
	return nil
}

func (c *Controller) release(ctx context.Context) error {
	c.mu.Lock()
	if c.snap.State != Recording {
		c.mu.Unlock()
		return ErrNotRecording
	}

	a, err := c.rec.Stop()
	if err != nil {
		log.Errorf("recording stop failed: %v", err)
		snap := c.failLocked(err)
		c.mu.Unlock()
		c.notify(snap)
		return err
	}

	frames := c.rec.Frames()
	audioS := float64(frames) / encoder.SampleRate
	log.RecordingStop(frames, audioS)

	if frames < MinFrames {
		a.Remove()
		c.snap = Snapshot{State: Idle, Text: c.snap.Text, Status: StatusTooShort}
		snap := c.snap
		c.mu.Unlock()
		c.notify(snap)
		return nil
	}

	c.snap = Snapshot{State: Transcribing, Text: c.snap.Text, Status: StatusTranscribing}
	snap := c.snap
	c.mu.Unlock()
	c.notify(snap)

	res, err := c.tr.Transcribe(ctx, a, c.credential)
	if rmErr := a.Remove(); rmErr != nil {
		log.Warnf("artifact cleanup failed: %v", rmErr)
	}

	c.mu.Lock()
	if err != nil {
		log.TranscriptionError(Classify(err).String(), err)
		snap = c.failLocked(err)
	} else {
		c.count++
		logMetrics(c.provider, c.model, audioS, res)
		log.TranscriptionText(res.Text)
		c.snap = Snapshot{State: Done, Text: res.Text, Status: StatusComplete}
		snap = c.snap
	}
	c.mu.Unlock()
	c.notify(snap)
	return err
}

func (c *Controller) failLocked(err error) Snapshot {
	msg := Message(err)
	c.snap = Snapshot{
		State:   Failed,
		Text:    c.snap.Text,
		Kind:    Classify(err),
		Message: msg,
		Status:  msg,
	}
	return c.snap
}

func (c *Controller) notify(s Snapshot) {
	if c.onChange != nil {
		c.onChange(s)
	}
}

func logMetrics(provider, model string, audioS float64, res *transcriber.Result) {
	m := log.Metrics{
		Provider: provider,
		Model:    model,
		AudioS:   audioS,
		UploadKB: res.AudioKB,
		Attempts: res.Attempts,
	}
	if nm := res.Metrics; nm != nil {
		m.DNSTimeMs = ms(nm.DNS.Seconds())
		m.TLSTimeMs = ms(nm.TLS.Seconds())
		m.TTFBMs = ms(nm.TTFB.Seconds())
		m.TotalTimeMs = ms(nm.Total.Seconds())
		m.ConnReused = nm.ConnReused
		m.TLSProtocol = nm.TLSProtocol
	}
	log.TranscriptionMetrics(m)
}

func ms(s float64) float64 { return s * 1000 }
