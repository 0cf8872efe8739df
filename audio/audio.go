// Package audio opens capture devices and delivers 16-bit mono PCM to a
// callback. PulseAudio backs Linux; miniaudio backs the rest.
package audio

import (
	"errors"
	"sync/atomic"
)

// DefaultDeviceName is reported when no device was chosen explicitly.
const DefaultDeviceName = "system default"

// ErrDeviceNotFound is returned by FindDevice for an unknown name.
var ErrDeviceNotFound = errors.New("capture device not found")

// DataCallback receives little-endian signed 16-bit PCM. data is only valid
// for the duration of the call.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	// NewCapture opens device, or the system default when device is nil.
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// FindDevice returns the device called name.
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i], nil
		}
	}
	return nil, ErrDeviceNotFound
}

func deviceName(d *DeviceInfo) string {
	if d == nil {
		return DefaultDeviceName
	}
	return d.Name
}

// callbackSlot lets the capture thread read the callback without locking.
type callbackSlot struct {
	p atomic.Pointer[DataCallback]
}

func (s *callbackSlot) SetCallback(cb DataCallback) { s.p.Store(&cb) }
func (s *callbackSlot) ClearCallback()              { s.p.Store(nil) }

func (s *callbackSlot) deliver(data []byte, frames uint32) {
	if cb := s.p.Load(); cb != nil {
		(*cb)(data, frames)
	}
}

func (s *callbackSlot) active() bool { return s.p.Load() != nil }
