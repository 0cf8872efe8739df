//go:build !linux

package audio

import (
	"encoding/hex"
	"fmt"

	"github.com/gen2brain/malgo"
)

type malgoContext struct {
	ctx *malgo.AllocatedContext
}

func NewContext() (Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("miniaudio: %w", err)
	}
	return &malgoContext{ctx: ctx}, nil
}

func (m *malgoContext) Devices() ([]DeviceInfo, error) {
	infos, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("miniaudio devices: %w", err)
	}
	devices := make([]DeviceInfo, 0, len(infos))
	for _, d := range infos {
		devices = append(devices, DeviceInfo{ID: hex.EncodeToString(d.ID[:]), Name: d.Name()})
	}
	return devices, nil
}

// parseDeviceID reverses the hex encoding used in DeviceInfo.ID.
func parseDeviceID(s string) (malgo.DeviceID, error) {
	var id malgo.DeviceID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid device ID: %w", err)
	}
	copy(id[:], raw)
	return id, nil
}

func (m *malgoContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = config.Channels
	cfg.SampleRate = config.SampleRate

	c := &malgoCapture{name: deviceName(device)}
	if device != nil {
		id, err := parseDeviceID(device.ID)
		if err != nil {
			return nil, err
		}
		c.id = id
		cfg.Capture.DeviceID = c.id.Pointer()
	}

	dev, err := malgo.InitDevice(m.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, input []byte, frames uint32) { c.deliver(input, frames) },
	})
	if err != nil {
		return nil, fmt.Errorf("miniaudio open %s: %w", c.name, err)
	}
	c.dev = dev
	return c, nil
}

func (m *malgoContext) Close() {
	m.ctx.Uninit()
	m.ctx.Free()
}

type malgoCapture struct {
	callbackSlot
	dev  *malgo.Device
	id   malgo.DeviceID
	name string
}

func (c *malgoCapture) Start() error       { return c.dev.Start() }
func (c *malgoCapture) Stop()              { c.dev.Stop() }
func (c *malgoCapture) Close()             { c.dev.Uninit() }
func (c *malgoCapture) DeviceName() string { return c.name }
