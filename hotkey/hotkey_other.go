//go:build !linux

package hotkey

import (
	"sync"

	"golang.design/x/hotkey"
)

// osHotkey registers the chord with the window system.
type osHotkey struct {
	edges
	hk   *hotkey.Hotkey
	quit chan struct{}
	once sync.Once
}

func New() Hotkey {
	return &osHotkey{
		edges: newEdges(),
		hk:    hotkey.New([]hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, hotkey.KeySpace),
		quit:  make(chan struct{}),
	}
}

func (h *osHotkey) Register() error {
	if err := h.hk.Register(); err != nil {
		return err
	}
	go h.pump()
	return nil
}

// pump relays the library's typed events until Unregister.
func (h *osHotkey) pump() {
	down, up := h.hk.Keydown(), h.hk.Keyup()
	for {
		select {
		case <-h.quit:
			return
		case _, ok := <-down:
			if !ok {
				return
			}
			h.pressed()
		case _, ok := <-up:
			if !ok {
				return
			}
			h.released()
		}
	}
}

func (h *osHotkey) Unregister() {
	h.once.Do(func() {
		close(h.quit)
		h.hk.Unregister()
	})
}

// Diagnose reports whether the chord can be registered right now.
func Diagnose() (string, error) {
	hk := hotkey.New([]hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, hotkey.KeySpace)
	if err := hk.Register(); err != nil {
		return "", err
	}
	hk.Unregister()
	return Label + " registered", nil
}
