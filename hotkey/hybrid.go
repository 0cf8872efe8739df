package hotkey

import (
	"sync"
	"time"
)

type Action int

const (
	ActionPress Action = iota
	ActionRelease
)

// Hybrid turns raw key edges into press/release actions. Holding the chord
// longer than the threshold is push-to-talk: release on key-up. A shorter
// tap latches the recording until the next tap is released.
type Hybrid struct {
	actions chan Action
	stop    chan struct{}
	once    sync.Once

	mu     sync.Mutex
	toggle bool
}

func NewHybrid(hk Hotkey, longPress time.Duration) *Hybrid {
	h := &Hybrid{
		actions: make(chan Action, 2),
		stop:    make(chan struct{}),
	}
	go h.run(hk, longPress)
	return h
}

func (h *Hybrid) Actions() <-chan Action { return h.actions }

// IsToggle reports whether the current recording was latched by a tap.
func (h *Hybrid) IsToggle() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.toggle
}

func (h *Hybrid) Close() {
	h.once.Do(func() { close(h.stop) })
}

func (h *Hybrid) setToggle(v bool) {
	h.mu.Lock()
	h.toggle = v
	h.mu.Unlock()
}

func (h *Hybrid) emit(a Action) bool {
	select {
	case h.actions <- a:
		return true
	case <-h.stop:
		return false
	}
}

func (h *Hybrid) wait(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-h.stop:
		return false
	}
}

func (h *Hybrid) run(hk Hotkey, longPress time.Duration) {
	for {
		if !h.wait(hk.Keydown()) || !h.emit(ActionPress) {
			return
		}

		timer := time.NewTimer(longPress)
		select {
		case <-h.stop:
			timer.Stop()
			return
		case <-timer.C:
			if !h.wait(hk.Keyup()) {
				return
			}
		case <-hk.Keyup():
			timer.Stop()
			h.setToggle(true)
			if !h.wait(hk.Keydown()) || !h.wait(hk.Keyup()) {
				return
			}
			h.setToggle(false)
		}

		if !h.emit(ActionRelease) {
			return
		}
	}
}
