// Package hotkey delivers the global Ctrl+Shift+Space chord as key-down and
// key-up signals.
package hotkey

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// Label is the chord as shown to the user.
const Label = "Ctrl+Shift+Space"

// edges holds the two signal channels every implementation exposes. Sends
// never block; an edge arriving while one is pending is dropped.
type edges struct {
	down, up chan struct{}
}

func newEdges() edges {
	return edges{down: make(chan struct{}, 1), up: make(chan struct{}, 1)}
}

func (e edges) Keydown() <-chan struct{} { return e.down }
func (e edges) Keyup() <-chan struct{}   { return e.up }

func (e edges) pressed()  { signal(e.down) }
func (e edges) released() { signal(e.up) }

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
