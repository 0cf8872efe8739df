package hotkey

// Fake is a Hotkey whose edges are produced by calling Down and Up.
type Fake struct {
	edges
}

func NewFake() *Fake {
	return &Fake{edges: newEdges()}
}

func (f *Fake) Register() error { return nil }
func (f *Fake) Unregister()     {}

// Down and Up block until the previous edge of the same kind was consumed.
func (f *Fake) Down() { f.down <- struct{}{} }
func (f *Fake) Up()   { f.up <- struct{}{} }
