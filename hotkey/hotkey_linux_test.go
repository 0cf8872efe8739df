//go:build linux

package hotkey

import "testing"

func TestChord(t *testing.T) {
	type ev struct {
		code  uint16
		value int32
		want  edge
	}
	tests := []struct {
		name   string
		events []ev
	}{
		{"ctrl shift space", []ev{
			{keyLCtrl, keyPress, edgeNone},
			{keyLShift, keyPress, edgeNone},
			{keySpace, keyPress, edgeDown},
			{keySpace, 2, edgeNone},
			{keySpace, keyRelease, edgeUp},
		}},
		{"right modifiers", []ev{
			{keyRCtrl, keyPress, edgeNone},
			{keyRShift, keyPress, edgeNone},
			{keySpace, keyPress, edgeDown},
		}},
		{"space alone", []ev{
			{keySpace, keyPress, edgeNone},
			{keySpace, keyRelease, edgeNone},
		}},
		{"modifier released first", []ev{
			{keyLCtrl, keyPress, edgeNone},
			{keyLShift, keyPress, edgeNone},
			{keyLShift, keyRelease, edgeNone},
			{keySpace, keyPress, edgeNone},
		}},
		{"release after modifiers drop", []ev{
			{keyLCtrl, keyPress, edgeNone},
			{keyLShift, keyPress, edgeNone},
			{keySpace, keyPress, edgeDown},
			{keyLCtrl, keyRelease, edgeNone},
			{keySpace, keyRelease, edgeUp},
		}},
		{"modifier repeat", []ev{
			{keyLCtrl, keyPress, edgeNone},
			{keyLCtrl, 2, edgeNone},
			{keyLShift, keyPress, edgeNone},
			{keySpace, keyPress, edgeDown},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c chord
			for i, e := range tt.events {
				if got := c.feed(e.code, e.value); got != e.want {
					t.Fatalf("event %d (code %d value %d): edge = %v, want %v", i, e.code, e.value, got, e.want)
				}
			}
		})
	}
}

func TestDecodeKey(t *testing.T) {
	ev := make([]byte, eventSize)
	ev[16] = evKey
	ev[18] = keySpace
	ev[20] = keyPress
	code, value, ok := decodeKey(ev)
	if !ok || code != keySpace || value != keyPress {
		t.Errorf("decodeKey = %d, %d, %v", code, value, ok)
	}

	ev[16] = 4 // EV_MSC
	if _, _, ok := decodeKey(ev); ok {
		t.Error("non-key event decoded as key")
	}
}

func TestHasKey(t *testing.T) {
	tests := []struct {
		caps string
		want bool
	}{
		{"120013 0 0 0 0 0 0 0 fffffffffffffffe\n", true},
		{"0 200000000000000", true},
		{"ffff", false},
		{"", false},
		{"zz", false},
	}
	for _, tt := range tests {
		if got := hasKey(tt.caps, keySpace); got != tt.want {
			t.Errorf("hasKey(%q) = %v, want %v", tt.caps, got, tt.want)
		}
	}
}

func TestKeyboardsNone(t *testing.T) {
	dir := t.TempDir()
	oldIn, oldSys := inputDir, sysDir
	inputDir, sysDir = dir, dir
	t.Cleanup(func() { inputDir, sysDir = oldIn, oldSys })

	if _, err := keyboards(); err != errNoKeyboards {
		t.Errorf("keyboards() error = %v, want errNoKeyboards", err)
	}
}
