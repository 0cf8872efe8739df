//go:build linux

package hotkey

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// evdev constants from linux/input-event-codes.h.
const (
	evKey      = 1
	keyRelease = 0
	keyPress   = 1
	keyLCtrl   = 29
	keyRCtrl   = 97
	keyLShift  = 42
	keyRShift  = 54
	keySpace   = 57
)

// struct input_event on 64-bit: timeval (16) type (2) code (2) value (4).
const eventSize = 24

var (
	inputDir = "/dev/input"
	sysDir   = "/sys/class/input"
)

var errNoKeyboards = errors.New("no keyboard devices found (is the user in the 'input' group?)")

// evdevHotkey reads every keyboard under /dev/input directly. It needs
// read access to the device nodes but works on X11 and Wayland alike.
type evdevHotkey struct {
	edges
	files []*os.File
	once  sync.Once
}

func New() Hotkey {
	return &evdevHotkey{edges: newEdges()}
}

func (h *evdevHotkey) Register() error {
	files, err := openKeyboards()
	if err != nil {
		return err
	}
	h.files = files
	for _, f := range files {
		go h.read(f)
	}
	return nil
}

// read runs until f is closed by Unregister.
func (h *evdevHotkey) read(f *os.File) {
	buf := make([]byte, eventSize*16)
	var c chord
	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}
		for off := 0; off+eventSize <= n; off += eventSize {
			code, value, ok := decodeKey(buf[off : off+eventSize])
			if !ok {
				continue
			}
			switch c.feed(code, value) {
			case edgeDown:
				h.pressed()
			case edgeUp:
				h.released()
			}
		}
	}
}

func (h *evdevHotkey) Unregister() {
	h.once.Do(func() {
		for _, f := range h.files {
			f.Close()
		}
	})
}

// decodeKey extracts code and value from a raw input_event when it is a
// key event.
func decodeKey(ev []byte) (code uint16, value int32, ok bool) {
	if binary.LittleEndian.Uint16(ev[16:]) != evKey {
		return 0, 0, false
	}
	return binary.LittleEndian.Uint16(ev[18:]), int32(binary.LittleEndian.Uint32(ev[20:])), true
}

type edge int

const (
	edgeNone edge = iota
	edgeDown
	edgeUp
)

// chord tracks modifier state for one keyboard. Key repeats (value 2) keep
// the held state. Up fires on space release regardless of the modifiers.
type chord struct {
	ctrl, shift, space bool
}

func (c *chord) feed(code uint16, value int32) edge {
	hold := func(cur bool) bool {
		switch value {
		case keyPress:
			return true
		case keyRelease:
			return false
		}
		return cur
	}

	switch code {
	case keyLCtrl, keyRCtrl:
		c.ctrl = hold(c.ctrl)
	case keyLShift, keyRShift:
		c.shift = hold(c.shift)
	case keySpace:
		switch {
		case value == keyPress && !c.space && c.ctrl && c.shift:
			c.space = true
			return edgeDown
		case value == keyRelease && c.space:
			c.space = false
			return edgeUp
		}
	}
	return edgeNone
}

// keyboards lists event nodes whose key capability bitmap includes space.
func keyboards() ([]string, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", inputDir, err)
	}
	var paths []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		caps, err := os.ReadFile(filepath.Join(sysDir, e.Name(), "device", "capabilities", "key"))
		if err != nil || !hasKey(string(caps), keySpace) {
			continue
		}
		paths = append(paths, filepath.Join(inputDir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, errNoKeyboards
	}
	return paths, nil
}

// hasKey reports whether code is set in a sysfs capability bitmap: hex
// words separated by spaces, most significant word first.
func hasKey(caps string, code int) bool {
	words := strings.Fields(caps)
	idx := len(words) - 1 - code/bits.UintSize
	if idx < 0 {
		return false
	}
	w, err := strconv.ParseUint(words[idx], 16, bits.UintSize)
	if err != nil {
		return false
	}
	return w&(1<<(uint(code)%bits.UintSize)) != 0
}

func openKeyboards() ([]*os.File, error) {
	paths, err := keyboards()
	if err != nil {
		return nil, err
	}
	var files []*os.File
	for _, p := range paths {
		if f, err := os.Open(p); err == nil {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER, then re-login)", len(paths))
	}
	return files, nil
}

// Diagnose reports how many keyboards can be read.
func Diagnose() (string, error) {
	files, err := openKeyboards()
	if err != nil {
		return "", err
	}
	for _, f := range files {
		f.Close()
	}
	return fmt.Sprintf("%d keyboard(s) readable, %s", len(files), Label), nil
}
