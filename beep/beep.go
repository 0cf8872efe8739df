// Package beep plays short cues when a recording starts, stops or fails.
package beep

import (
	"math"
	"sync/atomic"
)

const sampleRate = 44100

// Tone is a decaying sine tick, optionally repeated after a gap.
type Tone struct {
	Freq     float64
	Volume   float64
	Decay    float64
	Duration float64 // seconds
	Repeat   int
	Gap      float64 // seconds between repeats
}

var (
	StartTone = Tone{Freq: 1200, Volume: 0.5, Decay: 60, Duration: 0.05}
	StopTone  = Tone{Freq: 900, Volume: 0.5, Decay: 40, Duration: 0.07}
	ErrorTone = Tone{Freq: 350, Volume: 0.6, Decay: 30, Duration: 0.08, Repeat: 1, Gap: 0.05}
)

var disabled atomic.Bool

func Disable() { disabled.Store(true) }

func Enabled() bool { return !disabled.Load() }

// Samples renders t as interleaved int16 PCM with the given channel count.
func Samples(t Tone, rate, channels int) []int16 {
	n := int(float64(rate) * t.Duration)
	gap := int(float64(rate) * t.Gap)
	out := make([]int16, 0, (n*(t.Repeat+1)+gap*t.Repeat)*channels)
	for r := 0; r <= t.Repeat; r++ {
		if r > 0 {
			out = append(out, make([]int16, gap*channels)...)
		}
		for i := 0; i < n; i++ {
			ts := float64(i) / float64(rate)
			s := int16(math.Sin(2*math.Pi*t.Freq*ts) * 32767 * t.Volume * math.Exp(-ts*t.Decay))
			for c := 0; c < channels; c++ {
				out = append(out, s)
			}
		}
	}
	return out
}

func Start() { play(StartTone) }
func Stop()  { play(StopTone) }
func Error() { play(ErrorTone) }

func play(t Tone) {
	if !Enabled() {
		return
	}
	go playTone(t)
}
