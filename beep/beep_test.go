package beep

import "testing"

func TestSamplesLength(t *testing.T) {
	tests := []struct {
		name     string
		tone     Tone
		channels int
		want     int
	}{
		{"start mono", StartTone, 1, int(sampleRate * StartTone.Duration)},
		{"start stereo", StartTone, 2, int(sampleRate*StartTone.Duration) * 2},
		{"error double", ErrorTone, 1, int(sampleRate*ErrorTone.Duration)*2 + int(sampleRate*ErrorTone.Gap)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Samples(tt.tone, sampleRate, tt.channels)
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestSamplesDecay(t *testing.T) {
	s := Samples(Tone{Freq: 1000, Volume: 1, Decay: 50, Duration: 0.1}, sampleRate, 1)
	peak := func(from, to int) int16 {
		var p int16
		for _, v := range s[from:to] {
			if v < 0 {
				v = -v
			}
			p = max(p, v)
		}
		return p
	}
	head := peak(0, 500)
	tailPeak := peak(len(s)-500, len(s))
	if tailPeak >= head {
		t.Errorf("tail peak %d not below head peak %d", tailPeak, head)
	}
}

func TestSamplesStereoInterleaved(t *testing.T) {
	s := Samples(StopTone, sampleRate, 2)
	for i := 0; i+1 < len(s); i += 2 {
		if s[i] != s[i+1] {
			t.Fatalf("frame %d: left %d != right %d", i/2, s[i], s[i+1])
		}
	}
}

func TestSamplesGapIsSilent(t *testing.T) {
	s := Samples(ErrorTone, sampleRate, 1)
	n := int(sampleRate * ErrorTone.Duration)
	gap := int(sampleRate * ErrorTone.Gap)
	for i := n; i < n+gap; i++ {
		if s[i] != 0 {
			t.Fatalf("sample %d in gap = %d, want 0", i, s[i])
		}
	}
}

func TestDisable(t *testing.T) {
	if !Enabled() {
		t.Fatal("enabled by default")
	}
	Disable()
	t.Cleanup(func() { disabled.Store(false) })
	if Enabled() {
		t.Error("still enabled after Disable")
	}
	Start() // no-op, must not spawn playback
}
