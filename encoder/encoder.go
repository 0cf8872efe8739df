// Package encoder turns captured PCM blocks into the single upload codec.
package encoder

import "time"

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// Format and Extension describe the one codec artifacts are written in.
const (
	Format    = "flac"
	Extension = ".flac"
	MIMEType  = "audio/flac"
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	TotalFrames() uint64
	EncodeTime() time.Duration
}
