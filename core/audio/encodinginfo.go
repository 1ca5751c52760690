// Package audio describes raw audio encodings shared by synthesis and
// transcription.
package audio

import (
	"fmt"
	"time"
)

const (
	DefaultSampleRate = 24000
	DefaultFormat     = EncodingLinear16
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: DefaultFormat}
}

// EncodingInfo describes headerless audio. The zero value means the audio is
// containerized and describes itself.
type EncodingInfo struct {
	SampleRate int            `yaml:"sample_rate"`
	Format     EncodingFormat `yaml:"format"`
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format == ""
}

// Duration returns how long n bytes of mono audio in this encoding play for.
func (e EncodingInfo) Duration(n int) time.Duration {
	size := e.Format.ByteSize()
	if e.IsZero() || size <= 0 {
		return 0
	}
	samples := n / size
	return time.Duration(samples) * time.Second / time.Duration(e.SampleRate)
}

func (e EncodingInfo) Validate() error {
	if e.IsZero() {
		return nil
	}
	if e.Format.ByteSize() < 0 {
		return fmt.Errorf("unsupported audio format %q", e.Format)
	}
	if e.SampleRate < 0 {
		return fmt.Errorf("invalid sample rate %d", e.SampleRate)
	}
	return nil
}

type EncodingFormat string

func (e EncodingFormat) Name() string {
	return string(e)
}

// ByteSize is the size of one sample, -1 for unknown formats.
func (e EncodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    EncodingFormat = "mulaw"
	EncodingALaw     EncodingFormat = "alaw"
	EncodingLinear16 EncodingFormat = "linear16"
)
