package deepgram

import (
	"fmt"

	"github.com/koscakluka/ema-tutor/core/audio"
)

type encodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

type encodingFormat string

func (e encodingFormat) Name() string { return string(e) }

const encodingLinear16 encodingFormat = "linear16"

// convertEncoding maps raw audio onto the encodings the listen API accepts.
// Zero encoding info means containerized audio and converts to nil.
func convertEncoding(encoding audio.EncodingInfo) (*encodingInfo, error) {
	if encoding.IsZero() {
		return nil, nil
	}

	deepgramEncoding := encodingInfo{}
	switch encoding.SampleRate {
	case 8000, 16000, 24000, 32000, 48000:
		deepgramEncoding.SampleRate = encoding.SampleRate
	default:
		return nil, fmt.Errorf("unsupported sample rate %d", encoding.SampleRate)
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
		deepgramEncoding.Format = encodingLinear16
	case audio.EncodingALaw, audio.EncodingMulaw:
		deepgramEncoding.Format = encodingFormat(encoding.Format)
		if deepgramEncoding.SampleRate != 8000 {
			return nil, fmt.Errorf("unsupported sample rate for %s encoding", encoding.Format)
		}
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding.Format)
	}

	return &deepgramEncoding, nil
}
