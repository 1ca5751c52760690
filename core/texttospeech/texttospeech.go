// Package texttospeech defines the audio synthesis collaborator.
package texttospeech

import (
	"context"
	"iter"
)

// Synthesizer turns text into an ordered stream of audio bytes spoken with
// the given voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) iter.Seq2[[]byte, error]
}
