// Package speechtotext defines the transcription collaborator.
package speechtotext

import "context"

// Transcriber recognizes the speech in a recorded clip. Audio without
// recognizable speech yields an empty string and no error.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}
