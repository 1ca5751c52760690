package openai

import "errors"

var (
	// ErrGenerationFailed is returned when the provider reports a failure in
	// the middle of a stream.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrStreamTruncated is returned when a stream ends without a completion
	// event.
	ErrStreamTruncated = errors.New("stream ended before completion")
)
