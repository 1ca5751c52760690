package tutoring

import "errors"

var (
	ErrMissingInteraction = errors.New("student interaction is missing")
	ErrUnknownInteraction = errors.New("unknown interaction type")
	ErrNoTranscriber      = errors.New("speech interactions are not supported without a transcriber")
	ErrInvalidGame        = errors.New("invalid two player game")
)
