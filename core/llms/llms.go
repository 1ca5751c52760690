// Package llms defines the text generation collaborator a tutoring turn talks
// to.
package llms

import "context"

// Request is one generation turn.
type Request struct {
	// Instructions is the system prompt carried by the session.
	Instructions string
	// Message is the user facing message of this turn.
	Message string
	// PreviousResponseID chains the turn onto an earlier response so the
	// provider keeps the conversation context. Empty starts a new chain.
	PreviousResponseID string

	Temperature     *float64
	MaxOutputTokens *int
}

func NewRequest(instructions, message, previousResponseID string, opts ...RequestOption) Request {
	r := Request{
		Instructions:       instructions,
		Message:            message,
		PreviousResponseID: previousResponseID,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// Response is a whole, non streamed, generation result.
type Response struct {
	ID    string
	Text  string
	Usage Usage
}

// Generator produces text for a request, either whole or as a stream.
type Generator interface {
	Respond(ctx context.Context, request Request) (*Response, error)
	Stream(ctx context.Context, request Request) Stream
}
