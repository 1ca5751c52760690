package llms

import "context"

type Stream interface {
	Chunks(context.Context) func(func(StreamChunk, error) bool)
}

type StreamChunk interface {
	FinishReason() *string
}

// StreamCreatedChunk is the first chunk of a stream, it carries the id of the
// response being generated.
type StreamCreatedChunk interface {
	StreamChunk
	ResponseID() string
}

type StreamContentChunk interface {
	StreamChunk
	Content() string
}

// StreamCompletedChunk ends a stream.
type StreamCompletedChunk interface {
	StreamChunk
	ResponseID() string
	Usage() Usage
}

type Usage struct {
	// InputTokens represents the number of input tokens.
	InputTokens int
	// CachedTokens is the part of the input tokens retrieved from the cache.
	CachedTokens int
	// OutputTokens represents the number of output tokens.
	OutputTokens int
	// ReasoningTokens is the part of the output tokens spent on reasoning.
	ReasoningTokens int
	// TotalTokens represents the total number of tokens used.
	TotalTokens int

	// QueueTime represents the time it took to queue the request.
	//
	// Note: This might be just an approximation.
	QueueTime float64
	// InputProcessingTime represents the time it took to process the input.
	//
	// Note: This might be just an approximation.
	InputProcessingTime float64
	// OutputProcessingTime represents the time it took to generate the output.
	//
	// Note: This might be just an approximation.
	OutputProcessingTime float64
	// TotalTime represents the total time it took to complete the request.
	//
	// Note: This might be just an approximation.
	TotalTime float64
}

// Collect drains a stream into a whole response.
func Collect(ctx context.Context, stream Stream) (*Response, error) {
	response := &Response{}
	for chunk, err := range stream.Chunks(ctx) {
		if err != nil {
			return nil, err
		}
		switch chunk := chunk.(type) {
		case StreamCompletedChunk:
			response.ID = chunk.ResponseID()
			response.Usage = chunk.Usage()
		case StreamCreatedChunk:
			response.ID = chunk.ResponseID()
		case StreamContentChunk:
			response.Text += chunk.Content()
		}
	}
	return response, nil
}
