package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/koscakluka/ema-tutor/core/llms"
)

const (
	eventPrefix = "event:"
	chunkPrefix = "data:"
)

// Stream returns a lazily started stream for the request. Nothing is sent
// until the chunks are ranged over.
func (c *Client) Stream(_ context.Context, request llms.Request) llms.Stream {
	return &Stream{client: c, body: c.toRequestBody(request, true)}
}

type Stream struct {
	client *Client
	body   requestBody
}

func (s *Stream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "openai.stream", trace.WithAttributes(
			attribute.String("llm.model", s.body.Model),
			attribute.Bool("llm.continued", s.body.PreviousResponseID != ""),
		))
		defer span.End()

		fail := func(err error) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "stream failed")
			yield(nil, err)
		}

		resp, err := s.client.send(ctx, s.body)
		if err != nil {
			fail(err)
			return
		}
		defer resp.Body.Close()

		usage := llms.Usage{}
		lapTime := time.Now()
		var responseID string

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, eventPrefix) {
				continue
			}
			event := strings.TrimSpace(strings.TrimPrefix(line, eventPrefix))

			if !scanner.Scan() {
				break
			}
			chunk := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), chunkPrefix))

			switch streamingEventType(event) {
			case streamingEventResponseCreated:
				lapTime = time.Now()
				var responseBody streamingBodyResponse
				if err := json.Unmarshal([]byte(chunk), &responseBody); err != nil {
					fail(fmt.Errorf("error unmarshalling JSON: %w", err))
					return
				}
				responseID = responseBody.Response.ID
				span.SetAttributes(attribute.String("llm.response_id", responseID))
				if !yield(StreamCreatedChunk{responseID: responseID}, nil) {
					return
				}

			case streamingEventResponseQueued:
				lapTime = time.Now()

			case streamingEventResponseInProgress:
				usage.QueueTime = time.Since(lapTime).Seconds()
				lapTime = time.Now()

			case streamingEventResponseOutputItemAdded:
				usage.InputProcessingTime = time.Since(lapTime).Seconds()
				lapTime = time.Now()

			case streamingEventResponseOutputTextDelta:
				var responseBody streamingBodyResponseTextDelta
				if err := json.Unmarshal([]byte(chunk), &responseBody); err != nil {
					fail(fmt.Errorf("error unmarshalling JSON: %w", err))
					return
				}
				if !yield(StreamContentChunk{content: responseBody.Delta}, nil) {
					return
				}

			case streamingEventResponseFailed, streamingEventError:
				var responseBody streamingBodyResponse
				_ = json.Unmarshal([]byte(chunk), &responseBody)
				message := responseBody.Response.Error.Message
				if message == "" {
					message = responseBody.Message
				}
				fail(fmt.Errorf("%w: %s", ErrGenerationFailed, message))
				return

			case streamingEventResponseCompleted, streamingEventResponseIncomplete:
				usage.OutputProcessingTime = time.Since(lapTime).Seconds()
				usage.TotalTime = usage.InputProcessingTime + usage.OutputProcessingTime

				var responseBody streamingBodyResponse
				if err := json.Unmarshal([]byte(chunk), &responseBody); err != nil {
					fail(fmt.Errorf("error unmarshalling JSON: %w", err))
					return
				}
				if responseBody.Response.ID != "" {
					responseID = responseBody.Response.ID
				}
				responseBody.Response.Usage.apply(&usage)

				var finishReason *string
				if event == string(streamingEventResponseIncomplete) {
					reason := responseBody.Response.IncompleteDetails.Reason
					finishReason = &reason
					logger.Warn("response incomplete", "response_id", responseID, "reason", reason)
				}
				yield(StreamCompletedChunk{finishReason: finishReason, responseID: responseID, usage: usage}, nil)
				return
			}
		}

		if err := scanner.Err(); err != nil {
			fail(fmt.Errorf("error reading streamed response: %w", err))
			return
		}
		fail(ErrStreamTruncated)
	}
}

type streamingEventType string

const (
	streamingEventResponseOutputTextDelta streamingEventType = "response.output_text.delta"
	streamingEventResponseOutputItemAdded streamingEventType = "response.output_item.added"
	streamingEventResponseCreated         streamingEventType = "response.created"
	streamingEventResponseQueued          streamingEventType = "response.queued"
	streamingEventResponseInProgress      streamingEventType = "response.in_progress"
	streamingEventResponseCompleted       streamingEventType = "response.completed"
	streamingEventResponseIncomplete      streamingEventType = "response.incomplete"
	streamingEventResponseFailed          streamingEventType = "response.failed"
	streamingEventError                   streamingEventType = "error"
)

type streamingBodyResponseTextDelta struct {
	Delta string `json:"delta"`
}

// streamingBodyResponse is the body of the lifecycle events, which all carry
// the response object.
type streamingBodyResponse struct {
	Response struct {
		ID string `json:"id"`
		// Usage represents token usage details including input tokens, output
		// tokens, a breakdown of output tokens, and the total tokens used.
		Usage             *responseBodyUsage `json:"usage"`
		IncompleteDetails struct {
			Reason string `json:"reason"`
		} `json:"incomplete_details"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"response"`
	// Message is set on top level error events.
	Message string `json:"message"`
}

type StreamCreatedChunk struct {
	responseID string
}

func (s StreamCreatedChunk) FinishReason() *string { return nil }

func (s StreamCreatedChunk) ResponseID() string { return s.responseID }

type StreamContentChunk struct {
	finishReason *string
	content      string
}

func (s StreamContentChunk) FinishReason() *string {
	return s.finishReason
}

func (s StreamContentChunk) Content() string {
	return s.content
}

type StreamCompletedChunk struct {
	finishReason *string
	responseID   string
	usage        llms.Usage
}

func (s StreamCompletedChunk) FinishReason() *string {
	return s.finishReason
}

func (s StreamCompletedChunk) ResponseID() string {
	return s.responseID
}

func (s StreamCompletedChunk) Usage() llms.Usage {
	return s.usage
}
