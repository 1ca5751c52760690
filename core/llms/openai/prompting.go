package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/koscakluka/ema-tutor/core/llms"
)

// Respond generates a whole response.
func (c *Client) Respond(ctx context.Context, request llms.Request) (*llms.Response, error) {
	ctx, span := tracer.Start(ctx, "openai.respond", trace.WithAttributes(
		attribute.String("llm.model", c.model),
		attribute.Bool("llm.continued", request.PreviousResponseID != ""),
	))
	defer span.End()

	response, err := c.respond(ctx, request)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "respond failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("llm.response_id", response.ID),
		attribute.Int("llm.usage.output_tokens", response.Usage.OutputTokens),
	)
	return response, nil
}

func (c *Client) respond(ctx context.Context, request llms.Request) (*llms.Response, error) {
	resp, err := c.send(ctx, c.toRequestBody(request, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	var responseBody generalResponseBody
	if err := json.Unmarshal(bodyBytes, &responseBody); err != nil {
		return nil, fmt.Errorf("error unmarshalling response body: %w", err)
	}

	response := &llms.Response{ID: responseBody.ID}
	responseBody.Usage.apply(&response.Usage)

	for _, output := range responseBody.Output {
		var outputType generalResponseBodyOutputType
		if err := json.Unmarshal(output, &outputType); err != nil {
			return nil, fmt.Errorf("error unmarshalling output type: %w", err)
		}
		if outputType.Type != generalResponseBodyOutputTypeMessage {
			continue
		}

		var outputMessage generalResponseBodyOutputMessage
		if err := json.Unmarshal(output, &outputMessage); err != nil {
			return nil, fmt.Errorf("error unmarshalling output message: %w", err)
		}
		for _, content := range outputMessage.Content {
			switch content.Type {
			case "output_text":
				response.Text += content.Text
			case "refusal":
				response.Text += content.Refusal
			}
		}
	}

	return response, nil
}

type generalResponseBody struct {
	ID     string             `json:"id"`
	Output []json.RawMessage  `json:"output"`
	Usage  *responseBodyUsage `json:"usage"`
}

type generalResponseBodyOutputType struct {
	// Type is the type of the output item.
	Type generalResponseBodyOutputTypeType `json:"type"`
}

type generalResponseBodyOutputMessage struct {
	// ID is the unique ID of the output item.
	ID string `json:"id"`
	// Content is the content of the output message.
	Content []generalResponseBodyOutputMessageContent `json:"content,omitempty"`
}

// generalResponseBodyOutputMessageContent is either text output from the model
// or a refusal.
type generalResponseBodyOutputMessageContent struct {
	// Type is the type of the output message. 'output_text' or 'refusal'.
	Type string `json:"type"`
	// Text is the text output from the model.
	Text string `json:"text,omitempty"`
	// Refusal is the refusal explanation from the model.
	Refusal string `json:"refusal,omitempty"`
}

type generalResponseBodyOutputTypeType string

const (
	generalResponseBodyOutputTypeMessage generalResponseBodyOutputTypeType = "message"
)
