// Package openai generates tutoring turns with the OpenAI Responses API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"

	"github.com/koscakluka/ema-tutor/core/llms"
	"github.com/koscakluka/ema-tutor/internal/retry"
)

const (
	DefaultURL   = "https://api.openai.com/v1/responses"
	DefaultModel = "gpt-4.1-mini"
)

// Client talks to the Responses API. It implements [llms.Generator].
type Client struct {
	apiKey string
	url    string
	model  string

	temperature     *float64
	maxOutputTokens *int

	httpClient *http.Client
	retry      retry.Policy

	requestDuration metric.Float64Histogram
}

type ClientOption func(*Client)

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

// WithURL points the client at another Responses API compatible endpoint.
func WithURL(url string) ClientOption {
	return func(c *Client) { c.url = url }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

func WithRetryPolicy(policy retry.Policy) ClientOption {
	return func(c *Client) { c.retry = policy }
}

// WithTemperature sets the temperature used when a request does not set its
// own.
func WithTemperature(temperature float64) ClientOption {
	return func(c *Client) { c.temperature = &temperature }
}

func WithMaxOutputTokens(tokens int) ClientOption {
	return func(c *Client) { c.maxOutputTokens = &tokens }
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey: apiKey,
		url:    DefaultURL,
		model:  DefaultModel,
		retry:  retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	var err error
	c.requestDuration, err = meter.Float64Histogram("llm.request.duration",
		metric.WithDescription("Time until the first byte of a generation response"),
		metric.WithUnit("s"))
	if err != nil {
		logger.Warn("failed to create request duration histogram", "error", err)
	}
	return c
}

var _ llms.Generator = (*Client)(nil)

// send posts the body and returns the response once it has a successful
// status. Transient failures are retried according to the policy.
func (c *Client) send(ctx context.Context, body requestBody) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	return retry.Do(ctx, c.retry, "openai.responses", func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("error creating HTTP request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		if body.Stream {
			req.Header.Set("Accept", "text/event-stream")
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("error sending request: %w", err)
		}
		if c.requestDuration != nil {
			c.requestDuration.Record(ctx, time.Since(start).Seconds())
		}

		if resp.StatusCode != http.StatusOK {
			defer resp.Body.Close()
			return nil, statusError(resp)
		}
		return resp, nil
	})
}

func statusError(resp *http.Response) error {
	message := resp.Status
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Message != "" {
		message = body.Error.Message
	}
	return &retry.HTTPStatusError{StatusCode: resp.StatusCode, Message: message}
}
