// Package deepgram transcribes recorded speech with the Deepgram live listen
// API.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/koscakluka/ema-tutor/core/audio"
	"github.com/koscakluka/ema-tutor/core/speechtotext"
	"github.com/koscakluka/ema-tutor/internal/retry"
)

const (
	defaultURL   = "wss://api.deepgram.com/v1/listen"
	defaultModel = "nova-3"

	// audioChunkSize bounds a single binary frame sent to the listen socket.
	audioChunkSize = 8 << 10

	// metadataResponse is the last message of a closed listen stream.
	metadataResponse api.TypeResponse = "Metadata"
)

// TranscriptionClient implements [speechtotext.Transcriber].
type TranscriptionClient struct {
	apiKey       string
	url          string
	model        string
	language     string
	encodingInfo audio.EncodingInfo

	// encoding is encodingInfo converted for the listen query, nil for
	// containerized audio.
	encoding *encodingInfo

	dialer *websocket.Dialer
	retry  retry.Policy
}

type ClientOption func(*TranscriptionClient)

func WithURL(url string) ClientOption {
	return func(c *TranscriptionClient) { c.url = url }
}

func WithModel(model string) ClientOption {
	return func(c *TranscriptionClient) { c.model = model }
}

func WithLanguage(language string) ClientOption {
	return func(c *TranscriptionClient) { c.language = language }
}

// WithEncodingInfo describes raw input audio. Without it the audio is
// expected to be containerized (webm, wav, ...).
func WithEncodingInfo(encodingInfo audio.EncodingInfo) ClientOption {
	return func(c *TranscriptionClient) { c.encodingInfo = encodingInfo }
}

func WithRetryPolicy(policy retry.Policy) ClientOption {
	return func(c *TranscriptionClient) { c.retry = policy }
}

func NewTranscriptionClient(apiKey string, opts ...ClientOption) (*TranscriptionClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not set")
	}

	client := &TranscriptionClient{
		apiKey:   apiKey,
		url:      defaultURL,
		model:    defaultModel,
		language: "en-US",
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		retry: retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(client)
	}

	encoding, err := convertEncoding(client.encodingInfo)
	if err != nil {
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}
	client.encoding = encoding
	return client, nil
}

var _ speechtotext.Transcriber = (*TranscriptionClient)(nil)

// Transcribe streams the clip to Deepgram and joins the final results.
func (c *TranscriptionClient) Transcribe(ctx context.Context, clip []byte) (string, error) {
	ctx, span := tracer.Start(ctx, "deepgram.transcribe", trace.WithAttributes(
		attribute.Int("stt.audio_bytes", len(clip)),
	))
	defer span.End()

	if len(clip) == 0 {
		return "", nil
	}

	transcript, err := c.transcribe(ctx, clip)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transcription failed")
		return "", err
	}
	span.SetAttributes(attribute.Int("stt.transcript_length", len(transcript)))
	return transcript, nil
}

func (c *TranscriptionClient) transcribe(ctx context.Context, clip []byte) (string, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var segments []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for start := 0; start < len(clip); start += audioChunkSize {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			end := min(start+audioChunkSize, len(clip))
			if err := conn.WriteMessage(websocket.BinaryMessage, clip[start:end]); err != nil {
				return fmt.Errorf("failed to write to deepgram client: %w", err)
			}
		}
		if err := conn.WriteJSON(struct {
			Type string `json:"type"`
		}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
			return fmt.Errorf("failed to close deepgram stream: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		for {
			msgType, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					return nil
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("failed to read deepgram websocket message: %w", err)
			}
			if msgType == websocket.BinaryMessage {
				continue
			}

			done, segment, err := processMessage(msg)
			if err != nil {
				logger.Debug("failed to process deepgram message", "error", err)
				continue
			}
			if segment != "" {
				segments = append(segments, segment)
			}
			if done {
				return nil
			}
		}
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	return strings.Join(segments, " "), nil
}

// processMessage handles one text message of the listen socket. done is set
// once the metadata that closes a stream has arrived.
func processMessage(msg []byte) (done bool, segment string, err error) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		return false, "", err
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			return false, "", err
		}
		if msgResp.IsFinal && len(msgResp.Channel.Alternatives) > 0 {
			return false, strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript), nil
		}
	case metadataResponse:
		return true, "", nil
	}
	return false, "", nil
}

func (c *TranscriptionClient) connect(ctx context.Context) (*websocket.Conn, error) {
	listenURL, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("invalid listen url: %w", err)
	}

	queryParams := listenURL.Query()
	if c.encoding != nil {
		queryParams.Set("encoding", c.encoding.Format.Name())
		queryParams.Set("sample_rate", strconv.Itoa(c.encoding.SampleRate))
		queryParams.Set("channels", "1")
	}
	queryParams.Set("model", c.model)
	queryParams.Set("language", c.language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("punctuate", "true")
	listenURL.RawQuery = queryParams.Encode()

	return retry.Do(ctx, c.retry, "deepgram.listen.dial", func(ctx context.Context) (*websocket.Conn, error) {
		conn, resp, err := c.dialer.DialContext(ctx, listenURL.String(),
			http.Header{"Authorization": {"Token " + c.apiKey}})
		if err != nil {
			if resp != nil {
				return nil, &retry.HTTPStatusError{StatusCode: resp.StatusCode, Message: "listen handshake failed"}
			}
			return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
		}
		return conn, nil
	})
}
