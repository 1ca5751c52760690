// Package deepgram synthesizes speech with the Deepgram streaming speak API.
package deepgram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/koscakluka/ema-tutor/core/audio"
	"github.com/koscakluka/ema-tutor/core/texttospeech"
	"github.com/koscakluka/ema-tutor/internal/retry"
)

const defaultURL = "wss://api.deepgram.com/v1/speak"

// TextToSpeechClient opens one speak socket per synthesized text. It
// implements [texttospeech.Synthesizer].
type TextToSpeechClient struct {
	apiKey       string
	url          string
	encodingInfo audio.EncodingInfo

	dialer *websocket.Dialer
	retry  retry.Policy
}

type ClientOption func(*TextToSpeechClient)

// WithURL overrides the speak endpoint.
func WithURL(url string) ClientOption {
	return func(c *TextToSpeechClient) { c.url = url }
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) ClientOption {
	return func(c *TextToSpeechClient) {
		if encodingInfo.IsZero() {
			logger.Warn("ignoring incomplete encoding info", "encoding", encodingInfo)
			return
		}
		c.encodingInfo = encodingInfo
	}
}

func WithRetryPolicy(policy retry.Policy) ClientOption {
	return func(c *TextToSpeechClient) { c.retry = policy }
}

func NewTextToSpeechClient(apiKey string, opts ...ClientOption) (*TextToSpeechClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not set")
	}

	client := &TextToSpeechClient{
		apiKey:       apiKey,
		url:          defaultURL,
		encodingInfo: audio.GetDefaultEncodingInfo(),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		retry: retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

var _ texttospeech.Synthesizer = (*TextToSpeechClient)(nil)

func (c *TextToSpeechClient) connect(ctx context.Context, voice deepgramVoice) (*websocket.Conn, error) {
	speakURL, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("invalid speak url: %w", err)
	}

	urlValues := url.Values{}
	urlValues.Set("encoding", c.encodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(c.encodingInfo.SampleRate))
	urlValues.Set("model", string(voice))
	urlValues.Set("container", "none")
	speakURL.RawQuery = urlValues.Encode()

	return retry.Do(ctx, c.retry, "deepgram.speak.dial", func(ctx context.Context) (*websocket.Conn, error) {
		conn, resp, err := c.dialer.DialContext(ctx, speakURL.String(),
			http.Header{"Authorization": {"token " + c.apiKey}})
		if err != nil {
			if resp != nil {
				return nil, &retry.HTTPStatusError{StatusCode: resp.StatusCode, Message: "speak handshake failed"}
			}
			return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
		}
		return conn, nil
	})
}
