package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrSynthesisFailed = errors.New("speech synthesis failed")

// Synthesize speaks text and yields the audio as it arrives. The stream ends
// once Deepgram confirms the text has been flushed.
func (c *TextToSpeechClient) Synthesize(ctx context.Context, text, voiceID string) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		voice, known := resolveVoice(voiceID)
		if !known && voiceID != "" {
			logger.Warn("unknown voice, using default", "voice", voiceID, "default", voice)
		}

		ctx, span := tracer.Start(ctx, "deepgram.synthesize", trace.WithAttributes(
			attribute.String("tts.voice", string(voice)),
			attribute.Int("tts.text_length", len(text)),
		))
		defer span.End()

		fail := func(err error) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "synthesis failed")
			yield(nil, err)
		}

		conn, err := c.connect(ctx, voice)
		if err != nil {
			fail(err)
			return
		}
		defer conn.Close()
		stop := context.AfterFunc(ctx, func() { conn.Close() })
		defer stop()

		if err := conn.WriteJSON(speakMsg{Type: "Speak", Text: text}); err != nil {
			fail(fmt.Errorf("failed to send text to deepgram through websocket: %w", err))
			return
		}
		if err := conn.WriteJSON(flushMsg); err != nil {
			fail(fmt.Errorf("failed to flush deepgram buffer through websocket: %w", err))
			return
		}

		received := 0
		for {
			msgType, msg, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					fail(ctx.Err())
				} else {
					fail(fmt.Errorf("websocket read error: %w", err))
				}
				return
			}

			switch msgType {
			case websocket.BinaryMessage:
				if len(msg) == 0 {
					continue
				}
				received += len(msg)
				if !yield(msg, nil) {
					_ = conn.WriteJSON(clearMsg)
					return
				}

			case websocket.TextMessage:
				var parsedMsg controlMsg
				if err := json.Unmarshal(msg, &parsedMsg); err != nil {
					logger.Debug("failed to unmarshal deepgram message", "error", err)
					continue
				}

				switch parsedMsg.Type {
				case "Flushed":
					span.SetAttributes(attribute.Int("tts.audio_bytes", received))
					if err := conn.WriteJSON(closeMsg); err != nil {
						logger.Debug("failed to send close message to deepgram websocket", "error", err)
					}
					return
				case "Warning":
					logger.Warn("deepgram warning", "description", parsedMsg.Description, "code", parsedMsg.Code)
				case "Error":
					fail(fmt.Errorf("%w: %s", ErrSynthesisFailed, parsedMsg.Description))
					return
				}
			}
		}
	}
}

type websocketMessage struct {
	Type string `json:"type"`
}

type speakMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type controlMsg struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Code        string `json:"code,omitempty"`
}

var (
	flushMsg = websocketMessage{Type: "Flush"}
	clearMsg = websocketMessage{Type: "Clear"}
	closeMsg = websocketMessage{Type: "Close"}
)
