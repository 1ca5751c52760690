package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/koscakluka/ema-tutor/core/audio"
	"github.com/koscakluka/ema-tutor/internal/retry"
)

type listenServer struct {
	query  atomic.Value
	status int

	mu       sync.Mutex
	received bytes.Buffer
}

func (s *listenServer) receivedBytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.received.Bytes())
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1}
}

func (s *listenServer) start(t *testing.T, transcripts ...string) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.status != 0 {
			w.WriteHeader(s.status)
			return
		}
		s.query.Store(r.URL.RawQuery)
		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		for {
			msgType, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.BinaryMessage {
				s.mu.Lock()
				s.received.Write(msg)
				s.mu.Unlock()
				continue
			}
			if !strings.Contains(string(msg), "CloseStream") {
				continue
			}
			for _, transcript := range transcripts {
				result := map[string]any{
					"type":     "Results",
					"is_final": true,
					"channel": map[string]any{
						"alternatives": []map[string]any{{"transcript": transcript}},
					},
				}
				if err := conn.WriteJSON(result); err != nil {
					return
				}
			}
			conn.WriteJSON(map[string]any{"type": "Metadata"})
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestTranscribeJoinsFinalResults(t *testing.T) {
	server := &listenServer{}
	url := server.start(t, "Is it", "three quarters?")

	client, err := NewTranscriptionClient("test-key", WithURL(url), WithRetryPolicy(fastRetry()))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	clip := bytes.Repeat([]byte{1, 2, 3}, 10000)
	transcript, err := client.Transcribe(context.Background(), clip)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transcript != "Is it three quarters?" {
		t.Fatalf("unexpected transcript %q", transcript)
	}
	if received := server.receivedBytes(); !bytes.Equal(received, clip) {
		t.Fatalf("server received %d bytes, want %d", len(received), len(clip))
	}

	query := server.query.Load().(string)
	if strings.Contains(query, "encoding=") {
		t.Fatalf("containerized audio should not set an encoding: %s", query)
	}
	if !strings.Contains(query, "model=nova-3") {
		t.Fatalf("expected default model in query: %s", query)
	}
}

func TestTranscribeRawAudioSetsEncoding(t *testing.T) {
	server := &listenServer{}
	url := server.start(t, "hello")

	client, err := NewTranscriptionClient("test-key", WithURL(url),
		WithEncodingInfo(audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingLinear16}))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if _, err := client.Transcribe(context.Background(), []byte{0, 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	query := server.query.Load().(string)
	if !strings.Contains(query, "encoding=linear16") || !strings.Contains(query, "sample_rate=16000") {
		t.Fatalf("expected encoding in query: %s", query)
	}
}

func TestTranscribeSilenceIsEmpty(t *testing.T) {
	server := &listenServer{}
	url := server.start(t)

	client, err := NewTranscriptionClient("test-key", WithURL(url))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	transcript, err := client.Transcribe(context.Background(), []byte{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transcript != "" {
		t.Fatalf("expected empty transcript, got %q", transcript)
	}
}

func TestTranscribeEmptyClipSkipsConnection(t *testing.T) {
	client, err := NewTranscriptionClient("test-key", WithURL("ws://127.0.0.1:1"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	transcript, err := client.Transcribe(context.Background(), nil)
	if err != nil || transcript != "" {
		t.Fatalf("expected empty result, got %q, %v", transcript, err)
	}
}

func TestTranscribeUnauthorizedFails(t *testing.T) {
	server := &listenServer{status: http.StatusUnauthorized}
	url := server.start(t)

	client, err := NewTranscriptionClient("test-key", WithURL(url), WithRetryPolicy(fastRetry()))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if _, err := client.Transcribe(context.Background(), []byte{1}); err == nil {
		t.Fatalf("expected handshake error")
	}
}

func TestNewTranscriptionClientValidates(t *testing.T) {
	if _, err := NewTranscriptionClient(""); err == nil {
		t.Fatalf("expected error for missing api key")
	}
	if _, err := NewTranscriptionClient("k", WithEncodingInfo(audio.EncodingInfo{SampleRate: 11025, Format: audio.EncodingLinear16})); err == nil {
		t.Fatalf("expected error for unsupported sample rate")
	}
}

func TestNewTranscriptionClientKeepsEncoding(t *testing.T) {
	client, err := NewTranscriptionClient("k")
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if client.encoding != nil {
		t.Fatalf("containerized audio should have no encoding, got %+v", client.encoding)
	}

	client, err = NewTranscriptionClient("k", WithEncodingInfo(audio.EncodingInfo{SampleRate: 48000, Format: audio.EncodingLinear16}))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if client.encoding == nil || client.encoding.Format != encodingLinear16 || client.encoding.SampleRate != 48000 {
		t.Fatalf("unexpected encoding %+v", client.encoding)
	}
}

func TestProcessMessage(t *testing.T) {
	interim, _ := json.Marshal(map[string]any{
		"type":     "Results",
		"is_final": false,
		"channel":  map[string]any{"alternatives": []map[string]any{{"transcript": "is"}}},
	})
	done, segment, err := processMessage(interim)
	if err != nil || done || segment != "" {
		t.Fatalf("interim results should be ignored, got %v %q %v", done, segment, err)
	}

	done, _, err = processMessage([]byte(`{"type":"Metadata"}`))
	if err != nil || !done {
		t.Fatalf("metadata should end the stream, got %v %v", done, err)
	}

	if _, _, err := processMessage([]byte(`not json`)); err == nil {
		t.Fatalf("expected parse error")
	}
}
