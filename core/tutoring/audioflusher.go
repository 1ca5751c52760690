package tutoring

import (
	"context"
	"fmt"

	"github.com/koscakluka/ema-tutor/core/directives"
)

// DefaultFlushThreshold is the amount of audio gathered before it is sent on.
const DefaultFlushThreshold = 16 << 10

// audioFlusher gathers synthesized audio for one speech directive and sends it
// in messages of at least threshold bytes, the last one possibly smaller.
type audioFlusher struct {
	conn      Conn
	kind      directives.Kind
	partial   bool
	threshold int
	recorder  Recorder

	buffer  []byte
	flushes int
	total   int
}

func newAudioFlusher(conn Conn, d directives.Directive, threshold int, recorder Recorder) *audioFlusher {
	if threshold <= 0 {
		threshold = DefaultFlushThreshold
	}
	return &audioFlusher{
		conn:      conn,
		kind:      d.Kind,
		partial:   d.Partial,
		threshold: threshold,
		recorder:  recorder,
	}
}

func (f *audioFlusher) Add(ctx context.Context, audio []byte) error {
	f.buffer = append(f.buffer, audio...)
	if len(f.buffer) < f.threshold {
		return nil
	}
	return f.flush(ctx)
}

// Close sends what is left and then the stream complete marker.
func (f *audioFlusher) Close(ctx context.Context) error {
	if len(f.buffer) > 0 {
		if err := f.flush(ctx); err != nil {
			return err
		}
	}

	marker := directives.Directive{
		Kind:    f.kind,
		Payload: &directives.SpeechPayload{StreamComplete: true},
		Partial: f.partial,
	}
	if err := f.conn.Send(ctx, commandEnvelope(marker)); err != nil {
		return fmt.Errorf("failed to send stream complete marker: %w", err)
	}
	return nil
}

func (f *audioFlusher) flush(ctx context.Context) error {
	chunk := directives.Directive{
		Kind:    f.kind,
		Payload: &directives.SpeechPayload{AudioBytes: f.buffer},
		Partial: f.partial,
	}
	if err := f.conn.Send(ctx, commandEnvelope(chunk)); err != nil {
		return fmt.Errorf("failed to send audio: %w", err)
	}

	f.flushes++
	f.total += len(f.buffer)
	f.recorder.AudioFlushed(len(f.buffer))
	f.buffer = nil
	return nil
}
