package tutoring

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/koscakluka/ema-tutor/core/directives"
	"github.com/koscakluka/ema-tutor/core/lessons"
	"github.com/koscakluka/ema-tutor/core/texttospeech"
)

// GameLookup resolves the game a GAME directive names.
type GameLookup interface {
	Game(ctx context.Context, id string) (*lessons.Game, error)
}

// Dispatcher turns directives into messages on a connection, in order.
type Dispatcher struct {
	synthesizer    texttospeech.Synthesizer
	games          GameLookup
	flushThreshold int
	recorder       Recorder
}

type DispatcherOption func(*Dispatcher)

// WithFlushThreshold sets how much audio is gathered before it is sent.
func WithFlushThreshold(bytes int) DispatcherOption {
	return func(d *Dispatcher) { d.flushThreshold = bytes }
}

func WithDispatchRecorder(recorder Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		if recorder != nil {
			d.recorder = recorder
		}
	}
}

func NewDispatcher(synthesizer texttospeech.Synthesizer, games GameLookup, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		synthesizer:    synthesizer,
		games:          games,
		flushThreshold: DefaultFlushThreshold,
		recorder:       nopRecorder{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends ds in order. A directive that fails is reported to the client
// and logged to the session, the rest are still sent. Only a done context
// stops the batch.
func (d *Dispatcher) Dispatch(ctx context.Context, conn Conn, session *lessons.Session, ds []directives.Directive) error {
	for _, directive := range ds {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := d.dispatch(ctx, conn, session, directive)
		d.recorder.DirectiveDispatched(directive.Kind, err != nil)
		if err == nil {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Join(ctxErr, err)
		}

		logger.Warn("failed to dispatch directive",
			"session", session.ID, "kind", directive.Kind, "error", err)
		session.Log(lessons.EventDispatchError, map[string]any{
			"command_type": string(directive.Kind),
			"message":      err.Error(),
		})
		if sendErr := conn.Send(ctx, errorEnvelope(fmt.Sprintf("Error executing command: %v", err))); sendErr != nil {
			return fmt.Errorf("failed to report dispatch error: %w", sendErr)
		}
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, conn Conn, session *lessons.Session, directive directives.Directive) (err error) {
	ctx, span := tracer.Start(ctx, "dispatch directive", trace.WithAttributes(
		attribute.String("directive.kind", string(directive.Kind)),
		attribute.Bool("directive.partial", directive.Partial),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "dispatch failed")
		}
		span.End()
	}()

	switch {
	case directive.Kind.IsSpeech():
		if directive.Text() == "" {
			return nil
		}
		return d.dispatchSpeech(ctx, conn, session, directive)
	case directive.Kind == directives.KindGame:
		directive, err = d.resolveGame(ctx, directive)
		if err != nil {
			return err
		}
	}

	if err := conn.Send(ctx, commandEnvelope(directive)); err != nil {
		return err
	}
	logExecuted(session, directive)
	return nil
}

func (d *Dispatcher) dispatchSpeech(ctx context.Context, conn Conn, session *lessons.Session, directive directives.Directive) error {
	if err := conn.Send(ctx, commandEnvelope(directive)); err != nil {
		return err
	}
	logExecuted(session, directive)

	if d.synthesizer == nil {
		return nil
	}

	voice := session.Teacher.VoiceID
	if directive.Kind == directives.KindClassmateSpeech {
		voice = session.Classmate.VoiceID
	}

	flusher := newAudioFlusher(conn, directive, d.flushThreshold, d.recorder)
	for audio, err := range d.synthesizer.Synthesize(ctx, directive.Text(), voice) {
		if err != nil {
			return fmt.Errorf("failed to synthesize speech: %w", err)
		}
		if err := flusher.Add(ctx, audio); err != nil {
			return err
		}
	}
	if err := flusher.Close(ctx); err != nil {
		return err
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("audio.flushes", flusher.flushes),
		attribute.Int("audio.bytes", flusher.total),
	)
	return nil
}

// resolveGame fills in the code of the named game. The directive is copied, so
// a pre-authored one stays as it was.
func (d *Dispatcher) resolveGame(ctx context.Context, directive directives.Directive) (directives.Directive, error) {
	payload, ok := directive.Payload.(*directives.GamePayload)
	if !ok {
		return directive, fmt.Errorf("game directive without game payload")
	}
	if d.games == nil {
		return directive, fmt.Errorf("no game lookup configured")
	}

	game, err := d.games.Game(ctx, payload.GameID)
	if err != nil {
		return directive, fmt.Errorf("failed to resolve game: %w", err)
	}

	resolved := directive.Clone()
	resolved.Payload.(*directives.GamePayload).Code = game.Code
	return resolved, nil
}

func logExecuted(session *lessons.Session, directive directives.Directive) {
	session.Log(lessons.EventExecuteCommand, map[string]any{
		"command_type": string(directive.Kind),
		"command":      directive,
	})
}
