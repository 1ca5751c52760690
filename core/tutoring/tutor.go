// Package tutoring runs tutoring sessions: it turns generated text into
// directives and plays them to a client while moving the session through its
// course.
package tutoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/koscakluka/ema-tutor/core/directives"
	"github.com/koscakluka/ema-tutor/core/lessons"
	"github.com/koscakluka/ema-tutor/core/llms"
	"github.com/koscakluka/ema-tutor/core/progress"
	"github.com/koscakluka/ema-tutor/core/speechtotext"
	"github.com/koscakluka/ema-tutor/core/store"
)

// Tutor handles the messages of tutoring sessions. A Tutor is shared by all
// connections, each session is worked on by one operation at a time.
type Tutor struct {
	records     *lessons.Records
	locker      store.Locker
	generator   llms.Generator
	transcriber speechtotext.Transcriber
	dispatcher  *Dispatcher
	aggregator  Aggregator
	recorder    Recorder

	streaming      bool
	requestOptions []llms.RequestOption
}

func NewTutor(records *lessons.Records, generator llms.Generator, dispatcher *Dispatcher, opts ...TutorOption) *Tutor {
	t := &Tutor{
		records:    records,
		locker:     store.NewKeyedMutex(),
		generator:  generator,
		dispatcher: dispatcher,
		aggregator: SummaryAggregator{Records: records},
		recorder:   nopRecorder{},
		streaming:  true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// scope is the working copy of a session for the duration of one operation.
type scope struct {
	conn    Conn
	session *lessons.Session
	course  *lessons.Course
}

// Handle processes one inbound message. Failures of the operation are
// reported to the client, the returned error means conn is no longer usable.
func (t *Tutor) Handle(ctx context.Context, conn Conn, msg Message) error {
	ctx, span := tracer.Start(ctx, "handle message", trace.WithAttributes(
		attribute.String("message.type", string(msg.Type)),
		attribute.String("session.id", msg.SessionID),
	))
	defer span.End()

	switch msg.Type {
	case MessagePing:
		return t.ping(ctx, conn, msg.SessionID)
	case MessageStartSession:
		return t.withSession(ctx, conn, msg.SessionID, func(ctx context.Context, s *scope) error {
			s.session.Log(lessons.EventStartSession, nil)
			return t.startPhase(ctx, s)
		})
	case MessageNextPhase:
		return t.withSession(ctx, conn, msg.SessionID, t.nextPhase)
	case MessageStudentInteraction:
		return t.withSession(ctx, conn, msg.SessionID, func(ctx context.Context, s *scope) error {
			return t.studentInteraction(ctx, s, msg.Interaction)
		})
	case MessageStartGame:
		return t.withSession(ctx, conn, msg.SessionID, func(ctx context.Context, s *scope) error {
			return t.startGame(ctx, s, msg.Payload)
		})
	case MessageFinishGame:
		return t.withSession(ctx, conn, msg.SessionID, t.finishGame)
	}

	logger.Info("unknown message type", "type", msg.Type, "session", msg.SessionID)
	return conn.Send(ctx, errorEnvelope(fmt.Sprintf("Unknown message type: %s", msg.Type)))
}

// withSession runs op on a working copy of the session under the session's
// lock. The copy is persisted only if op succeeds, otherwise the failure is
// reported and appended to the last persisted record.
func (t *Tutor) withSession(ctx context.Context, conn Conn, sessionID string, op func(context.Context, *scope) error) error {
	unlock, err := t.locker.Lock(ctx, sessionID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return conn.Send(ctx, errorEnvelope(fmt.Sprintf("failed to lock session: %v", err)))
	}
	defer unlock()

	s, err := t.load(ctx, conn, sessionID)
	if err != nil {
		return conn.Send(ctx, errorEnvelope(err.Error()))
	}

	if err := recoverOperation(op)(ctx, s); err != nil {
		return t.fail(ctx, conn, sessionID, err)
	}

	s.session.LastAliveAt = time.Now().UTC()
	if err := t.records.PutSession(ctx, s.session); err != nil {
		logger.Error("failed to save session", "session", sessionID, "error", err)
		return conn.Send(ctx, errorEnvelope(fmt.Sprintf("failed to save session: %v", err)))
	}
	return nil
}

func (t *Tutor) load(ctx context.Context, conn Conn, sessionID string) (*scope, error) {
	session, err := t.records.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	course, err := t.records.Course(ctx, session.CourseID)
	if err != nil {
		return nil, err
	}
	return &scope{conn: conn, session: session, course: course}, nil
}

func (t *Tutor) fail(ctx context.Context, conn Conn, sessionID string, cause error) error {
	if ctx.Err() != nil {
		logger.Info("session operation aborted", "session", sessionID, "error", cause)
		return ctx.Err()
	}

	logger.Warn("session operation failed", "session", sessionID, "error", cause)
	if err := conn.Send(ctx, errorEnvelope(cause.Error())); err != nil {
		return err
	}

	session, err := t.records.Session(ctx, sessionID)
	if err != nil {
		logger.Error("failed to reload session", "session", sessionID, "error", err)
		return nil
	}
	session.Log(lessons.EventError, map[string]any{"message": cause.Error()})
	if err := t.records.PutSession(ctx, session); err != nil {
		logger.Error("failed to save session error", "session", sessionID, "error", err)
	}
	return nil
}

// ping answers right away. The event is logged only when no other operation
// holds the session.
func (t *Tutor) ping(ctx context.Context, conn Conn, sessionID string) error {
	if _, err := t.records.Session(ctx, sessionID); err != nil {
		return conn.Send(ctx, errorEnvelope(err.Error()))
	}
	if err := conn.Send(ctx, Envelope{Type: EnvelopePong, Message: "Server is alive", Timestamp: time.Now().UTC()}); err != nil {
		return err
	}

	unlock, err := t.locker.TryLock(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, store.ErrLockHeld) {
			logger.Warn("failed to lock session for ping", "session", sessionID, "error", err)
		}
		return nil
	}
	defer unlock()

	session, err := t.records.Session(ctx, sessionID)
	if err != nil {
		return nil
	}
	session.Log(lessons.EventPing, nil)
	session.LastAliveAt = time.Now().UTC()
	if err := t.records.PutSession(ctx, session); err != nil {
		logger.Warn("failed to save ping", "session", sessionID, "error", err)
	}
	return nil
}

func (t *Tutor) startPhase(ctx context.Context, s *scope) error {
	phase, err := s.course.Phase(s.session.Progress)
	if err != nil {
		return err
	}
	transition, err := progress.Next(s.session.Status, progress.EventEnterPhase)
	if err != nil {
		return fmt.Errorf("cannot start phase %s: %w", s.session.Progress, err)
	}

	if s.session.SystemInstructions == "" {
		instructions, err := t.instructions(ctx, s)
		if err != nil {
			return err
		}
		s.session.SystemInstructions = instructions
	}

	s.session.Status = transition.Status
	if transition.ClearContinuity {
		s.session.PreviousResponseID = ""
		s.session.CheckpointResponseID = ""
	} else {
		s.session.PreviousResponseID = s.session.CheckpointResponseID
	}
	s.session.Log(lessons.EventStartPhase, map[string]any{"progress": s.session.Progress})

	if phase.Type == lessons.PhaseContent && len(phase.Content) > 0 {
		content := make([]directives.Directive, 0, len(phase.Content))
		for _, d := range phase.Content {
			content = append(content, d.Clone())
		}
		if err := t.dispatcher.Dispatch(ctx, s.conn, s.session, content); err != nil {
			return err
		}
	}

	return t.runTurn(ctx, s, phasePrompt(phase))
}

func (t *Tutor) instructions(ctx context.Context, s *scope) (string, error) {
	user, err := t.records.User(ctx, s.session.UserID)
	if err != nil {
		return "", err
	}
	teacher, err := t.records.Character(ctx, s.session.Teacher.Name)
	if err != nil {
		return "", err
	}
	classmate, err := t.records.Character(ctx, s.session.Classmate.Name)
	if err != nil {
		return "", err
	}
	return systemInstructions(s.course, user, teacher, classmate), nil
}

func (t *Tutor) nextPhase(ctx context.Context, s *scope) error {
	current := s.session.Progress
	if !current.Valid(s.course.Tree()) {
		return fmt.Errorf("%w: %s in course %q", lessons.ErrNoSuchPhase, current, s.course.ID)
	}
	next, more := progress.Advance(current, s.course.Tree())

	event := progress.EventAdvanced
	if !more {
		event = progress.EventExhausted
	}
	transition, err := progress.Next(s.session.Status, event)
	if err != nil {
		return fmt.Errorf("cannot leave phase %s: %w", current, err)
	}
	s.session.Log(lessons.EventNextPhase, map[string]any{"progress": current})
	s.session.Status = transition.Status

	if !more {
		return t.finish(ctx, s)
	}

	s.session.Progress = next
	s.session.CheckpointResponseID = s.session.PreviousResponseID
	return t.startPhase(ctx, s)
}

func (t *Tutor) finish(ctx context.Context, s *scope) error {
	s.session.Log(lessons.EventFinishModule, nil)
	if err := t.records.PutSession(ctx, s.session); err != nil {
		return fmt.Errorf("failed to save completed session: %w", err)
	}
	if err := s.conn.Send(ctx, Envelope{Type: EnvelopeFinishModule, Message: "Module finished", Timestamp: time.Now().UTC()}); err != nil {
		return err
	}

	if t.aggregator != nil {
		if err := t.aggregator.SessionCompleted(ctx, s.session, s.course); err != nil {
			logger.Error("failed to aggregate completed session", "session", s.session.ID, "error", err)
		}
	}
	logger.Info("session completed", "session", s.session.ID, "course", s.course.ID)
	return nil
}

func (t *Tutor) studentInteraction(ctx context.Context, s *scope, interaction *Interaction) error {
	if interaction == nil {
		return ErrMissingInteraction
	}

	var prompt, transcription string
	switch {
	case interaction.Type == InteractionSpeech:
		if t.transcriber == nil {
			return ErrNoTranscriber
		}
		text, err := t.transcriber.Transcribe(ctx, interaction.AudioBytes)
		if err != nil {
			return fmt.Errorf("failed to transcribe speech: %w", err)
		}
		transcription = strings.TrimSpace(text)
		if transcription == "" {
			return nil
		}
		if err := s.conn.Send(ctx, Envelope{Type: EnvelopeStudentSpeech, Text: transcription, Timestamp: time.Now().UTC()}); err != nil {
			return err
		}
		prompt = speechPrompt(transcription)
	case interaction.Type == InteractionText:
		if strings.TrimSpace(interaction.Text) == "" {
			return nil
		}
		prompt = speechPrompt(interaction.Text)
	case interaction.isQuestion():
		prompt = answerPrompt(*interaction)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownInteraction, interaction.Type)
	}

	if err := t.runTurn(ctx, s, prompt); err != nil {
		return err
	}
	s.session.Log(lessons.EventStudentInteraction, interaction.logData(transcription))
	return nil
}

func (t *Tutor) startGame(ctx context.Context, s *scope, payload json.RawMessage) error {
	var game lessons.TwoPlayerGame
	if err := json.Unmarshal(payload, &game); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidGame, err)
	}
	if game.Title == "" {
		return fmt.Errorf("%w: title is empty", ErrInvalidGame)
	}

	s.session.SystemInstructions = gameInstructions(game)
	s.session.Log(lessons.EventStartGame, map[string]any{"title": game.Title, "topic": game.Topic})
	return t.runTurn(ctx, s, startGamePrompt)
}

// finishGame also drops the game instructions, the next phase rebuilds the
// tutoring ones.
func (t *Tutor) finishGame(ctx context.Context, s *scope) error {
	if err := t.runTurn(ctx, s, finishGamePrompt); err != nil {
		return err
	}
	s.session.SystemInstructions = ""
	s.session.Log(lessons.EventFinishGame, nil)
	return nil
}
