package tutoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/koscakluka/ema-tutor/core/directives"
	"github.com/koscakluka/ema-tutor/core/llms"
)

// turnQueueCapacity bounds how many parsed batches may wait for dispatch.
const turnQueueCapacity = 10

type turnState int

const (
	turnAwaiting turnState = iota
	turnStreaming
	turnComplete
)

func (s turnState) String() string {
	switch s {
	case turnAwaiting:
		return "awaiting_turn"
	case turnStreaming:
		return "streaming"
	case turnComplete:
		return "turn_complete"
	}
	return fmt.Sprintf("turnState(%d)", int(s))
}

// turn is one generation request and the directives parsed from its text.
type turn struct {
	state      turnState
	request    llms.Request
	parser     *directives.Parser
	responseID string
	started    time.Time
}

func newTurn(request llms.Request) *turn {
	return &turn{
		state:   turnAwaiting,
		request: request,
		parser:  directives.NewParser(),
		started: time.Now(),
	}
}

// runTurn generates a response and dispatches its directives as they are
// parsed. Directives are dispatched in parse order. The response id is only
// carried over to the session once the whole turn succeeded.
func (t *Tutor) runTurn(ctx context.Context, s *scope, message string) (err error) {
	ctx, span := tracer.Start(ctx, "run turn")
	tr := newTurn(llms.NewRequest(s.session.SystemInstructions, message, s.session.PreviousResponseID, t.requestOptions...))
	defer func() {
		outcome := OutcomeCompleted
		switch {
		case errors.Is(err, context.Canceled):
			outcome = OutcomeCanceled
		case err != nil:
			outcome = OutcomeFailed
			span.RecordError(err)
			span.SetStatus(codes.Error, "turn failed")
		}
		span.SetAttributes(
			attribute.String("turn.state", tr.state.String()),
			attribute.String("turn.outcome", outcome),
			attribute.String("turn.response_id", tr.responseID),
		)
		t.recorder.TurnFinished(outcome, time.Since(tr.started))
		span.End()
	}()

	batches := make(chan []directives.Directive, turnQueueCapacity)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return panicSafeNamedWorker("generation", func(ctx context.Context) error {
			defer close(batches)
			return t.generate(ctx, tr, batches)
		})(gctx)
	})
	g.Go(func() error {
		return panicSafeNamedWorker("dispatch", func(ctx context.Context) error {
			for batch := range batches {
				if err := t.dispatcher.Dispatch(ctx, s.conn, s.session, batch); err != nil {
					return err
				}
			}
			return nil
		})(gctx)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("turn failed: %w", err)
	}

	tr.state = turnComplete
	if kind, open := tr.parser.Open(); open {
		logger.Warn("turn ended with an open directive", "session", s.session.ID, "kind", kind)
	}
	if stray := tr.parser.Stray(); stray != "" {
		logger.Debug("turn produced text outside directives", "session", s.session.ID, "text", stray)
	}
	if tr.responseID != "" {
		s.session.PreviousResponseID = tr.responseID
	}
	return nil
}

// generate feeds generated text to the parser and queues every non empty batch
// of directives it yields.
func (t *Tutor) generate(ctx context.Context, tr *turn, out chan<- []directives.Directive) error {
	tr.state = turnStreaming

	feed := func(text string) error {
		tr.parser.Add(text)
		batch, err := tr.parser.Parse()
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		select {
		case out <- batch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if !t.streaming {
		response, err := t.generator.Respond(ctx, tr.request)
		if err != nil {
			return fmt.Errorf("failed to generate response: %w", err)
		}
		tr.responseID = response.ID
		return feed(response.Text)
	}

	for chunk, err := range t.generator.Stream(ctx, tr.request).Chunks(ctx) {
		if err != nil {
			return fmt.Errorf("failed to generate response: %w", err)
		}
		switch chunk := chunk.(type) {
		case llms.StreamCompletedChunk:
			if id := chunk.ResponseID(); id != "" {
				tr.responseID = id
			}
		case llms.StreamCreatedChunk:
			tr.responseID = chunk.ResponseID()
		case llms.StreamContentChunk:
			if err := feed(chunk.Content()); err != nil {
				return err
			}
		}
	}
	return nil
}
