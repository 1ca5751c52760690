package tutoring

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/koscakluka/ema-tutor/core/directives"
	"github.com/koscakluka/ema-tutor/core/lessons"
	"github.com/koscakluka/ema-tutor/core/llms"
	"github.com/koscakluka/ema-tutor/core/progress"
	"github.com/koscakluka/ema-tutor/core/store"
)

type fakeConn struct {
	mu        sync.Mutex
	envelopes []Envelope
	err       error
}

func (c *fakeConn) Send(_ context.Context, envelope Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.envelopes = append(c.envelopes, envelope)
	return nil
}

func (c *fakeConn) sent() []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Envelope(nil), c.envelopes...)
}

func (c *fakeConn) ofType(envelopeType EnvelopeType) []Envelope {
	var out []Envelope
	for _, e := range c.sent() {
		if e.Type == envelopeType {
			out = append(out, e)
		}
	}
	return out
}

// commands returns the kinds of the text carrying command envelopes, audio
// chunks and stream markers left out.
func (c *fakeConn) commands() []directives.Kind {
	var kinds []directives.Kind
	for _, e := range c.ofType(EnvelopeCommand) {
		if speech, ok := e.Command.Payload.(*directives.SpeechPayload); ok && speech.Text == "" {
			continue
		}
		kinds = append(kinds, e.Command.Kind)
	}
	return kinds
}

// fakeSynthesizer yields chunks of fixed size per synthesized text.
type fakeSynthesizer struct {
	mu        sync.Mutex
	chunks    int
	chunkSize int
	voices    []string
	err       error
}

func (s *fakeSynthesizer) Synthesize(_ context.Context, _ string, voice string) iter.Seq2[[]byte, error] {
	s.mu.Lock()
	s.voices = append(s.voices, voice)
	s.mu.Unlock()

	return func(yield func([]byte, error) bool) {
		if s.err != nil {
			yield(nil, s.err)
			return
		}
		for range s.chunks {
			if !yield(make([]byte, s.chunkSize), nil) {
				return
			}
		}
	}
}

type gameLookup map[string]*lessons.Game

func (g gameLookup) Game(_ context.Context, id string) (*lessons.Game, error) {
	game, ok := g[id]
	if !ok {
		return nil, fmt.Errorf("game with id %q: %w", id, store.ErrNotFound)
	}
	return game, nil
}

type createdChunk struct{ id string }

func (createdChunk) FinishReason() *string { return nil }
func (c createdChunk) ResponseID() string  { return c.id }

type contentChunk struct{ text string }

func (contentChunk) FinishReason() *string { return nil }
func (c contentChunk) Content() string     { return c.text }

type completedChunk struct{ id string }

func (completedChunk) FinishReason() *string { return nil }
func (c completedChunk) ResponseID() string  { return c.id }
func (completedChunk) Usage() llms.Usage     { return llms.Usage{} }

type fakeStream struct {
	id        string
	fragments []string
	err       error
}

func (s fakeStream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		if !yield(createdChunk{id: s.id}, nil) {
			return
		}
		for _, fragment := range s.fragments {
			if ctx.Err() != nil {
				yield(nil, ctx.Err())
				return
			}
			if !yield(contentChunk{text: fragment}, nil) {
				return
			}
		}
		if s.err != nil {
			yield(nil, s.err)
			return
		}
		yield(completedChunk{id: s.id}, nil)
	}
}

// fakeGenerator answers the n-th request with the n-th script, split into
// fragments of a few bytes, and with <ACKNOWLEDGE/> once scripts run out.
type fakeGenerator struct {
	mu       sync.Mutex
	scripts  []string
	requests []llms.Request
	err      error
}

func (g *fakeGenerator) next(request llms.Request) (string, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, request)
	n := len(g.requests)
	text := "<ACKNOWLEDGE/>"
	if n <= len(g.scripts) {
		text = g.scripts[n-1]
	}
	return fmt.Sprintf("resp-%d", n), text
}

func (g *fakeGenerator) Respond(_ context.Context, request llms.Request) (*llms.Response, error) {
	id, text := g.next(request)
	if g.err != nil {
		return nil, g.err
	}
	return &llms.Response{ID: id, Text: text}, nil
}

func (g *fakeGenerator) Stream(_ context.Context, request llms.Request) llms.Stream {
	id, text := g.next(request)
	return fakeStream{id: id, fragments: fragments(text, 7), err: g.err}
}

func (g *fakeGenerator) sentRequests() []llms.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]llms.Request(nil), g.requests...)
}

func fragments(text string, size int) []string {
	var out []string
	for len(text) > size {
		out = append(out, text[:size])
		text = text[size:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

// gatedGenerator holds every request until release is closed and records
// whether two requests were ever in flight together.
type gatedGenerator struct {
	*fakeGenerator
	entered  chan struct{}
	release  chan struct{}
	inflight atomic.Int32
	overlap  atomic.Bool
}

func (g *gatedGenerator) Respond(ctx context.Context, request llms.Request) (*llms.Response, error) {
	if g.inflight.Add(1) > 1 {
		g.overlap.Store(true)
	}
	defer g.inflight.Add(-1)

	g.entered <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.fakeGenerator.Respond(ctx, request)
}

type panickingTranscriber struct{}

func (panickingTranscriber) Transcribe(context.Context, []byte) (string, error) {
	panic("decoder state corrupted")
}

type fakeTranscriber struct {
	text string
	err  error
}

func (t fakeTranscriber) Transcribe(context.Context, []byte) (string, error) {
	return t.text, t.err
}

var errUnavailable = errors.New("provider unavailable")

func testCourse() *lessons.Course {
	return &lessons.Course{
		ID:          "fractions",
		Title:       "Fractions",
		Description: "Parts of a whole.",
		Topics: []lessons.Topic{{
			Title: "Halves and quarters",
			Modules: []lessons.Module{
				{Title: "Halves", Phases: []lessons.Phase{
					{Type: lessons.PhaseContent, Content: []directives.Directive{
						directives.Speech(directives.KindTeacherSpeech, "Welcome to fractions."),
						{Kind: directives.KindWhiteboard, Payload: &directives.WhiteboardPayload{HTML: "<p>1/2</p>"}},
					}},
					{Type: lessons.PhaseInstruction, Instruction: "Ask what half of eight is."},
				}},
				{Title: "Quarters", Phases: []lessons.Phase{
					{Type: lessons.PhaseInstruction, Instruction: "Introduce quarters with a pizza."},
				}},
			},
		}},
	}
}

// seedRecords stores a course, its characters and user, and session s-1 in
// memory.
func seedRecords(t *testing.T) *lessons.Records {
	t.Helper()

	ctx := context.Background()
	records := lessons.NewRecords(store.NewMemory())
	teacher := lessons.Character{Role: lessons.RoleTeacher, Name: "Maya", VoiceID: "aura-2-thalia-en", Personality: "Warm and curious."}
	classmate := lessons.Character{Role: lessons.RoleClassmate, Name: "Leo", VoiceID: "aura-2-apollo-en"}

	for _, err := range []error{
		records.PutCourse(ctx, testCourse()),
		records.PutCharacter(ctx, &teacher),
		records.PutCharacter(ctx, &classmate),
		records.PutUser(ctx, &lessons.User{ID: "u-1", Name: "Ana", OnboardingData: lessons.OnboardingData{Age: 11, Interests: []string{"football"}}}),
		records.PutGame(ctx, &lessons.Game{ID: "pizza-slices", Name: "Pizza slices", Code: "<canvas></canvas>"}),
		records.PutSession(ctx, &lessons.Session{
			ID:        "s-1",
			UserID:    "u-1",
			CourseID:  "fractions",
			Teacher:   teacher.Ref(),
			Classmate: classmate.Ref(),
			Status:    progress.StatusNotStarted,
		}),
	} {
		if err != nil {
			t.Fatalf("failed to seed records: %v", err)
		}
	}
	return records
}

func loadSession(t *testing.T, records *lessons.Records) *lessons.Session {
	t.Helper()
	session, err := records.Session(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("failed to load session: %v", err)
	}
	return session
}

func eventTypes(session *lessons.Session) []string {
	var types []string
	for _, event := range session.EventLogs {
		types = append(types, event.Type)
	}
	return types
}

func containsEvent(session *lessons.Session, eventType string) bool {
	for _, t := range eventTypes(session) {
		if t == eventType {
			return true
		}
	}
	return false
}

func joinKinds(kinds []directives.Kind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}
