package console

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/koscakluka/ema-tutor/core/directives"
	"github.com/koscakluka/ema-tutor/core/tutoring"
)

type fakeTransport struct {
	sent    []tutoring.Message
	sendErr error
}

func (f *fakeTransport) Send(msg tutoring.Message) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) Receive() (tutoring.Envelope, error) {
	return tutoring.Envelope{}, errors.New("not scripted")
}

func command(d directives.Directive) envelopeMsg {
	return envelopeMsg{tutoring.Envelope{Type: tutoring.EnvelopeCommand, Command: &d}}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// typeLine enters value and runs whatever it sends.
func typeLine(t *testing.T, m Model, value string) Model {
	t.Helper()
	m.input.SetValue(value)
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		if msg := cmd(); msg != nil {
			m, _ = update(t, m, msg)
		}
	}
	return m
}

func TestStreamedSpeechIsJoined(t *testing.T) {
	m := NewModel(&fakeTransport{}, "s-1")

	first := directives.Speech(directives.KindTeacherSpeech, "Hello there.")
	first.Partial = true
	m, _ = update(t, m, command(first))
	m, _ = update(t, m, command(directives.Speech(directives.KindTeacherSpeech, "Ready?")))
	m, _ = update(t, m, command(directives.Speech(directives.KindClassmateSpeech, "Yes!")))

	if len(m.lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(m.lines), m.lines)
	}
	if !strings.Contains(m.lines[0], "Hello there. Ready?") {
		t.Fatalf("expected joined teacher line, got %q", m.lines[0])
	}
	if !strings.Contains(m.View(), "Yes!") {
		t.Fatalf("expected classmate speech in view")
	}
}

func TestAudioOnlySpeechIsNotRendered(t *testing.T) {
	m := NewModel(&fakeTransport{}, "s-1")
	d := directives.Directive{Kind: directives.KindTeacherSpeech, Payload: &directives.SpeechPayload{AudioBytes: []byte{1, 2}}}

	m, _ = update(t, m, command(d))
	if len(m.lines) != 0 {
		t.Fatalf("expected nothing rendered, got %q", m.lines)
	}
}

func TestMultipleChoiceAnswer(t *testing.T) {
	transport := &fakeTransport{}
	m := NewModel(transport, "s-1")
	m, _ = update(t, m, command(directives.Directive{
		Kind: directives.KindMCQQuestion,
		Payload: &directives.MultipleChoiceQuestionPayload{
			Question: "What is half of 4?",
			Options:  []directives.QuestionOption{{Text: "1"}, {Text: "2", Correct: true}},
		},
	}))

	m = typeLine(t, m, "7")
	if len(transport.sent) != 0 {
		t.Fatalf("expected out of range answer to be rejected")
	}

	m = typeLine(t, m, "2")
	if len(transport.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(transport.sent))
	}
	msg := transport.sent[0]
	if msg.Type != tutoring.MessageStudentInteraction || msg.SessionID != "s-1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.Interaction.Type != tutoring.InteractionMCQ || msg.Interaction.Answer != "2" || !msg.Interaction.Correct {
		t.Fatalf("unexpected interaction %+v", msg.Interaction)
	}
	if m.question != nil {
		t.Fatalf("expected question to be closed after answering")
	}
}

func TestBinaryChoiceAnswer(t *testing.T) {
	transport := &fakeTransport{}
	m := NewModel(transport, "s-1")
	m, _ = update(t, m, command(directives.Directive{
		Kind: directives.KindBinaryChoiceQuestion,
		Payload: &directives.BinaryChoiceQuestionPayload{
			Question: "Is 1/2 bigger than 1/3?",
			Left:     "Yes",
			Right:    "No",
			Correct:  directives.BinaryChoiceLeft,
		},
	}))

	typeLine(t, m, "r")
	if len(transport.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(transport.sent))
	}
	got := transport.sent[0].Interaction
	if got.Type != tutoring.InteractionBinaryChoice || got.Answer != "No" || got.Correct {
		t.Fatalf("unexpected interaction %+v", got)
	}
}

func TestTextAndNext(t *testing.T) {
	transport := &fakeTransport{}
	m := NewModel(transport, "s-1")

	m = typeLine(t, m, "I think it is a half")
	m = typeLine(t, m, "/next")
	typeLine(t, m, "   ")

	if len(transport.sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(transport.sent))
	}
	if got := transport.sent[0].Interaction; got == nil || got.Type != tutoring.InteractionText || got.Text != "I think it is a half" {
		t.Fatalf("unexpected text interaction %+v", got)
	}
	if transport.sent[1].Type != tutoring.MessageNextPhase {
		t.Fatalf("expected next_phase, got %s", transport.sent[1].Type)
	}
}

func TestSendFailureIsShown(t *testing.T) {
	m := NewModel(&fakeTransport{sendErr: errors.New("broken pipe")}, "s-1")
	m = typeLine(t, m, "/next")

	if !strings.Contains(m.lines[len(m.lines)-1], "broken pipe") {
		t.Fatalf("expected send failure to be rendered, got %q", m.lines)
	}
}

func TestEnvelopes(t *testing.T) {
	m := NewModel(&fakeTransport{}, "s-1")

	m, cmd := update(t, m, envelopeMsg{tutoring.Envelope{Type: tutoring.EnvelopeError, Message: "Session not found"}})
	if cmd == nil {
		t.Fatalf("expected to keep listening")
	}
	m, _ = update(t, m, envelopeMsg{tutoring.Envelope{Type: tutoring.EnvelopeStudentSpeech, Text: "one half"}})
	m, _ = update(t, m, command(directives.Directive{Kind: directives.KindWhiteboard, Payload: &directives.WhiteboardPayload{HTML: "<p>1/2</p>"}}))
	m, _ = update(t, m, envelopeMsg{tutoring.Envelope{Type: tutoring.EnvelopeFinishModule, Message: "Module finished"}})

	view := m.View()
	for _, want := range []string{"Session not found", "one half", "1/2", "Module finished", "module finished"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
	if strings.Contains(view, "<p>") {
		t.Fatalf("expected markup to be stripped")
	}

	m, cmd = update(t, m, receiveErr{errors.New("closed")})
	if cmd != nil || !m.closed {
		t.Fatalf("expected to stop listening after the connection closes")
	}
}
