package tutoring

import (
	"context"
	"errors"
	"testing"

	"github.com/koscakluka/ema-tutor/core/directives"
	"github.com/koscakluka/ema-tutor/core/lessons"
)

func testSession() *lessons.Session {
	return &lessons.Session{
		ID:        "s-1",
		Teacher:   lessons.CharacterRef{Name: "Maya", VoiceID: "teacher-voice"},
		Classmate: lessons.CharacterRef{Name: "Leo", VoiceID: "classmate-voice"},
	}
}

func TestDispatchFlushesAudioAboveThreshold(t *testing.T) {
	conn := &fakeConn{}
	synthesizer := &fakeSynthesizer{chunks: 50, chunkSize: 1000}
	dispatcher := NewDispatcher(synthesizer, nil, WithFlushThreshold(16384))

	speech := directives.Speech(directives.KindTeacherSpeech, "Half of eight is four.")
	if err := dispatcher.Dispatch(context.Background(), conn, testSession(), []directives.Directive{speech}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := conn.sent()
	if len(sent) != 5 {
		t.Fatalf("expected text, 3 audio flushes and a marker, got %d messages", len(sent))
	}
	if got := sent[0].Command.Text(); got != "Half of eight is four." {
		t.Fatalf("expected the text first, got %q", got)
	}

	total := 0
	for i, envelope := range sent[1:4] {
		payload := envelope.Command.Payload.(*directives.SpeechPayload)
		if payload.Text != "" || payload.StreamComplete {
			t.Fatalf("flush %d should only carry audio: %+v", i, payload)
		}
		if i < 2 && len(payload.AudioBytes) < 16384 {
			t.Fatalf("flush %d is below the threshold: %d bytes", i, len(payload.AudioBytes))
		}
		total += len(payload.AudioBytes)
	}
	if total != 50000 {
		t.Fatalf("expected all 50000 bytes to be flushed, got %d", total)
	}

	marker := sent[4].Command.Payload.(*directives.SpeechPayload)
	if !marker.StreamComplete || len(marker.AudioBytes) != 0 {
		t.Fatalf("expected an empty stream complete marker, got %+v", marker)
	}
	if synthesizer.voices[0] != "teacher-voice" {
		t.Fatalf("expected the teacher voice, got %q", synthesizer.voices[0])
	}
}

func TestDispatchUsesClassmateVoice(t *testing.T) {
	conn := &fakeConn{}
	synthesizer := &fakeSynthesizer{chunks: 1, chunkSize: 10}
	dispatcher := NewDispatcher(synthesizer, nil)

	speech := directives.Speech(directives.KindClassmateSpeech, "Me too!")
	if err := dispatcher.Dispatch(context.Background(), conn, testSession(), []directives.Directive{speech}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if synthesizer.voices[0] != "classmate-voice" {
		t.Fatalf("expected the classmate voice, got %q", synthesizer.voices[0])
	}
	if len(conn.sent()) != 3 {
		t.Fatalf("expected text, one flush and a marker, got %d messages", len(conn.sent()))
	}
}

func TestDispatchSkipsEmptySpeech(t *testing.T) {
	conn := &fakeConn{}
	dispatcher := NewDispatcher(&fakeSynthesizer{chunks: 1, chunkSize: 1}, nil)

	empty := directives.Speech(directives.KindTeacherSpeech, "")
	if err := dispatcher.Dispatch(context.Background(), conn, testSession(), []directives.Directive{empty}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conn.sent()) != 0 {
		t.Fatalf("expected nothing to be sent, got %d messages", len(conn.sent()))
	}
}

func TestDispatchResolvesGameAtDispatch(t *testing.T) {
	conn := &fakeConn{}
	games := gameLookup{"pizza-slices": {ID: "pizza-slices", Code: "<canvas></canvas>"}}
	dispatcher := NewDispatcher(nil, games)

	game := directives.Directive{Kind: directives.KindGame, Payload: &directives.GamePayload{GameID: "pizza-slices"}}
	session := testSession()
	if err := dispatcher.Dispatch(context.Background(), conn, session, []directives.Directive{game}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := conn.sent()
	if len(sent) != 1 {
		t.Fatalf("expected one message, got %d", len(sent))
	}
	if code := sent[0].Command.Payload.(*directives.GamePayload).Code; code != "<canvas></canvas>" {
		t.Fatalf("expected the game code, got %q", code)
	}
	if code := game.Payload.(*directives.GamePayload).Code; code != "" {
		t.Fatalf("the dispatched directive should be left untouched, got code %q", code)
	}
	if !containsEvent(session, lessons.EventExecuteCommand) {
		t.Fatalf("expected an execute_command event, got %v", eventTypes(session))
	}
}

func TestDispatchContinuesAfterFailure(t *testing.T) {
	conn := &fakeConn{}
	dispatcher := NewDispatcher(nil, gameLookup{})
	session := testSession()

	batch := []directives.Directive{
		{Kind: directives.KindGame, Payload: &directives.GamePayload{GameID: "missing"}},
		{Kind: directives.KindWhiteboard, Payload: &directives.WhiteboardPayload{HTML: "<p>1/4</p>"}},
		directives.Control(directives.KindWaitForStudent),
	}
	if err := dispatcher.Dispatch(context.Background(), conn, session, batch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := conn.sent()
	if len(sent) != 3 {
		t.Fatalf("expected an error and two commands, got %d messages", len(sent))
	}
	if sent[0].Type != EnvelopeError {
		t.Fatalf("expected the failure to be reported first, got %s", sent[0].Type)
	}
	if sent[1].Command.Kind != directives.KindWhiteboard || sent[2].Command.Kind != directives.KindWaitForStudent {
		t.Fatalf("expected the rest of the batch in order, got %s and %s", sent[1].Command.Kind, sent[2].Command.Kind)
	}
	if got := eventTypes(session); len(got) != 3 || got[0] != lessons.EventDispatchError {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestDispatchReportsSynthesisFailure(t *testing.T) {
	conn := &fakeConn{}
	dispatcher := NewDispatcher(&fakeSynthesizer{err: errUnavailable}, nil)

	batch := []directives.Directive{
		directives.Speech(directives.KindTeacherSpeech, "Hello."),
		directives.Control(directives.KindAcknowledge),
	}
	if err := dispatcher.Dispatch(context.Background(), conn, testSession(), batch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if errs := conn.ofType(EnvelopeError); len(errs) != 1 {
		t.Fatalf("expected one error envelope, got %d", len(errs))
	}
	if got := joinKinds(conn.commands()); got != "TEACHER_SPEECH,ACKNOWLEDGE" {
		t.Fatalf("unexpected commands %s", got)
	}
}

func TestDispatchStopsWhenContextIsDone(t *testing.T) {
	conn := &fakeConn{}
	dispatcher := NewDispatcher(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := dispatcher.Dispatch(ctx, conn, testSession(), []directives.Directive{directives.Control(directives.KindAcknowledge)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(conn.sent()) != 0 {
		t.Fatalf("expected nothing to be sent")
	}
}
