package directives

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestDirectiveUnmarshalsStoredForm(t *testing.T) {
	stored := `[
		{"command_type": "TEACHER_SPEECH", "payload": {"text": "Welcome back."}},
		{"command_type": "WHITEBOARD", "payload": {"html": "<p>1/2</p>"}},
		{"command_type": "BINARY_CHOICE_QUESTION", "payload": {"question": "Save first?", "left": "no", "right": "yes", "correct": "right"}},
		{"command_type": "GAME", "payload": {"game_id": "budget-blitz"}},
		{"command_type": "WAIT_FOR_STUDENT", "payload": null}
	]`

	var got []Directive
	if err := json.Unmarshal([]byte(stored), &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Directive{
		Speech(KindTeacherSpeech, "Welcome back."),
		{Kind: KindWhiteboard, Payload: &WhiteboardPayload{HTML: "<p>1/2</p>"}},
		{Kind: KindBinaryChoiceQuestion, Payload: &BinaryChoiceQuestionPayload{Question: "Save first?", Left: "no", Right: "yes", Correct: BinaryChoiceRight}},
		{Kind: KindGame, Payload: &GamePayload{GameID: "budget-blitz"}},
		Control(KindWaitForStudent),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestDirectiveUnmarshalRejectsUnknownKind(t *testing.T) {
	var d Directive
	err := json.Unmarshal([]byte(`{"command_type": "DANCE", "payload": {}}`), &d)
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestDirectiveMarshalsEnvelopeFields(t *testing.T) {
	directive := Speech(KindClassmateSpeech, "Me too!")
	directive.Partial = true

	encoded, err := json.Marshal(directive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `{"command_type":"CLASSMATE_SPEECH","payload":{"text":"Me too!"},"partial":true}`
	if string(encoded) != want {
		t.Fatalf("expected %s, got %s", want, encoded)
	}
}

func TestJoinRendersTaggedForm(t *testing.T) {
	got := Join([]Directive{
		Speech(KindTeacherSpeech, "Hello."),
		{Kind: KindStudentPoint, Payload: &PointPayload{Point: "likes maths"}},
		Control(KindAcknowledge),
		Control(KindFinishModule),
	})

	want := "<TEACHER_SPEECH>Hello.</TEACHER_SPEECH><STUDENT_POINT>likes maths</STUDENT_POINT><ACKNOWLEDGE/><FINISH_MODULE/>"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestKindClassification(t *testing.T) {
	for _, kind := range ContentKinds {
		if kind.IsControl() {
			t.Fatalf("%s should not be a control kind", kind)
		}
		if kind.EndTag() == "" {
			t.Fatalf("%s should have an end tag", kind)
		}
	}
	for _, kind := range ControlKinds {
		if !kind.IsControl() {
			t.Fatalf("%s should be a control kind", kind)
		}
	}
	if Kind("DANCE").Valid() {
		t.Fatalf("unknown kind reported as valid")
	}
	if !KindTeacherSpeech.IsSpeech() || KindWhiteboard.IsSpeech() {
		t.Fatalf("unexpected speech classification")
	}
	if !KindMCQQuestion.IsStructured() || KindGame.IsStructured() {
		t.Fatalf("unexpected structured classification")
	}
}

func TestCloneSharesNoPayload(t *testing.T) {
	original := Directive{Kind: KindMCQQuestion, Payload: &MultipleChoiceQuestionPayload{
		Question: "Which is larger?",
		Options:  []QuestionOption{{Text: "1/2", Correct: true}, {Text: "1/3"}},
	}}

	clone := original.Clone()
	clone.Payload.(*MultipleChoiceQuestionPayload).Options[0].Text = "changed"

	if got := original.Payload.(*MultipleChoiceQuestionPayload).Options[0].Text; got != "1/2" {
		t.Fatalf("clone mutated the original: %q", got)
	}
	if clone.String() == original.String() {
		t.Fatalf("expected clone to diverge after mutation")
	}

	game := Directive{Kind: KindGame, Payload: &GamePayload{GameID: "g-1"}}
	gameClone := game.Clone()
	gameClone.Payload.(*GamePayload).Code = "<html/>"
	if game.Payload.(*GamePayload).Code != "" {
		t.Fatalf("clone mutated the original game payload")
	}
}
