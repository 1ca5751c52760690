// Package directives holds the typed presentation directives of a tutoring
// session and the incremental parser that extracts them from generated text.
package directives

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jinzhu/copier"
)

// Directive is one typed unit of tutoring output.
type Directive struct {
	Kind    Kind    `json:"command_type"`
	Payload Payload `json:"payload"`
	// Partial marks a provisional emission of a directive that is still open.
	// Only streamed speech is ever emitted partially.
	Partial bool `json:"partial,omitempty"`
}

// Payload is implemented by every kind-specific payload.
type Payload interface {
	isPayload()
}

type SpeechPayload struct {
	Text           string `json:"text,omitempty"`
	AudioBytes     []byte `json:"audio_bytes,omitempty"`
	StreamComplete bool   `json:"stream_complete,omitempty"`
}

type WhiteboardPayload struct {
	HTML string `json:"html"`
}

type QuestionOption struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

type MultipleChoiceQuestionPayload struct {
	Question string           `json:"question"`
	Options  []QuestionOption `json:"options"`
}

const (
	BinaryChoiceLeft  = "left"
	BinaryChoiceRight = "right"
)

type BinaryChoiceQuestionPayload struct {
	Question string `json:"question"`
	Left     string `json:"left"`
	Right    string `json:"right"`
	// Correct is either [BinaryChoiceLeft] or [BinaryChoiceRight].
	Correct string `json:"correct"`
}

type PointPayload struct {
	Point string `json:"point"`
}

// GamePayload names a game by id, Code is resolved only when the directive is
// dispatched.
type GamePayload struct {
	GameID string `json:"game_id"`
	Code   string `json:"code,omitempty"`
}

type EmptyPayload struct{}

func (*SpeechPayload) isPayload()                 {}
func (*WhiteboardPayload) isPayload()             {}
func (*MultipleChoiceQuestionPayload) isPayload() {}
func (*BinaryChoiceQuestionPayload) isPayload()   {}
func (*PointPayload) isPayload()                  {}
func (*GamePayload) isPayload()                   {}
func (*EmptyPayload) isPayload()                  {}

var ErrUnknownKind = errors.New("unknown directive kind")

func newPayload(kind Kind) (Payload, error) {
	switch kind {
	case KindTeacherSpeech, KindClassmateSpeech:
		return &SpeechPayload{}, nil
	case KindWhiteboard:
		return &WhiteboardPayload{}, nil
	case KindMCQQuestion:
		return &MultipleChoiceQuestionPayload{}, nil
	case KindBinaryChoiceQuestion:
		return &BinaryChoiceQuestionPayload{}, nil
	case KindStudentPoint, KindClassmatePoint:
		return &PointPayload{}, nil
	case KindGame:
		return &GamePayload{}, nil
	case KindAcknowledge, KindWaitForStudent, KindFinishModule:
		return &EmptyPayload{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// New builds a closed directive with an empty payload of the right shape.
func New(kind Kind) (Directive, error) {
	payload, err := newPayload(kind)
	if err != nil {
		return Directive{}, err
	}
	return Directive{Kind: kind, Payload: payload}, nil
}

func Speech(kind Kind, text string) Directive {
	return Directive{Kind: kind, Payload: &SpeechPayload{Text: text}}
}

func Control(kind Kind) Directive {
	return Directive{Kind: kind, Payload: &EmptyPayload{}}
}

// Text returns the spoken text of a speech directive.
func (d Directive) Text() string {
	if p, ok := d.Payload.(*SpeechPayload); ok {
		return p.Text
	}
	return ""
}

// Clone returns a copy of d that shares no payload memory with it.
func (d Directive) Clone() Directive {
	switch p := d.Payload.(type) {
	case *SpeechPayload:
		d.Payload = clonePayload(p)
	case *WhiteboardPayload:
		d.Payload = clonePayload(p)
	case *MultipleChoiceQuestionPayload:
		d.Payload = clonePayload(p)
	case *BinaryChoiceQuestionPayload:
		d.Payload = clonePayload(p)
	case *PointPayload:
		d.Payload = clonePayload(p)
	case *GamePayload:
		d.Payload = clonePayload(p)
	case *EmptyPayload:
		d.Payload = &EmptyPayload{}
	}
	return d
}

func clonePayload[T any](p *T) *T {
	c := new(T)
	if err := copier.CopyWithOption(c, p, copier.Option{DeepCopy: true}); err != nil {
		*c = *p
	}
	return c
}

func (d *Directive) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind    Kind            `json:"command_type"`
		Payload json.RawMessage `json:"payload"`
		Partial bool            `json:"partial"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	payload, err := newPayload(raw.Kind)
	if err != nil {
		return err
	}
	if len(raw.Payload) > 0 && !bytes.Equal(raw.Payload, []byte("null")) {
		if err := json.Unmarshal(raw.Payload, payload); err != nil {
			return fmt.Errorf("failed to decode %s payload: %w", raw.Kind, err)
		}
	}

	*d = Directive{Kind: raw.Kind, Payload: payload, Partial: raw.Partial}
	return nil
}

// String renders the directive in its tagged text form, the same form the
// parser consumes.
func (d Directive) String() string {
	if d.Kind.IsControl() {
		return d.Kind.StartTag()
	}

	var body string
	switch p := d.Payload.(type) {
	case *SpeechPayload:
		body = p.Text
	case *WhiteboardPayload:
		body = p.HTML
	case *PointPayload:
		body = p.Point
	case *GamePayload:
		body = p.GameID
	case *MultipleChoiceQuestionPayload, *BinaryChoiceQuestionPayload:
		encoded, err := json.Marshal(p)
		if err != nil {
			return ""
		}
		body = string(encoded)
	}

	return d.Kind.StartTag() + body + d.Kind.EndTag()
}

// Join renders a list of directives back to back.
func Join(ds []Directive) string {
	var b strings.Builder
	for _, d := range ds {
		b.WriteString(d.String())
	}
	return b.String()
}

// UnmarshalJSON accepts options either as objects or as bare strings, with an
// optional top level "answer" naming the correct one.
func (p *MultipleChoiceQuestionPayload) UnmarshalJSON(data []byte) error {
	var raw struct {
		Question string            `json:"question"`
		Options  []json.RawMessage `json:"options"`
		Answer   *string           `json:"answer"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	options := make([]QuestionOption, 0, len(raw.Options))
	for _, rawOption := range raw.Options {
		var option QuestionOption
		if trimmed := bytes.TrimSpace(rawOption); len(trimmed) > 0 && trimmed[0] == '"' {
			if err := json.Unmarshal(trimmed, &option.Text); err != nil {
				return err
			}
		} else if err := json.Unmarshal(rawOption, &option); err != nil {
			return err
		}
		if raw.Answer != nil && option.Text == *raw.Answer {
			option.Correct = true
		}
		options = append(options, option)
	}

	*p = MultipleChoiceQuestionPayload{Question: raw.Question, Options: options}
	return nil
}

func (p *MultipleChoiceQuestionPayload) validate() error {
	if p.Question == "" {
		return errors.New("question is empty")
	}
	if len(p.Options) == 0 {
		return errors.New("question has no options")
	}
	return nil
}

func (p *BinaryChoiceQuestionPayload) validate() error {
	if p.Question == "" {
		return errors.New("question is empty")
	}
	if p.Correct != BinaryChoiceLeft && p.Correct != BinaryChoiceRight {
		return fmt.Errorf("correct must be %q or %q, got %q", BinaryChoiceLeft, BinaryChoiceRight, p.Correct)
	}
	return nil
}
