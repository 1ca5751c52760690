package directives

import "strings"

// Kind identifies a directive and doubles as its tag name.
type Kind string

const (
	KindTeacherSpeech        Kind = "TEACHER_SPEECH"
	KindClassmateSpeech      Kind = "CLASSMATE_SPEECH"
	KindWhiteboard           Kind = "WHITEBOARD"
	KindMCQQuestion          Kind = "MCQ_QUESTION"
	KindBinaryChoiceQuestion Kind = "BINARY_CHOICE_QUESTION"
	KindStudentPoint         Kind = "STUDENT_POINT"
	KindClassmatePoint       Kind = "CLASSMATE_POINT"
	KindGame                 Kind = "GAME"

	KindAcknowledge    Kind = "ACKNOWLEDGE"
	KindWaitForStudent Kind = "WAIT_FOR_STUDENT"
	KindFinishModule   Kind = "FINISH_MODULE"
)

// bodyPolicy describes how the body of a content directive is accumulated and
// when it may be emitted.
type bodyPolicy int

const (
	// bodyNone is used by control directives, they carry no body.
	bodyNone bodyPolicy = iota
	// bodyStreamed bodies are free text which may be emitted before the
	// directive closes, up to the last sentence boundary.
	bodyStreamed
	// bodyWhole bodies are free text emitted once, on close.
	bodyWhole
	// bodyJSON bodies are structured and must decode as a unit, on close.
	bodyJSON
)

var policies = map[Kind]bodyPolicy{
	KindTeacherSpeech:        bodyStreamed,
	KindClassmateSpeech:      bodyStreamed,
	KindWhiteboard:           bodyWhole,
	KindStudentPoint:         bodyWhole,
	KindClassmatePoint:       bodyWhole,
	KindGame:                 bodyWhole,
	KindMCQQuestion:          bodyJSON,
	KindBinaryChoiceQuestion: bodyJSON,
	KindAcknowledge:          bodyNone,
	KindWaitForStudent:       bodyNone,
	KindFinishModule:         bodyNone,
}

// ContentKinds lists the kinds that have a start/end tag pair, in a stable
// order.
var ContentKinds = []Kind{
	KindGame,
	KindMCQQuestion,
	KindTeacherSpeech,
	KindClassmateSpeech,
	KindWhiteboard,
	KindBinaryChoiceQuestion,
	KindStudentPoint,
	KindClassmatePoint,
}

// ControlKinds lists the self-terminating kinds.
var ControlKinds = []Kind{KindFinishModule, KindAcknowledge, KindWaitForStudent}

// Valid reports whether k belongs to the vocabulary.
func (k Kind) Valid() bool {
	_, ok := policies[k]
	return ok
}

// IsControl reports whether k is a self-terminating directive.
func (k Kind) IsControl() bool { return k.Valid() && policies[k] == bodyNone }

// IsSpeech reports whether k is spoken out loud and needs audio.
func (k Kind) IsSpeech() bool { return policies[k] == bodyStreamed }

// IsStructured reports whether the body of k is JSON.
func (k Kind) IsStructured() bool { return policies[k] == bodyJSON }

func (k Kind) StartTag() string {
	if k.IsControl() {
		return "<" + string(k) + "/>"
	}
	return "<" + string(k) + ">"
}

func (k Kind) EndTag() string {
	if k.IsControl() {
		return ""
	}
	return "</" + string(k) + ">"
}

// tagTable is the lookup used by the parser for every tag that may begin a
// directive.
type tagTable struct {
	tags  []string
	kinds map[string]Kind
}

func newTagTable() tagTable {
	t := tagTable{kinds: map[string]Kind{}}
	for _, k := range append(append([]Kind{}, ContentKinds...), ControlKinds...) {
		t.tags = append(t.tags, k.StartTag())
		t.kinds[k.StartTag()] = k
	}
	return t
}

var vocabulary = newTagTable()

// match returns the kind of the tag s begins with.
func (t tagTable) match(s string) (Kind, string, bool) {
	for _, tag := range t.tags {
		if strings.HasPrefix(s, tag) {
			return t.kinds[tag], tag, true
		}
	}
	return "", "", false
}

// isProperPrefix reports whether s is shorter than some tag and could still
// grow into it.
func (t tagTable) isProperPrefix(s string) bool {
	for _, tag := range t.tags {
		if len(s) < len(tag) && strings.HasPrefix(tag, s) {
			return true
		}
	}
	return false
}
