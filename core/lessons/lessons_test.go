package lessons

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koscakluka/ema-tutor/core/directives"
	"github.com/koscakluka/ema-tutor/core/progress"
	"github.com/koscakluka/ema-tutor/core/store"
)

func TestLoadCatalogFileAndSeed(t *testing.T) {
	catalog, err := LoadCatalogFile("testdata/catalog.yaml")
	require.NoError(t, err)

	records := NewRecords(store.NewMemory())
	ctx := context.Background()
	require.NoError(t, catalog.Seed(ctx, records))

	course, err := records.Course(ctx, "fractions")
	require.NoError(t, err)
	assert.Equal(t, &CourseStats{TotalTopics: 1, TotalModules: 2, TotalPhases: 3}, course.Stats)

	phase, err := course.Phase(progress.Pointer{})
	require.NoError(t, err)
	require.Equal(t, PhaseContent, phase.Type)
	assert.Equal(t, []directives.Directive{
		directives.Speech(directives.KindTeacherSpeech, "Imagine a pizza cut in two."),
		{Kind: directives.KindWhiteboard, Payload: &directives.WhiteboardPayload{HTML: "<p>1/2</p>"}},
		directives.Control(directives.KindWaitForStudent),
	}, phase.Content)

	session, err := records.Session(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, progress.StatusNotStarted, session.Status)
	assert.Equal(t, CharacterRef{Name: "Maya", VoiceID: "aura-2-thalia-en"}, session.Teacher)
	assert.Equal(t, CharacterRef{Name: "Leo", VoiceID: "aura-2-apollo-en"}, session.Classmate)
	assert.False(t, session.CreatedAt.IsZero())

	game, err := records.Game(ctx, "budget-blitz")
	require.NoError(t, err)
	assert.Equal(t, "<div id='game'></div>", game.Code)

	user, err := records.User(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"sports"}, user.OnboardingData.PreferredAnalogies)
}

func TestDecodeCatalogRejectsUnknownCharacter(t *testing.T) {
	_, err := DecodeCatalog(strings.NewReader(`
sessions:
  - id: s-1
    teacher:
      name: Nobody
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown character")
}

func TestDecodeCatalogRejectsUnplayableCourse(t *testing.T) {
	_, err := DecodeCatalog(strings.NewReader(`
courses:
  - id: empty
    title: Empty
    topics:
      - title: Nothing
        modules:
          - title: Here
            phases:
              - type: content
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no directives")
}

func TestDecodeCatalogRejectsUnknownDirective(t *testing.T) {
	_, err := DecodeCatalog(strings.NewReader(`
courses:
  - id: c
    topics:
      - modules:
          - phases:
              - type: content
                content:
                  - command_type: DANCE
`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, directives.ErrUnknownKind))
}

func TestRecordsNotFound(t *testing.T) {
	records := NewRecords(store.NewMemory())

	_, err := records.Session(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, err.Error(), `session with id "missing"`)
}

func TestCoursePhaseOutOfRange(t *testing.T) {
	course := &Course{ID: "c", Topics: []Topic{{Modules: []Module{{Phases: []Phase{{Type: PhaseInstruction, Instruction: "x"}}}}}}}

	_, err := course.Phase(progress.Pointer{Phase: 1})
	require.ErrorIs(t, err, ErrNoSuchPhase)
}

func TestCourseWithEmptyTopics(t *testing.T) {
	instruction := Phase{Type: PhaseInstruction, Instruction: "x"}
	course := &Course{ID: "gaps", Topics: []Topic{
		{Modules: []Module{{Phases: []Phase{instruction}}}},
		{},
		{Modules: []Module{{}, {Phases: []Phase{instruction}}}},
	}}
	require.NoError(t, course.Validate())

	next, more := progress.Advance(progress.Pointer{}, course.Tree())
	require.True(t, more)
	assert.Equal(t, progress.Pointer{Topic: 2, Module: 1}, next)

	_, more = progress.Advance(next, course.Tree())
	assert.False(t, more)

	stale := progress.Pointer{Topic: 3}
	got, more := progress.Advance(stale, course.Tree())
	assert.False(t, more)
	assert.Equal(t, stale, got)
	_, err := course.Phase(stale)
	require.ErrorIs(t, err, ErrNoSuchPhase)
}

func TestValidateRejectsEmptyCourse(t *testing.T) {
	for _, course := range []*Course{
		{ID: "none"},
		{ID: "hollow", Topics: []Topic{{}, {Modules: []Module{{}}}}},
	} {
		err := course.Validate()
		require.Error(t, err, course.ID)
		assert.Contains(t, err.Error(), "has no phases")
	}
}

func TestSessionLog(t *testing.T) {
	var session Session
	session.Log(EventPing, nil)
	session.Log(EventError, map[string]any{"message": "boom"})

	require.Len(t, session.EventLogs, 2)
	assert.Equal(t, EventError, session.EventLogs[1].Type)
	assert.Equal(t, "boom", session.EventLogs[1].Data["message"])
	assert.False(t, session.EventLogs[0].Timestamp.IsZero())
}
