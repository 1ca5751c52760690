package tutoring

import (
	"context"
	"time"

	"github.com/koscakluka/ema-tutor/core/directives"
	"github.com/koscakluka/ema-tutor/core/lessons"
)

// Aggregator is told about every session that completes.
type Aggregator interface {
	SessionCompleted(ctx context.Context, session *lessons.Session, course *lessons.Course) error
}

// SummaryAggregator writes a [lessons.Summary] for every completed session.
type SummaryAggregator struct {
	Records *lessons.Records
}

func (a SummaryAggregator) SessionCompleted(ctx context.Context, session *lessons.Session, course *lessons.Course) error {
	summary := Summarize(session, course)
	if err := a.Records.PutSummary(ctx, &summary); err != nil {
		return err
	}
	logger.Info("session summary written",
		"session", session.ID,
		"phases_completed", summary.PhasesCompleted,
		"questions_asked", summary.QuestionsAsked)
	return nil
}

// Summarize counts what happened in a session from its event log.
func Summarize(session *lessons.Session, course *lessons.Course) lessons.Summary {
	summary := lessons.Summary{
		SessionID:   session.ID,
		UserID:      session.UserID,
		CourseID:    session.CourseID,
		CompletedAt: time.Now().UTC(),
		TotalPhases: course.ComputeStats().TotalPhases,
	}

	for _, event := range session.EventLogs {
		switch event.Type {
		case lessons.EventNextPhase:
			summary.PhasesCompleted++
		case lessons.EventExecuteCommand:
			switch directives.Kind(stringField(event.Data, "command_type")) {
			case directives.KindMCQQuestion, directives.KindBinaryChoiceQuestion:
				summary.QuestionsAsked++
			}
		case lessons.EventStudentInteraction:
			switch InteractionType(stringField(event.Data, "interaction_type")) {
			case InteractionMCQ, InteractionBinaryChoice:
				summary.QuestionsAnswered++
				if correct, _ := event.Data["correct"].(bool); correct {
					summary.QuestionsAnsweredCorrectly++
				}
			case InteractionSpeech, InteractionText:
				summary.SpeechInteractions++
			}
		case lessons.EventError, lessons.EventDispatchError:
			summary.Errors++
		}
	}
	return summary
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}
