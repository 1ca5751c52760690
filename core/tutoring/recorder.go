package tutoring

import (
	"time"

	"github.com/koscakluka/ema-tutor/core/directives"
)

// Turn outcomes reported to a [Recorder].
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCanceled  = "canceled"
)

// Recorder receives measurements of the tutoring pipeline.
type Recorder interface {
	DirectiveDispatched(kind directives.Kind, failed bool)
	AudioFlushed(bytes int)
	TurnFinished(outcome string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) DirectiveDispatched(directives.Kind, bool) {}
func (nopRecorder) AudioFlushed(int)                          {}
func (nopRecorder) TurnFinished(string, time.Duration)        {}
