package lessons

import (
	"time"

	"github.com/koscakluka/ema-tutor/core/progress"
)

// Event types written to a session event log.
const (
	EventPing               = "ping"
	EventStartSession       = "start_session"
	EventStartPhase         = "start_phase"
	EventNextPhase          = "next_phase"
	EventExecuteCommand     = "execute_command"
	EventDispatchError      = "dispatch_error"
	EventStudentInteraction = "student_interaction"
	EventStartGame          = "start_two_player_game"
	EventFinishGame         = "finish_two_player_game"
	EventFinishModule       = "finish_module"
	EventError              = "error"
)

type Event struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Session is the persisted state of one student working through one course.
type Session struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	CourseID  string       `json:"course_id"`
	Teacher   CharacterRef `json:"teacher"`
	Classmate CharacterRef `json:"classmate"`

	Progress progress.Pointer `json:"progress"`
	Status   progress.Status  `json:"status"`

	// PreviousResponseID keeps the generation context coherent across turns.
	PreviousResponseID string `json:"previous_response_id,omitempty"`
	// CheckpointResponseID is captured when a phase is entered, a phase is
	// always (re)started from it.
	CheckpointResponseID string `json:"checkpoint_response_id,omitempty"`
	SystemInstructions   string `json:"system_instructions,omitempty"`

	EventLogs   []Event   `json:"event_logs,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastAliveAt time.Time `json:"last_alive_at,omitempty"`
}

// Log appends an event to the session log.
func (s *Session) Log(eventType string, data map[string]any) {
	s.EventLogs = append(s.EventLogs, Event{Type: eventType, Data: data, Timestamp: time.Now().UTC()})
}

// Summary is what is written once a session completes.
type Summary struct {
	SessionID                  string    `json:"session_id"`
	UserID                     string    `json:"user_id"`
	CourseID                   string    `json:"course_id"`
	CompletedAt                time.Time `json:"completed_at"`
	PhasesCompleted            int       `json:"phases_completed"`
	TotalPhases                int       `json:"total_phases"`
	QuestionsAsked             int       `json:"questions_asked"`
	QuestionsAnswered          int       `json:"questions_answered"`
	QuestionsAnsweredCorrectly int       `json:"questions_answered_correctly"`
	SpeechInteractions         int       `json:"speech_interactions"`
	Errors                     int       `json:"errors"`
}
