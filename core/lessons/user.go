package lessons

type OnboardingData struct {
	Interests          []string `json:"interests"`
	Hobbies            []string `json:"hobbies"`
	PreferredAnalogies []string `json:"preferredAnalogies"`
	Age                int      `json:"age"`
}

type User struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	OnboardingData OnboardingData `json:"onboarding_data"`
}

// Game is a playable resource referenced by id from GAME directives.
type Game struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Code        string `json:"code"`
}

// TwoPlayerGame describes a timed game between the student and the
// classmate, refereed by the teacher.
type TwoPlayerGame struct {
	Title           string `json:"title"`
	Topic           string `json:"topic"`
	Rules           string `json:"rules"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}
