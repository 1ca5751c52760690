package lessons

import "github.com/jinzhu/copier"

type Role string

const (
	RoleTeacher   Role = "teacher"
	RoleClassmate Role = "classmate"
)

// Character is a persona voiced in a session.
type Character struct {
	Role     Role   `json:"role"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
	Age      int    `json:"age,omitempty"`
	Gender   string `json:"gender,omitempty"`
	VoiceID  string `json:"voice_id"`

	Personality      string `json:"personality,omitempty"`
	Background       string `json:"background,omitempty"`
	WorldDescription string `json:"world_description,omitempty"`
	PersonalLife     string `json:"personal_life,omitempty"`
}

// CharacterRef is the copy of a character a session carries with it.
type CharacterRef struct {
	Name    string `json:"name"`
	VoiceID string `json:"voice_id"`
}

func (c Character) Ref() CharacterRef {
	var ref CharacterRef
	copier.Copy(&ref, &c)
	return ref
}
