package tutoring

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/koscakluka/ema-tutor/core/directives"
	"github.com/koscakluka/ema-tutor/core/lessons"
)

// payloadSchemas describes the JSON bodies of the structured directives, it is
// embedded in the system instructions.
var payloadSchemas = func() map[directives.Kind]string {
	reflector := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	schemas := map[directives.Kind]string{}
	for kind, payload := range map[directives.Kind]any{
		directives.KindMCQQuestion:          &directives.MultipleChoiceQuestionPayload{},
		directives.KindBinaryChoiceQuestion: &directives.BinaryChoiceQuestionPayload{},
	} {
		encoded, err := json.Marshal(reflector.Reflect(payload))
		if err != nil {
			panic(fmt.Sprintf("failed to encode %s schema: %v", kind, err))
		}
		schemas[kind] = string(encoded)
	}
	return schemas
}()

var directiveUsage = []struct {
	kind  directives.Kind
	usage string
}{
	{directives.KindTeacherSpeech, "words the teacher says out loud, natural and conversational, no markup"},
	{directives.KindClassmateSpeech, "words the classmate says out loud, natural and conversational, no markup"},
	{directives.KindWhiteboard, "short html shown on the whiteboard, placed before the speech that explains it"},
	{directives.KindMCQQuestion, "a multiple choice question"},
	{directives.KindBinaryChoiceQuestion, "a swipe left or right question with two playful opposite options"},
	{directives.KindStudentPoint, "a point the student earned"},
	{directives.KindClassmatePoint, "a point the classmate earned"},
	{directives.KindGame, "the id of a game to show"},
	{directives.KindAcknowledge, "the phase is not finished and needs the student"},
	{directives.KindWaitForStudent, "wait for the student to answer"},
	{directives.KindFinishModule, "the current phase is complete, nothing may follow it"},
}

func writeVocabulary(b *strings.Builder) {
	b.WriteString("Respond only with the following tags, never with text outside of them.\n")
	for _, d := range directiveUsage {
		if d.kind.IsControl() {
			fmt.Fprintf(b, "- %s: %s.\n", d.kind.StartTag(), d.usage)
			continue
		}
		fmt.Fprintf(b, "- %s...%s: %s.", d.kind.StartTag(), d.kind.EndTag(), d.usage)
		if schema, ok := payloadSchemas[d.kind]; ok {
			fmt.Fprintf(b, " The body is JSON matching %s", schema)
		}
		b.WriteString("\n")
	}
}

func writeStudent(b *strings.Builder, user *lessons.User) {
	if user == nil {
		return
	}
	fmt.Fprintf(b, "\nThe student is %s, aged %d.\n", user.Name, user.OnboardingData.Age)
	if len(user.OnboardingData.Interests) > 0 {
		fmt.Fprintf(b, "Interests: %s.\n", strings.Join(user.OnboardingData.Interests, ", "))
	}
	if len(user.OnboardingData.Hobbies) > 0 {
		fmt.Fprintf(b, "Hobbies: %s.\n", strings.Join(user.OnboardingData.Hobbies, ", "))
	}
	if len(user.OnboardingData.PreferredAnalogies) > 0 {
		fmt.Fprintf(b, "Preferred analogies: %s.\n", strings.Join(user.OnboardingData.PreferredAnalogies, ", "))
	}
}

func writeCharacter(b *strings.Builder, title string, c *lessons.Character) {
	if c == nil {
		return
	}
	fmt.Fprintf(b, "\nThe %s is %s.", title, c.Name)
	for _, detail := range []string{c.Personality, c.Background} {
		if detail != "" {
			fmt.Fprintf(b, " %s", detail)
		}
	}
	b.WriteString("\n")
}

// systemInstructions is carried by a session across all of its turns.
func systemInstructions(course *lessons.Course, user *lessons.User, teacher, classmate *lessons.Character) string {
	var b strings.Builder
	b.WriteString("You are a tutor guiding a student through a course by asking questions and building on what the student already knows, together with a classmate.\n")
	fmt.Fprintf(&b, "The course is %q: %s\n", course.Title, course.Description)
	b.WriteString("The course is taught one phase at a time. Keep every response to a single short step and end a finished phase with <FINISH_MODULE/>.\n\n")
	writeVocabulary(&b)
	writeCharacter(&b, "teacher", teacher)
	writeCharacter(&b, "classmate", classmate)
	writeStudent(&b, user)
	return b.String()
}

// phasePrompt starts a phase. Pre-authored content has been played already
// and only needs to be acknowledged.
func phasePrompt(phase lessons.Phase) string {
	if phase.Type == lessons.PhaseContent && len(phase.Content) > 0 {
		return "This content has just been played to the student: " + directives.Join(phase.Content) +
			"\nDo not repeat it. Respond with <FINISH_MODULE/> if the phase needs nothing from the student, otherwise with <ACKNOWLEDGE/>."
	}
	return "The instruction for this phase is: " + phase.Instruction +
		"\nTeach the phase from it and respond with <FINISH_MODULE/> once it is complete and needs nothing from the student."
}

func speechPrompt(text string) string {
	return "The student said: " + text +
		"\nRespond to it using the tags, with analogies the student can relate to. Respond with <FINISH_MODULE/> at the end if this answers the student and the phase is complete."
}

func answerPrompt(interaction Interaction) string {
	verdict := "incorrectly"
	if interaction.Correct {
		verdict = "correctly"
	}
	return fmt.Sprintf("The student answered %s with %q. Explain the answer if needed and respond with <FINISH_MODULE/> at the end so the session can proceed.",
		verdict, interaction.Answer)
}

func gameInstructions(game lessons.TwoPlayerGame) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You referee %q, a game between the student and the classmate on %s.\n", game.Title, game.Topic)
	if game.Rules != "" {
		fmt.Fprintf(&b, "Rules: %s\n", game.Rules)
	}
	if game.DurationSeconds > 0 {
		fmt.Fprintf(&b, "The game lasts %d seconds.\n", game.DurationSeconds)
	}
	b.WriteString("Award points with <STUDENT_POINT> and <CLASSMATE_POINT>.\n\n")
	writeVocabulary(&b)
	return b.String()
}

const (
	startGamePrompt  = "Start the game with a short announcement from the teacher, then the first turn of the classmate."
	finishGamePrompt = "The game timer has ended. Close the game with a short speech from the teacher and respond with <FINISH_MODULE/>."
)
