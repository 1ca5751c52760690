package console

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"

	"github.com/koscakluka/ema-tutor/core/directives"
	"github.com/koscakluka/ema-tutor/core/tutoring"
)

type transport interface {
	Send(msg tutoring.Message) error
	Receive() (tutoring.Envelope, error)
}

type (
	envelopeMsg struct{ envelope tutoring.Envelope }
	receiveErr  struct{ err error }
	sendErr     struct{ err error }
)

var htmlTags = regexp.MustCompile(`<[^>]+>`)

// Model renders one tutoring session and turns typed lines into messages.
//
// Typing "/next" moves to the next phase, "/quit" leaves. While a question is
// open a line answers it, otherwise it is sent as a text interaction.
type Model struct {
	transport transport
	sessionID string
	styles    styles

	viewport viewport.Model
	input    textinput.Model
	width    int

	lines []string
	// speaking is the kind of the speech line still being streamed in.
	speaking directives.Kind
	question *directives.Directive
	finished bool
	closed   bool
}

func NewModel(t transport, sessionID string) Model {
	input := textinput.New()
	input.Placeholder = "say something, answer, or /next"
	input.Prompt = "> "
	input.Focus()

	return Model{
		transport: t,
		sessionID: sessionID,
		styles:    defaultStyles(),
		viewport:  viewport.New(80, 20),
		input:     input,
		width:     80,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.send(tutoring.Message{Type: tutoring.MessageStartSession}),
		m.listen(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-3, 1)
		m.input.Width = max(msg.Width-4, 1)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			value := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			return m.submit(value)
		}

	case envelopeMsg:
		m.render(msg.envelope)
		m.refresh()
		return m, m.listen()

	case receiveErr:
		m.closed = true
		m.appendLine(m.styles.Error.Render("connection closed: " + msg.err.Error()))
		m.refresh()
		return m, nil

	case sendErr:
		m.appendLine(m.styles.Error.Render("failed to send: " + msg.err.Error()))
		m.refresh()
		return m, nil
	}

	var inputCmd, viewportCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	m.viewport, viewportCmd = m.viewport.Update(msg)
	return m, tea.Batch(inputCmd, viewportCmd)
}

func (m Model) View() string {
	header := m.styles.Header.Render("Session " + m.sessionID)
	if m.finished {
		header += m.styles.Muted.Render("  (module finished)")
	}
	return header + "\n" + m.viewport.View() + "\n" + m.input.View()
}

func (m Model) submit(value string) (tea.Model, tea.Cmd) {
	switch {
	case value == "":
		return m, nil
	case value == "/quit":
		return m, tea.Quit
	case value == "/next":
		m.appendLine(m.styles.Muted.Render("(next phase)"))
		m.refresh()
		return m, m.send(tutoring.Message{Type: tutoring.MessageNextPhase})
	}

	if m.question != nil {
		interaction, err := answer(*m.question, value)
		if err != nil {
			m.appendLine(m.styles.Error.Render(err.Error()))
			m.refresh()
			return m, nil
		}
		m.question = nil
		m.appendLine(m.styles.Student.Render("You: ") + interaction.Answer)
		m.refresh()
		return m, m.send(tutoring.Message{Type: tutoring.MessageStudentInteraction, Interaction: &interaction})
	}

	m.appendLine(m.styles.Student.Render("You: ") + value)
	m.refresh()
	return m, m.send(tutoring.Message{
		Type:        tutoring.MessageStudentInteraction,
		Interaction: &tutoring.Interaction{Type: tutoring.InteractionText, Text: value},
	})
}

// answer resolves a typed line against an open question. Multiple choice
// takes an option number, binary choice takes l or r.
func answer(question directives.Directive, value string) (tutoring.Interaction, error) {
	switch p := question.Payload.(type) {
	case *directives.MultipleChoiceQuestionPayload:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > len(p.Options) {
			return tutoring.Interaction{}, fmt.Errorf("pick an option between 1 and %d", len(p.Options))
		}
		option := p.Options[n-1]
		return tutoring.Interaction{Type: tutoring.InteractionMCQ, Answer: option.Text, Correct: option.Correct}, nil

	case *directives.BinaryChoiceQuestionPayload:
		var side, text string
		switch strings.ToLower(value) {
		case "l", "left":
			side, text = directives.BinaryChoiceLeft, p.Left
		case "r", "right":
			side, text = directives.BinaryChoiceRight, p.Right
		default:
			return tutoring.Interaction{}, fmt.Errorf("answer with l or r")
		}
		return tutoring.Interaction{Type: tutoring.InteractionBinaryChoice, Answer: text, Correct: side == p.Correct}, nil
	}
	return tutoring.Interaction{}, fmt.Errorf("unsupported question %s", question.Kind)
}

func (m *Model) render(envelope tutoring.Envelope) {
	switch envelope.Type {
	case tutoring.EnvelopeCommand:
		if envelope.Command != nil {
			m.renderDirective(*envelope.Command)
		}
	case tutoring.EnvelopeError:
		m.speaking = ""
		m.appendLine(m.styles.Error.Render("error: " + envelope.Message))
	case tutoring.EnvelopeStudentSpeech:
		m.speaking = ""
		m.appendLine(m.styles.Student.Render("You said: ") + envelope.Text)
	case tutoring.EnvelopeFinishModule:
		m.speaking = ""
		m.finished = true
		m.appendLine(m.styles.Header.Render(envelope.Message))
	}
}

func (m *Model) renderDirective(d directives.Directive) {
	if d.Kind.IsSpeech() {
		text := d.Text()
		if text == "" {
			// audio
			return
		}
		if m.speaking == d.Kind && len(m.lines) > 0 {
			m.lines[len(m.lines)-1] += " " + strings.TrimSpace(text)
		} else {
			m.appendLine(m.speakerLabel(d.Kind) + strings.TrimSpace(text))
		}
		m.speaking = ""
		if d.Partial {
			m.speaking = d.Kind
		}
		return
	}
	m.speaking = ""

	switch p := d.Payload.(type) {
	case *directives.WhiteboardPayload:
		m.appendLine(m.styles.Board.Render(strings.TrimSpace(htmlTags.ReplaceAllString(p.HTML, " "))))
	case *directives.MultipleChoiceQuestionPayload:
		var b strings.Builder
		b.WriteString(m.styles.Question.Render(p.Question))
		for i, option := range p.Options {
			fmt.Fprintf(&b, "\n  %d. %s", i+1, option.Text)
		}
		m.appendLine(b.String())
		m.question = &d
	case *directives.BinaryChoiceQuestionPayload:
		m.appendLine(m.styles.Question.Render(p.Question) + fmt.Sprintf("\n  [l] %s   [r] %s", p.Left, p.Right))
		m.question = &d
	case *directives.PointPayload:
		label := "Your point: "
		if d.Kind == directives.KindClassmatePoint {
			label = "Classmate's point: "
		}
		m.appendLine(m.styles.Muted.Render(label) + p.Point)
	case *directives.GamePayload:
		m.appendLine(m.styles.Muted.Render("(game " + p.GameID + " started)"))
	default:
		switch d.Kind {
		case directives.KindWaitForStudent:
			m.appendLine(m.styles.Muted.Render("(your turn)"))
		case directives.KindAcknowledge:
			m.appendLine(m.styles.Muted.Render("(type /next to continue)"))
		case directives.KindFinishModule:
			m.appendLine(m.styles.Muted.Render("(phase complete, type /next to continue)"))
		}
	}
}

func (m Model) speakerLabel(kind directives.Kind) string {
	if kind == directives.KindClassmateSpeech {
		return m.styles.Classmate.Render("Classmate: ")
	}
	return m.styles.Teacher.Render("Teacher: ")
}

func (m *Model) appendLine(line string) { m.lines = append(m.lines, line) }

func (m *Model) refresh() {
	wrapped := make([]string, len(m.lines))
	for i, line := range m.lines {
		wrapped[i] = wordwrap.String(line, max(m.width, 20))
	}
	m.viewport.SetContent(strings.Join(wrapped, "\n\n"))
	m.viewport.GotoBottom()
}

func (m Model) send(msg tutoring.Message) tea.Cmd {
	msg.SessionID = m.sessionID
	return func() tea.Msg {
		if err := m.transport.Send(msg); err != nil {
			return sendErr{err}
		}
		return nil
	}
}

func (m Model) listen() tea.Cmd {
	if m.closed {
		return nil
	}
	return func() tea.Msg {
		envelope, err := m.transport.Receive()
		if err != nil {
			return receiveErr{err}
		}
		return envelopeMsg{envelope}
	}
}
