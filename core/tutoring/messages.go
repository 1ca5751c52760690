package tutoring

import (
	"context"
	"encoding/json"
	"time"

	"github.com/koscakluka/ema-tutor/core/directives"
)

type EnvelopeType string

// Outbound envelope types.
const (
	EnvelopeCommand       EnvelopeType = "command"
	EnvelopeError         EnvelopeType = "error"
	EnvelopePong          EnvelopeType = "pong"
	EnvelopeFinishModule  EnvelopeType = "finish_module"
	EnvelopeStudentSpeech EnvelopeType = "student_speech"
)

// Envelope is one outbound unit sent to the client.
type Envelope struct {
	Type      EnvelopeType          `json:"type"`
	Command   *directives.Directive `json:"command,omitempty"`
	Message   string                `json:"message,omitempty"`
	Text      string                `json:"text,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

func commandEnvelope(d directives.Directive) Envelope {
	return Envelope{Type: EnvelopeCommand, Command: &d, Timestamp: time.Now().UTC()}
}

func errorEnvelope(message string) Envelope {
	return Envelope{Type: EnvelopeError, Message: message, Timestamp: time.Now().UTC()}
}

// Conn is the client side of a session. Send must be safe for concurrent use.
type Conn interface {
	Send(ctx context.Context, envelope Envelope) error
}

type MessageType string

// Inbound message types.
const (
	MessagePing               MessageType = "ping"
	MessageStartSession       MessageType = "start_session"
	MessageNextPhase          MessageType = "next_phase"
	MessageStudentInteraction MessageType = "student_interaction"
	MessageStartGame          MessageType = "start_two_player_game"
	MessageFinishGame         MessageType = "finish_two_player_game"
)

// Message is one inbound unit received from the client.
type Message struct {
	Type        MessageType     `json:"type"`
	SessionID   string          `json:"session_id"`
	Interaction *Interaction    `json:"interaction,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

type InteractionType string

const (
	InteractionSpeech       InteractionType = "speech"
	InteractionText         InteractionType = "text"
	InteractionMCQ          InteractionType = "mcq_question"
	InteractionBinaryChoice InteractionType = "binary_choice_question"
)

// Interaction is something the student did. Which fields are set depends on
// the type.
type Interaction struct {
	Type InteractionType `json:"type"`
	// AudioBytes holds a recorded clip for speech interactions, base64 on
	// the wire.
	AudioBytes []byte `json:"audio_bytes,omitempty"`
	Text       string `json:"text,omitempty"`
	Answer     string `json:"answer,omitempty"`
	Correct    bool   `json:"correct,omitempty"`
}

func (i Interaction) isQuestion() bool {
	return i.Type == InteractionMCQ || i.Type == InteractionBinaryChoice
}

// logData is what is kept of an interaction in the session log, recorded
// audio is not.
func (i Interaction) logData(transcription string) map[string]any {
	data := map[string]any{"interaction_type": string(i.Type)}
	switch {
	case i.isQuestion():
		data["answer"] = i.Answer
		data["correct"] = i.Correct
	case i.Type == InteractionText:
		data["text"] = i.Text
	case i.Type == InteractionSpeech:
		data["transcription"] = transcription
	}
	return data
}
