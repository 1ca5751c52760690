package directives

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProtocolViolation is returned when a directive starts while another
	// one is still open. It is fatal for the turn.
	ErrProtocolViolation = errors.New("directive started while another directive is open")
	// ErrMalformedPayload is returned when a structured directive closes with
	// a body that does not decode.
	ErrMalformedPayload = errors.New("malformed directive payload")
)

// sentenceMarks end a chunk of speech that is safe to emit while the
// directive is still open.
const sentenceMarks = ".!?:"

type parserState int

const (
	stateIdle parserState = iota
	stateOpenTextual
	stateOpenStructured
)

// Parser extracts directives from an append-only stream of text fragments.
//
// The buffer is the input tape, consumed from the front through cursor, and
// content is the working register of the directive that is currently open.
// A Parser is used for a single generation turn and is not safe for
// concurrent use.
type Parser struct {
	buffer string
	cursor int

	state   parserState
	open    Kind
	content strings.Builder

	stray strings.Builder
}

func NewParser() *Parser {
	return &Parser{}
}

// Add appends a fragment to the buffer without parsing it.
func (p *Parser) Add(fragment string) {
	p.buffer += fragment
}

// Parse consumes as much of the buffer as can be resolved unambiguously and
// returns the directives produced by this call, in emission order.
//
// A directive closed by a previous call is never emitted again. Input that
// could still turn out to be a tag is left in the buffer for the next call.
func (p *Parser) Parse() ([]Directive, error) {
	defer p.compact()

	var out []Directive
	for {
		var (
			suspend bool
			err     error
		)
		if p.state == stateIdle {
			suspend = p.scanIdle(&out)
		} else {
			suspend, err = p.scanOpen(&out)
		}
		if err != nil {
			return nil, err
		}
		if suspend {
			return out, nil
		}
	}
}

// Open returns the kind of the directive that is currently open.
func (p *Parser) Open() (Kind, bool) {
	if p.state == stateIdle {
		return "", false
	}
	return p.open, true
}

// Buffered returns input that has been added but not yet consumed.
func (p *Parser) Buffered() string {
	return p.buffer[p.cursor:]
}

// Stray returns text found outside of any directive, which is discarded.
func (p *Parser) Stray() string {
	return strings.TrimSpace(p.stray.String())
}

func (p *Parser) scanIdle(out *[]Directive) (suspend bool) {
	rest := p.buffer[p.cursor:]
	bracket := strings.IndexByte(rest, '<')
	if bracket < 0 {
		p.stray.WriteString(rest)
		p.cursor += len(rest)
		return true
	}

	p.stray.WriteString(rest[:bracket])
	p.cursor += bracket
	tail := rest[bracket:]

	if kind, tag, ok := vocabulary.match(tail); ok {
		p.cursor += len(tag)
		if kind.IsControl() {
			*out = append(*out, Control(kind))
		} else {
			p.begin(kind)
		}
		return false
	}
	if vocabulary.isProperPrefix(tail) {
		return true
	}

	p.stray.WriteByte('<')
	p.cursor++
	return false
}

func (p *Parser) scanOpen(out *[]Directive) (suspend bool, err error) {
	endTag := p.open.EndTag()
	for {
		rest := p.buffer[p.cursor:]
		bracket := strings.IndexByte(rest, '<')
		if bracket < 0 {
			p.content.WriteString(rest)
			p.cursor += len(rest)
			p.emitPartial(out)
			return true, nil
		}

		p.content.WriteString(rest[:bracket])
		p.cursor += bracket
		tail := rest[bracket:]

		switch {
		case strings.HasPrefix(tail, endTag):
			p.cursor += len(endTag)
			directive, err := p.close()
			if err != nil {
				return false, err
			}
			*out = append(*out, directive)
			return false, nil

		case isProperPrefix(tail, endTag), vocabulary.isProperPrefix(tail):
			// Possibly a tag that has not fully arrived yet.
			return true, nil
		}

		if kind, _, ok := vocabulary.match(tail); ok {
			return false, fmt.Errorf("%w: %s opened while %s is open", ErrProtocolViolation, kind, p.open)
		}

		p.content.WriteByte('<')
		p.cursor++
	}
}

func (p *Parser) begin(kind Kind) {
	p.open = kind
	p.content.Reset()
	if kind.IsSpeech() {
		p.state = stateOpenTextual
	} else {
		p.state = stateOpenStructured
	}
}

// emitPartial emits open speech up to and including its last sentence mark.
// Without a mark nothing is emitted and the text keeps accumulating.
func (p *Parser) emitPartial(out *[]Directive) {
	if p.state != stateOpenTextual {
		return
	}

	content := p.content.String()
	last := strings.LastIndexAny(content, sentenceMarks)
	if last < 0 {
		return
	}

	directive := Speech(p.open, content[:last+1])
	directive.Partial = true
	*out = append(*out, directive)

	p.content.Reset()
	p.content.WriteString(content[last+1:])
}

func (p *Parser) close() (Directive, error) {
	kind, body := p.open, p.content.String()
	p.state = stateIdle
	p.open = ""
	p.content.Reset()

	payload, err := newPayload(kind)
	if err != nil {
		return Directive{}, err
	}

	switch payload := payload.(type) {
	case *SpeechPayload:
		payload.Text = body
	case *WhiteboardPayload:
		payload.HTML = body
	case *PointPayload:
		payload.Point = body
	case *GamePayload:
		payload.GameID = strings.TrimSpace(body)
	default:
		if err := json.Unmarshal([]byte(strings.TrimSpace(body)), payload); err != nil {
			return Directive{}, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, kind, err)
		}
		if v, ok := payload.(interface{ validate() error }); ok {
			if err := v.validate(); err != nil {
				return Directive{}, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, kind, err)
			}
		}
	}

	return Directive{Kind: kind, Payload: payload}, nil
}

func (p *Parser) compact() {
	if p.cursor == 0 {
		return
	}
	p.buffer = p.buffer[p.cursor:]
	p.cursor = 0
}

func isProperPrefix(s, of string) bool {
	return len(s) < len(of) && strings.HasPrefix(of, s)
}
