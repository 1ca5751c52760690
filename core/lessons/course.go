// Package lessons holds the records a tutoring session works with: courses,
// sessions, users, characters and games.
package lessons

import (
	"errors"
	"fmt"

	"github.com/koscakluka/ema-tutor/core/directives"
	"github.com/koscakluka/ema-tutor/core/progress"
)

var ErrNoSuchPhase = errors.New("no such phase")

type PhaseType string

const (
	// PhaseContent phases play a pre-authored list of directives.
	PhaseContent PhaseType = "content"
	// PhaseInstruction phases are generated from an instruction.
	PhaseInstruction PhaseType = "instruction"
)

type Phase struct {
	Type        PhaseType              `json:"type"`
	Content     []directives.Directive `json:"content,omitempty"`
	Instruction string                 `json:"instruction,omitempty"`
}

type Module struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Phases      []Phase `json:"phases,omitempty"`
}

type Topic struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Modules     []Module `json:"modules,omitempty"`
}

type CourseStats struct {
	TotalTopics  int `json:"total_topics"`
	TotalModules int `json:"total_modules"`
	TotalPhases  int `json:"total_phases"`
}

// Course is an immutable content tree. It is read, never written, by a
// session.
type Course struct {
	ID                string       `json:"id"`
	Title             string       `json:"title"`
	Description       string       `json:"description"`
	Category          string       `json:"category,omitempty"`
	EstimatedDuration string       `json:"estimatedDuration,omitempty"`
	Topics            []Topic      `json:"topics,omitempty"`
	Stats             *CourseStats `json:"stats,omitempty"`
}

// Tree returns the shape of the course for progress tracking.
func (c *Course) Tree() progress.Tree { return courseTree{c} }

type courseTree struct{ course *Course }

func (t courseTree) Topics() int { return len(t.course.Topics) }

// Modules and Phases report 0 for positions outside the course.
func (t courseTree) Modules(topic int) int {
	if topic < 0 || topic >= len(t.course.Topics) {
		return 0
	}
	return len(t.course.Topics[topic].Modules)
}

func (t courseTree) Phases(topic, module int) int {
	if module < 0 || module >= t.Modules(topic) {
		return 0
	}
	return len(t.course.Topics[topic].Modules[module].Phases)
}

// Phase returns the phase addressed by p.
func (c *Course) Phase(p progress.Pointer) (Phase, error) {
	if !p.Valid(c.Tree()) {
		return Phase{}, fmt.Errorf("%w: %s in course %q", ErrNoSuchPhase, p, c.ID)
	}
	return c.Topics[p.Topic].Modules[p.Module].Phases[p.Phase], nil
}

// ComputeStats counts the nodes of the tree.
func (c *Course) ComputeStats() CourseStats {
	stats := CourseStats{TotalTopics: len(c.Topics)}
	for _, topic := range c.Topics {
		stats.TotalModules += len(topic.Modules)
		for _, module := range topic.Modules {
			stats.TotalPhases += len(module.Phases)
		}
	}
	return stats
}

// Validate checks that every phase can be played.
func (c *Course) Validate() error {
	if c.ID == "" {
		return errors.New("course has no id")
	}
	if _, ok := progress.First(c.Tree()); !ok {
		return fmt.Errorf("course %q has no phases", c.ID)
	}
	for ti, topic := range c.Topics {
		for mi, module := range topic.Modules {
			for pi, phase := range module.Phases {
				at := progress.Pointer{Topic: ti, Module: mi, Phase: pi}
				switch phase.Type {
				case PhaseContent:
					if len(phase.Content) == 0 {
						return fmt.Errorf("course %q phase %s: content phase has no directives", c.ID, at)
					}
				case PhaseInstruction:
					if phase.Instruction == "" {
						return fmt.Errorf("course %q phase %s: instruction phase has no instruction", c.ID, at)
					}
				default:
					return fmt.Errorf("course %q phase %s: unknown phase type %q", c.ID, at, phase.Type)
				}
			}
		}
	}
	return nil
}
