// Package progress tracks the position of a session inside a course and the
// status of the session itself.
package progress

import "fmt"

// Pointer addresses a single phase of a course.
type Pointer struct {
	Topic  int `json:"topic_id" yaml:"topic_id"`
	Module int `json:"module_id" yaml:"module_id"`
	Phase  int `json:"phase_id" yaml:"phase_id"`
}

func (p Pointer) String() string {
	return fmt.Sprintf("%d/%d/%d", p.Topic, p.Module, p.Phase)
}

// Tree is the shape of a course content tree.
type Tree interface {
	Topics() int
	Modules(topic int) int
	Phases(topic, module int) int
}

// Valid reports whether p addresses an existing phase of tree.
func (p Pointer) Valid(tree Tree) bool {
	if p.Topic < 0 || p.Topic >= tree.Topics() {
		return false
	}
	if p.Module < 0 || p.Module >= tree.Modules(p.Topic) {
		return false
	}
	return p.Phase >= 0 && p.Phase < tree.Phases(p.Topic, p.Module)
}

// Less reports whether p comes before other in course order.
func (p Pointer) Less(other Pointer) bool {
	if p.Topic != other.Topic {
		return p.Topic < other.Topic
	}
	if p.Module != other.Module {
		return p.Module < other.Module
	}
	return p.Phase < other.Phase
}

// Advance moves p to the next phase of tree. When the tree is exhausted, or p
// does not address a phase of tree, p is returned unchanged and more is false.
//
// Empty modules and topics are skipped, so the returned pointer is always
// valid when more is true.
func Advance(p Pointer, tree Tree) (next Pointer, more bool) {
	if !p.Valid(tree) {
		return p, false
	}
	if p.Phase+1 < tree.Phases(p.Topic, p.Module) {
		p.Phase++
		return p, true
	}
	if following, ok := seek(tree, p.Topic, p.Module+1); ok {
		return following, true
	}
	return p, false
}

// First returns the first valid pointer of tree.
func First(tree Tree) (Pointer, bool) {
	return seek(tree, 0, 0)
}

// seek returns the first phase at or after the given module. Phases is only
// asked about modules that exist.
func seek(tree Tree, topic, module int) (Pointer, bool) {
	for ; topic < tree.Topics(); topic, module = topic+1, 0 {
		for ; module < tree.Modules(topic); module++ {
			if tree.Phases(topic, module) > 0 {
				return Pointer{Topic: topic, Module: module}, true
			}
		}
	}
	return Pointer{}, false
}
