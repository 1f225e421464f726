// Package flow walks troubleshoot decision graphs.
package flow

import (
	"errors"
	"fmt"

	"github.com/mind-engage/quiztab/internal/question"
)

var ErrUnknownChoice = errors.New("unknown choice")

// Walker records a learner's path through a graph. It is not safe for
// concurrent use.
type Walker struct {
	graph   *question.FlowGraph
	current string
	path    []question.PathStep
}

func NewWalker(g *question.FlowGraph) (*Walker, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &Walker{graph: g, current: g.Start}, nil
}

// Current is the node the learner is looking at.
func (w *Walker) Current() *question.FlowNode {
	n, _ := w.graph.Node(w.current)
	return n
}

// CurrentID is the id of the current node.
func (w *Walker) CurrentID() string { return w.current }

// Path returns a copy of the steps taken so far.
func (w *Walker) Path() []question.PathStep {
	return append([]question.PathStep(nil), w.path...)
}

// Terminal reports whether the current node offers no further transition.
func (w *Walker) Terminal() bool {
	n := w.Current()
	for _, c := range n.Choices {
		if c.Next != "" {
			return false
		}
	}
	return true
}

// Choose takes choiceID from the current node. A choice without a next
// node ends the walk on the current node.
func (w *Walker) Choose(choiceID string) error {
	n := w.Current()
	c, ok := n.Choice(choiceID)
	if !ok {
		return fmt.Errorf("%w %q at node %s", ErrUnknownChoice, choiceID, n.ID)
	}
	w.path = append(w.path, question.PathStep{NodeID: n.ID, ChoiceID: c.ID, Next: c.Next})
	if c.Next != "" {
		w.current = c.Next
	}
	return nil
}

// Back undoes the last step. It is a no-op at the start.
func (w *Walker) Back() {
	if len(w.path) == 0 {
		return
	}
	last := w.path[len(w.path)-1]
	w.path = w.path[:len(w.path)-1]
	w.current = last.NodeID
}

func (w *Walker) Reset() {
	w.path = nil
	w.current = w.graph.Start
}

// Answer is the submission for the walk so far.
func (w *Walker) Answer() question.FlowAnswer {
	return question.FlowAnswer{Path: w.Path(), FinalNode: w.current}
}

// Replay checks that path is a legal walk from the graph's start and
// returns the node it ends on.
func Replay(g *question.FlowGraph, path []question.PathStep) (string, error) {
	if _, ok := g.Node(g.Start); !ok {
		return "", fmt.Errorf("%w: start node %q missing", question.ErrInvalidGraph, g.Start)
	}
	cur := g.Start
	for i, step := range path {
		if step.NodeID != cur {
			return "", fmt.Errorf("step %d: at %s, not %s", i, cur, step.NodeID)
		}
		n, ok := g.Node(cur)
		if !ok {
			return "", fmt.Errorf("step %d: %w: node %q missing", i, question.ErrInvalidGraph, cur)
		}
		c, ok := n.Choice(step.ChoiceID)
		if !ok {
			return "", fmt.Errorf("step %d: %w %q at node %s", i, ErrUnknownChoice, step.ChoiceID, cur)
		}
		if c.Next != "" {
			cur = c.Next
		}
	}
	return cur, nil
}
