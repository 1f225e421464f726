package question

import (
	"errors"
	"fmt"
)

// ErrInvalidGraph marks a flow graph that violates its reference invariants.
var ErrInvalidGraph = errors.New("invalid flow graph")

type FlowChoice struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	Next  string `json:"next,omitempty"` // empty: terminal
}

type FlowNode struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Choices []FlowChoice `json:"choices"`
}

// FlowGraph is a directed diagnostic graph. Cycles are allowed.
type FlowGraph struct {
	Start        string     `json:"start"`
	SuccessNode  string     `json:"success_node,omitempty"`
	Nodes        []FlowNode `json:"nodes"`
	ExpectedPath []string   `json:"expected_path,omitempty"` // choice ids
}

// Node looks up a node by id.
func (g *FlowGraph) Node(id string) (*FlowNode, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// Choice looks up a choice on a node.
func (n *FlowNode) Choice(id string) (*FlowChoice, bool) {
	for i := range n.Choices {
		if n.Choices[i].ID == id {
			return &n.Choices[i], true
		}
	}
	return nil, false
}

func (g *FlowGraph) Validate() error {
	if len(g.Nodes) == 0 {
		return fmt.Errorf("%w: no nodes", ErrInvalidGraph)
	}
	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node without id", ErrInvalidGraph)
		}
		if ids[n.ID] {
			return fmt.Errorf("%w: duplicate node %q", ErrInvalidGraph, n.ID)
		}
		ids[n.ID] = true
	}
	if !ids[g.Start] {
		return fmt.Errorf("%w: start node %q not found", ErrInvalidGraph, g.Start)
	}
	if g.SuccessNode != "" && !ids[g.SuccessNode] {
		return fmt.Errorf("%w: success node %q not found", ErrInvalidGraph, g.SuccessNode)
	}
	for _, n := range g.Nodes {
		for _, c := range n.Choices {
			if c.Next != "" && !ids[c.Next] {
				return fmt.Errorf("%w: choice %s/%s points to unknown node %q", ErrInvalidGraph, n.ID, c.ID, c.Next)
			}
		}
	}
	return nil
}

// PathStep is one traversal step of a flow walk.
type PathStep struct {
	NodeID   string `json:"node_id"`
	ChoiceID string `json:"choice_id"`
	Next     string `json:"next,omitempty"`
}
