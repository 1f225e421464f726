package flow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/quiztab/internal/flow"
	"github.com/mind-engage/quiztab/internal/question"
)

func graph() *question.FlowGraph {
	return &question.FlowGraph{
		Start:       "A",
		SuccessNode: "B",
		Nodes: []question.FlowNode{
			{ID: "A", Text: "Lampe aus?", Choices: []question.FlowChoice{
				{ID: "c1", Label: "Sicherung pruefen", Next: "B"},
				{ID: "c2", Label: "Abwarten"},
			}},
			{ID: "B", Text: "Sicherung defekt"},
		},
	}
}

func TestWalkerChooseAndSubmit(t *testing.T) {
	w, err := flow.NewWalker(graph())
	require.NoError(t, err)
	require.NoError(t, w.Choose("c1"))

	ans := w.Answer()
	assert.Equal(t, "B", ans.FinalNode)
	assert.Equal(t, []question.PathStep{{NodeID: "A", ChoiceID: "c1", Next: "B"}}, ans.Path)
	assert.True(t, w.Terminal())
}

func TestWalkerTerminalChoiceStays(t *testing.T) {
	w, err := flow.NewWalker(graph())
	require.NoError(t, err)
	require.NoError(t, w.Choose("c2"))
	assert.Equal(t, "A", w.CurrentID())
	assert.Len(t, w.Path(), 1)

	require.NoError(t, w.Choose("c1"), "remaining choices stay available")
	assert.Equal(t, "B", w.CurrentID())
}

func TestWalkerUnknownChoice(t *testing.T) {
	w, err := flow.NewWalker(graph())
	require.NoError(t, err)
	assert.ErrorIs(t, w.Choose("nope"), flow.ErrUnknownChoice)
	assert.Empty(t, w.Path())
}

func TestWalkerBackAndReset(t *testing.T) {
	w, err := flow.NewWalker(graph())
	require.NoError(t, err)

	w.Back()
	assert.Equal(t, "A", w.CurrentID(), "back at start is a no-op")

	require.NoError(t, w.Choose("c1"))
	w.Back()
	assert.Equal(t, "A", w.CurrentID())
	assert.Empty(t, w.Path())

	require.NoError(t, w.Choose("c2"))
	require.NoError(t, w.Choose("c1"))
	w.Reset()
	assert.Equal(t, "A", w.CurrentID())
	assert.Empty(t, w.Path())
}

func TestNewWalkerRejectsBrokenGraph(t *testing.T) {
	g := graph()
	g.Nodes[0].Choices[0].Next = "Z"
	_, err := flow.NewWalker(g)
	assert.ErrorIs(t, err, question.ErrInvalidGraph)
}

func TestReplay(t *testing.T) {
	g := graph()
	end, err := flow.Replay(g, []question.PathStep{{NodeID: "A", ChoiceID: "c2"}, {NodeID: "A", ChoiceID: "c1"}})
	require.NoError(t, err)
	assert.Equal(t, "B", end)

	_, err = flow.Replay(g, []question.PathStep{{NodeID: "B", ChoiceID: "c1"}})
	assert.Error(t, err)

	_, err = flow.Replay(g, []question.PathStep{{NodeID: "A", ChoiceID: "zz"}})
	assert.ErrorIs(t, err, flow.ErrUnknownChoice)
}
