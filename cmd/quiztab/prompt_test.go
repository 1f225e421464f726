package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/quiztab/internal/flow"
	"github.com/mind-engage/quiztab/internal/grading"
	"github.com/mind-engage/quiztab/internal/question"
	"github.com/mind-engage/quiztab/internal/session"
)

func scripted(input string) (*prompter, *bytes.Buffer) {
	var out bytes.Buffer
	return newPrompter(strings.NewReader(input), &out), &out
}

func TestNumbers(t *testing.T) {
	got, err := numbers("1, 3 2", 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 1}, got)

	_, err = numbers("4", 3)
	assert.Error(t, err)
	_, err = numbers("x", 3)
	assert.Error(t, err)
}

func TestReadSingleRepromptsOnBadInput(t *testing.T) {
	p, out := scripted("7\n2\n")
	pr := &session.Presentation{Question: question.Question{
		ID: "q1", Type: question.TypeSingle,
		Payload: &question.SinglePayload{Options: []string{"a", "b"}},
	}}
	a, err := p.answer(pr)
	require.NoError(t, err)
	sel := a.(question.SingleAnswer).Selected
	require.NotNil(t, sel)
	assert.Equal(t, 1, *sel)
	assert.Contains(t, out.String(), "between 1 and 2")
}

func TestReadOrderingAndFillBlank(t *testing.T) {
	p, _ := scripted("3,1,2\n ohm | volt \n")

	a, err := p.read(&session.Presentation{Question: question.Question{
		Type:    question.TypeOrdering,
		Payload: &question.OrderingPayload{Items: []string{"x", "y", "z"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, question.OrderingAnswer{Order: []int{2, 0, 1}}, a)

	a, err = p.read(&session.Presentation{Question: question.Question{
		Type:    question.TypeFillBlank,
		Payload: &question.FillBlankPayload{Blanks: [][]string{{"ohm"}, {"volt"}}},
	}})
	require.NoError(t, err)
	assert.Equal(t, question.FillBlankAnswer{Blanks: []string{"ohm", "volt"}}, a)
}

func TestReadMatchingUsesShuffledRights(t *testing.T) {
	p, _ := scripted("2,1\n")
	a, err := p.read(&session.Presentation{
		Question: question.Question{
			Type: question.TypeMatching,
			Payload: &question.MatchingPayload{Pairs: []question.MatchPair{
				{Left: "R", Right: "ohm"},
				{Left: "I", Right: "ampere"},
			}},
		},
		Rights: []string{"ampere", "ohm"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"R": "ohm", "I": "ampere"}, a.(question.MatchingAnswer).Matches)
}

func TestQuit(t *testing.T) {
	p, _ := scripted("q\n")
	_, err := p.read(&session.Presentation{Question: question.Question{
		Type: question.TypeGuess, Payload: &question.GuessPayload{Accepted: []string{"x"}},
	}})
	assert.True(t, errors.Is(err, errQuit))

	p, _ = scripted("")
	_, err = p.line("> ")
	assert.True(t, errors.Is(err, errQuit))
}

func TestWalk(t *testing.T) {
	g := &question.FlowGraph{
		Start:       "power",
		SuccessNode: "fixed",
		Nodes: []question.FlowNode{
			{ID: "power", Text: "Is it plugged in?", Choices: []question.FlowChoice{
				{ID: "no", Label: "No", Next: "fixed"},
				{ID: "yes", Label: "Yes", Next: "fuse"},
			}},
			{ID: "fuse", Text: "Check the fuse", Choices: []question.FlowChoice{
				{ID: "done", Label: "Replaced", Next: "fixed"},
			}},
			{ID: "fixed", Text: "Works"},
		},
	}
	w, err := flow.NewWalker(g)
	require.NoError(t, err)

	// yes, back, no reaches the terminal node.
	p, out := scripted("2\nb\n1\n")
	a, err := p.walk(w)
	require.NoError(t, err)
	fa := a.(question.FlowAnswer)
	assert.Equal(t, "fixed", fa.FinalNode)
	require.Len(t, fa.Path, 1)
	assert.Equal(t, "no", fa.Path[0].ChoiceID)
	assert.Contains(t, out.String(), "Check the fuse")

	w.Reset()
	p, _ = scripted("2\ns\n")
	a, err = p.walk(w)
	require.NoError(t, err)
	assert.Equal(t, "fuse", a.(question.FlowAnswer).FinalNode)
}

func TestSelfGrade(t *testing.T) {
	p, out := scripted("maybe\ny\n")
	ok, err := p.selfGrade("V = I * R")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "expected: V = I * R")
}

type attemptLog struct{ attempts []question.Attempt }

func (l *attemptLog) RecordAttempt(_ context.Context, a question.Attempt) (question.Attempt, error) {
	l.attempts = append(l.attempts, a)
	return a, nil
}

func (l *attemptLog) CountAttempts(_ context.Context, id string) (int, error) {
	n := 0
	for _, a := range l.attempts {
		if a.QuestionID == id {
			n++
		}
	}
	return n, nil
}

func TestRunSession(t *testing.T) {
	qs := []question.Question{
		{ID: "tf1", TopicID: "net", Type: question.TypeTrueFalse, Prompt: "Current is measured in amperes.",
			Payload: &question.TrueFalsePayload{Correct: true}},
		{ID: "ex1", TopicID: "net", Type: question.TypeExplain, Prompt: "State Ohm's law.",
			Payload: &question.ExplainPayload{ExpectedAnswer: "V = I * R"}},
	}
	topics := []question.Topic{{ID: "net", Name: "Networks", Path: "net"}}
	log := &attemptLog{}
	e := session.New(topics, qs, grading.NewDispatcher(grading.NewEngine()), log, session.WithTestMode(1))

	// Test mode visits questions in id order from a seed offset, so answer
	// both prompts the same way regardless of which comes first.
	p, out := scripted("t\nn\nt\nn\n")
	require.NoError(t, runSession(context.Background(), e, p, 2))

	require.Len(t, log.attempts, 2)
	assert.Contains(t, out.String(), "of 2 right")
	for _, a := range log.attempts {
		if a.QuestionID == "ex1" {
			assert.True(t, a.GradedByUser)
		}
	}
}
