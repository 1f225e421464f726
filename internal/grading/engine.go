// Package grading decides whether an answer is correct. Engine holds the
// deterministic comparisons for every gradable type; Dispatcher routes a
// submission to the engine, the remote authority or the learner.
package grading

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/mind-engage/quiztab/internal/flow"
	"github.com/mind-engage/quiztab/internal/question"
)

var (
	// ErrAnswerMismatch means the answer's shape belongs to another type.
	ErrAnswerMismatch = errors.New("answer does not match question type")
	// ErrSelfGraded is returned for types without a deterministic key.
	ErrSelfGraded = errors.New("question is self-graded")
)

// Verdict is the outcome of grading a single response.
type Verdict struct {
	Correct  bool               `json:"correct"`
	Expected string             `json:"expected,omitempty"`
	Solution *question.Solution `json:"solution,omitempty"`
	Feedback []string           `json:"feedback,omitempty"`
}

// Engine options

type Option func(*config)

type config struct {
	MaxEditDistance int // typo allowance for guess and fillblank
}

func WithMaxEditDistance(n int) Option { return func(c *config) { c.MaxEditDistance = n } }

type Engine struct {
	cfg config
}

func NewEngine(opts ...Option) *Engine {
	cfg := config{}
	for _, o := range opts {
		o(&cfg)
	}
	return &Engine{cfg: cfg}
}

// Grade compares a against q's key. For explain and exam it returns the
// expected text together with ErrSelfGraded.
func (e *Engine) Grade(_ context.Context, q question.Question, a question.Answer) (Verdict, error) {
	if !question.Compatible(q.Type, a) {
		return Verdict{}, fmt.Errorf("%w: %s question, %T", ErrAnswerMismatch, q.Type, a)
	}
	v := Verdict{Expected: q.Payload.Expected(), Solution: q.Solution}

	switch p := q.Payload.(type) {
	case *question.SinglePayload:
		ans := a.(question.SingleAnswer)
		v.Correct = ans.Selected != nil && *ans.Selected == p.CorrectIndex

	case *question.MultiPayload:
		v.Correct = sameSet(p.CorrectIndexes, a.(question.MultiAnswer).Selected)

	case *question.TrueFalsePayload:
		ans := a.(question.TrueFalseAnswer)
		v.Correct = ans.Value != nil && *ans.Value == p.Correct

	case *question.MatchingPayload:
		m := a.(question.MatchingAnswer).Matches
		v.Correct = len(m) == len(p.Pairs)
		for _, pr := range p.Pairs {
			if m[pr.Left] != pr.Right {
				v.Correct = false
			}
		}

	case *question.OrderingPayload:
		v.Correct = slices.Equal(p.CorrectOrder, a.(question.OrderingAnswer).Order)

	case *question.FillBlankPayload:
		blanks := a.(question.FillBlankAnswer).Blanks
		v.Correct = len(blanks) == len(p.Blanks)
		for i := 0; v.Correct && i < len(p.Blanks); i++ {
			ok, fuzzy := accepts(p.Blanks[i], blanks[i], e.cfg.MaxEditDistance)
			v.Correct = ok
			if fuzzy {
				v.Feedback = append(v.Feedback, fmt.Sprintf("blank %d: close match", i+1))
			}
		}

	case *question.GuessPayload:
		ok, fuzzy := accepts(p.Accepted, a.(question.GuessAnswer).Text, e.cfg.MaxEditDistance)
		v.Correct = ok
		if fuzzy {
			v.Feedback = append(v.Feedback, "close match")
		}

	case *question.CalcValuePayload:
		c := calcCheck{want: p.ExpectedValue, unit: p.ExpectedUnit, acceptUnits: p.AcceptUnits,
			decimals: p.RoundingDecimals, tol: p.Tolerance}
		ok, note := c.check(a.(question.CalcValueAnswer))
		v.Correct = ok
		if note != "" {
			v.Feedback = append(v.Feedback, note)
		}

	case *question.CalcMultiPayload:
		fields := a.(question.CalcMultiAnswer).Fields
		v.Correct = true
		for _, f := range p.Fields {
			want := p.Answers[f.ID]
			unit := want.Unit
			if unit == "" {
				unit = f.Unit
			}
			got, ok := fields[f.ID]
			if !ok {
				v.Correct = false
				v.Feedback = append(v.Feedback, fmt.Sprintf("%s: missing", f.ID))
				continue
			}
			c := calcCheck{want: want.Value, unit: unit, decimals: f.Decimals, tol: p.Tolerance}
			if ok, note := c.check(got); !ok {
				v.Correct = false
				if note == "" {
					note = "wrong value"
				}
				v.Feedback = append(v.Feedback, fmt.Sprintf("%s: %s", f.ID, note))
			}
		}

	case *question.HotspotPayload:
		v.Correct = sameSet(p.Correct, a.(question.HotspotAnswer).Selected)

	case *question.FlowPayload:
		ok, note := gradeFlow(&p.Graph, a.(question.FlowAnswer))
		v.Correct = ok
		if note != "" {
			v.Feedback = append(v.Feedback, note)
		}

	case *question.ExplainPayload, *question.ExamPayload:
		return v, ErrSelfGraded

	default:
		return Verdict{}, fmt.Errorf("%w: %q", question.ErrUnknownType, q.Type)
	}
	return v, nil
}

// gradeFlow replays the submitted path. The walk must end where the answer
// claims, reach the success node when one is declared, and follow the
// expected choices when those are given. Without either, any walk that ends
// on a node with no onward transition counts.
func gradeFlow(g *question.FlowGraph, a question.FlowAnswer) (bool, string) {
	end, err := flow.Replay(g, a.Path)
	if err != nil {
		return false, err.Error()
	}
	if a.FinalNode != "" && a.FinalNode != end {
		return false, fmt.Sprintf("path ends at %s, not %s", end, a.FinalNode)
	}
	if len(g.ExpectedPath) > 0 {
		choices := make([]string, len(a.Path))
		for i, s := range a.Path {
			choices[i] = s.ChoiceID
		}
		if !slices.Equal(choices, g.ExpectedPath) {
			return false, "path differs from the expected diagnosis"
		}
	}
	if g.SuccessNode != "" {
		return end == g.SuccessNode, ""
	}
	if len(g.ExpectedPath) > 0 {
		return true, ""
	}
	n, _ := g.Node(end)
	for _, c := range n.Choices {
		if c.Next != "" {
			return false, "walk stopped before a conclusion"
		}
	}
	return true, ""
}

func sameSet[T comparable](want, got []T) bool {
	w := make(map[T]struct{}, len(want))
	for _, x := range want {
		w[x] = struct{}{}
	}
	g := make(map[T]struct{}, len(got))
	for _, x := range got {
		if _, ok := w[x]; !ok {
			return false
		}
		g[x] = struct{}{}
	}
	return len(g) == len(w)
}
