package grading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mind-engage/quiztab/internal/instance"
	"github.com/mind-engage/quiztab/internal/question"
)

// ErrAuthority covers failed or unusable responses from the grading authority.
// Nothing is recorded for such a submission and it may be retried.
var ErrAuthority = errors.New("grading authority error")

// StatusNeedsSelfGrade is the authority's answer for self-graded types.
const StatusNeedsSelfGrade = "needs_self_grade"

// GradeRequest is the body sent to the authority.
type GradeRequest struct {
	Answer         json.RawMessage `json:"answer"`
	Seed           *int64          `json:"seed,omitempty"`
	InstanceParams map[string]any  `json:"instance_params,omitempty"`
	TimeMS         *int64          `json:"time_ms,omitempty"`
}

// GradeResponse is the authority's verdict.
type GradeResponse struct {
	Correct  *bool              `json:"correct,omitempty"`
	Status   string             `json:"status,omitempty"`
	Expected string             `json:"expected,omitempty"`
	Solution *question.Solution `json:"solution,omitempty"`
	Feedback []string           `json:"feedback,omitempty"`
}

// Authority grades remote types. The server's verdict is trusted as-is.
type Authority interface {
	Grade(ctx context.Context, questionID string, req GradeRequest) (GradeResponse, error)
}

type OutcomeKind int

const (
	Graded OutcomeKind = iota
	AwaitingSelfGrade
)

func (k OutcomeKind) String() string {
	if k == AwaitingSelfGrade {
		return "awaiting_self_grade"
	}
	return "graded"
}

// Outcome is what the dispatcher hands back to the session. For
// AwaitingSelfGrade the verdict carries only the expected text.
type Outcome struct {
	Kind    OutcomeKind
	Verdict Verdict
}

type DispatchOption func(*Dispatcher)

// WithAuthority sends remote types to a. Without one they are graded in process.
func WithAuthority(a Authority) DispatchOption { return func(d *Dispatcher) { d.authority = a } }

// WithLocalHotspot grades hotspot questions locally even when an authority is set.
func WithLocalHotspot() DispatchOption { return func(d *Dispatcher) { d.localHotspot = true } }

type Dispatcher struct {
	engine       *Engine
	authority    Authority
	localHotspot bool
}

func NewDispatcher(engine *Engine, opts ...DispatchOption) *Dispatcher {
	d := &Dispatcher{engine: engine}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Submission is one learner answer for a presented question.
type Submission struct {
	Question question.Question
	Instance *instance.Instance // nil for static questions
	Answer   question.Answer
	TimeMS   *int64
}

// Dispatch grades s by the route its type calls for.
func (d *Dispatcher) Dispatch(ctx context.Context, s Submission) (Outcome, error) {
	q := s.Question
	if s.Instance != nil {
		q = s.Instance.Question
	}
	if !question.Compatible(q.Type, s.Answer) {
		return Outcome{}, fmt.Errorf("%w: %s question, %T", ErrAnswerMismatch, q.Type, s.Answer)
	}

	switch d.route(q.Type) {
	case question.GradeSelf:
		v := Verdict{Expected: q.Payload.Expected(), Solution: q.Solution}
		return Outcome{Kind: AwaitingSelfGrade, Verdict: v}, nil

	case question.GradeRemote:
		return d.remote(ctx, q, s)

	case question.GradeLocal:
		v, err := d.engine.Grade(ctx, q, s.Answer)
		if errors.Is(err, ErrSelfGraded) {
			return Outcome{Kind: AwaitingSelfGrade, Verdict: v}, nil
		}
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: Graded, Verdict: v}, nil
	}
	return Outcome{}, fmt.Errorf("%w: %q", question.ErrUnknownType, q.Type)
}

func (d *Dispatcher) route(t question.Type) question.GradingMode {
	m := t.Mode()
	if m == question.GradeRemote && (d.authority == nil || (t == question.TypeHotspotSVG && d.localHotspot)) {
		return question.GradeLocal
	}
	return m
}

func (d *Dispatcher) remote(ctx context.Context, q question.Question, s Submission) (Outcome, error) {
	req := GradeRequest{Answer: question.EncodeAnswer(s.Answer), TimeMS: s.TimeMS}
	if s.Instance != nil {
		seed := s.Instance.Seed
		req.Seed = &seed
		req.InstanceParams = s.Instance.Params
	}
	resp, err := d.authority.Grade(ctx, q.ID, req)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrAuthority, err)
	}
	v := Verdict{Expected: resp.Expected, Solution: resp.Solution, Feedback: resp.Feedback}
	switch {
	case resp.Status == StatusNeedsSelfGrade:
		return Outcome{Kind: AwaitingSelfGrade, Verdict: v}, nil
	case resp.Correct != nil:
		v.Correct = *resp.Correct
		return Outcome{Kind: Graded, Verdict: v}, nil
	}
	return Outcome{}, fmt.Errorf("%w: response for %s has neither correct nor status", ErrAuthority, q.ID)
}

// Response renders a local verdict in the authority's wire shape.
func Response(v Verdict, err error) (GradeResponse, error) {
	if errors.Is(err, ErrSelfGraded) {
		return GradeResponse{Status: StatusNeedsSelfGrade, Expected: v.Expected, Solution: v.Solution}, nil
	}
	if err != nil {
		return GradeResponse{}, err
	}
	correct := v.Correct
	return GradeResponse{Correct: &correct, Expected: v.Expected, Solution: v.Solution, Feedback: v.Feedback}, nil
}
