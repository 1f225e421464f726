package grading

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/quiztab/internal/instance"
	"github.com/mind-engage/quiztab/internal/question"
)

type fakeAuthority struct {
	calls int
	last  GradeRequest
	resp  GradeResponse
	err   error
}

func (f *fakeAuthority) Grade(_ context.Context, _ string, req GradeRequest) (GradeResponse, error) {
	f.calls++
	f.last = req
	return f.resp, f.err
}

func calcQuestion() question.Question {
	return q(question.TypeCalcValue, &question.CalcValuePayload{ExpectedValue: 1, ExpectedUnit: "A"})
}

func TestDispatchLocalNeverCallsAuthority(t *testing.T) {
	auth := &fakeAuthority{}
	d := NewDispatcher(NewEngine(), WithAuthority(auth))
	sq := q(question.TypeSingle, &question.SinglePayload{Options: []string{"a", "b"}, CorrectIndex: 1})

	out, err := d.Dispatch(context.Background(), Submission{Question: sq, Answer: question.SingleAnswer{Selected: intp(1)}})
	require.NoError(t, err)
	assert.Equal(t, Graded, out.Kind)
	assert.True(t, out.Verdict.Correct)
	assert.Zero(t, auth.calls)
}

func TestDispatchSelfGraded(t *testing.T) {
	auth := &fakeAuthority{}
	d := NewDispatcher(NewEngine(), WithAuthority(auth))
	eq := q(question.TypeExplain, &question.ExplainPayload{ExpectedAnswer: "key"})

	out, err := d.Dispatch(context.Background(), Submission{Question: eq, Answer: question.TextAnswer{Text: "x"}})
	require.NoError(t, err)
	assert.Equal(t, AwaitingSelfGrade, out.Kind)
	assert.Equal(t, "key", out.Verdict.Expected)
	assert.False(t, out.Verdict.Correct)
	assert.Zero(t, auth.calls)
}

func TestDispatchRemoteSendsInstance(t *testing.T) {
	yes := true
	auth := &fakeAuthority{resp: GradeResponse{Correct: &yes, Expected: "1 A"}}
	d := NewDispatcher(NewEngine(), WithAuthority(auth))
	inst := &instance.Instance{Seed: 42, Params: map[string]any{"R": 10.0}, Question: calcQuestion()}
	ms := int64(1500)

	out, err := d.Dispatch(context.Background(), Submission{
		Question: calcQuestion(), Instance: inst,
		Answer: question.CalcValueAnswer{Value: "1", Unit: "A"}, TimeMS: &ms,
	})
	require.NoError(t, err)
	assert.True(t, out.Verdict.Correct)
	require.NotNil(t, auth.last.Seed)
	assert.Equal(t, int64(42), *auth.last.Seed)
	assert.Equal(t, 10.0, auth.last.InstanceParams["R"])
	assert.JSONEq(t, `{"value":"1","unit":"A"}`, string(auth.last.Answer))
}

func TestDispatchRemoteFailures(t *testing.T) {
	tests := []struct {
		name string
		auth *fakeAuthority
	}{
		{"network", &fakeAuthority{err: errors.New("connection refused")}},
		{"malformed", &fakeAuthority{resp: GradeResponse{Expected: "?"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher(NewEngine(), WithAuthority(tt.auth))
			_, err := d.Dispatch(context.Background(), Submission{
				Question: calcQuestion(), Answer: question.CalcValueAnswer{Value: "1"}})
			assert.ErrorIs(t, err, ErrAuthority)
		})
	}
}

func TestDispatchRemoteWithoutAuthorityGradesInProcess(t *testing.T) {
	d := NewDispatcher(NewEngine())
	out, err := d.Dispatch(context.Background(), Submission{
		Question: calcQuestion(), Answer: question.CalcValueAnswer{Value: "1000", Unit: "mA"}})
	require.NoError(t, err)
	assert.True(t, out.Verdict.Correct)
}

func TestDispatchLocalHotspot(t *testing.T) {
	auth := &fakeAuthority{}
	d := NewDispatcher(NewEngine(), WithAuthority(auth), WithLocalHotspot())
	hq := q(question.TypeHotspotSVG, &question.HotspotPayload{Hotspots: []question.Hotspot{{ID: "r1"}}, Correct: []string{"r1"}})
	out, err := d.Dispatch(context.Background(), Submission{Question: hq, Answer: question.HotspotAnswer{Selected: []string{"r1"}}})
	require.NoError(t, err)
	assert.True(t, out.Verdict.Correct)
	assert.Zero(t, auth.calls)
}

func TestResponseShape(t *testing.T) {
	r, err := Response(Verdict{Expected: "k"}, ErrSelfGraded)
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsSelfGrade, r.Status)
	assert.Nil(t, r.Correct)

	r, err = Response(Verdict{Correct: false}, nil)
	require.NoError(t, err)
	require.NotNil(t, r.Correct)
	assert.False(t, *r.Correct)
}
