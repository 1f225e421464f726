package instance_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/quiztab/internal/instance"
	"github.com/mind-engage/quiztab/internal/question"
)

func ptr(f float64) *float64 { return &f }

func ohmsLaw() question.Question {
	return question.Question{
		ID:      "ohm-1",
		TopicID: "elektro",
		Type:    question.TypeCalcValue,
		Prompt:  "R = {{R}} Ohm, U = {{U}} V. Wie gross ist I?",
		Payload: &question.CalcValuePayload{ExpectedValue: 1, ExpectedUnit: "A"},
		Solution: &question.Solution{
			Final: "I = {{U}} / {{R}}",
		},
		Randomization: &question.Randomization{
			Params: map[string]question.ParamSpec{
				"R": {Min: ptr(10), Max: ptr(100), Step: ptr(10)},
				"U": {Choices: []any{float64(12), float64(24), float64(230)}},
			},
		},
	}
}

func TestDeriveSeedStable(t *testing.T) {
	a := instance.DeriveSeed("q1", 0)
	assert.Equal(t, a, instance.DeriveSeed("q1", 0))
	assert.NotEqual(t, a, instance.DeriveSeed("q1", 1))
	assert.NotEqual(t, a, instance.DeriveSeed("q2", 0))
	assert.GreaterOrEqual(t, a, int64(0))
}

func TestInstantiateDeterministic(t *testing.T) {
	q := ohmsLaw()
	a, err := instance.Instantiate(q, 42)
	require.NoError(t, err)
	b, err := instance.Instantiate(q, 42)
	require.NoError(t, err)

	assert.Equal(t, a.InstanceID, b.InstanceID)
	assert.Equal(t, a.Params, b.Params)
	assert.Equal(t, a.Question.Prompt, b.Question.Prompt)
	assert.NotContains(t, a.Question.Prompt, "{{")
	assert.Nil(t, a.Question.Randomization)
	assert.NotContains(t, a.Expected.Final, "{{")
}

func TestInstantiateParamRange(t *testing.T) {
	q := ohmsLaw()
	for seed := int64(0); seed < 50; seed++ {
		inst, err := instance.Instantiate(q, seed)
		require.NoError(t, err)
		r := inst.Params["R"].(float64)
		assert.True(t, r >= 10 && r <= 100, "R=%v", r)
		assert.Zero(t, int(r)%10)
		assert.Contains(t, []any{float64(12), float64(24), float64(230)}, inst.Params["U"])
	}
}

func TestInstantiateVariantOverrides(t *testing.T) {
	q := question.Question{
		ID: "v1", TopicID: "t", Type: question.TypeSingle, Prompt: "Base",
		Payload: &question.SinglePayload{Options: []string{"a", "b"}, CorrectIndex: 0},
		Randomization: &question.Randomization{Variants: []question.Variant{
			{ID: "x", ParamOverrides: map[string]any{"prompt": "Variant X", "correct": float64(1)}},
		}},
	}
	inst, err := instance.Instantiate(q, 7)
	require.NoError(t, err)
	assert.Equal(t, "x", inst.VariantID)
	assert.Equal(t, "Variant X", inst.Question.Prompt)
	assert.Equal(t, 1, inst.Question.Payload.(*question.SinglePayload).CorrectIndex)
	assert.Equal(t, 0, q.Payload.(*question.SinglePayload).CorrectIndex, "base untouched")
}

func TestInstantiateNumericPlaceholder(t *testing.T) {
	q := question.Question{
		ID: "c", TopicID: "t", Type: question.TypeCalcValue, Prompt: "{{x}} + 1?",
		Payload: &question.CalcValuePayload{ExpectedValue: 0, ExpectedUnit: "V"},
		Randomization: &question.Randomization{
			Variants: []question.Variant{{ID: "only", ParamOverrides: map[string]any{"expected_value": "{{x}}"}}},
			Params:   map[string]question.ParamSpec{"x": {Choices: []any{float64(5)}}},
		},
	}
	inst, err := instance.Instantiate(q, 1)
	require.NoError(t, err)
	assert.Equal(t, "5 + 1?", inst.Question.Prompt)
	assert.Equal(t, 5.0, inst.Question.Payload.(*question.CalcValuePayload).ExpectedValue)
}

func TestInstantiateMalformed(t *testing.T) {
	tests := []struct {
		name string
		r    question.Randomization
	}{
		{"min above max", question.Randomization{Params: map[string]question.ParamSpec{"a": {Min: ptr(5), Max: ptr(1)}}}},
		{"no range", question.Randomization{Params: map[string]question.ParamSpec{"a": {}}}},
		{"zero step", question.Randomization{Params: map[string]question.ParamSpec{"a": {Min: ptr(0), Max: ptr(1), Step: ptr(0)}}}},
		{"too many steps", question.Randomization{Params: map[string]question.ParamSpec{"a": {Min: ptr(0), Max: ptr(1e300), Step: ptr(1e-10)}}}},
		{"infinite range", question.Randomization{Params: map[string]question.ParamSpec{"a": {Min: ptr(-math.MaxFloat64), Max: ptr(math.MaxFloat64)}}}},
		{"variant without id", question.Randomization{Variants: []question.Variant{{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := ohmsLaw()
			q.Prompt = "static"
			q.Solution = nil
			r := tt.r
			q.Randomization = &r
			_, err := instance.Instantiate(q, 3)
			assert.ErrorIs(t, err, instance.ErrMalformed)
		})
	}
}

func TestInstantiateUnknownPlaceholder(t *testing.T) {
	q := ohmsLaw()
	q.Prompt = "{{missing}}"
	_, err := instance.Instantiate(q, 3)
	assert.ErrorIs(t, err, instance.ErrMalformed)
}

func TestInstantiateStaticQuestion(t *testing.T) {
	q := question.Question{ID: "s", TopicID: "t", Type: question.TypeTrueFalse, Prompt: "P",
		Payload: &question.TrueFalsePayload{Correct: true}}
	inst, err := instance.Instantiate(q, 9)
	require.NoError(t, err)
	assert.Empty(t, inst.Params)
	assert.Equal(t, "P", inst.Question.Prompt)
}
