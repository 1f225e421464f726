// Package instance derives concrete, seeded realizations of parametric questions.
package instance

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mind-engage/quiztab/internal/formats"
	"github.com/mind-engage/quiztab/internal/question"
)

// ErrMalformed marks a randomization descriptor that cannot be evaluated.
var ErrMalformed = errors.New("malformed randomization")

// Instance is a concrete question for one presentation.
type Instance struct {
	InstanceID string             `json:"instance_id"`
	Seed       int64              `json:"seed"`
	VariantID  string             `json:"variant_id,omitempty"`
	Params     map[string]any     `json:"params"`
	Question   question.Question  `json:"question"`
	Expected   *question.Solution `json:"expected,omitempty"`
}

// DeriveSeed is the default seed: a stable hash of the question id and the
// number of prior attempts on it.
func DeriveSeed(questionID string, priorAttempts int) int64 {
	sum := sha256.Sum256([]byte(questionID + "#" + strconv.Itoa(priorAttempts)))
	return int64(binary.BigEndian.Uint64(sum[:8]) & math.MaxInt64)
}

// ID names the instance of questionID for seed.
func ID(questionID string, seed int64) string {
	return fmt.Sprintf("%s@%016x", questionID, uint64(seed))
}

// Generator instantiates in process.
type Generator struct{}

func (Generator) Instantiate(_ context.Context, q question.Question, seed int64) (Instance, error) {
	return Instantiate(q, seed)
}

// pcgStream is the fixed second PCG word; the seed alone selects the sequence.
const pcgStream = 0x9e3779b97f4a7c15

// Instantiate evaluates q's randomization against seed. The result depends
// only on the question definition and the seed.
func Instantiate(q question.Question, seed int64) (Instance, error) {
	inst := Instance{InstanceID: ID(q.ID, seed), Seed: seed, Params: map[string]any{}}
	concrete, err := q.Clone()
	if err != nil {
		return Instance{}, err
	}
	concrete.Randomization = nil
	if !q.Parametric() {
		inst.Question = concrete
		inst.Expected = q.Solution
		return inst, nil
	}

	rng := rand.New(rand.NewPCG(uint64(seed), pcgStream))
	r := q.Randomization

	var variant *question.Variant
	if len(r.Variants) > 0 {
		variant = &r.Variants[rng.IntN(len(r.Variants))]
		if variant.ID == "" {
			return Instance{}, fmt.Errorf("%w: variant without id", ErrMalformed)
		}
		inst.VariantID = variant.ID
	}

	names := make([]string, 0, len(r.Params))
	for name := range r.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, err := drawParam(rng, r.Params[name])
		if err != nil {
			return Instance{}, fmt.Errorf("%w: param %s: %v", ErrMalformed, name, err)
		}
		inst.Params[name] = v
	}

	overrides := map[string]any{}
	if variant != nil {
		for k, v := range variant.ParamOverrides {
			overrides[k] = v
		}
	}
	if err := render(&concrete, overrides, inst.Params); err != nil {
		return Instance{}, err
	}

	inst.Expected = q.Solution
	if variant != nil && variant.Expected != nil {
		inst.Expected = variant.Expected
	}
	if inst.Expected != nil {
		final, err := substitute(inst.Expected.Final, inst.Params)
		if err != nil {
			return Instance{}, err
		}
		inst.Expected = &question.Solution{Final: final, Steps: inst.Expected.Steps}
		concrete.Solution = inst.Expected
	}
	inst.Question = concrete
	return inst, nil
}

// maxSteps bounds the number of values a numeric range may produce.
const maxSteps = math.MaxInt32

func drawParam(rng *rand.Rand, p question.ParamSpec) (any, error) {
	if len(p.Choices) > 0 {
		c := p.Choices[rng.IntN(len(p.Choices))]
		if f, ok := formats.Float(c); ok {
			if _, isStr := c.(string); !isStr {
				return f, nil
			}
		}
		return c, nil
	}
	if p.Min == nil || p.Max == nil {
		return nil, errors.New("needs choices or min/max")
	}
	lo, hi := *p.Min, *p.Max
	if lo > hi {
		return nil, errors.New("min exceeds max")
	}
	step := 1.0
	if p.Step != nil {
		step = *p.Step
	}
	if step <= 0 {
		return nil, errors.New("step must be positive")
	}
	steps := math.Floor((hi-lo)/step+1e-9) + 1
	if math.IsNaN(steps) || math.IsInf(steps, 0) || steps < 1 || steps > maxSteps {
		return nil, fmt.Errorf("range %g..%g by %g has too many steps", lo, hi, step)
	}
	v := lo + float64(rng.IntN(int(steps)))*step
	if p.Decimals > 0 {
		pow := math.Pow(10, float64(p.Decimals))
		v = math.Round(v*pow) / pow
	}
	return v, nil
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// substitute replaces {{name}} with the parameter's text form.
func substitute(s string, params map[string]any) (string, error) {
	var missing string
	out := placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		v, ok := params[name]
		if !ok {
			missing = name
			return m
		}
		return paramText(v)
	})
	if missing != "" {
		return "", fmt.Errorf("%w: unknown parameter %q", ErrMalformed, missing)
	}
	return out, nil
}

func paramText(v any) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// render applies overrides and placeholder substitution to q in place.
// Overrides for prompt and explanation target the question; any other key
// replaces the payload field of the same name.
func render(q *question.Question, overrides map[string]any, params map[string]any) error {
	if v, ok := overrides["prompt"].(string); ok {
		q.Prompt = v
	}
	if v, ok := overrides["explanation"].(string); ok {
		q.Explanation = v
	}
	delete(overrides, "prompt")
	delete(overrides, "explanation")

	var err error
	if q.Prompt, err = substitute(q.Prompt, params); err != nil {
		return err
	}
	if q.Explanation, err = substitute(q.Explanation, params); err != nil {
		return err
	}

	var fields map[string]any
	if err := formats.Remarshal(formats.PayloadFields(q.Payload), &fields); err != nil {
		return err
	}
	for k, v := range overrides {
		fields[k] = v
	}
	walked, err := walk(fields, params)
	if err != nil {
		return err
	}
	p, err := formats.BuildPayload(q.Type, walked.(map[string]any))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	q.Payload = p
	return nil
}

// walk substitutes placeholders in every string of a document fragment.
// A string that is exactly one placeholder takes the parameter's value, so
// numeric fields can be parameterized.
func walk(v any, params map[string]any) (any, error) {
	switch t := v.(type) {
	case string:
		if m := placeholder.FindStringSubmatch(t); m != nil && m[0] == strings.TrimSpace(t) {
			pv, ok := params[m[1]]
			if !ok {
				return nil, fmt.Errorf("%w: unknown parameter %q", ErrMalformed, m[1])
			}
			return pv, nil
		}
		return substitute(t, params)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			w, err := walk(e, params)
			if err != nil {
				return nil, err
			}
			out[k] = w
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			w, err := walk(e, params)
			if err != nil {
				return nil, err
			}
			out[i] = w
		}
		return out, nil
	}
	return v, nil
}
