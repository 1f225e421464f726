package formats

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mind-engage/quiztab/internal/question"
)

// BuildPayload reads the structured payload shape shared by the dialects
// into a canonical payload and validates it.
func BuildPayload(t question.Type, m map[string]any) (question.Payload, error) {
	p, err := buildPayload(t, m)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func buildPayload(t question.Type, m map[string]any) (question.Payload, error) {
	switch t {
	case question.TypeSingle:
		opts, ok := Strings(m["options"])
		if !ok {
			return nil, errors.New("missing options")
		}
		idx, ok := correctIndex(m["correct"])
		if !ok {
			return nil, errors.New("missing correct")
		}
		return &question.SinglePayload{Options: opts, CorrectIndex: idx}, nil

	case question.TypeMulti:
		opts, ok := Strings(m["options"])
		if !ok {
			return nil, errors.New("missing options")
		}
		idx, ok := Ints(m["correct"])
		if !ok {
			return nil, errors.New("missing correct")
		}
		return &question.MultiPayload{Options: opts, CorrectIndexes: idx}, nil

	case question.TypeTrueFalse:
		v, ok := Bool(m, "correct")
		if !ok {
			return nil, errors.New("missing boolean correct")
		}
		return &question.TrueFalsePayload{Correct: v}, nil

	case question.TypeFillBlank:
		raw, ok := m["blanks"]
		if !ok {
			raw, ok = m["answers"]
		}
		arr, isList := raw.([]any)
		if !ok || !isList {
			return nil, errors.New("missing answers")
		}
		blanks := make([][]string, 0, len(arr))
		for _, b := range arr {
			if set, ok := Strings(b); ok {
				blanks = append(blanks, set)
				continue
			}
			if s, ok := Strings([]any{b}); ok {
				blanks = append(blanks, s)
				continue
			}
			return nil, errors.New("blank is neither text nor list")
		}
		return &question.FillBlankPayload{Blanks: blanks}, nil

	case question.TypeMatching:
		return buildMatching(m)

	case question.TypeOrdering:
		items, ok := Strings(m["items"])
		order, ok2 := Ints(m["correct_order"])
		if !ok || !ok2 {
			return nil, errors.New("missing items/correct_order")
		}
		return &question.OrderingPayload{Items: items, CorrectOrder: order}, nil

	case question.TypeGuess:
		raw, ok := m["answers"]
		if !ok {
			raw = m["accepted"]
		}
		acc, ok := Strings(raw)
		if !ok {
			return nil, errors.New("missing answers")
		}
		return &question.GuessPayload{Accepted: acc}, nil

	case question.TypeExplain:
		return &question.ExplainPayload{ExpectedAnswer: expectedText(m)}, nil

	case question.TypeExam:
		return &question.ExamPayload{ExpectedAnswer: expectedText(m)}, nil

	case question.TypeCalcValue:
		v, ok := Float(m["expected_value"])
		if !ok {
			return nil, errors.New("missing expected_value")
		}
		p := &question.CalcValuePayload{ExpectedValue: v, ExpectedUnit: Str(m, "expected_unit", "unit")}
		if units, ok := Strings(m["accept_units"]); ok {
			p.AcceptUnits = units
		}
		if d, ok := Int(m["rounding_decimals"]); ok {
			p.RoundingDecimals = &d
		}
		tol, err := tolerance(m)
		if err != nil {
			return nil, err
		}
		p.Tolerance = tol
		return p, nil

	case question.TypeCalcMulti:
		var p question.CalcMultiPayload
		if err := Remarshal(map[string]any{"fields": m["fields"], "answers": m["answers"]}, &p); err != nil {
			return nil, fmt.Errorf("fields/answers: %w", err)
		}
		tol, err := tolerance(m)
		if err != nil {
			return nil, err
		}
		p.Tolerance = tol
		return &p, nil

	case question.TypeHotspotSVG:
		var p question.HotspotPayload
		if err := Remarshal(map[string]any{"svg": m["svg"], "hotspots": m["hotspots"], "correct": m["correct"]}, &p); err != nil {
			return nil, fmt.Errorf("hotspots: %w", err)
		}
		return &p, nil

	case question.TypeTroubleshootFlow:
		src := m
		if g, ok := Obj(m, "graph"); ok {
			src = g
		}
		var g question.FlowGraph
		if err := Remarshal(src, &g); err != nil {
			return nil, fmt.Errorf("flow graph: %w", err)
		}
		return &question.FlowPayload{Graph: g}, nil
	}
	return nil, fmt.Errorf("%w: %q", question.ErrUnknownType, t)
}

// correctIndex accepts either a bare index or a one-element list.
func correctIndex(v any) (int, bool) {
	if i, ok := Int(v); ok {
		return i, true
	}
	if arr, ok := Ints(v); ok && len(arr) > 0 {
		return arr[0], true
	}
	return 0, false
}

func buildMatching(m map[string]any) (question.Payload, error) {
	// structured form: pairs [{left, right}]
	if arr, ok := List(m, "pairs"); ok && len(arr) > 0 {
		if _, isObj := arr[0].(map[string]any); isObj {
			var pairs []question.MatchPair
			if err := Remarshal(arr, &pairs); err != nil {
				return nil, fmt.Errorf("pairs: %w", err)
			}
			return &question.MatchingPayload{Pairs: pairs}, nil
		}
	}
	left, okL := Strings(m["left"])
	right, okR := Strings(m["right"])
	if !okL || !okR {
		return nil, errors.New("missing left/right")
	}
	if arr, ok := List(m, "pairs"); ok && len(arr) > 0 {
		pairs := make([]question.MatchPair, 0, len(arr))
		for _, e := range arr {
			ij, ok := Ints(e)
			if !ok || len(ij) != 2 || ij[0] < 0 || ij[0] >= len(left) || ij[1] < 0 || ij[1] >= len(right) {
				return nil, errors.New("pair index out of range")
			}
			pairs = append(pairs, question.MatchPair{Left: left[ij[0]], Right: right[ij[1]]})
		}
		return &question.MatchingPayload{Pairs: pairs}, nil
	}
	if len(left) != len(right) {
		return nil, errors.New("missing pairs")
	}
	pairs := make([]question.MatchPair, len(left))
	for i := range left {
		pairs[i] = question.MatchPair{Left: left[i], Right: right[i]}
	}
	return &question.MatchingPayload{Pairs: pairs}, nil
}

func expectedText(m map[string]any) string {
	if s := Str(m, "expectedAnswer", "expected_answer", "answer_key"); s != "" {
		return s
	}
	if kw, ok := Strings(m["keywords"]); ok {
		return joinTrimmed(kw)
	}
	return Str(m, "keywords")
}

func joinTrimmed(parts []string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

func tolerance(m map[string]any) (*question.Tolerance, error) {
	raw, ok := m["tolerance"]
	if !ok || raw == nil {
		return nil, nil
	}
	// bare number means absolute tolerance
	if v, ok := Float(raw); ok {
		return &question.Tolerance{Mode: "absolute", Value: v}, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.New("tolerance must be a number or object")
	}
	v, _ := Float(obj["value"])
	mode := Str(obj, "mode")
	switch mode {
	case "", "abs":
		mode = "absolute"
	case "rel":
		mode = "relative"
	}
	return &question.Tolerance{Mode: mode, Value: v}, nil
}

// PayloadFields renders a payload in the structured document shape read by BuildPayload.
func PayloadFields(p question.Payload) map[string]any {
	switch v := p.(type) {
	case *question.SinglePayload:
		return map[string]any{"options": v.Options, "correct": []int{v.CorrectIndex}}
	case *question.MultiPayload:
		return map[string]any{"options": v.Options, "correct": v.CorrectIndexes}
	case *question.TrueFalsePayload:
		return map[string]any{"correct": v.Correct}
	case *question.MatchingPayload:
		return map[string]any{"pairs": v.Pairs}
	case *question.OrderingPayload:
		return map[string]any{"items": v.Items, "correct_order": v.CorrectOrder}
	case *question.FillBlankPayload:
		return map[string]any{"blanks": v.Blanks}
	case *question.GuessPayload:
		return map[string]any{"answers": v.Accepted}
	case *question.ExplainPayload:
		return map[string]any{"expectedAnswer": v.ExpectedAnswer}
	case *question.ExamPayload:
		return map[string]any{"expectedAnswer": v.ExpectedAnswer}
	case *question.CalcValuePayload:
		out := map[string]any{"expected_value": v.ExpectedValue, "expected_unit": v.ExpectedUnit}
		if len(v.AcceptUnits) > 0 {
			out["accept_units"] = v.AcceptUnits
		}
		if v.RoundingDecimals != nil {
			out["rounding_decimals"] = *v.RoundingDecimals
		}
		if v.Tolerance != nil {
			out["tolerance"] = v.Tolerance
		}
		return out
	case *question.CalcMultiPayload:
		out := map[string]any{"fields": v.Fields, "answers": v.Answers}
		if v.Tolerance != nil {
			out["tolerance"] = v.Tolerance
		}
		return out
	case *question.HotspotPayload:
		return map[string]any{"svg": v.SVG, "hotspots": v.Hotspots, "correct": v.Correct}
	case *question.FlowPayload:
		out := map[string]any{"start": v.Graph.Start, "nodes": v.Graph.Nodes}
		if v.Graph.SuccessNode != "" {
			out["success_node"] = v.Graph.SuccessNode
		}
		if len(v.Graph.ExpectedPath) > 0 {
			out["expected_path"] = v.Graph.ExpectedPath
		}
		return out
	}
	return map[string]any{}
}

// BuildRandomization reads "randomization" and a top-level "variants" list.
func BuildRandomization(m map[string]any) (*question.Randomization, error) {
	var r question.Randomization
	if raw, ok := m["randomization"]; ok && raw != nil {
		if err := Remarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("randomization: %w", err)
		}
	}
	if raw, ok := m["variants"]; ok && raw != nil {
		var vs []question.Variant
		if err := Remarshal(raw, &vs); err != nil {
			return nil, fmt.Errorf("variants: %w", err)
		}
		r.Variants = append(r.Variants, vs...)
	}
	if r.Empty() {
		return nil, nil
	}
	return &r, nil
}
