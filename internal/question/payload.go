package question

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Payload is the type-specific body of a question. The set of
// implementations is closed: only this package can add one.
type Payload interface {
	Type() Type
	// Validate checks the structural invariants of the payload.
	Validate() error
	// Expected renders the canonical key for display after grading.
	Expected() string
	isPayload()
}

type SinglePayload struct {
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
}

type MultiPayload struct {
	Options        []string `json:"options"`
	CorrectIndexes []int    `json:"correct_indexes"`
}

type TrueFalsePayload struct {
	Correct bool `json:"correct"`
}

type MatchPair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

type MatchingPayload struct {
	Pairs []MatchPair `json:"pairs"`
}

type OrderingPayload struct {
	Items        []string `json:"items"`
	CorrectOrder []int    `json:"correct_order"`
}

// FillBlankPayload holds one accepted-answer set per blank.
type FillBlankPayload struct {
	Blanks [][]string `json:"blanks"`
}

type GuessPayload struct {
	Accepted []string `json:"accepted"`
}

// Tolerance is an absolute or relative numeric window.
type Tolerance struct {
	Mode  string  `json:"mode"` // absolute|relative
	Value float64 `json:"value"`
}

func (t *Tolerance) Validate() error {
	if t == nil {
		return nil
	}
	switch t.Mode {
	case "absolute", "relative":
	default:
		return fmt.Errorf("tolerance mode %q", t.Mode)
	}
	if t.Value < 0 {
		return errors.New("negative tolerance")
	}
	return nil
}

type CalcValuePayload struct {
	ExpectedValue    float64    `json:"expected_value"`
	ExpectedUnit     string     `json:"expected_unit,omitempty"`
	AcceptUnits      []string   `json:"accept_units,omitempty"`
	RoundingDecimals *int       `json:"rounding_decimals,omitempty"`
	Tolerance        *Tolerance `json:"tolerance,omitempty"`
}

type CalcField struct {
	ID       string `json:"id"`
	Label    string `json:"label,omitempty"`
	Unit     string `json:"unit,omitempty"`
	Decimals *int   `json:"decimals,omitempty"`
}

type CalcExpected struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

type CalcMultiPayload struct {
	Fields    []CalcField             `json:"fields"`
	Answers   map[string]CalcExpected `json:"answers"`
	Tolerance *Tolerance              `json:"tolerance,omitempty"`
}

type Hotspot struct {
	ID           string `json:"id"`
	Label        string `json:"label,omitempty"`
	SVGElementID string `json:"svg_element_id,omitempty"`
}

type HotspotPayload struct {
	SVG      string    `json:"svg"`
	Hotspots []Hotspot `json:"hotspots"`
	Correct  []string  `json:"correct"`
}

type FlowPayload struct {
	Graph FlowGraph `json:"graph"`
}

type ExplainPayload struct {
	ExpectedAnswer string `json:"expected_answer"`
}

type ExamPayload struct {
	ExpectedAnswer string `json:"expected_answer"`
}

func (*SinglePayload) Type() Type    { return TypeSingle }
func (*MultiPayload) Type() Type     { return TypeMulti }
func (*TrueFalsePayload) Type() Type { return TypeTrueFalse }
func (*MatchingPayload) Type() Type  { return TypeMatching }
func (*OrderingPayload) Type() Type  { return TypeOrdering }
func (*FillBlankPayload) Type() Type { return TypeFillBlank }
func (*GuessPayload) Type() Type     { return TypeGuess }
func (*CalcValuePayload) Type() Type { return TypeCalcValue }
func (*CalcMultiPayload) Type() Type { return TypeCalcMulti }
func (*HotspotPayload) Type() Type   { return TypeHotspotSVG }
func (*FlowPayload) Type() Type      { return TypeTroubleshootFlow }
func (*ExplainPayload) Type() Type   { return TypeExplain }
func (*ExamPayload) Type() Type      { return TypeExam }

func (*SinglePayload) isPayload()    {}
func (*MultiPayload) isPayload()     {}
func (*TrueFalsePayload) isPayload() {}
func (*MatchingPayload) isPayload()  {}
func (*OrderingPayload) isPayload()  {}
func (*FillBlankPayload) isPayload() {}
func (*GuessPayload) isPayload()     {}
func (*CalcValuePayload) isPayload() {}
func (*CalcMultiPayload) isPayload() {}
func (*HotspotPayload) isPayload()   {}
func (*FlowPayload) isPayload()      {}
func (*ExplainPayload) isPayload()   {}
func (*ExamPayload) isPayload()      {}

func (p *SinglePayload) Validate() error {
	if len(p.Options) == 0 {
		return errors.New("missing options")
	}
	if p.CorrectIndex < 0 || p.CorrectIndex >= len(p.Options) {
		return fmt.Errorf("correct index %d out of range", p.CorrectIndex)
	}
	return nil
}

func (p *MultiPayload) Validate() error {
	if len(p.Options) == 0 {
		return errors.New("missing options")
	}
	if len(p.CorrectIndexes) == 0 {
		return errors.New("missing correct indexes")
	}
	for _, i := range p.CorrectIndexes {
		if i < 0 || i >= len(p.Options) {
			return fmt.Errorf("correct index %d out of range", i)
		}
	}
	return nil
}

func (p *TrueFalsePayload) Validate() error { return nil }

func (p *MatchingPayload) Validate() error {
	if len(p.Pairs) == 0 {
		return errors.New("missing pairs")
	}
	seen := map[string]bool{}
	for _, pr := range p.Pairs {
		if pr.Left == "" || pr.Right == "" {
			return errors.New("empty pair side")
		}
		if seen[pr.Left] {
			return fmt.Errorf("duplicate left %q", pr.Left)
		}
		seen[pr.Left] = true
	}
	return nil
}

func (p *OrderingPayload) Validate() error {
	if len(p.Items) == 0 {
		return errors.New("missing items")
	}
	if len(p.CorrectOrder) != len(p.Items) {
		return errors.New("correct_order length differs from items")
	}
	seen := make([]bool, len(p.Items))
	for _, i := range p.CorrectOrder {
		if i < 0 || i >= len(p.Items) {
			return fmt.Errorf("order position %d out of range", i)
		}
		if seen[i] {
			return fmt.Errorf("order position %d used twice", i)
		}
		seen[i] = true
	}
	return nil
}

func (p *FillBlankPayload) Validate() error {
	if len(p.Blanks) == 0 {
		return errors.New("missing blanks")
	}
	for i, b := range p.Blanks {
		if len(b) == 0 {
			return fmt.Errorf("blank %d has no accepted answers", i)
		}
	}
	return nil
}

func (p *GuessPayload) Validate() error {
	if len(p.Accepted) == 0 {
		return errors.New("missing answers")
	}
	return nil
}

func (p *CalcValuePayload) Validate() error {
	if p.RoundingDecimals != nil && *p.RoundingDecimals < 0 {
		return errors.New("negative rounding_decimals")
	}
	return p.Tolerance.Validate()
}

func (p *CalcMultiPayload) Validate() error {
	if len(p.Fields) == 0 {
		return errors.New("missing fields")
	}
	for _, f := range p.Fields {
		if f.ID == "" {
			return errors.New("field without id")
		}
		if _, ok := p.Answers[f.ID]; !ok {
			return fmt.Errorf("no answer for field %q", f.ID)
		}
	}
	return p.Tolerance.Validate()
}

func (p *HotspotPayload) Validate() error {
	if len(p.Hotspots) == 0 {
		return errors.New("missing hotspots")
	}
	ids := map[string]bool{}
	for _, h := range p.Hotspots {
		ids[h.ID] = true
	}
	if len(p.Correct) == 0 {
		return errors.New("missing correct hotspots")
	}
	for _, c := range p.Correct {
		if !ids[c] {
			return fmt.Errorf("correct hotspot %q not declared", c)
		}
	}
	return nil
}

func (p *FlowPayload) Validate() error { return p.Graph.Validate() }

func (p *ExplainPayload) Validate() error { return nil }
func (p *ExamPayload) Validate() error    { return nil }

func (p *SinglePayload) Expected() string { return p.Options[p.CorrectIndex] }

func (p *MultiPayload) Expected() string {
	out := make([]string, 0, len(p.CorrectIndexes))
	for _, i := range p.CorrectIndexes {
		out = append(out, p.Options[i])
	}
	return strings.Join(out, ", ")
}

func (p *TrueFalsePayload) Expected() string {
	if p.Correct {
		return "True"
	}
	return "False"
}

func (p *MatchingPayload) Expected() string {
	out := make([]string, 0, len(p.Pairs))
	for _, pr := range p.Pairs {
		out = append(out, pr.Left+" -> "+pr.Right)
	}
	return strings.Join(out, "; ")
}

func (p *OrderingPayload) Expected() string {
	out := make([]string, 0, len(p.CorrectOrder))
	for _, pos := range p.CorrectOrder {
		out = append(out, strconv.Itoa(pos+1))
	}
	return strings.Join(out, ", ")
}

func (p *FillBlankPayload) Expected() string {
	out := make([]string, 0, len(p.Blanks))
	for _, b := range p.Blanks {
		out = append(out, strings.Join(b, "/"))
	}
	return strings.Join(out, " | ")
}

func (p *GuessPayload) Expected() string { return strings.Join(p.Accepted, ", ") }

func (p *CalcValuePayload) Expected() string {
	return strings.TrimSpace(formatNumber(p.ExpectedValue, p.RoundingDecimals) + " " + p.ExpectedUnit)
}

func (p *CalcMultiPayload) Expected() string {
	out := make([]string, 0, len(p.Fields))
	for _, f := range p.Fields {
		a := p.Answers[f.ID]
		out = append(out, strings.TrimSpace(f.ID+"="+formatNumber(a.Value, f.Decimals)+" "+a.Unit))
	}
	return strings.Join(out, "; ")
}

func (p *HotspotPayload) Expected() string { return strings.Join(p.Correct, ", ") }

func (p *FlowPayload) Expected() string { return p.Graph.SuccessNode }

func (p *ExplainPayload) Expected() string { return p.ExpectedAnswer }
func (p *ExamPayload) Expected() string    { return p.ExpectedAnswer }

func formatNumber(v float64, decimals *int) string {
	if decimals != nil {
		return strconv.FormatFloat(v, 'f', *decimals, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NewPayload returns an empty payload for t.
func NewPayload(t Type) (Payload, error) {
	switch t {
	case TypeSingle:
		return &SinglePayload{}, nil
	case TypeMulti:
		return &MultiPayload{}, nil
	case TypeTrueFalse:
		return &TrueFalsePayload{}, nil
	case TypeMatching:
		return &MatchingPayload{}, nil
	case TypeOrdering:
		return &OrderingPayload{}, nil
	case TypeFillBlank:
		return &FillBlankPayload{}, nil
	case TypeGuess:
		return &GuessPayload{}, nil
	case TypeCalcValue:
		return &CalcValuePayload{}, nil
	case TypeCalcMulti:
		return &CalcMultiPayload{}, nil
	case TypeHotspotSVG:
		return &HotspotPayload{}, nil
	case TypeTroubleshootFlow:
		return &FlowPayload{}, nil
	case TypeExplain:
		return &ExplainPayload{}, nil
	case TypeExam:
		return &ExamPayload{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
}

// DecodePayload decodes the canonical JSON form of a payload.
func DecodePayload(t Type, raw json.RawMessage) (Payload, error) {
	p, err := NewPayload(t)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
	}
	return p, nil
}
