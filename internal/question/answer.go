package question

import (
	"encoding/json"
	"fmt"
)

// Answer is a learner response. Like Payload, the set is closed.
type Answer interface {
	AnswerType() Type
	isAnswer()
}

type SingleAnswer struct {
	Selected *int `json:"selected"`
}

type MultiAnswer struct {
	Selected []int `json:"selected"`
}

type TrueFalseAnswer struct {
	Value *bool `json:"value"`
}

// MatchingAnswer maps each left label to the chosen right label.
type MatchingAnswer struct {
	Matches map[string]string `json:"matches"`
}

// OrderingAnswer gives, per item, its chosen position.
type OrderingAnswer struct {
	Order []int `json:"order"`
}

type FillBlankAnswer struct {
	Blanks []string `json:"blanks"`
}

type GuessAnswer struct {
	Text string `json:"text"`
}

// CalcValueAnswer keeps the raw value text so the authority can parse it loosely.
type CalcValueAnswer struct {
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

type CalcMultiAnswer struct {
	Fields map[string]CalcValueAnswer `json:"fields"`
}

type HotspotAnswer struct {
	Selected []string `json:"selected"`
}

type FlowAnswer struct {
	Path      []PathStep `json:"path"`
	FinalNode string     `json:"final_node"`
}

// TextAnswer is the free-text response to explain/exam questions.
type TextAnswer struct {
	Kind Type   `json:"-"`
	Text string `json:"text"`
}

func (SingleAnswer) AnswerType() Type    { return TypeSingle }
func (MultiAnswer) AnswerType() Type     { return TypeMulti }
func (TrueFalseAnswer) AnswerType() Type { return TypeTrueFalse }
func (MatchingAnswer) AnswerType() Type  { return TypeMatching }
func (OrderingAnswer) AnswerType() Type  { return TypeOrdering }
func (FillBlankAnswer) AnswerType() Type { return TypeFillBlank }
func (GuessAnswer) AnswerType() Type     { return TypeGuess }
func (CalcValueAnswer) AnswerType() Type { return TypeCalcValue }
func (CalcMultiAnswer) AnswerType() Type { return TypeCalcMulti }
func (HotspotAnswer) AnswerType() Type   { return TypeHotspotSVG }
func (FlowAnswer) AnswerType() Type      { return TypeTroubleshootFlow }

func (a TextAnswer) AnswerType() Type {
	if a.Kind == "" {
		return TypeExplain
	}
	return a.Kind
}

func (SingleAnswer) isAnswer()    {}
func (MultiAnswer) isAnswer()     {}
func (TrueFalseAnswer) isAnswer() {}
func (MatchingAnswer) isAnswer()  {}
func (OrderingAnswer) isAnswer()  {}
func (FillBlankAnswer) isAnswer() {}
func (GuessAnswer) isAnswer()     {}
func (CalcValueAnswer) isAnswer() {}
func (CalcMultiAnswer) isAnswer() {}
func (HotspotAnswer) isAnswer()   {}
func (FlowAnswer) isAnswer()      {}
func (TextAnswer) isAnswer()      {}

// Compatible reports whether a can answer a question of type t.
func Compatible(t Type, a Answer) bool {
	if a == nil {
		return false
	}
	if ta, ok := a.(TextAnswer); ok {
		return (t == TypeExplain || t == TypeExam) && (ta.Kind == "" || ta.Kind == t)
	}
	return a.AnswerType() == t
}

// DecodeAnswer decodes the JSON answer shape for type t.
func DecodeAnswer(t Type, raw json.RawMessage) (Answer, error) {
	var (
		a   Answer
		err error
	)
	switch t {
	case TypeSingle:
		var v SingleAnswer
		err = json.Unmarshal(raw, &v)
		a = v
	case TypeMulti:
		var v MultiAnswer
		err = json.Unmarshal(raw, &v)
		a = v
	case TypeTrueFalse:
		var v TrueFalseAnswer
		err = json.Unmarshal(raw, &v)
		a = v
	case TypeMatching:
		var v MatchingAnswer
		err = json.Unmarshal(raw, &v)
		a = v
	case TypeOrdering:
		var v OrderingAnswer
		err = json.Unmarshal(raw, &v)
		a = v
	case TypeFillBlank:
		var v FillBlankAnswer
		err = json.Unmarshal(raw, &v)
		a = v
	case TypeGuess:
		var v GuessAnswer
		err = json.Unmarshal(raw, &v)
		a = v
	case TypeCalcValue:
		var v calcValueWire
		err = json.Unmarshal(raw, &v)
		a = CalcValueAnswer{Value: v.Value.String(), Unit: v.Unit}
	case TypeCalcMulti:
		var v struct {
			Fields map[string]calcValueWire `json:"fields"`
		}
		err = json.Unmarshal(raw, &v)
		out := CalcMultiAnswer{Fields: make(map[string]CalcValueAnswer, len(v.Fields))}
		for id, f := range v.Fields {
			out.Fields[id] = CalcValueAnswer{Value: f.Value.String(), Unit: f.Unit}
		}
		a = out
	case TypeHotspotSVG:
		var v HotspotAnswer
		err = json.Unmarshal(raw, &v)
		a = v
	case TypeTroubleshootFlow:
		var v FlowAnswer
		err = json.Unmarshal(raw, &v)
		a = v
	case TypeExplain, TypeExam:
		var v TextAnswer
		err = json.Unmarshal(raw, &v)
		v.Kind = t
		a = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s answer: %w", t, err)
	}
	return a, nil
}

// calcValueWire accepts the value as either a JSON number or a string.
type calcValueWire struct {
	Value looseNumber `json:"value"`
	Unit  string      `json:"unit"`
}

type looseNumber string

func (n *looseNumber) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = looseNumber(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*n = looseNumber(num.String())
	return nil
}

func (n looseNumber) String() string { return string(n) }
