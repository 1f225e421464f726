package question

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownType = errors.New("unknown question type")

// Solution is the worked answer shown after grading.
type Solution struct {
	Final string   `json:"final,omitempty"`
	Steps []string `json:"steps,omitempty"`
}

// Support carries optional learner aids.
type Support struct {
	Hints    []string `json:"hints,omitempty"`
	AssetIDs []string `json:"asset_ids,omitempty"`
}

// Variant is one authored alternative of a parametric question.
type Variant struct {
	ID             string         `json:"variant_id"`
	ParamOverrides map[string]any `json:"param_overrides,omitempty"`
	Expected       *Solution      `json:"expected,omitempty"`
}

// ParamSpec describes how one parameter is drawn from the seed:
// either a numeric range (Min..Max by Step) or a list of Choices.
type ParamSpec struct {
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Step     *float64 `json:"step,omitempty"`
	Decimals int      `json:"decimals,omitempty"`
	Choices  []any    `json:"choices,omitempty"`
}

// Randomization makes a question parametric.
type Randomization struct {
	Variants []Variant           `json:"variants,omitempty"`
	Params   map[string]ParamSpec `json:"params,omitempty"`
}

func (r *Randomization) Empty() bool {
	return r == nil || (len(r.Variants) == 0 && len(r.Params) == 0)
}

// Question is the canonical question. Payload's dynamic type always agrees with Type.
type Question struct {
	ID            string
	TopicID       string
	Type          Type
	Prompt        string
	Payload       Payload
	Explanation   string
	SourceRef     string
	Tags          []string
	Difficulty    *int
	Solution      *Solution
	Support       *Support
	Randomization *Randomization
}

// Parametric reports whether the question needs instantiation before presentation.
func (q Question) Parametric() bool { return !q.Randomization.Empty() }

// Validate checks identity fields and the payload.
func (q Question) Validate() error {
	if q.ID == "" {
		return errors.New("missing id")
	}
	if q.TopicID == "" {
		return errors.New("missing topic")
	}
	if q.Prompt == "" {
		return errors.New("missing prompt")
	}
	if q.Payload == nil {
		return errors.New("missing payload")
	}
	if q.Payload.Type() != q.Type {
		return fmt.Errorf("payload %s does not match type %s", q.Payload.Type(), q.Type)
	}
	return q.Payload.Validate()
}

type wireQuestion struct {
	ID            string          `json:"id"`
	TopicID       string          `json:"topic_id"`
	Type          Type            `json:"type"`
	Prompt        string          `json:"prompt"`
	Payload       json.RawMessage `json:"payload"`
	Explanation   string          `json:"explanation,omitempty"`
	SourceRef     string          `json:"source_ref,omitempty"`
	Tags          []string        `json:"tags,omitempty"`
	Difficulty    *int            `json:"difficulty,omitempty"`
	Solution      *Solution       `json:"solution,omitempty"`
	Support       *Support        `json:"support,omitempty"`
	Randomization *Randomization  `json:"randomization,omitempty"`
}

func (q Question) MarshalJSON() ([]byte, error) {
	var raw json.RawMessage
	if q.Payload != nil {
		b, err := json.Marshal(q.Payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(wireQuestion{
		ID: q.ID, TopicID: q.TopicID, Type: q.Type, Prompt: q.Prompt, Payload: raw,
		Explanation: q.Explanation, SourceRef: q.SourceRef, Tags: q.Tags,
		Difficulty: q.Difficulty, Solution: q.Solution, Support: q.Support,
		Randomization: q.Randomization,
	})
}

func (q *Question) UnmarshalJSON(b []byte) error {
	var w wireQuestion
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	t, ok := ParseType(string(w.Type))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, w.Type)
	}
	p, err := DecodePayload(t, w.Payload)
	if err != nil {
		return err
	}
	*q = Question{
		ID: w.ID, TopicID: w.TopicID, Type: t, Prompt: w.Prompt, Payload: p,
		Explanation: w.Explanation, SourceRef: w.SourceRef, Tags: w.Tags,
		Difficulty: w.Difficulty, Solution: w.Solution, Support: w.Support,
		Randomization: w.Randomization,
	}
	return nil
}

// Clone deep-copies q through its canonical JSON form.
func (q Question) Clone() (Question, error) {
	b, err := json.Marshal(q)
	if err != nil {
		return Question{}, err
	}
	var out Question
	if err := json.Unmarshal(b, &out); err != nil {
		return Question{}, err
	}
	return out, nil
}
