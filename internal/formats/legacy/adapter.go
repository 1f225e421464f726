// Package legacy handles the flat ap2-questionpack dialects.
package legacy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mind-engage/quiztab/internal/formats"
	"github.com/mind-engage/quiztab/internal/question"
)

const (
	SchemaV1 = "ap2-questionpack-v1"
	SchemaV2 = "ap2-questionpack-v2"

	defaultSourceRef = "internal:import"
)

func init() {
	formats.Register(SchemaV1, New(SchemaV1))
	formats.Register(SchemaV2, New(SchemaV2))
}

// Adapter reads and writes one flat dialect version. v2 additionally
// carries topic parents and question randomization.
type Adapter struct {
	schema string
}

func New(schema string) *Adapter { return &Adapter{schema: schema} }

func (a *Adapter) v2() bool { return a.schema == SchemaV2 }

func (a *Adapter) Import(doc formats.Document) *formats.ImportResult {
	res := formats.NewResult(a.schema)
	if meta, ok := formats.Obj(doc, "meta"); ok {
		res.Meta = formats.Meta{
			Title:       formats.Str(meta, "title"),
			GeneratedBy: formats.Str(meta, "generated_by"),
			CreatedAt:   formats.Str(meta, "created_at"),
		}
	}

	topics, _ := formats.List(doc, "topics")
	for _, raw := range topics {
		t, _ := raw.(map[string]any)
		slug := formats.Str(t, "slug")
		if slug == "" {
			res.Errorf("Topic missing slug.")
			continue
		}
		topic := question.Topic{
			ID:        slug,
			Name:      formats.Str(t, "title", "name"),
			TopicArea: formats.Str(t, "topic_area"),
		}
		if a.v2() {
			topic.ParentID = formats.Str(t, "parent", "parent_slug", "parent_id")
		}
		res.AddTopic(topic)
	}

	questions, _ := formats.List(doc, "questions")
	for _, raw := range questions {
		m, _ := raw.(map[string]any)
		q, err := a.question(m)
		if err != nil {
			res.Reject(err.Error())
			continue
		}
		res.Accept(q)
	}
	return res.Finish()
}

func (a *Adapter) question(m map[string]any) (question.Question, error) {
	id := formats.Str(m, "id")
	rawType := formats.Str(m, "type")
	if id == "" || rawType == "" {
		return question.Question{}, errors.New("Question missing id or type.")
	}
	typ, ok := question.ParseType(rawType)
	if !ok {
		return question.Question{}, fmt.Errorf("Unknown type %s for %s.", rawType, id)
	}
	topic := formats.Str(m, "topic_slug", "topicId", "topic_id", "topic")
	if topic == "" {
		return question.Question{}, fmt.Errorf("Question %s missing topic_slug.", id)
	}
	prompt := formats.Str(m, "prompt", "statement", "text")
	if prompt == "" {
		return question.Question{}, fmt.Errorf("Question %s missing prompt.", id)
	}

	payload, err := formats.BuildPayload(typ, m)
	if err != nil {
		return question.Question{}, fmt.Errorf("%s %s %s.", label(typ), id, missingHint(typ, err))
	}

	q := question.Question{
		ID:          id,
		TopicID:     topic,
		Type:        typ,
		Prompt:      prompt,
		Payload:     payload,
		Explanation: formats.Str(m, "explanation"),
		SourceRef:   formats.Str(m, "source_ref"),
	}
	if q.SourceRef == "" {
		q.SourceRef = defaultSourceRef
	}
	if tags, ok := formats.Strings(m["tags"]); ok {
		q.Tags = tags
	}
	if d, ok := formats.Int(m["difficulty"]); ok {
		q.Difficulty = &d
	}
	if a.v2() {
		r, err := formats.BuildRandomization(m)
		if err != nil {
			return question.Question{}, fmt.Errorf("Question %s has invalid %v.", id, err)
		}
		q.Randomization = r
	}
	return q, nil
}

// label names a type the way authoring errors refer to it.
func label(t question.Type) string {
	switch t {
	case question.TypeSingle:
		return "Single"
	case question.TypeMulti:
		return "Multi"
	case question.TypeTrueFalse:
		return "TrueFalse"
	case question.TypeFillBlank:
		return "Fillblank"
	case question.TypeMatching:
		return "Matching"
	case question.TypeOrdering:
		return "Ordering"
	case question.TypeGuess:
		return "Guess"
	}
	return "Question"
}

func missingHint(t question.Type, err error) string {
	switch t {
	case question.TypeSingle, question.TypeMulti:
		if strings.HasPrefix(err.Error(), "missing") {
			return "missing options/correct"
		}
	}
	return err.Error()
}
