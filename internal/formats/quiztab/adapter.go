// Package quiztab handles the hierarchical quiztab-questionpack-v2 dialect:
// topic trees, reusable stems, method tables and structured payloads.
package quiztab

import (
	"errors"
	"fmt"

	"github.com/mind-engage/quiztab/internal/formats"
	"github.com/mind-engage/quiztab/internal/question"
)

const Schema = "quiztab-questionpack-v2"

func init() {
	formats.Register(Schema, New())
}

type Adapter struct{}

func New() *Adapter { return &Adapter{} }

type stem struct {
	prompt   string
	variants []question.Variant
}

func (a *Adapter) Import(doc formats.Document) *formats.ImportResult {
	res := formats.NewResult(Schema)
	if meta, ok := formats.Obj(doc, "meta"); ok {
		res.Meta = formats.Meta{
			Title:       formats.Str(meta, "title"),
			GeneratedBy: formats.Str(meta, "generated_by"),
			CreatedAt:   formats.Str(meta, "created_at"),
		}
	}
	if assets, ok := formats.List(doc, "assets"); ok {
		res.Assets = assets
	}

	topics, _ := formats.List(doc, "topics")
	for _, raw := range topics {
		t, _ := raw.(map[string]any)
		slug := formats.Str(t, "slug", "id")
		if slug == "" {
			res.Errorf("Topic missing slug.")
			continue
		}
		res.AddTopic(question.Topic{
			ID:        slug,
			Name:      formats.Str(t, "title", "name"),
			ParentID:  formats.Str(t, "parent_topic_id", "parent_id", "parent"),
			TopicArea: formats.Str(t, "topic_area"),
		})
	}

	methods := map[string]question.Type{}
	list, _ := formats.List(doc, "methods")
	for _, raw := range list {
		m, _ := raw.(map[string]any)
		id := formats.Str(m, "id")
		t, ok := question.ParseType(formats.Str(m, "type", "base_type"))
		if id == "" || !ok {
			res.Errorf("Method %q has no known type.", id)
			continue
		}
		methods[id] = t
	}

	stems := map[string]stem{}
	list, _ = formats.List(doc, "stems")
	for _, raw := range list {
		m, _ := raw.(map[string]any)
		id := formats.Str(m, "id")
		if id == "" {
			res.Errorf("Stem missing id.")
			continue
		}
		s := stem{prompt: formats.Str(m, "prompt", "text")}
		if r, err := formats.BuildRandomization(m); err != nil {
			res.Errorf("Stem %s has invalid %v.", id, err)
		} else if r != nil {
			s.variants = r.Variants
		}
		stems[id] = s
	}

	questions, _ := formats.List(doc, "questions")
	for _, raw := range questions {
		m, _ := raw.(map[string]any)
		q, err := buildQuestion(m, methods, stems)
		if err != nil {
			res.Reject(err.Error())
			continue
		}
		res.Accept(q)
	}
	return res.Finish()
}

func buildQuestion(m map[string]any, methods map[string]question.Type, stems map[string]stem) (question.Question, error) {
	id := formats.Str(m, "id")
	method := formats.Str(m, "method_id", "type")
	if id == "" || method == "" {
		return question.Question{}, errors.New("Question missing id or type.")
	}
	typ, ok := methods[method]
	if !ok {
		if typ, ok = question.ParseType(method); !ok {
			return question.Question{}, fmt.Errorf("Unknown type %s for %s.", method, id)
		}
	}
	topic := formats.Str(m, "topic_slug", "topic_id", "topicId")
	if topic == "" {
		return question.Question{}, fmt.Errorf("Question %s missing topic_slug.", id)
	}

	var st *stem
	if sid := formats.Str(m, "stem_id"); sid != "" {
		s, ok := stems[sid]
		if !ok {
			return question.Question{}, fmt.Errorf("Question %s references unknown stem %s.", id, sid)
		}
		st = &s
	}
	prompt := formats.Str(m, "prompt", "statement", "text")
	if prompt == "" && st != nil {
		prompt = st.prompt
	}
	if prompt == "" {
		return question.Question{}, fmt.Errorf("Question %s missing prompt.", id)
	}

	body, ok := formats.Obj(m, "payload")
	if !ok {
		return question.Question{}, fmt.Errorf("Question %s missing payload.", id)
	}
	payload, err := formats.BuildPayload(typ, body)
	if err != nil {
		return question.Question{}, fmt.Errorf("Question %s (%s) invalid payload: %v.", id, typ, err)
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
		q.SourceRef = "internal:import"
	}
	if tags, ok := formats.Strings(m["tags"]); ok {
		q.Tags = tags
	}
	if d, ok := formats.Int(m["difficulty"]); ok {
		q.Difficulty = &d
	}
	if sol, ok := formats.Obj(m, "solution"); ok {
		var s question.Solution
		if err := formats.Remarshal(sol, &s); err != nil {
			return question.Question{}, fmt.Errorf("Question %s has invalid solution: %v.", id, err)
		}
		if s.Final != "" || len(s.Steps) > 0 {
			q.Solution = &s
		}
	}
	if sup, ok := formats.Obj(m, "support"); ok {
		var s question.Support
		if err := formats.Remarshal(sup, &s); err != nil {
			return question.Question{}, fmt.Errorf("Question %s has invalid support: %v.", id, err)
		}
		if len(s.Hints) > 0 || len(s.AssetIDs) > 0 {
			q.Support = &s
		}
	}
	r, err := formats.BuildRandomization(m)
	if err != nil {
		return question.Question{}, fmt.Errorf("Question %s has invalid %v.", id, err)
	}
	if r == nil && st != nil && len(st.variants) > 0 {
		r = &question.Randomization{Variants: st.variants}
	}
	q.Randomization = r
	return q, nil
}

// Export writes the hierarchical dialect. Stems are not reconstructed; every
// question carries its own prompt and variants.
func (a *Adapter) Export(b formats.Bank) (formats.Document, error) {
	topics := make([]any, 0, len(b.Topics))
	for _, t := range b.Topics {
		out := map[string]any{
			"slug":  t.ID,
			"title": t.Name,
			"path":  t.Path,
			"depth": t.Depth,
		}
		if t.ParentID != "" {
			out["parent_topic_id"] = t.ParentID
		}
		if t.TopicArea != "" {
			out["topic_area"] = t.TopicArea
		}
		topics = append(topics, out)
	}

	used := map[question.Type]bool{}
	questions := make([]any, 0, len(b.Questions))
	for _, q := range b.Questions {
		used[q.Type] = true
		out := map[string]any{
			"id":         q.ID,
			"topic_slug": q.TopicID,
			"method_id":  string(q.Type),
			"prompt":     q.Prompt,
			"payload":    formats.PayloadFields(q.Payload),
			"support":    q.Support,
			"source_ref": q.SourceRef,
		}
		if q.Solution != nil {
			out["solution"] = q.Solution
		}
		if q.Support == nil {
			out["support"] = map[string]any{}
		}
		if q.Explanation != "" {
			out["explanation"] = q.Explanation
		}
		if len(q.Tags) > 0 {
			out["tags"] = q.Tags
		}
		if q.Difficulty != nil {
			out["difficulty"] = *q.Difficulty
		}
		if q.Randomization != nil {
			out["randomization"] = q.Randomization
		}
		questions = append(questions, out)
	}

	methods := make([]any, 0, len(used))
	for _, t := range question.AllTypes {
		if used[t] {
			methods = append(methods, map[string]any{"id": string(t), "type": string(t)})
		}
	}
	assets := b.Assets
	if assets == nil {
		assets = []any{}
	}
	return formats.Document{
		"schema":    Schema,
		"meta":      b.Meta,
		"settings":  map[string]any{},
		"topics":    topics,
		"methods":   methods,
		"assets":    assets,
		"stems":     []any{},
		"questions": questions,
	}, nil
}
