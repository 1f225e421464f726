package legacy

import (
	"strings"
	"time"

	"github.com/mind-engage/quiztab/internal/formats"
	"github.com/mind-engage/quiztab/internal/question"
)

// Export writes the flat dialect. Authoring aliases are restored
// (guess→guessword, explain→explainterm) and exam items are marked self-graded.
func (a *Adapter) Export(b formats.Bank) (formats.Document, error) {
	meta := b.Meta
	if meta.Title == "" {
		meta.Title = "Quiztab Export"
	}
	if meta.GeneratedBy == "" {
		meta.GeneratedBy = "quiztab"
	}
	if meta.CreatedAt == "" {
		meta.CreatedAt = time.Now().Format("2006-01-02")
	}

	topics := make([]any, 0, len(b.Topics))
	for _, t := range b.Topics {
		out := map[string]any{"slug": t.ID, "title": t.Name, "topic_area": t.TopicArea}
		if a.v2() && t.ParentID != "" {
			out["parent"] = t.ParentID
		}
		topics = append(topics, out)
	}

	questions := make([]any, 0, len(b.Questions))
	for _, q := range b.Questions {
		questions = append(questions, a.exportQuestion(q))
	}

	return formats.Document{
		"schema":    a.schema,
		"meta":      meta,
		"topics":    topics,
		"questions": questions,
	}, nil
}

func (a *Adapter) exportQuestion(q question.Question) map[string]any {
	out := map[string]any{
		"id":          q.ID,
		"topic_slug":  q.TopicID,
		"type":        string(q.Type),
		"prompt":      q.Prompt,
		"explanation": q.Explanation,
		"source_ref":  q.SourceRef,
		"tags":        nonNil(q.Tags),
	}
	if q.Difficulty != nil {
		out["difficulty"] = *q.Difficulty
	}

	switch p := q.Payload.(type) {
	case *question.MatchingPayload:
		left := make([]string, len(p.Pairs))
		right := make([]string, len(p.Pairs))
		pairs := make([][2]int, len(p.Pairs))
		for i, pr := range p.Pairs {
			left[i], right[i], pairs[i] = pr.Left, pr.Right, [2]int{i, i}
		}
		out["left"], out["right"], out["pairs"] = left, right, pairs
	case *question.FillBlankPayload:
		out["answers"] = p.Blanks
	case *question.GuessPayload:
		out["type"] = "guessword"
		out["answers"] = p.Accepted
	case *question.ExplainPayload:
		out["type"] = "explainterm"
		// keywords only when joining them back gives the same text
		if kw := splitKeywords(p.ExpectedAnswer); strings.Join(kw, ", ") == p.ExpectedAnswer {
			out["keywords"] = kw
		} else {
			out["expectedAnswer"] = p.ExpectedAnswer
		}
	case *question.ExamPayload:
		out["grading"] = "self"
		out["answer_key"] = p.ExpectedAnswer
	default:
		for k, v := range formats.PayloadFields(q.Payload) {
			out[k] = v
		}
	}

	if a.v2() && q.Randomization != nil {
		out["randomization"] = q.Randomization
	}
	return out
}

func splitKeywords(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
