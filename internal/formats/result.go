package formats

import (
	"fmt"

	"github.com/mind-engage/quiztab/internal/question"
)

// Summary counts the outcome of one import.
type Summary struct {
	Total   int                   `json:"total"`
	Valid   int                   `json:"valid"`
	Invalid int                   `json:"invalid"`
	Types   map[question.Type]int `json:"types"`
	Topics  map[string]int        `json:"topics"`
}

// ImportResult is produced fresh per import attempt.
type ImportResult struct {
	Schema    string              `json:"schema,omitempty"`
	Meta      Meta                `json:"meta"`
	Errors    []string            `json:"errors"`
	Summary   Summary             `json:"summary"`
	Topics    []question.Topic    `json:"topics"`
	Questions []question.Question `json:"questions"`
	Assets    []any               `json:"assets,omitempty"`

	topicIndex map[string]int
}

// NewResult starts an empty result for a schema tag.
func NewResult(schema string) *ImportResult {
	return &ImportResult{
		Schema:     schema,
		Errors:     []string{},
		Topics:     []question.Topic{},
		Questions:  []question.Question{},
		Summary:    Summary{Types: map[question.Type]int{}, Topics: map[string]int{}},
		topicIndex: map[string]int{},
	}
}

// SchemaError is the result for a document that cannot be dispatched.
func SchemaError(msg string) *ImportResult {
	r := NewResult("")
	r.Errors = append(r.Errors, msg)
	return r
}

func (r *ImportResult) Errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// AddTopic records a declared topic. A later declaration of the same slug wins.
func (r *ImportResult) AddTopic(t question.Topic) {
	if t.Name == "" {
		t.Name = SlugToTitle(t.ID)
	}
	if i, ok := r.topicIndex[t.ID]; ok {
		r.Topics[i] = t
		return
	}
	r.topicIndex[t.ID] = len(r.Topics)
	r.Topics = append(r.Topics, t)
}

// EnsureTopic auto-creates a topic referenced by a question.
func (r *ImportResult) EnsureTopic(slug string) {
	if _, ok := r.topicIndex[slug]; ok {
		return
	}
	r.AddTopic(question.Topic{ID: slug, Name: SlugToTitle(slug)})
}

// Accept counts q as valid.
func (r *ImportResult) Accept(q question.Question) {
	r.EnsureTopic(q.TopicID)
	r.Summary.Total++
	r.Summary.Valid++
	r.Summary.Types[q.Type]++
	r.Summary.Topics[q.TopicID]++
	r.Questions = append(r.Questions, q)
}

// Reject counts one invalid item with its error.
func (r *ImportResult) Reject(msg string) {
	r.Summary.Total++
	r.Summary.Invalid++
	r.Errors = append(r.Errors, msg)
}

// Finish resolves the topic tree and reports tree problems.
func (r *ImportResult) Finish() *ImportResult {
	topics, problems := question.BuildTopicTree(r.Topics)
	r.Topics = topics
	r.Errors = append(r.Errors, problems...)
	return r
}

// OK reports whether the import produced no errors at all.
func (r *ImportResult) OK() bool { return len(r.Errors) == 0 }
