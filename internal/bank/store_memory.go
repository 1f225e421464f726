package bank

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mind-engage/quiztab/internal/question"
)

// MemoryStore is a Store for tests and offline play.
type MemoryStore struct {
	mu        sync.RWMutex
	topics    map[string]question.Topic
	questions map[string]question.Question
	packs     []Pack
	attempts  []question.Attempt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		topics:    map[string]question.Topic{},
		questions: map[string]question.Question{},
	}
}

func (m *MemoryStore) PutTopic(_ context.Context, t question.Topic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics[t.ID] = t
	return nil
}

func (m *MemoryStore) ListTopics(context.Context) ([]question.Topic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]question.Topic, 0, len(m.topics))
	for _, t := range m.topics {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) PutQuestion(_ context.Context, q question.Question, _ string, replace bool) (PutOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.questions[q.ID]
	switch {
	case exists && !replace:
		return Skipped, nil
	case exists:
		m.questions[q.ID] = q
		return Replaced, nil
	}
	m.questions[q.ID] = q
	return Added, nil
}

func (m *MemoryStore) GetQuestion(_ context.Context, id string) (question.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	if !ok {
		return question.Question{}, fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	return q, nil
}

func (m *MemoryStore) ListQuestions(context.Context) ([]question.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]question.Question, 0, len(m.questions))
	for _, q := range m.questions {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) PutPack(_ context.Context, p Pack) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.packs {
		if m.packs[i].ID == p.ID {
			m.packs[i] = p
			return nil
		}
	}
	m.packs = append(m.packs, p)
	return nil
}

func (m *MemoryStore) ListPacks(context.Context) ([]Pack, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Pack{}, m.packs...), nil
}

func (m *MemoryStore) AppendAttempt(_ context.Context, a question.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *MemoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]question.Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []question.Attempt{}
	for _, a := range m.attempts {
		if matchAttempt(a, opts) {
			out = append(out, a)
		}
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []question.Attempt{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *MemoryStore) CountAttempts(_ context.Context, opts AttemptListOpts) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, a := range m.attempts {
		if matchAttempt(a, opts) {
			n++
		}
	}
	return n, nil
}

func matchAttempt(a question.Attempt, opts AttemptListOpts) bool {
	return (opts.UserID == "" || a.User == opts.UserID) &&
		(opts.QuestionID == "" || a.QuestionID == opts.QuestionID)
}
