// Package bank is the server-side question bank: imported packs, their
// questions and topics, and the attempt log.
package bank

import (
	"context"
	"errors"
	"time"

	"github.com/mind-engage/quiztab/internal/question"
)

var ErrNotFound = errors.New("not found")

// Pack is the record kept for one imported document.
type Pack struct {
	ID            string    `json:"id"`
	Schema        string    `json:"schema"`
	Title         string    `json:"title,omitempty"`
	BlobKey       string    `json:"blob_key,omitempty"`
	QuestionCount int       `json:"question_count"`
	Assets        []any     `json:"assets,omitempty"`
	ImportedBy    string    `json:"imported_by,omitempty"`
	ImportedAt    time.Time `json:"imported_at"`
}

// PutOutcome says what PutQuestion did with an incoming question.
type PutOutcome int

const (
	Added PutOutcome = iota
	Skipped
	Replaced
)

type AttemptListOpts struct {
	UserID     string // empty lists every user
	QuestionID string
	Limit      int
	Offset     int
}

type Store interface {
	PutTopic(ctx context.Context, t question.Topic) error
	ListTopics(ctx context.Context) ([]question.Topic, error)

	// PutQuestion inserts q. An existing id is overwritten when replace is
	// set and left alone otherwise.
	PutQuestion(ctx context.Context, q question.Question, packID string, replace bool) (PutOutcome, error)
	GetQuestion(ctx context.Context, id string) (question.Question, error)
	ListQuestions(ctx context.Context) ([]question.Question, error)

	PutPack(ctx context.Context, p Pack) error
	ListPacks(ctx context.Context) ([]Pack, error)

	AppendAttempt(ctx context.Context, a question.Attempt) error
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]question.Attempt, error)
	CountAttempts(ctx context.Context, opts AttemptListOpts) (int, error)
}
