package question

import (
	"encoding/json"
	"time"
)

// Attempt is one graded answer. Attempts are append-only.
type Attempt struct {
	ID           string          `json:"id"`
	QuestionID   string          `json:"question_id"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Correct      bool            `json:"correct"`
	GradedByUser bool            `json:"graded_by_user"`
	Timestamp    time.Time       `json:"timestamp"`
	TimeMS       *int64          `json:"time_ms,omitempty"`
	User         string          `json:"user,omitempty"`
}

// EncodeAnswer renders a into the opaque form stored on an Attempt.
func EncodeAnswer(a Answer) json.RawMessage {
	if a == nil {
		return nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil
	}
	return b
}
