package bank

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mind-engage/quiztab/internal/question"
)

// SQLStore keeps the bank in the tables created by db.Open. The same
// statements run on sqlite and postgres.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) PutTopic(ctx context.Context, t question.Topic) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO topics (id,name,parent_id,topic_area)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, parent_id=EXCLUDED.parent_id, topic_area=EXCLUDED.topic_area`,
		t.ID, t.Name, t.ParentID, t.TopicArea)
	return err
}

func (s *SQLStore) ListTopics(ctx context.Context) ([]question.Topic, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,name,parent_id,topic_area FROM topics ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []question.Topic{}
	for rows.Next() {
		var t question.Topic
		if err := rows.Scan(&t.ID, &t.Name, &t.ParentID, &t.TopicArea); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutQuestion(ctx context.Context, q question.Question, packID string, replace bool) (PutOutcome, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return Skipped, fmt.Errorf("encode question %s: %w", q.ID, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Skipped, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM questions WHERE id=$1`, q.ID).Scan(&exists)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `INSERT INTO questions (id,topic_id,type,data,pack_id,updated_at)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			q.ID, q.TopicID, string(q.Type), string(data), packID, time.Now().Unix())
		if err != nil {
			return Skipped, err
		}
		return Added, tx.Commit()
	case err != nil:
		return Skipped, err
	case !replace:
		return Skipped, nil
	}
	_, err = tx.ExecContext(ctx, `UPDATE questions SET topic_id=$2, type=$3, data=$4, pack_id=$5, updated_at=$6 WHERE id=$1`,
		q.ID, q.TopicID, string(q.Type), string(data), packID, time.Now().Unix())
	if err != nil {
		return Skipped, err
	}
	return Replaced, tx.Commit()
}

func (s *SQLStore) GetQuestion(ctx context.Context, id string) (question.Question, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM questions WHERE id=$1`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return question.Question{}, fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return question.Question{}, err
	}
	var q question.Question
	if err := json.Unmarshal([]byte(data), &q); err != nil {
		return question.Question{}, fmt.Errorf("decode question %s: %w", id, err)
	}
	return q, nil
}

func (s *SQLStore) ListQuestions(ctx context.Context) ([]question.Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,data FROM questions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []question.Question{}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		var q question.Question
		if err := json.Unmarshal([]byte(data), &q); err != nil {
			return nil, fmt.Errorf("decode question %s: %w", id, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutPack(ctx context.Context, p Pack) error {
	assets := p.Assets
	if assets == nil {
		assets = []any{}
	}
	aj, err := json.Marshal(assets)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO packs (id,schema_tag,title,blob_key,question_count,assets_json,imported_by,imported_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET schema_tag=EXCLUDED.schema_tag, title=EXCLUDED.title, blob_key=EXCLUDED.blob_key,
			question_count=EXCLUDED.question_count, assets_json=EXCLUDED.assets_json`,
		p.ID, p.Schema, p.Title, p.BlobKey, p.QuestionCount, string(aj), p.ImportedBy, p.ImportedAt.Unix())
	return err
}

func (s *SQLStore) ListPacks(ctx context.Context) ([]Pack, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,schema_tag,title,blob_key,question_count,assets_json,imported_by,imported_at
		FROM packs ORDER BY imported_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Pack{}
	for rows.Next() {
		var (
			p  Pack
			aj string
			at int64
		)
		if err := rows.Scan(&p.ID, &p.Schema, &p.Title, &p.BlobKey, &p.QuestionCount, &aj, &p.ImportedBy, &at); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(aj), &p.Assets); err != nil {
			return nil, fmt.Errorf("decode pack %s assets: %w", p.ID, err)
		}
		p.ImportedAt = time.Unix(at, 0).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) AppendAttempt(ctx context.Context, a question.Attempt) error {
	answer := "null"
	if len(a.Answer) > 0 {
		answer = string(a.Answer)
	}
	var ms sql.NullInt64
	if a.TimeMS != nil {
		ms = sql.NullInt64{Int64: *a.TimeMS, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO attempts (id,question_id,user_id,answer_json,correct,graded_by_user,time_ms,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.QuestionID, a.User, answer, a.Correct, a.GradedByUser, ms, a.Timestamp.UnixMilli())
	return err
}

// attemptWhere builds the WHERE clause and args shared by list and count.
func attemptWhere(opts AttemptListOpts) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if opts.UserID != "" {
		args = append(args, opts.UserID)
		conds = append(conds, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if opts.QuestionID != "" {
		args = append(args, opts.QuestionID)
		conds = append(conds, fmt.Sprintf("question_id=$%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]question.Attempt, error) {
	where, args := attemptWhere(opts)
	q := `SELECT id,question_id,user_id,answer_json,correct,graded_by_user,time_ms,created_at FROM attempts` +
		where + ` ORDER BY created_at, id`
	if opts.Limit > 0 || opts.Offset > 0 {
		// sqlite needs a LIMIT before OFFSET; postgres rejects negative limits.
		limit := int64(math.MaxInt64)
		if opts.Limit > 0 {
			limit = int64(opts.Limit)
		}
		args = append(args, limit, opts.Offset)
		q += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []question.Attempt{}
	for rows.Next() {
		var (
			a      question.Attempt
			answer string
			ms     sql.NullInt64
			at     int64
		)
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.User, &answer, &a.Correct, &a.GradedByUser, &ms, &at); err != nil {
			return nil, err
		}
		if answer != "null" {
			a.Answer = json.RawMessage(answer)
		}
		if ms.Valid {
			v := ms.Int64
			a.TimeMS = &v
		}
		a.Timestamp = time.UnixMilli(at).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) CountAttempts(ctx context.Context, opts AttemptListOpts) (int, error) {
	where, args := attemptWhere(opts)
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempts`+where, args...).Scan(&n)
	return n, err
}
