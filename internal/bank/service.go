package bank

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/quiztab/internal/cache"
	"github.com/mind-engage/quiztab/internal/formats"
	_ "github.com/mind-engage/quiztab/internal/formats/all"
	"github.com/mind-engage/quiztab/internal/formats/legacy"
	"github.com/mind-engage/quiztab/internal/grading"
	"github.com/mind-engage/quiztab/internal/instance"
	"github.com/mind-engage/quiztab/internal/logger"
	"github.com/mind-engage/quiztab/internal/question"
	"github.com/mind-engage/quiztab/internal/storage"
	syncx "github.com/mind-engage/quiztab/internal/sync"
)

var (
	ErrInvalidPack   = errors.New("invalid pack")
	ErrInvalidAnswer = errors.New("invalid answer")
	ErrInvalidInput  = errors.New("invalid input")
)

// DefaultExportSchema is the dialect GET /questions/export writes.
const DefaultExportSchema = legacy.SchemaV2

// Instantiate modes.
const (
	ModeSeeded = "seeded" // seed derived from the caller's attempt count
	ModeRandom = "random"
)

// EventLog receives one event per successful write.
type EventLog interface {
	Append(ctx context.Context, e syncx.Event) error
}

type Service struct {
	store  Store
	engine *grading.Engine
	gen    instance.Generator
	cache  cache.Instances
	blobs  storage.BlobStore
	events EventLog
	log    *logger.Logger
	now    func() time.Time
	seeds  func() int64
}

type Option func(*Service)

func WithCache(c cache.Instances) Option       { return func(s *Service) { s.cache = c } }
func WithBlobStore(b storage.BlobStore) Option { return func(s *Service) { s.blobs = b } }
func WithEventLog(e EventLog) Option           { return func(s *Service) { s.events = e } }
func WithLogger(l *logger.Logger) Option       { return func(s *Service) { s.log = l } }
func WithEngine(e *grading.Engine) Option      { return func(s *Service) { s.engine = e } }
func WithClock(now func() time.Time) Option    { return func(s *Service) { s.now = now } }

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		engine: grading.NewEngine(),
		log:    logger.Nop(),
		now:    time.Now,
		seeds:  func() int64 { return rand.Int64() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Catalog is the bulk load served by GET /questions.
type Catalog struct {
	Topics    []question.Topic    `json:"topics"`
	Questions []question.Question `json:"questions"`
	Packs     []Pack              `json:"packs"`
}

func (s *Service) Catalog(ctx context.Context) (Catalog, error) {
	topics, err := s.topics(ctx)
	if err != nil {
		return Catalog{}, err
	}
	qs, err := s.store.ListQuestions(ctx)
	if err != nil {
		return Catalog{}, err
	}
	packs, err := s.store.ListPacks(ctx)
	if err != nil {
		return Catalog{}, err
	}
	return Catalog{Topics: topics, Questions: qs, Packs: packs}, nil
}

func (s *Service) topics(ctx context.Context) ([]question.Topic, error) {
	ts, err := s.store.ListTopics(ctx)
	if err != nil {
		return nil, err
	}
	ts, _ = question.BuildTopicTree(ts)
	question.SortTopics(ts)
	return ts, nil
}

// ImportReport is the response of POST /questions/import.
type ImportReport struct {
	PackID   string          `json:"pack_id,omitempty"`
	Schema   string          `json:"schema,omitempty"`
	Added    int             `json:"added"`
	Skipped  int             `json:"skipped"`
	Replaced int             `json:"replaced"`
	Errors   []string        `json:"errors"`
	Summary  formats.Summary `json:"summary"`
}

// Import normalizes a raw pack document and stores its topics and valid
// questions. Per-item problems land in the report; a document that cannot
// be dispatched at all returns ErrInvalidPack with the report.
func (s *Service) Import(ctx context.Context, raw []byte, replace bool, user string) (ImportReport, error) {
	res := formats.Normalize(raw)
	rep := ImportReport{Schema: res.Schema, Errors: res.Errors, Summary: res.Summary}
	if res.Schema == "" {
		return rep, fmt.Errorf("%w: %s", ErrInvalidPack, strings.Join(res.Errors, " "))
	}

	rep.PackID = "pack_" + uuid.NewString()
	var blobKey string
	if s.blobs != nil {
		key, err := s.blobs.Put(ctx, "packs/"+rep.PackID+".json", bytes.NewReader(raw))
		if err != nil {
			return rep, fmt.Errorf("archive pack: %w", err)
		}
		blobKey = key
	}

	for _, t := range res.Topics {
		if err := s.store.PutTopic(ctx, t); err != nil {
			return rep, fmt.Errorf("store topic %s: %w", t.ID, err)
		}
	}
	for _, q := range res.Questions {
		out, err := s.store.PutQuestion(ctx, q, rep.PackID, replace)
		if err != nil {
			return rep, fmt.Errorf("store question %s: %w", q.ID, err)
		}
		switch out {
		case Added:
			rep.Added++
		case Replaced:
			rep.Replaced++
		case Skipped:
			rep.Skipped++
		}
	}

	pack := Pack{
		ID:            rep.PackID,
		Schema:        res.Schema,
		Title:         res.Meta.Title,
		BlobKey:       blobKey,
		QuestionCount: rep.Added + rep.Replaced,
		Assets:        res.Assets,
		ImportedBy:    user,
		ImportedAt:    s.now().UTC(),
	}
	if err := s.store.PutPack(ctx, pack); err != nil {
		return rep, fmt.Errorf("store pack: %w", err)
	}
	s.emit(ctx, syncx.TypePackImported, pack.ID, rep)
	s.log.Info("pack imported", "pack_id", pack.ID, "schema", pack.Schema, "user", user,
		"added", rep.Added, "skipped", rep.Skipped, "replaced", rep.Replaced, "errors", len(rep.Errors))
	return rep, nil
}

// InstantiateRequest is the body of POST /questions/{id}/instantiate.
type InstantiateRequest struct {
	Seed *int64 `json:"seed,omitempty"`
	Mode string `json:"mode,omitempty"`
}

// Instantiate realizes question id. Without an explicit seed the seed is
// derived from the user's attempt count, or drawn fresh in random mode.
func (s *Service) Instantiate(ctx context.Context, id string, req InstantiateRequest, user string) (instance.Instance, error) {
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return instance.Instance{}, err
	}
	var seed int64
	switch {
	case req.Seed != nil:
		seed = *req.Seed
	case req.Mode == ModeRandom:
		seed = s.seeds()
	case req.Mode == "" || req.Mode == ModeSeeded:
		n, err := s.store.CountAttempts(ctx, AttemptListOpts{UserID: user, QuestionID: id})
		if err != nil {
			return instance.Instance{}, err
		}
		seed = instance.DeriveSeed(id, n)
	default:
		return instance.Instance{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, req.Mode)
	}
	return s.instance(ctx, q, seed)
}

func (s *Service) instance(ctx context.Context, q question.Question, seed int64) (instance.Instance, error) {
	key := cacheKey(q)
	if s.cache != nil {
		inst, ok, err := s.cache.Get(ctx, key, seed)
		if err != nil {
			s.log.Warn("instance cache read failed", "question_id", q.ID, "seed", seed, "error", err)
		} else if ok {
			return inst, nil
		}
	}
	inst, err := s.gen.Instantiate(ctx, q, seed)
	if err != nil {
		return instance.Instance{}, err
	}
	if s.cache != nil && q.Parametric() {
		if err := s.cache.Put(ctx, key, inst); err != nil {
			s.log.Warn("instance cache write failed", "question_id", q.ID, "seed", seed, "error", err)
		}
	}
	return inst, nil
}

// cacheKey names q's instances by id and a digest of its definition, so a
// replaced question never serves instances of the old one.
func cacheKey(q question.Question) string {
	b, err := json.Marshal(q)
	if err != nil {
		return q.ID
	}
	sum := sha256.Sum256(b)
	return q.ID + "#" + hex.EncodeToString(sum[:8])
}

// Grade is the authority side of POST /questions/{id}/grade. A parametric
// question graded with a seed is graded against the same instance the
// learner saw.
func (s *Service) Grade(ctx context.Context, id string, req grading.GradeRequest) (grading.GradeResponse, error) {
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return grading.GradeResponse{}, err
	}
	target := q
	if q.Parametric() && req.Seed != nil {
		inst, err := s.instance(ctx, q, *req.Seed)
		if err != nil {
			return grading.GradeResponse{}, err
		}
		target = inst.Question
		if inst.Expected != nil {
			target.Solution = inst.Expected
		}
		defer func() {
			if s.cache == nil {
				return
			}
			if err := s.cache.Drop(ctx, cacheKey(q), *req.Seed); err != nil {
				s.log.Warn("instance cache drop failed", "question_id", id, "error", err)
			}
		}()
	}
	a, err := question.DecodeAnswer(target.Type, req.Answer)
	if err != nil {
		return grading.GradeResponse{}, fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
	}
	resp, err := grading.Response(s.engine.Grade(ctx, target, a))
	if errors.Is(err, grading.ErrAnswerMismatch) {
		return grading.GradeResponse{}, fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
	}
	if err != nil {
		return grading.GradeResponse{}, err
	}
	s.log.Debug("graded", "question_id", id, "type", string(target.Type), "status", resp.Status,
		"correct", resp.Correct != nil && *resp.Correct)
	return resp, nil
}

// RecordAttempt appends a to the log. Missing id and timestamp are filled in.
func (s *Service) RecordAttempt(ctx context.Context, a question.Attempt) (question.Attempt, error) {
	if a.QuestionID == "" {
		return question.Attempt{}, fmt.Errorf("%w: attempt missing question_id", ErrInvalidInput)
	}
	if _, err := s.store.GetQuestion(ctx, a.QuestionID); err != nil {
		return question.Attempt{}, err
	}
	if a.ID == "" {
		a.ID = "att_" + uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = s.now()
	}
	a.Timestamp = a.Timestamp.UTC()
	if err := s.store.AppendAttempt(ctx, a); err != nil {
		return question.Attempt{}, fmt.Errorf("append attempt: %w", err)
	}
	s.emit(ctx, syncx.TypeAttemptRecorded, a.ID, a)
	s.log.Info("attempt recorded", "attempt_id", a.ID, "question_id", a.QuestionID, "user", a.User,
		"correct", a.Correct, "graded_by_user", a.GradedByUser)
	return a, nil
}

// CountAttempts counts attempts on one question across all users.
func (s *Service) CountAttempts(ctx context.Context, questionID string) (int, error) {
	return s.store.CountAttempts(ctx, AttemptListOpts{QuestionID: questionID})
}

func (s *Service) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]question.Attempt, error) {
	return s.store.ListAttempts(ctx, opts)
}

// Export renders the bank in the dialect registered for schema;
// an empty schema means DefaultExportSchema.
func (s *Service) Export(ctx context.Context, schema string) (formats.Document, error) {
	if schema == "" {
		schema = DefaultExportSchema
	}
	if _, ok := formats.Lookup(schema); !ok {
		return nil, fmt.Errorf("%w: unsupported export schema %q", ErrInvalidInput, schema)
	}
	cat, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	var assets []any
	for _, p := range cat.Packs {
		assets = append(assets, p.Assets...)
	}
	return formats.Export(schema, formats.Bank{
		Meta: formats.Meta{
			Title:       "Quiztab Export",
			GeneratedBy: "quiztab",
			CreatedAt:   s.now().UTC().Format(time.RFC3339),
		},
		Topics:    cat.Topics,
		Questions: cat.Questions,
		Assets:    assets,
	})
}

func (s *Service) emit(ctx context.Context, typ, key string, data any) {
	if s.events == nil {
		return
	}
	e, err := syncx.NewEvent(typ, key, data)
	if err == nil {
		err = s.events.Append(ctx, e)
	}
	if err != nil {
		s.log.Warn("event append failed", "type", typ, "key", key, "error", err)
	}
}
