// Package session runs a quiz: it selects questions, instantiates parametric
// ones, validates answers, dispatches grading and records attempts.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mind-engage/quiztab/internal/flow"
	"github.com/mind-engage/quiztab/internal/grading"
	"github.com/mind-engage/quiztab/internal/instance"
	"github.com/mind-engage/quiztab/internal/logger"
	"github.com/mind-engage/quiztab/internal/question"
)

var (
	ErrNoPresentation    = errors.New("no question is presented")
	ErrStalePresentation = errors.New("presentation is no longer current")
	ErrGradeInFlight     = errors.New("grading already in progress")
	ErrNotAwaitingSelf   = errors.New("presentation is not awaiting self-grade")
	ErrAlreadyGraded     = errors.New("presentation already graded")
	// ErrBrokenQuestion wraps invariant violations in one question's data.
	// The session stays usable; call Next for another question.
	ErrBrokenQuestion = errors.New("question cannot be presented")
)

type State int

const (
	Idle State = iota
	Selecting
	Instantiating
	Presented
	Collecting
	Submitted
	Graded
	AwaitingSelfGrade
	NoQuestions
)

var stateNames = [...]string{"idle", "selecting", "instantiating", "presented", "collecting",
	"submitted", "graded", "awaiting_self_grade", "no_questions"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Instantiator realizes parametric questions. instance.Generator does it in
// process; the HTTP client asks the server.
type Instantiator interface {
	Instantiate(ctx context.Context, q question.Question, seed int64) (instance.Instance, error)
}

// Store is the persistence collaborator for attempts.
type Store interface {
	RecordAttempt(ctx context.Context, a question.Attempt) (question.Attempt, error)
	CountAttempts(ctx context.Context, questionID string) (int, error)
}

// Filter narrows the question set. Empty fields match everything.
type Filter struct {
	Topic string          // topic id; includes its subtopics
	Types []question.Type // allowed types
	Mode  *question.GradingMode
}

// Presentation is one question shown to the learner.
type Presentation struct {
	ID        int
	Base      question.Question
	Question  question.Question // concrete view; equals Base unless instantiated
	Instance  *instance.Instance
	Degraded  bool     // instantiation failed, Base is shown
	Rights    []string // matching: right-hand labels in display order
	Walker    *flow.Walker
	StartedAt time.Time

	grading bool
}

// Result is the outcome of Submit.
type Result struct {
	Outcome grading.Outcome
	Attempt *question.Attempt // nil while awaiting self-grade
}

type Option func(*Engine)

// WithTestMode makes selection and shuffling reproducible from seed. The
// cursor starts at a seed-derived offset and visits the filtered set in id
// order.
func WithTestMode(seed int64) Option {
	return func(e *Engine) {
		e.testMode = true
		e.rng = rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x5851f42d4c957f2d))
	}
}

func WithInstantiator(i Instantiator) Option { return func(e *Engine) { e.inst = i } }
func WithLogger(l *logger.Logger) Option     { return func(e *Engine) { e.log = l } }
func WithClock(now func() time.Time) Option  { return func(e *Engine) { e.now = now } }

// WithLatency delays every grading call by d. Outcomes are unchanged.
func WithLatency(d time.Duration) Option { return func(e *Engine) { e.latency = d } }

// WithNotify is called once per recorded attempt.
func WithNotify(fn func(question.Attempt)) Option { return func(e *Engine) { e.notify = fn } }

// Engine is safe for concurrent use, but only one presentation is active at
// a time. Results that arrive for an older presentation are discarded.
type Engine struct {
	mu sync.Mutex

	questions []question.Question
	topics    map[string]question.Topic
	filter    Filter

	rng      *rand.Rand
	testMode bool
	cursor   int
	started  bool

	state     State
	seq       int
	cur       *Presentation
	pending   question.Answer // answer awaiting self-grade
	pendingMS int64

	counts map[string]int

	dispatcher *grading.Dispatcher
	store      Store
	inst       Instantiator
	log        *logger.Logger
	now        func() time.Time
	latency    time.Duration
	notify     func(question.Attempt)
}

func New(topics []question.Topic, questions []question.Question, d *grading.Dispatcher, store Store, opts ...Option) *Engine {
	qs := slices.Clone(questions)
	slices.SortStableFunc(qs, func(a, b question.Question) int { return strings.Compare(a.ID, b.ID) })
	e := &Engine{
		questions:  qs,
		topics:     make(map[string]question.Topic, len(topics)),
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		counts:     map[string]int{},
		dispatcher: d,
		store:      store,
		inst:       instance.Generator{},
		log:        logger.Nop(),
		now:        time.Now,
	}
	for _, t := range topics {
		e.topics[t.ID] = t
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Current returns the active presentation, if any.
func (e *Engine) Current() *Presentation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cur
}

// SetFilter replaces the filter and restarts test-mode sequencing.
func (e *Engine) SetFilter(f Filter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filter = f
	e.started = false
}

// Leave abandons the current presentation. Grading results still in flight
// for it are discarded when they arrive.
func (e *Engine) Leave() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	e.cur = nil
	e.pending = nil
	e.state = Idle
}

func (e *Engine) filtered() []question.Question {
	var prefix string
	if e.filter.Topic != "" {
		if t, ok := e.topics[e.filter.Topic]; ok && t.Path != "" {
			prefix = t.Path
		}
	}
	out := make([]question.Question, 0, len(e.questions))
	for _, q := range e.questions {
		if e.filter.Topic != "" && q.TopicID != e.filter.Topic {
			t, ok := e.topics[q.TopicID]
			if prefix == "" || !ok || !strings.HasPrefix(t.Path, prefix+question.PathSeparator) {
				continue
			}
		}
		if len(e.filter.Types) > 0 && !slices.Contains(e.filter.Types, q.Type) {
			continue
		}
		if e.filter.Mode != nil && q.Type.Mode() != *e.filter.Mode {
			continue
		}
		out = append(out, q)
	}
	return out
}

func (e *Engine) pick(n int) int {
	if !e.testMode {
		return e.rng.IntN(n)
	}
	if !e.started {
		e.cursor = e.rng.IntN(n)
		e.started = true
	}
	i := e.cursor % n
	e.cursor = (e.cursor + 1) % n
	return i
}

// Next selects and presents a question. It returns (nil, nil) when the
// filter matches nothing; State is then NoQuestions.
func (e *Engine) Next(ctx context.Context) (*Presentation, error) {
	e.mu.Lock()
	e.seq++
	e.cur, e.pending = nil, nil
	e.state = Selecting
	pool := e.filtered()
	if len(pool) == 0 {
		e.state = NoQuestions
		e.mu.Unlock()
		return nil, nil
	}
	q := pool[e.pick(len(pool))]
	p := &Presentation{ID: e.seq, Base: q, Question: q}
	if !q.Parametric() {
		defer e.mu.Unlock()
		if err := e.present(p); err != nil {
			return nil, err
		}
		return p, nil
	}
	e.state = Instantiating
	count, known := e.counts[q.ID]
	e.mu.Unlock()

	if !known && e.store != nil {
		n, err := e.store.CountAttempts(ctx, q.ID)
		if err != nil {
			e.log.Warn("count attempts failed", "question_id", q.ID, "error", err)
		}
		count = n
	}
	seed := instance.DeriveSeed(q.ID, count)
	inst, err := e.inst.Instantiate(ctx, q, seed)

	e.mu.Lock()
	defer e.mu.Unlock()
	if !known {
		if _, ok := e.counts[q.ID]; !ok {
			e.counts[q.ID] = count
		}
	}
	if e.seq != p.ID {
		return nil, ErrStalePresentation
	}
	if err != nil {
		e.log.Warn("instantiation failed; presenting base question",
			"question_id", q.ID, "seed", seed, "error", err)
		p.Degraded = true
	} else {
		p.Instance = &inst
		p.Question = inst.Question
	}
	if err := e.present(p); err != nil {
		return nil, err
	}
	return p, nil
}

// present finishes p under the lock.
func (e *Engine) present(p *Presentation) error {
	switch pl := p.Question.Payload.(type) {
	case *question.MatchingPayload:
		p.Rights = make([]string, len(pl.Pairs))
		for i, pr := range pl.Pairs {
			p.Rights[i] = pr.Right
		}
		e.rng.Shuffle(len(p.Rights), func(i, j int) { p.Rights[i], p.Rights[j] = p.Rights[j], p.Rights[i] })
	case *question.FlowPayload:
		w, err := flow.NewWalker(&pl.Graph)
		if err != nil {
			e.state = Idle
			e.log.Error("flow graph invalid", "question_id", p.Base.ID, "error", err)
			return fmt.Errorf("%w: %s: %v", ErrBrokenQuestion, p.Base.ID, err)
		}
		p.Walker = w
	}
	p.StartedAt = e.now()
	e.cur = p
	e.state = Presented
	return nil
}

// Submit validates and grades a for presentation presID. Incomplete answers
// return *IncompleteError and reach neither the dispatcher nor the store.
func (e *Engine) Submit(ctx context.Context, presID int, a question.Answer) (Result, error) {
	e.mu.Lock()
	p, err := e.active(presID)
	if err != nil {
		e.mu.Unlock()
		return Result{}, err
	}
	if e.state == Graded || e.state == AwaitingSelfGrade {
		e.mu.Unlock()
		return Result{}, ErrAlreadyGraded
	}
	e.state = Collecting
	if err := CheckComplete(p.Question, a); err != nil {
		e.mu.Unlock()
		return Result{}, err
	}
	e.state = Submitted
	p.grading = true
	ms := e.now().Sub(p.StartedAt).Milliseconds()
	e.mu.Unlock()

	outcome, err := e.grade(ctx, p, a, &ms)
	if err != nil {
		return Result{}, e.fail(p, err)
	}

	e.mu.Lock()
	if e.cur != p {
		p.grading = false
		e.mu.Unlock()
		return Result{}, ErrStalePresentation
	}
	if outcome.Kind == grading.AwaitingSelfGrade {
		p.grading = false
		e.state = AwaitingSelfGrade
		e.pending, e.pendingMS = a, ms
		e.mu.Unlock()
		return Result{Outcome: outcome}, nil
	}
	e.mu.Unlock()

	att, err := e.record(ctx, p, a, outcome.Verdict.Correct, false, &ms)
	if err != nil {
		return Result{}, err
	}
	return Result{Outcome: outcome, Attempt: &att}, nil
}

// SelfGrade records the learner's own verdict for a self-graded presentation.
func (e *Engine) SelfGrade(ctx context.Context, presID int, correct bool) (question.Attempt, error) {
	e.mu.Lock()
	p, err := e.active(presID)
	if err != nil {
		e.mu.Unlock()
		return question.Attempt{}, err
	}
	if e.state != AwaitingSelfGrade {
		e.mu.Unlock()
		return question.Attempt{}, ErrNotAwaitingSelf
	}
	p.grading = true
	a, ms := e.pending, e.pendingMS
	e.mu.Unlock()

	return e.record(ctx, p, a, correct, true, &ms)
}

// active returns the current presentation if it is presID. Caller holds mu.
func (e *Engine) active(presID int) (*Presentation, error) {
	if e.cur == nil {
		return nil, ErrNoPresentation
	}
	if e.cur.ID != presID {
		return nil, ErrStalePresentation
	}
	if e.cur.grading {
		return nil, ErrGradeInFlight
	}
	return e.cur, nil
}

func (e *Engine) grade(ctx context.Context, p *Presentation, a question.Answer, ms *int64) (grading.Outcome, error) {
	if e.latency > 0 {
		t := time.NewTimer(e.latency)
		select {
		case <-ctx.Done():
			t.Stop()
			return grading.Outcome{}, ctx.Err()
		case <-t.C:
		}
	}
	return e.dispatcher.Dispatch(ctx, grading.Submission{
		Question: p.Base,
		Instance: p.Instance,
		Answer:   a,
		TimeMS:   ms,
	})
}

// record persists one attempt and finishes the presentation. On failure the
// presentation stays open so the learner can retry.
func (e *Engine) record(ctx context.Context, p *Presentation, a question.Answer, correct, byUser bool, ms *int64) (question.Attempt, error) {
	att := question.Attempt{
		QuestionID:   p.Base.ID,
		Answer:       question.EncodeAnswer(a),
		Correct:      correct,
		GradedByUser: byUser,
		Timestamp:    e.now().UTC(),
		TimeMS:       ms,
	}
	if e.store != nil {
		saved, err := e.store.RecordAttempt(ctx, att)
		if err != nil {
			return question.Attempt{}, e.fail(p, fmt.Errorf("record attempt: %w", err))
		}
		att = saved
	}

	e.mu.Lock()
	p.grading = false
	e.counts[p.Base.ID]++
	stale := e.cur != p
	if !stale {
		e.state = Graded
		e.pending = nil
	}
	notify := e.notify
	e.mu.Unlock()

	e.log.Info("attempt recorded", "question_id", att.QuestionID, "correct", att.Correct,
		"graded_by_user", att.GradedByUser)
	if notify != nil {
		notify(att)
	}
	return att, nil
}

// fail clears the in-flight mark after a grading or persistence error.
func (e *Engine) fail(p *Presentation, err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p.grading = false
	if e.cur != p {
		return ErrStalePresentation
	}
	if e.state == Submitted {
		e.state = Collecting
	}
	return err
}
