// Package memory is an in-process Repository used for local runs and tests.
// Every operation, and every transaction as a whole, runs under one mutex, so
// transactions are serializable and rolled back by restoring a snapshot.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/SAP-F-2025/proctoring-service/internal/models"
	"github.com/SAP-F-2025/proctoring-service/internal/repositories"
)

// attemptKey is the (testId, studentId) natural key. A struct keeps ids that
// contain separators from colliding.
type attemptKey struct {
	testID    string
	studentID string
}

type state struct {
	attempts  map[uint]models.ExamAttempt
	keys      map[attemptKey]uint
	events    map[uint]models.ProctoringEvent
	byAttempt map[uint][]uint
	tests     map[string]models.Test
	questions map[string]models.Question

	nextAttemptID uint
	nextEventID   uint
}

func (s *state) clone() *state {
	c := &state{
		attempts:      make(map[uint]models.ExamAttempt, len(s.attempts)),
		keys:          make(map[attemptKey]uint, len(s.keys)),
		events:        make(map[uint]models.ProctoringEvent, len(s.events)),
		byAttempt:     make(map[uint][]uint, len(s.byAttempt)),
		tests:         s.tests,
		questions:     s.questions,
		nextAttemptID: s.nextAttemptID,
		nextEventID:   s.nextEventID,
	}
	for id, a := range s.attempts {
		c.attempts[id] = copyAttempt(a)
	}
	for k, v := range s.keys {
		c.keys[k] = v
	}
	for id, e := range s.events {
		c.events[id] = e
	}
	for id, ids := range s.byAttempt {
		c.byAttempt[id] = append([]uint(nil), ids...)
	}
	return c
}

// Store implements repositories.Repository in memory.
type Store struct {
	mu    sync.Mutex
	data  *state
	clock func() time.Time

	// Failure injection for tests.
	unavailable bool
	appendErr   error
}

func NewStore() *Store {
	return &Store{
		data: &state{
			attempts:  make(map[uint]models.ExamAttempt),
			keys:      make(map[attemptKey]uint),
			events:    make(map[uint]models.ProctoringEvent),
			byAttempt: make(map[uint][]uint),
			tests:     make(map[string]models.Test),
			questions: make(map[string]models.Question),
		},
		clock: time.Now,
	}
}

// Seed registers a test and its questions in the read-only registry.
func (s *Store) Seed(test models.Test, questions ...models.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.tests[test.ID] = test
	for _, q := range questions {
		s.data.questions[q.ID] = q
	}
}

// SetUnavailable makes Ping and every subsequent operation fail.
func (s *Store) SetUnavailable(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = down
}

// FailAppends makes ledger appends return err until reset with nil.
func (s *Store) FailAppends(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendErr = err
}

func (s *Store) Attempts() repositories.AttemptRepository { return &attemptStore{view{store: s}} }
func (s *Store) Ledger() repositories.LedgerRepository    { return &ledgerStore{view{store: s}} }
func (s *Store) Tests() repositories.TestRegistry         { return &registryStore{view{store: s}} }

func (s *Store) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return repositories.ErrUnavailable
	}

	snapshot := s.data.clone()
	if err := fn(&txRepository{view: view{store: s, inTx: true}}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return repositories.ErrUnavailable
	}
	return ctx.Err()
}

func (s *Store) Close() error { return nil }

type txRepository struct {
	view view
}

func (t *txRepository) Attempts() repositories.AttemptRepository { return &attemptStore{t.view} }
func (t *txRepository) Ledger() repositories.LedgerRepository    { return &ledgerStore{t.view} }
func (t *txRepository) Tests() repositories.TestRegistry         { return &registryStore{t.view} }

func (t *txRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(t)
}

func (t *txRepository) Ping(ctx context.Context) error { return nil }
func (t *txRepository) Close() error                   { return nil }

// view is shared by the store types. Outside a transaction each call takes
// the store lock; inside one the lock is already held.
type view struct {
	store *Store
	inTx  bool
}

func (v *view) do(fn func(d *state) error) error {
	if !v.inTx {
		v.store.mu.Lock()
		defer v.store.mu.Unlock()
		if v.store.unavailable {
			return repositories.ErrUnavailable
		}
	}
	return fn(v.store.data)
}

type attemptStore struct{ view }

type ledgerStore struct{ view }

type registryStore struct{ view }

func (v *attemptStore) Create(ctx context.Context, attempt *models.ExamAttempt) error {
	return v.do(func(d *state) error {
		key := attemptKey{testID: attempt.TestID, studentID: attempt.StudentID}
		if _, exists := d.keys[key]; exists {
			return fmt.Errorf("attempt %q/%q: %w", attempt.TestID, attempt.StudentID, repositories.ErrDuplicateKey)
		}
		d.nextAttemptID++
		now := v.store.clock()
		attempt.ID = d.nextAttemptID
		attempt.CreatedAt = now
		attempt.UpdatedAt = now
		d.attempts[attempt.ID] = copyAttempt(*attempt)
		d.keys[key] = attempt.ID
		return nil
	})
}

func (v *attemptStore) GetByID(ctx context.Context, id uint) (*models.ExamAttempt, error) {
	var out *models.ExamAttempt
	err := v.do(func(d *state) error {
		a, ok := d.attempts[id]
		if !ok {
			return repositories.ErrNotFound
		}
		c := copyAttempt(a)
		out = &c
		return nil
	})
	return out, err
}

func (v *attemptStore) GetByKey(ctx context.Context, testID, studentID string) (*models.ExamAttempt, error) {
	var out *models.ExamAttempt
	err := v.do(func(d *state) error {
		id, ok := d.keys[attemptKey{testID: testID, studentID: studentID}]
		if !ok {
			return repositories.ErrNotFound
		}
		c := copyAttempt(d.attempts[id])
		out = &c
		return nil
	})
	return out, err
}

func (v *attemptStore) GetByIDForUpdate(ctx context.Context, id uint) (*models.ExamAttempt, error) {
	return v.GetByID(ctx, id)
}

func (v *attemptStore) Update(ctx context.Context, attempt *models.ExamAttempt) error {
	return v.do(func(d *state) error {
		if _, ok := d.attempts[attempt.ID]; !ok {
			return repositories.ErrNotFound
		}
		attempt.UpdatedAt = v.store.clock()
		d.attempts[attempt.ID] = copyAttempt(*attempt)
		return nil
	})
}

func (v *ledgerStore) Append(ctx context.Context, event *models.ProctoringEvent) (uint, error) {
	err := v.do(func(d *state) error {
		if v.store.appendErr != nil {
			return v.store.appendErr
		}
		if _, ok := d.attempts[event.AttemptID]; !ok {
			return fmt.Errorf("attempt %d: %w", event.AttemptID, repositories.ErrNotFound)
		}
		d.nextEventID++
		event.ID = d.nextEventID
		event.CreatedAt = v.store.clock()
		stored := *event
		stored.Attempt = nil
		d.events[event.ID] = stored
		d.byAttempt[event.AttemptID] = append(d.byAttempt[event.AttemptID], event.ID)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return event.ID, nil
}

func (v *ledgerStore) GetByID(ctx context.Context, id uint) (*models.ProctoringEvent, error) {
	var out *models.ProctoringEvent
	err := v.do(func(d *state) error {
		e, ok := d.events[id]
		if !ok {
			return repositories.ErrNotFound
		}
		out = &e
		return nil
	})
	return out, err
}

func (v *ledgerStore) ListByAttempt(ctx context.Context, attemptID uint) ([]*models.ProctoringEvent, error) {
	var out []*models.ProctoringEvent
	err := v.do(func(d *state) error {
		for _, id := range d.byAttempt[attemptID] {
			e := d.events[id]
			out = append(out, &e)
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, err
}

func (v *ledgerStore) CountByAttempt(ctx context.Context, attemptID uint) (int, error) {
	var n int
	err := v.do(func(d *state) error {
		n = len(d.byAttempt[attemptID])
		return nil
	})
	return n, err
}

func (v *ledgerStore) Annotate(ctx context.Context, id uint, review models.Review) (*models.ProctoringEvent, error) {
	var out *models.ProctoringEvent
	err := v.do(func(d *state) error {
		e, ok := d.events[id]
		if !ok {
			return repositories.ErrNotFound
		}
		e.Reviewed = true
		e.Verdict = models.Ptr(review.Verdict)
		e.Reviewer = models.Ptr(review.Reviewer)
		e.ReviewedAt = models.Ptr(review.At)
		e.Notes = review.Notes
		d.events[id] = e
		out = &e
		return nil
	})
	return out, err
}

func (v *registryStore) GetTest(ctx context.Context, testID string) (*models.Test, error) {
	var out *models.Test
	err := v.do(func(d *state) error {
		t, ok := d.tests[testID]
		if !ok {
			return repositories.ErrNotFound
		}
		out = &t
		return nil
	})
	return out, err
}

func (v *registryStore) GetQuestions(ctx context.Context, ids []string) ([]models.Question, error) {
	var out []models.Question
	err := v.do(func(d *state) error {
		for _, id := range ids {
			if q, ok := d.questions[id]; ok {
				out = append(out, q)
			}
		}
		return nil
	})
	return out, err
}

func (v *registryStore) GetAnswerKeys(ctx context.Context, ids []string) ([]models.Question, error) {
	questions, err := v.GetQuestions(ctx, ids)
	if err != nil {
		return nil, err
	}
	keys := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		keys = append(keys, models.Question{ID: q.ID, Type: q.Type, AnswerKey: q.AnswerKey, Marks: q.Marks})
	}
	return keys, nil
}

func copyAttempt(a models.ExamAttempt) models.ExamAttempt {
	if a.Answers != nil {
		answers := make([]models.Answer, len(a.Answers))
		copy(answers, a.Answers)
		a.Answers = answers
	}
	return a
}
