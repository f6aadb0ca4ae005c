// Package store provides in-memory storage for evaluation history.
package store

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultLimit is the number of evaluations kept when no limit is given.
const DefaultLimit = 1000

// Evaluation records one request to evaluate an expression.
type Evaluation struct {
	ID                string        `json:"id"`
	Expression        string        `json:"expression"`
	Tree              string        `json:"tree,omitempty"`
	Value             *float64      `json:"value,omitempty"` // nil on failure or when not finite
	Result            float64       `json:"-"`               // raw value, including ±Inf and NaN
	Display           string        `json:"display,omitempty"`
	Error             string        `json:"error,omitempty"`
	ErrorKind         string        `json:"errorKind,omitempty"`
	Backend           string        `json:"backend,omitempty"`
	OptimizationLevel string        `json:"optimizationLevel"`
	Duration          time.Duration `json:"durationNanos"`
	CreateTime        time.Time     `json:"createTime"`
}

// Succeeded reports whether the evaluation produced a value.
func (e *Evaluation) Succeeded() bool {
	return e.Error == ""
}

// SetValue records v. Value stays nil for values JSON cannot carry; Result
// always holds v.
func (e *Evaluation) SetValue(v float64, display string) {
	e.Result = v
	e.Display = display
	if math.IsInf(v, 0) || math.IsNaN(v) {
		e.Value = nil
		return
	}
	e.Value = &v
}

// Store is a thread-safe bounded history of evaluations. Once the limit is
// reached the oldest evaluation is dropped for each new one.
type Store struct {
	mu    sync.RWMutex
	byID  map[string]*Evaluation
	order []string // oldest first
	limit int

	total int64
}

// New creates an empty store holding at most limit evaluations. A limit
// of zero or less selects DefaultLimit.
func New(limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{
		byID:  make(map[string]*Evaluation),
		limit: limit,
	}
}

// Add assigns an ID and creation time to ev and stores it.
func (s *Store) Add(ev *Evaluation) *Evaluation {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev.ID = uuid.New().String()
	if ev.CreateTime.IsZero() {
		ev.CreateTime = time.Now()
	}
	s.byID[ev.ID] = ev
	s.order = append(s.order, ev.ID)
	s.total++

	for len(s.order) > s.limit {
		delete(s.byID, s.order[0])
		s.order = s.order[1:]
	}
	return ev
}

// Get retrieves an evaluation by ID.
func (s *Store) Get(id string) (*Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("evaluation '%s' not found", id)
	}
	return ev, nil
}

// List returns up to n evaluations, newest first. n <= 0 returns all.
func (s *Store) List(n int) []*Evaluation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.order) {
		n = len(s.order)
	}
	result := make([]*Evaluation, 0, n)
	for i := len(s.order) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, s.byID[s.order[i]])
	}
	return result
}

// Len returns the number of evaluations currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Total returns the number of evaluations ever added, including dropped
// and cleared ones.
func (s *Store) Total() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Clear removes every evaluation and returns how many were removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.order)
	s.byID = make(map[string]*Evaluation)
	s.order = nil
	return n
}
