package session

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dusk-indust/vlab/internal/agent"
	"github.com/dusk-indust/vlab/internal/orchestrator"
	"github.com/dusk-indust/vlab/internal/workflow"
	"github.com/google/uuid"
)

// Store is a concurrency-safe in-memory session store keyed by ID. Every
// read returns a deep copy, and every phase check happens under the same lock
// as the transition it guards.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock sets the time source used for session timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore returns an initialized Store ready for use.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new session at Checkpoint1 and returns a copy of it.
func (s *Store) Create(filename, text string, facts agent.Facts, events []orchestrator.Event) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	sess := &Session{
		ID:                uuid.NewString(),
		Filename:          filename,
		OriginalText:      text,
		Phase:             PhaseCheckpoint1,
		ExtractedFacts:    facts,
		Checkpoint1Events: slices.Clone(events),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.sessions[sess.ID] = sess
	return sess.clone()
}

// Get returns a deep copy of the session with the given ID.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess.clone(), nil
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// lookup returns the stored session and checks its phase. Callers hold s.mu.
func (s *Store) lookup(id string, want Phase) (*Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if sess.Phase != want {
		return nil, &PhaseError{ID: id, Current: sess.Phase, Expected: want}
	}
	return sess, nil
}

// BeginConfirm claims a Checkpoint1 session for the full analysis and
// returns a copy of it. Until CompleteConfirm or AbortConfirm, any other
// BeginConfirm for the same session fails with a *PhaseError.
func (s *Store) BeginConfirm(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(id, PhaseCheckpoint1)
	if err != nil {
		return nil, err
	}
	if sess.Analyzing {
		return nil, &PhaseError{ID: id, Current: sess.Phase, Expected: PhaseCheckpoint1, InProgress: true}
	}
	sess.Analyzing = true
	sess.UpdatedAt = s.now().UTC()
	return sess.clone(), nil
}

// Confirmation is the outcome of a successful full analysis.
type Confirmation struct {
	Facts        agent.Facts
	UserModified bool
	Strategy     agent.Strategy
	Insights     map[agent.Role]agent.Opinion
	Options      workflow.Options
	Events       []orchestrator.Event
}

// CompleteConfirm records the analysis of a claimed session and advances it
// to Checkpoint2.
func (s *Store) CompleteConfirm(id string, c Confirmation) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.claimed(id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	facts := c.Facts
	strategy := cloneStrategy(c.Strategy)
	options := c.Options

	sess.ConfirmedFacts = &facts
	sess.UserModified = c.UserModified
	sess.Strategy = &strategy
	sess.AgentInsights = maps.Clone(c.Insights)
	sess.WorkflowOptions = &options
	sess.Checkpoint2Events = slices.Clone(c.Events)
	sess.LastError = ""
	sess.Phase = PhaseCheckpoint2
	sess.Analyzing = false
	sess.ConfirmedAt = &now
	sess.UpdatedAt = now
	return sess.clone(), nil
}

// AbortConfirm releases a claimed session after a failed analysis. The
// session stays at Checkpoint1 and records the failure and its events.
func (s *Store) AbortConfirm(id string, cause string, events []orchestrator.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.claimed(id)
	if err != nil {
		return err
	}
	sess.Analyzing = false
	sess.LastError = cause
	sess.Checkpoint2Events = slices.Clone(events)
	sess.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) claimed(id string) (*Session, error) {
	sess, err := s.lookup(id, PhaseCheckpoint1)
	if err != nil {
		return nil, err
	}
	if !sess.Analyzing {
		return nil, fmt.Errorf("session %s: no analysis in progress: %w", id, ErrPhaseMismatch)
	}
	return sess, nil
}

// Finalize records the caller's workflow selections on a Checkpoint2
// session and advances it to Finalized. The final workflow is the selected
// steps plus every required step.
func (s *Store) Finalize(id string, sel Selections) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(id, PhaseCheckpoint2)
	if err != nil {
		return nil, err
	}

	var steps []workflow.Step
	if sess.WorkflowOptions != nil {
		steps = sess.WorkflowOptions.Steps
	}
	final, err := workflow.Finalize(steps, sel.SelectedSteps)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sel.SelectedSteps = slices.Clone(sel.SelectedSteps)
	sel.Modifications = maps.Clone(sel.Modifications)
	sel.Timestamp = now
	sess.Selections = &sel
	sess.FinalWorkflow = final
	sess.Phase = PhaseFinalized
	sess.FinalizedAt = &now
	sess.UpdatedAt = now
	return sess.clone(), nil
}
