package app

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"quiz-duel-service/internal/domain"
)

// DefaultGraceWindow is how long a decided match is kept to absorb late messages.
const DefaultGraceWindow = time.Minute

// ProgressUpdate describes the effect of an accepted progress report.
type ProgressUpdate struct {
	Match         domain.Match
	Seat          domain.Seat
	Changed       bool
	JustCompleted bool
}

// Registry holds the active matches. A single mutex guards the map and every match
// in it; callers only ever receive copies.
type Registry struct {
	mu      sync.Mutex
	matches map[string]*domain.Match
	grace   time.Duration
	now     func() time.Time
	newID   func() string
}

// NewRegistry builds an empty registry retaining decided matches for grace.
func NewRegistry(grace time.Duration) *Registry {
	return NewRegistryWithClock(grace, time.Now)
}

// NewRegistryWithClock allows deterministic timestamps in tests.
func NewRegistryWithClock(grace time.Duration, now func() time.Time) *Registry {
	if grace < 0 {
		grace = 0
	}
	return &Registry{
		matches: make(map[string]*domain.Match),
		grace:   grace,
		now:     now,
		newID:   uuid.NewString,
	}
}

// Create allocates a pending match over a frozen copy of questions.
func (r *Registry) Create(one, two domain.Player, questions []domain.Question) domain.Match {
	frozen := make([]domain.Question, len(questions))
	copy(frozen, questions)

	r.mu.Lock()
	defer r.mu.Unlock()
	m := &domain.Match{
		ID:        r.newID(),
		PlayerOne: one,
		PlayerTwo: two,
		Questions: frozen,
		StartedAt: r.now(),
		State:     domain.StatePending,
	}
	r.matches[m.ID] = m
	return snapshot(m)
}

// Restore re-inserts a match reloaded from an external store. If the id is already
// present the in-memory copy wins.
func (r *Registry) Restore(m domain.Match) domain.Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.matches[m.ID]; ok {
		return snapshot(existing)
	}
	restored := snapshot(&m)
	r.matches[m.ID] = &restored
	return snapshot(&restored)
}

// Get returns a copy of the match.
func (r *Registry) Get(matchID string) (domain.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[matchID]
	if !ok {
		return domain.Match{}, domain.ErrMatchNotFound
	}
	return snapshot(m), nil
}

// FindByPlayer returns the undecided match playerID is seated in.
func (r *Registry) FindByPlayer(playerID string) (domain.Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.matches {
		if m.State >= domain.StateDecided {
			continue
		}
		if _, ok := m.SeatOf(playerID); ok {
			return snapshot(m), true
		}
	}
	return domain.Match{}, false
}

// IsActive reports whether playerID is seated in an undecided match.
func (r *Registry) IsActive(playerID string) bool {
	_, ok := r.FindByPlayer(playerID)
	return ok
}

// Len returns the number of matches held, decided ones included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.matches)
}

// UpdateProgress applies a player's reported counters. Counters may not regress or
// exceed the question count. The record completes when answered reaches the question
// count; finishedAt (or the registry clock when zero) is stored only on that
// transition. Reports against a completed record are accepted without effect.
func (r *Registry) UpdateProgress(matchID, playerID string, answered, correct int, finishedAt time.Time) (ProgressUpdate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.matches[matchID]
	if !ok {
		return ProgressUpdate{}, domain.ErrMatchNotFound
	}
	if m.State >= domain.StateDecided {
		return ProgressUpdate{}, domain.ErrMatchDecided
	}
	seat, ok := m.SeatOf(playerID)
	if !ok {
		return ProgressUpdate{}, domain.ErrPlayerNotInMatch
	}

	rec := progressRef(m, seat)
	if rec.Completed {
		return ProgressUpdate{Match: snapshot(m), Seat: seat}, nil
	}
	switch {
	case answered < 0 || correct < 0 || correct > answered:
		return ProgressUpdate{}, domain.ErrInvalidProgress
	case answered > len(m.Questions):
		return ProgressUpdate{}, domain.ErrProgressOverflow
	case answered < rec.Answered:
		return ProgressUpdate{}, domain.ErrProgressRegression
	case correct < rec.Correct:
		return ProgressUpdate{}, domain.ErrProgressRegression
	}

	changed := answered != rec.Answered || correct != rec.Correct
	rec.Answered = answered
	rec.Correct = correct

	justCompleted := false
	if answered == len(m.Questions) {
		if finishedAt.IsZero() {
			finishedAt = r.now()
		}
		rec.Completed = true
		rec.FinishedAt = finishedAt
		justCompleted = true
		changed = true
	}

	switch {
	case m.ProgressOne.Completed != m.ProgressTwo.Completed:
		m.State = domain.StateAwaitingOpponent
	case m.State == domain.StatePending:
		m.State = domain.StateInProgress
	}

	return ProgressUpdate{
		Match:         snapshot(m),
		Seat:          seat,
		Changed:       changed,
		JustCompleted: justCompleted,
	}, nil
}

// BothComplete reports whether both records of the match are complete.
func (r *Registry) BothComplete(matchID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[matchID]
	return ok && m.BothComplete()
}

// DecideCompleted adjudicates the match if both records are complete. The boolean is
// false when the match is still waiting on a player. Only the first caller to observe
// both records complete decides the match; later callers get ErrMatchDecided.
func (r *Registry) DecideCompleted(matchID string) (domain.Match, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.matches[matchID]
	if !ok {
		return domain.Match{}, false, domain.ErrMatchNotFound
	}
	if m.State >= domain.StateDecided {
		return snapshot(m), false, domain.ErrMatchDecided
	}
	if !m.BothComplete() {
		return snapshot(m), false, nil
	}

	winner := ""
	if seat := Adjudicate(m.ProgressOne, m.ProgressTwo); seat != 0 {
		winner = m.Player(seat).ID
	}
	r.decideLocked(m, domain.ReasonCompleted, winner)
	return snapshot(m), true, nil
}

// DecideForfeit ends the match as a loss for loserID regardless of progress.
func (r *Registry) DecideForfeit(matchID, loserID string, reason domain.DecisionReason) (domain.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.matches[matchID]
	if !ok {
		return domain.Match{}, domain.ErrMatchNotFound
	}
	if m.State >= domain.StateDecided {
		return snapshot(m), domain.ErrMatchDecided
	}
	seat, ok := m.SeatOf(loserID)
	if !ok {
		return domain.Match{}, domain.ErrPlayerNotInMatch
	}
	r.decideLocked(m, reason, m.Player(seat.Opposite()).ID)
	return snapshot(m), nil
}

// RecordRatings stores the rating changes computed for a decided match.
func (r *Registry) RecordRatings(matchID string, one, two domain.RatingChange, persisted bool) (domain.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[matchID]
	if !ok {
		return domain.Match{}, domain.ErrMatchNotFound
	}
	if m.Decision == nil {
		return snapshot(m), domain.ErrMatchNotFound
	}
	m.Decision.RatingsOne = one
	m.Decision.RatingsTwo = two
	m.Decision.Unpersisted = !persisted
	return snapshot(m), nil
}

// Discard removes the match immediately.
func (r *Registry) Discard(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discardLocked(matchID)
}

// Sweep discards every match decided at least one grace window before now.
func (r *Registry) Sweep(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var discarded []string
	for id, m := range r.matches {
		if m.State != domain.StateDecided || m.Decision == nil {
			continue
		}
		if now.Sub(m.Decision.DecidedAt) >= r.grace {
			r.discardLocked(id)
			discarded = append(discarded, id)
		}
	}
	return discarded
}

func (r *Registry) discardLocked(matchID string) {
	if m, ok := r.matches[matchID]; ok {
		m.State = domain.StateClosed
		delete(r.matches, matchID)
	}
}

func (r *Registry) decideLocked(m *domain.Match, reason domain.DecisionReason, winnerID string) {
	m.State = domain.StateDecided
	m.Decision = &domain.Decision{
		Reason:     reason,
		WinnerID:   winnerID,
		RatingsOne: domain.RatingChange{Before: m.PlayerOne.Rating, After: m.PlayerOne.Rating},
		RatingsTwo: domain.RatingChange{Before: m.PlayerTwo.Rating, After: m.PlayerTwo.Rating},
		DecidedAt:  r.now(),
	}
}

func progressRef(m *domain.Match, seat domain.Seat) *domain.ProgressRecord {
	if seat == domain.SeatTwo {
		return &m.ProgressTwo
	}
	return &m.ProgressOne
}

// snapshot copies m so callers never share the decision pointer. The question slice
// is shared; it is never written after Create.
func snapshot(m *domain.Match) domain.Match {
	out := *m
	if m.Decision != nil {
		d := *m.Decision
		out.Decision = &d
	}
	return out
}
