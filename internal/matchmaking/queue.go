package matchmaking

import (
	"sync"
	"time"

	"github.com/samber/lo"
	"quiz-duel-service/internal/domain"
)

// DefaultRatingWindow is the widest rating gap allowed for automatic pairing.
const DefaultRatingWindow = 200

// ActiveChecker reports whether a player is currently playing an undecided match.
type ActiveChecker interface {
	IsActive(playerID string) bool
}

// Entry is a player waiting for an opponent.
type Entry struct {
	Player     domain.Player
	ConnID     string
	EnqueuedAt time.Time
}

// PairResult is the outcome of MatchOrEnqueue.
type PairResult struct {
	Matched   bool
	Opponent  Entry
	QueueSize int
}

// Queue is the waiting pool. Pairing is a linear scan; pools are expected to be small.
type Queue struct {
	mu       sync.Mutex
	window   int
	active   ActiveChecker
	now      func() time.Time
	entries  []Entry
	reserved map[string]struct{}
}

// NewQueue builds a queue pairing players at most window rating points apart.
// A nil checker treats nobody as playing.
func NewQueue(window int, active ActiveChecker) *Queue {
	if window <= 0 {
		window = DefaultRatingWindow
	}
	return &Queue{
		window:   window,
		active:   active,
		now:      time.Now,
		reserved: make(map[string]struct{}),
	}
}

// Window returns the configured rating window.
func (q *Queue) Window() int {
	return q.window
}

// Enqueue appends a player and returns the new queue size.
func (q *Queue) Enqueue(player domain.Player, connID string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.duplicateLocked(player.ID, connID) {
		return len(q.entries), domain.ErrAlreadyQueued
	}
	q.appendLocked(player, connID)
	return len(q.entries), nil
}

// FindCompatible returns the waiting entry closest in rating to player within window.
// Ties go to the earliest enqueued entry.
func (q *Queue) FindCompatible(player domain.Player, window int) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.findLocked(player, window)
	if idx < 0 {
		return Entry{}, false
	}
	return q.entries[idx], true
}

// MatchOrEnqueue atomically either claims a compatible opponent or queues the player.
// On a match both player ids stay reserved until Release is called, so that repeated
// requests cannot queue them again while the match is being created.
func (q *Queue) MatchOrEnqueue(player domain.Player, connID string) (PairResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.duplicateLocked(player.ID, connID) {
		return PairResult{QueueSize: len(q.entries)}, domain.ErrAlreadyQueued
	}

	idx := q.findLocked(player, q.window)
	if idx < 0 {
		q.appendLocked(player, connID)
		return PairResult{QueueSize: len(q.entries)}, nil
	}

	opponent := q.entries[idx]
	q.entries = append(q.entries[:idx:idx], q.entries[idx+1:]...)
	q.reserved[player.ID] = struct{}{}
	q.reserved[opponent.Player.ID] = struct{}{}
	return PairResult{Matched: true, Opponent: opponent, QueueSize: len(q.entries)}, nil
}

// Release clears pairing reservations.
func (q *Queue) Release(playerIDs ...string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range playerIDs {
		delete(q.reserved, id)
	}
}

// Remove drops the player from the queue. Removing an absent player is a no-op.
func (q *Queue) Remove(playerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	before := len(q.entries)
	q.entries = lo.Reject(q.entries, func(e Entry, _ int) bool { return e.Player.ID == playerID })
	return len(q.entries) != before
}

// RemoveConn drops whichever entry was queued from connID.
func (q *Queue) RemoveConn(connID string) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, idx, ok := lo.FindIndexOf(q.entries, func(e Entry) bool { return e.ConnID == connID })
	if !ok {
		return Entry{}, false
	}
	q.entries = append(q.entries[:idx:idx], q.entries[idx+1:]...)
	return entry, true
}

// Len returns the number of waiting players.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Contains reports whether playerID is waiting.
func (q *Queue) Contains(playerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return lo.ContainsBy(q.entries, func(e Entry) bool { return e.Player.ID == playerID })
}

// Snapshot returns the waiting entries in enqueue order.
func (q *Queue) Snapshot() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

func (q *Queue) appendLocked(player domain.Player, connID string) {
	q.entries = append(q.entries, Entry{
		Player:     player,
		ConnID:     connID,
		EnqueuedAt: q.now(),
	})
}

func (q *Queue) duplicateLocked(playerID, connID string) bool {
	if _, ok := q.reserved[playerID]; ok {
		return true
	}
	for _, e := range q.entries {
		if e.Player.ID == playerID || (connID != "" && e.ConnID == connID) {
			return true
		}
	}
	return q.active != nil && q.active.IsActive(playerID)
}

func (q *Queue) findLocked(player domain.Player, window int) int {
	best := -1
	bestDiff := 0
	for i, e := range q.entries {
		if e.Player.ID == player.ID {
			continue
		}
		diff := abs(e.Player.Rating - player.Rating)
		if diff > window {
			continue
		}
		// Entries are kept in enqueue order, so strict less-than keeps the earliest on ties.
		if best < 0 || diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
