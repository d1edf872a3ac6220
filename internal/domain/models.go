package domain

import (
	"strings"
	"time"
)

const (
	// DefaultRating is assigned to players that present no rating.
	DefaultRating = 1000
	// DefaultQuestionCount is the size of a match question set.
	DefaultQuestionCount = 10
)

// Player is a participant waiting in the queue or playing a match.
// Connection handles are tracked separately by the controller.
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	Rating      int    `json:"rating"`
	AvatarRef   string `json:"avatarRef,omitempty"`
}

// Question is a multiple-choice question shared by both players of a match.
type Question struct {
	ID         string   `json:"id"`
	Prompt     string   `json:"prompt"`
	Options    []string `json:"options"`
	Answer     string   `json:"answer"`
	Category   string   `json:"category,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
}

// IsCorrect compares a choice with the answer, ignoring case and whitespace differences.
func (q Question) IsCorrect(choice string) bool {
	return normalizeAnswer(choice) == normalizeAnswer(q.Answer)
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// ProgressRecord tracks one player's advancement through the question list.
// FinishedAt is the zero time until the record completes.
type ProgressRecord struct {
	Answered   int       `json:"answeredCount"`
	Correct    int       `json:"correctCount"`
	FinishedAt time.Time `json:"finishedAt"`
	Completed  bool      `json:"completed"`
}

// MatchState is the lifecycle position of a match.
type MatchState int

const (
	StatePending MatchState = iota
	StateInProgress
	StateAwaitingOpponent
	StateDecided
	StateClosed
)

func (s MatchState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInProgress:
		return "in_progress"
	case StateAwaitingOpponent:
		return "awaiting_opponent"
	case StateDecided:
		return "decided"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Result is a match outcome seen from one player's side.
type Result string

const (
	ResultWin     Result = "win"
	ResultLoss    Result = "lose"
	ResultDraw    Result = "draw"
	ResultPending Result = "pending"
)

// Invert returns the same outcome from the opponent's side.
func (r Result) Invert() Result {
	switch r {
	case ResultWin:
		return ResultLoss
	case ResultLoss:
		return ResultWin
	default:
		return r
	}
}

// DecisionReason records which path finalized a match.
type DecisionReason string

const (
	ReasonCompleted  DecisionReason = "completed"
	ReasonSurrender  DecisionReason = "surrender"
	ReasonDisconnect DecisionReason = "disconnect"
)

// RatingChange is a before/after pair produced by adjudication.
type RatingChange struct {
	Before int `json:"before"`
	After  int `json:"after"`
}

// Delta is the signed rating adjustment.
func (c RatingChange) Delta() int {
	return c.After - c.Before
}

// Decision is the authoritative result of a match. WinnerID is empty on a draw.
type Decision struct {
	Reason      DecisionReason `json:"reason"`
	WinnerID    string         `json:"winnerId,omitempty"`
	RatingsOne  RatingChange   `json:"ratingsOne"`
	RatingsTwo  RatingChange   `json:"ratingsTwo"`
	DecidedAt   time.Time      `json:"decidedAt"`
	Unpersisted bool           `json:"unpersisted,omitempty"`
}

// Seat identifies the fixed position of a player inside a match.
type Seat int

const (
	SeatOne Seat = iota + 1
	SeatTwo
)

// Match is a two-player game over an immutable question list.
type Match struct {
	ID          string         `json:"id"`
	PlayerOne   Player         `json:"playerOne"`
	PlayerTwo   Player         `json:"playerTwo"`
	Questions   []Question     `json:"questions"`
	StartedAt   time.Time      `json:"startedAt"`
	ProgressOne ProgressRecord `json:"progressOne"`
	ProgressTwo ProgressRecord `json:"progressTwo"`
	State       MatchState     `json:"state"`
	Decision    *Decision      `json:"decision,omitempty"`
}

// SeatOf returns the seat held by playerID.
func (m Match) SeatOf(playerID string) (Seat, bool) {
	switch playerID {
	case m.PlayerOne.ID:
		return SeatOne, true
	case m.PlayerTwo.ID:
		return SeatTwo, true
	}
	return 0, false
}

// Player returns the player in seat.
func (m Match) Player(seat Seat) Player {
	if seat == SeatTwo {
		return m.PlayerTwo
	}
	return m.PlayerOne
}

// Progress returns the record for seat.
func (m Match) Progress(seat Seat) ProgressRecord {
	if seat == SeatTwo {
		return m.ProgressTwo
	}
	return m.ProgressOne
}

// Opposite returns the other seat.
func (s Seat) Opposite() Seat {
	if s == SeatOne {
		return SeatTwo
	}
	return SeatOne
}

// ResultFor reports the decided outcome from playerID's side.
func (m Match) ResultFor(playerID string) Result {
	if m.Decision == nil {
		return ResultPending
	}
	switch m.Decision.WinnerID {
	case "":
		return ResultDraw
	case playerID:
		return ResultWin
	default:
		return ResultLoss
	}
}

// RatingFor returns the rating change recorded for seat.
func (d Decision) RatingFor(seat Seat) RatingChange {
	if seat == SeatTwo {
		return d.RatingsTwo
	}
	return d.RatingsOne
}

// BothComplete reports whether both progress records are complete.
func (m Match) BothComplete() bool {
	return m.ProgressOne.Completed && m.ProgressTwo.Completed
}
