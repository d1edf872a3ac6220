// Package client is the player side of a duel as a pure state machine. Transition
// computes the next state and the messages to send from the current state and one
// event; it performs no I/O, so network code and tests drive it the same way.
package client

import (
	"time"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
)

// Phase mirrors the server's match lifecycle from one player's point of view.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSearching
	PhasePlaying
	PhaseAwaitingOpponent
	PhaseDecided
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSearching:
		return "searching"
	case PhasePlaying:
		return "playing"
	case PhaseAwaitingOpponent:
		return "awaiting_opponent"
	case PhaseDecided:
		return "decided"
	default:
		return "unknown"
	}
}

// Progress is one side's counters as known to the client.
type Progress struct {
	Answered   int
	Correct    int
	FinishedAt time.Time
	Finished   bool
}

// State is everything the client knows about its current duel.
type State struct {
	Phase    Phase
	Player   domain.Player
	MatchID  string
	Opponent app.OpponentInfo

	Questions []domain.Question
	Own       Progress
	Rival     Progress

	// Provisional is the local guess from counters; only Result is authoritative.
	Provisional domain.Result
	Result      domain.Result
	Reason      domain.DecisionReason
	Rating      domain.RatingChange
	LastError   string
}

// Current returns the question to answer next, if any.
func (s State) Current() (domain.Question, bool) {
	if s.Phase != PhasePlaying || s.Own.Answered >= len(s.Questions) {
		return domain.Question{}, false
	}
	return s.Questions[s.Own.Answered], true
}

// Command is a message the client must send to the server.
type Command struct {
	Type    string
	Payload any
}

type RequestMatchPayload struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Rating      int    `json:"rating"`
	AvatarRef   string `json:"avatarRef,omitempty"`
}

type ProgressPayload struct {
	MatchID  string `json:"matchId"`
	Answered int    `json:"answeredCount"`
	Correct  int    `json:"correctCount"`
}

type FinishPayload struct {
	MatchID    string `json:"matchId"`
	PlayerID   string `json:"playerId"`
	Answered   int    `json:"answeredCount"`
	Correct    int    `json:"correctCount"`
	FinishTime int64  `json:"finishTime"`
}

type MatchRefPayload struct {
	MatchID  string `json:"matchId"`
	PlayerID string `json:"playerId,omitempty"`
}

// Transition applies ev to s. Events that make no sense in the current phase leave the
// state unchanged and produce no commands.
func Transition(s State, ev Event) (State, []Command) {
	switch e := ev.(type) {
	case Search:
		if s.Phase != PhaseIdle && s.Phase != PhaseDecided {
			return s, nil
		}
		next := State{Phase: PhaseSearching, Player: e.Player}
		return next, []Command{{Type: "request-match", Payload: RequestMatchPayload{
			PlayerID:    e.Player.ID,
			DisplayName: e.Player.DisplayName,
			Rating:      e.Player.Rating,
			AvatarRef:   e.Player.AvatarRef,
		}}}

	case Cancel:
		if s.Phase != PhaseSearching {
			return s, nil
		}
		return s, []Command{{Type: "cancel-match"}}

	case Cancelled:
		if s.Phase == PhaseSearching {
			s.Phase = PhaseIdle
		}
		return s, nil

	case MatchError:
		if s.Phase == PhaseSearching {
			s.Phase = PhaseIdle
			s.LastError = e.Message
		}
		return s, nil

	case MatchFound:
		if s.Phase != PhaseSearching {
			return s, nil
		}
		s.Phase = PhasePlaying
		s.MatchID = e.MatchID
		s.Opponent = e.Opponent
		s.Questions = e.Questions
		s.Own, s.Rival = Progress{}, Progress{}
		s.Provisional, s.Result = domain.ResultPending, domain.ResultPending
		return s, nil

	case Answer:
		q, ok := s.Current()
		if !ok {
			return s, nil
		}
		s.Own.Answered++
		if q.IsCorrect(e.Choice) {
			s.Own.Correct++
		}
		if s.Own.Answered < len(s.Questions) {
			return s, []Command{{Type: "game-progress", Payload: ProgressPayload{MatchID: s.MatchID, Answered: s.Own.Answered, Correct: s.Own.Correct}}}
		}
		// The last answer is reported only as game-finished so the server records the
		// finish time carried here rather than the time it saw a progress update.
		s.Own.Finished = true
		s.Own.FinishedAt = e.At
		s.Phase = PhaseAwaitingOpponent
		s.Provisional = provisional(s.Own, s.Rival)
		return s, []Command{{Type: "game-finished", Payload: FinishPayload{
			MatchID:    s.MatchID,
			PlayerID:   s.Player.ID,
			Answered:   s.Own.Answered,
			Correct:    s.Own.Correct,
			FinishTime: e.At.UnixMilli(),
		}}}

	case Surrender:
		if !s.inMatch() {
			return s, nil
		}
		return s, []Command{{Type: "surrender", Payload: MatchRefPayload{MatchID: s.MatchID}}}

	case Disconnected:
		if !s.inMatch() {
			if s.Phase == PhaseSearching {
				s.Phase = PhaseIdle
			}
			return s, nil
		}
		return s, []Command{{Type: "reconnect-match", Payload: MatchRefPayload{MatchID: s.MatchID, PlayerID: s.Player.ID}}}

	case OpponentProgress:
		if !s.inMatch() || e.MatchID != s.MatchID {
			return s, nil
		}
		if e.Answered >= s.Rival.Answered {
			s.Rival.Answered, s.Rival.Correct = e.Answered, e.Correct
		}
		return s, nil

	case OpponentFinished:
		if !s.inMatch() || e.MatchID != s.MatchID {
			return s, nil
		}
		s.Rival = Progress{Answered: e.Answered, Correct: e.Correct, FinishedAt: fromMillis(e.FinishTime), Finished: true}
		if e.Result != domain.ResultPending {
			s.Provisional = e.Result
		} else if s.Own.Finished {
			s.Provisional = provisional(s.Own, s.Rival)
		}
		return s, nil

	case BothFinished:
		if !s.inMatch() || e.MatchID != s.MatchID {
			return s, nil
		}
		s.Own, s.Rival = fromView(e.Own), fromView(e.Opponent)
		s.Provisional = provisional(s.Own, s.Rival)
		return s, nil

	case Resumed:
		if e.MatchID != s.MatchID || s.Phase == PhaseDecided {
			return s, nil
		}
		s.Opponent = e.Opponent
		s.Questions = e.Questions
		s.Own = fromView(e.Own)
		s.Rival = fromView(e.OpponentProgress)
		s.Phase = PhasePlaying
		if s.Own.Finished {
			s.Phase = PhaseAwaitingOpponent
		}
		return s, nil

	case ReconnectFailed:
		if s.inMatch() {
			s.Phase = PhaseIdle
			s.LastError = e.Message
		}
		return s, nil

	case MatchResult:
		if !s.inMatch() || e.MatchID != s.MatchID {
			return s, nil
		}
		s.Phase = PhaseDecided
		s.Result = e.Result
		s.Provisional = e.Result
		s.Reason = e.Reason
		s.Rating = e.OwnRating
		s.Own = fromView(e.Own)
		s.Rival = fromView(e.Opponent)
		return s, nil

	case ServerError:
		s.LastError = e.Message
		return s, nil
	}
	return s, nil
}

func (s State) inMatch() bool {
	return s.Phase == PhasePlaying || s.Phase == PhaseAwaitingOpponent
}

// provisional compares counters the way the server adjudicates. It stays pending
// until both sides are known to be finished.
func provisional(own, rival Progress) domain.Result {
	if !own.Finished || !rival.Finished {
		return domain.ResultPending
	}
	seat := app.Adjudicate(
		domain.ProgressRecord{Correct: own.Correct, FinishedAt: own.FinishedAt, Completed: true},
		domain.ProgressRecord{Correct: rival.Correct, FinishedAt: rival.FinishedAt, Completed: true},
	)
	switch seat {
	case domain.SeatOne:
		return domain.ResultWin
	case domain.SeatTwo:
		return domain.ResultLoss
	default:
		return domain.ResultDraw
	}
}

func fromView(v app.ProgressView) Progress {
	return Progress{Answered: v.Answered, Correct: v.Correct, FinishedAt: fromMillis(v.FinishTime), Finished: v.Finished}
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
