package app

import (
	"time"

	"quiz-duel-service/internal/domain"
)

// Server to client message types.
const (
	MsgMatchQueued          = "match-queued"
	MsgMatchFound           = "match-found"
	MsgMatchError           = "match-error"
	MsgMatchCancelled       = "match-cancelled"
	MsgOpponentProgress     = "opponent-progress"
	MsgOpponentFinished     = "opponent-finished"
	MsgBothFinished         = "both-finished"
	MsgMatchResult          = "match-result"
	MsgOpponentSurrendered  = "opponent-surrendered"
	MsgOpponentDisconnected = "opponent-disconnected"
	MsgMatchResumed         = "match-resumed"
	MsgReconnectFailed      = "reconnect-failed"
	MsgError                = "error"
)

type QueuedEvent struct {
	QueueSize int `json:"queueSize"`
}

type OpponentInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Rating    int    `json:"rating"`
	AvatarRef string `json:"avatarRef,omitempty"`
}

type MatchFoundEvent struct {
	MatchID   string            `json:"matchId"`
	Opponent  OpponentInfo      `json:"opponent"`
	Questions []domain.Question `json:"questions"`
	StartTime int64             `json:"startTime"`
}

// ProgressView is a progress record on the wire. FinishTime is Unix milliseconds.
type ProgressView struct {
	Answered   int   `json:"answeredCount"`
	Correct    int   `json:"correctCount"`
	FinishTime int64 `json:"finishTime,omitempty"`
	Finished   bool  `json:"finished"`
}

type OpponentProgressEvent struct {
	MatchID  string `json:"matchId"`
	Answered int    `json:"answeredCount"`
	Correct  int    `json:"correctCount"`
}

type OpponentFinishedEvent struct {
	MatchID    string        `json:"matchId"`
	Result     domain.Result `json:"result"`
	Answered   int           `json:"answeredCount"`
	Correct    int           `json:"correctCount"`
	FinishTime int64         `json:"finishTime"`
}

type BothFinishedEvent struct {
	MatchID  string       `json:"matchId"`
	Own      ProgressView `json:"ownProgress"`
	Opponent ProgressView `json:"opponentProgress"`
}

// MatchResultEvent is the authoritative decision sent to both players.
type MatchResultEvent struct {
	MatchID         string                `json:"matchId"`
	Result          domain.Result         `json:"result"`
	Reason          domain.DecisionReason `json:"reason"`
	Own             ProgressView          `json:"ownProgress"`
	Opponent        ProgressView          `json:"opponentProgress"`
	OwnRating       domain.RatingChange   `json:"ownRating"`
	OpponentRating  domain.RatingChange   `json:"opponentRating"`
	RatingPersisted bool                  `json:"ratingPersisted"`
}

type MatchEvent struct {
	MatchID string `json:"matchId"`
}

type MatchResumedEvent struct {
	MatchID          string            `json:"matchId"`
	State            string            `json:"state"`
	Opponent         OpponentInfo      `json:"opponent"`
	Questions        []domain.Question `json:"questions"`
	StartTime        int64             `json:"startTime"`
	Own              ProgressView      `json:"ownProgress"`
	OpponentProgress ProgressView      `json:"opponentProgress"`
	Result           domain.Result     `json:"result"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

func unixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func progressView(rec domain.ProgressRecord) ProgressView {
	return ProgressView{
		Answered:   rec.Answered,
		Correct:    rec.Correct,
		FinishTime: unixMillis(rec.FinishedAt),
		Finished:   rec.Completed,
	}
}

func opponentInfo(p domain.Player) OpponentInfo {
	return OpponentInfo{ID: p.ID, Name: p.DisplayName, Rating: p.Rating, AvatarRef: p.AvatarRef}
}
