package app

import (
	"context"

	"quiz-duel-service/internal/domain"
)

// Conn is one player's realtime channel as seen by the controller.
type Conn interface {
	ID() string
	Send(msgType string, payload any) error
}

// QuestionSupplier returns a deduplicated random sample of questions.
// An empty difficulty means any difficulty.
type QuestionSupplier interface {
	FetchRandomQuestions(ctx context.Context, count int, difficulty string) ([]domain.Question, error)
}

// RatingStore reads and writes player skill ratings.
type RatingStore interface {
	GetRating(ctx context.Context, playerID string) (int, error)
	SetRating(ctx context.Context, playerID string, rating int) error
}

// MatchStore keeps a durable copy of match state so players can resume after the
// in-memory entry is gone.
type MatchStore interface {
	SaveMatch(ctx context.Context, m domain.Match) error
	LoadMatch(ctx context.Context, matchID string) (domain.Match, error)
}
