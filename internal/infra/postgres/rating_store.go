package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"quiz-duel-service/internal/domain"
)

// RatingStore reads and writes users.rating.
type RatingStore struct {
	pool *pgxpool.Pool
}

func NewRatingStore(pool *pgxpool.Pool) *RatingStore {
	return &RatingStore{pool: pool}
}

func (s *RatingStore) GetRating(ctx context.Context, playerID string) (int, error) {
	var rating int
	err := s.pool.QueryRow(ctx, `SELECT rating FROM users WHERE id=$1`, playerID).Scan(&rating)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrPlayerNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get rating: %w", err)
	}
	return rating, nil
}

// SetRating creates the user row on first use.
func (s *RatingStore) SetRating(ctx context.Context, playerID string, rating int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, rating) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET rating = EXCLUDED.rating, updated_at = now()`,
		playerID, rating)
	if err != nil {
		return fmt.Errorf("set rating: %w", err)
	}
	return nil
}
