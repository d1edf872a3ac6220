package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"quiz-duel-service/internal/domain"
)

// RatingStore keeps player ratings in a single hash: HSET quiz:ratings {playerID} {rating}
type RatingStore struct {
	client *redis.Client
}

func NewRatingStore(client *redis.Client) *RatingStore {
	return &RatingStore{client: client}
}

func (s *RatingStore) GetRating(ctx context.Context, playerID string) (int, error) {
	r, err := s.client.HGet(ctx, ratingsKey, playerID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, domain.ErrPlayerNotFound
	}
	return r, err
}

func (s *RatingStore) SetRating(ctx context.Context, playerID string, rating int) error {
	return s.client.HSet(ctx, ratingsKey, playerID, rating).Err()
}

const ratingsKey = "quiz:ratings"
