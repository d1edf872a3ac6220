package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"quiz-duel-service/internal/domain"
)

// MatchStore keeps JSON match snapshots so that players can resume a match on any
// instance sharing the Redis server. Snapshots expire after ttl of inactivity.
type MatchStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewMatchStore(client *redis.Client, ttl time.Duration) *MatchStore {
	return &MatchStore{client: client, ttl: ttl}
}

func (s *MatchStore) SaveMatch(ctx context.Context, m domain.Match) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode match %s: %w", m.ID, err)
	}
	return s.client.Set(ctx, s.key(m.ID), raw, s.ttl).Err()
}

func (s *MatchStore) LoadMatch(ctx context.Context, matchID string) (domain.Match, error) {
	raw, err := s.client.Get(ctx, s.key(matchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Match{}, domain.ErrMatchNotFound
	}
	if err != nil {
		return domain.Match{}, err
	}
	var m domain.Match
	if err := json.Unmarshal(raw, &m); err != nil {
		return domain.Match{}, fmt.Errorf("decode match %s: %w", matchID, err)
	}
	return m, nil
}

func (s *MatchStore) key(matchID string) string {
	return "quiz:match:" + matchID
}
