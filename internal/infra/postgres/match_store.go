package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"quiz-duel-service/internal/domain"
)

// MatchStore persists matches to the matches table. The flat columns mirror the
// match for reporting; the state column holds the full snapshot used to resume it.
type MatchStore struct {
	pool *pgxpool.Pool
}

func NewMatchStore(pool *pgxpool.Pool) *MatchStore {
	return &MatchStore{pool: pool}
}

func (s *MatchStore) SaveMatch(ctx context.Context, m domain.Match) error {
	state, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal match: %w", err)
	}
	questions, err := json.Marshal(m.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	var winner *string
	if m.Decision != nil && m.Decision.WinnerID != "" {
		winner = &m.Decision.WinnerID
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO matches (id, player1_id, player2_id, player1_finished, player2_finished, status, winner_id, questions, state, start_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			player1_finished = EXCLUDED.player1_finished,
			player2_finished = EXCLUDED.player2_finished,
			status = EXCLUDED.status,
			winner_id = EXCLUDED.winner_id,
			state = EXCLUDED.state,
			updated_at = now()`,
		m.ID, m.PlayerOne.ID, m.PlayerTwo.ID,
		m.ProgressOne.Completed, m.ProgressTwo.Completed,
		matchStatus(m), winner, questions, state, m.StartedAt)
	if err != nil {
		return fmt.Errorf("save match: %w", err)
	}
	return nil
}

func (s *MatchStore) LoadMatch(ctx context.Context, matchID string) (domain.Match, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM matches WHERE id=$1`, matchID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Match{}, domain.ErrMatchNotFound
	}
	if err != nil {
		return domain.Match{}, fmt.Errorf("load match: %w", err)
	}
	var m domain.Match
	if err := json.Unmarshal(raw, &m); err != nil {
		return domain.Match{}, fmt.Errorf("unmarshal match: %w", err)
	}
	return m, nil
}

func matchStatus(m domain.Match) string {
	if m.State >= domain.StateDecided {
		return "finished"
	}
	return "playing"
}
