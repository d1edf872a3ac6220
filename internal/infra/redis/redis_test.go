package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/infra/memory"
)

func TestQuestionSupplierCachesInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := newClient(mr)

	loader := &countingLoader{QuestionLoader: memory.NewStaticQuestionLoader(memory.SampleQuestions())}
	supplier := NewQuestionSupplier(client, loader, time.Minute)

	questions, err := supplier.FetchRandomQuestions(context.Background(), 10, "")
	require.NoError(t, err)
	require.Len(t, questions, 10)
	assert.Equal(t, 1, loader.count())
	assert.True(t, mr.Exists("questions:pool:any"))
	assert.Greater(t, mr.TTL("questions:pool:any"), time.Duration(0))

	// Second call should hit cache, loader not incremented.
	again, err := supplier.FetchRandomQuestions(context.Background(), 3, "")
	require.NoError(t, err)
	assert.Len(t, again, 3)
	assert.Equal(t, 1, loader.count())
	for _, q := range again {
		assert.NotEmpty(t, q.Prompt, "cached questions keep their full content")
		assert.NotEmpty(t, q.Options)
	}
}

func TestQuestionSupplierReloadsAfterExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	loader := &countingLoader{QuestionLoader: memory.NewStaticQuestionLoader(memory.SampleQuestions())}
	supplier := NewQuestionSupplier(newClient(mr), loader, time.Minute)

	_, err := supplier.FetchRandomQuestions(context.Background(), 2, "advanced")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	questions, err := supplier.FetchRandomQuestions(context.Background(), 10, "advanced")
	require.NoError(t, err)
	assert.Len(t, questions, 3)
	assert.Equal(t, 2, loader.count())
}

func TestQuestionSupplierEmptyPoolIsNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	supplier := NewQuestionSupplier(newClient(mr), memory.NewStaticQuestionLoader(nil), time.Minute)

	questions, err := supplier.FetchRandomQuestions(context.Background(), 10, "")
	require.NoError(t, err)
	assert.Empty(t, questions)
	assert.False(t, mr.Exists("questions:pool:any"))
}

func TestMatchStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewMatchStore(newClient(mr), time.Hour)
	ctx := context.Background()

	_, err := store.LoadMatch(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrMatchNotFound)

	finished := time.UnixMilli(1_700_000_045_000).UTC()
	m := domain.Match{
		ID:          "m1",
		PlayerOne:   domain.Player{ID: "a", DisplayName: "Alice", Rating: 1000},
		PlayerTwo:   domain.Player{ID: "b", DisplayName: "Bob", Rating: 1020},
		Questions:   memory.SampleQuestions()[:2],
		StartedAt:   time.UnixMilli(1_700_000_000_000).UTC(),
		ProgressOne: domain.ProgressRecord{Answered: 2, Correct: 1, FinishedAt: finished, Completed: true},
		ProgressTwo: domain.ProgressRecord{Answered: 1, Correct: 1},
		State:       domain.StateAwaitingOpponent,
	}
	require.NoError(t, store.SaveMatch(ctx, m))
	assert.Greater(t, mr.TTL("quiz:match:m1"), time.Duration(0))

	loaded, err := store.LoadMatch(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateAwaitingOpponent, loaded.State)
	assert.Equal(t, "Bob", loaded.PlayerTwo.DisplayName)
	assert.True(t, loaded.ProgressOne.FinishedAt.Equal(finished))
	assert.Len(t, loaded.Questions, 2)
	assert.Nil(t, loaded.Decision)
}

func TestRatingStore(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRatingStore(newClient(mr))
	ctx := context.Background()

	_, err := store.GetRating(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)

	require.NoError(t, store.SetRating(ctx, "alice", 1024))
	r, err := store.GetRating(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1024, r)
	assert.Equal(t, "1024", mr.HGet(ratingsKey, "alice"))
}

type countingLoader struct {
	memory.QuestionLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context, difficulty string) ([]domain.Question, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.QuestionLoader.LoadQuestions(ctx, difficulty)
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
