package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"quiz-duel-service/internal/domain"
)

func TestQuestionSupplierCachesPool(t *testing.T) {
	loader := &countingLoader{QuestionLoader: NewStaticQuestionLoader(SampleQuestions())}
	supplier := NewQuestionSupplier(loader, time.Minute)

	first, err := supplier.FetchRandomQuestions(context.Background(), 5, "")
	require.NoError(t, err)
	require.Len(t, first, 5)

	_, err = supplier.FetchRandomQuestions(context.Background(), 5, "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), loader.calls.Load(), "expected cache hit")
}

func TestQuestionSupplierExpiresPool(t *testing.T) {
	loader := &countingLoader{QuestionLoader: NewStaticQuestionLoader(SampleQuestions())}
	supplier := NewQuestionSupplier(loader, time.Minute)
	now := time.Now()
	supplier.clock = func() time.Time { return now }

	_, err := supplier.FetchRandomQuestions(context.Background(), 3, "")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = supplier.FetchRandomQuestions(context.Background(), 3, "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestQuestionSupplierFiltersDifficulty(t *testing.T) {
	supplier := NewQuestionSupplier(NewStaticQuestionLoader(SampleQuestions()), time.Minute)

	questions, err := supplier.FetchRandomQuestions(context.Background(), 10, "Beginner")
	require.NoError(t, err)
	require.Len(t, questions, 4)
	for _, q := range questions {
		assert.Equal(t, "beginner", q.Difficulty)
	}
}

func TestQuestionSupplierSingleFlight(t *testing.T) {
	release := make(chan struct{})
	loader := &countingLoader{QuestionLoader: NewStaticQuestionLoader(SampleQuestions()), wait: release}
	supplier := NewQuestionSupplier(loader, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := supplier.FetchRandomQuestions(context.Background(), 2, "")
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestQuestionSupplierPropagatesLoaderError(t *testing.T) {
	boom := errors.New("db down")
	supplier := NewQuestionSupplier(failingLoader{err: boom}, time.Minute)

	_, err := supplier.FetchRandomQuestions(context.Background(), 2, "")
	assert.ErrorIs(t, err, boom)
}

func TestSamplerDeduplicatesAndCaps(t *testing.T) {
	pool := []domain.Question{{ID: "a"}, {ID: "b"}, {ID: "a"}, {ID: "c"}}
	sampler := NewSeededSampler(7)

	all := sampler.Sample(pool, 10)
	assert.Len(t, all, 3)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})

	assert.Len(t, sampler.Sample(pool, 2), 2)
	assert.Empty(t, sampler.Sample(pool, 0))
	assert.Equal(t, "a", pool[0].ID, "pool must not be reordered")
}

func TestSamplerJitterBounds(t *testing.T) {
	sampler := NewSeededSampler(1)
	for i := 0; i < 100; i++ {
		d := sampler.Jitter(time.Minute)
		assert.GreaterOrEqual(t, d, time.Minute)
		assert.LessOrEqual(t, d, time.Minute+6*time.Second)
	}
	assert.Zero(t, sampler.Jitter(0))
}

func TestLoadQuestionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.yaml")
	content := `
- id: q1
  prompt: "2 + 2?"
  options: ["3", "4"]
  answer: "4"
  difficulty: beginner
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	questions, err := LoadQuestionFile(path)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "q1", questions[0].ID)
	assert.Equal(t, []string{"3", "4"}, questions[0].Options)
	assert.True(t, questions[0].IsCorrect(" 4 "))
}

type countingLoader struct {
	QuestionLoader
	calls atomic.Int32
	wait  chan struct{}
}

func (l *countingLoader) LoadQuestions(ctx context.Context, difficulty string) ([]domain.Question, error) {
	l.calls.Add(1)
	if l.wait != nil {
		<-l.wait
	}
	return l.QuestionLoader.LoadQuestions(ctx, difficulty)
}

type failingLoader struct {
	err error
}

func (l failingLoader) LoadQuestions(context.Context, string) ([]domain.Question, error) {
	return nil, l.err
}
