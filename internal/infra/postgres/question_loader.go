package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v4/pgxpool"
	"quiz-duel-service/internal/domain"
)

// QuestionLoader loads the question bank from the quiz_questions table.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context, difficulty string) ([]domain.Question, error) {
	query := `SELECT id, question, options, answer, COALESCE(category, ''), COALESCE(difficulty, '') FROM quiz_questions`
	var args []interface{}
	if difficulty != "" {
		query += ` WHERE lower(difficulty) = lower($1)`
		args = append(args, difficulty)
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			id      int64
			options []byte
			q       domain.Question
		)
		if err := rows.Scan(&id, &q.Prompt, &options, &q.Answer, &q.Category, &q.Difficulty); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options of question %d: %w", id, err)
		}
		q.ID = strconv.FormatInt(id, 10)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return questions, nil
}
