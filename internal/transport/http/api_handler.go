package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
)

const maxQuestionCount = 50

type questionsResponse struct {
	Success   bool              `json:"success"`
	Questions []domain.Question `json:"questions,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// QuestionsHandler serves GET /api/quiz/questions?count=&difficulty= for solo play.
type QuestionsHandler struct {
	questions app.QuestionSupplier
	logger    *zap.Logger
}

func NewQuestionsHandler(questions app.QuestionSupplier, logger *zap.Logger) *QuestionsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionsHandler{questions: questions, logger: logger}
}

func (h *QuestionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, questionsResponse{Error: "method not allowed"})
		return
	}

	count := domain.DefaultQuestionCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxQuestionCount {
			writeJSON(w, http.StatusBadRequest, questionsResponse{Error: "count must be between 1 and " + strconv.Itoa(maxQuestionCount)})
			return
		}
		count = n
	}
	difficulty := r.URL.Query().Get("difficulty")

	questions, err := h.questions.FetchRandomQuestions(r.Context(), count, difficulty)
	if err != nil {
		h.logger.Error("Could not fetch questions", zap.Int("count", count), zap.String("difficulty", difficulty), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, questionsResponse{Error: err.Error()})
		return
	}
	if questions == nil {
		questions = []domain.Question{}
	}
	writeJSON(w, http.StatusOK, questionsResponse{Success: true, Questions: questions})
}

// HealthCheck probes one backing dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports liveness plus the state of each configured dependency. It
// answers 200 even when a dependency is down; the process can still serve matches.
func HealthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = "error: " + err.Error()
				status = "degraded"
				continue
			}
			results[name] = "ok"
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": status, "dependencies": results})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
