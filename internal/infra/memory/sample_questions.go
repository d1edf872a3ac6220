package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"quiz-duel-service/internal/domain"
)

// LoadQuestionFile reads a YAML list of questions, for running without Postgres.
func LoadQuestionFile(path string) ([]domain.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var questions []domain.Question
	if err := yaml.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("parse question file %s: %w", path, err)
	}
	return questions, nil
}

// SampleQuestions is a small built-in bank; swap the loader with the Postgres one in production.
func SampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "s1", Prompt: "Choose the correct past tense of \"go\".", Options: []string{"goed", "went", "gone", "going"}, Answer: "went", Category: "grammar", Difficulty: "beginner"},
		{ID: "s2", Prompt: "Which word is a synonym of \"happy\"?", Options: []string{"sad", "joyful", "angry", "tired"}, Answer: "joyful", Category: "vocabulary", Difficulty: "beginner"},
		{ID: "s3", Prompt: "She ___ to school every day.", Options: []string{"go", "goes", "going", "gone"}, Answer: "goes", Category: "grammar", Difficulty: "beginner"},
		{ID: "s4", Prompt: "What is the opposite of \"ancient\"?", Options: []string{"old", "modern", "historic", "early"}, Answer: "modern", Category: "vocabulary", Difficulty: "beginner"},
		{ID: "s5", Prompt: "If I ___ rich, I would travel the world.", Options: []string{"am", "was", "were", "be"}, Answer: "were", Category: "grammar", Difficulty: "intermediate"},
		{ID: "s6", Prompt: "Which sentence is in the passive voice?", Options: []string{"The cat chased the mouse.", "The mouse was chased by the cat.", "The cat is chasing.", "The mouse ran."}, Answer: "The mouse was chased by the cat.", Category: "grammar", Difficulty: "intermediate"},
		{ID: "s7", Prompt: "\"Reluctant\" most nearly means:", Options: []string{"eager", "unwilling", "quick", "careful"}, Answer: "unwilling", Category: "vocabulary", Difficulty: "intermediate"},
		{ID: "s8", Prompt: "I have lived here ___ 2015.", Options: []string{"for", "since", "from", "during"}, Answer: "since", Category: "grammar", Difficulty: "intermediate"},
		{ID: "s9", Prompt: "Which word is spelled correctly?", Options: []string{"accomodate", "accommodate", "acommodate", "acomodate"}, Answer: "accommodate", Category: "spelling", Difficulty: "advanced"},
		{ID: "s10", Prompt: "Hardly ___ the station when the train left.", Options: []string{"I reached", "had I reached", "I had reached", "did I reached"}, Answer: "had I reached", Category: "grammar", Difficulty: "advanced"},
		{ID: "s11", Prompt: "\"Ubiquitous\" most nearly means:", Options: []string{"rare", "everywhere", "unique", "hidden"}, Answer: "everywhere", Category: "vocabulary", Difficulty: "advanced"},
		{ID: "s12", Prompt: "Which is the correct use of the subjunctive?", Options: []string{"I suggest he goes.", "I suggest he go.", "I suggest he went.", "I suggest he going."}, Answer: "I suggest he go.", Category: "grammar", Difficulty: "expert"},
	}
}
