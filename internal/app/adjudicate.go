package app

import "quiz-duel-service/internal/domain"

// Adjudicate picks the winning seat of two completed records: more correct answers
// wins, then the earlier finish. It returns 0 on a draw. The result depends only on
// the two records, never on which one completed last.
func Adjudicate(one, two domain.ProgressRecord) domain.Seat {
	switch {
	case one.Correct > two.Correct:
		return domain.SeatOne
	case two.Correct > one.Correct:
		return domain.SeatTwo
	case one.FinishedAt.Before(two.FinishedAt):
		return domain.SeatOne
	case two.FinishedAt.Before(one.FinishedAt):
		return domain.SeatTwo
	default:
		return 0
	}
}
