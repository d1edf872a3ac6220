package domain

import "errors"

var (
	// ErrMatchNotFound is returned when a match id is unknown or was already discarded.
	ErrMatchNotFound = errors.New("match not found")
	// ErrPlayerNotInMatch is returned when a player acts on a match they do not belong to.
	ErrPlayerNotInMatch = errors.New("player not in match")
	// ErrMatchDecided is returned for updates that arrive after adjudication.
	ErrMatchDecided = errors.New("match already decided")
	// ErrProgressRegression indicates an answered count lower than the recorded one.
	ErrProgressRegression = errors.New("answered count cannot decrease")
	// ErrProgressOverflow indicates an answered count beyond the question list.
	ErrProgressOverflow = errors.New("answered count exceeds question count")
	// ErrInvalidProgress indicates inconsistent counters (negative, or correct > answered).
	ErrInvalidProgress = errors.New("invalid progress counters")
	// ErrAlreadyQueued is returned when a player is already waiting or playing.
	ErrAlreadyQueued = errors.New("player already queued or in a match")
	// ErrNoQuestions indicates the question supplier returned an empty set.
	ErrNoQuestions = errors.New("no questions available")
	// ErrInvalidRequest indicates a malformed client request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrPlayerNotFound is returned by rating stores for unknown players.
	ErrPlayerNotFound = errors.New("player not found")
)
