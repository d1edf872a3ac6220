package client

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
)

var me = domain.Player{ID: "alice", DisplayName: "Alice", Rating: 1000}

func questions() []domain.Question {
	return []domain.Question{
		{ID: "1", Prompt: "a?", Options: []string{"x", "y"}, Answer: "x"},
		{ID: "2", Prompt: "b?", Options: []string{"x", "y"}, Answer: "y"},
	}
}

func playing(t *testing.T) State {
	t.Helper()
	s, cmds := Transition(State{}, Search{Player: me})
	require.Equal(t, PhaseSearching, s.Phase)
	require.Len(t, cmds, 1)
	assert.Equal(t, "request-match", cmds[0].Type)

	s, cmds = Transition(s, MatchFound{MatchID: "m1", Opponent: app.OpponentInfo{ID: "bob"}, Questions: questions()})
	require.Empty(t, cmds)
	require.Equal(t, PhasePlaying, s.Phase)
	return s
}

func TestAnsweringSendsProgressAndFinishOnLastAnswer(t *testing.T) {
	s := playing(t)
	at := time.UnixMilli(1_700_000_045_000)

	q, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "1", q.ID)

	s, cmds := Transition(s, Answer{Choice: " X ", At: at})
	require.Len(t, cmds, 1)
	assert.Equal(t, ProgressPayload{MatchID: "m1", Answered: 1, Correct: 1}, cmds[0].Payload)

	// the last answer goes out only as game-finished, carrying the local finish time
	s, cmds = Transition(s, Answer{Choice: "x", At: at})
	require.Len(t, cmds, 1)
	assert.Equal(t, "game-finished", cmds[0].Type)
	assert.Equal(t, FinishPayload{MatchID: "m1", PlayerID: "alice", Answered: 2, Correct: 1, FinishTime: at.UnixMilli()}, cmds[0].Payload)
	assert.Equal(t, PhaseAwaitingOpponent, s.Phase)
	assert.Equal(t, domain.ResultPending, s.Provisional)

	// no more questions to answer
	_, cmds = Transition(s, Answer{Choice: "x", At: at})
	assert.Empty(t, cmds)
}

func TestProvisionalResultIsNotTerminal(t *testing.T) {
	s := playing(t)
	at := time.UnixMilli(1_700_000_050_000)
	s, _ = Transition(s, Answer{Choice: "x", At: at})
	s, _ = Transition(s, Answer{Choice: "y", At: at})

	s, _ = Transition(s, OpponentFinished{MatchID: "m1", Result: domain.ResultPending, Answered: 2, Correct: 2, FinishTime: at.Add(-5 * time.Second).UnixMilli()})
	assert.Equal(t, domain.ResultLoss, s.Provisional)
	assert.Equal(t, PhaseAwaitingOpponent, s.Phase, "only match-result decides")

	s, _ = Transition(s, MatchResult{
		MatchID:   "m1",
		Result:    domain.ResultLoss,
		Reason:    domain.ReasonCompleted,
		Own:       app.ProgressView{Answered: 2, Correct: 2, Finished: true},
		Opponent:  app.ProgressView{Answered: 2, Correct: 2, Finished: true},
		OwnRating: domain.RatingChange{Before: 1000, After: 984},
	})
	assert.Equal(t, PhaseDecided, s.Phase)
	assert.Equal(t, domain.ResultLoss, s.Result)
	assert.Equal(t, -16, s.Rating.Delta())
}

func TestOpponentProgressNeverRegresses(t *testing.T) {
	s := playing(t)
	s, _ = Transition(s, OpponentProgress{MatchID: "m1", Answered: 2, Correct: 1})
	s, _ = Transition(s, OpponentProgress{MatchID: "m1", Answered: 1, Correct: 1})
	assert.Equal(t, 2, s.Rival.Answered)

	s, _ = Transition(s, OpponentProgress{MatchID: "other", Answered: 5, Correct: 5})
	assert.Equal(t, 2, s.Rival.Answered)
}

func TestSurrenderAndDisconnect(t *testing.T) {
	s := playing(t)

	_, cmds := Transition(s, Surrender{})
	require.Len(t, cmds, 1)
	assert.Equal(t, MatchRefPayload{MatchID: "m1"}, cmds[0].Payload)

	_, cmds = Transition(s, Disconnected{})
	require.Len(t, cmds, 1)
	assert.Equal(t, "reconnect-match", cmds[0].Type)
	assert.Equal(t, MatchRefPayload{MatchID: "m1", PlayerID: "alice"}, cmds[0].Payload)

	s, _ = Transition(s, ReconnectFailed{Message: "match not found"})
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Equal(t, "match not found", s.LastError)
}

func TestResumeRestoresCounters(t *testing.T) {
	s := playing(t)
	s, _ = Transition(s, Resumed{
		MatchID:          "m1",
		Opponent:         app.OpponentInfo{ID: "bob"},
		Questions:        questions(),
		Own:              app.ProgressView{Answered: 2, Correct: 1, FinishTime: 1_700_000_000_000, Finished: true},
		OpponentProgress: app.ProgressView{Answered: 1, Correct: 1},
	})
	assert.Equal(t, PhaseAwaitingOpponent, s.Phase)
	assert.Equal(t, 2, s.Own.Answered)
	assert.Equal(t, 1, s.Rival.Answered)
}

func TestSearchLifecycle(t *testing.T) {
	s, _ := Transition(State{}, Search{Player: me})

	_, cmds := Transition(s, Search{Player: me})
	assert.Empty(t, cmds, "already searching")

	_, cmds = Transition(s, Cancel{})
	require.Len(t, cmds, 1)
	assert.Equal(t, "cancel-match", cmds[0].Type)

	idle, _ := Transition(s, Cancelled{})
	assert.Equal(t, PhaseIdle, idle.Phase)

	failed, _ := Transition(s, MatchError{Message: "no questions"})
	assert.Equal(t, PhaseIdle, failed.Phase)
	assert.Equal(t, "no questions", failed.LastError)

	// results for matches we are not in are ignored
	unchanged, _ := Transition(s, MatchResult{MatchID: "m9", Result: domain.ResultWin})
	assert.Equal(t, PhaseSearching, unchanged.Phase)
}

func TestDecode(t *testing.T) {
	payload, err := json.Marshal(app.MatchFoundEvent{MatchID: "m1", Questions: questions(), StartTime: 42})
	require.NoError(t, err)

	ev, err := Decode(app.MsgMatchFound, payload)
	require.NoError(t, err)
	found, ok := ev.(MatchFound)
	require.True(t, ok)
	assert.Equal(t, "m1", found.MatchID)
	assert.Len(t, found.Questions, 2)

	ev, err = Decode(app.MsgOpponentDisconnected, json.RawMessage(`{"matchId":"m1"}`))
	require.NoError(t, err)
	assert.Equal(t, Notice{Type: app.MsgOpponentDisconnected, MatchID: "m1"}, ev)

	ev, err = Decode(app.MsgMatchCancelled, nil)
	require.NoError(t, err)
	assert.Equal(t, Cancelled{}, ev)

	_, err = Decode("mystery", nil)
	assert.Error(t, err)

	_, err = Decode(app.MsgMatchResult, json.RawMessage(`{"matchId":`))
	assert.Error(t, err)
}
