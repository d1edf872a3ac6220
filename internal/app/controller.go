package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/matchmaking"
	"quiz-duel-service/internal/metrics"
	"quiz-duel-service/internal/rating"
)

// Controller binds the queue, the registry and player connections, and is the single
// authority on match results.
type Controller struct {
	queue     *matchmaking.Queue
	registry  *Registry
	questions QuestionSupplier
	ratings   RatingStore
	store     MatchStore
	metrics   *metrics.Metrics
	logger    *zap.Logger
	conns     *connections
	persistMu sync.Mutex

	questionCount int
	difficulty    string
	now           func() time.Time
}

// Option customises a Controller.
type Option func(*Controller)

// WithMatchStore enables durable match snapshots used for reconnection.
func WithMatchStore(store MatchStore) Option {
	return func(c *Controller) { c.store = store }
}

// WithMetrics records controller activity.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithQuestionCount sets the number of questions per match.
func WithQuestionCount(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.questionCount = n
		}
	}
}

// WithDifficulty restricts matches to one question difficulty.
func WithDifficulty(difficulty string) Option {
	return func(c *Controller) { c.difficulty = difficulty }
}

// WithClock replaces the clock used for finish times that clients do not report.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func NewController(queue *matchmaking.Queue, registry *Registry, questions QuestionSupplier, ratings RatingStore, logger *zap.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		queue:         queue,
		registry:      registry,
		questions:     questions,
		ratings:       ratings,
		logger:        logger,
		conns:         newConnections(),
		questionCount: domain.DefaultQuestionCount,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FinishReport is a player's explicit completion signal. PlayerID is optional; when
// set it must name the player bound to the reporting connection.
type FinishReport struct {
	MatchID    string
	PlayerID   string
	Answered   int
	Correct    int
	FinishTime time.Time
}

// RequestMatch pairs the player with a waiting opponent, or queues them.
// Duplicate requests from a queued or playing player are ignored.
func (c *Controller) RequestMatch(ctx context.Context, conn Conn, player domain.Player) error {
	if player.ID == "" {
		return fmt.Errorf("request match: %w", domain.ErrInvalidRequest)
	}
	if player.Rating <= 0 {
		player.Rating = domain.DefaultRating
	}
	if stored, err := c.ratings.GetRating(ctx, player.ID); err == nil {
		player.Rating = stored
	} else if !errors.Is(err, domain.ErrPlayerNotFound) {
		c.logger.Warn("Could not read stored rating, using reported rating", zap.String("player_id", player.ID), zap.Error(err))
	}

	res, err := c.queue.MatchOrEnqueue(player, conn.ID())
	if err != nil {
		c.logger.Debug("Ignoring duplicate match request", zap.String("player_id", player.ID), zap.String("conn_id", conn.ID()))
		c.metrics.UpdateRejected("request-match")
		return err
	}
	c.conns.bind(player.ID, conn)
	c.metrics.SetQueueSize(res.QueueSize)

	if !res.Matched {
		c.logger.Info("Player queued", zap.String("player_id", player.ID), zap.Int("rating", player.Rating), zap.Int("queue_size", res.QueueSize))
		c.send(player.ID, MsgMatchQueued, QueuedEvent{QueueSize: res.QueueSize})
		return nil
	}

	opponent := res.Opponent.Player
	defer c.queue.Release(player.ID, opponent.ID)

	questions, err := c.questions.FetchRandomQuestions(ctx, c.questionCount, c.difficulty)
	if err == nil && len(questions) == 0 {
		err = domain.ErrNoQuestions
	}
	if err != nil {
		c.logger.Error("Could not load questions for match", zap.String("player_one", player.ID), zap.String("player_two", opponent.ID), zap.Error(err))
		failure := ErrorEvent{Message: "could not start match: " + err.Error()}
		c.send(player.ID, MsgMatchError, failure)
		c.send(opponent.ID, MsgMatchError, failure)
		return fmt.Errorf("fetch questions: %w", err)
	}

	m := c.registry.Create(player, opponent, questions)
	c.metrics.MatchCreated()
	c.metrics.SetMatches(c.registry.Len())
	c.logger.Info("Match created",
		zap.String("match_id", m.ID),
		zap.String("player_one", player.ID),
		zap.String("player_two", opponent.ID),
		zap.Int("rating_diff", abs(player.Rating-opponent.Rating)),
		zap.Int("questions", len(m.Questions)))
	c.persist(ctx, m)

	start := unixMillis(m.StartedAt)
	c.send(player.ID, MsgMatchFound, MatchFoundEvent{MatchID: m.ID, Opponent: opponentInfo(opponent), Questions: m.Questions, StartTime: start})
	c.send(opponent.ID, MsgMatchFound, MatchFoundEvent{MatchID: m.ID, Opponent: opponentInfo(player), Questions: m.Questions, StartTime: start})

	// A connection that closed while questions were loading had no match to forfeit
	// yet. Once the match exists, a later close forfeits through Disconnect.
	for _, p := range []domain.Player{opponent, player} {
		if _, bound := c.conns.get(p.ID); !bound {
			c.forfeitDisconnected(ctx, m.ID, p.ID)
			break
		}
	}
	return nil
}

// CancelMatch removes the connection's player from the queue. Cancelling after a
// pairing has no effect; players surrender instead.
func (c *Controller) CancelMatch(_ context.Context, conn Conn) error {
	entry, ok := c.queue.RemoveConn(conn.ID())
	if !ok {
		return nil
	}
	c.metrics.SetQueueSize(c.queue.Len())
	c.logger.Info("Match request cancelled", zap.String("player_id", entry.Player.ID))
	return conn.Send(MsgMatchCancelled, struct{}{})
}

// ReportProgress records a mid-match update and forwards it to the opponent.
func (c *Controller) ReportProgress(ctx context.Context, conn Conn, matchID string, answered, correct int) error {
	playerID, ok := c.conns.playerFor(conn.ID())
	if !ok {
		c.metrics.UpdateRejected("game-progress")
		return domain.ErrPlayerNotInMatch
	}

	upd, err := c.registry.UpdateProgress(matchID, playerID, answered, correct, time.Time{})
	if err != nil {
		c.rejected("game-progress", matchID, playerID, err)
		return err
	}

	decided, ok, err := c.registry.DecideCompleted(matchID)
	if err != nil && !errors.Is(err, domain.ErrMatchDecided) {
		return err
	}

	rec := upd.Match.Progress(upd.Seat)
	opponent := upd.Match.Player(upd.Seat.Opposite())
	c.send(opponent.ID, MsgOpponentProgress, OpponentProgressEvent{MatchID: matchID, Answered: rec.Answered, Correct: rec.Correct})
	if upd.JustCompleted {
		c.sendOpponentFinished(opponent.ID, decided, ok, rec)
	}

	if ok {
		c.finalize(ctx, decided, playerID)
		return nil
	}
	if upd.Changed {
		c.persist(ctx, upd.Match)
	}
	return nil
}

// ReportFinish records a player's completion. Repeated reports are accepted without
// effect; reports after the decision are rejected with ErrMatchDecided.
func (c *Controller) ReportFinish(ctx context.Context, conn Conn, report FinishReport) error {
	playerID, ok := c.conns.playerFor(conn.ID())
	if !ok || (report.PlayerID != "" && report.PlayerID != playerID) {
		c.metrics.UpdateRejected("game-finished")
		return domain.ErrPlayerNotInMatch
	}

	if report.FinishTime.IsZero() {
		report.FinishTime = c.now()
	}
	upd, err := c.registry.UpdateProgress(report.MatchID, playerID, report.Answered, report.Correct, report.FinishTime)
	if err != nil {
		c.rejected("game-finished", report.MatchID, playerID, err)
		return err
	}
	if !upd.Changed {
		c.logger.Debug("Duplicate finish report", zap.String("match_id", report.MatchID), zap.String("player_id", playerID))
		return nil
	}

	decided, ok, err := c.registry.DecideCompleted(report.MatchID)
	if err != nil && !errors.Is(err, domain.ErrMatchDecided) {
		return err
	}

	rec := upd.Match.Progress(upd.Seat)
	opponent := upd.Match.Player(upd.Seat.Opposite())
	if !rec.Completed {
		c.send(opponent.ID, MsgOpponentProgress, OpponentProgressEvent{MatchID: report.MatchID, Answered: rec.Answered, Correct: rec.Correct})
		c.persist(ctx, upd.Match)
		return nil
	}
	c.sendOpponentFinished(opponent.ID, decided, ok, rec)

	if ok {
		c.finalize(ctx, decided, playerID)
		return nil
	}
	c.persist(ctx, upd.Match)
	return nil
}

// Surrender ends the match as a loss for the connection's player.
func (c *Controller) Surrender(ctx context.Context, conn Conn, matchID string) error {
	playerID, ok := c.conns.playerFor(conn.ID())
	if !ok {
		c.metrics.UpdateRejected("surrender")
		return domain.ErrPlayerNotInMatch
	}
	m, err := c.registry.DecideForfeit(matchID, playerID, domain.ReasonSurrender)
	if err != nil {
		c.rejected("surrender", matchID, playerID, err)
		return err
	}
	seat, _ := m.SeatOf(playerID)
	c.send(m.Player(seat.Opposite()).ID, MsgOpponentSurrendered, MatchEvent{MatchID: m.ID})
	c.finalize(ctx, m, playerID)
	return nil
}

// Disconnect handles the loss of a connection. A player whose live connection drops
// mid-match forfeits; a connection already replaced by a reconnect does not.
func (c *Controller) Disconnect(ctx context.Context, conn Conn) {
	if entry, ok := c.queue.RemoveConn(conn.ID()); ok {
		c.metrics.SetQueueSize(c.queue.Len())
		c.logger.Info("Removed disconnected player from queue", zap.String("player_id", entry.Player.ID))
	}

	playerID, current := c.conns.unbindConn(conn.ID())
	if !current {
		return
	}
	m, ok := c.registry.FindByPlayer(playerID)
	if !ok {
		return
	}
	c.forfeitDisconnected(ctx, m.ID, playerID)
}

// forfeitDisconnected decides matchID against playerID, whose connection is gone.
func (c *Controller) forfeitDisconnected(ctx context.Context, matchID, playerID string) {
	m, err := c.registry.DecideForfeit(matchID, playerID, domain.ReasonDisconnect)
	if err != nil {
		c.logger.Debug("Disconnect after decision", zap.String("match_id", matchID), zap.String("player_id", playerID), zap.Error(err))
		return
	}
	c.logger.Info("Player disconnected mid-match", zap.String("match_id", m.ID), zap.String("player_id", playerID))
	seat, _ := m.SeatOf(playerID)
	c.send(m.Player(seat.Opposite()).ID, MsgOpponentDisconnected, MatchEvent{MatchID: m.ID})
	c.finalize(ctx, m, playerID)
}

// Reconnect binds a new connection to a player of an existing match. Progress is left
// untouched. Matches missing from memory are reloaded from the match store when one is
// configured.
func (c *Controller) Reconnect(ctx context.Context, conn Conn, matchID, playerID string) error {
	m, err := c.registry.Get(matchID)
	if errors.Is(err, domain.ErrMatchNotFound) && c.store != nil {
		loaded, loadErr := c.store.LoadMatch(ctx, matchID)
		switch {
		case loadErr != nil:
			c.logger.Warn("Could not reload match for reconnect", zap.String("match_id", matchID), zap.Error(loadErr))
		case loaded.State >= domain.StateDecided:
			c.logger.Info("Reloaded match is already decided", zap.String("match_id", matchID))
		default:
			m, err = c.registry.Restore(loaded), nil
			c.metrics.SetMatches(c.registry.Len())
			c.logger.Info("Restored match from store", zap.String("match_id", matchID))
		}
	}
	if err != nil {
		_ = conn.Send(MsgReconnectFailed, ErrorEvent{Message: err.Error()})
		return err
	}

	seat, ok := m.SeatOf(playerID)
	if !ok {
		_ = conn.Send(MsgReconnectFailed, ErrorEvent{Message: domain.ErrPlayerNotInMatch.Error()})
		return domain.ErrPlayerNotInMatch
	}

	c.conns.bind(playerID, conn)
	c.logger.Info("Player reconnected", zap.String("match_id", matchID), zap.String("player_id", playerID), zap.String("conn_id", conn.ID()))
	return conn.Send(MsgMatchResumed, MatchResumedEvent{
		MatchID:          m.ID,
		State:            m.State.String(),
		Opponent:         opponentInfo(m.Player(seat.Opposite())),
		Questions:        m.Questions,
		StartTime:        unixMillis(m.StartedAt),
		Own:              progressView(m.Progress(seat)),
		OpponentProgress: progressView(m.Progress(seat.Opposite())),
		Result:           m.ResultFor(playerID),
	})
}

// finalize applies ratings and announces a freshly decided match. It runs once per
// match, for the caller whose registry transition decided it.
func (c *Controller) finalize(ctx context.Context, m domain.Match, actorID string) {
	d := m.Decision
	logger := c.logger.With(zap.String("match_id", m.ID), zap.String("reason", string(d.Reason)))

	r1 := c.currentRating(ctx, m.PlayerOne)
	r2 := c.currentRating(ctx, m.PlayerTwo)
	one := domain.RatingChange{Before: r1, After: rating.Compute(r1, r2, outcomeFor(m, m.PlayerOne.ID))}
	two := domain.RatingChange{Before: r2, After: rating.Compute(r2, r1, outcomeFor(m, m.PlayerTwo.ID))}

	persisted := true
	for _, p := range []struct {
		id     string
		rating int
	}{{m.PlayerOne.ID, one.After}, {m.PlayerTwo.ID, two.After}} {
		if err := c.ratings.SetRating(ctx, p.id, p.rating); err != nil {
			persisted = false
			c.metrics.RatingPersistFailed()
			logger.Error("Could not persist rating", zap.String("player_id", p.id), zap.Int("rating", p.rating), zap.Error(err))
		}
	}

	if updated, err := c.registry.RecordRatings(m.ID, one, two, persisted); err == nil {
		m = updated
	} else {
		m.Decision.RatingsOne, m.Decision.RatingsTwo, m.Decision.Unpersisted = one, two, !persisted
	}
	c.persist(ctx, m)
	c.metrics.MatchDecided(string(d.Reason))

	logger.Info("Match decided",
		zap.String("winner", m.Decision.WinnerID),
		zap.String("triggered_by", actorID),
		zap.Int("player_one_correct", m.ProgressOne.Correct),
		zap.Int("player_two_correct", m.ProgressTwo.Correct),
		zap.Int("player_one_rating", one.After),
		zap.Int("player_two_rating", two.After))

	for _, seat := range []domain.Seat{domain.SeatOne, domain.SeatTwo} {
		p := m.Player(seat)
		own, opp := m.Progress(seat), m.Progress(seat.Opposite())
		if d.Reason == domain.ReasonCompleted {
			c.send(p.ID, MsgBothFinished, BothFinishedEvent{MatchID: m.ID, Own: progressView(own), Opponent: progressView(opp)})
		}
		c.send(p.ID, MsgMatchResult, MatchResultEvent{
			MatchID:         m.ID,
			Result:          m.ResultFor(p.ID),
			Reason:          d.Reason,
			Own:             progressView(own),
			Opponent:        progressView(opp),
			OwnRating:       m.Decision.RatingFor(seat),
			OpponentRating:  m.Decision.RatingFor(seat.Opposite()),
			RatingPersisted: persisted,
		})
	}
}

// sendOpponentFinished tells opponentID that the other record completed. The result is
// pending unless this completion decided the match.
func (c *Controller) sendOpponentFinished(opponentID string, m domain.Match, decided bool, rec domain.ProgressRecord) {
	result := domain.ResultPending
	if decided {
		result = m.ResultFor(opponentID)
	}
	c.send(opponentID, MsgOpponentFinished, OpponentFinishedEvent{
		MatchID:    m.ID,
		Result:     result,
		Answered:   rec.Answered,
		Correct:    rec.Correct,
		FinishTime: unixMillis(rec.FinishedAt),
	})
}

func (c *Controller) currentRating(ctx context.Context, p domain.Player) int {
	r, err := c.ratings.GetRating(ctx, p.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrPlayerNotFound) {
			c.logger.Warn("Could not read rating, using match rating", zap.String("player_id", p.ID), zap.Error(err))
		}
		return p.Rating
	}
	return r
}

func outcomeFor(m domain.Match, playerID string) rating.Outcome {
	switch m.ResultFor(playerID) {
	case domain.ResultWin:
		return rating.Win
	case domain.ResultDraw:
		return rating.Draw
	default:
		return rating.Loss
	}
}

// persist writes the match to the store. Saves are serialized and write the registry's
// latest copy when there is one, so an older snapshot never lands after a newer one.
// Failures only cost resumability.
func (c *Controller) persist(ctx context.Context, m domain.Match) {
	if c.store == nil {
		return
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if latest, err := c.registry.Get(m.ID); err == nil {
		m = latest
	}
	if err := c.store.SaveMatch(ctx, m); err != nil {
		c.logger.Warn("Could not persist match", zap.String("match_id", m.ID), zap.Error(err))
	}
}

func (c *Controller) send(playerID, msgType string, payload any) {
	conn, ok := c.conns.get(playerID)
	if !ok {
		c.logger.Debug("No connection bound for player", zap.String("player_id", playerID), zap.String("type", msgType))
		return
	}
	if err := conn.Send(msgType, payload); err != nil {
		c.logger.Warn("Could not send message", zap.String("player_id", playerID), zap.String("type", msgType), zap.Error(err))
	}
}

func (c *Controller) rejected(msgType, matchID, playerID string, err error) {
	c.metrics.UpdateRejected(msgType)
	c.logger.Warn("Rejected client message",
		zap.String("type", msgType),
		zap.String("match_id", matchID),
		zap.String("player_id", playerID),
		zap.Error(err))
}

// QueueSize returns the number of waiting players.
func (c *Controller) QueueSize() int {
	return c.queue.Len()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
