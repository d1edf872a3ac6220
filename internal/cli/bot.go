package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"quiz-duel-service/internal/client"
	"quiz-duel-service/internal/domain"
)

type botOptions struct {
	URL         string
	PlayerID    string
	DisplayName string
	Rating      int
	Accuracy    float64
	Delay       time.Duration
	Timeout     time.Duration
}

// NewBotCmd plays one scripted match against the server, useful for smoke tests and
// for giving a lone human an opponent.
func NewBotCmd() *cobra.Command {
	opts := botOptions{}
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Play one match as a scripted player",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()
			state, err := runBot(ctx, opts, logger)
			if err != nil {
				return err
			}
			logger.Info("Match finished",
				zap.String("match_id", state.MatchID),
				zap.String("result", string(state.Result)),
				zap.String("reason", string(state.Reason)),
				zap.Int("correct", state.Own.Correct),
				zap.Int("rating_before", state.Rating.Before),
				zap.Int("rating_after", state.Rating.After))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.URL, "url", "ws://localhost:8080/ws", "websocket endpoint")
	cmd.Flags().StringVar(&opts.PlayerID, "player-id", "bot-"+fmt.Sprint(time.Now().Unix()), "player id")
	cmd.Flags().StringVar(&opts.DisplayName, "name", "Quiz Bot", "display name")
	cmd.Flags().IntVar(&opts.Rating, "rating", domain.DefaultRating, "reported rating")
	cmd.Flags().Float64Var(&opts.Accuracy, "accuracy", 0.7, "probability of answering correctly")
	cmd.Flags().DurationVar(&opts.Delay, "delay", 2*time.Second, "time spent on each question")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Minute, "give up after this long")
	return cmd
}

type botEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// runBot plays until the server decides the match. Only this goroutine writes to the
// socket; a reader goroutine feeds decoded events in.
func runBot(ctx context.Context, opts botOptions, logger *zap.Logger) (client.State, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		return client.State{}, fmt.Errorf("dial %s: %w", opts.URL, err)
	}
	defer ws.Close()
	logger = logger.With(zap.String("player_id", opts.PlayerID))

	events := make(chan client.Event, 16)
	readErr := make(chan error, 1)
	go func() {
		for {
			var msg botEnvelope
			if err := ws.ReadJSON(&msg); err != nil {
				readErr <- err
				return
			}
			ev, err := client.Decode(msg.Type, msg.Payload)
			if err != nil {
				logger.Warn("Skipping server message", zap.String("type", msg.Type), zap.Error(err))
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(opts.Delay)
	defer ticker.Stop()

	state, cmds := client.Transition(client.State{}, client.Search{Player: domain.Player{
		ID:          opts.PlayerID,
		DisplayName: opts.DisplayName,
		Rating:      opts.Rating,
	}})
	if err := sendCommands(ws, cmds); err != nil {
		return state, err
	}

	for {
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case err := <-readErr:
			return state, fmt.Errorf("connection lost: %w", err)
		case ev := <-events:
			prev := state.Phase
			state, cmds = client.Transition(state, ev)
			if state.Phase != prev {
				logger.Debug("Phase changed", zap.Stringer("from", prev), zap.Stringer("to", state.Phase))
			}
			if err := sendCommands(ws, cmds); err != nil {
				return state, err
			}
			switch {
			case state.Phase == client.PhaseDecided:
				return state, nil
			case prev != client.PhaseIdle && state.Phase == client.PhaseIdle:
				return state, fmt.Errorf("match aborted: %s", state.LastError)
			}
		case <-ticker.C:
			q, ok := state.Current()
			if !ok {
				continue
			}
			state, cmds = client.Transition(state, client.Answer{Choice: pickAnswer(q, opts.Accuracy, rnd), At: time.Now()})
			if err := sendCommands(ws, cmds); err != nil {
				return state, err
			}
		}
	}
}

func sendCommands(ws *websocket.Conn, cmds []client.Command) error {
	for _, cmd := range cmds {
		msg := botEnvelope{Type: cmd.Type}
		if cmd.Payload != nil {
			raw, err := json.Marshal(cmd.Payload)
			if err != nil {
				return err
			}
			msg.Payload = raw
		}
		if err := ws.WriteJSON(msg); err != nil {
			return fmt.Errorf("send %s: %w", cmd.Type, err)
		}
	}
	return nil
}

func pickAnswer(q domain.Question, accuracy float64, rnd *rand.Rand) string {
	if rnd.Float64() < accuracy {
		return q.Answer
	}
	for _, opt := range q.Options {
		if !q.IsCorrect(opt) {
			return opt
		}
	}
	return ""
}
