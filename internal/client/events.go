package client

import (
	"encoding/json"
	"fmt"
	"time"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
)

// Event is an input to Transition: a local action or a decoded server message.
type Event interface {
	event()
}

// Local actions.
type (
	Search struct {
		Player domain.Player
	}
	Cancel struct{}
	Answer struct {
		Choice string
		At     time.Time
	}
	Surrender    struct{}
	Disconnected struct{}
)

// Server messages.
type (
	Queued           app.QueuedEvent
	MatchFound       app.MatchFoundEvent
	MatchError       app.ErrorEvent
	Cancelled        struct{}
	OpponentProgress app.OpponentProgressEvent
	OpponentFinished app.OpponentFinishedEvent
	BothFinished     app.BothFinishedEvent
	MatchResult      app.MatchResultEvent
	Notice           struct {
		Type    string
		MatchID string
	}
	Resumed         app.MatchResumedEvent
	ReconnectFailed app.ErrorEvent
	ServerError     app.ErrorEvent
)

func (Search) event()           {}
func (Cancel) event()           {}
func (Answer) event()           {}
func (Surrender) event()        {}
func (Disconnected) event()     {}
func (Queued) event()           {}
func (MatchFound) event()       {}
func (MatchError) event()       {}
func (Cancelled) event()        {}
func (OpponentProgress) event() {}
func (OpponentFinished) event() {}
func (BothFinished) event()     {}
func (MatchResult) event()      {}
func (Notice) event()           {}
func (Resumed) event()          {}
func (ReconnectFailed) event()  {}
func (ServerError) event()      {}

// Decode turns a server envelope into an Event.
func Decode(msgType string, payload json.RawMessage) (Event, error) {
	switch msgType {
	case app.MsgMatchQueued:
		return decodeAs[Queued](payload)
	case app.MsgMatchFound:
		return decodeAs[MatchFound](payload)
	case app.MsgMatchError:
		return decodeAs[MatchError](payload)
	case app.MsgMatchCancelled:
		return Cancelled{}, nil
	case app.MsgOpponentProgress:
		return decodeAs[OpponentProgress](payload)
	case app.MsgOpponentFinished:
		return decodeAs[OpponentFinished](payload)
	case app.MsgBothFinished:
		return decodeAs[BothFinished](payload)
	case app.MsgMatchResult:
		return decodeAs[MatchResult](payload)
	case app.MsgOpponentSurrendered, app.MsgOpponentDisconnected:
		var e app.MatchEvent
		if err := unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return Notice{Type: msgType, MatchID: e.MatchID}, nil
	case app.MsgMatchResumed:
		return decodeAs[Resumed](payload)
	case app.MsgReconnectFailed:
		return decodeAs[ReconnectFailed](payload)
	case app.MsgError:
		return decodeAs[ServerError](payload)
	default:
		return nil, fmt.Errorf("unknown message type %q", msgType)
	}
}

func decodeAs[T Event](payload json.RawMessage) (Event, error) {
	var e T
	if err := unmarshal(payload, &e); err != nil {
		return nil, err
	}
	return e, nil
}

func unmarshal(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
