package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/metrics"
)

// Client to server message types.
const (
	msgRequestMatch   = "request-match"
	msgCancelMatch    = "cancel-match"
	msgGameProgress   = "game-progress"
	msgGameFinished   = "game-finished"
	msgPlayerFinished = "player-finished"
	msgSurrender      = "surrender"
	msgReconnectMatch = "reconnect-match"
)

// disconnectTimeout bounds the rating and store writes made when a socket drops.
const disconnectTimeout = 10 * time.Second

type WSHandler struct {
	controller *app.Controller
	upgrader   websocket.Upgrader
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

func NewWSHandler(controller *app.Controller, m *metrics.Metrics, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		controller: controller,
		metrics:    m,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type requestMatchPayload struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Rating      int    `json:"rating"`
	AvatarRef   string `json:"avatarRef"`
}

type progressPayload struct {
	MatchID  string `json:"matchId"`
	Answered int    `json:"answeredCount"`
	Correct  int    `json:"correctCount"`
}

type finishPayload struct {
	MatchID    string `json:"matchId"`
	PlayerID   string `json:"playerId"`
	Answered   int    `json:"answeredCount"`
	Correct    int    `json:"correctCount"`
	FinishTime int64  `json:"finishTime"`
}

type matchRefPayload struct {
	MatchID  string `json:"matchId"`
	PlayerID string `json:"playerId"`
}

// ServeWS upgrades HTTP requests to websockets and feeds client messages to the controller.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	connID := uuid.NewString()
	conn := newWSConn(connID, ws, h.logger.With(zap.String("conn_id", connID)))
	h.metrics.ConnectionOpened()
	conn.logger.Debug("Connection opened", zap.String("remote_addr", r.RemoteAddr))

	go conn.writePump()
	h.readPump(r.Context(), conn)

	conn.close()
	h.metrics.ConnectionClosed()
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	h.controller.Disconnect(ctx, conn)
	conn.logger.Debug("Connection closed")
}

func (h *WSHandler) readPump(ctx context.Context, conn *wsConn) {
	ws := conn.ws
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				conn.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		var inbound inboundMessage
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.metrics.UpdateRejected("malformed")
			_ = conn.Send(app.MsgError, app.ErrorEvent{Message: "malformed message"})
			continue
		}
		h.dispatch(ctx, conn, inbound)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, conn *wsConn, inbound inboundMessage) {
	var err error
	switch inbound.Type {
	case msgRequestMatch:
		var p requestMatchPayload
		if err = decode(inbound.Payload, &p); err == nil {
			err = h.controller.RequestMatch(ctx, conn, domain.Player{
				ID:          p.PlayerID,
				DisplayName: p.DisplayName,
				Rating:      p.Rating,
				AvatarRef:   p.AvatarRef,
			})
			if err != nil && !errors.Is(err, domain.ErrInvalidRequest) {
				return // duplicates are ignored; start failures were answered with match-error
			}
		}
	case msgCancelMatch:
		err = h.controller.CancelMatch(ctx, conn)
	case msgGameProgress:
		var p progressPayload
		if err = decode(inbound.Payload, &p); err == nil {
			err = h.controller.ReportProgress(ctx, conn, p.MatchID, p.Answered, p.Correct)
		}
	case msgGameFinished, msgPlayerFinished:
		var p finishPayload
		if err = decode(inbound.Payload, &p); err == nil {
			report := app.FinishReport{MatchID: p.MatchID, PlayerID: p.PlayerID, Answered: p.Answered, Correct: p.Correct}
			if p.FinishTime > 0 {
				report.FinishTime = time.UnixMilli(p.FinishTime)
			}
			err = h.controller.ReportFinish(ctx, conn, report)
		}
	case msgSurrender:
		var p matchRefPayload
		if err = decode(inbound.Payload, &p); err == nil {
			err = h.controller.Surrender(ctx, conn, p.MatchID)
		}
	case msgReconnectMatch:
		var p matchRefPayload
		if err = decode(inbound.Payload, &p); err == nil {
			// failures are answered with reconnect-failed
			_ = h.controller.Reconnect(ctx, conn, p.MatchID, p.PlayerID)
			return
		}
	default:
		h.metrics.UpdateRejected("unknown")
		conn.logger.Warn("Unsupported message type", zap.String("type", inbound.Type))
		_ = conn.Send(app.MsgError, app.ErrorEvent{Message: "unsupported message type"})
		return
	}

	if err == nil || quiet(err) {
		return
	}
	_ = conn.Send(app.MsgError, app.ErrorEvent{Message: err.Error()})
}

// quiet errors are duplicates the client may safely resend; they get no reply.
func quiet(err error) bool {
	return errors.Is(err, domain.ErrAlreadyQueued) || errors.Is(err, domain.ErrMatchDecided)
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return domain.ErrInvalidRequest
	}
	return nil
}
