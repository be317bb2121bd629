package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/qrave1/RoomRelay/internal/application/config"
	"github.com/qrave1/RoomRelay/internal/application/constant"
	"github.com/qrave1/RoomRelay/internal/application/metric"
	"github.com/qrave1/RoomRelay/internal/domain/events"
	"github.com/qrave1/RoomRelay/internal/infra/adapters/memory"
	"github.com/qrave1/RoomRelay/internal/infra/appctx"
	"github.com/qrave1/RoomRelay/internal/usecase"
)

type WebSocketHandler struct {
	upgrader *websocket.Upgrader
	wsCfg    config.WSConfig

	signalingUsecase usecase.SignalingUsecase
	wsConnRepo       memory.WebsocketConnectionRepository
}

func NewWebSocketHandler(
	cfg *config.Config,
	signalingUsecase usecase.SignalingUsecase,
	wsConnRepo memory.WebsocketConnectionRepository,
) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.Debug {
					return true
				}

				origin := r.Header.Get("Origin")
				return origin == "" || origin == cfg.Domain
			},
		},
		wsCfg:            cfg.WS,
		signalingUsecase: signalingUsecase,
		wsConnRepo:       wsConnRepo,
	}
}

func (h *WebSocketHandler) Handle(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"WebSocket upgrade error",
			slog.Any(constant.Error, err),
		)
		return nil
	}
	defer ws.Close()

	clientID := uuid.New()

	// Запрос завершается вместе с соединением, поэтому отмену контекста запроса не наследуем
	ctx := appctx.WithClientID(context.WithoutCancel(c.Request().Context()), clientID)

	ws.SetReadLimit(h.wsCfg.MaxMessageBytes)
	if err = ws.SetReadDeadline(time.Now().Add(h.wsCfg.PongWait)); err != nil {
		return nil
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.wsCfg.PongWait))
	})

	h.wsConnRepo.Add(clientID, ws)
	slog.Info("WebSocket connection established", slog.Any(constant.ClientID, clientID))

	defer func() {
		if err := h.signalingUsecase.HandleDisconnect(ctx, clientID); err != nil {
			slog.Error("handle disconnect", slog.Any(constant.ClientID, clientID), slog.Any(constant.Error, err))
		}
		slog.Info("WebSocket connection closed", slog.Any(constant.ClientID, clientID))
	}()

	if err = h.signalingUsecase.HandleConnect(ctx, clientID); err != nil {
		slog.Error("handle connect", slog.Any(constant.ClientID, clientID), slog.Any(constant.Error, err))
		return nil
	}

	limiter := rate.NewLimiter(rate.Limit(h.wsCfg.MaxMessagesPerSecond), burst(h.wsCfg.MaxMessagesPerSecond))

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				slog.Warn(
					"webSocket read error",
					slog.Any(constant.ClientID, clientID),
					slog.Any(constant.Error, err),
				)
			}

			return nil
		}

		if !limiter.Allow() {
			metric.IncRelayDropped(metric.DropReasonRateLimited)
			h.signalingUsecase.SendError(ctx, clientID, "rate limit exceeded")
			continue
		}

		signalMessage := new(events.Message)

		if err = json.Unmarshal(msg, signalMessage); err != nil {
			slog.Warn("unmarshal websocket message", slog.Any(constant.ClientID, clientID), slog.Any(constant.Error, err))
			h.signalingUsecase.SendError(ctx, clientID, "malformed message")
			continue
		}

		if err = h.handleMessage(ctx, signalMessage); err != nil {
			slog.Error("handle message", slog.Any(constant.ClientID, clientID), slog.Any(constant.Error, err))
		}
	}
}

func (h *WebSocketHandler) handleMessage(
	ctx context.Context,
	msg *events.Message,
) error {
	clientID, ok := appctx.ClientID(ctx)
	if !ok {
		return fmt.Errorf("get client id from context")
	}

	metric.IncSignalingMessage(metricLabel(msg.Type))

	switch msg.Type {
	case events.TypeJoin:
		var joinEvent events.JoinEvent

		if err := h.decode(ctx, clientID, msg, &joinEvent); err != nil {
			return err
		}

		if err := h.signalingUsecase.HandleJoin(ctx, clientID, joinEvent); err != nil {
			return fmt.Errorf("handle join: %w", err)
		}

	case events.TypeLeave:
		if err := h.signalingUsecase.HandleLeave(ctx, clientID); err != nil {
			return fmt.Errorf("handle leave: %w", err)
		}

	case events.TypeOffer:
		var offer events.SdpEvent

		if err := h.decode(ctx, clientID, msg, &offer); err != nil {
			return err
		}

		if err := h.signalingUsecase.HandleOffer(ctx, clientID, offer); err != nil {
			return fmt.Errorf("handle offer: %w", err)
		}

	case events.TypeAnswer:
		var answer events.SdpEvent

		if err := h.decode(ctx, clientID, msg, &answer); err != nil {
			return err
		}

		if err := h.signalingUsecase.HandleAnswer(ctx, clientID, answer); err != nil {
			return fmt.Errorf("handle answer: %w", err)
		}

	case events.TypeIceCandidate:
		var candidate events.IceCandidateEvent

		if err := h.decode(ctx, clientID, msg, &candidate); err != nil {
			return err
		}

		if err := h.signalingUsecase.HandleCandidate(ctx, clientID, candidate); err != nil {
			return fmt.Errorf("handle ice candidate: %w", err)
		}

	case events.TypePing:
		h.signalingUsecase.HandlePing(ctx, clientID)

	default:
		h.signalingUsecase.SendError(ctx, clientID, "unknown message type")
		return fmt.Errorf("unknown message type %q", msg.Type)
	}

	return nil
}

func (h *WebSocketHandler) decode(ctx context.Context, clientID uuid.UUID, msg *events.Message, v any) error {
	if len(msg.Data) == 0 {
		h.signalingUsecase.SendError(ctx, clientID, "malformed "+msg.Type)
		return fmt.Errorf("empty %s data", msg.Type)
	}

	if err := json.Unmarshal(msg.Data, v); err != nil {
		h.signalingUsecase.SendError(ctx, clientID, "malformed "+msg.Type)
		return fmt.Errorf("unmarshal %s: %w", msg.Type, err)
	}

	return nil
}

func burst(perSecond float64) int {
	if perSecond < 1 {
		return 1
	}

	return int(perSecond)
}

func metricLabel(msgType string) string {
	switch msgType {
	case events.TypeJoin, events.TypeLeave, events.TypeOffer, events.TypeAnswer, events.TypeIceCandidate, events.TypePing:
		return msgType
	default:
		return "unknown"
	}
}
