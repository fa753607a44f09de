package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"jadwa/internal/domain"
	"jadwa/internal/pkg/response"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 512 * 1024 // 512 KB
	opTimeout  = 10 * time.Second
)

// WSHandler serves GET /ws/chat. A client may pass ?token= to authenticate
// during the handshake or send an authenticate event afterwards.
type WSHandler struct {
	relay    *Relay
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(relay *Relay, allowedOrigins []string, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		relay:  relay,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker admits any origin when none are configured.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	var identity *domain.Identity
	if token := c.Query("token"); token != "" {
		var err error
		identity, err = h.relay.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			return
		}
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	conn := h.relay.NewConn()
	if identity != nil {
		_ = h.relay.Attach(conn, identity)
	}
	h.logger.Info("websocket connected", "conn_id", conn.ID(), "authenticated", identity != nil)

	go h.writePump(ws, conn)
	h.readPump(c.Request.Context(), ws, conn)
}

func (h *WSHandler) readPump(ctx context.Context, ws *websocket.Conn, conn *Conn) {
	defer func() {
		h.relay.Disconnect(conn)
		_ = ws.Close()
		h.logger.Info("websocket disconnected", "conn_id", conn.ID())
	}()

	ws.SetReadLimit(maxMsgSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "conn_id", conn.ID(), "error", err)
			}
			return
		}
		if conn.Closed() {
			return
		}

		var ev ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			h.reply(conn, NewErrorEvent("INVALID_JSON", "Failed to parse message"))
			continue
		}
		h.dispatch(ctx, conn, ev)
	}
}

func (h *WSHandler) dispatch(parent context.Context, conn *Conn, ev ClientEvent) {
	ctx, cancel := context.WithTimeout(parent, opTimeout)
	defer cancel()

	switch ev.Type {
	case EventAuthenticate:
		identity, err := h.relay.Authenticate(ctx, conn, ev.Token)
		if err != nil {
			h.replyErr(conn, err)
			return
		}
		h.reply(conn, &ServerEvent{Type: EventAuthenticated, UserID: identity.UserID})

	case EventSubscribe:
		if err := h.relay.Subscribe(ctx, conn, ev.ConsultationID); err != nil {
			h.replyErr(conn, err)
			return
		}
		h.reply(conn, &ServerEvent{Type: EventSubscribed, ConsultationID: ev.ConsultationID})

	case EventUnsubscribe:
		h.relay.Unsubscribe(conn, ev.ConsultationID)
		h.reply(conn, &ServerEvent{Type: EventUnsubscribed, ConsultationID: ev.ConsultationID})

	case EventSend:
		// Success is acknowledged by the broadcast reaching this connection.
		_, err := h.relay.Send(ctx, conn, SendInput{
			ConsultationID: ev.ConsultationID,
			Body:           ev.Message,
			FileURL:        ev.FileURL,
			FileName:       ev.FileName,
		})
		if err != nil {
			h.replyErr(conn, err)
		}

	case EventMarkRead:
		if err := h.relay.MarkRead(ctx, conn.Identity(), ev.MessageID); err != nil {
			h.replyErr(conn, err)
			return
		}
		h.reply(conn, &ServerEvent{Type: EventRead, MessageID: ev.MessageID})

	case EventPing:
		h.reply(conn, &ServerEvent{Type: EventPong})

	default:
		h.reply(conn, NewErrorEvent("UNKNOWN_TYPE", "Unknown message type: "+ev.Type))
	}
}

func (h *WSHandler) replyErr(conn *Conn, err error) {
	kind := domain.KindOf(err)
	switch kind {
	case domain.KindPersistence:
		h.reply(conn, NewErrorEvent(string(kind), "message could not be stored, please resend"))
	case domain.KindInternal:
		h.logger.Error("websocket operation failed", "conn_id", conn.ID(), "error", err)
		h.reply(conn, NewErrorEvent(string(kind), "internal server error"))
	default:
		h.reply(conn, NewErrorEvent(string(kind), response.PublicMessage(err)))
	}
}

func (h *WSHandler) reply(conn *Conn, ev *ServerEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encode websocket event", "type", ev.Type, "error", err)
		return
	}
	if !conn.Deliver(payload) {
		h.relay.Disconnect(conn)
	}
}

func (h *WSHandler) writePump(ws *websocket.Conn, conn *Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case msg := <-conn.Outbound():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.relay.Disconnect(conn)
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.relay.Disconnect(conn)
				return
			}
		case <-conn.Done():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
