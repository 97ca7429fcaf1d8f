// Package stream serves the live incident feed over WebSocket.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"sosnet/internal/broker"
	"sosnet/internal/config"
	"sosnet/internal/domain"
	"sosnet/pkg/e"
)

const maxMessageBytes = 4 << 10

type Subscriber interface {
	Subscribe(ctx context.Context, subscriberID string, box domain.BoundingBox, since int64) (*broker.Subscription, error)
	UpdateViewport(id uuid.UUID, box domain.BoundingBox) error
	Unsubscribe(id uuid.UUID)
}

type Handler struct {
	logger   *slog.Logger
	broker   Subscriber
	cfg      config.BrokerConfig
	upgrader websocket.Upgrader

	closing   chan struct{}
	closeOnce sync.Once
}

func NewHandler(logger *slog.Logger, b Subscriber, cfg config.BrokerConfig) *Handler {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.PongWait {
		cfg.PingInterval = cfg.PongWait * 9 / 10
	}
	return &Handler{
		logger: logger,
		broker: b,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		closing: make(chan struct{}),
	}
}

// Close ends every open stream. It is safe to call more than once.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.closing) })
}

func (h *Handler) log(r *http.Request) *slog.Logger {
	reqID := chimw.GetReqID(r.Context())
	if reqID == "" {
		return h.logger
	}
	return h.logger.With(slog.String("request_id", reqID))
}

// Stream serves GET /incidents/stream?bbox=&since=. The subscription is
// registered before the upgrade so a failed backfill still gets an HTTP
// status.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)

	q := r.URL.Query()
	box, err := domain.ParseBoundingBox(q.Get("bbox"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	since := int64(-1)
	if s := q.Get("since"); s != "" {
		since, err = strconv.ParseInt(s, 10, 64)
		if err != nil || since < 0 {
			h.writeError(w, http.StatusBadRequest, e.NewValidationError("since", "must be a non-negative sequence"))
			return
		}
	}
	subscriberID := q.Get("subscriberId")
	if subscriberID == "" {
		subscriberID = r.RemoteAddr
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := h.broker.Subscribe(ctx, subscriberID, box, since)
	if err != nil {
		l.Error("subscribe failed", slog.Any("error", err))
		h.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	defer h.broker.Unsubscribe(sub.ID)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	l = l.With(slog.String("subscription_id", sub.ID.String()), slog.String("subscriber_id", subscriberID))
	l.Info("stream opened", slog.String("bbox", box.String()), slog.Int64("since", since))

	c := &client{
		conn:    conn,
		sub:     sub,
		broker:  h.broker,
		cfg:     h.cfg,
		logger:  l,
		control: make(chan serverMessage, 8),
		closing: h.closing,
	}
	go c.readPump(cancel)
	c.writePump(ctx)

	l.Info("stream closed")
}

func (h *Handler) writeError(w http.ResponseWriter, code int, err error) {
	body := map[string]string{"error": err.Error()}
	var verr *e.ValidationError
	if errors.As(err, &verr) {
		body = map[string]string{"field": verr.Field, "reason": verr.Reason}
	} else if errors.Is(err, e.ErrStoreUnavailable) || code == http.StatusServiceUnavailable {
		body = map[string]string{"error": "store unavailable"}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("json encode failed", slog.Any("error", err))
	}
}

type clientMessage struct {
	Type string `json:"type"`
	BBox string `json:"bbox"`
}

type serverMessage struct {
	Type           string                `json:"type"`
	SubscriptionID string                `json:"subscriptionId,omitempty"`
	Event          *domain.IncidentEvent `json:"event,omitempty"`
	BBox           string                `json:"bbox,omitempty"`
	Error          string                `json:"error,omitempty"`
	Field          string                `json:"field,omitempty"`
	Reason         string                `json:"reason,omitempty"`
	Resnapshot     bool                  `json:"resnapshot,omitempty"`
}

const (
	msgSubscribed = "subscribed"
	msgEvent      = "event"
	msgViewport   = "viewport"
	msgError      = "error"
	msgOverflow   = "overflow"
)

type client struct {
	conn    *websocket.Conn
	sub     *broker.Subscription
	broker  Subscriber
	cfg     config.BrokerConfig
	logger  *slog.Logger
	control chan serverMessage
	closing <-chan struct{}
}

// readPump handles viewport changes until the peer goes away.
func (c *client) readPump(cancel context.CancelFunc) {
	defer cancel()

	c.conn.SetReadLimit(maxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("stream read failed", slog.Any("error", err))
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != msgViewport {
			c.reply(serverMessage{Type: msgError, Error: "unsupported message"})
			continue
		}

		box, err := domain.ParseBoundingBox(msg.BBox)
		if err == nil {
			err = c.broker.UpdateViewport(c.sub.ID, box)
		}
		var verr *e.ValidationError
		switch {
		case errors.As(err, &verr):
			c.reply(serverMessage{Type: msgError, Field: verr.Field, Reason: verr.Reason})
		case err != nil:
			return
		default:
			c.logger.Debug("viewport changed", slog.String("bbox", box.String()))
			c.reply(serverMessage{Type: msgViewport, BBox: box.String(), Resnapshot: true})
		}
	}
}

func (c *client) reply(msg serverMessage) {
	select {
	case c.control <- msg:
	default:
		c.logger.Warn("control reply dropped", slog.String("type", msg.Type))
	}
}

// writePump is the only writer on the connection.
func (c *client) writePump(ctx context.Context) {
	ping := time.NewTicker(c.cfg.PingInterval)
	defer ping.Stop()

	if err := c.write(serverMessage{Type: msgSubscribed, SubscriptionID: c.sub.ID.String()}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			c.close(websocket.CloseGoingAway, "")
			return

		case <-c.closing:
			c.close(websocket.CloseGoingAway, "server shutting down")
			return

		case <-c.sub.Done():
			if err := c.sub.Err(); errors.Is(err, e.ErrSubscriberOverflow) {
				_ = c.write(serverMessage{Type: msgOverflow, Error: err.Error(), Resnapshot: true})
				c.close(websocket.ClosePolicyViolation, "subscriber overflow")
				return
			}
			c.close(websocket.CloseNormalClosure, "")
			return

		case ev := <-c.sub.Events():
			if err := c.write(serverMessage{Type: msgEvent, Event: &ev}); err != nil {
				c.logger.Debug("stream write failed", slog.Any("error", err))
				return
			}

		case msg := <-c.control:
			if err := c.write(msg); err != nil {
				return
			}

		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) write(msg serverMessage) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteJSON(msg)
}

func (c *client) close(code int, text string) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
}
