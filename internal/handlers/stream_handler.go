package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/reconciler"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/service"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	intentTimeout    = 15 * time.Second
)

// Intents a notification stream client may send.
const (
	IntentMarkRead    = "markRead"
	IntentMarkAllRead = "markAllRead"
	IntentRefresh     = "refresh"
)

type streamIntent struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

type streamMessage struct {
	Type   string   `json:"type"`
	Intent string   `json:"intent,omitempty"`
	Data   any      `json:"data,omitempty"`
	Error  string   `json:"error,omitempty"`
	Failed []string `json:"failed,omitempty"`
}

// StreamHandler serves the live consumer surface over websockets. Every
// connection gets its own reconciler, so two tabs of the same user hold
// independent projections.
type StreamHandler struct {
	newNotifications func() *reconciler.NotificationReconciler
	newImpact        func() *reconciler.ImpactReconciler
	optimistic       bool
	upgrader         websocket.Upgrader
}

func NewStreamHandler(newNotifications func() *reconciler.NotificationReconciler, newImpact func() *reconciler.ImpactReconciler, optimistic bool) *StreamHandler {
	return &StreamHandler{
		newNotifications: newNotifications,
		newImpact:        newImpact,
		optimistic:       optimistic,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// RegisterStreamRoutes registers the websocket routes. Notifications need an
// authenticated group; the impact stream is public.
func (h *StreamHandler) RegisterStreamRoutes(authed, public *echo.Group) {
	authed.GET("/notifications", h.Notifications)
	public.GET("/impact", h.Impact)
}

// Notifications streams the caller's notification snapshot after every
// change and accepts markRead, markAllRead and refresh intents.
func (h *StreamHandler) Notifications(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	r := h.newNotifications()
	defer r.Stop()
	center := reconciler.NewNotificationCenter(r)
	center.Optimistic = h.optimistic

	out := make(chan streamMessage, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		writePump(ctx, conn, r.Changes(), func() any { return center.Snapshot() }, out)
	}()

	if err := r.Start(ctx, userID); err != nil {
		log.Printf("[ws] Seeding notifications for %s failed: %v", userID, err)
	}

	readPump(conn, func(raw []byte) {
		var intent streamIntent
		if err := json.Unmarshal(raw, &intent); err != nil {
			send(ctx, out, streamMessage{Type: "error", Error: "malformed intent"})
			return
		}
		send(ctx, out, handleIntent(ctx, center, intent))
	})
	cancel()
	<-done
	return nil
}

func handleIntent(ctx context.Context, center *reconciler.NotificationCenter, intent streamIntent) streamMessage {
	ctx, cancel := context.WithTimeout(ctx, intentTimeout)
	defer cancel()

	var err error
	switch intent.Type {
	case IntentMarkRead:
		err = center.MarkNotificationAsRead(ctx, intent.ID)
	case IntentMarkAllRead:
		err = center.MarkAllNotificationsAsRead(ctx)
	case IntentRefresh:
		err = center.RefreshNotifications(ctx)
	default:
		return streamMessage{Type: "error", Intent: intent.Type, Error: "unknown intent"}
	}
	if err == nil {
		return streamMessage{Type: "ack", Intent: intent.Type}
	}

	msg := streamMessage{Type: "error", Intent: intent.Type, Error: intentError(err)}
	var partial *service.PartialBatchFailure
	if errors.As(err, &partial) {
		msg.Failed = partial.Failed
	}
	return msg
}

func intentError(err error) string {
	switch {
	case errors.Is(err, service.ErrPartialBatchFailure):
		return "some notifications could not be marked as read"
	case errors.Is(err, service.ErrNotFound):
		return "notification not found"
	case errors.Is(err, service.ErrInvalidInput):
		return err.Error()
	case errors.Is(err, service.ErrRemoteUnavailable):
		return "data store unavailable, please retry"
	}
	log.Printf("[ws] Intent failed: %v", err)
	return "request failed"
}

// Impact streams the dashboard snapshot. Clients may send a refresh intent.
func (h *StreamHandler) Impact(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	r := h.newImpact()
	defer r.Stop()

	out := make(chan streamMessage, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		writePump(ctx, conn, r.Changes(), func() any { return r.Snapshot() }, out)
	}()

	if err := r.Start(ctx); err != nil {
		log.Printf("[ws] Seeding impact dashboard failed: %v", err)
	}

	readPump(conn, func(raw []byte) {
		var intent streamIntent
		if json.Unmarshal(raw, &intent) != nil || intent.Type != IntentRefresh {
			send(ctx, out, streamMessage{Type: "error", Intent: intent.Type, Error: "unknown intent"})
			return
		}
		refreshCtx, cancelRefresh := context.WithTimeout(ctx, intentTimeout)
		defer cancelRefresh()
		if err := r.Refresh(refreshCtx); err != nil {
			send(ctx, out, streamMessage{Type: "error", Intent: IntentRefresh, Error: intentError(err)})
			return
		}
		send(ctx, out, streamMessage{Type: "ack", Intent: IntentRefresh})
	})
	cancel()
	<-done
	return nil
}

func send(ctx context.Context, out chan<- streamMessage, msg streamMessage) {
	select {
	case out <- msg:
	case <-ctx.Done():
	}
}

// writePump owns every write to conn: snapshots on change, replies, pings.
// It closes conn on exit so a blocked readPump returns too.
func writePump(ctx context.Context, conn *websocket.Conn, changes <-chan struct{}, snapshot func() any, out <-chan streamMessage) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	write := func(v any) error {
		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteJSON(v)
	}
	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-changes:
			if err := write(streamMessage{Type: "snapshot", Data: snapshot()}); err != nil {
				return
			}
		case msg := <-out:
			if err := write(msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump hands every text frame to handle until the connection closes.
func readPump(conn *websocket.Conn, handle func([]byte)) {
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(streamPongWait))
		return nil
	})
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] Read error: %v", err)
			}
			return
		}
		handle(raw)
	}
}
