package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dtroode/fieldops/internal/model"
	"github.com/dtroode/fieldops/internal/queue"
	"github.com/dtroode/fieldops/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxClientFrame = 512
)

type snapshotFrame struct {
	Type  string         `json:"type"`
	Tasks model.Snapshot `json:"tasks"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// feed upgrades to a WebSocket and streams every task snapshot as a JSON
// text frame until the client leaves or the access token expires.
func (h *Handler) feed(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Web handler: websocket upgrade failed",
			"error", err.Error())
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events := queue.New[service.FeedEvent]()
	feed, err := h.feeds.Open(ctx, identity, events.Push)
	if err != nil {
		h.logger.Error("Web handler: failed to open task feed",
			"user_id", identity.UserID,
			"error", err.Error())
		closeConn(conn, websocket.CloseInternalServerErr, "failed to open feed")
		return
	}
	defer func() { _ = feed.Close() }()

	h.logger.Debug("Web handler: task feed opened",
		"user_id", identity.UserID,
		"feed_id", feed.ID())

	revoked, release := h.sessions.add(accessTokenFrom(r.Context()))
	defer release()

	go readUntilClosed(conn, cancel)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	var expired <-chan time.Time
	if !identity.ExpiresAt.IsZero() {
		timer := time.NewTimer(time.Until(identity.ExpiresAt))
		defer timer.Stop()
		expired = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			closeConn(conn, websocket.CloseGoingAway, "")
			return
		case <-expired:
			endSession(conn, "access token expired")
			return
		case <-revoked:
			endSession(conn, "signed out")
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-events.Ready():
			for {
				event, ok := events.TryPop()
				if !ok {
					break
				}
				if err := writeFrame(conn, frameFor(event)); err != nil {
					h.logger.Debug("Web handler: task feed write failed",
						"feed_id", feed.ID(),
						"undelivered", events.Len(),
						"error", err.Error())
					return
				}
			}
		}
	}
}

func frameFor(event service.FeedEvent) any {
	if event.Err != nil {
		return errorFrame{
			Type:    "error",
			Reason:  string(event.Err.Reason),
			Message: event.Err.Error(),
		}
	}

	tasks := event.Snapshot
	if tasks == nil {
		tasks = model.Snapshot{}
	}
	return snapshotFrame{Type: "snapshot", Tasks: tasks}
}

func writeFrame(conn *websocket.Conn, frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// endSession tells the client its session is over and closes the socket.
func endSession(conn *websocket.Conn, message string) {
	_ = writeFrame(conn, errorFrame{
		Type:    "error",
		Reason:  string(model.AuthReasonSessionExpired),
		Message: message,
	})
	closeConn(conn, websocket.ClosePolicyViolation, "session expired")
}

func closeConn(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// readUntilClosed discards client frames and cancels once the peer goes away.
func readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(maxClientFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
