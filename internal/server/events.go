package server

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

func (s *Server) upgrader() websocket.Upgrader {
	allowed := s.cfg.Server.AllowedOrigin
	u := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
	}
	if len(allowed) > 0 {
		// nil CheckOrigin keeps gorilla's same-host check
		u.CheckOrigin = func(r *http.Request) bool {
			if slices.Contains(allowed, "*") {
				return true
			}
			return slices.Contains(allowed, r.Header.Get("Origin"))
		}
	}
	return u
}

// handleEvents streams a snapshot on connect and after every change
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.service.Subscribe()
	defer unsubscribe()

	// The client never sends anything we act on; reading detects the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					slog.Debug("WebSocket read error", "remote", r.RemoteAddr, "error", err)
				}
				return
			}
		}
	}()

	if err := writeJSON(conn, s.service.Snapshot()); err != nil {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "deck closed"),
					time.Now().Add(writeTimeout))
				return
			}
			if err := writeJSON(conn, snap); err != nil {
				slog.Debug("WebSocket write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := conn.WriteJSON(v)
	conn.SetWriteDeadline(time.Time{})
	return err
}
