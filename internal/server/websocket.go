// internal/server/websocket.go

package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"chessBlocker/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	statusWriteTimeout = 5 * time.Second
	statusPingInterval = 30 * time.Second
)

var statusUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

// statusFeed pushes the current status once and then every change.
func (s *Server) statusFeed(c *gin.Context) {
	conn, err := statusUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	updates, cancel := s.runner.Status().Subscribe()
	defer cancel()

	if current, ok := s.runner.Status().Get(); ok {
		if err := writeStatus(conn, current); err != nil {
			return
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(statusPingInterval)
	defer ping.Stop()

	// hijacked connections are not closed by http.Server.Shutdown
	stop := s.runContext().Done()

	for {
		select {
		case status, ok := <-updates:
			if !ok {
				return
			}
			if err := writeStatus(conn, status); err != nil {
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(statusWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-done:
			return
		case <-stop:
			return
		}
	}
}

func writeStatus(conn *websocket.Conn, status models.ActionStatus) error {
	_ = conn.SetWriteDeadline(time.Now().Add(statusWriteTimeout))
	return conn.WriteJSON(status)
}
