// internal/server/webhook.go

package server

import (
	"errors"
	"io"
	"net/http"

	"chessBlocker/internal/apperror"
	"chessBlocker/internal/intent"
	"chessBlocker/internal/models"

	"github.com/gin-gonic/gin"
)

type webhookRequest struct {
	Message  string   `json:"message"`
	Title    string   `json:"title"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
}

func (s *Server) registerWebhookRoutes() {
	s.router.POST("/ntfy-webhook", signatureAuth(s.cfg.WebhookSecret), s.webhook)
}

// webhook acknowledges once the run holds the run lock, before it
// finishes; the run's outcome only reaches the logs and the status store.
func (s *Server) webhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, apperror.New(apperror.BadRequest, "invalid JSON body", err))
		return
	}

	decided := intent.Parse(req.Message, req.Tags)
	logger := s.logger.With("title", req.Title, "priority", req.Priority, "tags", req.Tags)

	if decided == models.IntentUnrecognized {
		logger.Info("webhook ignored", "message", req.Message)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := s.runAsync(decided, "webhook"); err != nil {
		if !apperror.Is(err, apperror.Busy) {
			writeError(c, err)
			return
		}
		logger.Warn("webhook rejected, action in progress", "action", decided.String())
		c.JSON(http.StatusConflict, gin.H{
			"status": "busy",
			"action": decided.Progressive(),
			"code":   apperror.Busy.String(),
		})
		return
	}

	logger.Info("webhook accepted", "action", decided.String())
	c.JSON(http.StatusOK, gin.H{"status": "accepted", "action": decided.Progressive()})
}
