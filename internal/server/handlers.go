// internal/server/handlers.go

package server

import (
	"embed"
	"io/fs"
	"net/http"

	"chessBlocker/internal/models"
	"chessBlocker/internal/orchestrator"

	"github.com/gin-gonic/gin"
)

//go:embed static/*
var embeddedStatic embed.FS

type actionResponse struct {
	Success bool                      `json:"success"`
	Message string                    `json:"message"`
	Output  string                    `json:"output,omitempty"`
	RunID   string                    `json:"runId"`
	Kills   []orchestrator.KillResult `json:"kills,omitempty"`
}

func (s *Server) registerControlRoutes() {
	s.router.GET("/", s.index)

	api := s.router.Group("/api")
	api.Use(bearerAuth(s.cfg.APIToken))
	api.POST("/block", s.action(models.IntentBlock))
	api.POST("/allow", s.action(models.IntentAllow))
	api.GET("/status", s.status)
	api.GET("/status/ws", s.statusFeed)
	api.GET("/remote", s.remote)
}

func (s *Server) index(c *gin.Context) {
	page, err := fs.ReadFile(embeddedStatic, "static/index.html")
	if err != nil {
		c.String(http.StatusInternalServerError, "index missing")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

// action runs synchronously: the response reports the outcome.
func (s *Server) action(intent models.Intent) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := s.runner.Run(s.runContext(), intent)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, actionResponse{
			Success: true,
			Message: result.Message,
			Output:  result.Output,
			RunID:   result.RunID,
			Kills:   result.Kills,
		})
	}
}

// status answers with all fields null until the first run.
func (s *Server) status(c *gin.Context) {
	current, ok := s.runner.Status().Get()
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"runId":      nil,
			"actionType": nil,
			"state":      nil,
			"message":    nil,
			"timestamp":  nil,
		})
		return
	}
	c.JSON(http.StatusOK, current)
}

func (s *Server) remote(c *gin.Context) {
	inspection, err := s.runner.Inspect(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inspection)
}
