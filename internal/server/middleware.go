// internal/server/middleware.go

package server

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chessBlocker/internal/apperror"

	"github.com/gin-gonic/gin"
)

const maxBodyBytes = 1 << 20

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", method,
			"path", path,
			"status", status,
			"duration", time.Since(start).String(),
			"ip", c.ClientIP(),
		}
		if status >= http.StatusInternalServerError {
			logger.Warn("request", attrs...)
			return
		}
		logger.Debug("request", attrs...)
	}
}

// bearerAuth guards the API with a static token. An empty token disables it.
// Browsers cannot set headers on websocket upgrades, so ?token= is accepted too.
func bearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		provided := c.Query("token")
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			provided = strings.TrimPrefix(header, "Bearer ")
		}
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			writeError(c, apperror.New(apperror.Unauthorized, "missing or invalid API token", nil))
			return
		}
		c.Next()
	}
}

// signatureAuth verifies X-Signature-256: sha256=<hex hmac of body>.
// An empty secret disables it.
func signatureAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil {
			writeError(c, apperror.New(apperror.BadRequest, "failed to read body", err))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		signature := c.GetHeader("X-Signature-256")
		if signature == "" {
			writeError(c, apperror.New(apperror.Unauthorized, "missing signature", nil))
			return
		}
		if !verifyHMAC(body, secret, signature) {
			writeError(c, apperror.New(apperror.Unauthorized, "invalid signature", nil))
			return
		}
		c.Next()
	}
}

func verifyHMAC(body []byte, secret, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func writeError(c *gin.Context, err error) {
	message := err.Error()
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	c.AbortWithStatusJSON(apperror.HTTPStatus(err), errorResponse{
		Success: false,
		Message: message,
		Error:   err.Error(),
		Code:    apperror.TypeOf(err).String(),
	})
}
