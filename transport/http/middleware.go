package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sproutgame/sprout-server/core"
	"github.com/sproutgame/sprout-server/service"
)

// Context keys the auth middleware populates for downstream handlers.
const (
	contextKeySession = "session"
	contextKeyToken   = "sessionToken"
)

// AuthMiddleware validates the bearer token through both session checks and
// makes the session available to handlers.
func AuthMiddleware(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")

		if len(header) < 8 || header[:7] != "Bearer " {
			abortWithError(c, core.ErrUnauthorized)
			return
		}
		token := header[7:]

		session, err := auth.ValidateToken(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(contextKeySession, session)
		c.Set(contextKeyToken, token)

		c.Next()
	}
}

// RequestLogger logs every request with its status and latency.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.InfoContext(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// sessionFromContext returns the session placed by AuthMiddleware.
func sessionFromContext(c *gin.Context) (*core.Session, bool) {
	value, ok := c.Get(contextKeySession)
	if !ok {
		return nil, false
	}
	session, ok := value.(*core.Session)
	return session, ok
}

// tokenFromContext returns the raw bearer token placed by AuthMiddleware.
func tokenFromContext(c *gin.Context) (string, bool) {
	value, ok := c.Get(contextKeyToken)
	if !ok {
		return "", false
	}
	token, ok := value.(string)
	return token, ok
}
