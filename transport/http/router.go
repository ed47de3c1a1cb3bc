package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sproutgame/sprout-server/service"
)

// SetupRouter sets up the Gin router with the public API surface.
func SetupRouter(auth *service.AuthService, claims *service.ClaimService, log *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log))

	authHandlers := NewAuthHandlers(auth)
	claimHandlers := NewClaimHandlers(claims)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Unauthenticated login flow.
	siwe := router.Group("/auth/siwe")
	{
		siwe.GET("/nonce", authHandlers.Nonce)
		siwe.POST("/verify", authHandlers.Verify)
	}

	// Session lifecycle behind the bearer check.
	session := router.Group("/auth")
	session.Use(AuthMiddleware(auth))
	{
		session.POST("/logout", authHandlers.Logout)
		session.POST("/logout-all", authHandlers.LogoutAll)
		session.GET("/me", authHandlers.Me)
	}

	claim := router.Group("/claim")
	claim.Use(AuthMiddleware(auth))
	{
		claim.POST("/signature", claimHandlers.Signature)
		claim.POST("/record", claimHandlers.Record)
		claim.GET("/history", claimHandlers.History)
	}

	return router
}
