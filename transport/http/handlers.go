// Package http is the gin transport over the auth and claim services.
package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sproutgame/sprout-server/core"
	"github.com/sproutgame/sprout-server/service"
)

// AuthHandlers contains HTTP handlers for the wallet authentication
// endpoints.
type AuthHandlers struct {
	auth *service.AuthService
}

// NewAuthHandlers creates new auth handlers.
func NewAuthHandlers(auth *service.AuthService) *AuthHandlers {
	return &AuthHandlers{auth: auth}
}

// Nonce handles the login nonce request.
func (h *AuthHandlers) Nonce(c *gin.Context) {
	nonce, err := h.auth.Nonce(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nonce":     nonce.Value,
		"expiresIn": int(nonce.ExpiresAt.Sub(nonce.IssuedAt).Seconds()),
	})
}

// Verify handles the signed-message verification request and issues the
// session on success.
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		Message   string `json:"message" binding:"required"`
		Signature string `json:"signature" binding:"required"`
		Address   string `json:"address" binding:"required"`
		Nonce     string `json:"nonce" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errInvalidBody)
		return
	}

	result, err := h.auth.Verify(c.Request.Context(), req.Message, req.Signature, req.Address, req.Nonce)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"isNewUser": result.IsNewUser,
		"token":     result.Token,
		"user":      result.User,
		"expiresAt": result.ExpiresAt.UTC(),
	})
}

// Logout revokes the session behind the presented bearer token.
func (h *AuthHandlers) Logout(c *gin.Context) {
	token, ok := tokenFromContext(c)
	if !ok {
		respondError(c, core.ErrUnauthorized)
		return
	}

	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// LogoutAll revokes every session of the authenticated user.
func (h *AuthHandlers) LogoutAll(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		respondError(c, core.ErrUnauthorized)
		return
	}

	if err := h.auth.LogoutAll(c.Request.Context(), session); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out everywhere"})
}

// Me returns the authenticated user.
func (h *AuthHandlers) Me(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		respondError(c, core.ErrUnauthorized)
		return
	}

	user, err := h.auth.User(c.Request.Context(), session)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// ClaimHandlers contains HTTP handlers for the token claim endpoints.
type ClaimHandlers struct {
	claims *service.ClaimService
}

// NewClaimHandlers creates new claim handlers.
func NewClaimHandlers(claims *service.ClaimService) *ClaimHandlers {
	return &ClaimHandlers{claims: claims}
}

// Signature authorizes a claim and returns the detached signature the
// client submits to the verifier contract.
func (h *ClaimHandlers) Signature(c *gin.Context) {
	var req struct {
		ClaimType string `json:"claimType" binding:"required"`
		Score     int64  `json:"score"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errInvalidBody)
		return
	}

	session, ok := sessionFromContext(c)
	if !ok {
		respondError(c, core.ErrUnauthorized)
		return
	}

	signed, err := h.claims.Authorize(c.Request.Context(), session, core.ClaimKind(req.ClaimType), req.Score)
	if err != nil {
		respondError(c, err)
		return
	}

	// Amount, nonce and deadline travel as decimal strings: amounts are
	// 256-bit wei values and JSON numbers round-trip badly past 2^53.
	c.JSON(http.StatusOK, gin.H{
		"signature":       signed.Signature,
		"amount":          signed.Amount.String(),
		"claimType":       signed.Kind,
		"nonce":           signed.Nonce.String(),
		"deadline":        strconv.FormatInt(signed.Deadline.Unix(), 10),
		"contractAddress": signed.ContractAddress,
	})
}

// Record stores a client-reported claim transaction in the audit trail.
func (h *ClaimHandlers) Record(c *gin.Context) {
	var req struct {
		ClaimType string `json:"claimType" binding:"required"`
		Amount    string `json:"amount" binding:"required"`
		TxHash    string `json:"txHash" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errInvalidBody)
		return
	}

	session, ok := sessionFromContext(c)
	if !ok {
		respondError(c, core.ErrUnauthorized)
		return
	}

	claim, err := h.claims.Record(c.Request.Context(), session, core.ClaimKind(req.ClaimType), req.Amount, req.TxHash)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"claimId": claim.ID,
		"message": "claim transaction recorded",
	})
}

// History lists the user's claim audit rows, newest first.
func (h *ClaimHandlers) History(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		respondError(c, core.ErrUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	claims, err := h.claims.History(c.Request.Context(), session, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"claims": claims})
}
