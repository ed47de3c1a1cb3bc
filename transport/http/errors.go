package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sproutgame/sprout-server/core"
)

// statusOf maps stable error codes to HTTP statuses. Nonce and signature
// failures are 401s: from the client's perspective they all mean "this
// authentication attempt is not accepted, start over".
func statusOf(code core.Code) int {
	switch code {
	case core.CodeInvalidRequest, core.CodeNonceMismatch, core.CodeInvalidScore:
		return http.StatusBadRequest
	case core.CodeInvalidNonce, core.CodeInvalidSignature, core.CodeSessionExpired, core.CodeUnauthorized:
		return http.StatusUnauthorized
	case core.CodeDuplicateClaim:
		return http.StatusConflict
	case core.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// envelope is the error body every endpoint returns: a stable code clients
// branch on and a human-readable message. Causes never leave the server.
func envelope(err error) (int, gin.H) {
	var appErr *core.AppError
	if !errors.As(err, &appErr) {
		appErr = core.NewError(core.CodeInternal, "internal error")
	}
	return statusOf(appErr.Code), gin.H{"code": appErr.Code, "message": appErr.Message}
}

func respondError(c *gin.Context, err error) {
	status, body := envelope(err)
	c.JSON(status, body)
}

func abortWithError(c *gin.Context, err error) {
	status, body := envelope(err)
	c.AbortWithStatusJSON(status, body)
}

var errInvalidBody = core.NewError(core.CodeInvalidRequest, "invalid request body")
