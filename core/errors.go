package core

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable error identifier. Codes are part of the
// API contract: clients branch on them, so existing values never change.
type Code string

const (
	CodeInvalidRequest   Code = "INVALID_REQUEST"
	CodeNonceMismatch    Code = "NONCE_MISMATCH"
	CodeInvalidNonce     Code = "INVALID_NONCE"
	CodeInvalidSignature Code = "INVALID_SIGNATURE"
	CodeSessionExpired   Code = "SESSION_EXPIRED"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeDuplicateClaim   Code = "DUPLICATE_CLAIM"
	CodeInvalidScore     Code = "INVALID_SCORE"
	CodeNotFound         Code = "NOT_FOUND"
	CodeInternal         Code = "INTERNAL"
)

// AppError pairs a stable code with a human-readable message. The wrapped
// cause is for server-side logs only and is never serialized to clients.
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches AppErrors by code, so a wrapped copy of a sentinel still
// compares equal to the sentinel under errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError returns a fresh AppError with the given code and message.
func NewError(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// WrapError keeps a sentinel's code and message while recording a cause.
func WrapError(sentinel *AppError, cause error) *AppError {
	return &AppError{Code: sentinel.Code, Message: sentinel.Message, Cause: cause}
}

// CodeOf extracts the stable code from err, or CodeInternal when err is not
// an AppError.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

var (
	// ErrNonceMismatch is returned when the nonce embedded in the signed
	// message differs from the nonce supplied alongside it.
	ErrNonceMismatch = NewError(CodeNonceMismatch, "message nonce does not match supplied nonce")

	// ErrInvalidNonce is returned when a nonce is unknown, already consumed,
	// or past its expiry.
	ErrInvalidNonce = NewError(CodeInvalidNonce, "invalid or expired nonce")

	// ErrInvalidSignature is returned when no verification path accepted the
	// signature.
	ErrInvalidSignature = NewError(CodeInvalidSignature, "signature verification failed")

	// ErrSessionExpired is returned when a token's own expiry has passed or
	// the server-side session record is inactive or expired.
	ErrSessionExpired = NewError(CodeSessionExpired, "session expired or revoked")

	// ErrUnauthorized is returned when no usable bearer token accompanies a
	// protected request.
	ErrUnauthorized = NewError(CodeUnauthorized, "authentication required")

	// ErrDuplicateClaim is returned when a daily bonus was already granted
	// for the current calendar day.
	ErrDuplicateClaim = NewError(CodeDuplicateClaim, "daily bonus already claimed today")

	// ErrInvalidScore is returned when a game-reward claim carries no
	// positive score.
	ErrInvalidScore = NewError(CodeInvalidScore, "positive score required")

	// ErrNotFound is the generic store miss.
	ErrNotFound = NewError(CodeNotFound, "not found")
)
