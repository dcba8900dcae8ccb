package services

import (
	"errors"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrAlreadyTerminal   = errors.New("emergency already closed")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRoleMismatch      = errors.New("role mismatch")
	ErrValidation        = errors.New("validation failed")
)

// Wire codes carried in error events.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeAlreadyTerminal   = "ALREADY_TERMINAL"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeRoleMismatch      = "ROLE_MISMATCH"
	CodeValidation        = "VALIDATION_ERROR"
	CodeInternal          = "INTERNAL_ERROR"
)

// ErrorCode classifies err into the code sent back to the client.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrAlreadyTerminal):
		return CodeAlreadyTerminal
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrRoleMismatch):
		return CodeRoleMismatch
	case errors.Is(err, ErrValidation):
		return CodeValidation
	default:
		return CodeInternal
	}
}
