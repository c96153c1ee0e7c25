package service

import "errors"

// Common service errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)

// Match update errors
var (
	ErrMatchNotFound       = errors.New("match not found")
	ErrLocked              = errors.New("match is locked")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrPersistenceConflict = errors.New("concurrent update conflict")
	ErrMatchAlreadyExists  = errors.New("match already exists")
)

// ErrorCode 웹소켓 ERROR 메시지에 싣는 짧은 코드
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrLocked):
		return "locked"
	case errors.Is(err, ErrMatchNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrInvalidInput):
		return "invalid_transition"
	case errors.Is(err, ErrPersistenceConflict):
		return "conflict"
	default:
		return "internal"
	}
}
