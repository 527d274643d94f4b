package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrSessionClosed   = errors.New("playback session closed")
	ErrUnauthenticated = errors.New("viewer not authenticated")
	ErrInvalidInput    = errors.New("invalid input")
)
