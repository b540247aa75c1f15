package service

import "errors"

var (
	// ErrSessionNotFound is returned for unknown session IDs
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidRequest wraps malformed command arguments
	ErrInvalidRequest = errors.New("invalid request")
)
