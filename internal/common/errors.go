// Package common defines shared constants and sentinel errors used across
// textshr components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")

	// Engine-level errors.
	ErrPasswordRequired = errors.New("password required")
	ErrNoMatch          = errors.New("no match")
	ErrForbidden        = errors.New("forbidden")
	ErrKeyExhausted     = errors.New("key generation exhausted")

	// Validation errors.
	ErrEmptyText    = errors.New("empty text")
	ErrTextTooLarge = errors.New("text too large")
	ErrInvalidTTL   = errors.New("invalid ttl")

	// Session errors (invalid, tampered or expired token).
	ErrInvalidToken   = errors.New("invalid token")
	ErrSessionExpired = errors.New("session expired")
)
