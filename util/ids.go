package util

import (
	"github.com/google/uuid"
)

// NewSessionId returns a fresh opaque session token.
func NewSessionId() string {
	return uuid.NewString()
}
