package model

import "github.com/google/uuid"

// NewID returns a fresh opaque record id.
func NewID() string {
	return uuid.NewString()
}
