package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random UUID string used as a primary key.
func NewID() string {
	return uuid.NewString()
}

// NormalizeEmail lowercases and trims an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
