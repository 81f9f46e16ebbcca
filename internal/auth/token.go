package auth

import (
	"crypto/sha256"
	"fmt"

	"habitsync/internal/util"
)

// NewSecret mints an opaque session secret. Only its hash is ever stored.
func NewSecret() string {
	return util.NewID("ses") + util.NewID("")
}

// HashToken derives the storage key for a secret.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", sum)
}
