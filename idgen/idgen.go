// Package idgen provides the ID and key generators used by DevLens.
//
// Rows are keyed by UUID v7 (time-sortable). API keys are a lowercase
// prefix, an underscore and 40 hex characters (20 random bytes):
//
//	devlens_3f9a...   user key
//	proj_0c81...      project key
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Hex returns a Generator of n random bytes encoded as 2n lowercase hex chars.
func Hex(n int) Generator {
	return func() string {
		buf := make([]byte, n)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		return hex.EncodeToString(buf)
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Key prefixes.
const (
	UserKeyPrefix    = "devlens"
	ProjectKeyPrefix = "proj"
)

// keyBytes yields the 40 hex characters of an API key.
const keyBytes = 20

var keyPattern = regexp.MustCompile(`^[a-z]+_[a-f0-9]{40}$`)

// Default is used for row ids.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// APIKey returns a generator of keys with the given prefix.
func APIKey(prefix string) Generator {
	return Prefixed(prefix+"_", Hex(keyBytes))
}

// UserKey generates a user API key.
func UserKey() string { return APIKey(UserKeyPrefix)() }

// ProjectKey generates a project API key.
func ProjectKey() string { return APIKey(ProjectKeyPrefix)() }

// ValidKey reports whether key has the API key shape.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// MaskKey hides the middle of a key for display: the first 8 and last 4
// characters are kept. Keys shorter than 12 characters are fully masked.
func MaskKey(key string) string {
	if len(key) < 12 {
		return "***"
	}
	return key[:8] + "..." + key[len(key)-4:]
}

// Parse validates a UUID string and returns its canonical form.
func Parse(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UUID: %w", err)
	}
	return u.String(), nil
}
