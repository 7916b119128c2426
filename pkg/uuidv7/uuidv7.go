package uuidv7

import "github.com/google/uuid"

// New returns a UUIDv7 per RFC 9562 (time-ordered, millisecond precision).
func New() (uuid.UUID, error) {
	return uuid.NewV7()
}

// NewString returns a UUIDv7 string.
func NewString() (string, error) {
	u, err := New()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// IsValid reports whether s parses as a UUID of any version.
func IsValid(s string) bool {
	return uuid.Validate(s) == nil
}
