package utils

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// =============================================================================
// SESSION & PARTNER IDENTIFIERS
// =============================================================================

// AutomatedPrefix marks partner ids that belong to the text generator. Session
// ids supplied by clients may never start with it.
const AutomatedPrefix = "ai-"

const MaxSessionIDLength = 128

var ErrMalformedSessionID = errors.New("malformed session id")

// NewAutomatedID returns a fresh automated-partner id.
func NewAutomatedID() string {
	return AutomatedPrefix + uuid.NewString()
}

// NewPairingID returns an id unique to one pairing.
func NewPairingID() string {
	return uuid.NewString()
}

// IsAutomatedID reports whether id names an automated partner.
func IsAutomatedID(id string) bool {
	return strings.HasPrefix(id, AutomatedPrefix)
}

// ValidateSessionID rejects empty, oversized, non-printable or reserved ids.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrMalformedSessionID)
	}
	if len(id) > MaxSessionIDLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrMalformedSessionID, MaxSessionIDLength)
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("%w: invalid utf-8", ErrMalformedSessionID)
	}
	for _, r := range id {
		if !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return fmt.Errorf("%w: contains %q", ErrMalformedSessionID, r)
		}
	}
	if IsAutomatedID(id) {
		return fmt.Errorf("%w: reserved prefix %q", ErrMalformedSessionID, AutomatedPrefix)
	}
	return nil
}

// ShortID is the public form of a session id shown on the leaderboard.
func ShortID(id string) string {
	if utf8.RuneCountInString(id) <= 8 {
		return id
	}
	return string([]rune(id)[:8])
}
