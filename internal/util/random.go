// Package util holds small helpers shared by the Lumi packages: loose boolean
// env parsing and ID generation.
package util

import (
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
)

const patternIDPrefix = "pat_"

// GenerateRandomID returns prefix followed by hexLength random hex digits.
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex returns length random lower-case hex digits. Not for secrets.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}
	const hexChars = "0123456789abcdef"
	var b strings.Builder
	b.Grow(length)
	for range length {
		b.WriteByte(hexChars[rand.IntN(len(hexChars))])
	}
	return b.String()
}

// GeneratePatternID returns a new response pattern ID such as "pat_3f9c...".
func GeneratePatternID() string {
	return GenerateRandomID(patternIDPrefix, 32)
}

// GenerateHistoryID returns a new conversation history entry ID.
func GenerateHistoryID() string {
	return uuid.NewString()
}
