// Package roomkey generates and validates the human-readable room
// identifiers exchanged by the signaling protocol.
package roomkey

import (
	"crypto/rand"
	"regexp"
	"strings"
)

// alphabet excludes visually ambiguous characters: 0,1,5,8,O,I,L,S,B.
const alphabet = "ACDEFGHJKMNPQRTUVWXYZ234679"

const segmentLen = 3
const segmentCount = 3

var pattern = regexp.MustCompile(`^[` + alphabet + `]{3}-[` + alphabet + `]{3}-[` + alphabet + `]{3}$`)

// Generate returns a new `XXX-XXX-XXX` key drawn uniformly from alphabet
// using a cryptographic RNG.
func Generate() (string, error) {
	segments := make([]string, segmentCount)
	for i := range segments {
		seg, err := randomSegment()
		if err != nil {
			return "", err
		}
		segments[i] = seg
	}
	return strings.Join(segments, "-"), nil
}

func randomSegment() (string, error) {
	// Bytes at or above the largest multiple of len(alphabet) are rejected so
	// every symbol is equally likely.
	limit := 256 - 256%len(alphabet)
	buf := make([]byte, 1)
	out := make([]byte, 0, segmentLen)
	for len(out) < segmentLen {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		if int(buf[0]) >= limit {
			continue
		}
		out = append(out, alphabet[int(buf[0])%len(alphabet)])
	}
	return string(out), nil
}

// Validate reports whether key matches the room-key pattern after
// case-insensitive normalisation.
func Validate(key string) bool {
	return pattern.MatchString(Normalise(key))
}

// Normalise trims whitespace and upper-cases key.
func Normalise(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
