package serial

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Prefix identifies the product a serial belongs to.
const Prefix = "T16"

var pattern = regexp.MustCompile(`^` + Prefix + `-[0-9A-F]{6}-[0-9A-F]{6}-[0-9A-F]{6}$`)

// Generate mints a license serial from 9 bytes of cryptographically
// secure randomness: 18 uppercase hex digits in three groups of six.
// Uniqueness is not checked against stored orders; collisions in a
// 2^72 space are treated as negligible.
func Generate() (string, error) {
	buf := make([]byte, 9)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	chunk := strings.ToUpper(hex.EncodeToString(buf))
	return fmt.Sprintf("%s-%s-%s-%s", Prefix, chunk[0:6], chunk[6:12], chunk[12:18]), nil
}

// IsValid reports whether value has the issued-serial shape.
func IsValid(value string) bool {
	return pattern.MatchString(value)
}
