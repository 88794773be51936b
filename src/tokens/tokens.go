// Package tokens issues the QR admission credentials. A token is random,
// URL-safe, fixed length, and carries no reservation metadata.
package tokens

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// rawLen is the number of random bytes per token: 256 bits of entropy,
// well past the point where collisions are a practical concern.
const rawLen = 32

// Length is the encoded token length in characters.
const Length = 43

// Issue returns a new admission token. It fails only when the entropy
// source is unavailable, which is fatal and not worth retrying.
func Issue() (string, error) {
	buf := make([]byte, rawLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("entropy source unavailable: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Equal compares two tokens in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
