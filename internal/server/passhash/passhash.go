// Package passhash provides one-way password hashing for gated records.
package passhash

import (
	"crypto/sha256"

	"golang.org/x/crypto/bcrypt"
)

// Hash returns a one-way hash of password suitable for storage. The
// password is pre-hashed with sha256 before bcrypt, so inputs longer than
// bcrypt's 72-byte limit are still fully significant.
func Hash(password string) (string, error) {
	sum := sha256.Sum256([]byte(password))
	hashed, err := bcrypt.GenerateFromPassword(sum[:], bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether candidate matches the stored hash.
func Verify(candidate, hash string) bool {
	sum := sha256.Sum256([]byte(candidate))
	return bcrypt.CompareHashAndPassword([]byte(hash), sum[:]) == nil
}
