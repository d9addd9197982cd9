// Package keygen produces the short random identifiers handed out to
// callers. A key is the only credential needed to read a record, so keys
// always come from crypto/rand.
package keygen

import (
	"crypto/rand"
	"fmt"
	"math"
	"time"
)

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	minFallbackLength = 4
	maxFallbackLength = 12
)

// ttlLengths maps the TTL presets offered by the UI to key lengths.
// Shorter-lived records tolerate shorter keys: the collision window is
// smaller and so is the time an attacker has to guess.
var ttlLengths = map[time.Duration]int{
	30 * time.Second: 3,
	10 * time.Minute: 4,
	1 * time.Hour:    5,
	8 * time.Hour:    6,
	24 * time.Hour:   7,
}

// Generator produces random alphanumeric keys whose length depends on the
// requested TTL.
type Generator struct{}

func New() *Generator {
	return &Generator{}
}

// Length returns the key length used for the given TTL: the preset table
// value when the TTL is a known preset, otherwise a length scaled with
// log10 of the TTL in seconds, clamped to [4, 12].
func (g *Generator) Length(ttl time.Duration) int {
	if n, ok := ttlLengths[ttl]; ok {
		return n
	}
	secs := ttl.Seconds()
	if secs < 1 {
		secs = 1
	}
	n := 3 + int(math.Floor(math.Log10(secs)))
	if n < minFallbackLength {
		n = minFallbackLength
	}
	if n > maxFallbackLength {
		n = maxFallbackLength
	}
	return n
}

// Generate returns a new random key for a record with the given TTL.
func (g *Generator) Generate(ttl time.Duration) (string, error) {
	return randomString(g.Length(ttl))
}

// randomString builds an n-character string over the key alphabet using
// rejection sampling, so every character is uniformly distributed.
func randomString(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n)

	// Largest multiple of len(alphabet) below 256; bytes at or above it
	// are discarded to avoid modulo bias.
	limit := byte(256 - 256%len(alphabet))

	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("keygen: read random: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}

	return string(out), nil
}
