// Package models holds the typed entities persisted by the server. The
// inline/blob tier duality is a branch on one typed record, not a loose
// field map interpreted at read time.
package models

import "time"

// TextRecord is a stored text entry. Exactly one of Body and BlobRef is
// populated: small bodies live inline in the key store, large ones are
// written to the blob store and referenced by BlobRef.
type TextRecord struct {
	// Key is the short opaque identifier, unique among live records.
	Key string

	// Body holds the text for inline-tier records. Empty for blob-backed ones.
	Body string

	// BlobRef points into the blob store for large-tier records.
	BlobRef string

	// Creator is the opaque caller identity captured at creation. It is
	// never rewritten by updates and gates update/delete.
	Creator string

	// Size is the byte length of the text at last write.
	Size int64

	// Summary is an optional caller-supplied annotation.
	Summary string

	// PasswordHash, when non-empty, gates retrieval behind a password check.
	PasswordHash string

	// OnlyOneRead marks the record for deletion after its first
	// fully-authorized read.
	OnlyOneRead bool

	// ExpiresAt is the absolute expiry instant. Records past it are
	// invisible to reads and removed by the sweeper.
	ExpiresAt time.Time
}

// Inline reports whether the record carries its body inline.
func (r *TextRecord) Inline() bool {
	return r.BlobRef == ""
}

// Expired reports whether the record is past its expiry at the given instant.
func (r *TextRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
