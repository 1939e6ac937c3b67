package internal

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DerivedID returns the deterministic identity for an entity synthesized
// from a single source event: a UUIDv5 of the parent event's UUID plus a
// role-specific discriminator. Re-processing the same line always yields
// the same derived identities.
//
// If the parent identity is not a valid UUID (some clients emit ad-hoc
// ids) the parent string itself is hashed into the namespace first.
func DerivedID(parentID, discriminator string) string {
	ns, err := uuid.Parse(parentID)
	if err != nil {
		ns = uuid.NewSHA1(uuid.NameSpaceOID, []byte(parentID))
	}
	return uuid.NewSHA1(ns, []byte(discriminator)).String()
}

// ThoughtID derives the identity of a thinking block within a turn.
func ThoughtID(baseID string) string {
	return DerivedID(baseID, "thinking")
}

// ToolUseID derives the identity of the i-th tool call within a turn.
func ToolUseID(baseID string, i int) string {
	return DerivedID(baseID, fmt.Sprintf("tool_use_%d", i))
}

// ToolResultID derives the identity of the i-th tool result within a turn.
func ToolResultID(baseID string, i int) string {
	return DerivedID(baseID, fmt.Sprintf("tool_result_%d", i))
}

// ContentHashID returns an identity derived from a SHA-256 hash over the
// canonicalized parts, formatted as a UUID. Byte-identical re-imports of
// the same payload collapse to one entity.
func ContentHashID(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	id, err := uuid.FromBytes(sum[:16])
	if err != nil {
		// sum[:16] is always 16 bytes; FromBytes cannot fail on it.
		panic(err)
	}
	return id.String()
}

// NewID returns a fresh random identity for operator-created entities
// (eras, heaps, attachments).
func NewID() string {
	return uuid.NewString()
}
