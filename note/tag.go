// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package note

import "github.com/luxfi/txkernel/felt"

// TagKind is the 2-bit discovery classifier packed into a note tag's top
// bits.
type TagKind uint8

const (
	// TagAnyTarget notes are discoverable by any watcher regardless of the
	// low 30 bits; no account id fragment is carried.
	TagAnyTarget TagKind = iota
	// TagSpecificTarget notes carry the top 30 bits of a target account's
	// id_hi in the tag's low bits, letting a watcher filter by recipient
	// without decrypting the note.
	TagSpecificTarget
	TagSpecificTargetPrivate
	TagSpecificTargetEncrypted
)

const tagKindShift = 30

// BuildTag packs kind into the tag's top 2 bits. For the Specific* kinds,
// targetIdHi's top 30 bits are packed into the low bits; for
// TagAnyTarget, the low bits are ignored (zeroed).
func BuildTag(kind TagKind, targetIdHi felt.Felt) uint32 {
	base := uint32(kind) << tagKindShift
	if kind == TagAnyTarget {
		return base
	}
	top30 := uint32(targetIdHi.Uint64() >> 34)
	return base | (top30 & ((1 << tagKindShift) - 1))
}

// TagKindOf extracts the 2-bit classifier from a packed tag.
func TagKindOf(tag uint32) TagKind {
	return TagKind(tag >> tagKindShift)
}

// TagTargetPrefix extracts the top-30-bits-of-id_hi fragment from a
// packed tag, valid only when TagKindOf(tag) != TagAnyTarget.
func TagTargetPrefix(tag uint32) uint32 {
	return tag & ((1 << tagKindShift) - 1)
}

// MatchesTarget reports whether tag was addressed (at least partially) to
// an account whose id_hi is targetIdHi, by comparing the tag's embedded
// prefix against that id's own top 30 bits.
func MatchesTarget(tag uint32, targetIdHi felt.Felt) bool {
	if TagKindOf(tag) == TagAnyTarget {
		return true
	}
	return TagTargetPrefix(tag) == uint32(targetIdHi.Uint64()>>34)
}
