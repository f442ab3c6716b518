// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package felt

// HashTwo absorbs two words into an empty-capacity sponge and returns the
// first rate-half of the output state as the digest. This is the
// workhorse used for every two-child Merkle node and every domain-specific
// pairwise hash in the entity model (recipient, NoteId, NoteHash, ...).
func HashTwo(a, b Word) Digest {
	var s State
	copy(s[0:4], a[:])
	copy(s[4:8], b[:])
	// capacity (s[8:12]) starts at zero.
	Permute(&s)
	var out Digest
	copy(out[:], s[0:4])
	return out
}

// SequentialHash iterates an RPO-style sponge over words two at a time
// (the 8-felt rate holds two words per absorption), with capacityInit
// seeding the capacity portion of the state so different domains (e.g.
// "assets" vs "notes") don't collide. An odd-length input is padded with
// a zero word. The empty sequence hashes to the primed capacity state's
// rate half, so "hash of nothing" is a well-defined protocol constant.
func SequentialHash(words []Word, capacityInit Word) Digest {
	var s State
	copy(s[8:12], capacityInit[:])
	Permute(&s) // prime the capacity so the empty sequence is well-defined

	padded := words
	if len(padded)%2 != 0 {
		padded = append(append([]Word{}, padded...), EmptyWord)
	}

	for i := 0; i < len(padded); i += 2 {
		copy(s[0:4], padded[i][:])
		copy(s[4:8], padded[i+1][:])
		Permute(&s)
	}

	var out Digest
	copy(out[:], s[0:4])
	return out
}

// MerkleVerify checks that leaf, combined along path using index's bits to
// choose left/right at each level, reduces to root. index bit 0 (LSB)
// selects the sibling at the deepest level first.
func MerkleVerify(leaf Digest, path []Digest, index uint64, root Digest) bool {
	cur := leaf
	idx := index
	for _, sibling := range path {
		if idx&1 == 0 {
			cur = HashTwo(cur, sibling)
		} else {
			cur = HashTwo(sibling, cur)
		}
		idx >>= 1
	}
	return cur.Equal(root)
}
