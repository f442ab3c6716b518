// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package felt

import (
	"encoding/binary"
	"errors"
)

// Word is the universal 4-felt unit of commitment: account/note identifiers,
// vault/storage/code roots, and hash outputs are all Words.
type Word [4]Felt

// Digest is a Word that is specifically the output of the hash permutation.
// It is an alias, not a distinct type: commitments and plain words are used
// interchangeably throughout the kernel.
type Digest = Word

// EmptyWord is the all-zero word, the protocol constant used for empty
// sequences, empty vaults, and "no init hash" sentinels.
var EmptyWord = Word{Zero(), Zero(), Zero(), Zero()}

// WordFromUint64s builds a Word from four raw values, reducing each.
func WordFromUint64s(a, b, c, d uint64) Word {
	return Word{New(a), New(b), New(c), New(d)}
}

// IsEmpty reports whether w equals EmptyWord.
func (w Word) IsEmpty() bool { return w == EmptyWord }

// Equal reports element-wise equality.
func (w Word) Equal(o Word) bool { return w == o }

// Bytes serializes w as 32 bytes, little-endian per felt, felt-major order
// (w[0] first), matching the kernel memory map's word layout.
func (w Word) Bytes() [32]byte {
	var out [32]byte
	for i, f := range w {
		binary.LittleEndian.PutUint64(out[i*8:i*8+8], f.Uint64())
	}
	return out
}

// WordFromBytes parses 32 bytes produced by Bytes. Each 8-byte chunk must
// already be a canonical field element (< Modulus); ErrNonCanonical is
// returned otherwise, which the kernel treats as malformed input.
func WordFromBytes(b [32]byte) (Word, error) {
	var w Word
	for i := 0; i < 4; i++ {
		v := binary.LittleEndian.Uint64(b[i*8 : i*8+8])
		if v >= Modulus {
			return Word{}, ErrNonCanonical
		}
		w[i] = Felt(v)
	}
	return w, nil
}

// ErrNonCanonical is returned when a serialized felt is outside [0, Modulus).
var ErrNonCanonical = errors.New("felt: non-canonical field element")
