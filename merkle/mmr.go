// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkle

import (
	"errors"
	"sync"

	"github.com/luxfi/txkernel/felt"
)

// ErrIndexOutOfRange is returned by MMR lookups/proofs past the current
// leaf count.
var ErrIndexOutOfRange = errors.New("merkle: mmr index out of range")

// MMR is an append-only Merkle mountain range over historical block
// hashes. Internally it keeps every leaf (so that inclusion proofs for
// any past block can still be produced) and derives peaks lazily: a
// forest of perfect trees sized by the binary decomposition of the leaf
// count.
type MMR struct {
	mu     sync.RWMutex
	leaves []felt.Digest
}

// NewMMR returns an empty mountain range.
func NewMMR() *MMR { return &MMR{} }

// Add appends a new leaf (typically a block hash) and returns its index.
func (m *MMR) Add(leaf felt.Digest) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaves = append(m.leaves, leaf)
	return uint64(len(m.leaves) - 1)
}

// NumLeaves returns the number of leaves accumulated so far.
func (m *MMR) NumLeaves() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.leaves))
}

// peakSizes decomposes n into the strictly-decreasing powers of two that
// sum to it, MSB first -- the canonical MMR mountain shape.
func peakSizes(n uint64) []uint64 {
	var sizes []uint64
	for bit := 63; bit >= 0; bit-- {
		s := uint64(1) << uint(bit)
		if n&s != 0 {
			sizes = append(sizes, s)
		}
	}
	return sizes
}

// Peaks returns the current peak digests, one per mountain, largest
// mountain first.
func (m *MMR) Peaks() []felt.Digest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.peaksLocked()
}

func (m *MMR) peaksLocked() []felt.Digest {
	sizes := peakSizes(uint64(len(m.leaves)))
	peaks := make([]felt.Digest, len(sizes))
	offset := 0
	for i, size := range sizes {
		peaks[i] = perfectRoot(m.leaves[offset : offset+int(size)])
		offset += int(size)
	}
	return peaks
}

// perfectRoot computes the Merkle root of a leaf slice whose length is a
// power of two (including 1, the trivial single-leaf "root").
func perfectRoot(leaves []felt.Digest) felt.Digest {
	layer := append([]felt.Digest{}, leaves...)
	for len(layer) > 1 {
		next := make([]felt.Digest, len(layer)/2)
		for i := 0; i < len(next); i++ {
			next[i] = felt.HashTwo(layer[2*i], layer[2*i+1])
		}
		layer = next
	}
	return layer[0]
}

// Get returns the leaf digest stored at blockNum.
func (m *MMR) Get(blockNum uint64) (felt.Digest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if blockNum >= uint64(len(m.leaves)) {
		return felt.Digest{}, ErrIndexOutOfRange
	}
	return m.leaves[blockNum], nil
}

// Proof returns the peak digest and sibling path authenticating the leaf
// at blockNum against that peak, plus the leaf's index within its peak's
// subtree (the felt.MerkleVerify index argument).
func (m *MMR) Proof(blockNum uint64) (peak felt.Digest, path []felt.Digest, localIndex uint64, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := uint64(len(m.leaves))
	if blockNum >= n {
		return felt.Digest{}, nil, 0, ErrIndexOutOfRange
	}

	offset := uint64(0)
	for _, size := range peakSizes(n) {
		if blockNum < offset+size {
			chunk := m.leaves[offset : offset+size]
			localIndex = blockNum - offset
			peak, path = perfectRootWithProof(chunk, localIndex)
			return peak, path, localIndex, nil
		}
		offset += size
	}
	return felt.Digest{}, nil, 0, ErrIndexOutOfRange
}

func perfectRootWithProof(leaves []felt.Digest, index uint64) (root felt.Digest, path []felt.Digest) {
	layer := append([]felt.Digest{}, leaves...)
	idx := index
	for len(layer) > 1 {
		sibIdx := idx ^ 1
		path = append(path, layer[sibIdx])
		next := make([]felt.Digest, len(layer)/2)
		for i := 0; i < len(next); i++ {
			next[i] = felt.HashTwo(layer[2*i], layer[2*i+1])
		}
		layer = next
		idx /= 2
	}
	return layer[0], path
}

// ChainMMRHash is the canonical hash binding peaks + leaf count together:
// the key under which the prologue's advice provider looks up peaks, and
// the value folded into the block header's composite hash.
func ChainMMRHash(peaks []felt.Digest, numLeaves uint64) felt.Digest {
	words := make([]felt.Word, 0, len(peaks)+1)
	words = append(words, felt.WordFromUint64s(numLeaves, 0, 0, 0))
	words = append(words, peaks...)
	return felt.SequentialHash(words, felt.EmptyWord)
}
