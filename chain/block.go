// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chain implements block headers and the chain-wide Merkle
// mountain range the prologue authenticates against. A thin domain
// wrapper around the merkle package's MMR.
package chain

import (
	"github.com/luxfi/txkernel/felt"
	"github.com/luxfi/txkernel/merkle"
)

// Header is a block header's full field set.
type Header struct {
	PrevBlockHash   felt.Digest
	ChainRoot       felt.Digest
	AcctDBRoot      felt.Digest
	NullifierDBRoot felt.Digest
	TxHash          felt.Digest
	ProofHash       felt.Digest
	BlockNum        uint32
	Version         uint32
	Timestamp       uint32
	NoteRoot        felt.Digest
}

// sevenWords returns the header's fields excluding NoteRoot, in the fixed
// order the kernel memory map lays them out (addresses 200..206).
func (h Header) sevenWords() []felt.Word {
	meta := felt.WordFromUint64s(uint64(h.BlockNum), uint64(h.Version), uint64(h.Timestamp), 0)
	return []felt.Word{
		h.PrevBlockHash,
		h.ChainRoot,
		h.AcctDBRoot,
		h.NullifierDBRoot,
		h.TxHash,
		h.ProofHash,
		meta,
	}
}

// Hash computes block_hash = hash(hash_of_first_seven_words || note_root).
func (h Header) Hash() felt.Digest {
	h7 := felt.SequentialHash(h.sevenWords(), felt.EmptyWord)
	return felt.HashTwo(h7, h.NoteRoot)
}

// MMR wraps the generic mountain range with chain-specific semantics: it
// accumulates block hashes, plus the convenience of appending the current
// reference block so notes created in it can be authenticated within the
// same transaction.
type MMR struct {
	inner *merkle.MMR
}

// NewMMR returns an empty chain history.
func NewMMR() *MMR { return &MMR{inner: merkle.NewMMR()} }

// AddBlock appends a block hash and returns its index.
func (m *MMR) AddBlock(blockHash felt.Digest) uint64 {
	return m.inner.Add(blockHash)
}

// NumBlocks returns the number of blocks accumulated.
func (m *MMR) NumBlocks() uint64 { return m.inner.NumLeaves() }

// Peaks returns the current peak digests.
func (m *MMR) Peaks() []felt.Digest { return m.inner.Peaks() }

// BlockHashAt returns the block hash recorded at blockNum.
func (m *MMR) BlockHashAt(blockNum uint64) (felt.Digest, error) {
	return m.inner.Get(blockNum)
}

// ProofFor returns the peak + authentication path for the block at
// blockNum, suitable for felt.MerkleVerify.
func (m *MMR) ProofFor(blockNum uint64) (peak felt.Digest, path []felt.Digest, localIndex uint64, err error) {
	return m.inner.Proof(blockNum)
}

// ChainMMRHash is the canonical value authenticated against a block
// header's ChainRoot field and used to key advice-provider lookups.
func (m *MMR) ChainMMRHash() felt.Digest {
	return merkle.ChainMMRHash(m.inner.Peaks(), m.inner.NumLeaves())
}
