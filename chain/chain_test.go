// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/txkernel/felt"
)

func sampleHeader(blockNum uint32) Header {
	return Header{
		PrevBlockHash:   felt.WordFromUint64s(1, 0, 0, 0),
		ChainRoot:       felt.WordFromUint64s(2, 0, 0, 0),
		AcctDBRoot:      felt.WordFromUint64s(3, 0, 0, 0),
		NullifierDBRoot: felt.WordFromUint64s(4, 0, 0, 0),
		TxHash:          felt.WordFromUint64s(5, 0, 0, 0),
		ProofHash:       felt.WordFromUint64s(6, 0, 0, 0),
		BlockNum:        blockNum,
		Version:         1,
		Timestamp:       1000 + uint32(blockNum),
		NoteRoot:        felt.WordFromUint64s(7, 0, 0, 0),
	}
}

func TestHeaderHashDeterministicAndSensitive(t *testing.T) {
	h1 := sampleHeader(1)
	h2 := sampleHeader(1)
	require.Equal(t, h1.Hash(), h2.Hash())

	h3 := sampleHeader(2)
	require.NotEqual(t, h1.Hash(), h3.Hash())
}

func TestMMRAddAndAuthenticate(t *testing.T) {
	m := NewMMR()
	var hashes []felt.Digest
	for i := uint32(0); i < 4; i++ {
		h := sampleHeader(i).Hash()
		hashes = append(hashes, h)
		idx := m.AddBlock(h)
		require.Equal(t, uint64(i), idx)
	}

	for i := uint64(0); i < 4; i++ {
		got, err := m.BlockHashAt(i)
		require.NoError(t, err)
		require.Equal(t, hashes[i], got)

		peak, path, localIdx, err := m.ProofFor(i)
		require.NoError(t, err)
		require.True(t, felt.MerkleVerify(hashes[i], path, localIdx, peak))
	}
}

func TestChainMMRHashStable(t *testing.T) {
	m := NewMMR()
	m.AddBlock(sampleHeader(0).Hash())
	m.AddBlock(sampleHeader(1).Hash())
	h1 := m.ChainMMRHash()
	h2 := m.ChainMMRHash()
	require.Equal(t, h1, h2)
}
