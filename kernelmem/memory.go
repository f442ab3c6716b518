// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package kernelmem is the fixed-address memory map the kernel program
// reads and writes during a transaction. The region layout below is a
// protocol contract, not an implementation detail: existing verifiers
// rely on these exact offsets, so they must never drift.
package kernelmem

import "github.com/luxfi/txkernel/felt"

// Word address (each unit holds one felt.Word = 4 felts).
type Addr = uint64

// Bookkeeping region: 0..4.
const (
	AddrTxVaultRoot         Addr = 0
	AddrCurrentInputNotePtr Addr = 1
	AddrNumOutputNotes      Addr = 2
	AddrInputVaultRoot      Addr = 3
	AddrOutputVaultRoot     Addr = 4
)

// Global inputs region: 100..105.
const (
	AddrBlockHash            Addr = 100
	AddrAcctIDPrefix         Addr = 101
	AddrInitAcctHash         Addr = 102
	AddrInputNotesCommitment Addr = 103
	AddrInitNonce            Addr = 104
	AddrTxScriptRoot         Addr = 105
)

// Block data region: 200..207.
const (
	AddrPrevBlockHash   Addr = 200
	AddrChainRoot       Addr = 201
	AddrAcctDBRoot      Addr = 202
	AddrNullifierDBRoot Addr = 203
	AddrTxHash          Addr = 204
	AddrProofHash       Addr = 205
	AddrBlockMeta       Addr = 206 // (block_num, version, timestamp, 0)
	AddrNoteRoot        Addr = 207
)

// Chain MMR region: 300+ (num_leaves, then peaks 1..N).
const (
	AddrChainMMRNumLeaves Addr = 300
	AddrChainMMRPeaksBase Addr = 301
)

// Account data region: 400..404.
const (
	AddrAcctIdentity    Addr = 400 // (id, 0, 0, nonce)
	AddrAcctVaultRoot   Addr = 401
	AddrAcctStorageRoot Addr = 402
	AddrAcctCodeRoot    Addr = 403
	AddrAcctNewCodeRoot Addr = 404
)

// Storage-slot-type region: 405..468 (64 words x 4 descriptors/word = 256).
const (
	AddrSlotTypesBase  Addr = 405
	SlotTypeWordsCount      = 64
	SlotsPerTypeWord        = 4
)

// Input/output note regions.
const (
	AddrInputNotesBase    Addr = 0x10_0000
	AddrOutputNotesBase   Addr = 0x40_0000
	NoteSlotWords              = 512
	MaxInputNotesPerTx         = 1024
	MaxOutputNoteSlotsMem      = 4096 // reserved slots in the memory map
	MaxOutputNotesPerTx        = 1024 // protocol-enforced cap; create_note asserts against this
)

// Per-note-slot word offsets (offsets in words within a 512-word slot).
const (
	NoteOffID          = 0
	NoteOffSerialNum   = 1
	NoteOffScriptRoot  = 2
	NoteOffInputsHash  = 3
	NoteOffAssetsHash  = 4
	NoteOffMetadata    = 5
	NoteOffArgs        = 6
	NoteOffNumAssets   = 7
	NoteOffAssetsStart = 8
	NoteMaxAssets      = 255
)

// Memory is the transaction-scoped, word-addressed store backing the
// kernel's execution: a single flat map, populated at the start of a
// transaction and dropped at the end, never shared across transactions.
type Memory struct {
	words map[Addr]felt.Word
}

// New returns an empty transaction memory.
func New() *Memory {
	return &Memory{words: make(map[Addr]felt.Word)}
}

// Read returns the word at addr, or felt.EmptyWord if never written.
func (m *Memory) Read(addr Addr) felt.Word {
	return m.words[addr]
}

// Write stores w at addr.
func (m *Memory) Write(addr Addr, w felt.Word) {
	m.words[addr] = w
}

// ReadRange reads n consecutive words starting at addr.
func (m *Memory) ReadRange(addr Addr, n int) []felt.Word {
	out := make([]felt.Word, n)
	for i := 0; i < n; i++ {
		out[i] = m.Read(addr + Addr(i))
	}
	return out
}

// WriteRange writes ws starting at addr.
func (m *Memory) WriteRange(addr Addr, ws []felt.Word) {
	for i, w := range ws {
		m.Write(addr+Addr(i), w)
	}
}

// InputNoteSlot returns the base address of input note i (0-indexed).
func InputNoteSlot(i int) Addr {
	return AddrInputNotesBase + Addr(i)*NoteSlotWords
}

// OutputNoteSlot returns the base address of output note i (0-indexed).
func OutputNoteSlot(i int) Addr {
	return AddrOutputNotesBase + Addr(i)*NoteSlotWords
}

// SlotTypeWordAddr returns the memory address of the word holding the
// descriptors for slots [4*i, 4*i+3].
func SlotTypeWordAddr(wordIndex int) Addr {
	return AddrSlotTypesBase + Addr(wordIndex)
}
