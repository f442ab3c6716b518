// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package kernelmem

import "github.com/luxfi/txkernel/felt"

// GlobalInputs is the read-only set of values the prologue writes into the
// global-inputs region (addresses 100..105) before the note processor
// runs.
type GlobalInputs struct {
	BlockHash            felt.Digest
	AcctIDPrefix         felt.Felt
	InitAcctHash         felt.Digest
	InputNotesCommitment felt.Digest
	InitNonce            felt.Felt
	TxScriptRoot         felt.Digest
}

// WriteGlobalInputs installs g at its fixed addresses.
func (m *Memory) WriteGlobalInputs(g GlobalInputs) {
	m.Write(AddrBlockHash, g.BlockHash)
	m.Write(AddrAcctIDPrefix, felt.WordFromUint64s(g.AcctIDPrefix.Uint64(), 0, 0, 0))
	m.Write(AddrInitAcctHash, g.InitAcctHash)
	m.Write(AddrInputNotesCommitment, g.InputNotesCommitment)
	m.Write(AddrInitNonce, felt.WordFromUint64s(g.InitNonce.Uint64(), 0, 0, 0))
	m.Write(AddrTxScriptRoot, g.TxScriptRoot)
}

// ReadGlobalInputs is WriteGlobalInputs's inverse.
func (m *Memory) ReadGlobalInputs() GlobalInputs {
	return GlobalInputs{
		BlockHash:            m.Read(AddrBlockHash),
		AcctIDPrefix:         m.Read(AddrAcctIDPrefix)[0],
		InitAcctHash:         m.Read(AddrInitAcctHash),
		InputNotesCommitment: m.Read(AddrInputNotesCommitment),
		InitNonce:            m.Read(AddrInitNonce)[0],
		TxScriptRoot:         m.Read(AddrTxScriptRoot),
	}
}

// BlockData is the block header data the prologue loads into the
// block-data region (addresses 200..207).
type BlockData struct {
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

// WriteBlockData installs b at its fixed addresses.
func (m *Memory) WriteBlockData(b BlockData) {
	m.Write(AddrPrevBlockHash, b.PrevBlockHash)
	m.Write(AddrChainRoot, b.ChainRoot)
	m.Write(AddrAcctDBRoot, b.AcctDBRoot)
	m.Write(AddrNullifierDBRoot, b.NullifierDBRoot)
	m.Write(AddrTxHash, b.TxHash)
	m.Write(AddrProofHash, b.ProofHash)
	m.Write(AddrBlockMeta, felt.WordFromUint64s(uint64(b.BlockNum), uint64(b.Version), uint64(b.Timestamp), 0))
	m.Write(AddrNoteRoot, b.NoteRoot)
}

// ReadBlockData is WriteBlockData's inverse.
func (m *Memory) ReadBlockData() BlockData {
	meta := m.Read(AddrBlockMeta)
	return BlockData{
		PrevBlockHash:   m.Read(AddrPrevBlockHash),
		ChainRoot:       m.Read(AddrChainRoot),
		AcctDBRoot:      m.Read(AddrAcctDBRoot),
		NullifierDBRoot: m.Read(AddrNullifierDBRoot),
		TxHash:          m.Read(AddrTxHash),
		ProofHash:       m.Read(AddrProofHash),
		BlockNum:        uint32(meta[0].Uint64()),
		Version:         uint32(meta[1].Uint64()),
		Timestamp:       uint32(meta[2].Uint64()),
		NoteRoot:        m.Read(AddrNoteRoot),
	}
}

// AccountData is the current account state the prologue/epilogue read and
// write at the account-data region (addresses 400..404).
type AccountData struct {
	ID          felt.Felt
	Nonce       felt.Felt
	VaultRoot   felt.Digest
	StorageRoot felt.Digest
	CodeRoot    felt.Digest
	NewCodeRoot felt.Digest
}

// WriteAccountData installs a at its fixed addresses.
func (m *Memory) WriteAccountData(a AccountData) {
	m.Write(AddrAcctIdentity, felt.WordFromUint64s(a.ID.Uint64(), 0, 0, a.Nonce.Uint64()))
	m.Write(AddrAcctVaultRoot, a.VaultRoot)
	m.Write(AddrAcctStorageRoot, a.StorageRoot)
	m.Write(AddrAcctCodeRoot, a.CodeRoot)
	m.Write(AddrAcctNewCodeRoot, a.NewCodeRoot)
}

// ReadAccountData is WriteAccountData's inverse.
func (m *Memory) ReadAccountData() AccountData {
	identity := m.Read(AddrAcctIdentity)
	return AccountData{
		ID:          identity[0],
		Nonce:       identity[3],
		VaultRoot:   m.Read(AddrAcctVaultRoot),
		StorageRoot: m.Read(AddrAcctStorageRoot),
		CodeRoot:    m.Read(AddrAcctCodeRoot),
		NewCodeRoot: m.Read(AddrAcctNewCodeRoot),
	}
}

// WriteRegistry packs and installs a full slot-type registry at
// AddrSlotTypesBase.
func (m *Memory) WriteRegistry(r Registry) {
	words := r.ToWords()
	m.WriteRange(AddrSlotTypesBase, words[:])
}

// ReadRegistry is WriteRegistry's inverse.
func (m *Memory) ReadRegistry() Registry {
	var words [SlotTypeWordsCount]felt.Word
	copy(words[:], m.ReadRange(AddrSlotTypesBase, SlotTypeWordsCount))
	return RegistryFromWords(words)
}

// SetAcctNonce bumps the account's bookkept nonce in place, leaving the
// rest of the identity word untouched.
func (m *Memory) SetAcctNonce(n felt.Felt) {
	identity := m.Read(AddrAcctIdentity)
	identity[3] = n
	m.Write(AddrAcctIdentity, identity)
}
