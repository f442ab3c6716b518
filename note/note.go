// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package note implements the note entity: its commitments (Recipient,
// NoteId, NoteHash, Nullifier), metadata packing, and the discovery tag
// encoding. Every hash step routes through the felt permutation.
package note

import (
	"errors"

	"github.com/luxfi/txkernel/account"
	"github.com/luxfi/txkernel/felt"
)

// Per-note protocol bounds.
const (
	MaxAssetsPerNote = 255
	MaxInputsPerNote = 128
)

var (
	ErrTooManyAssets = errors.New("note: asset count exceeds MaxAssetsPerNote")
	ErrTooManyInputs = errors.New("note: input count exceeds MaxInputsPerNote")
	ErrBadAfterBlock = errors.New("note: AfterBlock execution hint cannot be u32 max")
)

// Type is the note's public/private/encrypted visibility tag.
type Type uint8

const (
	Public Type = iota
	Private
	Encrypted
)

// HintKind selects the shape of an ExecutionHint.
type HintKind uint8

const (
	HintNone HintKind = iota
	HintAfterBlock
)

// ExecutionHint tells the executor when a note becomes eligible for
// consumption. AfterBlock(n) excludes n == u32 max so the packed
// metadata felt stays within a single field element.
type ExecutionHint struct {
	Kind  HintKind
	Value uint32
}

// NewAfterBlock builds an AfterBlock hint, rejecting the excluded value.
func NewAfterBlock(blockNum uint32) (ExecutionHint, error) {
	if blockNum == 0xFFFFFFFF {
		return ExecutionHint{}, ErrBadAfterBlock
	}
	return ExecutionHint{Kind: HintAfterBlock, Value: blockNum}, nil
}

// Metadata is a note's non-commitment-core data.
type Metadata struct {
	Sender   account.Id
	Tag      uint32
	NoteType Type
	Aux      felt.Felt
	Hint     ExecutionHint
}

// Pack serializes Metadata into a single Word:
// [sender_hi, sender_lo_type_and_hint_tag, note_tag_hint_payload,
// aux]. The note_type (2 bits) and hint kind (6 bits) are stashed in
// sender_lo's low 8 bits, which account.Id.BuildIdLo always leaves zero;
// the tag (32 bits) and hint value (32 bits) are packed side by side in
// the third felt.
func (m Metadata) Pack() felt.Word {
	senderLo := m.Sender.Lo.Uint64() &^ 0xFF
	senderLo |= uint64(m.NoteType) & 0x3
	senderLo |= (uint64(m.Hint.Kind) & 0x3F) << 2
	tagAndHint := uint64(m.Tag)<<32 | uint64(m.Hint.Value)
	return felt.Word{
		m.Sender.Hi,
		felt.New(senderLo),
		felt.New(tagAndHint),
		m.Aux,
	}
}

// Unpack is Pack's inverse.
func Unpack(w felt.Word) Metadata {
	senderLoRaw := w[1].Uint64()
	tagAndHint := w[2].Uint64()
	return Metadata{
		Sender:   account.Id{Hi: w[0], Lo: felt.New(senderLoRaw &^ 0xFF)},
		NoteType: Type(senderLoRaw & 0x3),
		Hint:     ExecutionHint{Kind: HintKind((senderLoRaw >> 2) & 0x3F), Value: uint32(tagAndHint)},
		Tag:      uint32(tagAndHint >> 32),
		Aux:      w[3],
	}
}

// Note is a note's commitment-relevant core plus its metadata.
type Note struct {
	SerialNum        felt.Word
	ScriptRoot       felt.Digest
	InputsCommitment felt.Digest
	AssetsCommitment felt.Digest
	Metadata         Metadata
}

// Recipient gates who can consume a note:
// hash(hash(hash(serial_num, 0) || script_root) || inputs_commitment).
func (n Note) Recipient() felt.Digest {
	step1 := felt.HashTwo(n.SerialNum, felt.EmptyWord)
	step2 := felt.HashTwo(step1, n.ScriptRoot)
	return felt.HashTwo(step2, n.InputsCommitment)
}

// Id is hash(recipient, assets_commitment).
func (n Note) Id() felt.Digest {
	return felt.HashTwo(n.Recipient(), n.AssetsCommitment)
}

// Hash is hash(NoteId, metadata) -- the leaf authenticated in a block's
// notes tree.
func (n Note) Hash() felt.Digest {
	return felt.HashTwo(n.Id(), n.Metadata.Pack())
}

// Nullifier is hash(serial_num || script_root || inputs_commitment ||
// assets_commitment), the spent-marker computed independently of metadata.
func (n Note) Nullifier() felt.Digest {
	words := []felt.Word{n.SerialNum, n.ScriptRoot, n.InputsCommitment, n.AssetsCommitment}
	return felt.SequentialHash(words, felt.EmptyWord)
}

// AssetsCommitment computes the sequential hash over a note's assets in
// canonical order, with odd-length runs zero-padded; an empty asset list
// commits to the empty word.
func AssetsCommitment(assets []felt.Word) felt.Digest {
	if len(assets) == 0 {
		return felt.EmptyWord
	}
	return felt.SequentialHash(assets, felt.EmptyWord)
}

// ValidateBounds checks a note's asset/input counts against protocol
// limits.
func ValidateBounds(numAssets, numInputs int) error {
	if numAssets > MaxAssetsPerNote {
		return ErrTooManyAssets
	}
	if numInputs > MaxInputsPerNote {
		return ErrTooManyInputs
	}
	return nil
}
