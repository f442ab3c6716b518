// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package kernelmem

import (
	"errors"

	"github.com/luxfi/txkernel/felt"
)

// SlotType is the declared kind of one of an account's 256 storage slots.
type SlotType uint8

const (
	SlotTypeValue SlotType = 0
	SlotTypeMap   SlotType = 1
	SlotTypeArray SlotType = 2
)

// Storage protocol constants.
const (
	MaxStorageSlots         = 256
	FaucetReservedSlot      = 254
	SlotTypesCommitmentSlot = 255
	MaxSlotArity            = 255
)

// SlotDescriptor is one (slot_type, arity) entry in the registry. Arity
// is a full 32-bit field so that out-of-range wire values survive the
// unpack and are caught by Validate instead of truncating silently.
type SlotDescriptor struct {
	Type  SlotType
	Arity uint32
}

var (
	ErrInvalidSlotType      = errors.New("kernelmem: storage slot type must be Value, Map, or Array")
	ErrSlotArityTooLarge    = errors.New("kernelmem: storage slot arity exceeds 255")
	ErrFaucetSlotMalformed  = errors.New("kernelmem: faucet reserved slot has the wrong declared type")
	ErrRegistryCommitMiss   = errors.New("kernelmem: slot-type registry commitment does not match supplied descriptors")
	ErrSetItemWrongSlotType = errors.New("kernelmem: set_item on a non-Value slot")
	ErrMapItemWrongSlotType = errors.New("kernelmem: map accessor on a non-Map slot")
)

// PackDescriptor packs (type, arity) into a single felt: the high 32 bits
// hold slot_type, the low 32 bits hold arity.
func PackDescriptor(d SlotDescriptor) felt.Felt {
	return felt.New(uint64(d.Type)<<32 | uint64(d.Arity))
}

// UnpackDescriptor is PackDescriptor's inverse.
func UnpackDescriptor(f felt.Felt) SlotDescriptor {
	v := f.Uint64()
	return SlotDescriptor{
		Type:  SlotType(v >> 32),
		Arity: uint32(v & 0xFFFFFFFF),
	}
}

// Registry is the full 256-slot descriptor table, packed 4-per-word into
// the 64 words of the storage-slot-types memory region.
type Registry [MaxStorageSlots]SlotDescriptor

// ToWords packs the registry into the 64 words the kernel memory map
// reserves at AddrSlotTypesBase.
func (r Registry) ToWords() [SlotTypeWordsCount]felt.Word {
	var words [SlotTypeWordsCount]felt.Word
	for i := 0; i < MaxStorageSlots; i++ {
		wordIdx := i / SlotsPerTypeWord
		slotInWord := i % SlotsPerTypeWord
		words[wordIdx][slotInWord] = PackDescriptor(r[i])
	}
	return words
}

// RegistryFromWords is ToWords's inverse.
func RegistryFromWords(words [SlotTypeWordsCount]felt.Word) Registry {
	var r Registry
	for i := 0; i < MaxStorageSlots; i++ {
		wordIdx := i / SlotsPerTypeWord
		slotInWord := i % SlotsPerTypeWord
		r[i] = UnpackDescriptor(words[wordIdx][slotInWord])
	}
	return r
}

// Commitment is the sequential hash over the registry's packed words.
// RunPrologue does not compare it with the word held in storage slot 255
// (SlotTypesCommitmentSlot); the prologue only runs Validate and
// ValidateFaucetSlot on the supplied registry.
func (r Registry) Commitment() felt.Digest {
	words := r.ToWords()
	return felt.SequentialHash(words[:], felt.EmptyWord)
}

// Validate enforces the prologue's ingress checks: every descriptor's
// type is one of the three known kinds and its arity fits in a byte. It
// does not check the faucet reserved slot; callers that know the account
// is a faucet call ValidateFaucetSlot separately, since that check
// depends on the faucet's kind (fungible vs non-fungible).
func (r Registry) Validate() error {
	for _, d := range r {
		if d.Type != SlotTypeValue && d.Type != SlotTypeMap && d.Type != SlotTypeArray {
			return ErrInvalidSlotType
		}
		if d.Arity > MaxSlotArity {
			return ErrSlotArityTooLarge
		}
	}
	return nil
}

// ValidateFaucetSlot asserts that slot 254 carries the descriptor required
// for the given faucet kind: a Value slot for fungible faucets (the
// [0,0,0,total_issuance] word) or a Map slot for non-fungible faucets (the
// minted-NFT tree root).
func (r Registry) ValidateFaucetSlot(fungible bool) error {
	d := r[FaucetReservedSlot]
	if fungible && d.Type != SlotTypeValue {
		return ErrFaucetSlotMalformed
	}
	if !fungible && d.Type != SlotTypeMap {
		return ErrFaucetSlotMalformed
	}
	return nil
}
