// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package account implements the entity model for on-chain accounts:
// identifiers, the 256-slot storage layout, the code tree, and the
// account commitment.
package account

import (
	"errors"

	"github.com/luxfi/txkernel/felt"
)

// Type is the four-way account-kind tag, a single 2-bit field packed into
// id_hi.
type Type uint8

const (
	RegularUpdatable Type = iota
	RegularImmutable
	FungibleFaucet
	NonFungibleFaucet
)

func (t Type) IsFaucet() bool {
	return t == FungibleFaucet || t == NonFungibleFaucet
}

// StorageMode is the two-way visibility tag packed into id_hi.
type StorageMode uint8

const (
	Public StorageMode = iota
	Private
)

// MinAccountOnes is the minimum number of set bits required in id_hi.
// The count is taken over id_hi alone; id_lo carries no density
// requirement.
const MinAccountOnes = 5

// id_hi bit layout, MSB to LSB: [1 reserved zero bit | 55-bit random |
// 2-bit storage mode | 2-bit type | 4-bit version].
const (
	idHiVersionBits = 4
	idHiTypeShift   = idHiVersionBits
	idHiModeShift   = idHiTypeShift + 2
	idHiRandomShift = idHiModeShift + 2

	idHiVersionMask uint64 = (1 << idHiVersionBits) - 1
	idHiTypeMask    uint64 = 0x3 << idHiTypeShift
	idHiModeMask    uint64 = 0x3 << idHiModeShift
)

// id_lo bit layout, MSB to LSB: [16-bit block_epoch | 40-bit random |
// 8 zero bits].
const (
	idLoZeroBits    = 8
	idLoRandomShift = idLoZeroBits
	idLoEpochShift  = idLoRandomShift + 40
)

var (
	ErrTooFewOnes  = errors.New("account: id_hi has fewer than MinAccountOnes set bits")
	ErrBadIdLoZero = errors.New("account: id_lo's trailing zero field is nonzero")
)

// Id is the two-felt account identifier.
type Id struct {
	Hi felt.Felt
	Lo felt.Felt
}

// Prefix is a validated id_hi alone: its serialization is a byte-compatible
// prefix of the full Id's serialization, so the first byte already exposes
// type and storage mode.
type Prefix struct {
	Hi felt.Felt
}

// Prefix extracts id's prefix.
func (id Id) Prefix() Prefix { return Prefix{Hi: id.Hi} }

// AccountType returns the 2-bit type tag packed into id_hi.
func (id Id) AccountType() Type {
	return Type((id.Hi.Uint64() & idHiTypeMask) >> idHiTypeShift)
}

func (p Prefix) AccountType() Type {
	return Type((p.Hi.Uint64() & idHiTypeMask) >> idHiTypeShift)
}

// StorageMode returns the 2-bit storage-mode tag packed into id_hi.
func (id Id) StorageMode() StorageMode {
	return StorageMode((id.Hi.Uint64() & idHiModeMask) >> idHiModeShift)
}

// Version returns the 4-bit version tag packed into id_hi.
func (id Id) Version() uint8 {
	return uint8(id.Hi.Uint64() & idHiVersionMask)
}

// Epoch returns the 16-bit block_epoch field packed into id_lo.
func (id Id) Epoch() uint16 {
	return uint16(id.Lo.Uint64() >> idLoEpochShift)
}

// ValidateStructure checks an id's structural constraints independent of
// any seed proof-of-work: MinAccountOnes set bits in id_hi, and a zeroed
// low byte in id_lo.
func (id Id) ValidateStructure() error {
	if popcount64(id.Hi.Uint64()) < MinAccountOnes {
		return ErrTooFewOnes
	}
	if id.Lo.Uint64()&((1<<idLoZeroBits)-1) != 0 {
		return ErrBadIdLoZero
	}
	return nil
}

func popcount64(v uint64) int {
	count := 0
	for v != 0 {
		count++
		v &= v - 1
	}
	return count
}

// BuildIdHi packs a type/mode/version/random tuple into an id_hi felt, for
// use by account-seed grinding and tests. Bit 63 is always left zero.
func BuildIdHi(typ Type, mode StorageMode, version uint8, random uint64) felt.Felt {
	random &= (1 << 55) - 1
	v := random<<idHiRandomShift | uint64(mode)<<idHiModeShift | uint64(typ)<<idHiTypeShift | uint64(version&0xF)
	return felt.New(v)
}

// BuildIdLo packs an epoch/random tuple into an id_lo felt, leaving the
// trailing 8 bits zero.
func BuildIdLo(epoch uint16, random uint64) felt.Felt {
	random &= (1 << 40) - 1
	v := uint64(epoch)<<idLoEpochShift | random<<idLoRandomShift
	return felt.New(v)
}
