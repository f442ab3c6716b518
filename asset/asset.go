// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package asset implements the fungible/non-fungible asset value type and
// the vault it lives in. An asset is a single word; its kind is encoded
// in the word itself, and a vault is a sparse Merkle tree of assets.
package asset

import (
	"errors"

	"github.com/luxfi/txkernel/account"
	"github.com/luxfi/txkernel/felt"
)

// FungibleMaxAmount is the largest legal fungible asset amount, 2^63 - 1.
const FungibleMaxAmount = (uint64(1) << 63) - 1

// nonFungibleHighBitMask clears bit 63 of a non-fungible asset's leading
// hash felt; the high bit is reserved and always forced to zero.
const nonFungibleHighBitMask = uint64(1) << 63

var (
	ErrMalformedFungible         = errors.New("asset: fungible asset has nonzero reserved position or amount overflow")
	ErrMalformedNonFungible      = errors.New("asset: non-fungible asset has its reserved high bit set")
	ErrFungibleOriginMismatch    = errors.New("asset: embedded faucet id is not a fungible faucet")
	ErrNonFungibleOriginMismatch = errors.New("asset: embedded faucet id is not a non-fungible faucet")
	ErrFungibleOverflow          = errors.New("asset: fungible amount exceeds FungibleMaxAmount")
)

// Asset is a tagged-variant Word: fungible or non-fungible, distinguished
// by the account type encoded in the asset's embedded faucet id.
type Asset struct {
	w felt.Word
}

// Fungible builds a fungible asset word: [amount, 0, faucet_id_lo, faucet_id_hi].
func Fungible(faucet account.Id, amount uint64) (Asset, error) {
	if faucet.AccountType() != account.FungibleFaucet {
		return Asset{}, ErrFungibleOriginMismatch
	}
	if amount > FungibleMaxAmount {
		return Asset{}, ErrFungibleOverflow
	}
	return Asset{w: felt.Word{felt.New(amount), felt.Zero(), faucet.Lo, faucet.Hi}}, nil
}

// NonFungible builds a non-fungible asset word: [hash_0, faucet_id_hi, hash_2, hash_3].
func NonFungible(faucet account.Id, hash felt.Digest) (Asset, error) {
	if faucet.AccountType() != account.NonFungibleFaucet {
		return Asset{}, ErrNonFungibleOriginMismatch
	}
	h0 := felt.New(hash[0].Uint64() &^ nonFungibleHighBitMask)
	return Asset{w: felt.Word{h0, faucet.Hi, hash[2], hash[3]}}, nil
}

// FromWord reinterprets a raw word as an asset, validating its structural
// shape: reserved positions zeroed, amount in range, high bit clear.
func FromWord(w felt.Word) (Asset, error) {
	a := Asset{w: w}
	// Position 1 is zero in a fungible word and a non-fungible faucet's
	// id_hi in a non-fungible one; any other value there is a fungible
	// word whose reserved position is set.
	if a.IsFungible() || (account.Prefix{Hi: w[1]}).AccountType() != account.NonFungibleFaucet {
		if w[1] != felt.Zero() {
			return Asset{}, ErrMalformedFungible
		}
		if w[0].Uint64() > FungibleMaxAmount {
			return Asset{}, ErrMalformedFungible
		}
	} else {
		if w[0].Uint64()&nonFungibleHighBitMask != 0 {
			return Asset{}, ErrMalformedNonFungible
		}
	}
	return a, nil
}

// IsFungible reports the asset's kind. Fungible assets reserve position 1
// as zero, while non-fungible assets store a faucet id_hi there, which
// MinAccountOnes guarantees is never all-zero.
func (a Asset) IsFungible() bool {
	return a.w[1].IsZero()
}

// Word returns the asset's raw word.
func (a Asset) Word() felt.Word { return a.w }

// FaucetIdHi returns the embedded faucet's id_hi felt (position 3 for
// fungible assets, position 1 for non-fungible assets).
func (a Asset) FaucetIdHi() felt.Felt {
	if a.IsFungible() {
		return a.w[3]
	}
	return a.w[1]
}

// FungibleAmount returns the fungible amount; only meaningful if IsFungible.
func (a Asset) FungibleAmount() uint64 { return a.w[0].Uint64() }

// Key returns a deterministic SMT membership key for a, used by a
// non-fungible faucet's minted-NFT tree. Hashing the full word rather
// than truncating it keeps two assets differing only in a high-order
// felt from colliding on the same key.
func (a Asset) Key() uint64 {
	return felt.SequentialHash([]felt.Word{a.w}, felt.EmptyWord)[0].Uint64()
}

// Equal compares fungible assets by faucet id and non-fungible assets by
// full word.
func (a Asset) Equal(b Asset) bool {
	if a.IsFungible() != b.IsFungible() {
		return false
	}
	if a.IsFungible() {
		return a.FaucetIdHi() == b.FaucetIdHi()
	}
	return a.w == b.w
}
