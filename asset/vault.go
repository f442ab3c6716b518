// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asset

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/luxfi/txkernel/account"
	"github.com/luxfi/txkernel/felt"
	"github.com/luxfi/txkernel/merkle"
)

var fungibleMaxAmount256 = uint256.NewInt(FungibleMaxAmount)

var (
	ErrNonFungibleAlreadyPresent = errors.New("asset: vault already holds this non-fungible asset")
	ErrAssetNotPresent           = errors.New("asset: vault has no such asset to remove")
)

// Vault is a sparse Merkle tree of assets: one entry
// per distinct fungible faucet (aggregated balance) or per distinct
// non-fungible asset. Backs both account vaults and the per-transaction
// input/output vaults the prologue and note processor maintain.
type Vault struct {
	tree *merkle.SMT
}

// NewVault returns an empty vault.
func NewVault() *Vault {
	return &Vault{tree: merkle.NewSMT(account.VaultDepth)}
}

// WrapVault views an existing vault-shaped tree (an account's Vault
// field) as a *Vault, so account-interface procedures can reuse the same
// balance/add/remove logic the per-transaction input/output vaults use.
// Mutations through the returned Vault write back through tree.
func WrapVault(tree *merkle.SMT) *Vault {
	return &Vault{tree: tree}
}

// Root returns the vault's commitment.
func (v *Vault) Root() felt.Digest { return v.tree.Root() }

// key maps an asset to its SMT slot: the hash of the faucet id for
// fungibles (so repeated deposits of the same faucet aggregate into one
// entry), or the hash of the full asset word for non-fungibles (so every
// distinct NFT gets its own entry).
func key(a Asset) uint64 {
	var h felt.Digest
	if a.IsFungible() {
		h = felt.HashTwo(felt.Word{a.FaucetIdHi(), felt.Zero(), felt.Zero(), felt.Zero()}, felt.EmptyWord)
	} else {
		h = felt.HashTwo(a.Word(), felt.EmptyWord)
	}
	return h[0].Uint64() & ((uint64(1) << account.VaultDepth) - 1)
}

// GetBalance returns the aggregated fungible balance held for faucetIdHi,
// or zero if none is present.
func (v *Vault) GetBalance(faucetIdHi felt.Felt) uint64 {
	h := felt.HashTwo(felt.Word{faucetIdHi, felt.Zero(), felt.Zero(), felt.Zero()}, felt.EmptyWord)
	k := h[0].Uint64() & ((uint64(1) << account.VaultDepth) - 1)
	return v.tree.Get(k)[0].Uint64()
}

// HasNonFungible reports whether a is present.
func (v *Vault) HasNonFungible(a Asset) bool {
	if a.IsFungible() {
		return false
	}
	return v.tree.Get(key(a)) == a.Word()
}

// Add deposits a into the vault. Fungible deposits check the aggregated
// balance against FungibleMaxAmount; non-fungible deposits reject
// duplicates.
func (v *Vault) Add(a Asset) error {
	k := key(a)
	if a.IsFungible() {
		cur := v.tree.Get(k)
		sum := new(uint256.Int).Add(uint256.NewInt(cur[0].Uint64()), uint256.NewInt(a.FungibleAmount()))
		if sum.Cmp(fungibleMaxAmount256) > 0 {
			return ErrFungibleOverflow
		}
		v.tree.Set(k, felt.Word{felt.New(sum.Uint64()), felt.Zero(), a.Word()[2], a.Word()[3]})
		return nil
	}
	if v.tree.Get(k) != felt.EmptyWord {
		return ErrNonFungibleAlreadyPresent
	}
	v.tree.Set(k, a.Word())
	return nil
}

// Remove withdraws a from the vault. Fungible withdrawals require a
// sufficient aggregated balance; non-fungible withdrawals require the
// exact asset to be present.
func (v *Vault) Remove(a Asset) error {
	k := key(a)
	if a.IsFungible() {
		cur := v.tree.Get(k)
		if cur[0].Uint64() < a.FungibleAmount() {
			return ErrAssetNotPresent
		}
		remaining := cur[0].Uint64() - a.FungibleAmount()
		if remaining == 0 {
			v.tree.Set(k, felt.EmptyWord)
			return nil
		}
		v.tree.Set(k, felt.Word{felt.New(remaining), felt.Zero(), cur[2], cur[3]})
		return nil
	}
	if v.tree.Get(k) != a.Word() {
		return ErrAssetNotPresent
	}
	v.tree.Set(k, felt.EmptyWord)
	return nil
}
