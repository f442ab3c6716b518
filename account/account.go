// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package account

import (
	"errors"

	"github.com/luxfi/txkernel/felt"
	"github.com/luxfi/txkernel/kernelmem"
	"github.com/luxfi/txkernel/merkle"
)

// StorageDepth/CodeDepth are the fixed SMT depths backing an account's
// storage (256 indexed slots) and code (up to 256 procedures) trees.
const (
	StorageDepth = 8
	CodeDepth    = 8
)

var (
	ErrNewAccountBadNonce       = errors.New("account: new account must have nonce zero")
	ErrNewAccountBadVault       = errors.New("account: new account must have an empty vault")
	ErrExistingZeroNonce        = errors.New("account: existing account must have nonce greater than zero")
	ErrNonFungibleAlreadyMinted = errors.New("account: non-fungible asset already minted")
)

// Account is the mutable state a transaction transitions. Storage and Code are modeled as sparse Merkle trees so that
// the storage and code commitments are always the live tree roots
// (Storage.Root(), Code.Root()), and
// individual slot/procedure updates are O(depth) rather than requiring a
// full recompute.
type Account struct {
	ID      Id
	Nonce   felt.Felt
	Vault   *merkle.SMT // depth 20, keyed by asset vault key
	Storage *merkle.SMT // depth StorageDepth, keyed by slot index
	Code    *merkle.SMT // depth CodeDepth, keyed by procedure index
	Slots   kernelmem.Registry

	// Procedures lists the account's MAST roots in index order, mirroring
	// Code's contents in a form that supports direct membership checks
	// (kernel/accountapi's origin gate: "the caller's MAST root must
	// belong to the account's code tree").
	Procedures []felt.Digest

	// Maps holds the backing sparse Merkle tree for each Map-kind storage
	// slot, keyed by slot index and created lazily. Storage[i] caches that
	// tree's root; Maps[i] is the tree itself.
	Maps map[uint64]*merkle.SMT
}

// MapDepth is the SMT depth backing a Map-kind storage slot.
const MapDepth = 32

// VaultDepth is the SMT depth backing account and note asset vaults.
const VaultDepth = 20

// New builds a fresh, unseeded account of the given id/type with empty
// vault, storage, and code trees and nonce zero.
func New(id Id) *Account {
	return &Account{
		ID:      id,
		Nonce:   felt.Zero(),
		Vault:   merkle.NewSMT(VaultDepth),
		Storage: merkle.NewSMT(StorageDepth),
		Code:    merkle.NewSMT(CodeDepth),
		Maps:    make(map[uint64]*merkle.SMT),
	}
}

// Commitment computes the account commitment: a sequential hash of the
// identity word, vault root, storage root, and code root.
func (a *Account) Commitment() felt.Digest {
	identity := felt.Word{a.ID.Lo, a.ID.Hi, felt.Zero(), a.Nonce}
	words := []felt.Word{identity, a.Vault.Root(), a.Storage.Root(), a.Code.Root()}
	return felt.SequentialHash(words, felt.EmptyWord)
}

// AddProcedure installs mastRoot at procedure index i, updating both the
// code tree (whose root is the code commitment) and the flat membership list
// the account interface's origin checks scan.
func (a *Account) AddProcedure(i uint64, mastRoot felt.Digest) {
	a.Code.Set(i, mastRoot)
	for uint64(len(a.Procedures)) <= i {
		a.Procedures = append(a.Procedures, felt.EmptyWord)
	}
	a.Procedures[i] = mastRoot
}

// HasProcedure reports whether mastRoot belongs to the account's code
// tree, the gate every privileged kernel procedure enforces.
func (a *Account) HasProcedure(mastRoot felt.Digest) bool {
	for _, p := range a.Procedures {
		if p == mastRoot {
			return true
		}
	}
	return false
}

// GetSlot reads slot i's Word value (for Value slots) or map root (for
// Map slots, stored in the same tree).
func (a *Account) GetSlot(i uint64) felt.Word {
	return a.Storage.Get(i)
}

// SetSlot writes slot i's value, asserting the slot's declared type is
// Value.
func (a *Account) SetSlot(i uint64, value felt.Word) error {
	if a.Slots[i].Type != kernelmem.SlotTypeValue {
		return kernelmem.ErrSetItemWrongSlotType
	}
	a.Storage.Set(i, value)
	return nil
}

// SetMapRoot writes slot i's map root, asserting the slot's declared type
// is Map.
func (a *Account) SetMapRoot(i uint64, root felt.Digest) error {
	if a.Slots[i].Type != kernelmem.SlotTypeMap {
		return kernelmem.ErrMapItemWrongSlotType
	}
	a.Storage.Set(i, root)
	return nil
}

// mapTree returns slot i's backing map tree, allocating an empty one on
// first use.
func (a *Account) mapTree(i uint64) *merkle.SMT {
	if t, ok := a.Maps[i]; ok {
		return t
	}
	t := merkle.NewSMT(MapDepth)
	a.Maps[i] = t
	return t
}

// GetMapItem reads key from the Map rooted at slot i, asserting the
// slot's declared type is Map.
func (a *Account) GetMapItem(i uint64, key uint64) (felt.Word, error) {
	if a.Slots[i].Type != kernelmem.SlotTypeMap {
		return felt.Word{}, kernelmem.ErrMapItemWrongSlotType
	}
	return a.mapTree(i).Get(key), nil
}

// SetMapItem writes key in the Map rooted at slot i and updates the
// slot's cached root, asserting the slot's declared type is Map.
func (a *Account) SetMapItem(i uint64, key uint64, value felt.Word) (felt.Digest, error) {
	if a.Slots[i].Type != kernelmem.SlotTypeMap {
		return felt.Digest{}, kernelmem.ErrMapItemWrongSlotType
	}
	_, _, newRoot := a.mapTree(i).Set(key, value)
	a.Storage.Set(i, newRoot)
	return newRoot, nil
}

// ValidateAsNew enforces the new-account invariants: nonce zero and an
// empty vault.
func (a *Account) ValidateAsNew() error {
	if !a.Nonce.IsZero() {
		return ErrNewAccountBadNonce
	}
	if a.Vault.Root() != a.Vault.EmptyRoot() {
		return ErrNewAccountBadVault
	}
	return nil
}

// ValidateAsExisting enforces the existing-account invariant: nonce
// strictly greater than zero.
func (a *Account) ValidateAsExisting() error {
	if a.Nonce.IsZero() {
		return ErrExistingZeroNonce
	}
	return nil
}

// IncrNonce adds delta to the account's nonce. Range and monotonicity
// checks are the caller's responsibility (kernel/accountapi), since they
// depend on transaction-scoped state this type does not track.
func (a *Account) IncrNonce(delta felt.Felt) {
	a.Nonce = a.Nonce.Add(delta)
}

// FaucetTotalIssuance reads the fungible faucet reserved slot. Callers
// must have already checked ID.AccountType() == FungibleFaucet.
func (a *Account) FaucetTotalIssuance() felt.Felt {
	return a.GetSlot(kernelmem.FaucetReservedSlot)[3]
}

// SetFaucetTotalIssuance writes the fungible faucet reserved slot.
func (a *Account) SetFaucetTotalIssuance(total felt.Felt) {
	a.Storage.Set(kernelmem.FaucetReservedSlot, felt.Word{felt.Zero(), felt.Zero(), felt.Zero(), total})
}

// NonFungibleMintedRoot reads the non-fungible faucet reserved slot's
// minted-NFT tree root.
func (a *Account) NonFungibleMintedRoot() felt.Digest {
	return a.GetSlot(kernelmem.FaucetReservedSlot)
}

// SetNonFungibleMintedRoot writes the non-fungible faucet reserved slot.
func (a *Account) SetNonFungibleMintedRoot(root felt.Digest) {
	a.Storage.Set(kernelmem.FaucetReservedSlot, root)
}

// NonFungibleMintedDepth is the SMT depth backing a non-fungible faucet's
// minted-NFT membership tree.
const NonFungibleMintedDepth = 64

// nonFungibleMintedMapKey is the reserved Maps key backing a non-fungible
// faucet's minted-NFT tree. It sits outside the 0-255 slot-index keyspace
// every other Maps entry uses, so it cannot collide with a Map-kind
// storage slot's own tree.
const nonFungibleMintedMapKey = ^uint64(0)

// nonFungibleMintedTree returns the account's minted-NFT membership tree,
// allocating an empty one on first use and keeping Storage's reserved
// faucet slot in sync with its root.
func (a *Account) nonFungibleMintedTree() *merkle.SMT {
	if t, ok := a.Maps[nonFungibleMintedMapKey]; ok {
		return t
	}
	t := merkle.NewSMT(NonFungibleMintedDepth)
	a.Maps[nonFungibleMintedMapKey] = t
	a.SetNonFungibleMintedRoot(t.Root())
	return t
}

// HasMintedNonFungible reports whether key (an asset.Asset.Key() value)
// is already present in the account's minted-NFT tree.
func (a *Account) HasMintedNonFungible(key uint64) bool {
	return !a.nonFungibleMintedTree().Get(key).IsEmpty()
}

// MintNonFungible records key as minted, failing with
// ErrNonFungibleAlreadyMinted if it is already present; a duplicate mint
// of the same NFT is an SMT insert of an existing key.
func (a *Account) MintNonFungible(key uint64) error {
	t := a.nonFungibleMintedTree()
	if !t.Get(key).IsEmpty() {
		return ErrNonFungibleAlreadyMinted
	}
	_, _, newRoot := t.Set(key, felt.Word{felt.New(1), felt.Zero(), felt.Zero(), felt.Zero()})
	a.SetNonFungibleMintedRoot(newRoot)
	return nil
}
