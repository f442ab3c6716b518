// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package kernel

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/luxfi/txkernel/account"
	"github.com/luxfi/txkernel/asset"
	"github.com/luxfi/txkernel/felt"
	"github.com/luxfi/txkernel/kernelmem"
	"github.com/luxfi/txkernel/note"
)

// Sentinel conditions the account-interface layer's origin/permission
// gates can raise.
var (
	errNotAccountOrigin    = errors.New("kernel: operation requires account-code origin")
	errSetCodeImmutable    = errors.New("kernel: set_code on a non-updatable account")
	errNotFaucet           = errors.New("kernel: faucet-only operation from a non-faucet account")
	errNonFungibleDup      = errors.New("kernel: non-fungible mint would duplicate an existing asset")
	errIssuanceOverflow    = errors.New("kernel: fungible mint would exceed the issuance ceiling")
	errTooManyOutputs      = errors.New("kernel: output notes exceed MaxOutputNotesPerTx")
	errTooManyNoteAssets   = errors.New("kernel: output note assets exceed MaxAssetsPerNote")
	errBadNonceIncr        = errors.New("kernel: nonce increment out of [0, 2^32) range")
	errBadExpirationDelta  = errors.New("kernel: expiration delta out of [1, 2^16) range or increased after being set")
	errNoSuchOutputNote    = errors.New("kernel: no such output note index")
	errForeignNested       = errors.New("kernel: execute_foreign_procedure may not be called from within a foreign context")
	errForeignArgsTooLarge = errors.New("kernel: execute_foreign_procedure allows at most 15 inputs/outputs")
	errForeignNoLoader     = errors.New("kernel: execute_foreign_procedure requires a ForeignLoader")
	errForeignNoSuchProc   = errors.New("kernel: FOREIGN_PROC_ROOT does not belong to the foreign account's code tree")
	errBurnExceedsIssuance = errors.New("kernel: fungible burn exceeds the faucet's recorded total issuance")
)

// maxForeignProcArgs bounds execute_foreign_procedure's inputs and
// outputs.
const maxForeignProcArgs = 15

// GetId, GetNonce, GetInitialHash, GetCurrentHash are read-only in any
// context.
func (c *Context) GetId() account.Id           { return c.Account.ID }
func (c *Context) GetNonce() felt.Felt         { return c.Account.Nonce }
func (c *Context) GetInitialHash() felt.Digest { return c.InitAccountHash }
func (c *Context) GetCurrentHash() felt.Digest { return c.Account.Commitment() }

// IncrNonce adds value to the account's nonce; account-origin only, value
// must be in [0, 2^32).
func (c *Context) IncrNonce(value uint64) error {
	if err := c.requireAccountOrigin(); err != nil {
		return err
	}
	if value >= uint64(1)<<32 {
		return fail(PhaseAccountAPI, ErrCodeNonceRange, errBadNonceIncr)
	}
	c.Account.IncrNonce(felt.New(value))
	return nil
}

// GetItem reads a Value slot.
func (c *Context) GetItem(index uint64) felt.Word {
	return c.Account.GetSlot(index)
}

// SetItem writes a Value slot; account-origin only.
func (c *Context) SetItem(index uint64, value felt.Word) error {
	if err := c.requireAccountOrigin(); err != nil {
		return err
	}
	if err := c.Account.SetSlot(index, value); err != nil {
		return fail(PhaseAccountAPI, ErrCodeInvalidSlotType, err)
	}
	return nil
}

// GetMapItem reads key from the Map rooted at slot index.
func (c *Context) GetMapItem(index uint64, key uint64) (felt.Word, error) {
	w, err := c.Account.GetMapItem(index, key)
	if err != nil {
		return felt.Word{}, fail(PhaseAccountAPI, ErrCodeInvalidSlotType, err)
	}
	return w, nil
}

// SetMapItem writes key in the Map rooted at slot index; account-origin
// only.
func (c *Context) SetMapItem(index uint64, key uint64, value felt.Word) (felt.Digest, error) {
	if err := c.requireAccountOrigin(); err != nil {
		return felt.Digest{}, err
	}
	newRoot, err := c.Account.SetMapItem(index, key, value)
	if err != nil {
		return felt.Digest{}, fail(PhaseAccountAPI, ErrCodeInvalidSlotType, err)
	}
	return newRoot, nil
}

// SetCode replaces the account's code root; only permitted on
// RegularUpdatable accounts.
func (c *Context) SetCode(newCodeRoot felt.Digest) error {
	if err := c.requireAccountOrigin(); err != nil {
		return err
	}
	if c.Account.ID.AccountType() != account.RegularUpdatable {
		return fail(PhaseAccountAPI, ErrCodeSetCodeImmutable, errSetCodeImmutable)
	}
	c.Mem.Write(kernelmem.AddrAcctNewCodeRoot, newCodeRoot)
	return nil
}

// GetBalance reads the account vault's aggregated fungible balance for a
// faucet.
func (c *Context) GetBalance(faucetIdHi felt.Felt) uint64 {
	return vaultOf(c.Account).GetBalance(faucetIdHi)
}

// HasNonFungibleAsset reports whether the account vault holds a.
func (c *Context) HasNonFungibleAsset(a asset.Asset) bool {
	return vaultOf(c.Account).HasNonFungible(a)
}

// vaultOf adapts an account's vault tree into an
// asset.Vault view. Account.Vault already is a *merkle.SMT of the right
// shape; asset.Vault is a thin wrapper over the same type, so this just
// re-wraps the pointer.
func vaultOf(a *account.Account) *asset.Vault {
	return asset.WrapVault(a.Vault)
}

// AddAsset deposits asset into the account's own vault; account-origin
// only. A fungible deposit that would take the balance past
// FungibleMaxAmount fails with ErrCodeFungibleOverflow.
func (c *Context) AddAsset(a asset.Asset) error {
	if err := c.requireAccountOrigin(); err != nil {
		return err
	}
	if err := vaultOf(c.Account).Add(a); err != nil {
		return fail(PhaseAccountAPI, ErrCodeFungibleOverflow, err)
	}
	c.recordDelta(a, 1)
	return nil
}

// RemoveAsset withdraws asset from the account's own vault; account-origin
// only.
func (c *Context) RemoveAsset(a asset.Asset) error {
	if err := c.requireAccountOrigin(); err != nil {
		return err
	}
	if err := vaultOf(c.Account).Remove(a); err != nil {
		return fail(PhaseAccountAPI, ErrCodeAssetNotPresent, err)
	}
	c.recordDelta(a, -1)
	return nil
}

// CreateNote appends a new output note slot and returns its index.
func (c *Context) CreateNote(tag uint32, aux felt.Felt, noteType note.Type, recipient felt.Digest) (int, error) {
	if len(c.OutputNotes) >= kernelmem.MaxOutputNotesPerTx {
		return 0, fail(PhaseAccountAPI, ErrCodeTooManyOutputNotes, errTooManyOutputs)
	}
	idx := len(c.OutputNotes)
	c.OutputNotes = append(c.OutputNotes, OutputNote{
		Tag:       tag,
		Aux:       aux,
		NoteType:  noteType,
		Sender:    c.Account.ID,
		Recipient: recipient,
	})
	return idx, nil
}

// AddAssetToNote appends asset to output note noteIdx's asset list, up to
// MaxAssetsPerNote.
func (c *Context) AddAssetToNote(noteIdx int, a asset.Asset) error {
	if noteIdx < 0 || noteIdx >= len(c.OutputNotes) {
		return fail(PhaseAccountAPI, ErrCodeTooManyNoteAssets, errNoSuchOutputNote)
	}
	n := &c.OutputNotes[noteIdx]
	if len(n.Assets) >= note.MaxAssetsPerNote {
		return fail(PhaseAccountAPI, ErrCodeTooManyNoteAssets, errTooManyNoteAssets)
	}
	n.Assets = append(n.Assets, a.Word())
	if err := c.OutputVault.Add(a); err != nil {
		return fail(PhaseAccountAPI, ErrCodeFungibleOverflow, err)
	}
	c.recordDelta(a, 1)
	return nil
}

// MintAsset credits a faucet-minted asset; faucet-only.
func (c *Context) MintAsset(a asset.Asset) error {
	if !c.Account.ID.AccountType().IsFaucet() {
		return fail(PhaseAccountAPI, ErrCodeNotFaucet, errNotFaucet)
	}
	if a.IsFungible() {
		if c.Account.ID.AccountType() != account.FungibleFaucet {
			return fail(PhaseAccountAPI, ErrCodeAssetOriginMismatch, asset.ErrFungibleOriginMismatch)
		}
		total := c.Account.FaucetTotalIssuance()
		newTotal := new(uint256.Int).Add(uint256.NewInt(total.Uint64()), uint256.NewInt(a.FungibleAmount()))
		if newTotal.Cmp(uint256.NewInt(asset.FungibleMaxAmount)) > 0 {
			return fail(PhaseAccountAPI, ErrCodeFungibleOverflow, errIssuanceOverflow)
		}
		c.Account.SetFaucetTotalIssuance(felt.New(newTotal.Uint64()))
		c.FungibleMinted[a.FaucetIdHi().Uint64()] += a.FungibleAmount()
		return nil
	}
	if c.Account.ID.AccountType() != account.NonFungibleFaucet {
		return fail(PhaseAccountAPI, ErrCodeAssetOriginMismatch, asset.ErrNonFungibleOriginMismatch)
	}
	if err := c.Account.MintNonFungible(a.Key()); err != nil {
		return fail(PhaseAccountAPI, ErrCodeNonFungibleDuplicate, errNonFungibleDup)
	}
	c.FungibleMinted[a.FaucetIdHi().Uint64()]++
	return nil
}

// BurnAsset debits a faucet-minted asset; faucet-only, validates presence
// in the input vault. Fungible burns retire the amount from the reserved
// slot's total issuance.
func (c *Context) BurnAsset(a asset.Asset) error {
	if !c.Account.ID.AccountType().IsFaucet() {
		return fail(PhaseAccountAPI, ErrCodeNotFaucet, errNotFaucet)
	}
	if err := c.InputVault.Remove(a); err != nil {
		return fail(PhaseAccountAPI, ErrCodeAssetNotPresent, err)
	}
	c.recordDelta(a, -1)
	if a.IsFungible() {
		total := c.Account.FaucetTotalIssuance()
		if total.Uint64() < a.FungibleAmount() {
			return fail(PhaseAccountAPI, ErrCodeAssetPreservation, errBurnExceedsIssuance)
		}
		c.Account.SetFaucetTotalIssuance(felt.New(total.Uint64() - a.FungibleAmount()))
		c.FungibleBurned[a.FaucetIdHi().Uint64()] += a.FungibleAmount()
	} else {
		c.FungibleBurned[a.FaucetIdHi().Uint64()]++
	}
	return nil
}

// ExecuteForeignProcedure enters a read-only foreign context rooted at
// foreignID's account: the host-supplied ForeignLoader fetches that
// account's authenticated state, proc runs against it with up to 15
// inputs and must return at most 15 outputs, and the native context is
// restored before returning regardless of outcome. Nested foreign calls
// are rejected; a foreign call is a single hop out and back, not a call
// stack.
func (c *Context) ExecuteForeignProcedure(foreignID account.Id, procRoot felt.Digest, proc ForeignProcedure, inputs []felt.Word) ([]felt.Word, error) {
	if c.CurrentOrigin == OriginForeign {
		return nil, fail(PhaseAccountAPI, ErrCodeForeignCallNested, errForeignNested)
	}
	if len(inputs) > maxForeignProcArgs {
		return nil, fail(PhaseAccountAPI, ErrCodeForeignArgsTooLarge, errForeignArgsTooLarge)
	}
	if c.ForeignLoader == nil {
		return nil, fail(PhaseAccountAPI, ErrCodeForeignLoadFailed, errForeignNoLoader)
	}

	foreignAcct, err := c.ForeignLoader(foreignID)
	if err != nil {
		return nil, fail(PhaseAccountAPI, ErrCodeForeignLoadFailed, err)
	}
	if !foreignAcct.HasProcedure(procRoot) {
		return nil, fail(PhaseAccountAPI, ErrCodeForeignNoSuchProc, errForeignNoSuchProc)
	}

	nativeAccount, nativeOrigin := c.Account, c.CurrentOrigin
	c.Account = foreignAcct
	c.CurrentOrigin = OriginForeign
	outputs, runErr := proc.Run(c, inputs)
	c.Account, c.CurrentOrigin = nativeAccount, nativeOrigin
	if runErr != nil {
		return nil, fail(PhaseAccountAPI, ErrCodeScriptAssertFailed, runErr)
	}
	if len(outputs) > maxForeignProcArgs {
		return nil, fail(PhaseAccountAPI, ErrCodeForeignArgsTooLarge, errForeignArgsTooLarge)
	}
	return outputs, nil
}

// GetFungibleFaucetTotalIssuance reads slot 254; fungible-faucet-only.
func (c *Context) GetFungibleFaucetTotalIssuance() (felt.Felt, error) {
	if c.Account.ID.AccountType() != account.FungibleFaucet {
		return felt.Zero(), fail(PhaseAccountAPI, ErrCodeNotFaucet, errNotFaucet)
	}
	return c.Account.FaucetTotalIssuance(), nil
}

// UpdateExpirationBlockDelta sets the transaction's expiration delta; it
// may only decrease monotonically once set within a transaction.
func (c *Context) UpdateExpirationBlockDelta(delta uint32) error {
	if delta == 0 || delta >= uint32(1)<<16 {
		return fail(PhaseAccountAPI, ErrCodeExpirationDelta, errBadExpirationDelta)
	}
	if c.ExpirationDeltaSet && delta > c.ExpirationDelta {
		return fail(PhaseAccountAPI, ErrCodeExpirationDelta, errBadExpirationDelta)
	}
	c.ExpirationDelta = delta
	c.ExpirationDeltaSet = true
	return nil
}

// GetExpirationBlockDelta reads the current expiration delta.
func (c *Context) GetExpirationBlockDelta() (uint32, bool) {
	return c.ExpirationDelta, c.ExpirationDeltaSet
}
