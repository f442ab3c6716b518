// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package kernel

import (
	"github.com/luxfi/log"

	"github.com/luxfi/txkernel/account"
	"github.com/luxfi/txkernel/asset"
	"github.com/luxfi/txkernel/chain"
	"github.com/luxfi/txkernel/felt"
	"github.com/luxfi/txkernel/kernelmem"
	"github.com/luxfi/txkernel/note"
)

// Origin identifies which execution context a kernel procedure call came
// from.
type Origin uint8

const (
	OriginAccount Origin = iota
	OriginNote
	OriginForeign
)

// OutputNote is an output note slot assembled during execution by
// create_note/add_asset_to_note.
type OutputNote struct {
	Tag       uint32
	Aux       felt.Felt
	NoteType  note.Type
	Sender    account.Id
	Recipient felt.Digest
	Assets    []felt.Word
}

// AssetsCommitment computes the output note's per-note asset hash.
func (o OutputNote) AssetsCommitment() felt.Digest {
	return note.AssetsCommitment(o.Assets)
}

// NoteId reproduces the note.Note identity computation from an output
// note's recipient and assembled assets.
func (o OutputNote) NoteId() felt.Digest {
	return felt.HashTwo(o.Recipient, o.AssetsCommitment())
}

// Metadata packs the output note's metadata word.
func (o OutputNote) Metadata(hint note.ExecutionHint) note.Metadata {
	return note.Metadata{Sender: o.Sender, Tag: o.Tag, NoteType: o.NoteType, Aux: o.Aux, Hint: hint}
}

// Context is the single transaction's live state, threaded through all
// four kernel phases and discarded at transaction end.
type Context struct {
	Log log.Logger

	Mem     *kernelmem.Memory
	Account *account.Account

	InitAccountHash    felt.Digest
	IsNewAccount       bool
	InitialFaucetIssue felt.Felt // fungible faucets: total_issuance at tx start

	ChainHeader chain.Header
	ChainMMR    *chain.MMR

	InputVault  *asset.Vault
	OutputVault *asset.Vault

	ConsumedNotes []note.Note
	Nullifiers    []felt.Digest

	OutputNotes []OutputNote

	TxScriptRoot felt.Digest

	ExpirationDelta    uint32
	ExpirationDeltaSet bool

	FungibleMinted map[uint64]uint64 // faucet id_hi -> minted this tx
	FungibleBurned map[uint64]uint64 // faucet id_hi -> burned this tx

	// FungibleDelta/NonFungibleDelta are the epilogue's asset-preservation
	// ledger: every account-vault or
	// output-note mutation records a signed contribution here, and a
	// balanced non-faucet transaction nets every entry to zero. Fungible
	// is keyed by faucet id_hi; non-fungible by the asset's full word
	// (quantity is always one).
	FungibleDelta    map[uint64]int64
	NonFungibleDelta map[felt.Word]int64

	CurrentOrigin Origin

	// ForeignLoader fetches another account's authenticated state for
	// execute_foreign_procedure. Nil unless the host wires one in.
	ForeignLoader ForeignAccountLoader

	Events []string
}

// ForeignAccountLoader fetches and authenticates a foreign account's state
// on behalf of execute_foreign_procedure.
type ForeignAccountLoader func(id account.Id) (*account.Account, error)

// ForeignProcedure is the Go-side stand-in for a MAST procedure rooted in
// a foreign account's code tree. The kernel's Go side never interprets
// MAST code itself -- that is the VM's job -- so a foreign call is
// modeled as a host-supplied callback exactly the way kernel/scripts.go's
// Script interface models note and transaction scripts.
type ForeignProcedure interface {
	Run(ctx *Context, inputs []felt.Word) ([]felt.Word, error)
}

// NewContext builds an empty transaction context bound to a freshly
// allocated memory arena.
func NewContext(logger log.Logger) *Context {
	return &Context{
		Log:            logger,
		Mem:            kernelmem.New(),
		InputVault:     asset.NewVault(),
		OutputVault:    asset.NewVault(),
		FungibleMinted: make(map[uint64]uint64),
		FungibleBurned: make(map[uint64]uint64),
		CurrentOrigin:  OriginAccount,
	}
}

// Emit records a cooperative, host-visible event. Events never affect
// commitments; the host may drain or ignore them.
func (c *Context) Emit(name string) {
	c.Events = append(c.Events, name)
}

// recordDelta adds a to the asset-preservation ledger, signed by sign
// (+1 for value entering the account vault or an output note, -1 for
// value leaving a vault). checkAssetPreservation (kernel/epilogue.go)
// requires every entry to net to zero for a non-faucet transaction.
func (c *Context) recordDelta(a asset.Asset, sign int64) {
	if c.FungibleDelta == nil {
		c.FungibleDelta = make(map[uint64]int64)
	}
	if c.NonFungibleDelta == nil {
		c.NonFungibleDelta = make(map[felt.Word]int64)
	}
	if a.IsFungible() {
		c.FungibleDelta[a.FaucetIdHi().Uint64()] += sign * int64(a.FungibleAmount())
		return
	}
	c.NonFungibleDelta[a.Word()] += sign
}

// requireAccountOrigin is the gate every privileged account-interface
// procedure starts with.
func (c *Context) requireAccountOrigin() error {
	if c.CurrentOrigin != OriginAccount {
		return fail(PhaseAccountAPI, ErrCodeNotAccountOrigin, errNotAccountOrigin)
	}
	return nil
}
