// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package kernel

import (
	"errors"

	"github.com/luxfi/txkernel/account"
	"github.com/luxfi/txkernel/asset"
	"github.com/luxfi/txkernel/felt"
	"github.com/luxfi/txkernel/note"
)

// Script is the Go-side analog of a note/transaction script identified
// by a MAST root. The VM dispatches into bytecode looked up by
// commitment from the advice provider; this interface is the host-side
// capability a note's MAST root resolves to.
type Script interface {
	// Run executes the script against ctx, with origin already set to
	// OriginNote (or OriginAccount for a transaction script) by the
	// caller. assets is the note's raw asset list (the note processor's
	// copy, before any vault movement); args is the note's NOTE_ARGS word
	// pushed by the note loop.
	Run(ctx *Context, n *note.Note, assets []felt.Word, args felt.Word) error
}

// ScriptRegistry resolves a MAST root to the Script that implements it.
type ScriptRegistry map[felt.Digest]Script

var (
	ErrUnknownScript      = errors.New("kernel: no script registered for this MAST root")
	ErrP2IDTargetMismatch = errors.New("kernel: P2ID note targets a different account")
)

// P2IDScript implements the pay-to-id pattern: the target account's id is
// held in TargetIDHi/TargetIDLo; the script asserts the executing account matches,
// then deposits every asset in the note into the account's vault.
type P2IDScript struct {
	TargetIDHi felt.Felt
	TargetIDLo felt.Felt
}

// P2IDRoot is a fixed MAST-root stand-in identifying the P2ID script for
// registry lookup, derived deterministically so multiple notes can share
// one registration.
var P2IDRoot = felt.HashTwo(felt.Word{felt.New(1), felt.Zero(), felt.Zero(), felt.Zero()}, felt.EmptyWord)

func (s P2IDScript) Run(ctx *Context, _ *note.Note, assets []felt.Word, _ felt.Word) error {
	if ctx.Account.ID.Hi != s.TargetIDHi || ctx.Account.ID.Lo != s.TargetIDLo {
		return ErrP2IDTargetMismatch
	}
	return consumeNoteAssets(ctx, assets)
}

// consumeNoteAssets moves every asset recorded for the current note from
// the input vault into the account's vault, for scripts that accept
// their note's assets unconditionally.
func consumeNoteAssets(ctx *Context, assets []felt.Word) error {
	for _, w := range assets {
		a, err := asset.FromWord(w)
		if err != nil {
			return err
		}
		if err := ctx.InputVault.Remove(a); err != nil {
			return err
		}
		ctx.recordDelta(a, -1)
		if err := asset.WrapVault(ctx.Account.Vault).Add(a); err != nil {
			return err
		}
		ctx.recordDelta(a, 1)
	}
	return nil
}

// SwapScript implements the partial-fill SWAP note pattern: the note
// offers OfferAsset in exchange for
// RequestAsset; a transaction args word carries the fill amount m. The
// script splits the note's offered assets proportionally and creates two
// output notes: a refund note tagged for Sender with the unfilled
// remainder's proportional request-side refund, and a new SWAP note
// holding the unfilled offer remainder with the same Recipient (so the
// original counterparty can still complete the rest of the trade).
type SwapScript struct {
	OfferFaucet   account.Id
	OfferAmount   uint64
	RequestFaucet account.Id
	RequestAmount uint64
	Recipient     felt.Digest
	Sender        account.Id
}

var ErrSwapFillExceedsOffer = errors.New("kernel: swap fill amount exceeds the note's offered amount")

// Run consumes args[0] as the fill amount m.
func (s SwapScript) Run(ctx *Context, _ *note.Note, _ []felt.Word, args felt.Word) error {
	m := args[0].Uint64()
	if m > s.OfferAmount {
		return ErrSwapFillExceedsOffer
	}

	offerAsset, err := asset.Fungible(s.OfferFaucet, s.OfferAmount)
	if err != nil {
		return err
	}
	if err := consumeNoteAssets(ctx, []felt.Word{offerAsset.Word()}); err != nil {
		return err
	}

	// filledRequest = floor(m * RequestAmount / OfferAmount) is the portion
	// of the requested asset the partial fill actually settles;
	// remainingRequest goes back to the sender unfilled.
	filledRequest := (m * s.RequestAmount) / s.OfferAmount
	remainingRequest := s.RequestAmount - filledRequest
	if remainingRequest > 0 {
		refundAsset, err := asset.Fungible(s.RequestFaucet, remainingRequest)
		if err != nil {
			return err
		}
		// The executing account supplies the unfilled request-side refund
		// out of its own vault (it is acting as the note's counterparty),
		// so debit it here rather than conjuring the asset from nothing.
		if err := vaultOf(ctx.Account).Remove(refundAsset); err != nil {
			return err
		}
		ctx.recordDelta(refundAsset, -1)
		// The refund travels back to the swap's creator; tag it so the
		// sender's watcher can discover it.
		refundTag := note.BuildTag(note.TagSpecificTarget, s.Sender.Hi)
		idx, err := ctx.CreateNote(refundTag, felt.Zero(), note.Public, s.Recipient)
		if err != nil {
			return err
		}
		if err := ctx.AddAssetToNote(idx, refundAsset); err != nil {
			return err
		}
	}

	remainingOffer := s.OfferAmount - m
	if remainingOffer > 0 {
		reconstitutedAsset, err := asset.Fungible(s.OfferFaucet, remainingOffer)
		if err != nil {
			return err
		}
		// The unfilled offer portion was just deposited whole by
		// consumeNoteAssets above; send it back out rather than keep it.
		if err := vaultOf(ctx.Account).Remove(reconstitutedAsset); err != nil {
			return err
		}
		ctx.recordDelta(reconstitutedAsset, -1)
		idx, err := ctx.CreateNote(0, felt.Zero(), note.Public, s.Recipient)
		if err != nil {
			return err
		}
		if err := ctx.AddAssetToNote(idx, reconstitutedAsset); err != nil {
			return err
		}
	}
	return nil
}
