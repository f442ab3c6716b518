// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package kernel

import (
	"errors"

	"github.com/luxfi/txkernel/account"
	"github.com/luxfi/txkernel/felt"
	"github.com/luxfi/txkernel/kernelmem"
	"github.com/luxfi/txkernel/note"
)

var (
	ErrNonceNotIncreased      = errors.New("kernel: epilogue requires new_nonce > init_nonce")
	ErrNonceIncrTooLarge      = errors.New("kernel: nonce increment exceeds MAX_NONCE_INCR")
	ErrAssetPreservation      = errors.New("kernel: output vault + output notes does not equal input vault + initial account vault")
	ErrFaucetIssuanceMismatch = errors.New("kernel: faucet issuance delta does not match the reserved slot's post-tx value")
)

// EpilogueOutputs are the kernel's two public-output words.
type EpilogueOutputs struct {
	OutputNotesCommitment felt.Digest
	FinalAccountHash      felt.Digest
}

// RunEpilogue runs the kernel's final sequence: dispatch the tx script
// if present, compute the new account hash, enforce the nonce increment,
// compute the output-notes commitment, and check asset preservation.
// txScript is nil when TxScriptRoot is empty.
func RunEpilogue(ctx *Context, txScript Script, txArgs felt.Word) (EpilogueOutputs, error) {
	if ctx.TxScriptRoot != felt.EmptyWord {
		if txScript == nil {
			return EpilogueOutputs{}, fail(PhaseTxScript, ErrCodeUnknownScript, ErrUnknownScript)
		}
		ctx.CurrentOrigin = OriginAccount
		if err := txScript.Run(ctx, nil, nil, txArgs); err != nil {
			return EpilogueOutputs{}, fail(PhaseTxScript, ErrCodeScriptAssertFailed, joinScriptErr(err))
		}
	}

	finalHash := ctx.Account.Commitment()

	// The identity word still carries the nonce the prologue streamed in;
	// read it before overwriting with the post-execution value.
	initNonce := ctx.Mem.ReadAccountData().Nonce
	if ctx.IsNewAccount {
		initNonce = felt.Zero()
	}
	ctx.Mem.SetAcctNonce(ctx.Account.Nonce)
	incr := ctx.Account.Nonce.Sub(initNonce)
	if ctx.Account.Nonce.Uint64() <= initNonce.Uint64() {
		return EpilogueOutputs{}, fail(PhaseEpilogue, ErrCodeNonceNotIncreased, ErrNonceNotIncreased)
	}
	if incr.Uint64() >= uint64(1)<<32 {
		return EpilogueOutputs{}, fail(PhaseEpilogue, ErrCodeNonceRange, ErrNonceIncrTooLarge)
	}

	outputCommitment := outputNotesCommitment(ctx.OutputNotes)

	if err := checkAssetPreservation(ctx); err != nil {
		return EpilogueOutputs{}, fail(PhaseEpilogue, ErrCodeAssetPreservation, err)
	}

	ctx.Mem.Write(kernelmem.AddrOutputVaultRoot, ctx.OutputVault.Root())

	return EpilogueOutputs{
		OutputNotesCommitment: outputCommitment,
		FinalAccountHash:      finalHash,
	}, nil
}

// outputNotesCommitment is a sequential hash over (NoteId_i, metadata_i)
// for each output note in creation order.
func outputNotesCommitment(notes []OutputNote) felt.Digest {
	if len(notes) == 0 {
		return felt.EmptyWord
	}
	words := make([]felt.Word, 0, len(notes)*2)
	for _, n := range notes {
		words = append(words, n.NoteId(), n.Metadata(note.ExecutionHint{}).Pack())
	}
	return felt.SequentialHash(words, felt.EmptyWord)
}

// checkAssetPreservation enforces transaction-wide asset preservation.
// Every account-vault or output-note mutation this transaction made was
// recorded signed in ctx.FungibleDelta/NonFungibleDelta as it happened
// (kernel/accountapi.go's AddAsset/RemoveAsset/AddAssetToNote and
// kernel/scripts.go's consumeNoteAssets): +1 when value enters the
// account vault or an output note, -1 when it leaves a vault. A balanced
// non-faucet transaction can only move value between the input vault,
// the account's own vault, and output notes -- it can never create or
// destroy it -- so every entry must net to exactly zero. For faucets,
// minting and burning are legitimate sources/sinks handled separately by
// checkFaucetPreservation.
func checkAssetPreservation(ctx *Context) error {
	if ctx.Account.ID.AccountType().IsFaucet() {
		return checkFaucetPreservation(ctx)
	}
	for _, delta := range ctx.FungibleDelta {
		if delta != 0 {
			return ErrAssetPreservation
		}
	}
	for _, delta := range ctx.NonFungibleDelta {
		if delta != 0 {
			return ErrAssetPreservation
		}
	}
	return nil
}

// checkFaucetPreservation checks the faucet branch: the transaction's
// net (minted - burned) must match the reserved slot's observed change.
func checkFaucetPreservation(ctx *Context) error {
	if ctx.Account.ID.AccountType() != account.FungibleFaucet {
		return nil // non-fungible faucet issuance is tracked by SMT membership, enforced at MintAsset time
	}
	faucetIDHi := ctx.Account.ID.Hi.Uint64()
	minted := ctx.FungibleMinted[faucetIDHi]
	burned := ctx.FungibleBurned[faucetIDHi]
	expected := ctx.InitialFaucetIssue.Uint64() + minted - burned
	if ctx.Account.FaucetTotalIssuance().Uint64() != expected {
		return ErrFaucetIssuanceMismatch
	}
	return nil
}
