// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package kernel implements the transaction kernel's sequential phases
// (prologue, note processor, account interface, epilogue) as one Go
// package: all four share a single transaction context and none is
// independently useful without the others.
package kernel

import (
	"github.com/cockroachdb/errors"
)

// Code is a stable, typed error code. Every kernel-fatal condition
// carries one so the host can report a typed error without parsing
// strings.
type Code string

const (
	// Input-authentication
	ErrCodeBlockHashMismatch        Code = "ERR_BLOCK_HASH_MISMATCH"
	ErrCodeChainRootMismatch        Code = "ERR_CHAIN_ROOT_MISMATCH"
	ErrCodeAccountHashMismatch      Code = "ERR_ACCOUNT_HASH_MISMATCH"
	ErrCodeNoteAssetsHashMismatch   Code = "ERR_NOTE_ASSETS_HASH_MISMATCH"
	ErrCodeInputNotesCommitMismatch Code = "ERR_INPUT_NOTES_COMMITMENT_MISMATCH"
	ErrCodeNoteAuthFailed           Code = "ERR_NOTE_MMR_AUTH_FAILED"

	// Structural-validation
	ErrCodeAccountTooFewOnes   Code = "ERR_ACCOUNT_TOO_FEW_ONES"
	ErrCodeInvalidSlotType     Code = "ERR_INVALID_SLOT_TYPE"
	ErrCodeSlotArityTooLarge   Code = "ERR_SLOT_ARITY_TOO_LARGE"
	ErrCodeFaucetSlotMalformed Code = "ERR_FAUCET_SLOT_MALFORMED"
	ErrCodeNewAccountDirty     Code = "ERR_NEW_ACCOUNT_DIRTY"
	ErrCodeAccountInvalidPow   Code = "ERR_ACCOUNT_INVALID_POW"

	// Context/permission
	ErrCodeNotAccountOrigin    Code = "ERR_NOT_ACCOUNT_ORIGIN"
	ErrCodeSetCodeImmutable    Code = "ERR_SET_CODE_IMMUTABLE"
	ErrCodeNotFaucet           Code = "ERR_NOT_FAUCET"
	ErrCodeUnknownScript       Code = "ERR_UNKNOWN_SCRIPT"
	ErrCodeScriptAssertFailed  Code = "ERR_SCRIPT_ASSERTION_FAILED"
	ErrCodeForeignCallNested   Code = "ERR_FOREIGN_CALL_NESTED"
	ErrCodeForeignArgsTooLarge Code = "ERR_FOREIGN_CALL_ARGS_TOO_LARGE"
	ErrCodeForeignNoSuchProc   Code = "ERR_FOREIGN_CALL_UNKNOWN_PROCEDURE"
	ErrCodeForeignLoadFailed   Code = "ERR_FOREIGN_CALL_LOAD_FAILED"

	// Resource-limits
	ErrCodeTooManyOutputNotes Code = "ERR_TOO_MANY_OUTPUT_NOTES"
	ErrCodeTooManyNoteAssets  Code = "ERR_TOO_MANY_NOTE_ASSETS"
	ErrCodeTooManyNoteInputs  Code = "ERR_TOO_MANY_NOTE_INPUTS"
	ErrCodeTooManyInputNotes  Code = "ERR_TOO_MANY_INPUT_NOTES"
	ErrCodeFungibleOverflow   Code = "ERR_FUNGIBLE_AMOUNT_OVERFLOW"
	ErrCodeNonceRange         Code = "ERR_NONCE_RANGE"
	ErrCodeExpirationDelta    Code = "ERR_EXPIRATION_DELTA"

	// Asset-integrity
	ErrCodeMalformedAsset       Code = "ERR_MALFORMED_ASSET"
	ErrCodeAssetOriginMismatch  Code = "ERR_ASSET_ORIGIN_MISMATCH"
	ErrCodeAssetNotPresent      Code = "ERR_ASSET_NOT_PRESENT"
	ErrCodeNonFungibleDuplicate Code = "ERR_NON_FUNGIBLE_DUPLICATE_MINT"

	// Epilogue
	ErrCodeAssetPreservation Code = "ERR_ASSET_PRESERVATION_VIOLATED"
	ErrCodeDirtyOutputStack  Code = "ERR_DIRTY_OUTPUT_STACK"
	ErrCodeNonceNotIncreased Code = "ERR_NONCE_NOT_INCREASED"
)

// Phase names the kernel pipeline stage a failure occurred in.
type Phase string

const (
	PhasePrologue   Phase = "prologue"
	PhaseNoteLoop   Phase = "note_processor"
	PhaseTxScript   Phase = "tx_script"
	PhaseEpilogue   Phase = "epilogue"
	PhaseAccountAPI Phase = "account_interface"
)

// Error is a fatal, typed kernel failure; there is no recovery inside
// the kernel. The wrapped Err carries the specific underlying condition
// (often a sentinel from account/asset/note/merkle); Code and Phase let
// a host report a stable identifier without inspecting the error chain.
type Error struct {
	Code  Code
	Phase Phase
	Err   error
}

func (e *Error) Error() string {
	return string(e.Phase) + ": " + string(e.Code) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// fail wraps err as a kernel Error, attaching a stack trace via
// cockroachdb/errors so host-side logging can report where in the kernel
// pipeline the failure originated.
func fail(phase Phase, code Code, err error) error {
	return &Error{Code: code, Phase: phase, Err: errors.WithStack(err)}
}
