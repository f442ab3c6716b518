// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package kernel

import (
	"errors"

	"github.com/luxfi/log"

	"github.com/luxfi/txkernel/account"
	"github.com/luxfi/txkernel/asset"
	"github.com/luxfi/txkernel/chain"
	"github.com/luxfi/txkernel/felt"
	"github.com/luxfi/txkernel/kernelmem"
	"github.com/luxfi/txkernel/merkle"
	"github.com/luxfi/txkernel/note"
)

// PrologueInputs are the four public-input words the prologue receives on
// the operand stack.
type PrologueInputs struct {
	BlockHash            felt.Digest
	AcctIDPrefix         account.Prefix
	InitAcctHash         felt.Digest
	InputNotesCommitment felt.Digest
}

// AdviceNote is one input note's non-deterministic, host-supplied advice.
type AdviceNote struct {
	SerialNum  felt.Word
	ScriptRoot felt.Digest
	InputsHash felt.Digest
	AssetsHash felt.Digest
	Args       felt.Word
	Metadata   note.Metadata
	Assets     []felt.Word

	IsAuthenticated bool
	BlockNum        uint64
	BlockSubHash    felt.Digest // hash of the first seven header words at BlockNum
	NoteRoot        felt.Digest
	NoteIndex       uint64
	NotePath        []felt.Digest
}

// Advice is the full non-deterministic input set the host supplies for one
// transaction's prologue.
type Advice struct {
	Header      chain.Header
	ChainPeaks  []felt.Digest
	ChainLeaves uint64 // num_leaves backing ChainPeaks, keyed by chain_mmr_hash

	Account    *account.Account
	Seed       felt.Word // only meaningful when creating a new account
	StorageReg kernelmem.Registry

	// PriorMMR is the chain history the host maintains across blocks; the
	// prologue extends it with the reference block rather than
	// reconstructing it from ChainPeaks (see RunPrologue step 3). May be
	// nil, in which case an empty history is assumed.
	PriorMMR *chain.MMR

	InputNotes []AdviceNote

	TxScriptRoot felt.Digest
}

var (
	ErrBlockHashMismatch        = errors.New("kernel: prologue block hash does not authenticate against header")
	ErrChainRootMismatch        = errors.New("kernel: chain MMR peaks do not authenticate against header's chain root")
	ErrAccountHashMismatch      = errors.New("kernel: computed account hash does not match init_acct_hash")
	ErrTooManyInputNotes        = errors.New("kernel: input note count exceeds MaxInputNotesPerTx")
	ErrNoteAssetsHashMismatch   = errors.New("kernel: note's assets do not hash to its declared assets_hash")
	ErrNoteAuthFailed           = errors.New("kernel: authenticated note failed to verify against its block's note tree")
	ErrInputNotesCommitMismatch = errors.New("kernel: folded input-notes hash does not match input_notes_commitment")
	ErrSeedPoWFailed            = errors.New("kernel: account seed fails the proof-of-work bound for its type")
)

// seedPowBound returns the minimum required trailing zero bits of the
// seed digest's most-significant element. Faucets carry a higher bound
// than regular accounts.
func seedPowBound(t account.Type) uint {
	if t.IsFaucet() {
		return 24
	}
	return 16
}

func trailingZeros(f felt.Felt) uint {
	v := f.Uint64()
	if v == 0 {
		return 64
	}
	n := uint(0)
	for v&1 == 0 {
		v >>= 1
		n++
	}
	return n
}

// validateSeed checks the new-account seed binding: digest =
// hash(seed, code_root, storage_root, 0) must have its least-significant
// element equal to id_hi, and its most-significant element must carry at
// least seedPowBound(typ) trailing zero bits. SequentialHash's own
// odd-length zero-pad rule supplies the trailing zero word.
func validateSeed(seed felt.Word, codeRoot, storageRoot felt.Digest, id account.Id, typ account.Type) error {
	digest := felt.SequentialHash([]felt.Word{seed, codeRoot, storageRoot}, felt.EmptyWord)
	if digest[0] != id.Hi {
		return ErrSeedPoWFailed
	}
	if trailingZeros(digest[3]) < seedPowBound(typ) {
		return ErrSeedPoWFailed
	}
	return nil
}

// ErrSeedGrindExhausted is returned by GrindAccountSeed when no seed
// satisfying the proof-of-work bound was found within maxAttempts.
var ErrSeedGrindExhausted = errors.New("kernel: seed grinding exhausted its attempt budget")

// GrindAccountSeed searches for a seed word binding a fresh account id to
// the given initial code/storage roots: the seed digest's low element
// becomes id_hi and must carry the requested type/mode/version bits, and
// the digest's high element must meet the type's proof-of-work bound.
// The id's low half is drawn from the digest's second element so the
// whole id is seed-derived.
func GrindAccountSeed(codeRoot, storageRoot felt.Digest, typ account.Type, mode account.StorageMode, version uint8, epoch uint16, maxAttempts uint64) (felt.Word, account.Id, error) {
	for attempt := uint64(0); attempt < maxAttempts; attempt++ {
		seed := felt.WordFromUint64s(attempt, uint64(typ), uint64(mode), uint64(version))
		digest := felt.SequentialHash([]felt.Word{seed, codeRoot, storageRoot}, felt.EmptyWord)
		hi := digest[0]
		if hi.Uint64()>>63 != 0 {
			continue
		}
		id := account.Id{Hi: hi, Lo: account.BuildIdLo(epoch, digest[1].Uint64())}
		if id.AccountType() != typ || id.StorageMode() != mode || id.Version() != version {
			continue
		}
		if id.ValidateStructure() != nil {
			continue
		}
		if trailingZeros(digest[3]) < seedPowBound(typ) {
			continue
		}
		return seed, id, nil
	}
	return felt.Word{}, account.Id{}, ErrSeedGrindExhausted
}

// RunPrologue loads and authenticates the block, chain MMR, account, and
// input notes, and validates a new account's seed. It returns the
// populated Context ready for the note processor.
func RunPrologue(logger log.Logger, mem *kernelmem.Memory, in PrologueInputs, adv Advice) (*Context, error) {
	ctx := NewContext(logger)
	ctx.Mem = mem

	// Step 1: persist public inputs.
	mem.WriteGlobalInputs(kernelmem.GlobalInputs{
		BlockHash:            in.BlockHash,
		AcctIDPrefix:         in.AcctIDPrefix.Hi,
		InitAcctHash:         in.InitAcctHash,
		InputNotesCommitment: in.InputNotesCommitment,
	})

	// Step 2: authenticate block_hash against the header.
	if adv.Header.Hash() != in.BlockHash {
		return nil, fail(PhasePrologue, ErrCodeBlockHashMismatch, ErrBlockHashMismatch)
	}
	mem.WriteBlockData(kernelmem.BlockData{
		PrevBlockHash:   adv.Header.PrevBlockHash,
		ChainRoot:       adv.Header.ChainRoot,
		AcctDBRoot:      adv.Header.AcctDBRoot,
		NullifierDBRoot: adv.Header.NullifierDBRoot,
		TxHash:          adv.Header.TxHash,
		ProofHash:       adv.Header.ProofHash,
		BlockNum:        adv.Header.BlockNum,
		Version:         adv.Header.Version,
		Timestamp:       adv.Header.Timestamp,
		NoteRoot:        adv.Header.NoteRoot,
	})

	// Step 3: unpack + authenticate the chain MMR, then extend it with the
	// reference block so notes created there can be consumed in-tx. Peaks
	// alone cannot reconstruct individual leaves, so the prologue takes
	// the backing MMR the host already maintains (adv.PriorMMR) rather
	// than rebuilding it; it only re-derives and checks the peak hash.
	chainMMRHash := merkle.ChainMMRHash(adv.ChainPeaks, adv.ChainLeaves)
	if chainMMRHash != adv.Header.ChainRoot {
		return nil, fail(PhasePrologue, ErrCodeChainRootMismatch, ErrChainRootMismatch)
	}
	if adv.PriorMMR == nil {
		adv.PriorMMR = chain.NewMMR()
	}
	ctx.ChainMMR = adv.PriorMMR
	ctx.ChainHeader = adv.Header
	ctx.ChainMMR.AddBlock(in.BlockHash)

	// Step 4: stream account data, compute its hash.
	acct := adv.Account
	ctx.Account = acct
	computedHash := acct.Commitment()
	if in.InitAcctHash == felt.EmptyWord {
		ctx.IsNewAccount = true
		if err := acct.ID.ValidateStructure(); err != nil {
			return nil, fail(PhasePrologue, ErrCodeAccountTooFewOnes, err)
		}
		if err := acct.ValidateAsNew(); err != nil {
			return nil, fail(PhasePrologue, ErrCodeNewAccountDirty, err)
		}
		if err := validateSeed(adv.Seed, acct.Code.Root(), acct.Storage.Root(), acct.ID, acct.ID.AccountType()); err != nil {
			return nil, fail(PhasePrologue, ErrCodeAccountInvalidPow, err)
		}
		ctx.InitAccountHash = computedHash
	} else {
		if computedHash != in.InitAcctHash {
			return nil, fail(PhasePrologue, ErrCodeAccountHashMismatch, ErrAccountHashMismatch)
		}
		if err := acct.ValidateAsExisting(); err != nil {
			return nil, fail(PhasePrologue, ErrCodeNewAccountDirty, err)
		}
		ctx.InitAccountHash = in.InitAcctHash
	}
	if acct.ID.AccountType() == account.FungibleFaucet {
		ctx.InitialFaucetIssue = acct.FaucetTotalIssuance()
	}
	mem.WriteAccountData(kernelmem.AccountData{
		ID:          acct.ID.Hi,
		Nonce:       acct.Nonce,
		VaultRoot:   acct.Vault.Root(),
		StorageRoot: acct.Storage.Root(),
		CodeRoot:    acct.Code.Root(),
		NewCodeRoot: acct.Code.Root(),
	})

	// Step 5: ingest + validate the slot-type registry.
	acct.Slots = adv.StorageReg
	if err := adv.StorageReg.Validate(); err != nil {
		return nil, fail(PhasePrologue, ErrCodeInvalidSlotType, err)
	}
	if acct.ID.AccountType().IsFaucet() {
		fungible := acct.ID.AccountType() == account.FungibleFaucet
		if err := adv.StorageReg.ValidateFaucetSlot(fungible); err != nil {
			return nil, fail(PhasePrologue, ErrCodeFaucetSlotMalformed, err)
		}
	}
	mem.WriteRegistry(adv.StorageReg)

	// Step 6: input notes.
	if len(adv.InputNotes) > kernelmem.MaxInputNotesPerTx {
		return nil, fail(PhasePrologue, ErrCodeTooManyInputNotes, ErrTooManyInputNotes)
	}
	var running []felt.Word
	for i, an := range adv.InputNotes {
		if err := note.ValidateBounds(len(an.Assets), 0); err != nil {
			return nil, fail(PhasePrologue, ErrCodeTooManyNoteAssets, err)
		}
		n := note.Note{
			SerialNum:        an.SerialNum,
			ScriptRoot:       an.ScriptRoot,
			InputsCommitment: an.InputsHash,
			AssetsCommitment: an.AssetsHash,
			Metadata:         an.Metadata,
		}
		if note.AssetsCommitment(an.Assets) != an.AssetsHash {
			return nil, fail(PhasePrologue, ErrCodeNoteAssetsHashMismatch, ErrNoteAssetsHashMismatch)
		}

		slot := kernelmem.InputNoteSlot(i)
		mem.Write(slot+kernelmem.NoteOffSerialNum, an.SerialNum)
		mem.Write(slot+kernelmem.NoteOffScriptRoot, an.ScriptRoot)
		mem.Write(slot+kernelmem.NoteOffInputsHash, an.InputsHash)
		mem.Write(slot+kernelmem.NoteOffAssetsHash, an.AssetsHash)
		mem.Write(slot+kernelmem.NoteOffMetadata, an.Metadata.Pack())
		mem.Write(slot+kernelmem.NoteOffArgs, an.Args)
		mem.Write(slot+kernelmem.NoteOffNumAssets, felt.WordFromUint64s(uint64(len(an.Assets)), 0, 0, 0))
		mem.WriteRange(slot+kernelmem.NoteOffAssetsStart, an.Assets)

		nullifier := n.Nullifier()
		mem.Write(slot+kernelmem.NoteOffID, nullifier)

		for _, w := range an.Assets {
			a, err := asset.FromWord(w)
			if err != nil {
				return nil, fail(PhasePrologue, ErrCodeMalformedAsset, err)
			}
			if err := ctx.InputVault.Add(a); err != nil {
				return nil, fail(PhasePrologue, ErrCodeFungibleOverflow, err)
			}
		}

		noteHash := n.Hash()
		var folded felt.Word
		if an.IsAuthenticated {
			blockHash, err := ctx.ChainMMR.BlockHashAt(an.BlockNum)
			if err != nil {
				return nil, fail(PhasePrologue, ErrCodeNoteAuthFailed, ErrNoteAuthFailed)
			}
			if felt.HashTwo(an.BlockSubHash, an.NoteRoot) != blockHash {
				return nil, fail(PhasePrologue, ErrCodeNoteAuthFailed, ErrNoteAuthFailed)
			}
			if !felt.MerkleVerify(noteHash, an.NotePath, an.NoteIndex, an.NoteRoot) {
				return nil, fail(PhasePrologue, ErrCodeNoteAuthFailed, ErrNoteAuthFailed)
			}
			folded = felt.EmptyWord
		} else {
			folded = noteHash
		}

		// Fold EMPTY_WORD (authenticated) or the note hash (delayed) together
		// with the nullifier, so the commitment binds both the consumed set
		// and its order.
		ctx.ConsumedNotes = append(ctx.ConsumedNotes, n)
		ctx.Nullifiers = append(ctx.Nullifiers, nullifier)
		running = append(running, folded, nullifier)
	}
	mem.Write(kernelmem.AddrCurrentInputNotePtr, felt.WordFromUint64s(0, 0, 0, 0))
	mem.Write(kernelmem.AddrNumOutputNotes, felt.WordFromUint64s(0, 0, 0, 0))
	mem.Write(kernelmem.AddrInputVaultRoot, ctx.InputVault.Root())

	foldedCommitment := felt.SequentialHash(running, felt.EmptyWord)
	if len(adv.InputNotes) == 0 {
		foldedCommitment = felt.EmptyWord
	}
	if foldedCommitment != in.InputNotesCommitment {
		return nil, fail(PhasePrologue, ErrCodeInputNotesCommitMismatch, ErrInputNotesCommitMismatch)
	}

	// Step 8: transaction script root.
	ctx.TxScriptRoot = adv.TxScriptRoot
	mem.Write(kernelmem.AddrTxScriptRoot, adv.TxScriptRoot)

	return ctx, nil
}
