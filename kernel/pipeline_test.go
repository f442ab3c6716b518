// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package kernel

import (
	"testing"

	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/txkernel/account"
	"github.com/luxfi/txkernel/asset"
	"github.com/luxfi/txkernel/chain"
	"github.com/luxfi/txkernel/felt"
	"github.com/luxfi/txkernel/kernelmem"
	"github.com/luxfi/txkernel/merkle"
	"github.com/luxfi/txkernel/note"
)

func testLogger() log.Logger { return log.NewTestLogger(log.Level(log.InfoLevel)) }

// testRegularId returns a structurally valid RegularUpdatable account id
// (at least MinAccountOnes bits set in id_hi).
func testRegularId(random uint64) account.Id {
	return account.Id{
		Hi: account.BuildIdHi(account.RegularUpdatable, account.Public, 1, random|0x1F),
		Lo: account.BuildIdLo(0, 0),
	}
}

func testFaucetId(typ account.Type, random uint64) account.Id {
	return account.Id{
		Hi: account.BuildIdHi(typ, account.Public, 1, random|0x1F),
		Lo: account.BuildIdLo(0, 0),
	}
}

// emptyChainHeader builds a header authenticated against a freshly
// started, empty chain history -- the common case every scenario below
// that doesn't itself exercise chain-MMR depth needs.
func emptyChainHeader() (chain.Header, []felt.Digest, uint64) {
	peaks := []felt.Digest{}
	leaves := uint64(0)
	return chain.Header{ChainRoot: merkle.ChainMMRHash(peaks, leaves), NoteRoot: felt.EmptyWord}, peaks, leaves
}

// buildNoteAdvice assembles one delayed-authentication (non-MMR-verified)
// input note advice entry plus its Note, the simplest legal shape the
// prologue accepts.
func buildNoteAdvice(scriptRoot felt.Digest, assets []felt.Word, args felt.Word, sender account.Id) (AdviceNote, note.Note) {
	serial := felt.Word{felt.New(9), felt.New(8), felt.New(7), felt.New(6)}
	n := note.Note{
		SerialNum:        serial,
		ScriptRoot:       scriptRoot,
		InputsCommitment: felt.EmptyWord,
		AssetsCommitment: note.AssetsCommitment(assets),
		Metadata:         note.Metadata{Sender: sender, NoteType: note.Public},
	}
	adv := AdviceNote{
		SerialNum:       serial,
		ScriptRoot:      scriptRoot,
		InputsHash:      felt.EmptyWord,
		AssetsHash:      n.AssetsCommitment,
		Args:            args,
		Metadata:        n.Metadata,
		Assets:          assets,
		IsAuthenticated: false,
	}
	return adv, n
}

// inputNotesCommitment reproduces RunPrologue step 7's folding for a list
// of delayed-authentication notes, so a test can supply the matching
// public input up front.
func inputNotesCommitment(notes []note.Note) felt.Digest {
	if len(notes) == 0 {
		return felt.EmptyWord
	}
	var running []felt.Word
	for _, n := range notes {
		running = append(running, n.Hash(), n.Nullifier())
	}
	return felt.SequentialHash(running, felt.EmptyWord)
}

// incrNonceScript is a minimal transaction script standing in for "sign,
// then bump the nonce by `by`".
type incrNonceScript struct{ by uint64 }

func (s incrNonceScript) Run(ctx *Context, _ *note.Note, _ []felt.Word, _ felt.Word) error {
	return ctx.IncrNonce(s.by)
}

// mintAndDistributeScript models a fungible faucet's distribute flow:
// the tx script mints `amount` and sends it to recipient in a new output
// note, then bumps its own nonce.
type mintAndDistributeScript struct {
	amount    uint64
	recipient felt.Digest
}

func (s mintAndDistributeScript) Run(ctx *Context, _ *note.Note, _ []felt.Word, _ felt.Word) error {
	a, err := asset.Fungible(ctx.Account.ID, s.amount)
	if err != nil {
		return err
	}
	if err := ctx.MintAsset(a); err != nil {
		return err
	}
	idx, err := ctx.CreateNote(0, felt.Zero(), note.Public, s.recipient)
	if err != nil {
		return err
	}
	if err := ctx.AddAssetToNote(idx, a); err != nil {
		return err
	}
	return ctx.IncrNonce(1)
}

// runPrologueAndNotes drives the prologue and note processor for an
// existing (non-new) account and returns the live context, so individual
// tests only need to supply the note-specific advice.
func runPrologueAndNotes(t *testing.T, acct *account.Account, notesAdv []AdviceNote, notes []note.Note, registry ScriptRegistry, assetsByNote [][]felt.Word, argsByNote []felt.Word, txScriptPresent bool) *Context {
	t.Helper()

	header, peaks, leaves := emptyChainHeader()
	var txScriptRoot felt.Digest
	if txScriptPresent {
		txScriptRoot = felt.Word{felt.New(1), felt.Zero(), felt.Zero(), felt.Zero()}
	}

	in := PrologueInputs{
		BlockHash:            header.Hash(),
		AcctIDPrefix:         acct.ID.Prefix(),
		InitAcctHash:         acct.Commitment(),
		InputNotesCommitment: inputNotesCommitment(notes),
	}
	adv := Advice{
		Header:       header,
		ChainPeaks:   peaks,
		ChainLeaves:  leaves,
		Account:      acct,
		StorageReg:   acct.Slots,
		PriorMMR:     chain.NewMMR(),
		InputNotes:   notesAdv,
		TxScriptRoot: txScriptRoot,
	}

	mem := kernelmem.New()
	ctx, err := RunPrologue(testLogger(), mem, in, adv)
	require.NoError(t, err)

	require.NoError(t, RunNoteProcessor(ctx, registry, assetsByNote, argsByNote))
	return ctx
}

// TestP2IDConsumeEndToEnd: a basic wallet consumes a P2ID note targeting
// it, then a transaction script increments its nonce by one.
func TestP2IDConsumeEndToEnd(t *testing.T) {
	acctID := testRegularId(0x1001)
	acct := account.New(acctID)
	acct.Nonce = felt.New(7)

	faucetID := testFaucetId(account.FungibleFaucet, 0x2002)
	asset100, err := asset.Fungible(faucetID, 100)
	require.NoError(t, err)
	assetWord := asset100.Word()

	adv, n := buildNoteAdvice(P2IDRoot, []felt.Word{assetWord}, felt.Word{}, faucetID)
	registry := ScriptRegistry{P2IDRoot: P2IDScript{TargetIDHi: acctID.Hi, TargetIDLo: acctID.Lo}}

	ctx := runPrologueAndNotes(t, acct, []AdviceNote{adv}, []note.Note{n}, registry,
		[][]felt.Word{{assetWord}}, []felt.Word{{}}, true)

	out, err := RunEpilogue(ctx, incrNonceScript{by: 1}, felt.Word{})
	require.NoError(t, err)

	require.Equal(t, uint64(100), vaultOf(ctx.Account).GetBalance(faucetID.Hi))
	require.Equal(t, uint64(8), ctx.Account.Nonce.Uint64())
	require.Len(t, ctx.Nullifiers, 1)
	require.Equal(t, n.Nullifier(), ctx.Nullifiers[0])
	require.Equal(t, felt.EmptyWord, out.OutputNotesCommitment)
}

// TestP2IDTargetMismatch: a different account attempts to consume a P2ID
// note and the script's assert fires.
func TestP2IDTargetMismatch(t *testing.T) {
	targetID := testRegularId(0x1001)
	executingID := testRegularId(0x3003)
	acct := account.New(executingID)
	acct.Nonce = felt.New(1)

	faucetID := testFaucetId(account.FungibleFaucet, 0x2002)
	asset100, err := asset.Fungible(faucetID, 100)
	require.NoError(t, err)
	assetWord := asset100.Word()

	adv, n := buildNoteAdvice(P2IDRoot, []felt.Word{assetWord}, felt.Word{}, faucetID)
	registry := ScriptRegistry{P2IDRoot: P2IDScript{TargetIDHi: targetID.Hi, TargetIDLo: targetID.Lo}}

	header, peaks, leaves := emptyChainHeader()
	in := PrologueInputs{
		BlockHash:            header.Hash(),
		AcctIDPrefix:         acct.ID.Prefix(),
		InitAcctHash:         acct.Commitment(),
		InputNotesCommitment: inputNotesCommitment([]note.Note{n}),
	}
	advArgs := Advice{
		Header: header, ChainPeaks: peaks, ChainLeaves: leaves,
		Account: acct, StorageReg: acct.Slots, PriorMMR: chain.NewMMR(),
		InputNotes: []AdviceNote{adv},
	}
	mem := kernelmem.New()
	ctx, err := RunPrologue(testLogger(), mem, in, advArgs)
	require.NoError(t, err)

	err = RunNoteProcessor(ctx, registry, [][]felt.Word{{assetWord}}, []felt.Word{{}})
	require.Error(t, err)
	var kerr *Error
	require.ErrorAs(t, err, &kerr)
	require.Equal(t, ErrCodeScriptAssertFailed, kerr.Code)
	require.ErrorIs(t, err, ErrP2IDTargetMismatch)
}

// TestFungibleMintScenario: a fungible faucet distributes a fresh mint
// via its transaction script.
func TestFungibleMintScenario(t *testing.T) {
	faucetID := testFaucetId(account.FungibleFaucet, 0x4004)
	acct := account.New(faucetID)
	acct.Nonce = felt.New(1)

	recipient := felt.Word{felt.New(11), felt.New(12), felt.New(13), felt.New(14)}

	ctx := runPrologueAndNotes(t, acct, nil, nil, nil, nil, nil, true)
	out, err := RunEpilogue(ctx, mintAndDistributeScript{amount: 1000, recipient: recipient}, felt.Word{})
	require.NoError(t, err)

	require.Equal(t, uint64(1000), ctx.Account.FaucetTotalIssuance().Uint64())
	require.Len(t, ctx.OutputNotes, 1)
	require.Equal(t, faucetID, ctx.OutputNotes[0].Sender)
	require.NotEqual(t, felt.EmptyWord, out.OutputNotesCommitment)
}

// TestNewAccountBadSeedPoW: a new account's seed fails the proof-of-work
// bound.
func TestNewAccountBadSeedPoW(t *testing.T) {
	acctID := testRegularId(0x5005)
	acct := account.New(acctID)

	header, peaks, leaves := emptyChainHeader()
	in := PrologueInputs{
		BlockHash:            header.Hash(),
		AcctIDPrefix:         acct.ID.Prefix(),
		InitAcctHash:         felt.EmptyWord,
		InputNotesCommitment: felt.EmptyWord,
	}
	adv := Advice{
		Header: header, ChainPeaks: peaks, ChainLeaves: leaves,
		Account: acct, Seed: felt.Word{felt.New(1), felt.Zero(), felt.Zero(), felt.Zero()},
		StorageReg: acct.Slots, PriorMMR: chain.NewMMR(),
	}
	mem := kernelmem.New()
	_, err := RunPrologue(testLogger(), mem, in, adv)
	require.Error(t, err)
	var kerr *Error
	require.ErrorAs(t, err, &kerr)
	require.Equal(t, ErrCodeAccountInvalidPow, kerr.Code)
}

// TestTooManyInputNotesBoundary: MaxInputNotesPerTx+1 input notes fail
// the prologue before any per-note validation runs.
func TestTooManyInputNotesBoundary(t *testing.T) {
	acct := account.New(testRegularId(0x6006))
	acct.Nonce = felt.New(1)

	header, peaks, leaves := emptyChainHeader()
	in := PrologueInputs{
		BlockHash:    header.Hash(),
		AcctIDPrefix: acct.ID.Prefix(),
		InitAcctHash: acct.Commitment(),
	}
	notes := make([]AdviceNote, kernelmem.MaxInputNotesPerTx+1)
	adv := Advice{
		Header: header, ChainPeaks: peaks, ChainLeaves: leaves,
		Account: acct, StorageReg: acct.Slots, PriorMMR: chain.NewMMR(),
		InputNotes: notes,
	}
	mem := kernelmem.New()
	_, err := RunPrologue(testLogger(), mem, in, adv)
	require.Error(t, err)
	var kerr *Error
	require.ErrorAs(t, err, &kerr)
	require.Equal(t, ErrCodeTooManyInputNotes, kerr.Code)
}

// TestNonceIncrBoundaries covers the incr_nonce(2^32) boundary and
// incr_nonce(0)'s acceptance at the account-interface layer; the
// epilogue's strict-increase check is what ultimately rejects a no-op
// transaction (TestEpilogueRequiresNonceIncrease).
func TestNonceIncrBoundaries(t *testing.T) {
	acct := account.New(testRegularId(0x7007))
	acct.Nonce = felt.New(1)
	ctx := NewContext(testLogger())
	ctx.Account = acct

	err := ctx.IncrNonce(uint64(1) << 32)
	require.Error(t, err)
	var kerr *Error
	require.ErrorAs(t, err, &kerr)
	require.Equal(t, ErrCodeNonceRange, kerr.Code)

	require.NoError(t, ctx.IncrNonce(0))
	require.Equal(t, uint64(1), ctx.Account.Nonce.Uint64())
}

// TestRequireAccountOriginGatesNoteContext confirms the origin gate
// rejects a privileged call made from note context.
func TestRequireAccountOriginGatesNoteContext(t *testing.T) {
	acct := account.New(testRegularId(0x8008))
	acct.Nonce = felt.New(1)
	ctx := NewContext(testLogger())
	ctx.Account = acct
	ctx.CurrentOrigin = OriginNote

	err := ctx.IncrNonce(1)
	require.Error(t, err)
	var kerr *Error
	require.ErrorAs(t, err, &kerr)
	require.Equal(t, ErrCodeNotAccountOrigin, kerr.Code)
}

// TestEpilogueRequiresNonceIncrease drives a transaction that consumes
// nothing and whose script leaves the nonce untouched; the epilogue must
// reject it.
func TestEpilogueRequiresNonceIncrease(t *testing.T) {
	acct := account.New(testRegularId(0x9009))
	acct.Nonce = felt.New(3)

	ctx := runPrologueAndNotes(t, acct, nil, nil, nil, nil, nil, true)
	_, err := RunEpilogue(ctx, incrNonceScript{by: 0}, felt.Word{})
	require.Error(t, err)
	var kerr *Error
	require.ErrorAs(t, err, &kerr)
	require.Equal(t, ErrCodeNonceNotIncreased, kerr.Code)
}

func TestExpirationDeltaMonotonic(t *testing.T) {
	ctx := NewContext(testLogger())

	_, set := ctx.GetExpirationBlockDelta()
	require.False(t, set)

	require.Error(t, ctx.UpdateExpirationBlockDelta(0))
	require.Error(t, ctx.UpdateExpirationBlockDelta(uint32(1)<<16))

	require.NoError(t, ctx.UpdateExpirationBlockDelta(100))
	require.Error(t, ctx.UpdateExpirationBlockDelta(200)) // may only decrease once set
	require.NoError(t, ctx.UpdateExpirationBlockDelta(50))

	d, set := ctx.GetExpirationBlockDelta()
	require.True(t, set)
	require.Equal(t, uint32(50), d)
}

// readSlotProc is a foreign procedure reading one storage slot of the
// account it runs against.
type readSlotProc struct{ slot uint64 }

func (p readSlotProc) Run(ctx *Context, _ []felt.Word) ([]felt.Word, error) {
	return []felt.Word{ctx.GetItem(p.slot)}, nil
}

func TestExecuteForeignProcedure(t *testing.T) {
	native := account.New(testRegularId(0xA00A))
	native.Nonce = felt.New(1)

	foreignID := testRegularId(0xB00B)
	foreign := account.New(foreignID)
	foreign.Nonce = felt.New(5)
	foreign.Slots[4] = kernelmem.SlotDescriptor{Type: kernelmem.SlotTypeValue}
	require.NoError(t, foreign.SetSlot(4, felt.WordFromUint64s(42, 0, 0, 0)))
	procRoot := felt.HashTwo(felt.Word{felt.New(77), felt.Zero(), felt.Zero(), felt.Zero()}, felt.EmptyWord)
	foreign.AddProcedure(0, procRoot)

	ctx := NewContext(testLogger())
	ctx.Account = native
	ctx.ForeignLoader = func(id account.Id) (*account.Account, error) {
		require.Equal(t, foreignID, id)
		return foreign, nil
	}

	out, err := ctx.ExecuteForeignProcedure(foreignID, procRoot, readSlotProc{slot: 4}, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, felt.WordFromUint64s(42, 0, 0, 0), out[0])

	// The native context is restored after the call.
	require.Equal(t, native, ctx.Account)
	require.Equal(t, OriginAccount, ctx.CurrentOrigin)
}

func TestExecuteForeignProcedureRejectsUnknownRoot(t *testing.T) {
	native := account.New(testRegularId(0xC00C))
	foreign := account.New(testRegularId(0xD00D))

	ctx := NewContext(testLogger())
	ctx.Account = native
	ctx.ForeignLoader = func(account.Id) (*account.Account, error) { return foreign, nil }

	bogus := felt.HashTwo(felt.Word{felt.New(1), felt.Zero(), felt.Zero(), felt.Zero()}, felt.EmptyWord)
	_, err := ctx.ExecuteForeignProcedure(foreign.ID, bogus, readSlotProc{}, nil)
	require.Error(t, err)
	var kerr *Error
	require.ErrorAs(t, err, &kerr)
	require.Equal(t, ErrCodeForeignNoSuchProc, kerr.Code)
}

// TestFungibleMintBurnIssuance mints then burns through a faucet's own
// transaction, checking the reserved slot tracks net issuance and the
// epilogue's faucet branch accepts it.
func TestFungibleMintBurnIssuance(t *testing.T) {
	faucetID := testFaucetId(account.FungibleFaucet, 0xE00E)
	acct := account.New(faucetID)
	acct.Nonce = felt.New(1)

	ctx := runPrologueAndNotes(t, acct, nil, nil, nil, nil, nil, true)

	a100, err := asset.Fungible(faucetID, 100)
	require.NoError(t, err)
	require.NoError(t, ctx.MintAsset(a100))
	require.Equal(t, uint64(100), ctx.Account.FaucetTotalIssuance().Uint64())

	// Burned assets come back through the input vault.
	a40, err := asset.Fungible(faucetID, 40)
	require.NoError(t, err)
	require.NoError(t, ctx.InputVault.Add(a40))
	require.NoError(t, ctx.BurnAsset(a40))
	require.Equal(t, uint64(60), ctx.Account.FaucetTotalIssuance().Uint64())

	// The minted 100 must still land somewhere public; place it in an
	// output note so the run stays balanced end to end.
	idx, err := ctx.CreateNote(0, felt.Zero(), note.Public, felt.WordFromUint64s(1, 2, 3, 4))
	require.NoError(t, err)
	require.NoError(t, ctx.AddAssetToNote(idx, a100))

	_, err = RunEpilogue(ctx, incrNonceScript{by: 1}, felt.Word{})
	require.NoError(t, err)
}

func TestSetCodeOnlyOnUpdatable(t *testing.T) {
	updatable := account.New(testRegularId(0xF00F))
	ctx := NewContext(testLogger())
	ctx.Account = updatable
	require.NoError(t, ctx.SetCode(felt.WordFromUint64s(9, 9, 9, 9)))

	immutable := account.New(account.Id{
		Hi: account.BuildIdHi(account.RegularImmutable, account.Public, 1, 0x1F),
		Lo: account.BuildIdLo(0, 0),
	})
	ctx2 := NewContext(testLogger())
	ctx2.Account = immutable
	err := ctx2.SetCode(felt.WordFromUint64s(9, 9, 9, 9))
	var kerr *Error
	require.ErrorAs(t, err, &kerr)
	require.Equal(t, ErrCodeSetCodeImmutable, kerr.Code)
}
