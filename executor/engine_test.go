// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package executor

import (
	"context"
	"testing"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/txkernel/account"
	"github.com/luxfi/txkernel/asset"
	"github.com/luxfi/txkernel/chain"
	"github.com/luxfi/txkernel/felt"
	"github.com/luxfi/txkernel/kernel"
	"github.com/luxfi/txkernel/merkle"
	"github.com/luxfi/txkernel/note"
)

func testLogger() log.Logger { return log.NewTestLogger(log.Level(log.InfoLevel)) }

func testId(typ account.Type, random uint64) account.Id {
	return account.Id{
		Hi: account.BuildIdHi(typ, account.Public, 1, random|0x1F),
		Lo: account.BuildIdLo(0, 0),
	}
}

func emptyChainHeader() (chain.Header, []felt.Digest, uint64) {
	peaks := []felt.Digest{}
	leaves := uint64(0)
	return chain.Header{ChainRoot: merkle.ChainMMRHash(peaks, leaves), NoteRoot: felt.EmptyWord}, peaks, leaves
}

// mintScript is a minimal transaction script standing in for a fungible
// faucet's "mint and distribute" MAST procedure.
type mintScript struct {
	amount    uint64
	recipient felt.Digest
}

func (s mintScript) Run(ctx *kernel.Context, _ *note.Note, _ []felt.Word, _ felt.Word) error {
	a, err := asset.Fungible(ctx.GetId(), s.amount)
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

func newEngine(store DataStore) *Engine {
	return NewEngine(testLogger(), store, nil, NewMetrics(prometheus.NewRegistry()))
}

// TestEngineExecuteMintScenario drives a faucet's mint-and-distribute
// transaction through the full Engine.Execute pipeline and checks both
// the returned outputs and the persisted account record.
func TestEngineExecuteMintScenario(t *testing.T) {
	faucet := testId(account.FungibleFaucet, 0x2001)
	acct := account.New(faucet)
	acct.Nonce = felt.New(1)

	header, peaks, leaves := emptyChainHeader()
	recipient := felt.Word{felt.New(21), felt.New(22), felt.New(23), felt.New(24)}
	txScriptRoot := felt.Word{felt.New(1), felt.Zero(), felt.Zero(), felt.Zero()}

	req := TransactionRequest{
		Inputs: kernel.PrologueInputs{
			BlockHash:            header.Hash(),
			AcctIDPrefix:         acct.ID.Prefix(),
			InitAcctHash:         acct.Commitment(),
			InputNotesCommitment: felt.EmptyWord,
		},
		Advice: kernel.Advice{
			Header: header, ChainPeaks: peaks, ChainLeaves: leaves,
			Account: acct, StorageReg: acct.Slots, PriorMMR: chain.NewMMR(),
			TxScriptRoot: txScriptRoot,
		},
		TxScript: mintScript{amount: 500, recipient: recipient},
	}

	store := NewMemDataStore()
	eng := newEngine(store)

	result, err := eng.Execute(context.Background(), req)
	require.NoError(t, err)
	require.NotEqual(t, felt.EmptyWord, result.Outputs.OutputNotesCommitment)
	require.Len(t, result.OutputNotes, 1)

	rec, ok, err := store.GetAccount(faucet)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2), rec.Nonce.Uint64())
}

// TestEngineRunProvenAttachesProof confirms RunProven wraps Execute and
// surfaces a (possibly empty) proof from the configured VM, the simVM
// default here since no real backend is linked in.
func TestEngineRunProvenAttachesProof(t *testing.T) {
	faucet := testId(account.FungibleFaucet, 0x2002)
	acct := account.New(faucet)
	acct.Nonce = felt.New(1)

	header, peaks, leaves := emptyChainHeader()
	txScriptRoot := felt.Word{felt.New(1), felt.Zero(), felt.Zero(), felt.Zero()}

	req := TransactionRequest{
		Inputs: kernel.PrologueInputs{
			BlockHash:            header.Hash(),
			AcctIDPrefix:         acct.ID.Prefix(),
			InitAcctHash:         acct.Commitment(),
			InputNotesCommitment: felt.EmptyWord,
		},
		Advice: kernel.Advice{
			Header: header, ChainPeaks: peaks, ChainLeaves: leaves,
			Account: acct, StorageReg: acct.Slots, PriorMMR: chain.NewMMR(),
			TxScriptRoot: txScriptRoot,
		},
		TxScript: mintScript{amount: 10, recipient: felt.Word{felt.New(1), felt.New(2), felt.New(3), felt.New(4)}},
	}

	eng := newEngine(NewMemDataStore())
	result, proven, err := eng.RunProven(context.Background(), req, nil)
	require.NoError(t, err)
	require.NotNil(t, result.Proof)
	require.NotNil(t, proven)
	require.Equal(t, req.Inputs.InitAcctHash, proven.InitialAccountHash)
	require.Equal(t, result.Outputs.FinalAccountHash, proven.FinalAccountHash)
	require.Len(t, proven.OutputNoteHeaders, 1)
}

// TestEngineExecuteRejectsSpentNullifier builds a single P2ID-consuming
// transaction, executes it once, then replays the identical request and
// expects the second attempt to fail on the already-spent nullifier.
func TestEngineExecuteRejectsSpentNullifier(t *testing.T) {
	acctID := testId(account.RegularUpdatable, 0x3001)
	faucet := testId(account.FungibleFaucet, 0x3002)

	buildRequest := func() (TransactionRequest, *account.Account) {
		acct := account.New(acctID)
		acct.Nonce = felt.New(1)

		a, err := asset.Fungible(faucet, 75)
		require.NoError(t, err)
		assetWord := a.Word()

		serial := felt.Word{felt.New(9), felt.New(8), felt.New(7), felt.New(6)}
		n := note.Note{
			SerialNum:        serial,
			ScriptRoot:       kernel.P2IDRoot,
			InputsCommitment: felt.EmptyWord,
			AssetsCommitment: note.AssetsCommitment([]felt.Word{assetWord}),
			Metadata:         note.Metadata{Sender: faucet, NoteType: note.Public},
		}
		adv := kernel.AdviceNote{
			SerialNum: serial, ScriptRoot: kernel.P2IDRoot,
			InputsHash: felt.EmptyWord, AssetsHash: n.AssetsCommitment,
			Metadata: n.Metadata, Assets: []felt.Word{assetWord},
		}

		header, peaks, leaves := emptyChainHeader()
		commitment := felt.SequentialHash([]felt.Word{n.Hash(), n.Nullifier()}, felt.EmptyWord)

		req := TransactionRequest{
			Inputs: kernel.PrologueInputs{
				BlockHash:            header.Hash(),
				AcctIDPrefix:         acct.ID.Prefix(),
				InitAcctHash:         acct.Commitment(),
				InputNotesCommitment: commitment,
			},
			Advice: kernel.Advice{
				Header: header, ChainPeaks: peaks, ChainLeaves: leaves,
				Account: acct, StorageReg: acct.Slots, PriorMMR: chain.NewMMR(),
				InputNotes:   []kernel.AdviceNote{adv},
				TxScriptRoot: felt.Word{felt.New(1), felt.Zero(), felt.Zero(), felt.Zero()},
			},
			Registry:     kernel.ScriptRegistry{kernel.P2IDRoot: kernel.P2IDScript{TargetIDHi: acctID.Hi, TargetIDLo: acctID.Lo}},
			AssetsByNote: [][]felt.Word{{assetWord}},
			ArgsByNote:   []felt.Word{{}},
			TxScript:     incrNonceScript{by: 1},
		}
		return req, acct
	}

	store := NewMemDataStore()
	eng := newEngine(store)

	req1, _ := buildRequest()
	_, err := eng.Execute(context.Background(), req1)
	require.NoError(t, err)

	req2, _ := buildRequest()
	_, err = eng.Execute(context.Background(), req2)
	require.ErrorIs(t, err, ErrNullifierSpent)
}

type incrNonceScript struct{ by uint64 }

func (s incrNonceScript) Run(ctx *kernel.Context, _ *note.Note, _ []felt.Word, _ felt.Word) error {
	return ctx.IncrNonce(s.by)
}
