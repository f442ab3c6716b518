// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package executor

import (
	"context"
	"errors"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/txkernel/felt"
	"github.com/luxfi/txkernel/kernel"
	"github.com/luxfi/txkernel/kernelmem"
	"github.com/luxfi/txkernel/note"
)

// Metrics is the engine's observability surface, never part of any
// commitment: transactions executed, kernel failures by error code, and
// VM cycles consumed.
type Metrics struct {
	TxExecuted prometheus.Counter
	TxFailed   *prometheus.CounterVec
	VMCycles   prometheus.Histogram
}

// NewMetrics registers the engine's counters/histograms against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TxExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "txkernel_transactions_executed_total",
			Help: "Transactions that completed a full prologue/notes/script/epilogue run.",
		}),
		TxFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "txkernel_transactions_failed_total",
			Help: "Transactions that aborted, labeled by kernel error code.",
		}, []string{"code"}),
		VMCycles: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "txkernel_vm_cycles",
			Help:    "VM cycles consumed per transaction.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 12),
		}),
	}
	reg.MustRegister(m.TxExecuted, m.TxFailed, m.VMCycles)
	return m
}

// TransactionRequest bundles everything Engine.Execute needs: the
// prologue's public inputs and advice, the note scripts to dispatch, and
// the optional transaction script.
type TransactionRequest struct {
	Inputs kernel.PrologueInputs
	Advice kernel.Advice

	Registry kernel.ScriptRegistry
	// AssetsByNote/ArgsByNote run parallel to Advice.InputNotes.
	AssetsByNote [][]felt.Word
	ArgsByNote   []felt.Word

	TxScript kernel.Script
	TxArgs   felt.Word

	Program Program
}

// TransactionResult is what a caller gets back from a successful Execute:
// the kernel's two public outputs, the consumed nullifiers (for the
// host's nullifier-db update), and the VM's proof.
type TransactionResult struct {
	Outputs     kernel.EpilogueOutputs
	Nullifiers  []felt.Digest
	OutputNotes []kernel.OutputNote
	Events      []string
	Proof       Proof
}

// NoteHeader is the public header of one created note: its id and packed
// metadata, the pair the output-notes commitment is computed over.
type NoteHeader struct {
	ID       felt.Digest
	Metadata felt.Word
}

// ProvenTransaction is the executor's final product: everything a
// verifier or block producer needs without re-execution.
type ProvenTransaction struct {
	ID                  felt.Digest
	InitialAccountHash  felt.Digest
	FinalAccountHash    felt.Digest
	InputNoteNullifiers []felt.Digest
	OutputNoteHeaders   []NoteHeader
	Proof               Proof
}

// TransactionID commits to a transaction's public boundary: initial and
// final account hashes plus the input- and output-notes commitments.
func TransactionID(initHash, finalHash, inputNotes, outputNotes felt.Digest) felt.Digest {
	return felt.HashTwo(felt.HashTwo(initHash, finalHash), felt.HashTwo(inputNotes, outputNotes))
}

// Engine drives one account's transaction through the full kernel
// pipeline against a pluggable VM, persisting results through a
// DataStore and obtaining account-owner signatures through an
// Authenticator. Transactions on disjoint accounts share nothing, so
// engines may run concurrently.
type Engine struct {
	Log     log.Logger
	Store   DataStore
	Auth    Authenticator
	Metrics *Metrics

	vm VM
}

// NewEngine builds an Engine whose VM defaults to a simVM that echoes
// Execute's public outputs (see runKernel) -- suitable for tests and for any
// deployment where the real zk-VM backend isn't linked in. Call
// WithVM to swap in a real backend before Execute is first called.
func NewEngine(logger log.Logger, store DataStore, auth Authenticator, metrics *Metrics) *Engine {
	e := &Engine{Log: logger, Store: store, Auth: auth, Metrics: metrics}
	e.vm = newSimVM(e.runKernel)
	return e
}

// WithVM replaces the engine's VM backend (e.g. the real Ziren
// zkvm_runtime client) and returns the engine for chaining.
func (e *Engine) WithVM(vm VM) *Engine {
	e.vm = vm
	return e
}

// runKernel is simVM's delegate. By the time RunProven calls it, Execute
// has already run the four kernel phases natively in Go and produced the
// two public-output words; runKernel echoes them back as the VM's
// reported outputs with an empty proof, fulfilling the same contract a
// real backend meets by re-deriving identical outputs from identical
// public inputs. This is what lets Engine be exercised end-to-end
// without a linked zk-VM.
func (e *Engine) runKernel(_ context.Context, _ Program, publicInputs []felt.Word, _ []byte) (Outputs, error) {
	if len(publicInputs) != 2 {
		return Outputs{}, ErrVMUnavailable
	}
	return Outputs{OutputNotesCommitment: publicInputs[0], FinalAccountHash: publicInputs[1]}, nil
}

// Execute runs one transaction end to end: prologue, note processor, tx
// script, epilogue, then persists the account record and nullifiers to
// Store. It does not call out to the VM backend for proving in the
// native-kernel path; RunProven does, wrapping this method's logic for
// backends that can't run the kernel directly.
func (e *Engine) Execute(ctx context.Context, req TransactionRequest) (TransactionResult, error) {
	mem := kernelmem.New()

	kctx, err := kernel.RunPrologue(e.Log, mem, req.Inputs, req.Advice)
	if err != nil {
		e.fail(err)
		return TransactionResult{}, err
	}

	if err := e.checkNullifiers(kctx.Nullifiers); err != nil {
		e.fail(err)
		return TransactionResult{}, err
	}

	if err := kernel.RunNoteProcessor(kctx, req.Registry, req.AssetsByNote, req.ArgsByNote); err != nil {
		e.fail(err)
		return TransactionResult{}, err
	}

	if e.Auth != nil && req.TxScript != nil {
		summary := felt.HashTwo(felt.Word{kctx.Account.ID.Hi, kctx.Account.ID.Lo, felt.Zero(), felt.Zero()}, req.Inputs.InputNotesCommitment)
		if _, err := e.Auth.Authenticate(ctx, kctx.Account.ID, summary); err != nil {
			e.fail(err)
			return TransactionResult{}, err
		}
	}

	outputs, err := kernel.RunEpilogue(kctx, req.TxScript, req.TxArgs)
	if err != nil {
		e.fail(err)
		return TransactionResult{}, err
	}

	if err := e.persist(kctx, outputs); err != nil {
		e.fail(err)
		return TransactionResult{}, err
	}

	if e.Metrics != nil {
		e.Metrics.TxExecuted.Inc()
	}
	e.Log.Debug("transaction executed", "account", kctx.Account.ID.Hi.Uint64(), "nonce", kctx.Account.Nonce.Uint64())

	return TransactionResult{
		Outputs:     outputs,
		Nullifiers:  kctx.Nullifiers,
		OutputNotes: kctx.OutputNotes,
		Events:      kctx.Events,
	}, nil
}

// RunProven executes the transaction through the Go kernel (Execute),
// then hands its two public-output words to the configured VM backend
// (real zk-VM or simVM) to obtain a Proof. Backends that can't run the Go
// kernel directly (the real Ziren runtime) are expected to reproduce
// identical public outputs from the same public inputs/advice -- this is
// the contract the VM interface's doc comment describes; Execute remains
// the reference path used by tests and the CLI.
func (e *Engine) RunProven(ctx context.Context, req TransactionRequest, advice []byte) (TransactionResult, *ProvenTransaction, error) {
	result, err := e.Execute(ctx, req)
	if err != nil {
		return TransactionResult{}, nil, err
	}
	publicInputs := []felt.Word{result.Outputs.OutputNotesCommitment, result.Outputs.FinalAccountHash}
	_, proof, err := e.vm.Run(ctx, req.Program, publicInputs, advice)
	if err != nil {
		return TransactionResult{}, nil, err
	}
	result.Proof = proof

	headers := make([]NoteHeader, len(result.OutputNotes))
	for i, n := range result.OutputNotes {
		headers[i] = NoteHeader{ID: n.NoteId(), Metadata: n.Metadata(note.ExecutionHint{}).Pack()}
	}
	proven := &ProvenTransaction{
		ID: TransactionID(req.Inputs.InitAcctHash, result.Outputs.FinalAccountHash,
			req.Inputs.InputNotesCommitment, result.Outputs.OutputNotesCommitment),
		InitialAccountHash:  req.Inputs.InitAcctHash,
		FinalAccountHash:    result.Outputs.FinalAccountHash,
		InputNoteNullifiers: result.Nullifiers,
		OutputNoteHeaders:   headers,
		Proof:               proof,
	}
	return result, proven, nil
}

func (e *Engine) checkNullifiers(nullifiers []felt.Digest) error {
	for _, n := range nullifiers {
		spent, err := e.Store.IsNullifierSpent(n)
		if err != nil {
			return err
		}
		if spent {
			return ErrNullifierSpent
		}
	}
	return nil
}

func (e *Engine) persist(kctx *kernel.Context, _ kernel.EpilogueOutputs) error {
	for _, n := range kctx.Nullifiers {
		if err := e.Store.MarkNullifierSpent(n); err != nil {
			return err
		}
	}
	return e.Store.PutAccount(AccountRecord{
		ID:          kctx.Account.ID,
		Nonce:       kctx.Account.Nonce,
		VaultRoot:   kctx.Account.Vault.Root(),
		StorageRoot: kctx.Account.Storage.Root(),
		CodeRoot:    kctx.Account.Code.Root(),
	})
}

func (e *Engine) fail(err error) {
	code := "ERR_UNKNOWN"
	var kerr *kernel.Error
	if errors.As(err, &kerr) {
		code = string(kerr.Code)
	}
	if e.Metrics != nil {
		e.Metrics.TxFailed.WithLabelValues(code).Inc()
	}
	e.Log.Error("transaction failed", "code", code, "err", err)
}
