// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package executor implements the host side of the kernel: driving the
// prologue/note-processor/tx-script/epilogue pipeline against a
// pluggable zk-VM, persisting account/note/nullifier state, and
// authenticating account-owner actions. None of this is part of any
// commitment.
package executor

import (
	"context"
	"errors"

	"github.com/luxfi/txkernel/felt"
)

// Program identifies the compiled kernel + account/note code the VM
// executes, a MAST-root-addressed handle.
type Program struct {
	KernelRoot felt.Digest
	ScriptRoot felt.Digest
}

// Outputs is the VM run's public output tape: the output-notes
// commitment and final account hash, plus whatever event data the host
// surfaces.
type Outputs struct {
	OutputNotesCommitment felt.Digest
	FinalAccountHash      felt.Digest
	Events                []string
}

// Proof is an opaque, backend-defined proof blob. The executor never
// inspects its contents; it only forwards it to a verifier.
type Proof []byte

// ErrVMUnavailable is returned by a VM backend that cannot currently
// execute (e.g. the native runtime isn't reachable).
var ErrVMUnavailable = errors.New("executor: zk-VM backend unavailable")

// VM is the pluggable backend that actually executes the kernel program
// and produces a proof. ProjectZKM/Ziren's zkvm_runtime is the intended
// production backend; simVM stands in for it when unavailable.
type VM interface {
	Run(ctx context.Context, program Program, publicInputs []felt.Word, advice []byte) (Outputs, Proof, error)
}

// simVM is the in-process stand-in backend: its delegate (Engine.runKernel
// in engine.go) echoes back the public-output words that Engine.Execute
// already computed by running the kernel in Go, and Run returns an empty
// proof, for local development and tests where the real zk-VM backend
// isn't linked in. It implements VM so Engine can be exercised without a
// real prover.
type simVM struct {
	run func(ctx context.Context, program Program, publicInputs []felt.Word, advice []byte) (Outputs, error)
}

// newSimVM builds a simVM whose Run delegates to fn; Engine supplies its
// runKernel method (engine.go).
func newSimVM(fn func(ctx context.Context, program Program, publicInputs []felt.Word, advice []byte) (Outputs, error)) *simVM {
	return &simVM{run: fn}
}

func (v *simVM) Run(ctx context.Context, program Program, publicInputs []felt.Word, advice []byte) (Outputs, Proof, error) {
	if v.run == nil {
		return Outputs{}, nil, ErrVMUnavailable
	}
	out, err := v.run(ctx, program, publicInputs, advice)
	if err != nil {
		return Outputs{}, nil, err
	}
	return out, Proof{}, nil
}
