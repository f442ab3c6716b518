// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package kernel

import (
	"errors"

	"github.com/luxfi/txkernel/felt"
	"github.com/luxfi/txkernel/kernelmem"
)

// ErrScriptFailed wraps a note or transaction script's own error so the
// host can distinguish "the script asserted false" from a kernel-level
// structural failure.
var ErrScriptFailed = errors.New("kernel: script execution failed")

// RunNoteProcessor iterates the consumed input notes in the order the
// prologue recorded them, dispatching each into its script.
// assetsByNote supplies each note's raw asset words, parallel to
// ctx.ConsumedNotes, since the prologue only keeps assets_hash on the
// Note value itself; argsByNote supplies each note's NOTE_ARGS word.
func RunNoteProcessor(ctx *Context, registry ScriptRegistry, assetsByNote [][]felt.Word, argsByNote []felt.Word) error {
	ctx.CurrentOrigin = OriginNote
	defer func() { ctx.CurrentOrigin = OriginAccount }()

	for i := range ctx.ConsumedNotes {
		n := &ctx.ConsumedNotes[i]
		ctx.Mem.Write(kernelmem.AddrCurrentInputNotePtr, felt.WordFromUint64s(uint64(i), 0, 0, 0))

		script, ok := registry[n.ScriptRoot]
		if !ok {
			return fail(PhaseNoteLoop, ErrCodeUnknownScript, ErrUnknownScript)
		}

		var args felt.Word
		if i < len(argsByNote) {
			args = argsByNote[i]
		}
		var assets []felt.Word
		if i < len(assetsByNote) {
			assets = assetsByNote[i]
		}

		if err := script.Run(ctx, n, assets, args); err != nil {
			return fail(PhaseNoteLoop, ErrCodeScriptAssertFailed, joinScriptErr(err))
		}
	}

	// Gate all note-context kernel calls from the transaction script.
	ctx.Mem.Write(kernelmem.AddrCurrentInputNotePtr, felt.WordFromUint64s(0, 0, 0, 0))
	ctx.CurrentOrigin = OriginAccount
	return nil
}

func joinScriptErr(err error) error {
	return errors.Join(ErrScriptFailed, err)
}
