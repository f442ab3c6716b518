// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package note

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/txkernel/account"
	"github.com/luxfi/txkernel/felt"
)

func sampleSender() account.Id {
	return account.Id{
		Hi: account.BuildIdHi(account.RegularUpdatable, account.Public, 1, 0xABCDEF),
		Lo: account.BuildIdLo(7, 0x123456789),
	}
}

func sampleNote() Note {
	hint, _ := NewAfterBlock(100)
	return Note{
		SerialNum:        felt.WordFromUint64s(1, 2, 3, 4),
		ScriptRoot:       felt.WordFromUint64s(5, 6, 7, 8),
		InputsCommitment: felt.WordFromUint64s(9, 10, 11, 12),
		AssetsCommitment: AssetsCommitment([]felt.Word{felt.WordFromUint64s(100, 0, 1, 2)}),
		Metadata: Metadata{
			Sender:   sampleSender(),
			Tag:      BuildTag(TagAnyTarget, felt.Zero()),
			NoteType: Public,
			Aux:      felt.New(77),
			Hint:     hint,
		},
	}
}

func TestMetadataPackUnpackRoundTrip(t *testing.T) {
	m := sampleNote().Metadata
	got := Unpack(m.Pack())
	require.Equal(t, m.Sender.Hi, got.Sender.Hi)
	require.Equal(t, m.Sender.Lo, got.Sender.Lo)
	require.Equal(t, m.NoteType, got.NoteType)
	require.Equal(t, m.Tag, got.Tag)
	require.Equal(t, m.Aux, got.Aux)
	require.Equal(t, m.Hint, got.Hint)
}

func TestAfterBlockRejectsMax(t *testing.T) {
	_, err := NewAfterBlock(0xFFFFFFFF)
	require.ErrorIs(t, err, ErrBadAfterBlock)
}

func TestRecipientIndependentOfMetadata(t *testing.T) {
	n1 := sampleNote()
	n2 := sampleNote()
	n2.Metadata.Aux = felt.New(999)
	require.Equal(t, n1.Recipient(), n2.Recipient())
	require.Equal(t, n1.Id(), n2.Id())
	require.NotEqual(t, n1.Hash(), n2.Hash())
}

func TestNullifierDeterministicFunctionOfCore(t *testing.T) {
	n1 := sampleNote()
	n2 := sampleNote()
	require.Equal(t, n1.Nullifier(), n2.Nullifier())

	n2.SerialNum = felt.WordFromUint64s(99, 0, 0, 0)
	require.NotEqual(t, n1.Nullifier(), n2.Nullifier())
}

func TestAssetsCommitmentEmpty(t *testing.T) {
	require.Equal(t, felt.EmptyWord, AssetsCommitment(nil))
}

func TestValidateBounds(t *testing.T) {
	require.NoError(t, ValidateBounds(MaxAssetsPerNote, MaxInputsPerNote))
	require.ErrorIs(t, ValidateBounds(MaxAssetsPerNote+1, 0), ErrTooManyAssets)
	require.ErrorIs(t, ValidateBounds(0, MaxInputsPerNote+1), ErrTooManyInputs)
}

func TestTagTargetMatching(t *testing.T) {
	target := account.BuildIdHi(account.RegularUpdatable, account.Public, 1, 0xDEADBEEF)
	tag := BuildTag(TagSpecificTarget, target)
	require.True(t, MatchesTarget(tag, target))

	other := account.BuildIdHi(account.RegularUpdatable, account.Public, 1, 0xFEEDFACE)
	require.False(t, MatchesTarget(tag, other))

	anyTag := BuildTag(TagAnyTarget, felt.Zero())
	require.True(t, MatchesTarget(anyTag, other))
}
