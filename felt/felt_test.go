// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package felt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeltArithmetic(t *testing.T) {
	a := New(Modulus - 1)
	b := New(2)

	require.True(t, a.Add(b).Equal(New(1)))
	require.True(t, a.Sub(a).IsZero())
	require.True(t, Zero().Sub(b).Equal(New(Modulus-2)))
	require.True(t, New(3).Mul(New(4)).Equal(New(12)))
}

func TestFeltInverse(t *testing.T) {
	for _, v := range []uint64{1, 2, 7, 12345, Modulus - 1} {
		f := New(v)
		require.True(t, f.Mul(f.Inv()).Equal(One()), "v=%d", v)
	}
	require.Panics(t, func() { Zero().Inv() })
}

func TestFeltExp(t *testing.T) {
	f := New(3)
	require.True(t, f.Exp(0).Equal(One()))
	require.True(t, f.Exp(1).Equal(f))
	require.True(t, f.Exp(2).Equal(f.Mul(f)))
}

func TestWordRoundTrip(t *testing.T) {
	w := WordFromUint64s(1, 2, 3, 4)
	b := w.Bytes()
	w2, err := WordFromBytes(b)
	require.NoError(t, err)
	require.Equal(t, w, w2)
}

func TestWordFromBytesRejectsNonCanonical(t *testing.T) {
	w := WordFromUint64s(0, 0, 0, 0)
	b := w.Bytes()
	// Overwrite the first felt with a non-canonical value (>= Modulus).
	for i := 0; i < 8; i++ {
		b[i] = 0xFF
	}
	_, err := WordFromBytes(b)
	require.ErrorIs(t, err, ErrNonCanonical)
}

func TestPermuteIsDeterministic(t *testing.T) {
	var s1, s2 State
	s1[0] = New(42)
	s2[0] = New(42)
	Permute(&s1)
	Permute(&s2)
	require.Equal(t, s1, s2)
}

func TestPermuteChangesState(t *testing.T) {
	var s State
	orig := s
	Permute(&s)
	require.NotEqual(t, orig, s)
}

func TestHashTwoDeterministicAndSensitive(t *testing.T) {
	a := WordFromUint64s(1, 2, 3, 4)
	b := WordFromUint64s(5, 6, 7, 8)
	h1 := HashTwo(a, b)
	h2 := HashTwo(a, b)
	require.Equal(t, h1, h2)

	c := WordFromUint64s(5, 6, 7, 9)
	h3 := HashTwo(a, c)
	require.NotEqual(t, h1, h3)

	// order matters
	h4 := HashTwo(b, a)
	require.NotEqual(t, h1, h4)
}

func TestSequentialHashEmptyIsConstant(t *testing.T) {
	h1 := SequentialHash(nil, EmptyWord)
	h2 := SequentialHash(nil, EmptyWord)
	require.Equal(t, h1, h2)
}

func TestSequentialHashOddPadding(t *testing.T) {
	one := []Word{WordFromUint64s(1, 1, 1, 1)}
	two := []Word{WordFromUint64s(1, 1, 1, 1), EmptyWord}
	require.Equal(t, SequentialHash(one, EmptyWord), SequentialHash(two, EmptyWord))
}

func TestMerkleVerifyRoundTrip(t *testing.T) {
	leaf := WordFromUint64s(1, 2, 3, 4)
	sib0 := WordFromUint64s(5, 6, 7, 8)
	sib1 := WordFromUint64s(9, 10, 11, 12)

	// index = 0b01: level0 leaf is the right child, level1 node is the left child.
	n0 := HashTwo(sib0, leaf)
	root := HashTwo(n0, sib1)

	ok := MerkleVerify(leaf, []Digest{sib0, sib1}, 0b01, root)
	require.True(t, ok)

	bad := MerkleVerify(leaf, []Digest{sib0, sib1}, 0b00, root)
	require.False(t, bad)
}
