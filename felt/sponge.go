// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package felt

import (
	"math/big"

	"github.com/zeebo/blake3"
)

// Sponge width: 8 felts of rate, 4 felts of capacity, an RPO-class
// construction. Every commitment in the system must be computable from
// Permute alone; HashTwo, SequentialHash, and MerkleVerify (hash.go) are the
// only derived forms. The permutation alternates a forward and inverse
// 7th-power S-box with an MDS mixing layer; round constants are expanded
// deterministically from a domain-separated Blake3 stream so the sponge
// is a genuine, reproducible bijection.
const (
	StateWidth    = 12
	RateWidth     = 8
	CapacityWidth = 4
	numRounds     = 7
)

// State is the sponge's internal state.
type State [StateWidth]Felt

var (
	roundConstants [numRounds][StateWidth]Felt
	inverseExp     uint64 // d such that (x^7)^d = x, i.e. 7*d ≡ 1 (mod p-1)
)

func init() {
	pMinus1 := new(big.Int).SetUint64(Modulus - 1)
	seven := big.NewInt(7)
	d := new(big.Int).ModInverse(seven, pMinus1)
	if d == nil {
		panic("felt: 7 is not invertible mod p-1")
	}
	inverseExp = d.Uint64()

	// Expand round constants from a fixed domain-separated Blake3 stream so
	// they are reproducible without being pulled out of thin air.
	h := blake3.New()
	h.Write([]byte("txkernel/rpo-round-constants/v1"))
	stream := h.Digest()
	for r := 0; r < numRounds; r++ {
		for i := 0; i < StateWidth; i++ {
			var buf [8]byte
			if _, err := stream.Read(buf[:]); err != nil {
				panic(err)
			}
			roundConstants[r][i] = New(leBytesToUint64(buf))
		}
	}
}

func leBytesToUint64(b [8]byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// mdsMix applies a small circulant MDS-style mixing layer: out[i] = sum_j
// state[j] * coeff[(i-j) mod width], coeff chosen to be invertible (all
// distinct small odd values) so the mix alone is already a bijection.
var mdsCoeff = [StateWidth]Felt{
	New(1), New(3), New(5), New(7), New(9), New(11),
	New(13), New(15), New(17), New(19), New(21), New(23),
}

func mdsMix(s State) State {
	var out State
	for i := 0; i < StateWidth; i++ {
		acc := Zero()
		for j := 0; j < StateWidth; j++ {
			c := mdsCoeff[(i-j+StateWidth)%StateWidth]
			acc = acc.Add(s[j].Mul(c))
		}
		out[i] = acc
	}
	return out
}

func sbox(s State, forward bool) State {
	var out State
	for i, f := range s {
		if forward {
			out[i] = f.Exp(7)
		} else {
			out[i] = f.Exp(inverseExp)
		}
	}
	return out
}

// Permute runs the fixed-round permutation in place, alternating the
// forward and inverse S-box layer each round the way RPO does, with an
// MDS mixing layer and round-constant addition sandwiched around it.
func Permute(s *State) {
	for r := 0; r < numRounds; r++ {
		forward := r%2 == 0
		*s = sbox(*s, forward)
		*s = mdsMix(*s)
		for i := range s {
			s[i] = s[i].Add(roundConstants[r][i])
		}
	}
}
