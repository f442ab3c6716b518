// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package felt implements the Goldilocks prime field (p = 2^64 - 2^32 + 1)
// used for every commitment, identifier, and in-kernel value in the
// transaction engine. A Felt is always kept in canonical (reduced) form.
package felt

import (
	"math/big"
	"math/bits"
)

// Modulus is the Goldilocks prime p = 2^64 - 2^32 + 1.
const Modulus uint64 = 0xFFFFFFFF00000001

var modulusBig = new(big.Int).SetUint64(Modulus)

// Felt is an element of GF(p). The zero value is the field's zero element.
type Felt uint64

// New reduces v into canonical form.
func New(v uint64) Felt {
	if v >= Modulus {
		return Felt(v - Modulus)
	}
	return Felt(v)
}

// Zero and One are the additive and multiplicative identities.
func Zero() Felt { return Felt(0) }
func One() Felt  { return Felt(1) }

// Uint64 returns the canonical uint64 representation.
func (f Felt) Uint64() uint64 { return uint64(f) }

// IsZero reports whether f is the additive identity.
func (f Felt) IsZero() bool { return f == 0 }

// Equal reports modular equality. Both operands are assumed canonical.
func (f Felt) Equal(g Felt) bool { return f == g }

// Add returns f + g mod p.
func (f Felt) Add(g Felt) Felt {
	sum := uint64(f) + uint64(g)
	// sum can overflow uint64 only if both operands are near p; p < 2^64 so
	// the only overflow case is handled by the carry check below.
	if sum < uint64(f) || sum >= Modulus {
		sum -= Modulus
	}
	return Felt(sum)
}

// Sub returns f - g mod p.
func (f Felt) Sub(g Felt) Felt {
	if uint64(f) >= uint64(g) {
		return Felt(uint64(f) - uint64(g))
	}
	return Felt(Modulus - (uint64(g) - uint64(f)))
}

// Neg returns -f mod p.
func (f Felt) Neg() Felt {
	if f == 0 {
		return f
	}
	return Felt(Modulus - uint64(f))
}

// Mul returns f * g mod p using a 128-bit intermediate product.
func (f Felt) Mul(g Felt) Felt {
	hi, lo := bits.Mul64(uint64(f), uint64(g))
	return Felt(reduce128(hi, lo))
}

// Square returns f * f mod p.
func (f Felt) Square() Felt { return f.Mul(f) }

// Exp computes f^exp mod p via square-and-multiply.
func (f Felt) Exp(exp uint64) Felt {
	result := One()
	base := f
	for exp > 0 {
		if exp&1 == 1 {
			result = result.Mul(base)
		}
		base = base.Mul(base)
		exp >>= 1
	}
	return result
}

// Inv computes the multiplicative inverse via Fermat's little theorem:
// f^(p-2) = f^-1 mod p. Panics on zero, mirroring the kernel's behavior of
// treating inversion of zero as a protocol violation rather than a value.
func (f Felt) Inv() Felt {
	if f.IsZero() {
		panic("felt: inverse of zero")
	}
	return f.Exp(Modulus - 2)
}

// Div returns f / g mod p.
func (f Felt) Div(g Felt) Felt { return f.Mul(g.Inv()) }

// reduce128 reduces a 128-bit product (hi<<64 | lo) modulo the Goldilocks
// prime. 2^64 ≡ 2^32 - 1 (mod p), so hi*2^64 + lo ≡ hi*(2^32-1) + lo, but
// that product can itself overflow 64 bits; big.Int keeps the reduction
// exact without hand-rolled 128-bit carry chains.
func reduce128(hi, lo uint64) uint64 {
	v := new(big.Int).Lsh(new(big.Int).SetUint64(hi), 64)
	v.Add(v, new(big.Int).SetUint64(lo))
	v.Mod(v, modulusBig)
	return v.Uint64()
}
