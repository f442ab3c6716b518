// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asset

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/txkernel/account"
	"github.com/luxfi/txkernel/felt"
)

func fungibleFaucet() account.Id {
	return account.Id{
		Hi: account.BuildIdHi(account.FungibleFaucet, account.Public, 1, 0x1111),
		Lo: account.BuildIdLo(1, 0x2222),
	}
}

func nonFungibleFaucet() account.Id {
	return account.Id{
		Hi: account.BuildIdHi(account.NonFungibleFaucet, account.Public, 1, 0x3333),
		Lo: account.BuildIdLo(1, 0x4444),
	}
}

func TestFungibleConstructionAndDiscriminant(t *testing.T) {
	f, err := Fungible(fungibleFaucet(), 100)
	require.NoError(t, err)
	require.True(t, f.IsFungible())
	require.Equal(t, uint64(100), f.FungibleAmount())
}

func TestFungibleWrongFaucetKind(t *testing.T) {
	_, err := Fungible(nonFungibleFaucet(), 100)
	require.ErrorIs(t, err, ErrFungibleOriginMismatch)
}

func TestFungibleOverflow(t *testing.T) {
	_, err := Fungible(fungibleFaucet(), FungibleMaxAmount+1)
	require.ErrorIs(t, err, ErrFungibleOverflow)
}

func TestNonFungibleConstructionAndDiscriminant(t *testing.T) {
	nf, err := NonFungible(nonFungibleFaucet(), felt.WordFromUint64s(1, 2, 3, 4))
	require.NoError(t, err)
	require.False(t, nf.IsFungible())
}

func TestAssetEquality(t *testing.T) {
	a1, _ := Fungible(fungibleFaucet(), 10)
	a2, _ := Fungible(fungibleFaucet(), 999)
	require.True(t, a1.Equal(a2))

	n1, _ := NonFungible(nonFungibleFaucet(), felt.WordFromUint64s(1, 2, 3, 4))
	n2, _ := NonFungible(nonFungibleFaucet(), felt.WordFromUint64s(1, 2, 3, 5))
	require.False(t, n1.Equal(n2))
}

func TestFromWordRejectsMalformedFungible(t *testing.T) {
	bad := felt.WordFromUint64s(5, 1, 0, 0)
	_, err := FromWord(bad)
	require.ErrorIs(t, err, ErrMalformedFungible)
}

func TestVaultAddGetRemoveFungible(t *testing.T) {
	v := NewVault()
	faucet := fungibleFaucet()
	a, _ := Fungible(faucet, 100)

	require.NoError(t, v.Add(a))
	require.Equal(t, uint64(100), v.GetBalance(faucet.Hi))

	b, _ := Fungible(faucet, 40)
	require.NoError(t, v.Add(b))
	require.Equal(t, uint64(140), v.GetBalance(faucet.Hi))

	require.NoError(t, v.Remove(b))
	require.Equal(t, uint64(100), v.GetBalance(faucet.Hi))
}

func TestVaultRemoveInsufficientFails(t *testing.T) {
	v := NewVault()
	faucet := fungibleFaucet()
	a, _ := Fungible(faucet, 10)
	require.NoError(t, v.Add(a))

	big, _ := Fungible(faucet, 999)
	require.ErrorIs(t, v.Remove(big), ErrAssetNotPresent)
}

func TestVaultNonFungibleAddDuplicateFails(t *testing.T) {
	v := NewVault()
	nf, _ := NonFungible(nonFungibleFaucet(), felt.WordFromUint64s(9, 9, 9, 9))
	require.NoError(t, v.Add(nf))
	require.True(t, v.HasNonFungible(nf))
	require.ErrorIs(t, v.Add(nf), ErrNonFungibleAlreadyPresent)
}

func TestVaultRootChangesOnMutation(t *testing.T) {
	v := NewVault()
	r0 := v.Root()
	a, _ := Fungible(fungibleFaucet(), 1)
	require.NoError(t, v.Add(a))
	require.NotEqual(t, r0, v.Root())
}
