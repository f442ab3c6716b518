// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/txkernel/account"
	"github.com/luxfi/txkernel/felt"
	"github.com/luxfi/txkernel/kernelmem"
)

const basicWalletYAML = `
name: basic-wallet
description: a P2ID-receiving regular account
version: 0.1.0
supported_types: [0, 1]
slots:
  - index: 0
    type: 0
    placeholder: owner_key
  - index: 1
    type: 0
    value: [7, 0, 0, 0]
`

func writeTemplate(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tmpl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadParsesFields(t *testing.T) {
	path := writeTemplate(t, basicWalletYAML)
	tmpl, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "basic-wallet", tmpl.Name)
	require.Equal(t, "0.1.0", tmpl.Version)
	require.ElementsMatch(t, []account.Type{account.RegularUpdatable, account.RegularImmutable}, tmpl.SupportedTypes)
	require.Len(t, tmpl.Slots, 2)
}

func TestInstantiateResolvesPlaceholder(t *testing.T) {
	path := writeTemplate(t, basicWalletYAML)
	tmpl, err := Load(path)
	require.NoError(t, err)

	id := account.Id{
		Hi: account.BuildIdHi(account.RegularUpdatable, account.Public, 1, 0x7FFFFFFFFFFFFF),
		Lo: account.BuildIdLo(0, 0),
	}
	ownerKey := felt.WordFromUint64s(1, 2, 3, 4)
	acct, err := tmpl.Instantiate(id, map[string]felt.Word{"owner_key": ownerKey}, nil)
	require.NoError(t, err)
	require.Equal(t, ownerKey, acct.GetSlot(0))
	require.Equal(t, felt.WordFromUint64s(7, 0, 0, 0), acct.GetSlot(1))
}

func TestInstantiateRejectsUnsupportedType(t *testing.T) {
	path := writeTemplate(t, basicWalletYAML)
	tmpl, err := Load(path)
	require.NoError(t, err)

	id := account.Id{
		Hi: account.BuildIdHi(account.FungibleFaucet, account.Public, 1, 0x7FFFFFFFFFFFFF),
		Lo: account.BuildIdLo(0, 0),
	}
	_, err = tmpl.Instantiate(id, map[string]felt.Word{"owner_key": felt.EmptyWord}, nil)
	require.ErrorIs(t, err, ErrUnsupportedAccountType)
}

func TestInstantiateRejectsMissingPlaceholder(t *testing.T) {
	path := writeTemplate(t, basicWalletYAML)
	tmpl, err := Load(path)
	require.NoError(t, err)

	id := account.Id{
		Hi: account.BuildIdHi(account.RegularUpdatable, account.Public, 1, 0x7FFFFFFFFFFFFF),
		Lo: account.BuildIdLo(0, 0),
	}
	_, err = tmpl.Instantiate(id, nil, nil)
	require.ErrorIs(t, err, ErrUnresolvedPlaceholder)
}

func TestInstantiateMapSlot(t *testing.T) {
	path := writeTemplate(t, `
name: map-account
description: an account with a map-kind slot
version: 0.1.0
supported_types: [0]
slots:
  - index: 2
    type: 1
`)
	tmpl, err := Load(path)
	require.NoError(t, err)
	id := account.Id{
		Hi: account.BuildIdHi(account.RegularUpdatable, account.Public, 1, 0x7FFFFFFFFFFFFF),
		Lo: account.BuildIdLo(0, 0),
	}
	acct, err := tmpl.Instantiate(id, nil, nil)
	require.NoError(t, err)
	require.Equal(t, kernelmem.SlotTypeMap, acct.Slots[2].Type)
}
