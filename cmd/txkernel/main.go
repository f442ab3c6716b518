// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command txkernel is the executor's CLI surface: new-account,
// list-accounts, sync, mint, consume-note, transfer. Each transaction
// subcommand assembles a request, drives it through executor.Engine, and
// prints the transaction id and public outputs; any authentication or
// validation failure exits non-zero.
package main

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/luxfi/txkernel/account"
	"github.com/luxfi/txkernel/account/template"
	"github.com/luxfi/txkernel/asset"
	"github.com/luxfi/txkernel/chain"
	"github.com/luxfi/txkernel/config"
	"github.com/luxfi/txkernel/executor"
	"github.com/luxfi/txkernel/felt"
	"github.com/luxfi/txkernel/kernel"
	"github.com/luxfi/txkernel/merkle"
	"github.com/luxfi/txkernel/note"
)

var cfgPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "txkernel:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "txkernel",
		Short:         "Drive the account-based STARK rollup transaction kernel",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := pflag.NewFlagSet("txkernel", pflag.ExitOnError)
	pf.StringVar(&cfgPath, "config", "./txkernel.yaml", "path to the executor config file")
	root.PersistentFlags().AddFlagSet(pf)

	root.AddCommand(
		newAccountCmd(),
		listAccountsCmd(),
		syncCmd(),
		mintCmd(),
		consumeNoteCmd(),
		transferCmd(),
	)
	return root
}

// buildEngine loads config and assembles the Engine every subcommand
// drives.
func buildEngine() (*executor.Engine, executor.DataStore, *config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if os.IsNotExist(err) {
		cfg = config.Default()
	} else if err != nil {
		return nil, nil, nil, err
	}

	logger := log.NewTestLogger(parseLevel(cfg.Logging.Level))

	var store executor.DataStore
	switch cfg.DataStore.Backend {
	case "memory":
		store = executor.NewMemDataStore()
	default:
		return nil, nil, nil, fmt.Errorf("txkernel: data_store.backend %q requires an already-open luxfi/database.Database, construct executor.NewKVDataStore directly", cfg.DataStore.Backend)
	}

	auth := executor.NewPoolAuthenticator(logger)
	metrics := executor.NewMetrics(prometheus.NewRegistry())

	return executor.NewEngine(logger, store, auth, metrics), store, cfg, nil
}

func parseLevel(s string) log.Level {
	switch s {
	case "debug":
		return log.Level(log.DebugLevel)
	case "warn":
		return log.Level(log.WarnLevel)
	case "error":
		return log.Level(log.ErrorLevel)
	default:
		return log.Level(log.InfoLevel)
	}
}

// parseAccountID decodes a 16-byte big-endian (id_hi || id_lo) hex id.
func parseAccountID(s string) (account.Id, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 16 {
		return account.Id{}, fmt.Errorf("txkernel: account id must be 32 hex chars (16 bytes): %q", s)
	}
	id := account.Id{
		Hi: felt.New(binary.BigEndian.Uint64(raw[:8])),
		Lo: felt.New(binary.BigEndian.Uint64(raw[8:])),
	}
	if err := id.ValidateStructure(); err != nil {
		return account.Id{}, err
	}
	return id, nil
}

func formatAccountID(id account.Id) string {
	var raw [16]byte
	binary.BigEndian.PutUint64(raw[:8], id.Hi.Uint64())
	binary.BigEndian.PutUint64(raw[8:], id.Lo.Uint64())
	return hex.EncodeToString(raw[:])
}

func formatDigest(d felt.Digest) string {
	b := d.Bytes()
	return hex.EncodeToString(b[:])
}

// genesisHeader returns a header authenticated against an empty chain
// history, the reference block every fresh-store transaction runs under.
func genesisHeader() (chain.Header, []felt.Digest, uint64) {
	peaks := []felt.Digest{}
	leaves := uint64(0)
	return chain.Header{ChainRoot: merkle.ChainMMRHash(peaks, leaves), NoteRoot: felt.EmptyWord}, peaks, leaves
}

var txScriptRootMarker = felt.Word{felt.New(1), felt.Zero(), felt.Zero(), felt.Zero()}

func printResult(req kernel.PrologueInputs, result executor.TransactionResult) {
	txID := executor.TransactionID(req.InitAcctHash, result.Outputs.FinalAccountHash, req.InputNotesCommitment, result.Outputs.OutputNotesCommitment)
	fmt.Printf("transaction id:          %s\n", formatDigest(txID))
	fmt.Printf("final account hash:      %s\n", formatDigest(result.Outputs.FinalAccountHash))
	fmt.Printf("output notes commitment: %s\n", formatDigest(result.Outputs.OutputNotesCommitment))
	for _, n := range result.Nullifiers {
		fmt.Printf("nullifier:               %s\n", formatDigest(n))
	}
}

func newAccountCmd() *cobra.Command {
	var templatePath string
	var typeFlag string
	var maxAttempts uint64
	cmd := &cobra.Command{
		Use:   "new-account",
		Short: "Instantiate a new account from a component template",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, _, err := buildEngine()
			if err != nil {
				return err
			}
			defer store.Close()
			if templatePath == "" {
				return fmt.Errorf("txkernel: --template is required")
			}
			typ, err := parseAccountType(typeFlag)
			if err != nil {
				return err
			}

			tmpl, err := template.Load(templatePath)
			if err != nil {
				return err
			}
			// Instantiate a throwaway copy first to learn the storage/code
			// roots the seed must bind, grind an id against them, then
			// instantiate for real under the ground id.
			probe, err := tmpl.Instantiate(account.Id{Hi: account.BuildIdHi(typ, account.Public, 1, 0x1F), Lo: account.BuildIdLo(0, 0)}, nil, nil)
			if err != nil {
				return err
			}
			seed, id, err := kernel.GrindAccountSeed(probe.Code.Root(), probe.Storage.Root(), typ, account.Public, 1, 0, maxAttempts)
			if err != nil {
				return err
			}
			acct, err := tmpl.Instantiate(id, nil, nil)
			if err != nil {
				return err
			}
			if err := store.PutAccount(executor.AccountRecord{
				ID:          acct.ID,
				Nonce:       acct.Nonce,
				VaultRoot:   acct.Vault.Root(),
				StorageRoot: acct.Storage.Root(),
				CodeRoot:    acct.Code.Root(),
			}); err != nil {
				return err
			}
			fmt.Printf("account id: %s\n", formatAccountID(acct.ID))
			fmt.Printf("seed:       %s\n", formatDigest(seed))
			return nil
		},
	}
	cmd.Flags().StringVar(&templatePath, "template", "", "path to a component template YAML file")
	cmd.Flags().StringVar(&typeFlag, "type", "regular-updatable", "account type to instantiate")
	cmd.Flags().Uint64Var(&maxAttempts, "max-attempts", 1<<28, "seed grinding attempt budget")
	return cmd
}

func parseAccountType(s string) (account.Type, error) {
	switch s {
	case "regular-updatable":
		return account.RegularUpdatable, nil
	case "regular-immutable":
		return account.RegularImmutable, nil
	case "fungible-faucet":
		return account.FungibleFaucet, nil
	case "non-fungible-faucet":
		return account.NonFungibleFaucet, nil
	default:
		return 0, fmt.Errorf("txkernel: unknown account type %q", s)
	}
}

func listAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-accounts",
		Short: "List accounts known to the data store",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, _, err := buildEngine()
			if err != nil {
				return err
			}
			defer store.Close()
			records, err := store.ListAccounts()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("no accounts")
				return nil
			}
			for _, r := range records {
				fmt.Printf("%s nonce=%d commitment=%s\n", formatAccountID(r.ID), r.Nonce.Uint64(), formatDigest(r.Commitment()))
			}
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Record the genesis block header in the local data store",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, _, err := buildEngine()
			if err != nil {
				return err
			}
			defer store.Close()
			header, _, _ := genesisHeader()
			if err := store.PutBlock(header); err != nil {
				return err
			}
			fmt.Printf("synced to block %d, chain mmr hash %s\n", header.BlockNum, formatDigest(store.ChainMMR().ChainMMRHash()))
			return nil
		},
	}
}

// distributeScript is the mint subcommand's transaction script: mint an
// amount, send it to a recipient in a fresh note, bump the nonce.
type distributeScript struct {
	amount    uint64
	recipient felt.Digest
}

func (s distributeScript) Run(ctx *kernel.Context, _ *note.Note, _ []felt.Word, _ felt.Word) error {
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

func mintCmd() *cobra.Command {
	var faucetIDHex string
	var recipientHex string
	var amount uint64
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a fungible asset from a faucet account",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, store, _, err := buildEngine()
			if err != nil {
				return err
			}
			defer store.Close()
			faucetID, err := parseAccountID(faucetIDHex)
			if err != nil {
				return err
			}
			if faucetID.AccountType() != account.FungibleFaucet {
				return fmt.Errorf("txkernel: %s is not a fungible faucet id", faucetIDHex)
			}
			recipient, err := parseRecipient(recipientHex)
			if err != nil {
				return err
			}

			acct := account.New(faucetID)
			acct.Nonce = felt.New(1)
			header, peaks, leaves := genesisHeader()

			req := executor.TransactionRequest{
				Inputs: kernel.PrologueInputs{
					BlockHash:            header.Hash(),
					AcctIDPrefix:         faucetID.Prefix(),
					InitAcctHash:         acct.Commitment(),
					InputNotesCommitment: felt.EmptyWord,
				},
				Advice: kernel.Advice{
					Header: header, ChainPeaks: peaks, ChainLeaves: leaves,
					Account: acct, StorageReg: acct.Slots, PriorMMR: chain.NewMMR(),
					TxScriptRoot: txScriptRootMarker,
				},
				TxScript: distributeScript{amount: amount, recipient: recipient},
			}
			result, err := eng.Execute(cmd.Context(), req)
			if err != nil {
				return err
			}
			printResult(req.Inputs, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&faucetIDHex, "faucet", "", "faucet account id, hex")
	cmd.Flags().StringVar(&recipientHex, "recipient", "", "recipient digest, 64 hex chars")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "amount to mint")
	return cmd
}

func parseRecipient(s string) (felt.Digest, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return felt.Digest{}, fmt.Errorf("txkernel: recipient must be 64 hex chars (32 bytes): %q", s)
	}
	var b [32]byte
	copy(b[:], raw)
	return felt.WordFromBytes(b)
}

func consumeNoteCmd() *cobra.Command {
	var accountIDHex string
	var faucetIDHex string
	var serialHex string
	var amount uint64
	cmd := &cobra.Command{
		Use:   "consume-note",
		Short: "Consume a P2ID note into the local account",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, store, _, err := buildEngine()
			if err != nil {
				return err
			}
			defer store.Close()
			acctID, err := parseAccountID(accountIDHex)
			if err != nil {
				return err
			}
			faucetID, err := parseAccountID(faucetIDHex)
			if err != nil {
				return err
			}
			serial, err := parseRecipient(serialHex)
			if err != nil {
				return err
			}
			a, err := asset.Fungible(faucetID, amount)
			if err != nil {
				return err
			}

			acct := account.New(acctID)
			acct.Nonce = felt.New(1)

			n := note.Note{
				SerialNum:        serial,
				ScriptRoot:       kernel.P2IDRoot,
				InputsCommitment: felt.EmptyWord,
				AssetsCommitment: note.AssetsCommitment([]felt.Word{a.Word()}),
				Metadata:         note.Metadata{Sender: faucetID, NoteType: note.Public},
			}
			adv := kernel.AdviceNote{
				SerialNum: serial, ScriptRoot: kernel.P2IDRoot,
				InputsHash: felt.EmptyWord, AssetsHash: n.AssetsCommitment,
				Metadata: n.Metadata, Assets: []felt.Word{a.Word()},
			}
			header, peaks, leaves := genesisHeader()
			commitment := felt.SequentialHash([]felt.Word{n.Hash(), n.Nullifier()}, felt.EmptyWord)

			req := executor.TransactionRequest{
				Inputs: kernel.PrologueInputs{
					BlockHash:            header.Hash(),
					AcctIDPrefix:         acctID.Prefix(),
					InitAcctHash:         acct.Commitment(),
					InputNotesCommitment: commitment,
				},
				Advice: kernel.Advice{
					Header: header, ChainPeaks: peaks, ChainLeaves: leaves,
					Account: acct, StorageReg: acct.Slots, PriorMMR: chain.NewMMR(),
					InputNotes:   []kernel.AdviceNote{adv},
					TxScriptRoot: txScriptRootMarker,
				},
				Registry:     kernel.ScriptRegistry{kernel.P2IDRoot: kernel.P2IDScript{TargetIDHi: acctID.Hi, TargetIDLo: acctID.Lo}},
				AssetsByNote: [][]felt.Word{{a.Word()}},
				ArgsByNote:   []felt.Word{{}},
				TxScript:     bumpNonceScript{},
			}
			result, err := eng.Execute(cmd.Context(), req)
			if err != nil {
				return err
			}
			printResult(req.Inputs, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&accountIDHex, "account", "", "consuming account id, hex")
	cmd.Flags().StringVar(&faucetIDHex, "faucet", "", "asset faucet id, hex")
	cmd.Flags().StringVar(&serialHex, "serial", "", "note serial number, 64 hex chars")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "note's fungible amount")
	return cmd
}

type bumpNonceScript struct{}

func (bumpNonceScript) Run(ctx *kernel.Context, _ *note.Note, _ []felt.Word, _ felt.Word) error {
	return ctx.IncrNonce(1)
}

// sendScript is the transfer subcommand's transaction script: move an
// asset out of the account's vault into a fresh P2ID note.
type sendScript struct {
	a         asset.Asset
	recipient felt.Digest
	targetHi  felt.Felt
}

func (s sendScript) Run(ctx *kernel.Context, _ *note.Note, _ []felt.Word, _ felt.Word) error {
	if err := ctx.RemoveAsset(s.a); err != nil {
		return err
	}
	tag := note.BuildTag(note.TagSpecificTarget, s.targetHi)
	idx, err := ctx.CreateNote(tag, felt.Zero(), note.Public, s.recipient)
	if err != nil {
		return err
	}
	if err := ctx.AddAssetToNote(idx, s.a); err != nil {
		return err
	}
	return ctx.IncrNonce(1)
}

func transferCmd() *cobra.Command {
	var fromHex string
	var toHex string
	var faucetIDHex string
	var recipientHex string
	var amount uint64
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Create a P2ID note transferring an asset to another account",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, store, _, err := buildEngine()
			if err != nil {
				return err
			}
			defer store.Close()
			fromID, err := parseAccountID(fromHex)
			if err != nil {
				return err
			}
			toID, err := parseAccountID(toHex)
			if err != nil {
				return err
			}
			faucetID, err := parseAccountID(faucetIDHex)
			if err != nil {
				return err
			}
			recipient, err := parseRecipient(recipientHex)
			if err != nil {
				return err
			}
			a, err := asset.Fungible(faucetID, amount)
			if err != nil {
				return err
			}

			// The sending account enters the transaction already holding the
			// asset; the prologue authenticates its commitment over that
			// pre-funded vault.
			acct := account.New(fromID)
			acct.Nonce = felt.New(1)
			if err := asset.WrapVault(acct.Vault).Add(a); err != nil {
				return err
			}

			header, peaks, leaves := genesisHeader()
			req := executor.TransactionRequest{
				Inputs: kernel.PrologueInputs{
					BlockHash:            header.Hash(),
					AcctIDPrefix:         fromID.Prefix(),
					InitAcctHash:         acct.Commitment(),
					InputNotesCommitment: felt.EmptyWord,
				},
				Advice: kernel.Advice{
					Header: header, ChainPeaks: peaks, ChainLeaves: leaves,
					Account: acct, StorageReg: acct.Slots, PriorMMR: chain.NewMMR(),
					TxScriptRoot: txScriptRootMarker,
				},
				TxScript: sendScript{a: a, recipient: recipient, targetHi: toID.Hi},
			}
			result, err := eng.Execute(cmd.Context(), req)
			if err != nil {
				return err
			}
			printResult(req.Inputs, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&fromHex, "from", "", "sending account id, hex")
	cmd.Flags().StringVar(&toHex, "to", "", "recipient account id, hex")
	cmd.Flags().StringVar(&faucetIDHex, "faucet", "", "asset faucet id, hex")
	cmd.Flags().StringVar(&recipientHex, "recipient", "", "recipient digest for the created note, 64 hex chars")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "amount to transfer")
	return cmd
}
