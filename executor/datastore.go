// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package executor

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/luxfi/database"

	"github.com/luxfi/txkernel/account"
	"github.com/luxfi/txkernel/chain"
	"github.com/luxfi/txkernel/felt"
)

var (
	ErrAccountNotFound = errors.New("executor: no account record with this id in the data store")
	ErrNullifierSpent  = errors.New("executor: nullifier already recorded as spent")
)

// AccountRecord is the durable summary of an account's state the host
// keeps between transactions: enough to serve list-accounts/sync and to
// re-authenticate an account's commitment before handing its live
// *account.Account (rebuilt by the caller from its own storage/code/
// vault sources) into the next prologue. The data store does not
// serialize the account's live sparse-Merkle trees themselves; tree
// persistence is the advice provider's concern, not the kernel's.
type AccountRecord struct {
	ID          account.Id
	Nonce       felt.Felt
	VaultRoot   felt.Digest
	StorageRoot felt.Digest
	CodeRoot    felt.Digest
}

// Commitment reproduces account.Account.Commitment() from the record
// alone, so a host can verify a rehydrated account's live trees still
// match what was last persisted.
func (r AccountRecord) Commitment() felt.Digest {
	identity := felt.Word{r.ID.Lo, r.ID.Hi, felt.Zero(), r.Nonce}
	return felt.SequentialHash([]felt.Word{identity, r.VaultRoot, r.StorageRoot, r.CodeRoot}, felt.EmptyWord)
}

// DataStore is the host's persistence boundary: account, block, and
// nullifier databases, entirely host-owned. The kernel never touches it
// directly; Engine reads advice from it before a transaction and writes
// results back after.
type DataStore interface {
	GetAccount(id account.Id) (AccountRecord, bool, error)
	PutAccount(r AccountRecord) error
	ListAccounts() ([]AccountRecord, error)

	IsNullifierSpent(n felt.Digest) (bool, error)
	MarkNullifierSpent(n felt.Digest) error

	PutBlock(h chain.Header) error
	BlockAt(num uint32) (chain.Header, bool, error)
	ChainMMR() *chain.MMR

	Close() error
}

func idKey(id account.Id) [16]byte {
	var k [16]byte
	binary.LittleEndian.PutUint64(k[:8], id.Hi.Uint64())
	binary.LittleEndian.PutUint64(k[8:], id.Lo.Uint64())
	return k
}

// memStore is an in-memory DataStore, used for tests and the "memory"
// config.DataStoreConfig.Backend.
type memStore struct {
	mu         sync.RWMutex
	accounts   map[[16]byte]AccountRecord
	nullifiers map[felt.Digest]bool
	blocks     map[uint32]chain.Header
	mmr        *chain.MMR
}

// NewMemDataStore returns an empty in-memory DataStore.
func NewMemDataStore() DataStore {
	return &memStore{
		accounts:   make(map[[16]byte]AccountRecord),
		nullifiers: make(map[felt.Digest]bool),
		blocks:     make(map[uint32]chain.Header),
		mmr:        chain.NewMMR(),
	}
}

func (s *memStore) GetAccount(id account.Id) (AccountRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.accounts[idKey(id)]
	return r, ok, nil
}

func (s *memStore) PutAccount(r AccountRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[idKey(r.ID)] = r
	return nil
}

func (s *memStore) ListAccounts() ([]AccountRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AccountRecord, 0, len(s.accounts))
	for _, r := range s.accounts {
		out = append(out, r)
	}
	return out, nil
}

func (s *memStore) IsNullifierSpent(n felt.Digest) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nullifiers[n], nil
}

func (s *memStore) MarkNullifierSpent(n felt.Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nullifiers[n] {
		return ErrNullifierSpent
	}
	s.nullifiers[n] = true
	return nil
}

func (s *memStore) PutBlock(h chain.Header) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[h.BlockNum] = h
	s.mmr.AddBlock(h.Hash())
	return nil
}

func (s *memStore) BlockAt(num uint32) (chain.Header, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.blocks[num]
	return h, ok, nil
}

func (s *memStore) ChainMMR() *chain.MMR { return s.mmr }

func (s *memStore) Close() error { return nil }

// kvStore is a DataStore backed by a luxfi/database.Database key-value
// store (the "pebble" config.DataStoreConfig.Backend). Records are
// encoded as fixed-width byte tuples; the chain MMR itself still lives
// in memory, rebuilt at sync time by replaying blocks through PutBlock.
type kvStore struct {
	db  database.Database
	mu  sync.Mutex
	mmr *chain.MMR
}

// NewKVDataStore wraps an already-open luxfi/database.Database (e.g.
// pebble or memdb) as a DataStore.
func NewKVDataStore(db database.Database) DataStore {
	return &kvStore{db: db, mmr: chain.NewMMR()}
}

var (
	accountPrefix   = byte('a')
	nullifierPrefix = byte('n')
	blockPrefix     = byte('b')
)

func prefixedKey(prefix byte, suffix []byte) []byte {
	key := make([]byte, 1+len(suffix))
	key[0] = prefix
	copy(key[1:], suffix)
	return key
}

func encodeAccountRecord(r AccountRecord) []byte {
	out := make([]byte, 0, 16+8+32+32+32)
	idk := idKey(r.ID)
	out = append(out, idk[:]...)
	var nonceBytes [8]byte
	binary.LittleEndian.PutUint64(nonceBytes[:], r.Nonce.Uint64())
	out = append(out, nonceBytes[:]...)
	vaultBytes := r.VaultRoot.Bytes()
	storageBytes := r.StorageRoot.Bytes()
	codeBytes := r.CodeRoot.Bytes()
	out = append(out, vaultBytes[:]...)
	out = append(out, storageBytes[:]...)
	out = append(out, codeBytes[:]...)
	return out
}

func decodeAccountRecord(raw []byte) (AccountRecord, error) {
	if len(raw) != 16+8+32+32+32 {
		return AccountRecord{}, errors.New("executor: malformed account record")
	}
	idHi := binary.LittleEndian.Uint64(raw[0:8])
	idLo := binary.LittleEndian.Uint64(raw[8:16])
	nonce := binary.LittleEndian.Uint64(raw[16:24])

	var vaultBytes, storageBytes, codeBytes [32]byte
	copy(vaultBytes[:], raw[24:56])
	copy(storageBytes[:], raw[56:88])
	copy(codeBytes[:], raw[88:120])
	vault, err := felt.WordFromBytes(vaultBytes)
	if err != nil {
		return AccountRecord{}, err
	}
	storage, err := felt.WordFromBytes(storageBytes)
	if err != nil {
		return AccountRecord{}, err
	}
	code, err := felt.WordFromBytes(codeBytes)
	if err != nil {
		return AccountRecord{}, err
	}
	return AccountRecord{
		ID:          account.Id{Hi: felt.New(idHi), Lo: felt.New(idLo)},
		Nonce:       felt.New(nonce),
		VaultRoot:   vault,
		StorageRoot: storage,
		CodeRoot:    code,
	}, nil
}

func (s *kvStore) GetAccount(id account.Id) (AccountRecord, bool, error) {
	idk := idKey(id)
	raw, err := s.db.Get(prefixedKey(accountPrefix, idk[:]))
	if errors.Is(err, database.ErrNotFound) {
		return AccountRecord{}, false, nil
	}
	if err != nil {
		return AccountRecord{}, false, err
	}
	r, err := decodeAccountRecord(raw)
	if err != nil {
		return AccountRecord{}, false, err
	}
	return r, true, nil
}

func (s *kvStore) PutAccount(r AccountRecord) error {
	idk := idKey(r.ID)
	return s.db.Put(prefixedKey(accountPrefix, idk[:]), encodeAccountRecord(r))
}

func (s *kvStore) ListAccounts() ([]AccountRecord, error) {
	it := s.db.NewIteratorWithPrefix([]byte{accountPrefix})
	defer it.Release()
	var out []AccountRecord
	for it.Next() {
		r, err := decodeAccountRecord(it.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, it.Error()
}

func (s *kvStore) IsNullifierSpent(n felt.Digest) (bool, error) {
	b := n.Bytes()
	return s.db.Has(prefixedKey(nullifierPrefix, b[:]))
}

func (s *kvStore) MarkNullifierSpent(n felt.Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	spent, err := s.IsNullifierSpent(n)
	if err != nil {
		return err
	}
	if spent {
		return ErrNullifierSpent
	}
	b := n.Bytes()
	return s.db.Put(prefixedKey(nullifierPrefix, b[:]), []byte{1})
}

func (s *kvStore) PutBlock(h chain.Header) error {
	var numBytes [4]byte
	binary.LittleEndian.PutUint32(numBytes[:], h.BlockNum)
	headerBytes, err := encodeHeader(h)
	if err != nil {
		return err
	}
	if err := s.db.Put(prefixedKey(blockPrefix, numBytes[:]), headerBytes); err != nil {
		return err
	}
	s.mu.Lock()
	s.mmr.AddBlock(h.Hash())
	s.mu.Unlock()
	return nil
}

func (s *kvStore) BlockAt(num uint32) (chain.Header, bool, error) {
	var numBytes [4]byte
	binary.LittleEndian.PutUint32(numBytes[:], num)
	raw, err := s.db.Get(prefixedKey(blockPrefix, numBytes[:]))
	if errors.Is(err, database.ErrNotFound) {
		return chain.Header{}, false, nil
	}
	if err != nil {
		return chain.Header{}, false, err
	}
	h, err := decodeHeader(raw)
	return h, err == nil, err
}

func (s *kvStore) ChainMMR() *chain.MMR { return s.mmr }

func (s *kvStore) Close() error { return s.db.Close() }

// encodeHeader/decodeHeader serialize a block header as fixed-width
// fields: seven digest words (the six chain/db/tx/proof digests, then
// note_root), then (block_num, version, timestamp).
func encodeHeader(h chain.Header) ([]byte, error) {
	out := make([]byte, 0, 32*7+12)
	for _, d := range []felt.Digest{h.PrevBlockHash, h.ChainRoot, h.AcctDBRoot, h.NullifierDBRoot, h.TxHash, h.ProofHash, h.NoteRoot} {
		b := d.Bytes()
		out = append(out, b[:]...)
	}
	var meta [12]byte
	binary.LittleEndian.PutUint32(meta[0:4], h.BlockNum)
	binary.LittleEndian.PutUint32(meta[4:8], h.Version)
	binary.LittleEndian.PutUint32(meta[8:12], h.Timestamp)
	out = append(out, meta[:]...)
	return out, nil
}

func decodeHeader(raw []byte) (chain.Header, error) {
	if len(raw) != 32*7+12 {
		return chain.Header{}, errors.New("executor: malformed block header record")
	}
	digests := make([]felt.Digest, 7)
	for i := 0; i < 7; i++ {
		var b [32]byte
		copy(b[:], raw[i*32:(i+1)*32])
		d, err := felt.WordFromBytes(b)
		if err != nil {
			return chain.Header{}, err
		}
		digests[i] = d
	}
	meta := raw[7*32:]
	return chain.Header{
		PrevBlockHash:   digests[0],
		ChainRoot:       digests[1],
		AcctDBRoot:      digests[2],
		NullifierDBRoot: digests[3],
		TxHash:          digests[4],
		ProofHash:       digests[5],
		NoteRoot:        digests[6],
		BlockNum:        binary.LittleEndian.Uint32(meta[0:4]),
		Version:         binary.LittleEndian.Uint32(meta[4:8]),
		Timestamp:       binary.LittleEndian.Uint32(meta[8:12]),
	}, nil
}
