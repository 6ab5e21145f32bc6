package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"stakevault/crypto"
	"stakevault/native/bank"
	"stakevault/native/vault"
	"stakevault/storage"
)

var errReadOnly = errors.New("state: write in read-only transaction")

// Manager serialises vault state transitions over a key/value database. Each
// Update stages its writes in memory and commits them in one batch, so an
// operation either lands completely or not at all.
type Manager struct {
	mu sync.RWMutex
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Update runs fn against a writable transaction and commits when fn returns
// nil. Updates never overlap.
func (m *Manager) Update(fn func(tx vault.StateTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := newTx(m.db, false)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

// View runs fn against a read-only transaction.
func (m *Manager) View(fn func(tx vault.StateTx) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(newTx(m.db, true))
}

// Credit mints amount of asset into account in its own transaction.
func (m *Manager) Credit(asset string, account crypto.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := newTx(m.db, false)
	if err := tx.ledger.Credit(asset, account, amount); err != nil {
		return err
	}
	return tx.commit()
}

// Balance reads account's committed balance of asset.
func (m *Manager) Balance(asset string, account crypto.Address) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newTx(m.db, true).Balance(asset, account)
}

// Tx is a write overlay on top of the committed database.
type Tx struct {
	db       storage.Database
	readOnly bool
	writes   map[string][]byte
	ledger   *bank.Ledger
}

func newTx(db storage.Database, readOnly bool) *Tx {
	tx := &Tx{db: db, readOnly: readOnly, writes: make(map[string][]byte)}
	tx.ledger = bank.NewLedger(tx)
	return tx
}

func (tx *Tx) get(key []byte) ([]byte, error) {
	if value, ok := tx.writes[string(key)]; ok {
		return value, nil
	}
	value, err := tx.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return value, err
}

func (tx *Tx) put(key, value []byte) error {
	if tx.readOnly {
		return errReadOnly
	}
	tx.writes[string(key)] = value
	return nil
}

func (tx *Tx) getRLP(key []byte, out interface{}) (bool, error) {
	data, err := tx.get(key)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode record: %w", err)
	}
	return true, nil
}

func (tx *Tx) putRLP(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode record: %w", err)
	}
	return tx.put(key, encoded)
}

// commit writes the overlay in key order through a single batch.
func (tx *Tx) commit() error {
	if len(tx.writes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tx.writes))
	for key := range tx.writes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	batch := tx.db.NewBatch()
	for _, key := range keys {
		batch.Put([]byte(key), tx.writes[key])
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	return nil
}

func (tx *Tx) GetVault() (*vault.StakeVault, error) {
	record := new(vault.StakeVault)
	ok, err := tx.getRLP(VaultKey(), record)
	if err != nil || !ok {
		return nil, err
	}
	return record, nil
}

func (tx *Tx) PutVault(record *vault.StakeVault) error {
	if record == nil {
		return errors.New("state: nil vault record")
	}
	return tx.putRLP(VaultKey(), record)
}

func (tx *Tx) GetUserStake(owner crypto.Address) (*vault.UserStake, error) {
	record := new(vault.UserStake)
	ok, err := tx.getRLP(UserStakeKey(owner), record)
	if err != nil || !ok {
		return nil, err
	}
	return record, nil
}

func (tx *Tx) PutUserStake(record *vault.UserStake) error {
	if record == nil {
		return errors.New("state: nil user stake record")
	}
	return tx.putRLP(UserStakeKey(record.Owner), record)
}

// GetBalance implements bank.BalanceStore.
func (tx *Tx) GetBalance(asset string, account crypto.Address) (uint64, error) {
	var balance uint64
	if _, err := tx.getRLP(BalanceKey(asset, account), &balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// PutBalance implements bank.BalanceStore.
func (tx *Tx) PutBalance(asset string, account crypto.Address, amount uint64) error {
	return tx.putRLP(BalanceKey(asset, account), amount)
}

func (tx *Tx) Transfer(asset string, from, to crypto.Address, amount uint64) error {
	return tx.ledger.Transfer(asset, from, to, amount)
}

func (tx *Tx) Balance(asset string, account crypto.Address) (uint64, error) {
	return tx.ledger.Balance(asset, account)
}

var (
	_ vault.Store       = (*Manager)(nil)
	_ vault.StateTx     = (*Tx)(nil)
	_ bank.BalanceStore = (*Tx)(nil)
)
