package bank

import (
	"errors"
	"fmt"
	"strings"

	"stakevault/crypto"
)

var (
	// ErrInsufficientBalance is returned when the sender cannot cover a transfer.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrInvalidAmount       = errors.New("bank: amount must be positive")
	ErrSelfTransfer        = errors.New("bank: sender and recipient are the same account")
	errNilStore            = errors.New("bank: balance store not configured")
	errBalanceOverflow     = errors.New("bank: balance overflow")
)

// BalanceStore persists per-asset account balances. Absent balances read as
// zero.
type BalanceStore interface {
	GetBalance(asset string, account crypto.Address) (uint64, error)
	PutBalance(asset string, account crypto.Address, amount uint64) error
}

// Ledger moves fungible balances between accounts.
type Ledger struct {
	store BalanceStore
}

// NewLedger wraps store.
func NewLedger(store BalanceStore) *Ledger {
	return &Ledger{store: store}
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

// Balance returns account's balance of asset.
func (l *Ledger) Balance(asset string, account crypto.Address) (uint64, error) {
	if l == nil || l.store == nil {
		return 0, errNilStore
	}
	return l.store.GetBalance(normalizeAsset(asset), account)
}

// Transfer debits from and credits to. Both balances are validated before
// either is written.
func (l *Ledger) Transfer(asset string, from, to crypto.Address, amount uint64) error {
	if l == nil || l.store == nil {
		return errNilStore
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if from.Equal(to) {
		return ErrSelfTransfer
	}
	asset = normalizeAsset(asset)
	fromBalance, err := l.store.GetBalance(asset, from)
	if err != nil {
		return fmt.Errorf("bank: load sender balance: %w", err)
	}
	if fromBalance < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, fromBalance, amount)
	}
	toBalance, err := l.store.GetBalance(asset, to)
	if err != nil {
		return fmt.Errorf("bank: load recipient balance: %w", err)
	}
	credited := toBalance + amount
	if credited < toBalance {
		return errBalanceOverflow
	}
	if err := l.store.PutBalance(asset, from, fromBalance-amount); err != nil {
		return err
	}
	return l.store.PutBalance(asset, to, credited)
}

// Credit mints amount into account. It backs funding on development
// networks and test fixtures.
func (l *Ledger) Credit(asset string, account crypto.Address, amount uint64) error {
	if l == nil || l.store == nil {
		return errNilStore
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	asset = normalizeAsset(asset)
	balance, err := l.store.GetBalance(asset, account)
	if err != nil {
		return err
	}
	next := balance + amount
	if next < balance {
		return errBalanceOverflow
	}
	return l.store.PutBalance(asset, account, next)
}
