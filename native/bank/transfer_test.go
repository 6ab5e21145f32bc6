package bank

import (
	"errors"
	"testing"

	"stakevault/crypto"
)

type mapStore map[string]uint64

func (m mapStore) key(asset string, account crypto.Address) string {
	return asset + "/" + account.String()
}

func (m mapStore) GetBalance(asset string, account crypto.Address) (uint64, error) {
	return m[m.key(asset, account)], nil
}

func (m mapStore) PutBalance(asset string, account crypto.Address, amount uint64) error {
	m[m.key(asset, account)] = amount
	return nil
}

func TestTransferMovesBalance(t *testing.T) {
	store := mapStore{}
	ledger := NewLedger(store)
	alice := crypto.ModuleAddress("alice")
	bob := crypto.ModuleAddress("bob")

	if err := ledger.Credit("stk", alice, 100); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := ledger.Transfer("STK ", alice, bob, 40); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got, _ := ledger.Balance("STK", alice); got != 60 {
		t.Fatalf("alice balance = %d, want 60", got)
	}
	if got, _ := ledger.Balance("stk", bob); got != 40 {
		t.Fatalf("bob balance = %d, want 40", got)
	}
}

func TestTransferRejectsOverdraftWithoutWrites(t *testing.T) {
	store := mapStore{}
	ledger := NewLedger(store)
	alice := crypto.ModuleAddress("alice")
	bob := crypto.ModuleAddress("bob")
	if err := ledger.Credit("STK", alice, 10); err != nil {
		t.Fatalf("credit: %v", err)
	}

	err := ledger.Transfer("STK", alice, bob, 11)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got, _ := ledger.Balance("STK", alice); got != 10 {
		t.Fatalf("sender balance changed to %d", got)
	}
	if got, _ := ledger.Balance("STK", bob); got != 0 {
		t.Fatalf("recipient credited %d", got)
	}
	if err := ledger.Transfer("STK", alice, alice, 1); !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("expected ErrSelfTransfer, got %v", err)
	}
	if err := ledger.Transfer("STK", alice, bob, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
