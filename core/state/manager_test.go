package state

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"stakevault/crypto"
	"stakevault/native/bank"
	"stakevault/native/vault"
	"stakevault/storage"
)

func sampleVault() *vault.StakeVault {
	return &vault.StakeVault{
		Admin:         crypto.ModuleAddress("admin"),
		AssetID:       "STK",
		Custody:       crypto.ModuleAddress("custody"),
		Initialized:   true,
		Permissions:   vault.Permissions{AllowDeposits: true},
		VestingPeriod: 60,
		Stats:         vault.StakeStats{TotalStaked: 10, ActiveAmount: 7, UnstakingAmount: 3},
		Rewards: vault.RewardAccumulator{
			PendingRewards:       5,
			RewardPerTokenStaked: uint256.NewInt(1_000_000),
		},
	}
}

func TestManagerRoundTripsRecords(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	owner := crypto.ModuleAddress("owner")

	stake := &vault.UserStake{
		Owner:             owner,
		Initialized:       true,
		StakedAmount:      10,
		ActiveStakeAmount: 7,
		Rewards:           vault.UserRewardState{RewardPerTokenPaid: uint256.NewInt(42)},
	}
	_, err := stake.Requests.Append(vault.UnstakeRequest{ID: "req-1", TotalAmount: 3, CreatedAt: 100, VestingPeriod: 60})
	require.NoError(t, err)

	require.NoError(t, mgr.Update(func(tx vault.StateTx) error {
		if err := tx.PutVault(sampleVault()); err != nil {
			return err
		}
		return tx.PutUserStake(stake)
	}))

	require.NoError(t, mgr.View(func(tx vault.StateTx) error {
		got, err := tx.GetVault()
		require.NoError(t, err)
		require.Equal(t, sampleVault(), got)

		gotStake, err := tx.GetUserStake(owner)
		require.NoError(t, err)
		require.Equal(t, stake, gotStake)

		missing, err := tx.GetUserStake(crypto.ModuleAddress("nobody"))
		require.NoError(t, err)
		require.Nil(t, missing)
		return nil
	}))
}

func TestManagerDiscardsFailedUpdate(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	alice := crypto.ModuleAddress("alice")
	custody := crypto.ModuleAddress("custody")
	require.NoError(t, mgr.Credit("STK", alice, 50))

	boom := errors.New("boom")
	err := mgr.Update(func(tx vault.StateTx) error {
		if err := tx.Transfer("STK", alice, custody, 20); err != nil {
			return err
		}
		if err := tx.PutVault(sampleVault()); err != nil {
			return err
		}
		balance, err := tx.Balance("STK", custody)
		require.NoError(t, err)
		require.Equal(t, uint64(20), balance)
		return boom
	})
	require.ErrorIs(t, err, boom)

	balance, err := mgr.Balance("STK", alice)
	require.NoError(t, err)
	require.Equal(t, uint64(50), balance)
	require.NoError(t, mgr.View(func(tx vault.StateTx) error {
		got, err := tx.GetVault()
		require.NoError(t, err)
		require.Nil(t, got)
		return nil
	}))
}

func TestManagerViewIsReadOnly(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	err := mgr.View(func(tx vault.StateTx) error {
		return tx.PutVault(sampleVault())
	})
	require.ErrorIs(t, err, errReadOnly)
}

func TestManagerTransferOverdraft(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	err := mgr.Update(func(tx vault.StateTx) error {
		return tx.Transfer("STK", crypto.ModuleAddress("a"), crypto.ModuleAddress("b"), 1)
	})
	require.ErrorIs(t, err, bank.ErrInsufficientBalance)
}

func TestManagerPersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")

	db, err := storage.Open(storage.BackendLevelDB, dir)
	require.NoError(t, err)
	mgr := NewManager(db)
	require.NoError(t, mgr.Update(func(tx vault.StateTx) error {
		return tx.PutVault(sampleVault())
	}))
	require.NoError(t, db.Close())

	db, err = storage.Open(storage.BackendLevelDB, dir)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, NewManager(db).View(func(tx vault.StateTx) error {
		got, err := tx.GetVault()
		require.NoError(t, err)
		require.Equal(t, uint64(7), got.Stats.ActiveAmount)
		return nil
	}))
}

func TestKeysAreDistinct(t *testing.T) {
	a := crypto.ModuleAddress("a")
	require.NotEqual(t, UserStakeKey(a), BalanceKey("STK", a))
	require.Equal(t, BalanceKey("stk", a), BalanceKey(" STK ", a))
	require.Len(t, VaultKey(), 32)
}
