package vault

import "stakevault/crypto"

// Vault returns a copy of the vault record.
func (e *Engine) Vault() (*StakeVault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	var out *StakeVault
	err := e.state.View(func(tx StateTx) error {
		vault, err := loadVault(tx)
		if err != nil {
			return err
		}
		out = vault
		return nil
	})
	return out, err
}

// UserStake returns the owner's stake record.
func (e *Engine) UserStake(owner crypto.Address) (*UserStake, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	var out *UserStake
	err := e.state.View(func(tx StateTx) error {
		stake, err := tx.GetUserStake(owner)
		if err != nil {
			return err
		}
		if stake == nil {
			return ErrStakeNotFound
		}
		out = stake
		return nil
	})
	return out, err
}

// StakeSummary is a read-only snapshot of one user's position at a point in
// time.
type StakeSummary struct {
	Stake          *UserStake `json:"stake"`
	PendingRewards uint64     `json:"pendingRewards"`
	Claimable      uint64     `json:"claimable"`
	PendingUnlock  uint64     `json:"pendingUnlock"`
	Timestamp      uint64     `json:"timestamp"`
}

// Summary reports the owner's position including rewards that would be
// settled and principal that could be claimed right now. Nothing is written.
func (e *Engine) Summary(owner crypto.Address) (*StakeSummary, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()
	var out *StakeSummary
	err := e.state.View(func(tx StateTx) error {
		vault, err := loadVault(tx)
		if err != nil {
			return err
		}
		stake, err := tx.GetUserStake(owner)
		if err != nil {
			return err
		}
		if stake == nil {
			return ErrStakeNotFound
		}
		owed, err := vault.Rewards.Owed(&stake.Rewards, stake.ActiveStakeAmount)
		if err != nil {
			return err
		}
		pending, err := addUint64(stake.Rewards.UnclaimedRewards, owed)
		if err != nil {
			return err
		}
		out = &StakeSummary{
			Stake:          stake,
			PendingRewards: pending,
			Claimable:      stake.Claimable(now),
			PendingUnlock:  stake.PendingUnlock(),
			Timestamp:      now,
		}
		return nil
	})
	return out, err
}

// TotalClaimable is the principal claim_vested would release for owner now.
func (e *Engine) TotalClaimable(owner crypto.Address) (uint64, error) {
	summary, err := e.Summary(owner)
	if err != nil {
		return 0, err
	}
	return summary.Claimable, nil
}

// TotalPendingUnlock is the principal still locked in owner's requests.
func (e *Engine) TotalPendingUnlock(owner crypto.Address) (uint64, error) {
	summary, err := e.Summary(owner)
	if err != nil {
		return 0, err
	}
	return summary.PendingUnlock, nil
}

// PendingRewards is the reward owner would receive from collect_rewards now.
func (e *Engine) PendingRewards(owner crypto.Address) (uint64, error) {
	summary, err := e.Summary(owner)
	if err != nil {
		return 0, err
	}
	return summary.PendingRewards, nil
}

// VaultBalance returns the custody account's asset balance.
func (e *Engine) VaultBalance() (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	var balance uint64
	err := e.state.View(func(tx StateTx) error {
		vault, err := loadVault(tx)
		if err != nil {
			return err
		}
		balance, err = tx.Balance(vault.AssetID, vault.Custody)
		return err
	})
	return balance, err
}

// Balance returns account's balance of the vault asset.
func (e *Engine) Balance(account crypto.Address) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	var balance uint64
	err := e.state.View(func(tx StateTx) error {
		vault, err := loadVault(tx)
		if err != nil {
			return err
		}
		balance, err = tx.Balance(vault.AssetID, account)
		return err
	})
	return balance, err
}
