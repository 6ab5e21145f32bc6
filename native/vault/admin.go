package vault

import (
	"stakevault/core/events"
	"stakevault/crypto"
)

// PauseVault sets the pause flag. Pausing an already paused vault fails.
func (e *Engine) PauseVault(caller crypto.Address) error {
	return e.setPaused(caller, true)
}

// UnpauseVault clears the pause flag. Unpausing an active vault fails.
func (e *Engine) UnpauseVault(caller crypto.Address) error {
	return e.setPaused(caller, false)
}

func (e *Engine) setPaused(caller crypto.Address, paused bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	now := e.now()
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	err := e.state.Update(func(tx StateTx) error {
		vault, err := loadAdminVault(tx, caller)
		if err != nil {
			return err
		}
		switch {
		case paused && vault.Paused:
			return ErrVaultAlreadyPaused
		case !paused && !vault.Paused:
			return ErrNotPaused
		}
		vault.Paused = paused
		return tx.PutVault(vault)
	})
	if err != nil {
		return err
	}
	e.emit(events.VaultPauseToggled{Admin: caller, Paused: paused, Timestamp: now})
	return nil
}

// UpdateVestingPeriod changes the period applied to requests created from now
// on. In-flight requests keep the period they were created with.
func (e *Engine) UpdateVestingPeriod(caller crypto.Address, period uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if period == 0 {
		return ErrInvalidVestingPeriod
	}
	now := e.now()
	var previous uint64
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	err := e.state.Update(func(tx StateTx) error {
		vault, err := loadAdminVault(tx, caller)
		if err != nil {
			return err
		}
		previous = vault.VestingPeriod
		vault.VestingPeriod = period
		return tx.PutVault(vault)
	})
	if err != nil {
		return err
	}
	e.emit(events.VestingPeriodUpdated{Admin: caller, Previous: previous, Current: period, Timestamp: now})
	return nil
}

// UpdatePermissions applies a partial update; unset fields keep their value.
func (e *Engine) UpdatePermissions(caller crypto.Address, update PermissionsUpdate) (Permissions, error) {
	if err := e.ready(); err != nil {
		return Permissions{}, err
	}
	now := e.now()
	var result Permissions
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	err := e.state.Update(func(tx StateTx) error {
		vault, err := loadAdminVault(tx, caller)
		if err != nil {
			return err
		}
		result = update.Apply(vault.Permissions)
		vault.Permissions = result
		return tx.PutVault(vault)
	})
	if err != nil {
		return Permissions{}, err
	}
	e.emit(events.PermissionsUpdated{
		Admin:            caller,
		AllowDeposits:    result.AllowDeposits,
		AllowWithdrawals: result.AllowWithdrawals,
		Timestamp:        now,
	})
	return result, nil
}

// EmergencyWithdraw moves custody funds to the admin while the vault is
// paused. An amount of zero withdraws the whole custody balance. Stake and
// reward counters are left untouched.
func (e *Engine) EmergencyWithdraw(caller crypto.Address, amount uint64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	now := e.now()
	var (
		withdrawn uint64
		remaining uint64
	)
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	err := e.state.Update(func(tx StateTx) error {
		vault, err := loadAdminVault(tx, caller)
		if err != nil {
			return err
		}
		if !vault.Paused {
			return ErrVaultNotPaused
		}
		balance, err := tx.Balance(vault.AssetID, vault.Custody)
		if err != nil {
			return err
		}
		withdrawn = amount
		if withdrawn == 0 {
			withdrawn = balance
		}
		if withdrawn == 0 {
			return ErrInvalidAmount
		}
		if withdrawn > balance {
			return ErrInsufficientVaultBalance
		}
		remaining = balance - withdrawn
		return tx.Transfer(vault.AssetID, vault.Custody, vault.Admin, withdrawn)
	})
	if err != nil {
		return 0, err
	}
	e.emit(events.EmergencyWithdrawal{Admin: caller, Amount: withdrawn, Remaining: remaining, Timestamp: now})
	return withdrawn, nil
}
