package events

import (
	"stakevault/core/types"
	"stakevault/crypto"
)

const (
	// TypeVaultInitialized is emitted once when the vault is created.
	TypeVaultInitialized = "vault.initialized"
	// TypeStakeDeposited is emitted when a user moves principal into the vault.
	TypeStakeDeposited = "vault.stake_deposited"
	// TypeUnstakeRequested is emitted when active stake starts vesting out.
	TypeUnstakeRequested = "vault.unstake_requested"
	// TypeVestedClaimed is emitted when vested principal leaves the vault.
	TypeVestedClaimed = "vault.vested_claimed"
	// TypeUnstakeCancelled is emitted when unvested principal returns to active stake.
	TypeUnstakeCancelled = "vault.unstake_cancelled"
	// TypeRewardsDeposited is emitted when the admin funds the pending pool.
	TypeRewardsDeposited = "vault.rewards_deposited"
	// TypeRewardsDistributed records an accumulator advance.
	TypeRewardsDistributed = "vault.rewards_distributed"
	// TypeRewardsCollected is emitted when a user withdraws settled rewards.
	TypeRewardsCollected = "vault.rewards_collected"
	TypeVaultPaused      = "vault.paused"
	TypeVaultUnpaused    = "vault.unpaused"
	// TypeVestingPeriodUpdated applies to requests created afterwards only.
	TypeVestingPeriodUpdated = "vault.vesting_period_updated"
	TypePermissionsUpdated   = "vault.permissions_updated"
	// TypeEmergencyWithdrawal marks a break-glass drain of custody funds.
	TypeEmergencyWithdrawal = "vault.emergency_withdrawal"
)

// VaultInitialized captures the initial vault configuration.
type VaultInitialized struct {
	Admin         crypto.Address
	Asset         string
	Custody       crypto.Address
	VestingPeriod uint64
	Timestamp     uint64
}

// EventType satisfies the Event interface.
func (VaultInitialized) EventType() string { return TypeVaultInitialized }

// Event converts the structured payload into a broadcastable event.
func (e VaultInitialized) Event() *types.Event {
	return &types.Event{Type: TypeVaultInitialized, Attributes: map[string]string{
		"admin":         e.Admin.String(),
		"asset":         normalizeAsset(e.Asset),
		"custody":       e.Custody.String(),
		"vestingPeriod": formatUint(e.VestingPeriod),
		"timestamp":     formatUint(e.Timestamp),
	}}
}

// StakeDeposited captures a principal deposit.
type StakeDeposited struct {
	Owner       crypto.Address
	Amount      uint64
	TotalStaked uint64
	Active      uint64
	Timestamp   uint64
}

func (StakeDeposited) EventType() string { return TypeStakeDeposited }

func (e StakeDeposited) Event() *types.Event {
	return &types.Event{Type: TypeStakeDeposited, Attributes: map[string]string{
		"owner":       e.Owner.String(),
		"amount":      formatUint(e.Amount),
		"totalStaked": formatUint(e.TotalStaked),
		"active":      formatUint(e.Active),
		"timestamp":   formatUint(e.Timestamp),
	}}
}

// UnstakeRequested captures a new vesting request.
type UnstakeRequested struct {
	Owner         crypto.Address
	RequestID     string
	Index         uint64
	Amount        uint64
	VestingPeriod uint64
	EndsAt        uint64
	Timestamp     uint64
}

func (UnstakeRequested) EventType() string { return TypeUnstakeRequested }

func (e UnstakeRequested) Event() *types.Event {
	return &types.Event{Type: TypeUnstakeRequested, Attributes: map[string]string{
		"owner":         e.Owner.String(),
		"requestId":     e.RequestID,
		"index":         formatUint(e.Index),
		"amount":        formatUint(e.Amount),
		"vestingPeriod": formatUint(e.VestingPeriod),
		"endsAt":        formatUint(e.EndsAt),
		"timestamp":     formatUint(e.Timestamp),
	}}
}

// VestedClaimed captures principal released by claim_vested.
type VestedClaimed struct {
	Owner     crypto.Address
	Amount    uint64
	Requests  uint64
	Removed   uint64
	Timestamp uint64
}

func (VestedClaimed) EventType() string { return TypeVestedClaimed }

func (e VestedClaimed) Event() *types.Event {
	return &types.Event{Type: TypeVestedClaimed, Attributes: map[string]string{
		"owner":     e.Owner.String(),
		"amount":    formatUint(e.Amount),
		"requests":  formatUint(e.Requests),
		"removed":   formatUint(e.Removed),
		"timestamp": formatUint(e.Timestamp),
	}}
}

// UnstakeCancelled captures principal returned to active stake.
type UnstakeCancelled struct {
	Owner     crypto.Address
	Amount    uint64
	Requests  uint64
	Timestamp uint64
}

func (UnstakeCancelled) EventType() string { return TypeUnstakeCancelled }

func (e UnstakeCancelled) Event() *types.Event {
	return &types.Event{Type: TypeUnstakeCancelled, Attributes: map[string]string{
		"owner":     e.Owner.String(),
		"amount":    formatUint(e.Amount),
		"requests":  formatUint(e.Requests),
		"timestamp": formatUint(e.Timestamp),
	}}
}

type RewardsDeposited struct {
	From      crypto.Address
	Amount    uint64
	Pending   uint64
	Timestamp uint64
}

func (RewardsDeposited) EventType() string { return TypeRewardsDeposited }

func (e RewardsDeposited) Event() *types.Event {
	return &types.Event{Type: TypeRewardsDeposited, Attributes: map[string]string{
		"from":      e.From.String(),
		"amount":    formatUint(e.Amount),
		"pending":   formatUint(e.Pending),
		"timestamp": formatUint(e.Timestamp),
	}}
}

// RewardsDistributed reports how much of the pending pool reached the
// accumulator. Index is the decimal accumulator value after the update.
type RewardsDistributed struct {
	Amount    uint64
	Remaining uint64
	Active    uint64
	Index     string
	Timestamp uint64
}

func (RewardsDistributed) EventType() string { return TypeRewardsDistributed }

func (e RewardsDistributed) Event() *types.Event {
	return &types.Event{Type: TypeRewardsDistributed, Attributes: map[string]string{
		"amount":    formatUint(e.Amount),
		"remaining": formatUint(e.Remaining),
		"active":    formatUint(e.Active),
		"index":     e.Index,
		"timestamp": formatUint(e.Timestamp),
	}}
}

type RewardsCollected struct {
	Owner     crypto.Address
	Amount    uint64
	Timestamp uint64
}

func (RewardsCollected) EventType() string { return TypeRewardsCollected }

func (e RewardsCollected) Event() *types.Event {
	return &types.Event{Type: TypeRewardsCollected, Attributes: map[string]string{
		"owner":     e.Owner.String(),
		"amount":    formatUint(e.Amount),
		"timestamp": formatUint(e.Timestamp),
	}}
}

// VaultPauseToggled is emitted for both pause and unpause.
type VaultPauseToggled struct {
	Admin     crypto.Address
	Paused    bool
	Timestamp uint64
}

func (e VaultPauseToggled) EventType() string {
	if e.Paused {
		return TypeVaultPaused
	}
	return TypeVaultUnpaused
}

func (e VaultPauseToggled) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{
		"admin":     e.Admin.String(),
		"paused":    formatBool(e.Paused),
		"timestamp": formatUint(e.Timestamp),
	}}
}

type VestingPeriodUpdated struct {
	Admin     crypto.Address
	Previous  uint64
	Current   uint64
	Timestamp uint64
}

func (VestingPeriodUpdated) EventType() string { return TypeVestingPeriodUpdated }

func (e VestingPeriodUpdated) Event() *types.Event {
	return &types.Event{Type: TypeVestingPeriodUpdated, Attributes: map[string]string{
		"admin":     e.Admin.String(),
		"previous":  formatUint(e.Previous),
		"current":   formatUint(e.Current),
		"timestamp": formatUint(e.Timestamp),
	}}
}

type PermissionsUpdated struct {
	Admin            crypto.Address
	AllowDeposits    bool
	AllowWithdrawals bool
	Timestamp        uint64
}

func (PermissionsUpdated) EventType() string { return TypePermissionsUpdated }

func (e PermissionsUpdated) Event() *types.Event {
	return &types.Event{Type: TypePermissionsUpdated, Attributes: map[string]string{
		"admin":            e.Admin.String(),
		"allowDeposits":    formatBool(e.AllowDeposits),
		"allowWithdrawals": formatBool(e.AllowWithdrawals),
		"timestamp":        formatUint(e.Timestamp),
	}}
}

// EmergencyWithdrawal records a break-glass drain of custody funds.
type EmergencyWithdrawal struct {
	Admin     crypto.Address
	Amount    uint64
	Remaining uint64
	Timestamp uint64
}

func (EmergencyWithdrawal) EventType() string { return TypeEmergencyWithdrawal }

func (e EmergencyWithdrawal) Event() *types.Event {
	return &types.Event{Type: TypeEmergencyWithdrawal, Attributes: map[string]string{
		"admin":     e.Admin.String(),
		"amount":    formatUint(e.Amount),
		"remaining": formatUint(e.Remaining),
		"timestamp": formatUint(e.Timestamp),
	}}
}
