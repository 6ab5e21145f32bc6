package vault

import (
	"github.com/holiman/uint256"

	"stakevault/crypto"
)

// DefaultVestingPeriod is the unstake vesting period applied when the caller
// does not choose one: 30 days.
const DefaultVestingPeriod uint64 = 30 * 24 * 60 * 60

// Permissions are the independently toggleable user gates.
type Permissions struct {
	AllowDeposits    bool `json:"allowDeposits"`
	AllowWithdrawals bool `json:"allowWithdrawals"`
}

// PermissionsUpdate carries a change-or-keep value per permission flag.
type PermissionsUpdate struct {
	AllowDeposits    FlagUpdate
	AllowWithdrawals FlagUpdate
}

// FlagUpdate is either "keep the current value" (the zero value) or "set to
// Value".
type FlagUpdate struct {
	set   bool
	value bool
}

// Keep leaves the flag unchanged.
func Keep() FlagUpdate { return FlagUpdate{} }

// Set replaces the flag with v.
func Set(v bool) FlagUpdate { return FlagUpdate{set: true, value: v} }

// SetFrom maps an optional pointer to a FlagUpdate; nil keeps the flag.
func SetFrom(v *bool) FlagUpdate {
	if v == nil {
		return Keep()
	}
	return Set(*v)
}

// IsSet reports whether the update changes the flag.
func (f FlagUpdate) IsSet() bool { return f.set }

// Apply returns the resulting flag value given the current one.
func (f FlagUpdate) Apply(current bool) bool {
	if !f.set {
		return current
	}
	return f.value
}

// Apply returns the permissions after the partial update.
func (u PermissionsUpdate) Apply(current Permissions) Permissions {
	return Permissions{
		AllowDeposits:    u.AllowDeposits.Apply(current.AllowDeposits),
		AllowWithdrawals: u.AllowWithdrawals.Apply(current.AllowWithdrawals),
	}
}

// StakeStats are the vault-wide principal counters.
type StakeStats struct {
	TotalStaked     uint64 `json:"totalStaked"`
	ActiveAmount    uint64 `json:"activeAmount"`
	UnstakingAmount uint64 `json:"unstakingAmount"`
	TotalVested     uint64 `json:"totalVested"`
	// UnstakeRequestCount is the number of outstanding requests across all
	// users.
	UnstakeRequestCount uint64 `json:"unstakeRequestCount"`
}

// StakeVault is the singleton custody record.
type StakeVault struct {
	Admin   crypto.Address `json:"admin"`
	AssetID string         `json:"assetId"`
	// Custody is the account holding the pooled asset balance.
	Custody       crypto.Address    `json:"custody"`
	Initialized   bool              `json:"initialized"`
	Paused        bool              `json:"paused"`
	Permissions   Permissions       `json:"permissions"`
	VestingPeriod uint64            `json:"vestingPeriod"`
	Stats         StakeStats        `json:"stats"`
	Rewards       RewardAccumulator `json:"rewards"`
	CreatedAt     uint64            `json:"createdAt"`
}

// Clone returns a deep copy of the vault.
func (v *StakeVault) Clone() *StakeVault {
	if v == nil {
		return nil
	}
	clone := *v
	clone.Rewards = v.Rewards.Clone()
	return &clone
}

// UserRewardState is the per-user reward checkpoint.
type UserRewardState struct {
	UnclaimedRewards   uint64       `json:"unclaimedRewards"`
	TotalClaimed       uint64       `json:"totalClaimed"`
	RewardPerTokenPaid *uint256.Int `json:"rewardPerTokenPaid"`
}

func (s UserRewardState) Clone() UserRewardState {
	clone := s
	clone.RewardPerTokenPaid = cloneInt(s.RewardPerTokenPaid)
	return clone
}

// UserStake is the per-depositor record, created lazily on first deposit.
type UserStake struct {
	Owner             crypto.Address `json:"owner"`
	Initialized       bool           `json:"initialized"`
	StakedAmount      uint64         `json:"stakedAmount"`
	ActiveStakeAmount uint64         `json:"activeStakeAmount"`
	// VestedAmount is the principal withdrawn through claim_vested.
	VestedAmount uint64          `json:"vestedAmount"`
	Requests     RequestSlots    `json:"requests"`
	Rewards      UserRewardState `json:"rewards"`
	LastUpdate   uint64          `json:"lastUpdate"`
}

func newUserStake(owner crypto.Address, now uint64) *UserStake {
	return &UserStake{
		Owner:       owner,
		Initialized: true,
		Rewards:     UserRewardState{RewardPerTokenPaid: new(uint256.Int)},
		LastUpdate:  now,
	}
}

// Clone returns a deep copy of the stake.
func (s *UserStake) Clone() *UserStake {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Rewards = s.Rewards.Clone()
	return &clone
}

// PendingUnlock is the principal still locked in requests.
func (s *UserStake) PendingUnlock() uint64 {
	if s == nil {
		return 0
	}
	return s.Requests.Outstanding()
}

// Claimable is the principal claim_vested would release at now across all
// requests.
func (s *UserStake) Claimable(now uint64) uint64 {
	if s == nil {
		return 0
	}
	var total uint64
	for _, req := range s.Requests.List() {
		total += req.Claimable(now)
	}
	return total
}

func cloneInt(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}
