package vault

import "github.com/holiman/uint256"

// RewardAccumulator is the vault-wide reward-per-share ledger. Deposited
// rewards wait in PendingRewards until Distribute folds them into
// RewardPerTokenStaked, which is scaled by RewardPrecision and only grows.
type RewardAccumulator struct {
	PendingRewards       uint64       `json:"pendingRewards"`
	RewardPerTokenStaked *uint256.Int `json:"rewardPerTokenStaked"`
	TotalDistributed     uint64       `json:"totalDistributed"`
	TotalClaimed         uint64       `json:"totalClaimed"`
}

// Distribution reports the outcome of a Distribute call.
type Distribution struct {
	// Distributed is the amount that reached the accumulator.
	Distributed uint64 `json:"distributed"`
	// Remaining stays pending: all of it when nothing is staked, otherwise
	// the floor-division dust.
	Remaining uint64       `json:"remaining"`
	Increment *uint256.Int `json:"increment"`
	Index     *uint256.Int `json:"index"`
}

func (a RewardAccumulator) Clone() RewardAccumulator {
	clone := a
	clone.RewardPerTokenStaked = cloneInt(a.RewardPerTokenStaked)
	return clone
}

func (a *RewardAccumulator) index() *uint256.Int {
	if a.RewardPerTokenStaked == nil {
		a.RewardPerTokenStaked = new(uint256.Int)
	}
	return a.RewardPerTokenStaked
}

// Deposit adds amount to the pending pool.
func (a *RewardAccumulator) Deposit(amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	pending, err := addUint64(a.PendingRewards, amount)
	if err != nil {
		return err
	}
	a.PendingRewards = pending
	return nil
}

// Distribute spreads the pending pool over active stake:
//
//	increment   = floor(pending * P / active)
//	distributed = ceil(increment * active / P)  (<= pending)
//
// Rounding distributed up keeps the sum of every user's floored settlement
// at or below TotalDistributed. The rest of the pool stays pending. With no
// active stake, or when the pool is too small to move the index, the call
// changes nothing.
func (a *RewardAccumulator) Distribute(active uint64) (Distribution, error) {
	index := a.index()
	out := Distribution{
		Remaining: a.PendingRewards,
		Increment: new(uint256.Int),
		Index:     new(uint256.Int).Set(index),
	}
	if a.PendingRewards == 0 || active == 0 {
		return out, nil
	}
	activeInt := uint256.NewInt(active)
	increment, err := mulDiv(uint256.NewInt(a.PendingRewards), precision, activeInt)
	if err != nil {
		return Distribution{}, err
	}
	if increment.IsZero() {
		return out, nil
	}
	credited, err := mulDivUp(increment, activeInt, precision)
	if err != nil {
		return Distribution{}, err
	}
	distributed, err := toUint64(credited)
	if err != nil {
		return Distribution{}, err
	}
	next, err := checkedAdd(index, increment)
	if err != nil {
		return Distribution{}, err
	}
	total, err := addUint64(a.TotalDistributed, distributed)
	if err != nil {
		return Distribution{}, err
	}
	remaining, err := subUint64(a.PendingRewards, distributed)
	if err != nil {
		return Distribution{}, err
	}

	a.RewardPerTokenStaked = next
	a.TotalDistributed = total
	a.PendingRewards = remaining
	return Distribution{
		Distributed: distributed,
		Remaining:   remaining,
		Increment:   increment,
		Index:       new(uint256.Int).Set(next),
	}, nil
}

// Owed returns the rewards earned by active stake since the user's
// checkpoint: floor(active * (index - paid) / P).
func (a *RewardAccumulator) Owed(user *UserRewardState, active uint64) (uint64, error) {
	index := a.index()
	paid := user.RewardPerTokenPaid
	if paid == nil {
		paid = new(uint256.Int)
	}
	if active == 0 || index.Cmp(paid) <= 0 {
		return 0, nil
	}
	delta := new(uint256.Int).Sub(index, paid)
	owed, err := mulDiv(uint256.NewInt(active), delta, precision)
	if err != nil {
		return 0, err
	}
	return toUint64(owed)
}

// Settle credits the owed rewards at the current active stake and moves the
// checkpoint to the current index. It must run before active stake changes.
func (a *RewardAccumulator) Settle(user *UserRewardState, active uint64) error {
	owed, err := a.Owed(user, active)
	if err != nil {
		return err
	}
	unclaimed, err := addUint64(user.UnclaimedRewards, owed)
	if err != nil {
		return err
	}
	user.UnclaimedRewards = unclaimed
	user.RewardPerTokenPaid = new(uint256.Int).Set(a.index())
	return nil
}

// Collect zeroes the user's settled rewards and returns the amount paid out.
func (a *RewardAccumulator) Collect(user *UserRewardState) (uint64, error) {
	amount := user.UnclaimedRewards
	if amount == 0 {
		return 0, ErrNoRewardsToClaim
	}
	userTotal, err := addUint64(user.TotalClaimed, amount)
	if err != nil {
		return 0, err
	}
	vaultTotal, err := addUint64(a.TotalClaimed, amount)
	if err != nil {
		return 0, err
	}
	user.UnclaimedRewards = 0
	user.TotalClaimed = userTotal
	a.TotalClaimed = vaultTotal
	return amount, nil
}
