package vault

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"stakevault/core/events"
	"stakevault/crypto"
	nativecommon "stakevault/native/common"
)

var (
	errNilState      = errors.New("vault engine: state not configured")
	errNilCustody    = errors.New("vault engine: custody address not configured")
	ErrStakeNotFound = errors.New("vault: user stake not found")
)

// ModuleName identifies the vault in host pause configuration.
const ModuleName = "vault"

// Store runs vault mutations atomically. Update commits every write made
// through the transaction, including transfers, only when fn returns nil.
type Store interface {
	Update(fn func(tx StateTx) error) error
	View(fn func(tx StateTx) error) error
}

// StateTx is the view of vault state and asset balances inside one atomic
// operation. Getters return nil without error when the record is absent.
type StateTx interface {
	GetVault() (*StakeVault, error)
	PutVault(vault *StakeVault) error
	GetUserStake(owner crypto.Address) (*UserStake, error)
	PutUserStake(stake *UserStake) error
	Transfer(asset string, from, to crypto.Address, amount uint64) error
	Balance(asset string, account crypto.Address) (uint64, error)
}

// Engine orchestrates the vault state transitions. Mutations hold writeMu
// from the start of the transaction until their event is emitted, so
// emitters observe events in commit order.
type Engine struct {
	writeMu sync.Mutex
	state   Store
	custody crypto.Address
	pauses  nativecommon.PauseView
	emitter events.Emitter
	nowFn   func() int64
	newID   func() string
}

// NewEngine constructs a vault engine holding pooled funds at custody.
func NewEngine(custody crypto.Address) *Engine {
	return &Engine{
		custody: custody,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		newID:   uuid.NewString,
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state Store) { e.state = state }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the wall clock. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Custody returns the account holding pooled funds.
func (e *Engine) Custody() crypto.Address {
	if e == nil {
		return crypto.Address{}
	}
	return e.custody
}

func (e *Engine) now() uint64 {
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.custody.IsZero() {
		return errNilCustody
	}
	return nil
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

// NormalizeAsset canonicalises an asset identifier.
func NormalizeAsset(asset string) string {
	return strings.ToUpper(norm.NFKC.String(strings.TrimSpace(asset)))
}

func loadVault(tx StateTx) (*StakeVault, error) {
	vault, err := tx.GetVault()
	if err != nil {
		return nil, err
	}
	if vault == nil || !vault.Initialized {
		return nil, ErrNotInitialized
	}
	if vault.Rewards.RewardPerTokenStaked == nil {
		vault.Rewards.RewardPerTokenStaked = cloneInt(nil)
	}
	return vault, nil
}

func loadAdminVault(tx StateTx, caller crypto.Address) (*StakeVault, error) {
	vault, err := loadVault(tx)
	if err != nil {
		return nil, err
	}
	if !vault.Admin.Equal(caller) {
		return nil, ErrUnauthorized
	}
	return vault, nil
}

// loadUserStake returns the caller's stake or nil when it was never created.
func loadUserStake(tx StateTx, caller crypto.Address) (*UserStake, error) {
	stake, err := tx.GetUserStake(caller)
	if err != nil || stake == nil {
		return nil, err
	}
	if !stake.Owner.Equal(caller) {
		return nil, ErrUnauthorized
	}
	if stake.Rewards.RewardPerTokenPaid == nil {
		stake.Rewards.RewardPerTokenPaid = cloneInt(nil)
	}
	return stake, nil
}

func persist(tx StateTx, vault *StakeVault, stake *UserStake) error {
	if err := tx.PutVault(vault); err != nil {
		return err
	}
	if stake == nil {
		return nil
	}
	return tx.PutUserStake(stake)
}

// InitParams configures a new vault.
type InitParams struct {
	AssetID       string
	VestingPeriod uint64
}

// Initialize creates the vault with caller as admin. It succeeds once.
func (e *Engine) Initialize(caller crypto.Address, params InitParams) (*StakeVault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if caller.IsZero() {
		return nil, ErrUnauthorized
	}
	if params.VestingPeriod == 0 {
		return nil, ErrInvalidVestingPeriod
	}
	asset := NormalizeAsset(params.AssetID)
	if asset == "" {
		return nil, ErrInvalidAsset
	}
	now := e.now()
	var created *StakeVault
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	err := e.state.Update(func(tx StateTx) error {
		existing, err := tx.GetVault()
		if err != nil {
			return err
		}
		if existing != nil && existing.Initialized {
			return ErrAlreadyInitialized
		}
		vault := &StakeVault{
			Admin:         caller,
			AssetID:       asset,
			Custody:       e.custody,
			Initialized:   true,
			Paused:        false,
			Permissions:   Permissions{AllowDeposits: true, AllowWithdrawals: true},
			VestingPeriod: params.VestingPeriod,
			Rewards:       RewardAccumulator{RewardPerTokenStaked: cloneInt(nil)},
			CreatedAt:     now,
		}
		if err := tx.PutVault(vault); err != nil {
			return err
		}
		created = vault.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(events.VaultInitialized{
		Admin:         created.Admin,
		Asset:         created.AssetID,
		Custody:       created.Custody,
		VestingPeriod: created.VestingPeriod,
		Timestamp:     now,
	})
	return created, nil
}

// DepositStake moves amount from caller into custody and credits it as active
// stake.
func (e *Engine) DepositStake(caller crypto.Address, amount uint64) (*UserStake, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	now := e.now()
	var (
		result *UserStake
		evt    events.StakeDeposited
	)
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	err := e.state.Update(func(tx StateTx) error {
		vault, err := loadVault(tx)
		if err != nil {
			return err
		}
		if !vault.Permissions.AllowDeposits {
			return ErrDepositsNotAllowed
		}
		if vault.Paused {
			return ErrVaultPaused
		}
		stake, err := loadUserStake(tx, caller)
		if err != nil {
			return err
		}
		if stake == nil {
			stake = newUserStake(caller, now)
			stake.Rewards.RewardPerTokenPaid = cloneInt(vault.Rewards.RewardPerTokenStaked)
		}
		if err := vault.Rewards.Settle(&stake.Rewards, stake.ActiveStakeAmount); err != nil {
			return err
		}

		staked, err := addUint64(stake.StakedAmount, amount)
		if err != nil {
			return err
		}
		active, err := addUint64(stake.ActiveStakeAmount, amount)
		if err != nil {
			return err
		}
		total, err := addUint64(vault.Stats.TotalStaked, amount)
		if err != nil {
			return err
		}
		vaultActive, err := addUint64(vault.Stats.ActiveAmount, amount)
		if err != nil {
			return err
		}
		if err := tx.Transfer(vault.AssetID, caller, vault.Custody, amount); err != nil {
			return err
		}

		stake.StakedAmount = staked
		stake.ActiveStakeAmount = active
		stake.LastUpdate = now
		vault.Stats.TotalStaked = total
		vault.Stats.ActiveAmount = vaultActive
		if err := persist(tx, vault, stake); err != nil {
			return err
		}
		result = stake.Clone()
		evt = events.StakeDeposited{Owner: caller, Amount: amount, TotalStaked: staked, Active: active, Timestamp: now}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(evt)
	return result, nil
}

// UnstakeReceipt describes a newly created unstake request.
type UnstakeReceipt struct {
	Index   int            `json:"index"`
	Request UnstakeRequest `json:"request"`
}

// RequestUnstake moves amount of active stake into a new vesting request.
func (e *Engine) RequestUnstake(caller crypto.Address, amount uint64) (*UnstakeReceipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	now := e.now()
	var receipt *UnstakeReceipt
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	err := e.state.Update(func(tx StateTx) error {
		vault, err := loadVault(tx)
		if err != nil {
			return err
		}
		stake, err := loadUserStake(tx, caller)
		if err != nil {
			return err
		}
		if stake == nil || amount > stake.ActiveStakeAmount {
			return ErrInvalidAmount
		}
		if !vault.Permissions.AllowWithdrawals {
			return ErrWithdrawalsNotAllowed
		}
		if stake.Requests.Full() {
			return ErrRequestCapacityExceeded
		}
		if err := vault.Rewards.Settle(&stake.Rewards, stake.ActiveStakeAmount); err != nil {
			return err
		}
		vaultActive, err := subUint64(vault.Stats.ActiveAmount, amount)
		if err != nil {
			return err
		}
		unstaking, err := addUint64(vault.Stats.UnstakingAmount, amount)
		if err != nil {
			return err
		}

		req := UnstakeRequest{
			ID:            e.newID(),
			TotalAmount:   amount,
			CreatedAt:     now,
			VestingPeriod: vault.VestingPeriod,
		}
		idx, err := stake.Requests.Append(req)
		if err != nil {
			return err
		}
		stake.ActiveStakeAmount -= amount
		stake.LastUpdate = now
		vault.Stats.ActiveAmount = vaultActive
		vault.Stats.UnstakingAmount = unstaking
		vault.Stats.UnstakeRequestCount++
		if err := persist(tx, vault, stake); err != nil {
			return err
		}
		receipt = &UnstakeReceipt{Index: idx, Request: req}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(events.UnstakeRequested{
		Owner:         caller,
		RequestID:     receipt.Request.ID,
		Index:         uint64(receipt.Index),
		Amount:        amount,
		VestingPeriod: receipt.Request.VestingPeriod,
		EndsAt:        receipt.Request.EndsAt(),
		Timestamp:     now,
	})
	return receipt, nil
}

// ClaimVested withdraws the vested, unclaimed principal of the selected
// requests in a single transfer. Fully claimed requests are removed.
func (e *Engine) ClaimVested(caller crypto.Address, selector RequestSelector) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return 0, err
	}
	now := e.now()
	var evt events.VestedClaimed
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	err := e.state.Update(func(tx StateTx) error {
		vault, err := loadVault(tx)
		if err != nil {
			return err
		}
		stake, err := loadUserStake(tx, caller)
		if err != nil {
			return err
		}
		if stake == nil {
			if selector.IsAll() {
				return ErrNothingToClaim
			}
			return ErrInvalidRequestIndex
		}

		var claimed, touched, removed uint64
		claimAt := func(idx int) {
			req := &stake.Requests.Slots[idx]
			amount := req.Claimable(now)
			if amount > 0 {
				req.ClaimedAmount += amount
				claimed += amount
				touched++
			}
		}
		if selector.IsAll() {
			for i := 0; i < stake.Requests.Len(); {
				claimAt(i)
				if stake.Requests.Slots[i].Outstanding() == 0 {
					// The last slot moves into i; visit it before advancing.
					stake.Requests.Remove(i)
					removed++
					continue
				}
				i++
			}
		} else {
			idx, err := selector.resolve(&stake.Requests)
			if err != nil {
				return err
			}
			claimAt(idx)
			if claimed > 0 && stake.Requests.Slots[idx].Outstanding() == 0 {
				stake.Requests.Remove(idx)
				removed++
			}
		}
		if claimed == 0 {
			return ErrNothingToClaim
		}

		unstaking, err := subUint64(vault.Stats.UnstakingAmount, claimed)
		if err != nil {
			return err
		}
		total, err := subUint64(vault.Stats.TotalStaked, claimed)
		if err != nil {
			return err
		}
		vested, err := addUint64(vault.Stats.TotalVested, claimed)
		if err != nil {
			return err
		}
		userVested, err := addUint64(stake.VestedAmount, claimed)
		if err != nil {
			return err
		}
		if err := tx.Transfer(vault.AssetID, vault.Custody, caller, claimed); err != nil {
			return err
		}

		vault.Stats.UnstakingAmount = unstaking
		vault.Stats.TotalStaked = total
		vault.Stats.TotalVested = vested
		vault.Stats.UnstakeRequestCount -= removed
		stake.VestedAmount = userVested
		stake.LastUpdate = now
		if err := persist(tx, vault, stake); err != nil {
			return err
		}
		evt = events.VestedClaimed{Owner: caller, Amount: claimed, Requests: touched, Removed: removed, Timestamp: now}
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.emit(evt)
	return evt.Amount, nil
}

// CancelUnstake returns the unclaimed remainder of the selected requests to
// active stake. Already claimed principal has left the vault and stays out.
func (e *Engine) CancelUnstake(caller crypto.Address, selector RequestSelector) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return 0, err
	}
	now := e.now()
	var evt events.UnstakeCancelled
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	err := e.state.Update(func(tx StateTx) error {
		vault, err := loadVault(tx)
		if err != nil {
			return err
		}
		if vault.Paused {
			return ErrVaultPaused
		}
		stake, err := loadUserStake(tx, caller)
		if err != nil {
			return err
		}
		if stake == nil || stake.Requests.Len() == 0 {
			return ErrInvalidRequestIndex
		}

		var indices []int
		if selector.IsAll() {
			for i := stake.Requests.Len() - 1; i >= 0; i-- {
				indices = append(indices, i)
			}
		} else {
			idx, err := selector.resolve(&stake.Requests)
			if err != nil {
				return err
			}
			indices = []int{idx}
		}
		var remainder uint64
		for _, idx := range indices {
			remainder += stake.Requests.Slots[idx].Outstanding()
		}

		if err := vault.Rewards.Settle(&stake.Rewards, stake.ActiveStakeAmount); err != nil {
			return err
		}
		active, err := addUint64(stake.ActiveStakeAmount, remainder)
		if err != nil {
			return err
		}
		vaultActive, err := addUint64(vault.Stats.ActiveAmount, remainder)
		if err != nil {
			return err
		}
		unstaking, err := subUint64(vault.Stats.UnstakingAmount, remainder)
		if err != nil {
			return err
		}
		// Indices are descending so swap-removal never moves a slot that is
		// still to be removed.
		for _, idx := range indices {
			stake.Requests.Remove(idx)
		}
		stake.ActiveStakeAmount = active
		stake.LastUpdate = now
		vault.Stats.ActiveAmount = vaultActive
		vault.Stats.UnstakingAmount = unstaking
		vault.Stats.UnstakeRequestCount -= uint64(len(indices))
		if err := persist(tx, vault, stake); err != nil {
			return err
		}
		evt = events.UnstakeCancelled{Owner: caller, Amount: remainder, Requests: uint64(len(indices)), Timestamp: now}
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.emit(evt)
	return evt.Amount, nil
}

// DepositRewards moves amount from the admin into custody and adds it to the
// pending pool. Distribution happens separately.
func (e *Engine) DepositRewards(caller crypto.Address, amount uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	now := e.now()
	var evt events.RewardsDeposited
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	err := e.state.Update(func(tx StateTx) error {
		vault, err := loadAdminVault(tx, caller)
		if err != nil {
			return err
		}
		if err := vault.Rewards.Deposit(amount); err != nil {
			return err
		}
		if err := tx.Transfer(vault.AssetID, caller, vault.Custody, amount); err != nil {
			return err
		}
		if err := tx.PutVault(vault); err != nil {
			return err
		}
		evt = events.RewardsDeposited{From: caller, Amount: amount, Pending: vault.Rewards.PendingRewards, Timestamp: now}
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(evt)
	return nil
}

// DistributeRewards folds the pending pool into the reward-per-token index.
// Anyone may call it. With no active stake the rewards stay pending and the
// call succeeds without changes.
func (e *Engine) DistributeRewards() (Distribution, error) {
	if err := e.ready(); err != nil {
		return Distribution{}, err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return Distribution{}, err
	}
	now := e.now()
	var (
		result Distribution
		active uint64
	)
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	err := e.state.Update(func(tx StateTx) error {
		vault, err := loadVault(tx)
		if err != nil {
			return err
		}
		if vault.Paused {
			return ErrVaultPaused
		}
		active = vault.Stats.ActiveAmount
		result, err = vault.Rewards.Distribute(active)
		if err != nil {
			return err
		}
		if result.Distributed == 0 {
			return nil
		}
		return tx.PutVault(vault)
	})
	if err != nil {
		return Distribution{}, err
	}
	if result.Distributed > 0 {
		e.emit(events.RewardsDistributed{
			Amount:    result.Distributed,
			Remaining: result.Remaining,
			Active:    active,
			Index:     result.Index.Dec(),
			Timestamp: now,
		})
	}
	return result, nil
}

// CollectRewards settles and pays out the caller's unclaimed rewards.
func (e *Engine) CollectRewards(caller crypto.Address) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return 0, err
	}
	now := e.now()
	var paid uint64
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	err := e.state.Update(func(tx StateTx) error {
		vault, err := loadVault(tx)
		if err != nil {
			return err
		}
		stake, err := loadUserStake(tx, caller)
		if err != nil {
			return err
		}
		if stake == nil {
			return ErrNoRewardsToClaim
		}
		if err := vault.Rewards.Settle(&stake.Rewards, stake.ActiveStakeAmount); err != nil {
			return err
		}
		paid, err = vault.Rewards.Collect(&stake.Rewards)
		if err != nil {
			return err
		}
		if err := tx.Transfer(vault.AssetID, vault.Custody, caller, paid); err != nil {
			return err
		}
		stake.LastUpdate = now
		return persist(tx, vault, stake)
	})
	if err != nil {
		return 0, err
	}
	e.emit(events.RewardsCollected{Owner: caller, Amount: paid, Timestamp: now})
	return paid, nil
}
