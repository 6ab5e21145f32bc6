package vault

import "errors"

// Kind groups vault errors by the class of precondition they violate.
type Kind int

const (
	// KindValidation covers malformed or out-of-range arguments.
	KindValidation Kind = iota + 1
	// KindPermission covers callers or gates that forbid the operation.
	KindPermission
	// KindState covers operations that conflict with the current vault state.
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	case KindState:
		return "state"
	default:
		return "unknown"
	}
}

// Error is a rejected vault operation. Every Error is raised before any
// mutation so the vault stays in its prior state.
type Error struct {
	Kind Kind
	Code string
	msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.msg
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, msg: "vault: " + msg}
}

var (
	ErrInvalidAmount           = newError(KindValidation, "InvalidAmount", "invalid amount")
	ErrInvalidVestingPeriod    = newError(KindValidation, "InvalidVestingPeriod", "vesting period must be positive")
	ErrInvalidRequestIndex     = newError(KindValidation, "InvalidRequestIndex", "unstake request not found")
	ErrRequestCapacityExceeded = newError(KindValidation, "RequestCapacityExceeded", "unstake request capacity exceeded")
	ErrInvalidAsset            = newError(KindValidation, "InvalidAsset", "asset id required")

	ErrDepositsNotAllowed    = newError(KindPermission, "DepositsNotAllowed", "deposits are disabled")
	ErrWithdrawalsNotAllowed = newError(KindPermission, "WithdrawalsNotAllowed", "withdrawals are disabled")
	ErrUnauthorized          = newError(KindPermission, "Unauthorized", "unauthorized caller")

	ErrAlreadyInitialized       = newError(KindState, "AlreadyInitialized", "vault already initialized")
	ErrNotInitialized           = newError(KindState, "NotInitialized", "vault not initialized")
	ErrVaultPaused              = newError(KindState, "VaultPaused", "vault is paused")
	ErrVaultAlreadyPaused       = newError(KindState, "VaultAlreadyPaused", "vault already paused")
	ErrNotPaused                = newError(KindState, "NotPaused", "vault is not paused")
	ErrVaultNotPaused           = newError(KindState, "VaultNotPaused", "emergency withdraw requires a paused vault")
	ErrInsufficientVaultBalance = newError(KindState, "InsufficientVaultBalance", "insufficient vault balance")
	ErrNoRewardsToClaim         = newError(KindState, "NoRewardsToClaim", "no rewards to claim")
	ErrNothingToClaim           = newError(KindState, "NothingToClaim", "nothing vested to claim")
	ErrArithmeticOverflow       = newError(KindState, "ArithmeticOverflow", "arithmetic overflow")
)

// KindOf returns the kind of the first *Error in err's chain, or 0 when err
// does not originate from the vault.
func KindOf(err error) Kind {
	var vErr *Error
	if errors.As(err, &vErr) && vErr != nil {
		return vErr.Kind
	}
	return 0
}

// CodeOf returns the stable error code for API responses.
func CodeOf(err error) string {
	var vErr *Error
	if errors.As(err, &vErr) && vErr != nil {
		return vErr.Code
	}
	return ""
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsPermission(err error) bool { return KindOf(err) == KindPermission }
func IsState(err error) bool      { return KindOf(err) == KindState }
