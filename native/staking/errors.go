package staking

import "errors"

var (
	errNilState  = errors.New("staking engine: state not configured")
	errNilLedger = errors.New("staking engine: token ledger not configured")
)

var (
	// ErrInvalidAmount rejects nil, zero or negative amounts.
	ErrInvalidAmount = errors.New("staking engine: amount must be positive")
	// ErrBelowMinimumDeposit rejects deposits under the configured minimum.
	ErrBelowMinimumDeposit = errors.New("staking engine: deposit below configured minimum")
	// ErrLockTooShort rejects lock durations under the configured minimum.
	ErrLockTooShort = errors.New("staking engine: lock duration below minimum")
	// ErrLockTooLong rejects lock durations over the configured maximum.
	ErrLockTooLong = errors.New("staking engine: lock duration above maximum")
	// ErrInvalidExtension rejects extensions that do not move the unlock time forward.
	ErrInvalidExtension = errors.New("staking engine: new unlock time must extend the lock")
	// ErrInvalidPositionID rejects position indexes outside the owner's list.
	ErrInvalidPositionID = errors.New("staking engine: unknown position id")
	// ErrTokensStillLocked rejects withdrawals before the unlock time.
	ErrTokensStillLocked = errors.New("staking engine: tokens still locked")
	// ErrInsufficientStakedAmount rejects withdrawals exceeding the staked amount.
	ErrInsufficientStakedAmount = errors.New("staking engine: withdrawal exceeds staked amount")
	// ErrNoRewardsToClaim rejects claims when nothing has accrued.
	ErrNoRewardsToClaim = errors.New("staking engine: no rewards to claim")
	// ErrInsufficientRewardBalance rejects payouts the reward reserve cannot cover.
	ErrInsufficientRewardBalance = errors.New("staking engine: reward reserve below requested payout")
	// ErrInvalidLockParameters rejects inverted lock duration bounds.
	ErrInvalidLockParameters = errors.New("staking engine: min lock days must be below max lock days")
	// ErrInvalidMultiplier rejects multiplier bounds below 1.0 or inverted.
	ErrInvalidMultiplier = errors.New("staking engine: invalid multiplier bounds")
	// ErrUnauthorized rejects admin calls from anyone but the registered owner.
	ErrUnauthorized = errors.New("staking engine: caller is not the owner")
)
