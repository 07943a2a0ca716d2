package staking

import (
	"math/big"

	"stakevault/crypto"
)

// Position is one stake record for one owner, identified by (owner, index in
// the owner's position list). Amount values are denominated in base token
// units and expressed as big integers to match on-chain precision.
type Position struct {
	// Amount is the quantity of the underlying token currently staked. It
	// never increases after creation; withdrawals reduce it, possibly to
	// zero, but the record itself is never deleted.
	Amount *big.Int `json:"amount"`
	// UnlockTime is the unix timestamp before which Amount cannot be reduced.
	UnlockTime uint64 `json:"unlockTime"`
	// LockMultiplier is the fixed-point (1e18) multiplier derived from the
	// lock duration at creation or extension time.
	LockMultiplier *big.Int `json:"lockMultiplier"`
	// LastRewardTime records when the position was last reconciled.
	LastRewardTime uint64 `json:"lastRewardTime"`
	// RewardDebt is the reward amount owed but not yet paid out. It reflects
	// accrual through AccRewardPerWeightPaid and nothing beyond it; the two
	// fields are always updated together.
	RewardDebt *big.Int `json:"rewardDebt"`
	// AccRewardPerWeightPaid is the pool accumulator value at the position's
	// last reconciliation.
	AccRewardPerWeightPaid *big.Int `json:"accRewardPerWeightPaid"`
}

// Clone returns a deep copy so callers cannot alias stored big integers.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	return &Position{
		Amount:                 copyBigInt(p.Amount),
		UnlockTime:             p.UnlockTime,
		LockMultiplier:         copyBigInt(p.LockMultiplier),
		LastRewardTime:         p.LastRewardTime,
		RewardDebt:             copyBigInt(p.RewardDebt),
		AccRewardPerWeightPaid: copyBigInt(p.AccRewardPerWeightPaid),
	}
}

// LockConfig bounds the lock-duration multiplier curve. Multipliers use the
// 1e18 fixed-point scale.
type LockConfig struct {
	MinLockDays   uint64   `json:"minLockDays"`
	MaxLockDays   uint64   `json:"maxLockDays"`
	MinMultiplier *big.Int `json:"minMultiplier"`
	MaxMultiplier *big.Int `json:"maxMultiplier"`
}

// Clone returns a deep copy of the lock configuration.
func (c LockConfig) Clone() LockConfig {
	return LockConfig{
		MinLockDays:   c.MinLockDays,
		MaxLockDays:   c.MaxLockDays,
		MinMultiplier: copyBigInt(c.MinMultiplier),
		MaxMultiplier: copyBigInt(c.MaxMultiplier),
	}
}

// Validate rejects curves where the bounds are inverted or the baseline sits
// below 1.0.
func (c LockConfig) Validate() error {
	if c.MinLockDays >= c.MaxLockDays {
		return ErrInvalidLockParameters
	}
	if c.MinMultiplier == nil || c.MaxMultiplier == nil {
		return ErrInvalidMultiplier
	}
	if c.MinMultiplier.Cmp(scale) < 0 {
		return ErrInvalidMultiplier
	}
	if c.MinMultiplier.Cmp(c.MaxMultiplier) >= 0 {
		return ErrInvalidMultiplier
	}
	return nil
}

// Pool captures the global accounting state for the staking module.
type Pool struct {
	// AccRewardPerWeight is the cumulative reward per unit of weight since
	// genesis, scaled by 1e18. Monotonically non-decreasing.
	AccRewardPerWeight *big.Int `json:"accRewardPerWeight"`
	// LastUpdateTime is the unix timestamp through which AccRewardPerWeight
	// is valid.
	LastUpdateTime uint64 `json:"lastUpdateTime"`
	// TotalWeight is the sum of all position weights across all owners.
	TotalWeight *big.Int `json:"totalWeight"`
	// TotalStaked is the sum of all positions' amounts. The reward reserve is
	// the module balance in excess of it.
	TotalStaked *big.Int `json:"totalStaked"`
	// EmissionPerSecond is the reward emission rate in base token units per
	// second.
	EmissionPerSecond *big.Int `json:"emissionPerSecond"`
	// MinDeposit is the smallest amount accepted when opening a position.
	MinDeposit *big.Int `json:"minDeposit"`
	// LockConfig bounds valid lock durations and the multiplier curve.
	LockConfig LockConfig `json:"lockConfig"`
	// TotalRewardsClaimed tallies rewards paid out since genesis.
	TotalRewardsClaimed *big.Int `json:"totalRewardsClaimed"`
}

// engineState describes the persistence the staking engine needs from the
// surrounding state implementation.
type engineState interface {
	GetPool() (*Pool, error)
	PutPool(pool *Pool) error
	GetPositions(owner crypto.Address) ([]*Position, error)
	PutPositions(owner crypto.Address, positions []*Position) error
	// GetPersonalMultiplier returns nil when no override was ever set.
	GetPersonalMultiplier(owner crypto.Address) (*big.Int, error)
	PutPersonalMultiplier(owner crypto.Address, value *big.Int) error
	Stakers() ([]crypto.Address, error)
	AppendStaker(owner crypto.Address) error
	IsStaker(owner crypto.Address) (bool, error)
	RewardsClaimed(owner crypto.Address) (*big.Int, error)
	PutRewardsClaimed(owner crypto.Address, total *big.Int) error
}

// tokenLedger is the narrow asset-ledger surface the engine depends on.
// Transfers either fully apply or fail without effect.
type tokenLedger interface {
	BalanceOf(addr crypto.Address) (*big.Int, error)
	Transfer(from, to crypto.Address, amount *big.Int) error
}

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
