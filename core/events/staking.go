package events

import (
	"math/big"
	"strconv"
	"strings"

	"stakevault/core/types"
	"stakevault/crypto"
)

const (
	// TypeStakingPositionOpened captures a newly created staking position.
	TypeStakingPositionOpened = "staking.positionOpened"
	// TypeStakingLockExtended captures a lock extension on an existing position.
	TypeStakingLockExtended = "staking.lockExtended"
	// TypeStakingWithdrawn captures a partial or full principal withdrawal.
	TypeStakingWithdrawn = "staking.withdrawn"
	// TypeStakingRewardsPaid is emitted whenever accrued rewards are paid out.
	TypeStakingRewardsPaid = "staking.rewardsPaid"
	// TypeStakingRewardsDeposited records a top-up of the reward reserve.
	TypeStakingRewardsDeposited = "staking.rewardsDeposited"
	// TypeStakingEmissionUpdated records an admin change of the emission rate.
	TypeStakingEmissionUpdated = "staking.emissionUpdated"
	// TypeStakingLockParamsUpdated records an admin change of the lock curve.
	TypeStakingLockParamsUpdated = "staking.lockParamsUpdated"
	// TypeStakingMultiplierUpdated records a personal multiplier override.
	TypeStakingMultiplierUpdated = "staking.personalMultiplierUpdated"
	// TypeStakingPaused is emitted when a mutation is rejected by a pause toggle.
	TypeStakingPaused = "staking.paused"
)

// PositionOpened captures the creation of a staking position.
type PositionOpened struct {
	Owner          [20]byte
	PositionID     uint64
	Amount         *big.Int
	UnlockTime     uint64
	LockMultiplier *big.Int
	Weight         *big.Int
}

// EventType satisfies the Event interface.
func (PositionOpened) EventType() string { return TypeStakingPositionOpened }

// Event converts the structured payload into a broadcastable event.
func (e PositionOpened) Event() *types.Event {
	attrs := map[string]string{
		"owner":      crypto.MustNewAddress(crypto.VaultPrefix, e.Owner[:]).String(),
		"positionId": strconv.FormatUint(e.PositionID, 10),
		"amount":     formatAmount(e.Amount),
		"unlockTime": strconv.FormatUint(e.UnlockTime, 10),
	}
	if e.LockMultiplier != nil {
		attrs["lockMultiplier"] = e.LockMultiplier.String()
	}
	if e.Weight != nil {
		attrs["weight"] = formatAmount(e.Weight)
	}
	return &types.Event{Type: TypeStakingPositionOpened, Attributes: attrs}
}

// LockExtended captures the weight delta realised when extending a lock.
type LockExtended struct {
	Owner          [20]byte
	PositionID     uint64
	OldUnlockTime  uint64
	NewUnlockTime  uint64
	LockMultiplier *big.Int
	NewWeight      *big.Int
}

// EventType satisfies the Event interface.
func (LockExtended) EventType() string { return TypeStakingLockExtended }

// Event converts the structured payload into a broadcastable event.
func (e LockExtended) Event() *types.Event {
	attrs := map[string]string{
		"owner":         crypto.MustNewAddress(crypto.VaultPrefix, e.Owner[:]).String(),
		"positionId":    strconv.FormatUint(e.PositionID, 10),
		"oldUnlockTime": strconv.FormatUint(e.OldUnlockTime, 10),
		"newUnlockTime": strconv.FormatUint(e.NewUnlockTime, 10),
	}
	if e.LockMultiplier != nil {
		attrs["lockMultiplier"] = e.LockMultiplier.String()
	}
	if e.NewWeight != nil {
		attrs["newWeight"] = formatAmount(e.NewWeight)
	}
	return &types.Event{Type: TypeStakingLockExtended, Attributes: attrs}
}

// Withdrawn captures a principal withdrawal and any opportunistic payout that
// accompanied it.
type Withdrawn struct {
	Owner       [20]byte
	PositionID  uint64
	Amount      *big.Int
	Remaining   *big.Int
	RewardsPaid *big.Int
}

// EventType satisfies the Event interface.
func (Withdrawn) EventType() string { return TypeStakingWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e Withdrawn) Event() *types.Event {
	attrs := map[string]string{
		"owner":      crypto.MustNewAddress(crypto.VaultPrefix, e.Owner[:]).String(),
		"positionId": strconv.FormatUint(e.PositionID, 10),
		"amount":     formatAmount(e.Amount),
		"remaining":  formatAmount(e.Remaining),
	}
	if e.RewardsPaid != nil && e.RewardsPaid.Sign() > 0 {
		attrs["rewardsPaid"] = formatAmount(e.RewardsPaid)
	}
	return &types.Event{Type: TypeStakingWithdrawn, Attributes: attrs}
}

// RewardsPaid captures a reward payout for a single position.
type RewardsPaid struct {
	Owner      [20]byte
	PositionID uint64
	Amount     *big.Int
}

// EventType satisfies the Event interface.
func (RewardsPaid) EventType() string { return TypeStakingRewardsPaid }

// Event converts the structured payload into a broadcastable event.
func (e RewardsPaid) Event() *types.Event {
	return &types.Event{Type: TypeStakingRewardsPaid, Attributes: map[string]string{
		"owner":      crypto.MustNewAddress(crypto.VaultPrefix, e.Owner[:]).String(),
		"positionId": strconv.FormatUint(e.PositionID, 10),
		"amount":     formatAmount(e.Amount),
	}}
}

// RewardsDeposited records a reward reserve top-up by the admin.
type RewardsDeposited struct {
	From   [20]byte
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (RewardsDeposited) EventType() string { return TypeStakingRewardsDeposited }

// Event converts the structured payload into a broadcastable event.
func (e RewardsDeposited) Event() *types.Event {
	return &types.Event{Type: TypeStakingRewardsDeposited, Attributes: map[string]string{
		"from":   crypto.MustNewAddress(crypto.VaultPrefix, e.From[:]).String(),
		"amount": formatAmount(e.Amount),
	}}
}

// EmissionUpdated records an emission rate change.
type EmissionUpdated struct {
	OldRate *big.Int
	NewRate *big.Int
}

// EventType satisfies the Event interface.
func (EmissionUpdated) EventType() string { return TypeStakingEmissionUpdated }

// Event converts the structured payload into a broadcastable event.
func (e EmissionUpdated) Event() *types.Event {
	return &types.Event{Type: TypeStakingEmissionUpdated, Attributes: map[string]string{
		"oldRate": formatAmount(e.OldRate),
		"newRate": formatAmount(e.NewRate),
	}}
}

// LockParamsUpdated records a lock curve change.
type LockParamsUpdated struct {
	MinLockDays   uint64
	MaxLockDays   uint64
	MinMultiplier *big.Int
	MaxMultiplier *big.Int
}

// EventType satisfies the Event interface.
func (LockParamsUpdated) EventType() string { return TypeStakingLockParamsUpdated }

// Event converts the structured payload into a broadcastable event.
func (e LockParamsUpdated) Event() *types.Event {
	return &types.Event{Type: TypeStakingLockParamsUpdated, Attributes: map[string]string{
		"minLockDays":   strconv.FormatUint(e.MinLockDays, 10),
		"maxLockDays":   strconv.FormatUint(e.MaxLockDays, 10),
		"minMultiplier": formatAmount(e.MinMultiplier),
		"maxMultiplier": formatAmount(e.MaxMultiplier),
	}}
}

// PersonalMultiplierUpdated records a per-account multiplier override.
type PersonalMultiplierUpdated struct {
	Account       [20]byte
	OldMultiplier *big.Int
	NewMultiplier *big.Int
}

// EventType satisfies the Event interface.
func (PersonalMultiplierUpdated) EventType() string { return TypeStakingMultiplierUpdated }

// Event converts the structured payload into a broadcastable event.
func (e PersonalMultiplierUpdated) Event() *types.Event {
	return &types.Event{Type: TypeStakingMultiplierUpdated, Attributes: map[string]string{
		"account":       crypto.MustNewAddress(crypto.VaultPrefix, e.Account[:]).String(),
		"oldMultiplier": formatAmount(e.OldMultiplier),
		"newMultiplier": formatAmount(e.NewMultiplier),
	}}
}

// StakingPaused captures a staking request rejected due to a pause toggle.
type StakingPaused struct {
	Account   [20]byte
	Operation string
}

// EventType satisfies the Event interface.
func (StakingPaused) EventType() string { return TypeStakingPaused }

// Event converts the structured payload into a broadcastable event.
func (e StakingPaused) Event() *types.Event {
	attrs := make(map[string]string)
	if !zeroAddress(e.Account) {
		attrs["account"] = crypto.MustNewAddress(crypto.VaultPrefix, e.Account[:]).String()
	}
	if op := strings.TrimSpace(e.Operation); op != "" {
		attrs["operation"] = op
	}
	if len(attrs) == 0 {
		return nil
	}
	return &types.Event{Type: TypeStakingPaused, Attributes: attrs}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func zeroAddress(addr [20]byte) bool {
	for _, b := range addr {
		if b != 0 {
			return false
		}
	}
	return true
}
