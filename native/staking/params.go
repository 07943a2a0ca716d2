package staking

import "math/big"

// ModuleName keys the pause toggle and log fields for this module. The RPC
// layer uses it so operator controls always target the same switch the
// engine's guards check.
const ModuleName = "staking"

const (
	secondsPerDay  = 86_400
	secondsPerYear = 31_536_000

	// maxPositionsPageSize caps position listing pages; larger requests are
	// silently truncated rather than rejected.
	maxPositionsPageSize = 100
	// maxStakersPageSize caps staker enumeration pages.
	maxStakersPageSize = 200
)

// scale is the 1e18 fixed-point unit used for multipliers and the reward
// accumulator. All divisions against it truncate toward zero so rounding dust
// stays with the pool, never the claimant.
var scale = big.NewInt(1_000_000_000_000_000_000)

// DefaultLockConfig mirrors the genesis curve: one week to four years, with
// multipliers running linearly from 1.0x to 4.0x.
func DefaultLockConfig() LockConfig {
	return LockConfig{
		MinLockDays:   7,
		MaxLockDays:   1_460,
		MinMultiplier: new(big.Int).Set(scale),
		MaxMultiplier: new(big.Int).Mul(scale, big.NewInt(4)),
	}
}

// DefaultMinDeposit is one whole token at genesis.
func DefaultMinDeposit() *big.Int {
	return new(big.Int).Set(scale)
}

// Scale exposes the fixed-point unit for callers that parse or render
// multipliers.
func Scale() *big.Int {
	return new(big.Int).Set(scale)
}
