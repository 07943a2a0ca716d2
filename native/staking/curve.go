package staking

import "math/big"

// lockMultiplierFor maps a lock duration in whole days onto the configured
// multiplier curve. At or above MaxLockDays the curve clamps to MaxMultiplier
// with no extrapolation; between the bounds it interpolates linearly with
// truncating division. Durations below MinLockDays are rejected by callers
// before reaching this function, but fall back to the 1.0 baseline anyway.
func lockMultiplierFor(lockDays uint64, cfg LockConfig) *big.Int {
	if lockDays < cfg.MinLockDays {
		return new(big.Int).Set(scale)
	}
	if lockDays >= cfg.MaxLockDays {
		return new(big.Int).Set(cfg.MaxMultiplier)
	}
	span := new(big.Int).SetUint64(cfg.MaxLockDays - cfg.MinLockDays)
	progress := new(big.Int).SetUint64(lockDays - cfg.MinLockDays)
	slope := new(big.Int).Sub(cfg.MaxMultiplier, cfg.MinMultiplier)
	bonus := new(big.Int).Mul(progress, slope)
	bonus.Quo(bonus, span)
	return bonus.Add(bonus, cfg.MinMultiplier)
}

// weightOf composes a position's weight from its staked amount, lock
// multiplier and the owner's personal multiplier. The bonuses are additive
// excess over the 1.0 baseline, not multiplicative:
//
//	weight = amount * (lockMultiplier + personalMultiplier - 1.0) / 1.0
//
// so a 2.0x lock bonus and a 1.5x personal bonus combine to 2.5x.
func weightOf(amount, lockMultiplier, personalMultiplier *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	combined := new(big.Int).Add(lockMultiplier, personalMultiplier)
	combined.Sub(combined, scale)
	if combined.Sign() <= 0 {
		return big.NewInt(0)
	}
	weight := new(big.Int).Mul(amount, combined)
	return weight.Quo(weight, scale)
}
