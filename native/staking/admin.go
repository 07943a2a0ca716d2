package staking

import (
	"math/big"

	"stakevault/core/events"
	"stakevault/crypto"
)

func (e *Engine) requireOwner(caller crypto.Address) error {
	if string(caller.Bytes()) != string(e.owner.Bytes()) {
		return ErrUnauthorized
	}
	return nil
}

// SetEmissionRate replaces the emission rate. The accumulator is advanced
// first so the old rate applies exactly up to the change instant.
func (e *Engine) SetEmissionRate(caller crypto.Address, rate *big.Int) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if rate == nil || rate.Sign() < 0 {
		return ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	finish := e.scope()
	defer func() { err = finish(err) }()

	pool, err := e.ensurePool()
	if err != nil {
		return err
	}
	advancePool(pool, e.nowFn())
	oldRate := pool.EmissionPerSecond
	pool.EmissionPerSecond = new(big.Int).Set(rate)
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emit(events.EmissionUpdated{OldRate: oldRate, NewRate: new(big.Int).Set(rate)})
	return nil
}

// SetLockParameters replaces the lock duration bounds and multiplier curve.
// Existing positions keep the lock multiplier they were created with; the new
// curve applies to future opens and extensions only.
func (e *Engine) SetLockParameters(caller crypto.Address, cfg LockConfig) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	finish := e.scope()
	defer func() { err = finish(err) }()

	pool, err := e.ensurePool()
	if err != nil {
		return err
	}
	advancePool(pool, e.nowFn())
	pool.LockConfig = cfg.Clone()
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emit(events.LockParamsUpdated{
		MinLockDays:   cfg.MinLockDays,
		MaxLockDays:   cfg.MaxLockDays,
		MinMultiplier: copyBigInt(cfg.MinMultiplier),
		MaxMultiplier: copyBigInt(cfg.MaxMultiplier),
	})
	return nil
}

// SetPersonalMultiplier installs a per-account weight override. Each of the
// account's positions settles under the old multiplier before its weight
// contribution is recomputed; the adjustment runs position-by-position
// because positions carry distinct lock multipliers.
func (e *Engine) SetPersonalMultiplier(caller, account crypto.Address, value *big.Int) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if value == nil || value.Cmp(scale) < 0 {
		return ErrInvalidMultiplier
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	finish := e.scope()
	defer func() { err = finish(err) }()

	pool, err := e.ensurePool()
	if err != nil {
		return err
	}
	now := e.nowFn()
	advancePool(pool, now)

	oldMultiplier, err := e.personalMultiplier(account)
	if err != nil {
		return err
	}
	positions, err := e.state.GetPositions(account)
	if err != nil {
		return err
	}
	for _, pos := range positions {
		reconcile(pool, pos, oldMultiplier, now)
		oldWeight := weightOf(pos.Amount, pos.LockMultiplier, oldMultiplier)
		newWeight := weightOf(pos.Amount, pos.LockMultiplier, value)
		pool.TotalWeight = new(big.Int).Sub(pool.TotalWeight, oldWeight)
		pool.TotalWeight.Add(pool.TotalWeight, newWeight)
	}

	if len(positions) > 0 {
		if err := e.state.PutPositions(account, positions); err != nil {
			return err
		}
	}
	if err := e.state.PutPersonalMultiplier(account, new(big.Int).Set(value)); err != nil {
		return err
	}
	if err := e.state.PutPool(pool); err != nil {
		return err
	}

	e.emit(events.PersonalMultiplierUpdated{
		Account:       addrKey(account),
		OldMultiplier: oldMultiplier,
		NewMultiplier: new(big.Int).Set(value),
	})
	return nil
}

// SetMinDeposit replaces the minimum accepted deposit.
func (e *Engine) SetMinDeposit(caller crypto.Address, amount *big.Int) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	finish := e.scope()
	defer func() { err = finish(err) }()

	pool, err := e.ensurePool()
	if err != nil {
		return err
	}
	pool.MinDeposit = new(big.Int).Set(amount)
	return e.state.PutPool(pool)
}

// DepositRewardTokens moves amount from the caller into the module reserve.
// No accounting state changes beyond the transfer; the reserve is derived
// from the module balance.
func (e *Engine) DepositRewardTokens(caller crypto.Address, amount *big.Int) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	finish := e.scope()
	defer func() { err = finish(err) }()

	if err := e.ledger.Transfer(caller, e.module, amount); err != nil {
		return err
	}
	e.emit(events.RewardsDeposited{From: addrKey(caller), Amount: new(big.Int).Set(amount)})
	return nil
}
