package staking

import (
	"math/big"
	"sync"
	"time"

	"stakevault/core/events"
	"stakevault/crypto"
	nativecommon "stakevault/native/common"
)

// Engine orchestrates the staking module's state transitions: position
// lifecycle, the global reward accumulator and reward payouts. Every mutating
// entry point snapshots the clock once, advances the accumulator, reconciles
// the affected positions and only then applies the requested change, so time
// is never attributed across a weight change.
//
// Mutating calls serialize on an internal mutex and run inside a write scope
// when the state supports one, so a call's record puts and balance moves
// commit together or not at all.
type Engine struct {
	state   engineState
	ledger  tokenLedger
	module  crypto.Address
	owner   crypto.Address
	pauses  nativecommon.PauseView
	emitter events.Emitter
	nowFn   func() uint64

	mu     sync.Mutex
	scoped bool
	queued []events.Event
}

// writeScope is the optional transactional surface of the state layer.
// States that implement it get per-call atomicity; plain states fall back to
// write-through puts.
type writeScope interface {
	BeginWrite()
	CommitWrite() error
	DiscardWrite()
}

// NewEngine constructs a staking engine bound to the module custody address
// and the admin owner address.
func NewEngine(moduleAddr, ownerAddr crypto.Address) *Engine {
	return &Engine{
		module: moduleAddr,
		owner:  ownerAddr,
		nowFn:  func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger wires the engine to the token ledger used for custody moves.
func (e *Engine) SetLedger(ledger tokenLedger) { e.ledger = ledger }

// SetPauses installs the operator pause toggles checked by mutating calls.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter installs the event sink. A nil emitter discards events.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the clock. Tests use this to drive deterministic time.
func (e *Engine) SetNowFunc(now func() uint64) {
	if e == nil || now == nil {
		return
	}
	e.nowFn = now
}

// ModuleAddress returns the custody address holding staked principal and the
// reward reserve.
func (e *Engine) ModuleAddress() crypto.Address { return e.module }

func (e *Engine) emit(evt events.Event) {
	if e == nil || evt == nil {
		return
	}
	if e.scoped {
		e.queued = append(e.queued, evt)
		return
	}
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

// scope opens a buffered write scope on the state and returns the finalizer
// each mutating call defers: commit and flush queued events on success,
// discard everything on failure. Must run with e.mu held.
func (e *Engine) scope() func(error) error {
	ws, _ := e.state.(writeScope)
	if ws != nil {
		ws.BeginWrite()
	}
	e.scoped = true
	e.queued = nil
	return func(err error) error {
		e.scoped = false
		queued := e.queued
		e.queued = nil
		if err != nil {
			if ws != nil {
				ws.DiscardWrite()
			}
			return err
		}
		if ws != nil {
			if err := ws.CommitWrite(); err != nil {
				return err
			}
		}
		if e.emitter != nil {
			for _, evt := range queued {
				e.emitter.Emit(evt)
			}
		}
		return nil
	}
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	return nil
}

// ensurePool loads the pool, filling nil fields with genesis defaults so the
// accounting code never trips over partially initialised state.
func (e *Engine) ensurePool() (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, err := e.state.GetPool()
	if err != nil {
		return nil, err
	}
	if pool == nil {
		pool = &Pool{}
	}
	if pool.AccRewardPerWeight == nil {
		pool.AccRewardPerWeight = big.NewInt(0)
	}
	if pool.TotalWeight == nil {
		pool.TotalWeight = big.NewInt(0)
	}
	if pool.TotalStaked == nil {
		pool.TotalStaked = big.NewInt(0)
	}
	if pool.EmissionPerSecond == nil {
		pool.EmissionPerSecond = big.NewInt(0)
	}
	if pool.MinDeposit == nil {
		pool.MinDeposit = DefaultMinDeposit()
	}
	if pool.TotalRewardsClaimed == nil {
		pool.TotalRewardsClaimed = big.NewInt(0)
	}
	if pool.LockConfig.MinMultiplier == nil || pool.LockConfig.MaxMultiplier == nil {
		pool.LockConfig = DefaultLockConfig()
	}
	return pool, nil
}

// advancePool rolls the reward accumulator forward to now. With zero total
// weight the elapsed emission is discarded, not banked: the interval simply
// closes with no accrual. Idempotent when no time has elapsed.
func advancePool(pool *Pool, now uint64) {
	if pool == nil || now <= pool.LastUpdateTime {
		return
	}
	elapsed := now - pool.LastUpdateTime
	pool.LastUpdateTime = now
	if pool.TotalWeight.Sign() == 0 || pool.EmissionPerSecond.Sign() == 0 {
		return
	}
	rewards := new(big.Int).Mul(new(big.Int).SetUint64(elapsed), pool.EmissionPerSecond)
	rewards.Mul(rewards, scale)
	rewards.Quo(rewards, pool.TotalWeight)
	pool.AccRewardPerWeight = new(big.Int).Add(pool.AccRewardPerWeight, rewards)
}

// reconcile settles a position against the current accumulator value, moving
// the accrued delta into RewardDebt and refreshing the checkpoint. Must run
// after advancePool and before any field participating in the position's
// weight changes.
func reconcile(pool *Pool, pos *Position, personal *big.Int, now uint64) {
	if pool == nil || pos == nil {
		return
	}
	if pos.RewardDebt == nil {
		pos.RewardDebt = big.NewInt(0)
	}
	if pos.AccRewardPerWeightPaid == nil {
		pos.AccRewardPerWeightPaid = big.NewInt(0)
	}
	delta := new(big.Int).Sub(pool.AccRewardPerWeight, pos.AccRewardPerWeightPaid)
	if delta.Sign() > 0 {
		weight := weightOf(pos.Amount, pos.LockMultiplier, personal)
		if weight.Sign() > 0 {
			accrued := new(big.Int).Mul(weight, delta)
			accrued.Quo(accrued, scale)
			pos.RewardDebt = new(big.Int).Add(pos.RewardDebt, accrued)
		}
	}
	pos.AccRewardPerWeightPaid = new(big.Int).Set(pool.AccRewardPerWeight)
	pos.LastRewardTime = now
}

// personalMultiplier resolves the owner's override, defaulting to 1.0.
func (e *Engine) personalMultiplier(owner crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	value, err := e.state.GetPersonalMultiplier(owner)
	if err != nil {
		return nil, err
	}
	if value == nil || value.Sign() == 0 {
		return new(big.Int).Set(scale), nil
	}
	return value, nil
}

// rewardReserve is the module balance in excess of staked principal, the only
// funds available for payouts.
func (e *Engine) rewardReserve(pool *Pool) (*big.Int, error) {
	balance, err := e.ledger.BalanceOf(e.module)
	if err != nil {
		return nil, err
	}
	reserve := new(big.Int).Sub(balance, pool.TotalStaked)
	if reserve.Sign() < 0 {
		return big.NewInt(0), nil
	}
	return reserve, nil
}

// OpenPosition locks amount until unlockTime and returns the index of the new
// position in the owner's list. The position earns from this instant forward;
// its checkpoint is initialised to the freshly advanced accumulator so no
// reward accrues retroactively.
func (e *Engine) OpenPosition(owner crypto.Address, amount *big.Int, unlockTime uint64) (id uint64, err error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		e.emit(events.StakingPaused{Account: addrKey(owner), Operation: "openPosition"})
		return 0, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}

	finish := e.scope()
	defer func() { err = finish(err) }()

	pool, err := e.ensurePool()
	if err != nil {
		return 0, err
	}
	if amount.Cmp(pool.MinDeposit) < 0 {
		return 0, ErrBelowMinimumDeposit
	}

	now := e.nowFn()
	if unlockTime <= now {
		return 0, ErrLockTooShort
	}
	duration := unlockTime - now
	if duration < pool.LockConfig.MinLockDays*secondsPerDay {
		return 0, ErrLockTooShort
	}
	if duration > pool.LockConfig.MaxLockDays*secondsPerDay {
		return 0, ErrLockTooLong
	}

	advancePool(pool, now)

	personal, err := e.personalMultiplier(owner)
	if err != nil {
		return 0, err
	}
	lockMultiplier := lockMultiplierFor(duration/secondsPerDay, pool.LockConfig)
	weight := weightOf(amount, lockMultiplier, personal)

	if err := e.ledger.Transfer(owner, e.module, amount); err != nil {
		return 0, err
	}

	positions, err := e.state.GetPositions(owner)
	if err != nil {
		return 0, err
	}
	pos := &Position{
		Amount:                 new(big.Int).Set(amount),
		UnlockTime:             unlockTime,
		LockMultiplier:         lockMultiplier,
		LastRewardTime:         now,
		RewardDebt:             big.NewInt(0),
		AccRewardPerWeightPaid: new(big.Int).Set(pool.AccRewardPerWeight),
	}
	positions = append(positions, pos)

	pool.TotalWeight = new(big.Int).Add(pool.TotalWeight, weight)
	pool.TotalStaked = new(big.Int).Add(pool.TotalStaked, amount)

	known, err := e.state.IsStaker(owner)
	if err != nil {
		return 0, err
	}
	if !known {
		if err := e.state.AppendStaker(owner); err != nil {
			return 0, err
		}
	}
	if err := e.state.PutPositions(owner, positions); err != nil {
		return 0, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return 0, err
	}

	id = uint64(len(positions) - 1)
	e.emit(events.PositionOpened{
		Owner:          addrKey(owner),
		PositionID:     id,
		Amount:         new(big.Int).Set(amount),
		UnlockTime:     unlockTime,
		LockMultiplier: new(big.Int).Set(lockMultiplier),
		Weight:         weight,
	})
	return id, nil
}

// ExtendLock pushes a position's unlock time further into the future and
// rederives its lock multiplier. Rewards accrued so far settle at the old
// multiplier before the weight changes.
func (e *Engine) ExtendLock(owner crypto.Address, positionID uint64, newUnlockTime uint64) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		e.emit(events.StakingPaused{Account: addrKey(owner), Operation: "extendLock"})
		return err
	}

	finish := e.scope()
	defer func() { err = finish(err) }()

	pool, err := e.ensurePool()
	if err != nil {
		return err
	}
	positions, err := e.state.GetPositions(owner)
	if err != nil {
		return err
	}
	if positionID >= uint64(len(positions)) {
		return ErrInvalidPositionID
	}
	pos := positions[positionID]

	now := e.nowFn()
	if newUnlockTime <= pos.UnlockTime {
		return ErrInvalidExtension
	}
	if newUnlockTime <= now {
		return ErrInvalidExtension
	}
	duration := newUnlockTime - now
	if duration < pool.LockConfig.MinLockDays*secondsPerDay {
		return ErrLockTooShort
	}
	if duration > pool.LockConfig.MaxLockDays*secondsPerDay {
		return ErrLockTooLong
	}

	advancePool(pool, now)

	personal, err := e.personalMultiplier(owner)
	if err != nil {
		return err
	}
	reconcile(pool, pos, personal, now)

	oldWeight := weightOf(pos.Amount, pos.LockMultiplier, personal)
	oldUnlock := pos.UnlockTime
	pos.UnlockTime = newUnlockTime
	pos.LockMultiplier = lockMultiplierFor(duration/secondsPerDay, pool.LockConfig)
	newWeight := weightOf(pos.Amount, pos.LockMultiplier, personal)

	pool.TotalWeight = new(big.Int).Sub(pool.TotalWeight, oldWeight)
	pool.TotalWeight.Add(pool.TotalWeight, newWeight)

	if err := e.state.PutPositions(owner, positions); err != nil {
		return err
	}
	if err := e.state.PutPool(pool); err != nil {
		return err
	}

	e.emit(events.LockExtended{
		Owner:          addrKey(owner),
		PositionID:     positionID,
		OldUnlockTime:  oldUnlock,
		NewUnlockTime:  newUnlockTime,
		LockMultiplier: new(big.Int).Set(pos.LockMultiplier),
		NewWeight:      newWeight,
	})
	return nil
}

// Withdraw releases principal from an unlocked position. Pending rewards are
// paid out opportunistically when the reserve covers them; when it does not,
// the debt is left intact for a later claim and the principal withdrawal
// still proceeds. The rewards paid alongside the principal are returned.
func (e *Engine) Withdraw(owner crypto.Address, positionID uint64, amount *big.Int) (rewardsPaid *big.Int, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		e.emit(events.StakingPaused{Account: addrKey(owner), Operation: "withdraw"})
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	finish := e.scope()
	defer func() { err = finish(err) }()

	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	positions, err := e.state.GetPositions(owner)
	if err != nil {
		return nil, err
	}
	if positionID >= uint64(len(positions)) {
		return nil, ErrInvalidPositionID
	}
	pos := positions[positionID]

	now := e.nowFn()
	if now < pos.UnlockTime {
		return nil, ErrTokensStillLocked
	}
	if pos.Amount == nil || amount.Cmp(pos.Amount) > 0 {
		return nil, ErrInsufficientStakedAmount
	}

	advancePool(pool, now)

	personal, err := e.personalMultiplier(owner)
	if err != nil {
		return nil, err
	}
	reconcile(pool, pos, personal, now)

	// Pay rewards only when the reserve covers the full debt; a shortfall
	// leaves the debt for a later explicit claim and never blocks principal.
	rewardsPaid = big.NewInt(0)
	if pos.RewardDebt.Sign() > 0 {
		reserve, err := e.rewardReserve(pool)
		if err != nil {
			return nil, err
		}
		if reserve.Cmp(pos.RewardDebt) >= 0 {
			rewardsPaid = new(big.Int).Set(pos.RewardDebt)
			if err := e.payReward(pool, owner, rewardsPaid); err != nil {
				return nil, err
			}
			if err := e.recordClaim(owner, rewardsPaid); err != nil {
				return nil, err
			}
			pos.RewardDebt = big.NewInt(0)
		}
	}

	oldWeight := weightOf(pos.Amount, pos.LockMultiplier, personal)
	pos.Amount = new(big.Int).Sub(pos.Amount, amount)
	newWeight := weightOf(pos.Amount, pos.LockMultiplier, personal)

	pool.TotalWeight = new(big.Int).Sub(pool.TotalWeight, oldWeight)
	pool.TotalWeight.Add(pool.TotalWeight, newWeight)
	pool.TotalStaked = new(big.Int).Sub(pool.TotalStaked, amount)

	if err := e.ledger.Transfer(e.module, owner, amount); err != nil {
		return nil, err
	}

	if err := e.state.PutPositions(owner, positions); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}

	e.emit(events.Withdrawn{
		Owner:       addrKey(owner),
		PositionID:  positionID,
		Amount:      new(big.Int).Set(amount),
		Remaining:   new(big.Int).Set(pos.Amount),
		RewardsPaid: rewardsPaid,
	})
	return rewardsPaid, nil
}

// ClaimRewards settles and pays out a single position's accrued rewards.
func (e *Engine) ClaimRewards(owner crypto.Address, positionID uint64) (payout *big.Int, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		e.emit(events.StakingPaused{Account: addrKey(owner), Operation: "claimRewards"})
		return nil, err
	}

	finish := e.scope()
	defer func() { err = finish(err) }()

	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	positions, err := e.state.GetPositions(owner)
	if err != nil {
		return nil, err
	}
	if positionID >= uint64(len(positions)) {
		return nil, ErrInvalidPositionID
	}
	pos := positions[positionID]

	now := e.nowFn()
	advancePool(pool, now)

	personal, err := e.personalMultiplier(owner)
	if err != nil {
		return nil, err
	}
	reconcile(pool, pos, personal, now)

	if pos.RewardDebt.Sign() == 0 {
		return nil, ErrNoRewardsToClaim
	}
	reserve, err := e.rewardReserve(pool)
	if err != nil {
		return nil, err
	}
	if reserve.Cmp(pos.RewardDebt) < 0 {
		return nil, ErrInsufficientRewardBalance
	}

	payout = new(big.Int).Set(pos.RewardDebt)
	if err := e.payReward(pool, owner, payout); err != nil {
		return nil, err
	}
	pos.RewardDebt = big.NewInt(0)

	if err := e.recordClaim(owner, payout); err != nil {
		return nil, err
	}
	if err := e.state.PutPositions(owner, positions); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}

	e.emit(events.RewardsPaid{Owner: addrKey(owner), PositionID: positionID, Amount: payout})
	return payout, nil
}

// ClaimAllRewards settles every position of the owner and pays the summed
// debt in one transfer. The reserve must cover the whole sum; a shortfall
// rejects the call without paying anything.
func (e *Engine) ClaimAllRewards(owner crypto.Address) (total *big.Int, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		e.emit(events.StakingPaused{Account: addrKey(owner), Operation: "claimAllRewards"})
		return nil, err
	}

	finish := e.scope()
	defer func() { err = finish(err) }()

	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	positions, err := e.state.GetPositions(owner)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, ErrNoRewardsToClaim
	}

	now := e.nowFn()
	advancePool(pool, now)

	personal, err := e.personalMultiplier(owner)
	if err != nil {
		return nil, err
	}

	total = big.NewInt(0)
	for _, pos := range positions {
		reconcile(pool, pos, personal, now)
		total.Add(total, pos.RewardDebt)
	}
	if total.Sign() == 0 {
		return nil, ErrNoRewardsToClaim
	}

	reserve, err := e.rewardReserve(pool)
	if err != nil {
		return nil, err
	}
	if reserve.Cmp(total) < 0 {
		return nil, ErrInsufficientRewardBalance
	}

	if err := e.payReward(pool, owner, total); err != nil {
		return nil, err
	}

	paid := make([]events.RewardsPaid, 0, len(positions))
	for i, pos := range positions {
		if pos.RewardDebt.Sign() == 0 {
			continue
		}
		paid = append(paid, events.RewardsPaid{
			Owner:      addrKey(owner),
			PositionID: uint64(i),
			Amount:     new(big.Int).Set(pos.RewardDebt),
		})
		pos.RewardDebt = big.NewInt(0)
	}

	if err := e.recordClaim(owner, total); err != nil {
		return nil, err
	}
	if err := e.state.PutPositions(owner, positions); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}

	for _, evt := range paid {
		e.emit(evt)
	}
	return total, nil
}

// payReward moves payout from the module reserve to the recipient and bumps
// the global claimed tally. Callers update per-owner tallies and debts.
func (e *Engine) payReward(pool *Pool, recipient crypto.Address, payout *big.Int) error {
	if err := e.ledger.Transfer(e.module, recipient, payout); err != nil {
		return err
	}
	pool.TotalRewardsClaimed = new(big.Int).Add(pool.TotalRewardsClaimed, payout)
	return nil
}

func (e *Engine) recordClaim(owner crypto.Address, payout *big.Int) error {
	claimed, err := e.state.RewardsClaimed(owner)
	if err != nil {
		return err
	}
	if claimed == nil {
		claimed = big.NewInt(0)
	}
	return e.state.PutRewardsClaimed(owner, new(big.Int).Add(claimed, payout))
}

func addrKey(addr crypto.Address) [20]byte {
	var key [20]byte
	copy(key[:], addr.Bytes())
	return key
}
