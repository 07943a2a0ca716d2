package staking

import (
	"math/big"

	"stakevault/crypto"
)

// PositionInfo exposes one position for account queries, including a dry-run
// of the reward accrual at query time.
type PositionInfo struct {
	ID             uint64   `json:"id"`
	Amount         *big.Int `json:"amount"`
	UnlockTime     uint64   `json:"unlockTime"`
	LockMultiplier *big.Int `json:"lockMultiplier"`
	LastRewardTime uint64   `json:"lastRewardTime"`
	Weight         *big.Int `json:"weight"`
	PendingReward  *big.Int `json:"pendingReward"`
}

// UserSummary aggregates an owner's positions for dashboards.
type UserSummary struct {
	Owner          string   `json:"owner"`
	Positions      uint64   `json:"positions"`
	TotalStaked    *big.Int `json:"totalStaked"`
	TotalWeight    *big.Int `json:"totalWeight"`
	PendingRewards *big.Int `json:"pendingRewards"`
	RewardsClaimed *big.Int `json:"rewardsClaimed"`
	PoolShareBps   uint64   `json:"poolShareBps"`
	// EstimatedAPR is the annualised reward per staked token, 1e18 scale.
	EstimatedAPR *big.Int `json:"estimatedApr"`
}

// PoolStats exposes the global contract statistics.
type PoolStats struct {
	TotalStaked         *big.Int   `json:"totalStaked"`
	TotalWeight         *big.Int   `json:"totalWeight"`
	AccRewardPerWeight  *big.Int   `json:"accRewardPerWeight"`
	LastUpdateTime      uint64     `json:"lastUpdateTime"`
	EmissionPerSecond   *big.Int   `json:"emissionPerSecond"`
	MinDeposit          *big.Int   `json:"minDeposit"`
	LockConfig          LockConfig `json:"lockConfig"`
	TotalRewardsClaimed *big.Int   `json:"totalRewardsClaimed"`
	RewardReserve       *big.Int   `json:"rewardReserve"`
	StakerCount         uint64     `json:"stakerCount"`
}

// projectedAccumulator reproduces advancePool's math without mutating state.
func projectedAccumulator(pool *Pool, now uint64) *big.Int {
	acc := new(big.Int).Set(pool.AccRewardPerWeight)
	if now <= pool.LastUpdateTime {
		return acc
	}
	if pool.TotalWeight.Sign() == 0 || pool.EmissionPerSecond.Sign() == 0 {
		return acc
	}
	elapsed := now - pool.LastUpdateTime
	rewards := new(big.Int).Mul(new(big.Int).SetUint64(elapsed), pool.EmissionPerSecond)
	rewards.Mul(rewards, scale)
	rewards.Quo(rewards, pool.TotalWeight)
	return acc.Add(acc, rewards)
}

func pendingReward(pool *Pool, pos *Position, personal, projected *big.Int) *big.Int {
	pending := big.NewInt(0)
	if pos.RewardDebt != nil {
		pending.Set(pos.RewardDebt)
	}
	paid := pos.AccRewardPerWeightPaid
	if paid == nil {
		paid = big.NewInt(0)
	}
	delta := new(big.Int).Sub(projected, paid)
	if delta.Sign() <= 0 {
		return pending
	}
	weight := weightOf(pos.Amount, pos.LockMultiplier, personal)
	if weight.Sign() <= 0 {
		return pending
	}
	accrued := new(big.Int).Mul(weight, delta)
	accrued.Quo(accrued, scale)
	return pending.Add(pending, accrued)
}

func (e *Engine) positionInfo(pool *Pool, pos *Position, personal, projected *big.Int, id uint64) PositionInfo {
	return PositionInfo{
		ID:             id,
		Amount:         copyBigInt(pos.Amount),
		UnlockTime:     pos.UnlockTime,
		LockMultiplier: copyBigInt(pos.LockMultiplier),
		LastRewardTime: pos.LastRewardTime,
		Weight:         weightOf(pos.Amount, pos.LockMultiplier, personal),
		PendingReward:  pendingReward(pool, pos, personal, projected),
	}
}

// GetPosition returns one position of the owner.
func (e *Engine) GetPosition(owner crypto.Address, positionID uint64) (*PositionInfo, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
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
	personal, err := e.personalMultiplier(owner)
	if err != nil {
		return nil, err
	}
	projected := projectedAccumulator(pool, e.nowFn())
	info := e.positionInfo(pool, positions[positionID], personal, projected, positionID)
	return &info, nil
}

// ListPositions pages through the owner's positions. Pages larger than the
// cap are silently truncated.
func (e *Engine) ListPositions(owner crypto.Address, offset, limit uint64) ([]PositionInfo, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if limit == 0 || limit > maxPositionsPageSize {
		limit = maxPositionsPageSize
	}
	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	positions, err := e.state.GetPositions(owner)
	if err != nil {
		return nil, err
	}
	if offset >= uint64(len(positions)) {
		return []PositionInfo{}, nil
	}
	personal, err := e.personalMultiplier(owner)
	if err != nil {
		return nil, err
	}
	projected := projectedAccumulator(pool, e.nowFn())
	end := offset + limit
	if end > uint64(len(positions)) {
		end = uint64(len(positions))
	}
	out := make([]PositionInfo, 0, end-offset)
	for i := offset; i < end; i++ {
		out = append(out, e.positionInfo(pool, positions[i], personal, projected, i))
	}
	return out, nil
}

// PendingRewards dry-runs the accrual for a single position.
func (e *Engine) PendingRewards(owner crypto.Address, positionID uint64) (*big.Int, error) {
	info, err := e.GetPosition(owner, positionID)
	if err != nil {
		return nil, err
	}
	return info.PendingReward, nil
}

// Summary aggregates the owner's stake, weight, pool share and an annualised
// yield estimate.
func (e *Engine) Summary(owner crypto.Address) (*UserSummary, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	positions, err := e.state.GetPositions(owner)
	if err != nil {
		return nil, err
	}
	personal, err := e.personalMultiplier(owner)
	if err != nil {
		return nil, err
	}
	claimed, err := e.state.RewardsClaimed(owner)
	if err != nil {
		return nil, err
	}
	if claimed == nil {
		claimed = big.NewInt(0)
	}

	projected := projectedAccumulator(pool, e.nowFn())
	staked := big.NewInt(0)
	weight := big.NewInt(0)
	pending := big.NewInt(0)
	for _, pos := range positions {
		if pos.Amount != nil {
			staked.Add(staked, pos.Amount)
		}
		weight.Add(weight, weightOf(pos.Amount, pos.LockMultiplier, personal))
		pending.Add(pending, pendingReward(pool, pos, personal, projected))
	}

	summary := &UserSummary{
		Owner:          owner.String(),
		Positions:      uint64(len(positions)),
		TotalStaked:    staked,
		TotalWeight:    weight,
		PendingRewards: pending,
		RewardsClaimed: claimed,
		EstimatedAPR:   big.NewInt(0),
	}
	if pool.TotalWeight.Sign() > 0 && weight.Sign() > 0 {
		share := new(big.Int).Mul(weight, big.NewInt(10_000))
		share.Quo(share, pool.TotalWeight)
		summary.PoolShareBps = share.Uint64()
		if staked.Sign() > 0 {
			// weight * emission * secondsPerYear / totalWeight / staked,
			// rendered at 1e18 scale.
			apr := new(big.Int).Mul(weight, pool.EmissionPerSecond)
			apr.Mul(apr, big.NewInt(secondsPerYear))
			apr.Mul(apr, scale)
			apr.Quo(apr, pool.TotalWeight)
			apr.Quo(apr, staked)
			summary.EstimatedAPR = apr
		}
	}
	return summary, nil
}

// Stats returns the global contract statistics.
func (e *Engine) Stats() (*PoolStats, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	reserve, err := e.rewardReserve(pool)
	if err != nil {
		return nil, err
	}
	stakers, err := e.state.Stakers()
	if err != nil {
		return nil, err
	}
	return &PoolStats{
		TotalStaked:         copyBigInt(pool.TotalStaked),
		TotalWeight:         copyBigInt(pool.TotalWeight),
		AccRewardPerWeight:  copyBigInt(pool.AccRewardPerWeight),
		LastUpdateTime:      pool.LastUpdateTime,
		EmissionPerSecond:   copyBigInt(pool.EmissionPerSecond),
		MinDeposit:          copyBigInt(pool.MinDeposit),
		LockConfig:          pool.LockConfig.Clone(),
		TotalRewardsClaimed: copyBigInt(pool.TotalRewardsClaimed),
		RewardReserve:       reserve,
		StakerCount:         uint64(len(stakers)),
	}, nil
}

// Stakers pages through every identity that ever opened a position.
func (e *Engine) Stakers(offset, limit uint64) ([]string, uint64, error) {
	if e == nil || e.state == nil {
		return nil, 0, errNilState
	}
	stakers, err := e.state.Stakers()
	if err != nil {
		return nil, 0, err
	}
	return pageAddresses(stakers, offset, limit), uint64(len(stakers)), nil
}

// ActiveStakers pages through identities with at least one non-zero position.
func (e *Engine) ActiveStakers(offset, limit uint64) ([]string, uint64, error) {
	if e == nil || e.state == nil {
		return nil, 0, errNilState
	}
	stakers, err := e.state.Stakers()
	if err != nil {
		return nil, 0, err
	}
	active := make([]crypto.Address, 0, len(stakers))
	for _, staker := range stakers {
		positions, err := e.state.GetPositions(staker)
		if err != nil {
			return nil, 0, err
		}
		for _, pos := range positions {
			if pos.Amount != nil && pos.Amount.Sign() > 0 {
				active = append(active, staker)
				break
			}
		}
	}
	return pageAddresses(active, offset, limit), uint64(len(active)), nil
}

func pageAddresses(list []crypto.Address, offset, limit uint64) []string {
	if limit == 0 || limit > maxStakersPageSize {
		limit = maxStakersPageSize
	}
	if offset >= uint64(len(list)) {
		return []string{}
	}
	end := offset + limit
	if end > uint64(len(list)) {
		end = uint64(len(list))
	}
	out := make([]string, 0, end-offset)
	for _, addr := range list[offset:end] {
		out = append(out, addr.String())
	}
	return out
}
