package staking

import "math/big"

// Genesis seeds a fresh pool with its initial parameters.
type Genesis struct {
	EmissionPerSecond *big.Int
	MinDeposit        *big.Int
	LockConfig        LockConfig
}

// InitGenesis creates the pool record when none exists yet. An already
// initialised pool is left untouched so restarts never reset live accounting.
func (e *Engine) InitGenesis(g Genesis) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	existing, err := e.state.GetPool()
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	if err := g.LockConfig.Validate(); err != nil {
		return err
	}
	emission := g.EmissionPerSecond
	if emission == nil || emission.Sign() < 0 {
		emission = big.NewInt(0)
	}
	minDeposit := g.MinDeposit
	if minDeposit == nil || minDeposit.Sign() < 0 {
		minDeposit = DefaultMinDeposit()
	}
	pool := &Pool{
		AccRewardPerWeight:  big.NewInt(0),
		LastUpdateTime:      e.nowFn(),
		TotalWeight:         big.NewInt(0),
		TotalStaked:         big.NewInt(0),
		EmissionPerSecond:   new(big.Int).Set(emission),
		MinDeposit:          new(big.Int).Set(minDeposit),
		LockConfig:          g.LockConfig.Clone(),
		TotalRewardsClaimed: big.NewInt(0),
	}
	return e.state.PutPool(pool)
}
