package staking

import (
	"errors"
	"math/big"
	"testing"
)

func TestSummaryReportsShareAndAPR(t *testing.T) {
	clock := uint64(1_000)
	engine, state := newTestEngine(t, 4, &clock)

	small := testAddr(0x01)
	large := testAddr(0x02)
	state.credit(small, 100)
	state.credit(large, 300)

	unlock := minLockUnlock(clock)
	if _, err := engine.OpenPosition(small, big.NewInt(100), unlock); err != nil {
		t.Fatalf("open small position: %v", err)
	}
	if _, err := engine.OpenPosition(large, big.NewInt(300), unlock); err != nil {
		t.Fatalf("open large position: %v", err)
	}

	summary, err := engine.Summary(small)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Positions != 1 {
		t.Fatalf("expected 1 position, got %d", summary.Positions)
	}
	if summary.TotalStaked.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected staked 100, got %s", summary.TotalStaked)
	}
	if summary.TotalWeight.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected weight 100, got %s", summary.TotalWeight)
	}
	if summary.PoolShareBps != 2_500 {
		t.Fatalf("expected 25%% share = 2500 bps, got %d", summary.PoolShareBps)
	}
	// weight/totalWeight * emission * secondsPerYear / staked
	// = 1/4 * 4 * 31_536_000 / 100, at 1e18 scale.
	wantAPR := new(big.Int).Mul(big.NewInt(secondsPerYear/100), Scale())
	if summary.EstimatedAPR.Cmp(wantAPR) != 0 {
		t.Fatalf("expected APR %s, got %s", wantAPR, summary.EstimatedAPR)
	}

	clock += 100
	summary, err = engine.Summary(small)
	if err != nil {
		t.Fatalf("summary after accrual: %v", err)
	}
	if summary.PendingRewards.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected pending 100, got %s", summary.PendingRewards)
	}
}

func TestSummaryForUnknownOwnerIsEmpty(t *testing.T) {
	clock := uint64(1_000)
	engine, _ := newTestEngine(t, 4, &clock)

	summary, err := engine.Summary(testAddr(0x42))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Positions != 0 || summary.TotalStaked.Sign() != 0 || summary.PendingRewards.Sign() != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
	if summary.PoolShareBps != 0 || summary.EstimatedAPR.Sign() != 0 {
		t.Fatalf("expected zero share and APR, got %d / %s", summary.PoolShareBps, summary.EstimatedAPR)
	}
}

func TestStatsExposesReserveAndStakerCount(t *testing.T) {
	clock := uint64(1_000)
	engine, state := newTestEngine(t, 1, &clock)

	staker := testAddr(0x01)
	state.credit(staker, 100)
	state.credit(testModule, 77)
	if _, err := engine.OpenPosition(staker, big.NewInt(100), minLockUnlock(clock)); err != nil {
		t.Fatalf("open position: %v", err)
	}

	stats, err := engine.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalStaked.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected total staked 100, got %s", stats.TotalStaked)
	}
	if stats.RewardReserve.Cmp(big.NewInt(77)) != 0 {
		t.Fatalf("expected reserve 77, got %s", stats.RewardReserve)
	}
	if stats.StakerCount != 1 {
		t.Fatalf("expected 1 staker, got %d", stats.StakerCount)
	}
	if stats.EmissionPerSecond.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected emission 1, got %s", stats.EmissionPerSecond)
	}
}

func TestListPositionsPagination(t *testing.T) {
	clock := uint64(1_000)
	engine, state := newTestEngine(t, 0, &clock)

	staker := testAddr(0x01)
	state.credit(staker, 500)
	unlock := minLockUnlock(clock)
	for i := 0; i < 5; i++ {
		if _, err := engine.OpenPosition(staker, big.NewInt(100), unlock); err != nil {
			t.Fatalf("open position %d: %v", i, err)
		}
	}

	page, err := engine.ListPositions(staker, 1, 2)
	if err != nil {
		t.Fatalf("list positions: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(page))
	}
	if page[0].ID != 1 || page[1].ID != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", page[0].ID, page[1].ID)
	}

	// Offsets past the end return an empty page, not an error.
	page, err = engine.ListPositions(staker, 10, 2)
	if err != nil {
		t.Fatalf("list positions past end: %v", err)
	}
	if len(page) != 0 {
		t.Fatalf("expected empty page, got %d entries", len(page))
	}

	// A zero limit falls back to the cap and returns everything here.
	page, err = engine.ListPositions(staker, 0, 0)
	if err != nil {
		t.Fatalf("list positions default limit: %v", err)
	}
	if len(page) != 5 {
		t.Fatalf("expected all 5 positions, got %d", len(page))
	}
}

func TestActiveStakersExcludesEmptiedPositions(t *testing.T) {
	clock := uint64(1_000)
	engine, state := newTestEngine(t, 0, &clock)

	first := testAddr(0x01)
	second := testAddr(0x02)
	state.credit(first, 100)
	state.credit(second, 100)
	unlock := minLockUnlock(clock)
	if _, err := engine.OpenPosition(first, big.NewInt(100), unlock); err != nil {
		t.Fatalf("open first: %v", err)
	}
	if _, err := engine.OpenPosition(second, big.NewInt(100), unlock); err != nil {
		t.Fatalf("open second: %v", err)
	}

	clock = unlock
	if _, err := engine.Withdraw(first, 0, big.NewInt(100)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	all, total, err := engine.Stakers(0, 0)
	if err != nil {
		t.Fatalf("stakers: %v", err)
	}
	if total != 2 || len(all) != 2 {
		t.Fatalf("expected 2 stakers all-time, got %d (%d listed)", total, len(all))
	}

	active, total, err := engine.ActiveStakers(0, 0)
	if err != nil {
		t.Fatalf("active stakers: %v", err)
	}
	if total != 1 || len(active) != 1 {
		t.Fatalf("expected 1 active staker, got %d (%d listed)", total, len(active))
	}
	if active[0] != second.String() {
		t.Fatalf("expected %s active, got %s", second.String(), active[0])
	}
}

func TestGetPositionUnknownID(t *testing.T) {
	clock := uint64(1_000)
	engine, _ := newTestEngine(t, 0, &clock)

	if _, err := engine.GetPosition(testAddr(0x01), 0); !errors.Is(err, ErrInvalidPositionID) {
		t.Fatalf("expected ErrInvalidPositionID, got %v", err)
	}
	if _, err := engine.PendingRewards(testAddr(0x01), 0); !errors.Is(err, ErrInvalidPositionID) {
		t.Fatalf("expected ErrInvalidPositionID, got %v", err)
	}
}
