package events

import (
	"math/big"
	"testing"
)

func eventAddr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

func TestPositionOpenedAttributes(t *testing.T) {
	evt := PositionOpened{
		Owner:          eventAddr(0x01),
		PositionID:     3,
		Amount:         big.NewInt(100),
		UnlockTime:     5_000,
		LockMultiplier: big.NewInt(2_000_000_000_000_000_000),
		Weight:         big.NewInt(200),
	}
	if evt.EventType() != TypeStakingPositionOpened {
		t.Fatalf("unexpected type %q", evt.EventType())
	}
	payload := evt.Event()
	if payload.Type != TypeStakingPositionOpened {
		t.Fatalf("unexpected payload type %q", payload.Type)
	}
	if payload.Attributes["positionId"] != "3" {
		t.Fatalf("unexpected positionId %q", payload.Attributes["positionId"])
	}
	if payload.Attributes["amount"] != "100" {
		t.Fatalf("unexpected amount %q", payload.Attributes["amount"])
	}
	if payload.Attributes["weight"] != "200" {
		t.Fatalf("unexpected weight %q", payload.Attributes["weight"])
	}
	if payload.Attributes["owner"] == "" {
		t.Fatalf("expected encoded owner address")
	}
}

func TestWithdrawnOmitsZeroRewards(t *testing.T) {
	evt := Withdrawn{
		Owner:       eventAddr(0x01),
		PositionID:  0,
		Amount:      big.NewInt(50),
		Remaining:   big.NewInt(0),
		RewardsPaid: big.NewInt(0),
	}
	payload := evt.Event()
	if _, ok := payload.Attributes["rewardsPaid"]; ok {
		t.Fatalf("zero payout must not be reported")
	}
	if payload.Attributes["remaining"] != "0" {
		t.Fatalf("unexpected remaining %q", payload.Attributes["remaining"])
	}

	evt.RewardsPaid = big.NewInt(7)
	payload = evt.Event()
	if payload.Attributes["rewardsPaid"] != "7" {
		t.Fatalf("unexpected rewardsPaid %q", payload.Attributes["rewardsPaid"])
	}
}

func TestStakingPausedSkipsEmptyPayload(t *testing.T) {
	if evt := (StakingPaused{}).Event(); evt != nil {
		t.Fatalf("empty pause event must collapse to nil, got %+v", evt)
	}

	payload := (StakingPaused{Account: eventAddr(0x01), Operation: "withdraw"}).Event()
	if payload == nil {
		t.Fatalf("expected populated pause event")
	}
	if payload.Attributes["operation"] != "withdraw" {
		t.Fatalf("unexpected operation %q", payload.Attributes["operation"])
	}
}

func TestNilAmountsRenderAsZero(t *testing.T) {
	payload := (EmissionUpdated{}).Event()
	if payload.Attributes["oldRate"] != "0" || payload.Attributes["newRate"] != "0" {
		t.Fatalf("nil rates must render as zero: %+v", payload.Attributes)
	}
}
