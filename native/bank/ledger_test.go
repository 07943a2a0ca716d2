package bank

import (
	"errors"
	"math/big"
	"testing"

	"stakevault/core/types"
	"stakevault/crypto"
)

type mapState struct {
	accounts map[string]*types.Account
}

func newMapState() *mapState {
	return &mapState{accounts: make(map[string]*types.Account)}
}

func (m *mapState) GetAccount(addr crypto.Address) (*types.Account, error) {
	acc, ok := m.accounts[string(addr.Bytes())]
	if !ok {
		return nil, nil
	}
	clone := *acc
	if acc.Balance != nil {
		clone.Balance = new(big.Int).Set(acc.Balance)
	}
	return &clone, nil
}

func (m *mapState) PutAccount(addr crypto.Address, account *types.Account) error {
	clone := *account
	if account.Balance != nil {
		clone.Balance = new(big.Int).Set(account.Balance)
	}
	m.accounts[string(addr.Bytes())] = &clone
	return nil
}

func ledgerAddr(last byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = last
	return crypto.MustNewAddress(crypto.VaultPrefix, raw)
}

func TestTransferMovesBalance(t *testing.T) {
	state := newMapState()
	ledger := NewLedger(state)

	alice := ledgerAddr(0x01)
	bob := ledgerAddr(0x02)
	if err := ledger.Mint(alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := ledger.Transfer(alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	aliceBalance, _ := ledger.BalanceOf(alice)
	bobBalance, _ := ledger.BalanceOf(bob)
	if aliceBalance.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("expected sender balance 60, got %s", aliceBalance)
	}
	if bobBalance.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("expected recipient balance 40, got %s", bobBalance)
	}
}

func TestTransferRejectsOverdraft(t *testing.T) {
	state := newMapState()
	ledger := NewLedger(state)

	alice := ledgerAddr(0x01)
	bob := ledgerAddr(0x02)
	if err := ledger.Mint(alice, big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := ledger.Transfer(alice, bob, big.NewInt(11)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	aliceBalance, _ := ledger.BalanceOf(alice)
	bobBalance, _ := ledger.BalanceOf(bob)
	if aliceBalance.Cmp(big.NewInt(10)) != 0 || bobBalance.Sign() != 0 {
		t.Fatalf("failed transfer mutated balances: %s / %s", aliceBalance, bobBalance)
	}
}

func TestTransferRejectsNonPositiveAmounts(t *testing.T) {
	ledger := NewLedger(newMapState())
	alice := ledgerAddr(0x01)
	bob := ledgerAddr(0x02)

	if err := ledger.Transfer(alice, bob, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for nil, got %v", err)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(-5)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
}

func TestSelfTransferIsNoOp(t *testing.T) {
	state := newMapState()
	ledger := NewLedger(state)

	alice := ledgerAddr(0x01)
	if err := ledger.Mint(alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(alice, alice, big.NewInt(30)); err != nil {
		t.Fatalf("self transfer: %v", err)
	}
	balance, _ := ledger.BalanceOf(alice)
	if balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("self transfer changed balance to %s", balance)
	}
	if err := ledger.Transfer(alice, alice, big.NewInt(101)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected overdraft check on self transfer, got %v", err)
	}
}

func TestBalanceOfUnknownAccountIsZero(t *testing.T) {
	ledger := NewLedger(newMapState())
	balance, err := ledger.BalanceOf(ledgerAddr(0x09))
	if err != nil {
		t.Fatalf("balance of: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("expected zero balance, got %s", balance)
	}
}
