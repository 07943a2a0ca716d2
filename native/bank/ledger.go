package bank

import (
	"errors"
	"math/big"

	"stakevault/core/types"
	"stakevault/crypto"
)

var (
	errNilState = errors.New("bank: state not configured")

	// ErrInvalidAmount rejects nil, zero or negative transfer amounts.
	ErrInvalidAmount = errors.New("bank: amount must be positive")
	// ErrInsufficientBalance rejects transfers exceeding the sender balance.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
)

// State captures the account persistence the ledger needs from the
// surrounding state implementation.
type State interface {
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
}

// Ledger moves transferable balances between accounts. The staking engine
// depends on it only through its BalanceOf/Transfer surface so tests can
// substitute an in-memory double.
type Ledger struct {
	state State
}

// NewLedger constructs a ledger over the supplied account state.
func NewLedger(state State) *Ledger {
	return &Ledger{state: state}
}

// BalanceOf reports the transferable balance held by an address. Unknown
// accounts report a zero balance.
func (l *Ledger) BalanceOf(addr crypto.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	acc, err := l.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil || acc.Balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(acc.Balance), nil
}

// Transfer moves amount from one account to another, failing without any
// mutation when the sender balance does not cover it.
func (l *Ledger) Transfer(from, to crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	sender, err := l.ensureAccount(from)
	if err != nil {
		return err
	}
	if sender.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	// Self-transfers validate like any other but move nothing.
	if string(from.Bytes()) == string(to.Bytes()) {
		return nil
	}
	recipient, err := l.ensureAccount(to)
	if err != nil {
		return err
	}

	sender.Balance = new(big.Int).Sub(sender.Balance, amount)
	recipient.Balance = new(big.Int).Add(recipient.Balance, amount)

	if err := l.state.PutAccount(from, sender); err != nil {
		return err
	}
	return l.state.PutAccount(to, recipient)
}

// Mint credits freshly issued balance to an account. Used at genesis and by
// tooling; the staking engine itself never mints.
func (l *Ledger) Mint(to crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	acc, err := l.ensureAccount(to)
	if err != nil {
		return err
	}
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
	return l.state.PutAccount(to, acc)
}

func (l *Ledger) ensureAccount(addr crypto.Address) (*types.Account, error) {
	acc, err := l.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = &types.Account{}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc, nil
}
