package types

import "math/big"

// Account holds the transferable token balance for a single address. The
// staking engine never mutates accounts directly; balance moves flow through
// the bank ledger so custody stays auditable.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}
