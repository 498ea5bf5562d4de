package types

import "math/big"

// Account is the balance record for a single protocol address. Every asset the
// core engines move lives here: the underlying base asset backing the system,
// the synthetic waToken debt token, and the WASABI governance token. Amounts
// are denominated in wei and expressed as big integers to match on-chain
// precision. Arbitrary reward tokens handled by the voting escrow use the
// state manager's symbol-keyed balance surface instead.
type Account struct {
	Nonce          uint64   `json:"nonce"`
	BalanceBase    *big.Int `json:"balanceBase"`
	BalanceWaToken *big.Int `json:"balanceWaToken"`
	BalanceWasabi  *big.Int `json:"balanceWasabi"`
}
