package rpc

import (
	"fmt"
	"math/big"
	"strings"

	"wasabix/crypto"
)

// BalanceResult reports the stored account record for an address.
type BalanceResult struct {
	Address        string `json:"address"`
	BalanceBase    string `json:"balanceBase"`
	BalanceWaToken string `json:"balanceWaToken"`
	BalanceWasabi  string `json:"balanceWasabi"`
	Nonce          uint64 `json:"nonce"`
}

// PositionResult summarises a vault position.
type PositionResult struct {
	Address        string `json:"address"`
	TotalDeposited string `json:"totalDeposited"`
	TotalDebt      string `json:"totalDebt"`
}

// AdapterEntryResult describes one adapter list entry.
type AdapterEntryResult struct {
	VaultID        uint64 `json:"vaultId"`
	AdapterID      string `json:"adapterId"`
	TotalDeposited string `json:"totalDeposited"`
}

// TransmuterUserResult reflects a staker's projected ledger slice.
type TransmuterUserResult struct {
	Address           string `json:"address"`
	DepositedWaTokens string `json:"depositedWaTokens"`
	PendingDividends  string `json:"pendingDividends"`
	TokensInBucket    string `json:"tokensInBucket"`
	RealisedTokens    string `json:"realisedTokens"`
}

// TransmuterLedgerResult mirrors the global distribution ledger.
type TransmuterLedgerResult struct {
	Buffer              string `json:"buffer"`
	LastDepositBlock    uint64 `json:"lastDepositBlock"`
	TotalSupplyWaTokens string `json:"totalSupplyWaTokens"`
}

// EscrowLockResult reports a decay lock's externally visible shape.
type EscrowLockResult struct {
	Address      string `json:"address"`
	LockedAmount string `json:"lockedAmount"`
	LockedEnd    uint64 `json:"lockedEnd"`
	Power        string `json:"power"`
}

// AmountResult wraps a single returned amount.
type AmountResult struct {
	Amount string `json:"amount"`
}

func formatBig(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func decodeBech32(raw string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return crypto.Address{}, fmt.Errorf("address is required")
	}
	return crypto.DecodeAddress(trimmed)
}

func parseAmount(amount string) (*big.Int, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return value, nil
}

// parseOptionalAmount accepts empty or zero amounts, used where exactly one of
// two amounts may be supplied.
func parseOptionalAmount(amount string) (*big.Int, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return value, nil
}
