package events

import (
	"math/big"
	"strconv"

	"wasabix/core/types"
)

const (
	// TypeVaultDeposited captures collateral entering a position.
	TypeVaultDeposited = "vault.deposited"
	// TypeVaultWithdrawn captures collateral leaving a position net of the withdrawal fee.
	TypeVaultWithdrawn = "vault.withdrawn"
	// TypeVaultMinted is emitted when waTokens are minted against a position.
	TypeVaultMinted = "vault.minted"
	// TypeVaultRepaid is emitted when debt is reduced with waTokens and/or base funds.
	TypeVaultRepaid = "vault.repaid"
	// TypeVaultLiquidated captures a self-liquidation routing collateral to the transmuter.
	TypeVaultLiquidated = "vault.liquidated"
	// TypeVaultFlushed signals idle collateral being planted into the active adapter.
	TypeVaultFlushed = "vault.flushed"
	// TypeVaultHarvested reports adapter yield split between the fee collector and the transmuter.
	TypeVaultHarvested = "vault.harvested"
	// TypeVaultMigrated is emitted when a new active adapter is appended.
	TypeVaultMigrated = "vault.adapterMigrated"
	// TypeVaultFundsRecalled captures funds pulled back from a specific adapter entry.
	TypeVaultFundsRecalled = "vault.fundsRecalled"
	// TypeVaultParamUpdated is the shared change-notification for governance setters.
	TypeVaultParamUpdated = "vault.paramUpdated"
)

// VaultDeposited captures the position delta realised on deposit.
type VaultDeposited struct {
	Account        [20]byte
	Amount         *big.Int
	TotalDeposited *big.Int
	Flushed        bool
}

// EventType satisfies the Event interface.
func (VaultDeposited) EventType() string { return TypeVaultDeposited }

// Event converts the structured payload into a broadcastable event.
func (e VaultDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultDeposited,
		Attributes: map[string]string{
			"addr":           formatAddress(e.Account[:]),
			"amount":         formatAmount(e.Amount),
			"totalDeposited": formatAmount(e.TotalDeposited),
			"flushed":        strconv.FormatBool(e.Flushed),
		},
	}
}

// VaultWithdrawn captures the fee split applied on withdrawal.
type VaultWithdrawn struct {
	Account [20]byte
	Amount  *big.Int
	Fee     *big.Int
}

func (VaultWithdrawn) EventType() string { return TypeVaultWithdrawn }

func (e VaultWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultWithdrawn,
		Attributes: map[string]string{
			"addr":   formatAddress(e.Account[:]),
			"amount": formatAmount(e.Amount),
			"fee":    formatAmount(e.Fee),
		},
	}
}

// VaultMinted reports waTokens created against collateral.
type VaultMinted struct {
	Account   [20]byte
	Amount    *big.Int
	Fee       *big.Int
	TotalDebt *big.Int
}

func (VaultMinted) EventType() string { return TypeVaultMinted }

func (e VaultMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultMinted,
		Attributes: map[string]string{
			"addr":      formatAddress(e.Account[:]),
			"amount":    formatAmount(e.Amount),
			"fee":       formatAmount(e.Fee),
			"totalDebt": formatAmount(e.TotalDebt),
		},
	}
}

// VaultRepaid reports a debt reduction.
type VaultRepaid struct {
	Account       [20]byte
	WaTokenAmount *big.Int
	BaseAmount    *big.Int
	TotalDebt     *big.Int
}

func (VaultRepaid) EventType() string { return TypeVaultRepaid }

func (e VaultRepaid) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultRepaid,
		Attributes: map[string]string{
			"addr":      formatAddress(e.Account[:]),
			"waTokens":  formatAmount(e.WaTokenAmount),
			"base":      formatAmount(e.BaseAmount),
			"totalDebt": formatAmount(e.TotalDebt),
		},
	}
}

// VaultLiquidated reports collateral routed to the transmuter to retire debt.
type VaultLiquidated struct {
	Account  [20]byte
	Amount   *big.Int
	Recalled *big.Int
}

func (VaultLiquidated) EventType() string { return TypeVaultLiquidated }

func (e VaultLiquidated) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultLiquidated,
		Attributes: map[string]string{
			"addr":     formatAddress(e.Account[:]),
			"amount":   formatAmount(e.Amount),
			"recalled": formatAmount(e.Recalled),
		},
	}
}

// VaultFlushed reports idle collateral planted into the active adapter entry.
type VaultFlushed struct {
	AdapterID string
	Amount    *big.Int
}

func (VaultFlushed) EventType() string { return TypeVaultFlushed }

func (e VaultFlushed) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultFlushed,
		Attributes: map[string]string{
			"adapter": e.AdapterID,
			"amount":  formatAmount(e.Amount),
		},
	}
}

// VaultHarvested reports the yield split of a harvest call.
type VaultHarvested struct {
	AdapterID   string
	Harvested   *big.Int
	Fee         *big.Int
	Distributed *big.Int
}

func (VaultHarvested) EventType() string { return TypeVaultHarvested }

func (e VaultHarvested) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultHarvested,
		Attributes: map[string]string{
			"adapter":     e.AdapterID,
			"harvested":   formatAmount(e.Harvested),
			"fee":         formatAmount(e.Fee),
			"distributed": formatAmount(e.Distributed),
		},
	}
}

// VaultMigrated reports a newly appended active adapter.
type VaultMigrated struct {
	AdapterID string
	VaultID   uint64
}

func (VaultMigrated) EventType() string { return TypeVaultMigrated }

func (e VaultMigrated) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultMigrated,
		Attributes: map[string]string{
			"adapter": e.AdapterID,
			"vaultId": strconv.FormatUint(e.VaultID, 10),
		},
	}
}

// VaultFundsRecalled reports an explicit recall from an adapter entry.
type VaultFundsRecalled struct {
	VaultID   uint64
	Requested *big.Int
	Withdrawn *big.Int
}

func (VaultFundsRecalled) EventType() string { return TypeVaultFundsRecalled }

func (e VaultFundsRecalled) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultFundsRecalled,
		Attributes: map[string]string{
			"vaultId":   strconv.FormatUint(e.VaultID, 10),
			"requested": formatAmount(e.Requested),
			"withdrawn": formatAmount(e.Withdrawn),
		},
	}
}

// VaultParamUpdated is the change notification emitted by governance setters.
type VaultParamUpdated struct {
	Param string
	Value string
}

func (VaultParamUpdated) EventType() string { return TypeVaultParamUpdated }

func (e VaultParamUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultParamUpdated,
		Attributes: map[string]string{
			"param": e.Param,
			"value": e.Value,
		},
	}
}
