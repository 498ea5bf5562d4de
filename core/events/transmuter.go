package events

import (
	"math/big"
	"strconv"

	"wasabix/core/types"
)

const (
	// TypeTransmuterStaked captures waTokens entering the distribution pool.
	TypeTransmuterStaked = "transmuter.staked"
	// TypeTransmuterUnstaked captures waTokens returned to a staker.
	TypeTransmuterUnstaked = "transmuter.unstaked"
	// TypeTransmuterTransmuted reports bucket balances converted into claimable base funds.
	TypeTransmuterTransmuted = "transmuter.transmuted"
	// TypeTransmuterForced reports a third-party overflow settlement and its bounty.
	TypeTransmuterForced = "transmuter.forceTransmuted"
	// TypeTransmuterClaimed reports realised base funds paid out.
	TypeTransmuterClaimed = "transmuter.claimed"
	// TypeTransmuterDistributed reports yield entering the phased-release buffer.
	TypeTransmuterDistributed = "transmuter.distributed"
	// TypeTransmuterPaused signals the pause flag toggling.
	TypeTransmuterPaused = "transmuter.paused"
	// TypeTransmuterMigrated reports funds moved to a successor transmuter.
	TypeTransmuterMigrated = "transmuter.fundsMigrated"
)

// TransmuterStaked captures a stake entering the pool.
type TransmuterStaked struct {
	Account [20]byte
	Amount  *big.Int
	Total   *big.Int
}

func (TransmuterStaked) EventType() string { return TypeTransmuterStaked }

func (e TransmuterStaked) Event() *types.Event {
	return &types.Event{
		Type: TypeTransmuterStaked,
		Attributes: map[string]string{
			"addr":   formatAddress(e.Account[:]),
			"amount": formatAmount(e.Amount),
			"total":  formatAmount(e.Total),
		},
	}
}

// TransmuterUnstaked captures a stake exit.
type TransmuterUnstaked struct {
	Account [20]byte
	Amount  *big.Int
}

func (TransmuterUnstaked) EventType() string { return TypeTransmuterUnstaked }

func (e TransmuterUnstaked) Event() *types.Event {
	return &types.Event{
		Type: TypeTransmuterUnstaked,
		Attributes: map[string]string{
			"addr":   formatAddress(e.Account[:]),
			"amount": formatAmount(e.Amount),
		},
	}
}

// TransmuterTransmuted reports bucket funds converted against burned stake.
type TransmuterTransmuted struct {
	Account  [20]byte
	Amount   *big.Int
	Overflow *big.Int
}

func (TransmuterTransmuted) EventType() string { return TypeTransmuterTransmuted }

func (e TransmuterTransmuted) Event() *types.Event {
	return &types.Event{
		Type: TypeTransmuterTransmuted,
		Attributes: map[string]string{
			"addr":     formatAddress(e.Account[:]),
			"amount":   formatAmount(e.Amount),
			"overflow": formatAmount(e.Overflow),
		},
	}
}

// TransmuterForced reports a permissionless overflow settlement.
type TransmuterForced struct {
	Caller [20]byte
	Target [20]byte
	Bounty *big.Int
	Paid   *big.Int
}

func (TransmuterForced) EventType() string { return TypeTransmuterForced }

func (e TransmuterForced) Event() *types.Event {
	return &types.Event{
		Type: TypeTransmuterForced,
		Attributes: map[string]string{
			"caller": formatAddress(e.Caller[:]),
			"target": formatAddress(e.Target[:]),
			"bounty": formatAmount(e.Bounty),
			"paid":   formatAmount(e.Paid),
		},
	}
}

// TransmuterClaimed reports realised funds leaving the pool.
type TransmuterClaimed struct {
	Account  [20]byte
	Amount   *big.Int
	Recalled *big.Int
}

func (TransmuterClaimed) EventType() string { return TypeTransmuterClaimed }

func (e TransmuterClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeTransmuterClaimed,
		Attributes: map[string]string{
			"addr":     formatAddress(e.Account[:]),
			"amount":   formatAmount(e.Amount),
			"recalled": formatAmount(e.Recalled),
		},
	}
}

// TransmuterDistributed reports a distribution entering the buffer.
type TransmuterDistributed struct {
	Origin [20]byte
	Amount *big.Int
	Buffer *big.Int
}

func (TransmuterDistributed) EventType() string { return TypeTransmuterDistributed }

func (e TransmuterDistributed) Event() *types.Event {
	return &types.Event{
		Type: TypeTransmuterDistributed,
		Attributes: map[string]string{
			"origin": formatAddress(e.Origin[:]),
			"amount": formatAmount(e.Amount),
			"buffer": formatAmount(e.Buffer),
		},
	}
}

// TransmuterPaused reports a pause toggle by governance or a sentinel.
type TransmuterPaused struct {
	Paused bool
}

func (TransmuterPaused) EventType() string { return TypeTransmuterPaused }

func (e TransmuterPaused) Event() *types.Event {
	return &types.Event{
		Type: TypeTransmuterPaused,
		Attributes: map[string]string{
			"paused": strconv.FormatBool(e.Paused),
		},
	}
}

// TransmuterMigrated reports surplus funds moved to a successor transmuter.
type TransmuterMigrated struct {
	Successor [20]byte
	Amount    *big.Int
	Reserved  *big.Int
}

func (TransmuterMigrated) EventType() string { return TypeTransmuterMigrated }

func (e TransmuterMigrated) Event() *types.Event {
	return &types.Event{
		Type: TypeTransmuterMigrated,
		Attributes: map[string]string{
			"successor": formatAddress(e.Successor[:]),
			"amount":    formatAmount(e.Amount),
			"reserved":  formatAmount(e.Reserved),
		},
	}
}
