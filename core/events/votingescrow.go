package events

import (
	"math/big"
	"strconv"

	"wasabix/core/types"
)

const (
	// TypeEscrowLockCreated reports a new governance-token lock.
	TypeEscrowLockCreated = "votingescrow.lockCreated"
	// TypeEscrowAmountAdded reports extra tokens joining an existing lock.
	TypeEscrowAmountAdded = "votingescrow.amountAdded"
	// TypeEscrowLockExtended reports a lock duration extension.
	TypeEscrowLockExtended = "votingescrow.lockExtended"
	// TypeEscrowWithdrawn reports an expired lock being withdrawn.
	TypeEscrowWithdrawn = "votingescrow.withdrawn"
	// TypeEscrowRewardCollected reports an external reward deposit being distributed.
	TypeEscrowRewardCollected = "votingescrow.rewardCollected"
	// TypeEscrowEarningVested reports settled rewards paid out or forwarded to vesting.
	TypeEscrowEarningVested = "votingescrow.earningVested"
)

// EscrowLockCreated captures a fresh lock.
type EscrowLockCreated struct {
	Account [20]byte
	Amount  *big.Int
	Start   uint64
	End     uint64
}

func (EscrowLockCreated) EventType() string { return TypeEscrowLockCreated }

func (e EscrowLockCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeEscrowLockCreated,
		Attributes: map[string]string{
			"addr":   formatAddress(e.Account[:]),
			"amount": formatAmount(e.Amount),
			"start":  strconv.FormatUint(e.Start, 10),
			"end":    strconv.FormatUint(e.End, 10),
		},
	}
}

// EscrowAmountAdded captures additional tokens joining a live lock.
type EscrowAmountAdded struct {
	Account [20]byte
	Amount  *big.Int
	Total   *big.Int
}

func (EscrowAmountAdded) EventType() string { return TypeEscrowAmountAdded }

func (e EscrowAmountAdded) Event() *types.Event {
	return &types.Event{
		Type: TypeEscrowAmountAdded,
		Attributes: map[string]string{
			"addr":   formatAddress(e.Account[:]),
			"amount": formatAmount(e.Amount),
			"total":  formatAmount(e.Total),
		},
	}
}

// EscrowLockExtended captures a duration extension.
type EscrowLockExtended struct {
	Account [20]byte
	End     uint64
}

func (EscrowLockExtended) EventType() string { return TypeEscrowLockExtended }

func (e EscrowLockExtended) Event() *types.Event {
	return &types.Event{
		Type: TypeEscrowLockExtended,
		Attributes: map[string]string{
			"addr": formatAddress(e.Account[:]),
			"end":  strconv.FormatUint(e.End, 10),
		},
	}
}

// EscrowWithdrawn captures an expired lock exit.
type EscrowWithdrawn struct {
	Account [20]byte
	Amount  *big.Int
}

func (EscrowWithdrawn) EventType() string { return TypeEscrowWithdrawn }

func (e EscrowWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeEscrowWithdrawn,
		Attributes: map[string]string{
			"addr":   formatAddress(e.Account[:]),
			"amount": formatAmount(e.Amount),
		},
	}
}

// EscrowRewardCollected captures an external reward pull from the collector.
type EscrowRewardCollected struct {
	Token  string
	Amount *big.Int
}

func (EscrowRewardCollected) EventType() string { return TypeEscrowRewardCollected }

func (e EscrowRewardCollected) Event() *types.Event {
	return &types.Event{
		Type: TypeEscrowRewardCollected,
		Attributes: map[string]string{
			"token":  e.Token,
			"amount": formatAmount(e.Amount),
		},
	}
}

// EscrowEarningVested captures a settlement payout per stream.
type EscrowEarningVested struct {
	Account [20]byte
	Token   string
	Amount  *big.Int
	Vested  bool
}

func (EscrowEarningVested) EventType() string { return TypeEscrowEarningVested }

func (e EscrowEarningVested) Event() *types.Event {
	return &types.Event{
		Type: TypeEscrowEarningVested,
		Attributes: map[string]string{
			"addr":   formatAddress(e.Account[:]),
			"token":  e.Token,
			"amount": formatAmount(e.Amount),
			"vested": strconv.FormatBool(e.Vested),
		},
	}
}
