package vault

import "math/big"

// Position tracks one user's collateralized debt position. Amounts are
// denominated in wei. Positions are created on first deposit and never
// deleted; a fully exited position simply sits at zero.
type Position struct {
	// TotalDeposited is the collateral currently credited to the position.
	TotalDeposited *big.Int
	// TotalDebt is the outstanding waToken debt minted against it.
	TotalDebt *big.Int
}

// Normalize backfills nil amounts so persisted positions always round trip.
func (p *Position) Normalize() {
	if p.TotalDeposited == nil {
		p.TotalDeposited = big.NewInt(0)
	}
	if p.TotalDebt == nil {
		p.TotalDebt = big.NewInt(0)
	}
}

// Clone deep copies the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	out := &Position{}
	if p.TotalDeposited != nil {
		out.TotalDeposited = new(big.Int).Set(p.TotalDeposited)
	}
	if p.TotalDebt != nil {
		out.TotalDebt = new(big.Int).Set(p.TotalDebt)
	}
	out.Normalize()
	return out
}

// Config is the governance-controlled vault configuration persisted in state.
// Addresses are raw 20-byte payloads.
type Config struct {
	Governance        []byte
	PendingGovernance []byte
	// Rewards receives the harvest fee skim.
	Rewards []byte
	// FeeCollector receives mint and withdrawal fees.
	FeeCollector []byte
	// Transmuter is the module address receiving distributions.
	Transmuter []byte
	// CollateralizationLimit is the minimum deposited/debt ratio, 1e18 scaled.
	CollateralizationLimit *big.Int
	MintFeeBps             uint64
	WithdrawFeeBps         uint64
	HarvestFeeBps          uint64
	// FlushActivator is the local balance threshold that triggers an
	// automatic flush during deposit.
	FlushActivator *big.Int
	Initialized    bool
	// EmergencyExit halts mint and harvest while leaving repay, withdraw and
	// liquidate open.
	EmergencyExit bool
}

// Normalize backfills nil amounts.
func (c *Config) Normalize() {
	if c.CollateralizationLimit == nil {
		c.CollateralizationLimit = big.NewInt(0)
	}
	if c.FlushActivator == nil {
		c.FlushActivator = big.NewInt(0)
	}
}
