package transmuter

import "math/big"

// Config is the governance surface persisted in state. Addresses are raw
// 20-byte payloads.
type Config struct {
	Governance        []byte
	PendingGovernance []byte
	// Sentinels may toggle the pause flag alongside governance.
	Sentinels [][]byte
	// Whitelist enumerates the origins allowed to call Distribute.
	Whitelist [][]byte
	Paused    bool
	// TransmutationPeriod is the phased-release window in blocks.
	TransmutationPeriod uint64
	// PlantableThreshold is the local balance the custody policy targets.
	PlantableThreshold *big.Int
	// PlantableMarginBps is the hysteresis band around the threshold.
	PlantableMarginBps uint64
}

// Normalize backfills nil amounts.
func (c *Config) Normalize() {
	if c.PlantableThreshold == nil {
		c.PlantableThreshold = big.NewInt(0)
	}
	if c.TransmutationPeriod == 0 {
		c.TransmutationPeriod = 1
	}
}

// Ledger is the global distribution state: the undistributed buffer, the
// monotonically increasing dividend-points accumulator and the pool-wide
// staked supply.
type Ledger struct {
	Buffer              *big.Int
	LastDepositBlock    uint64
	TotalDividendPoints *big.Int
	UnclaimedDividends  *big.Int
	TotalSupplyWaTokens *big.Int
}

// Normalize backfills nil amounts.
func (l *Ledger) Normalize() {
	if l.Buffer == nil {
		l.Buffer = big.NewInt(0)
	}
	if l.TotalDividendPoints == nil {
		l.TotalDividendPoints = big.NewInt(0)
	}
	if l.UnclaimedDividends == nil {
		l.UnclaimedDividends = big.NewInt(0)
	}
	if l.TotalSupplyWaTokens == nil {
		l.TotalSupplyWaTokens = big.NewInt(0)
	}
}

// Staker is one depositor's ledger entry. The record persists after a full
// exit; the append-only user registry keeps historical indexes stable for
// pagination.
type Staker struct {
	DepositedWaTokens  *big.Int
	TokensInBucket     *big.Int
	RealisedTokens     *big.Int
	LastDividendPoints *big.Int
}

// Normalize backfills nil amounts.
func (s *Staker) Normalize() {
	if s.DepositedWaTokens == nil {
		s.DepositedWaTokens = big.NewInt(0)
	}
	if s.TokensInBucket == nil {
		s.TokensInBucket = big.NewInt(0)
	}
	if s.RealisedTokens == nil {
		s.RealisedTokens = big.NewInt(0)
	}
	if s.LastDividendPoints == nil {
		s.LastDividendPoints = big.NewInt(0)
	}
}

// Clone deep copies the staker record.
func (s *Staker) Clone() *Staker {
	if s == nil {
		return nil
	}
	out := &Staker{}
	out.DepositedWaTokens = copyBig(s.DepositedWaTokens)
	out.TokensInBucket = copyBig(s.TokensInBucket)
	out.RealisedTokens = copyBig(s.RealisedTokens)
	out.LastDividendPoints = copyBig(s.LastDividendPoints)
	return out
}

// UserInfo is the read-only projection served to clients: the staker record
// plus the dividends a settlement right now would credit.
type UserInfo struct {
	DepositedWaTokens *big.Int
	PendingDividends  *big.Int
	TokensInBucket    *big.Int
	RealisedTokens    *big.Int
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
