package votingescrow

import "math/big"

// Config is the governance surface persisted in state.
type Config struct {
	Governance        []byte
	PendingGovernance []byte
	// Collector is the address external reward deposits are pulled from.
	Collector   []byte
	Initialized bool
}

// Global carries the pool-wide accrual state. TotalPower is the sum of each
// account's recorded (last-touch) power, not the live decayed sum.
type Global struct {
	TotalPower      *big.Int
	LastUpdateBlock uint64
	// RatePerBlock is the native-token emission feeding stream zero.
	RatePerBlock *big.Int
}

// Normalize backfills nil amounts.
func (g *Global) Normalize() {
	if g.TotalPower == nil {
		g.TotalPower = big.NewInt(0)
	}
	if g.RatePerBlock == nil {
		g.RatePerBlock = big.NewInt(0)
	}
}

// Stream is one reward token's accrual channel. AccumulatorRaw is the
// fixed-point reward-per-power counter in raw UQ192x64 form.
type Stream struct {
	Token          string
	NeedsVesting   bool
	AccumulatorRaw *big.Int
}

// Normalize backfills nil amounts.
func (s *Stream) Normalize() {
	if s.AccumulatorRaw == nil {
		s.AccumulatorRaw = big.NewInt(0)
	}
}

// Lock is one account's position. At most one lock per address; Amount drops
// to zero on withdraw but Start and End stay readable. SnapshotsRaw and
// Earned are indexed by stream and padded on stream addition at settlement.
type Lock struct {
	Amount       *big.Int
	Start        uint64
	End          uint64
	// RecordedPower is the decayed power as of this account's last touch;
	// it is the value folded into Global.TotalPower.
	RecordedPower *big.Int
	SnapshotsRaw  []*big.Int
	Earned        []*big.Int
}

// Normalize backfills nil amounts and pads the per-stream slices out to the
// given stream count. New streams start snapshotted at zero, which is safe
// because accumulators only ever grow from zero after the stream exists.
func (l *Lock) Normalize(streams int) {
	if l.Amount == nil {
		l.Amount = big.NewInt(0)
	}
	if l.RecordedPower == nil {
		l.RecordedPower = big.NewInt(0)
	}
	for len(l.SnapshotsRaw) < streams {
		l.SnapshotsRaw = append(l.SnapshotsRaw, big.NewInt(0))
	}
	for len(l.Earned) < streams {
		l.Earned = append(l.Earned, big.NewInt(0))
	}
	for i := range l.SnapshotsRaw {
		if l.SnapshotsRaw[i] == nil {
			l.SnapshotsRaw[i] = big.NewInt(0)
		}
	}
	for i := range l.Earned {
		if l.Earned[i] == nil {
			l.Earned[i] = big.NewInt(0)
		}
	}
}

// Clone deep copies the lock.
func (l *Lock) Clone() *Lock {
	if l == nil {
		return nil
	}
	out := &Lock{
		Start:         l.Start,
		End:           l.End,
		Amount:        copyBig(l.Amount),
		RecordedPower: copyBig(l.RecordedPower),
	}
	for _, s := range l.SnapshotsRaw {
		out.SnapshotsRaw = append(out.SnapshotsRaw, copyBig(s))
	}
	for _, e := range l.Earned {
		out.Earned = append(out.Earned, copyBig(e))
	}
	return out
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
