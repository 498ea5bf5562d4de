package yield

import "math/big"

// Entry is one adapter binding in an ordered, append-only custody list plus
// the deposited value tracked at last observation. Only the last entry is
// active for new deposits; earlier entries are legacy and expected to drain
// to zero over time. Index equals identity: entries are never deleted so
// historical vault IDs stay stable for recall and pagination APIs.
type Entry struct {
	AdapterID      string
	TotalDeposited *big.Int
}

// Clone deep copies the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	out := &Entry{AdapterID: e.AdapterID, TotalDeposited: big.NewInt(0)}
	if e.TotalDeposited != nil {
		out.TotalDeposited = new(big.Int).Set(e.TotalDeposited)
	}
	return out
}

// Normalize backfills nil amounts so persisted entries always round trip.
func (e *Entry) Normalize() {
	if e.TotalDeposited == nil {
		e.TotalDeposited = big.NewInt(0)
	}
}

// ActiveIndex returns the index of the entry accepting new deposits, or -1
// when the list is empty.
func ActiveIndex(entries []*Entry) int {
	return len(entries) - 1
}

// TotalDeposited sums the tracked deposited value across all entries.
func TotalDeposited(entries []*Entry) *big.Int {
	total := big.NewInt(0)
	for _, e := range entries {
		if e != nil && e.TotalDeposited != nil {
			total.Add(total, e.TotalDeposited)
		}
	}
	return total
}
