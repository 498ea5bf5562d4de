package fixedmath

import (
	"math/big"
	"testing"
)

func TestDivKeepsFractionalPrecision(t *testing.T) {
	// 1 / 3 floored as an integer is 0; fixed point keeps the fraction until
	// scaled back up.
	q, err := Div(big.NewInt(1), big.NewInt(3))
	if err != nil {
		t.Fatalf("div: %v", err)
	}
	if q.Floor().Sign() != 0 {
		t.Fatalf("expected fractional quotient, floor = %s", q.Floor())
	}
	scaled, err := q.MulBig(big.NewInt(3_000_000))
	if err != nil {
		t.Fatalf("mul: %v", err)
	}
	// 3e6 * (1/3) = 1e6 minus at most one unit of truncation.
	if scaled.Cmp(big.NewInt(999_999)) < 0 || scaled.Cmp(big.NewInt(1_000_000)) > 0 {
		t.Fatalf("unexpected scaled value %s", scaled)
	}
}

func TestDivByZero(t *testing.T) {
	if _, err := Div(big.NewInt(1), big.NewInt(0)); err != ErrDivisionByZero {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
}

func TestAccumulatorRoundTrip(t *testing.T) {
	// Simulate the reward engines: accumulate per-unit quotients, persist the
	// raw word, reload and settle against a stake.
	acc := Zero()
	stakeTotal := big.NewInt(997)
	for i := 0; i < 5; i++ {
		q, err := Div(big.NewInt(200), stakeTotal)
		if err != nil {
			t.Fatalf("div: %v", err)
		}
		acc, err = q.Add(acc)
		if err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	reloaded, err := FromRaw(acc.Raw())
	if err != nil {
		t.Fatalf("from raw: %v", err)
	}
	if reloaded.Cmp(acc) != 0 {
		t.Fatal("raw round trip changed the value")
	}
	owed, err := reloaded.MulBig(stakeTotal)
	if err != nil {
		t.Fatalf("mul: %v", err)
	}
	// 5 deposits of 200 over a constant stake settle to the full 1000, within
	// one wei of truncation.
	if owed.Cmp(big.NewInt(999)) < 0 || owed.Cmp(big.NewInt(1000)) > 0 {
		t.Fatalf("expected ~1000 owed, got %s", owed)
	}
}

func TestSubUnderflow(t *testing.T) {
	a := FromUint64(1)
	b := FromUint64(2)
	if _, err := a.Sub(b); err != ErrUnderflow {
		t.Fatalf("expected ErrUnderflow, got %v", err)
	}
	diff, err := b.Sub(a)
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	if diff.Floor().Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected 1, got %s", diff.Floor())
	}
}

func TestFromBigRejectsNegativeAndOversized(t *testing.T) {
	if _, err := FromBig(big.NewInt(-1)); err != ErrNegative {
		t.Fatalf("expected ErrNegative, got %v", err)
	}
	huge := new(big.Int).Lsh(big.NewInt(1), 193)
	if _, err := FromBig(huge); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}
