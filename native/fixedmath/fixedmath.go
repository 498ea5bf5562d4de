package fixedmath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// UQ192x64 is an unsigned binary fixed-point number with 192 integer bits and
// 64 fractional bits, carried in a single 256-bit word. The reward engines use
// it for per-unit weight accumulators where repeated integer division would
// otherwise bleed value: a distribution divided across total stake keeps 64
// bits of sub-wei precision until the final floor at settlement.
type UQ192x64 struct {
	v uint256.Int
}

const fractionalBits = 64

var (
	// ErrOverflow is returned when a value or operation exceeds 192 integer bits.
	ErrOverflow = errors.New("fixedmath: overflow")
	// ErrUnderflow is returned when a subtraction would produce a negative value.
	ErrUnderflow = errors.New("fixedmath: underflow")
	// ErrDivisionByZero is returned for a zero divisor.
	ErrDivisionByZero = errors.New("fixedmath: division by zero")
	// ErrNegative is returned when converting a negative big integer.
	ErrNegative = errors.New("fixedmath: negative value")
)

// Zero returns the additive identity.
func Zero() UQ192x64 { return UQ192x64{} }

// FromUint64 converts an integer into fixed-point representation.
func FromUint64(x uint64) UQ192x64 {
	var out UQ192x64
	out.v.SetUint64(x)
	out.v.Lsh(&out.v, fractionalBits)
	return out
}

// FromBig converts a non-negative big integer into fixed-point representation.
func FromBig(x *big.Int) (UQ192x64, error) {
	if x == nil {
		return UQ192x64{}, nil
	}
	if x.Sign() < 0 {
		return UQ192x64{}, ErrNegative
	}
	if x.BitLen() > 256-fractionalBits {
		return UQ192x64{}, ErrOverflow
	}
	var out UQ192x64
	out.v.SetFromBig(x)
	out.v.Lsh(&out.v, fractionalBits)
	return out, nil
}

// FromRaw reconstructs a value from its raw 256-bit representation, as
// produced by Raw. Used when decoding persisted accumulators.
func FromRaw(raw *big.Int) (UQ192x64, error) {
	if raw == nil {
		return UQ192x64{}, nil
	}
	if raw.Sign() < 0 {
		return UQ192x64{}, ErrNegative
	}
	if raw.BitLen() > 256 {
		return UQ192x64{}, ErrOverflow
	}
	var out UQ192x64
	out.v.SetFromBig(raw)
	return out, nil
}

// Raw exposes the underlying 256-bit word for persistence.
func (x UQ192x64) Raw() *big.Int {
	return x.v.ToBig()
}

// Div returns a/b as a fixed-point value, keeping 64 fractional bits of the
// quotient.
func Div(a, b *big.Int) (UQ192x64, error) {
	if b == nil || b.Sign() == 0 {
		return UQ192x64{}, ErrDivisionByZero
	}
	if a == nil || a.Sign() == 0 {
		return UQ192x64{}, nil
	}
	if a.Sign() < 0 || b.Sign() < 0 {
		return UQ192x64{}, ErrNegative
	}
	if a.BitLen() > 256-fractionalBits {
		return UQ192x64{}, ErrOverflow
	}
	var num, den uint256.Int
	num.SetFromBig(a)
	num.Lsh(&num, fractionalBits)
	den.SetFromBig(b)
	var out UQ192x64
	out.v.Div(&num, &den)
	return out, nil
}

// Add returns x+y, failing on 256-bit overflow.
func (x UQ192x64) Add(y UQ192x64) (UQ192x64, error) {
	var out UQ192x64
	if _, carry := out.v.AddOverflow(&x.v, &y.v); carry {
		return UQ192x64{}, ErrOverflow
	}
	return out, nil
}

// Sub returns x-y, failing when y exceeds x.
func (x UQ192x64) Sub(y UQ192x64) (UQ192x64, error) {
	if x.v.Lt(&y.v) {
		return UQ192x64{}, ErrUnderflow
	}
	var out UQ192x64
	out.v.Sub(&x.v, &y.v)
	return out, nil
}

// MulBig scales the fixed-point value by a non-negative integer and returns
// the floored integer result. This is the settlement step: accumulator delta
// times stake, truncated to whole wei.
func (x UQ192x64) MulBig(scale *big.Int) (*big.Int, error) {
	if scale == nil || scale.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if scale.Sign() < 0 {
		return nil, ErrNegative
	}
	product := new(big.Int).Mul(x.v.ToBig(), scale)
	return product.Rsh(product, fractionalBits), nil
}

// Cmp compares two fixed-point values.
func (x UQ192x64) Cmp(y UQ192x64) int {
	return x.v.Cmp(&y.v)
}

// IsZero reports whether the value is exactly zero.
func (x UQ192x64) IsZero() bool {
	return x.v.IsZero()
}

// Floor truncates the fractional bits and returns the integer part.
func (x UQ192x64) Floor() *big.Int {
	var out uint256.Int
	out.Rsh(&x.v, fractionalBits)
	return out.ToBig()
}
