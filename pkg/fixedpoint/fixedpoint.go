// Package fixedpoint provides 18-decimal fixed-point amounts for token and
// payment accounting. All operations truncate toward zero and surface
// overflow instead of wrapping, so accounting can never silently lose or
// mint value.
package fixedpoint

import (
	"errors"
	"strings"

	"github.com/holiman/uint256"
)

// Scale is the number of decimals in the fixed-point representation.
const Scale = 18

var (
	ErrOverflow  = errors.New("fixedpoint: overflow")
	ErrUnderflow = errors.New("fixedpoint: underflow")
	ErrDivByZero = errors.New("fixedpoint: division by zero")
	ErrParse     = errors.New("fixedpoint: invalid decimal string")
)

// wad is 10^18, the unit of the fixed-point scale.
var wad = uint256.NewInt(1_000_000_000_000_000_000)

// Amount is an unsigned 18-decimal fixed-point value. The zero value is zero.
type Amount struct {
	v uint256.Int
}

// Zero returns the zero amount.
func Zero() Amount {
	return Amount{}
}

// FromUint64 builds an amount from raw smallest units.
func FromUint64(u uint64) Amount {
	var a Amount
	a.v.SetUint64(u)
	return a
}

// One returns 1.0 in fixed-point scale (10^18 smallest units).
func One() Amount {
	var a Amount
	a.v.Set(wad)
	return a
}

// Parse reads a base-10 decimal string such as "12" or "1.2". At most 18
// fractional digits are accepted; precision is never silently dropped.
func Parse(s string) (Amount, error) {
	if s == "" || s == "." {
		return Amount{}, ErrParse
	}
	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > Scale {
		return Amount{}, ErrParse
	}

	var a Amount
	if err := a.v.SetFromDecimal(intPart); err != nil {
		return Amount{}, ErrParse
	}
	if _, overflow := a.v.MulOverflow(&a.v, wad); overflow {
		return Amount{}, ErrOverflow
	}
	if fracPart != "" {
		var f uint256.Int
		if err := f.SetFromDecimal(fracPart + strings.Repeat("0", Scale-len(fracPart))); err != nil {
			return Amount{}, ErrParse
		}
		if _, overflow := a.v.AddOverflow(&a.v, &f); overflow {
			return Amount{}, ErrOverflow
		}
	}
	return a, nil
}

// MustParse is Parse for constants in tests and wiring.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Units builds whole units at the fixed-point scale: Units(5) == 5 * 10^18.
func Units(u uint64) Amount {
	var a Amount
	_, overflow := a.v.MulOverflow(uint256.NewInt(u), wad)
	if overflow {
		panic(ErrOverflow)
	}
	return a
}

func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// Cmp returns -1, 0 or 1 comparing a to b.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

func (a Amount) Equal(b Amount) bool {
	return a.v.Eq(&b.v)
}

func (a Amount) Lt(b Amount) bool {
	return a.v.Lt(&b.v)
}

func (a Amount) Gt(b Amount) bool {
	return a.v.Gt(&b.v)
}

// Add returns a+b, failing on overflow.
func (a Amount) Add(b Amount) (Amount, error) {
	var r Amount
	if _, overflow := r.v.AddOverflow(&a.v, &b.v); overflow {
		return Amount{}, ErrOverflow
	}
	return r, nil
}

// Sub returns a-b, failing on underflow.
func (a Amount) Sub(b Amount) (Amount, error) {
	var r Amount
	if _, underflow := r.v.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, ErrUnderflow
	}
	return r, nil
}

// MulDiv returns a*b/d with full intermediate precision, truncated toward zero.
func (a Amount) MulDiv(b, d Amount) (Amount, error) {
	if d.v.IsZero() {
		return Amount{}, ErrDivByZero
	}
	var r Amount
	if _, overflow := r.v.MulDivOverflow(&a.v, &b.v, &d.v); overflow {
		return Amount{}, ErrOverflow
	}
	return r, nil
}

// WadMul returns a*b/10^18 truncated, the fixed-point product.
func (a Amount) WadMul(b Amount) (Amount, error) {
	return a.MulDiv(b, Amount{v: *wad})
}

// WadDiv returns a*10^18/b truncated, the fixed-point quotient.
func (a Amount) WadDiv(b Amount) (Amount, error) {
	if b.v.IsZero() {
		return Amount{}, ErrDivByZero
	}
	var r Amount
	if _, overflow := r.v.MulDivOverflow(&a.v, wad, &b.v); overflow {
		return Amount{}, ErrOverflow
	}
	return r, nil
}

// Dec renders the amount as a base-10 decimal string, trimming trailing
// fractional zeros. Parse(a.Dec()) round-trips exactly.
func (a Amount) Dec() string {
	var q, r uint256.Int
	q.Div(&a.v, wad)
	r.Mod(&a.v, wad)
	if r.IsZero() {
		return q.Dec()
	}
	frac := r.Dec()
	frac = strings.Repeat("0", Scale-len(frac)) + frac
	return q.Dec() + "." + strings.TrimRight(frac, "0")
}

func (a Amount) String() string {
	return a.Dec()
}

// MarshalJSON encodes the amount as a decimal string to avoid float loss.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.Dec() + `"`), nil
}

// UnmarshalJSON accepts a decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return ErrParse
	}
	parsed, err := Parse(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
