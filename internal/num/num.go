// Package num holds fixed-point integer helpers shared by the accounting code.
package num

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/spf13/cast"
)

var (
	// Exp is the 1e18 mantissa scale.
	Exp = Pow10(18)
	// Ray is the 1e27 scale used by DSR values.
	Ray = Pow10(27)
)

// Pow10 returns 10^n.
func Pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

// Int returns a new big integer from an int64.
func Int(v int64) *big.Int {
	return big.NewInt(v)
}

// MustParse parses a decimal literal and panics on failure. Only for constants.
func MustParse(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(fmt.Sprintf("invalid integer literal %q", s))
	}
	return v
}

// Parse converts an event argument into a big integer. Strings, json.Number,
// native integers and *big.Int values are accepted.
func Parse(value any) (*big.Int, error) {
	switch typed := value.(type) {
	case nil:
		return nil, fmt.Errorf("missing integer value")
	case *big.Int:
		if typed == nil {
			return nil, fmt.Errorf("missing integer value")
		}
		return new(big.Int).Set(typed), nil
	case json.Number:
		return parseString(typed.String())
	case float64:
		if typed != float64(int64(typed)) {
			return nil, fmt.Errorf("non-integer value %v", typed)
		}
		return big.NewInt(int64(typed)), nil
	}

	s, err := cast.ToStringE(value)
	if err != nil {
		return nil, fmt.Errorf("invalid integer value %v: %w", value, err)
	}
	return parseString(s)
}

func parseString(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty integer value")
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, fmt.Errorf("invalid integer value %q", s)
	}
	return v, nil
}

// MulDiv returns a*b/c with floor division for non-negative operands.
func MulDiv(a, b, c *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, c)
}

// Add returns a+b as a new integer.
func Add(a, b *big.Int) *big.Int {
	return new(big.Int).Add(a, b)
}

// Sub returns a-b as a new integer.
func Sub(a, b *big.Int) *big.Int {
	return new(big.Int).Sub(a, b)
}

// OrZero returns v, or a fresh zero when v is nil.
func OrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// Copy returns an independent copy of v. Nil stays nil.
func Copy(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
