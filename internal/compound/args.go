package compound

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"lendingScope/internal/num"
)

// args reads typed values from an event's return values.
type args struct {
	event  string
	values map[string]any
}

func (a args) has(key string) bool {
	v, ok := a.values[key]
	return ok && v != nil
}

func (a args) address(key string) (string, error) {
	v, ok := a.values[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%s: missing argument %s", a.event, key)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("%s: argument %s: %w", a.event, key, err)
	}
	return strings.ToLower(s), nil
}

func (a args) str(key string) (string, error) {
	v, ok := a.values[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%s: missing argument %s", a.event, key)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("%s: argument %s: %w", a.event, key, err)
	}
	return s, nil
}

func (a args) int(key string) (*big.Int, error) {
	v, ok := a.values[key]
	if !ok || v == nil {
		return nil, fmt.Errorf("%s: missing argument %s", a.event, key)
	}
	n, err := num.Parse(v)
	if err != nil {
		return nil, fmt.Errorf("%s: argument %s: %w", a.event, key, err)
	}
	return n, nil
}

// optInt returns nil without error when key is absent.
func (a args) optInt(key string) (*big.Int, error) {
	if !a.has(key) {
		return nil, nil
	}
	return a.int(key)
}

var (
	factorMin = decimal.Zero
	factorMax = decimal.NewFromInt(1)
)

// factor parses a 1e18 mantissa and checks it lies in [0, 1].
func (a args) factor(key, market string) (decimal.Decimal, error) {
	mantissa, err := a.int(key)
	if err != nil {
		return decimal.Decimal{}, err
	}
	f := decimal.NewFromBigInt(mantissa, -FactorsDecimals)
	if f.LessThan(factorMin) || f.GreaterThan(factorMax) {
		return decimal.Decimal{}, &InvariantError{
			Event:  a.event,
			Market: market,
			Check:  key + " must be between 0 and 1",
			Have:   f.String(),
			Need:   "[0, 1]",
		}
	}
	return f, nil
}
