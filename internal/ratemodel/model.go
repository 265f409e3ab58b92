// Package ratemodel implements the interest-rate curves of Compound markets.
package ratemodel

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"lendingScope/internal/num"
)

var (
	// ErrNotRegistered is returned for a model address missing from a registry.
	ErrNotRegistered = errors.New("interest rate model not registered")
	// ErrUnsupported is returned when a model cannot compute a rate.
	ErrUnsupported = errors.New("rate not supported by this model")
	// ErrUnknownParam is returned by UpdateParams for an unrecognized field.
	ErrUnknownParam = errors.New("unknown interest rate parameter")
)

// BlocksPerYear is the block count used to spread annual rates.
const BlocksPerYear = 2102400

// Kind selects the rate curve.
type Kind string

const (
	// KindJump is a linear curve with a steeper slope above the kink.
	KindJump Kind = "jump"
	// KindBaseSlope is an annual base plus slope, spread over BlocksPerYear.
	KindBaseSlope Kind = "base-slope"
	// KindDAI is a jump curve whose supply rate adds the DSR yield on cash.
	KindDAI Kind = "dai"
)

// Params are the constants of a curve. Per-block fields are used by jump
// and dai models; BaseRate and Multiplier are annual base-slope values.
type Params struct {
	BaseRatePerBlock       *big.Int `json:"baseRatePerBlock,omitempty"`
	MultiplierPerBlock     *big.Int `json:"multiplierPerBlock,omitempty"`
	JumpMultiplierPerBlock *big.Int `json:"jumpMultiplierPerBlock,omitempty"`
	Kink                   *big.Int `json:"kink,omitempty"`
	BaseRate               *big.Int `json:"baseRate,omitempty"`
	Multiplier             *big.Int `json:"multiplier,omitempty"`
}

func (p Params) clone() Params {
	return Params{
		BaseRatePerBlock:       num.Copy(p.BaseRatePerBlock),
		MultiplierPerBlock:     num.Copy(p.MultiplierPerBlock),
		JumpMultiplierPerBlock: num.Copy(p.JumpMultiplierPerBlock),
		Kink:                   num.Copy(p.Kink),
		BaseRate:               num.Copy(p.BaseRate),
		Multiplier:             num.Copy(p.Multiplier),
	}
}

// Model is an interest-rate model instance bound to a contract address.
type Model struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Params  Params `json:"params"`

	dsr *DSR
}

// UtilizationRate returns borrows / (cash + borrows - reserves) scaled by 1e18.
// Base-slope models ignore reserves.
func (m *Model) UtilizationRate(cash, borrows, reserves *big.Int) (*big.Int, error) {
	if borrows.Sign() == 0 {
		return new(big.Int), nil
	}
	denom := num.Add(cash, borrows)
	if m.Kind != KindBaseSlope {
		denom.Sub(denom, reserves)
	}
	if denom.Sign() <= 0 {
		return nil, fmt.Errorf("model %s: non-positive utilization denominator %s", m.Address, denom)
	}
	return num.MulDiv(borrows, num.Exp, denom), nil
}

// BorrowRate returns the per-block borrow rate scaled by 1e18.
func (m *Model) BorrowRate(cash, borrows, reserves *big.Int, block int64) (*big.Int, error) {
	util, err := m.UtilizationRate(cash, borrows, reserves)
	if err != nil {
		return nil, err
	}
	switch m.Kind {
	case KindJump, KindDAI:
		return m.jumpBorrowRate(util), nil
	case KindBaseSlope:
		annual := num.MulDiv(util, num.OrZero(m.Params.Multiplier), num.Exp)
		annual.Add(annual, num.OrZero(m.Params.BaseRate))
		return annual.Quo(annual, big.NewInt(BlocksPerYear)), nil
	default:
		return nil, fmt.Errorf("model %s: unknown kind %q", m.Address, m.Kind)
	}
}

func (m *Model) jumpBorrowRate(util *big.Int) *big.Int {
	base := num.OrZero(m.Params.BaseRatePerBlock)
	mult := num.OrZero(m.Params.MultiplierPerBlock)
	kink := m.Params.Kink
	if kink == nil || util.Cmp(kink) <= 0 {
		rate := num.MulDiv(util, mult, num.Exp)
		return rate.Add(rate, base)
	}
	normal := num.MulDiv(kink, mult, num.Exp)
	normal.Add(normal, base)
	excess := num.Sub(util, kink)
	rate := num.MulDiv(excess, num.OrZero(m.Params.JumpMultiplierPerBlock), num.Exp)
	return rate.Add(rate, normal)
}

// SupplyRate returns the per-block supply rate scaled by 1e18.
func (m *Model) SupplyRate(cash, borrows, reserves, reserveFactorMantissa *big.Int, block int64) (*big.Int, error) {
	switch m.Kind {
	case KindBaseSlope:
		return nil, fmt.Errorf("model %s: supply rate: %w", m.Address, ErrUnsupported)
	case KindJump:
		return m.protocolSupplyRate(cash, borrows, reserves, reserveFactorMantissa, block)
	case KindDAI:
		protocol, err := m.protocolSupplyRate(cash, borrows, reserves, reserveFactorMantissa, block)
		if err != nil {
			return nil, err
		}
		denom := num.Sub(num.Add(cash, borrows), reserves)
		if denom.Sign() <= 0 {
			return protocol, nil
		}
		dsr, err := m.DSRPerBlock(block)
		if err != nil {
			return nil, err
		}
		return protocol.Add(protocol, num.MulDiv(cash, dsr, denom)), nil
	default:
		return nil, fmt.Errorf("model %s: unknown kind %q", m.Address, m.Kind)
	}
}

func (m *Model) protocolSupplyRate(cash, borrows, reserves, reserveFactorMantissa *big.Int, block int64) (*big.Int, error) {
	oneMinusReserveFactor := num.Sub(num.Exp, reserveFactorMantissa)
	borrowRate, err := m.BorrowRate(cash, borrows, reserves, block)
	if err != nil {
		return nil, err
	}
	rateToPool := num.MulDiv(borrowRate, oneMinusReserveFactor, num.Exp)
	util, err := m.UtilizationRate(cash, borrows, reserves)
	if err != nil {
		return nil, err
	}
	return num.MulDiv(util, rateToPool, num.Exp), nil
}

// DSRPerBlock converts the per-second DSR at block into a per-block rate
// scaled by 1e18, assuming 15 second blocks.
func (m *Model) DSRPerBlock(block int64) (*big.Int, error) {
	if m.Kind != KindDAI {
		return nil, fmt.Errorf("model %s: dsr per block: %w", m.Address, ErrUnsupported)
	}
	rate := num.Sub(m.dsr.Get(block), num.Ray)
	rate.Quo(rate, num.Pow10(9))
	return rate.Mul(rate, big.NewInt(15)), nil
}

// UpdateParams applies a NewInterestParams payload. Positional keys such as
// "0" are ignored; any other unrecognized key is an error.
func (m *Model) UpdateParams(values map[string]any) error {
	next := m.Params.clone()
	fields := map[string]**big.Int{
		"baseRatePerBlock":       &next.BaseRatePerBlock,
		"multiplierPerBlock":     &next.MultiplierPerBlock,
		"jumpMultiplierPerBlock": &next.JumpMultiplierPerBlock,
		"kink":                   &next.Kink,
	}
	for key, raw := range values {
		if _, err := strconv.Atoi(key); err == nil {
			continue
		}
		field, ok := fields[key]
		if !ok {
			return fmt.Errorf("model %s: %w: %s", m.Address, ErrUnknownParam, key)
		}
		value, err := num.Parse(raw)
		if err != nil {
			return fmt.Errorf("model %s: param %s: %w", m.Address, key, err)
		}
		*field = value
	}
	m.Params = next
	return nil
}
