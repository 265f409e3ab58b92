package oracle

import (
	"fmt"
	"math/big"
	"strings"
)

// Oracles holds every oracle seen during a replay and the active one.
type Oracles struct {
	Current string             `json:"current"`
	Oracles map[string]*Oracle `json:"oracles"`

	registry *Registry
}

// NewOracles returns an empty set resolving variants from registry.
func NewOracles(registry *Registry) *Oracles {
	return &Oracles{Oracles: make(map[string]*Oracle), registry: registry}
}

// Bind attaches the registry after the set was decoded.
func (o *Oracles) Bind(registry *Registry) {
	o.registry = registry
	if o.Oracles == nil {
		o.Oracles = make(map[string]*Oracle)
	}
}

// Get returns the oracle at address, creating it when first seen.
func (o *Oracles) Get(address string) *Oracle {
	address = strings.ToLower(address)
	if existing, ok := o.Oracles[address]; ok {
		return existing
	}
	created := NewOracle(address)
	if v, ok := o.registry.Lookup(address); ok {
		created.Variant = v.Name
	}
	o.Oracles[address] = created
	return created
}

// SetCurrent switches the active oracle.
func (o *Oracles) SetCurrent(address string) *Oracle {
	o.Current = strings.ToLower(address)
	return o.Get(o.Current)
}

// Len returns the number of known oracles.
func (o *Oracles) Len() int {
	return len(o.Oracles)
}

// UpdatePrice posts a price to the map read by the oracle at address.
func (o *Oracles) UpdatePrice(address, token string, price *big.Int, inverted bool) error {
	return o.source(o.Get(address)).UpdatePrice(token, price, inverted)
}

func (o *Oracles) source(target *Oracle) *Oracle {
	v, ok := o.registry.Lookup(target.Address)
	if !ok || v.PriceSource == "" || v.PriceSource == target.Address {
		return target
	}
	return o.Get(v.PriceSource)
}

// GetUnderlyingPrice resolves the underlying price of cToken through the
// oracle at address.
func (o *Oracles) GetUnderlyingPrice(address, cToken string, listed func(string) bool) (*big.Int, error) {
	target := o.Get(address)
	v, ok := o.registry.Lookup(target.Address)
	if !ok {
		return nil, fmt.Errorf("resolve %s at %s: %w", cToken, target.Address, ErrNotRegistered)
	}
	price, err := v.Resolve(Resolution{Oracle: target, Source: o.source(target), Listed: listed}, strings.ToLower(cToken))
	if err != nil {
		return nil, fmt.Errorf("resolve %s at %s (%s): %w", cToken, target.Address, v.Name, err)
	}
	return price, nil
}

// CurrentPrice resolves cToken through the active oracle.
func (o *Oracles) CurrentPrice(cToken string, listed func(string) bool) (*big.Int, error) {
	if o.Current == "" {
		return nil, fmt.Errorf("resolve %s: no current oracle", cToken)
	}
	return o.GetUnderlyingPrice(o.Current, cToken, listed)
}
