// Package oracle keeps posted prices and resolves market prices through
// per-contract resolution rules.
package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"lendingScope/internal/num"
)

// ErrNotRegistered is returned when a price is resolved through an oracle
// address that has no registered variant.
var ErrNotRegistered = errors.New("oracle not registered")

var inverseScale = num.Pow10(36)

// Oracle is the price map posted to one oracle contract.
type Oracle struct {
	Address  string              `json:"address"`
	Variant  string              `json:"variant,omitempty"`
	Prices   map[string]*big.Int `json:"prices"`
	SaiPrice *big.Int            `json:"saiPrice,omitempty"`
}

// NewOracle returns an empty oracle at address.
func NewOracle(address string) *Oracle {
	return &Oracle{Address: strings.ToLower(address), Prices: make(map[string]*big.Int)}
}

// UpdatePrice stores price for token. Inverted prices are stored as 1e36/price.
func (o *Oracle) UpdatePrice(token string, price *big.Int, inverted bool) error {
	if price == nil {
		return fmt.Errorf("oracle %s: nil price for %s", o.Address, token)
	}
	value := new(big.Int).Set(price)
	if inverted {
		if value.Sign() == 0 {
			return fmt.Errorf("oracle %s: cannot invert zero price for %s", o.Address, token)
		}
		value = new(big.Int).Quo(inverseScale, value)
	}
	if o.Prices == nil {
		o.Prices = make(map[string]*big.Int)
	}
	o.Prices[strings.ToLower(token)] = value
	return nil
}

// GetPrice returns the stored price for token, or zero.
func (o *Oracle) GetPrice(token string) *big.Int {
	if p, ok := o.Prices[strings.ToLower(token)]; ok {
		return new(big.Int).Set(p)
	}
	return new(big.Int)
}

// Resolution is what a variant sees while resolving a market price.
type Resolution struct {
	Oracle *Oracle
	Source *Oracle
	Listed func(cToken string) bool
}

// Price reads key from the price map the variant resolves against.
func (r Resolution) Price(key string) *big.Int {
	return r.Source.GetPrice(key)
}

// IsListed reports whether cToken is a listed market.
func (r Resolution) IsListed(cToken string) bool {
	if r.Listed == nil {
		return false
	}
	return r.Listed(strings.ToLower(cToken))
}

// Variant is the resolution strategy of one oracle contract version.
type Variant struct {
	Name string
	// PriceSource is the address whose price map the variant reads.
	// Empty means the oracle's own map.
	PriceSource string
	Resolve     func(r Resolution, cToken string) (*big.Int, error)
}

// Registry maps oracle addresses to variants.
type Registry struct {
	variants map[string]Variant
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{variants: make(map[string]Variant)}
}

// Register adds a variant. Registering an address twice is an error.
func (r *Registry) Register(address string, v Variant) error {
	address = strings.ToLower(address)
	if v.Resolve == nil {
		return fmt.Errorf("register oracle %s: resolve function is required", v.Name)
	}
	if existing, ok := r.variants[address]; ok {
		return fmt.Errorf("register oracle %s: address %s already registered by %s", v.Name, address, existing.Name)
	}
	v.PriceSource = strings.ToLower(v.PriceSource)
	r.variants[address] = v
	return nil
}

// Lookup returns the variant registered for address.
func (r *Registry) Lookup(address string) (Variant, bool) {
	if r == nil {
		return Variant{}, false
	}
	v, ok := r.variants[strings.ToLower(address)]
	return v, ok
}

// Addresses lists registered oracle addresses in sorted order.
func (r *Registry) Addresses() []string {
	out := make([]string, 0, len(r.variants))
	for address := range r.variants {
		out = append(out, address)
	}
	sort.Strings(out)
	return out
}
