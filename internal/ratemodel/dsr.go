package ratemodel

import (
	"math/big"
	"sort"

	"lendingScope/internal/num"
)

// DSRRate is the savings-rate value that applies from Block onwards.
// Rate is scaled by 1e27 and is a per-second multiplier.
type DSRRate struct {
	Block int64    `json:"block"`
	Rate  *big.Int `json:"rate"`
}

// DSR looks up the savings rate in force at a block.
type DSR struct {
	Rates []DSRRate `json:"rates"`
}

// NewDSR returns a DSR over a copy of rates.
func NewDSR(rates []DSRRate) *DSR {
	d := &DSR{Rates: append([]DSRRate(nil), rates...)}
	d.sort()
	return d
}

func (d *DSR) sort() {
	sort.SliceStable(d.Rates, func(i, j int) bool { return d.Rates[i].Block > d.Rates[j].Block })
}

// Get returns the latest rate set at or before block. Blocks before the
// first known rate get the earliest rate; an empty DSR yields 1e27.
func (d *DSR) Get(block int64) *big.Int {
	if d == nil || len(d.Rates) == 0 {
		return new(big.Int).Set(num.Ray)
	}
	for _, r := range d.Rates {
		if r.Block <= block {
			return new(big.Int).Set(r.Rate)
		}
	}
	return new(big.Int).Set(d.Rates[len(d.Rates)-1].Rate)
}
