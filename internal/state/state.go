package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"lendingScope/internal/model"
	"lendingScope/internal/num"
	"lendingScope/internal/oracle"
	"lendingScope/internal/ratemodel"
)

// State is the root aggregate mutated event by event during a replay.
type State struct {
	Protocol         string            `json:"protocol"`
	CurrentEventTime model.PointInTime `json:"currentEventTime"`
	LastEventTime    model.PointInTime `json:"lastEventTime"`
	Markets          Markets           `json:"markets"`
	Oracles          *oracle.Oracles   `json:"oracles"`
	RateModels       *ratemodel.Set    `json:"rateModels"`
	DSR              *ratemodel.DSR    `json:"dsr"`
	CloseFactor      decimal.Decimal   `json:"closeFactor"`
	Extra            map[string]any    `json:"extra"`
}

// Registries are the process-wide lookup tables a state resolves against.
type Registries struct {
	RateModels *ratemodel.Registry
	Oracles    *oracle.Registry
}

// New returns an empty state for protocol.
func New(protocol string, reg Registries, dsr *ratemodel.DSR) *State {
	if dsr == nil {
		dsr = ratemodel.NewDSR(nil)
	}
	return &State{
		Protocol:   protocol,
		Oracles:    oracle.NewOracles(reg.Oracles),
		RateModels: ratemodel.NewSet(reg.RateModels, dsr),
		DSR:        dsr,
		Extra:      make(map[string]any),
	}
}

// Decode reads a serialized state and binds it to reg. Numbers inside Extra
// stay json.Number so wei amounts survive LoadExtra unchanged.
func Decode(data []byte, reg Registries) (*State, error) {
	var st State
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	st.Bind(reg)
	return &st, nil
}

// Bind attaches registries and fills empty fields after decoding.
func (s *State) Bind(reg Registries) {
	if s.DSR == nil {
		s.DSR = ratemodel.NewDSR(nil)
	}
	if s.Oracles == nil {
		s.Oracles = oracle.NewOracles(reg.Oracles)
	} else {
		s.Oracles.Bind(reg.Oracles)
	}
	if s.RateModels == nil {
		s.RateModels = ratemodel.NewSet(reg.RateModels, s.DSR)
	} else {
		s.RateModels.Bind(reg.RateModels, s.DSR)
	}
	if s.Extra == nil {
		s.Extra = make(map[string]any)
	}
	for _, m := range s.Markets {
		m.fill()
	}
}

// Listed reports whether cToken is a known, listed market.
func (s *State) Listed(cToken string) bool {
	m, err := s.Markets.Find(cToken)
	return err == nil && m.Listed
}

// Users returns every account holding a position in any market.
func (s *State) Users() []string {
	seen := make(map[string]struct{})
	for _, m := range s.Markets {
		for account := range m.Users {
			seen[account] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// ComputeUserPosition returns the collateral and borrow value of user,
// both denominated in the current oracle's unit.
func (s *State) ComputeUserPosition(user string) (collateral, borrows *big.Int, err error) {
	user = strings.ToLower(user)
	collateral, borrows = new(big.Int), new(big.Int)
	for _, m := range s.Markets {
		u, ok := m.Users[user]
		if !ok {
			continue
		}
		price, err := s.Oracles.CurrentPrice(m.Address, s.Listed)
		if err != nil {
			return nil, nil, fmt.Errorf("position of %s: %w", user, err)
		}

		borrows.Add(borrows, num.MulDiv(price, u.BorrowedAt(m.BorrowIndex), num.Exp))

		if u.Balances.TokenBalance.Sign() == 0 {
			continue
		}
		scaled := m.CollateralFactor.Mul(decimal.NewFromBigInt(m.UnderlyingExchangeRate(), 0)).RoundBank(0)
		tokensToEther := scaled.Mul(decimal.NewFromBigInt(price, 0)).Shift(-18).RoundBank(0)
		collateral.Add(collateral, num.MulDiv(tokensToEther.BigInt(), u.Balances.TokenBalance, num.Exp))
	}
	return collateral, borrows, nil
}

// SetExtra publishes a derived result under key.
func (s *State) SetExtra(key string, value any) {
	if s.Extra == nil {
		s.Extra = make(map[string]any)
	}
	s.Extra[key] = value
}

// LoadExtra decodes the value stored under key into out. It reports false
// when nothing is stored.
func (s *State) LoadExtra(key string, out any) (bool, error) {
	value, ok := s.Extra[key]
	if !ok || value == nil {
		return false, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("encode extra %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode extra %s: %w", key, err)
	}
	return true, nil
}
