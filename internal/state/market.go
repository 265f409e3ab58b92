// Package state holds the replayed lending-market aggregate.
package state

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"lendingScope/internal/num"
)

var (
	ErrMarketNotFound  = errors.New("market not found")
	ErrDuplicateMarket = errors.New("market already exists")
)

// Balances are the running totals of a market or of one user in a market.
type Balances struct {
	TotalBorrowed   *big.Int `json:"totalBorrowed"`
	TotalUnderlying *big.Int `json:"totalUnderlying"`
	TokenBalance    *big.Int `json:"tokenBalance"`
}

// NewBalances returns zeroed balances.
func NewBalances() Balances {
	return Balances{TotalBorrowed: new(big.Int), TotalUnderlying: new(big.Int), TokenBalance: new(big.Int)}
}

func (b *Balances) fill() {
	if b.TotalBorrowed == nil {
		b.TotalBorrowed = new(big.Int)
	}
	if b.TotalUnderlying == nil {
		b.TotalUnderlying = new(big.Int)
	}
	if b.TokenBalance == nil {
		b.TokenBalance = new(big.Int)
	}
}

// Negative reports the first negative field, if any.
func (b Balances) Negative() (string, bool) {
	switch {
	case b.TotalBorrowed.Sign() < 0:
		return "totalBorrowed", true
	case b.TotalUnderlying.Sign() < 0:
		return "totalUnderlying", true
	case b.TokenBalance.Sign() < 0:
		return "tokenBalance", true
	}
	return "", false
}

// MarketUser is one account's position in a market. Balances.TotalUnderlying
// stays zero for users: supply is tracked in tokens, and Redeem is checked
// against the market while the companion Transfer debits the user.
type MarketUser struct {
	Balances    Balances `json:"balances"`
	Entered     bool     `json:"entered"`
	BorrowIndex *big.Int `json:"borrowIndex"`
}

// NewMarketUser returns an empty position with a 1e18 borrow index.
func NewMarketUser() *MarketUser {
	return &MarketUser{Balances: NewBalances(), BorrowIndex: new(big.Int).Set(num.Exp)}
}

func (u *MarketUser) fill() {
	u.Balances.fill()
	if u.BorrowIndex == nil || u.BorrowIndex.Sign() == 0 {
		u.BorrowIndex = new(big.Int).Set(num.Exp)
	}
}

// BorrowedAt returns the borrow balance accrued up to the market index.
func (u *MarketUser) BorrowedAt(index *big.Int) *big.Int {
	if u.Balances.TotalBorrowed.Sign() == 0 || index == nil {
		return new(big.Int).Set(u.Balances.TotalBorrowed)
	}
	if u.BorrowIndex == nil || u.BorrowIndex.Sign() == 0 {
		return new(big.Int).Set(u.Balances.TotalBorrowed)
	}
	return num.MulDiv(u.Balances.TotalBorrowed, index, u.BorrowIndex)
}

// DSRAccount tracks the DAI a market parks in the savings rate contract.
type DSRAccount struct {
	Active bool     `json:"active"`
	Pie    *big.Int `json:"pie"`
	Chi    *big.Int `json:"chi"`
}

// NewDSRAccount returns an inactive account with chi at 1e27.
func NewDSRAccount() *DSRAccount {
	return &DSRAccount{Pie: new(big.Int), Chi: new(big.Int).Set(num.Ray)}
}

func (d *DSRAccount) fill() {
	if d.Pie == nil {
		d.Pie = new(big.Int)
	}
	if d.Chi == nil || d.Chi.Sign() == 0 {
		d.Chi = new(big.Int).Set(num.Ray)
	}
}

// CurrentPie returns the DAI value of the pie at the current chi.
func (d *DSRAccount) CurrentPie() *big.Int {
	return num.MulDiv(d.Pie, d.Chi, num.Ray)
}

// TransferIn joins amount DAI into the savings rate.
func (d *DSRAccount) TransferIn(amount *big.Int) {
	d.Pie.Add(d.Pie, num.MulDiv(amount, num.Ray, d.Chi))
}

// TransferOut exits amount DAI from the savings rate, rounding the pie up.
func (d *DSRAccount) TransferOut(amount *big.Int) {
	out := num.MulDiv(amount, num.Ray, d.Chi)
	out.Add(out, big.NewInt(1))
	d.Pie.Sub(d.Pie, out)
}

// Market is one lending market keyed by its lower-cased address.
type Market struct {
	Address            string                 `json:"address"`
	InterestRateModel  string                 `json:"interestRateModel,omitempty"`
	ComptrollerAddress string                 `json:"comptrollerAddress,omitempty"`
	Balances           Balances               `json:"balances"`
	ReserveFactor      decimal.Decimal        `json:"reserveFactor"`
	CollateralFactor   decimal.Decimal        `json:"collateralFactor"`
	Listed             bool                   `json:"listed"`
	Reserves           *big.Int               `json:"reserves"`
	BorrowIndex        *big.Int               `json:"borrowIndex"`
	Users              map[string]*MarketUser `json:"users"`
	DSR                *DSRAccount            `json:"dsr,omitempty"`
}

// NewMarket returns an empty market at address.
func NewMarket(address string) *Market {
	return &Market{
		Address:     strings.ToLower(address),
		Balances:    NewBalances(),
		Reserves:    new(big.Int),
		BorrowIndex: new(big.Int).Set(num.Exp),
		Users:       make(map[string]*MarketUser),
	}
}

func (m *Market) fill() {
	m.Balances.fill()
	if m.Reserves == nil {
		m.Reserves = new(big.Int)
	}
	if m.BorrowIndex == nil || m.BorrowIndex.Sign() == 0 {
		m.BorrowIndex = new(big.Int).Set(num.Exp)
	}
	if m.Users == nil {
		m.Users = make(map[string]*MarketUser)
	}
	for _, u := range m.Users {
		u.fill()
	}
	if m.DSR != nil {
		m.DSR.fill()
	}
}

// User returns the position of account, creating it when first seen.
func (m *Market) User(account string) *MarketUser {
	account = strings.ToLower(account)
	if u, ok := m.Users[account]; ok {
		return u
	}
	u := NewMarketUser()
	m.Users[account] = u
	return u
}

// EnsureDSR returns the market's savings-rate account, creating it if needed.
func (m *Market) EnsureDSR() *DSRAccount {
	if m.DSR == nil {
		m.DSR = NewDSRAccount()
	}
	return m.DSR
}

// Cash returns the underlying held by the market. With an active DSR the
// cash lives in the savings rate contract.
func (m *Market) Cash() *big.Int {
	if m.DSR != nil && m.DSR.Active {
		return m.DSR.CurrentPie()
	}
	return new(big.Int).Set(m.Balances.TotalUnderlying)
}

// UnderlyingExchangeRate returns (cash + borrows - reserves) / tokens scaled
// by 1e18, or zero when no tokens exist.
func (m *Market) UnderlyingExchangeRate() *big.Int {
	if m.Balances.TokenBalance.Sign() == 0 {
		return new(big.Int)
	}
	total := num.Add(m.Cash(), m.Balances.TotalBorrowed)
	total.Sub(total, m.Reserves)
	return num.MulDiv(total, num.Exp, m.Balances.TokenBalance)
}

// Markets is an ordered list of markets with unique addresses.
type Markets []*Market

// Find returns the market at address.
func (ms Markets) Find(address string) (*Market, error) {
	address = strings.ToLower(address)
	for _, m := range ms {
		if m.Address == address {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, address)
}

// Add appends a market. Adding an existing address is an error.
func (ms *Markets) Add(m *Market) error {
	if _, err := ms.Find(m.Address); err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateMarket, m.Address)
	}
	*ms = append(*ms, m)
	return nil
}

// FindOrAdd returns the market at address, adding an empty one if needed.
func (ms *Markets) FindOrAdd(address string) *Market {
	if m, err := ms.Find(address); err == nil {
		return m
	}
	m := NewMarket(address)
	*ms = append(*ms, m)
	return m
}

// Addresses lists market addresses in insertion order.
func (ms Markets) Addresses() []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Address)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
