package compound

import (
	"math/big"
	"sort"
	"strings"

	"lendingScope/internal/hook"
	"lendingScope/internal/model"
	"lendingScope/internal/num"
	"lendingScope/internal/state"
)

const (
	UsersBorrowSupplyKey = "users-borrow-supply"
	BorrowersKey         = "borrowers"
	LeverageSpiralsKey   = "leverage-spirals"
	LiquidationsKey      = "liquidations"
	LiquidationStatsKey  = "liquidation-stats"

	// SnapshotInterval is the block spacing of periodic snapshots.
	SnapshotInterval = 100
)

// RegisterHooks adds the Compound analytics hooks.
func RegisterHooks(reg *hook.Registry) error {
	factories := []struct {
		name string
		f    hook.Factory
	}{
		{UsersBorrowSupplyKey, func() hook.Hook { return &UsersBorrowSupply{Interval: SnapshotInterval} }},
		{BorrowersKey, func() hook.Hook { return &Borrowers{Interval: SnapshotInterval} }},
		{LeverageSpiralsKey, func() hook.Hook { return &LeverageSpirals{} }},
		{LiquidationsKey, func() hook.Hook { return &Liquidations{} }},
		{LiquidationStatsKey, func() hook.Hook { return &LiquidationStats{} }},
	}
	for _, f := range factories {
		if err := reg.Register(f.name, f.f); err != nil {
			return err
		}
	}
	return nil
}

// due reports whether a periodic snapshot is due at block.
func due(last *int64, block, interval int64) bool {
	if interval <= 0 {
		interval = 1
	}
	if *last != 0 && block-*last < interval {
		return false
	}
	*last = block
	return true
}

// Position is a user's collateral and borrow value at one block.
type Position struct {
	Collateral *big.Int `json:"collateral"`
	Borrows    *big.Int `json:"borrows"`
}

// UsersBorrowSupply snapshots the position of every borrowing user.
type UsersBorrowSupply struct {
	hook.Base
	Interval int64

	last      int64
	snapshots map[int64]map[string]Position
}

func (h *UsersBorrowSupply) GlobalStart(st *state.State) error {
	h.snapshots = make(map[int64]map[string]Position)
	if _, err := st.LoadExtra(UsersBorrowSupplyKey, &h.snapshots); err != nil {
		return err
	}
	for block := range h.snapshots {
		if block > h.last {
			h.last = block
		}
	}
	st.SetExtra(UsersBorrowSupplyKey, h.snapshots)
	return nil
}

func (h *UsersBorrowSupply) BlockEnd(st *state.State, block int64) error {
	if st.Oracles.Current == "" || !due(&h.last, block, h.Interval) {
		return nil
	}
	positions := make(map[string]Position)
	for _, user := range borrowingUsers(st) {
		collateral, borrows, err := st.ComputeUserPosition(user)
		if err != nil {
			return err
		}
		positions[user] = Position{Collateral: collateral, Borrows: borrows}
	}
	h.snapshots[block] = positions
	return nil
}

func borrowingUsers(st *state.State) []string {
	seen := make(map[string]struct{})
	for _, m := range st.Markets {
		for account, u := range m.Users {
			if u.Balances.TotalBorrowed.Sign() > 0 {
				seen[account] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for account := range seen {
		out = append(out, account)
	}
	sort.Strings(out)
	return out
}

// Borrowers counts the accounts with an open borrow.
type Borrowers struct {
	hook.Base
	Interval int64

	last   int64
	counts map[int64]int
}

func (h *Borrowers) GlobalStart(st *state.State) error {
	h.counts = make(map[int64]int)
	if _, err := st.LoadExtra(BorrowersKey, &h.counts); err != nil {
		return err
	}
	for block := range h.counts {
		if block > h.last {
			h.last = block
		}
	}
	st.SetExtra(BorrowersKey, h.counts)
	return nil
}

func (h *Borrowers) BlockEnd(st *state.State, block int64) error {
	if due(&h.last, block, h.Interval) {
		h.counts[block] = len(borrowingUsers(st))
	}
	return nil
}

// SpiralStep is one mint or borrow inside a leverage spiral.
type SpiralStep struct {
	Event    string   `json:"event"`
	Market   string   `json:"market"`
	LogIndex int64    `json:"logIndex"`
	Amount   *big.Int `json:"amount"`
}

// Spiral is a transaction where one account minted and borrowed repeatedly.
type Spiral struct {
	Account          string       `json:"account"`
	BlockNumber      int64        `json:"blockNumber"`
	TransactionIndex int64        `json:"transactionIndex"`
	TransactionHash  string       `json:"transactionHash,omitempty"`
	Steps            []SpiralStep `json:"steps"`
}

// LeverageSpirals records transactions with more than one Mint and more than
// one Borrow by the same account.
type LeverageSpirals struct {
	hook.Base

	spirals *[]Spiral
	pending map[string]*Spiral
	order   []string
}

func (h *LeverageSpirals) GlobalStart(st *state.State) error {
	spirals := make([]Spiral, 0)
	if _, err := st.LoadExtra(LeverageSpiralsKey, &spirals); err != nil {
		return err
	}
	h.spirals = &spirals
	st.SetExtra(LeverageSpiralsKey, h.spirals)
	return nil
}

func (h *LeverageSpirals) TransactionStart(*state.State, int64, int64) error {
	h.pending = make(map[string]*Spiral)
	h.order = h.order[:0]
	return nil
}

func (h *LeverageSpirals) EventEnd(_ *state.State, ev model.Event) error {
	var accountKey, amountKey string
	switch ev.Event {
	case "Mint":
		accountKey, amountKey = "minter", "mintAmount"
	case "Borrow":
		accountKey, amountKey = "borrower", "borrowAmount"
	default:
		return nil
	}
	a := args{event: ev.Event, values: ev.ReturnValues}
	account, err := a.address(accountKey)
	if err != nil {
		return err
	}
	amount, err := a.int(amountKey)
	if err != nil {
		return err
	}
	sp, ok := h.pending[account]
	if !ok {
		sp = &Spiral{
			Account:          account,
			BlockNumber:      ev.BlockNumber,
			TransactionIndex: ev.TransactionIndex,
			TransactionHash:  ev.TransactionHash,
		}
		h.pending[account] = sp
		h.order = append(h.order, account)
	}
	sp.Steps = append(sp.Steps, SpiralStep{Event: ev.Event, Market: strings.ToLower(ev.Address), LogIndex: ev.LogIndex, Amount: amount})
	return nil
}

func (h *LeverageSpirals) TransactionEnd(*state.State, int64, int64) error {
	for _, account := range h.order {
		sp := h.pending[account]
		if isSpiral(sp.Steps) {
			*h.spirals = append(*h.spirals, *sp)
		}
	}
	return nil
}

func isSpiral(steps []SpiralStep) bool {
	var mints, borrows int
	for _, s := range steps {
		switch s.Event {
		case "Mint":
			mints++
		case "Borrow":
			borrows++
		}
	}
	return mints > 1 && borrows > 1
}

// Liquidation is one LiquidateBorrow event.
type Liquidation struct {
	At               model.PointInTime `json:"at"`
	TransactionHash  string            `json:"transactionHash,omitempty"`
	Market           string            `json:"market"`
	Liquidator       string            `json:"liquidator"`
	Borrower         string            `json:"borrower"`
	RepayAmount      *big.Int          `json:"repayAmount"`
	CollateralMarket string            `json:"collateralMarket"`
	SeizeTokens      *big.Int          `json:"seizeTokens"`
}

// Liquidations lists every liquidation in replay order.
type Liquidations struct {
	hook.Base

	list *[]Liquidation
}

func (h *Liquidations) GlobalStart(st *state.State) error {
	list := make([]Liquidation, 0)
	if _, err := st.LoadExtra(LiquidationsKey, &list); err != nil {
		return err
	}
	h.list = &list
	st.SetExtra(LiquidationsKey, h.list)
	return nil
}

func (h *Liquidations) EventEnd(_ *state.State, ev model.Event) error {
	if ev.Event != "LiquidateBorrow" {
		return nil
	}
	a := args{event: ev.Event, values: ev.ReturnValues}
	l := Liquidation{At: ev.Key(), TransactionHash: ev.TransactionHash, Market: strings.ToLower(ev.Address)}
	var err error
	if l.Liquidator, err = a.address("liquidator"); err != nil {
		return err
	}
	if l.Borrower, err = a.address("borrower"); err != nil {
		return err
	}
	if l.RepayAmount, err = a.int("repayAmount"); err != nil {
		return err
	}
	if l.CollateralMarket, err = a.address("cTokenCollateral"); err != nil {
		return err
	}
	if l.SeizeTokens, err = a.int("seizeTokens"); err != nil {
		return err
	}
	*h.list = append(*h.list, l)
	return nil
}

// BlockLiquidations aggregates the liquidations of one block.
type BlockLiquidations struct {
	Count  int                 `json:"count"`
	Repaid map[string]*big.Int `json:"repaid"`
}

// LiquidationStats aggregates the output of Liquidations per block.
type LiquidationStats struct {
	hook.Base

	seen  int
	stats map[int64]*BlockLiquidations
}

func (h *LiquidationStats) Dependencies() []string {
	return []string{LiquidationsKey}
}

func (h *LiquidationStats) GlobalStart(st *state.State) error {
	h.stats = make(map[int64]*BlockLiquidations)
	if _, err := st.LoadExtra(LiquidationStatsKey, &h.stats); err != nil {
		return err
	}
	h.seen = 0
	for _, b := range h.stats {
		h.seen += b.Count
	}
	st.SetExtra(LiquidationStatsKey, h.stats)
	return nil
}

func (h *LiquidationStats) BlockEnd(st *state.State, _ int64) error {
	list, ok := st.Extra[LiquidationsKey].(*[]Liquidation)
	if !ok {
		return nil
	}
	for _, l := range (*list)[h.seen:] {
		b, ok := h.stats[l.At.BlockNumber]
		if !ok {
			b = &BlockLiquidations{Repaid: make(map[string]*big.Int)}
			h.stats[l.At.BlockNumber] = b
		}
		b.Count++
		b.Repaid[l.Market] = num.Add(num.OrZero(b.Repaid[l.Market]), l.RepayAmount)
	}
	h.seen = len(*list)
	return nil
}
