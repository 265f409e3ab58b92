package compound

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendingScope/internal/hook"
	"lendingScope/internal/model"
	"lendingScope/internal/state"
)

// drive replays events through the processor with hooks attached.
func drive(t *testing.T, r *replayer, hooks *hook.Hooks, events ...model.Event) {
	t.Helper()
	require.NoError(t, hooks.GlobalStart(r.st))
	for _, ev := range events {
		require.NoError(t, hooks.EventStart(r.st, ev))
		require.NoError(t, r.p.Process(r.st, ev))
		require.NoError(t, hooks.EventEnd(r.st, ev))
	}
	require.NoError(t, hooks.GlobalEnd(r.st))
}

func at(ev model.Event, block, tx int64) model.Event {
	ev.BlockNumber = block
	ev.TransactionIndex = tx
	return ev
}

func TestLeverageSpirals(t *testing.T) {
	r := newReplayer(t, Options{})
	r.listUSDC()
	hooks, err := hook.New(r.p.Hooks(), []string{LeverageSpiralsKey})
	require.NoError(t, err)

	mint := func(amount string) map[string]any {
		return map[string]any{"minter": alice, "mintAmount": amount, "mintTokens": amount}
	}
	borrow := func(amount string) map[string]any {
		return map[string]any{"borrower": alice, "borrowAmount": amount}
	}
	drive(t, r, hooks,
		at(r.event("Mint", cUSDC, mint("100")), 10, 1),
		at(r.event("Borrow", cUSDC, borrow("40")), 10, 1),
		at(r.event("Mint", cUSDC, mint("40")), 10, 1),
		at(r.event("Borrow", cUSDC, borrow("16")), 10, 1),
		at(r.event("Mint", cUSDC, map[string]any{"minter": bob, "mintAmount": "5", "mintTokens": "5"}), 10, 1),
		at(r.event("Mint", cUSDC, mint("1")), 11, 0),
		at(r.event("Borrow", cUSDC, borrow("1")), 11, 0),
	)

	spirals, ok := r.st.Extra[LeverageSpiralsKey].(*[]Spiral)
	require.True(t, ok)
	require.Len(t, *spirals, 1)
	sp := (*spirals)[0]
	assert.Equal(t, alice, sp.Account)
	assert.Equal(t, int64(10), sp.BlockNumber)
	require.Len(t, sp.Steps, 4)
	assert.Equal(t, "Borrow", sp.Steps[3].Event)
	assert.Equal(t, "16", sp.Steps[3].Amount.String())
}

func TestLiquidationStatsPullsLiquidations(t *testing.T) {
	r := newReplayer(t, Options{})
	r.listUSDC()
	hooks, err := hook.New(r.p.Hooks(), []string{LiquidationStatsKey})
	require.NoError(t, err)
	assert.Equal(t, []string{LiquidationsKey, LiquidationStatsKey}, hooks.Names())

	liquidate := func(amount string) map[string]any {
		return map[string]any{
			"liquidator":       alice,
			"borrower":         bob,
			"repayAmount":      amount,
			"cTokenCollateral": CETHAddress,
			"seizeTokens":      "5",
		}
	}
	drive(t, r, hooks,
		at(r.event("LiquidateBorrow", cUSDC, liquidate("10")), 20, 0),
		at(r.event("LiquidateBorrow", cUSDC, liquidate("15")), 20, 3),
		at(r.event("LiquidateBorrow", cUSDC, liquidate("1")), 21, 0),
	)

	list, ok := r.st.Extra[LiquidationsKey].(*[]Liquidation)
	require.True(t, ok)
	require.Len(t, *list, 3)
	assert.Equal(t, CETHAddress, (*list)[0].CollateralMarket)

	stats, ok := r.st.Extra[LiquidationStatsKey].(map[int64]*BlockLiquidations)
	require.True(t, ok)
	require.Contains(t, stats, int64(20))
	assert.Equal(t, 2, stats[20].Count)
	assert.Equal(t, "25", stats[20].Repaid[cUSDC].String())
	assert.Equal(t, 1, stats[21].Count)
}

func TestBorrowSnapshotsNeedOracle(t *testing.T) {
	r := newReplayer(t, Options{})
	r.listUSDC()
	hooks, err := hook.New(r.p.Hooks(), []string{UsersBorrowSupplyKey, BorrowersKey})
	require.NoError(t, err)

	events := []model.Event{
		at(r.event("Mint", cUSDC, map[string]any{"minter": alice, "mintAmount": "100", "mintTokens": "100"}), 100, 0),
		at(r.event("Borrow", cUSDC, map[string]any{"borrower": bob, "borrowAmount": "40"}), 100, 1),
		at(r.event("Mint", cUSDC, map[string]any{"minter": alice, "mintAmount": "1", "mintTokens": "1"}), 150, 0),
		at(r.event("Mint", cUSDC, map[string]any{"minter": alice, "mintAmount": "1", "mintTokens": "1"}), 200, 0),
	}
	drive(t, r, hooks, events...)

	counts, ok := r.st.Extra[BorrowersKey].(map[int64]int)
	require.True(t, ok)
	assert.Equal(t, map[int64]int{100: 1, 200: 1}, counts)

	snapshots, ok := r.st.Extra[UsersBorrowSupplyKey].(map[int64]map[string]Position)
	require.True(t, ok)
	assert.Empty(t, snapshots)
}

func TestBorrowSnapshotsWithOracle(t *testing.T) {
	r := newReplayer(t, Options{})
	r.listUSDC()
	usdc, _ := MarketByAddress(cUSDC)
	r.must("NewPriceOracle", ComptrollerAddress, map[string]any{"newPriceOracle": PriceOracleV1Address})
	r.must("PricePosted", PriceOracleV1Address, map[string]any{"asset": usdc.UnderlyingAddress, "newPriceMantissa": "2000000000000000000"})

	hooks, err := hook.New(r.p.Hooks(), []string{UsersBorrowSupplyKey})
	require.NoError(t, err)
	drive(t, r, hooks,
		at(r.event("Mint", cUSDC, map[string]any{"minter": bob, "mintAmount": "100", "mintTokens": "100"}), 300, 0),
		at(r.event("Borrow", cUSDC, map[string]any{"borrower": bob, "borrowAmount": "30"}), 300, 1),
	)

	snapshots := r.st.Extra[UsersBorrowSupplyKey].(map[int64]map[string]Position)
	require.Contains(t, snapshots, int64(300))
	pos := snapshots[300][bob]
	assert.Equal(t, "60", pos.Borrows.String())
	assert.Equal(t, "80", pos.Collateral.String())
}

func TestLiquidationsSurviveStateRoundTrip(t *testing.T) {
	r := newReplayer(t, Options{})
	r.listUSDC()
	hooks, err := hook.New(r.p.Hooks(), []string{LiquidationsKey})
	require.NoError(t, err)

	amounts := []string{"123456789012345678", "5000000000000000000000"}
	var events []model.Event
	for i, amount := range amounts {
		events = append(events, at(r.event("LiquidateBorrow", cUSDC, map[string]any{
			"liquidator":       alice,
			"borrower":         bob,
			"repayAmount":      amount,
			"cTokenCollateral": CETHAddress,
			"seizeTokens":      amount,
		}), int64(30+i), 0))
	}
	drive(t, r, hooks, events...)

	data, err := json.Marshal(r.st)
	require.NoError(t, err)
	restored, err := state.Decode(data, r.p.Registries())
	require.NoError(t, err)

	resumed, err := hook.New(r.p.Hooks(), []string{LiquidationsKey})
	require.NoError(t, err)
	require.NoError(t, resumed.GlobalStart(restored))

	list, ok := restored.Extra[LiquidationsKey].(*[]Liquidation)
	require.True(t, ok)
	require.Len(t, *list, 2)
	for i, amount := range amounts {
		assert.Equal(t, amount, (*list)[i].RepayAmount.String())
		assert.Equal(t, amount, (*list)[i].SeizeTokens.String())
	}
}
