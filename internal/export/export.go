// Package export writes CSV reports from a replayed state.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/big"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"lendingScope/internal/compound"
	"lendingScope/internal/state"
)

// positionDecimals is the scale of collateral and borrow values in
// users-borrow-supply snapshots.
const positionDecimals = 18

// BorrowSupply writes one block,value row for every snapshot block whose
// under-collateralized supply exceeds threshold. A user is counted when
// collateral/borrows < 1.
func BorrowSupply(w io.Writer, st *state.State, threshold decimal.Decimal) (int, error) {
	snapshots := make(map[int64]map[string]compound.Position)
	ok, err := st.LoadExtra(compound.UsersBorrowSupplyKey, &snapshots)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("state has no %s output", compound.UsersBorrowSupplyKey)
	}

	blocks := make([]int64, 0, len(snapshots))
	for block := range snapshots {
		blocks = append(blocks, block)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })

	out := csv.NewWriter(w)
	if err := out.Write([]string{"block", "value"}); err != nil {
		return 0, err
	}
	rows := 0
	for _, block := range blocks {
		total := decimal.Zero
		for _, p := range snapshots[block] {
			if p.Borrows == nil || p.Borrows.Sign() <= 0 || p.Collateral == nil {
				continue
			}
			if p.Collateral.Cmp(p.Borrows) < 0 {
				total = total.Add(decimal.NewFromBigInt(p.Collateral, -positionDecimals))
			}
		}
		if !total.GreaterThan(threshold) {
			continue
		}
		if err := out.Write([]string{strconv.FormatInt(block, 10), total.String()}); err != nil {
			return rows, err
		}
		rows++
	}
	out.Flush()
	return rows, out.Error()
}

// Liquidations writes the liquidation list with amounts in token units.
func Liquidations(w io.Writer, st *state.State) (int, error) {
	var list []compound.Liquidation
	ok, err := st.LoadExtra(compound.LiquidationsKey, &list)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("state has no %s output", compound.LiquidationsKey)
	}

	out := csv.NewWriter(w)
	header := []string{
		"block", "transaction_index", "log_index", "transaction_hash",
		"market", "symbol", "borrower", "liquidator", "repay_amount",
		"collateral_market", "collateral_symbol", "seize_tokens",
	}
	if err := out.Write(header); err != nil {
		return 0, err
	}
	for _, l := range list {
		repaid, symbol := formatUnderlying(l.Market, l.RepayAmount)
		_, collateralSymbol := formatUnderlying(l.CollateralMarket, nil)
		row := []string{
			strconv.FormatInt(l.At.BlockNumber, 10),
			strconv.FormatInt(l.At.TransactionIndex, 10),
			strconv.FormatInt(l.At.LogIndex, 10),
			l.TransactionHash,
			l.Market,
			symbol,
			l.Borrower,
			l.Liquidator,
			repaid,
			l.CollateralMarket,
			collateralSymbol,
			formatTokenAmount(l.SeizeTokens, compound.CTokenDecimals),
		}
		if err := out.Write(row); err != nil {
			return 0, err
		}
	}
	out.Flush()
	return len(list), out.Error()
}

func formatUnderlying(cToken string, amount *big.Int) (string, string) {
	m, ok := compound.MarketByAddress(cToken)
	if !ok {
		return formatTokenAmount(amount, 0), ""
	}
	return formatTokenAmount(amount, m.Decimals), m.UnderlyingSymbol
}

func formatTokenAmount(value *big.Int, decimals int32) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	return decimal.NewFromBigInt(value, -decimals).StringFixed(decimals)
}
