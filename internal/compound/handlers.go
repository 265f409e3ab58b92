package compound

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lendingScope/internal/state"
)

func (p *Processor) newComptroller(st *state.State, address string, a args) error {
	comptroller, err := a.address("newComptroller")
	if err != nil {
		return err
	}
	st.Markets.FindOrAdd(address).ComptrollerAddress = comptroller
	return nil
}

func (p *Processor) newMarketInterestRateModel(st *state.State, address string, a args) error {
	m, err := st.Markets.Find(address)
	if err != nil {
		return err
	}
	modelAddress, err := a.address("newInterestRateModel")
	if err != nil {
		return err
	}
	m.InterestRateModel = modelAddress
	if _, err := st.RateModels.Create(modelAddress); err != nil {
		return fmt.Errorf("market %s: %w", address, err)
	}
	return nil
}

func (p *Processor) newReserveFactor(st *state.State, address string, a args) error {
	m, err := st.Markets.Find(address)
	if err != nil {
		return err
	}
	f, err := a.factor("newReserveFactorMantissa", address)
	if err != nil {
		return err
	}
	m.ReserveFactor = f
	return nil
}

func (p *Processor) newCloseFactor(st *state.State, address string, a args) error {
	f, err := a.factor("newCloseFactorMantissa", address)
	if err != nil {
		return err
	}
	st.CloseFactor = f
	return nil
}

func (p *Processor) newCollateralFactor(st *state.State, _ string, a args) error {
	cToken, err := a.address("cToken")
	if err != nil {
		return err
	}
	m, err := st.Markets.Find(cToken)
	if err != nil {
		return err
	}
	f, err := a.factor("newCollateralFactorMantissa", cToken)
	if err != nil {
		return err
	}
	m.CollateralFactor = f
	return nil
}

func (p *Processor) marketListed(st *state.State, _ string, a args) error {
	cToken, err := a.address("cToken")
	if err != nil {
		return err
	}
	m, err := st.Markets.Find(cToken)
	if err != nil {
		return err
	}
	m.Listed = true
	return nil
}

func (p *Processor) marketEntered(st *state.State, _ string, a args) error {
	return p.setEntered(st, a, true)
}

func (p *Processor) marketExited(st *state.State, _ string, a args) error {
	return p.setEntered(st, a, false)
}

func (p *Processor) setEntered(st *state.State, a args, entered bool) error {
	cToken, err := a.address("cToken")
	if err != nil {
		return err
	}
	account, err := a.address("account")
	if err != nil {
		return err
	}
	m, err := st.Markets.Find(cToken)
	if err != nil {
		return err
	}
	m.User(account).Entered = entered
	return nil
}

// dsr returns the market's savings-rate account when it is active.
func dsr(m *state.Market) *state.DSRAccount {
	if m.Address != CDAIAddress || m.DSR == nil || !m.DSR.Active {
		return nil
	}
	return m.DSR
}

func (p *Processor) mint(st *state.State, address string, a args) error {
	m, err := st.Markets.Find(address)
	if err != nil {
		return err
	}
	minter, err := a.address("minter")
	if err != nil {
		return err
	}
	amount, err := a.int("mintAmount")
	if err != nil {
		return err
	}
	tokens, err := a.int("mintTokens")
	if err != nil {
		return err
	}
	m.Balances.TotalUnderlying.Add(m.Balances.TotalUnderlying, amount)
	m.Balances.TokenBalance.Add(m.Balances.TokenBalance, tokens)
	u := m.User(minter)
	u.Balances.TokenBalance.Add(u.Balances.TokenBalance, tokens)
	if d := dsr(m); d != nil {
		d.TransferIn(amount)
	}
	return nil
}

func (p *Processor) redeem(st *state.State, address string, a args) error {
	m, err := st.Markets.Find(address)
	if err != nil {
		return err
	}
	if _, err := a.address("redeemer"); err != nil {
		return err
	}
	amount, err := a.int("redeemAmount")
	if err != nil {
		return err
	}
	tokens, err := a.int("redeemTokens")
	if err != nil {
		return err
	}
	if err := requireCovers(a.event, address, "", "underlying can never be negative", m.Balances.TotalUnderlying, amount); err != nil {
		return err
	}
	if err := requireCovers(a.event, address, "", "token balance can never be negative", m.Balances.TokenBalance, tokens); err != nil {
		return err
	}
	m.Balances.TotalUnderlying.Sub(m.Balances.TotalUnderlying, amount)
	m.Balances.TokenBalance.Sub(m.Balances.TokenBalance, tokens)
	// The redeemer's tokens left with the preceding Transfer to the market.
	if d := dsr(m); d != nil {
		d.TransferOut(amount)
	}
	return nil
}

func (p *Processor) transfer(st *state.State, address string, a args) error {
	m, err := st.Markets.Find(address)
	if err != nil {
		return err
	}
	from, err := a.address("from")
	if err != nil {
		return err
	}
	to, err := a.address("to")
	if err != nil {
		return err
	}
	amount, err := a.int("amount")
	if err != nil {
		return err
	}
	// Tokens leaving the market were already credited by Mint.
	if from == address || from == NullAddress {
		return nil
	}
	sender := m.User(from)
	if err := requireCovers(a.event, address, from, "token balance can never be negative", sender.Balances.TokenBalance, amount); err != nil {
		return err
	}
	sender.Balances.TokenBalance.Sub(sender.Balances.TokenBalance, amount)
	if to == address || to == NullAddress {
		return nil
	}
	receiver := m.User(to)
	receiver.Balances.TokenBalance.Add(receiver.Balances.TokenBalance, amount)
	return nil
}

func (p *Processor) borrow(st *state.State, address string, a args) error {
	m, err := st.Markets.Find(address)
	if err != nil {
		return err
	}
	borrower, err := a.address("borrower")
	if err != nil {
		return err
	}
	amount, err := a.int("borrowAmount")
	if err != nil {
		return err
	}
	totalBorrows, err := a.optInt("totalBorrows")
	if err != nil {
		return err
	}
	if err := requireCovers(a.event, address, "", "underlying can never be negative", m.Balances.TotalUnderlying, amount); err != nil {
		return err
	}

	u := m.User(borrower)
	accrued := u.BorrowedAt(m.BorrowIndex)
	u.Balances.TotalBorrowed = accrued.Add(accrued, amount)
	u.BorrowIndex = new(big.Int).Set(m.BorrowIndex)

	if totalBorrows != nil {
		m.Balances.TotalBorrowed = totalBorrows
	} else {
		m.Balances.TotalBorrowed.Add(m.Balances.TotalBorrowed, amount)
	}
	m.Balances.TotalUnderlying.Sub(m.Balances.TotalUnderlying, amount)
	if d := dsr(m); d != nil {
		d.TransferOut(amount)
	}
	return nil
}

func (p *Processor) repayBorrow(st *state.State, address string, a args) error {
	borrower, err := a.address("borrower")
	if err != nil {
		return err
	}
	amount, err := a.int("repayAmount")
	if err != nil {
		return err
	}
	totalBorrows, err := a.optInt("totalBorrows")
	if err != nil {
		return err
	}
	return p.repay(st, address, a.event, borrower, amount, totalBorrows)
}

func (p *Processor) liquidateBorrow(st *state.State, address string, a args) error {
	if !p.opts.LiquidationRepaysInline {
		return nil
	}
	borrower, err := a.address("borrower")
	if err != nil {
		return err
	}
	amount, err := a.int("repayAmount")
	if err != nil {
		return err
	}
	return p.repay(st, address, a.event, borrower, amount, nil)
}

func (p *Processor) repay(st *state.State, address, event, borrower string, amount, totalBorrows *big.Int) error {
	m, err := st.Markets.Find(address)
	if err != nil {
		return err
	}
	u := m.User(borrower)
	accrued := u.BorrowedAt(m.BorrowIndex)
	if err := requireCovers(event, address, borrower, "borrow can never be negative", accrued, amount); err != nil {
		return err
	}
	if totalBorrows == nil {
		if err := requireCovers(event, address, "", "borrow can never be negative", m.Balances.TotalBorrowed, amount); err != nil {
			return err
		}
		totalBorrows = new(big.Int).Sub(m.Balances.TotalBorrowed, amount)
	}

	u.Balances.TotalBorrowed = accrued.Sub(accrued, amount)
	u.BorrowIndex = new(big.Int).Set(m.BorrowIndex)
	m.Balances.TotalBorrowed = totalBorrows
	m.Balances.TotalUnderlying.Add(m.Balances.TotalUnderlying, amount)
	if d := dsr(m); d != nil {
		d.TransferIn(amount)
	}
	return nil
}

func (p *Processor) reservesAdded(st *state.State, address string, a args) error {
	m, err := st.Markets.Find(address)
	if err != nil {
		return err
	}
	amount, err := a.int("addAmount")
	if err != nil {
		return err
	}
	m.Reserves.Add(m.Reserves, amount)
	m.Balances.TotalUnderlying.Add(m.Balances.TotalUnderlying, amount)
	if d := dsr(m); d != nil {
		d.TransferIn(amount)
	}
	return nil
}

func (p *Processor) reservesReduced(st *state.State, address string, a args) error {
	m, err := st.Markets.Find(address)
	if err != nil {
		return err
	}
	amount, err := a.int("reduceAmount")
	if err != nil {
		return err
	}
	if err := requireCovers(a.event, address, "", "reserves can never be negative", m.Reserves, amount); err != nil {
		return err
	}
	if err := requireCovers(a.event, address, "", "underlying can never be negative", m.Balances.TotalUnderlying, amount); err != nil {
		return err
	}
	m.Reserves.Sub(m.Reserves, amount)
	m.Balances.TotalUnderlying.Sub(m.Balances.TotalUnderlying, amount)
	if d := dsr(m); d != nil {
		d.TransferOut(amount)
	}
	return nil
}

func (p *Processor) accrueInterest(st *state.State, address string, a args) error {
	m, err := st.Markets.Find(address)
	if err != nil {
		return err
	}
	interest, err := a.int("interestAccumulated")
	if err != nil {
		return err
	}
	borrowIndex, err := a.int("borrowIndex")
	if err != nil {
		return err
	}
	totalBorrows, err := a.int("totalBorrows")
	if err != nil {
		return err
	}
	m.BorrowIndex = borrowIndex
	m.Balances.TotalBorrowed = totalBorrows
	added := m.ReserveFactor.Mul(decimal.NewFromBigInt(interest, 0)).Floor().BigInt()
	m.Reserves.Add(m.Reserves, added)
	return nil
}

func (p *Processor) pricePosted(st *state.State, address string, a args) error {
	asset, err := a.address("asset")
	if err != nil {
		return err
	}
	price, err := a.int("newPriceMantissa")
	if err != nil {
		return err
	}
	return st.Oracles.UpdatePrice(address, asset, price, false)
}

func (p *Processor) priceUpdated(st *state.State, address string, a args) error {
	symbol, err := a.str("symbol")
	if err != nil {
		return err
	}
	price, err := a.int("price")
	if err != nil {
		return err
	}
	market, ok := MarketBySymbol(symbol)
	if !ok {
		p.logger.Warn("no such symbol", zap.String("symbol", symbol), zap.String("oracle", address))
		return nil
	}
	return st.Oracles.UpdatePrice(address, market.UnderlyingAddress, price, false)
}

func (p *Processor) saiPriceSet(st *state.State, address string, a args) error {
	price, err := a.int("newPriceMantissa")
	if err != nil {
		return err
	}
	st.Oracles.Get(address).SaiPrice = price
	return nil
}

func (p *Processor) invertedPricePosted(st *state.State, address string, a args) error {
	price, err := a.int("newPriceMantissa")
	if err != nil {
		return err
	}
	tokens, ok := DSValueTokens[address]
	if !ok {
		p.logger.Warn("unknown ds value reader", zap.String("address", address))
		return nil
	}
	for _, token := range tokens {
		if err := st.Oracles.UpdatePrice(PriceOracleV1Address, token, price, true); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) newPriceOracle(st *state.State, _ string, a args) error {
	address, err := a.address("newPriceOracle")
	if err != nil {
		return err
	}
	st.Oracles.SetCurrent(address)
	return nil
}

func (p *Processor) newInterestParams(st *state.State, address string, a args) error {
	model, err := st.RateModels.Create(address)
	if err != nil {
		return err
	}
	return model.UpdateParams(a.values)
}

func (p *Processor) chiUpdated(st *state.State, _ string, a args) error {
	chi, err := a.int("chi")
	if err != nil {
		return err
	}
	if chi.Sign() <= 0 {
		return &InvariantError{Event: a.event, Market: CDAIAddress, Check: "chi must be positive", Have: chi.String(), Need: "> 0"}
	}
	st.Markets.FindOrAdd(CDAIAddress).EnsureDSR().Chi = chi
	return nil
}

func (p *Processor) newImplementation(st *state.State, address string, _ args) error {
	if address != CDAIAddress {
		return nil
	}
	m, err := st.Markets.Find(address)
	if err != nil {
		return err
	}
	d := m.EnsureDSR()
	if d.Active {
		return nil
	}
	d.Active = true
	d.TransferIn(m.Balances.TotalUnderlying)
	return nil
}
