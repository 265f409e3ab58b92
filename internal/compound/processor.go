package compound

import (
	"sort"

	"go.uber.org/zap"

	"lendingScope/internal/model"
	"lendingScope/internal/normalize"
	"lendingScope/internal/state"
)

// Options select protocol-version specific accounting conventions.
type Options struct {
	// LiquidationRepaysInline applies the repay carried by LiquidateBorrow
	// itself. By default the companion RepayBorrow and Transfer events
	// carry the accounting and LiquidateBorrow is a no-op.
	LiquidationRepaysInline bool
}

// Handler applies one event to the state.
type Handler func(p *Processor, st *state.State, address string, a args) error

// Processor applies Compound events to a state.
type Processor struct {
	handlers map[string]Handler
	opts     Options
	logger   *zap.Logger
}

// NewProcessor returns a processor with the full Compound handler table.
func NewProcessor(opts Options, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		handlers: map[string]Handler{
			"NewComptroller":             (*Processor).newComptroller,
			"NewMarketInterestRateModel": (*Processor).newMarketInterestRateModel,
			"NewReserveFactor":           (*Processor).newReserveFactor,
			"NewCloseFactor":             (*Processor).newCloseFactor,
			"NewCollateralFactor":        (*Processor).newCollateralFactor,
			"MarketListed":               (*Processor).marketListed,
			"MarketEntered":              (*Processor).marketEntered,
			"MarketExited":               (*Processor).marketExited,
			"Mint":                       (*Processor).mint,
			"Redeem":                     (*Processor).redeem,
			"Transfer":                   (*Processor).transfer,
			"Borrow":                     (*Processor).borrow,
			"RepayBorrow":                (*Processor).repayBorrow,
			"LiquidateBorrow":            (*Processor).liquidateBorrow,
			"ReservesAdded":              (*Processor).reservesAdded,
			"ReservesReduced":            (*Processor).reservesReduced,
			"AccrueInterest":             (*Processor).accrueInterest,
			"PricePosted":                (*Processor).pricePosted,
			"PriceUpdated":               (*Processor).priceUpdated,
			"SaiPriceSet":                (*Processor).saiPriceSet,
			"InvertedPricePosted":        (*Processor).invertedPricePosted,
			"NewPriceOracle":             (*Processor).newPriceOracle,
			"NewInterestParams":          (*Processor).newInterestParams,
			"ChiUpdated":                 (*Processor).chiUpdated,
			"NewImplementation":          (*Processor).newImplementation,
		},
		opts:   opts,
		logger: logger,
	}
}

// Events lists the event names with a handler.
func (p *Processor) Events() []string {
	names := make([]string, 0, len(p.handlers))
	for name := range p.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Process applies ev to st. Events without a name or handler are skipped.
func (p *Processor) Process(st *state.State, ev model.Event) error {
	if ev.Event == "" {
		p.logger.Debug("skip unnamed record", zap.String("address", ev.Address), zap.Stringer("at", ev.Key()))
		return nil
	}
	handler, ok := p.handlers[ev.Event]
	if !ok {
		p.logger.Debug("unknown event", zap.String("event", ev.Event), zap.String("address", ev.Address))
		return nil
	}
	ev = normalize.Normalize(ev)
	return handler(p, st, ev.Address, args{event: ev.Event, values: ev.ReturnValues})
}
