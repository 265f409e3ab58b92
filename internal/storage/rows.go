package storage

import (
	"fmt"
	"strings"

	"lendingScope/internal/model"
	"lendingScope/internal/num"
	"lendingScope/internal/ratemodel"
)

// PriceRow is a price read from a contract outside the event log, such as a
// DSValue reader or the SAI price setter.
type PriceRow struct {
	BlockNumber int64  `json:"blockNumber"`
	Address     string `json:"address"`
	Price       string `json:"price"`
}

// DSValueEvent returns the synthetic InvertedPricePosted event of the row,
// placed before every log of its block.
func (r PriceRow) DSValueEvent() model.Event {
	return model.Event{
		Event:            "InvertedPricePosted",
		Address:          strings.ToLower(r.Address),
		ReturnValues:     map[string]any{"newPriceMantissa": r.Price},
		BlockNumber:      r.BlockNumber,
		TransactionIndex: model.DSValueTxIndex,
		LogIndex:         model.DSValueLogIndex,
	}
}

// SaiPriceEvent returns the synthetic SaiPriceSet event of the row.
func (r PriceRow) SaiPriceEvent() model.Event {
	return model.Event{
		Event:            "SaiPriceSet",
		Address:          strings.ToLower(r.Address),
		ReturnValues:     map[string]any{"newPriceMantissa": r.Price},
		BlockNumber:      r.BlockNumber,
		TransactionIndex: model.SaiPriceTxIndex,
		LogIndex:         model.SaiPriceLogIndex,
	}
}

// ChiRow is the DSR chi accumulator observed at a block.
type ChiRow struct {
	BlockNumber int64  `json:"blockNumber"`
	Chi         string `json:"chi"`
}

// Event returns the synthetic ChiUpdated event of the row.
func (r ChiRow) Event() model.Event {
	return model.Event{
		Event:            "ChiUpdated",
		ReturnValues:     map[string]any{"chi": r.Chi},
		BlockNumber:      r.BlockNumber,
		TransactionIndex: model.ChiTxIndex,
		LogIndex:         model.ChiLogIndex,
	}
}

// RateRow is the DSR per-second rate set at a block.
type RateRow struct {
	BlockNumber int64  `json:"blockNumber"`
	Rate        string `json:"rate"`
}

// DSRRates parses rate rows into DSR rates.
func DSRRates(rows []RateRow) ([]ratemodel.DSRRate, error) {
	out := make([]ratemodel.DSRRate, 0, len(rows))
	for _, row := range rows {
		rate, err := num.Parse(row.Rate)
		if err != nil {
			return nil, fmt.Errorf("dsr rate at block %d: %w", row.BlockNumber, err)
		}
		out = append(out, ratemodel.DSRRate{Block: row.BlockNumber, Rate: rate})
	}
	return out, nil
}
