package model

import (
	"bytes"
	"encoding/json"
)

// Synthetic positions for events that do not come from a chain log.
const (
	DSValueTxIndex  int64 = -1
	DSValueLogIndex int64 = -1

	SaiPriceTxIndex  int64 = -1
	SaiPriceLogIndex int64 = -2

	ChiTxIndex  int64 = -5
	ChiLogIndex int64 = -5
)

// Event is a decoded protocol event in the web3 wire layout.
type Event struct {
	Event            string         `json:"event"`
	Address          string         `json:"address"`
	ReturnValues     map[string]any `json:"returnValues"`
	BlockNumber      int64          `json:"blockNumber"`
	TransactionIndex int64          `json:"transactionIndex"`
	LogIndex         int64          `json:"logIndex"`
	TransactionHash  string         `json:"transactionHash,omitempty"`
	Timestamp        uint64         `json:"timestamp,omitempty"`
}

// Key returns the ordering key of the event.
func (e Event) Key() PointInTime {
	return FromEvent(e)
}

// FromEvent builds the PointInTime of an event.
func FromEvent(e Event) PointInTime {
	return PointInTime{
		BlockNumber:      e.BlockNumber,
		TransactionIndex: e.TransactionIndex,
		LogIndex:         e.LogIndex,
	}
}

// Clone returns a copy of the event with its own argument map.
func (e Event) Clone() Event {
	out := e
	if e.ReturnValues != nil {
		out.ReturnValues = make(map[string]any, len(e.ReturnValues))
		for k, v := range e.ReturnValues {
			out.ReturnValues[k] = v
		}
	}
	return out
}

// ParseEvent decodes a JSON event, keeping numbers as json.Number.
func ParseEvent(data []byte) (Event, error) {
	var e Event
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&e); err != nil {
		return Event{}, err
	}
	return e, nil
}
