package model

import "strings"

// LogRecord is a flattened chain log, the input of event decoding.
type LogRecord struct {
	ChainID     uint64   `json:"chain_id"`
	BlockNumber uint64   `json:"block_number"`
	BlockHash   string   `json:"block_hash"`
	TxHash      string   `json:"tx_hash"`
	TxIndex     uint64   `json:"tx_index"`
	LogIndex    uint64   `json:"log_index"`
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	Removed     bool     `json:"removed"`
	Timestamp   uint64   `json:"timestamp"`
	IngestedAt  string   `json:"ingested_at"`
}

// Topic0 returns the event signature topic, or "" for anonymous logs.
func (lr LogRecord) Topic0() string {
	if len(lr.Topics) == 0 {
		return ""
	}
	return lr.Topics[0]
}

// Key returns the log's position in the chain.
func (lr LogRecord) Key() PointInTime {
	return PointInTime{
		BlockNumber:      int64(lr.BlockNumber),
		TransactionIndex: int64(lr.TxIndex),
		LogIndex:         int64(lr.LogIndex),
	}
}

// NewEvent wraps decoded arguments in an Event placed at the log.
func (lr LogRecord) NewEvent(name string, values map[string]any) Event {
	key := lr.Key()
	return Event{
		Event:            name,
		Address:          strings.ToLower(lr.Address),
		ReturnValues:     values,
		BlockNumber:      key.BlockNumber,
		TransactionIndex: key.TransactionIndex,
		LogIndex:         key.LogIndex,
		TransactionHash:  lr.TxHash,
		Timestamp:        lr.Timestamp,
	}
}
