package model

import "fmt"

// PointInTime orders events by block, transaction and log index.
// Synthetic events use negative indices to sit before real logs of a block.
type PointInTime struct {
	BlockNumber      int64 `json:"block_number"`
	TransactionIndex int64 `json:"transaction_index"`
	LogIndex         int64 `json:"log_index"`
}

// Compare returns -1, 0 or 1 comparing p with other lexicographically.
func (p PointInTime) Compare(other PointInTime) int {
	switch {
	case p.BlockNumber != other.BlockNumber:
		return cmpInt64(p.BlockNumber, other.BlockNumber)
	case p.TransactionIndex != other.TransactionIndex:
		return cmpInt64(p.TransactionIndex, other.TransactionIndex)
	default:
		return cmpInt64(p.LogIndex, other.LogIndex)
	}
}

// Less reports whether p sorts before other.
func (p PointInTime) Less(other PointInTime) bool {
	return p.Compare(other) < 0
}

// IsZero reports whether p is the zero position.
func (p PointInTime) IsZero() bool {
	return p == PointInTime{}
}

// Prev returns the position immediately before p. Reopening a source
// strictly after p.Prev() yields every value keyed p again.
func (p PointInTime) Prev() PointInTime {
	p.LogIndex--
	return p
}

func (p PointInTime) String() string {
	return fmt.Sprintf("%d/%d/%d", p.BlockNumber, p.TransactionIndex, p.LogIndex)
}

func cmpInt64(a, b int64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
