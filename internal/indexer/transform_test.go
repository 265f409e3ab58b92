package indexer

import (
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func TestBuildLogRecordIngestedAtUTC(t *testing.T) {
	log := types.Log{
		Address:     common.HexToAddress("0x39AA39c021dfbaE8faC545936693aC917d5E7563"),
		Topics:      []common.Hash{common.HexToHash("0x01")},
		BlockNumber: 7,
		Index:       3,
	}
	local := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("UTC+2", 2*3600))

	record := buildLogRecord(1, log, 1700000000, local)
	if record.IngestedAt != "2024-03-01T10:00:00Z" {
		t.Fatalf("ingested_at = %s, want UTC", record.IngestedAt)
	}
	if record.Address != strings.ToLower(log.Address.Hex()) {
		t.Fatalf("address not lower-cased: %s", record.Address)
	}
	if record.Timestamp != 1700000000 || record.LogIndex != 3 {
		t.Fatalf("unexpected record %+v", record)
	}
}
