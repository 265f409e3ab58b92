package model

import (
	"reflect"
	"testing"
)

func TestLogRecordNewEvent(t *testing.T) {
	record := LogRecord{
		ChainID:     1,
		BlockNumber: 7710733,
		TxHash:      "0xdef456",
		TxIndex:     7,
		LogIndex:    12,
		Address:     "0x39AA39c021dfbaE8faC545936693aC917d5E7563",
		Topics:      []string{"0xaaa", "0xbbb"},
		Timestamp:   1557192318,
	}

	got := record.NewEvent("Mint", map[string]any{"mintAmount": "100"})
	want := Event{
		Event:            "Mint",
		Address:          "0x39aa39c021dfbae8fac545936693ac917d5e7563",
		ReturnValues:     map[string]any{"mintAmount": "100"},
		BlockNumber:      7710733,
		TransactionIndex: 7,
		LogIndex:         12,
		TransactionHash:  "0xdef456",
		Timestamp:        1557192318,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("event mismatch: %+v != %+v", got, want)
	}
	if got.Key() != record.Key() {
		t.Fatalf("key mismatch: %s != %s", got.Key(), record.Key())
	}
}

func TestLogRecordTopic0(t *testing.T) {
	if got := (LogRecord{}).Topic0(); got != "" {
		t.Fatalf("expected empty topic0, got %q", got)
	}
	if got := (LogRecord{Topics: []string{"0xaaa", "0xbbb"}}).Topic0(); got != "0xaaa" {
		t.Fatalf("unexpected topic0 %q", got)
	}
}
