package model

import (
	"encoding/json"
	"reflect"
	"sort"
	"testing"
)

func TestPointInTimeOrdering(t *testing.T) {
	points := []PointInTime{
		{BlockNumber: 101, TransactionIndex: 0, LogIndex: 0},
		{BlockNumber: 100, TransactionIndex: 2, LogIndex: 1},
		{BlockNumber: 100, TransactionIndex: DSValueTxIndex, LogIndex: DSValueLogIndex},
		{BlockNumber: 100, TransactionIndex: 2, LogIndex: 0},
		{BlockNumber: 100, TransactionIndex: ChiTxIndex, LogIndex: ChiLogIndex},
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Less(points[j]) })

	want := []PointInTime{
		{BlockNumber: 100, TransactionIndex: -5, LogIndex: -5},
		{BlockNumber: 100, TransactionIndex: -1, LogIndex: -1},
		{BlockNumber: 100, TransactionIndex: 2, LogIndex: 0},
		{BlockNumber: 100, TransactionIndex: 2, LogIndex: 1},
		{BlockNumber: 101, TransactionIndex: 0, LogIndex: 0},
	}
	if !reflect.DeepEqual(points, want) {
		t.Fatalf("order mismatch: %+v != %+v", points, want)
	}
	if points[2].Compare(points[2]) != 0 {
		t.Fatalf("expected equal compare")
	}
	prev := points[1].Prev()
	if !prev.Less(points[1]) || !points[0].Less(prev) {
		t.Fatalf("prev %s not directly before %s", prev, points[1])
	}
}

func TestParseEventKeepsNumbers(t *testing.T) {
	raw := []byte(`{"event":"Mint","address":"0xAB","returnValues":{"mintAmount":123456789012345678901234567890},"blockNumber":7,"transactionIndex":1,"logIndex":2}`)
	e, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	num, ok := e.ReturnValues["mintAmount"].(json.Number)
	if !ok {
		t.Fatalf("expected json.Number, got %T", e.ReturnValues["mintAmount"])
	}
	if num.String() != "123456789012345678901234567890" {
		t.Fatalf("number mismatch: %s", num)
	}
	if e.Key() != (PointInTime{BlockNumber: 7, TransactionIndex: 1, LogIndex: 2}) {
		t.Fatalf("key mismatch: %s", e.Key())
	}
}

func TestEventClone(t *testing.T) {
	e := Event{Event: "Transfer", ReturnValues: map[string]any{"amount": "1"}}
	c := e.Clone()
	c.ReturnValues["amount"] = "2"
	if e.ReturnValues["amount"] != "1" {
		t.Fatalf("clone shares arguments")
	}
}
