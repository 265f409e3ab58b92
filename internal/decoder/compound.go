// Package decoder turns raw chain logs into protocol events.
package decoder

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cast"

	"lendingScope/internal/model"
)

// Decoder defines a log decoder.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord) (model.Event, error)
}

// Compound decodes cToken, Comptroller, oracle and rate model logs.
type Compound struct {
	events map[common.Hash]abi.Event
}

// NewCompound builds a Compound decoder.
func NewCompound() (*Compound, error) {
	parsed, err := CompoundABI()
	if err != nil {
		return nil, err
	}
	events := make(map[common.Hash]abi.Event, len(parsed.Events))
	for _, event := range parsed.Events {
		events[event.ID] = event
	}
	return &Compound{events: events}, nil
}

// Topics returns the topic0 of every supported event in a stable order.
func (d *Compound) Topics() []common.Hash {
	out := make([]common.Hash, 0, len(d.events))
	for id := range d.events {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out
}

// CanDecode checks if the topic0 is supported.
func (d *Compound) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	hash, err := parseTopicHashes([]string{topic0})
	if err != nil {
		return false
	}
	_, ok := d.events[hash[0]]
	return ok
}

// Decode converts a LogRecord into an Event. Addresses are lower-cased and
// integers rendered as decimal strings.
func (d *Compound) Decode(log model.LogRecord) (model.Event, error) {
	if len(log.Topics) == 0 {
		return model.Event{}, fmt.Errorf("missing topics")
	}
	if log.Removed {
		return model.Event{}, fmt.Errorf("removed log")
	}
	topic0, err := parseTopicHashes(log.Topics[:1])
	if err != nil {
		return model.Event{}, err
	}
	event, ok := d.events[topic0[0]]
	if !ok {
		return model.Event{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return model.Event{}, fmt.Errorf("invalid contract address: %s", log.Address)
	}

	raw := make(map[string]interface{}, len(event.Inputs))
	indexed := indexedArguments(event.Inputs)
	if len(indexed) > 0 {
		topics, err := parseIndexedTopics(event, log.Topics)
		if err != nil {
			return model.Event{}, err
		}
		if err := abi.ParseTopicsIntoMap(raw, indexed, topics); err != nil {
			return model.Event{}, fmt.Errorf("parse topics: %w", err)
		}
	} else if len(log.Topics) != 1 {
		return model.Event{}, fmt.Errorf("expected 1 topic, got %d", len(log.Topics))
	}
	if err := unpackNonIndexed(event, log.Data, raw); err != nil {
		return model.Event{}, err
	}

	values := make(map[string]any, len(raw))
	for _, arg := range event.Inputs {
		v, err := wireValue(raw[arg.Name])
		if err != nil {
			return model.Event{}, fmt.Errorf("%s.%s: %w", event.RawName, arg.Name, err)
		}
		values[arg.Name] = v
	}

	return log.NewEvent(event.RawName, values), nil
}

func wireValue(v interface{}) (any, error) {
	switch typed := v.(type) {
	case common.Address:
		return strings.ToLower(typed.Hex()), nil
	case *big.Int:
		if typed == nil {
			return nil, fmt.Errorf("nil integer")
		}
		return typed.String(), nil
	case string:
		return typed, nil
	case nil:
		return nil, fmt.Errorf("missing value")
	default:
		return cast.ToStringE(typed)
	}
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string, out map[string]interface{}) error {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return fmt.Errorf("invalid data: %w", err)
	}
	if err := event.Inputs.NonIndexed().UnpackIntoMap(out, data); err != nil {
		return fmt.Errorf("unpack %s: %w", event.RawName, err)
	}
	return nil
}
