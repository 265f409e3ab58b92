// Package normalize canonicalizes raw events before they reach a processor.
package normalize

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/spf13/cast"

	"lendingScope/internal/model"
)

// Normalize lower-cases the event address and every 0x-prefixed string
// argument. Other values are kept as they are.
func Normalize(e model.Event) model.Event {
	return normalize(e, false)
}

// NormalizeStrict behaves like Normalize and also turns numeric arguments
// into decimal strings so handlers parse them without precision loss.
func NormalizeStrict(e model.Event) model.Event {
	return normalize(e, true)
}

func normalize(e model.Event, strict bool) model.Event {
	out := e.Clone()
	out.Address = strings.ToLower(out.Address)
	for key, value := range out.ReturnValues {
		out.ReturnValues[key] = normalizeValue(value, strict)
	}
	return out
}

func normalizeValue(value any, strict bool) any {
	switch typed := value.(type) {
	case string:
		if IsHex(typed) {
			return strings.ToLower(typed)
		}
		return typed
	case json.Number:
		if strict {
			return typed.String()
		}
		return typed
	case *big.Int:
		if strict && typed != nil {
			return typed.String()
		}
		return typed
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		if strict {
			return cast.ToString(typed)
		}
		return typed
	case float64:
		if strict && typed == float64(int64(typed)) {
			return cast.ToString(int64(typed))
		}
		return typed
	default:
		return value
	}
}

// IsHex reports whether s carries a 0x prefix.
func IsHex(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
