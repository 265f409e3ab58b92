package compound

import (
	"fmt"
	"math/big"
	"strings"
)

// InvariantError reports a data-integrity violation found while applying
// an event. It aborts the replay.
type InvariantError struct {
	Event   string
	Market  string
	Account string
	Check   string
	Have    string
	Need    string
}

func (e *InvariantError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invariant violated by %s on %s", e.Event, e.Market)
	if e.Account != "" {
		fmt.Fprintf(&b, " for %s", e.Account)
	}
	fmt.Fprintf(&b, ": %s", e.Check)
	if e.Have != "" || e.Need != "" {
		fmt.Fprintf(&b, " (have %s, need %s)", e.Have, e.Need)
	}
	return b.String()
}

// requireCovers fails when have < need.
func requireCovers(event, market, account, check string, have, need *big.Int) error {
	if have.Cmp(need) >= 0 {
		return nil
	}
	return &InvariantError{
		Event:   event,
		Market:  market,
		Account: account,
		Check:   check,
		Have:    have.String(),
		Need:    need.String(),
	}
}
