package hook

import (
	"fmt"

	"lendingScope/internal/model"
	"lendingScope/internal/state"
)

// Hooks is the host that fires callbacks of a resolved hook list.
type Hooks struct {
	names     []string
	hooks     []Hook
	last      *model.PointInTime
	blockOpen bool
	txOpen    bool
}

// New resolves names against reg. Dependencies are inserted before the hook
// that needs them and every hook appears once.
func New(reg *Registry, names []string) (*Hooks, error) {
	h := &Hooks{}
	seen := make(map[string]bool)
	var add func(name string, path []string) error
	add = func(name string, path []string) error {
		if seen[name] {
			return nil
		}
		for _, p := range path {
			if p == name {
				return fmt.Errorf("hook %s: dependency cycle through %v", name, path)
			}
		}
		instance, err := reg.New(name)
		if err != nil {
			return err
		}
		if dep, ok := instance.(Dependent); ok {
			for _, d := range dep.Dependencies() {
				if err := add(d, append(path, name)); err != nil {
					return err
				}
			}
		}
		seen[name] = true
		h.names = append(h.names, name)
		h.hooks = append(h.hooks, instance)
		return nil
	}
	for _, name := range names {
		if err := add(name, nil); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Of wraps already built hooks.
func Of(hooks ...Hook) *Hooks {
	h := &Hooks{hooks: hooks}
	for i := range hooks {
		h.names = append(h.names, fmt.Sprintf("hook-%d", i))
	}
	return h
}

// Names returns the resolved hook names in firing order.
func (h *Hooks) Names() []string {
	return append([]string(nil), h.names...)
}

// Len returns the number of resolved hooks.
func (h *Hooks) Len() int {
	return len(h.hooks)
}

// Hook returns the instance resolved for name.
func (h *Hooks) Hook(name string) (Hook, bool) {
	for i, n := range h.names {
		if n == name {
			return h.hooks[i], true
		}
	}
	return nil, false
}

func (h *Hooks) each(fn func(Hook) error) error {
	for i, hk := range h.hooks {
		if err := fn(hk); err != nil {
			return fmt.Errorf("hook %s: %w", h.names[i], err)
		}
	}
	return nil
}

// GlobalStart fires once before the first event.
func (h *Hooks) GlobalStart(st *state.State) error {
	h.last = nil
	h.blockOpen, h.txOpen = false, false
	return h.each(func(hk Hook) error { return hk.GlobalStart(st) })
}

// Close fires the TransactionEnd and BlockEnd left pending by an event at
// the given position. It reports whether a block was closed.
func (h *Hooks) Close(st *state.State, at model.PointInTime) (bool, error) {
	if h.last == nil {
		return false, nil
	}
	last := *h.last
	endBlock := h.blockOpen && last.BlockNumber != at.BlockNumber
	endTx := h.txOpen && (endBlock || last.TransactionIndex != at.TransactionIndex)
	if endTx {
		if err := h.each(func(hk Hook) error { return hk.TransactionEnd(st, last.BlockNumber, last.TransactionIndex) }); err != nil {
			return false, err
		}
		h.txOpen = false
	}
	if endBlock {
		if err := h.each(func(hk Hook) error { return hk.BlockEnd(st, last.BlockNumber) }); err != nil {
			return false, err
		}
		h.blockOpen = false
	}
	return endBlock, nil
}

// EventStart closes what ev leaves behind, opens its block and transaction
// when needed, then fires EventStart.
func (h *Hooks) EventStart(st *state.State, ev model.Event) error {
	at := ev.Key()
	if _, err := h.Close(st, at); err != nil {
		return err
	}
	if !h.blockOpen {
		if err := h.each(func(hk Hook) error { return hk.BlockStart(st, at.BlockNumber) }); err != nil {
			return err
		}
		h.blockOpen = true
	}
	if !h.txOpen {
		if err := h.each(func(hk Hook) error { return hk.TransactionStart(st, at.BlockNumber, at.TransactionIndex) }); err != nil {
			return err
		}
		h.txOpen = true
	}
	h.last = &at
	return h.each(func(hk Hook) error { return hk.EventStart(st, ev) })
}

// EventEnd fires after ev was applied.
func (h *Hooks) EventEnd(st *state.State, ev model.Event) error {
	return h.each(func(hk Hook) error { return hk.EventEnd(st, ev) })
}

// GlobalEnd closes the pending transaction and block, then fires GlobalEnd.
func (h *Hooks) GlobalEnd(st *state.State) error {
	if h.last != nil {
		last := *h.last
		if h.txOpen {
			if err := h.each(func(hk Hook) error { return hk.TransactionEnd(st, last.BlockNumber, last.TransactionIndex) }); err != nil {
				return err
			}
			h.txOpen = false
		}
		if h.blockOpen {
			if err := h.each(func(hk Hook) error { return hk.BlockEnd(st, last.BlockNumber) }); err != nil {
				return err
			}
			h.blockOpen = false
		}
		h.last = nil
	}
	return h.each(func(hk Hook) error { return hk.GlobalEnd(st) })
}
