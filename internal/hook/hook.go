// Package hook runs named observers around the replay of each event.
package hook

import (
	"errors"
	"fmt"

	"lendingScope/internal/model"
	"lendingScope/internal/state"
)

var (
	ErrDuplicate = errors.New("hook already registered")
	ErrUnknown   = errors.New("unknown hook")
)

// Hook observes the replay. Callbacks fire in this order for each event:
// block and transaction transitions, EventStart, processing, EventEnd.
type Hook interface {
	GlobalStart(st *state.State) error
	GlobalEnd(st *state.State) error
	BlockStart(st *state.State, block int64) error
	BlockEnd(st *state.State, block int64) error
	TransactionStart(st *state.State, block, tx int64) error
	TransactionEnd(st *state.State, block, tx int64) error
	EventStart(st *state.State, ev model.Event) error
	EventEnd(st *state.State, ev model.Event) error
}

// Dependent is implemented by hooks that need other hooks to run first.
type Dependent interface {
	Dependencies() []string
}

// Base implements every callback as a no-op.
type Base struct{}

func (Base) GlobalStart(*state.State) error { return nil }
func (Base) GlobalEnd(*state.State) error { return nil }
func (Base) BlockStart(*state.State, int64) error { return nil }
func (Base) BlockEnd(*state.State, int64) error { return nil }
func (Base) TransactionStart(*state.State, int64, int64) error { return nil }
func (Base) TransactionEnd(*state.State, int64, int64) error { return nil }
func (Base) EventStart(*state.State, model.Event) error { return nil }
func (Base) EventEnd(*state.State, model.Event) error { return nil }

// Factory builds a fresh hook instance.
type Factory func() Hook

// Registry maps hook names to factories.
type Registry struct {
	factories map[string]Factory
	order     []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name.
func (r *Registry) Register(name string, f Factory) error {
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.factories[name] = f
	r.order = append(r.order, name)
	return nil
}

// New instantiates the hook registered under name.
func (r *Registry) New(name string) (Hook, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	return f(), nil
}

// Names lists registered hooks in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}
