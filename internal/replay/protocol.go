// Package replay drives a protocol over its merged event stream.
package replay

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"lendingScope/internal/hook"
	"lendingScope/internal/model"
	"lendingScope/internal/state"
	"lendingScope/internal/storage"
	"lendingScope/internal/stream"
)

var (
	// ErrDuplicate is returned when a protocol name is registered twice.
	ErrDuplicate = errors.New("protocol already registered")
	// ErrUnknown is returned for a protocol name missing from the registry.
	ErrUnknown = errors.New("unknown protocol")
)

// Protocol is what the executor needs to replay one lending protocol.
type Protocol interface {
	Name() string
	NewState() *state.State
	Registries() state.Registries
	Hooks() *hook.Registry
	Process(st *state.State, ev model.Event) error
	Events(ctx context.Context, r storage.Range) (stream.Iterator[model.Event], error)
}

// Protocols maps protocol names to their adapters.
type Protocols struct {
	byName map[string]Protocol
}

// NewProtocols registers the given protocols.
func NewProtocols(protocols ...Protocol) (*Protocols, error) {
	p := &Protocols{byName: make(map[string]Protocol)}
	for _, proto := range protocols {
		if err := p.Register(proto); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Register adds proto under its name.
func (p *Protocols) Register(proto Protocol) error {
	name := proto.Name()
	if _, ok := p.byName[name]; ok {
		return fmt.Errorf("register %s: %w", name, ErrDuplicate)
	}
	p.byName[name] = proto
	return nil
}

// Get returns the protocol registered under name.
func (p *Protocols) Get(name string) (Protocol, error) {
	proto, ok := p.byName[name]
	if !ok {
		return nil, fmt.Errorf("protocol %q: %w", name, ErrUnknown)
	}
	return proto, nil
}

// Names lists registered protocols in sorted order.
func (p *Protocols) Names() []string {
	out := make([]string, 0, len(p.byName))
	for name := range p.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
