package ratemodel

import (
	"fmt"
	"sort"
	"strings"
)

// Definition describes the model deployed at one address.
type Definition struct {
	Name   string
	Kind   Kind
	Params Params
}

// Registry maps model contract addresses to their definitions.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a definition. Registering an address twice is an error.
func (r *Registry) Register(address string, def Definition) error {
	address = strings.ToLower(address)
	if address == "" {
		return fmt.Errorf("register %s: empty address", def.Name)
	}
	if existing, ok := r.defs[address]; ok {
		return fmt.Errorf("register %s: address %s already registered by %s", def.Name, address, existing.Name)
	}
	r.defs[address] = def
	return nil
}

// New instantiates the model registered for address.
func (r *Registry) New(address string, dsr *DSR) (*Model, error) {
	address = strings.ToLower(address)
	def, ok := r.defs[address]
	if !ok {
		return nil, fmt.Errorf("address %s: %w", address, ErrNotRegistered)
	}
	return &Model{
		Address: address,
		Name:    def.Name,
		Kind:    def.Kind,
		Params:  def.Params.clone(),
		dsr:     dsr,
	}, nil
}

// Addresses lists registered addresses in sorted order.
func (r *Registry) Addresses() []string {
	out := make([]string, 0, len(r.defs))
	for address := range r.defs {
		out = append(out, address)
	}
	sort.Strings(out)
	return out
}

// Set holds the model instances created during a replay.
type Set struct {
	Models map[string]*Model `json:"models"`

	registry *Registry
	dsr      *DSR
}

// NewSet returns an empty set creating models from registry.
func NewSet(registry *Registry, dsr *DSR) *Set {
	return &Set{Models: make(map[string]*Model), registry: registry, dsr: dsr}
}

// Bind attaches the registry and DSR after the set was decoded.
func (s *Set) Bind(registry *Registry, dsr *DSR) {
	s.registry = registry
	s.dsr = dsr
	if s.Models == nil {
		s.Models = make(map[string]*Model)
	}
	for _, m := range s.Models {
		m.dsr = dsr
	}
}

// Create instantiates the model at address. Creating an existing model is
// a no-op.
func (s *Set) Create(address string) (*Model, error) {
	address = strings.ToLower(address)
	if m, ok := s.Models[address]; ok {
		return m, nil
	}
	if s.registry == nil {
		return nil, fmt.Errorf("create model %s: no registry bound", address)
	}
	m, err := s.registry.New(address, s.dsr)
	if err != nil {
		return nil, err
	}
	s.Models[address] = m
	return m, nil
}

// Get returns a created model.
func (s *Set) Get(address string) (*Model, error) {
	address = strings.ToLower(address)
	m, ok := s.Models[address]
	if !ok {
		return nil, fmt.Errorf("no model created at %s: %w", address, ErrNotRegistered)
	}
	return m, nil
}

// Len returns the number of created models.
func (s *Set) Len() int {
	return len(s.Models)
}
