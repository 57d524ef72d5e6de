package ai

import (
	"errors"
	"fmt"
)

// Registry is the ordered set of providers. Order is the final routing
// tie-break. A Registry is read-only after construction.
type Registry struct {
	providers []*Provider
	byID      map[string]*Provider
}

func NewRegistry(providers ...*Provider) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			return nil, errors.New("nil provider")
		}
		if _, dup := r.byID[p.ID()]; dup {
			return nil, fmt.Errorf("duplicate provider id %q", p.ID())
		}
		r.byID[p.ID()] = p
		r.providers = append(r.providers, p)
	}
	return r, nil
}

// BuildRegistry constructs every spec in order.
func BuildRegistry(specs []Spec) (*Registry, error) {
	providers := make([]*Provider, 0, len(specs))
	for _, s := range specs {
		p, err := NewProvider(s)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return NewRegistry(providers...)
}

// Providers returns the providers in registration order.
func (r *Registry) Providers() []*Provider {
	return append([]*Provider(nil), r.providers...)
}

func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.providers))
	for i, p := range r.providers {
		out[i] = p.Descriptor()
	}
	return out
}

func (r *Registry) Get(id string) (*Provider, bool) {
	p, ok := r.byID[id]
	return p, ok
}

func (r *Registry) Len() int { return len(r.providers) }
