package tracker

import (
	"context"
	"fmt"

	"github.com/bissquit/linkwatch/internal/domain"
)

// Provider retrieves the latest change description for links of one type.
type Provider interface {
	// Type returns the link type this provider serves.
	Type() domain.LinkType

	// Fetch returns the latest update for the link. Implementations must
	// bound the external call with a deadline.
	Fetch(ctx context.Context, link *domain.Link) (*domain.UpdateDetail, error)
}

// Registry dispatches update fetches to per-type providers. Coverage of
// every link type is verified at construction, never at request time.
type Registry struct {
	providers map[domain.LinkType]Provider
}

// NewRegistry builds a Registry from the given providers. It fails on a
// duplicate provider for a type and on any link type left uncovered.
func NewRegistry(providers ...Provider) (*Registry, error) {
	m := make(map[domain.LinkType]Provider, len(providers))
	for _, p := range providers {
		if _, exists := m[p.Type()]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProvider, p.Type())
		}
		m[p.Type()] = p
	}

	for _, t := range domain.LinkTypes() {
		if _, ok := m[t]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoProvider, t)
		}
	}

	return &Registry{providers: m}, nil
}

// Fetch dispatches to the provider registered for the link's type.
func (r *Registry) Fetch(ctx context.Context, link *domain.Link) (*domain.UpdateDetail, error) {
	p, ok := r.providers[link.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoProvider, link.Type)
	}
	return p.Fetch(ctx, link)
}
