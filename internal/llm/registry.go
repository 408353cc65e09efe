package llm

import (
	"fmt"
	"net/http"
	"sort"

	fpotel "github.com/flowpaste/flowpaste/internal/otel"
)

var tracer = fpotel.Tracer("github.com/flowpaste/flowpaste/internal/llm")

// Registry resolves providers by Kind. It is populated once at startup and
// read-only afterwards.
type Registry struct {
	providers map[Kind]Provider
}

// NewRegistry creates a registry holding the given providers. A later provider
// with the same Kind replaces an earlier one.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[Kind]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Kind()] = p
	}
	return r
}

// NewDefaultRegistry registers the local and cloud providers sharing client.
func NewDefaultRegistry(client *http.Client) *Registry {
	return NewRegistry(NewLocalProvider(client), NewCloudProvider(client))
}

// Get returns the provider for kind, or ErrUnknownProvider.
func (r *Registry) Get(kind Kind) (Provider, error) {
	p, ok := r.providers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, kind)
	}
	return p, nil
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.providers))
	for k := range r.providers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
