package providers

import (
	"context"
	"strings"
	"sync"
)

// RawDecomposition is a fund breakdown as fetched from a provider, weights in
// whatever scale the provider reports (the decomposer normalizes).
type RawDecomposition struct {
	Symbol   string
	Holdings []RawHolding
}

// RawHolding is one constituent line as reported by the provider.
type RawHolding struct {
	Ticker string
	Name   string
	Weight float64
}

// Adapter fetches fresh decomposition data from one provider family.
// Implementations may be rate-limited and may fail per-instrument; a failure
// never aborts the batch.
type Adapter interface {
	Name() string
	FetchDecomposition(ctx context.Context, instrumentID, symbol string) (*RawDecomposition, error)
}

// Registry selects the adapter for an instrument, first by explicit mapping,
// then by identity prefix (e.g. all "US..." identities to the default US fund
// provider). Prefix rules are checked longest-first so the most specific wins.
type Registry struct {
	mu       sync.RWMutex
	explicit map[string]Adapter
	prefixes []prefixRule
	fallback Adapter
}

type prefixRule struct {
	prefix  string
	adapter Adapter
}

// NewRegistry creates an empty registry with an optional fallback adapter.
func NewRegistry(fallback Adapter) *Registry {
	return &Registry{
		explicit: make(map[string]Adapter),
		fallback: fallback,
	}
}

// RegisterInstrument pins an instrument identity to a specific adapter.
func (r *Registry) RegisterInstrument(instrumentID string, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.explicit[instrumentID] = adapter
}

// RegisterPrefix routes every identity with the given prefix to an adapter.
func (r *Registry) RegisterPrefix(prefix string, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes = append(r.prefixes, prefixRule{prefix: prefix, adapter: adapter})
	// Longest prefix first.
	for i := len(r.prefixes) - 1; i > 0; i-- {
		if len(r.prefixes[i].prefix) > len(r.prefixes[i-1].prefix) {
			r.prefixes[i], r.prefixes[i-1] = r.prefixes[i-1], r.prefixes[i]
		}
	}
}

// ForInstrument returns the adapter responsible for an instrument, or nil
// when no adapter covers it.
func (r *Registry) ForInstrument(instrumentID string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a, ok := r.explicit[instrumentID]; ok {
		return a
	}
	for _, rule := range r.prefixes {
		if strings.HasPrefix(instrumentID, rule.prefix) {
			return rule.adapter
		}
	}
	return r.fallback
}
