package provider

import (
	"sort"

	"github.com/wonny/rebound/backend/internal/contracts"
	"github.com/wonny/rebound/backend/pkg/config"
	"github.com/wonny/rebound/backend/pkg/httputil"
	"github.com/wonny/rebound/backend/pkg/logger"
)

// Registry holds the constructed providers, addressable by source
type Registry struct {
	providers map[contracts.DataSource]contracts.Provider
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[contracts.DataSource]contracts.Provider),
	}
}

// DefaultRegistry constructs the standard provider set from config.
// Key-gated providers are registered regardless; they report unavailable
// until their key is configured.
func DefaultRegistry(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Registry {
	r := NewRegistry()
	r.Register(NewCoinMarketCap(cfg, httpClient, log))
	r.Register(NewCryptoCompare(cfg, httpClient, log))
	r.Register(NewCoinAPI(cfg, httpClient, log))
	r.Register(NewCoinPaprika(cfg, httpClient, log))
	r.Register(NewBinance(cfg, httpClient, log))
	r.Register(NewFallback(cfg, httpClient, log))
	return r
}

// Register adds a provider, replacing any previous one for the same source
func (r *Registry) Register(p contracts.Provider) {
	r.providers[p.Source()] = p
}

// Get returns the provider for a source, if registered
func (r *Registry) Get(source contracts.DataSource) (contracts.Provider, bool) {
	p, ok := r.providers[source]
	return p, ok
}

// Available returns the currently callable providers ordered by ascending
// priority
func (r *Registry) Available() []contracts.Provider {
	var out []contracts.Provider
	for _, p := range r.providers {
		if p.Available() {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return Priority(out[i].Source()) < Priority(out[j].Source())
	})
	return out
}

// Select returns the available providers among the requested sources,
// preserving the requested order.
func (r *Registry) Select(sources []contracts.DataSource) []contracts.Provider {
	var out []contracts.Provider
	for _, src := range sources {
		if p, ok := r.providers[src]; ok && p.Available() {
			out = append(out, p)
		}
	}
	return out
}
