package provider

import "github.com/abelbrown/newsdesk/internal/model"

// Registry dispatches source ids to providers through a lookup table.
type Registry struct {
	byID map[model.SourceID]Provider
}

// NewRegistry indexes providers by ID. Later duplicates replace earlier ones.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{byID: make(map[model.SourceID]Provider, len(providers))}
	for _, p := range providers {
		r.byID[p.ID()] = p
	}
	return r
}

// Get returns the provider for id.
func (r *Registry) Get(id model.SourceID) (Provider, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Configured returns the providers among ids that exist and are
// configured, preserving the order of ids and skipping duplicates.
func (r *Registry) Configured(ids []model.SourceID) []Provider {
	seen := make(map[model.SourceID]bool, len(ids))
	var out []Provider
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := r.byID[id]; ok && p.IsConfigured() {
			out = append(out, p)
		}
	}
	return out
}

// Supports reports whether the provider registered for id has feature f.
// Unknown ids support nothing.
func (r *Registry) Supports(id model.SourceID, f Feature) bool {
	p, ok := r.byID[id]
	return ok && p.SupportsFeature(f)
}

// AnyConfigured reports whether at least one registered provider has a
// usable key.
func (r *Registry) AnyConfigured() bool {
	for _, p := range r.byID {
		if p.IsConfigured() {
			return true
		}
	}
	return false
}

// Defaults builds the three standard providers from their configs.
func Defaults(newsAPI, guardian, nyt Config, opts ...Option) *Registry {
	return NewRegistry(
		NewNewsAPI(newsAPI, opts...),
		NewGuardian(guardian, opts...),
		NewNYTimes(nyt, opts...),
	)
}
