package remote

import (
	"seqlab.portal/internal/core/domain"
)

// Endpoint is a fixed (host, credential) pair. Hosts are configured, never
// discovered; an Endpoint is computed per call and not stored anywhere.
type Endpoint struct {
	// Host in user@hostname form, passed to ssh as the destination.
	Host string
	// KeyPath is the identity file; empty means ssh's default.
	KeyPath string
}

// Router maps an analysis type to its endpoint. It is a pure function of
// its two fixed entries: there is no "current host" that a previous call
// could have left behind, and no unknown-type fallback branch — callers
// must validate the type first.
type Router struct {
	wgs     Endpoint
	species Endpoint
}

func NewRouter(wgs, species Endpoint) *Router {
	return &Router{wgs: wgs, species: species}
}

func (r *Router) Route(t domain.AnalysisType) Endpoint {
	if t == domain.AnalysisSpecies {
		return r.species
	}
	return r.wgs
}

// RouteLoose resolves a free-text analysis type as used by get_log and
// kill, which historically tolerated unknown types. Unknown input routes
// to the wgs endpoint. Known risk, kept for compatibility: a typo here
// silently targets the wrong host instead of erroring.
func (r *Router) RouteLoose(s string) Endpoint {
	if t, err := domain.ParseAnalysisType(s); err == nil {
		return r.Route(t)
	}
	return r.wgs
}

// Endpoints returns every configured endpoint in routing order.
func (r *Router) Endpoints() map[domain.AnalysisType]Endpoint {
	return map[domain.AnalysisType]Endpoint{
		domain.AnalysisWGS:     r.wgs,
		domain.AnalysisSpecies: r.species,
	}
}
