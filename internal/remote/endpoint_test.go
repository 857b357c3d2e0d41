package remote

import (
	"testing"

	"seqlab.portal/internal/core/domain"
)

func testRouter() *Router {
	return NewRouter(
		Endpoint{Host: "analysis@wgs-node"},
		Endpoint{Host: "analysis@species-node"},
	)
}

func TestRouteIsStableAndDistinct(t *testing.T) {
	r := testRouter()

	wgs := r.Route(domain.AnalysisWGS)
	species := r.Route(domain.AnalysisSpecies)

	if wgs.Host == species.Host {
		t.Errorf("wgs and species must route to distinct hosts, both got %s", wgs.Host)
	}

	// Same type always routes identically; no call order dependence.
	for i := 0; i < 3; i++ {
		if got := r.Route(domain.AnalysisSpecies); got != species {
			t.Errorf("Route(species) = %+v, want %+v", got, species)
		}
		if got := r.Route(domain.AnalysisWGS); got != wgs {
			t.Errorf("Route(wgs) = %+v, want %+v", got, wgs)
		}
	}
}

func TestRouteLooseFallsBackForUnknownType(t *testing.T) {
	r := testRouter()

	if got := r.RouteLoose("species"); got.Host != "analysis@species-node" {
		t.Errorf("RouteLoose(species) = %s", got.Host)
	}
	if got := r.RouteLoose("16s"); got.Host != "analysis@wgs-node" {
		t.Errorf("RouteLoose(unknown) = %s, want wgs fallback", got.Host)
	}
}

func TestParseAnalysisType(t *testing.T) {
	tests := []struct {
		input   string
		want    domain.AnalysisType
		wantErr bool
	}{
		{input: "wgs", want: domain.AnalysisWGS},
		{input: "species", want: domain.AnalysisSpecies},
		{input: "WGS", wantErr: true},
		{input: "", wantErr: true},
		{input: "metagenomics", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := domain.ParseAnalysisType(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAnalysisType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseAnalysisType(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
