// Package router maps chunks of paired forecast/observation data onto the
// accumulators they must update. It performs pure lookups against a
// precomputed spatial index and never recomputes geometry.
package router

import (
	"fmt"

	"github.com/lox/gridverify/internal/verify"
)

// RegionKey identifies a verification region (CWA, RFC, zone).
type RegionKey struct {
	ID   string
	Type string
	Name string
}

// SpatialLookup is the read-only contract consumed from the spatial index
// collaborator. The mapping is computed once before processing starts and
// never changes during a run.
type SpatialLookup interface {
	// LatLon returns the coordinates of a gridpoint.
	LatLon(i, j int) (lat, lon float64)
	// RegionsFor returns the regions whose geometry contains gridpoint (i, j).
	RegionsFor(i, j int) []RegionKey
	// NearestGridpoint returns the grid cell closest to a station.
	NearestGridpoint(stationID string) (i, j int, ok bool)
}

// Configs resolves the frozen threshold/bin configuration per variable.
type Configs map[string]verify.Config

// For returns the configuration for a variable, or the zero configuration
// (continuous metrics only) when none was declared.
func (c Configs) For(variable string) verify.Config {
	return c[variable]
}

// Chunk is one bounded spatial slice of paired data for a single variable and
// valid time. Arrays are row-major over the chunk's index block: element
// (j-J0)*NI + (i-I0) belongs to gridpoint (i, j). Prob is optional. Missing
// is the batch's sentinel value (NaN when the convention is NaN-only).
type Chunk struct {
	ID       string    `json:"id"`
	Variable string    `json:"variable"`
	I0       int       `json:"i0"`
	J0       int       `json:"j0"`
	NI       int       `json:"ni"`
	NJ       int       `json:"nj"`
	Fcst     []float64 `json:"fcst"`
	Obs      []float64 `json:"obs"`
	Prob     []float64 `json:"prob,omitempty"`
	Missing  float64   `json:"missing"`
}

func (c *Chunk) validate() error {
	want := c.NI * c.NJ
	if len(c.Fcst) != want || len(c.Obs) != want {
		return fmt.Errorf("%w: chunk %s: %dx%d block vs %d forecast / %d observation values",
			verify.ErrShapeMismatch, c.ID, c.NI, c.NJ, len(c.Fcst), len(c.Obs))
	}
	if c.Prob != nil && len(c.Prob) != want {
		return fmt.Errorf("%w: chunk %s: %d probability values for %d cells",
			verify.ErrShapeMismatch, c.ID, len(c.Prob), want)
	}
	return nil
}

// StationSample pairs one station observation with the forecast value at the
// station's nearest gridpoint, extracted by the data-access collaborator.
type StationSample struct {
	StationID   string  `json:"station_id"`
	StationName string  `json:"station_name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Fcst        float64 `json:"fcst"`
	Obs         float64 `json:"obs"`
	Prob        float64 `json:"prob,omitempty"`
	HasProb     bool    `json:"has_prob,omitempty"`
}

// StationChunk is a bounded batch of station samples for one variable.
type StationChunk struct {
	ID       string          `json:"id"`
	Variable string          `json:"variable"`
	Samples  []StationSample `json:"samples"`
	Missing  float64         `json:"missing"`
}

// Router routes chunks to gridpoint, regional, and station accumulators in a
// worker's private set.
type Router struct {
	lookup SpatialLookup
	cfgs   Configs
}

func New(lookup SpatialLookup, cfgs Configs) *Router {
	return &Router{lookup: lookup, cfgs: cfgs}
}

// regionBatch gathers the member-cell pairs of one region within a chunk so
// the regional accumulator gets a single batched update.
type regionBatch struct {
	fcst, obs, prob []float64
}

// Route folds a gridded chunk into the target accumulators: one gridpoint
// accumulator per cell, plus every regional accumulator whose geometry
// contains the cell. Returns total accepted/rejected pair counts at gridpoint
// granularity.
func (r *Router) Route(c *Chunk, set verify.Set) (accepted, rejected int, err error) {
	if err := c.validate(); err != nil {
		return 0, 0, err
	}
	cfg := r.cfgs.For(c.Variable)

	regions := make(map[RegionKey]*regionBatch)

	for dj := 0; dj < c.NJ; dj++ {
		for di := 0; di < c.NI; di++ {
			i, j := c.I0+di, c.J0+dj
			idx := dj*c.NI + di

			fcst := c.Fcst[idx : idx+1]
			obs := c.Obs[idx : idx+1]
			var prob []float64
			if c.Prob != nil {
				prob = c.Prob[idx : idx+1]
			}

			lat, lon := r.lookup.LatLon(i, j)
			acc := set.Get(verify.GridpointIdentity(c.Variable, i, j, lat, lon), cfg)
			a, rej, err := acc.Update(fcst, obs, prob, c.Missing)
			if err != nil {
				return accepted, rejected, err
			}
			accepted += a
			rejected += rej

			for _, rk := range r.lookup.RegionsFor(i, j) {
				b, ok := regions[rk]
				if !ok {
					b = &regionBatch{}
					regions[rk] = b
				}
				b.fcst = append(b.fcst, c.Fcst[idx])
				b.obs = append(b.obs, c.Obs[idx])
				if c.Prob != nil {
					b.prob = append(b.prob, c.Prob[idx])
				}
			}
		}
	}

	for rk, b := range regions {
		acc := set.Get(verify.RegionIdentity(c.Variable, rk.ID, rk.Type, rk.Name), cfg)
		if _, _, err := acc.Update(b.fcst, b.obs, b.prob, c.Missing); err != nil {
			return accepted, rejected, fmt.Errorf("region %s/%s: %w", rk.Type, rk.ID, err)
		}
	}
	return accepted, rejected, nil
}

// RouteStations folds a station chunk into per-station accumulators. Station
// verification is independent of the gridpoint and regional populations.
func (r *Router) RouteStations(c *StationChunk, set verify.Set) (accepted, rejected int, err error) {
	cfg := r.cfgs.For(c.Variable)

	for _, s := range c.Samples {
		var prob []float64
		if s.HasProb {
			prob = []float64{s.Prob}
		}
		acc := set.Get(verify.StationIdentity(c.Variable, s.StationID, s.StationName, s.Lat, s.Lon), cfg)
		a, rej, err := acc.Update([]float64{s.Fcst}, []float64{s.Obs}, prob, c.Missing)
		if err != nil {
			return accepted, rejected, fmt.Errorf("station %s: %w", s.StationID, err)
		}
		accepted += a
		rejected += rej
	}
	return accepted, rejected, nil
}
