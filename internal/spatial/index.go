// Package spatial resolves grid geometry once per run: which regions contain
// each gridpoint and which gridpoint sits nearest each station. The resulting
// index is read-only during processing and satisfies the router's lookup
// contract.
package spatial

import (
	"log"
	"math"

	"github.com/lox/gridverify/internal/router"
)

const earthRadiusKm = 6371.0

// Index is the precomputed gridpoint->regions and station->gridpoint mapping.
type Index struct {
	grid    *Grid
	regions map[[2]int][]router.RegionKey
	nearest map[string][2]int
}

// BuildIndex tests every gridpoint against every region polygon and resolves
// every station to its nearest gridpoint. Cost is paid once at run start; all
// later lookups are map reads.
func BuildIndex(grid *Grid, regions []Region, stations []Station) *Index {
	idx := &Index{
		grid:    grid,
		regions: make(map[[2]int][]router.RegionKey),
		nearest: make(map[string][2]int, len(stations)),
	}

	for j := 0; j < grid.NJ; j++ {
		for i := 0; i < grid.NI; i++ {
			lat, lon := grid.LatLon(i, j)
			for r := range regions {
				if regions[r].Contains(lat, lon) {
					key := [2]int{i, j}
					idx.regions[key] = append(idx.regions[key], router.RegionKey{
						ID:   regions[r].ID,
						Type: regions[r].Type,
						Name: regions[r].Name,
					})
				}
			}
		}
	}

	for _, st := range stations {
		i, j, ok := nearestGridpoint(grid, st.Lat, st.Lon)
		if !ok {
			log.Printf("spatial: station %s has no reachable gridpoint", st.ID)
			continue
		}
		idx.nearest[st.ID] = [2]int{i, j}
	}

	log.Printf("spatial: indexed %dx%d grid, %d regions, %d stations", grid.NI, grid.NJ, len(regions), len(stations))
	return idx
}

// LatLon implements router.SpatialLookup.
func (x *Index) LatLon(i, j int) (float64, float64) {
	return x.grid.LatLon(i, j)
}

// RegionsFor implements router.SpatialLookup.
func (x *Index) RegionsFor(i, j int) []router.RegionKey {
	return x.regions[[2]int{i, j}]
}

// NearestGridpoint implements router.SpatialLookup.
func (x *Index) NearestGridpoint(stationID string) (int, int, bool) {
	cell, ok := x.nearest[stationID]
	if !ok {
		return 0, 0, false
	}
	return cell[0], cell[1], true
}

func nearestGridpoint(grid *Grid, lat, lon float64) (int, int, bool) {
	best := math.Inf(1)
	bi, bj, found := 0, 0, false
	for j := 0; j < grid.NJ; j++ {
		for i := 0; i < grid.NI; i++ {
			glat, glon := grid.LatLon(i, j)
			d := haversineKm(lat, lon, glat, glon)
			if d < best {
				best, bi, bj, found = d, i, j, true
			}
		}
	}
	return bi, bj, found
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
