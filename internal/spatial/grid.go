package spatial

import "fmt"

// Grid is a regular forecast/analysis grid with per-cell coordinates stored
// row-major (index j*NI + i).
type Grid struct {
	NI, NJ int
	lats   []float64
	lons   []float64
}

// NewGrid wraps explicit coordinate arrays, as read from a grid definition.
func NewGrid(ni, nj int, lats, lons []float64) (*Grid, error) {
	if len(lats) != ni*nj || len(lons) != ni*nj {
		return nil, fmt.Errorf("grid %dx%d needs %d coordinates, got %d lats / %d lons", ni, nj, ni*nj, len(lats), len(lons))
	}
	return &Grid{NI: ni, NJ: nj, lats: lats, lons: lons}, nil
}

// RegularGrid builds an equally spaced lat/lon grid from its origin and step,
// the form regions and stations are configured against.
func RegularGrid(ni, nj int, lat0, lon0, dlat, dlon float64) *Grid {
	lats := make([]float64, ni*nj)
	lons := make([]float64, ni*nj)
	for j := 0; j < nj; j++ {
		for i := 0; i < ni; i++ {
			lats[j*ni+i] = lat0 + float64(j)*dlat
			lons[j*ni+i] = lon0 + float64(i)*dlon
		}
	}
	return &Grid{NI: ni, NJ: nj, lats: lats, lons: lons}
}

// LatLon returns the coordinates of gridpoint (i, j).
func (g *Grid) LatLon(i, j int) (float64, float64) {
	idx := j*g.NI + i
	return g.lats[idx], g.lons[idx]
}
