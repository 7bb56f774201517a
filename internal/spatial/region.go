package spatial

// Point is a lat/lon vertex of a region boundary.
type Point struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lon float64 `yaml:"lon" json:"lon"`
}

// Region is a named verification polygon (forecast office area, river basin,
// zone). Rings use even-odd containment, so holes are expressed as inner
// rings.
type Region struct {
	ID    string    `yaml:"id" json:"id"`
	Type  string    `yaml:"type" json:"type"`
	Name  string    `yaml:"name" json:"name"`
	Rings [][]Point `yaml:"rings" json:"rings"`
}

// Contains reports whether the point falls inside the region's geometry,
// using even-odd ray casting across all rings.
func (r *Region) Contains(lat, lon float64) bool {
	inside := false
	for _, ring := range r.Rings {
		n := len(ring)
		if n < 3 {
			continue
		}
		for i, j := 0, n-1; i < n; j, i = i, i+1 {
			a, b := ring[i], ring[j]
			if (a.Lat > lat) != (b.Lat > lat) &&
				lon < (b.Lon-a.Lon)*(lat-a.Lat)/(b.Lat-a.Lat)+a.Lon {
				inside = !inside
			}
		}
	}
	return inside
}

// Station is a fixed observation location mapped to its nearest gridpoint for
// forecast comparison.
type Station struct {
	ID        string  `yaml:"id" json:"id"`
	Name      string  `yaml:"name" json:"name"`
	Lat       float64 `yaml:"lat" json:"lat"`
	Lon       float64 `yaml:"lon" json:"lon"`
	Elevation float64 `yaml:"elevation,omitempty" json:"elevation,omitempty"`
	Network   string  `yaml:"network,omitempty" json:"network,omitempty"`
}
