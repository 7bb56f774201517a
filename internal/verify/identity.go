package verify

import "fmt"

// EntityKind tags which flavour of entity an accumulator tracks. The statistic
// math is identical across kinds; only identity formation and routing differ.
type EntityKind uint8

const (
	KindGridpoint EntityKind = iota + 1
	KindRegion
	KindStation
)

func (k EntityKind) String() string {
	switch k {
	case KindGridpoint:
		return "gridpoint"
	case KindRegion:
		return "region"
	case KindStation:
		return "station"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Identity is the immutable key of an accumulator: entity kind, entity key
// fields, and variable name. Only the fields relevant to the kind are set.
// Identity is comparable and used directly as a map key.
type Identity struct {
	Kind     EntityKind `json:"kind"`
	Variable string     `json:"variable"`

	// Gridpoint fields.
	GridI int     `json:"grid_i,omitempty"`
	GridJ int     `json:"grid_j,omitempty"`
	Lat   float64 `json:"lat,omitempty"`
	Lon   float64 `json:"lon,omitempty"`

	// Region fields.
	RegionID   string `json:"region_id,omitempty"`
	RegionType string `json:"region_type,omitempty"`
	RegionName string `json:"region_name,omitempty"`

	// Station fields.
	StationID   string `json:"station_id,omitempty"`
	StationName string `json:"station_name,omitempty"`
}

// GridpointIdentity builds the identity for one grid cell.
func GridpointIdentity(variable string, i, j int, lat, lon float64) Identity {
	return Identity{Kind: KindGridpoint, Variable: variable, GridI: i, GridJ: j, Lat: lat, Lon: lon}
}

// RegionIdentity builds the identity for a named region (CWA, RFC, zone).
func RegionIdentity(variable, id, regionType, name string) Identity {
	return Identity{Kind: KindRegion, Variable: variable, RegionID: id, RegionType: regionType, RegionName: name}
}

// StationIdentity builds the identity for a point-observation station.
func StationIdentity(variable, id, name string, lat, lon float64) Identity {
	return Identity{Kind: KindStation, Variable: variable, StationID: id, StationName: name, Lat: lat, Lon: lon}
}

// EntityKey renders a stable human-readable key for output rows.
func (id Identity) EntityKey() string {
	switch id.Kind {
	case KindGridpoint:
		return fmt.Sprintf("%d/%d", id.GridI, id.GridJ)
	case KindRegion:
		return fmt.Sprintf("%s/%s", id.RegionType, id.RegionID)
	case KindStation:
		return id.StationID
	default:
		return ""
	}
}
