package world

// Reference canvas the map artwork is drawn on. Waypoints and location
// centers from the navigation backend are expressed in these units.
const (
	MapWidth  = 1376.0
	MapHeight = 768.0
)

// Point is a pixel coordinate on the reference canvas.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Location is a named place on the map.
type Location struct {
	Name   string `json:"name" yaml:"name"`     // Unique within a session
	Center Point  `json:"center" yaml:"center"` // Pixel center on the reference canvas
}

// ToPercent converts a pixel coordinate to canvas percentages.
func ToPercent(p Point) (xPct, yPct float64) {
	return (p.X / MapWidth) * 100, (p.Y / MapHeight) * 100
}

// LocationIndex is a read-only lookup over a session's locations.
type LocationIndex struct {
	centers map[string]Point
	names   []string
}

// NewLocationIndex builds an index from location records. Later duplicates
// of a name overwrite earlier ones.
func NewLocationIndex(locations []Location) *LocationIndex {
	idx := &LocationIndex{
		centers: make(map[string]Point, len(locations)),
		names:   make([]string, 0, len(locations)),
	}
	for _, loc := range locations {
		if _, seen := idx.centers[loc.Name]; !seen {
			idx.names = append(idx.names, loc.Name)
		}
		idx.centers[loc.Name] = loc.Center
	}
	return idx
}

// IsValid reports whether name is a known location.
func (idx *LocationIndex) IsValid(name string) bool {
	if idx == nil {
		return false
	}
	_, ok := idx.centers[name]
	return ok
}

// Center returns the pixel center of a location.
func (idx *LocationIndex) Center(name string) (Point, bool) {
	if idx == nil {
		return Point{}, false
	}
	p, ok := idx.centers[name]
	return p, ok
}

// CenterToPercent returns the canvas percentage of a location's center.
// Unknown locations resolve to the middle of the map so an animation never
// stalls on a missing record.
func (idx *LocationIndex) CenterToPercent(name string) (xPct, yPct float64) {
	p, ok := idx.Center(name)
	if !ok {
		return 50, 50
	}
	return ToPercent(p)
}

// Names returns location names in load order.
func (idx *LocationIndex) Names() []string {
	if idx == nil {
		return nil
	}
	out := make([]string, len(idx.names))
	copy(out, idx.names)
	return out
}

// First returns the first loaded location name, or "" when empty.
func (idx *LocationIndex) First() string {
	if idx == nil || len(idx.names) == 0 {
		return ""
	}
	return idx.names[0]
}

// Len returns the number of distinct locations.
func (idx *LocationIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.names)
}
