package overlay

import (
	"sort"

	"github.com/example/visited-atlas/internal/types"
)

// Style classifies how a feature is filled on the map.
type Style int

const (
	StyleUnvisited Style = iota
	StyleVisited
)

// Marker is a pin placed at the centroid of a visited feature's bounding
// region.
type Marker struct {
	Name types.CountryName
	Lon  float64
	Lat  float64
}

// Projection bundles the three derived views plus the name mismatches
// encountered while matching visited entries against features. Matching is
// exact string equality; mismatches are reported rather than silently
// dropped so a missing alias shows up in diagnostics.
type Projection struct {
	Count      int
	SortedList []types.CountryName
	Styles     map[types.CountryName]Style
	Markers    []Marker
	Unmatched  []types.CountryName
}

// Project derives the presentation state for a visited set over a feature
// collection. It is a pure function of its inputs: identical inputs produce
// identical output, and no state is read or written.
func Project(visited types.VisitedSet, features []Feature) Projection {
	proj := Projection{
		Count:      visited.Len(),
		SortedList: visited.Sorted(),
		Styles:     make(map[types.CountryName]Style, len(features)),
	}

	matched := make(map[types.CountryName]struct{}, visited.Len())
	for _, feature := range features {
		if !visited.Contains(feature.Name) {
			proj.Styles[feature.Name] = StyleUnvisited
			continue
		}
		proj.Styles[feature.Name] = StyleVisited
		matched[feature.Name] = struct{}{}
		if lon, lat, ok := feature.Centroid(); ok {
			proj.Markers = append(proj.Markers, Marker{Name: feature.Name, Lon: lon, Lat: lat})
		}
	}

	for _, name := range proj.SortedList {
		if _, ok := matched[name]; !ok {
			proj.Unmatched = append(proj.Unmatched, name)
		}
	}

	sort.Slice(proj.Markers, func(i, j int) bool { return proj.Markers[i].Name < proj.Markers[j].Name })
	return proj
}
