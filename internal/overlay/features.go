// Package overlay derives the presentation artifacts (count, sorted list,
// feature styling, markers) from the visited set and a collection of named
// geographic features, and renders them to a map image.
package overlay

import (
	"fmt"
	"os"

	geojson "github.com/paulmach/go.geojson"

	"github.com/example/visited-atlas/internal/types"
)

// Feature is a named polygon feature from the geographic source. Only the
// name property and the ring coordinates are consumed.
type Feature struct {
	Name     types.CountryName
	Geometry *geojson.Geometry
}

// LoadFeatures parses a GeoJSON feature collection from disk. Features
// without a name property are skipped.
func LoadFeatures(path string) ([]Feature, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feature source: %w", err)
	}
	return ParseFeatures(raw)
}

// ParseFeatures decodes a GeoJSON feature collection.
func ParseFeatures(raw []byte) ([]Feature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}

	features := make([]Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry == nil || f.Properties == nil {
			continue
		}
		name, ok := f.Properties["name"].(string)
		if !ok || name == "" {
			continue
		}
		features = append(features, Feature{Name: types.CountryName(name), Geometry: f.Geometry})
	}
	return features, nil
}

// Bounds returns the bounding box of the feature geometry in lon/lat. ok is
// false when the geometry carries no polygon rings.
func (f Feature) Bounds() (minX, minY, maxX, maxY float64, ok bool) {
	minX, minY = 180.0, 90.0
	maxX, maxY = -180.0, -90.0

	visit := func(ring [][]float64) {
		for _, point := range ring {
			if len(point) < 2 {
				continue
			}
			ok = true
			if point[0] < minX {
				minX = point[0]
			}
			if point[0] > maxX {
				maxX = point[0]
			}
			if point[1] < minY {
				minY = point[1]
			}
			if point[1] > maxY {
				maxY = point[1]
			}
		}
	}

	for _, ring := range f.rings() {
		visit(ring)
	}
	return minX, minY, maxX, maxY, ok
}

// Centroid returns the center of the feature's bounding region.
func (f Feature) Centroid() (lon, lat float64, ok bool) {
	minX, minY, maxX, maxY, ok := f.Bounds()
	if !ok {
		return 0, 0, false
	}
	return (minX + maxX) / 2, (minY + maxY) / 2, true
}

// rings flattens polygon and multipolygon geometries into a single list of
// coordinate rings.
func (f Feature) rings() [][][]float64 {
	if f.Geometry == nil {
		return nil
	}
	switch {
	case f.Geometry.IsPolygon():
		return f.Geometry.Polygon
	case f.Geometry.IsMultiPolygon():
		var rings [][][]float64
		for _, polygon := range f.Geometry.MultiPolygon {
			rings = append(rings, polygon...)
		}
		return rings
	default:
		return nil
	}
}
