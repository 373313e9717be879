package overlay

import (
	"bytes"
	"errors"
	"image/color"

	"github.com/fogleman/gg"
)

const (
	renderWidth  = 1024
	renderHeight = 512
	markerRadius = 4.0
)

var (
	backgroundColor = color.RGBA{R: 230, G: 230, B: 230, A: 255}
	visitedColor    = color.RGBA{R: 212, G: 172, B: 13, A: 255}
	unvisitedColor  = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	markerColor     = color.RGBA{R: 192, G: 57, B: 43, A: 255}
)

// Render draws the projected overlay onto a world map PNG: unvisited
// features in gray, visited ones in gold, one marker per visited feature.
func Render(proj Projection, features []Feature) (*bytes.Buffer, error) {
	if len(features) == 0 {
		return nil, errors.New("no features to render")
	}

	// World bounds across all features determine the linear projection.
	minX, minY, maxX, maxY := 180.0, 90.0, -180.0, -90.0
	for _, feature := range features {
		fMinX, fMinY, fMaxX, fMaxY, ok := feature.Bounds()
		if !ok {
			continue
		}
		if fMinX < minX {
			minX = fMinX
		}
		if fMaxX > maxX {
			maxX = fMaxX
		}
		if fMinY < minY {
			minY = fMinY
		}
		if fMaxY > maxY {
			maxY = fMaxY
		}
	}
	if maxX <= minX || maxY <= minY {
		return nil, errors.New("feature collection has no drawable extent")
	}

	scaleX := float64(renderWidth) / (maxX - minX)
	scaleY := float64(renderHeight) / (maxY - minY)

	dc := gg.NewContext(renderWidth, renderHeight)
	dc.SetColor(backgroundColor)
	dc.Clear()

	for _, feature := range features {
		if proj.Styles[feature.Name] == StyleVisited {
			dc.SetColor(visitedColor)
		} else {
			dc.SetColor(unvisitedColor)
		}
		for _, ring := range feature.rings() {
			tracePath(dc, ring, minX, maxY, scaleX, scaleY)
		}
		dc.Fill()
	}

	for _, marker := range proj.Markers {
		x := (marker.Lon - minX) * scaleX
		y := (maxY - marker.Lat) * scaleY
		dc.SetColor(markerColor)
		dc.DrawCircle(x, y, markerRadius)
		dc.Fill()
	}

	buffer := new(bytes.Buffer)
	if err := dc.EncodePNG(buffer); err != nil {
		return nil, err
	}
	return buffer, nil
}

func tracePath(dc *gg.Context, ring [][]float64, minX, maxY, scaleX, scaleY float64) {
	if len(ring) == 0 {
		return
	}
	for i, point := range ring {
		x := (point[0] - minX) * scaleX
		y := (maxY - point[1]) * scaleY
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.ClosePath()
}
