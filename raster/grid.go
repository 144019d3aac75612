package raster

import (
	"fmt"
	"math"
)

// Transform maps pixel indices to projected coordinates: the X of a
// pixel's left edge is OriginX + col*PixelSizeX, the Y of its top edge
// is OriginY + row*PixelSizeY. North-up grids carry a negative
// PixelSizeY.
type Transform struct {
	OriginX    float64
	OriginY    float64
	PixelSizeX float64
	PixelSizeY float64
}

// Center returns the projected coordinates of a pixel's center
func (t Transform) Center(col, row int) (float64, float64) {
	x := t.OriginX + (float64(col)+0.5)*t.PixelSizeX
	y := t.OriginY + (float64(row)+0.5)*t.PixelSizeY
	return x, y
}

// Grid is one band of float32 samples in a projected coordinate
// system. NaN marks nodata.
type Grid struct {
	Width     int
	Height    int
	Transform Transform
	EPSG      int
	Data      []float32
}

// NewGrid returns a grid of the given geometry with every sample set
// to nodata
func NewGrid(width, height int, transform Transform, epsg int) *Grid {
	data := make([]float32, width*height)
	nan := float32(math.NaN())
	for i := range data {
		data[i] = nan
	}
	return &Grid{Width: width, Height: height, Transform: transform, EPSG: epsg, Data: data}
}

// At returns the sample at the given pixel
func (g *Grid) At(col, row int) float32 {
	return g.Data[row*g.Width+col]
}

// Set stores a sample at the given pixel
func (g *Grid) Set(col, row int, value float32) {
	g.Data[row*g.Width+col] = value
}

// Bounds returns the outer edges of the grid in projected coordinates
func (g *Grid) Bounds() (minX, minY, maxX, maxY float64) {
	x0 := g.Transform.OriginX
	x1 := g.Transform.OriginX + float64(g.Width)*g.Transform.PixelSizeX
	y0 := g.Transform.OriginY
	y1 := g.Transform.OriginY + float64(g.Height)*g.Transform.PixelSizeY
	return math.Min(x0, x1), math.Min(y0, y1), math.Max(x0, x1), math.Max(y0, y1)
}

// SameGeometry reports whether two grids cover the same pixels
func (g *Grid) SameGeometry(other *Grid) bool {
	return g.Width == other.Width && g.Height == other.Height &&
		g.Transform == other.Transform && g.EPSG == other.EPSG
}

// KeepPositive replaces non-positive samples with nodata. Sentinel-2
// surface reflectance encodes nodata as zero.
func (g *Grid) KeepPositive() {
	nan := float32(math.NaN())
	for i, value := range g.Data {
		if value <= 0 {
			g.Data[i] = nan
		}
	}
}

// Regrid samples g onto the given geometry with nearest neighbor
// lookups. Target pixels whose centers fall outside g become nodata.
// The target must share the grid's coordinate system; reprojection is
// out of scope for the fetcher, which only composites scenes that are
// natively on the requested grid.
func (g *Grid) Regrid(width, height int, transform Transform, epsg int) (*Grid, error) {
	if epsg != g.EPSG {
		return nil, fmt.Errorf("Cannot regrid between coordinate systems: source is EPSG:%d, target is EPSG:%d", g.EPSG, epsg)
	}
	out := NewGrid(width, height, transform, epsg)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			x, y := transform.Center(col, row)
			srcCol := int(math.Floor((x - g.Transform.OriginX) / g.Transform.PixelSizeX))
			srcRow := int(math.Floor((y - g.Transform.OriginY) / g.Transform.PixelSizeY))
			if srcCol < 0 || srcCol >= g.Width || srcRow < 0 || srcRow >= g.Height {
				continue
			}
			out.Set(col, row, g.At(srcCol, srcRow))
		}
	}
	return out, nil
}

// Union returns the combined extent of the given grids
func Union(grids []*Grid) (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, g := range grids {
		gMinX, gMinY, gMaxX, gMaxY := g.Bounds()
		minX = math.Min(minX, gMinX)
		minY = math.Min(minY, gMinY)
		maxX = math.Max(maxX, gMaxX)
		maxY = math.Max(maxY, gMaxY)
	}
	return minX, minY, maxX, maxY
}

// Intersect clips one extent by another
func Intersect(minX, minY, maxX, maxY, clipMinX, clipMinY, clipMaxX, clipMaxY float64) (float64, float64, float64, float64) {
	return math.Max(minX, clipMinX), math.Max(minY, clipMinY),
		math.Min(maxX, clipMaxX), math.Min(maxY, clipMaxY)
}

// TargetGeometry lays a north-up grid of the given resolution over an
// extent. Origins snap outward to resolution multiples so scenes from
// the same tiling land on the same lattice.
func TargetGeometry(minX, minY, maxX, maxY, resolution float64) (int, int, Transform, error) {
	if resolution <= 0 {
		return 0, 0, Transform{}, fmt.Errorf("Resolution must be positive, got %v", resolution)
	}
	if minX >= maxX || minY >= maxY {
		return 0, 0, Transform{}, fmt.Errorf("Extent [%v %v %v %v] is empty", minX, minY, maxX, maxY)
	}
	snappedMinX := math.Floor(minX/resolution) * resolution
	snappedMaxY := math.Ceil(maxY/resolution) * resolution
	width := int(math.Ceil((maxX - snappedMinX) / resolution))
	height := int(math.Ceil((snappedMaxY - minY) / resolution))
	transform := Transform{
		OriginX:    snappedMinX,
		OriginY:    snappedMaxY,
		PixelSizeX: resolution,
		PixelSizeY: -resolution,
	}
	return width, height, transform, nil
}
