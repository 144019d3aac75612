package raster

import (
	"math"
	"sort"
)

// MaskOutside sets samples whose pixel centers fall outside the given
// polygons to nodata. Polygons are lists of rings in the grid's
// coordinate system; containment follows the even-odd rule, so
// interior rings cut holes.
func (g *Grid) MaskOutside(polygons [][][][]float64) {
	nan := float32(math.NaN())
	crossings := make([]float64, 0, 16)
	for row := 0; row < g.Height; row++ {
		_, y := g.Transform.Center(0, row)
		crossings = crossings[:0]
		for _, polygon := range polygons {
			for _, ring := range polygon {
				crossings = appendRingCrossings(crossings, ring, y)
			}
		}
		sort.Float64s(crossings)
		for col := 0; col < g.Width; col++ {
			x, _ := g.Transform.Center(col, row)
			if sort.SearchFloat64s(crossings, x)%2 == 0 {
				g.Data[row*g.Width+col] = nan
			}
		}
	}
}

// appendRingCrossings collects the x coordinates where a scanline at y
// crosses the ring's edges. The half-open rule at vertices keeps the
// crossing count even for closed rings.
func appendRingCrossings(crossings []float64, ring [][]float64, y float64) []float64 {
	for i := 0; i < len(ring); i++ {
		x1, y1 := ring[i][0], ring[i][1]
		x2, y2 := ring[(i+1)%len(ring)][0], ring[(i+1)%len(ring)][1]
		if x1 == x2 && y1 == y2 {
			continue
		}
		if (y1 > y) != (y2 > y) {
			crossings = append(crossings, x1+(y-y1)*(x2-x1)/(y2-y1))
		}
	}
	return crossings
}
