package raster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// General test mocks and utils

func gridWithValues(width, height int, transform Transform, epsg int, values []float32) *Grid {
	g := NewGrid(width, height, transform, epsg)
	copy(g.Data, values)
	return g
}

func assertNoData(t *testing.T, g *Grid, col, row int) {
	assert.True(t, math.IsNaN(float64(g.At(col, row))), "pixel (%d, %d) should be nodata", col, row)
}

// Actual tests

func TestNewGrid_StartsAsNoData(t *testing.T) {
	// Tested code
	g := NewGrid(3, 2, Transform{OriginX: 100, OriginY: 200, PixelSizeX: 10, PixelSizeY: -10}, 32630)

	// Asserts
	assert.Len(t, g.Data, 6)
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			assertNoData(t, g, col, row)
		}
	}
}

func TestGrid_Bounds(t *testing.T) {
	// Mock
	g := NewGrid(4, 3, Transform{OriginX: 100, OriginY: 200, PixelSizeX: 10, PixelSizeY: -10}, 32630)

	// Tested code
	minX, minY, maxX, maxY := g.Bounds()

	// Asserts
	assert.Equal(t, 100.0, minX)
	assert.Equal(t, 170.0, minY)
	assert.Equal(t, 140.0, maxX)
	assert.Equal(t, 200.0, maxY)
}

func TestGrid_KeepPositive(t *testing.T) {
	// Mock
	g := gridWithValues(2, 2, Transform{PixelSizeX: 1, PixelSizeY: -1}, 32630, []float32{0, -5, 1200, 0.5})

	// Tested code
	g.KeepPositive()

	// Asserts
	assertNoData(t, g, 0, 0)
	assertNoData(t, g, 1, 0)
	assert.Equal(t, float32(1200), g.At(0, 1))
	assert.Equal(t, float32(0.5), g.At(1, 1))
}

func TestGrid_Regrid_Shift(t *testing.T) {
	// Mock
	source := gridWithValues(4, 4, Transform{OriginX: 0, OriginY: 40, PixelSizeX: 10, PixelSizeY: -10}, 32630, []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	})

	// Tested code
	out, err := source.Regrid(2, 2, Transform{OriginX: 10, OriginY: 30, PixelSizeX: 10, PixelSizeY: -10}, 32630)

	// Asserts
	assert.Nil(t, err)
	assert.Equal(t, float32(6), out.At(0, 0))
	assert.Equal(t, float32(7), out.At(1, 0))
	assert.Equal(t, float32(10), out.At(0, 1))
	assert.Equal(t, float32(11), out.At(1, 1))
}

func TestGrid_Regrid_UpsamplesCoarserBands(t *testing.T) {
	// Mock: a 20 m band laid onto a 10 m target doubles every pixel
	source := gridWithValues(2, 2, Transform{OriginX: 0, OriginY: 40, PixelSizeX: 20, PixelSizeY: -20}, 32630, []float32{
		1, 2,
		3, 4,
	})

	// Tested code
	out, err := source.Regrid(4, 4, Transform{OriginX: 0, OriginY: 40, PixelSizeX: 10, PixelSizeY: -10}, 32630)

	// Asserts
	assert.Nil(t, err)
	assert.Equal(t, []float32{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}, out.Data)
}

func TestGrid_Regrid_OutsideSourceIsNoData(t *testing.T) {
	// Mock
	source := gridWithValues(2, 2, Transform{OriginX: 0, OriginY: 20, PixelSizeX: 10, PixelSizeY: -10}, 32630, []float32{1, 2, 3, 4})

	// Tested code
	out, err := source.Regrid(2, 2, Transform{OriginX: 100, OriginY: 120, PixelSizeX: 10, PixelSizeY: -10}, 32630)

	// Asserts
	assert.Nil(t, err)
	for i := range out.Data {
		assert.True(t, math.IsNaN(float64(out.Data[i])))
	}
}

func TestGrid_Regrid_RejectsCRSMismatch(t *testing.T) {
	// Mock
	source := NewGrid(2, 2, Transform{PixelSizeX: 10, PixelSizeY: -10}, 32629)

	// Tested code
	_, err := source.Regrid(2, 2, Transform{PixelSizeX: 10, PixelSizeY: -10}, 32630)

	// Asserts
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "EPSG:32629")
}

func TestUnionAndIntersect(t *testing.T) {
	// Mock
	a := NewGrid(2, 2, Transform{OriginX: 0, OriginY: 20, PixelSizeX: 10, PixelSizeY: -10}, 32630)
	b := NewGrid(2, 2, Transform{OriginX: 10, OriginY: 40, PixelSizeX: 10, PixelSizeY: -10}, 32630)

	// Tested code
	minX, minY, maxX, maxY := Union([]*Grid{a, b})

	// Asserts
	assert.Equal(t, []float64{0, 0, 30, 40}, []float64{minX, minY, maxX, maxY})

	clippedMinX, clippedMinY, clippedMaxX, clippedMaxY := Intersect(minX, minY, maxX, maxY, 5, 5, 25, 100)
	assert.Equal(t, []float64{5, 5, 25, 40}, []float64{clippedMinX, clippedMinY, clippedMaxX, clippedMaxY})
}

func TestTargetGeometry(t *testing.T) {
	// Tested code
	width, height, transform, err := TargetGeometry(1003, 5000, 1097, 5115, 10)

	// Asserts
	assert.Nil(t, err)
	assert.Equal(t, 1000.0, transform.OriginX, "origins snap outward to resolution multiples")
	assert.Equal(t, 5120.0, transform.OriginY)
	assert.Equal(t, 10.0, transform.PixelSizeX)
	assert.Equal(t, -10.0, transform.PixelSizeY)
	assert.Equal(t, 10, width)
	assert.Equal(t, 12, height)

	_, _, _, err = TargetGeometry(10, 10, 5, 20, 10)
	assert.NotNil(t, err, "empty extents are rejected")

	_, _, _, err = TargetGeometry(0, 0, 10, 10, 0)
	assert.NotNil(t, err, "resolutions must be positive")
}
