package raster

import (
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// MedianStack reduces a time stack of grids to their per-pixel median,
// ignoring nodata samples. Pixels with no usable samples stay nodata.
// Rows are reduced in chunks of chunksize across workers.
func MedianStack(stack []*Grid, chunksize int) (*Grid, error) {
	if len(stack) == 0 {
		return nil, fmt.Errorf("Cannot reduce an empty stack")
	}
	first := stack[0]
	for i, g := range stack[1:] {
		if !first.SameGeometry(g) {
			return nil, fmt.Errorf("Grid %d does not match the stack geometry", i+1)
		}
	}
	if chunksize <= 0 {
		chunksize = first.Height
	}

	out := NewGrid(first.Width, first.Height, first.Transform, first.EPSG)
	group := new(errgroup.Group)
	for start := 0; start < first.Height; start += chunksize {
		start := start
		end := start + chunksize
		if end > first.Height {
			end = first.Height
		}
		group.Go(func() error {
			values := make([]float32, 0, len(stack))
			for row := start; row < end; row++ {
				for col := 0; col < first.Width; col++ {
					values = values[:0]
					for _, g := range stack {
						if value := g.Data[row*first.Width+col]; !math.IsNaN(float64(value)) {
							values = append(values, value)
						}
					}
					if len(values) > 0 {
						out.Data[row*first.Width+col] = median(values)
					}
				}
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// median sorts its input in place by insertion; time stacks are small
func median(values []float32) float32 {
	for i := 1; i < len(values); i++ {
		for j := i; j > 0 && values[j-1] > values[j]; j-- {
			values[j-1], values[j] = values[j], values[j-1]
		}
	}
	middle := len(values) / 2
	if len(values)%2 == 1 {
		return values[middle]
	}
	return (values[middle-1] + values[middle]) / 2
}
