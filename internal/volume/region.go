package volume

import (
	"errors"
	"fmt"
)

// ErrRegionOutOfBounds is returned when a region does not lie inside the image.
var ErrRegionOutOfBounds = errors.New("region outside image extent")

// Region is a rectangular sub-region of an N-dimensional image.
type Region struct {
	Start []int
	Size  []int
}

// Full returns the region covering the whole shape.
func Full(shape Shape) Region {
	return Region{Start: make([]int, len(shape)), Size: append([]int(nil), shape...)}
}

// Len returns the number of pixels in the region.
func (r Region) Len() int {
	n := 1
	for _, v := range r.Size {
		n *= v
	}
	return n
}

// Empty reports whether the region contains no pixels.
func (r Region) Empty() bool {
	return r.Len() == 0
}

// Within checks that the region lies inside shape.
func (r Region) Within(shape Shape) error {
	if len(r.Start) != len(shape) || len(r.Size) != len(shape) {
		return fmt.Errorf("%w: region has %d/%d axes, image has %d",
			ErrRegionOutOfBounds, len(r.Start), len(r.Size), len(shape))
	}
	for k := range shape {
		if r.Start[k] < 0 || r.Size[k] < 0 || r.Start[k]+r.Size[k] > shape[k] {
			return fmt.Errorf("%w: axis %d spans [%d,%d) of %d",
				ErrRegionOutOfBounds, k, r.Start[k], r.Start[k]+r.Size[k], shape[k])
		}
	}
	return nil
}

// Contains reports whether idx lies inside the region.
func (r Region) Contains(idx []int) bool {
	for k := range r.Start {
		if idx[k] < r.Start[k] || idx[k] >= r.Start[k]+r.Size[k] {
			return false
		}
	}
	return true
}

// LineCount returns the number of lines along axis that cover the region.
func (r Region) LineCount(axis int) int {
	if r.Empty() {
		return 0
	}
	return r.Len() / r.Size[axis]
}

// Split divides the region into at most n disjoint chunks that each contain
// whole lines along axis. The split is made along the largest other axis.
func (r Region) Split(axis, n int) []Region {
	if r.Empty() {
		return nil
	}
	splitAxis := -1
	for k, sz := range r.Size {
		if k == axis {
			continue
		}
		if splitAxis < 0 || sz > r.Size[splitAxis] {
			splitAxis = k
		}
	}
	if splitAxis < 0 || n <= 1 {
		return []Region{r.clone()}
	}
	extent := r.Size[splitAxis]
	if n > extent {
		n = extent
	}
	chunks := make([]Region, 0, n)
	start := r.Start[splitAxis]
	for i := 0; i < n; i++ {
		// distribute the remainder over the first chunks
		sz := extent / n
		if i < extent%n {
			sz++
		}
		c := r.clone()
		c.Start[splitAxis] = start
		c.Size[splitAxis] = sz
		chunks = append(chunks, c)
		start += sz
	}
	return chunks
}

func (r Region) clone() Region {
	return Region{Start: append([]int(nil), r.Start...), Size: append([]int(nil), r.Size...)}
}

func (r Region) String() string {
	return fmt.Sprintf("start=%v size=%v", r.Start, r.Size)
}
