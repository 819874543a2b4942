// Package labelstats counts labels and summarizes how a morphology pass
// changed them.
package labelstats

import (
	"fmt"
	"slices"

	"github.com/MeKo-Tech/labelmorph/internal/volume"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Counts maps each label to its pixel count, background included.
type Counts map[uint32]int

// Count tallies every label of l.
func Count(l *volume.Labels) Counts {
	c := Counts{}
	for _, v := range l.Data {
		c[v]++
	}
	return c
}

// Labels returns the foreground labels in ascending order.
func (c Counts) Labels() []uint32 {
	out := make([]uint32, 0, len(c))
	for label := range c {
		if label != 0 {
			out = append(out, label)
		}
	}
	slices.Sort(out)
	return out
}

// Summary describes the foreground label sizes of an image.
type Summary struct {
	Pixels     int
	Background int
	Labels     int
	MeanSize   float64
	StdDevSize float64
	MinSize    float64
	MaxSize    float64
}

// Summarize computes size statistics over the foreground labels.
func Summarize(c Counts) Summary {
	s := Summary{Background: c[0]}
	for _, n := range c {
		s.Pixels += n
	}

	labels := c.Labels()
	s.Labels = len(labels)
	if len(labels) == 0 {
		return s
	}

	sizes := make([]float64, len(labels))
	for i, label := range labels {
		sizes[i] = float64(c[label])
	}
	s.MinSize = floats.Min(sizes)
	s.MaxSize = floats.Max(sizes)
	if len(sizes) == 1 {
		s.MeanSize = sizes[0]
		return s
	}
	s.MeanSize, s.StdDevSize = stat.MeanStdDev(sizes, nil)
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%d pixels, %d background, %d labels (size mean %.1f, sd %.1f, min %.0f, max %.0f)",
		s.Pixels, s.Background, s.Labels, s.MeanSize, s.StdDevSize, s.MinSize, s.MaxSize)
}

// Change is the pixel count of one label before and after an operation.
type Change struct {
	Label  uint32
	Before int
	After  int
}

// Delta returns After - Before.
func (c Change) Delta() int {
	return c.After - c.Before
}

// Compare lists every label present in either count, ascending, background first.
func Compare(before, after Counts) []Change {
	seen := map[uint32]bool{}
	var labels []uint32
	for _, c := range []Counts{before, after} {
		for label := range c {
			if !seen[label] {
				seen[label] = true
				labels = append(labels, label)
			}
		}
	}
	slices.Sort(labels)

	out := make([]Change, len(labels))
	for i, label := range labels {
		out[i] = Change{Label: label, Before: before[label], After: after[label]}
	}
	return out
}

// ChangedPixels counts positions whose label differs between two images of
// the same shape.
func ChangedPixels(before, after *volume.Labels) (int, error) {
	if !before.Shape.Equal(after.Shape) {
		return 0, fmt.Errorf("shape %s does not match %s", before.Shape, after.Shape)
	}
	n := 0
	for i, v := range before.Data {
		if after.Data[i] != v {
			n++
		}
	}
	return n, nil
}
