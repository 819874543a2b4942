// Package synth generates synthetic label images for benchmarks, tests and
// the synth command.
package synth

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/labelmorph/internal/volume"
	"github.com/aquilax/go-perlin"
)

// BlobOptions controls Perlin blob generation.
type BlobOptions struct {
	// Seed makes generation deterministic.
	Seed int64
	// Scale is the noise feature size in pixels (larger = bigger blobs).
	Scale float64
	// Threshold in [0,1] on the normalized noise. Pixels below it are background.
	Threshold float64
	// Labels is the number of foreground labels. Foreground is split into
	// bands of equal noise range, so different labels touch each other.
	Labels int
}

// DefaultBlobOptions returns settings that give a mix of background and a few
// touching labels.
func DefaultBlobOptions() BlobOptions {
	return BlobOptions{
		Seed:      1,
		Scale:     16,
		Threshold: 0.45,
		Labels:    3,
	}
}

// Blobs fills a label image of the given shape with thresholded Perlin noise.
// Axes beyond the third are folded into the z coordinate of the noise field.
func Blobs(shape volume.Shape, opts BlobOptions) (*volume.Labels, error) {
	out, err := volume.NewLabels(shape)
	if err != nil {
		return nil, err
	}
	if opts.Scale <= 0 {
		return nil, fmt.Errorf("blob scale must be positive, got %g", opts.Scale)
	}
	if opts.Threshold < 0 || opts.Threshold > 1 {
		return nil, fmt.Errorf("blob threshold must be in [0,1], got %g", opts.Threshold)
	}
	if opts.Labels < 1 {
		return nil, fmt.Errorf("blob label count must be at least 1, got %d", opts.Labels)
	}

	// alpha: persistence, beta: lacunarity, n: octaves
	p := perlin.NewPerlin(2.0, 2.0, 3, opts.Seed)

	noise := make([]float64, len(out.Data))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range noise {
		x, y, z := noiseCoords(shape, i)
		var v float64
		switch len(shape) {
		case 1:
			v = p.Noise1D(x / opts.Scale)
		case 2:
			v = p.Noise2D(x/opts.Scale, y/opts.Scale)
		default:
			v = p.Noise3D(x/opts.Scale, y/opts.Scale, z/opts.Scale)
		}
		noise[i] = v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	span := hi - lo
	if span == 0 {
		return out, nil
	}
	for i, v := range noise {
		n := (v - lo) / span
		if n < opts.Threshold {
			continue
		}
		band := 1.0
		if opts.Threshold < 1 {
			band = (n - opts.Threshold) / (1 - opts.Threshold)
		}
		label := 1 + int(band*float64(opts.Labels))
		if label > opts.Labels {
			label = opts.Labels
		}
		out.Data[i] = uint32(label)
	}
	return out, nil
}

// noiseCoords maps a pixel offset to noise space. Axes 3 and up are stacked
// along z with a gap, so every slab gets an independent pattern.
func noiseCoords(shape volume.Shape, off int) (x, y, z float64) {
	idx := shape.Index(off)
	x = float64(idx[0])
	if len(idx) > 1 {
		y = float64(idx[1])
	}
	if len(idx) > 2 {
		z = float64(idx[2])
		stack := float64(shape[2]) + 8
		for k := 3; k < len(idx); k++ {
			z += float64(idx[k]) * stack
			stack *= float64(shape[k])
		}
	}
	return x, y, z
}

// Box is an axis-aligned block of one label. Start and End are inclusive.
type Box struct {
	Label uint32
	Start []int
	End   []int
}

// Boxes paints boxes onto a zeroed label image in order, later boxes on top.
// Boxes are clipped to the image.
func Boxes(shape volume.Shape, boxes ...Box) (*volume.Labels, error) {
	out, err := volume.NewLabels(shape)
	if err != nil {
		return nil, err
	}
	for i, b := range boxes {
		if len(b.Start) != len(shape) || len(b.End) != len(shape) {
			return nil, fmt.Errorf("box %d has %d/%d coordinates for %d axes", i, len(b.Start), len(b.End), len(shape))
		}
		start := make([]int, len(shape))
		size := make([]int, len(shape))
		empty := false
		for k := range shape {
			s := max(b.Start[k], 0)
			e := min(b.End[k], shape[k]-1)
			if e < s {
				empty = true
				break
			}
			start[k], size[k] = s, e-s+1
		}
		if empty {
			continue
		}

		r := volume.Region{Start: start, Size: size}
		volume.Lines(shape, r, 0, func(l volume.Line) {
			for j := 0; j < l.Len; j++ {
				out.Data[l.At(j)] = b.Label
			}
		})
	}
	return out, nil
}
