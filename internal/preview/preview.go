// Package preview renders label images as colored PNGs for quick inspection.
package preview

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/labelmorph/internal/volume"
	"github.com/disintegration/gift"
)

// ErrSlice is returned when a plane cannot be cut from the label image.
var ErrSlice = errors.New("invalid preview slice")

// Options controls preview rendering.
type Options struct {
	// Scale is the integer upscaling factor (nearest neighbor). 0 means 1.
	Scale int
	// Slice fixes the index of every axis beyond the first two. Missing
	// entries default to the middle of the axis.
	Slice []int
	// Reference, if set, dims pixels whose label equals the reference label
	// so that changed pixels stand out.
	Reference *volume.Labels
}

// Color returns the display color of a label. Background is black; other
// labels get well separated hues from the golden ratio sequence.
func Color(label uint32) color.RGBA {
	if label == 0 {
		return color.RGBA{A: 255}
	}
	const golden = 0.618033988749895
	h := math.Mod(float64(label)*golden, 1)
	r, g, b := hsvToRGB(h, 0.65, 0.95)
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func hsvToRGB(h, s, v float64) (uint8, uint8, uint8) {
	i := math.Floor(h * 6)
	f := h*6 - i
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return uint8(r * 255), uint8(g * 255), uint8(b * 255)
}

// Plane returns the region covering the 2-D plane shown by a preview.
// One-dimensional images are shown as a single row.
func Plane(shape volume.Shape, slice []int) (volume.Region, error) {
	r := volume.Region{
		Start: make([]int, len(shape)),
		Size:  make([]int, len(shape)),
	}
	for k, n := range shape {
		if k < 2 {
			r.Size[k] = n
			continue
		}
		idx := n / 2
		if j := k - 2; j < len(slice) {
			idx = slice[j]
		}
		if idx < 0 || idx >= n {
			return r, fmt.Errorf("%w: index %d on axis %d of size %d", ErrSlice, idx, k, n)
		}
		r.Start[k] = idx
		r.Size[k] = 1
	}
	return r, nil
}

// Render colors one plane of l and upscales it.
func Render(l *volume.Labels, opts Options) (*image.RGBA, error) {
	if opts.Reference != nil && !opts.Reference.Shape.Equal(l.Shape) {
		return nil, fmt.Errorf("reference shape %s does not match %s", opts.Reference.Shape, l.Shape)
	}
	plane, err := Plane(l.Shape, opts.Slice)
	if err != nil {
		return nil, err
	}

	w := l.Shape[0]
	h := 1
	if len(l.Shape) > 1 {
		h = l.Shape[1]
	}
	src := image.NewRGBA(image.Rect(0, 0, w, h))

	y := 0
	volume.Lines(l.Shape, plane, 0, func(line volume.Line) {
		for x := 0; x < line.Len; x++ {
			off := line.At(x)
			c := Color(l.Data[off])
			if opts.Reference != nil && opts.Reference.Data[off] == l.Data[off] {
				c = dim(c)
			}
			src.SetRGBA(x, y, c)
		}
		y++
	})

	scale := max(opts.Scale, 1)
	if scale == 1 {
		return src, nil
	}

	g := gift.New(gift.Resize(w*scale, h*scale, gift.NearestNeighborResampling))
	dst := image.NewRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst, nil
}

func dim(c color.RGBA) color.RGBA {
	return color.RGBA{R: c.R / 3, G: c.G / 3, B: c.B / 3, A: c.A}
}

// WritePNG renders l and writes it to path.
func WritePNG(path string, l *volume.Labels, opts Options) error {
	img, err := Render(l, opts)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create preview %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode preview %s: %w", path, err)
	}
	return f.Close()
}
