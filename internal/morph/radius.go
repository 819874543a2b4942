package morph

import (
	"fmt"

	"github.com/MeKo-Tech/labelmorph/internal/volume"
)

// RadiusSource returns the radius multiplier of a pixel. The structuring
// element at a pixel is the axis-aligned ellipse with semi-axis
// scale[k]*m along axis k. Zero leaves the pixel unchanged.
type RadiusSource interface {
	RadiusAt(offset int, label uint32) float64
}

// Uniform applies the same multiplier to every pixel.
type Uniform float64

// RadiusAt returns u.
func (u Uniform) RadiusAt(int, uint32) float64 {
	return float64(u)
}

// RadiusMap reads the multiplier from a float image of the same shape as
// the label image.
type RadiusMap struct {
	Map *volume.Float
}

// RadiusAt returns the map value at offset.
func (r RadiusMap) RadiusAt(offset int, _ uint32) float64 {
	return r.Map.Data[offset]
}

// LabelRadii looks the multiplier up by the label value of the pixel.
// Labels missing from the table use Default.
type LabelRadii struct {
	Radii   map[uint32]float64
	Default float64
}

// RadiusAt returns the radius registered for label.
func (l LabelRadii) RadiusAt(_ int, label uint32) float64 {
	if r, ok := l.Radii[label]; ok {
		return r
	}
	return l.Default
}

// validateRadius rejects negative multipliers before any line is processed.
func validateRadius(src RadiusSource, in *volume.Labels) error {
	switch r := src.(type) {
	case Uniform:
		if r < 0 {
			return fmt.Errorf("%w: %v", ErrNegativeRadius, float64(r))
		}
		return nil
	case RadiusMap:
		if r.Map == nil || !r.Map.Shape.Equal(in.Shape) {
			return fmt.Errorf("%w: radius map does not match image shape %s", ErrShapeMismatch, in.Shape)
		}
		for i, v := range r.Map.Data {
			if v < 0 {
				return fmt.Errorf("%w: %v at %v", ErrNegativeRadius, v, in.Shape.Index(i))
			}
		}
		return nil
	case LabelRadii:
		if r.Default < 0 {
			return fmt.Errorf("%w: default %v", ErrNegativeRadius, r.Default)
		}
		for label, v := range r.Radii {
			if v < 0 {
				return fmt.Errorf("%w: %v for label %d", ErrNegativeRadius, v, label)
			}
		}
		return nil
	}

	for i, label := range in.Data {
		if v := src.RadiusAt(i, label); v < 0 {
			return fmt.Errorf("%w: %v at %v", ErrNegativeRadius, v, in.Shape.Index(i))
		}
	}
	return nil
}
