// Package volume provides plain owned N-dimensional buffers for label images
// and the real-valued scratch images used by the morphology passes.
//
// Buffers are contiguous with axis 0 varying fastest, so the stride of axis k
// is the product of the sizes of axes 0..k-1.
package volume

import (
	"errors"
	"fmt"
)

// ErrInvalidShape is returned when a shape has no axes or a non-positive size.
var ErrInvalidShape = errors.New("invalid shape")

// Shape is the size of each axis.
type Shape []int

// Validate checks that the shape has at least one axis and all sizes are positive.
func (s Shape) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: no axes", ErrInvalidShape)
	}
	for k, n := range s {
		if n <= 0 {
			return fmt.Errorf("%w: axis %d has size %d", ErrInvalidShape, k, n)
		}
	}
	return nil
}

// Len returns the number of pixels.
func (s Shape) Len() int {
	n := 1
	for _, v := range s {
		n *= v
	}
	return n
}

// Strides returns the element stride of each axis.
func (s Shape) Strides() []int {
	st := make([]int, len(s))
	acc := 1
	for k, n := range s {
		st[k] = acc
		acc *= n
	}
	return st
}

// Equal reports whether both shapes have the same axes and sizes.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for k := range s {
		if s[k] != o[k] {
			return false
		}
	}
	return true
}

// Offset returns the linear offset of an index. The index is not bounds checked.
func (s Shape) Offset(idx []int) int {
	off, acc := 0, 1
	for k, n := range s {
		off += idx[k] * acc
		acc *= n
	}
	return off
}

// Index converts a linear offset back to an N-dimensional index.
func (s Shape) Index(off int) []int {
	idx := make([]int, len(s))
	for k, n := range s {
		idx[k] = off % n
		off /= n
	}
	return idx
}

func (s Shape) String() string {
	out := ""
	for k, n := range s {
		if k > 0 {
			out += "x"
		}
		out += fmt.Sprintf("%d", n)
	}
	return out
}

func (s Shape) clone() Shape {
	return append(Shape(nil), s...)
}

// Labels is an N-dimensional label image. Label 0 is background.
type Labels struct {
	Shape   Shape
	Spacing []float64
	Data    []uint32
}

// NewLabels allocates a zeroed label image with unit spacing.
func NewLabels(shape Shape) (*Labels, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &Labels{
		Shape:   shape.clone(),
		Spacing: unitSpacing(len(shape)),
		Data:    make([]uint32, shape.Len()),
	}, nil
}

// MustLabels is NewLabels for shapes known to be valid. It panics otherwise.
func MustLabels(shape Shape) *Labels {
	l, err := NewLabels(shape)
	if err != nil {
		panic(err)
	}
	return l
}

// FromSlice wraps data as a label image of the given shape.
func FromSlice(shape Shape, data []uint32) (*Labels, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(data) != shape.Len() {
		return nil, fmt.Errorf("%w: %d values for shape %s", ErrInvalidShape, len(data), shape)
	}
	return &Labels{Shape: shape.clone(), Spacing: unitSpacing(len(shape)), Data: data}, nil
}

// At returns the label at idx.
func (l *Labels) At(idx ...int) uint32 {
	return l.Data[l.Shape.Offset(idx)]
}

// Set stores a label at idx.
func (l *Labels) Set(v uint32, idx ...int) {
	l.Data[l.Shape.Offset(idx)] = v
}

// Clone returns a deep copy.
func (l *Labels) Clone() *Labels {
	return &Labels{
		Shape:   l.Shape.clone(),
		Spacing: append([]float64(nil), l.Spacing...),
		Data:    append([]uint32(nil), l.Data...),
	}
}

// Float is an N-dimensional real-valued image.
type Float struct {
	Shape Shape
	Data  []float64
}

// NewFloat allocates a zeroed float image.
func NewFloat(shape Shape) (*Float, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &Float{Shape: shape.clone(), Data: make([]float64, shape.Len())}, nil
}

// At returns the value at idx.
func (f *Float) At(idx ...int) float64 {
	return f.Data[f.Shape.Offset(idx)]
}

// Set stores a value at idx.
func (f *Float) Set(v float64, idx ...int) {
	f.Data[f.Shape.Offset(idx)] = v
}

// Fill sets every element to v.
func (f *Float) Fill(v float64) {
	for i := range f.Data {
		f.Data[i] = v
	}
}

func unitSpacing(n int) []float64 {
	sp := make([]float64, n)
	for i := range sp {
		sp[i] = 1
	}
	return sp
}
