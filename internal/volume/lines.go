package volume

// Line addresses one 1-D line of a buffer: element i of the line lives at
// Offset + i*Stride.
type Line struct {
	Offset int
	Stride int
	Len    int
}

// At returns the buffer offset of element i.
func (l Line) At(i int) int {
	return l.Offset + i*l.Stride
}

// Lines calls fn once for every line along axis that covers region r of an
// image with the given shape, in buffer order of the line starts.
func Lines(shape Shape, r Region, axis int, fn func(Line)) {
	if r.Empty() {
		return
	}
	strides := shape.Strides()
	n := len(shape)
	idx := append([]int(nil), r.Start...)
	for {
		fn(Line{
			Offset: shape.Offset(idx),
			Stride: strides[axis],
			Len:    r.Size[axis],
		})

		// odometer over every axis except the line axis
		k := 0
		for ; k < n; k++ {
			if k == axis {
				continue
			}
			idx[k]++
			if idx[k] < r.Start[k]+r.Size[k] {
				break
			}
			idx[k] = r.Start[k]
		}
		if k == n {
			return
		}
	}
}

// Gather copies a line of src into dst, which must hold at least l.Len values.
func Gather[T any](dst []T, src []T, l Line) {
	for i := 0; i < l.Len; i++ {
		dst[i] = src[l.At(i)]
	}
}

// Scatter copies the first l.Len values of src into the line of dst.
func Scatter[T any](dst []T, src []T, l Line) {
	for i := 0; i < l.Len; i++ {
		dst[l.At(i)] = src[i]
	}
}
