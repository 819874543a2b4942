// Package morph implements label-aware erosion and dilation of N-dimensional
// label images with elliptical structuring elements.
//
// The operation is separable: every axis is swept line by line with a
// parabolic lower-envelope distance transform, and the generalized squared
// distance accumulated so far is kept in a real-valued distance buffer that
// is carried from one axis pass to the next. Influence never crosses a
// change of label, so regions erode and dilate independently and can never
// merge through each other.
package morph

// Mode selects erosion or dilation. Both operations share the same line
// processors; the mode only flips which pixels can change and the direction
// of the final threshold.
type Mode bool

const (
	// Erode shrinks every labelled region; pixels can only become background.
	Erode Mode = false
	// Dilate grows every labelled region into background.
	Dilate Mode = true
)

func (m Mode) String() string {
	if m == Dilate {
		return "dilate"
	}
	return "erode"
}

// fillable reports whether a pixel with the given original label can change
// its value under this mode.
func (m Mode) fillable(label uint32) bool {
	if m == Dilate {
		return label == Background
	}
	return label != Background
}

// within reports whether a final distance value means the structuring
// element reached the pixel. radius2 is the squared radius multiplier of the
// pixel itself and is only used by erosion; dilation folds the source radius
// into the distance during the first pass.
func (m Mode) within(dist, radius2 float64) bool {
	if m == Dilate {
		return dist <= 0
	}
	return dist <= radius2
}
