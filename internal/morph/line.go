package morph

import (
	"math"

	"github.com/MeKo-Tech/labelmorph/internal/volume"
)

// lineProcessor owns the per-line scratch buffers of one worker. Lines are
// gathered from the shared buffers, processed locally and scattered back, so
// that every source is read with its value from the previous axis.
type lineProcessor struct {
	mode   Mode
	radius RadiusSource

	label  []uint32  // original labels
	prev   []float64 // distance state before this axis
	carry  []uint32  // provisional output before this axis
	next   []float64 // distance state after this axis
	result []uint32  // output after this axis
	arg    []int
	env    *envelope
}

func newLineProcessor(mode Mode, radius RadiusSource, n int) *lineProcessor {
	return &lineProcessor{
		mode:   mode,
		radius: radius,
		label:  make([]uint32, n),
		prev:   make([]float64, n),
		carry:  make([]uint32, n),
		next:   make([]float64, n),
		result: make([]uint32, n),
		arg:    make([]int, n),
		env:    newEnvelope(n),
	}
}

// linePass describes the buffers and constants shared by every line of one
// axis pass.
type linePass struct {
	in     []uint32
	out    []uint32
	dist   []float64
	weight float64 // 1/scale^2, times spacing^2 in spacing-aware mode
	last   bool
}

// firstPass initializes the distance state of one line from the labels and
// the per-pixel radius, then runs the sweep along the line.
//
// Erosion starts foreground pixels at +Inf (no boundary seen yet).
// Dilation starts foreground pixels at -r^2 so that a background pixel at
// weighted squared distance d from it is reached when d - r^2 <= 0, and
// starts background pixels at +Inf.
func (lp *lineProcessor) firstPass(ps *linePass, line volume.Line) {
	n := line.Len
	volume.Gather(lp.label, ps.in, line)
	for i := 0; i < n; i++ {
		lab := lp.label[i]
		lp.carry[i] = lab
		switch {
		case lab == Background && lp.mode == Erode:
			lp.prev[i] = 0
		case lab == Background:
			lp.prev[i] = math.Inf(1)
		case lp.mode == Erode:
			lp.prev[i] = math.Inf(1)
		default:
			r := lp.radius.RadiusAt(line.At(i), lab)
			lp.prev[i] = -r * r
		}
	}
	lp.sweep(ps, line)
}

// standardPass continues the transform on a line whose distance state was
// written by the previous axes.
func (lp *lineProcessor) standardPass(ps *linePass, line volume.Line) {
	volume.Gather(lp.label, ps.in, line)
	volume.Gather(lp.prev, ps.dist, line)
	volume.Gather(lp.carry, ps.out, line)
	lp.sweep(ps, line)
}

// sweep processes the line one run of constant original label at a time.
// A parabola only contributes to targets in its own run, except that
//   - under erosion the pixels just outside a foreground run act as
//     boundary sources with value 0, and
//   - under dilation a background run also sees the foreground runs on
//     either side of it, carrying their labels into the background.
func (lp *lineProcessor) sweep(ps *linePass, line volume.Line) {
	n := line.Len
	w := ps.weight

	for s := 0; s < n; {
		lab := lp.label[s]
		e := s
		for e+1 < n && lp.label[e+1] == lab {
			e++
		}

		switch {
		case !lp.mode.fillable(lab):
			// background under erosion, labelled regions under dilation
			lp.keepRun(w, s, e)
		case lp.mode == Erode:
			lp.erodeRun(w, s, e, n)
		default:
			lp.dilateRun(w, s, e, n)
		}
		s = e + 1
	}

	if ps.last {
		lp.threshold(line)
	}

	volume.Scatter(ps.dist, lp.next, line)
	volume.Scatter(ps.out, lp.result, line)
}

// keepRun handles a run whose pixels cannot change. Under dilation its
// distance state is still propagated within the run so that later axes see
// the minimum over the same-label pixels of this line.
func (lp *lineProcessor) keepRun(w float64, s, e int) {
	if lp.mode == Erode {
		for p := s; p <= e; p++ {
			lp.next[p] = 0
			lp.result[p] = Background
		}
		return
	}
	lp.env.lower(w, lp.prev, s, e, s, e, lp.next, lp.arg)
	for p := s; p <= e; p++ {
		lp.result[p] = lp.label[p]
	}
}

func (lp *lineProcessor) erodeRun(w float64, s, e, n int) {
	lp.env.lower(w, lp.prev, s, e, s, e, lp.next, lp.arg)
	for p := s; p <= e; p++ {
		d := lp.next[p]
		if s > 0 {
			dl := float64(p - s + 1)
			d = math.Min(d, w*dl*dl)
		}
		if e < n-1 {
			dr := float64(e + 1 - p)
			d = math.Min(d, w*dr*dr)
		}
		lp.next[p] = d
		lp.result[p] = lp.label[p]
	}
}

func (lp *lineProcessor) dilateRun(w float64, s, e, n int) {
	a, b := s, e
	if a > 0 {
		a--
		for a > 0 && lp.label[a-1] == lp.label[a] {
			a--
		}
	}
	if b < n-1 {
		b++
		for b < n-1 && lp.label[b+1] == lp.label[b] {
			b++
		}
	}

	lp.env.lower(w, lp.prev, a, b, s, e, lp.next, lp.arg)
	for p := s; p <= e; p++ {
		if q := lp.arg[p]; q >= 0 {
			lp.result[p] = lp.carry[q]
		} else {
			lp.result[p] = Background
		}
	}
}

// threshold converts the final distance state into output labels. Under
// dilation result already holds the label of the nearest source.
func (lp *lineProcessor) threshold(line volume.Line) {
	for p := 0; p < line.Len; p++ {
		lab := lp.label[p]
		if !lp.mode.fillable(lab) {
			continue
		}
		if lp.mode == Dilate {
			if !lp.mode.within(lp.next[p], 0) {
				lp.result[p] = Background
			}
			continue
		}
		r := lp.radius.RadiusAt(line.At(p), lab)
		if lp.mode.within(lp.next[p], r*r) {
			lp.result[p] = Background
		}
	}
}
