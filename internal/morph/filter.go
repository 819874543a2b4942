package morph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"github.com/MeKo-Tech/labelmorph/internal/volume"
	"github.com/MeKo-Tech/labelmorph/internal/worker"
)

// Background is the reserved label of pixels that belong to no region.
const Background uint32 = 0

var (
	// ErrScaleLength is returned when the scale vector does not have one entry per axis.
	ErrScaleLength = errors.New("scale vector length does not match image dimension")
	// ErrNegativeScale is returned for negative or non-finite scale entries.
	ErrNegativeScale = errors.New("scale must be a finite non-negative value")
	// ErrNegativeRadius is returned when a radius source yields a negative multiplier.
	ErrNegativeRadius = errors.New("radius must be non-negative")
	// ErrShapeMismatch is returned when an auxiliary image does not match the input shape.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrInvalidSpacing is returned when spacing-aware mode meets a non-positive spacing.
	ErrInvalidSpacing = errors.New("spacing must be positive")
	// ErrRegionOutOfBounds is returned when the requested region leaves the image.
	ErrRegionOutOfBounds = volume.ErrRegionOutOfBounds
)

// Options configures one erosion or dilation.
type Options struct {
	// Scale is the structuring element radius along each axis, in pixels or,
	// with UseImageSpacing, in physical units. Zero disables an axis.
	Scale []float64

	// UseImageSpacing measures distances in the physical units of the
	// input spacing instead of pixels.
	UseImageSpacing bool

	// Radius scales the structuring element per pixel. Nil means Uniform(1).
	Radius RadiusSource

	// Region restricts processing. Pixels outside it are copied unchanged.
	// Nil means the whole image.
	Region *volume.Region

	// Workers is the number of parallel workers. Zero means runtime.NumCPU().
	Workers int

	// Progress is called once per processed line with that line's share of
	// the whole operation; the shares of one operation sum to 1.
	Progress func(delta float64)

	// AxisWeights optionally overrides the share of progress each axis
	// contributes. Disabled axes are ignored.
	AxisWeights []float64

	Logger *slog.Logger
}

// UniformScale returns a scale vector with radius r on each of n axes.
func UniformScale(n int, r float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = r
	}
	return s
}

// Filter performs label-aware erosion or dilation.
type Filter struct {
	mode Mode
	opts Options
}

// New creates a filter for the given mode.
func New(mode Mode, opts Options) *Filter {
	return &Filter{mode: mode, opts: opts}
}

// ErodeLabels erodes every region of in independently.
func ErodeLabels(ctx context.Context, in *volume.Labels, opts Options) (*volume.Labels, error) {
	return New(Erode, opts).Apply(ctx, in)
}

// DilateLabels grows every region of in into the background.
func DilateLabels(ctx context.Context, in *volume.Labels, opts Options) (*volume.Labels, error) {
	return New(Dilate, opts).Apply(ctx, in)
}

// Mode returns the filter's mode.
func (f *Filter) Mode() Mode {
	return f.mode
}

// Apply runs the operation and returns a new label image. The input is not
// modified. All preconditions are checked before any line is processed.
// Cancellation is observed between axis passes and between chunks.
func (f *Filter) Apply(ctx context.Context, in *volume.Labels) (*volume.Labels, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: nil input", ErrShapeMismatch)
	}
	if err := in.Shape.Validate(); err != nil {
		return nil, err
	}
	if len(in.Data) != in.Shape.Len() {
		return nil, fmt.Errorf("%w: %d values for shape %s", ErrShapeMismatch, len(in.Data), in.Shape)
	}

	region := volume.Full(in.Shape)
	if f.opts.Region != nil {
		region = *f.opts.Region
	}
	if err := region.Within(in.Shape); err != nil {
		return nil, err
	}

	weights, err := f.axisWeights(in)
	if err != nil {
		return nil, err
	}

	radius := f.opts.Radius
	if radius == nil {
		radius = Uniform(1)
	}
	if err := validateRadius(radius, in); err != nil {
		return nil, err
	}

	progressShares, err := f.progressShares(weights)
	if err != nil {
		return nil, err
	}

	out := in.Clone()

	active := activeAxes(weights)
	if len(active) == 0 || region.Empty() {
		f.log().Debug("Nothing to do, copying input", "mode", f.mode.String(), "shape", in.Shape.String())
		if f.opts.Progress != nil {
			f.opts.Progress(1)
		}
		return out, nil
	}

	workers := f.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	sw := &sweeper{
		mode:     f.mode,
		radius:   radius,
		in:       in,
		out:      out.Data,
		dist:     make([]float64, in.Shape.Len()),
		region:   region,
		logger:   f.log(),
		progress: f.opts.Progress,
	}
	sw.pool = worker.New(worker.Config{Workers: workers, Runner: sw})

	start := time.Now()
	for i, axis := range active {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s cancelled before axis %d: %w", f.mode, axis, err)
		}
		last := i == len(active)-1
		if err := sw.runAxis(ctx, axis, weights[axis], last, progressShares[axis]); err != nil {
			return nil, fmt.Errorf("%s: %w", f.mode, err)
		}
	}

	f.log().Debug("Label morphology complete",
		"mode", f.mode.String(),
		"shape", in.Shape.String(),
		"scale", f.opts.Scale,
		"spacing_aware", f.opts.UseImageSpacing,
		"workers", workers,
		"elapsed", time.Since(start),
	)

	return out, nil
}

// axisWeights validates the scale vector and converts it into the parabola
// weight of each axis. Disabled axes get weight 0.
func (f *Filter) axisWeights(in *volume.Labels) ([]float64, error) {
	n := len(in.Shape)
	if len(f.opts.Scale) != n {
		return nil, fmt.Errorf("%w: got %d entries for %d axes", ErrScaleLength, len(f.opts.Scale), n)
	}

	weights := make([]float64, n)
	for k, s := range f.opts.Scale {
		if s < 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("%w: axis %d has scale %v", ErrNegativeScale, k, s)
		}
		if s == 0 {
			continue
		}
		w := 1 / (s * s)
		if f.opts.UseImageSpacing {
			if len(in.Spacing) != n {
				return nil, fmt.Errorf("%w: image has %d spacing values for %d axes", ErrInvalidSpacing, len(in.Spacing), n)
			}
			h := in.Spacing[k]
			if !(h > 0) || math.IsInf(h, 0) {
				return nil, fmt.Errorf("%w: axis %d has spacing %v", ErrInvalidSpacing, k, h)
			}
			w *= h * h
		}
		if math.IsInf(w, 0) || w == 0 {
			return nil, fmt.Errorf("%w: axis %d scale %v is out of range", ErrNegativeScale, k, s)
		}
		weights[k] = w
	}
	return weights, nil
}

// progressShares returns the share of the progress total carried by each
// active axis.
func (f *Filter) progressShares(weights []float64) ([]float64, error) {
	shares := make([]float64, len(weights))
	active := activeAxes(weights)
	if len(active) == 0 {
		return shares, nil
	}

	if f.opts.AxisWeights == nil {
		for _, k := range active {
			shares[k] = 1 / float64(len(active))
		}
		return shares, nil
	}

	if len(f.opts.AxisWeights) != len(weights) {
		return nil, fmt.Errorf("%w: %d axis weights for %d axes", ErrScaleLength, len(f.opts.AxisWeights), len(weights))
	}
	total := 0.0
	for _, k := range active {
		v := f.opts.AxisWeights[k]
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: axis %d has progress weight %v", ErrNegativeScale, k, v)
		}
		total += v
	}
	for _, k := range active {
		if total > 0 {
			shares[k] = f.opts.AxisWeights[k] / total
		} else {
			shares[k] = 1 / float64(len(active))
		}
	}
	return shares, nil
}

func (f *Filter) log() *slog.Logger {
	if f.opts.Logger != nil {
		return f.opts.Logger
	}
	return slog.Default()
}

func activeAxes(weights []float64) []int {
	var axes []int
	for k, w := range weights {
		if w > 0 {
			axes = append(axes, k)
		}
	}
	return axes
}

// Complement swaps foreground and background of a label image: background
// pixels become fg and every labelled pixel becomes background.
func Complement(in *volume.Labels, fg uint32) *volume.Labels {
	out := in.Clone()
	for i, v := range out.Data {
		if v == Background {
			out.Data[i] = fg
		} else {
			out.Data[i] = Background
		}
	}
	return out
}
