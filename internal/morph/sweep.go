package morph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/labelmorph/internal/volume"
	"github.com/MeKo-Tech/labelmorph/internal/worker"
)

type passState int

const (
	uninitialized passState = iota
	initialized
)

func (s passState) String() string {
	if s == initialized {
		return "standard"
	}
	return "first"
}

// sweeper is the dimension sweep controller. It owns the pass state of one
// operation and runs one axis at a time; the shared output and distance
// buffers are written by disjoint chunks within an axis.
type sweeper struct {
	mode   Mode
	radius RadiusSource
	in     *volume.Labels
	out    []uint32
	dist   []float64
	region volume.Region
	pool   *worker.Pool
	logger *slog.Logger

	state    passState
	current  *axisPass
	progress func(delta float64)
}

// axisPass is the per-axis configuration handed to every chunk.
type axisPass struct {
	axis       int
	lineWeight float64
	line       linePass
	state      passState
}

// runAxis sweeps every line of the region along axis. It returns once all
// chunks have finished, so the next axis always sees the complete distance
// state of this one.
func (sw *sweeper) runAxis(ctx context.Context, axis int, weight float64, last bool, progressWeight float64) error {
	ap := &axisPass{
		axis:  axis,
		state: sw.state,
		line: linePass{
			in:     sw.in.Data,
			out:    sw.out,
			dist:   sw.dist,
			weight: weight,
			last:   last,
		},
	}
	if lines := sw.region.LineCount(axis); lines > 0 {
		ap.lineWeight = progressWeight / float64(lines)
	}

	chunks := sw.region.Split(axis, sw.pool.Workers())
	tasks := make([]worker.Task, len(chunks))
	for i, c := range chunks {
		tasks[i] = worker.Task{Region: c, Axis: axis, Index: i}
	}

	start := time.Now()
	sw.current = ap
	results := sw.pool.Run(ctx, tasks)
	if err := worker.FirstError(results); err != nil {
		return fmt.Errorf("axis %d: %w", axis, err)
	}

	sw.logger.Debug("Axis pass complete",
		"axis", axis,
		"pass", ap.state.String(),
		"chunks", len(tasks),
		"last", last,
		"elapsed", time.Since(start),
	)

	sw.state = initialized
	return nil
}

// RunChunk processes every line of one chunk of the current axis with the
// line processor that matches the pass state.
func (sw *sweeper) RunChunk(ctx context.Context, task worker.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ap := sw.current

	lp := newLineProcessor(sw.mode, sw.radius, task.Region.Size[ap.axis])
	volume.Lines(sw.in.Shape, task.Region, ap.axis, func(line volume.Line) {
		if ap.state == uninitialized {
			lp.firstPass(&ap.line, line)
		} else {
			lp.standardPass(&ap.line, line)
		}
		if sw.progress != nil {
			sw.progress(ap.lineWeight)
		}
	})
	return nil
}
