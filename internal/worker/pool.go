// Package worker provides the parallel chunk pool that executes one axis pass
// of a morphology operation.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/MeKo-Tech/labelmorph/internal/volume"
)

// Runner processes a single chunk of an axis pass.
type Runner interface {
	RunChunk(ctx context.Context, task Task) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, task Task) error

// RunChunk calls f.
func (f RunnerFunc) RunChunk(ctx context.Context, task Task) error {
	return f(ctx, task)
}

// Task is one disjoint chunk of lines along Axis.
type Task struct {
	Region volume.Region
	Axis   int
	Index  int
}

// Result represents the outcome of a chunk.
type Result struct {
	Task    Task
	Err     error
	Elapsed time.Duration
}

// ProgressFunc is called after each task completes.
type ProgressFunc func(completed, total, failed int)

// Config configures the worker pool.
type Config struct {
	Workers    int
	Runner     Runner
	OnProgress ProgressFunc
}

// Pool manages parallel chunk execution.
type Pool struct {
	workers    int
	runner     Runner
	onProgress ProgressFunc
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:    workers,
		runner:     cfg.Runner,
		onProgress: cfg.OnProgress,
	}
}

// Workers returns the configured number of workers.
func (p *Pool) Workers() int {
	return p.workers
}

// Run executes all tasks and returns results.
// Tasks are processed in parallel by the configured number of workers.
// Run only returns once every task has finished or been cancelled, which makes
// it the barrier between consecutive axis passes.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	taskCh := make(chan Task, len(tasks))
	resultCh := make(chan Result, len(tasks))

	var (
		completed int
		failed    int
		mu        sync.Mutex
	)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	// Every task is queued; cancelled ones are reported by the workers.
	for _, task := range tasks {
		taskCh <- task
	}
	close(taskCh)

	results := make([]Result, 0, len(tasks))
	done := make(chan struct{})

	go func() {
		for result := range resultCh {
			results = append(results, result)

			mu.Lock()
			completed++
			if result.Err != nil {
				failed++
			}
			c, f := completed, failed
			mu.Unlock()

			if p.onProgress != nil {
				p.onProgress(c, len(tasks), f)
			}
		}
		close(done)
	}()

	wg.Wait()
	close(resultCh)

	<-done

	return results
}

// FirstError returns the first non-nil error in results.
func FirstError(results []Result) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

// worker processes tasks from the task channel and sends results to the result channel.
func (p *Pool) worker(ctx context.Context, tasks <-chan Task, results chan<- Result) {
	for task := range tasks {
		select {
		case <-ctx.Done():
			results <- Result{
				Task: task,
				Err:  ctx.Err(),
			}
			continue
		default:
		}

		start := time.Now()
		err := p.runner.RunChunk(ctx, task)
		elapsed := time.Since(start)

		results <- Result{
			Task:    task,
			Err:     err,
			Elapsed: elapsed,
		}
	}
}
