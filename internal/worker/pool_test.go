package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/labelmorph/internal/volume"
)

// mockRunner simulates chunk processing for testing
type mockRunner struct {
	delay     time.Duration
	failIndex map[int]bool // chunks that should fail
	callCount atomic.Int32
}

func (m *mockRunner) RunChunk(ctx context.Context, task Task) error {
	m.callCount.Add(1)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.delay):
	}

	if m.failIndex != nil && m.failIndex[task.Index] {
		return errors.New("simulated failure")
	}
	return nil
}

func chunkTasks(axis int, n int) []Task {
	chunks := volume.Full(volume.Shape{16, 64}).Split(axis, n)
	tasks := make([]Task, len(chunks))
	for i, c := range chunks {
		tasks[i] = Task{Region: c, Axis: axis, Index: i}
	}
	return tasks
}

func TestPool_BasicExecution(t *testing.T) {
	runner := &mockRunner{delay: 10 * time.Millisecond}

	pool := New(Config{
		Workers: 2,
		Runner:  runner,
	})

	tasks := chunkTasks(0, 3)
	results := pool.Run(context.Background(), tasks)

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}

	for _, r := range results {
		if r.Err != nil {
			t.Errorf("Unexpected error for chunk %d: %v", r.Task.Index, r.Err)
		}
	}

	if runner.callCount.Load() != int32(len(tasks)) {
		t.Errorf("Expected %d runner calls, got %d", len(tasks), runner.callCount.Load())
	}
}

func TestPool_Parallelism(t *testing.T) {
	runner := &mockRunner{delay: 50 * time.Millisecond}

	pool := New(Config{
		Workers: 4,
		Runner:  runner,
	})

	tasks := chunkTasks(0, 8)

	start := time.Now()
	results := pool.Run(context.Background(), tasks)
	elapsed := time.Since(start)

	// With 4 workers and 8 tasks at 50ms each, should take ~100ms (2 batches)
	maxExpected := 200 * time.Millisecond
	if elapsed > maxExpected {
		t.Errorf("Expected parallel execution in ~100ms, took %v", elapsed)
	}

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}
}

func TestPool_ErrorHandling(t *testing.T) {
	runner := &mockRunner{
		delay:     10 * time.Millisecond,
		failIndex: map[int]bool{1: true},
	}

	pool := New(Config{
		Workers: 2,
		Runner:  runner,
	})

	tasks := chunkTasks(1, 3)
	results := pool.Run(context.Background(), tasks)

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}

	var successCount, failCount int
	for _, r := range results {
		if r.Err != nil {
			failCount++
			if r.Task.Index != 1 {
				t.Errorf("Unexpected failure for chunk %d", r.Task.Index)
			}
		} else {
			successCount++
		}
	}

	if successCount != 2 {
		t.Errorf("Expected 2 successes, got %d", successCount)
	}
	if failCount != 1 {
		t.Errorf("Expected 1 failure, got %d", failCount)
	}
	if FirstError(results) == nil {
		t.Error("Expected FirstError to report the failed chunk")
	}
}

func TestPool_Cancellation(t *testing.T) {
	runner := &mockRunner{delay: 100 * time.Millisecond}

	pool := New(Config{
		Workers: 2,
		Runner:  runner,
	})

	tasks := chunkTasks(0, 10)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	results := pool.Run(ctx, tasks)
	elapsed := time.Since(start)

	if elapsed > 300*time.Millisecond {
		t.Errorf("Expected early cancellation, took %v", elapsed)
	}

	// Every task is still reported, so the caller can rely on Run as a barrier
	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}

	if err := FirstError(results); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestPool_ProgressCallback(t *testing.T) {
	runner := &mockRunner{delay: 10 * time.Millisecond}

	var progressCalls atomic.Int32
	var lastCompleted, lastTotal int

	pool := New(Config{
		Workers: 2,
		Runner:  runner,
		OnProgress: func(completed, total, failed int) {
			progressCalls.Add(1)
			lastCompleted = completed
			lastTotal = total
		},
	})

	tasks := chunkTasks(0, 3)
	pool.Run(context.Background(), tasks)

	if progressCalls.Load() == 0 {
		t.Error("Expected progress callbacks, got none")
	}
	if lastCompleted != len(tasks) {
		t.Errorf("Expected lastCompleted=%d, got %d", len(tasks), lastCompleted)
	}
	if lastTotal != len(tasks) {
		t.Errorf("Expected lastTotal=%d, got %d", len(tasks), lastTotal)
	}
}

func TestPool_EmptyTasks(t *testing.T) {
	runner := &mockRunner{}

	pool := New(Config{
		Workers: 2,
		Runner:  runner,
	})

	results := pool.Run(context.Background(), nil)

	if len(results) != 0 {
		t.Errorf("Expected 0 results for empty tasks, got %d", len(results))
	}
	if runner.callCount.Load() != 0 {
		t.Errorf("Expected 0 runner calls for empty tasks, got %d", runner.callCount.Load())
	}
}

func TestPool_DefaultsToOneWorker(t *testing.T) {
	pool := New(Config{Runner: RunnerFunc(func(context.Context, Task) error { return nil })})

	if pool.Workers() != 1 {
		t.Errorf("Expected 1 worker, got %d", pool.Workers())
	}
	if results := pool.Run(context.Background(), chunkTasks(0, 2)); len(results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(results))
	}
}
