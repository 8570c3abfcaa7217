// Package runner fans batches of assistant requests through an orchestrator
// with bounded concurrency. One slow or broken request never takes down the
// batch: each task gets its own outcome slot and panics are contained per
// task.
package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/walletmind/walletmind/assistant"
	"github.com/walletmind/walletmind/errors"
)

// DefaultConcurrency caps parallel cascades when no limit is given.
const DefaultConcurrency = 10

// Answerer is the orchestrator surface the runner drives.
type Answerer interface {
	Answer(ctx context.Context, req assistant.Request) *assistant.Result
}

// Task is one request in a batch.
type Task struct {
	ID      string
	Request assistant.Request
}

// Outcome pairs a task with what came back for it. Err is set only when the
// task never produced a result: the context was cancelled before a slot
// opened, or a panic escaped the cascade.
type Outcome struct {
	TaskID string
	Result *assistant.Result
	Err    error
}

// Runner bounds how many cascades run at once.
type Runner struct {
	answerer Answerer
	sem      chan struct{}
}

// New creates a runner over the given orchestrator.
func New(a Answerer, maxConcurrency int) *Runner {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultConcurrency
	}
	return &Runner{
		answerer: a,
		sem:      make(chan struct{}, maxConcurrency),
	}
}

// Run executes one task, waiting for a concurrency slot first.
func (r *Runner) Run(ctx context.Context, task *Task) (out *Outcome) {
	if task == nil {
		return &Outcome{Err: errors.NewValidation("task", "task is nil")}
	}
	out = &Outcome{TaskID: task.ID}
	if r.answerer == nil {
		out.Err = errors.NewValidation("answerer", "runner has no orchestrator")
		return out
	}
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-ctx.Done():
		out.Err = ctx.Err()
		return out
	}

	defer func() {
		if rec := recover(); rec != nil {
			out.Result = nil
			out.Err = fmt.Errorf("panic in task %s: %v", task.ID, rec)
		}
	}()
	out.Result = r.answerer.Answer(ctx, task.Request)
	return out
}

// RunBatch executes tasks in parallel under the concurrency bound. Outcomes
// line up with tasks by index.
func (r *Runner) RunBatch(ctx context.Context, tasks []*Task) []*Outcome {
	outcomes := make([]*Outcome, len(tasks))
	var wg sync.WaitGroup

	for i, task := range tasks {
		wg.Add(1)
		go func(index int, t *Task) {
			defer wg.Done()
			outcomes[index] = r.Run(ctx, t)
		}(i, task)
	}

	wg.Wait()
	return outcomes
}
