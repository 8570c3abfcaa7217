package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/walletmind/walletmind/assistant"
	"github.com/walletmind/walletmind/errors"
)

// fakeAnswerer scripts the orchestrator: it echoes the session id into the
// result summary and can block or panic on demand.
type fakeAnswerer struct {
	mu      sync.Mutex
	active  int
	maxSeen int

	entered chan struct{} // closed once the first call is in flight
	release chan struct{} // calls block until this closes, when set
	panicOn string        // panic when the query matches
}

func (f *fakeAnswerer) Answer(ctx context.Context, req assistant.Request) *assistant.Result {
	f.mu.Lock()
	f.active++
	if f.active > f.maxSeen {
		f.maxSeen = f.active
	}
	entered := f.entered
	f.entered = nil
	f.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if f.release != nil {
		<-f.release
	}
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.panicOn != "" && req.Query == f.panicOn {
		panic("scripted failure")
	}
	return &assistant.Result{
		Kind:      assistant.KindAnswer,
		Analytics: assistant.Summary{SessionID: req.SessionID},
	}
}

func TestRunBatchPreservesOrder(t *testing.T) {
	fake := &fakeAnswerer{}
	r := New(fake, 4)

	tasks := make([]*Task, 6)
	for i := range tasks {
		tasks[i] = &Task{
			ID:      fmt.Sprintf("task-%d", i),
			Request: assistant.Request{Query: "what is my balance?", SessionID: fmt.Sprintf("sess-%d", i)},
		}
	}

	outcomes := r.RunBatch(context.Background(), tasks)
	if len(outcomes) != len(tasks) {
		t.Fatalf("expected %d outcomes, got %d", len(tasks), len(outcomes))
	}
	for i, out := range outcomes {
		if out.Err != nil {
			t.Fatalf("outcome %d: unexpected error: %v", i, out.Err)
		}
		if out.TaskID != tasks[i].ID {
			t.Errorf("outcome %d: task id = %q, want %q", i, out.TaskID, tasks[i].ID)
		}
		if out.Result == nil || out.Result.Analytics.SessionID != tasks[i].Request.SessionID {
			t.Errorf("outcome %d: result does not match its task", i)
		}
	}
}

func TestRunBatchBoundsConcurrency(t *testing.T) {
	fake := &fakeAnswerer{release: make(chan struct{})}
	r := New(fake, 2)

	tasks := make([]*Task, 8)
	for i := range tasks {
		tasks[i] = &Task{ID: fmt.Sprintf("task-%d", i)}
	}

	done := make(chan []*Outcome, 1)
	go func() { done <- r.RunBatch(context.Background(), tasks) }()

	// Give the batch time to saturate the semaphore before releasing.
	time.Sleep(50 * time.Millisecond)
	close(fake.release)

	outcomes := <-done
	if len(outcomes) != len(tasks) {
		t.Fatalf("expected %d outcomes, got %d", len(tasks), len(outcomes))
	}
	fake.mu.Lock()
	maxSeen := fake.maxSeen
	fake.mu.Unlock()
	if maxSeen > 2 {
		t.Errorf("saw %d concurrent cascades, concurrency bound is 2", maxSeen)
	}
}

func TestRunBatchIsolatesPanic(t *testing.T) {
	fake := &fakeAnswerer{panicOn: "poison"}
	r := New(fake, 4)

	tasks := []*Task{
		{ID: "ok-1", Request: assistant.Request{Query: "what is my balance?"}},
		{ID: "bad", Request: assistant.Request{Query: "poison"}},
		{ID: "ok-2", Request: assistant.Request{Query: "how are my budgets?"}},
	}

	outcomes := r.RunBatch(context.Background(), tasks)

	if outcomes[0].Err != nil || outcomes[2].Err != nil {
		t.Fatalf("healthy tasks failed: %v, %v", outcomes[0].Err, outcomes[2].Err)
	}
	if outcomes[1].Err == nil {
		t.Fatal("expected the panicking task to surface an error")
	}
	if !strings.Contains(outcomes[1].Err.Error(), "panic in task bad") {
		t.Errorf("error %q does not name the failed task", outcomes[1].Err)
	}
	if outcomes[1].Result != nil {
		t.Error("panicking task should not carry a result")
	}
}

func TestRunCancelledBeforeSlotOpens(t *testing.T) {
	entered := make(chan struct{})
	fake := &fakeAnswerer{entered: entered, release: make(chan struct{})}
	r := New(fake, 1)

	// Occupy the only slot.
	first := make(chan *Outcome, 1)
	go func() { first <- r.Run(context.Background(), &Task{ID: "holder"}) }()
	<-entered

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	out := r.Run(cancelled, &Task{ID: "starved"})
	if out.Err == nil {
		t.Fatal("expected a context error while the semaphore is full")
	}
	if out.Result != nil {
		t.Error("starved task should not carry a result")
	}

	close(fake.release)
	if holder := <-first; holder.Err != nil {
		t.Fatalf("holder task failed: %v", holder.Err)
	}
}

func TestRunValidatesInputs(t *testing.T) {
	r := New(&fakeAnswerer{}, 2)
	if out := r.Run(context.Background(), nil); !errors.IsValidation(out.Err) {
		t.Errorf("nil task: expected a validation error, got %v", out.Err)
	}

	empty := New(nil, 2)
	out := empty.Run(context.Background(), &Task{ID: "t"})
	if !errors.IsValidation(out.Err) {
		t.Errorf("nil answerer: expected a validation error, got %v", out.Err)
	}
	if out.TaskID != "t" {
		t.Errorf("task id = %q, want %q", out.TaskID, "t")
	}
}

func TestRunDefaultsConcurrency(t *testing.T) {
	r := New(&fakeAnswerer{}, 0)
	if cap(r.sem) != DefaultConcurrency {
		t.Errorf("semaphore capacity = %d, want %d", cap(r.sem), DefaultConcurrency)
	}
}
