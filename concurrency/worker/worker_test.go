package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type mockProcessor struct {
	processFn func(ctx context.Context, task any) error
}

func (m *mockProcessor) Process(ctx context.Context, task any) error {
	return m.processFn(ctx, task)
}

func TestPool_Submit(t *testing.T) {
	var processed atomic.Int64
	p := NewPool(&Config{MaxWorkers: 2, QueueSize: 10, TaskTimeout: time.Second}, &mockProcessor{
		processFn: func(ctx context.Context, task any) error {
			processed.Add(1)
			return nil
		},
	})
	p.Start()
	defer p.Stop(context.Background())

	for i := 0; i < 5; i++ {
		if err := p.Submit(i); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for processed.Load() < 5 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := processed.Load(); got != 5 {
		t.Errorf("processed %d tasks, want 5", got)
	}
	if got := p.Snapshot()["completed_tasks"]; got != 5 {
		t.Errorf("completed_tasks = %d, want 5", got)
	}
}

func TestPool_SubmitWhenFull(t *testing.T) {
	block := make(chan struct{})
	p := NewPool(&Config{MaxWorkers: 1, QueueSize: 1, TaskTimeout: time.Minute}, &mockProcessor{
		processFn: func(ctx context.Context, task any) error {
			<-block
			return nil
		},
	})
	p.Start()
	defer func() {
		close(block)
		p.Stop(context.Background())
	}()

	// First task occupies the worker, second fills the queue.
	if err := p.Submit("a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := p.Submit("b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := p.Submit("c")
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestPool_ProcessorError(t *testing.T) {
	p := NewPool(&Config{MaxWorkers: 1, QueueSize: 4, TaskTimeout: time.Second}, &mockProcessor{
		processFn: func(ctx context.Context, task any) error {
			return errors.New("boom")
		},
	})
	p.Start()
	defer p.Stop(context.Background())

	if err := p.Submit("a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for p.Snapshot()["failed_tasks"] < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := p.Snapshot()["failed_tasks"]; got != 1 {
		t.Errorf("failed_tasks = %d, want 1", got)
	}
}

func TestPool_DefaultProcessorRunsFuncs(t *testing.T) {
	p := NewPool(&Config{MaxWorkers: 1, QueueSize: 4, TaskTimeout: time.Second})
	p.Start()
	defer p.Stop(context.Background())

	done := make(chan struct{})
	if err := p.Submit(func() { close(done) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("function task never ran")
	}
}

func TestConfig_Validate(t *testing.T) {
	bad := []*Config{
		{MaxWorkers: 0, QueueSize: 1},
		{MaxWorkers: 1, QueueSize: 0},
		{MaxWorkers: 1, QueueSize: 1, TaskTimeout: -time.Second},
	}
	for i, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("config %d should be invalid", i)
		}
	}
	if err := (&Config{MaxWorkers: 1, QueueSize: 1}).Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}
