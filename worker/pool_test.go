package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolExecutesTasks(t *testing.T) {
	p := NewPool(WithName("test"), WithSize(4), WithQueueSize(16))
	defer p.Stop()

	var counter atomic.Int64
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		if err := p.Submit(func(context.Context) {
			defer wg.Done()
			counter.Add(1)
		}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	wg.Wait()

	if got := counter.Load(); got != 20 {
		t.Fatalf("expected 20 executed tasks, got %d", got)
	}
}

func TestTrySubmitWhenFull(t *testing.T) {
	p := NewPool(WithName("test"), WithSize(1), WithQueueSize(1))
	defer p.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	// 占住唯一的 worker。
	if err := p.Submit(func(context.Context) {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	<-started

	// 填满队列。
	if err := p.TrySubmit(func(context.Context) {}); err != nil {
		t.Fatalf("TrySubmit failed: %v", err)
	}

	if err := p.TrySubmit(func(context.Context) {}); !errors.Is(err, ErrPoolFull) {
		t.Fatalf("expected ErrPoolFull, got %v", err)
	}
	close(release)
}

func TestSubmitWithTimeout(t *testing.T) {
	p := NewPool(WithName("test"), WithSize(1), WithQueueSize(1))
	defer p.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	if err := p.Submit(func(context.Context) {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	<-started
	if err := p.TrySubmit(func(context.Context) {}); err != nil {
		t.Fatalf("TrySubmit failed: %v", err)
	}

	if err := p.SubmitWithTimeout(func(context.Context) {}, 50*time.Millisecond); !errors.Is(err, ErrTaskTimeout) {
		t.Fatalf("expected ErrTaskTimeout, got %v", err)
	}
	close(release)
}

func TestSubmitAfterStop(t *testing.T) {
	p := NewPool(WithName("test"), WithSize(2), WithQueueSize(4))
	p.Stop()

	if err := p.Submit(func(context.Context) {}); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
	if err := p.TrySubmit(func(context.Context) {}); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}

func TestPanicInTaskDoesNotKillWorker(t *testing.T) {
	var handled atomic.Bool
	p := NewPool(
		WithName("test"),
		WithSize(1),
		WithQueueSize(4),
		WithPanicHandler(func(any) { handled.Store(true) }),
	)
	defer p.Stop()

	if err := p.Submit(func(context.Context) { panic("boom") }); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// panic 之后 worker 仍应能继续执行后续任务。
	done := make(chan struct{})
	if err := p.Submit(func(context.Context) { close(done) }); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not recover from task panic")
	}
	if !handled.Load() {
		t.Fatal("panic handler was not invoked")
	}
}
