package playback

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	l := NewLoop()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("loop did not stop")
		}
	})
	return l, cancel
}

func TestLoopCallRunsOnLoop(t *testing.T) {
	l, _ := startLoop(t)
	var order []int
	l.Post(func() { order = append(order, 1) })
	if err := l.Call(context.Background(), func() { order = append(order, 2) }); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("order: got %v want [1 2]", order)
	}
}

func TestLoopScheduleAndCancel(t *testing.T) {
	l, _ := startLoop(t)
	var fired, cancelled atomic.Bool
	done := make(chan struct{})

	var task Task
	if err := l.Call(context.Background(), func() {
		task = l.Schedule(5*time.Millisecond, func() { cancelled.Store(true) })
		l.Schedule(20*time.Millisecond, func() {
			fired.Store(true)
			close(done)
		})
		task.Cancel()
	}); err != nil {
		t.Fatalf("Call: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled task never ran")
	}
	if !fired.Load() {
		t.Fatal("expected task to fire")
	}
	if cancelled.Load() {
		t.Fatal("cancelled task ran")
	}
}

func TestLoopRejectsSecondRun(t *testing.T) {
	l, _ := startLoop(t)
	if err := l.Call(context.Background(), func() {}); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if err := l.Run(context.Background()); !errors.Is(err, errLoopRunning) {
		t.Fatalf("second Run: got %v want errLoopRunning", err)
	}
}

func TestLoopCallHonoursContext(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Call(ctx, func() {}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Call: got %v want context.Canceled", err)
	}
}
