package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

type dequeueResult struct {
	item Item
	err  error
}

// runConformance exercises the full Scheduler contract. Every backend runs
// the identical suite; newSched must return a fresh, empty scheduler.
func runConformance(t *testing.T, newSched func(t *testing.T) Scheduler) {
	t.Helper()
	ctx := context.Background()

	t.Run("fresh scheduler is drained", func(t *testing.T) {
		s := newSched(t)
		defer s.Close()

		drained, err := s.IsDrained(ctx)
		if err != nil {
			t.Fatalf("IsDrained() error: %v", err)
		}
		if !drained {
			t.Error("fresh scheduler should be drained")
		}

		if _, err := s.Dequeue(ctx); err != io.EOF {
			t.Errorf("Dequeue() on fresh scheduler error = %v, want io.EOF", err)
		}
		if err := s.Join(ctx); err != nil {
			t.Errorf("Join() on fresh scheduler error: %v", err)
		}
	})

	t.Run("items dequeue in FIFO order", func(t *testing.T) {
		s := newSched(t)
		defer s.Close()

		urls := []string{
			"https://example.com/a",
			"https://example.com/b",
			"https://example.com/c",
		}
		for _, u := range urls {
			if err := s.Enqueue(ctx, Item{URL: u}); err != nil {
				t.Fatalf("Enqueue(%s) error: %v", u, err)
			}
		}

		for i, want := range urls {
			item, err := s.Dequeue(ctx)
			if err != nil {
				t.Fatalf("Dequeue() #%d error: %v", i, err)
			}
			if item.URL != want {
				t.Errorf("Dequeue() #%d = %s, want %s", i, item.URL, want)
			}
			if err := s.TaskDone(ctx, item); err != nil {
				t.Fatalf("TaskDone() error: %v", err)
			}
		}
	})

	t.Run("depth survives the round trip", func(t *testing.T) {
		s := newSched(t)
		defer s.Close()

		if err := s.Enqueue(ctx, Item{URL: "https://example.com/deep", Depth: 3}); err != nil {
			t.Fatalf("Enqueue() error: %v", err)
		}
		item, err := s.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue() error: %v", err)
		}
		if item.Depth != 3 {
			t.Errorf("Depth = %d, want 3", item.Depth)
		}
		if err := s.TaskDone(ctx, item); err != nil {
			t.Fatalf("TaskDone() error: %v", err)
		}
	})

	t.Run("drained only after taskDone", func(t *testing.T) {
		s := newSched(t)
		defer s.Close()

		if err := s.Enqueue(ctx, Item{URL: "https://example.com"}); err != nil {
			t.Fatalf("Enqueue() error: %v", err)
		}
		if drained, _ := s.IsDrained(ctx); drained {
			t.Error("scheduler with a pending item should not be drained")
		}

		item, err := s.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue() error: %v", err)
		}
		if drained, _ := s.IsDrained(ctx); drained {
			t.Error("scheduler with an in-flight item should not be drained")
		}

		if err := s.TaskDone(ctx, item); err != nil {
			t.Fatalf("TaskDone() error: %v", err)
		}
		drained, err := s.IsDrained(ctx)
		if err != nil {
			t.Fatalf("IsDrained() error: %v", err)
		}
		if !drained {
			t.Error("scheduler should be drained after the last taskDone")
		}
	})

	t.Run("dequeue blocks until new work arrives", func(t *testing.T) {
		s := newSched(t)
		defer s.Close()

		if err := s.Enqueue(ctx, Item{URL: "https://example.com/holder"}); err != nil {
			t.Fatalf("Enqueue() error: %v", err)
		}
		holder, err := s.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue() error: %v", err)
		}

		results := make(chan dequeueResult, 1)
		go func() {
			item, err := s.Dequeue(ctx)
			results <- dequeueResult{item, err}
		}()

		time.Sleep(100 * time.Millisecond)
		select {
		case res := <-results:
			t.Fatalf("Dequeue() returned early with (%+v, %v)", res.item, res.err)
		default:
		}

		if err := s.Enqueue(ctx, Item{URL: "https://example.com/late", Depth: 1}); err != nil {
			t.Fatalf("Enqueue() error: %v", err)
		}
		select {
		case res := <-results:
			if res.err != nil {
				t.Fatalf("Dequeue() error: %v", res.err)
			}
			if res.item.URL != "https://example.com/late" {
				t.Errorf("Dequeue() = %s, want the late item", res.item.URL)
			}
			if err := s.TaskDone(ctx, res.item); err != nil {
				t.Fatalf("TaskDone() error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Dequeue() still blocked after enqueue")
		}

		if err := s.TaskDone(ctx, holder); err != nil {
			t.Fatalf("TaskDone() error: %v", err)
		}
	})

	t.Run("no empty signal while a sibling is in flight", func(t *testing.T) {
		s := newSched(t)
		defer s.Close()

		if err := s.Enqueue(ctx, Item{URL: "https://example.com/parent"}); err != nil {
			t.Fatalf("Enqueue() error: %v", err)
		}
		parent, err := s.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue() error: %v", err)
		}

		results := make(chan dequeueResult, 1)
		go func() {
			item, err := s.Dequeue(ctx)
			results <- dequeueResult{item, err}
		}()

		// The frontier is empty but the parent may still produce children,
		// so the second worker must keep waiting.
		time.Sleep(100 * time.Millisecond)
		select {
		case res := <-results:
			t.Fatalf("Dequeue() returned (%+v, %v) while parent in flight", res.item, res.err)
		default:
		}

		if err := s.Enqueue(ctx, Item{URL: "https://example.com/child", Depth: 1}); err != nil {
			t.Fatalf("Enqueue() error: %v", err)
		}
		if err := s.TaskDone(ctx, parent); err != nil {
			t.Fatalf("TaskDone() error: %v", err)
		}

		select {
		case res := <-results:
			if res.err != nil {
				t.Fatalf("Dequeue() error: %v", res.err)
			}
			if res.item.URL != "https://example.com/child" {
				t.Errorf("Dequeue() = %s, want the child item", res.item.URL)
			}
			if err := s.TaskDone(ctx, res.item); err != nil {
				t.Fatalf("TaskDone() error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Dequeue() never received the child item")
		}

		if _, err := s.Dequeue(ctx); err != io.EOF {
			t.Errorf("Dequeue() after drain error = %v, want io.EOF", err)
		}
	})

	t.Run("taskDone is idempotent", func(t *testing.T) {
		s := newSched(t)
		defer s.Close()

		for _, u := range []string{"https://example.com/a", "https://example.com/b"} {
			if err := s.Enqueue(ctx, Item{URL: u}); err != nil {
				t.Fatalf("Enqueue() error: %v", err)
			}
		}
		a, err := s.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue() error: %v", err)
		}
		b, err := s.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue() error: %v", err)
		}

		if err := s.TaskDone(ctx, a); err != nil {
			t.Fatalf("TaskDone() error: %v", err)
		}
		if err := s.TaskDone(ctx, a); err != nil {
			t.Fatalf("repeated TaskDone() error: %v", err)
		}

		// The repeat must not eat b's in-flight slot.
		if drained, _ := s.IsDrained(ctx); drained {
			t.Error("scheduler drained early: repeated taskDone decremented twice")
		}

		if err := s.TaskDone(ctx, b); err != nil {
			t.Fatalf("TaskDone() error: %v", err)
		}
		if drained, _ := s.IsDrained(ctx); !drained {
			t.Error("scheduler should be drained after both items finished")
		}
	})

	t.Run("join waits for in-flight work", func(t *testing.T) {
		s := newSched(t)
		defer s.Close()

		if err := s.Enqueue(ctx, Item{URL: "https://example.com"}); err != nil {
			t.Fatalf("Enqueue() error: %v", err)
		}
		item, err := s.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue() error: %v", err)
		}

		done := make(chan error, 1)
		go func() {
			done <- s.Join(ctx)
		}()

		time.Sleep(100 * time.Millisecond)
		select {
		case err := <-done:
			t.Fatalf("Join() returned %v while an item was in flight", err)
		default:
		}

		if err := s.TaskDone(ctx, item); err != nil {
			t.Fatalf("TaskDone() error: %v", err)
		}
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Join() error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Join() did not return after drain")
		}
	})

	t.Run("drain discards pending work", func(t *testing.T) {
		s := newSched(t)
		defer s.Close()

		for i := 0; i < 3; i++ {
			item := Item{URL: "https://example.com/page", Depth: i}
			if err := s.Enqueue(ctx, item); err != nil {
				t.Fatalf("Enqueue() error: %v", err)
			}
		}
		if err := s.Drain(ctx); err != nil {
			t.Fatalf("Drain() error: %v", err)
		}

		drained, err := s.IsDrained(ctx)
		if err != nil {
			t.Fatalf("IsDrained() error: %v", err)
		}
		if !drained {
			t.Error("scheduler should be drained after Drain")
		}
		if _, err := s.Dequeue(ctx); err != io.EOF {
			t.Errorf("Dequeue() after Drain error = %v, want io.EOF", err)
		}
	})

	t.Run("stats track the item lifecycle", func(t *testing.T) {
		s := newSched(t)
		defer s.Close()

		for _, u := range []string{"https://example.com/a", "https://example.com/b"} {
			if err := s.Enqueue(ctx, Item{URL: u}); err != nil {
				t.Fatalf("Enqueue() error: %v", err)
			}
		}
		stats, err := s.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats() error: %v", err)
		}
		if stats.Pending != 2 || stats.InFlight != 0 || stats.Done != 0 {
			t.Errorf("Stats() = %+v, want {Pending:2 InFlight:0 Done:0}", stats)
		}

		item, err := s.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue() error: %v", err)
		}
		stats, err = s.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats() error: %v", err)
		}
		if stats.Pending != 1 || stats.InFlight != 1 || stats.Done != 0 {
			t.Errorf("Stats() = %+v, want {Pending:1 InFlight:1 Done:0}", stats)
		}

		if err := s.TaskDone(ctx, item); err != nil {
			t.Fatalf("TaskDone() error: %v", err)
		}
		stats, err = s.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats() error: %v", err)
		}
		if stats.Pending != 1 || stats.InFlight != 0 || stats.Done != 1 {
			t.Errorf("Stats() = %+v, want {Pending:1 InFlight:0 Done:1}", stats)
		}
	})

	t.Run("dequeue honors cancellation", func(t *testing.T) {
		s := newSched(t)
		defer s.Close()

		if err := s.Enqueue(ctx, Item{URL: "https://example.com/holder"}); err != nil {
			t.Fatalf("Enqueue() error: %v", err)
		}
		holder, err := s.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue() error: %v", err)
		}

		cctx, cancel := context.WithCancel(ctx)
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		_, err = s.Dequeue(cctx)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Dequeue() error = %v, want context.Canceled", err)
		}

		if err := s.TaskDone(ctx, holder); err != nil {
			t.Fatalf("TaskDone() error: %v", err)
		}
	})
}
