package seen

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

// runSetTests exercises the Set contract against a fresh backend per case.
func runSetTests(t *testing.T, newSet func(t *testing.T) Set) {
	t.Helper()
	ctx := context.Background()

	t.Run("first mark wins", func(t *testing.T) {
		s := newSet(t)
		defer s.Close()

		first, err := s.MarkIfNew(ctx, "https://example.com/page")
		if err != nil {
			t.Fatalf("MarkIfNew() error: %v", err)
		}
		if !first {
			t.Error("MarkIfNew() = false on first call, want true")
		}

		again, err := s.MarkIfNew(ctx, "https://example.com/page")
		if err != nil {
			t.Fatalf("MarkIfNew() error: %v", err)
		}
		if again {
			t.Error("MarkIfNew() = true on repeat call, want false")
		}
	})

	t.Run("distinct urls are independent", func(t *testing.T) {
		s := newSet(t)
		defer s.Close()

		urls := []string{
			"https://example.com",
			"https://example.com/about",
			"https://other.example/about",
		}
		for _, u := range urls {
			first, err := s.MarkIfNew(ctx, u)
			if err != nil {
				t.Fatalf("MarkIfNew(%s) error: %v", u, err)
			}
			if !first {
				t.Errorf("MarkIfNew(%s) = false, want true", u)
			}
		}

		n, err := s.Len(ctx)
		if err != nil {
			t.Fatalf("Len() error: %v", err)
		}
		if n != len(urls) {
			t.Errorf("Len() = %d, want %d", n, len(urls))
		}
	})

	t.Run("exactly one concurrent marker sees true", func(t *testing.T) {
		s := newSet(t)
		defer s.Close()

		const goroutines = 20
		var (
			wg     sync.WaitGroup
			firsts atomic.Int64
		)
		start := make(chan struct{})

		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				first, err := s.MarkIfNew(ctx, "https://example.com/contested")
				if err != nil {
					t.Errorf("MarkIfNew() error: %v", err)
					return
				}
				if first {
					firsts.Add(1)
				}
			}()
		}

		close(start)
		wg.Wait()

		if got := firsts.Load(); got != 1 {
			t.Errorf("%d goroutines saw first=true, want exactly 1", got)
		}
	})
}
