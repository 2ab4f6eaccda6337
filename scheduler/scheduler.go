// Package scheduler provides the crawl frontier: a FIFO work queue of URL
// items with in-flight tracking, so a pool of workers can detect when the
// crawl is truly finished. Three interchangeable backends implement the
// same contract: in-memory, SQLite and Redis.
package scheduler

import (
	"context"
	"errors"
)

// Item is one unit of crawl work: an absolute normalized URL and the depth
// at which it was discovered. Items are immutable once enqueued.
type Item struct {
	URL   string `json:"url"`
	Depth int    `json:"depth,omitempty"`
}

// Stats is a point-in-time snapshot of a scheduler's counters.
type Stats struct {
	Pending  int
	InFlight int
	Done     int
}

// ErrClosed is returned by operations on a scheduler after Close.
var ErrClosed = errors.New("scheduler is closed")

// Scheduler is the frontier contract shared by all backends.
//
// Dequeue blocks until an item is available and moves it in-flight. When
// the frontier is empty AND nothing is in-flight, the frontier can never
// grow again, so every blocked Dequeue returns io.EOF; workers treat that
// as the signal to exit. Dequeue never returns io.EOF while another worker
// still holds an in-flight item, because that worker may yet enqueue more
// work.
//
// TaskDone reports that processing of a dequeued item, including any
// enqueues it caused, has finished. It is idempotent: repeated calls for
// the same item decrement the in-flight count at most once.
type Scheduler interface {
	// Enqueue appends item to the tail of the frontier.
	Enqueue(ctx context.Context, item Item) error

	// Dequeue removes and returns the head item, blocking while the
	// frontier is momentarily empty. Returns io.EOF once drained and
	// ctx.Err() on cancellation.
	Dequeue(ctx context.Context) (Item, error)

	// TaskDone marks a dequeued item as finished.
	TaskDone(ctx context.Context, item Item) error

	// IsDrained reports whether the frontier is empty and no item is
	// in-flight.
	IsDrained(ctx context.Context) (bool, error)

	// Join blocks until the scheduler is drained.
	Join(ctx context.Context) error

	// Drain discards all pending items. Items already in-flight still
	// finish through TaskDone.
	Drain(ctx context.Context) error

	// Stats returns the current counters.
	Stats(ctx context.Context) (Stats, error)

	Close() error
}
