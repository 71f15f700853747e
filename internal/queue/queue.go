// Package queue implements the in-memory scheduling hint described in
// spec §4.2: a bounded FIFO of pending job ids. It is never the source
// of truth — the store is. The reaper re-offers only ids whose lease
// has expired; a pending id that is dropped or missing here is not
// re-offered by it.
package queue

import "context"

// Queue is a bounded FIFO of job ids, backed by a buffered channel.
type Queue struct {
	ids chan string
}

// New creates a Queue with the given bound. Submit is effectively
// non-blocking as long as depth stays under this bound.
func New(bound int) *Queue {
	return &Queue{ids: make(chan string, bound)}
}

// Offer enqueues id without blocking. It reports false if the queue is
// full, in which case the id is not enqueued. ScanExpiredLeases only
// finds started/processing rows, so the reaper does not rediscover a
// pending id whose offer was dropped.
func (q *Queue) Offer(id string) bool {
	select {
	case q.ids <- id:
		return true
	default:
		return false
	}
}

// Take blocks for the next id, returning an error if ctx is canceled
// first.
func (q *Queue) Take(ctx context.Context) (string, error) {
	select {
	case id := <-q.ids:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Len reports the current number of ids buffered in the hint queue.
func (q *Queue) Len() int {
	return len(q.ids)
}
