package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/charq/charq/internal/queue"
)

func TestOfferAndTake(t *testing.T) {
	q := queue.New(2)
	if !q.Offer("a") {
		t.Fatal("expected offer to succeed on an empty queue")
	}
	id, err := q.Take(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if id != "a" {
		t.Fatalf("expected 'a', got %q", id)
	}
}

func TestOfferReportsFalseWhenFull(t *testing.T) {
	q := queue.New(1)
	if !q.Offer("a") {
		t.Fatal("expected first offer to succeed")
	}
	if q.Offer("b") {
		t.Fatal("expected second offer to report false on a full queue")
	}
}

func TestTakeRespectsContextCancellation(t *testing.T) {
	q := queue.New(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Take(ctx)
	if err == nil {
		t.Fatal("expected Take to return an error once the context is canceled")
	}
}

func TestLenReportsDepth(t *testing.T) {
	q := queue.New(5)
	q.Offer("a")
	q.Offer("b")
	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}
}
