package downloader

import (
	"context"
	"time"

	"dvidsharvest/pkg/models"
)

// Queue is a bounded FIFO of download items shared by one producer and many
// workers
type Queue struct {
	items chan models.DownloadItem
}

// NewQueue creates a queue holding at most capacity items
func NewQueue(capacity int) *Queue {
	return &Queue{items: make(chan models.DownloadItem, capacity)}
}

// Put enqueues item, blocking while the queue is full
func (q *Queue) Put(ctx context.Context, item models.DownloadItem) error {
	select {
	case q.items <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain removes up to max items. When the queue is empty it waits up to
// timeout for the first item and returns an empty batch if none arrives.
func (q *Queue) Drain(ctx context.Context, max int, timeout time.Duration) []models.DownloadItem {
	batch := make([]models.DownloadItem, 0, max)

	select {
	case item := <-q.items:
		batch = append(batch, item)
	default:
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case item := <-q.items:
			batch = append(batch, item)
		case <-timer.C:
			return batch
		case <-ctx.Done():
			return batch
		}
	}

	for len(batch) < max {
		select {
		case item := <-q.items:
			batch = append(batch, item)
		default:
			return batch
		}
	}
	return batch
}

// Len returns the number of queued items
func (q *Queue) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity
func (q *Queue) Cap() int {
	return cap(q.items)
}
