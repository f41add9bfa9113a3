// Package queue holds pending scrape tasks for batch runs. Workers block on
// Pop until a task arrives or the queue closes.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrQueueClosed = errors.New("queue is closed")

// Task is one product URL waiting to be scraped. Retries counts how many
// times it has been requeued after a retryable failure.
type Task struct {
	ID        string
	URL       string
	Retries   int
	CreatedAt time.Time
}

// NewTask wraps a product URL in a fresh task.
func NewTask(url string) *Task {
	return &Task{
		ID:        uuid.NewString(),
		URL:       url,
		CreatedAt: time.Now(),
	}
}

type Queue interface {
	Push(task *Task) error
	Pop(ctx context.Context) (*Task, error)
	Size() int
	Close() error
}

// InMemoryQueue is a FIFO queue. Blocked consumers wait on a broadcast
// channel outside the mutex, so a cancelled Pop simply stops waiting; the
// lock is only ever released by the goroutine that took it. Closing wakes
// all blocked consumers; they drain remaining tasks before seeing
// ErrQueueClosed.
type InMemoryQueue struct {
	mu     sync.Mutex
	tasks  []*Task
	wake   chan struct{}
	closed bool
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		tasks: make([]*Task, 0),
		wake:  make(chan struct{}),
	}
}

func (q *InMemoryQueue) Push(task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.tasks = append(q.tasks, task)
	q.notify()

	return nil
}

// notify wakes every waiter by closing the current wake channel and arming a
// fresh one. Callers must hold mu.
func (q *InMemoryQueue) notify() {
	close(q.wake)
	q.wake = make(chan struct{})
}

func (q *InMemoryQueue) Pop(ctx context.Context) (*Task, error) {
	for {
		q.mu.Lock()
		if len(q.tasks) > 0 {
			task := q.tasks[0]
			q.tasks = q.tasks[1:]
			q.mu.Unlock()
			return task, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		}
	}
}

func (q *InMemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		q.notify()
	}

	return nil
}
