package mail

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	ErrQueueFull   = errors.New("mail queue is full")
	ErrQueueClosed = errors.New("mail queue is closed")
)

type job struct {
	ctx    context.Context
	msg    Message
	result chan error
}

// Queue bounds how many SMTP deliveries run at once. Send blocks the caller
// until its message is delivered or the caller's context ends, but never
// waits for a slot: a full queue fails fast.
type Queue struct {
	sender Sender
	logger *slog.Logger
	jobs   chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewQueue(sender Sender, workers, size int, logger *slog.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	if size < 0 {
		size = 0
	}
	q := &Queue{
		sender: sender,
		logger: logger,
		jobs:   make(chan job, size),
	}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.work()
	}
	return q
}

func (q *Queue) work() {
	defer q.wg.Done()
	for j := range q.jobs {
		if err := j.ctx.Err(); err != nil {
			j.result <- err
			continue
		}
		err := q.sender.Send(j.ctx, j.msg)
		if err != nil {
			q.logger.Error("mail delivery failed", "subject", j.msg.Subject, "error", err)
		} else {
			q.logger.Info("mail delivered", "subject", j.msg.Subject)
		}
		j.result <- err
	}
}

// Send implements Sender.
func (q *Queue) Send(ctx context.Context, msg Message) error {
	j := job{ctx: ctx, msg: msg, result: make(chan error, 1)}

	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	select {
	case q.jobs <- j:
	default:
		q.mu.RUnlock()
		return ErrQueueFull
	}
	q.mu.RUnlock()

	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages and waits for queued ones to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	q.wg.Wait()
}
