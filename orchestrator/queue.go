package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// DefaultWorkers is the number of tasks a queue runs concurrently.
const DefaultWorkers = 4

// Task is a unit of background work.
type Task struct {
	// Name identifies the task in logs and dead letters.
	Name string
	// Key, when set, serialises tasks: tasks sharing a key run one at a
	// time in submission order.
	Key string
	// Run does the work; it is retried according to the queue's policy.
	Run func(ctx context.Context) error
	// Done, if set, receives the final outcome once retries are over.
	Done func(err error)
}

// DeadLetterFunc receives tasks that failed every attempt.
type DeadLetterFunc func(task Task, err error)

// Queue runs tasks in the background on a bounded worker pool. Submit
// never waits for a worker: admitted tasks are held in memory until the
// dispatcher hands them to the pool.
type Queue struct {
	pool       *ants.Pool
	policy     RetryPolicy
	deadLetter DeadLetterFunc
	ctx        context.Context
	logger     *slog.Logger

	mu       sync.Mutex
	ready    *sync.Cond // pending has work or the queue is stopping
	idle     *sync.Cond // inflight dropped to zero
	pending  []Task
	keyed    map[string][]Task // tasks waiting behind a running task with the same key
	inflight int
	closed   bool
	stopping bool
	stopped  chan struct{}
}

// QueueOption configures a Queue.
type QueueOption func(*queueOptions) error

type queueOptions struct {
	workers    int
	policy     RetryPolicy
	deadLetter DeadLetterFunc
	ctx        context.Context
	logger     *slog.Logger
}

// WithWorkers sets the worker pool size.
func WithWorkers(n int) QueueOption {
	return func(o *queueOptions) error {
		if n <= 0 {
			return errors.New("workers must be greater than 0")
		}
		o.workers = n
		return nil
	}
}

// WithRetryPolicy sets the retry policy applied to every task.
func WithRetryPolicy(policy RetryPolicy) QueueOption {
	return func(o *queueOptions) error {
		if err := policy.Validate(); err != nil {
			return err
		}
		o.policy = policy
		return nil
	}
}

// WithDeadLetter sets the hook for tasks that exhaust their attempts.
func WithDeadLetter(fn DeadLetterFunc) QueueOption {
	return func(o *queueOptions) error {
		o.deadLetter = fn
		return nil
	}
}

// WithBaseContext sets the context tasks run under. Its values reach the
// tasks; cancelling it stops pending retries.
func WithBaseContext(ctx context.Context) QueueOption {
	return func(o *queueOptions) error {
		if ctx == nil {
			return errors.New("context cannot be nil")
		}
		o.ctx = ctx
		return nil
	}
}

// WithQueueLogger sets the logger.
func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(o *queueOptions) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		o.logger = logger
		return nil
	}
}

// NewQueue creates a task queue.
func NewQueue(opts ...QueueOption) (*Queue, error) {
	o := &queueOptions{
		workers: DefaultWorkers,
		policy:  DefaultRetryPolicy,
		ctx:     context.Background(),
		logger:  slog.Default().With("component", "task-queue"),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(o.workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	q := &Queue{
		pool:       pool,
		policy:     o.policy,
		deadLetter: o.deadLetter,
		ctx:        o.ctx,
		logger:     o.logger,
		keyed:      make(map[string][]Task),
		stopped:    make(chan struct{}),
	}
	q.ready = sync.NewCond(&q.mu)
	q.idle = sync.NewCond(&q.mu)
	go q.dispatch()
	return q, nil
}

// Submit admits task and returns without waiting for a worker.
func (q *Queue) Submit(task Task) error {
	if task.Run == nil {
		return errors.New("task has no run function")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.inflight++
	if task.Key != "" {
		if waiting, busy := q.keyed[task.Key]; busy {
			q.keyed[task.Key] = append(waiting, task)
			return nil
		}
		q.keyed[task.Key] = nil
	}
	q.pending = append(q.pending, task)
	q.ready.Signal()
	return nil
}

// dispatch feeds pending tasks to the pool until the queue stops. It is
// the only goroutine that blocks on a full pool.
func (q *Queue) dispatch() {
	defer close(q.stopped)
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.stopping {
			q.ready.Wait()
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		task := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		if err := q.pool.Submit(func() { q.run(task) }); err != nil {
			q.logger.Error("failed to start task", "task", task.Name, "err", err)
			q.finish(task, fmt.Errorf("failed to start task %s: %w", task.Name, err))
		}
	}
}

func (q *Queue) run(task Task) {
	err := q.policy.Do(q.ctx, task.Run)
	if err != nil {
		q.logger.Error("task failed", "task", task.Name, "attempts", q.policy.MaxAttempts, "err", err)
		if q.deadLetter != nil {
			q.deadLetter(task, err)
		}
	} else {
		q.logger.Debug("task completed", "task", task.Name)
	}
	q.finish(task, err)
}

// finish reports the outcome, releases the next task waiting on the same
// key and updates the in-flight count.
func (q *Queue) finish(task Task, err error) {
	if task.Done != nil {
		task.Done(err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if task.Key != "" {
		if waiting := q.keyed[task.Key]; len(waiting) > 0 {
			q.keyed[task.Key] = waiting[1:]
			q.pending = append(q.pending, waiting[0])
			q.ready.Signal()
		} else {
			delete(q.keyed, task.Key)
		}
	}
	q.inflight--
	if q.inflight == 0 {
		q.idle.Broadcast()
	}
}

// Running returns the number of tasks currently executing.
func (q *Queue) Running() int {
	return q.pool.Running()
}

// Pending returns the number of admitted tasks that have not finished.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inflight
}

// Wait blocks until every submitted task has finished.
func (q *Queue) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.inflight > 0 {
		q.idle.Wait()
	}
}

// Close stops accepting tasks, waits for the submitted ones and releases
// the pool. It is safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.stopped
		return
	}
	q.closed = true
	for q.inflight > 0 {
		q.idle.Wait()
	}
	q.stopping = true
	q.ready.Broadcast()
	q.mu.Unlock()

	<-q.stopped
	q.pool.Release()
}
