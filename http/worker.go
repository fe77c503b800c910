package http

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"
)

// Job is one unit of work, such as serving a single connection.
type Job func()

type messageKind uint8

const (
	messageJob messageKind = iota
	messageTerminate
)

type message struct {
	kind messageKind
	job  Job
}

// messageQueue is an unbounded FIFO shared by every worker. pop blocks until
// a message is available.
type messageQueue struct {
	mu       sync.Mutex
	ready    *sync.Cond
	messages []message
	closed   bool
}

func newMessageQueue() *messageQueue {
	q := &messageQueue{}
	q.ready = sync.NewCond(&q.mu)
	return q
}

func (q *messageQueue) push(msg message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrPoolClosed
	}

	q.messages = append(q.messages, msg)
	q.ready.Signal()
	return nil
}

func (q *messageQueue) pop() message {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.messages) == 0 {
		q.ready.Wait()
	}

	msg := q.messages[0]
	q.messages[0] = message{}
	q.messages = q.messages[1:]
	return msg
}

// close refuses further pushes, drops every queued job and enqueues one
// terminate message per worker. It returns the number of dropped jobs.
func (q *messageQueue) close(workers int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	abandoned := 0
	for _, msg := range q.messages {
		if msg.kind == messageJob {
			abandoned++
		}
	}

	q.closed = true
	q.messages = make([]message, 0, workers)
	for i := 0; i < workers; i++ {
		q.messages = append(q.messages, message{kind: messageTerminate})
	}
	q.ready.Broadcast()

	return abandoned
}

type PoolState int32

const (
	PoolRunning PoolState = iota
	PoolDraining
	PoolStopped
)

func (state PoolState) String() string {
	switch state {
	case PoolRunning:
		return "running"
	case PoolDraining:
		return "draining"
	case PoolStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// WorkerPool runs jobs on a fixed number of workers fed from one shared queue.
// Workers are stopped by sending each of them a terminate message, which wakes
// a worker blocked on an empty queue as reliably as it stops a busy one.
type WorkerPool struct {
	size   int
	queue  *messageQueue
	wg     sync.WaitGroup
	state  atomic.Int32
	active atomic.Int64

	stopOnce sync.Once

	logger      *slog.Logger
	busyWorkers metric.Int64UpDownCounter
	queuedJobs  metric.Int64UpDownCounter
}

type PoolOption func(pool *WorkerPool)

func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(pool *WorkerPool) {
		pool.logger = logger
	}
}

// WithPoolMetrics records busy workers and queued jobs on the given counters.
func WithPoolMetrics(busyWorkers, queuedJobs metric.Int64UpDownCounter) PoolOption {
	return func(pool *WorkerPool) {
		pool.busyWorkers = busyWorkers
		pool.queuedJobs = queuedJobs
	}
}

// NewWorkerPool starts size workers. A size below 1 is rejected before any
// worker starts.
func NewWorkerPool(size int, opts ...PoolOption) (*WorkerPool, error) {
	if size < 1 {
		return nil, ErrInvalidPoolSize
	}

	pool := &WorkerPool{
		size:   size,
		queue:  newMessageQueue(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(pool)
	}
	if pool.logger == nil {
		pool.logger = slog.Default()
	}

	pool.wg.Add(size)
	for id := 0; id < size; id++ {
		go pool.work(id)
	}

	return pool, nil
}

func (pool *WorkerPool) Size() int {
	return pool.size
}

func (pool *WorkerPool) State() PoolState {
	return PoolState(pool.state.Load())
}

// Active returns the number of workers executing a job right now.
func (pool *WorkerPool) Active() int {
	return int(pool.active.Load())
}

// Submit queues job for the next idle worker. It never waits for a worker and
// only fails once Shutdown has begun.
func (pool *WorkerPool) Submit(job Job) error {
	if err := pool.queue.push(message{kind: messageJob, job: job}); err != nil {
		return err
	}

	pool.addQueued(1)
	return nil
}

// Shutdown abandons queued jobs, tells every worker to terminate and waits
// until all of them have exited. Jobs already running finish first. It returns
// the number of abandoned jobs; calls after the first return 0 once the pool
// has stopped.
func (pool *WorkerPool) Shutdown() int {
	abandoned := 0
	pool.stopOnce.Do(func() {
		pool.logger.Debug("sending terminate message to all workers", "workers", pool.size)

		abandoned = pool.queue.close(pool.size)
		pool.state.Store(int32(PoolDraining))
		pool.addQueued(-int64(abandoned))
		if abandoned > 0 {
			pool.logger.Warn("abandoning queued jobs", "jobs", abandoned)
		}

		pool.logger.Debug("shutting down all workers")
		pool.wg.Wait()
		pool.state.Store(int32(PoolStopped))
	})
	return abandoned
}

func (pool *WorkerPool) work(id int) {
	defer pool.wg.Done()

	for {
		msg := pool.queue.pop()

		switch msg.kind {
		case messageJob:
			pool.addQueued(-1)
			pool.logger.Debug("worker got a job; executing", "worker", id)
			pool.execute(id, msg.job)
		case messageTerminate:
			pool.logger.Debug("worker was told to terminate", "worker", id)
			return
		}
	}
}

// execute runs one job. A panic is logged and swallowed so the worker keeps
// serving.
func (pool *WorkerPool) execute(id int, job Job) {
	pool.active.Add(1)
	pool.addBusy(1)
	defer func() {
		pool.addBusy(-1)
		pool.active.Add(-1)

		if recovered := recover(); recovered != nil {
			pool.logger.Error("job panicked",
				"worker", id,
				"panic", recovered,
				"stack", string(debug.Stack()),
			)
		}
	}()

	job()
}

func (pool *WorkerPool) addBusy(delta int64) {
	if pool.busyWorkers != nil {
		pool.busyWorkers.Add(context.Background(), delta)
	}
}

func (pool *WorkerPool) addQueued(delta int64) {
	if pool.queuedJobs != nil && delta != 0 {
		pool.queuedJobs.Add(context.Background(), delta)
	}
}
