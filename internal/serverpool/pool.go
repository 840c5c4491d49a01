// Package serverpool bounds the number of concurrently running
// sessions, modeled on the teacher's WorkerPool
// (ws/worker_pool.go): a fixed set of worker goroutines pulling tasks
// off a buffered queue, panic-recovered per task. The teacher uses
// this to bound concurrent broadcast fan-out tasks; here each "task"
// is one accepted connection's whole session lifetime
// (internal/session.Session.Run), so the pool's worker count is
// simultaneously the hard cap on concurrent sessions (spec's
// MaxConnections) rather than a throughput throttle on short jobs.
package serverpool

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Task is one unit of work a pool worker executes to completion.
type Task func()

// Pool runs at most workerCount Tasks concurrently. Submissions beyond
// the queue's capacity are dropped rather than blocking the caller.
type Pool struct {
	tasks       chan Task
	workerCount int
	logger      zerolog.Logger
	wg          sync.WaitGroup
	dropped     int64
}

// New creates a pool with workerCount worker goroutines and a task
// queue of the given capacity. Call Start to launch the workers.
func New(workerCount, queueSize int, logger zerolog.Logger) *Pool {
	return &Pool{
		tasks:       make(chan Task, queueSize),
		workerCount: workerCount,
		logger:      logger,
	}
}

// Start launches the worker goroutines. Workers run until Stop closes
// the task queue.
func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.runTask(task)
	}
}

func (p *Pool) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Msg("session worker panic recovered")
		}
	}()
	task()
}

// Submit enqueues task for execution. If every worker is busy and the
// queue is full, the task is dropped and the caller is told so — the
// caller (the accept loop) is expected to close the connection as a
// capacity rejection.
func (p *Pool) Submit(task Task) (accepted bool) {
	select {
	case p.tasks <- task:
		return true
	default:
		atomic.AddInt64(&p.dropped, 1)
		return false
	}
}

// Dropped reports how many submissions have been rejected for being
// over capacity.
func (p *Pool) Dropped() int64 { return atomic.LoadInt64(&p.dropped) }

// QueueDepth reports how many tasks are currently waiting for a free
// worker.
func (p *Pool) QueueDepth() int { return len(p.tasks) }

// Stop closes the task queue and waits for every in-flight task
// (every running session) to finish.
func (p *Pool) Stop() {
	close(p.tasks)
	p.wg.Wait()
}
