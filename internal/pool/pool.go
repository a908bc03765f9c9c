// Package pool runs fetch tasks on a fixed number of workers.
package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Task is one unit of work. A non-nil error is unrecoverable and surfaces on
// the pool's failure channel; recoverable outcomes are the task's own problem.
type Task func(ctx context.Context) error

// Pool executes tasks with bounded concurrency and an unbounded backlog.
// Submit never blocks the caller on task execution.
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	cond    *sync.Cond
	backlog []Task
	closed  bool

	active   atomic.Int64
	wg       sync.WaitGroup
	failures chan error
}

// New starts a pool with the given number of workers. Workers stop when the
// parent context finishes or Close is called.
func New(parent context.Context, workers int) (*Pool, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("pool requires positive worker count, got %d", workers)
	}
	ctx, cancel := context.WithCancel(parent)
	p := &Pool{
		ctx:      ctx,
		cancel:   cancel,
		failures: make(chan error, workers),
	}
	p.cond = sync.NewCond(&p.mu)

	// Wake waiting workers when the context finishes, since cond.Wait does
	// not observe cancellation on its own.
	go func() {
		<-ctx.Done()
		p.cond.Broadcast()
	}()

	for range workers {
		p.wg.Add(1)
		go p.work()
	}
	return p, nil
}

// Submit enqueues a task and returns immediately. Tasks submitted after the
// pool stops are dropped.
func (p *Pool) Submit(t Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.ctx.Err() != nil {
		return
	}
	p.backlog = append(p.backlog, t)
	p.cond.Signal()
}

// ActiveCount reports the number of tasks currently executing, excluding the
// backlog. Callable at any time.
func (p *Pool) ActiveCount() int {
	return int(p.active.Load())
}

// QueuedCount reports the number of tasks waiting to start.
func (p *Pool) QueuedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.backlog)
}

// Failures carries unrecoverable task errors. The owner must drain it; the
// channel is buffered so a burst of failures does not stall workers for long.
func (p *Pool) Failures() <-chan error {
	return p.failures
}

// Close stops accepting work, cancels the task context and waits for running
// tasks to finish. Backlogged tasks that have not started are discarded.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.backlog = nil
	p.mu.Unlock()
	p.cancel()
	p.cond.Broadcast()
	p.wg.Wait()
}

func (p *Pool) work() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.backlog) == 0 && !p.closed && p.ctx.Err() == nil {
			p.cond.Wait()
		}
		if len(p.backlog) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.backlog[0]
		p.backlog = p.backlog[1:]
		p.mu.Unlock()

		p.run(task)
	}
}

func (p *Pool) run(task Task) {
	p.active.Add(1)
	defer p.active.Add(-1)

	err := p.exec(task)
	if err == nil {
		return
	}
	select {
	case p.failures <- err:
	case <-p.ctx.Done():
	}
}

// exec isolates panics so one misbehaving task cannot take down its siblings.
func (p *Pool) exec(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return task(p.ctx)
}
