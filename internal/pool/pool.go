// Package pool provides the bounded executor primitive the pipeline
// engines run on: submit, completion-order iteration, shutdown. Two
// implementations share the interface: a goroutine-backed pool for blocking
// I/O and a serial pool for hosts that are already event-driven.
package pool

import (
	"errors"
	"sync"

	"github.com/fifosk/ebook-tools-sub003/internal/logger"
)

// ErrShutdown is returned by Submit after Shutdown.
var ErrShutdown = errors.New("pool: shut down")

// Task is a unit of work.
type Task func() (any, error)

// Future resolves to the result of a submitted task.
type Future struct {
	done  chan struct{}
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(value any, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Done is closed when the task has finished.
func (f *Future) Done() <-chan struct{} { return f.done }

// Result blocks until the task finishes.
func (f *Future) Result() (any, error) {
	<-f.done
	return f.value, f.err
}

// Pool is the executor interface the engines depend on.
type Pool interface {
	// Submit enqueues a task without blocking, queueing internally up to
	// the pool's capacity.
	Submit(task Task) (*Future, error)
	// Shutdown stops accepting tasks. With wait=true it blocks until
	// queued tasks finish. Idempotent.
	Shutdown(wait bool)
}

// AsCompleted yields futures in completion order. The channel closes once
// every future has been delivered.
func AsCompleted(futures []*Future) <-chan *Future {
	out := make(chan *Future, len(futures))
	var wg sync.WaitGroup
	for _, f := range futures {
		wg.Add(1)
		go func(f *Future) {
			defer wg.Done()
			<-f.done
			out <- f
		}(f)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// WorkerPool runs tasks on a fixed set of goroutines with a bounded queue.
type WorkerPool struct {
	name  string
	queue chan job
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type job struct {
	task   Task
	future *Future
}

// NewWorkerPool starts workers goroutines draining a queue of queueSize
// pending tasks.
func NewWorkerPool(name string, workers, queueSize int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = workers
	}
	p := &WorkerPool{
		name:  name,
		queue: make(chan job, queueSize),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.queue {
				value, err := j.task()
				j.future.complete(value, err)
			}
		}()
	}
	return p
}

func (p *WorkerPool) Submit(task Task) (*Future, error) {
	// Enqueue under a read lock so Shutdown cannot close the queue between
	// the check and the send; concurrent submitters may still block on a
	// full queue (backpressure) without serializing each other.
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrShutdown
	}
	f := newFuture()
	p.queue <- job{task: task, future: f}
	return f, nil
}

func (p *WorkerPool) Shutdown(wait bool) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	logger.Debug("Worker pool shutting down", "pool", p.name, "wait", wait)
	if wait {
		p.wg.Wait()
	}
}

// SerialPool runs each task inline on Submit. It is the cooperative
// variant for single-threaded hosts and for serializing batch exports.
type SerialPool struct {
	name string

	mu     sync.Mutex
	closed bool
}

func NewSerialPool(name string) *SerialPool {
	return &SerialPool{name: name}
}

func (p *SerialPool) Submit(task Task) (*Future, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrShutdown
	}
	f := newFuture()
	value, err := task()
	f.complete(value, err)
	return f, nil
}

func (p *SerialPool) Shutdown(wait bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	logger.Debug("Worker pool shutting down", "pool", p.name, "wait", wait)
}
