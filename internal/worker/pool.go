package worker

import (
	"context"
	"fmt"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// PanicError is the result of a job that panicked. The pool keeps running.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}

// GetError returns the panic as an error
func (e *PanicError) GetError() error {
	return e
}

// Pool runs jobs on a fixed set of goroutines.
//
// The result channel holds only a few entries, so a producer submitting more
// than that must run concurrently with the consumer: submit from a goroutine
// that calls Close when done, and drain with Results or Collect.
type Pool struct {
	size    int
	jobs    chan Job
	results chan Result
	running sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	jobsClosed    sync.Once
	resultsClosed sync.Once
}

// NewPool creates a pool with the given number of workers
func NewPool(workers int) *Pool {
	return NewPoolWithContext(context.Background(), workers)
}

// NewPoolWithContext creates a pool whose workers stop when ctx is done.
// A non-positive worker count means one worker.
func NewPoolWithContext(ctx context.Context, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		size:    workers,
		jobs:    make(chan Job, 2*workers),
		results: make(chan Result, 2*workers),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.size
}

// Start launches the workers. The result channel closes once every worker
// has exited.
func (p *Pool) Start() {
	p.running.Add(p.size)
	for i := 0; i < p.size; i++ {
		go p.run()
	}

	go func() {
		p.running.Wait()
		p.finish()
	}()
}

func (p *Pool) run() {
	defer p.running.Done()

	for {
		var job Job
		var ok bool
		select {
		case <-p.ctx.Done():
			return
		case job, ok = <-p.jobs:
			if !ok {
				return
			}
		}
		if p.ctx.Err() != nil {
			return
		}

		select {
		case p.results <- p.execute(job):
		case <-p.ctx.Done():
			return
		}
	}
}

// execute runs one job and turns a panic into a PanicError result
func (p *Pool) execute(job Job) (result Result) {
	defer func() {
		if v := recover(); v != nil {
			result = &PanicError{Value: v}
		}
	}()
	return job.Execute(p.ctx)
}

// Submit queues a job. It returns false once the pool has been shut down or
// its context is done.
func (p *Pool) Submit(job Job) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case p.jobs <- job:
		return true
	case <-p.ctx.Done():
		return false
	}
}

// Close signals that no more jobs will be submitted
func (p *Pool) Close() {
	p.jobsClosed.Do(func() { close(p.jobs) })
}

// Results streams results as jobs finish
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Collect drains Results and returns everything once the workers exit
func (p *Pool) Collect() []Result {
	var out []Result
	for r := range p.results {
		out = append(out, r)
	}
	return out
}

// Wait closes the queue and collects. Only use it when every job is
// already queued.
func (p *Pool) Wait() []Result {
	p.Close()
	return p.Collect()
}

func (p *Pool) finish() {
	p.resultsClosed.Do(func() {
		p.cancel()
		close(p.results)
	})
}
