package worker

import (
	"context"
	"sync"
)

// Pool runs indexed tasks on a fixed number of goroutines and keeps each
// outcome under the index it was queued with. Tasks must not be queued after
// Wait.
type Pool[T any] struct {
	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	queue   chan task[T]
	wg      sync.WaitGroup
	closed  sync.Once

	mu       sync.Mutex
	outcomes map[int]T
}

type task[T any] struct {
	index int
	run   func(ctx context.Context) T
}

// NewPool starts workers goroutines bound to ctx
func NewPool[T any](ctx context.Context, workers int) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	p := &Pool[T]{
		workers:  workers,
		ctx:      ctx,
		cancel:   cancel,
		queue:    make(chan task[T], workers*2),
		outcomes: make(map[int]T),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.loop()
	}
	return p
}

// Workers returns the number of goroutines serving the pool
func (p *Pool[T]) Workers() int {
	return p.workers
}

func (p *Pool[T]) loop() {
	defer p.wg.Done()
	for t := range p.queue {
		// Queued work is dropped once the pool is cancelled
		if p.ctx.Err() != nil {
			continue
		}
		v := t.run(p.ctx)
		p.mu.Lock()
		p.outcomes[t.index] = v
		p.mu.Unlock()
	}
}

// Go queues run under index. It reports false without queueing once the
// pool's context is done.
func (p *Pool[T]) Go(index int, run func(ctx context.Context) T) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.queue <- task[T]{index: index, run: run}:
		return true
	}
}

// Wait waits for queued work and returns the outcomes by index. Indexes whose
// task never ran are absent.
func (p *Pool[T]) Wait() map[int]T {
	p.closed.Do(func() { close(p.queue) })
	p.wg.Wait()
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[int]T, len(p.outcomes))
	for i, v := range p.outcomes {
		out[i] = v
	}
	return out
}

// Cancel stops queued tasks from starting. Running tasks see a cancelled
// context.
func (p *Pool[T]) Cancel() {
	p.cancel()
}

// RunIndexed runs task for every index in [0, n) on a pool of the given size
// and returns the outcomes in index order. Indexes that never ran, because
// ctx ended first, are filled by skipped.
func RunIndexed[T any](ctx context.Context, workers, n int, run func(ctx context.Context, i int) T, skipped func(i int) T) []T {
	out := make([]T, n)
	if n == 0 {
		return out
	}

	pool := NewPool[T](ctx, workers)
	for i := 0; i < n; i++ {
		i := i
		if !pool.Go(i, func(ctx context.Context) T { return run(ctx, i) }) {
			break
		}
	}

	done := pool.Wait()
	for i := range out {
		if v, ok := done[i]; ok {
			out[i] = v
		} else {
			out[i] = skipped(i)
		}
	}
	return out
}
