package ssr

import "sync/atomic"

// WorkerPool statically distributes list-walk work across N goroutines in
// round-robin fashion, worker_id processing every index where index mod N
// == worker_id (spec §4.7, C7). There is no work stealing: items in a list
// must be independent of one another, and cross-item dependencies are
// expressed by placing dependent items in a later list.
//
// Grounded on coprocessor_manager.go's worker handshake (its done-channel
// pattern) generalised from a
// one-shot "stop and wait for done" handshake into a reusable two-phase
// semaphore pair (cont/wait) posted once per list walk.
type WorkerPool struct {
	n           int // total workers, including the calling thread as worker 0
	workers     []*poolWorker
	keepRunning atomic.Bool
	count       int
	process     func(index int)
}

type poolWorker struct {
	id   int
	cont chan struct{}
	wait chan struct{}
	pool *WorkerPool
}

// NewWorkerPool returns a pool of n workers: the calling thread acts as
// worker 0, and n-1 additional goroutines are spawned and parked waiting
// on their cont semaphore. n is typically runtime.NumCPU(), per config.
func NewWorkerPool(n int) *WorkerPool {
	if n < 1 {
		n = 1
	}
	p := &WorkerPool{n: n}
	p.keepRunning.Store(true)
	for i := 1; i < n; i++ {
		w := &poolWorker{id: i, cont: make(chan struct{}), wait: make(chan struct{}), pool: p}
		p.workers = append(p.workers, w)
		go w.loop()
	}
	return p
}

func (w *poolWorker) loop() {
	for range w.cont {
		if w.pool.keepRunning.Load() {
			w.pool.runShare(w.id)
		}
		w.wait <- struct{}{}
	}
}

func (p *WorkerPool) runShare(workerID int) {
	for i := workerID; i < p.count; i += p.n {
		p.process(i)
	}
}

// Run walks count items via process(index), splitting the work n ways.
// process must be safe to call concurrently from up to n goroutines, each
// call receiving a distinct index. Run blocks until every worker has
// finished its share of this call.
func (p *WorkerPool) Run(count int, process func(index int)) {
	p.count = count
	p.process = process
	for _, w := range p.workers {
		w.cont <- struct{}{}
	}
	p.runShare(0)
	for _, w := range p.workers {
		<-w.wait
	}
}

// Stop clears keepRunning and wakes every worker so it can exit its loop,
// then closes its cont channel. Call once at engine teardown; Run must not
// be called afterwards.
func (p *WorkerPool) Stop() {
	p.keepRunning.Store(false)
	for _, w := range p.workers {
		w.cont <- struct{}{}
		<-w.wait
		close(w.cont)
	}
}

// N reports the total worker count, including the calling thread.
func (p *WorkerPool) N() int { return p.n }
