package executor

import (
	"sync"

	"github.com/arbitragex/engine/internal/arbmodel"
)

// chainWorker runs submitted jobs one at a time in FIFO order, giving
// each chain's nonce sequencing a single writer. Grounded on the
// nonce manager's per-(chain,address) serialization, generalized here
// into one goroutine per chain rather than a mutex guarding every call.
type chainWorker struct {
	jobs chan func()
	done chan struct{}
}

func newChainWorker() *chainWorker {
	w := &chainWorker{jobs: make(chan func(), 256), done: make(chan struct{})}
	go w.loop()
	return w
}

func (w *chainWorker) loop() {
	for {
		select {
		case job := <-w.jobs:
			job()
		case <-w.done:
			return
		}
	}
}

// Submit enqueues job for FIFO execution on this chain's worker.
func (w *chainWorker) Submit(job func()) {
	w.jobs <- job
}

func (w *chainWorker) Stop() {
	close(w.done)
}

// chainWorkers resolves (and lazily creates) one chainWorker per chain id.
type chainWorkers struct {
	mu      sync.Mutex
	byChain map[arbmodel.ChainID]*chainWorker
}

func newChainWorkers() *chainWorkers {
	return &chainWorkers{byChain: make(map[arbmodel.ChainID]*chainWorker)}
}

// For returns the worker serializing submissions for chain, creating one
// on first use.
func (c *chainWorkers) For(chain arbmodel.ChainID) *chainWorker {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.byChain[chain]
	if !ok {
		w = newChainWorker()
		c.byChain[chain] = w
	}
	return w
}

// StopAll stops every chain worker; used during graceful shutdown.
func (c *chainWorkers) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.byChain {
		w.Stop()
	}
}
