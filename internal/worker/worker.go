package worker

import (
	"context"
	"log"
	"time"

	"github.com/siwakornth/bilifetch/internal/domain"
)

// Pool executes queued jobs on a fixed number of goroutines. The
// submission side dispatches each job exactly once via Enqueue; the pool
// itself does no deduplication.
type Pool struct {
	svc          *domain.JobService
	queue        chan string
	size         int
	staleTimeout time.Duration
}

// New creates a pool with the given worker count. staleTimeout bounds how
// long a job may sit in delivering before the watchdog reclaims it.
func New(svc *domain.JobService, size int, staleTimeout time.Duration) *Pool {
	if size < 1 {
		size = 1
	}
	if staleTimeout <= 0 {
		staleTimeout = 10 * time.Minute
	}
	return &Pool{
		svc:          svc,
		queue:        make(chan string, 64),
		size:         size,
		staleTimeout: staleTimeout,
	}
}

// Enqueue hands a job ID to the pool. Called exactly once per job by the
// submission endpoint.
func (p *Pool) Enqueue(id string) {
	p.queue <- id
}

// Run starts the workers and the stale-delivery watchdog, blocking until
// the context is cancelled.
func (p *Pool) Run(ctx context.Context) {
	log.Printf("worker pool started with %d workers", p.size)
	for i := 0; i < p.size; i++ {
		go p.work(ctx)
	}

	ticker := time.NewTicker(p.staleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("worker pool shutting down")
			return
		case <-ticker.C:
			if n := p.svc.Store().RecoverStaleDeliveries(p.staleTimeout); n > 0 {
				log.Printf("recovered %d stale deliveries", n)
			}
		}
	}
}

func (p *Pool) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-p.queue:
			log.Printf("job %s: starting", id)
			p.svc.Run(ctx, id)
		}
	}
}
