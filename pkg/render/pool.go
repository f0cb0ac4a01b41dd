package render

import (
	"context"
	"image"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pyhub-apps/pdfpages-golang/pkg/page"
)

// Job asks for one thumbnail. It carries its own copy of the page so the
// worker never reads the live collection.
type Job struct {
	Page page.Page
	Size page.Size
}

// Result is delivered for every job that ran to completion.
type Result struct {
	Job
	Image image.Image
	Err   error
}

// Pool renders jobs on a fixed number of background workers and hands every
// result to the deliver callback. deliver is called from worker goroutines
// and must be safe for concurrent use.
type Pool struct {
	renderer Renderer
	deliver  func(Result)
	logger   *slog.Logger

	mu      sync.Mutex
	queue   []Job
	stopped bool
	wake    chan struct{}
	pending int // jobs submitted but not yet rendered or dropped
	idle    *sync.Cond

	ctx      context.Context
	cancel   context.CancelFunc
	group    *errgroup.Group
	stopOnce sync.Once
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolLogger sets the logger (slog.Default() otherwise).
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPool starts workers goroutines (at least one) rendering with r.
func NewPool(r Renderer, workers int, deliver func(Result), opts ...PoolOption) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)

	p := &Pool{
		renderer: r,
		deliver:  deliver,
		logger:   slog.Default(),
		wake:     make(chan struct{}, 1),
		ctx:      gctx,
		cancel:   cancel,
		group:    group,
	}
	p.idle = sync.NewCond(&p.mu)
	for _, opt := range opts {
		opt(p)
	}

	for range max(1, workers) {
		group.Go(p.work)
	}
	return p
}

// Submit queues jobs. It returns false once the pool is stopped.
func (p *Pool) Submit(jobs ...Job) bool {
	if len(jobs) == 0 {
		return true
	}
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return false
	}
	p.pending += len(jobs)
	p.queue = append(p.queue, jobs...)
	p.mu.Unlock()

	p.signal()
	return true
}

// Wait blocks until every submitted job was rendered or dropped. It may be
// called while other goroutines keep submitting.
func (p *Pool) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.pending > 0 {
		p.idle.Wait()
	}
}

// Stop drops queued jobs, cancels running renders and waits for the workers
// to exit. Stopping twice is a no-op.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.settle(len(p.queue))
		p.queue = nil
		p.mu.Unlock()

		p.cancel()
		_ = p.group.Wait()
	})
}

// settle marks n jobs finished. p.mu must be held.
func (p *Pool) settle(n int) {
	p.pending -= n
	if p.pending <= 0 {
		p.pending = 0
		p.idle.Broadcast()
	}
}

func (p *Pool) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Pool) next() (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || len(p.queue) == 0 {
		return Job{}, false
	}
	job := p.queue[0]
	p.queue = p.queue[1:]
	if len(p.queue) > 0 {
		// let another idle worker pick up the rest
		p.signal()
	}
	return job, true
}

func (p *Pool) work() error {
	for {
		job, ok := p.next()
		if !ok {
			select {
			case <-p.wake:
				continue
			case <-p.ctx.Done():
				return nil
			}
		}
		p.run(job)
	}
}

func (p *Pool) run(job Job) {
	defer func() {
		p.mu.Lock()
		p.settle(1)
		p.mu.Unlock()
	}()

	img, err := p.renderer.Render(p.ctx, job.Page, job.Size)
	if p.ctx.Err() != nil {
		return
	}
	if err != nil {
		p.logger.Debug("render failed", "page", job.Page.Identity().String(), "error", err)
	}
	p.deliver(Result{Job: job, Image: img, Err: err})
}
