package title

import (
	"context"

	"paper-agent-chat/backend/pkg/logger"
	"paper-agent-chat/backend/shared/observability"
)

// Pool runs title derivation on a bounded set of background workers,
// detached from the relay's request path. Submit never blocks: when the
// queue is full the job is dropped, since title derivation is best-effort.
type Pool struct {
	service *Service
	jobs    chan string
	workers int
	sync    bool
	log     *logger.Logger
}

// PoolOptions configure the worker pool
type PoolOptions struct {
	Workers   int
	QueueSize int
	// Sync runs jobs inline on Submit. Test hook; never set in production.
	Sync bool
}

func NewPool(service *Service, opts PoolOptions, log *logger.Logger) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	return &Pool{
		service: service,
		jobs:    make(chan string, opts.QueueSize),
		workers: opts.Workers,
		sync:    opts.Sync,
		log:     log,
	}
}

// Start launches the workers. They exit when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	if p.sync {
		return
	}
	for i := 0; i < p.workers; i++ {
		go p.run(ctx)
	}
}

func (p *Pool) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sessionID := <-p.jobs:
			p.service.Generate(ctx, sessionID)
		}
	}
}

// Submit queues one session for title derivation
func (p *Pool) Submit(sessionID string) {
	if p.sync {
		p.service.Generate(context.Background(), sessionID)
		return
	}
	select {
	case p.jobs <- sessionID:
	default:
		p.log.Warn("title job queue full, dropping job", "session_id", sessionID)
		observability.TitleJobs.WithLabelValues(observability.TitleOutcomeDropped).Inc()
	}
}
