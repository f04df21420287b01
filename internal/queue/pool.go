package queue

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Pool runs tasks in-process on a fixed number of workers fed by a bounded
// channel.
type Pool struct {
	mux     *Mux
	tasks   chan Task
	workers int
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewPool(mux *Mux, size int64, workers int, logger *zap.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		mux:     mux,
		tasks:   make(chan Task, max(size, 1)),
		workers: max(workers, 1),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Enqueue never blocks. It returns ErrQueueFull when the buffer is at
// capacity.
func (p *Pool) Enqueue(ctx context.Context, t Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrQueueClosed
	}
	select {
	case p.tasks <- t:
		return nil
	default:
		p.logger.Warn("task queue full", zap.String("kind", t.Kind), zap.Int64("ref_id", t.RefID))
		return ErrQueueFull
	}
}

func (p *Pool) Start() error {
	for range p.workers {
		p.wg.Go(p.work)
	}
	p.logger.Info("task pool started", zap.Int("workers", p.workers), zap.Int("size", cap(p.tasks)))
	return nil
}

// Shutdown cancels running tasks and waits for the workers to return.
// Tasks still buffered are dropped.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
	p.wg.Wait()
}

func (p *Pool) work() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case t := <-p.tasks:
			if err := p.run(t); err != nil {
				p.logger.Error("task failed",
					zap.String("kind", t.Kind),
					zap.Int64("ref_id", t.RefID),
					zap.Error(err),
				)
			}
		}
	}
}

func (p *Pool) run(t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.mux.Dispatch(p.ctx, t)
}
