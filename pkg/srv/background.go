package srv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sandevgo/factbot/pkg/log"
)

const defaultDrainTimeout = 10 * time.Second

// Background runs fire-and-forget tasks that must outlive the request that
// scheduled them. Task errors and panics are logged, never returned.
type Background struct {
	mu           sync.Mutex
	wg           sync.WaitGroup
	closed       bool
	DrainTimeout time.Duration
}

func NewBackground() *Background {
	return &Background{DrainTimeout: defaultDrainTimeout}
}

func (b *Background) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	detached := context.WithoutCancel(ctx)
	logger := log.FromCtx(detached)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		logger.Warn().Str("task", name).Msg("background runner closed, task dropped")
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error().
					Str("task", name).
					Bool("absorbed", true).
					Interface("panic", r).
					Msg("background task panicked")
			}
		}()

		if err := fn(detached); err != nil {
			logger.Warn().
				Err(err).
				Str("task", name).
				Bool("absorbed", true).
				Msg("background task failed")
		}
	}()
}

// Wait blocks until every scheduled task has returned.
func (b *Background) Wait() {
	b.wg.Wait()
}

func (b *Background) Start(ctx context.Context) error {
	return nil
}

// Shutdown stops accepting tasks and drains the running ones.
// ctx is usually already cancelled here, so the drain has its own timeout.
func (b *Background) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(b.DrainTimeout):
		return fmt.Errorf("background tasks still running after %s", b.DrainTimeout)
	}
}

// Inline runs tasks synchronously. Useful in tests and one-shot CLI commands.
type Inline struct{}

func (Inline) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("task", name).Bool("absorbed", true).Msg("inline task failed")
	}
}
