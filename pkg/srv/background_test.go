package srv

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackground_SurvivesCancelledParent(t *testing.T) {
	bg := NewBackground()
	ctx, cancel := context.WithCancel(context.Background())

	var sawCancel atomic.Bool
	started := make(chan struct{})
	bg.Go(ctx, "probe", func(ctx context.Context) error {
		<-started
		sawCancel.Store(ctx.Err() != nil)
		return nil
	})

	cancel()
	close(started)
	bg.Wait()

	assert.False(t, sawCancel.Load(), "detached task must not observe parent cancellation")
}

func TestBackground_ErrorsAndPanicsAreAbsorbed(t *testing.T) {
	bg := NewBackground()
	var ran atomic.Int32

	bg.Go(context.Background(), "fails", func(ctx context.Context) error {
		ran.Add(1)
		return errors.New("store down")
	})
	bg.Go(context.Background(), "panics", func(ctx context.Context) error {
		ran.Add(1)
		panic("boom")
	})
	bg.Wait()

	assert.Equal(t, int32(2), ran.Load())
}

func TestBackground_ShutdownDrainsAndRejects(t *testing.T) {
	bg := NewBackground()
	var finished atomic.Bool

	bg.Go(context.Background(), "slow", func(ctx context.Context) error {
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return nil
	})

	require.NoError(t, bg.Shutdown(context.Background()))
	assert.True(t, finished.Load())

	var late atomic.Bool
	bg.Go(context.Background(), "late", func(ctx context.Context) error {
		late.Store(true)
		return nil
	})
	bg.Wait()
	assert.False(t, late.Load(), "tasks scheduled after shutdown are dropped")
}

func TestBackground_ShutdownTimeout(t *testing.T) {
	bg := NewBackground()
	bg.DrainTimeout = 10 * time.Millisecond
	release := make(chan struct{})
	defer close(release)

	bg.Go(context.Background(), "stuck", func(ctx context.Context) error {
		<-release
		return nil
	})

	assert.Error(t, bg.Shutdown(context.Background()))
}

func TestInline_RunsSynchronously(t *testing.T) {
	ran := false
	Inline{}.Go(context.Background(), "sync", func(ctx context.Context) error {
		ran = true
		return errors.New("ignored")
	})
	assert.True(t, ran)
}
