package background

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
	swept chan struct{}
}

func newFakeSweeper() *fakeSweeper {
	return &fakeSweeper{swept: make(chan struct{}, 16)}
}

func (f *fakeSweeper) ClearExpiredResetTokens(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	f.calls = append(f.calls, now)
	f.mu.Unlock()
	f.swept <- struct{}{}
	return 2, f.err
}

func (f *fakeSweeper) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForSweep(t *testing.T, f *fakeSweeper) {
	t.Helper()
	select {
	case <-f.swept:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not run")
	}
}

func TestCleanupManager_SweepsImmediatelyAndOnTick(t *testing.T) {
	sweeper := newFakeSweeper()
	fixed := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	cm := NewCleanupManager(sweeper, discardLogger(), 10*time.Millisecond)
	cm.now = func() time.Time { return fixed }

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	waitForSweep(t, sweeper)
	waitForSweep(t, sweeper)
	cm.Stop()
	cm.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}

	require.GreaterOrEqual(t, sweeper.callCount(), 2)
	assert.Equal(t, fixed, sweeper.calls[0])
}

func TestCleanupManager_StopsOnContextCancel(t *testing.T) {
	sweeper := newFakeSweeper()
	sweeper.err = errors.New("connection refused")
	cm := NewCleanupManager(sweeper, discardLogger(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	waitForSweep(t, sweeper)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	assert.Equal(t, 1, sweeper.callCount())
}

func TestNewCleanupManager_DefaultsInterval(t *testing.T) {
	cm := NewCleanupManager(newFakeSweeper(), discardLogger(), 0)
	assert.Equal(t, time.Hour, cm.interval)
}
