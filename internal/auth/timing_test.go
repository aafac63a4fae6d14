package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/schoolmis/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestLoginDelay_WaitFrom_PadsToBase(t *testing.T) {
	delay := auth.LoginDelay{Base: 50 * time.Millisecond, Jitter: 20 * time.Millisecond}
	start := time.Now()

	delay.WaitFrom(context.Background(), start)

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestLoginDelay_WaitFrom_AlreadyElapsed(t *testing.T) {
	delay := auth.LoginDelay{Base: 20 * time.Millisecond}
	start := time.Now().Add(-time.Second)

	before := time.Now()
	delay.WaitFrom(context.Background(), start)

	assert.Less(t, time.Since(before), 10*time.Millisecond)
}

func TestLoginDelay_WaitFrom_ContextCancelled(t *testing.T) {
	delay := auth.LoginDelay{Base: 5 * time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	delay.WaitFrom(ctx, start)

	assert.Less(t, time.Since(start), time.Second)
}

func TestLoginDelay_Zero(t *testing.T) {
	start := time.Now()
	auth.LoginDelay{}.WaitFrom(context.Background(), start)
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}
