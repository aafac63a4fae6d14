package auth

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// LoginDelay pads failed logins to a minimum duration plus jitter, so an
// unknown email and a wrong password take about as long.
type LoginDelay struct {
	Base   time.Duration
	Jitter time.Duration
}

func (d LoginDelay) target() time.Duration {
	if d.Jitter <= 0 {
		return d.Base
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(d.Jitter)))
	if err != nil {
		return d.Base
	}
	return d.Base + time.Duration(n.Int64())
}

// WaitFrom blocks until at least the target delay has passed since start,
// or ctx is done.
func (d LoginDelay) WaitFrom(ctx context.Context, start time.Time) {
	remaining := d.target() - time.Since(start)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
