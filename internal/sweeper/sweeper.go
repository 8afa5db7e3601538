// Package sweeper provides the cancellable periodic task behind background
// expiry cleanup.
package sweeper

import (
	"context"
	"sync"
	"time"
)

// Sweeper runs fn as a repeating delayed task: the next run is scheduled only
// after the previous one returns, so runs never overlap even when fn is slow.
// This is deliberately not a fixed-rate ticker.
type Sweeper struct {
	interval time.Duration
	fn       func(context.Context)

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start launches the loop. interval must be positive and fn non-nil.
// The context passed to fn is cancelled by Stop.
func Start(interval time.Duration, fn func(context.Context)) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sweeper{
		interval: interval,
		fn:       fn,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.loop(ctx)
	return s
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.done)
	t := time.NewTimer(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.fn(ctx)
			t.Reset(s.interval)
		}
	}
}

// Stop cancels the loop and waits for any in-flight run to finish.
// Safe on a nil Sweeper and safe to call more than once.
func (s *Sweeper) Stop() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}
