// Package platform provides the host primitives the device glue needs:
// rebooting and suspending the event loop until the next deadline or wake-up.
package platform

import (
	"context"
	"errors"
	"time"
)

// ErrUnsupported is returned on platforms without a reboot primitive.
var ErrUnsupported = errors.New("platform: not supported on this OS")

// FakeRebooter records reboot requests instead of rebooting.
type FakeRebooter struct {
	Reboots int
	Err     error
}

// Reboot records the call.
func (f *FakeRebooter) Reboot() error {
	if f.Err != nil {
		return f.Err
	}
	f.Reboots++
	return nil
}

// Suspender blocks the loop goroutine until a timeout elapses, a wake-up is
// signalled or the context is cancelled.
type Suspender struct {
	ctx  context.Context
	wake chan struct{}
}

// NewSuspender creates a Suspender that returns early when ctx is done.
func NewSuspender(ctx context.Context) *Suspender {
	return &Suspender{ctx: ctx, wake: make(chan struct{}, 1)}
}

// Notify wakes a pending or the next Suspend. It never blocks and is safe to
// call from any goroutine.
func (s *Suspender) Notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Forward calls Notify for every value received on ch until ch is closed or
// the context is done.
func (s *Suspender) Forward(ch <-chan struct{}) {
	go func() {
		for {
			select {
			case <-s.ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				s.Notify()
			}
		}
	}()
}

// Suspend blocks for at most d.
func (s *Suspender) Suspend(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-s.wake:
	case <-s.ctx.Done():
	}
}
