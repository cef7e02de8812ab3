// SPDX-License-Identifier: GPL-3.0-or-later

package dnsload

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
)

// Canceller stops a run cooperatively.
//
// Cancel only prevents workers from picking up new queries; queries
// already in flight complete or time out on their own.
//
// Construct using [NewCanceller].
type Canceller struct {
	ctx       context.Context
	cancel    context.CancelFunc
	cancelled atomic.Bool
	once      sync.Once
}

// NewCanceller returns a [*Canceller] whose context derives from parent.
func NewCanceller(parent context.Context) *Canceller {
	ctx, cancel := context.WithCancel(parent)
	return &Canceller{ctx: ctx, cancel: cancel}
}

// Context returns the context to pass to [*Dispatcher.Run].
func (c *Canceller) Context() context.Context {
	return c.ctx
}

// Cancel requests cancellation. Calling it more than once is a no-op.
func (c *Canceller) Cancel() {
	c.once.Do(func() {
		c.cancelled.Store(true)
		c.cancel()
	})
}

// Cancelled reports whether [*Canceller.Cancel] has been called.
func (c *Canceller) Cancelled() bool {
	return c.cancelled.Load()
}

// WatchSignals calls [*Canceller.Cancel] when any of the given signals is
// received. Call the returned function to stop watching.
func (c *Canceller) WatchSignals(sigs ...os.Signal) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
				c.Cancel()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
		})
	}
}
