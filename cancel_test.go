// SPDX-License-Identifier: GPL-3.0-or-later

package dnsload

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCancellerCancel(t *testing.T) {
	canceller := NewCanceller(context.Background())
	require.False(t, canceller.Cancelled())
	require.NoError(t, canceller.Context().Err())

	canceller.Cancel()
	canceller.Cancel()

	require.True(t, canceller.Cancelled())
	require.ErrorIs(t, canceller.Context().Err(), context.Canceled)
}

func TestCancellerParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	canceller := NewCanceller(parent)

	cancel()

	require.ErrorIs(t, canceller.Context().Err(), context.Canceled)
	require.False(t, canceller.Cancelled())
}

func TestCancellerConcurrentCancel(t *testing.T) {
	canceller := NewCanceller(context.Background())
	done := make(chan struct{})
	for range 8 {
		go func() {
			canceller.Cancel()
			done <- struct{}{}
		}()
	}
	for range 8 {
		<-done
	}
	require.True(t, canceller.Cancelled())
}

func TestCancellerWatchSignals(t *testing.T) {
	canceller := NewCanceller(context.Background())
	stop := canceller.WatchSignals(syscall.SIGUSR1)
	defer stop()

	proc, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, proc.Signal(syscall.SIGUSR1))

	require.Eventually(t, canceller.Cancelled, time.Second, 5*time.Millisecond)
	select {
	case <-canceller.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context not canceled")
	}

	// stopping twice is fine
	stop()
}
