// SPDX-License-Identifier: GPL-3.0-or-later

package dnsload

import (
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() (*log.Logger, *memory.Handler) {
	handler := memory.New()
	return &log.Logger{Handler: handler, Level: log.DebugLevel}, handler
}

func successResult(id int64, addrs ...string) QueryResult {
	r := QueryResult{SequenceID: id, Name: "example.com", Rcode: 0, Latency: time.Millisecond}
	for _, addr := range addrs {
		r.Addrs = append(r.Addrs, netip.MustParseAddr(addr))
	}
	return r
}

func failureResult(id int64, kind ErrorKind) QueryResult {
	return QueryResult{
		SequenceID: id,
		Name:       "example.com",
		Rcode:      -1,
		Failure:    &Failure{Kind: kind, Message: "mocked error"},
		Latency:    time.Millisecond,
	}
}

func TestCollectorCounters(t *testing.T) {
	logger, _ := newTestLogger()
	c := NewCollector(logger, false, nil, nil)

	c.Record(successResult(0, "192.0.2.1"))
	c.Record(successResult(1))
	c.Record(failureResult(2, KindTimeout))
	c.Record(failureResult(3, KindTimeout))
	c.Record(failureResult(4, KindProtocol))

	summary := c.Summary()
	assert.Equal(t, int64(5), summary.Dispatched)
	assert.Equal(t, int64(2), summary.Succeeded)
	assert.Equal(t, int64(3), summary.Failed)
	assert.Equal(t, int64(1), summary.NoRecords)
	assert.Equal(t, map[ErrorKind]int64{KindTimeout: 2, KindProtocol: 1}, summary.Failures)
	assert.False(t, summary.Cancelled)
}

func TestCollectorEmptySummary(t *testing.T) {
	logger, _ := newTestLogger()
	summary := NewCollector(logger, false, nil, nil).Summary()

	require.Zero(t, summary.Dispatched)
	require.Equal(t, LatencyStats{}, summary.Latency)
	require.Empty(t, summary.Failures)
}

func TestCollectorConcurrentRecord(t *testing.T) {
	logger, _ := newTestLogger()
	c := NewCollector(logger, false, nil, nil)

	wg := &sync.WaitGroup{}
	for worker := range 8 {
		wg.Go(func() {
			for idx := range 500 {
				id := int64(worker*500 + idx)
				if id%3 == 0 {
					c.Record(failureResult(id, KindUnreachable))
					continue
				}
				c.Record(successResult(id, "192.0.2.1"))
			}
		})
	}

	// snapshots taken while recording must be consistent
	for range 100 {
		s := c.Summary()
		require.Equal(t, s.Dispatched, s.Succeeded+s.Failed)
	}
	wg.Wait()

	summary := c.Summary()
	require.Equal(t, int64(4000), summary.Dispatched)
	require.Equal(t, summary.Dispatched, summary.Succeeded+summary.Failed)
	require.Equal(t, summary.Failed, summary.Failures[KindUnreachable])
}

func TestCollectorVerboseLogging(t *testing.T) {
	logger, handler := newTestLogger()
	c := NewCollector(logger, true, nil, nil)

	c.Record(successResult(0, "192.0.2.1", "192.0.2.2"))
	c.Record(QueryResult{SequenceID: 1, Name: "nx.example.com", Rcode: 3})
	c.Record(failureResult(2, KindTimeout))

	require.Len(t, handler.Entries, 3)

	resolved := handler.Entries[0]
	assert.Equal(t, log.InfoLevel, resolved.Level)
	assert.Equal(t, "resolved", resolved.Message)
	assert.Equal(t, "192.0.2.1,192.0.2.2", resolved.Fields["addrs"])
	assert.Equal(t, int64(0), resolved.Fields["seq"])
	assert.Equal(t, "example.com", resolved.Fields["name"])
	assert.Equal(t, "NOERROR", resolved.Fields["rcode"])

	noRecords := handler.Entries[1]
	assert.Equal(t, log.InfoLevel, noRecords.Level)
	assert.Equal(t, "no records found", noRecords.Message)
	assert.Equal(t, "NXDOMAIN", noRecords.Fields["rcode"])

	failed := handler.Entries[2]
	assert.Equal(t, log.WarnLevel, failed.Level)
	assert.Equal(t, "timeout", failed.Message)
	assert.Equal(t, "mocked error", failed.Fields["error"])
}

func TestCollectorQuietLogging(t *testing.T) {
	logger, handler := newTestLogger()
	c := NewCollector(logger, false, nil, nil)

	c.Record(successResult(0, "192.0.2.1"))
	c.Record(failureResult(1, KindTimeout))

	require.Empty(t, handler.Entries)
}

func TestCollectorOnRecord(t *testing.T) {
	logger, _ := newTestLogger()
	var got []int64
	c := NewCollector(logger, false, nil, func(r QueryResult) {
		got = append(got, r.SequenceID)
	})

	c.Record(successResult(7))
	c.Record(failureResult(3, KindTimeout))

	require.Equal(t, []int64{7, 3}, got)
}

func TestCollectorLatencyStats(t *testing.T) {
	logger, _ := newTestLogger()
	c := NewCollector(logger, false, nil, nil)

	for idx := 100; idx >= 1; idx-- {
		r := successResult(int64(idx), "192.0.2.1")
		r.Latency = time.Duration(idx) * time.Millisecond
		c.Record(r)
	}

	latency := c.Summary().Latency
	assert.Equal(t, time.Millisecond, latency.Min)
	assert.Equal(t, 100*time.Millisecond, latency.Max)
	assert.Equal(t, 50500*time.Microsecond, latency.Mean)
	assert.Equal(t, 50500*time.Microsecond, latency.Median)
	assert.InDelta(t, float64(95*time.Millisecond), float64(latency.P95), float64(time.Millisecond))
}

func TestCollectorLatencyReservoirIsBounded(t *testing.T) {
	logger, _ := newTestLogger()
	c := NewCollector(logger, false, nil, nil)

	c.mu.Lock()
	for idx := range maxLatencySamples + 1000 {
		c.sampleLocked(float64(idx))
	}
	c.mu.Unlock()

	require.Len(t, c.samples, maxLatencySamples)
	require.Equal(t, int64(maxLatencySamples+1000), c.seen)
}

func TestRunSummaryLog(t *testing.T) {
	logger, handler := newTestLogger()
	summary := &RunSummary{
		Dispatched: 10,
		Succeeded:  8,
		Failed:     2,
		Failures:   map[ErrorKind]int64{KindTimeout: 2},
		Elapsed:    2 * time.Second,
	}

	summary.Log(logger)

	require.Len(t, handler.Entries, 1)
	entry := handler.Entries[0]
	assert.Equal(t, "run completed", entry.Message)
	assert.Equal(t, int64(10), entry.Fields["dispatched"])
	assert.Equal(t, int64(8), entry.Fields["succeeded"])
	assert.Equal(t, int64(2), entry.Fields["failed"])
	assert.Equal(t, int64(2), entry.Fields["timeout"])
	assert.Equal(t, 5.0, entry.Fields["qps"])
}

func TestRunSummaryLogInterrupted(t *testing.T) {
	logger, handler := newTestLogger()
	summary := &RunSummary{Dispatched: 3, Succeeded: 3, Cancelled: true}

	summary.Log(logger)

	require.Len(t, handler.Entries, 1)
	assert.Equal(t, "run interrupted", handler.Entries[0].Message)
	assert.NotContains(t, handler.Entries[0].Fields, "qps")
}
