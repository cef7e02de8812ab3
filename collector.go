// SPDX-License-Identifier: GPL-3.0-or-later

package dnsload

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/miekg/dns"
	"github.com/montanaflynn/stats"
)

// maxLatencySamples bounds the latency reservoir so that endless runs
// use constant memory.
const maxLatencySamples = 1 << 16

// LatencyStats summarizes the query latency.
type LatencyStats struct {
	Min    time.Duration
	Mean   time.Duration
	Median time.Duration
	P95    time.Duration
	Max    time.Duration
}

// RunSummary summarizes a run.
type RunSummary struct {
	// Dispatched is the number of completed queries.
	Dispatched int64

	// Succeeded is the number of queries that got a response.
	Succeeded int64

	// Failed is the number of failed queries.
	Failed int64

	// NoRecords is the number of succeeded queries without A records.
	NoRecords int64

	// Failures breaks down Failed by [ErrorKind].
	Failures map[ErrorKind]int64

	// Elapsed is the run duration.
	Elapsed time.Duration

	// Latency summarizes the latency of all the queries.
	Latency LatencyStats

	// Cancelled indicates that the run was interrupted.
	Cancelled bool
}

// Log emits the summary line using the given logger.
func (s *RunSummary) Log(logger log.Interface) {
	fields := log.Fields{
		"dispatched": s.Dispatched,
		"succeeded":  s.Succeeded,
		"failed":     s.Failed,
		"no_records": s.NoRecords,
		"elapsed":    s.Elapsed.Round(time.Millisecond),
		"median":     s.Latency.Median.Round(time.Microsecond),
		"p95":        s.Latency.P95.Round(time.Microsecond),
	}
	for kind, count := range s.Failures {
		fields[kind.String()] = count
	}
	if s.Elapsed > 0 {
		fields["qps"] = float64(s.Dispatched) / s.Elapsed.Seconds()
	}
	msg := "run completed"
	if s.Cancelled {
		msg = "run interrupted"
	}
	logger.WithFields(fields).Info(msg)
}

// Collector receives the results of all workers. It is safe for
// concurrent use and does not assume results arrive in order.
//
// Construct using [NewCollector].
type Collector struct {
	logger   log.Interface
	metrics  *Metrics
	onRecord func(QueryResult)
	verbose  bool
	started  time.Time

	// mu protects the fields below.
	mu         sync.Mutex
	dispatched int64
	succeeded  int64
	failed     int64
	noRecords  int64
	failures   map[ErrorKind]int64
	samples    []float64
	seen       int64
	rnd        *rand.Rand
}

// NewCollector returns a new [*Collector].
//
// The metrics and onRecord arguments are OPTIONAL and may be nil.
func NewCollector(logger log.Interface, verbose bool, metrics *Metrics, onRecord func(QueryResult)) *Collector {
	return &Collector{
		logger:   logger,
		metrics:  metrics,
		onRecord: onRecord,
		verbose:  verbose,
		started:  time.Now(),
		failures: make(map[ErrorKind]int64),
		rnd:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
}

// Record records a result.
func (c *Collector) Record(r QueryResult) {
	c.update(&r)
	if c.metrics != nil {
		c.metrics.observe(&r)
	}
	if c.verbose {
		c.logResult(&r)
	}
	if c.onRecord != nil {
		c.onRecord(r)
	}
}

func (c *Collector) update(r *QueryResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatched++
	switch {
	case r.Failure != nil:
		c.failed++
		c.failures[r.Failure.Kind]++
	case len(r.Addrs) == 0:
		c.succeeded++
		c.noRecords++
	default:
		c.succeeded++
	}
	c.sampleLocked(float64(r.Latency))
}

// sampleLocked adds a latency sample using reservoir sampling.
func (c *Collector) sampleLocked(v float64) {
	c.seen++
	if len(c.samples) < maxLatencySamples {
		c.samples = append(c.samples, v)
		return
	}
	if j := c.rnd.Int64N(c.seen); j < maxLatencySamples {
		c.samples[j] = v
	}
}

func (c *Collector) logResult(r *QueryResult) {
	fields := log.Fields{
		"seq":     r.SequenceID,
		"name":    r.Name,
		"latency": r.Latency.Round(time.Microsecond),
	}
	if r.Failure != nil {
		fields["error"] = r.Failure.Message
		c.logger.WithFields(fields).Warn(r.Failure.Kind.String())
		return
	}
	fields["rcode"] = dns.RcodeToString[r.Rcode]
	if len(r.Addrs) == 0 {
		c.logger.WithFields(fields).Info("no records found")
		return
	}
	addrs := make([]string, 0, len(r.Addrs))
	for _, addr := range r.Addrs {
		addrs = append(addrs, addr.String())
	}
	fields["addrs"] = strings.Join(addrs, ",")
	c.logger.WithFields(fields).Info("resolved")
}

// Summary returns a consistent snapshot of the counters.
func (c *Collector) Summary() *RunSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	summary := &RunSummary{
		Dispatched: c.dispatched,
		Succeeded:  c.succeeded,
		Failed:     c.failed,
		NoRecords:  c.noRecords,
		Failures:   make(map[ErrorKind]int64, len(c.failures)),
		Elapsed:    time.Since(c.started),
		Latency:    latencyStats(c.samples),
	}
	for kind, count := range c.failures {
		summary.Failures[kind] = count
	}
	return summary
}

// latencyStats computes the latency statistics. The samples are
// expressed in nanoseconds.
func latencyStats(samples []float64) LatencyStats {
	data := stats.Float64Data(samples)
	if data.Len() == 0 {
		return LatencyStats{}
	}
	// stats only fails on empty input, which we excluded above.
	lo, _ := stats.Min(data)
	mean, _ := stats.Mean(data)
	median, _ := stats.Median(data)
	p95, _ := stats.Percentile(data, 95)
	hi, _ := stats.Max(data)
	return LatencyStats{
		Min:    time.Duration(lo),
		Mean:   time.Duration(mean),
		Median: time.Duration(median),
		P95:    time.Duration(p95),
		Max:    time.Duration(hi),
	}
}
