// SPDX-License-Identifier: GPL-3.0-or-later

package dnsload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex/log"
	"github.com/bassosimone/runtimex"
	"github.com/miekg/dns"
	"golang.org/x/time/rate"
)

// ErrPreflight indicates that the nameserver did not answer the preflight query.
var ErrPreflight = errors.New("preflight failed")

// Dispatcher runs queries using a fixed pool of workers. The zero value
// is invalid; please, make sure you initialize all the fields marked as
// MANDATORY. A Dispatcher may be reused for several runs.
type Dispatcher struct {
	// Executor is the MANDATORY [QueryExecutor].
	Executor QueryExecutor

	// Logger is the OPTIONAL logger. If nil, we use [log.Log].
	Logger log.Interface

	// Metrics contains OPTIONAL metrics to update.
	Metrics *Metrics

	// OnResult is an OPTIONAL callback invoked after each result has been
	// recorded. It may be called concurrently by several workers.
	OnResult func(QueryResult)
}

func (d *Dispatcher) logger() log.Interface {
	if d.Logger != nil {
		return d.Logger
	}
	return log.Log
}

// Preflight resolves cfg.Domain once and fails unless the nameserver answers
// within the timeout. Any answer counts, including NXDOMAIN, but we warn when
// it contains no A records.
func (d *Dispatcher) Preflight(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	result := d.Executor.Execute(ctx, QueryTask{SequenceID: -1, Name: cfg.Domain})
	if result.Failure != nil {
		return fmt.Errorf("%w: %s: %s", ErrPreflight, result.Failure.Kind, result.Failure.Message)
	}
	if len(result.Addrs) == 0 {
		d.logger().WithFields(log.Fields{
			"name":  cfg.Domain,
			"rcode": dns.RcodeToString[result.Rcode],
		}).Warn("preflight: no A records")
	}
	return nil
}

// run is the state of a single [*Dispatcher.Run] invocation.
type run struct {
	cfg       Config
	names     NameProvider
	collector *Collector
	limiter   *rate.Limiter
	next      atomic.Int64
}

// Run validates cfg and then runs the queries, returning the summary.
//
// An invalid cfg yields an error wrapping [ErrConfiguration] and no query is
// sent. Otherwise, Run returns when cfg.Count queries have completed or, after
// ctx is done, when the queries in flight have completed. Failed queries never
// stop the run.
func (d *Dispatcher) Run(ctx context.Context, cfg Config) (*RunSummary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runtimex.Assert(d.Executor != nil)

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	r := &run{
		cfg:       cfg,
		names:     NewNameProvider(cfg, newRandSource(seed)),
		collector: NewCollector(d.logger(), cfg.Verbose, d.Metrics, d.OnResult),
	}
	if cfg.Rate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	wg := &sync.WaitGroup{}
	for range cfg.Concurrency {
		wg.Go(func() {
			d.worker(ctx, r)
		})
	}
	wg.Wait()

	summary := r.collector.Summary()
	summary.Cancelled = ctx.Err() != nil && (cfg.Endless || summary.Dispatched < cfg.Count)
	return summary, nil
}

// worker executes tasks until there are no more tasks or ctx is done.
func (d *Dispatcher) worker(ctx context.Context, r *run) {
	for ctx.Err() == nil {
		id := r.next.Add(1) - 1
		if !r.cfg.Endless && id >= r.cfg.Count {
			return
		}
		if r.limiter != nil && r.limiter.Wait(ctx) != nil {
			return
		}
		task := QueryTask{SequenceID: id, Name: r.names.Next(id)}
		r.collector.Record(d.execute(ctx, task))
	}
}

// execute runs a single task. Cancelling ctx does not abort the query.
func (d *Dispatcher) execute(ctx context.Context, task QueryTask) QueryResult {
	if d.Metrics != nil {
		d.Metrics.Inflight.Inc()
		defer d.Metrics.Inflight.Dec()
	}
	return d.Executor.Execute(context.WithoutCancel(ctx), task)
}
