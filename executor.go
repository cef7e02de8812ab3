// SPDX-License-Identifier: GPL-3.0-or-later

package dnsload

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/bassosimone/dnscodec"
	"github.com/miekg/dns"
)

// QueryTask is a single query to perform.
type QueryTask struct {
	// SequenceID is the zero-based id assigned when the task was created.
	SequenceID int64

	// Name is the name to resolve.
	Name string
}

// QueryResult is the result of a [QueryTask]. Do not modify it once created.
type QueryResult struct {
	// SequenceID is the id of the corresponding [QueryTask].
	SequenceID int64

	// Name is the name we resolved.
	Name string

	// Addrs contains the A records in the answer. It is empty when the
	// query succeeded without records, which is not a failure.
	Addrs []netip.Addr

	// Rcode is the response code, or -1 if we did not get a response.
	Rcode int

	// Failure is nil on success and describes the failure otherwise.
	Failure *Failure

	// Latency is the time spent exchanging the query.
	Latency time.Duration
}

// Succeeded returns whether the query succeeded.
func (r *QueryResult) Succeeded() bool {
	return r.Failure == nil
}

// QueryExecutor resolves a [QueryTask].
//
// Implementations must be safe for concurrent use and must report every
// failure through [QueryResult] rather than panicking.
type QueryExecutor interface {
	Execute(ctx context.Context, task QueryTask) QueryResult
}

// Executor is the default [QueryExecutor].
//
// Construct using [NewExecutor].
type Executor struct {
	// timeout bounds each query.
	timeout time.Duration

	// transport is the transport to use.
	transport Transport
}

var _ QueryExecutor = &Executor{}

// NewExecutor returns a new [*Executor] using the given transport and timeout.
func NewExecutor(transport Transport, timeout time.Duration) *Executor {
	return &Executor{timeout: timeout, transport: transport}
}

// Execute implements [QueryExecutor].
func (e *Executor) Execute(ctx context.Context, task QueryTask) QueryResult {
	result := QueryResult{
		SequenceID: task.SequenceID,
		Name:       task.Name,
		Rcode:      -1,
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	t0 := time.Now()
	rt, err := e.transport.Exchange(ctx, dnscodec.NewQuery(task.Name, dns.TypeA))
	result.Latency = time.Since(t0)
	if err == nil && (rt == nil || rt.Response == nil) {
		err = fmt.Errorf("%w: transport returned no response", dnscodec.ErrInvalidResponse)
	}
	if err != nil {
		result.Failure = newFailure(err)
		return result
	}

	// ParseResponse also maps non-NOERROR rcodes to errors, but for load
	// testing an NXDOMAIN is a valid answer, so we only care about
	// responses that do not match the query.
	if _, err := dnscodec.ParseResponse(rt.Query, rt.Response); errors.Is(err, dnscodec.ErrInvalidResponse) {
		result.Failure = newFailure(err)
		return result
	}

	result.Rcode = rt.Response.Rcode
	result.Addrs = recordsA(rt.Response)
	return result
}

// recordsA returns the A records in the answer section.
func recordsA(msg *dns.Msg) []netip.Addr {
	var addrs []netip.Addr
	for _, rr := range msg.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		if addr, ok := netip.AddrFromSlice(a.A.To4()); ok {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}
