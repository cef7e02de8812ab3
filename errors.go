// SPDX-License-Identifier: GPL-3.0-or-later

package dnsload

import (
	"context"
	"errors"
	"io"
	"net"
	"os"

	"github.com/bassosimone/dnscodec"
	"github.com/miekg/dns"
)

// ErrorKind classifies a failed query.
type ErrorKind int

const (
	// KindTimeout means the nameserver did not answer within the timeout.
	KindTimeout ErrorKind = iota + 1

	// KindUnreachable means we could not talk to the nameserver at all
	// (dial failure, connection refused, reset, network unreachable).
	KindUnreachable

	// KindProtocol means the nameserver sent something we could not
	// parse or that does not answer our query.
	KindProtocol
)

// String returns the failure string used in logs and summaries.
func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindUnreachable:
		return "unreachable"
	case KindProtocol:
		return "protocol_error"
	default:
		return "unknown_failure"
	}
}

// Failure describes why a query failed.
type Failure struct {
	// Kind is the failure classification.
	Kind ErrorKind

	// Message is the underlying error string.
	Message string
}

// newFailure classifies err and returns the corresponding [*Failure].
func newFailure(err error) *Failure {
	return &Failure{Kind: classifyError(err), Message: err.Error()}
}

// classifyError maps an error returned by a [Transport] or by response
// validation to an [ErrorKind].
//
// Timeouts are checked first because a deadline may surface as a wrapped
// net.Error, as [context.DeadlineExceeded], or as [os.ErrDeadlineExceeded].
func classifyError(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var dnsErr *dns.Error
	if errors.As(err, &dnsErr) {
		return KindProtocol
	}
	if errors.Is(err, dnscodec.ErrInvalidResponse) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindProtocol
	}

	return KindUnreachable
}
