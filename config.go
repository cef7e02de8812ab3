// SPDX-License-Identifier: GPL-3.0-or-later

package dnsload

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// ErrConfiguration indicates that a [Config] cannot be used to start a run.
var ErrConfiguration = errors.New("invalid configuration")

// Supported values for [Config] Protocol.
const (
	ProtocolUDP  = "udp"
	ProtocolTCP  = "tcp"
	ProtocolTLS  = "tls"
	ProtocolQUIC = "quic"
)

// Config describes a run. Build it once, then pass it by value.
//
// Use [DefaultConfig] to get the default values and override the fields
// you care about. The Nameserver field has no default.
type Config struct {
	// Nameserver is the MANDATORY server to query.
	Nameserver string

	// Domain is the base domain to query.
	Domain string

	// Count is the number of queries to send unless Endless is set.
	Count int64

	// Concurrency is the number of parallel workers.
	Concurrency int

	// Timeout is the per-query timeout.
	Timeout time.Duration

	// Verbose enables per-query logging.
	Verbose bool

	// Randomized prepends a random label to Domain for every query.
	Randomized bool

	// Endless runs until the run context is canceled, ignoring Count.
	Endless bool

	// Protocol is one of [ProtocolUDP], [ProtocolTCP], [ProtocolTLS], [ProtocolQUIC].
	Protocol string

	// Rate is the maximum number of queries per second. Zero means unlimited.
	Rate float64

	// Seed seeds the random source used for randomized names. Zero
	// means that the seed is derived from the current time.
	Seed uint64
}

// DefaultConfig returns a [Config] with the default values.
func DefaultConfig() Config {
	return Config{
		Domain:      "google.com",
		Count:       100,
		Concurrency: 10,
		Timeout:     5 * time.Second,
		Protocol:    ProtocolUDP,
	}
}

// Validate returns an error wrapping [ErrConfiguration] if the
// configuration cannot be used to start a run.
func (c Config) Validate() error {
	switch {
	case c.Nameserver == "":
		return fmt.Errorf("%w: nameserver is required", ErrConfiguration)
	case c.Domain == "":
		return fmt.Errorf("%w: domain is empty", ErrConfiguration)
	case !validDomain(c.Domain, c.Randomized):
		return fmt.Errorf("%w: invalid domain %q", ErrConfiguration, c.Domain)
	case c.Count < 0:
		return fmt.Errorf("%w: count must be >= 0, got %d", ErrConfiguration, c.Count)
	case c.Concurrency < 1:
		return fmt.Errorf("%w: concurrency must be >= 1, got %d", ErrConfiguration, c.Concurrency)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be > 0, got %s", ErrConfiguration, c.Timeout)
	case c.Rate < 0:
		return fmt.Errorf("%w: rate must be >= 0, got %v", ErrConfiguration, c.Rate)
	}
	switch c.Protocol {
	case ProtocolUDP, ProtocolTCP, ProtocolTLS, ProtocolQUIC:
		return nil
	default:
		return fmt.Errorf("%w: unknown protocol %q", ErrConfiguration, c.Protocol)
	}
}

// validDomain reports whether the names we query for domain fit the DNS
// label and name limits, including the longest random label if needed.
func validDomain(domain string, randomized bool) bool {
	if randomized {
		domain = strings.Repeat("a", labelMaxLength) + "." + domain
	}
	_, ok := dns.IsDomainName(domain)
	return ok
}
