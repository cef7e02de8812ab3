// SPDX-License-Identifier: GPL-3.0-or-later

// Package dnsload generates DNS A-record load against a single nameserver.
//
// It is meant for authorized load and resilience testing of servers you
// operate or have permission to test.
//
// A [*Dispatcher] runs a fixed pool of workers that repeatedly ask a
// [NameProvider] for the next name, resolve it using a [QueryExecutor], and
// feed the [QueryResult] to a [*Collector]. The [*Executor] talks to the
// nameserver through a [Transport]: DNS over UDP, TCP, TLS, or QUIC.
//
// Each Transport targets a single netip.AddrPort endpoint and does not reuse
// connections across requests.
package dnsload
