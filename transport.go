// SPDX-License-Identifier: GPL-3.0-or-later

package dnsload

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/bassosimone/dnscodec"
	"github.com/miekg/dns"
)

// RoundTrip is the result of a successful [Transport] exchange.
type RoundTrip struct {
	// Query is the message actually sent, after protocol-specific mutations.
	Query *dns.Msg

	// Response is the message received from the server.
	Response *dns.Msg
}

// Transport exchanges a single DNS query with a single nameserver.
//
// Implementations honor the context deadline and are safe for concurrent use.
type Transport interface {
	Exchange(ctx context.Context, query *dnscodec.Query) (*RoundTrip, error)
}

var (
	_ Transport = &UDPTransport{}
	_ Transport = &StreamTransport{}
)

// NewTransport returns the [Transport] for the given protocol.
//
// The serverName is used for TLS and QUIC certificate verification. The
// returned close function releases resources owned by the transport and
// must be called once the transport is no longer needed.
func NewTransport(protocol string, endpoint netip.AddrPort, serverName string) (Transport, func() error, error) {
	noop := func() error { return nil }
	switch protocol {
	case ProtocolUDP:
		return NewTransportUDP(&net.Dialer{}, endpoint), noop, nil

	case ProtocolTCP:
		return NewTransportTCP(&net.Dialer{}, endpoint), noop, nil

	case ProtocolTLS:
		return NewTransportTLS(NewTLSDialerDNSOverTLS(serverName), endpoint), noop, nil

	case ProtocolQUIC:
		lc := &net.ListenConfig{}
		pconn, err := lc.ListenPacket(context.Background(), "udp", ":0")
		if err != nil {
			return nil, nil, err
		}
		dialer := NewQUICDialer(pconn, serverName)
		return NewTransportQUIC(dialer, endpoint), pconn.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown protocol %q", ErrConfiguration, protocol)
	}
}
