// SPDX-License-Identifier: GPL-3.0-or-later

package dnsload

import (
	"context"
	"net/netip"
	"time"

	"github.com/bassosimone/dnscodec"
	"github.com/miekg/dns"
)

// UDPTransport is a [Transport] for DNS over UDP.
//
// Construct using [NewTransportUDP].
//
// UDPTransport uses a new socket for each Exchange call.
type UDPTransport struct {
	// dialer is the [NetDialer] used to create the socket.
	dialer NetDialer

	// endpoint is the server endpoint to use to query.
	endpoint netip.AddrPort
}

// NewTransportUDP returns a new [*UDPTransport].
func NewTransportUDP(dialer NetDialer, endpoint netip.AddrPort) *UDPTransport {
	return &UDPTransport{dialer: dialer, endpoint: endpoint}
}

// Exchange implements [Transport].
func (t *UDPTransport) Exchange(ctx context.Context, query *dnscodec.Query) (*RoundTrip, error) {
	// 1. Bail out early if the context is already done.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 2. Serialize the query.
	queryMsg, err := query.NewMsg()
	if err != nil {
		return nil, err
	}

	// 3. Dial the socket ourselves so the dialer is pluggable.
	conn, err := t.dialer.DialContext(ctx, "udp", t.endpoint.String())
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// 4. The client uses its own 2s default unless told otherwise, so we
	// derive the timeout from the context deadline.
	client := &dns.Client{Net: "udp"}
	if deadline, ok := ctx.Deadline(); ok {
		client.Timeout = time.Until(deadline)
	}

	// 5. Send and receive. The client skips replies whose ID does not match.
	respMsg, _, err := client.ExchangeWithConnContext(ctx, queryMsg, &dns.Conn{Conn: conn})
	if err != nil {
		return nil, err
	}
	return &RoundTrip{Query: queryMsg, Response: respMsg}, nil
}
