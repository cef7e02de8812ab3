// SPDX-License-Identifier: GPL-3.0-or-later

package dnsload

import (
	"context"
	"crypto/tls"
	"net"
	"net/netip"

	"github.com/bassosimone/dnscodec"
)

// NewTLSConfigDNSOverTLS returns a [*tls.Config] that negotiates the "dot"
// ALPN and verifies the certificate against serverName.
func NewTLSConfigDNSOverTLS(serverName string) *tls.Config {
	return &tls.Config{
		NextProtos: []string{"dot"},
		ServerName: serverName,
	}
}

// NewTLSDialerDNSOverTLS wraps a fresh [*net.Dialer] with the config
// returned by [NewTLSConfigDNSOverTLS].
func NewTLSDialerDNSOverTLS(serverName string) *tls.Dialer {
	return &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config:    NewTLSConfigDNSOverTLS(serverName),
	}
}

// TLSDialer returns connections that already completed the TLS handshake.
type TLSDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// NewTransportTLS returns a DNS-over-TLS [*StreamTransport] targeting endpoint.
// Each query handshakes on its own connection.
func NewTransportTLS(dialer TLSDialer, endpoint netip.AddrPort) *StreamTransport {
	return newStreamTransport(&tlsStreamDialer{dialer}, endpoint)
}

type tlsStreamDialer struct {
	nd TLSDialer
}

var _ streamDialer = &tlsStreamDialer{}

func (d *tlsStreamDialer) DialContext(ctx context.Context, address netip.AddrPort) (streamConn, error) {
	conn, err := d.nd.DialContext(ctx, "tcp", address.String())
	if err != nil {
		return nil, err
	}
	// A TLS conn frames like a TCP conn.
	return &tcpStreamConn{conn}, nil
}

// MutateQuery pads the query (RFC 8467) and advertises the stream size limit.
func (d *tlsStreamDialer) MutateQuery(msg *dnscodec.Query) {
	msg.Flags |= dnscodec.QueryFlagBlockLengthPadding
	msg.MaxSize = dnscodec.QueryMaxResponseSizeTCP
}
