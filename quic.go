//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/bassosimone/dnsoverstream
// Adapted from: https://github.com/rbmk-project/dnscore/blob/v0.14.0/doquic.go
//
// See https://datatracker.ietf.org/doc/rfc9250/
//

package dnsload

import (
	"context"
	"crypto/tls"
	"net"
	"net/netip"
	"sync"

	"github.com/bassosimone/dnscodec"
	"github.com/quic-go/quic-go"
)

// NewTLSConfigDNSOverQUIC is like [NewTLSConfigDNSOverTLS] but negotiates
// the "doq" ALPN.
func NewTLSConfigDNSOverQUIC(serverName string) *tls.Config {
	return &tls.Config{
		NextProtos: []string{"doq"},
		ServerName: serverName,
	}
}

// QUICDialer opens QUIC connections over a single UDP socket.
type QUICDialer struct {
	// QUICConfig is OPTIONAL; nil selects the quic-go defaults.
	QUICConfig *quic.Config

	// TLSConfig is MANDATORY and must negotiate "doq".
	TLSConfig *tls.Config

	// Transport is MANDATORY and owns the UDP socket.
	Transport *quic.Transport
}

// NewQUICDialer returns a [*QUICDialer] sending from pconn.
//
// Every connection of a run shares pconn, so the load consumes a single
// local UDP port whatever the concurrency. The caller owns pconn and must
// close it after the run.
func NewQUICDialer(pconn net.PacketConn, serverName string) *QUICDialer {
	return &QUICDialer{
		TLSConfig:  NewTLSConfigDNSOverQUIC(serverName),
		QUICConfig: &quic.Config{},
		Transport:  &quic.Transport{Conn: pconn},
	}
}

// Dial handshakes with the server at address.
func (qd *QUICDialer) Dial(ctx context.Context, address netip.AddrPort) (*quic.Conn, error) {
	return qd.Transport.Dial(ctx, net.UDPAddrFromAddrPort(address), qd.TLSConfig, qd.QUICConfig)
}

// NewTransportQUIC returns a DNS-over-QUIC [*StreamTransport] targeting
// endpoint. Each query uses a new connection carrying a single stream.
func NewTransportQUIC(dialer *QUICDialer, endpoint netip.AddrPort) *StreamTransport {
	return newStreamTransport(&quicStreamDialer{dialer}, endpoint)
}

type quicStreamDialer struct {
	qd *QUICDialer
}

var _ streamDialer = &quicStreamDialer{}

func (d *quicStreamDialer) DialContext(ctx context.Context, address netip.AddrPort) (streamConn, error) {
	conn, err := d.qd.Dial(ctx, address)
	if err != nil {
		return nil, err
	}
	return &quicConnAdapter{qconn: conn}, nil
}

// MutateQuery pads the query and zeroes the ID (RFC 9250 Sect. 4.2.1).
func (d *quicStreamDialer) MutateQuery(msg *dnscodec.Query) {
	msg.Flags |= dnscodec.QueryFlagBlockLengthPadding
	msg.ID = 0
	msg.MaxSize = dnscodec.QueryMaxResponseSizeTCP
}

// quicConnAdapter makes a [*quic.Conn] usable as a [streamConn].
// CloseWithError is idempotent.
type quicConnAdapter struct {
	qconn *quic.Conn
	once  sync.Once
}

func (q *quicConnAdapter) CloseWithError(code quic.ApplicationErrorCode, desc string) (err error) {
	q.once.Do(func() {
		err = q.qconn.CloseWithError(code, desc)
	})
	return
}

func (q *quicConnAdapter) OpenStream() (stream, error) {
	return q.qconn.OpenStream()
}
