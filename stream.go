//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/bassosimone/dnsoverstream
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/dns/dnscore/dotcp.go
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/dns/dnscore/doquic.go
//
// See https://datatracker.ietf.org/doc/rfc9250/
//

package dnsload

import (
	"bufio"
	"context"
	"io"
	"math"
	"net/netip"
	"time"

	"github.com/bassosimone/dnscodec"
	"github.com/bassosimone/runtimex"
	"github.com/miekg/dns"
	"github.com/quic-go/quic-go"
)

// stream is a stream suitable for DNS over TCP, TLS, or QUIC.
type stream interface {
	// SetDeadline sets the I/O deadline.
	SetDeadline(t time.Time) error

	// We can obviously do I/O with the stream.
	io.ReadWriter

	// For [net.Conn] and [*tls.Conn], closing is a no-op since the
	// stream is the connection. For [*quic.Stream], this closes the
	// sending side of the stream.
	io.Closer
}

// streamConn abstracts over [net.Conn], [*tls.Conn], or [*quic.Conn].
type streamConn interface {
	// CloseWithError closes the connection.
	//
	// For [net.Conn] and [*tls.Conn], this calls conn.Close.
	//
	// For [*quic.Conn], this calls conn.CloseWithError.
	CloseWithError(code quic.ApplicationErrorCode, desc string) error

	// OpenStream opens a new stream over the connection.
	//
	// For [net.Conn] and [*tls.Conn], this returns the connection itself.
	//
	// For [*quic.Conn] this opens a [*quic.Stream].
	OpenStream() (stream, error)
}

// streamDialer allows dialing a [net.Conn], [*tls.Conn], or [*quic.Conn].
type streamDialer interface {
	// DialContext creates a new [streamConn].
	DialContext(ctx context.Context, address netip.AddrPort) (streamConn, error)

	// MutateQuery mutates the [*dnscodec.Query] to apply the correct
	// settings for the protocol that we are using.
	MutateQuery(msg *dnscodec.Query)
}

// StreamTransport is a [Transport] for DNS over TCP, TLS, and QUIC.
//
// Construct using [NewTransportTCP], [NewTransportTLS], [NewTransportQUIC].
//
// StreamTransport creates a new connection for each Exchange call and targets
// the specific [netip.AddrPort] endpoint configured at construction time.
type StreamTransport struct {
	// dialer is the [streamDialer] to build the stream for exchanging messages.
	dialer streamDialer

	// endpoint is the server endpoint to use to query.
	endpoint netip.AddrPort
}

// newStreamTransport creates a new [*StreamTransport].
func newStreamTransport(dialer streamDialer, endpoint netip.AddrPort) *StreamTransport {
	return &StreamTransport{dialer: dialer, endpoint: endpoint}
}

// Exchange implements [Transport].
func (dt *StreamTransport) Exchange(ctx context.Context, query *dnscodec.Query) (*RoundTrip, error) {
	// 1. create the connection
	conn, err := dt.dialer.DialContext(ctx, dt.endpoint)
	if err != nil {
		return nil, err
	}
	return dt.exchangeWithConn(ctx, conn, query)
}

// exchangeWithConn performs the exchange using an already established conn
// and takes ownership of the conn.
func (dt *StreamTransport) exchangeWithConn(ctx context.Context, conn streamConn, query *dnscodec.Query) (*RoundTrip, error) {
	// 2. Use a single connection per query and make sure we react to the
	// context being done early. Canceling the context on return is also
	// what closes the connection.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		// Closing w/o specific error -- RFC 9250 Sect. 4.3
		const quicNoError = 0x00
		<-ctx.Done()
		conn.CloseWithError(quicNoError, "")
	}()

	// 3. Open the stream for sending the query.
	stream, err := conn.OpenStream()
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	// 4. Use the context deadline to limit the query lifetime.
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetDeadline(deadline)
	}

	// 5. Mutate and serialize the query.
	query = query.Clone()
	dt.dialer.MutateQuery(query)
	queryMsg, err := query.NewMsg()
	if err != nil {
		return nil, err
	}
	rawQuery, err := queryMsg.Pack()
	if err != nil {
		return nil, err
	}

	// 6. Wrap the query into a frame and send it.
	if _, err := stream.Write(newStreamMsgFrame(rawQuery)); err != nil {
		return nil, err
	}

	// 7. With DoQ, the client MUST indicate through the STREAM FIN that no
	// further data will be sent (RFC 9250 Sect. 4.2). No-op for TCP/TLS.
	stream.Close()

	// 8. Read the response length and then the message.
	br := bufio.NewReader(stream)
	header := make([]byte, 2)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, err
	}
	length := int(header[0])<<8 | int(header[1])
	rawResp := make([]byte, length)
	if _, err := io.ReadFull(br, rawResp); err != nil {
		return nil, err
	}

	// 9. Parse the response.
	respMsg := new(dns.Msg)
	if err := respMsg.Unpack(rawResp); err != nil {
		return nil, err
	}
	return &RoundTrip{Query: queryMsg, Response: respMsg}, nil
}

// newStreamMsgFrame creates a new raw frame for sending a message over a stream.
func newStreamMsgFrame(rawMsg []byte) []byte {
	// Pack never produces messages larger than dns.MaxMsgSize.
	runtimex.Assert(len(rawMsg) <= math.MaxUint16)
	rawMsgFrame := []byte{byte(len(rawMsg) >> 8)}
	rawMsgFrame = append(rawMsgFrame, byte(len(rawMsg)))
	rawMsgFrame = append(rawMsgFrame, rawMsg...)
	return rawMsgFrame
}
