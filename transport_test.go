// SPDX-License-Identifier: GPL-3.0-or-later

package dnsload

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTransport(t *testing.T) {
	endpoint := netip.MustParseAddrPort("127.0.0.1:53")

	cases := []struct {
		protocol string
		check    func(t *testing.T, dt Transport)
	}{{
		protocol: ProtocolUDP,
		check: func(t *testing.T, dt Transport) {
			require.IsType(t, &UDPTransport{}, dt)
		},
	}, {
		protocol: ProtocolTCP,
		check: func(t *testing.T, dt Transport) {
			require.IsType(t, &tcpStreamDialer{}, dt.(*StreamTransport).dialer)
		},
	}, {
		protocol: ProtocolTLS,
		check: func(t *testing.T, dt Transport) {
			require.IsType(t, &tlsStreamDialer{}, dt.(*StreamTransport).dialer)
		},
	}, {
		protocol: ProtocolQUIC,
		check: func(t *testing.T, dt Transport) {
			dialer := dt.(*StreamTransport).dialer.(*quicStreamDialer)
			require.Equal(t, "dns.example.com", dialer.qd.TLSConfig.ServerName)
		},
	}}

	for _, tc := range cases {
		t.Run(tc.protocol, func(t *testing.T) {
			dt, closeTransport, err := NewTransport(tc.protocol, endpoint, "dns.example.com")
			require.NoError(t, err)
			defer closeTransport()
			tc.check(t, dt)
		})
	}
}

func TestNewTransportUnknownProtocol(t *testing.T) {
	_, _, err := NewTransport("doh", netip.MustParseAddrPort("127.0.0.1:443"), "")
	require.ErrorIs(t, err, ErrConfiguration)
}
