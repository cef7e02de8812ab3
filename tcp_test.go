// SPDX-License-Identifier: GPL-3.0-or-later

package dnsload

import (
	"errors"
	"testing"
	"time"

	"github.com/bassosimone/dnscodec"
	"github.com/bassosimone/netstub"
	"github.com/stretchr/testify/require"
)

func TestTCPStreamConn(t *testing.T) {
	t.Run("OpenStream returns working stream", func(t *testing.T) {
		var written []byte
		conn := &netstub.FuncConn{
			WriteFunc: func(b []byte) (int, error) {
				written = append(written, b...)
				return len(b), nil
			},
			CloseFunc: func() error { return nil },
		}

		sconn := &tcpStreamConn{conn}
		stream, err := sconn.OpenStream()
		require.NoError(t, err)

		n, err := stream.Write([]byte("hello"))
		require.NoError(t, err)
		require.Equal(t, 5, n)
		require.Equal(t, []byte("hello"), written)

		// Close should be a no-op for TCP streams
		require.NoError(t, stream.Close())

		require.NoError(t, sconn.CloseWithError(0, ""))
	})

	t.Run("SetDeadline works", func(t *testing.T) {
		var gotDeadline time.Time
		conn := &netstub.FuncConn{
			SetDeadlineFunc: func(t time.Time) error {
				gotDeadline = t
				return nil
			},
		}

		stream, err := (&tcpStreamConn{conn}).OpenStream()
		require.NoError(t, err)

		deadline := time.Now().Add(time.Second)
		require.NoError(t, stream.SetDeadline(deadline))
		require.Equal(t, deadline, gotDeadline)
	})

	t.Run("CloseWithError closes underlying connection", func(t *testing.T) {
		var closed bool
		conn := &netstub.FuncConn{
			CloseFunc: func() error {
				closed = true
				return nil
			},
		}

		require.NoError(t, (&tcpStreamConn{conn}).CloseWithError(0, ""))
		require.True(t, closed)
	})

	t.Run("CloseWithError propagates error", func(t *testing.T) {
		expected := errors.New("close failed")
		conn := &netstub.FuncConn{
			CloseFunc: func() error { return expected },
		}

		err := (&tcpStreamConn{conn}).CloseWithError(0, "")
		require.ErrorIs(t, err, expected)
	})
}

func TestTCPStreamDialerMutateQuery(t *testing.T) {
	query := dnscodec.NewQuery("example.com", 1)

	(&tcpStreamDialer{}).MutateQuery(query)

	require.Equal(t, uint16(dnscodec.QueryMaxResponseSizeTCP), query.MaxSize)
	require.Zero(t, query.Flags&dnscodec.QueryFlagBlockLengthPadding)
}

func TestTLSStreamDialerMutateQuery(t *testing.T) {
	query := dnscodec.NewQuery("example.com", 1)

	(&tlsStreamDialer{}).MutateQuery(query)

	require.Equal(t, uint16(dnscodec.QueryMaxResponseSizeTCP), query.MaxSize)
	require.NotZero(t, query.Flags&dnscodec.QueryFlagBlockLengthPadding)
}

func TestNewTLSConfigDNSOverTLS(t *testing.T) {
	cfg := NewTLSConfigDNSOverTLS("dns.example.com")

	require.Equal(t, "dns.example.com", cfg.ServerName)
	require.Contains(t, cfg.NextProtos, "dot")
}

func TestNewTLSDialerDNSOverTLS(t *testing.T) {
	dialer := NewTLSDialerDNSOverTLS("dns.example.com")

	require.NotNil(t, dialer.NetDialer)
	require.Equal(t, "dns.example.com", dialer.Config.ServerName)
}
