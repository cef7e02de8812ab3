// SPDX-License-Identifier: GPL-3.0-or-later

package dnsload

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// Resolver is typically [*net.Resolver].
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// DefaultPort returns the default nameserver port for the protocol.
func DefaultPort(protocol string) uint16 {
	switch protocol {
	case ProtocolTLS, ProtocolQUIC:
		return 853
	default:
		return 53
	}
}

// ParseNameserver parses the nameserver given by the user.
//
// The value is an IP address or a hostname, optionally followed by a port.
// Hostnames are resolved once using the given resolver. The returned server
// name is what TLS and QUIC should verify: the hostname when there is one,
// the IP address otherwise.
//
// Errors wrap [ErrConfiguration].
func ParseNameserver(ctx context.Context, reso Resolver, value, protocol string) (netip.AddrPort, string, error) {
	if endpoint, err := netip.ParseAddrPort(value); err == nil {
		endpoint = netip.AddrPortFrom(endpoint.Addr().Unmap(), endpoint.Port())
		return endpoint, endpoint.Addr().String(), nil
	}
	if addr, err := netip.ParseAddr(value); err == nil {
		addr = addr.Unmap()
		return netip.AddrPortFrom(addr, DefaultPort(protocol)), addr.String(), nil
	}

	host, port := value, DefaultPort(protocol)
	if h, p, err := net.SplitHostPort(value); err == nil {
		v, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return netip.AddrPort{}, "", fmt.Errorf("%w: invalid nameserver port %q", ErrConfiguration, p)
		}
		host, port = h, uint16(v)
	}
	if host == "" {
		return netip.AddrPort{}, "", fmt.Errorf("%w: empty nameserver host", ErrConfiguration)
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return netip.AddrPortFrom(addr.Unmap(), port), addr.Unmap().String(), nil
	}

	addrs, err := reso.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return netip.AddrPort{}, "", fmt.Errorf("%w: cannot resolve nameserver %q: %w", ErrConfiguration, host, err)
	}
	if len(addrs) == 0 {
		return netip.AddrPort{}, "", fmt.Errorf("%w: no addresses for nameserver %q", ErrConfiguration, host)
	}
	// Prefer the first IPv4 address, if any.
	selected := addrs[0].Unmap()
	for _, addr := range addrs {
		if addr.Unmap().Is4() {
			selected = addr.Unmap()
			break
		}
	}
	return netip.AddrPortFrom(selected, port), host, nil
}
