// SPDX-License-Identifier: GPL-3.0-or-later

package dnsload_test

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/netip"
	"slices"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/bassosimone/dnsload"
	"github.com/bassosimone/dnstest"
	"github.com/bassosimone/pkitest"
	"github.com/bassosimone/runtimex"
)

func Example_withLocalTCPServer() {
	// 1. Create DNS server for testing
	//
	// See https://github.com/bassosimone/dnstest
	dnsConfig := dnstest.NewHandlerConfig()
	dnsConfig.AddNetipAddr("dns.google", netip.MustParseAddr("8.8.4.4"))
	dnsConfig.AddNetipAddr("dns.google", netip.MustParseAddr("8.8.8.8"))
	dnsHandler := dnstest.NewHandler(dnsConfig)
	srv := dnstest.MustNewTCPServer(&net.ListenConfig{}, "127.0.0.1:0", dnsHandler)
	defer srv.Close()

	// 2. Create the DNS transport and the executor
	endpoint := runtimex.PanicOnError1(netip.ParseAddrPort(srv.Address()))
	dt := dnsload.NewTransportTCP(&net.Dialer{}, endpoint)
	executor := dnsload.NewExecutor(dt, 5*time.Second)

	// 3. Configure the run
	cfg := dnsload.DefaultConfig()
	cfg.Nameserver = srv.Address()
	cfg.Domain = "dns.google"
	cfg.Protocol = dnsload.ProtocolTCP
	cfg.Count = 8
	cfg.Concurrency = 4

	// 4. Run the queries
	dispatcher := &dnsload.Dispatcher{
		Executor: executor,
		Logger:   &log.Logger{Handler: discard.New(), Level: log.InfoLevel},
	}
	summary := runtimex.PanicOnError1(dispatcher.Run(context.Background(), cfg))

	// 5. Print the summary
	fmt.Printf("dispatched=%d succeeded=%d failed=%d\n", summary.Dispatched, summary.Succeeded, summary.Failed)

	// Output:
	// dispatched=8 succeeded=8 failed=0
}

func Example_withLocalTLSServer() {
	// 1. Create PKI for testing
	//
	// See https://github.com/bassosimone/pkitest
	pki := pkitest.MustNewPKI("testdata")
	certConfig := &pkitest.SelfSignedCertConfig{
		CommonName:   "example.com",
		DNSNames:     []string{"example.com"},
		IPAddrs:      []net.IP{net.IPv4(127, 0, 0, 1)},
		Organization: []string{"Example"},
	}
	cert := pki.MustNewCert(certConfig)
	clientConfig := dnsload.NewTLSConfigDNSOverTLS("example.com")
	clientConfig.RootCAs = pki.CertPool()

	// 2. Create DNS server for testing
	//
	// See https://github.com/bassosimone/dnstest
	dnsConfig := dnstest.NewHandlerConfig()
	dnsConfig.AddNetipAddr("dns.google", netip.MustParseAddr("8.8.4.4"))
	dnsConfig.AddNetipAddr("dns.google", netip.MustParseAddr("8.8.8.8"))
	dnsHandler := dnstest.NewHandler(dnsConfig)
	srv := dnstest.MustNewTLSServer(&net.ListenConfig{}, "127.0.0.1:0", cert, dnsHandler)
	defer srv.Close()

	// 3. Create the DNS transport and the executor
	endpoint := runtimex.PanicOnError1(netip.ParseAddrPort(srv.Address()))
	tlsDialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config:    clientConfig,
	}
	dt := dnsload.NewTransportTLS(tlsDialer, endpoint)
	executor := dnsload.NewExecutor(dt, 5*time.Second)

	// 4. Resolve a single name
	result := executor.Execute(context.Background(), dnsload.QueryTask{Name: "dns.google"})
	runtimex.Assert(result.Succeeded())

	// 5. Sort and print the addresses
	addrs := slices.Clone(result.Addrs)
	slices.SortFunc(addrs, netip.Addr.Compare)
	fmt.Printf("%+v\n", addrs)

	// Output:
	// [8.8.4.4 8.8.8.8]
}
