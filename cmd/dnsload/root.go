// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/bassosimone/dnsload"
	"github.com/bassosimone/dnsload/internal/logcli"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// Options contains the options you can set from the CLI.
type Options struct {
	Domain         string
	Endless        bool
	MetricsAddress string
	Nameserver     string
	Number         int64
	Preflight      bool
	Protocol       string
	Random         bool
	Rate           float64
	Seed           uint64
	Threads        int
	Timeout        int
	Verbose        bool
	Yes            bool
}

// newRootCommand creates the dnsload command.
func newRootCommand() *cobra.Command {
	defaults := dnsload.DefaultConfig()
	opts := &Options{}
	cmd := &cobra.Command{
		Use:           "dnsload --nameserver ADDRESS [flags]",
		Short:         "Send DNS A queries to a nameserver you are allowed to test",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMain(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}
	flags := cmd.Flags()

	flags.StringVar(&opts.Nameserver, "nameserver", "", "target nameserver (IP, IP:port, or hostname)")
	flags.StringVarP(&opts.Domain, "domain", "d", defaults.Domain, "base domain to query")
	flags.Int64VarP(&opts.Number, "number", "n", defaults.Count, "number of queries to send")
	flags.IntVarP(&opts.Threads, "threads", "t", defaults.Concurrency, "number of parallel workers")
	flags.IntVar(&opts.Timeout, "timeout", int(defaults.Timeout/time.Second), "per-query timeout in seconds")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "log every query")
	flags.BoolVar(&opts.Random, "random", false, "query random subdomains of the base domain")
	flags.BoolVar(&opts.Endless, "endless", false, "run until interrupted, ignoring --number")
	flags.StringVarP(&opts.Protocol, "protocol", "p", defaults.Protocol, "one of: udp, tcp, tls, quic")
	flags.Float64Var(&opts.Rate, "rate", 0, "maximum queries per second (0 means unlimited)")
	flags.BoolVar(&opts.Preflight, "preflight", false, "check that the nameserver answers for the domain before starting")
	flags.BoolVarP(&opts.Yes, "yes", "y", false, "do not ask for confirmation before starting")
	flags.StringVar(&opts.MetricsAddress, "metrics-address", "", "serve Prometheus metrics at this address")
	flags.Uint64Var(&opts.Seed, "seed", 0, "seed for random subdomains (0 means random)")

	_ = cmd.MarkFlagRequired("nameserver")
	return cmd
}

// maxTimeoutSeconds is the largest --timeout that fits a [time.Duration].
const maxTimeoutSeconds = math.MaxInt64 / int64(time.Second)

// newConfig converts the options into a [dnsload.Config].
func newConfig(opts *Options) dnsload.Config {
	cfg := dnsload.DefaultConfig()
	cfg.Nameserver = opts.Nameserver
	cfg.Domain = opts.Domain
	cfg.Count = opts.Number
	cfg.Concurrency = opts.Threads
	cfg.Timeout = time.Duration(opts.Timeout) * time.Second
	cfg.Verbose = opts.Verbose
	cfg.Randomized = opts.Random
	cfg.Endless = opts.Endless
	cfg.Protocol = opts.Protocol
	cfg.Rate = opts.Rate
	cfg.Seed = opts.Seed
	return cfg
}

// runMain runs dnsload with the given options.
func runMain(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, opts *Options) error {
	logger := &log.Logger{Handler: logcli.New(stderr), Level: log.InfoLevel}

	// 1. validate the configuration before doing anything else
	if int64(opts.Timeout) > maxTimeoutSeconds {
		return fmt.Errorf("%w: timeout must be <= %d seconds, got %d", dnsload.ErrConfiguration, maxTimeoutSeconds, opts.Timeout)
	}
	cfg := newConfig(opts)
	if err := cfg.Validate(); err != nil {
		return err
	}

	// 2. map interrupts to a graceful stop from now on
	canceller := dnsload.NewCanceller(ctx)
	stop := canceller.WatchSignals(os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = canceller.Context()

	endpoint, serverName, err := dnsload.ParseNameserver(ctx, net.DefaultResolver, cfg.Nameserver, cfg.Protocol)
	if err != nil {
		return err
	}

	// 3. tell the user what we are about to do and ask for confirmation
	printBanner(stdout, cfg, endpoint.String())
	if !opts.Yes {
		proceed, err := confirm(ctx, stdin, stdout)
		if err != nil {
			return err
		}
		if !proceed {
			fmt.Fprintln(stdout, "Exiting gracefully")
			return nil
		}
	}

	// 4. create the transport and the dispatcher
	transport, closeTransport, err := dnsload.NewTransport(cfg.Protocol, endpoint, serverName)
	if err != nil {
		return err
	}
	defer closeTransport()
	dispatcher := &dnsload.Dispatcher{
		Executor: dnsload.NewExecutor(transport, cfg.Timeout),
		Logger:   logger,
	}

	// 5. make sure the nameserver works, if requested
	if opts.Preflight {
		if err := dispatcher.Preflight(ctx, cfg); err != nil {
			return err
		}
		logger.Infof("preflight query for %s succeeded", cfg.Domain)
	}

	// 6. expose metrics, if requested
	g := &errgroup.Group{}
	var metricsSrv *http.Server
	if opts.MetricsAddress != "" {
		reg := prometheus.NewRegistry()
		dispatcher.Metrics = dnsload.NewMetrics(reg)
		listener, err := net.Listen("tcp", opts.MetricsAddress)
		if err != nil {
			return err
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		logger.Infof("serving prometheus metrics at http://%s/metrics", listener.Addr().String())
		g.Go(func() error {
			if err := metricsSrv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	// 7. show progress unless we are logging each query
	if !cfg.Verbose && !cfg.Endless {
		bar := newProgressBar(stdout, cfg.Count)
		dispatcher.OnResult = func(dnsload.QueryResult) {
			bar.Add(1)
		}
	}

	// 8. run until done or interrupted
	g.Go(func() error {
		if metricsSrv != nil {
			defer metricsSrv.Close()
		}
		summary, err := dispatcher.Run(ctx, cfg)
		if err != nil {
			return err
		}
		summary.Log(logger)
		return nil
	})
	return g.Wait()
}

// confirm waits for the user to press enter. It returns false when ctx
// is done first, for example because the user pressed CTRL+C.
func confirm(ctx context.Context, stdin io.Reader, stdout io.Writer) (bool, error) {
	fmt.Fprintln(stdout, "Press enter to begin or CTRL+C to exit")
	errch := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(stdin).ReadString('\n')
		if errors.Is(err, io.EOF) {
			err = nil
		}
		errch <- err
	}()
	select {
	case err := <-errch:
		return err == nil, err
	case <-ctx.Done():
		return false, nil
	}
}

// newProgressBar creates the progress bar for bounded runs.
func newProgressBar(w io.Writer, count int64) *progressbar.ProgressBar {
	return progressbar.NewOptions64(
		count,
		progressbar.OptionSetDescription("querying"),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetWriter(w),
	)
}
