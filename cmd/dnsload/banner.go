// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/bassosimone/dnsload"
	"github.com/fatih/color"
)

const (
	bannerWidth  = 72
	bannerHeader = "dnsload: DNS A-record load generator"
)

var (
	bannerTitle = color.New(color.FgCyan, color.Bold)
	bannerText  = color.New(color.FgYellow)
	bannerValue = color.New(color.FgBlue, color.Bold)
	bannerRule  = color.New(color.FgMagenta)
)

// printBanner describes the run before it starts.
func printBanner(w io.Writer, cfg dnsload.Config, endpoint string) {
	rule := bannerRule.Sprint(strings.Repeat("-", bannerWidth))
	fmt.Fprintln(w, bannerTitle.Sprint(bannerHeader))
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, bannerText.Sprint("Only run this against nameservers whose owner gave you permission."))
	fmt.Fprintf(w, "%s %s %s\n", bannerText.Sprint("Nameserver:"), bannerValue.Sprint(endpoint), bannerText.Sprintf("(%s)", cfg.Protocol))
	if cfg.Randomized {
		fmt.Fprintf(w, "%s %s\n", bannerText.Sprint("Random subdomains of:"), bannerValue.Sprint(cfg.Domain))
	} else {
		fmt.Fprintf(w, "%s %s\n", bannerText.Sprint("Domain:"), bannerValue.Sprint(cfg.Domain))
	}
	queries := fmt.Sprint(cfg.Count)
	if cfg.Endless {
		queries = "until interrupted"
	}
	fmt.Fprintf(w, "%s %s %s %s %s %s\n",
		bannerText.Sprint("Queries:"), bannerValue.Sprint(queries),
		bannerText.Sprint("Workers:"), bannerValue.Sprint(cfg.Concurrency),
		bannerText.Sprint("Timeout:"), bannerValue.Sprint(cfg.Timeout))
	if cfg.Rate > 0 {
		fmt.Fprintf(w, "%s %s\n", bannerText.Sprint("Rate limit:"), bannerValue.Sprintf("%g queries/s", cfg.Rate))
	}
	fmt.Fprintln(w, rule)
}
