// SPDX-License-Identifier: GPL-3.0-or-later

// Command dnsload sends DNS A queries to a nameserver for authorized
// load and resilience testing.
package main

import (
	"context"
	"os"

	"github.com/apex/log"
	"github.com/bassosimone/dnsload/internal/logcli"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		logger := &log.Logger{Handler: logcli.New(os.Stderr), Level: log.InfoLevel}
		logger.WithError(err).Error("dnsload failed")
		os.Exit(1)
	}
}
