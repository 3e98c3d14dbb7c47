// Command dapbroker is the persistent, headless debug broker: it binds the
// local rendezvous endpoint, serves the IPC command vocabulary against at
// most one live debug session, and exits on idle timeout, shutdown command,
// or signal.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/orizon-lang/dap-broker/internal/adapterconfig"
	"github.com/orizon-lang/dap-broker/internal/broker"
	"github.com/orizon-lang/dap-broker/internal/cli"
)

func main() {
	var (
		appName     string
		configPath  string
		idleTimeout time.Duration
		verbose     bool
		showVersion bool
		jsonVersion bool
	)

	flag.StringVar(&appName, "app", "dapbroker", "rendezvous namespace; determines the socket/pipe path")
	flag.StringVar(&configPath, "config", "", "path to a JSON adapter profile table; hot-reloaded on write")
	flag.DurationVar(&idleTimeout, "idle-timeout", 10*time.Minute, "exit after this long with no active session and no client (0 disables)")
	flag.BoolVar(&verbose, "verbose", false, "log accept/drain/idle activity")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.BoolVar(&jsonVersion, "json", false, "with --version, print as JSON")
	flag.Parse()

	if showVersion {
		cli.PrintVersion("dapbroker", jsonVersion)

		return
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	if !verbose {
		logger.SetOutput(io.Discard)
	}

	table := adapterconfig.NewTable()

	if configPath != "" {
		if err := table.LoadFile(configPath); err != nil {
			cli.ExitWithError("loading adapter config %s: %v", configPath, err)
		}

		watcher, err := adapterconfig.NewWatcher(table, configPath, logger)
		if err != nil {
			cli.ExitWithError("watching adapter config %s: %v", configPath, err)
		}

		defer watcher.Close()
	}

	cfg := broker.DefaultConfig()
	cfg.AppName = appName
	cfg.IdleTimeout = idleTimeout

	b := broker.New(cfg, table, logger)

	if err := b.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "dapbroker: %v\n", err)
		os.Exit(1)
	}
}
