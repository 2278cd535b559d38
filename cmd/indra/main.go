// Package main is the entry point for the indra CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/relicta-tech/indra/internal/cli"
)

// Version information set by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// shutdownTimeout is the maximum time to wait for graceful shutdown.
const shutdownTimeout = 30 * time.Second

func main() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	cli.SetVersionInfo(version, commit, date)
	os.Exit(run(context.Background(), sigChan, cli.ExecuteContext, cli.Cleanup, os.Stderr, os.Exit))
}

// run executes the CLI and returns the process exit code. The first signal
// cancels the context; a second one, or the shutdown timeout, calls exit.
func run(parent context.Context, sigChan <-chan os.Signal, execute func(context.Context) error, cleanup func(), stderr io.Writer, exit func(int)) int {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	done := make(chan struct{})
	var wg sync.WaitGroup

	if sigChan != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()

			var sig os.Signal
			select {
			case sig = <-sigChan:
			case <-done:
				return
			}
			fmt.Fprintf(stderr, "\nReceived signal %v, initiating graceful shutdown...\n", sig)
			cancel()

			timer := time.NewTimer(shutdownTimeout)
			defer timer.Stop()

			// a second signal already queued wins over completion
			select {
			case sig = <-sigChan:
				fmt.Fprintf(stderr, "\nReceived second signal %v, forcing exit\n", sig)
				exit(1)
				return
			default:
			}

			select {
			case <-done:
			case <-timer.C:
				fmt.Fprintf(stderr, "\nShutdown timeout (%v) exceeded, forcing exit\n", shutdownTimeout)
				exit(1)
			case sig = <-sigChan:
				fmt.Fprintf(stderr, "\nReceived second signal %v, forcing exit\n", sig)
				exit(1)
			}
		}()
	}

	exitCode := 0
	if err := execute(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(stderr, "Operation canceled")
			exitCode = 130
		} else {
			// SilenceErrors is set on the root command
			fmt.Fprintf(stderr, "Error: %v\n", err)
			exitCode = 1
		}
	}

	close(done)
	wg.Wait()
	cleanup()
	return exitCode
}
