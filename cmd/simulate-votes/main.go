package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/liusai0820/smartscore/internal/simvotes"
	"github.com/liusai0820/smartscore/pkg/logger"
)

// Default configuration constants.
const (
	defaultBaseURL  = "http://localhost:8080"
	defaultPasscode = "1234"
	defaultWorkers  = 8
	defaultTimeout  = 10 * time.Second
	runTimeout      = 2 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", defaultBaseURL, "Base URL of the service")
		passcode = flag.String("passcode", defaultPasscode, "Passcode shared by the simulated reviewers")
		workers  = flag.Int("workers", defaultWorkers, "Number of concurrent reviewers")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose  = flag.Bool("verbose", false, "Enable debug logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simvotes.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	res, err := simvotes.Run(ctx, &simvotes.Config{
		BaseURL:  *baseURL,
		Passcode: *passcode,
		Workers:  *workers,
		Timeout:  *timeout,
		Verbose:  *verbose,
	})
	if err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		os.Exit(1)
	}
	if res.Failed > 0 {
		os.Exit(2)
	}
}
