package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/blurguard/internal/infrastructure/config"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/logging"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/server"
	"github.com/GriffinCanCode/blurguard/internal/scanner"
)

const usage = `Usage: blurguard scan -url <page> [-threshold f] [-config file.yaml] [-html] [-timeout d] [-v]`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "blurguard:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] != "scan" {
		fmt.Fprintln(stderr, usage)
		return errors.New("expected the scan command")
	}

	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	pageURL := fs.String("url", "", "Page to scan")
	threshold := fs.Float64("threshold", -1, "Detection threshold in [0,1] (default from config)")
	configPath := fs.String("config", "", "YAML configuration file")
	withHTML := fs.Bool("html", false, "Include the annotated document in the report")
	timeout := fs.Duration("timeout", time.Minute, "Overall scan timeout")
	verbose := fs.Bool("v", false, "Log to stderr")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *pageURL == "" {
		fmt.Fprintln(stderr, usage)
		return errors.New("-url is required")
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		return err
	}

	logger := logging.NewNop()
	if *verbose {
		logger = logging.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()

	sc, host, err := server.Build(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer host.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	opts := scanner.Options{IncludeHTML: *withHTML}
	if *threshold >= 0 {
		opts.Threshold = threshold
	}

	report, err := sc.Scan(ctx, *pageURL, opts)
	if err != nil {
		return err
	}
	out, err := report.JSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(out))
	return err
}
