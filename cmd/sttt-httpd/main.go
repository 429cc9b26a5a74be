package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/nczempin/httpd-go-uring/config"
	"github.com/nczempin/httpd-go-uring/logging"
	"github.com/nczempin/httpd-go-uring/server"
)

const version = "0.3.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sttt-httpd", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath  = fs.String("config", "", "path to JSON config file")
		port        = fs.Int("port", 0, "TCP port to listen on")
		host        = fs.String("host", "", "address to bind")
		webRoot     = fs.String("webroot", "", "directory served as /")
		socket      = fs.String("socket", "", "serve on this unix socket instead of TCP")
		verbose     = fs.Bool("v", false, "log requests with their headers")
		transport   = fs.String("transport", "", "socket I/O: net or uring")
		storageMode = fs.String("storage", "", "file reads: os or uring")
		logFormat   = fs.String("log-format", "", "console or json")
		showVersion = fs.Bool("version", false, "print version and exit")
	)

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintf(stdout, "sttt-httpd version %s\n", version)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return 1
	}

	// Flags override file and environment only when given
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})
	if setFlags["port"] {
		cfg.Port = *port
	}
	if setFlags["host"] {
		cfg.Host = *host
	}
	if setFlags["webroot"] {
		cfg.WebRoot = *webRoot
	}
	if setFlags["socket"] {
		cfg.Socket = *socket
	}
	if setFlags["v"] {
		cfg.Verbose = *verbose
	}
	if setFlags["transport"] {
		cfg.Transport = *transport
	}
	if setFlags["storage"] {
		cfg.Storage = *storageMode
	}
	if setFlags["log-format"] {
		cfg.LogFormat = *logFormat
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return 1
	}

	sink := logging.New(stderr, logging.Format(cfg.LogFormat), cfg.Verbose)
	log := sink.Logger()

	srv, err := server.New(cfg, server.Options{Sink: sink})
	if err != nil {
		log.Error().Err(err).Msg("failed to create server")
		return 1
	}

	addr := cfg.Address()
	if cfg.Socket != "" {
		addr = cfg.Socket
	}
	log.Info().
		Str("addr", addr).
		Str("web_root", cfg.WebRoot).
		Str("transport", cfg.Transport).
		Str("storage", cfg.Storage).
		Msg("starting")

	// Cancelling ctx closes the listener and every session
	err = srv.ListenAndServe(ctx)
	srv.Shutdown()

	if err != nil {
		log.Error().Err(err).Msg("server stopped")
		return 1
	}
	return 0
}
