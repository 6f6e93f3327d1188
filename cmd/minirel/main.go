// Package main implements the minirel binary. It runs the interactive shell
// by default, or the HTTP and gRPC front ends with --mode serve.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/minirel/minirel/internal/app"
	"github.com/minirel/minirel/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

// flags holds command line overrides. Empty values leave the
// file/env configuration untouched.
type flags struct {
	configFile string
	envFile    string
	mode       string
	httpAddr   string
	grpcAddr   string
	staticDir  string
	noGRPC     bool
	noColor    bool
}

func main() {
	var (
		f           flags
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&f.configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&f.envFile, "env-file", ".env", "Path to a .env file with MINIREL_* variables")
	flag.StringVar(&f.mode, "mode", "", "Front end: shell or serve")
	flag.StringVar(&f.httpAddr, "http-addr", "", "HTTP listen address (serve mode)")
	flag.StringVar(&f.grpcAddr, "grpc-addr", "", "gRPC listen address (serve mode)")
	flag.StringVar(&f.staticDir, "static-dir", "", "Directory served at / (serve mode)")
	flag.BoolVar(&f.noGRPC, "no-grpc", false, "Disable the gRPC front end")
	flag.BoolVar(&f.noColor, "no-color", false, "Disable styled shell output")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "minirel - a minimal in-memory relational engine\n\n")
		fmt.Fprintf(os.Stderr, "Usage: minirel [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  minirel\n")
		fmt.Fprintf(os.Stderr, "  minirel --mode serve --http-addr :8000 --static-dir ./web\n")
		fmt.Fprintf(os.Stderr, "  minirel --config /etc/minirel/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  MINIREL_MODE            Front end (shell, serve)\n")
		fmt.Fprintf(os.Stderr, "  MINIREL_HTTP_ADDR       HTTP listen address\n")
		fmt.Fprintf(os.Stderr, "  MINIREL_GRPC_ADDR       gRPC listen address\n")
		fmt.Fprintf(os.Stderr, "  MINIREL_GRPC_ENABLED    Enable gRPC (true, false)\n")
		fmt.Fprintf(os.Stderr, "  MINIREL_HTTP_STATIC_DIR Directory served at /\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("minirel version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(f)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	if cfg.ShouldServe() {
		printBanner(cfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		log.Printf("minirel stopped with error: %v", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from file, .env, environment, and command
// line flags, in increasing order of priority.
func loadConfig(f flags) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if f.configFile != "" {
		cfg, err = config.LoadFromFile(f.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	if err := config.LoadDotEnv(f.envFile); err != nil {
		return nil, err
	}
	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if f.mode != "" {
		cfg.Mode = config.Mode(f.mode)
	}
	if f.httpAddr != "" {
		cfg.HTTP.Addr = f.httpAddr
	}
	if f.grpcAddr != "" {
		cfg.GRPC.Addr = f.grpcAddr
	}
	if f.staticDir != "" {
		cfg.HTTP.StaticDir = f.staticDir
	}
	if f.noGRPC {
		cfg.GRPC.Enabled = false
	}
	if f.noColor {
		cfg.Shell.Color = false
	}

	return cfg, nil
}

// printBanner prints the startup banner with configuration summary.
func printBanner(cfg *config.Config) {
	log.Printf("minirel %s (commit: %s)", version, commit)
	log.Printf("Configuration:")
	log.Printf("  Mode:       %s", cfg.Mode)
	log.Printf("  HTTP:       %s", cfg.HTTP.Addr)
	if cfg.HTTP.StaticDir != "" {
		log.Printf("  Static Dir: %s", cfg.HTTP.StaticDir)
	}
	if cfg.GRPC.Enabled {
		log.Printf("  gRPC:       %s", cfg.GRPC.Addr)
	}
	log.Printf("  Bootstrap:  users_table=%t", cfg.Bootstrap.UsersTable)
	log.Printf("  Stats:      window=%s", cfg.Stats.Window)
	log.Printf("")
}
