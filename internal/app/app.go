// Package app provides the application lifecycle for minirel: it builds the
// engine and runs either the interactive shell or the network front ends.
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	grpcapi "github.com/minirel/minirel/internal/api/grpc"
	httpapi "github.com/minirel/minirel/internal/api/http"
	"github.com/minirel/minirel/internal/config"
	"github.com/minirel/minirel/internal/engine"
	"github.com/minirel/minirel/internal/observability"
	"github.com/minirel/minirel/internal/server"
	"github.com/minirel/minirel/internal/shell"
)

// App owns one engine and the front ends driving it.
type App struct {
	cfg *config.Config

	engine     *engine.Engine
	stats      *observability.StatementStats
	serializer *server.Serializer
	shutdown   *server.ShutdownManager

	httpServer   *http.Server
	httpListener net.Listener
	grpcServer   *grpc.Server
	grpcListener net.Listener

	mu        sync.Mutex
	listening bool
}

// New creates a new App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	stats := observability.NewStatementStats(cfg.Stats.Window)
	eng := engine.New(engine.WithStats(stats))

	return &App{
		cfg:        cfg,
		engine:     eng,
		stats:      stats,
		serializer: server.NewSerializer(eng),
		shutdown:   server.NewShutdownManager(cfg.ShutdownTimeout),
	}, nil
}

// Engine returns the engine. Callers other than the shell must go through
// the serializer while servers are running.
func (a *App) Engine() *engine.Engine { return a.engine }

// Serializer returns the engine serializer shared by the network front ends.
func (a *App) Serializer() *server.Serializer { return a.serializer }

// Run runs the configured mode until ctx is cancelled or the front end ends.
func (a *App) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	if a.cfg.ShouldServe() {
		return a.Serve(ctx)
	}
	return a.RunShell(ctx, in, out)
}

// RunShell runs the interactive shell directly against the engine.
func (a *App) RunShell(ctx context.Context, in io.Reader, out io.Writer) error {
	sh := shell.New(a.engine, in, out,
		shell.WithPrompt(a.cfg.Shell.Prompt),
		shell.WithColor(a.cfg.Shell.Color),
	)
	return sh.Run(ctx)
}

// Listen binds the HTTP and, if enabled, gRPC listeners. Serve calls it
// when it has not been called yet.
func (a *App) Listen() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listening {
		return nil
	}

	httpLis, err := net.Listen("tcp", a.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on HTTP address: %w", err)
	}
	a.httpListener = httpLis

	if a.cfg.GRPC.Enabled {
		grpcLis, err := net.Listen("tcp", a.cfg.GRPC.Addr)
		if err != nil {
			httpLis.Close()
			return fmt.Errorf("failed to listen on gRPC address: %w", err)
		}
		a.grpcListener = grpcLis
	}

	a.listening = true
	return nil
}

// HTTPAddr returns the bound HTTP address, or "" before Listen.
func (a *App) HTTPAddr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.httpListener == nil {
		return ""
	}
	return a.httpListener.Addr().String()
}

// GRPCAddr returns the bound gRPC address, or "" when gRPC is not listening.
func (a *App) GRPCAddr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.grpcListener == nil {
		return ""
	}
	return a.grpcListener.Addr().String()
}

// Serve runs the HTTP and gRPC servers plus the stats pruner until ctx is
// cancelled or a server fails, then shuts everything down gracefully.
func (a *App) Serve(ctx context.Context) error {
	if a.cfg.Bootstrap.UsersTable {
		if err := httpapi.BootstrapUsers(ctx, a.serializer); err != nil {
			return fmt.Errorf("failed to bootstrap users table: %w", err)
		}
		log.Printf("Bootstrap complete: table=%s", httpapi.UsersTable)
	}

	if err := a.Listen(); err != nil {
		return err
	}
	a.buildServers()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("HTTP server listening: addr=%s static_dir=%q", a.httpListener.Addr(), a.cfg.HTTP.StaticDir)
		if err := a.httpServer.Serve(a.httpListener); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	if a.grpcServer != nil {
		g.Go(func() error {
			log.Printf("gRPC server listening: addr=%s service=%s", a.grpcListener.Addr(), grpcapi.ServiceName)
			if err := a.grpcServer.Serve(a.grpcListener); err != nil {
				return fmt.Errorf("gRPC server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		a.pruneStats(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		reason := "context cancelled"
		if cause := context.Cause(gctx); cause != nil {
			reason = cause.Error()
		}
		if err := a.shutdown.Shutdown(context.Background(), reason); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
		return nil
	})

	return g.Wait()
}

func (a *App) buildServers() {
	a.httpServer = &http.Server{
		Handler: httpapi.NewRouter(httpapi.RouterConfig{
			Serializer: a.serializer,
			Stats:      a.stats,
			Shutdown:   a.shutdown,
			StaticDir:  a.cfg.HTTP.StaticDir,
		}),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}
	a.shutdown.RegisterCloser(server.CloserFunc(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	}))

	if a.grpcListener != nil {
		a.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(
			grpcapi.RequestIDInterceptor,
			server.UnaryShutdownInterceptor(a.shutdown),
		))
		grpcapi.Register(a.grpcServer, grpcapi.NewServer(a.serializer))
		a.shutdown.RegisterCloser(server.CloserFunc(func() error {
			a.grpcServer.GracefulStop()
			return nil
		}))
	}
}

// pruneStats drops idle predicate statistics once per stats window.
func (a *App) pruneStats(ctx context.Context) {
	ticker := time.NewTicker(a.stats.Window())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.stats.Prune()
		}
	}
}
