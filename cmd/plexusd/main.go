// Command plexusd is the composition-root binary for the Plexus graph
// engine: it wires configuration, the selected GraphStore backend, the
// engine, the ingest pipeline, and the library facade together, seeds any
// configured contexts, serves /healthz and /readyz if server.listen_addr is
// set, and then blocks until signaled to shut down.
//
// plexusd ships no adapters, enrichments, or LLM/embedding backends — per
// spec §1 those are external collaborators. A real deployment embeds this
// wiring in its own main and calls pipeline.Register with its own
// integrations before serving traffic; this binary demonstrates the
// wiring with an empty integration set.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nrgforge/plexus/internal/config"
	"github.com/nrgforge/plexus/internal/engine"
	"github.com/nrgforge/plexus/internal/facade"
	"github.com/nrgforge/plexus/internal/health"
	"github.com/nrgforge/plexus/internal/observe"
	"github.com/nrgforge/plexus/internal/outbound"
	"github.com/nrgforge/plexus/internal/pipeline"
	"github.com/nrgforge/plexus/pkg/graph"
	"github.com/nrgforge/plexus/pkg/graph/badgerstore"
	"github.com/nrgforge/plexus/pkg/graph/memstore"
	"github.com/nrgforge/plexus/pkg/graph/postgres"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "plexusd: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "plexusd: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "plexusd"})
	if err != nil {
		slog.Error("failed to initialise observability", "error", err)
		return 1
	}
	defer shutdownOTel(context.Background())

	store, closeStore, err := openStore(cfg.Store)
	if err != nil {
		slog.Error("failed to open graph store", "error", err)
		return 1
	}
	defer closeStore()

	eng := engine.New(store, engine.WithLogger(logger))
	if err := eng.LoadAll(ctx); err != nil {
		slog.Error("failed to load persisted contexts", "error", err)
		return 1
	}

	var pub *outbound.Publisher
	if cfg.Outbound.Enabled {
		pub, err = outbound.Connect(cfg.Outbound.URL, outbound.WithSubjectPrefix(cfg.Outbound.SubjectPrefix), outbound.WithLogger(logger))
		if err != nil {
			slog.Error("failed to connect outbound publisher", "error", err)
			return 1
		}
		defer pub.Close()
	}

	p := pipeline.New(eng)
	f := facade.New(eng, p, facade.WithOutbound(pub), facade.WithLogger(logger))
	if err := f.Hydrate(ctx); err != nil {
		slog.Error("failed to hydrate context name index", "error", err)
		return 1
	}

	if err := seedContexts(ctx, f, cfg.Contexts); err != nil {
		slog.Error("failed to seed configured contexts", "error", err)
		return 1
	}

	var httpServer *http.Server
	if cfg.Server.ListenAddr != "" {
		httpServer = startHealthServer(cfg.Server.ListenAddr, eng, logger)
	}

	slog.Info("plexusd ready",
		"store_backend", cfg.Store.Backend,
		"contexts", len(eng.ListContexts()),
		"outbound_enabled", cfg.Outbound.Enabled,
		"listen_addr", cfg.Server.ListenAddr,
	)

	<-ctx.Done()
	slog.Info("shutdown signal received, goodbye")
	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("health server shutdown error", "error", err)
		}
	}
	return 0
}

// startHealthServer serves /healthz and /readyz on addr in the background,
// wrapped in [observe.Middleware] so health checks get the same tracing,
// request-duration metrics, and correlation IDs as any other HTTP surface.
// Readiness reflects whether the engine's in-memory cache can still be
// listed — the only liveness signal every GraphStore backend supports
// uniformly through the engine's own API.
func startHealthServer(addr string, eng *engine.Engine, logger *slog.Logger) *http.Server {
	h := health.New(health.Checker{
		Name: "engine",
		Check: func(context.Context) error {
			eng.ListContexts()
			return nil
		},
	})
	mux := http.NewServeMux()
	h.Register(mux)
	srv := &http.Server{Addr: addr, Handler: observe.Middleware(observe.DefaultMetrics())(mux)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", "error", err)
		}
	}()
	return srv
}

// openStore constructs the GraphStore backend selected by cfg, along with
// a close function the caller should defer.
func openStore(cfg config.StoreConfig) (graph.GraphStore, func(), error) {
	switch cfg.Backend {
	case config.StoreBackendBadger:
		s, err := badgerstore.Open(cfg.BadgerDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger store at %q: %w", cfg.BadgerDir, err)
		}
		return s, func() { s.Close() }, nil
	case config.StoreBackendPostgres:
		s, err := postgres.NewStore(context.Background(), cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, func() { s.Close() }, nil
	default:
		s := memstore.New()
		return s, func() {}, nil
	}
}

// seedContexts ensures every configured context exists, creating it (with
// its configured tags recorded in metadata) if it is not already present.
func seedContexts(ctx context.Context, f *facade.Facade, seeds []config.ContextSeed) error {
	for _, seed := range seeds {
		if len(f.ContextList(seed.Name)) > 0 {
			continue
		}
		if _, err := f.ContextCreate(ctx, seed.Name); err != nil {
			return fmt.Errorf("seed context %q: %w", seed.Name, err)
		}
		if len(seed.Tags) > 0 {
			if err := f.ContextAddTags(ctx, seed.Name, seed.Tags); err != nil {
				return fmt.Errorf("seed context %q tags: %w", seed.Name, err)
			}
		}
	}
	return nil
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogLevelDebug:
		lvl = slog.LevelDebug
	case config.LogLevelWarn:
		lvl = slog.LevelWarn
	case config.LogLevelError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
