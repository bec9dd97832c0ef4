package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/udisondev/shopkeeper/internal/config"
	"github.com/udisondev/shopkeeper/internal/db"
	"github.com/udisondev/shopkeeper/internal/economy"
	"github.com/udisondev/shopkeeper/internal/notify"
	"github.com/udisondev/shopkeeper/internal/shop"
	"github.com/udisondev/shopkeeper/internal/trade"
	"github.com/udisondev/shopkeeper/internal/world"
)

const ConfigPath = "config/shopkeeper.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv(config.PathEnv); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadShopkeeper(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))
	slog.Info("shopkeeper starting",
		"config", cfgPath,
		"storage", cfg.Storage.Driver,
		"log_level", cfg.LogLevel)

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	managerCfg, err := cfg.ManagerConfig()
	if err != nil {
		return fmt.Errorf("building manager config: %w", err)
	}

	// Хост мира в памяти процесса; интеграция с реальным миром подменяет его.
	host := world.NewMemoryHost()
	manager := shop.NewManager(managerCfg, shop.Deps{
		Host:    host,
		Players: host,
		Ledger:  store.ledger,
		Sink:    notify.NewLogSink(slog.Default()),
		Metrics: trade.NewMetrics(reg),
	})
	svc := shop.NewService(manager, store.repo)

	restored, err := svc.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restoring shops: %w", err)
	}
	slog.Info("shop manager ready", "shops", restored)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := manager.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("shop manager: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("starting shop autosave", "interval", cfg.Storage.AutosaveInterval)
		if err := svc.RunAutosave(gctx, cfg.Storage.AutosaveInterval); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("shop autosave: %w", err)
		}
		return nil
	})

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsMux(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			slog.Info("starting metrics server", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	runErr := g.Wait()

	// Финальный сброс на новом контексте: исходный уже отменён.
	saveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := svc.SaveAll(saveCtx); err != nil {
		slog.Error("saving shops on shutdown", "err", err)
	}
	manager.Clear()

	if runErr != nil {
		return fmt.Errorf("server error: %w", runErr)
	}
	slog.Info("shopkeeper stopped")
	return nil
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// storage bundles the persistence backends selected by config.
type storage struct {
	repo   shop.Repository
	ledger economy.Ledger
	close  func()
}

func openStorage(ctx context.Context, cfg config.Shopkeeper) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		repo, err := db.OpenSQLite(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite storage: %w", err)
		}
		slog.Info("sqlite storage opened", "path", cfg.Storage.SQLitePath)
		// Для sqlite счета живут в памяти процесса
		return &storage{
			repo:   repo,
			ledger: economy.NewMemoryLedger(cfg.Economy.AutoCreateAccounts),
			close: func() {
				if err := repo.Close(); err != nil {
					slog.Error("closing sqlite", "err", err)
				}
			},
		}, nil

	default:
		dsn := cfg.Database.DSN()
		if err := db.RunMigrations(ctx, dsn); err != nil {
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database migrations applied")

		database, err := db.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		slog.Info("database connected")

		return &storage{
			repo:   db.NewShopRepository(database.Pool()),
			ledger: economy.NewPgLedger(database.Pool(), cfg.Economy.AutoCreateAccounts),
			close:  database.Close,
		}, nil
	}
}
