package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zhima-Mochi/storefront/internal/config"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/discovery"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/docstore/pgstore"
	"github.com/Zhima-Mochi/storefront/internal/pkg/logging"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	app := &cli.App{
		Name:   "storefront",
		Usage:  "storefront checkout service",
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and event workers",
				Action: runServe,
			},
			{
				Name:   "migrate",
				Usage:  "apply the PostgreSQL schema migrations",
				Action: runMigrate,
			},
			{
				Name:  "seed",
				Usage: "load products and users from a JSON file into the configured store",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, EnvVars: []string{"SEED_FILE"}, Required: true},
				},
				Action: runSeed,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	baseLogger, err := newBaseLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			systemLogger.Warn("store_close_error", zap.Error(err))
		}
	}()

	if cfg.SeedFile != "" {
		products, users, err := seedFromFile(ctx, st, cfg.SeedFile)
		if err != nil {
			return err
		}
		systemLogger.Info("store_seeded",
			zap.String("file", cfg.SeedFile),
			zap.Int("products", products),
			zap.Int("users", users),
		)
	}

	app, err := buildApplication(cfg, baseLogger, st)
	if err != nil {
		return err
	}
	app.bus.Start(ctx)

	var registrar *discovery.Registrar
	serviceID := cfg.ServiceName + "-" + uuid.NewString()
	if cfg.ConsulAddr != "" {
		registrar, err = discovery.NewRegistrar(cfg.ConsulAddr)
		if err == nil {
			err = registrar.Register(discovery.ServiceConfig{
				Name:    cfg.ServiceName,
				ID:      serviceID,
				BaseURL: cfg.BackendBaseURL,
				Tags:    []string{cfg.Env},
			})
		}
		if err != nil {
			systemLogger.Warn("consul_register_failed", zap.Error(err))
			registrar = nil
		}
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.String("store", cfg.Store.Backend),
			zap.String("broker", cfg.Broker),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			systemLogger.Error("http_server_shutdown_error", zap.Error(err))
			errs = append(errs, err)
		} else {
			systemLogger.Info("http_server_stopped")
		}
		if err := app.bus.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("event bus: %w", err))
		}
		if app.sink != nil {
			if err := app.sink.Close(); err != nil {
				errs = append(errs, fmt.Errorf("broker: %w", err))
			}
		}
		if registrar != nil {
			if err := registrar.Deregister(serviceID); err != nil {
				systemLogger.Warn("consul_deregister_failed", zap.Error(err))
			}
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}

func runMigrate(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := openPostgres(c.Context, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := pgstore.Migrate(db.DB); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "migrations applied")
	return nil
}

func runSeed(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := checkSeedBackend(cfg); err != nil {
		return err
	}
	st, err := openStores(c.Context, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	products, users, err := seedFromFile(c.Context, st, c.String("file"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "seeded %d products and %d users into %s store\n", products, users, cfg.Store.Backend)
	return nil
}
