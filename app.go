package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	appInventory "github.com/Zhima-Mochi/storefront/internal/application/inventory"
	appOrder "github.com/Zhima-Mochi/storefront/internal/application/order"
	appPayment "github.com/Zhima-Mochi/storefront/internal/application/payment"
	appUser "github.com/Zhima-Mochi/storefront/internal/application/user"
	"github.com/Zhima-Mochi/storefront/internal/config"
	domainInventory "github.com/Zhima-Mochi/storefront/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/storefront/internal/domain/outbox"
	domainUser "github.com/Zhima-Mochi/storefront/internal/domain/user"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/cache"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/docstore"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/docstore/memstore"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/docstore/pgstore"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/docstore/redisstore"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/gateway"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/id"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/messaging/kafka"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/messaging/rabbitmq"
	infraobs "github.com/Zhima-Mochi/storefront/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/storefront/internal/observability"
	"github.com/Zhima-Mochi/storefront/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/storefront/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/storefront/internal/presentation/worker"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// stores holds the four logical tables of the configured backend.
type stores struct {
	orders   docstore.Table
	payments docstore.Table
	products docstore.Table
	users    docstore.Table

	redis   *redis.Client
	closers []func() error
}

func (s *stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

func newBaseLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.NewLogger(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	t := cfg.Tables
	switch cfg.Store.Backend {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Store.RedisAddr, err)
		}
		p := cfg.Store.RedisKeyPrefix
		return &stores{
			orders:   redisstore.New(client, p, t.Orders),
			payments: redisstore.New(client, p, t.Payments),
			products: redisstore.New(client, p, t.Products),
			users:    redisstore.New(client, p, t.Users),
			redis:    client,
			closers:  []func() error{client.Close},
		}, nil

	case config.StorePostgres:
		db, err := openPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := pgstore.Migrate(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		s := &stores{closers: []func() error{db.Close}}
		for _, target := range []struct {
			dst  *docstore.Table
			name string
		}{
			{&s.orders, t.Orders},
			{&s.payments, t.Payments},
			{&s.products, t.Products},
			{&s.users, t.Users},
		} {
			table, err := pgstore.New(db, target.name)
			if err == nil {
				err = table.Ensure(ctx)
			}
			if err != nil {
				_ = db.Close()
				return nil, err
			}
			*target.dst = table
		}
		return s, nil

	default:
		return &stores{
			orders:   memstore.New(t.Orders),
			payments: memstore.New(t.Payments),
			products: memstore.New(t.Products),
			users:    memstore.New(t.Users),
		}, nil
	}
}

func openPostgres(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.Store.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}

func openSink(cfg config.Config) (domoutbox.Sink, error) {
	switch cfg.Broker {
	case config.BrokerRabbitMQ:
		return rabbitmq.Dial(cfg.RabbitMQURL)
	case config.BrokerKafka:
		return kafka.NewSink(cfg.KafkaBrokers), nil
	default:
		return nil, nil
	}
}

// application is the wired object graph of the serve command.
type application struct {
	handler http.Handler
	bus     *outbox.Bus
	sink    domoutbox.Sink
}

func buildApplication(cfg config.Config, zl *zap.Logger, st *stores) (*application, error) {
	logger := zaplogger.New(zl)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := prometrics.New("", "", registry, observability.Catalog()...)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	tel := infraobs.New(oteltrace.New(cfg.ServiceName), logger, metrics)

	policy, err := domainInventory.ParseFloorPolicy(cfg.StockFloorPolicy)
	if err != nil {
		return nil, err
	}

	orderRepo := docstore.NewOrderRepository(st.orders)
	paymentRepo := docstore.NewPaymentRepository(st.payments)
	productRepo := docstore.NewProductRepository(st.products)
	var userRepo domainUser.Repository = docstore.NewUserRepository(st.users)
	if st.redis != nil && cfg.UserCacheTTL > 0 {
		userRepo = cache.NewUserRepository(userRepo, st.redis, cfg.Store.RedisKeyPrefix, cfg.UserCacheTTL, logger)
	}

	bus := outbox.NewBus(logger, outbox.WithContextDecorator(workerpresentation.EventDecorator(logger)))

	gw := gateway.New(gateway.Config{
		BaseURL:      cfg.Gateway.BaseURL,
		PublicKey:    cfg.Gateway.PublicKey,
		PrivateKey:   cfg.Gateway.PrivateKey,
		IntegrityKey: cfg.Gateway.IntegrityKey,
		Currency:     cfg.Gateway.Currency,
		Timeout:      cfg.Gateway.Timeout,
	}, tel)
	idGenerator := id.NewUUIDGenerator()

	submitPayment := appPayment.NewSubmitPaymentUseCase(gw, idGenerator, appPayment.Config{
		MinorUnitFactor: cfg.Gateway.MinorUnitFactor,
		PollInterval:    cfg.Payment.PollInterval,
		PollTimeout:     cfg.Payment.PollTimeout,
		MaxPollAttempts: cfg.Payment.PollMaxAttempts,
	}, tel)
	adjustStock := appInventory.NewAdjustStockUseCase(productRepo, policy, bus, tel)
	createOrder := appOrder.NewCreateOrderUseCase(orderRepo, paymentRepo, submitPayment, adjustStock, idGenerator, bus, tel)

	sink, err := openSink(cfg)
	if err != nil {
		return nil, fmt.Errorf("broker %s: %w", cfg.Broker, err)
	}
	appOrder.NewWorker(bus, sink, cfg.OrderEventsTopic, tel).Start()
	appInventory.NewWorker(bus, adjustStock, appInventory.WorkerConfig{
		RetryEnabled: cfg.StockRetryEnabled,
		Sink:         sink,
		Topic:        cfg.StockEventsTopic,
	}, tel).Start()

	handler := httppresentation.NewHandler(httppresentation.Services{
		Orders:   appOrder.NewService(orderRepo, createOrder),
		Payments: appPayment.NewService(paymentRepo, submitPayment, gw, logger),
		Products: appInventory.NewService(productRepo),
		Stock:    adjustStock,
		Users:    appUser.NewService(userRepo),
	}, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}), tel)

	return &application{handler: handler.Router(), bus: bus, sink: sink}, nil
}
