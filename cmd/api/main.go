package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-kitchen-orders/internal/config"
	"github.com/ariefcatur/go-kitchen-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-kitchen-orders/internal/kafka"
	"github.com/ariefcatur/go-kitchen-orders/internal/menu"
	"github.com/ariefcatur/go-kitchen-orders/internal/metrics"
	"github.com/ariefcatur/go-kitchen-orders/internal/notify"
	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"github.com/ariefcatur/go-kitchen-orders/internal/postgres"
	"github.com/ariefcatur/go-kitchen-orders/internal/redisx"
	"github.com/ariefcatur/go-kitchen-orders/internal/relay"
	"github.com/ariefcatur/go-kitchen-orders/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, cfg.ServiceName, version)
	if err != nil {
		logger.Error("tracing init", "error", err)
		os.Exit(1)
	}
	m := metrics.New(cfg.ServiceName)

	// Store & catalog
	var (
		store   orders.Store
		catalog orders.Catalog
	)
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns))
		if err != nil {
			logger.Error("db connect", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store = &postgres.OrderStore{DB: db}
		catalog = &postgres.DishStore{DB: db}
	default:
		logger.Warn("using in-memory store; orders are lost on restart")
		store = orders.NewMemStore()
		catalog = menu.NewMemCatalog(menu.Seed()...)
	}

	// Redis
	var statusCache *redisx.StatusCache
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		catalog = &menu.CachedCatalog{Source: catalog, Redis: rdb, Logger: logger}
		statusCache = &redisx.StatusCache{Redis: rdb, Logger: logger}
	}

	hub := notify.NewHub(notify.HubConfig{
		SendTimeout: cfg.NotifySendTimeout,
		FanoutLimit: cfg.NotifyFanoutLimit,
		Observer:    m,
	}, logger)

	var notifiers orders.Notifiers
	if cfg.KafkaRelayGroup == "" {
		notifiers = append(notifiers, hub)
	}
	if statusCache != nil {
		notifiers = append(notifiers, statusCache)
	}

	// Kafka producer + relay
	var prod *kafkax.Producer
	relayDone := make(chan struct{})
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, logger)
		prod.Start()
		notifiers = append(notifiers, &kafkax.EventPublisher{Producer: prod, Service: cfg.ServiceName})
	}
	if cfg.KafkaRelayGroup != "" {
		group := relayGroup(cfg.KafkaRelayGroup)
		rl := &relay.Relay{Target: hub, Redis: rdb, ServiceName: group, Logger: logger}
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderEvents, 1, logger)
		go func() {
			defer close(relayDone)
			logger.Info("relay consumer started", "group", group, "topic", orders.TopicOrderEvents)
			if err := cons.Start(ctx, rl.Handle); err != nil {
				logger.Error("relay consumer exit", "error", err)
			}
		}()
	} else {
		close(relayDone)
	}

	svc := orders.NewService(store, catalog, notifiers, logger)
	svc.Metrics = m

	router := httpx.NewRouter(m.Middleware)
	oh := &httpx.OrdersHandler{Service: svc, Status: statusCache, Logger: logger}
	oh.Register(router)
	httpx.NewRealtimeHandler(hub, logger).Register(router)
	router.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, cfg.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP listening", "addr", cfg.HTTPAddr, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	hub.Close() // hijacked websocket connections are not closed by Shutdown
	cancel()    // stop relay consumer
	<-relayDone
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
	if err := shutdownTracing(ctx2); err != nil {
		logger.Error("tracing shutdown", "error", err)
	}
}

// relayGroup makes the consumer group unique per instance: every instance
// must see every event.
func relayGroup(prefix string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return prefix + "-" + host
}
