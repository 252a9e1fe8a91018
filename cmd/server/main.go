package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"order-pipeline/internal/bus"
	"order-pipeline/internal/config"
	"order-pipeline/internal/controllers/http"
	"order-pipeline/internal/dispatch"
	"order-pipeline/internal/infra"
	"order-pipeline/internal/infra/email"
	"order-pipeline/internal/infra/kafka"
	mmysql "order-pipeline/internal/infra/mysql"
	"order-pipeline/internal/infra/rabbitmq"
	"order-pipeline/internal/processors"
	"order-pipeline/internal/queue"
	mysqlrepo "order-pipeline/internal/repository/mysql"
	"order-pipeline/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("order pipeline stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	db, err := mmysql.NewMySQL(cfg.MySQL)
	if err != nil {
		return fmt.Errorf("db: connect: %w", err)
	}
	repo := mysqlrepo.NewOrderRepository(db)

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     50,
		MinIdleConns: 5,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}

	adminClient := infra.NewAdminClient(cfg.Admin.BaseURL, cfg.Admin.APIKey, cfg.Admin.Timeout, cfg.Admin.UploadTimeout)

	sender, err := newEmailSender(cfg.SMTP, logger)
	if err != nil {
		return err
	}

	jobs := queue.NewRedisQueue(redisClient, queue.RedisOptions{
		Prefix:        cfg.Queue.Prefix,
		Lease:         cfg.Queue.Lease,
		KeepCompleted: cfg.Queue.KeepCompleted,
		KeepDead:      cfg.Queue.KeepDead,
	})

	events := bus.NewEventBus(logger.Named("events"))
	commands, queries := bus.New("command"), bus.New("query")
	svc := services.NewOrderService(repo, adminClient, events, services.ApprovingPaymentProcessor{}, logger.Named("orders"))
	if err := services.Register(commands, queries, svc); err != nil {
		return err
	}
	if err := errors.Join(commands.Require(services.Commands()...), queries.Require(services.Queries()...)); err != nil {
		return err
	}

	dispatch.NewDispatcher(jobs, logger.Named("dispatch")).Subscribe(events)
	publisher, err := newRelayPublisher(cfg.Relay, logger)
	if err != nil {
		return err
	}
	if publisher != nil {
		defer publisher.Close()
		dispatch.NewRelay(publisher, cfg.Relay.Timeout, logger.Named("relay")).Subscribe(events)
	}

	registry := queue.NewRegistry()
	if err := processors.Register(registry, processors.Deps{
		OrderSync: adminClient,
		Inventory: adminClient,
		Products:  adminClient,
		Orders:    repo,
		Email:     sender,
		Logger:    logger,
	}); err != nil {
		return err
	}
	if err := registry.Require(dispatch.Routes()...); err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := queue.NewMetrics(promRegistry)

	concurrency := map[string]int{
		processors.QueueOrderSync:       cfg.Queue.OrderSyncWorkers,
		processors.QueueInventorySync:   cfg.Queue.InventorySyncWorkers,
		processors.QueueEmail:           cfg.Queue.EmailWorkers,
		processors.QueueProductCreation: cfg.Queue.ProductWorkers,
	}
	var workers []*queue.Worker
	for _, name := range registry.Queues() {
		w, err := queue.NewWorker(name, jobs, registry, queue.WorkerOptions{
			Concurrency:  concurrency[name],
			PollInterval: cfg.Queue.PollInterval,
		}, logger.Named("worker"), metrics)
		if err != nil {
			return err
		}
		workers = append(workers, w)
	}
	pool := queue.NewPool(workers...)

	handler := http.NewHandler(commands, queries, dispatch.NewProductIntake(jobs), jobs, registry.Queues(), promRegistry, logger.Named("http"))

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	handler.RegisterRoutes(r)

	srv := &nethttp.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pool.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("starting order pipeline", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("server run: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}

func newEmailSender(cfg config.SMTP, logger *zap.Logger) (email.Sender, error) {
	renderer, err := email.NewRenderer()
	if err != nil {
		return nil, err
	}
	if cfg.Host == "" {
		return email.NewLogSender(renderer, logger.Named("email")), nil
	}
	return email.NewSMTPSender(email.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
		Timeout:  cfg.Timeout,
	}, renderer), nil
}

func newRelayPublisher(cfg config.Relay, logger *zap.Logger) (infra.MessagePublisher, error) {
	switch cfg.Kind {
	case "amqp":
		p, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange, logger.Named("rabbitmq"))
		if err != nil {
			return nil, fmt.Errorf("failed to init publisher: %w", err)
		}
		return p, nil
	case "kafka":
		p, err := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.Timeout, logger.Named("kafka"))
		if err != nil {
			return nil, fmt.Errorf("failed to init kafka writer: %w", err)
		}
		return p, nil
	}
	return nil, nil
}
