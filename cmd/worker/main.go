package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimasrn/ar-collections/internal/config"
	gateway "github.com/nimasrn/ar-collections/internal/gateways"
	"github.com/nimasrn/ar-collections/internal/processor"
	"github.com/nimasrn/ar-collections/internal/queue"
	"github.com/nimasrn/ar-collections/internal/repository"
	"github.com/nimasrn/ar-collections/internal/scheduler"
	"github.com/nimasrn/ar-collections/internal/services"
	"github.com/nimasrn/ar-collections/pkg/logger"
	"github.com/nimasrn/ar-collections/pkg/pg"
	"github.com/nimasrn/ar-collections/pkg/prom"
	"github.com/nimasrn/ar-collections/pkg/redis"
	"golang.org/x/sync/errgroup"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	if err := logger.Configure(cfg.AppName, cfg.AppEnv, cfg.AppDebug); err != nil {
		logger.Error("failed to configure logger", "error", err)
		return
	}
	defer logger.Sync()
	logger.Info("starting worker", "version", version, "commit", commit, "date", date, "env", cfg.AppEnv)

	db, err := pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), cfg.AppEnv == "dev")
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{cfg.RedisAddr},
		ClientName: "worker",
		DB:         cfg.RedisDatabase,
		Username:   cfg.RedisUsername,
		Password:   cfg.RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err = prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	qConf := queueConfig(cfg)
	if qConf.ConsumerName == "" {
		qConf.ConsumerName = hostname
	}
	emailQ, err := queue.NewQueue(redisAdap, qConf)
	if err != nil {
		logger.Error("failed creating queue", "error", err)
		return
	}

	breaker := gateway.BreakerConfig{Threshold: 5, Timeout: 60 * time.Second}
	erp, err := gateway.NewERPClient(&gateway.ERPConfig{
		BaseURL:  cfg.ERPBaseURL,
		Username: cfg.ERPUsername,
		Password: cfg.ERPPassword,
		Token:    cfg.ERPToken,
		Timeout:  cfg.ERPTimeout,
		PageSize: cfg.ERPPageSize,
		MaxConns: 16,
		Breaker:  breaker,
	})
	if err != nil {
		logger.Error("failed to create erp client", "error", err)
		return
	}

	edge, err := gateway.NewEdgeClient(&gateway.EdgeConfig{
		BaseURL:       cfg.EdgeBaseURL,
		Timeout:       cfg.EdgeTimeout,
		EmailFunction: cfg.EdgeEmailFunction,
		EmailFrom:     cfg.EmailFrom,
		MaxConns:      cfg.WorkerConcurrency * 4,
		Breaker:       breaker,
	}, repository.NewFunctionCredentialRepository(db))
	if err != nil {
		logger.Error("failed to create edge client", "error", err)
		return
	}

	customerRepo := repository.NewCustomerRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	emailRepo := repository.NewScheduledEmailRepository(db)
	syncRepo := repository.NewSyncRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	ruleRepo := repository.NewAutoTicketRuleRepository(db)

	emailService := services.NewEmailService(emailRepo, reminderRepo, profileRepo, emailQ, services.EmailConfig{
		DispatchBatch: cfg.EmailDispatchBatch,
		MaxAttempts:   cfg.QueueMaxRetries,
	})
	syncService := services.NewSyncService(erp, syncRepo, customerRepo, invoiceRepo, paymentRepo, redisAdap, services.SyncConfig{
		InitialSince: cfg.ERPInitialSince,
	})

	sched := scheduler.New(redisAdap)
	for _, job := range scheduler.DefaultJobs(intervals(cfg), scheduler.Dependencies{
		Rules:         services.NewCollectionRules(invoiceRepo, ticketRepo, ruleRepo),
		Sync:          syncService,
		Emails:        emailService,
		Cleaner:       services.NewCleanupService(syncRepo, cleanupConfig(cfg)),
		Edge:          edge,
		EdgeFunctions: scheduler.ParseFunctions(cfg.EdgeCallbackFunctions),
	}) {
		if err := sched.Register(job); err != nil {
			logger.Error("failed to register job", "job", job.Name, "error", err)
			return
		}
	}

	idempotencyService := processor.NewIdempotencyService(redisAdap, processor.DefaultIdempotencyConfig())
	service, err := processor.NewProcessorService(redisAdap,
		processor.NewEmailProcessor(edge, emailRepo, idempotencyService),
		processor.ProcessorConfig{
			Queue:     qConf,
			Consumers: 1,
			Workers:   cfg.WorkerConcurrency,
		})
	if err != nil {
		logger.Error("failed to create the processor", "error", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := prom.ListenAndServer(cfg.MetricsAddr, cfg.MetricsEndpoint); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		return service.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", "error", err)
		return
	}
	logger.Info("worker stopped")
}

func queueConfig(cfg *config.Config) queue.QueueConfig {
	return queue.QueueConfig{
		Name:              cfg.QueueName,
		ConsumerGroup:     cfg.QueueConsumerGroup,
		ConsumerName:      cfg.QueueConsumerName,
		MaxRetries:        cfg.QueueMaxRetries,
		VisibilityTimeout: cfg.QueueVisibilityTimeout,
		PollInterval:      cfg.QueuePollInterval,
		BatchSize:         cfg.QueueBatchSize,
		MaxLen:            cfg.QueueMaxLen,
		EnableDLQ:         cfg.QueueEnableDLQ,
	}
}

func cleanupConfig(cfg *config.Config) services.CleanupConfig {
	return services.CleanupConfig{
		Retention:  cfg.CleanupRetention,
		BatchSize:  cfg.CleanupBatchSize,
		MaxBatches: cfg.CleanupMaxBatches,
	}
}

func intervals(cfg *config.Config) scheduler.Intervals {
	return scheduler.Intervals{
		AutoRed:        cfg.ScheduleAutoRed,
		AutoTickets:    cfg.ScheduleAutoTickets,
		BrokenPromises: cfg.ScheduleBrokenPromises,
		ERPSync:        cfg.ScheduleERPSync,
		DispatchEmails: cfg.ScheduleDispatchEmails,
		DueReminders:   cfg.ScheduleDueReminders,
		Cleanup:        cfg.ScheduleCleanup,
		EdgeCallbacks:  cfg.ScheduleEdgeCallbacks,
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
