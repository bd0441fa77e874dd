package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimasrn/ar-collections/internal/config"
	gateway "github.com/nimasrn/ar-collections/internal/gateways"
	"github.com/nimasrn/ar-collections/internal/handlers"
	"github.com/nimasrn/ar-collections/internal/queue"
	"github.com/nimasrn/ar-collections/internal/repository"
	"github.com/nimasrn/ar-collections/internal/scheduler"
	"github.com/nimasrn/ar-collections/internal/services"
	xhttp "github.com/nimasrn/ar-collections/pkg/http"
	"github.com/nimasrn/ar-collections/pkg/logger"
	"github.com/nimasrn/ar-collections/pkg/pg"
	"github.com/nimasrn/ar-collections/pkg/prom"
	"github.com/nimasrn/ar-collections/pkg/redis"
	"github.com/nimasrn/ar-collections/pkg/storage"
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
	logger.Info("starting api", "version", version, "commit", commit, "date", date, "env", cfg.AppEnv)

	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Server.ReadTimeout = cfg.HttpServerReadTimeout
	s.Server.MaxRequestBodySize = cfg.HttpMaxBodySize
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.MetricsMiddleware)
	s.Use(xhttp.TimeoutMiddleware(cfg.HttpRequestTimeout))
	s.Use(xhttp.CompressMiddleware(6))
	s.Router = xhttp.CreateDefaultRouter()

	db, err := pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), cfg.AppEnv == "dev")
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{cfg.RedisAddr},
		ClientName: "api",
		DB:         cfg.RedisDatabase,
		Username:   cfg.RedisUsername,
		Password:   cfg.RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	emailQ, err := queue.NewQueue(redisAdap, queueConfig(cfg))
	if err != nil {
		logger.Error("failed creating queue", "error", err)
		return
	}

	erp, err := gateway.NewERPClient(&gateway.ERPConfig{
		BaseURL:  cfg.ERPBaseURL,
		Username: cfg.ERPUsername,
		Password: cfg.ERPPassword,
		Token:    cfg.ERPToken,
		Timeout:  cfg.ERPTimeout,
		PageSize: cfg.ERPPageSize,
		MaxConns: 16,
	})
	if err != nil {
		logger.Error("failed to create erp client", "error", err)
		return
	}

	var store services.ObjectStore
	if cfg.StorageEndpoint != "" || cfg.StorageAccessKey != "" {
		bucket, err := storage.NewBucket(context.Background(), storageConfig(cfg))
		if err != nil {
			logger.Error("failed to create attachment bucket", "error", err)
			return
		}
		store = bucket
	} else {
		logger.Warn("attachment storage is not configured, uploads are disabled")
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err = prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	// repositories
	activityRepo := repository.NewActivityRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	colorStatusRepo := repository.NewColorStatusRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	memoRepo := repository.NewMemoRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	emailRepo := repository.NewScheduledEmailRepository(db)
	syncRepo := repository.NewSyncRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	ruleRepo := repository.NewAutoTicketRuleRepository(db)

	// services
	activityService := services.NewActivityService(activityRepo)
	activity := handlers.NewRequestActivity(activityService)
	invoiceService := services.NewInvoiceService(invoiceRepo, colorStatusRepo, activity)
	customerService := services.NewCustomerService(customerRepo, activity)
	ticketService := services.NewTicketService(ticketRepo, invoiceRepo, profileRepo, activity)
	rules := services.NewCollectionRules(invoiceRepo, ticketRepo, ruleRepo)
	reminderService := services.NewReminderService(reminderRepo)
	memoService := services.NewMemoService(memoRepo, store, activity)
	profileService := services.NewProfileService(profileRepo, activity)
	emailService := services.NewEmailService(emailRepo, reminderRepo, profileRepo, emailQ, services.EmailConfig{
		DispatchBatch: cfg.EmailDispatchBatch,
		MaxAttempts:   cfg.QueueMaxRetries,
	})
	syncService := services.NewSyncService(erp, syncRepo, customerRepo, invoiceRepo, paymentRepo, redisAdap, services.SyncConfig{
		InitialSince: cfg.ERPInitialSince,
	})

	auth, err := handlers.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, profileService)
	if err != nil {
		logger.Error("failed to create authenticator", "error", err)
		return
	}

	// manual runs only, the worker owns the tickers
	jobs := scheduler.New(redisAdap)
	for _, job := range scheduler.DefaultJobs(intervals(cfg), scheduler.Dependencies{
		Rules:   rules,
		Sync:    syncService,
		Emails:  emailService,
		Cleaner: services.NewCleanupService(syncRepo, cleanupConfig(cfg)),
	}) {
		if err := jobs.Register(job); err != nil {
			logger.Error("failed to register job", "job", job.Name, "error", err)
			return
		}
	}

	// v1 handlers
	g := s.Router.Group("/api/v1")
	handlers.RegisterRoutes(g, handlers.API{
		Auth:      auth,
		Invoices:  invoiceService,
		Customers: customerService,
		Tickets:   ticketService,
		Rules:     rules,
		Reminders: reminderService,
		Memos:     memoService,
		Emails:    emailService,
		Profiles:  profileService,
		Activity:  activityService,
		Sync:      syncService,
		Jobs:      jobs,
		Health: map[string]handlers.HealthCheck{
			"postgres": db.Ping,
			"redis": func(ctx context.Context) error {
				return redisAdap.Client().Ping(ctx).Err()
			},
		},
		SyncTimeout: 30 * time.Minute,
	})

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(cfg.HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	logger.Info("shutting down api")
	s.Shutdown()
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

func storageConfig(cfg *config.Config) storage.Config {
	return storage.Config{
		Endpoint:     cfg.StorageEndpoint,
		Region:       cfg.StorageRegion,
		Bucket:       cfg.StorageBucket,
		AccessKey:    cfg.StorageAccessKey,
		SecretKey:    cfg.StorageSecretKey,
		UseSSL:       cfg.StorageUseSSL,
		UsePathStyle: cfg.StorageUsePathStyle,
		PresignTTL:   cfg.StoragePresignTTL,
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
