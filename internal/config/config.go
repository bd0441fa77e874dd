package config

import (
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/ar-collections/pkg/logger"
	"github.com/nimasrn/ar-collections/pkg/pg"
	"github.com/pkg/errors"
)

var config *Config

// Config holds every setting of the api, worker and cli binaries. Nothing
// else in the module reads the environment directly.
type Config struct {
	AppEnv   string `env:"APP_ENV,default=dev"`
	AppName  string `env:"APP_NAME,default=ar_collections"`
	AppDebug bool   `env:"APP_DEBUG,default=false"`

	HttpListenAddr        string        `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HttpServerReadTimeout time.Duration `env:"HTTP_SERVER_READ_TIMEOUT,default=10s"`
	HttpRequestTimeout    time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=15s"`
	HttpMaxBodySize       int           `env:"HTTP_MAX_BODY_SIZE,default=12582912"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT,default=5432"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT,default=5432"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`
	PostgresSSLMode       string `env:"POSTGRES_SSLMODE,default=disable"`

	RedisAddr               string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE,default=0"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX,default=arc:"`

	PromNamespace   string `env:"PROM_NAMESPACE,default=ar_collections"`
	MetricsAddr     string `env:"METRICS_ADDR,default=:9100"`
	MetricsEndpoint string `env:"METRICS_ENDPOINT,default=/metrics"`

	QueueName              string        `env:"QUEUE_NAME,default=emails"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP,default=email-workers"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES,default=3"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT,default=2m"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL,default=1s"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE,default=20"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN,default=100000"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ,default=true"`
	WorkerConcurrency      int           `env:"WORKER_CONCURRENCY,default=4"`

	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER"`

	ERPBaseURL      string        `env:"ERP_BASE_URL"`
	ERPUsername     string        `env:"ERP_USERNAME"`
	ERPPassword     string        `env:"ERP_PASSWORD"`
	ERPToken        string        `env:"ERP_TOKEN"`
	ERPTimeout      time.Duration `env:"ERP_TIMEOUT,default=30s"`
	ERPPageSize     int           `env:"ERP_PAGE_SIZE,default=500"`
	ERPInitialSince time.Duration `env:"ERP_INITIAL_SINCE,default=8760h"`

	EdgeBaseURL       string        `env:"EDGE_BASE_URL"`
	EdgeTimeout       time.Duration `env:"EDGE_TIMEOUT,default=15s"`
	EdgeEmailFunction string        `env:"EDGE_EMAIL_FUNCTION,default=send-email"`
	// comma separated list of functions invoked by the callback job
	EdgeCallbackFunctions string `env:"EDGE_CALLBACK_FUNCTIONS"`

	StorageEndpoint     string        `env:"STORAGE_ENDPOINT"`
	StorageRegion       string        `env:"STORAGE_REGION,default=us-east-1"`
	StorageBucket       string        `env:"STORAGE_BUCKET,default=memo-attachments"`
	StorageAccessKey    string        `env:"STORAGE_ACCESS_KEY"`
	StorageSecretKey    string        `env:"STORAGE_SECRET_KEY"`
	StorageUseSSL       bool          `env:"STORAGE_USE_SSL,default=false"`
	StorageUsePathStyle bool          `env:"STORAGE_USE_PATH_STYLE,default=true"`
	StoragePresignTTL   time.Duration `env:"STORAGE_PRESIGN_TTL,default=15m"`

	ScheduleAutoRed        time.Duration `env:"SCHEDULE_AUTO_RED,default=1h"`
	ScheduleAutoTickets    time.Duration `env:"SCHEDULE_AUTO_TICKETS,default=1h"`
	ScheduleBrokenPromises time.Duration `env:"SCHEDULE_BROKEN_PROMISES,default=30m"`
	ScheduleERPSync        time.Duration `env:"SCHEDULE_ERP_SYNC,default=15m"`
	ScheduleDispatchEmails time.Duration `env:"SCHEDULE_DISPATCH_EMAILS,default=1m"`
	ScheduleDueReminders   time.Duration `env:"SCHEDULE_DUE_REMINDERS,default=5m"`
	ScheduleCleanup        time.Duration `env:"SCHEDULE_CLEANUP,default=24h"`
	ScheduleEdgeCallbacks  time.Duration `env:"SCHEDULE_EDGE_CALLBACKS,default=1h"`

	CleanupRetention  time.Duration `env:"CLEANUP_RETENTION,default=720h"`
	CleanupBatchSize  int           `env:"CLEANUP_BATCH_SIZE,default=1000"`
	CleanupMaxBatches int           `env:"CLEANUP_MAX_BATCHES,default=5"`

	EmailDispatchBatch int    `env:"EMAIL_DISPATCH_BATCH,default=100"`
	EmailFrom          string `env:"EMAIL_FROM"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	if _, err := env.UnmarshalFromEnviron(c); err != nil {
		return errors.Wrap(err, "failed to map env variables to configuration")
	}

	config = c
	return nil
}

// Set replaces the loaded configuration. Used by tests.
func Set(c *Config) {
	config = c
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

func (c *Config) PostgresRead() pg.Config {
	return pg.Config{
		User:     c.PostgresReadUser,
		Host:     c.PostgresReadHost,
		Port:     c.PostgresReadPort,
		Password: c.PostgresReadPassword,
		Database: c.PostgresReadDatabase,
		SSLMode:  c.PostgresSSLMode,
	}
}

func (c *Config) PostgresWrite() pg.Config {
	return pg.Config{
		User:     c.PostgresWriteUser,
		Host:     c.PostgresWriteHost,
		Port:     c.PostgresWritePort,
		Password: c.PostgresWritePassword,
		Database: c.PostgresWriteDatabase,
		SSLMode:  c.PostgresSSLMode,
	}
}
