package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/ar-collections/internal/queue"
	"github.com/nimasrn/ar-collections/pkg/logger"
	"github.com/nimasrn/ar-collections/pkg/redis"
	"github.com/nimasrn/ar-collections/pkg/worker"
)

const ProcessingTimeout = time.Second * 30
const HealthInterval = time.Second * 30
const ShutdownTimeout = time.Minute

// Processor handles one queue message. A nil error acks it.
type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

type ProcessorConfig struct {
	Queue     queue.QueueConfig
	Consumers int
	Workers   int
	// pending entries above this are reported by the health check
	LagWarning int64
}

// ProcessorService runs queue consumers that hand messages to a worker pool.
type ProcessorService struct {
	adapter   redis.RedisAdapter
	config    ProcessorConfig
	queues    []*queue.Queue
	processor Processor
	metrics   *ServiceMetrics
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	worker    *worker.WorkerManager
	stopOnce  sync.Once
}

func NewProcessorService(adapter redis.RedisAdapter, processor Processor, config ProcessorConfig) (*ProcessorService, error) {
	if processor == nil {
		return nil, errors.New("processor is required")
	}
	if config.Consumers <= 0 {
		config.Consumers = 1
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.LagWarning <= 0 {
		config.LagWarning = 10_000
	}

	ctx, cancel := context.WithCancel(context.Background())
	service := &ProcessorService{
		adapter:   adapter,
		config:    config,
		queues:    make([]*queue.Queue, 0, config.Consumers),
		processor: processor,
		metrics:   NewServiceMetrics(),
		ctx:       ctx,
		cancel:    cancel,
		worker:    worker.NewWorkerManager(config.Workers*2, config.Workers),
	}
	logger.Info("Registered processor", "type", processor.GetType())
	return service, nil
}

func (s *ProcessorService) Start() error {
	logger.Info("Starting Processor Service...")

	s.worker.SetWorker(s.workerHandler)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(s.ctx); err != nil {
			logger.Error("Worker manager stopped", "error", err)
		}
	}()

	for i := 0; i < s.config.Consumers; i++ {
		queueConfig := s.config.Queue
		queueConfig.ConsumerName = fmt.Sprintf("%s-instance-%d", queueConfig.ConsumerName, i)

		q, err := queue.NewQueue(s.adapter, queueConfig)
		if err != nil {
			return fmt.Errorf("failed to create queue %d: %w", i, err)
		}
		if err := q.Consume(s.messageHandler); err != nil {
			return fmt.Errorf("failed to start consumer %d: %w", i, err)
		}

		s.queues = append(s.queues, q)
	}

	s.wg.Add(2)
	go s.metricsReporter()
	go s.healthChecker()

	logger.Info("Processor Service started", "queue", s.config.Queue.Name, "consumers", len(s.queues), "workers", s.config.Workers)
	return nil
}

// Run starts the service and stops it once ctx is done.
func (s *ProcessorService) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		s.Stop()
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

func (s *ProcessorService) metricsReporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportMetrics()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) reportMetrics() {
	stats := s.metrics.Stats()
	logger.Info("Processor metrics", "processed", stats.Processed, "failed", stats.Failed, "rate_per_second", stats.RatePerSecond, "avg_duration_ms", stats.AvgDurationMs, "uptime_seconds", stats.UptimeSeconds)

	// consumers share one stream, so one of them is enough
	if len(s.queues) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if qStats, err := s.queues[0].GetStats(ctx); err == nil {
			logger.Info("Queue stats", "queue", s.queues[0].Name(), "total", qStats.TotalMessages, "pending", qStats.PendingMessages, "consumers", qStats.ConsumerCount)
		}
	}
}

func (s *ProcessorService) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthCheck()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) performHealthCheck() {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	if err := s.adapter.Client().Ping(ctx).Err(); err != nil {
		logger.Error("HEALTH CHECK FAILED: Redis connection error", "error", err)
		return
	}
	if len(s.queues) == 0 {
		return
	}

	stats, err := s.queues[0].GetStats(ctx)
	if err != nil {
		logger.Warn("HEALTH CHECK WARNING: Queue stats unavailable", "error", err)
		return
	}
	if stats.PendingMessages > s.config.LagWarning {
		logger.Warn("HEALTH CHECK WARNING: Queue has high lag", "pending_messages", stats.PendingMessages)
	}
}

func (s *ProcessorService) Stop() {
	s.stopOnce.Do(s.stop)
}

func (s *ProcessorService) stop() {
	logger.Info("Shutting down Processor Service...")

	var queues sync.WaitGroup
	for i, q := range s.queues {
		queues.Add(1)
		go func(index int, q *queue.Queue) {
			defer queues.Done()
			if err := q.Stop(ShutdownTimeout); err != nil {
				logger.Error("Error stopping queue", "queue", index, "error", err)
			}
		}(i, q)
	}
	queues.Wait()

	s.cancel()
	s.worker.Exit()
	s.wg.Wait()

	s.reportMetrics()
	logger.Info("Processor Service stopped")
}

func (s *ProcessorService) Metrics() *ServiceMetrics {
	return s.metrics
}

type jobResult struct {
	msg        *queue.Message
	resultChan chan error
	ctx        context.Context
}

// messageHandler hands the message to the pool and waits for its result so
// the consumer acks only what was processed.
func (s *ProcessorService) messageHandler(ctx context.Context, msg *queue.Message) error {
	resultChan := make(chan error, 1)

	msgCtx, cancel := context.WithTimeout(ctx, ProcessingTimeout)
	defer cancel()

	job := &jobResult{
		msg:        msg,
		resultChan: resultChan,
		ctx:        msgCtx,
	}
	if !s.worker.Enqueue(msgCtx, job) {
		return errors.New("worker pool is not accepting jobs")
	}

	select {
	case err := <-resultChan:
		return err
	case <-msgCtx.Done():
		return fmt.Errorf("timeout waiting for worker to process message: %w", msgCtx.Err())
	}
}

func (s *ProcessorService) workerHandler(_ context.Context, workerIndex int, job any) {
	jobRes, ok := job.(*jobResult)
	if !ok {
		logger.Error("Invalid job type in worker", "worker", workerIndex)
		return
	}

	select {
	case <-jobRes.ctx.Done():
		logger.Warn("Job context cancelled before processing started", "worker", workerIndex)
		return
	default:
	}

	start := time.Now()
	err := s.processor.Process(jobRes.ctx, jobRes.msg)
	if err != nil {
		s.metrics.RecordFailure()
		logger.Warn("Failed to process message", "worker", workerIndex, "id", jobRes.msg.ID, "error", err)
	} else {
		s.metrics.RecordSuccess(time.Since(start))
	}

	// buffered, never blocks
	jobRes.resultChan <- err
}
