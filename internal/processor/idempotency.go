package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nimasrn/ar-collections/pkg/logger"
	"github.com/nimasrn/ar-collections/pkg/redis"
)

var (
	ErrAlreadyProcessed   = errors.New("email already processed")
	ErrLockAcquireFailed  = errors.New("failed to acquire processing lock")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

type IdempotencyConfig struct {
	LockTTL time.Duration

	ProcessedTTL time.Duration

	MaxRetries int

	RetryKeyPrefix string

	LockKeyPrefix string

	ProcessedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:            2 * time.Minute,
		ProcessedTTL:       48 * time.Hour,
		MaxRetries:         3,
		RetryKeyPrefix:     "email:retry:",
		LockKeyPrefix:      "email:lock:",
		ProcessedKeyPrefix: "email:sent:",
	}
}

// IdempotencyService makes sure one scheduled email is handed to the edge
// function at most once even when the stream redelivers it.
type IdempotencyService struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotencyService(redisAdapter redis.RedisAdapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{
		redis:  redisAdapter,
		config: config,
	}
}

type ProcessingContext struct {
	EmailID      string
	RetryCount   int
	IsRetry      bool
	lockAcquired bool
}

func (s *IdempotencyService) AcquireProcessingLock(ctx context.Context, emailID string) (*ProcessingContext, error) {
	processed, err := s.IsProcessed(ctx, emailID)
	if err != nil {
		// a duplicate send is preferred over a blocked queue
		logger.Warn("Failed to check processed status", "email_id", emailID, "error", err)
	} else if processed {
		logger.Info("Email already processed, skipping", "email_id", emailID)
		return nil, ErrAlreadyProcessed
	}

	retryCount, err := s.GetRetryCount(ctx, emailID)
	if err != nil {
		logger.Warn("Failed to read retry counter", "email_id", emailID, "error", err)
	}
	if retryCount >= s.config.MaxRetries {
		logger.Error("Max retries exceeded for email", "email_id", emailID, "retry_count", retryCount)
		return nil, fmt.Errorf("%w: email_id=%s, retries=%d", ErrMaxRetriesExceeded, emailID, retryCount)
	}

	lockValue := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
	acquired, err := s.redis.SetNX(ctx, s.config.LockKeyPrefix+emailID, lockValue, s.config.LockTTL)
	if err != nil {
		logger.Error("Failed to acquire lock", "email_id", emailID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		logger.Info("Lock already held by another consumer", "email_id", emailID)
		return nil, ErrLockAcquireFailed
	}

	logger.Debug("Processing lock acquired", "email_id", emailID, "retry_count", retryCount, "lock_ttl", s.config.LockTTL)

	return &ProcessingContext{
		EmailID:      emailID,
		RetryCount:   retryCount,
		IsRetry:      retryCount > 0,
		lockAcquired: true,
	}, nil
}

func (s *IdempotencyService) MarkSuccess(ctx context.Context, pc *ProcessingContext) error {
	if err := s.redis.Set(ctx, s.config.ProcessedKeyPrefix+pc.EmailID, []byte("1"), s.config.ProcessedTTL); err != nil {
		logger.Error("Failed to mark email as processed", "email_id", pc.EmailID, "error", err)
		return fmt.Errorf("failed to mark as processed: %w", err)
	}

	s.cleanup(ctx, pc)
	return nil
}

// MarkFailure bumps the retry counter and releases the lock so a redelivery
// can try again. It returns the new retry count.
func (s *IdempotencyService) MarkFailure(ctx context.Context, pc *ProcessingContext, reason error) int {
	newRetryCount := pc.RetryCount + 1
	retryValue := []byte(strconv.Itoa(newRetryCount))

	if err := s.redis.Set(ctx, s.config.RetryKeyPrefix+pc.EmailID, retryValue, s.config.ProcessedTTL); err != nil {
		logger.Error("Failed to increment retry counter", "email_id", pc.EmailID, "error", err)
	}
	_ = s.ReleaseLock(ctx, pc)

	logger.Warn("Email processing failed",
		"email_id", pc.EmailID,
		"retry_count", newRetryCount,
		"max_retries", s.config.MaxRetries,
		"reason", reason)

	return newRetryCount
}

func (s *IdempotencyService) ReleaseLock(ctx context.Context, pc *ProcessingContext) error {
	if pc == nil || !pc.lockAcquired {
		return nil
	}

	if err := s.redis.Del(ctx, s.config.LockKeyPrefix+pc.EmailID); err != nil {
		logger.Warn("Failed to release lock", "email_id", pc.EmailID, "error", err)
		return err
	}
	pc.lockAcquired = false
	return nil
}

func (s *IdempotencyService) cleanup(ctx context.Context, pc *ProcessingContext) {
	_ = s.ReleaseLock(ctx, pc)

	if err := s.redis.Del(ctx, s.config.RetryKeyPrefix+pc.EmailID); err != nil {
		logger.Warn("Failed to cleanup retry counter", "email_id", pc.EmailID, "error", err)
	}
}

func (s *IdempotencyService) GetRetryCount(ctx context.Context, emailID string) (int, error) {
	raw, err := s.redis.Get(ctx, s.config.RetryKeyPrefix+emailID)
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return 0, nil
		}
		return 0, err
	}

	retryCount, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid retry counter %q: %w", raw, err)
	}
	return retryCount, nil
}

func (s *IdempotencyService) IsProcessed(ctx context.Context, emailID string) (bool, error) {
	exists, err := s.redis.Exist(ctx, s.config.ProcessedKeyPrefix+emailID)
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
