package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/ar-collections/pkg/logger"
	"github.com/nimasrn/ar-collections/pkg/prom"
	"github.com/nimasrn/ar-collections/pkg/redis"
)

const lockPrefix = "job:"

var ErrUnknownJob = errors.New("unknown job")

// JobFunc does one unit of scheduled work and reports how many rows or
// messages it touched.
type JobFunc func(ctx context.Context) (affected int64, err error)

type Job struct {
	Name     string
	Interval time.Duration
	// LockTTL bounds how long a crashed instance can block the job. The lock
	// is renewed while the run lasts, so a run longer than LockTTL keeps it.
	// Defaults to Interval.
	LockTTL time.Duration
	// Immediate runs the job once on start instead of waiting a full interval.
	Immediate bool
	Run       JobFunc
}

// Locker is satisfied by redis.RedisAdapter.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Scheduler runs registered jobs on their own tickers. Every run takes the
// distributed lock job:<name>; a run whose lock is held elsewhere is skipped.
type Scheduler struct {
	locker Locker
	jobs   map[string]Job
	order  []string
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// New returns a scheduler. A nil locker disables cross instance locking.
func New(locker Locker) *Scheduler {
	return &Scheduler{
		locker: locker,
		jobs:   make(map[string]Job),
	}
}

func (s *Scheduler) Register(job Job) error {
	if job.Name == "" {
		return errors.New("job name is required")
	}
	if job.Run == nil {
		return fmt.Errorf("job %s has no run func", job.Name)
	}
	if job.Interval <= 0 {
		return fmt.Errorf("job %s needs a positive interval", job.Name)
	}
	if job.LockTTL <= 0 {
		job.LockTTL = job.Interval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.Name]; ok {
		return fmt.Errorf("job %s is already registered", job.Name)
	}
	s.jobs[job.Name] = job
	s.order = append(s.order, job.Name)
	return nil
}

func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Run starts every job and blocks until ctx is done and all in flight runs
// have returned.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	jobs := make([]Job, 0, len(s.order))
	for _, name := range s.order {
		jobs = append(jobs, s.jobs[name])
	}
	s.mu.Unlock()

	if len(jobs) == 0 {
		return errors.New("no jobs registered")
	}

	for _, job := range jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
	logger.Info("Scheduler started", "jobs", len(jobs))

	<-ctx.Done()
	s.wg.Wait()
	logger.Info("Scheduler stopped")
	return nil
}

// RunOnce executes a registered job right away, still honoring its lock.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownJob, name)
	}
	return s.execute(ctx, job)
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	if job.Immediate {
		_ = s.execute(ctx, job)
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.execute(ctx, job)
		}
	}
}

// execute never panics and never lets a job error escape the loop; the error
// is only returned for RunOnce callers.
func (s *Scheduler) execute(ctx context.Context, job Job) (err error) {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	log := logger.Named("scheduler", "job", job.Name)

	if s.locker != nil {
		release, lockErr := s.locker.TryLock(ctx, lockPrefix+job.Name, job.LockTTL)
		if lockErr != nil {
			if errors.Is(lockErr, redis.ErrLockNotObtained) {
				log.Debug("job skipped, lock held elsewhere")
				prom.ObserveJobRun(job.Name, "skipped", 0, 0)
				return nil
			}
			log.Error("job lock failed", "error", lockErr)
			prom.ObserveJobRun(job.Name, "failed", 0, 0)
			return lockErr
		}
		defer release()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
			log.Error("job panicked", "panic", r)
			prom.ObserveJobRun(job.Name, "failed", time.Since(start).Seconds(), 0)
		}
	}()

	affected, err := job.Run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		log.Error("job failed", "elapsed", elapsed, "error", err)
		prom.ObserveJobRun(job.Name, "failed", elapsed.Seconds(), affected)
		return err
	}

	log.Info("job finished", "elapsed", elapsed, "affected", affected)
	prom.ObserveJobRun(job.Name, "success", elapsed.Seconds(), affected)
	return nil
}
