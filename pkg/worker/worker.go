package worker

import (
	"context"
	"sync"

	"github.com/nimasrn/ar-collections/pkg/logger"
)

type WorkerHandler = func(ctx context.Context, workerIndex int, job any)

type WorkerManager struct {
	jobChannel     chan any
	numberOfWorker int
	do             WorkerHandler
	waiter         sync.WaitGroup
	stopOnce       sync.Once
	stop           chan struct{}
}

// NewWorkerManager builds a fixed pool of goroutines fed from one buffered
// channel. Jobs are handed out with Enqueue and the pool drains until its
// context is cancelled or Exit is called.
func NewWorkerManager(bufferSize, numberOfWorkers int) *WorkerManager {
	if numberOfWorkers < 1 {
		numberOfWorkers = 1
	}
	return &WorkerManager{
		numberOfWorker: numberOfWorkers,
		jobChannel:     make(chan any, bufferSize),
		stop:           make(chan struct{}),
	}
}

func (w *WorkerManager) GetUnreadCount() int64 {
	return int64(len(w.jobChannel))
}

func (w *WorkerManager) SetWorker(worker WorkerHandler) {
	w.do = worker
}

// Enqueue blocks while the buffer is full. It returns false once the pool has
// been stopped.
func (w *WorkerManager) Enqueue(ctx context.Context, val any) bool {
	select {
	case <-w.stop:
		return false
	default:
	}
	select {
	case w.jobChannel <- val:
		return true
	case <-w.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

// Start runs the workers and blocks until ctx is done or Exit is called.
// Jobs already picked up are allowed to finish.
func (w *WorkerManager) Start(ctx context.Context) error {
	w.waiter.Add(w.numberOfWorker)
	for i := 0; i < w.numberOfWorker; i++ {
		go func(index int) {
			defer w.waiter.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-w.stop:
					return
				case job := <-w.jobChannel:
					w.do(ctx, index, job)
				}
			}
		}(i)
	}
	w.waiter.Wait()
	return ctx.Err()
}

func (w *WorkerManager) Exit() {
	w.stopOnce.Do(func() {
		logger.Info("worker manager is going to be shutdown", "workers", w.numberOfWorker)
		close(w.stop)
	})
}
