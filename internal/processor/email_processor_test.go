package processor

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	gateway "github.com/nimasrn/ar-collections/internal/gateways"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendEmail(ctx context.Context, job model.EmailJob) (*gateway.SendEmailResponse, error) {
	args := m.Called(ctx, job)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.SendEmailResponse), args.Error(1)
}

type MockEmailStatusRepository struct {
	mock.Mock
}

func (m *MockEmailStatusRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockEmailStatusRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, retry bool) error {
	return m.Called(ctx, id, reason, retry).Error(0)
}

func newTestEmailProcessor(t *testing.T, maxRetries int) (*EmailProcessor, *MockEmailSender, *MockEmailStatusRepository) {
	_, idem := newTestIdempotency(t, maxRetries)
	sender := new(MockEmailSender)
	repo := new(MockEmailStatusRepository)
	p := NewEmailProcessor(sender, repo, idem)
	p.now = func() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) }
	return p, sender, repo
}

func jobMessage(t *testing.T, job model.EmailJob) *queue.Message {
	data, err := json.Marshal(job)
	require.NoError(t, err)
	return &queue.Message{ID: "1-0", Data: data}
}

func TestEmailProcessor_Process(t *testing.T) {
	ctx := context.Background()
	job := model.EmailJob{EmailID: uuid.New(), Recipient: "ap@acme.test", Subject: "Reminder", Body: "Pay", Kind: model.EmailKindReminder}

	t.Run("sends and marks the row sent", func(t *testing.T) {
		p, sender, repo := newTestEmailProcessor(t, 3)
		sender.On("SendEmail", mock.Anything, job).Return(&gateway.SendEmailResponse{Status: "queued"}, nil).Once()
		repo.On("MarkSent", mock.Anything, job.EmailID, p.now()).Return(nil).Once()

		require.NoError(t, p.Process(ctx, jobMessage(t, job)))

		// a redelivery is acked without a second send
		require.NoError(t, p.Process(ctx, jobMessage(t, job)))

		sender.AssertExpectations(t)
		repo.AssertExpectations(t)
		sender.AssertNumberOfCalls(t, "SendEmail", 1)
	})

	t.Run("failure goes back to pending while retries remain", func(t *testing.T) {
		p, sender, repo := newTestEmailProcessor(t, 2)
		sender.On("SendEmail", mock.Anything, job).Return(nil, errors.New("edge down"))
		repo.On("MarkFailed", mock.Anything, job.EmailID, "edge down", true).Return(nil).Once()
		repo.On("MarkFailed", mock.Anything, job.EmailID, "edge down", false).Return(nil).Once()

		require.NoError(t, p.Process(ctx, jobMessage(t, job)))
		require.NoError(t, p.Process(ctx, jobMessage(t, job)))

		repo.AssertExpectations(t)
	})

	t.Run("exhausted retries fail the row without sending", func(t *testing.T) {
		p, sender, repo := newTestEmailProcessor(t, 1)
		procCtx, err := p.idempotency.AcquireProcessingLock(ctx, job.EmailID.String())
		require.NoError(t, err)
		p.idempotency.MarkFailure(ctx, procCtx, errors.New("edge down"))

		repo.On("MarkFailed", mock.Anything, job.EmailID, "maximum retries exceeded", false).Return(nil).Once()

		require.NoError(t, p.Process(ctx, jobMessage(t, job)))
		sender.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
		repo.AssertExpectations(t)
	})

	t.Run("held lock leaves the message pending", func(t *testing.T) {
		p, sender, _ := newTestEmailProcessor(t, 3)
		_, err := p.idempotency.AcquireProcessingLock(ctx, job.EmailID.String())
		require.NoError(t, err)

		err = p.Process(ctx, jobMessage(t, job))
		assert.ErrorIs(t, err, ErrLockHeld)
		sender.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
	})

	t.Run("invalid payload", func(t *testing.T) {
		p, _, _ := newTestEmailProcessor(t, 3)
		err := p.Process(ctx, &queue.Message{ID: "2-0", Data: []byte("{not json")})
		assert.Error(t, err)
	})
}

type countingProcessor struct {
	processed atomic.Int32
	done      chan model.EmailJob
}

func (c *countingProcessor) GetType() string { return "counting" }

func (c *countingProcessor) Process(_ context.Context, msg *queue.Message) error {
	var job model.EmailJob
	if err := msg.Decode(&job); err != nil {
		return err
	}
	c.processed.Add(1)
	c.done <- job
	return nil
}

func TestProcessorService_ConsumesQueue(t *testing.T) {
	_, adapter := setupTestRedis(t)

	qConfig := queue.QueueConfig{
		Name:              "test:emails",
		ConsumerGroup:     "workers",
		ConsumerName:      "worker",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      20 * time.Millisecond,
		BatchSize:         10,
	}
	proc := &countingProcessor{done: make(chan model.EmailJob, 4)}
	service, err := NewProcessorService(adapter, proc, ProcessorConfig{Queue: qConfig, Consumers: 2, Workers: 2})
	require.NoError(t, err)
	require.NoError(t, service.Start())
	defer service.Stop()

	publisher, err := queue.NewQueue(adapter, qConfig)
	require.NoError(t, err)

	job := model.EmailJob{EmailID: uuid.New(), Recipient: "ap@acme.test", Kind: model.EmailKindStatement}
	_, err = publisher.PublishJSON(context.Background(), job, nil)
	require.NoError(t, err)

	select {
	case got := <-proc.done:
		assert.Equal(t, job.EmailID, got.EmailID)
	case <-time.After(3 * time.Second):
		t.Fatal("job was not processed")
	}

	assert.Eventually(t, func() bool {
		stats, err := publisher.GetStats(context.Background())
		return err == nil && stats.PendingMessages == 0
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(1), proc.processed.Load())
	assert.Equal(t, int64(1), service.Metrics().Stats().Processed)
}

func TestNewProcessorService_RequiresProcessor(t *testing.T) {
	_, err := NewProcessorService(nil, nil, ProcessorConfig{})
	assert.Error(t, err)
}
