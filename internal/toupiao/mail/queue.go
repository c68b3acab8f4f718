package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/metrics"
	"github.com/aussiebroadwan/toupiao/pkg/slogx"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	TaskTypeSendEmail = "mail:send"
	queueName         = "mail"
	maxRetry          = 5
)

// Queue hands mail to redis and delivers it from a background asynq worker.
// The redis client is shared by the enqueuing client and the worker.
type Queue struct {
	rdb      *redis.Client
	client   *asynq.Client
	server   *asynq.Server
	mux      *asynq.ServeMux
	delivery Sender
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewQueue connects to redisURL. delivery performs the actual send when a
// task is processed.
func NewQueue(redisURL string, delivery Sender, m *metrics.Metrics, logger *slog.Logger) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse mail queue redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	q := &Queue{
		rdb:      rdb,
		client:   asynq.NewClientFromRedisClient(rdb),
		delivery: delivery,
		metrics:  m,
		logger:   logger,
	}
	q.server = asynq.NewServerFromRedisClient(rdb, asynq.Config{
		Concurrency: 2,
		Queues:      map[string]int{queueName: 1},
		Logger:      asynqLogger{logger.With("component", "mail_queue")},
		LogLevel:    asynq.WarnLevel,
	})
	q.mux = asynq.NewServeMux()
	q.mux.HandleFunc(TaskTypeSendEmail, q.handleSendEmail)
	return q, nil
}

// SendEmail enqueues the message and returns once redis accepted it.
func (q *Queue) SendEmail(ctx context.Context, to, subject, html string) error {
	body, err := json.Marshal(Message{To: to, Subject: subject, HTML: html})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskTypeSendEmail, body, asynq.Queue(queueName))
	info, err := q.client.EnqueueContext(ctx, task, asynq.MaxRetry(maxRetry))
	if err != nil {
		q.metrics.Mail("queue", "failed")
		return fmt.Errorf("enqueue email: %w", err)
	}
	q.metrics.Mail("queue", "queued")
	slogx.FromContext(ctx).Debug("email queued", slog.String("task_id", info.ID))
	return nil
}

func (q *Queue) handleSendEmail(ctx context.Context, task *asynq.Task) error {
	var m Message
	if err := json.Unmarshal(task.Payload(), &m); err != nil {
		return fmt.Errorf("decode email task: %v: %w", err, asynq.SkipRetry)
	}
	ctx = slogx.WithContext(ctx, q.logger)
	return q.delivery.SendEmail(ctx, m.To, m.Subject, m.HTML)
}

// Start runs the worker in the background.
func (q *Queue) Start() error {
	return q.server.Start(q.mux)
}

// Ping checks the redis connection; used by the readiness probe.
func (q *Queue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}

// Shutdown stops the worker, waiting for in-flight deliveries, then closes
// redis.
func (q *Queue) Shutdown() error {
	q.server.Shutdown()
	return q.rdb.Close()
}

// asynqLogger adapts slog to asynq's logger.
type asynqLogger struct{ l *slog.Logger }

func (a asynqLogger) Debug(args ...any) { a.l.Debug(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...any) { a.l.Error(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...any) { a.l.Error(fmt.Sprint(args...)) }
