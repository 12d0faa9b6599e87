package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/yourusername/media-forge/internal/apperror"
)

const (
	// TaskTypeAcquire はジョブ実行タスクの種別です。
	TaskTypeAcquire = "media:acquire"
	queuePrefix     = "media"
)

// TaskPayload はジョブ実行タスクのペイロードです。
type TaskPayload struct {
	JobID string `json:"jobId"`
}

// QueueDispatcher は Asynq 経由でジョブを実行します。
// ジョブ表はメモリ上にあるため、キューはインスタンスごとに分け、
// 同じ Redis を共有する別プロセスがタスクを取らないようにします。
type QueueDispatcher struct {
	queue   string
	client  *asynq.Client
	server  *asynq.Server
	mux     *asynq.ServeMux
	runner  Runner
	timeout time.Duration
	logger  *log.Logger
}

// NewQueueDispatcher は QueueDispatcher を初期化します。
func NewQueueDispatcher(redisURL string, runner Runner, concurrency int, timeout time.Duration, logger *log.Logger) (*QueueDispatcher, error) {
	if runner == nil {
		return nil, errors.New("runner is nil")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	queue := instanceQueueName()
	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				queue: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	d := &QueueDispatcher{
		queue:   queue,
		client:  client,
		server:  server,
		mux:     mux,
		runner:  runner,
		timeout: timeout,
		logger:  logger,
	}
	mux.HandleFunc(TaskTypeAcquire, d.handleAcquireTask)
	return d, nil
}

// Queue はこのインスタンスが処理するキュー名を返します。
func (d *QueueDispatcher) Queue() string {
	return d.queue
}

// Start は Asynq サーバーをバックグラウンドで起動します。
func (d *QueueDispatcher) Start() {
	go func() {
		if err := d.server.Run(d.mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			if d.logger != nil {
				d.logger.Printf("asynq server stopped with error: %v", err)
			} else {
				log.Printf("asynq server stopped with error: %v", err)
			}
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (d *QueueDispatcher) Shutdown(ctx context.Context) error {
	d.server.Shutdown()
	return d.client.Close()
}

// Dispatch はジョブをキューに投入します。再試行はしません。
func (d *QueueDispatcher) Dispatch(ctx context.Context, jobID string) error {
	if jobID == "" {
		return fmt.Errorf("jobID is required")
	}
	body, err := json.Marshal(&TaskPayload{JobID: jobID})
	if err != nil {
		return err
	}

	opts := []asynq.Option{asynq.Queue(d.queue), asynq.MaxRetry(0)}
	if d.timeout > 0 {
		opts = append(opts, asynq.Timeout(d.timeout))
	}
	task := asynq.NewTask(TaskTypeAcquire, body, opts...)
	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", jobID, err)
	}
	return nil
}

func instanceQueueName() string {
	return queuePrefix + ":" + uuid.NewString()
}

func (d *QueueDispatcher) handleAcquireTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.JobID == "" {
		return fmt.Errorf("missing jobId in payload: %w", asynq.SkipRetry)
	}

	if err := d.runner.Run(ctx, payload.JobID); err != nil {
		if apperror.HasCode(err, apperror.CodeJobNotFound) {
			// 保持期間を過ぎたか、別プロセスで作成されたジョブ
			return fmt.Errorf("job %s: %v: %w", payload.JobID, err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}
