package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/yourusername/media-forge/internal/config"
	"github.com/yourusername/media-forge/internal/jobs"
)

// setupDispatcher は QUEUE_REDIS_URL が設定されていれば Asynq を、
// なければプロセス内ワーカーを使う Dispatcher を返します。
func setupDispatcher(cfg *config.Config, manager *jobs.Manager, logger *log.Logger) (jobs.Dispatcher, func(context.Context) error, error) {
	if cfg.QueueRedisURL == "" {
		worker := jobs.NewLocalWorker(manager, cfg.MaxParallelJobs, logger)
		logger.Printf("Using in-process worker (concurrency: %d)", cfg.MaxParallelJobs)
		return worker, worker.Shutdown, nil
	}

	queue, err := jobs.NewQueueDispatcher(cfg.QueueRedisURL, manager, cfg.MaxParallelJobs, manager.Retention(), logger)
	if err != nil {
		return nil, nil, err
	}
	queue.Start()
	logger.Printf("Using asynq worker (queue: %s, concurrency: %d)", queue.Queue(), cfg.MaxParallelJobs)
	return queue, queue.Shutdown, nil
}

// openDiagnosticLog はサブプロセスのエラー行を追記する診断ログを開きます。
// path が空の場合は標準エラーに書き出します。
func openDiagnosticLog(path string) (*log.Logger, func(), error) {
	if path == "" {
		return log.New(os.Stderr, "[diag] ", log.LstdFlags), func() {}, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return log.New(file, "", log.LstdFlags|log.LUTC), func() { _ = file.Close() }, nil
}
