package jobs

import (
	"context"
	"errors"
	"log"
	"sync"
)

// ErrDispatcherStopped は停止後に Dispatch が呼ばれた場合のエラーです。
var ErrDispatcherStopped = errors.New("dispatcher stopped")

// Runner はジョブを実行します。Manager が実装します。
type Runner interface {
	Run(ctx context.Context, jobID string) error
}

// Dispatcher はジョブの実行を手配します。
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// LocalWorker はプロセス内のゴルーチンでジョブを実行します。
// 同時実行数は concurrency で制限し、あふれたジョブは queued のまま待ちます。
type LocalWorker struct {
	runner Runner
	sem    chan struct{}
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewLocalWorker は LocalWorker を作成します。
func NewLocalWorker(runner Runner, concurrency int, logger *log.Logger) *LocalWorker {
	if concurrency <= 0 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LocalWorker{
		runner: runner,
		sem:    make(chan struct{}, concurrency),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Dispatch はジョブをバックグラウンドで実行します。
// 実行はリクエストのコンテキストから切り離されます。
func (w *LocalWorker) Dispatch(_ context.Context, jobID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return ErrDispatcherStopped
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		select {
		case w.sem <- struct{}{}:
		case <-w.ctx.Done():
			return
		}
		defer func() { <-w.sem }()

		if err := w.runner.Run(w.ctx, jobID); err != nil && w.logger != nil {
			w.logger.Printf("job run failed job=%s: %v", jobID, err)
		}
	}()
	return nil
}

// Shutdown は実行中のジョブを止め、終了を待ちます。
func (w *LocalWorker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
