package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/yourusername/media-forge/internal/apperror"
)

type stubRunner struct {
	err  error
	runs []string
}

func (r *stubRunner) Run(ctx context.Context, jobID string) error {
	r.runs = append(r.runs, jobID)
	return r.err
}

func TestHandleAcquireTask(t *testing.T) {
	payload, err := json.Marshal(&TaskPayload{JobID: "job-1"})
	if err != nil {
		t.Fatal(err)
	}

	runner := &stubRunner{}
	d := &QueueDispatcher{runner: runner}
	if err := d.handleAcquireTask(context.Background(), asynq.NewTask(TaskTypeAcquire, payload)); err != nil {
		t.Fatalf("handleAcquireTask returned error: %v", err)
	}
	if len(runner.runs) != 1 || runner.runs[0] != "job-1" {
		t.Fatalf("unexpected runs: %v", runner.runs)
	}

	runner.err = apperror.NotFound("gone")
	err = d.handleAcquireTask(context.Background(), asynq.NewTask(TaskTypeAcquire, payload))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("missing job should skip retry, got %v", err)
	}

	for _, body := range [][]byte{[]byte("{"), []byte(`{"jobId":""}`)} {
		err := d.handleAcquireTask(context.Background(), asynq.NewTask(TaskTypeAcquire, body))
		if !errors.Is(err, asynq.SkipRetry) {
			t.Fatalf("invalid payload %s should skip retry, got %v", body, err)
		}
	}
}

func TestNewQueueDispatcherRejectsBadURL(t *testing.T) {
	if _, err := NewQueueDispatcher("://bad", &stubRunner{}, 1, 0, nil); err == nil {
		t.Fatal("expected error for invalid redis url")
	}
	if _, err := NewQueueDispatcher("redis://localhost:6379", nil, 1, 0, nil); err == nil {
		t.Fatal("expected error for nil runner")
	}
}

func TestQueueDispatcherUsesInstanceQueue(t *testing.T) {
	a, err := NewQueueDispatcher("redis://localhost:6379", &stubRunner{}, 1, 0, nil)
	if err != nil {
		t.Fatalf("NewQueueDispatcher returned error: %v", err)
	}
	defer a.client.Close()
	b, err := NewQueueDispatcher("redis://localhost:6379", &stubRunner{}, 1, 0, nil)
	if err != nil {
		t.Fatalf("NewQueueDispatcher returned error: %v", err)
	}
	defer b.client.Close()

	if !strings.HasPrefix(a.Queue(), queuePrefix+":") {
		t.Fatalf("unexpected queue name: %s", a.Queue())
	}
	if a.Queue() == b.Queue() {
		t.Fatalf("instances must not share a queue: %s", a.Queue())
	}
}
