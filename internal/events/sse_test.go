package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// closeNotifyingRecorder は c.Stream が要求する CloseNotify を備えた ResponseRecorder です。
type closeNotifyingRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyingRecorder) CloseNotify() <-chan bool {
	return r.closed
}

func TestStreamHandlerWritesEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	b := NewBroadcaster(nil)
	defer b.Close()

	router := gin.New()
	router.GET("/api/events", StreamHandler(b))

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rec := &closeNotifyingRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}

	done := make(chan struct{})
	go func() {
		router.ServeHTTP(rec, req)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for b.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if b.SubscriberCount() == 0 {
		cancel()
		t.Fatal("handler did not subscribe")
	}

	b.Publish(Event{JobID: "job-42", Type: TypeComplete, Filename: "download-job-42.mp4"})
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after client disconnect")
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event:job-complete") {
		t.Fatalf("missing event name in body: %s", body)
	}
	if !strings.Contains(body, `"filename":"download-job-42.mp4"`) {
		t.Fatalf("missing payload in body: %s", body)
	}
	if b.SubscriberCount() != 0 {
		t.Fatal("handler must unsubscribe on return")
	}
}
