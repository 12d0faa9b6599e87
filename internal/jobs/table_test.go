package jobs

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/yourusername/media-forge/internal/events"
)

func TestTableInsertAndList(t *testing.T) {
	table := NewTable(time.Hour)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	second := &Job{ID: "b", CreatedAt: base.Add(time.Minute), status: StatusQueued}
	first := &Job{ID: "a", CreatedAt: base, status: StatusQueued}
	if !table.Insert(second) || !table.Insert(first) {
		t.Fatal("Insert should accept new ids")
	}
	if table.Insert(&Job{ID: "a"}) {
		t.Fatal("Insert must reject a duplicate id")
	}
	if first.ExpiresAt != base.Add(time.Hour) {
		t.Fatalf("unexpected expiry: %s", first.ExpiresAt)
	}

	list := table.List()
	if len(list) != 2 || list[0].JobID != "a" || list[1].JobID != "b" {
		t.Fatalf("unexpected list order: %+v", list)
	}
}

func TestTableConcurrentAccess(t *testing.T) {
	table := NewTable(time.Minute)
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			table.Insert(&Job{ID: string(rune('A' + i)), CreatedAt: now, status: StatusQueued})
		}(i)
		go func() {
			defer wg.Done()
			_ = table.List()
			_ = table.Expired(now)
		}()
	}
	wg.Wait()
	if table.Len() != 50 {
		t.Fatalf("unexpected table size: %d", table.Len())
	}
}

func TestSweepEvictsExpiredJobsWithoutEvents(t *testing.T) {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, envOptions{downloader: "record", now: created})

	done := env.create(t, CreateRequest{Quality: "720p"})
	if err := env.manager.Run(context.Background(), done.ID); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	queued := env.create(t, CreateRequest{Quality: "720p"})
	before := len(env.publisher.snapshot())

	if n := env.manager.Sweep(created.Add(30 * time.Minute)); n != 0 {
		t.Fatalf("nothing should expire yet, evicted %d", n)
	}
	if n := env.manager.Sweep(created.Add(61 * time.Minute)); n != 2 {
		t.Fatalf("evicted %d jobs, want 2", n)
	}

	for _, id := range []string{done.ID, queued.ID} {
		if _, err := env.manager.Get(id); err == nil {
			t.Fatalf("job %s should be gone", id)
		}
	}
	if _, err := os.Stat(done.TargetPath); !os.IsNotExist(err) {
		t.Fatal("output of evicted job should be deleted")
	}
	if after := len(env.publisher.snapshot()); after != before {
		t.Fatalf("eviction must not publish events (%d -> %d)", before, after)
	}
}

func TestSweepKillsRunningJob(t *testing.T) {
	created := time.Now()
	env := newTestEnv(t, envOptions{downloader: "hang", now: created})
	job := env.create(t, CreateRequest{Quality: "720p"})

	finished := make(chan struct{})
	go func() {
		_ = env.manager.Run(context.Background(), job.ID)
		close(finished)
	}()
	env.publisher.waitFor(t, func(ev events.Event) bool {
		return ev.Type == events.TypeProgress
	})

	if n := env.manager.Sweep(created.Add(2 * time.Hour)); n != 1 {
		t.Fatalf("evicted %d jobs, want 1", n)
	}

	select {
	case <-finished:
	case <-time.After(10 * time.Second):
		t.Fatal("evicted job's process was not terminated")
	}
	if files := env.files(t); len(files) != 0 {
		t.Fatalf("evicted job left files: %v", files)
	}
	for _, ev := range env.publisher.snapshot() {
		if ev.Type == events.TypeError || ev.Type == events.TypeComplete || ev.Status == string(StatusCancelled) {
			t.Fatalf("unexpected event after eviction: %+v", ev)
		}
	}
}

func TestRunSweeperStopsWithContext(t *testing.T) {
	env := newTestEnv(t, envOptions{downloader: "record"})
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		env.manager.RunSweeper(ctx, 10*time.Millisecond)
		close(stopped)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
