package jobs

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/yourusername/media-forge/internal/events"
)

func TestRunReportsMonotonicProgressAndCompletes(t *testing.T) {
	env := newTestEnv(t, envOptions{downloader: "progress"})
	job := env.create(t, CreateRequest{Quality: "720p"})

	if err := env.manager.Run(context.Background(), job.ID); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	progress := env.publisher.ofType(events.TypeProgress)
	if len(progress) == 0 {
		t.Fatal("expected progress events")
	}
	last := -1.0
	for _, ev := range progress {
		if ev.Progress < last {
			t.Fatalf("progress decreased: %v after %v", ev.Progress, last)
		}
		last = ev.Progress
		want := string(StatusDownloading)
		if ev.Progress >= 100 {
			want = string(StatusMerging)
		}
		if ev.Status != want {
			t.Fatalf("progress %v reported status %s, want %s", ev.Progress, ev.Status, want)
		}
	}
	if last != 100 {
		t.Fatalf("final progress = %v, want 100", last)
	}

	complete := env.publisher.ofType(events.TypeComplete)
	if len(complete) != 1 {
		t.Fatalf("expected one completion event, got %d", len(complete))
	}
	if complete[0].Filename != job.Filename || !strings.HasSuffix(job.Filename, ".mp4") {
		t.Fatalf("unexpected filename: %s", complete[0].Filename)
	}
	if snap := job.Snapshot(); snap.Status != StatusCompleted || snap.Progress != 100 {
		t.Fatalf("unexpected final snapshot: %+v", snap)
	}
	if files := env.files(t); len(files) != 1 || files[0] != job.Filename {
		t.Fatalf("expected only the output file, got %v", files)
	}

	args := env.recordedArgs(t)
	if argAfter(args, "-f") != "bestvideo[height<=720]+bestaudio/best[height<=720]" {
		t.Fatalf("unexpected selector in %v", args)
	}
}

func TestRunNonZeroExitWithOutputCompletes(t *testing.T) {
	env := newTestEnv(t, envOptions{downloader: "exit1-with-file"})
	job := env.create(t, CreateRequest{Quality: "1080p"})

	if err := env.manager.Run(context.Background(), job.ID); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if status := job.Status(); status != StatusCompleted {
		t.Fatalf("status = %s, want completed", status)
	}
	if len(env.publisher.ofType(events.TypeError)) != 0 {
		t.Fatal("no error event expected when output exists")
	}
	if !strings.Contains(env.diag.String(), "merge failed") {
		t.Fatalf("error line must be kept in diagnostics: %q", env.diag.String())
	}
}

func TestRunFailureWithoutOutput(t *testing.T) {
	cases := map[string]string{
		"exit1-no-file": "Process exited with code 1",
		"exit0-no-file": msgOutputNotFound,
	}
	for scenario, wantMessage := range cases {
		t.Run(scenario, func(t *testing.T) {
			env := newTestEnv(t, envOptions{downloader: scenario})
			job := env.create(t, CreateRequest{Quality: "480p"})

			if err := env.manager.Run(context.Background(), job.ID); err != nil {
				t.Fatalf("Run returned error: %v", err)
			}

			snap := job.Snapshot()
			if snap.Status != StatusFailed {
				t.Fatalf("status = %s, want failed", snap.Status)
			}
			errs := env.publisher.ofType(events.TypeError)
			if len(errs) != 1 || errs[0].Message != wantMessage {
				t.Fatalf("unexpected error events: %+v", errs)
			}
			if snap.Error != wantMessage {
				t.Fatalf("snapshot error = %q", snap.Error)
			}
			if len(env.publisher.ofType(events.TypeComplete)) != 0 {
				t.Fatal("failed job must not complete")
			}
		})
	}
}

func TestRunAudioUsesExtractionArgs(t *testing.T) {
	env := newTestEnv(t, envOptions{downloader: "record"})
	job := env.create(t, CreateRequest{
		Quality:      QualityAudioOnly,
		AudioBitrate: 320,
		AuthBrowser:  "firefox",
		Watermark:    WatermarkRequest{Requested: true},
	})
	if job.Kind != KindAudio {
		t.Fatalf("kind = %s, want audio", job.Kind)
	}

	if err := env.manager.Run(context.Background(), job.ID); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	args := strings.Join(env.recordedArgs(t), " ")
	for _, want := range []string{"--extract-audio", "--audio-format mp3", "ffmpeg:-b:a 320k", "--cookies-from-browser firefox"} {
		if !strings.Contains(args, want) {
			t.Fatalf("missing %q in %s", want, args)
		}
	}
	if !strings.HasSuffix(job.TargetPath, ".mp3") {
		t.Fatalf("unexpected target: %s", job.TargetPath)
	}
	for _, ev := range env.publisher.ofType(events.TypeUpdate) {
		if ev.Status == string(StatusProcessingWatermark) {
			t.Fatal("audio jobs must skip the watermark stage")
		}
	}
	if job.Status() != StatusCompleted {
		t.Fatalf("status = %s, want completed", job.Status())
	}
}

func TestCancelKillsProcessAndRemovesPartialOutput(t *testing.T) {
	env := newTestEnv(t, envOptions{downloader: "hang", grace: 50 * time.Millisecond})
	job := env.create(t, CreateRequest{Quality: "720p"})

	done := make(chan error, 1)
	go func() { done <- env.manager.Run(context.Background(), job.ID) }()

	env.publisher.waitFor(t, func(ev events.Event) bool {
		return ev.Type == events.TypeProgress && ev.JobID == job.ID
	})

	snap, err := env.manager.Cancel(job.ID)
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if snap.Status != StatusCancelled {
		t.Fatalf("status after cancel = %s", snap.Status)
	}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(env.files(t)) > 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if files := env.files(t); len(files) != 0 {
		t.Fatalf("partial output not removed: %v", files)
	}

	// 2回目のキャンセルは何もしない
	again, err := env.manager.Cancel(job.ID)
	if err != nil || again.Status != StatusCancelled {
		t.Fatalf("second cancel = %+v, %v", again, err)
	}
	cancelled := 0
	for _, ev := range env.publisher.ofType(events.TypeUpdate) {
		if ev.Status == string(StatusCancelled) {
			cancelled++
		}
	}
	if cancelled != 1 {
		t.Fatalf("expected exactly one cancelled event, got %d", cancelled)
	}
	if len(env.publisher.ofType(events.TypeError)) != 0 || len(env.publisher.ofType(events.TypeComplete)) != 0 {
		t.Fatal("cancelled job must not report another terminal state")
	}
}

func TestCancelBeforeRunSkipsDownload(t *testing.T) {
	env := newTestEnv(t, envOptions{downloader: "record"})
	job := env.create(t, CreateRequest{Quality: "720p"})

	if _, err := env.manager.Cancel(job.ID); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if err := env.manager.Run(context.Background(), job.ID); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if _, err := os.Stat(env.argsFile); !os.IsNotExist(err) {
		t.Fatal("downloader must not start for a cancelled job")
	}
	if job.Status() != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", job.Status())
	}
}

func TestCancelCompletedJobIsNoop(t *testing.T) {
	env := newTestEnv(t, envOptions{downloader: "record"})
	job := env.create(t, CreateRequest{Quality: "720p"})
	if err := env.manager.Run(context.Background(), job.ID); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	snap, err := env.manager.Cancel(job.ID)
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", snap.Status)
	}
	if _, err := os.Stat(job.TargetPath); err != nil {
		t.Fatalf("completed output must survive cancel: %v", err)
	}
}
