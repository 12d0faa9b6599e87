package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestReserveIsUniquePerJob(t *testing.T) {
	store, err := NewLocal(filepath.Join(t.TempDir(), "downloads"))
	if err != nil {
		t.Fatalf("NewLocal returned error: %v", err)
	}
	now := time.UnixMilli(1700000000000)

	pathA, nameA := store.Reserve("job-a", "mp4", now)
	pathB, nameB := store.Reserve("job-b", ".mp4", now)
	if pathA == pathB {
		t.Fatal("two jobs must never share a target path")
	}
	if nameA != "download-job-a-1700000000000.mp4" {
		t.Fatalf("unexpected filename: %s", nameA)
	}
	if !strings.HasSuffix(nameB, ".mp4") || filepath.Dir(pathB) != store.Root() {
		t.Fatalf("unexpected reservation: %s", pathB)
	}
}

func TestPathRejectsTraversal(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal returned error: %v", err)
	}
	for _, name := range []string{"", "..", "../etc/passwd", "a/b.mp4"} {
		if _, err := store.Path(name); err == nil {
			t.Fatalf("expected error for %q", name)
		}
	}
	if _, err := store.Path("download-x.mp4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUsable(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.mp4")
	full := filepath.Join(dir, "full.mp4")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	if Usable(filepath.Join(dir, "missing.mp4")) {
		t.Fatal("missing file must not be usable")
	}
	if Usable(empty) {
		t.Fatal("empty file must not be usable")
	}
	if !Usable(full) {
		t.Fatal("non-empty file must be usable")
	}
}

func TestRemoveArtifacts(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "download-abc-1.mp4")
	related := []string{
		target,
		target + ".part",
		filepath.Join(dir, "download-abc-1.f137.mp4"),
		filepath.Join(dir, "download-abc-1.raw.mp4"),
	}
	unrelated := filepath.Join(dir, "download-abc-10.mp4")
	for _, p := range append(related, unrelated) {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := RemoveArtifacts(target)
	if err != nil {
		t.Fatalf("RemoveArtifacts returned error: %v", err)
	}
	if removed != len(related) {
		t.Fatalf("removed %d files, want %d", removed, len(related))
	}
	for _, p := range related {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("expected %s to be removed", p)
		}
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Fatalf("file of another job must survive: %v", err)
	}

	if _, err := RemoveArtifacts(filepath.Join(dir, "missing", "x.mp4")); err != nil {
		t.Fatalf("missing directory must not be an error: %v", err)
	}
}

func TestRemoveStem(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"watermark-abc.png", "watermark-abc.webp", "watermark-abcd.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := RemoveStem(dir, "watermark-abc")
	if err != nil {
		t.Fatalf("RemoveStem returned error: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed %d files, want 2", removed)
	}
	if _, err := os.Stat(filepath.Join(dir, "watermark-abcd.png")); err != nil {
		t.Fatalf("unrelated asset must survive: %v", err)
	}
}
