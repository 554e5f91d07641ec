package reload

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherFiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guest.wasm")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan string, 1)
	go w.Run(ctx, func(p string) { changed <- p })

	time.Sleep(50 * time.Millisecond) // let the watch goroutine start
	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changed:
		if got != path {
			t.Errorf("got change for %q, want %q", got, path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a reload notification")
	}
}

func TestWatcherIgnoresUnregisteredFiles(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "watched.wasm")
	ignored := filepath.Join(dir, "ignored.txt")
	if err := os.WriteFile(watched, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ignored, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()
	if err := w.Watch(watched); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan string, 1)
	go w.Run(ctx, func(p string) { changed <- p })

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(ignored, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changed:
		t.Fatalf("expected no notification for an unregistered file, got %q", got)
	case <-time.After(300 * time.Millisecond):
		// no event is the expected outcome
	}
}
