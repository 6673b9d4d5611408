package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_FileChangeTriggersCallback(t *testing.T) {
	dir := t.TempDir()
	changed := make(chan string, 4)
	w := NewWatcher(
		map[string]string{dir: "augustine"},
		[]string{".txt"},
		func(sourceID string) { changed <- sourceID },
		WithDebounce(50*time.Millisecond),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "confessions.txt"), []byte("text"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case id := <-changed:
		if id != "augustine" {
			t.Errorf("source id = %q", id)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no callback after file change")
	}
}

func TestWatcher_IgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	changed := make(chan string, 4)
	w := NewWatcher(
		map[string]string{dir: "augustine"},
		[]string{".txt"},
		func(sourceID string) { changed <- sourceID },
		WithDebounce(50*time.Millisecond),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "image.png"), []byte{1, 2, 3}, 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case id := <-changed:
		t.Errorf("unexpected callback for filtered extension: %q", id)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_DebounceCoalesces(t *testing.T) {
	dir := t.TempDir()
	changed := make(chan string, 16)
	w := NewWatcher(
		map[string]string{dir: "augustine"},
		nil,
		func(sourceID string) { changed <- sourceID },
		WithDebounce(200*time.Millisecond),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		name := filepath.Join(dir, "part"+string(rune('a'+i))+".txt")
		if err := os.WriteFile(name, []byte("text"), 0600); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// One coalesced callback for the burst.
	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("no callback after burst")
	}
	select {
	case <-changed:
		t.Error("burst should coalesce into a single callback")
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcher_SourceFor(t *testing.T) {
	w := NewWatcher(map[string]string{"/corpus/augustine": "augustine"}, nil, nil)
	if got := w.sourceFor("/corpus/augustine/confessions.txt"); got != "augustine" {
		t.Errorf("sourceFor = %q", got)
	}
	if got := w.sourceFor("/corpus/augustinian/other.txt"); got != "" {
		t.Errorf("unrelated path matched: %q", got)
	}
	if got := w.sourceFor("/corpus/augustine"); got != "augustine" {
		t.Errorf("root itself should match, got %q", got)
	}
}

func TestWatcher_StopDuringEventBurst(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(
		map[string]string{dir: "augustine"},
		[]string{".txt"},
		func(string) {},
		WithDebounce(10*time.Millisecond),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Keep events flowing while the watcher shuts down; the run loop must
	// drain and exit without touching cleared state.
	stop := make(chan struct{})
	go func() {
		defer close(stop)
		path := filepath.Join(dir, "city-of-god.txt")
		for i := 0; i < 50; i++ {
			_ = os.WriteFile(path, []byte("text"), 0600)
			time.Sleep(time.Millisecond)
		}
	}()
	time.Sleep(15 * time.Millisecond)
	w.Stop()
	w.Stop() // idempotent
	<-stop
}
