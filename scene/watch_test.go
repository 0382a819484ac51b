package scene

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReportsSceneWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.yaml")
	if err := os.WriteFile(path, []byte(pyramid), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(pyramid+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case name := <-w.Events:
		if filepath.Base(name) != "scene.yaml" {
			t.Fatalf("event for %s, want scene.yaml", name)
		}
	case err := <-w.Errors:
		t.Fatalf("watch error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("no event after writing the scene")
	}
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	select {
	case _, ok := <-w.Events:
		if ok {
			t.Fatal("event after Close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Events not closed")
	}
}

func TestIsSceneFile(t *testing.T) {
	for name, want := range map[string]bool{
		"a.yaml": true,
		"b.YML":  true,
		"c.json": false,
		"d":      false,
	} {
		if got := isSceneFile(name); got != want {
			t.Errorf("isSceneFile(%q) = %v, want %v", name, got, want)
		}
	}
}
