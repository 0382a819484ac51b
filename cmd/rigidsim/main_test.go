package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const dropScene = `
gravity: [0, -10]
step: {count: 5}
bodies:
  - name: ground
    fixtures: [{shape: {type: box, half_width: 5, half_height: 0.5}}]
  - name: box
    type: dynamic
    position: [0, 3]
    fixtures: [{shape: {type: box, half_width: 0.5, half_height: 0.5}, density: 1}]
`

func writeScene(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drop.yaml")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunPrintsTrace(t *testing.T) {
	cfg := &config{scenePath: writeScene(t, dropScene), steps: 3}
	var out bytes.Buffer
	if err := run(context.Background(), cfg, &out); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 6 {
		t.Fatalf("got %d lines, want 6:\n%s", len(lines), out.String())
	}
	if lines[0] != "0(ground): 0.000 0.000 0.000" {
		t.Fatalf("first line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[5], "2(box): 0.000 2.9") {
		t.Fatalf("last line = %q", lines[5])
	}
}

func TestRunUsesSceneStepCount(t *testing.T) {
	cfg := &config{scenePath: writeScene(t, dropScene), steps: -1}
	var out bytes.Buffer
	if err := run(context.Background(), cfg, &out); err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(out.String(), "\n"); n != 10 {
		t.Fatalf("got %d lines, want 10", n)
	}
}

func TestRunReportsBadScene(t *testing.T) {
	cfg := &config{scenePath: writeScene(t, "bodies: [{name: a, type: wobbly}]"), steps: 1}
	err := run(context.Background(), cfg, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), `scene: body "a"`) {
		t.Fatalf("err = %v", err)
	}
}
