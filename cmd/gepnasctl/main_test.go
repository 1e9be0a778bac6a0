package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gepnas/internal/config"
)

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := stdout
	stdout = &buf
	t.Cleanup(func() {
		stdout = orig
	})
	return &buf
}

func TestRunRequiresCommand(t *testing.T) {
	if err := run(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "usage:") {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := run(context.Background(), []string{"bogus"}); err == nil || !strings.Contains(err.Error(), "unknown command: bogus") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestInitWritesLoadableConfig(t *testing.T) {
	out := captureStdout(t)
	path := filepath.Join(t.TempDir(), "gepnas.ini")
	args := []string{"init", "-config", path, "-store", "memory"}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out.String(), "initialized config="+path) {
		t.Fatalf("unexpected output %q", out.String())
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("written config invalid: %v", err)
	}
	if err := run(context.Background(), args); err == nil {
		t.Fatal("expected init to refuse overwriting without -force")
	}
	if err := run(context.Background(), append(args, "-force")); err != nil {
		t.Fatalf("init -force: %v", err)
	}
}

func TestRunCommandWritesArtifacts(t *testing.T) {
	out := captureStdout(t)
	outDir := filepath.Join(t.TempDir(), "out")
	args := []string{
		"run",
		"-store", "memory",
		"-out", outDir,
		"-pop", "6",
		"-gens", "2",
		"-seed", "11",
		"-workers", "2",
	}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("run command: %v", err)
	}
	text := out.String()
	for _, want := range []string{"gen=0 ", "gen=2 ", "run_id=", "artifacts="} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
	dirs, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	var runDirs int
	for _, d := range dirs {
		if d.IsDir() {
			runDirs++
			if _, err := os.Stat(filepath.Join(outDir, d.Name(), "summary.json")); err != nil {
				t.Fatalf("expected summary.json: %v", err)
			}
		}
	}
	if runDirs != 1 {
		t.Fatalf("expected one run directory, got %d", runDirs)
	}
}

func TestRunCommandRejectsInvalidOverride(t *testing.T) {
	captureStdout(t)
	args := []string{"run", "-store", "memory", "-out", t.TempDir(), "-cells", "conv9x9"}
	if err := run(context.Background(), args); err == nil {
		t.Fatal("expected invalid cell to fail")
	}
}

func TestRunsOnEmptyMemoryStore(t *testing.T) {
	out := captureStdout(t)
	if err := run(context.Background(), []string{"runs", "-store", "memory"}); err != nil {
		t.Fatalf("runs: %v", err)
	}
	if strings.TrimSpace(out.String()) != "no runs found" {
		t.Fatalf("unexpected output %q", out.String())
	}
	if err := run(context.Background(), []string{"runs", "-store", "memory", "-limit", "0"}); err == nil {
		t.Fatal("expected limit validation error")
	}
}

func TestLogbookRequiresRunRef(t *testing.T) {
	captureStdout(t)
	if err := run(context.Background(), []string{"logbook", "-store", "memory"}); err == nil {
		t.Fatal("expected missing run id error")
	}
}

func TestDecodeCommand(t *testing.T) {
	out := captureStdout(t)
	if err := run(context.Background(), []string{"decode", "seq conv1x1 conv3x3"}); err != nil {
		t.Fatalf("decode: %v", err)
	}
	dot := out.String()
	if !strings.HasPrefix(dot, "digraph") || !strings.Contains(dot, "n1 -> n2;") {
		t.Fatalf("unexpected dot output:\n%s", dot)
	}

	out.Reset()
	if err := run(context.Background(), []string{"decode", "-json", "seq conv1x1 conv3x3"}); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
		t.Fatalf("decode json output: %v\n%s", err, out.String())
	}

	if err := run(context.Background(), []string{"decode"}); err == nil {
		t.Fatal("expected error without genes")
	}
}
