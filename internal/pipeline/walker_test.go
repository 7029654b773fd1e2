package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDetectLanguageMapsExtensions(t *testing.T) {
	cases := map[string]string{
		"main.go":        "go",
		"script.py":      "python",
		"component.jsx":  "javascript",
		"app.ts":         "typescript",
		"module.tsx":     "typescript",
		"main.tf":        "iac",
		"README.md":      "unknown",
		"Makefile":       "unknown",
	}
	for path, want := range cases {
		if got := DetectLanguage(path); got != want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestWalkRespectsIncludeAndExclude(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "main.go"), "package main")
	mustWrite(t, filepath.Join(dir, "main_test.go"), "package main")
	mustWrite(t, filepath.Join(dir, "vendor", "dep.go"), "package dep")
	mustWrite(t, filepath.Join(dir, "README.md"), "# readme")

	w := NewWalker(2)
	scope := Scope{
		Root:    dir,
		Include: []string{"**/*.go"},
		Exclude: []string{"vendor/**", "*_test.go"},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []string
	for r := range w.Walk(ctx, scope) {
		if r.Err != nil {
			t.Fatalf("unexpected read error: %v", r.Err)
		}
		got = append(got, r.Path)
	}
	sort.Strings(got)

	if len(got) != 1 || filepath.Base(got[0]) != "main.go" {
		t.Fatalf("expected only main.go to survive include/exclude, got %v", got)
	}
}

// TestWalkSkipsFilesOverMaxSize covers SPEC_FULL §6's file-size cap: a
// file larger than Scope.MaxFileSize is surfaced as a WalkResult error
// (recorded upstream as a ParseFailure) instead of being read into
// memory.
func TestWalkSkipsFilesOverMaxSize(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "huge.go"), "package main\n// "+string(make([]byte, 200)))
	mustWrite(t, filepath.Join(dir, "small.go"), "package main")

	w := NewWalker(2)
	scope := Scope{
		Root:        dir,
		Include:     []string{"**/*.go"},
		MaxFileSize: datasize.ByteSize(32),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var okPaths []string
	var errCount int
	for r := range w.Walk(ctx, scope) {
		if r.Err != nil {
			errCount++
			continue
		}
		okPaths = append(okPaths, r.Path)
	}

	if errCount != 1 {
		t.Fatalf("expected exactly one oversized-file error, got %d", errCount)
	}
	if len(okPaths) != 1 || filepath.Base(okPaths[0]) != "small.go" {
		t.Fatalf("expected only small.go to be read, got %v", okPaths)
	}
}

func TestWalkDefaultWorkersWhenNonPositive(t *testing.T) {
	w := NewWalker(0)
	if w.workers <= 0 {
		t.Errorf("expected positive default worker count, got %d", w.workers)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
