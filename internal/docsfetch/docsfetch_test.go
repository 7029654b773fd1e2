package docsfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFetchWritesMarkdownAndMeta(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintln(w, `<html><body><main><h1>Widgets</h1><p>Install with pip.</p></main></body></html>`)
	}))
	defer ts.Close()

	root := t.TempDir()
	f := New(root, 5)
	f.MinDelay = 0

	meta, err := f.Fetch(context.Background(), "pypi", "widgets", "2.1.0", ts.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if meta.FileCount != 1 {
		t.Errorf("expected 1 file, got %d", meta.FileCount)
	}
	if len(meta.SourceURLs) == 0 {
		t.Error("expected at least one source URL recorded")
	}

	dir := filepath.Join(root, "pypi", "widgets@2.1.0")
	readme, err := os.ReadFile(filepath.Join(dir, "README.md"))
	if err != nil {
		t.Fatalf("reading README.md: %v", err)
	}
	if !strings.Contains(string(readme), "# Widgets") {
		t.Errorf("expected markdown heading, got: %s", readme)
	}

	metaBytes, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		t.Fatalf("reading meta.json: %v", err)
	}
	var decoded Meta
	if err := json.Unmarshal(metaBytes, &decoded); err != nil {
		t.Fatalf("meta.json is not valid JSON: %v", err)
	}
	if decoded.Version != "2.1.0" {
		t.Errorf("expected version 2.1.0 in meta.json, got %s", decoded.Version)
	}
}

func TestFetchFailsWhenEveryPatternFails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	f := New(t.TempDir(), 5)
	f.MinDelay = 0

	_, err := f.Fetch(context.Background(), "npm", "gone", "1.0.0", ts.URL)
	if err == nil {
		t.Fatal("expected an error when every candidate URL 404s")
	}
}

func TestCandidateURLsFollowDeclaredOrder(t *testing.T) {
	got := candidateURLs("https://docs.example.com", "3.4.1")
	want := []string{
		"https://docs.example.com/3.4.1/",
		"https://docs.example.com/en/3.4.1/",
		"https://docs.example.com/v3.4.1/",
		"https://docs.example.com/3.x/",
		"https://docs.example.com/",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestHTMLToMarkdownSkipsNav(t *testing.T) {
	html := `<html><body><nav>skip me</nav><main><h2>API</h2><p>details</p></main></body></html>`
	md := htmlToMarkdown(html)
	if strings.Contains(md, "skip me") {
		t.Errorf("expected nav content excluded, got: %s", md)
	}
	if !strings.Contains(md, "## API") {
		t.Errorf("expected heading preserved, got: %s", md)
	}
}
