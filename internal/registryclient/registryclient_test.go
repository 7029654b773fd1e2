package registryclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPyPIVersionsParsesReleases(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"releases": {"1.0.0": [], "1.1.0": [], "2.0.0a1": []}}`)
	}))
	defer ts.Close()

	c := &Client{HTTP: ts.Client()}
	versions, err := c.PyPIVersions(context.Background(), "widgets")
	if err != nil {
		t.Fatalf("PyPIVersions failed: %v", err)
	}
	if len(versions) != 3 {
		t.Errorf("expected 3 versions, got %d: %v", len(versions), versions)
	}
}

func TestNPMVersionsParsesVersions(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"versions": {"4.17.20": {}, "4.17.21": {}}}`)
	}))
	defer ts.Close()

	c := &Client{HTTP: ts.Client()}
	versions, err := c.NPMVersions(context.Background(), "lodash")
	if err != nil {
		t.Fatalf("NPMVersions failed: %v", err)
	}
	if len(versions) != 2 {
		t.Errorf("expected 2 versions, got %d: %v", len(versions), versions)
	}
}

func TestDockerHubTagsParsesResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"results": [{"name": "18-alpine3.21"}, {"name": "latest"}]}`)
	}))
	defer ts.Close()

	c := &Client{HTTP: ts.Client()}
	tags, err := c.DockerHubTags(context.Background(), "node")
	if err != nil {
		t.Fatalf("DockerHubTags failed: %v", err)
	}
	if len(tags) != 2 {
		t.Errorf("expected 2 tags, got %d: %v", len(tags), tags)
	}
}

func TestGetJSONPermanentOn404(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := &Client{HTTP: ts.Client()}
	_, err := c.PyPIVersions(context.Background(), "does-not-exist")
	if err == nil {
		t.Fatal("expected an error for a 404 response")
	}
}
