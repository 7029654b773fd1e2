// Package registryclient implements the dependency-resolution external
// interfaces (spec §6): HTTP GET of a package registry's JSON version
// listing, or a container registry's tag list, with exponential
// back-off on transient failures. Ground: AKJUS-bsc-erigon's use of
// cenkalti/backoff/v4 for retrying flaky HTTP calls, repurposed here
// from block-sync RPC calls to registry/tag lookups; goccy/go-json for
// decoding, matching the rest of the engine's JSON path (ground: erigon).
package registryclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"

	"github.com/TheAuditorTool/auditor/internal/errs"
)

// Client fetches version/tag listings from package and container
// registries. All parsing downstream is semantic (internal/semver),
// never lexicographic (spec §6, §9).
type Client struct {
	HTTP *http.Client
}

// New builds a Client with a sane request timeout.
func New() *Client {
	return &Client{HTTP: &http.Client{Timeout: 15 * time.Second}}
}

// pypiResponse mirrors the subset of PyPI's JSON API this client reads.
type pypiResponse struct {
	Releases map[string]json.RawMessage `json:"releases"`
}

// npmResponse mirrors the subset of the npm registry's JSON API.
type npmResponse struct {
	Versions map[string]json.RawMessage `json:"versions"`
}

// dockerTagsResponse mirrors Docker Hub's v2 tag-list API (one page;
// pagination beyond the first page is out of scope for this client).
type dockerTagsResponse struct {
	Results []struct {
		Name string `json:"name"`
	} `json:"results"`
}

// PyPIVersions fetches every published version string for a Python
// package from PyPI's JSON API.
func (c *Client) PyPIVersions(ctx context.Context, pkg string) ([]string, error) {
	url := fmt.Sprintf("https://pypi.org/pypi/%s/json", pkg)
	var out pypiResponse
	if err := c.getJSON(ctx, url, &out); err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(out.Releases))
	for v := range out.Releases {
		versions = append(versions, v)
	}
	return versions, nil
}

// NPMVersions fetches every published version string for an npm
// package from the npm registry.
func (c *Client) NPMVersions(ctx context.Context, pkg string) ([]string, error) {
	url := fmt.Sprintf("https://registry.npmjs.org/%s", pkg)
	var out npmResponse
	if err := c.getJSON(ctx, url, &out); err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(out.Versions))
	for v := range out.Versions {
		versions = append(versions, v)
	}
	return versions, nil
}

// DockerHubTags fetches the tag list for a Docker Hub repository
// (library images use the "library/<name>" namespace).
func (c *Client) DockerHubTags(ctx context.Context, repo string) ([]string, error) {
	ns := repo
	if !contains(repo, "/") {
		ns = "library/" + repo
	}
	url := fmt.Sprintf("https://hub.docker.com/v2/repositories/%s/tags?page_size=100", ns)
	var out dockerTagsResponse
	if err := c.getJSON(ctx, url, &out); err != nil {
		return nil, err
	}
	tags := make([]string, 0, len(out.Results))
	for _, r := range out.Results {
		tags = append(tags, r.Name)
	}
	return tags, nil
}

// getJSON performs a GET with exponential back-off on transient
// failures (ground: erigon's backoff.Retry wrapping around flaky RPC
// round trips) and decodes the body into dst with goccy/go-json.
// Failure here is an ExternalFailure (spec §7): recoverable locally,
// never fatal to the run.
func (c *Client) getJSON(ctx context.Context, url string, dst any) error {
	var body []byte

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		resp, err := c.HTTP.Do(req)
		if err != nil {
			return err // network error: retry
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("registry returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("registry returned %d", resp.StatusCode))
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		body = data
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return errs.New(errs.ExternalFailure, "", 0, "registry fetch failed for "+url, err)
	}
	return json.Unmarshal(body, dst)
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
