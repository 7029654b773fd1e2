// Package docsfetch implements the `docs` command's external fetcher
// (spec §6 "Documentation fetcher"): given a package/version, try a
// declared sequence of version-specific URL patterns, parse the
// response as DOM (never regex, per spec) and flatten it to markdown,
// then persist it under an append-only directory layout with a
// meta.json manifest (spec §8: "for every package/version fetched by
// docs, a meta.json exists and lists at least one source URL").
//
// DOM parsing is grounded on golang.org/x/net/html, the only pack
// dependency offering an HTML parser; no example repo carries an
// HTML-to-markdown converter, so the flattening walk below is
// hand-written (justified in DESIGN.md). Rate limiting is a manual
// time.Sleep floor between requests — golang.org/x/time/rate is not in
// the pack — matching the teacher's retry-sleep style in
// internal/db/db.go's withRetryTx.
package docsfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/TheAuditorTool/auditor/internal/errs"
)

// urlPatterns is the declared attempt order for version-specific
// documentation URLs (spec §6 verbatim).
var urlPatterns = []string{
	"/{version}/",
	"/en/{version}/",
	"/v{version}/",
	"/{major}.x/",
}

// Meta is the per-package-version manifest persisted alongside fetched
// markdown files (spec §6 "meta.json with source URLs, fetch
// timestamp, version, and file count").
type Meta struct {
	Ecosystem   string   `json:"ecosystem"`
	Package     string   `json:"package"`
	Version     string   `json:"version"`
	SourceURLs  []string `json:"source_urls"`
	FetchedAt   string   `json:"fetched_at"`
	FileCount   int      `json:"file_count"`
	FallbackDoc bool     `json:"fallback_single_file"`
}

// Fetcher retrieves documentation pages for a single base URL and
// writes them under root using the docs/{ecosystem}/{package}@{version}
// layout (spec §6).
type Fetcher struct {
	HTTP      *http.Client
	Root      string
	MinDelay  time.Duration
	MaxPages  int
	lastFetch time.Time
}

// New builds a Fetcher rooted at the given storage directory
// (typically "<project>/.pf/context/docs", spec §6's persisted layout).
func New(root string, maxPages int) *Fetcher {
	return &Fetcher{
		HTTP:     &http.Client{Timeout: 20 * time.Second},
		Root:     root,
		MinDelay: 500 * time.Millisecond,
		MaxPages: maxPages,
	}
}

// page is one fetched URL, reduced to a relative filename and its
// markdown body.
type page struct {
	name     string
	markdown string
}

// Fetch tries each declared URL pattern against baseURL in order until
// one responds successfully, then walks discoverable same-package links
// up to MaxPages, converts each to markdown, and persists the result.
// An ExternalFailure is returned (non-fatal to the caller, spec §7) if
// every pattern fails.
func (f *Fetcher) Fetch(ctx context.Context, ecosystem, pkg, version, baseURL string) (Meta, error) {
	candidates := candidateURLs(baseURL, version)

	var pages []page
	var sourceURLs []string
	fallback := false

	for _, url := range candidates {
		body, ferr := f.get(ctx, url)
		if ferr != nil {
			continue
		}
		md := htmlToMarkdown(body)
		if strings.TrimSpace(md) == "" {
			continue
		}
		pages = append(pages, page{name: "README.md", markdown: md})
		sourceURLs = append(sourceURLs, url)

		for _, link := range discoverLinks(body, url) {
			if len(pages) >= f.MaxPages {
				break
			}
			linkBody, lerr := f.get(ctx, link)
			if lerr != nil {
				continue
			}
			linkMD := htmlToMarkdown(linkBody)
			if strings.TrimSpace(linkMD) == "" {
				continue
			}
			pages = append(pages, page{name: pageFileName(link), markdown: linkMD})
			sourceURLs = append(sourceURLs, link)
		}
		break
	}

	if len(pages) == 0 {
		return Meta{}, errs.New(errs.ExternalFailure, "", 0,
			fmt.Sprintf("no documentation URL succeeded for %s/%s@%s", ecosystem, pkg, version), nil)
	}
	if len(pages) == 1 {
		fallback = true
	}

	dir := filepath.Join(f.Root, ecosystem, fmt.Sprintf("%s@%s", pkg, version))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Meta{}, fmt.Errorf("creating docs directory: %w", err)
	}
	for _, p := range pages {
		if err := os.WriteFile(filepath.Join(dir, p.name), []byte(p.markdown), 0o644); err != nil {
			return Meta{}, fmt.Errorf("writing %s: %w", p.name, err)
		}
	}

	meta := Meta{
		Ecosystem:   ecosystem,
		Package:     pkg,
		Version:     version,
		SourceURLs:  sourceURLs,
		FetchedAt:   timestamp(),
		FileCount:   len(pages),
		FallbackDoc: fallback,
	}
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return Meta{}, err
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), metaBytes, 0o644); err != nil {
		return Meta{}, fmt.Errorf("writing meta.json: %w", err)
	}
	return meta, nil
}

// candidateURLs expands the declared URL patterns against baseURL for
// version, appending baseURL itself as the final fallback (spec §6
// "... then fallbacks").
func candidateURLs(baseURL, version string) []string {
	major := version
	if i := strings.IndexByte(version, '.'); i >= 0 {
		major = version[:i]
	}
	trimmed := strings.TrimRight(baseURL, "/")

	out := make([]string, 0, len(urlPatterns)+1)
	for _, pat := range urlPatterns {
		p := strings.NewReplacer("{version}", version, "{major}", major).Replace(pat)
		out = append(out, trimmed+p)
	}
	out = append(out, trimmed+"/")
	return out
}

// get performs a single rate-limited GET, sleeping to enforce MinDelay
// between successive requests on this Fetcher (ground: teacher's
// withRetryTx sleep-between-attempts style, here applied between
// distinct page fetches instead of retries of the same request).
func (f *Fetcher) get(ctx context.Context, url string) (string, error) {
	if elapsed := time.Since(f.lastFetch); elapsed < f.MinDelay && !f.lastFetch.IsZero() {
		time.Sleep(f.MinDelay - elapsed)
	}
	f.lastFetch = time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%s returned %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func pageFileName(url string) string {
	name := filepath.Base(strings.TrimRight(url, "/"))
	if name == "" || name == "." || name == "/" {
		name = "page"
	}
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return name + ".md"
}

// timestamp returns the fetch time in RFC3339.
func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// htmlToMarkdown walks the parsed DOM and flattens it to a minimal
// markdown rendering: headings, paragraphs, list items, and fenced code
// blocks. It is not a general HTML-to-markdown converter; it covers the
// subset of structure that documentation sites consistently use.
func htmlToMarkdown(body string) string {
	node, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return ""
	}
	var b strings.Builder
	main := findMain(node)
	if main == nil {
		main = node
	}
	walk(main, &b, 0)
	return strings.TrimSpace(b.String())
}

// findMain prefers <main> or <article> over the full document so nav
// chrome and footers don't pollute the markdown output.
func findMain(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && (n.Data == "main" || n.Data == "article") {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findMain(c); found != nil {
			return found
		}
	}
	return nil
}

func walk(n *html.Node, b *strings.Builder, listDepth int) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "nav", "footer", "head":
			return
		case "h1", "h2", "h3", "h4", "h5", "h6":
			level := int(n.Data[1] - '0')
			b.WriteString("\n" + strings.Repeat("#", level) + " ")
			writeChildren(n, b, listDepth)
			b.WriteString("\n")
			return
		case "p":
			b.WriteString("\n")
			writeChildren(n, b, listDepth)
			b.WriteString("\n")
			return
		case "li":
			b.WriteString("\n" + strings.Repeat("  ", listDepth) + "- ")
			writeChildren(n, b, listDepth+1)
			return
		case "pre", "code":
			b.WriteString("\n```\n")
			writeText(n, b)
			b.WriteString("\n```\n")
			return
		case "a":
			writeChildren(n, b, listDepth)
			return
		case "br":
			b.WriteString("\n")
			return
		}
	}
	if n.Type == html.TextNode {
		text := strings.TrimSpace(n.Data)
		if text != "" {
			b.WriteString(text + " ")
		}
		return
	}
	writeChildren(n, b, listDepth)
}

func writeChildren(n *html.Node, b *strings.Builder, listDepth int) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, b, listDepth)
	}
}

func writeText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(c, b)
	}
}

// discoverLinks extracts same-origin, same-path-prefix anchor hrefs
// from body so a fetched index page can pull in a handful of adjacent
// pages (api reference, guides) without crawling the whole site.
func discoverLinks(body, baseURL string) []string {
	node, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil
	}
	prefix := baseURL[:strings.LastIndex(baseURL, "/")+1]
	var links []string
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				href := attr.Val
				if strings.HasPrefix(href, "#") || strings.Contains(href, "://") {
					continue
				}
				if strings.HasPrefix(href, "/") {
					continue // absolute-path links are treated as out of scope for discovery
				}
				links = append(links, prefix+href)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(node)
	return dedupeStrings(links)
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
