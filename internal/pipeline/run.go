package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/TheAuditorTool/auditor/internal/detect"
	"github.com/TheAuditorTool/auditor/internal/errs"
	"github.com/TheAuditorTool/auditor/internal/extract"
	"github.com/TheAuditorTool/auditor/internal/extract/golang"
	"github.com/TheAuditorTool/auditor/internal/extract/iac"
	"github.com/TheAuditorTool/auditor/internal/extract/javascript"
	"github.com/TheAuditorTool/auditor/internal/extract/manifest"
	"github.com/TheAuditorTool/auditor/internal/extract/python"
	"github.com/TheAuditorTool/auditor/internal/extract/typescript"
	"github.com/TheAuditorTool/auditor/internal/logging"
	"github.com/TheAuditorTool/auditor/internal/normalize"
	"github.com/TheAuditorTool/auditor/internal/store"
)

// Result is the outcome of a full index run: the normalizer's receipt
// plus the non-fatal error records collected along the way (spec §7).
type Result struct {
	Receipt   normalize.Receipt
	Errors    *errs.Collector
	Cancelled bool
}

// Run executes the full index pipeline: walk, extract per file,
// normalize, flush (spec §2). A ContractViolation from the store
// aborts immediately per spec §7's propagation policy; every other
// error kind is collected and the pipeline continues.
func Run(ctx context.Context, s *store.Store, scope Scope) (Result, error) {
	log := logging.Default()
	collector := &errs.Collector{}

	w := NewWalker(scope.Workers)
	discovered := w.Walk(ctx, scope)

	var files []WalkResult
	for r := range discovered {
		if r.Err != nil {
			collector.Add(errs.New(errs.ParseFailure, r.Path, 0, r.Err.Error(), r.Err))
			continue
		}
		files = append(files, r)
	}

	select {
	case <-ctx.Done():
		return Result{Cancelled: true, Errors: collector}, nil
	default:
	}

	project := detect.Project{}
	for _, f := range files {
		rel := relPath(scope.Root, f.Path)
		project.Files = append(project.Files, rel)
		if manifest.Detect(f.Path) {
			project.Manifests = append(project.Manifests, detect.Manifest{Path: rel, Content: string(f.Content)})
		}
	}
	signals := detect.Detect(project)

	buffers, cancelled := extractAll(ctx, scope, files, signals, collector)
	if cancelled {
		return Result{Cancelled: true, Errors: collector}, nil
	}

	n := normalize.New(s, scope.Root)
	receipt, err := n.Flush(buffers)
	if err != nil {
		log.Errorw("normalize flush failed", "error", err)
		return Result{}, err
	}

	return Result{Receipt: receipt, Errors: collector}, nil
}

// extractionResult is one file's finished extraction, handed back over
// a channel so the main goroutine can assemble normalize.Buffers and
// the error collector without a shared mutex on either.
type extractionResult struct {
	rel string
	out extract.Output
	err error
}

// extractAll fans extraction of distinct files out across a worker
// pool, mirroring Walker.Walk's channel-and-waitgroup shape (spec §5:
// "extraction of distinct files is independent and parallelized by a
// worker pool. Each worker owns its per-file staging buffer; no shared
// mutable state."). Workers hand their finished extractionResult to a
// buffered channel; only the caller goroutine writes into buffers or
// the collector, so no lock is needed there either.
func extractAll(ctx context.Context, scope Scope, files []WalkResult, signals extract.Signals, collector *errs.Collector) (normalize.Buffers, bool) {
	workers := scope.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	jobs := make(chan WalkResult)
	results := make(chan extractionResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				results <- extractOne(ctx, scope, f, signals)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, f := range files {
			select {
			case <-ctx.Done():
				return
			case jobs <- f:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	buffers := make(normalize.Buffers, len(files))
	for r := range results {
		if r.err != nil {
			collector.Add(errs.New(errs.ParseFailure, r.rel, 0, r.err.Error(), r.err))
			continue
		}
		if r.out != nil {
			buffers[r.rel] = r.out
		}
	}

	select {
	case <-ctx.Done():
		return buffers, true
	default:
		return buffers, false
	}
}

// extractOne runs one file's extractor (plus the manifest sub-pass when
// the file looks like a dependency manifest) and reports the result
// without touching any state another worker might also touch.
func extractOne(ctx context.Context, scope Scope, f WalkResult, signals extract.Signals) extractionResult {
	rel := relPath(scope.Root, f.Path)
	fi := extract.FileInfo{Path: rel, Language: f.Language, ContentHash: contentHash(f.Content)}

	out, err := extractFile(ctx, fi, f.Content, signals)
	if err != nil {
		return extractionResult{rel: rel, err: err}
	}
	if manifest.Detect(f.Path) {
		manOut, _ := manifest.Extract(fi, f.Content)
		if out == nil {
			out = manOut
		} else {
			for k, v := range manOut {
				out[k] = append(out[k], v...)
			}
		}
	}
	return extractionResult{rel: rel, out: out}
}

// extractFile dispatches to the per-language extractor by fi.Language.
// Ground: spec §9 "Eliminating the registry-style dispatch" — this is
// a direct switch, not a reflective lookup table.
func extractFile(ctx context.Context, fi extract.FileInfo, content []byte, sig extract.Signals) (extract.Output, error) {
	switch fi.Language {
	case "go":
		tree, err := extract.Parse(ctx, golang.Language(), "go", content)
		if err != nil {
			return nil, err
		}
		return golang.Extract(fi, tree, sig)
	case "python":
		tree, err := extract.Parse(ctx, python.Language(), "python", content)
		if err != nil {
			return nil, err
		}
		return python.Extract(fi, tree, sig)
	case "javascript":
		tree, err := extract.Parse(ctx, javascript.Language(), "javascript", content)
		if err != nil {
			return nil, err
		}
		return javascript.Extract(fi, tree, sig)
	case "typescript":
		tree, err := extract.Parse(ctx, typescript.Language(), "typescript", content)
		if err != nil {
			return nil, err
		}
		return typescript.Extract(fi, tree, sig)
	case "iac":
		return iac.Extract(fi, content)
	default:
		return nil, nil
	}
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func contentHash(content []byte) string {
	// FNV-1a, not crypto/sha256: the hash only needs to detect content
	// drift between runs, not resist adversarial collision.
	var h uint64 = 14695981039346656037
	for _, b := range content {
		h ^= uint64(b)
		h *= 1099511628211
	}
	return fmt.Sprintf("%016x", h)
}
