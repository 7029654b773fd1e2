package taint

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/TheAuditorTool/auditor/internal/store"
)

// Engine runs the two-stage taint propagator over a read-only Fact
// Store. Ground: codenerd's golang.org/x/sync usage (errgroup +
// semaphore) for bounded fan-out, repurposed here from "parse N files
// concurrently" to "process N taint sources concurrently" (spec §5:
// "multiple sources may be processed in parallel, each with its own
// worklist").
type Engine struct {
	cfg Config
}

// New builds an Engine with cfg. Callers needing the values named
// directly in the spec should pass DefaultConfig().
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Run loads the facts the worklist needs from rh, then processes every
// declared taint source through Stage B — which runs Stage A's
// flow-insensitive semantics directly for any function it has no
// liveness data for, per spec §4.6's "Missing CFG metadata: fall back
// to Stage A for that function" — deduplicating findings per the
// "(source_site, sink_site, call_stack)" policy. Cancellation via ctx
// stops dispatching new sources and returns whatever findings were
// already collected, never an error — a cancelled taint pass is a
// partial report, not a failure (spec §5).
func (e *Engine) Run(ctx context.Context, rh *store.ReadHandle) ([]Finding, error) {
	m, err := loadModel(rh)
	if err != nil {
		return nil, err
	}

	concurrency := e.cfg.SourceConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := semaphore.NewWeighted(int64(concurrency))
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var all []Finding
	var logged sync.Map

	for _, src := range m.sources {
		src := src
		select {
		case <-ctx.Done():
			break
		default:
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			select {
			case <-gctx.Done():
				return nil
			default:
			}
			found := runStageB(m, src, e.cfg, &logged)
			mu.Lock()
			all = append(all, found...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return dedupe(all), nil
}

// dedupe enforces the "(source_site, sink_site, call_stack)" policy
// exactly: findings that share source and sink but reach it through a
// different call stack are kept, never collapsed (spec: "older
// implementations that deduplicated on (source_site, sink_site) alone
// are explicitly rejected").
func dedupe(findings []Finding) []Finding {
	type key struct {
		sourceFile, sourceFunc, sourceVar string
		sourceLine                        int
		sinkFile, sinkFunc, sinkVar       string
		sinkLine                          int
		stack                             string
	}
	seen := make(map[key]struct{}, len(findings))
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		k := key{
			sourceFile: f.Source.File, sourceFunc: f.Source.Function, sourceVar: f.Source.VarName, sourceLine: f.Source.Line,
			sinkFile: f.Sink.File, sinkFunc: f.Sink.Function, sinkVar: f.Sink.VarName, sinkLine: f.Sink.Line,
			stack: f.CallStack.key(),
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, f)
	}
	return out
}
