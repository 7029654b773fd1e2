// Package analyze implements the Analyzer Framework (spec §4.5):
// stateless, read-only passes over the Fact Store that each produce a
// set of Findings. Ground: no direct teacher analogue (morfx has no
// analyzer layer), built in the style of the taint engine's own
// read-only ReadHandle consumption and codenerd's errgroup-based
// concurrent-but-internally-single-threaded fan-out.
package analyze

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/TheAuditorTool/auditor/internal/errs"
	"github.com/TheAuditorTool/auditor/internal/store"
)

// Severity classifies a Finding's importance. Ordered low to high so a
// caller can filter with a single comparison.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	case SeverityLow:
		return "low"
	default:
		return "info"
	}
}

// Finding is one structured result emitted by an Analyzer (spec §4.5
// "a set of findings (structured records with severity, location, rule
// id, evidence)").
type Finding struct {
	RuleID   string   `json:"rule_id"`
	Severity Severity `json:"severity"`
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Message  string   `json:"message"`
	Evidence string   `json:"evidence,omitempty"`
	Analyzer string   `json:"analyzer"`
}

// Analyzer is a single stateless pass over the read-only Fact Store
// (spec §4.5 contract): pure, deterministic, no writes back into
// extracted tables.
type Analyzer interface {
	Name() string
	Run(ctx context.Context, rh *store.ReadHandle) ([]Finding, error)
}

// Report is the aggregate result of running every registered analyzer:
// findings in stable sort order plus the set of analyzers that failed
// (spec §7 AnalysisFailure: "the specific analyzer is marked failed in
// the report; other analyzers continue").
type Report struct {
	Findings []Finding
	Failed   []string
	Errors   *errs.Collector
}

// Default returns every built-in analyzer (spec §4.5 breadth beyond the
// taint engine, SPEC_FULL §4.5 expansion).
func Default() []Analyzer {
	return []Analyzer{
		NewPatternAnalyzer(),
		NewDepsAnalyzer(),
		NewComplexityAnalyzer(),
		NewIACAnalyzer(),
	}
}

// Run executes every analyzer in analyzers concurrently
// (golang.org/x/sync/errgroup, ground: codenerd's x/sync dependency —
// spec §5 "different analyzers may execute concurrently"), each
// internally single-threaded. A panic or error from one analyzer is
// recorded as AnalysisFailure and does not stop the others (spec §7).
func Run(ctx context.Context, rh *store.ReadHandle, analyzers []Analyzer) Report {
	type result struct {
		name     string
		findings []Finding
		err      error
	}

	results := make([]result, len(analyzers))
	g, gctx := errgroup.WithContext(ctx)

	for i, a := range analyzers {
		i, a := i, a
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					results[i] = result{name: a.Name(), err: errs.New(errs.AnalysisFailure, "", 0, "panic in analyzer", nil)}
				}
			}()
			findings, runErr := a.Run(gctx, rh)
			results[i] = result{name: a.Name(), findings: findings, err: runErr}
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Errors: errs.NewCollector()}
	for _, r := range results {
		if r.err != nil {
			report.Failed = append(report.Failed, r.name)
			report.Errors.Add(errs.New(errs.AnalysisFailure, "", 0, r.name+": "+r.err.Error(), r.err))
			continue
		}
		report.Findings = append(report.Findings, r.findings...)
	}

	sortFindings(report.Findings)
	return report
}

// sortFindings applies the stable sort key from spec §5 "Ordering
// guarantees": (rule id, file, line).
func sortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})
}
