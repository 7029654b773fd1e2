package analyze

import (
	"context"

	"github.com/TheAuditorTool/auditor/internal/store"
)

// complexityAnalyzer reads loop_complexity and state_mutations rows and
// flags hotspots (spec §4.5 expansion: "reads loop_complexity/
// state_mutations rows and flags hotspots").
type complexityAnalyzer struct{}

// NewComplexityAnalyzer builds the hotspot analyzer.
func NewComplexityAnalyzer() Analyzer { return complexityAnalyzer{} }

func (complexityAnalyzer) Name() string { return "complexity" }

// maxNestedLoopDepth or deeper is flagged as a complexity hotspot;
// chosen to catch triple-nested-and-deeper loops without flagging the
// common double-nested case.
const maxNestedLoopDepth = 3

// mutationHotspotThreshold is the number of non-constructor state
// mutations on the same target within one file that marks unexpected
// churn rather than ordinary field updates.
const mutationHotspotThreshold = 5

func (complexityAnalyzer) Run(ctx context.Context, rh *store.ReadHandle) ([]Finding, error) {
	var findings []Finding

	loopFindings, err := loopHotspots(rh)
	if err != nil {
		return nil, err
	}
	findings = append(findings, loopFindings...)

	mutationFindings, err := mutationHotspots(rh)
	if err != nil {
		return nil, err
	}
	findings = append(findings, mutationFindings...)

	return findings, nil
}

func loopHotspots(rh *store.ReadHandle) ([]Finding, error) {
	rows, err := rh.Query(`SELECT file, line, function_name, depth FROM loop_complexity WHERE depth >= ?`, maxNestedLoopDepth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Finding
	for rows.Next() {
		var file, fn string
		var line, depth int
		if err := rows.Scan(&file, &line, &fn, &depth); err != nil {
			return nil, err
		}
		out = append(out, Finding{
			RuleID: "CPX001", Severity: SeverityMedium,
			File: file, Line: line,
			Message:  "deeply nested loop may indicate quadratic-or-worse complexity",
			Evidence: fn, Analyzer: "complexity",
		})
	}
	return out, rows.Err()
}

func mutationHotspots(rh *store.ReadHandle) ([]Finding, error) {
	rows, err := rh.Query(`
		SELECT file, target, MIN(line) AS first_line
		FROM state_mutations
		WHERE is_init = 0 AND is_property_setter = 0 AND is_dunder_method = 0
		GROUP BY file, target
		HAVING COUNT(*) >= ?`, mutationHotspotThreshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Finding
	for rows.Next() {
		var file, target string
		var line int
		if err := rows.Scan(&file, &target, &line); err != nil {
			return nil, err
		}
		out = append(out, Finding{
			RuleID: "CPX002", Severity: SeverityLow,
			File: file, Line: line,
			Message:  "state-mutation hotspot outside construction or accessors",
			Evidence: target, Analyzer: "complexity",
		})
	}
	return out, rows.Err()
}
