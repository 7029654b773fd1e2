package analyze

import (
	"context"

	"github.com/TheAuditorTool/auditor/internal/store"
)

// dangerousCallee maps a callee name to the rule it trips and the
// severity of calling it unconditionally (spec §4.5 "pattern
// detectors, lint rules"). Keys are matched verbatim against
// calls.callee_name. The bundled extractors record only the final
// attribute or member name of a call (os.system(...) is stored as
// "system"), so the dotted keys match only rows whose callee_name
// holds the dotted form.
var dangerousCallee = map[string]struct {
	rule     string
	severity Severity
	message  string
}{
	"eval":               {"PTN001", SeverityHigh, "call to eval() on a possibly attacker-controlled string"},
	"exec":               {"PTN002", SeverityHigh, "call to exec() on a possibly attacker-controlled string"},
	"os.system":          {"PTN003", SeverityHigh, "shell command built via os.system"},
	"subprocess.call":    {"PTN004", SeverityMedium, "subprocess invocation without shell=False confirmation"},
	"subprocess.run":     {"PTN004", SeverityMedium, "subprocess invocation without shell=False confirmation"},
	"pickle.loads":       {"PTN005", SeverityHigh, "deserializing untrusted data with pickle.loads"},
	"yaml.load":          {"PTN006", SeverityMedium, "yaml.load without a safe Loader can execute arbitrary code"},
	"child_process.exec": {"PTN007", SeverityHigh, "Node child_process.exec with string command"},
}

// patternAnalyzer flags calls to known-dangerous functions (spec §4.5
// "pattern detectors ... lint rules"). It is the simplest analyzer:
// a signature match over the calls table, no cross-row reasoning.
type patternAnalyzer struct{}

// NewPatternAnalyzer builds the dangerous-call-signature analyzer.
func NewPatternAnalyzer() Analyzer { return patternAnalyzer{} }

func (patternAnalyzer) Name() string { return "patterns" }

func (patternAnalyzer) Run(ctx context.Context, rh *store.ReadHandle) ([]Finding, error) {
	rows, err := rh.Query(`SELECT file, line, callee_name FROM calls`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var findings []Finding
	for rows.Next() {
		var file, callee string
		var line int
		if err := rows.Scan(&file, &line, &callee); err != nil {
			return nil, err
		}
		rule, ok := dangerousCallee[callee]
		if !ok {
			continue
		}
		findings = append(findings, Finding{
			RuleID: rule.rule, Severity: rule.severity,
			File: file, Line: line, Message: rule.message,
			Evidence: callee, Analyzer: "patterns",
		})
	}
	return findings, rows.Err()
}
