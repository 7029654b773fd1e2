package analyze

import (
	"context"

	"github.com/TheAuditorTool/auditor/internal/semver"
	"github.com/TheAuditorTool/auditor/internal/store"
)

// depsAnalyzer reads dependency_manifests rows and flags outdated- or
// vulnerable-shaped entries by structural evidence alone — no network
// access inside the analyzer (spec §4.5 expansion: "network lives in
// the deps command's fetch step"). The `deps --check-latest` CLI
// command layers a registry-backed pass on top of these same rows.
type depsAnalyzer struct{}

// NewDepsAnalyzer builds the dependency-manifest analyzer.
func NewDepsAnalyzer() Analyzer { return depsAnalyzer{} }

func (depsAnalyzer) Name() string { return "deps" }

func (depsAnalyzer) Run(ctx context.Context, rh *store.ReadHandle) ([]Finding, error) {
	rows, err := rh.Query(`SELECT file, manager, name, version_constraint FROM dependency_manifests`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var findings []Finding
	for rows.Next() {
		var file, manager, name, constraint string
		if err := rows.Scan(&file, &manager, &name, &constraint); err != nil {
			return nil, err
		}
		findings = append(findings, checkConstraint(file, manager, name, constraint)...)
	}
	return findings, rows.Err()
}

func checkConstraint(file, manager, name, constraint string) []Finding {
	var out []Finding

	switch manager {
	case "docker":
		if semver.IsMetaTag(constraint) {
			out = append(out, Finding{
				RuleID: "DEP001", Severity: SeverityMedium,
				File: file, Message: "container base image pinned to a non-reproducible meta tag",
				Evidence: name + ":" + constraint, Analyzer: "deps",
			})
			return out
		}
		if v, ok := semver.ParseContainerTag(constraint); ok && v.Stability() == semver.PreRelease {
			out = append(out, Finding{
				RuleID: "DEP002", Severity: SeverityLow,
				File: file, Message: "container base image pinned to a pre-release tag",
				Evidence: name + ":" + constraint, Analyzer: "deps",
			})
		}
	default:
		if constraint == "" || constraint == "*" {
			out = append(out, Finding{
				RuleID: "DEP003", Severity: SeverityMedium,
				File: file, Message: "dependency has no version constraint; resolution is non-reproducible",
				Evidence: name, Analyzer: "deps",
			})
			return out
		}
		if v, ok := semver.ParsePackageVersion(stripOperators(constraint)); ok && v.Stability() == semver.PreRelease {
			out = append(out, Finding{
				RuleID: "DEP004", Severity: SeverityLow,
				File: file, Message: "dependency pinned to a pre-release version",
				Evidence: name + " " + constraint, Analyzer: "deps",
			})
		}
	}
	return out
}

// stripOperators removes a leading comparison operator ("==", ">=",
// "~=", ...) so the remainder can be handed to semver.ParsePackageVersion.
func stripOperators(constraint string) string {
	for _, op := range []string{"==", ">=", "<=", "~=", "!=", ">", "<"} {
		if len(constraint) > len(op) && constraint[:len(op)] == op {
			return constraint[len(op):]
		}
	}
	return constraint
}
