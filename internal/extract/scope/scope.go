// Package scope provides the two-pass function-scope map shared by
// every language extractor package (spec §4.2 "Function scope map").
// First pass collects (start_line, end_line) for every function/method
// definition; second pass maps a line to the innermost enclosing
// function, or the "global" sentinel for top-level code.
package scope

import "sort"

// Global is the sentinel scope name for top-level code.
const Global = "global"

// Func is one function/method's line range and name, as collected by
// the first pass.
type Func struct {
	Name      string
	StartLine int
	EndLine   int
}

// Map answers "which function encloses line L" queries. Built once per
// file and shared read-only across an extractor's sub-modules.
type Map struct {
	funcs []Func // sorted by StartLine, ties broken by widest range first
}

// NewMap builds a Map from an unsorted list of collected functions.
// Functions are sorted by start line, and for functions sharing a start
// line the innermost (smallest end_line) sorts last. Lookup picks the
// narrowest enclosing range itself, so this order only affects Funcs.
func NewMap(funcs []Func) *Map {
	sorted := make([]Func, len(funcs))
	copy(sorted, funcs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].StartLine != sorted[j].StartLine {
			return sorted[i].StartLine < sorted[j].StartLine
		}
		return sorted[i].EndLine > sorted[j].EndLine
	})
	return &Map{funcs: sorted}
}

// Lookup returns the innermost function enclosing line, or Global if
// line falls outside every declared function range.
func (m *Map) Lookup(line int) string {
	best := ""
	bestWidth := -1
	for _, f := range m.funcs {
		if line < f.StartLine || line > f.EndLine {
			continue
		}
		width := f.EndLine - f.StartLine
		if best == "" || width < bestWidth {
			best = f.Name
			bestWidth = width
		}
	}
	if best == "" {
		return Global
	}
	return best
}

// Funcs returns the collected function ranges in sorted order, for
// extractors (e.g. loop_complexity) that iterate functions directly
// rather than querying by line.
func (m *Map) Funcs() []Func {
	out := make([]Func, len(m.funcs))
	copy(out, m.funcs)
	return out
}
