package taint

import (
	"sort"
	"strings"
	"sync"

	"github.com/TheAuditorTool/auditor/internal/logging"
)

// itemB is one Stage B worklist entry. Unlike Stage A's single-variable
// item, Stage B's state tracks every variable simultaneously tainted
// within the current function (spec §4.6: "(file, function, frozenset
// of tainted vars)"), each mapped to the line it became tainted on —
// the data matchSinksB needs for its straight-line liveness check.
type itemB struct {
	File, Function string
	Vars           map[string]int
	Depth          int
	Path           Signature
	Source         Site
}

// stateB is the Stage B visited-map key: the frozenset of tainted
// variable names, represented as their sorted, joined names since Go
// has no frozenset (spec: "(file, function, frozenset(tainted_vars))").
type stateB struct {
	File, Function, VarsKey string
}

func varsKey(vars map[string]int) string {
	names := make([]string, 0, len(vars))
	for v := range vars {
		names = append(names, v)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func cloneVars(vars map[string]int) map[string]int {
	out := make(map[string]int, len(vars)+1)
	for k, v := range vars {
		out[k] = v
	}
	return out
}

func anyRead(vars map[string]int, read []string) bool {
	if _, ok := vars[anyVar]; ok {
		return true
	}
	for v := range vars {
		if containsVar(read, v) {
			return true
		}
	}
	return false
}

// cfgAvailable reports whether Stage B can refine a function beyond
// Stage A: it can whenever the model has at least one assignment or
// return recorded for that function, the data matchSinksB's liveness
// check consults. A function with neither (an extern declaration, a
// stub, or a one-liner the extractor saw no assignments in) has
// nothing to prune against, so Stage B reports it unavailable and
// falls back to Stage A's flow-insensitive result for that one
// function — not for the whole engine (SPEC_FULL §4.6).
func cfgAvailable(m *model, file, function string) bool {
	key := scopeKey{file, function}
	return len(m.assignmentsByScope[key]) > 0 || len(m.returnsByScope[key]) > 0
}

// runStageB executes Stage B for one seed source. Where cfgAvailable
// reports true it runs its own worklist with liveness-pruned sink
// matching (matchSinksB); otherwise it falls back to Stage A's result
// for that function, logging the fallback once.
func runStageB(m *model, seed Site, cfg Config, logged *sync.Map) []Finding {
	if !cfgAvailable(m, seed.File, seed.Function) {
		key := scopeKey{seed.File, seed.Function}
		if _, already := logged.LoadOrStore(key, true); !already {
			logging.Default().Debugw("taint: no assignment/return facts, Stage B falling back to Stage A", "file", seed.File, "function", seed.Function)
		}
		return runStageA(m, seed, cfg)
	}

	visited := map[stateB]*sigSet{}
	truncated := map[stateB]bool{}

	var findings []Finding
	queue := []itemB{{
		File: seed.File, Function: seed.Function,
		Vars: map[string]int{seed.VarName: seed.Line},
		Depth: 0, Source: seed,
	}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		key := stateB{item.File, item.Function, varsKey(item.Vars)}
		set, ok := visited[key]
		if !ok {
			set = newSigSet()
			visited[key] = set
		}
		sig := item.Path.key()
		added := set.tryAdd(sig, cfg.MaxSignaturesPerState, func() {
			if !truncated[key] {
				truncated[key] = true
				logging.Default().Debugw("taint: stage B signature cap reached, truncating", "file", item.File, "function", item.Function)
			}
		})
		if !added && sig != "" {
			continue
		}

		findings = append(findings, matchSinksB(m, item)...)

		if item.Depth >= cfg.MaxDepth {
			continue
		}

		queue = append(queue, propagateAssignmentsB(m, item)...)
		calls, unresolved := propagateCallsB(m, item, cfg)
		queue = append(queue, calls...)
		findings = append(findings, unresolved...)
		queue = append(queue, propagateReturnsB(m, item, cfg)...)
	}

	return findings
}

// unresolvedCalleeFindingB is propagateCallsB's equivalent of Stage
// A's unresolvedCalleeFinding: Stage B's item carries a Vars set
// instead of a single Var, so the preserved-hop Site reports whichever
// tainted name triggered the argument match.
func unresolvedCalleeFindingB(item itemB, arg argument, taintedVar string, cfg Config) Finding {
	frame := CallFrame{File: item.File, Function: item.Function, Line: arg.Line}
	return Finding{
		Source: item.Source,
		Sink: Site{
			File: item.File, Function: item.Function, Line: arg.Line,
			VarName: taintedVar, Kind: unresolvedCalleeKind,
		},
		CallStack:        appendFrame(item.Path, frame, cfg.MaxDepth),
		CalleeUnresolved: true,
	}
}

// matchSinksB matches a sink whose variable is tainted in item.Vars and
// live: no assignment to that variable kills it (overwrites it without
// reading its own old value back) strictly between the line it became
// tainted and the sink's line, in physical source order. This is the
// pruning Stage A cannot do — Stage A keeps matching a sink long after
// straight-line code has overwritten the variable it names.
func matchSinksB(m *model, item itemB) []Finding {
	var out []Finding
	for _, sink := range m.sinks {
		if sink.File != item.File || sink.Function != item.Function {
			continue
		}
		if introLine, ok := item.Vars[sink.VarName]; ok {
			if killedBetween(m, item.File, item.Function, sink.VarName, introLine, sink.Line) {
				continue
			}
			out = append(out, Finding{Source: item.Source, Sink: sink, CallStack: item.Path})
			continue
		}
		if _, ok := item.Vars[anyVar]; ok {
			out = append(out, Finding{Source: item.Source, Sink: sink, CallStack: item.Path})
		}
	}
	return out
}

// killedBetween reports whether varName is reassigned to an expression
// that does not itself read varName back — a straight-line kill —
// strictly between fromLine and toLine in the same function. This is
// the only control-flow reasoning Stage B does: physical line order,
// no branch or loop back-edge awareness (SPEC_FULL §4.6).
func killedBetween(m *model, file, function, varName string, fromLine, toLine int) bool {
	if varName == anyVar {
		return false
	}
	lo, hi := fromLine, toLine
	if lo > hi {
		lo, hi = hi, lo
	}
	for _, a := range m.assignmentsByScope[scopeKey{file, function}] {
		if a.LHS != varName || a.Line <= lo || a.Line >= hi {
			continue
		}
		if containsVar(a.VarsRead, varName) {
			continue
		}
		return true
	}
	return false
}

func propagateAssignmentsB(m *model, item itemB) []itemB {
	var out []itemB
	for _, a := range m.assignmentsByScope[scopeKey{item.File, item.Function}] {
		if !anyRead(item.Vars, a.VarsRead) {
			continue
		}
		if existing, ok := item.Vars[a.LHS]; ok && existing <= a.Line {
			continue
		}
		next := cloneVars(item.Vars)
		next[a.LHS] = a.Line
		out = append(out, itemB{File: item.File, Function: item.Function, Vars: next, Depth: item.Depth + 1, Path: item.Path, Source: item.Source})
	}
	return out
}

// propagateCallsB mirrors Stage A's propagateCalls: bind the specific
// parameter a tainted argument reaches when the callee's params_json
// covers that position, falling back to anyVar otherwise.
func propagateCallsB(m *model, item itemB, cfg Config) ([]itemB, []Finding) {
	var out []itemB
	var unresolved []Finding
	for _, arg := range m.argumentsByCaller[scopeKey{item.File, item.Function}] {
		if !anyRead(item.Vars, arg.VarsRead) {
			continue
		}
		if !arg.CalleeResolved {
			// callee_unresolved=true hop: preserved as evidence, not
			// propagated (spec failure mode 3).
			unresolved = append(unresolved, unresolvedCalleeFindingB(item, arg, matchingVar(item.Vars, arg.VarsRead), cfg))
			continue
		}
		if !m.functionExists[calleeKey{item.File, arg.CalleeName}] {
			continue
		}
		frame := CallFrame{File: item.File, Function: item.Function, Line: arg.Line}
		if recursionCount(item.Path, frame) >= cfg.MaxRecursionDepth {
			continue
		}
		bound := bindCalleeVar(m, item.File, arg.CalleeName, arg.Position)
		out = append(out, itemB{
			File: item.File, Function: arg.CalleeName, Vars: map[string]int{bound: 0},
			Depth: item.Depth + 1, Path: appendFrame(item.Path, frame, cfg.MaxDepth),
			Source: item.Source,
		})
	}
	return out, unresolved
}

// matchingVar returns whichever name in vars triggered the anyRead
// match against read — the anyVar sentinel if that is what matched,
// otherwise the alphabetically first tainted name that read contains,
// so the choice does not depend on map iteration order.
func matchingVar(vars map[string]int, read []string) string {
	if _, ok := vars[anyVar]; ok {
		return anyVar
	}
	best := ""
	for v := range vars {
		if containsVar(read, v) && (best == "" || v < best) {
			best = v
		}
	}
	return best
}

func propagateReturnsB(m *model, item itemB, cfg Config) []itemB {
	var out []itemB
	returns := m.returnsByScope[scopeKey{item.File, item.Function}]
	tainted := false
	for _, r := range returns {
		if anyRead(item.Vars, r.VarsRead) {
			tainted = true
			break
		}
	}
	if !tainted {
		return nil
	}
	for _, call := range m.callsByCallee[calleeKey{item.File, item.Function}] {
		frame := CallFrame{File: item.File, Function: item.Function, Line: call.Line}
		if recursionCount(item.Path, frame) >= cfg.MaxRecursionDepth {
			continue
		}
		for _, a := range m.assignmentsByScope[scopeKey{call.File, call.CallerSymbol}] {
			if a.Line != call.Line {
				continue
			}
			out = append(out, itemB{
				File: call.File, Function: call.CallerSymbol, Vars: map[string]int{a.LHS: a.Line},
				Depth: item.Depth + 1, Path: appendFrame(item.Path, frame, cfg.MaxDepth),
				Source: item.Source,
			})
		}
	}
	return out
}
