package taint

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/TheAuditorTool/auditor/internal/logging"
)

// itemA is one Stage A worklist entry (spec §4.6: "(current_var,
// current_function, current_file, depth, call_path, call_signature)").
// call_path and call_signature are tracked as a single Signature here:
// both are built identically, by appending a CallFrame at every
// cross-function hop, so carrying two copies would only duplicate
// state without changing behavior.
type itemA struct {
	File, Function, Var string
	Depth                int
	Path                 Signature
	Source               Site
}

// stateA is the Stage A visited-map key (spec: "(file, function, var)").
type stateA struct {
	File, Function, Var string
}

// sigSet is the per-state set of call-stack signatures already
// processed, capped at cfg.MaxSignaturesPerState with earliest-first
// retention (spec invariant 2).
type sigSet struct {
	set   mapset.Set[string]
	order []string
}

func newSigSet() *sigSet {
	return &sigSet{set: mapset.NewThreadUnsafeSet[string]()}
}

// tryAdd reports whether sig was newly added. Once the cap is reached
// the set stops accepting new signatures — the retained ones are
// whichever were encountered first in traversal order, matching the
// "unbounded fan-out" failure mode exactly.
func (s *sigSet) tryAdd(sig string, cap int, onTruncate func()) bool {
	if s.set.Contains(sig) {
		return false
	}
	if s.set.Cardinality() >= cap {
		onTruncate()
		return false
	}
	s.set.Add(sig)
	s.order = append(s.order, sig)
	return true
}

// runStageA executes the flow-insensitive worklist for one seed source
// and returns every distinct (source, sink, call_stack) finding it
// reaches.
func runStageA(m *model, seed Site, cfg Config) []Finding {
	visited := map[stateA]*sigSet{}
	truncated := map[stateA]bool{}

	var findings []Finding
	queue := []itemA{{File: seed.File, Function: seed.Function, Var: seed.VarName, Depth: 0, Source: seed}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		key := stateA{item.File, item.Function, item.Var}
		set, ok := visited[key]
		if !ok {
			set = newSigSet()
			visited[key] = set
		}
		sig := item.Path.key()
		added := set.tryAdd(sig, cfg.MaxSignaturesPerState, func() {
			if !truncated[key] {
				truncated[key] = true
				logging.Default().Debugw("taint: signature cap reached, truncating", "file", item.File, "function", item.Function, "var", item.Var)
			}
		})
		if !added && sig != "" {
			// Re-processing the exact same (state, signature) pair a
			// second time would loop forever on a cycle; a brand new
			// signature at the same state is still processed in full
			// (invariant 1).
			continue
		}

		findings = append(findings, matchSinks(m, item)...)

		if item.Depth >= cfg.MaxDepth {
			continue
		}

		queue = append(queue, propagateAssignments(m, item)...)
		calls, unresolved := propagateCalls(m, item, cfg)
		queue = append(queue, calls...)
		findings = append(findings, unresolved...)
		queue = append(queue, propagateReturns(m, item, cfg)...)
	}

	return findings
}

// unresolvedCalleeKind tags the evidence Finding emitted when taint
// reaches a call whose callee could not be resolved statically (a
// dynamic call or reflection) — spec §4.6 failure mode 3: "the hop is
// recorded with callee_unresolved=true; propagation does not continue
// through it but the record is preserved for report evidence."
const unresolvedCalleeKind = "unresolved_callee"

// unresolvedCalleeFinding builds the preserved-hop evidence record for
// a tainted argument reaching a callee that CalleeResolved=false marks
// unresolved. The "sink" here is not a real sink — Site.Kind makes
// that explicit to report consumers — it is the call site itself,
// standing in for the hop the engine could not follow further.
func unresolvedCalleeFinding(item itemA, arg argument, cfg Config) Finding {
	frame := CallFrame{File: item.File, Function: item.Function, Line: arg.Line}
	return Finding{
		Source: item.Source,
		Sink: Site{
			File: item.File, Function: item.Function, Line: arg.Line,
			VarName: item.Var, Kind: unresolvedCalleeKind,
		},
		CallStack:        appendFrame(item.Path, frame, cfg.MaxDepth),
		CalleeUnresolved: true,
	}
}

func matchSinks(m *model, item itemA) []Finding {
	var out []Finding
	for _, sink := range m.sinks {
		if sink.File != item.File || sink.Function != item.Function {
			continue
		}
		if item.Var != anyVar && sink.VarName != item.Var {
			continue
		}
		out = append(out, Finding{Source: item.Source, Sink: sink, CallStack: item.Path})
	}
	return out
}

func propagateAssignments(m *model, item itemA) []itemA {
	var out []itemA
	for _, a := range m.assignmentsByScope[scopeKey{item.File, item.Function}] {
		if item.Var != anyVar && !containsVar(a.VarsRead, item.Var) {
			continue
		}
		out = append(out, itemA{File: item.File, Function: item.Function, Var: a.LHS, Depth: item.Depth + 1, Path: item.Path, Source: item.Source})
	}
	return out
}

// propagateCalls implements forward, inter-procedural argument flow: a
// tainted argument reaching a resolved, same-file callee taints the
// specific parameter it binds to by position (bindCalleeVar), falling
// back to the anyVar sentinel (whole-callee taint) only when the
// callee has no recorded parameter list for that position (DESIGN.md
// Open Question decision 5).
func propagateCalls(m *model, item itemA, cfg Config) ([]itemA, []Finding) {
	var out []itemA
	var unresolved []Finding
	for _, arg := range m.argumentsByCaller[scopeKey{item.File, item.Function}] {
		if item.Var != anyVar && !containsVar(arg.VarsRead, item.Var) {
			continue
		}
		if !arg.CalleeResolved {
			// callee_unresolved=true hop: preserved as evidence, not
			// propagated (spec failure mode 3).
			unresolved = append(unresolved, unresolvedCalleeFinding(item, arg, cfg))
			continue
		}
		if !m.functionExists[calleeKey{item.File, arg.CalleeName}] {
			continue // cross-file call: out of scope (DESIGN.md Open Question 2)
		}
		frame := CallFrame{File: item.File, Function: item.Function, Line: arg.Line}
		if recursionCount(item.Path, frame) >= cfg.MaxRecursionDepth {
			continue
		}
		out = append(out, itemA{
			File: item.File, Function: arg.CalleeName, Var: bindCalleeVar(m, item.File, arg.CalleeName, arg.Position),
			Depth: item.Depth + 1, Path: appendFrame(item.Path, frame, cfg.MaxDepth),
			Source: item.Source,
		})
	}
	return out, unresolved
}

// propagateReturns implements backward return flow: a tainted return
// from the current function taints whatever variable the caller
// assigns on the same source line as the call (the structural
// approximation for "lhs = callee(...)" — the extraction contract
// records no direct call-to-assignment link, so same-line correlation
// stands in for it).
func propagateReturns(m *model, item itemA, cfg Config) []itemA {
	var out []itemA
	returns := m.returnsByScope[scopeKey{item.File, item.Function}]
	tainted := false
	for _, r := range returns {
		if item.Var == anyVar || containsVar(r.VarsRead, item.Var) {
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
			out = append(out, itemA{
				File: call.File, Function: call.CallerSymbol, Var: a.LHS,
				Depth: item.Depth + 1, Path: appendFrame(item.Path, frame, cfg.MaxDepth),
				Source: item.Source,
			})
		}
	}
	return out
}

func appendFrame(path Signature, frame CallFrame, maxDepth int) Signature {
	out := make(Signature, len(path), len(path)+1)
	copy(out, path)
	out = append(out, frame)
	if len(out) > maxDepth+1 {
		out = out[len(out)-(maxDepth+1):]
	}
	return out
}

func recursionCount(path Signature, frame CallFrame) int {
	n := 0
	for _, f := range path {
		if f.File == frame.File && f.Function == frame.Function {
			n++
		}
	}
	return n
}
