// Package taint implements the two-stage inter-procedural taint
// propagator (spec §4.6, "the hardest part"): Stage A walks argument
// and return flow without regard to control flow; Stage B refines that
// with a straight-line liveness check over the same assignment/return
// facts (no extractor emits a real basic-block/edge CFG — that's cut
// from this pass, see SPEC_FULL §4.6 and DESIGN.md's Open Question
// decision 4), pruning sinks whose tainted variable was overwritten
// before reaching them. Ground: securego-gosec's visited-map-plus-
// depth-guard recursive isTainted walk and shivasurya-code-pathfinder's
// per-function intra-procedural taint summary, generalized here into an
// explicit worklist over Fact Store rows instead of an SSA value graph.
package taint

import "strings"

// CallFrame records one hop in a taint trace: the file and function the
// hop occurred in, and the line of the call or return that produced it.
type CallFrame struct {
	File     string
	Function string
	Line     int
}

// Signature is the ordered call-stack trace for one candidate path
// (spec §4.6 "call stack signature"), truncated to MaxDepth+1 frames.
type Signature []CallFrame

// key encodes a Signature into a comparable string so it can live in a
// golang-set/v2 Set[string] — Go has no frozenset, and a []CallFrame
// isn't itself comparable.
func (s Signature) key() string {
	var b strings.Builder
	for i, f := range s {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(f.File)
		b.WriteByte(':')
		b.WriteString(f.Function)
		b.WriteByte(':')
		b.WriteString(itoa(f.Line))
	}
	return b.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// anyVar is the sentinel taint variable used when a tainted argument
// reaches a resolved callee but bindCalleeVar cannot resolve which
// declared parameter it binds to (DESIGN.md Open Question decision 5):
// no params_json recorded for that callee, an out-of-range position, or
// a variadic expansion. In that fallback case only, the callee's
// sentinel state is tainted instead of one named parameter, and every
// rhs/sink in that callee matches it unconditionally — bindCalleeVar
// binds the specific parameter whenever the extractor recorded one.
const anyVar = "*"

// Site identifies one source or sink occurrence for dedup-key purposes
// (spec §4.6 deduplication policy: "(source_site, sink_site, call_stack)").
type Site struct {
	File     string
	Function string
	Line     int
	VarName  string
	Kind     string // source_kind or sink_kind
}

// Finding is one emitted taint path: a distinct (source, sink,
// call_stack) triple. Two Findings with the same Source/Sink but a
// different CallStack are NOT duplicates (spec explicitly rejects
// collapsing by (source_site, sink_site) alone).
type Finding struct {
	Source           Site
	Sink             Site
	CallStack        Signature
	CalleeUnresolved bool
}

// Config bounds the worklist per spec §4.6 invariants 2 and 3.
type Config struct {
	MaxDepth              int
	MaxSignaturesPerState int
	MaxRecursionDepth     int
	SourceConcurrency     int
}

// DefaultConfig matches the values named directly in SPEC_FULL §4.6 and
// DESIGN.md's Open Question 1 resolution.
func DefaultConfig() Config {
	return Config{
		MaxDepth:              40,
		MaxSignaturesPerState: 32,
		MaxRecursionDepth:     2,
		SourceConcurrency:     8,
	}
}
