package taint

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/TheAuditorTool/auditor/internal/store"
)

// TestMain verifies no worklist goroutine (one per concurrent source,
// spec §5) leaks past Run returning, including on the cancellation path.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "repo_index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestRunDirectSourceToSink covers the simplest shape: a source and a
// sink declared in the same function with no intervening hop.
func TestRunDirectSourceToSink(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.WriteBatch("taint_sources", []store.Row{
		{"file": "app.py", "line": 10, "function_name": "handler", "var_name": "user_input", "source_kind": "request_param"},
	}))
	require.NoError(t, s.WriteBatch("taint_sinks", []store.Row{
		{"file": "app.py", "line": 12, "function_name": "handler", "var_name": "user_input", "sink_kind": "command_exec"},
	}))

	rh := store.NewReadHandle(s)
	eng := New(DefaultConfig())
	findings, err := eng.Run(context.Background(), rh)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "user_input", findings[0].Source.VarName)
	assert.Equal(t, "command_exec", findings[0].Sink.Kind)
	assert.Empty(t, findings[0].CallStack)
}

// TestRunPropagatesThroughAssignment covers an intra-function hop:
// source -> intermediate variable -> sink.
func TestRunPropagatesThroughAssignment(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.WriteBatch("taint_sources", []store.Row{
		{"file": "app.py", "line": 5, "function_name": "handler", "var_name": "raw", "source_kind": "request_param"},
	}))
	require.NoError(t, s.WriteBatch("assignments", []store.Row{
		{"file": "app.py", "line": 6, "lhs": "cmd", "vars_read_json": `["raw"]`, "scope": "handler"},
	}))
	require.NoError(t, s.WriteBatch("taint_sinks", []store.Row{
		{"file": "app.py", "line": 8, "function_name": "handler", "var_name": "cmd", "sink_kind": "command_exec"},
	}))

	rh := store.NewReadHandle(s)
	eng := New(DefaultConfig())
	findings, err := eng.Run(context.Background(), rh)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "cmd", findings[0].Sink.VarName)
}

// TestRunPropagatesAcrossCallBoundary covers the forward inter-
// procedural hop: a tainted argument reaching a resolved callee,
// where the callee's own sink then matches via the anyVar sentinel.
func TestRunPropagatesAcrossCallBoundary(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.WriteBatch("taint_sources", []store.Row{
		{"file": "app.py", "line": 5, "function_name": "handler", "var_name": "raw", "source_kind": "request_param"},
	}))
	require.NoError(t, s.WriteBatch("symbols", []store.Row{
		{"file": "app.py", "line": 20, "symbol_id": "sym1", "symbol_kind": "function", "qualified_name": "render", "name": "render", "scope": "global"},
	}))
	require.NoError(t, s.WriteBatch("calls", []store.Row{
		{"file": "app.py", "line": 6, "call_index": 0, "caller_symbol": "handler", "callee_name": "render", "callee_resolved": 1},
	}))
	require.NoError(t, s.WriteBatch("arguments", []store.Row{
		{"file": "app.py", "line": 6, "call_index": 0, "position": 0, "expr": "raw", "vars_read_json": `["raw"]`},
	}))
	require.NoError(t, s.WriteBatch("taint_sinks", []store.Row{
		{"file": "app.py", "line": 22, "function_name": "render", "var_name": "x", "sink_kind": "template_render"},
	}))

	rh := store.NewReadHandle(s)
	eng := New(DefaultConfig())
	findings, err := eng.Run(context.Background(), rh)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "render", findings[0].Sink.Function)
	require.Len(t, findings[0].CallStack, 1)
	assert.Equal(t, "handler", findings[0].CallStack[0].Function)
	assert.Equal(t, 6, findings[0].CallStack[0].Line)
}

// TestRunHaltsOnUnresolvedCallee covers the "callee_unresolved" failure
// mode (spec §4.6 failure mode 3): propagation must not continue
// through the hop — the sink inside "dispatch" must never be
// reached — but the hop itself is preserved as a CalleeUnresolved
// evidence Finding rather than silently discarded.
func TestRunHaltsOnUnresolvedCallee(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.WriteBatch("taint_sources", []store.Row{
		{"file": "app.py", "line": 5, "function_name": "handler", "var_name": "raw", "source_kind": "request_param"},
	}))
	require.NoError(t, s.WriteBatch("calls", []store.Row{
		{"file": "app.py", "line": 6, "call_index": 0, "caller_symbol": "handler", "callee_name": "dispatch", "callee_resolved": 0},
	}))
	require.NoError(t, s.WriteBatch("arguments", []store.Row{
		{"file": "app.py", "line": 6, "call_index": 0, "position": 0, "expr": "raw", "vars_read_json": `["raw"]`},
	}))
	require.NoError(t, s.WriteBatch("taint_sinks", []store.Row{
		{"file": "app.py", "line": 22, "function_name": "dispatch", "var_name": "x", "sink_kind": "template_render"},
	}))

	rh := store.NewReadHandle(s)
	eng := New(DefaultConfig())
	findings, err := eng.Run(context.Background(), rh)
	require.NoError(t, err)
	require.Len(t, findings, 1, "the unresolved hop must be preserved as evidence, not discarded")
	assert.True(t, findings[0].CalleeUnresolved)
	assert.Equal(t, "unresolved_callee", findings[0].Sink.Kind)
	assert.Equal(t, "handler", findings[0].Sink.Function, "the preserved hop is recorded at the call site, not inside the unresolved callee")
	assert.NotEqual(t, "dispatch", findings[0].Sink.Function, "propagation must not continue into the unresolved callee")
}

// TestRunKeepsDistinctCallStacksForSharedSink exercises spec
// invariant 4.6.4: two handlers reaching the same helper and the same
// sink through different controllers must yield two distinct findings,
// not one collapsed by (source, sink) alone.
func TestRunKeepsDistinctCallStacksForSharedSink(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.WriteBatch("taint_sources", []store.Row{
		{"file": "app.py", "line": 1, "function_name": "h1", "var_name": "x", "source_kind": "request_param"},
		{"file": "app.py", "line": 2, "function_name": "h2", "var_name": "x", "source_kind": "request_param"},
	}))
	require.NoError(t, s.WriteBatch("symbols", []store.Row{
		{"file": "app.py", "line": 30, "symbol_id": "sym1", "symbol_kind": "function", "qualified_name": "render", "name": "render", "scope": "global"},
	}))
	require.NoError(t, s.WriteBatch("calls", []store.Row{
		{"file": "app.py", "line": 10, "call_index": 0, "caller_symbol": "h1", "callee_name": "render", "callee_resolved": 1},
		{"file": "app.py", "line": 20, "call_index": 1, "caller_symbol": "h2", "callee_name": "render", "callee_resolved": 1},
	}))
	require.NoError(t, s.WriteBatch("arguments", []store.Row{
		{"file": "app.py", "line": 10, "call_index": 0, "position": 0, "expr": "x", "vars_read_json": `["x"]`},
		{"file": "app.py", "line": 20, "call_index": 1, "position": 0, "expr": "x", "vars_read_json": `["x"]`},
	}))
	require.NoError(t, s.WriteBatch("taint_sinks", []store.Row{
		{"file": "app.py", "line": 32, "function_name": "render", "var_name": "y", "sink_kind": "template_render"},
	}))

	rh := store.NewReadHandle(s)
	eng := New(DefaultConfig())
	findings, err := eng.Run(context.Background(), rh)
	require.NoError(t, err)
	require.Len(t, findings, 2)

	controllers := map[string]bool{}
	for _, f := range findings {
		require.Len(t, f.CallStack, 1)
		controllers[f.CallStack[0].Function] = true
	}
	assert.True(t, controllers["h1"])
	assert.True(t, controllers["h2"])
}

// TestRunBindsArgumentToDeclaredParameterPosition covers the parameter-
// position binding DESIGN.md Open Question decision 5 describes: a
// callee with a recorded params_json binds the tainted argument to the
// specific parameter name, so a sink on an unrelated parameter in the
// same function must not match (the pre-fix anyVar sentinel would have
// matched both).
func TestRunBindsArgumentToDeclaredParameterPosition(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.WriteBatch("taint_sources", []store.Row{
		{"file": "app.py", "line": 5, "function_name": "handler", "var_name": "raw", "source_kind": "request_param"},
	}))
	require.NoError(t, s.WriteBatch("symbols", []store.Row{
		{"file": "app.py", "line": 20, "symbol_id": "sym1", "symbol_kind": "function", "qualified_name": "render", "name": "render", "scope": "global", "params_json": `["template","other"]`},
	}))
	require.NoError(t, s.WriteBatch("calls", []store.Row{
		{"file": "app.py", "line": 6, "call_index": 0, "caller_symbol": "handler", "callee_name": "render", "callee_resolved": 1},
	}))
	require.NoError(t, s.WriteBatch("arguments", []store.Row{
		{"file": "app.py", "line": 6, "call_index": 0, "position": 0, "expr": "raw", "vars_read_json": `["raw"]`},
	}))
	require.NoError(t, s.WriteBatch("taint_sinks", []store.Row{
		{"file": "app.py", "line": 22, "function_name": "render", "var_name": "template", "sink_kind": "template_render"},
		{"file": "app.py", "line": 23, "function_name": "render", "var_name": "other", "sink_kind": "template_render"},
	}))

	rh := store.NewReadHandle(s)
	eng := New(DefaultConfig())
	findings, err := eng.Run(context.Background(), rh)
	require.NoError(t, err)
	require.Len(t, findings, 1, "only the parameter the tainted argument binds to should match, not the whole function")
	assert.Equal(t, "template", findings[0].Sink.VarName)
}

// TestStageBPrunesVariableKilledBeforeSink covers Stage B's straight-
// line liveness check: Stage A is flow-insensitive and keeps matching
// a sink after the tainted variable has been overwritten, Stage B
// prunes it once a kill assignment sits between the taint site and the
// sink.
func TestStageBPrunesVariableKilledBeforeSink(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.WriteBatch("taint_sources", []store.Row{
		{"file": "app.py", "line": 1, "function_name": "f", "var_name": "x", "source_kind": "request_param"},
	}))
	require.NoError(t, s.WriteBatch("assignments", []store.Row{
		{"file": "app.py", "line": 2, "lhs": "x", "vars_read_json": `["other"]`, "scope": "f"},
	}))
	require.NoError(t, s.WriteBatch("taint_sinks", []store.Row{
		{"file": "app.py", "line": 5, "function_name": "f", "var_name": "x", "sink_kind": "command_exec"},
	}))

	rh := store.NewReadHandle(s)
	m, err := loadModel(rh)
	require.NoError(t, err)

	seed := Site{File: "app.py", Function: "f", Line: 1, VarName: "x", Kind: "request_param"}
	cfg := DefaultConfig()

	require.Len(t, runStageA(m, seed, cfg), 1, "Stage A is flow-insensitive and still matches the now-stale sink")

	var logged sync.Map
	assert.Empty(t, runStageB(m, seed, cfg, &logged), "Stage B should prune the sink once x is overwritten before reaching it")
}

func TestRunHonorsCancellation(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.WriteBatch("taint_sources", []store.Row{
		{"file": "app.py", "line": 10, "function_name": "handler", "var_name": "user_input", "source_kind": "request_param"},
	}))
	rh := store.NewReadHandle(s)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := New(DefaultConfig())
	findings, err := eng.Run(ctx, rh)
	require.NoError(t, err)
	assert.Empty(t, findings)
}
