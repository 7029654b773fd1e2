package taint

import (
	"database/sql"

	"github.com/goccy/go-json"
)

// assignment mirrors one row of the assignments table.
type assignment struct {
	File, Scope, LHS string
	Line             int
	VarsRead         []string
}

// ret mirrors one row of the returns table.
type ret struct {
	File, Scope string
	Line        int
	VarsRead    []string
}

// argument mirrors one row of the arguments table joined against its
// call site (calls table, same file/line/call_index).
type argument struct {
	File, CallerSymbol, CalleeName string
	Line                           int
	CallIndex, Position            int
	CalleeResolved                 bool
	VarsRead                       []string
}

// callSite mirrors one row of the calls table.
type callSite struct {
	File, CallerSymbol, CalleeName string
	Line                           int
	Resolved                       bool
}

// model is every fact row the engine needs, loaded once per run and
// indexed for in-memory worklist traversal — a real worklist pass over
// a SQL connection per item would be prohibitively chatty, so the
// engine loads the relevant tables up front and walks them as plain
// Go data, matching the read-only, single-pass nature of spec §5's
// "Fact Store is read-only during taint analysis."
type model struct {
	sources []Site
	sinks   []Site

	assignmentsByScope map[scopeKey][]assignment
	returnsByScope     map[scopeKey][]ret
	argumentsByCaller  map[scopeKey][]argument
	callsByCallee      map[calleeKey][]callSite
	functionExists     map[calleeKey]bool
	paramsByCallee     map[calleeKey][]string
}

type scopeKey struct{ File, Function string }
type calleeKey struct{ File, Name string }

func loadModel(q querier) (*model, error) {
	m := &model{
		assignmentsByScope: map[scopeKey][]assignment{},
		returnsByScope:     map[scopeKey][]ret{},
		argumentsByCaller:  map[scopeKey][]argument{},
		callsByCallee:      map[calleeKey][]callSite{},
		functionExists:     map[calleeKey]bool{},
		paramsByCallee:     map[calleeKey][]string{},
	}

	if err := loadSources(q, m); err != nil {
		return nil, err
	}
	if err := loadSinks(q, m); err != nil {
		return nil, err
	}
	if err := loadAssignments(q, m); err != nil {
		return nil, err
	}
	if err := loadReturns(q, m); err != nil {
		return nil, err
	}
	calls, err := loadCalls(q)
	if err != nil {
		return nil, err
	}
	for _, c := range calls {
		m.callsByCallee[calleeKey{c.File, c.CalleeName}] = append(m.callsByCallee[calleeKey{c.File, c.CalleeName}], c)
	}
	if err := loadArguments(q, m, calls); err != nil {
		return nil, err
	}
	if err := loadFunctionSymbols(q, m); err != nil {
		return nil, err
	}
	return m, nil
}

// querier is the subset of *store.ReadHandle the loader needs; defined
// locally so this package depends on an interface, not the concrete
// store type, matching the extractors' "accept interfaces" convention.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

func loadSources(q querier, m *model) error {
	rows, err := q.Query(`SELECT file, line, function_name, var_name, source_kind FROM taint_sources`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var s Site
		if err := rows.Scan(&s.File, &s.Line, &s.Function, &s.VarName, &s.Kind); err != nil {
			return err
		}
		m.sources = append(m.sources, s)
	}
	return rows.Err()
}

func loadSinks(q querier, m *model) error {
	rows, err := q.Query(`SELECT file, line, function_name, var_name, sink_kind FROM taint_sinks`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var s Site
		if err := rows.Scan(&s.File, &s.Line, &s.Function, &s.VarName, &s.Kind); err != nil {
			return err
		}
		m.sinks = append(m.sinks, s)
	}
	return rows.Err()
}

func loadAssignments(q querier, m *model) error {
	rows, err := q.Query(`SELECT file, line, lhs, vars_read_json, scope FROM assignments`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a assignment
		var varsJSON string
		if err := rows.Scan(&a.File, &a.Line, &a.LHS, &varsJSON, &a.Scope); err != nil {
			return err
		}
		a.VarsRead = decodeVars(varsJSON)
		key := scopeKey{a.File, a.Scope}
		m.assignmentsByScope[key] = append(m.assignmentsByScope[key], a)
	}
	return rows.Err()
}

func loadReturns(q querier, m *model) error {
	rows, err := q.Query(`SELECT file, line, vars_read_json, scope FROM returns`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r ret
		var varsJSON string
		if err := rows.Scan(&r.File, &r.Line, &varsJSON, &r.Scope); err != nil {
			return err
		}
		r.VarsRead = decodeVars(varsJSON)
		key := scopeKey{r.File, r.Scope}
		m.returnsByScope[key] = append(m.returnsByScope[key], r)
	}
	return rows.Err()
}

func loadCalls(q querier) ([]callSite, error) {
	rows, err := q.Query(`SELECT file, line, caller_symbol, callee_name, callee_resolved FROM calls`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []callSite
	for rows.Next() {
		var c callSite
		var resolved int
		if err := rows.Scan(&c.File, &c.Line, &c.CallerSymbol, &c.CalleeName, &resolved); err != nil {
			return nil, err
		}
		c.Resolved = resolved != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

func loadArguments(q querier, m *model, calls []callSite) error {
	rows, err := q.Query(`SELECT file, line, call_index, position, vars_read_json FROM arguments ORDER BY file, line, call_index, position`)
	if err != nil {
		return err
	}
	defer rows.Close()

	// Each arguments row is joined to its call site on (file, line);
	// call_index, which both tables carry, is not compared.
	callsByFileLine := make(map[string]callSite, len(calls))
	for _, c := range calls {
		callsByFileLine[c.File+"\x1f"+itoa(c.Line)] = c
	}

	for rows.Next() {
		var file, varsJSON string
		var line, callIndex, position int
		if err := rows.Scan(&file, &line, &callIndex, &position, &varsJSON); err != nil {
			return err
		}
		c, ok := callsByFileLine[file+"\x1f"+itoa(line)]
		if !ok {
			continue
		}
		a := argument{
			File: file, Line: line, CallIndex: callIndex, Position: position,
			CallerSymbol: c.CallerSymbol, CalleeName: c.CalleeName,
			CalleeResolved: c.Resolved, VarsRead: decodeVars(varsJSON),
		}
		key := scopeKey{file, c.CallerSymbol}
		m.argumentsByCaller[key] = append(m.argumentsByCaller[key], a)
	}
	return rows.Err()
}

// loadFunctionSymbols indexes every function/method symbol by (file,
// name) two ways: functionExists (the existing cross-file-call gate)
// and paramsByCallee, the ordered parameter-name list each extractor
// records in params_json — the data propagateCalls needs to bind a
// tainted argument to a specific declared parameter instead of the
// anyVar sentinel (DESIGN.md Open Question decision 5).
func loadFunctionSymbols(q querier, m *model) error {
	rows, err := q.Query(`SELECT file, name, symbol_kind, params_json FROM symbols WHERE symbol_kind IN ('function', 'method')`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var file, name, kind string
		var paramsJSON sql.NullString
		if err := rows.Scan(&file, &name, &kind, &paramsJSON); err != nil {
			return err
		}
		key := calleeKey{file, name}
		m.functionExists[key] = true
		if paramsJSON.Valid {
			if params := decodeVars(paramsJSON.String); len(params) > 0 {
				m.paramsByCallee[key] = params
			}
		}
	}
	return rows.Err()
}

// bindCalleeVar resolves the variable name a tainted argument should
// taint inside a resolved callee: the callee's declared parameter at
// the argument's position when the extractor recorded one, or the
// anyVar sentinel (whole-function taint) when it didn't — an unseen
// declaration, a builtin, a cross-language call, or a position outside
// a recorded, non-variadic parameter list.
func bindCalleeVar(m *model, calleeFile, calleeName string, position int) string {
	params, ok := m.paramsByCallee[calleeKey{calleeFile, calleeName}]
	if !ok || position < 0 || position >= len(params) || params[position] == "" {
		return anyVar
	}
	return params[position]
}

func decodeVars(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func containsVar(vars []string, v string) bool {
	for _, x := range vars {
		if x == v {
			return true
		}
	}
	return false
}
