// Package golang implements the Go-language extractor: core symbols,
// references and calls, data-flow (assignments, returns, arguments)
// and control-flow (loop depth) facts. Go gets none of the dynamic
// framework families (spec §4.2's Python/JS-only ORM, job-queue, DI,
// validator, route families) — grounded on termfx-morfx itself, whose
// own golang provider has no framework layer either.
package golang

import (
	sitter "github.com/smacker/go-tree-sitter"
	gogrammar "github.com/smacker/go-tree-sitter/golang"

	"github.com/TheAuditorTool/auditor/internal/extract"
	"github.com/TheAuditorTool/auditor/internal/extract/scope"
	"github.com/TheAuditorTool/auditor/internal/facts"
)

// Language returns the tree-sitter grammar for Go, for the pipeline's
// shared Parse entry point.
func Language() *sitter.Language { return gogrammar.GetLanguage() }

// Extract is the sole entry point per spec §4.2: an explicit sequence
// of calls into sub-modules, no reflective dispatch.
func Extract(fi extract.FileInfo, tree extract.Tree, _ extract.Signals) (extract.Output, error) {
	out := make(extract.Output)

	sc := buildScope(tree)

	extractCore(tree, sc, out)
	extractDataFlow(tree, sc, out)
	extractControlFlow(tree, sc, out)

	return out, nil
}

func buildScope(tree extract.Tree) *scope.Map {
	var funcs []scope.Func
	walk(tree.Root(), func(n *sitter.Node) {
		switch n.Type() {
		case "function_declaration":
			name := childByField(n, "name")
			funcs = append(funcs, scope.Func{
				Name:      textOf(tree, name),
				StartLine: int(n.StartPoint().Row) + 1,
				EndLine:   int(n.EndPoint().Row) + 1,
			})
		case "method_declaration":
			name := childByField(n, "name")
			funcs = append(funcs, scope.Func{
				Name:      textOf(tree, name),
				StartLine: int(n.StartPoint().Row) + 1,
				EndLine:   int(n.EndPoint().Row) + 1,
			})
		}
	})
	return scope.NewMap(funcs)
}

// extractCore emits symbols, references and calls. Ground:
// termfx-morfx's internal/lang/golang query templates for node-type
// vocabulary (function_declaration, type_spec, call_expression,
// import_spec), generalized from query strings to a direct tree walk
// since extraction needs text + position, not a boolean match.
func extractCore(tree extract.Tree, sc *scope.Map, out extract.Output) {
	var symbols, refs, calls []extract.Row
	callIndex := 0

	symKey := map[string]struct{}{}
	addSymbol := func(r extract.Row) {
		k := r["symbol_kind"].(string) + "|" + r["qualified_name"].(string) + "|" + itoa(r["line"].(int))
		if _, ok := symKey[k]; ok {
			return
		}
		symKey[k] = struct{}{}
		symbols = append(symbols, r)
	}

	walk(tree.Root(), func(n *sitter.Node) {
		line := int(n.StartPoint().Row) + 1
		switch n.Type() {
		case "function_declaration":
			name := textOf(tree, childByField(n, "name"))
			addSymbol(extract.Row{
				"line": line, "symbol_kind": facts.SymbolFunction,
				"qualified_name": name, "name": name,
				"end_line": int(n.EndPoint().Row) + 1, "scope": scope.Global,
				"params_json": jsonStringArray(paramNames(tree, n)),
			})
		case "method_declaration":
			name := textOf(tree, childByField(n, "name"))
			recv := receiverType(tree, n)
			qn := name
			if recv != "" {
				qn = recv + "." + name
			}
			addSymbol(extract.Row{
				"line": line, "symbol_kind": facts.SymbolMethod,
				"qualified_name": qn, "name": name,
				"end_line": int(n.EndPoint().Row) + 1, "scope": scope.Global,
				"params_json": jsonStringArray(paramNames(tree, n)),
			})
		case "type_spec":
			name := textOf(tree, childByField(n, "name"))
			if name == "" {
				return
			}
			kind := facts.SymbolClass
			if isInterfaceType(childByField(n, "type")) {
				kind = facts.SymbolInterface
			}
			addSymbol(extract.Row{
				"line": line, "symbol_kind": kind,
				"qualified_name": name, "name": name,
				"end_line": int(n.EndPoint().Row) + 1, "scope": scope.Global,
			})
		case "const_spec", "var_spec":
			name := childByField(n, "name")
			if name == nil {
				return
			}
			kind := facts.SymbolVariable
			if n.Type() == "const_spec" {
				kind = facts.SymbolConstant
			}
			nm := textOf(tree, name)
			addSymbol(extract.Row{
				"line": line, "symbol_kind": kind,
				"qualified_name": nm, "name": nm,
				"end_line": line, "scope": sc.Lookup(line),
			})
		case "import_spec":
			pathNode := childByField(n, "path")
			refs = append(refs, extract.Row{
				"line": line, "col": int(n.StartPoint().Column) + 1,
				"name": stripQuotes(textOf(tree, pathNode)), "ref_kind": facts.RefImport,
			})
		case "call_expression":
			fn := childByField(n, "function")
			name := calleeName(tree, fn)
			caller := sc.Lookup(line)
			calls = append(calls, extract.Row{
				"line": line, "call_index": callIndex,
				"caller_symbol": caller, "callee_name": name,
				"callee_resolved": 0,
			})
			refs = append(refs, extract.Row{
				"line": line, "col": int(n.StartPoint().Column) + 1,
				"name": name, "ref_kind": facts.RefCall,
			})
			callIndex++
		}
	})

	out[facts.TableSymbols] = symbols
	out[facts.TableReferences] = dedupeRefs(refs)
	out[facts.TableCalls] = calls
}

// extractDataFlow emits arguments, assignments and returns with their
// read-variable sets, the shared input the taint engine's Stage A
// worklist consumes.
func extractDataFlow(tree extract.Tree, sc *scope.Map, out extract.Output) {
	var args, assigns, returns []extract.Row
	callIndex := 0

	walk(tree.Root(), func(n *sitter.Node) {
		line := int(n.StartPoint().Row) + 1
		switch n.Type() {
		case "call_expression":
			argList := childByField(n, "arguments")
			if argList != nil {
				for i := 0; i < int(argList.NamedChildCount()); i++ {
					arg := argList.NamedChild(i)
					args = append(args, extract.Row{
						"line": line, "call_index": callIndex, "position": i,
						"keyword": "", "expr": textOf(tree, arg),
						"vars_read_json": varsReadJSON(tree, arg),
					})
				}
			}
			callIndex++
		case "assignment_statement", "short_var_declaration":
			left := childByField(n, "left")
			right := childByField(n, "right")
			assigns = append(assigns, extract.Row{
				"line": line, "lhs": textOf(tree, left),
				"vars_read_json": varsReadJSON(tree, right),
				"scope":          sc.Lookup(line),
			})
		case "return_statement":
			returns = append(returns, extract.Row{
				"line": line, "vars_read_json": varsReadJSON(tree, n),
				"scope": sc.Lookup(line),
			})
		}
	})

	out[facts.TableArguments] = args
	out[facts.TableAssignments] = assigns
	out[facts.TableReturns] = returns
}

// extractControlFlow emits loop_complexity rows: per-function nested
// loop depth, the simplest hotspot signal the complexity analyzer
// consumes (spec's §4.2 "Framework Record" loop-complexity family).
func extractControlFlow(tree extract.Tree, sc *scope.Map, out extract.Output) {
	var rows []extract.Row
	for _, f := range sc.Funcs() {
		depth := maxLoopDepth(tree.Root(), f.StartLine, f.EndLine)
		if depth == 0 {
			continue
		}
		rows = append(rows, extract.Row{
			"line": f.StartLine, "function_name": f.Name, "depth": depth,
		})
	}
	out[facts.TableLoopComplexity] = rows
}

func maxLoopDepth(root *sitter.Node, start, end int) int {
	var best int
	var visit func(n *sitter.Node, depth int)
	visit = func(n *sitter.Node, depth int) {
		line := int(n.StartPoint().Row) + 1
		if line > end || int(n.EndPoint().Row)+1 < start {
			return
		}
		cur := depth
		if n.Type() == "for_statement" && line >= start {
			cur++
			if cur > best {
				best = cur
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			visit(n.Child(i), cur)
		}
	}
	visit(root, 0)
	return best
}

func isInterfaceType(n *sitter.Node) bool {
	return n != nil && n.Type() == "interface_type"
}

func receiverType(tree extract.Tree, n *sitter.Node) string {
	recv := childByField(n, "receiver")
	if recv == nil {
		return ""
	}
	for i := 0; i < int(recv.NamedChildCount()); i++ {
		p := recv.NamedChild(i)
		t := childByField(p, "type")
		if t != nil {
			txt := textOf(tree, t)
			for len(txt) > 0 && txt[0] == '*' {
				txt = txt[1:]
			}
			return txt
		}
	}
	return ""
}

// paramNames returns a function or method declaration's parameter names
// in declared order, the callee-side counterpart to each call
// argument's recorded position — the taint engine binds a tainted
// argument to the matching name here instead of the whole function
// when this list covers its position. A parameter_declaration's last
// named child is its type; every child before that is a name (Go
// allows grouping, e.g. "a, b int").
func paramNames(tree extract.Tree, n *sitter.Node) []string {
	params := childByField(n, "parameters")
	if params == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if p.Type() != "parameter_declaration" && p.Type() != "variadic_parameter_declaration" {
			continue
		}
		count := int(p.NamedChildCount())
		for j := 0; j < count-1; j++ {
			c := p.NamedChild(j)
			if c.Type() == "identifier" {
				names = append(names, textOf(tree, c))
			}
		}
	}
	return names
}

func calleeName(tree extract.Tree, n *sitter.Node) string {
	if n == nil {
		return ""
	}
	if n.Type() == "selector_expression" {
		field := childByField(n, "field")
		return textOf(tree, field)
	}
	return textOf(tree, n)
}

func varsReadJSON(tree extract.Tree, n *sitter.Node) string {
	vars := collectIdentifiers(tree, n)
	return jsonStringArray(vars)
}

func collectIdentifiers(tree extract.Tree, n *sitter.Node) []string {
	if n == nil {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	walk(n, func(c *sitter.Node) {
		if c.Type() == "identifier" {
			name := textOf(tree, c)
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				out = append(out, name)
			}
		}
	})
	return out
}

func childByField(n *sitter.Node, field string) *sitter.Node {
	if n == nil {
		return nil
	}
	return n.ChildByFieldName(field)
}

func textOf(tree extract.Tree, n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return tree.Text(n)
}

func walk(n *sitter.Node, fn func(*sitter.Node)) {
	if n == nil {
		return
	}
	fn(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), fn)
	}
}

func stripQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '`') {
		return s[1 : len(s)-1]
	}
	return s
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var b []byte
	for i > 0 {
		b = append([]byte{byte('0' + i%10)}, b...)
		i /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}

func jsonStringArray(vals []string) string {
	out := []byte{'['}
	for i, v := range vals {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '"')
		for _, c := range v {
			if c == '"' || c == '\\' {
				out = append(out, '\\')
			}
			out = append(out, byte(c))
		}
		out = append(out, '"')
	}
	out = append(out, ']')
	return string(out)
}

// dedupeRefs deduplicates by (line, col, name, ref_kind): the
// references table's primary-key projection minus file, which the
// Normalizer injects later, plus ref_kind. Ground: spec §4.2 "each extractor deduplicates its own
// output by the primary-key projection before returning" — duplicated
// in each language package per §9's helper-duplication convention.
func dedupeRefs(rows []extract.Row) []extract.Row {
	seen := map[string]struct{}{}
	out := make([]extract.Row, 0, len(rows))
	for _, r := range rows {
		k := itoa(r["line"].(int)) + "|" + itoa(r["col"].(int)) + "|" + r["name"].(string) + "|" + r["ref_kind"].(string)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
