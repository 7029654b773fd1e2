// Package typescript implements the TypeScript-language extractor. It
// reuses javascript's route and form-action helpers verbatim — spec §4.2
// ("Supported languages... JS/TS: file-system routes, form actions...")
// and SPEC_FULL's note that TS extraction shares that small helper
// surface with JS rather than re-deriving the regex table, since the
// file-system route convention is identical across both ecosystems.
// Core symbol/reference/call/data-flow extraction, by contrast, uses
// the dedicated TypeScript grammar because TS syntax (type annotations,
// interfaces, generics) is not a subset the JS grammar parses.
package typescript

import (
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"
	tsgrammar "github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/TheAuditorTool/auditor/internal/extract"
	"github.com/TheAuditorTool/auditor/internal/extract/javascript"
	"github.com/TheAuditorTool/auditor/internal/extract/scope"
	"github.com/TheAuditorTool/auditor/internal/facts"
)

// Language returns the tree-sitter grammar for TypeScript.
func Language() *sitter.Language { return tsgrammar.GetLanguage() }

// Extract is the sole per-file entry point (spec §4.2, §9).
func Extract(fi extract.FileInfo, tree extract.Tree, sig extract.Signals) (extract.Output, error) {
	out := make(extract.Output)

	sc := buildScope(tree)
	extractCore(tree, sc, out)
	extractDataFlow(tree, sc, out)

	if sig.SvelteKit || sig.NextJS || sig.Remix || sig.Express || sig.NestJS {
		javascript.ExtractRoutes(fi, tree, out)
		javascript.ExtractForms(fi, tree, out)
	}

	if sig.NestJS {
		extractDI(tree, out)
	}

	return out, nil
}

func buildScope(tree extract.Tree) *scope.Map {
	var funcs []scope.Func
	walk(tree.Root(), func(n *sitter.Node) {
		switch n.Type() {
		case "function_declaration", "method_definition":
			name := childByField(n, "name")
			if name == nil {
				return
			}
			funcs = append(funcs, scope.Func{
				Name:      textOf(tree, name),
				StartLine: int(n.StartPoint().Row) + 1,
				EndLine:   int(n.EndPoint().Row) + 1,
			})
		}
	})
	return scope.NewMap(funcs)
}

func extractCore(tree extract.Tree, sc *scope.Map, out extract.Output) {
	var symbols, refs, calls []extract.Row
	callIndex := 0
	symKey := map[string]struct{}{}
	addSym := func(kind, name string, line, endLine int, paramsJSON string) {
		k := kind + "|" + name + "|" + itoa(line)
		if _, ok := symKey[k]; ok {
			return
		}
		symKey[k] = struct{}{}
		symbols = append(symbols, extract.Row{
			"line": line, "symbol_kind": kind, "qualified_name": name,
			"name": name, "end_line": endLine, "scope": scope.Global,
			"params_json": paramsJSON,
		})
	}

	walk(tree.Root(), func(n *sitter.Node) {
		line := int(n.StartPoint().Row) + 1
		switch n.Type() {
		case "function_declaration":
			name := textOf(tree, childByField(n, "name"))
			if name == "" {
				return
			}
			addSym(facts.SymbolFunction, name, line, int(n.EndPoint().Row)+1, jsonStringArray(paramNames(tree, n)))
		case "class_declaration":
			name := textOf(tree, childByField(n, "name"))
			addSym(facts.SymbolClass, name, line, int(n.EndPoint().Row)+1, "")
		case "interface_declaration":
			name := textOf(tree, childByField(n, "name"))
			addSym(facts.SymbolInterface, name, line, int(n.EndPoint().Row)+1, "")
		case "method_definition":
			name := textOf(tree, childByField(n, "name"))
			addSym(facts.SymbolMethod, name, line, int(n.EndPoint().Row)+1, jsonStringArray(paramNames(tree, n)))
		case "import_statement":
			src := childByField(n, "source")
			refs = append(refs, extract.Row{
				"line": line, "col": int(n.StartPoint().Column) + 1,
				"name": stripQuotes(textOf(tree, src)), "ref_kind": facts.RefImport,
			})
		case "call_expression":
			fn := childByField(n, "function")
			name := calleeName(tree, fn)
			calls = append(calls, extract.Row{
				"line": line, "call_index": callIndex,
				"caller_symbol": sc.Lookup(line), "callee_name": name, "callee_resolved": 0,
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
		case "assignment_expression":
			left := childByField(n, "left")
			right := childByField(n, "right")
			assigns = append(assigns, extract.Row{
				"line": line, "lhs": textOf(tree, left),
				"vars_read_json": varsReadJSON(tree, right), "scope": sc.Lookup(line),
			})
		case "variable_declarator":
			name := childByField(n, "name")
			value := childByField(n, "value")
			if value == nil {
				return
			}
			assigns = append(assigns, extract.Row{
				"line": line, "lhs": textOf(tree, name),
				"vars_read_json": varsReadJSON(tree, value), "scope": sc.Lookup(line),
			})
		case "return_statement":
			returns = append(returns, extract.Row{
				"line": line, "vars_read_json": varsReadJSON(tree, n), "scope": sc.Lookup(line),
			})
		}
	})
	out[facts.TableArguments] = args
	out[facts.TableAssignments] = assigns
	out[facts.TableReturns] = returns
}

// extractDI emits di_injections for NestJS constructor-parameter
// `@Inject()`-decorated or interface-typed dependency parameters.
func extractDI(tree extract.Tree, out extract.Output) {
	var rows []extract.Row
	walk(tree.Root(), func(n *sitter.Node) {
		if n.Type() != "required_parameter" && n.Type() != "optional_parameter" {
			return
		}
		decorator := n.PrevSibling()
		if decorator == nil || decorator.Type() != "decorator" {
			return
		}
		line := int(n.StartPoint().Row) + 1
		name := childByField(n, "pattern")
		rows = append(rows, extract.Row{
			"line": line, "symbol": "constructor", "dependency_name": textOf(tree, name),
		})
	})
	out[facts.TableDiInjections] = rows
}

func calleeName(tree extract.Tree, n *sitter.Node) string {
	if n == nil {
		return ""
	}
	if n.Type() == "member_expression" {
		prop := childByField(n, "property")
		return textOf(tree, prop)
	}
	return textOf(tree, n)
}

// paramNames returns a function_declaration/method_definition's
// parameter names in declared order, "" for a destructuring pattern
// with no single name — a positional placeholder so later positions
// still line up with the call site's argument index for the taint
// engine's call-boundary binding.
func paramNames(tree extract.Tree, n *sitter.Node) []string {
	params := childByField(n, "parameters")
	if params == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "identifier":
			names = append(names, textOf(tree, p))
		case "required_parameter", "optional_parameter", "rest_parameter":
			pattern := childByField(p, "pattern")
			if pattern != nil && pattern.Type() == "identifier" {
				names = append(names, textOf(tree, pattern))
			} else {
				names = append(names, "")
			}
		default:
			names = append(names, "")
		}
	}
	return names
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
	if len(s) >= 2 {
		return s[1 : len(s)-1]
	}
	return s
}

func itoa(i int) string { return strconv.Itoa(i) }

func jsonStringArray(vals []string) string {
	out := []byte{'['}
	for i, v := range vals {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '"')
		out = append(out, []byte(v)...)
		out = append(out, '"')
	}
	out = append(out, ']')
	return string(out)
}

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
