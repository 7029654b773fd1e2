// Package javascript implements the JavaScript-language extractor:
// core symbols/references/calls, data-flow, and the file-system route
// and form-action families exercised by scenarios 5 and 6.
package javascript

import (
	"regexp"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	jsgrammar "github.com/smacker/go-tree-sitter/javascript"

	"github.com/TheAuditorTool/auditor/internal/extract"
	"github.com/TheAuditorTool/auditor/internal/extract/scope"
	"github.com/TheAuditorTool/auditor/internal/facts"
)

// Language returns the tree-sitter grammar for JavaScript.
func Language() *sitter.Language { return jsgrammar.GetLanguage() }

// Extract is the sole per-file entry point (spec §4.2, §9).
func Extract(fi extract.FileInfo, tree extract.Tree, sig extract.Signals) (extract.Output, error) {
	out := make(extract.Output)

	sc := buildScope(tree)
	extractCore(tree, sc, out)
	extractDataFlow(tree, sc, out)

	if sig.SvelteKit || sig.NextJS || sig.Remix || sig.Express || sig.NestJS {
		ExtractRoutes(fi, tree, out)
		ExtractForms(fi, tree, out)
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

// segment kinds for the file-system route normalizer.
var (
	reGroup    = regexp.MustCompile(`^\(([^)]+)\)$`)
	reRest     = regexp.MustCompile(`^\[\.\.\.(\w+)\]$`)
	reOptional = regexp.MustCompile(`^\[\[(\w+)(?:=(\w+))?\]\]$`)
	reRequired = regexp.MustCompile(`^\[(\w+)(?:=(\w+))?\]$`)
)

// ParamSegment is one route-params row, shape-matched to scenario 5.
type ParamSegment struct {
	Name     string
	Optional bool
	Matcher  string
	Segment  int
	IsRest   bool
}

// RoutePath normalizes a file-system route directory path into the
// scenario 5 shape: group segments are dropped from the pattern but
// flagged, optional params render ":name?", rest params render
// ":name*", literal segments pass through unchanged.
func RoutePath(relPath string) (pattern string, hasGroup, hasOptional, hasRest bool, params []ParamSegment) {
	segs := strings.Split(strings.Trim(filepathToSlash(relPath), "/"), "/")
	var kept []string
	paramIdx := 0
	for _, s := range segs {
		switch {
		case reGroup.MatchString(s):
			hasGroup = true
			continue
		case reRest.MatchString(s):
			m := reRest.FindStringSubmatch(s)
			hasRest = true
			kept = append(kept, ":"+m[1]+"*")
			params = append(params, ParamSegment{Name: m[1], IsRest: true, Segment: paramIdx})
			paramIdx++
		case reOptional.MatchString(s):
			m := reOptional.FindStringSubmatch(s)
			hasOptional = true
			kept = append(kept, ":"+m[1]+"?")
			params = append(params, ParamSegment{Name: m[1], Optional: true, Matcher: m[2], Segment: paramIdx})
			paramIdx++
		case reRequired.MatchString(s):
			m := reRequired.FindStringSubmatch(s)
			kept = append(kept, ":"+m[1])
			params = append(params, ParamSegment{Name: m[1], Matcher: m[2], Segment: paramIdx})
			paramIdx++
		default:
			kept = append(kept, s)
		}
	}
	pattern = "/" + strings.Join(kept, "/")
	return
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// routeRoot finds the "routes" directory segment in a file-system
// router path and returns everything after it, directory-only (the
// leaf filename, e.g. "+page.svelte", is stripped).
func routeRoot(path string) (string, bool) {
	parts := strings.Split(filepathToSlash(path), "/")
	for i, p := range parts {
		if p == "routes" {
			dir := parts[i+1:]
			if len(dir) > 0 {
				dir = dir[:len(dir)-1] // drop leaf filename
			}
			return strings.Join(dir, "/"), true
		}
	}
	return "", false
}

// ExtractRoutes emits one routes row (plus its route_params rows) per
// file-system route directory, per scenario 5. Exported so the
// typescript package can reuse it without duplicating the regex table.
func ExtractRoutes(fi extract.FileInfo, tree extract.Tree, out extract.Output) {
	dir, ok := routeRoot(fi.Path)
	if !ok {
		return
	}
	pattern, hasGroup, hasOptional, hasRest, params := RoutePath(dir)

	out[facts.TableRoutes] = append(out[facts.TableRoutes], extract.Row{
		"line": 1, "method": "GET", "pattern": pattern, "handler_symbol": "",
		"endpoint_kind":       facts.EndpointHTTP,
		"has_group_segments":  boolInt(hasGroup),
		"has_optional_params": boolInt(hasOptional),
		"has_rest_params":     boolInt(hasRest),
	})

	var rows []extract.Row
	for _, p := range params {
		rows = append(rows, extract.Row{
			"line": 1, "pattern": pattern, "name": p.Name,
			"optional": boolInt(p.Optional), "matcher": p.Matcher,
			"segment": p.Segment, "is_rest": boolInt(p.IsRest),
		})
	}
	out[facts.TableRouteParams] = append(out[facts.TableRouteParams], rows...)
}

// ExtractForms emits form-action endpoint rows per scenario 6: an
// `export const actions = {...}` object literal in a SvelteKit
// `+page.server.js`-shaped file yields one POST route row per action
// key, `endpoint_kind=EndpointFormAction`, pattern `{route}` for
// "default" and `{route}?/{name}` otherwise. These rows are
// deliberately written to the same routes table as HTTP routes but
// carry the form-action discriminator so cross-boundary matchers (spec
// invariant 6) can filter them out.
func ExtractForms(fi extract.FileInfo, tree extract.Tree, out extract.Output) {
	dir, ok := routeRoot(fi.Path)
	if !ok {
		return
	}
	routePattern, _, _, _, _ := RoutePath(dir)

	walk(tree.Root(), func(n *sitter.Node) {
		if n.Type() != "variable_declarator" {
			return
		}
		name := childByField(n, "name")
		if name == nil || textOf(tree, name) != "actions" {
			return
		}
		value := childByField(n, "value")
		if value == nil || value.Type() != "object" {
			return
		}
		line := int(n.StartPoint().Row) + 1
		for i := 0; i < int(value.NamedChildCount()); i++ {
			pair := value.NamedChild(i)
			if pair.Type() != "pair" && pair.Type() != "method_definition" && pair.Type() != "shorthand_property_identifier" {
				continue
			}
			key := actionKey(tree, pair)
			if key == "" {
				continue
			}
			pattern := routePattern
			if key != "default" {
				pattern = routePattern + "?/" + key
			}
			out[facts.TableRoutes] = append(out[facts.TableRoutes], extract.Row{
				"line": line, "method": "POST", "pattern": pattern,
				"handler_symbol": "actions." + key, "endpoint_kind": facts.EndpointFormAction,
				"has_group_segments": 0, "has_optional_params": 0, "has_rest_params": 0,
			})
		}
	})
}

func actionKey(tree extract.Tree, pair *sitter.Node) string {
	switch pair.Type() {
	case "pair":
		k := childByField(pair, "key")
		return strings.Trim(textOf(tree, k), `"'`)
	case "method_definition":
		k := childByField(pair, "name")
		return textOf(tree, k)
	case "shorthand_property_identifier":
		return textOf(tree, pair)
	}
	return ""
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

func varsReadJSON(tree extract.Tree, n *sitter.Node) string {
	vars := collectIdentifiers(tree, n)
	return jsonStringArray(vars)
}

// paramNames returns a function_declaration/method_definition's
// parameter names in declared order, "" for a destructuring pattern
// with no single name — a positional placeholder, not a dropped slot,
// so later positions still line up with the call site's argument
// index for the taint engine's call-boundary binding.
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
		case "assignment_pattern":
			if left := childByField(p, "left"); left != nil && left.Type() == "identifier" {
				names = append(names, textOf(tree, left))
			} else {
				names = append(names, "")
			}
		case "rest_pattern":
			if p.NamedChildCount() > 0 && p.NamedChild(0).Type() == "identifier" {
				names = append(names, textOf(tree, p.NamedChild(0)))
			} else {
				names = append(names, "")
			}
		default:
			names = append(names, "")
		}
	}
	return names
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

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
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
