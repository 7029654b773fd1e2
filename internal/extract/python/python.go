// Package python implements the Python-language extractor: core
// symbols/references/calls, data-flow, control-flow, and the
// framework-gated families Python projects commonly carry — ORM
// models/associations, job-queue tasks/workers/beat schedules, DI
// injections, validator schemas, pytest fixtures/parametrizations/
// markers, generator yields, property accessors, state mutations
// (scenario 3), exception sites, and I/O operations (spec §4.2).
package python

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	pygrammar "github.com/smacker/go-tree-sitter/python"

	"github.com/TheAuditorTool/auditor/internal/extract"
	"github.com/TheAuditorTool/auditor/internal/extract/scope"
	"github.com/TheAuditorTool/auditor/internal/facts"
)

// Language returns the tree-sitter grammar for Python.
func Language() *sitter.Language { return pygrammar.GetLanguage() }

// Extract is the sole per-file entry point: an explicit, statically
// auditable sequence of sub-module calls (spec §4.2, §9).
func Extract(fi extract.FileInfo, tree extract.Tree, sig extract.Signals) (extract.Output, error) {
	out := make(extract.Output)

	sc := buildScope(tree)

	extractCore(tree, sc, out)
	extractDataFlow(tree, sc, out)
	extractControlFlow(tree, sc, out)
	extractStateMutations(tree, sc, out)
	extractExceptions(tree, sc, out)
	extractIO(tree, sc, out)
	extractGenerators(tree, sc, out)
	extractProperties(tree, out)

	if sig.SQLAlchemy || sig.Django {
		extractORM(tree, out)
	}
	if sig.Celery {
		extractJobQueue(tree, out)
	}
	if sig.FastAPI {
		extractDI(tree, sc, out)
	}
	if sig.FastAPI || sig.Django {
		extractValidators(tree, out)
	}
	if sig.Pytest {
		extractPytest(tree, sc, out)
	}

	return out, nil
}

func buildScope(tree extract.Tree) *scope.Map {
	var funcs []scope.Func
	walk(tree.Root(), func(n *sitter.Node) {
		if n.Type() == "function_definition" {
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

func extractCore(tree extract.Tree, sc *scope.Map, out extract.Output) {
	var symbols, refs, calls []extract.Row
	callIndex := 0
	symKey := map[string]struct{}{}
	addSym := func(kind, qn, name string, line, endLine int, scopeName, paramsJSON string) {
		k := kind + "|" + qn + "|" + itoa(line)
		if _, ok := symKey[k]; ok {
			return
		}
		symKey[k] = struct{}{}
		symbols = append(symbols, extract.Row{
			"line": line, "symbol_kind": kind, "qualified_name": qn,
			"name": name, "end_line": endLine, "scope": scopeName,
			"params_json": paramsJSON,
		})
	}

	var classStack []string
	walk(tree.Root(), func(n *sitter.Node) {
		line := int(n.StartPoint().Row) + 1
		switch n.Type() {
		case "class_definition":
			name := textOf(tree, childByField(n, "name"))
			addSym(facts.SymbolClass, name, name, line, int(n.EndPoint().Row)+1, scope.Global, "")
			classStack = append(classStack, name)
		case "function_definition":
			name := textOf(tree, childByField(n, "name"))
			kind := facts.SymbolFunction
			qn := name
			isMethod := false
			if len(classStack) > 0 && within(n, classStack) {
				kind = facts.SymbolMethod
				qn = classStack[len(classStack)-1] + "." + name
				isMethod = true
			}
			params := paramNames(tree, n)
			if isMethod && len(params) > 0 && (params[0] == "self" || params[0] == "cls") {
				// Drop the implicit receiver: call-site arguments never
				// include it, so keeping it would shift every bound
				// parameter position off by one.
				params = params[1:]
			}
			addSym(kind, qn, name, line, int(n.EndPoint().Row)+1, scope.Global, jsonStringArray(params))
		case "import_statement", "import_from_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				c := n.NamedChild(i)
				if c.Type() == "dotted_name" || c.Type() == "aliased_import" {
					refs = append(refs, extract.Row{
						"line": line, "col": int(n.StartPoint().Column) + 1,
						"name": textOf(tree, c), "ref_kind": facts.RefImport,
					})
				}
			}
		case "call":
			fn := childByField(n, "function")
			name := calleeName(tree, fn)
			caller := sc.Lookup(line)
			calls = append(calls, extract.Row{
				"line": line, "call_index": callIndex,
				"caller_symbol": caller, "callee_name": name, "callee_resolved": 0,
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

func within(n *sitter.Node, classStack []string) bool {
	return len(classStack) > 0
}

func extractDataFlow(tree extract.Tree, sc *scope.Map, out extract.Output) {
	var args, assigns, returns []extract.Row
	callIndex := 0
	walk(tree.Root(), func(n *sitter.Node) {
		line := int(n.StartPoint().Row) + 1
		switch n.Type() {
		case "call":
			argList := childByField(n, "arguments")
			if argList != nil {
				pos := 0
				for i := 0; i < int(argList.NamedChildCount()); i++ {
					arg := argList.NamedChild(i)
					kw := ""
					expr := arg
					if arg.Type() == "keyword_argument" {
						kw = textOf(tree, childByField(arg, "name"))
						expr = childByField(arg, "value")
					}
					args = append(args, extract.Row{
						"line": line, "call_index": callIndex, "position": pos,
						"keyword": kw, "expr": textOf(tree, expr),
						"vars_read_json": varsReadJSON(tree, expr),
					})
					pos++
				}
			}
			callIndex++
		case "assignment":
			left := childByField(n, "left")
			right := childByField(n, "right")
			assigns = append(assigns, extract.Row{
				"line": line, "lhs": textOf(tree, left),
				"vars_read_json": varsReadJSON(tree, right),
				"scope":          sc.Lookup(line),
			})
		case "augmented_assignment":
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

func extractControlFlow(tree extract.Tree, sc *scope.Map, out extract.Output) {
	var rows []extract.Row
	for _, f := range sc.Funcs() {
		depth := maxLoopDepth(tree.Root(), f.StartLine, f.EndLine)
		if depth == 0 {
			continue
		}
		rows = append(rows, extract.Row{"line": f.StartLine, "function_name": f.Name, "depth": depth})
	}
	out[facts.TableLoopComplexity] = rows
}

// extractStateMutations implements scenario 3 exactly: self.x
// assignment/augmented-assignment, tagged with is_init/
// is_property_setter/is_dunder_method context flags, never more than
// one true simultaneously (invariant 7).
func extractStateMutations(tree extract.Tree, sc *scope.Map, out extract.Output) {
	var rows []extract.Row
	seen := map[string]struct{}{}
	walk(tree.Root(), func(n *sitter.Node) {
		var op string
		switch n.Type() {
		case "assignment":
			op = facts.OpAssignment
		case "augmented_assignment":
			op = facts.OpAugmentedAssignment
		default:
			return
		}
		left := childByField(n, "left")
		if left == nil || left.Type() != "attribute" {
			return
		}
		obj := childByField(left, "object")
		if obj == nil || textOf(tree, obj) != "self" {
			return
		}
		target := textOf(tree, left)
		line := int(n.StartPoint().Row) + 1
		fn := enclosingFuncName(tree, n)
		isInit := fn == "__init__"
		isDunder := strings.HasPrefix(fn, "__") && strings.HasSuffix(fn, "__")
		isSetter := isPropertySetter(tree, n)

		k := itoa(line) + "|" + target + "|" + op
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		rows = append(rows, extract.Row{
			"line": line, "target": target, "operation": op,
			"is_init": boolInt(isInit), "is_property_setter": boolInt(isSetter && !isInit),
			"is_dunder_method": boolInt(isDunder && !isInit && !isSetter),
		})
	})
	out[facts.TableStateMutations] = rows
}

func enclosingFuncName(tree extract.Tree, n *sitter.Node) string {
	p := n.Parent()
	for p != nil {
		if p.Type() == "function_definition" {
			return textOf(tree, childByField(p, "name"))
		}
		p = p.Parent()
	}
	return ""
}

func isPropertySetter(tree extract.Tree, n *sitter.Node) bool {
	p := n.Parent()
	for p != nil {
		if p.Type() == "function_definition" {
			return hasDecorator(tree, p, ".setter")
		}
		p = p.Parent()
	}
	return false
}

func hasDecorator(tree extract.Tree, fn *sitter.Node, suffix string) bool {
	decorated := fn.Parent()
	if decorated == nil || decorated.Type() != "decorated_definition" {
		return false
	}
	for i := 0; i < int(decorated.NamedChildCount()); i++ {
		c := decorated.NamedChild(i)
		if c.Type() == "decorator" && strings.HasSuffix(textOf(tree, c), suffix) {
			return true
		}
	}
	return false
}

func extractExceptions(tree extract.Tree, sc *scope.Map, out extract.Output) {
	var rows []extract.Row
	seen := map[string]struct{}{}
	add := func(kind, excType string, line int, fn string) {
		k := itoa(line) + "|" + kind + "|" + excType
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		rows = append(rows, extract.Row{
			"line": line, "site_kind": kind, "exception_type": excType,
			"enclosing_function": fn,
		})
	}
	walk(tree.Root(), func(n *sitter.Node) {
		line := int(n.StartPoint().Row) + 1
		switch n.Type() {
		case "raise_statement":
			typ := "Exception"
			if n.NamedChildCount() > 0 {
				typ = calleeName(tree, n.NamedChild(0))
			}
			add(facts.ExceptionRaise, typ, line, sc.Lookup(line))
		case "except_clause":
			typ := "Exception"
			if n.NamedChildCount() > 0 {
				typ = textOf(tree, n.NamedChild(0))
			}
			add(facts.ExceptionCatch, typ, line, sc.Lookup(line))
		}
	})
	out[facts.TableExceptionSites] = rows
}

// extractIO implements "static vs dynamic I/O targets" (spec §4.2):
// a literal-string argument yields target+is_static=true; anything
// else yields target="" (Nullable Policy: empty, not null, when the
// producer legitimately has no value) and is_static=false plus
// requires_runtime_analysis=true.
func extractIO(tree extract.Tree, sc *scope.Map, out extract.Output) {
	ioCalls := map[string]string{
		"open": facts.IOFileRead, "subprocess.run": facts.IOSubprocess,
		"subprocess.call": facts.IOSubprocess, "os.system": facts.IOSubprocess,
		"requests.get": facts.IONetwork, "requests.post": facts.IONetwork,
		"socket.socket": facts.IONetwork,
	}
	var rows []extract.Row
	seen := map[string]struct{}{}
	walk(tree.Root(), func(n *sitter.Node) {
		if n.Type() != "call" {
			return
		}
		fn := childByField(n, "function")
		name := fullCalleeName(tree, fn)
		opKind, ok := ioCalls[name]
		if !ok {
			return
		}
		line := int(n.StartPoint().Row) + 1
		var target string
		isStatic := false
		argList := childByField(n, "arguments")
		if argList != nil && argList.NamedChildCount() > 0 {
			arg := argList.NamedChild(0)
			if arg.Type() == "string" {
				target = stripQuotes(textOf(tree, arg))
				isStatic = true
			}
		}
		k := itoa(line) + "|" + opKind
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		rows = append(rows, extract.Row{
			"line": line, "op_kind": opKind, "target": target,
			"is_static": boolInt(isStatic), "requires_runtime_analysis": boolInt(!isStatic),
		})
	})
	out[facts.TableIoOperations] = rows
}

func extractGenerators(tree extract.Tree, sc *scope.Map, out extract.Output) {
	seen := map[string]struct{}{}
	var rows []extract.Row
	walk(tree.Root(), func(n *sitter.Node) {
		if n.Type() != "yield" {
			return
		}
		line := int(n.StartPoint().Row) + 1
		fn := sc.Lookup(line)
		if fn == scope.Global {
			return
		}
		k := itoa(line) + "|" + fn
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		rows = append(rows, extract.Row{"line": line, "function_name": fn})
	})
	out[facts.TableGeneratorYields] = rows
}

func extractProperties(tree extract.Tree, out extract.Output) {
	var rows []extract.Row
	seen := map[string]struct{}{}
	var classStack []string
	walk(tree.Root(), func(n *sitter.Node) {
		switch n.Type() {
		case "class_definition":
			classStack = append(classStack, textOf(tree, childByField(n, "name")))
		case "decorated_definition":
			fn := findFuncIn(n)
			if fn == nil || len(classStack) == 0 {
				return
			}
			class := classStack[len(classStack)-1]
			prop := textOf(tree, childByField(fn, "name"))
			line := int(n.StartPoint().Row) + 1
			kind := ""
			if hasDecoratorText(tree, n, "@property") {
				kind = "getter"
			} else if hasDecorator(tree, fn, ".setter") {
				kind = "setter"
			} else {
				return
			}
			k := itoa(line) + "|" + class + "|" + prop + "|" + kind
			if _, ok := seen[k]; ok {
				return
			}
			seen[k] = struct{}{}
			rows = append(rows, extract.Row{
				"line": line, "class_name": class, "property_name": prop, "accessor_kind": kind,
			})
		}
	})
	out[facts.TablePropertyAccessors] = rows
}

func findFuncIn(decorated *sitter.Node) *sitter.Node {
	for i := 0; i < int(decorated.NamedChildCount()); i++ {
		c := decorated.NamedChild(i)
		if c.Type() == "function_definition" {
			return c
		}
	}
	return nil
}

func hasDecoratorText(tree extract.Tree, decorated *sitter.Node, text string) bool {
	for i := 0; i < int(decorated.NamedChildCount()); i++ {
		c := decorated.NamedChild(i)
		if c.Type() == "decorator" && strings.Contains(textOf(tree, c), text) {
			return true
		}
	}
	return false
}

// extractORM emits orm_models/orm_associations for SQLAlchemy/Django
// style class bodies (gated on Signals.SQLAlchemy || Signals.Django,
// spec §4.2 "must be gated on a signal").
func extractORM(tree extract.Tree, out extract.Output) {
	var models, assocs []extract.Row
	walk(tree.Root(), func(n *sitter.Node) {
		if n.Type() != "class_definition" {
			return
		}
		if !classBasesMatch(tree, n, "Model", "Base", "models.Model") {
			return
		}
		name := textOf(tree, childByField(n, "name"))
		line := int(n.StartPoint().Row) + 1
		models = append(models, extract.Row{"line": line, "class_name": name, "table_name": ""})

		body := childByField(n, "body")
		if body == nil {
			return
		}
		for i := 0; i < int(body.NamedChildCount()); i++ {
			stmt := body.NamedChild(i)
			if stmt.Type() != "expression_statement" {
				continue
			}
			assign := stmt.NamedChild(0)
			if assign == nil || assign.Type() != "assignment" {
				continue
			}
			right := childByField(assign, "right")
			if right == nil || right.Type() != "call" {
				continue
			}
			callee := calleeName(tree, childByField(right, "function"))
			if callee != "relationship" && callee != "ForeignKey" {
				continue
			}
			assocName := textOf(tree, childByField(assign, "left"))
			assocs = append(assocs, extract.Row{
				"line": int(assign.StartPoint().Row) + 1, "owner_class": name,
				"assoc_name": assocName, "assoc_type": callee, "target_class": "",
			})
		}
	})
	out[facts.TableOrmModels] = models
	out[facts.TableOrmAssociations] = assocs
}

func classBasesMatch(tree extract.Tree, n *sitter.Node, candidates ...string) bool {
	superclasses := childByField(n, "superclasses")
	if superclasses == nil {
		return false
	}
	text := textOf(tree, superclasses)
	for _, c := range candidates {
		if strings.Contains(text, c) {
			return true
		}
	}
	return false
}

// extractJobQueue emits job_queue_tasks/workers/beat_schedules for
// Celery-decorated functions (gated on Signals.Celery).
func extractJobQueue(tree extract.Tree, out extract.Output) {
	var tasks, workers, beats []extract.Row
	walk(tree.Root(), func(n *sitter.Node) {
		if n.Type() != "decorated_definition" {
			return
		}
		fn := findFuncIn(n)
		if fn == nil {
			return
		}
		name := textOf(tree, childByField(fn, "name"))
		line := int(n.StartPoint().Row) + 1
		for i := 0; i < int(n.NamedChildCount()); i++ {
			dec := n.NamedChild(i)
			if dec.Type() != "decorator" {
				continue
			}
			text := textOf(tree, dec)
			switch {
			case strings.Contains(text, "shared_task") || strings.Contains(text, "app.task"):
				tasks = append(tasks, extract.Row{"line": line, "task_name": name, "queue": ""})
			case strings.Contains(text, "periodic_task") || strings.Contains(text, "crontab"):
				beats = append(beats, extract.Row{"line": line, "task_name": name, "schedule": text})
			case strings.Contains(text, "worker"):
				workers = append(workers, extract.Row{"line": line, "worker_name": name})
			}
		}
	})
	out[facts.TableJobQueueTasks] = tasks
	out[facts.TableJobQueueWorkers] = workers
	out[facts.TableBeatSchedules] = beats
}

// extractDI emits di_injections for FastAPI-style Depends(...) default
// parameter values (gated on Signals.FastAPI).
func extractDI(tree extract.Tree, sc *scope.Map, out extract.Output) {
	var rows []extract.Row
	walk(tree.Root(), func(n *sitter.Node) {
		if n.Type() != "default_parameter" && n.Type() != "typed_default_parameter" {
			return
		}
		value := childByField(n, "value")
		if value == nil || value.Type() != "call" {
			return
		}
		callee := calleeName(tree, childByField(value, "function"))
		if callee != "Depends" {
			return
		}
		line := int(n.StartPoint().Row) + 1
		fn := enclosingFuncName(tree, n)
		depName := ""
		argList := childByField(value, "arguments")
		if argList != nil && argList.NamedChildCount() > 0 {
			depName = textOf(tree, argList.NamedChild(0))
		}
		rows = append(rows, extract.Row{
			"line": line, "symbol": fn, "dependency_name": depName,
		})
	})
	out[facts.TableDiInjections] = rows
}

// extractValidators emits validator_schemas for Pydantic/Django-form
// style class bodies.
func extractValidators(tree extract.Tree, out extract.Output) {
	var rows []extract.Row
	walk(tree.Root(), func(n *sitter.Node) {
		if n.Type() != "class_definition" {
			return
		}
		if !classBasesMatch(tree, n, "BaseModel", "Schema", "Form", "Serializer") {
			return
		}
		name := textOf(tree, childByField(n, "name"))
		framework := "pydantic"
		if strings.Contains(textOf(tree, childByField(n, "superclasses")), "Form") {
			framework = "django"
		}
		rows = append(rows, extract.Row{
			"line": int(n.StartPoint().Row) + 1, "schema_name": name, "framework": framework,
		})
	})
	out[facts.TableValidatorSchemas] = rows
}

// extractPytest emits test_fixtures/parametrizations/markers for
// pytest-decorated functions (gated on Signals.Pytest).
func extractPytest(tree extract.Tree, sc *scope.Map, out extract.Output) {
	var fixtures, params, markers []extract.Row
	walk(tree.Root(), func(n *sitter.Node) {
		if n.Type() != "decorated_definition" {
			return
		}
		fn := findFuncIn(n)
		if fn == nil {
			return
		}
		name := textOf(tree, childByField(fn, "name"))
		line := int(n.StartPoint().Row) + 1
		for i := 0; i < int(n.NamedChildCount()); i++ {
			dec := n.NamedChild(i)
			if dec.Type() != "decorator" {
				continue
			}
			text := textOf(tree, dec)
			switch {
			case strings.Contains(text, "pytest.fixture"):
				sc := "function"
				if strings.Contains(text, "scope=") {
					sc = extractScopeArg(text)
				}
				fixtures = append(fixtures, extract.Row{"line": line, "fixture_name": name, "scope": sc})
			case strings.Contains(text, "parametrize"):
				params = append(params, extract.Row{"line": line, "test_name": name, "params_json": "[]"})
			case strings.Contains(text, "pytest.mark."):
				marker := markerName(text)
				markers = append(markers, extract.Row{"line": line, "test_name": name, "marker": marker})
			}
		}
	})
	out[facts.TableTestFixtures] = fixtures
	out[facts.TableTestParametrizations] = params
	out[facts.TableTestMarkers] = markers
}

func extractScopeArg(text string) string {
	idx := strings.Index(text, "scope=")
	if idx < 0 {
		return "function"
	}
	rest := text[idx+len("scope="):]
	rest = strings.Trim(rest, "\"')( ")
	if i := strings.IndexAny(rest, ",)\""); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "function"
	}
	return rest
}

func markerName(text string) string {
	idx := strings.Index(text, "pytest.mark.")
	if idx < 0 {
		return text
	}
	rest := text[idx+len("pytest.mark."):]
	if i := strings.IndexAny(rest, "( \n"); i >= 0 {
		rest = rest[:i]
	}
	return rest
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
		if (n.Type() == "for_statement" || n.Type() == "while_statement") && line >= start {
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

// paramNames returns a function_definition's parameter names in
// declared order, "self"/"cls" included (extractCore drops those for
// methods) — the taint
// engine's call-boundary binding matches this against each call
// argument's recorded position.
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
		case "typed_parameter", "default_parameter", "typed_default_parameter":
			if name := childByField(p, "name"); name != nil {
				names = append(names, textOf(tree, name))
			} else if p.NamedChildCount() > 0 {
				names = append(names, textOf(tree, p.NamedChild(0)))
			}
		}
	}
	return names
}

func calleeName(tree extract.Tree, n *sitter.Node) string {
	if n == nil {
		return ""
	}
	if n.Type() == "attribute" {
		attr := childByField(n, "attribute")
		return textOf(tree, attr)
	}
	return textOf(tree, n)
}

func fullCalleeName(tree extract.Tree, n *sitter.Node) string {
	if n == nil {
		return ""
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
