package golang

import (
	"context"
	"testing"

	"github.com/TheAuditorTool/auditor/internal/extract"
	"github.com/TheAuditorTool/auditor/internal/facts"
)

const sample = `package widgets

func NewWidget(name string) *Widget {
	w := &Widget{Name: name}
	return w
}

func (w *Widget) Render() string {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			eval(w.Name)
		}
	}
	return w.Name
}
`

func parseSample(t *testing.T) extract.Tree {
	t.Helper()
	tree, err := extract.Parse(context.Background(), Language(), "go", []byte(sample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return tree
}

func TestExtractFindsFunctionSymbols(t *testing.T) {
	tree := parseSample(t)
	out, err := Extract(extract.FileInfo{Path: "widget.go", Language: "go"}, tree, extract.Signals{})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	symbols := out[facts.TableSymbols]
	if len(symbols) == 0 {
		t.Fatal("expected at least one symbol row")
	}

	var names []string
	for _, s := range symbols {
		if n, ok := s["qualified_name"].(string); ok {
			names = append(names, n)
		}
	}
	wantAny := map[string]bool{"NewWidget": false, "Widget.Render": false}
	for _, n := range names {
		if _, ok := wantAny[n]; ok {
			wantAny[n] = true
		}
	}
	for name, found := range wantAny {
		if !found {
			t.Errorf("expected a symbol named %q among %v", name, names)
		}
	}
}

func TestExtractRecordsParamNamesForTaintBinding(t *testing.T) {
	tree := parseSample(t)
	out, err := Extract(extract.FileInfo{Path: "widget.go", Language: "go"}, tree, extract.Signals{})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	for _, s := range out[facts.TableSymbols] {
		if s["qualified_name"] != "NewWidget" {
			continue
		}
		params, _ := s["params_json"].(string)
		if params != `["name"]` {
			t.Errorf("expected NewWidget's params_json to be [\"name\"], got %q", params)
		}
		return
	}
	t.Fatal("expected a NewWidget symbol row")
}

func TestExtractFindsCallsIncludingDangerousCallee(t *testing.T) {
	tree := parseSample(t)
	out, err := Extract(extract.FileInfo{Path: "widget.go", Language: "go"}, tree, extract.Signals{})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	calls := out[facts.TableCalls]
	found := false
	for _, c := range calls {
		if c["callee_name"] == "eval" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a call row for eval(), got %+v", calls)
	}
}

func TestExtractComputesNestedLoopDepth(t *testing.T) {
	tree := parseSample(t)
	out, err := Extract(extract.FileInfo{Path: "widget.go", Language: "go"}, tree, extract.Signals{})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	rows := out[facts.TableLoopComplexity]
	if len(rows) == 0 {
		t.Fatal("expected at least one loop_complexity row")
	}
	maxDepth := 0
	for _, r := range rows {
		if d, ok := r["depth"].(int); ok && d > maxDepth {
			maxDepth = d
		}
	}
	if maxDepth < 2 {
		t.Errorf("expected max nested loop depth >= 2, got %d", maxDepth)
	}
}

func TestExtractNeverSetsFileKey(t *testing.T) {
	tree := parseSample(t)
	out, err := Extract(extract.FileInfo{Path: "widget.go", Language: "go"}, tree, extract.Signals{})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	for table, rows := range out {
		for _, r := range rows {
			if _, ok := r["file"]; ok {
				t.Errorf("table %s: extractor row must not set \"file\" (Normalizer's job)", table)
			}
		}
	}
}
