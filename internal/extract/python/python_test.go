package python

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheAuditorTool/auditor/internal/extract"
	"github.com/TheAuditorTool/auditor/internal/facts"
)

func parseSample(t *testing.T, src string) extract.Tree {
	t.Helper()
	tree, err := extract.Parse(context.Background(), Language(), "python", []byte(src))
	require.NoError(t, err)
	return tree
}

// TestExtractStateMutationsDistinguishesInitFromSideEffects is scenario
// 3, verbatim: a Counter class whose __init__ sets self.count and whose
// increment method augments it must produce two state_mutations rows
// with target "self.count", the first is_init=true/assignment, the
// second is_init=false/augmented_assignment — never two context flags
// true on the same row (invariant 7).
func TestExtractStateMutationsDistinguishesInitFromSideEffects(t *testing.T) {
	src := `class Counter:
    def __init__(self):
        self.count = 0

    def increment(self):
        self.count += 1
`
	tree := parseSample(t, src)
	out, err := Extract(extract.FileInfo{Path: "counter.py", Language: "python"}, tree, extract.Signals{})
	require.NoError(t, err)

	rows := out[facts.TableStateMutations]
	require.Len(t, rows, 2)

	byOp := map[string]extract.Row{}
	for _, r := range rows {
		assert.Equal(t, "self.count", r["target"])
		byOp[r["operation"].(string)] = r

		// invariant 7: at most one context flag true per row.
		trueCount := r["is_init"].(int) + r["is_property_setter"].(int) + r["is_dunder_method"].(int)
		assert.LessOrEqual(t, trueCount, 1)
	}

	initRow, ok := byOp[facts.OpAssignment]
	require.True(t, ok)
	assert.Equal(t, 1, initRow["is_init"])
	assert.Equal(t, 0, initRow["is_property_setter"])
	assert.Equal(t, 0, initRow["is_dunder_method"])

	incRow, ok := byOp[facts.OpAugmentedAssignment]
	require.True(t, ok)
	assert.Equal(t, 0, incRow["is_init"])
	assert.Equal(t, 0, incRow["is_property_setter"])
	assert.Equal(t, 0, incRow["is_dunder_method"])
}

// TestExtractPropertySetterFlag covers the third context flag: a
// mutation inside a @x.setter-decorated method is neither init nor a
// dunder, so only is_property_setter should be true.
func TestExtractPropertySetterFlag(t *testing.T) {
	src := `class Box:
    @value.setter
    def value(self, v):
        self._value = v
`
	tree := parseSample(t, src)
	out, err := Extract(extract.FileInfo{Path: "box.py", Language: "python"}, tree, extract.Signals{})
	require.NoError(t, err)

	rows := out[facts.TableStateMutations]
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, 0, row["is_init"])
	assert.Equal(t, 1, row["is_property_setter"])
	assert.Equal(t, 0, row["is_dunder_method"])
}

func TestExtractFindsSymbolsCallsAndLoopDepth(t *testing.T) {
	src := `def handler(req):
    cmd = req.get("cmd")
    for i in range(3):
        for j in range(3):
            eval(cmd)
    return cmd
`
	tree := parseSample(t, src)
	out, err := Extract(extract.FileInfo{Path: "handler.py", Language: "python"}, tree, extract.Signals{})
	require.NoError(t, err)

	var names []string
	for _, s := range out[facts.TableSymbols] {
		names = append(names, s["qualified_name"].(string))
	}
	assert.Contains(t, names, "handler")

	var callees []string
	for _, c := range out[facts.TableCalls] {
		callees = append(callees, c["callee_name"].(string))
	}
	assert.Contains(t, callees, "eval")

	rows := out[facts.TableLoopComplexity]
	require.NotEmpty(t, rows)
	maxDepth := 0
	for _, r := range rows {
		if d := r["depth"].(int); d > maxDepth {
			maxDepth = d
		}
	}
	assert.GreaterOrEqual(t, maxDepth, 2)
}

func TestExtractNeverSetsFileKey(t *testing.T) {
	tree := parseSample(t, "def f():\n    eval(x)\n")
	out, err := Extract(extract.FileInfo{Path: "f.py", Language: "python"}, tree, extract.Signals{})
	require.NoError(t, err)
	for table, rows := range out {
		for _, r := range rows {
			_, ok := r["file"]
			assert.Falsef(t, ok, "table %s: extractor row must not set \"file\"", table)
		}
	}
}
