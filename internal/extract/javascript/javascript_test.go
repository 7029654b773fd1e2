package javascript

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
	tree, err := extract.Parse(context.Background(), Language(), "javascript", []byte(src))
	require.NoError(t, err)
	return tree
}

// TestExtractFindsSymbolsAndCalls covers the core/data-flow sub-modules
// shared by every scenario below.
func TestExtractFindsSymbolsAndCalls(t *testing.T) {
	src := `function handler(req) {
	const cmd = req.query.cmd;
	exec(cmd);
	return cmd;
}
`
	tree := parseSample(t, src)
	out, err := Extract(extract.FileInfo{Path: "handler.js", Language: "javascript"}, tree, extract.Signals{})
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
	assert.Contains(t, callees, "exec")

	require.Len(t, out[facts.TableReturns], 1)
	require.Len(t, out[facts.TableAssignments], 1)
}

// TestRoutePathNormalizesAdvancedPatterns exercises scenario 5 exactly:
// a route directory with a group segment, an optional UUID-matched
// param, and a rest param.
func TestRoutePathNormalizesAdvancedPatterns(t *testing.T) {
	pattern, hasGroup, hasOptional, hasRest, params := RoutePath("(auth)/[[id=uuid]]/[...rest]")

	assert.Equal(t, "/:id?/:rest*", pattern)
	assert.True(t, hasGroup)
	assert.True(t, hasOptional)
	assert.True(t, hasRest)

	require.Len(t, params, 2)

	assert.Equal(t, "id", params[0].Name)
	assert.True(t, params[0].Optional)
	assert.Equal(t, "uuid", params[0].Matcher)
	assert.False(t, params[0].IsRest)
	assert.Equal(t, 0, params[0].Segment)

	assert.Equal(t, "rest", params[1].Name)
	assert.True(t, params[1].IsRest)
	assert.False(t, params[1].Optional)
	assert.Equal(t, 1, params[1].Segment)
}

// TestExtractRoutesEmitsOneRowWithFlags exercises scenario 5's full
// extraction path: ExtractRoutes against a file-system route path
// must emit exactly one routes row with all three pattern flags set.
func TestExtractRoutesEmitsOneRowWithFlags(t *testing.T) {
	tree := parseSample(t, "export function load() {}")
	out := make(extract.Output)
	fi := extract.FileInfo{Path: "src/routes/(auth)/[[id=uuid]]/[...rest]/+page.js"}

	ExtractRoutes(fi, tree, out)

	rows := out[facts.TableRoutes]
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "/:id?/:rest*", row["pattern"])
	assert.Equal(t, facts.EndpointHTTP, row["endpoint_kind"])
	assert.Equal(t, 1, row["has_group_segments"])
	assert.Equal(t, 1, row["has_optional_params"])
	assert.Equal(t, 1, row["has_rest_params"])

	params := out[facts.TableRouteParams]
	require.Len(t, params, 2)
}

// TestExtractFormsEmitsPostEndpointsExcludedFromHTTPMatching covers
// scenario 6: a default form action and a named "login" action under
// /account must each emit a POST routes row with the form-action
// discriminator, distinguishable from generic HTTP routes.
func TestExtractFormsEmitsPostEndpointsExcludedFromHTTPMatching(t *testing.T) {
	src := `export const actions = {
	default: async ({ request }) => {},
	login: async ({ request }) => {},
};
`
	tree := parseSample(t, src)
	out := make(extract.Output)
	fi := extract.FileInfo{Path: "src/routes/account/+page.server.js"}

	ExtractForms(fi, tree, out)

	rows := out[facts.TableRoutes]
	require.Len(t, rows, 2)

	byPattern := map[string]extract.Row{}
	for _, r := range rows {
		byPattern[r["pattern"].(string)] = r
	}

	def, ok := byPattern["/account"]
	require.True(t, ok)
	assert.Equal(t, "POST", def["method"])
	assert.Equal(t, facts.EndpointFormAction, def["endpoint_kind"])

	login, ok := byPattern["/account?/login"]
	require.True(t, ok)
	assert.Equal(t, "POST", login["method"])
	assert.Equal(t, facts.EndpointFormAction, login["endpoint_kind"])

	// Cross-boundary matchers filter on endpoint_kind != EndpointHTTP;
	// neither row may carry the generic HTTP discriminator.
	for _, r := range rows {
		assert.NotEqual(t, facts.EndpointHTTP, r["endpoint_kind"])
	}
}

func TestExtractNeverSetsFileKey(t *testing.T) {
	tree := parseSample(t, "function f(){ eval(x); }")
	out, err := Extract(extract.FileInfo{Path: "f.js", Language: "javascript"}, tree, extract.Signals{Express: true})
	require.NoError(t, err)
	for table, rows := range out {
		for _, r := range rows {
			_, ok := r["file"]
			assert.Falsef(t, ok, "table %s: extractor row must not set \"file\"", table)
		}
	}
}
