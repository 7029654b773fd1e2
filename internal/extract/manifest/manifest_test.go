package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheAuditorTool/auditor/internal/extract"
	"github.com/TheAuditorTool/auditor/internal/facts"
)

func TestDetectRecognizesManifestBasenames(t *testing.T) {
	assert.True(t, Detect("pkg/package.json"))
	assert.True(t, Detect("requirements.txt"))
	assert.True(t, Detect("go.mod"))
	assert.True(t, Detect("Dockerfile"))
	assert.True(t, Detect("pyproject.toml"))
	assert.False(t, Detect("README.md"))
}

func TestExtractPackageJSONSplitsDevDependencies(t *testing.T) {
	content := []byte(`{
		"dependencies": {"express": "^4.18.0"},
		"devDependencies": {"jest": "^29.0.0"}
	}`)
	out, err := Extract(extract.FileInfo{Path: "package.json"}, content)
	require.NoError(t, err)

	rows := out[facts.TableDependencyManifests]
	require.Len(t, rows, 2)

	byName := map[string]extract.Row{}
	for _, r := range rows {
		byName[r["name"].(string)] = r
	}

	express := byName["express"]
	assert.Equal(t, "npm", express["manager"])
	assert.Equal(t, 0, express["is_dev"])

	jest := byName["jest"]
	assert.Equal(t, "npm", jest["manager"])
	assert.Equal(t, 1, jest["is_dev"])
}

func TestExtractRequirementsTxtSplitsConstraint(t *testing.T) {
	content := []byte("# comment\nrequests==2.31.0\nflask>=2.0\n")
	out, err := Extract(extract.FileInfo{Path: "requirements.txt"}, content)
	require.NoError(t, err)

	rows := out[facts.TableDependencyManifests]
	require.Len(t, rows, 2)
	assert.Equal(t, "pip", rows[0]["manager"])
	assert.Equal(t, "requests", rows[0]["name"])
	assert.Equal(t, "==2.31.0", rows[0]["version_constraint"])
}

func TestExtractGoModFindsRequireBlockAndIndirect(t *testing.T) {
	content := []byte(`module example.com/foo

require (
	github.com/stretchr/testify v1.9.0
	github.com/davecgh/go-spew v1.1.1 // indirect
)
`)
	out, err := Extract(extract.FileInfo{Path: "go.mod"}, content)
	require.NoError(t, err)

	rows := out[facts.TableDependencyManifests]
	require.Len(t, rows, 2)

	byName := map[string]extract.Row{}
	for _, r := range rows {
		byName[r["name"].(string)] = r
	}
	assert.Equal(t, 0, byName["github.com/stretchr/testify"]["is_dev"])
	assert.Equal(t, 1, byName["github.com/davecgh/go-spew"]["is_dev"])
}

func TestExtractDockerfileParsesBaseImageTag(t *testing.T) {
	content := []byte("FROM postgres:17-alpine3.21\nRUN echo hi\n")
	out, err := Extract(extract.FileInfo{Path: "Dockerfile"}, content)
	require.NoError(t, err)

	rows := out[facts.TableDependencyManifests]
	require.Len(t, rows, 1)
	assert.Equal(t, "docker", rows[0]["manager"])
	assert.Equal(t, "postgres", rows[0]["name"])
	assert.Equal(t, "17-alpine3.21", rows[0]["version_constraint"])
}
