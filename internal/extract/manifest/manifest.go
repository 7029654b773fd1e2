// Package manifest extracts dependency_manifests rows from
// package-manager config files (SPEC_FULL §3 "Dependency Manifest
// detail"). Unlike the per-AST language extractors, these files are
// parsed as JSON (package.json) or as line-oriented text
// (requirements.txt, go.mod, Dockerfile), never tree-sitter — package
// manifests aren't source code. YAML manifests such as docker-compose
// are not parsed.
package manifest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/TheAuditorTool/auditor/internal/extract"
	"github.com/TheAuditorTool/auditor/internal/facts"
)

// Detect reports whether path names a recognised manifest file.
// pyproject.toml is recognised, but Extract emits no rows for it.
func Detect(path string) bool {
	base := filepath.Base(path)
	switch base {
	case "package.json", "requirements.txt", "go.mod", "Dockerfile", "pyproject.toml":
		return true
	}
	return false
}

// Extract parses a single manifest file and emits dependency_manifests
// rows. fi.Path names the manager via its basename.
func Extract(fi extract.FileInfo, content []byte) (extract.Output, error) {
	out := make(extract.Output)
	base := filepath.Base(fi.Path)

	var rows []extract.Row
	switch base {
	case "package.json":
		rows = extractPackageJSON(content)
	case "requirements.txt":
		rows = extractRequirementsTxt(content)
	case "go.mod":
		rows = extractGoMod(content)
	case "Dockerfile":
		rows = extractDockerfile(content)
	}

	out[facts.TableDependencyManifests] = rows
	return out, nil
}

func extractPackageJSON(content []byte) []extract.Row {
	var doc struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil
	}
	var rows []extract.Row
	for name, ver := range doc.Dependencies {
		rows = append(rows, depRow("npm", name, ver, false, ""))
	}
	for name, ver := range doc.DevDependencies {
		rows = append(rows, depRow("npm", name, ver, true, ""))
	}
	return rows
}

func extractRequirementsTxt(content []byte) []extract.Row {
	var rows []extract.Row
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, constraint := splitRequirement(line)
		if name == "" {
			continue
		}
		rows = append(rows, depRow("pip", name, constraint, false, line))
	}
	return rows
}

func splitRequirement(line string) (name, constraint string) {
	for _, sep := range []string{"==", ">=", "<=", "~=", "!=", ">", "<"} {
		if idx := strings.Index(line, sep); idx >= 0 {
			return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx:])
		}
	}
	return strings.TrimSpace(line), ""
}

func extractGoMod(content []byte) []extract.Row {
	var rows []extract.Row
	scanner := bufio.NewScanner(bytes.NewReader(content))
	inRequire := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "require ("):
			inRequire = true
			continue
		case line == ")" && inRequire:
			inRequire = false
			continue
		case strings.HasPrefix(line, "require ") && !strings.Contains(line, "("):
			line = strings.TrimPrefix(line, "require ")
		case !inRequire:
			continue
		}
		isDev := strings.Contains(line, "// indirect")
		line = strings.TrimSuffix(strings.TrimSpace(strings.Split(line, "//")[0]), " ")
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		rows = append(rows, depRow("go", fields[0], fields[1], isDev, line))
	}
	return rows
}

func extractDockerfile(content []byte) []extract.Row {
	var rows []extract.Row
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(strings.ToUpper(line), "FROM ") {
			continue
		}
		ref := strings.Fields(line)[1]
		name, tag := ref, "latest"
		if idx := strings.LastIndex(ref, ":"); idx > strings.LastIndex(ref, "/") {
			name, tag = ref[:idx], ref[idx+1:]
		}
		rows = append(rows, depRow("docker", name, tag, false, line))
	}
	return rows
}

func depRow(manager, name, constraint string, isDev bool, raw string) extract.Row {
	return extract.Row{
		"manager": manager, "name": name, "version_constraint": constraint,
		"is_dev": boolInt(isDev), "is_optional_group": 0, "raw_entry": raw,
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
