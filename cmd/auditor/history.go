package main

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"
)

// writeHistoryFile persists a per-run snapshot file under
// .pf/history/<run>/ (spec §6 persisted state layout: "history/ # per-run
// snapshots"). Runs are keyed by start timestamp plus a short uuid
// suffix, so two invocations within the same second never collide.
func writeHistoryFile(root, name string, data []byte) (string, error) {
	run := time.Now().UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
	dir := filepath.Join(historyDir(root), run)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return run, os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

// previousReceiptDiff takes the most recent prior run directory (by
// name, which sorts chronologically since it's timestamp-prefixed)
// and, if it carries the given file name, returns a unified diff
// against the just-written content. It returns "" if there is no prior
// run or that run lacks the file; older runs are not searched.
func previousReceiptDiff(root, name, currentRun string, current []byte) (string, error) {
	entries, err := os.ReadDir(historyDir(root))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	var runs []string
	for _, e := range entries {
		if e.IsDir() && e.Name() != currentRun {
			runs = append(runs, e.Name())
		}
	}
	sort.Strings(runs)
	if len(runs) == 0 {
		return "", nil
	}
	prevRun := runs[len(runs)-1]

	prev, err := os.ReadFile(filepath.Join(historyDir(root), prevRun, name))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(prev)),
		B:        difflib.SplitLines(string(current)),
		FromFile: prevRun + "/" + name,
		ToFile:   currentRun + "/" + name,
		Context:  2,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(text, "\n"), nil
}

// walkDocsDir lists every "<ecosystem>/<package>@<version>" directory
// under a docs root, skipping anything not matching that two-level shape.
func walkDocsDir(root string) ([]string, error) {
	var out []string
	ecosystems, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	for _, eco := range ecosystems {
		if !eco.IsDir() {
			continue
		}
		pkgs, err := os.ReadDir(filepath.Join(root, eco.Name()))
		if err != nil {
			continue
		}
		for _, p := range pkgs {
			if p.IsDir() && strings.Contains(p.Name(), "@") {
				out = append(out, eco.Name()+"/"+p.Name())
			}
		}
	}
	return out, nil
}
