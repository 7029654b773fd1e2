package main

import (
	"path/filepath"

	"go.uber.org/zap"

	"github.com/TheAuditorTool/auditor/internal/config"
	"github.com/TheAuditorTool/auditor/internal/errs"
	"github.com/TheAuditorTool/auditor/internal/logging"
)

// pfDir returns the project's engine-state directory (spec §6
// "Persisted state layout": "project-root/.pf/").
func pfDir(root string) string {
	return filepath.Join(root, ".pf")
}

func dbPath(root string) string {
	return filepath.Join(pfDir(root), "repo_index.db")
}

func taintPath(root string) string {
	return filepath.Join(pfDir(root), "taint_analysis.json")
}

func docsRoot(root string) string {
	return filepath.Join(pfDir(root), "context", "docs")
}

func historyDir(root string) string {
	return filepath.Join(pfDir(root), "history")
}

// loadConfig layers CLI flags on top of config.Load's defaults/env/yaml
// precedence chain (internal/config's documented order).
func loadConfig(app *appFlags) (*config.Config, *zap.SugaredLogger, error) {
	cfg, err := config.Load(app.root)
	if err != nil {
		return nil, nil, errs.New(errs.UserError, "", 0, "loading configuration: "+err.Error(), err)
	}
	if app.workers > 0 {
		cfg.Workers = app.workers
	}
	cfg.JSON = cfg.JSON || app.json
	cfg.Verbose = cfg.Verbose || app.verbose

	log := logging.New(app.verbose)
	logging.SetDefault(log)
	return cfg, log, nil
}
