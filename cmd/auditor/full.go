package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/TheAuditorTool/auditor/internal/analyze"
	"github.com/TheAuditorTool/auditor/internal/errs"
	"github.com/TheAuditorTool/auditor/internal/pipeline"
	"github.com/TheAuditorTool/auditor/internal/store"
	"github.com/TheAuditorTool/auditor/internal/taint"
)

// newFullCmd builds the `full` subcommand: index, then analyze, then
// taint, against the freshly-built Fact Store in one invocation (spec
// §6 "full — run the whole pipeline").
func newFullCmd(app *appFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "full",
		Short: "Run index, analyze, and taint in sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(app)
			if err != nil {
				return err
			}
			root, err := filepath.Abs(cfg.Root)
			if err != nil {
				return errs.New(errs.UserError, "", 0, "resolving project root: "+err.Error(), err)
			}

			workers := cfg.Workers
			if workers <= 0 {
				workers = runtime.NumCPU() * 2
			}

			s, err := store.Open(dbPath(root))
			if err != nil {
				return err
			}

			scope := pipeline.Scope{Root: root, Include: cfg.Include, Exclude: cfg.Exclude, Workers: workers}
			result, err := pipeline.Run(cmd.Context(), s, scope)
			if err != nil {
				s.Close()
				return err
			}
			if err := s.Validate(); err != nil {
				s.Close()
				return err
			}
			_ = writeReceipt(root, result.Receipt)
			log.Infow("index stage complete", "tables", len(result.Receipt.Counts))
			s.Close()

			if result.Cancelled {
				return errs.New(errs.Cancelled, "", 0, "full run was cancelled during indexing", nil)
			}

			rh, err := store.OpenReadOnly(dbPath(root))
			if err != nil {
				return err
			}
			defer rh.Close()

			report := analyze.Run(cmd.Context(), rh, analyze.Default())
			log.Infow("analyze stage complete", "findings", len(report.Findings), "failed", report.Failed)
			fmt.Printf("analyze: %d finding(s), %d analyzer failure(s)\n", len(report.Findings), len(report.Failed))

			engine := taint.New(taint.DefaultConfig())
			findings, err := engine.Run(cmd.Context(), rh)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(findings, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(taintPath(root), data, 0o644); err != nil {
				return fmt.Errorf("writing taint_analysis.json: %w", err)
			}
			fmt.Printf("taint: %d path(s) found\n", len(findings))

			if len(report.Failed) > 0 {
				return errs.New(errs.AnalysisFailure, "", 0, "one or more analyzers failed", nil)
			}
			return nil
		},
	}
}
