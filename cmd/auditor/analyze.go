package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/TheAuditorTool/auditor/internal/analyze"
	"github.com/TheAuditorTool/auditor/internal/errs"
	"github.com/TheAuditorTool/auditor/internal/store"
)

// newAnalyzeCmd builds the `analyze` subcommand: run the analyzer
// framework against an existing Fact Store (spec §6 "analyze — run
// analyzers against an existing Fact Store").
func newAnalyzeCmd(app *appFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Run the built-in analyzers against an existing Fact Store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(app)
			if err != nil {
				return err
			}
			root, err := filepath.Abs(cfg.Root)
			if err != nil {
				return errs.New(errs.UserError, "", 0, "resolving project root: "+err.Error(), err)
			}

			rh, err := store.OpenReadOnly(dbPath(root))
			if err != nil {
				return errs.New(errs.UserError, "", 0, err.Error(), err)
			}
			defer rh.Close()

			report := analyze.Run(cmd.Context(), rh, analyze.Default())

			if cfg.JSON {
				data, err := json.MarshalIndent(report.Findings, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
			} else {
				for _, f := range report.Findings {
					fmt.Printf("%-8s %-8s %s:%d %s\n", f.RuleID, f.Severity, f.File, f.Line, f.Message)
				}
			}

			if len(report.Failed) > 0 {
				fmt.Printf("%d analyzer(s) failed: %v\n", len(report.Failed), report.Failed)
				return errs.New(errs.AnalysisFailure, "", 0, "one or more analyzers failed", nil)
			}
			return nil
		},
	}
}
