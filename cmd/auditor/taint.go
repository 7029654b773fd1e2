package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/TheAuditorTool/auditor/internal/errs"
	"github.com/TheAuditorTool/auditor/internal/store"
	"github.com/TheAuditorTool/auditor/internal/taint"
)

// newTaintCmd builds the `taint` subcommand: run the two-stage taint
// propagator against an existing Fact Store and persist one finding
// object per path to taint_analysis.json (spec §6 "taint — run the
// taint engine against an existing Fact Store"; persisted layout
// "taint_analysis.json # taint findings, one object per path").
func newTaintCmd(app *appFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "taint",
		Short: "Run inter-procedural taint analysis against an existing Fact Store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(app)
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

			taintCfg := taint.DefaultConfig()
			taintCfg.MaxDepth = cfg.Taint.MaxDepth
			taintCfg.MaxSignaturesPerState = cfg.Taint.MaxSignaturesPerState
			taintCfg.MaxRecursionDepth = cfg.Taint.MaxRecursionDepth

			engine := taint.New(taintCfg)
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

			if cfg.JSON {
				fmt.Println(string(data))
			} else {
				fmt.Printf("%d taint path(s) found, written to %s\n", len(findings), taintPath(root))
			}
			log.Infow("taint analysis complete", "findings", len(findings))
			return nil
		},
	}
}
