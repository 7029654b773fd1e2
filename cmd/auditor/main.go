// Command auditor is the CLI entry point: index, analyze, taint, deps,
// docs, and full, wired onto one cobra.Command per concern (ground:
// demo/cmd/main.go's rootCmd/runCmd/listCmd construction, scaled here
// to the six top-level commands spec §6 names).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TheAuditorTool/auditor/internal/errs"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var rec *errs.Record
		if r, ok := err.(*errs.Record); ok {
			rec = r
		}
		fmt.Fprintln(os.Stderr, err)
		if rec != nil {
			os.Exit(rec.Kind.ExitCode())
		}
		os.Exit(errs.UserError.ExitCode())
	}
}

func newRootCmd() *cobra.Command {
	app := &appFlags{}

	root := &cobra.Command{
		Use:           "auditor",
		Short:         "Offline static-analysis and code-intelligence engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&app.root, "root", ".", "project root directory")
	root.PersistentFlags().IntVar(&app.workers, "workers", 0, "worker count (0 = runtime.NumCPU()*2)")
	root.PersistentFlags().BoolVar(&app.json, "json", false, "emit JSON output")
	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(
		newIndexCmd(app),
		newAnalyzeCmd(app),
		newTaintCmd(app),
		newDepsCmd(app),
		newDocsCmd(app),
		newFullCmd(app),
	)
	return root
}

// appFlags holds the persistent flags every subcommand's RunE reads
// (spec §6 "a primary multi-command entry point").
type appFlags struct {
	root    string
	workers int
	json    bool
	verbose bool
}
