package main

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/TheAuditorTool/auditor/internal/errs"
	"github.com/TheAuditorTool/auditor/internal/normalize"
	"github.com/TheAuditorTool/auditor/internal/pipeline"
	"github.com/TheAuditorTool/auditor/internal/store"
)

// newIndexCmd builds the `index` subcommand: parse, extract, normalize,
// flush (spec §6 "index — parse, extract, normalize, flush. Exits 0 on
// success, non-zero on contract violation").
func newIndexCmd(app *appFlags) *cobra.Command {
	var include, exclude []string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the Fact Store from the project's source tree",
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
			defer s.Close()

			scope := pipeline.Scope{
				Root:    root,
				Include: firstNonEmpty(include, cfg.Include),
				Exclude: firstNonEmpty(exclude, cfg.Exclude),
				Workers: workers,
			}

			result, err := pipeline.Run(cmd.Context(), s, scope)
			if err != nil {
				return err
			}
			if err := s.Validate(); err != nil {
				return err
			}

			run, err := writeReceipt(root, result.Receipt)
			if err != nil {
				log.Warnw("could not write run receipt", "error", err)
			} else if diff, derr := previousReceiptDiff(root, "receipt.json", run, mustReceiptJSON(result.Receipt)); derr == nil && diff != "" {
				log.Infow("run receipt changed since previous index", "diff", diff)
			}

			summary := result.Errors.Summary()
			for kind, count := range summary {
				log.Warnw("non-fatal errors during index", "kind", kind.String(), "count", count)
			}

			if result.Cancelled {
				fmt.Println("index cancelled: partial results flushed")
				return errs.New(errs.Cancelled, "", 0, "index run was cancelled", nil)
			}

			fmt.Printf("indexed into %s (%d tables)\n", dbPath(root), len(result.Receipt.Counts))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&include, "include", nil, "include glob patterns")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "exclude glob patterns")
	return cmd
}

func writeReceipt(root string, receipt normalize.Receipt) (string, error) {
	data, err := normalize.MarshalReceipt(receipt)
	if err != nil {
		return "", err
	}
	return writeHistoryFile(root, "receipt.json", data)
}

// mustReceiptJSON re-marshals a receipt for diffing against history.
// writeReceipt already validated the receipt marshals cleanly, so a
// second failure here would mean memory corruption, not bad input.
func mustReceiptJSON(receipt normalize.Receipt) []byte {
	data, err := normalize.MarshalReceipt(receipt)
	if err != nil {
		panic(err)
	}
	return data
}

func firstNonEmpty(a, b []string) []string {
	if len(a) > 0 {
		return a
	}
	return b
}
