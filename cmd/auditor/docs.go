package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/TheAuditorTool/auditor/internal/docsfetch"
	"github.com/TheAuditorTool/auditor/internal/errs"
)

// newDocsCmd builds the `docs` subcommand: fetch external documentation
// for one package version named on the command line (<ecosystem>
// <package> <version> <base-url>), or with --list print what has
// already been fetched. It does not walk the manifest dependencies
// (spec §6 "docs — fetch, view, list
// external documentation. Supports --max-pages and version-aware URL
// patterns").
func newDocsCmd(app *appFlags) *cobra.Command {
	var maxPages int
	var list bool

	cmd := &cobra.Command{
		Use:   "docs [ecosystem] [package] [version] [base-url]",
		Short: "Fetch, view, or list external package documentation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(app)
			if err != nil {
				return err
			}
			if maxPages <= 0 {
				maxPages = cfg.Docs.MaxPages
			}
			root, err := filepath.Abs(cfg.Root)
			if err != nil {
				return errs.New(errs.UserError, "", 0, "resolving project root: "+err.Error(), err)
			}

			if list {
				return listDocs(root)
			}

			if len(args) != 4 {
				return errs.New(errs.UserError, "", 0, "docs requires <ecosystem> <package> <version> <base-url>, or --list", nil)
			}
			ecosystem, pkg, version, baseURL := args[0], args[1], args[2], args[3]

			f := docsfetch.New(docsRoot(root), maxPages)
			meta, err := f.Fetch(cmd.Context(), ecosystem, pkg, version, baseURL)
			if err != nil {
				return err
			}

			log.Infow("fetched documentation", "package", pkg, "version", version, "files", meta.FileCount)
			fmt.Printf("fetched %d file(s) for %s/%s@%s\n", meta.FileCount, ecosystem, pkg, version)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "maximum pages to fetch per package (0 = config default)")
	cmd.Flags().BoolVar(&list, "list", false, "list already-fetched documentation")
	return cmd
}

// listDocs walks the already-fetched documentation directory and
// prints each package@version entry found.
func listDocs(root string) error {
	entries, err := walkDocsDir(docsRoot(root))
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Println(e)
	}
	return nil
}
