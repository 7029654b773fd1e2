package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/TheAuditorTool/auditor/internal/errs"
	"github.com/TheAuditorTool/auditor/internal/registryclient"
	"github.com/TheAuditorTool/auditor/internal/semver"
	"github.com/TheAuditorTool/auditor/internal/store"
)

// newDepsCmd builds the `deps` subcommand: inspect dependency manifests
// and, with --check-latest, resolve upgrade candidates against the
// package/container registries (spec §6 "deps — inspect dependency
// manifests. Supports --check-latest, --allow-prerelease,
// --upgrade-all. Default behavior for upgrades: reject downgrades,
// reject pre-release tags, preserve the current OS-base variant for
// container-image references").
func newDepsCmd(app *appFlags) *cobra.Command {
	var checkLatest, allowPrerelease, upgradeAll bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Inspect dependency manifests recorded in the Fact Store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(app)
			if err != nil {
				return err
			}
			cfg.Deps.CheckLatest = cfg.Deps.CheckLatest || checkLatest
			cfg.Deps.AllowPrerelease = cfg.Deps.AllowPrerelease || allowPrerelease
			cfg.Deps.UpgradeAll = cfg.Deps.UpgradeAll || upgradeAll

			root, err := filepath.Abs(cfg.Root)
			if err != nil {
				return errs.New(errs.UserError, "", 0, "resolving project root: "+err.Error(), err)
			}

			rh, err := store.OpenReadOnly(dbPath(root))
			if err != nil {
				return errs.New(errs.UserError, "", 0, err.Error(), err)
			}
			defer rh.Close()

			rows, err := rh.Query(`SELECT file, manager, name, version_constraint FROM dependency_manifests`)
			if err != nil {
				return err
			}
			defer rows.Close()

			type dep struct{ file, manager, name, constraint string }
			var deps []dep
			for rows.Next() {
				var d dep
				if err := rows.Scan(&d.file, &d.manager, &d.name, &d.constraint); err != nil {
					return err
				}
				deps = append(deps, d)
			}
			if err := rows.Err(); err != nil {
				return err
			}

			if !cfg.Deps.CheckLatest {
				for _, d := range deps {
					fmt.Printf("%-10s %-30s %s\n", d.manager, d.name, d.constraint)
				}
				return nil
			}

			client := registryclient.New()
			for _, d := range deps {
				if !cfg.Deps.UpgradeAll && d.constraint == "" {
					continue
				}
				upgrade, found := resolveUpgrade(cmd.Context(), client, d.manager, d.name, d.constraint, cfg.Deps.AllowPrerelease)
				if !found {
					fmt.Printf("%-10s %-30s %s -> up to date\n", d.manager, d.name, d.constraint)
					continue
				}
				fmt.Printf("%-10s %-30s %s -> %s\n", d.manager, d.name, d.constraint, upgrade)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkLatest, "check-latest", false, "query registries for newer versions")
	cmd.Flags().BoolVar(&allowPrerelease, "allow-prerelease", false, "allow pre-release versions as upgrade candidates")
	cmd.Flags().BoolVar(&upgradeAll, "upgrade-all", false, "also resolve dependencies with no pinned version")
	return cmd
}

// resolveUpgrade fetches candidates for one manifest entry and selects
// an upgrade with internal/semver's parsed-tuple policy (never
// lexicographic, spec §6).
func resolveUpgrade(ctx context.Context, client *registryclient.Client, manager, name, constraint string, allowPrerelease bool) (string, bool) {
	switch manager {
	case "docker":
		tags, err := client.DockerHubTags(ctx, name)
		if err != nil {
			return "", false
		}
		v, ok := semver.SelectContainerUpgrade(constraint, tags, allowPrerelease)
		if !ok {
			return "", false
		}
		return v.Raw, true
	case "npm":
		versions, err := client.NPMVersions(ctx, name)
		if err != nil {
			return "", false
		}
		v, ok := semver.SelectPackageUpgrade(stripOperatorsForDeps(constraint), versions, allowPrerelease)
		if !ok {
			return "", false
		}
		return v.Raw, true
	case "pypi", "python", "pip":
		versions, err := client.PyPIVersions(ctx, name)
		if err != nil {
			return "", false
		}
		v, ok := semver.SelectPackageUpgrade(stripOperatorsForDeps(constraint), versions, allowPrerelease)
		if !ok {
			return "", false
		}
		return v.Raw, true
	default:
		return "", false
	}
}

func stripOperatorsForDeps(constraint string) string {
	for _, op := range []string{"==", ">=", "<=", "~=", "!=", ">", "<"} {
		if len(constraint) > len(op) && constraint[:len(op)] == op {
			return constraint[len(op):]
		}
	}
	return constraint
}
