// Package detect implements the Framework Detector (spec §4.4): a pure
// function of the file tree and manifest contents, no state machine.
// Output gates which extractor sub-passes run (internal/extract.Signals)
// but a missing detection never prevents a direct import/decorator
// check inside an extractor — detection here is advisory only.
package detect

import (
	"strings"

	"github.com/TheAuditorTool/auditor/internal/extract"
)

// Manifest is the minimal view of a dependency-manifest file the
// detector needs: which package-manager file it came from and its raw
// text, so two-of-three voting can grep for known package names
// without a full manifest parse (that's internal/extract's job for the
// dependency_manifests table).
type Manifest struct {
	Path    string
	Content string
}

// Project is everything the detector votes over: the set of
// repo-relative file paths discovered by the walker, plus the
// manifests found among them.
type Project struct {
	Files     []string
	Manifests []Manifest
}

// Detect runs every heuristic rule and returns the aggregate Signals.
// Pure function: no package-level state, repeatable across runs.
func Detect(p Project) extract.Signals {
	return extract.Signals{
		Django:     vote(hasDirLike(p.Files, "manage.py"), manifestHas(p.Manifests, "django"), hasFileSuffix(p.Files, "settings.py")),
		Flask:      vote(manifestHas(p.Manifests, "flask"), hasFileSuffix(p.Files, "app.py"), false),
		FastAPI:    vote(manifestHas(p.Manifests, "fastapi"), hasFileSuffix(p.Files, "main.py"), false),
		SQLAlchemy: vote(manifestHas(p.Manifests, "sqlalchemy"), manifestHas(p.Manifests, "alembic"), false),
		Celery:     vote(manifestHas(p.Manifests, "celery"), hasFileSuffix(p.Files, "celery.py"), hasFileSuffix(p.Files, "tasks.py")),
		Pytest:     vote(manifestHas(p.Manifests, "pytest"), hasDirLike(p.Files, "conftest.py"), hasFilePrefix(p.Files, "test_")),
		Express:    vote(manifestHas(p.Manifests, "express"), false, false),
		NestJS:     vote(manifestHas(p.Manifests, "@nestjs/core"), hasFileSuffix(p.Files, "nest-cli.json"), false),
		NextJS:     vote(manifestHas(p.Manifests, "next"), hasDirLike(p.Files, "next.config.js"), hasDirContaining(p.Files, "pages")),
		SvelteKit:  vote(manifestHas(p.Manifests, "@sveltejs/kit"), hasDirLike(p.Files, "svelte.config.js"), hasDirContaining(p.Files, "routes")),
		Remix:      vote(manifestHas(p.Manifests, "@remix-run/"), hasDirLike(p.Files, "remix.config.js"), hasDirContaining(p.Files, "routes")),
		Terraform:  vote(hasFileSuffix(p.Files, ".tf"), hasFileSuffix(p.Files, ".tf.json"), manifestHas(p.Manifests, "terraform")),
	}
}

// vote implements the "two of three" heuristic from spec §4.4: a
// framework is flagged when at least two of its independent signals
// agree.
func vote(signals ...bool) bool {
	n := 0
	for _, s := range signals {
		if s {
			n++
		}
	}
	return n >= 2
}

func hasFileSuffix(files []string, suffix string) bool {
	for _, f := range files {
		if strings.HasSuffix(f, suffix) {
			return true
		}
	}
	return false
}

func hasFilePrefix(files []string, prefix string) bool {
	for _, f := range files {
		base := f
		if i := strings.LastIndex(f, "/"); i >= 0 {
			base = f[i+1:]
		}
		if strings.HasPrefix(base, prefix) {
			return true
		}
	}
	return false
}

func hasDirLike(files []string, name string) bool {
	for _, f := range files {
		if strings.HasSuffix(f, "/"+name) || f == name {
			return true
		}
	}
	return false
}

func hasDirContaining(files []string, dir string) bool {
	for _, f := range files {
		if strings.Contains(f, "/"+dir+"/") || strings.HasPrefix(f, dir+"/") {
			return true
		}
	}
	return false
}

func manifestHas(manifests []Manifest, needle string) bool {
	for _, m := range manifests {
		if strings.Contains(m.Content, needle) {
			return true
		}
	}
	return false
}
