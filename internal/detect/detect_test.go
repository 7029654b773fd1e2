package detect

import "testing"

func TestDetectRequiresTwoOfThreeSignals(t *testing.T) {
	// Only one Flask signal (manifest) -> not flagged.
	p := Project{
		Manifests: []Manifest{{Path: "requirements.txt", Content: "flask==2.0.0"}},
	}
	got := Detect(p)
	if got.Flask {
		t.Error("expected Flask false with only one signal")
	}

	// Manifest + file suffix -> flagged.
	p.Files = []string{"app.py"}
	got = Detect(p)
	if !got.Flask {
		t.Error("expected Flask true with two signals")
	}
}

func TestDetectDjangoVotes(t *testing.T) {
	p := Project{
		Files:     []string{"manage.py", "myproject/settings.py"},
		Manifests: []Manifest{{Path: "requirements.txt", Content: "Django==4.2"}},
	}
	got := Detect(p)
	if !got.Django {
		t.Error("expected Django true: manage.py, settings.py, and manifest all present")
	}
}

func TestDetectNextJSRouteHeuristic(t *testing.T) {
	p := Project{
		Files:     []string{"pages/index.js", "pages/about.js"},
		Manifests: []Manifest{{Path: "package.json", Content: `{"dependencies":{"next":"13.0.0"}}`}},
	}
	got := Detect(p)
	if !got.NextJS {
		t.Error("expected NextJS true: manifest plus pages/ directory")
	}
}

func TestDetectNoFalsePositiveOnEmptyProject(t *testing.T) {
	got := Detect(Project{})
	if got.Django || got.Flask || got.FastAPI || got.SQLAlchemy || got.Celery ||
		got.Pytest || got.Express || got.NestJS || got.NextJS || got.SvelteKit ||
		got.Remix || got.Terraform {
		t.Errorf("expected no signals on empty project, got %+v", got)
	}
}

func TestDetectTerraformFileSuffix(t *testing.T) {
	p := Project{Files: []string{"main.tf", "variables.tf.json"}}
	got := Detect(p)
	if !got.Terraform {
		t.Error("expected Terraform true: two file-suffix signals")
	}
}

func TestDetectPytestFilePrefix(t *testing.T) {
	p := Project{Files: []string{"tests/conftest.py", "tests/test_widgets.py"}}
	got := Detect(p)
	if !got.Pytest {
		t.Error("expected Pytest true: conftest.py plus test_ prefix")
	}
}
