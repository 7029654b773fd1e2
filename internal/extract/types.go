package extract

// FileInfo describes the file being extracted: its canonical-relative
// path (not yet normalized — that is the Normalizer's job, spec §4.3),
// detected language, and content hash, computed once by the pipeline
// walker before extraction runs.
type FileInfo struct {
	Path        string
	Language    string
	ContentHash string
}

// Signals is the advisory output of the Framework Detector (spec §4.4),
// threaded into the root Extract call rather than consulted as an
// import-time global (spec §4.2 "never an import-time global").
type Signals struct {
	Django     bool
	Flask      bool
	FastAPI    bool
	SQLAlchemy bool
	Celery     bool
	Pytest     bool
	Express    bool
	NestJS     bool
	NextJS     bool
	SvelteKit  bool
	Remix      bool
	Terraform  bool
}

// Row is one record bound for a declared fact table. Extractors build
// these and return them keyed by table name; the "file" key is never
// set here (spec §4.2) — the Normalizer copies each row into a
// store.Row and injects "file" there, and rejects an extractor row
// that already carries it.
type Row = map[string]any

// Output is the per-file result of one language extractor's root
// Extract call: table name -> rows destined for that table.
type Output = map[string][]Row

// Note on dedup: per spec §4.2/§9 ("per-module helper duplication"),
// each language package implements its own small dedupe-by-key helper
// rather than sharing one from this package, to keep sub-modules
// self-contained and avoid coupling extractor packages to each other.
