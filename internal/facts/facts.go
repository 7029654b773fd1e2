// Package facts defines the typed records extractors emit (spec §3,
// §4.2) and the table-name vocabulary shared by extractors, the
// Normalizer, and the Fact Store, so none of those three packages needs
// to import another's internals to agree on a string literal.
//
// Row mirrors store.Row's shape (map[string]any) but is declared
// independently: extractors must not import internal/store directly
// (spec §4.2 — extractors are write-only producers; only the Normalizer
// talks to the Fact Store). Ground: termfx-morfx's internal/types/core.go
// convention of small typed value structs re-exported as plain data,
// generalized here from tree-sitter Results to fact-table rows.
package facts

// Row is one record bound for a declared table. Extractors must never
// set the "file" key — the Normalizer injects it (spec §4.2 Outputs).
type Row map[string]any

// Table names, one constant per table declared in internal/store/schema.go.
const (
	TableFiles                = "files"
	TableSymbols              = "symbols"
	TableReferences           = "references"
	TableCalls                = "calls"
	TableArguments            = "arguments"
	TableAssignments          = "assignments"
	TableReturns              = "returns"
	TableRoutes               = "routes"
	TableRouteParams          = "route_params"
	TableDependencyManifests  = "dependency_manifests"
	TableOrmModels            = "orm_models"
	TableOrmAssociations      = "orm_associations"
	TableJobQueueTasks        = "job_queue_tasks"
	TableJobQueueWorkers      = "job_queue_workers"
	TableDiInjections         = "di_injections"
	TableValidatorSchemas     = "validator_schemas"
	TableFormDefinitions      = "form_definitions"
	TableTaskDecorators       = "task_decorators"
	TableBeatSchedules        = "beat_schedules"
	TableTestFixtures         = "test_fixtures"
	TableTestParametrizations = "test_parametrizations"
	TableTestMarkers          = "test_markers"
	TableGeneratorYields      = "generator_yields"
	TablePropertyAccessors    = "property_accessors"
	TableLoopComplexity       = "loop_complexity"
	TableStateMutations       = "state_mutations"
	TableExceptionSites       = "exception_sites"
	TableIoOperations         = "io_operations"
	TableIacResources         = "iac_resources"
	TableIacVariables         = "iac_variables"
	TableTaintSources         = "taint_sources"
	TableTaintSinks           = "taint_sinks"
)

// Symbol kinds (spec §3 Symbol entity).
const (
	SymbolFunction  = "function"
	SymbolClass     = "class"
	SymbolMethod    = "method"
	SymbolField     = "field"
	SymbolVariable  = "variable"
	SymbolConstant  = "constant"
	SymbolInterface = "interface"
)

// Reference resolution states (spec §3 Reference entity).
const (
	RefImport = "import"
	RefFrom   = "from"
	RefCall   = "call"
	RefRead   = "read"
	RefWrite  = "write"
)

// Endpoint kinds (spec §3 invariant 6 and scenario 6's form-action
// discriminator).
const (
	EndpointHTTP       = "http"
	EndpointFormAction = "form_action"
	EndpointRPC        = "rpc"
)

// State mutation operations (scenario 3).
const (
	OpAssignment          = "assignment"
	OpAugmentedAssignment = "augmented_assignment"
	OpMutatingCall         = "mutating_call"
)

// Exception site kinds (exception_sites table).
const (
	ExceptionRaise = "raise"
	ExceptionCatch = "catch"
)

// I/O operation kinds (io_operations table).
const (
	IOFileRead    = "file_read"
	IOFileWrite   = "file_write"
	IONetwork     = "network"
	IOSubprocess  = "subprocess"
)
