// Package validator implements the validator pipeline (C9): a two-phase
// sequence of named testers, ordered like json_schema plugins, that
// together decide whether an operation is admissible before the
// orchestrator (C11) dispatches it to the repository. Ported from the
// original implementation's app/lib/validator.py.
package validator

import (
	"log/slog"

	"github.com/goodtune/yacgo/internal/model"
	"github.com/goodtune/yacgo/internal/plugin"
	"github.com/goodtune/yacgo/internal/tmpl"
)

// Spec bundles the resolved type, specs tree, and the shared machinery
// (template engine, plugin registry) a tester needs — in particular the
// schema tester, which drives the C8 pipeline directly.
type Spec struct {
	Specs  *model.Specs
	Type   *model.Type
	Engine *tmpl.Engine
	Reg    *plugin.Registry
	Logger *slog.Logger

	// SchemaOut, if non-nil, receives the result of the schema tester's
	// run of the C8 pipeline — the one tester whose side product (not
	// just pass/fail) the caller needs.
	SchemaOut *Schema
}

// Entities bundles the old/new entity views loaded by the orchestrator
// (§4.3, §4.11 step 3); either may be a zero value when not applicable.
type Entities struct {
	Old model.Entity
	New model.Entity
}

// Schema is populated by the schema tester (the one tester that runs the
// C8 pipeline) so later testers and the caller can inspect it.
type Schema = model.Schema

// Result accumulates the first failure encountered, mirroring
// ValidationResult's non-raising path (§4.9, used by /validate).
type Result struct {
	Valid   bool
	Message string
	Schema  *Schema
}
