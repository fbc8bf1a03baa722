package validator

import (
	"strconv"

	"github.com/goodtune/yacgo/internal/metrics"
	"github.com/goodtune/yacgo/internal/model"
	"github.com/goodtune/yacgo/internal/schema"
	"github.com/goodtune/yacgo/internal/yacerr"
)

// schemaTester drives the C8 schema pipeline as a late validator tester:
// it always runs (it is not gated by operation kind), producing the
// Schema side product the /validate endpoint reports, and failing the
// operation when the candidate data is
// invalid against the generated schema.
type schemaTester struct{}

func (schemaTester) Order() (bool, int) { return true, 5 }

func (schemaTester) Test(op model.Operation, sp Spec, ents Entities) error {
	if sp.Specs == nil || sp.Specs.JSONSchema == nil {
		return nil
	}

	props := schema.Props{
		Operation: op.Kind,
		Actions:   op.Actions,
		Type:      sp.Type,
		User:      op.User,
		OldName:   ents.Old.Name,
		OldData:   ents.Old.Data,
		OldPerms:  ents.Old.Perms,
		NewName:   op.Name,
	}

	data := ents.New.Data
	if data == nil {
		data = ents.Old.Data
	}

	result, err := schema.Get(sp.Engine, sp.Reg, sp.Specs.JSONSchema, props, data)
	if err != nil {
		return err
	}
	if sp.SchemaOut != nil {
		*sp.SchemaOut = *result
	}

	typeName := ""
	if sp.Type != nil {
		typeName = sp.Type.Name
	}
	metrics.SchemaValidationTotal.WithLabelValues(typeName, strconv.FormatBool(result.Valid)).Inc()

	// A data-less dry run (e.g. a schema preview for /validate with no
	// candidate payload) only produces the schema; it does not fail.
	if data == nil {
		return nil
	}
	if !result.Valid {
		return yacerr.NewRequestError("%s", result.Message)
	}
	return nil
}
