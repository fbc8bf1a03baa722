package validator

import (
	"github.com/goodtune/yacgo/internal/model"
	"github.com/goodtune/yacgo/internal/plugin"
	"github.com/goodtune/yacgo/internal/yacerr"
)

// TestAll runs the full validator pipeline (§4.9): all early ("always")
// testers, then — unless this is a list operation — all late ("nolist")
// testers, which see the loaded old/new entities.
//
// With raiseOnError, the first failing tester's error is returned
// immediately and no later tester runs (§8's invariant). Without it, the
// first failure is instead captured into the returned Result so callers
// like the /validate endpoint can report it rather than fail the request;
// the schema tester (itself a late tester) still always runs so its
// output is available to the caller.
func TestAll(reg *plugin.Registry, op model.Operation, sp Spec, ents Entities, raiseOnError bool) (*Result, error) {
	result := &Result{Valid: true}

	for _, t := range sortedTesters(reg, false) {
		if err := t.Test(op, sp, ents); err != nil {
			if raiseOnError {
				return nil, err
			}
			result.Valid = false
			result.Message = errMessage(err)
			break
		}
	}

	for _, t := range sortedTesters(reg, true) {
		err := t.Test(op, sp, ents)
		if sp.SchemaOut != nil {
			result.Schema = sp.SchemaOut
		}
		if err != nil {
			if raiseOnError {
				return nil, err
			}
			if result.Valid {
				result.Valid = false
				result.Message = errMessage(err)
			}
		}
	}

	return result, nil
}

// TestLs runs only the early ("always") phase, as used by list endpoints
// (§4.9).
func TestLs(reg *plugin.Registry, op model.Operation, sp Spec) error {
	for _, t := range sortedTesters(reg, false) {
		if err := t.Test(op, sp, Entities{}); err != nil {
			return err
		}
	}
	return nil
}

func errMessage(err error) string {
	if e, ok := yacerr.As(err); ok {
		return e.Message
	}
	return err.Error()
}
