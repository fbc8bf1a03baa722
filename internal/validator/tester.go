package validator

import (
	"github.com/goodtune/yacgo/internal/model"
	"github.com/goodtune/yacgo/internal/plugin"
)

// Tester is one named check in the validator pipeline (§4.9). Order()'s
// late flag here means "skip for list operations": late testers only run
// on the narrow path where old/new entities have been loaded.
type Tester interface {
	Order() (late bool, rank int)
	Test(op model.Operation, sp Spec, ents Entities) error
}

// Register adds a named tester to reg under plugin.KindValidator.
func Register(reg *plugin.Registry, name string, t Tester) {
	reg.Register(plugin.KindValidator, name, t)
}

func sortedTesters(reg *plugin.Registry, late bool) []Tester {
	raw := reg.GetModulesSorted(plugin.KindValidator, late)
	out := make([]Tester, 0, len(raw))
	for _, r := range raw {
		if t, ok := r.(Tester); ok {
			out = append(out, t)
		}
	}
	return out
}
