package validator

import "github.com/goodtune/yacgo/internal/plugin"

// RegisterBuiltins registers every required tester from §4.9 into reg.
func RegisterBuiltins(reg *plugin.Registry) {
	Register(reg, "operations", operationsTester{})
	Register(reg, "type_spec", typeSpecTester{})
	Register(reg, "names", namesTester{})
	Register(reg, "schema", schemaTester{})
	Register(reg, "permissions", permissionsTester{})
	Register(reg, "actions", actionsTester{})
	Register(reg, "conflicts", conflictsTester{})
}
