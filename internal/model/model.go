// Package model holds the data types shared across the request pipeline:
// the operation model, the specification tree, and the entity/permission
// types (§3), ported from the original implementation's app/model/{out,spc,inp}.py.
package model

// Permission codes (§3).
const (
	PermRead       = "see"
	PermCreate     = "add"
	PermRename     = "rnm"
	PermCopy       = "cpy"
	PermLink       = "lnk"
	PermEdit       = "edt"
	PermCleanup    = "cln"
	PermDelete     = "del"
	PermRunAction  = "act"
	PermAdminister = "adm"
)

// OperationKind enumerates the five unified operations (§1, §3).
type OperationKind string

const (
	OpRead      OperationKind = "read"
	OpCreate    OperationKind = "create"
	OpChange    OperationKind = "change"
	OpDelete    OperationKind = "delete"
	OpArbitrary OperationKind = "arbitrary"
)

// Hook is a timing slot for actions (§3, GLOSSARY).
type Hook string

const (
	HookArbitrary    Hook = "arbitrary"
	HookCreateBefore Hook = "create:before"
	HookCreateAfter  Hook = "create:after"
	HookChangeBefore Hook = "change:before"
	HookChangeAfter  Hook = "change:after"
	HookDeleteBefore Hook = "delete:before"
	HookDeleteAfter  Hook = "delete:after"
)

// User identifies the requesting principal (§6.3).
type User struct {
	Name     string
	Email    string
	FullName string
	Token    map[string]any
}

// EntityPayload is the sum type of the five entity payload shapes (§3).
type EntityPayload struct {
	Kind string // "new", "copy", "link", "replace", "update"

	Name string // target/new name, when present

	// NewEntity
	YAML string

	// CopyEntity
	CopyName string

	// LinkEntity
	LinkName string

	// ReplaceEntity
	YAMLOld string
	YAMLNew string

	// UpdateEntity
	Data map[string]any
}

// Operation is the per-request operation (§3).
type Operation struct {
	Kind     OperationKind
	TypeName string
	Name     string
	Actions  []string
	Entity   *EntityPayload
	User     User
}

// Entity is the internal, loaded representation of an on-disk entity (§3).
type Entity struct {
	Name    string
	Exists  bool
	IsLink  bool
	Link    string
	YAML    string
	Data    map[string]any
	Perms   []string
}

// TypeOption describes a listed preview field (§3, SPEC_FULL.md §6.5).
type TypeOption struct {
	Name    string
	Title   string
	Default any
	Aliases map[string]string
}

// TypeLog describes a log facility exposed by a type.
type TypeLog struct {
	Name     string
	Title    string
	Progress bool
	Problem  bool
	Plugin   string
	Details  map[string]any
}

// TypeAction describes one action attached to a type (§3).
type TypeAction struct {
	Name        string
	Title       string
	Description string
	Dangerous   bool
	Perms       []string
	Force       bool
	Hooks       []Hook
	Plugin      string
	Details     map[string]any
}

// Type is an entity-type definition (§3).
type Type struct {
	Name           string
	Title          string
	NamePattern    string
	NameExample    string
	NameGenerated  string // never | optional | enforced
	NameGenerator  string
	Description    string
	Create         bool
	Change         bool
	Delete         bool
	Options        []TypeOption
	Logs           []TypeLog
	Actions        []TypeAction
	Details        map[string]any
}

// RequestHeaderSpec describes one recognized request header (§3).
type RequestHeaderSpec struct {
	Pattern string
	Default string
}

// RequestSpec is the spec's "request" shape (§3).
type RequestSpec struct {
	Headers map[string]RequestHeaderSpec
}

// Specs is the fully parsed, template-expanded specification (§3, §4.6).
type Specs struct {
	Version    string
	Request    RequestSpec
	Types      []Type
	Type       *Type // the type selected for the current operation, if any
	Roles      []map[string]any
	Sets       map[string]map[string]any
	JSONSchema map[string]any
}

// FindType returns the type named name, if present.
func (s *Specs) FindType(name string) (*Type, bool) {
	for i := range s.Types {
		if s.Types[i].Name == name {
			return &s.Types[i], true
		}
	}
	return nil, false
}

// Diff is the result of a repository mutation (§4.5).
type Diff struct {
	Name  string
	Hash  string
	Patch string
}

// DetailedEntity is an entity as returned with all its data (§6.1).
type DetailedEntity struct {
	Name    string
	Link    string
	Options map[string]any
	Perms   []string
	Data    map[string]any
	YAML    string
	Hash    string
}

// ListedEntity is an entity as it will be listed (§6.1).
type ListedEntity struct {
	Name    string
	Link    string
	Options map[string]any
	Perms   []string
}

// Schema is a generated, data-validated JSON Schema + UI Schema pair (§4.8).
type Schema struct {
	JSONSchema    map[string]any
	UISchema      map[string]any
	Data          map[string]any
	Valid         bool
	Message       string
	Validator     string
	JSONSchemaLoc string
	DataLoc       string
}

// RequestValidation is the validity of the request shape itself (§4.9).
type RequestValidation struct {
	Valid   bool
	Message string
}

// ValidationResult bundles the schema and request validation (§4.9).
type ValidationResult struct {
	Schemas Schema
	Request RequestValidation
}

// Log is one entry returned by a log plugin (C4 "log" kind).
type Log struct {
	Name     string
	Message  string
	Time     string
	Progress *int
	Problem  *bool
}

// Meta is the GET /meta response (§6.1): the running product version.
type Meta struct {
	Version string
}

// Status is the GET /status response (§6.1): readiness plus the current
// repository hash, the data version token surfaced to clients.
type Status struct {
	Ready bool
	Hash  string
}
