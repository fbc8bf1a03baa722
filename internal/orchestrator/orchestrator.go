// Package orchestrator implements the operation orchestrator (C11): the
// canonical sequence that glues the repository (C5), specification
// loader (C6), permission resolver (C7), schema pipeline (C8), validator
// pipeline (C9) and action dispatcher (C10) together for one request.
// Ported from the original implementation's app/lib/orchestrator.py.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goodtune/yacgo/internal/action"
	"github.com/goodtune/yacgo/internal/logs"
	"github.com/goodtune/yacgo/internal/model"
	"github.com/goodtune/yacgo/internal/perm"
	"github.com/goodtune/yacgo/internal/plugin"
	"github.com/goodtune/yacgo/internal/repo"
	"github.com/goodtune/yacgo/internal/specs"
	"github.com/goodtune/yacgo/internal/tmpl"
	"github.com/goodtune/yacgo/internal/validator"
	"github.com/goodtune/yacgo/internal/yacerr"
	"github.com/goodtune/yacgo/internal/yamlstore"
)

// Orchestrator runs operations against one repository backend and one
// specification source.
type Orchestrator struct {
	Backend repo.Backend
	// SpecPath is the configured "specs" setting (§6.2): a "."-prefixed
	// in-repo path, re-read fresh on every request, or a plain filesystem
	// path, in which case RawSpec is read once at startup and reused for
	// the life of the process (§9's open question: an on-disk spec edit
	// does not propagate until restart — intentional).
	SpecPath string
	RawSpec  []byte
	Env      map[string]any
	Engine   *tmpl.Engine
	Registry *plugin.Registry
	Logger   *slog.Logger
}

// RequestContext is the per-request slice of props the HTTP layer (§6)
// supplies: the request headers as received (spec-declared header defaults
// are not filled in) and the authenticated user.
type RequestContext struct {
	Headers map[string]any
	User    model.User
}

// loaded bundles everything steps 1-3 produce for steps 4 onward.
type loaded struct {
	handle   *repo.Handle
	sp       *model.Specs
	old, new model.Entity
}

// openAndLoadSpecs performs steps 1-2: acquire a reader and parse the
// active specification, re-scoping the handle to the resolved type's
// on-disk path template.
func (o *Orchestrator) openAndLoadSpecs(ctx context.Context, rc RequestContext, typeName string, dirty bool) (*repo.Handle, *model.Specs, error) {
	h, err := o.Backend.Reader(ctx, &rc.User, map[string]any{}, dirty)
	if err != nil {
		return nil, nil, err
	}

	raw, err := o.readSpec(ctx, *h)
	if err != nil {
		(*h).Release()
		return nil, nil, err
	}

	sp, err := specs.Parse(raw, specs.LoadProps{
		Env:      o.Env,
		Headers:  rc.Headers,
		User:     rc.User,
		TypeName: typeName,
	})
	if err != nil {
		(*h).Release()
		return nil, nil, yacerr.WrapSpecsError(err, "parsing specification")
	}

	if sp.Type != nil {
		(*h).UpdateDetails(sp.Type.Details)
	}
	return h, sp, nil
}

func (o *Orchestrator) readSpec(ctx context.Context, h repo.Handle) ([]byte, error) {
	if specs.IsRepoPath(o.SpecPath) {
		return specs.Read(ctx, h, o.SpecPath)
	}
	if o.RawSpec == nil {
		return nil, yacerr.NewServerError("on-disk spec %q was not loaded at startup", o.SpecPath)
	}
	return o.RawSpec, nil
}

// loadEntity populates existence/link/data and permissions for name
// (§4.11 step 3).
func (o *Orchestrator) loadEntity(ctx context.Context, h repo.Handle, sp *model.Specs, name string, rc RequestContext, op model.OperationKind, actions []string, newName bool) (model.Entity, error) {
	e := model.Entity{Name: name}
	if name == "" {
		e.Perms = o.permsFor(sp, "", nil, rc, op, actions, newName)
		return e, nil
	}

	exists, err := h.Exists(ctx, name)
	if err != nil {
		return e, err
	}
	e.Exists = exists
	if !exists {
		e.Perms = o.permsFor(sp, name, nil, rc, op, actions, newName)
		return e, nil
	}

	isLink, err := h.IsLink(ctx, name)
	if err != nil {
		return e, err
	}
	e.IsLink = isLink
	if isLink {
		link, err := h.GetLink(ctx, name)
		if err != nil {
			return e, err
		}
		e.Link = link
	}

	yamlText, err := h.Get(ctx, name)
	if err != nil {
		return e, err
	}
	e.YAML = yamlText
	e.Data = yamlstore.LoadAsDict(yamlText, false)
	e.Perms = o.permsFor(sp, name, e.Data, rc, op, actions, newName)
	return e, nil
}

// permsFor resolves the role/set permissions granted for name. oldData is
// the loaded entity data visible to role/set predicates as old.data (§4.7):
// the referenced entity's own data when it exists, or nil otherwise. For a
// "new" perm computation (newName=true) callers pass the source entity's
// data, matching the §3 invariant that new.perms sees the existing entity's
// data with the new name substituted.
func (o *Orchestrator) permsFor(sp *model.Specs, name string, oldData map[string]any, rc RequestContext, op model.OperationKind, actions []string, newName bool) []string {
	typeName := ""
	if sp.Type != nil {
		typeName = sp.Type.Name
	}
	return perm.GetFromRoles(o.Engine, sp.Roles, sp.Sets, typeName, perm.RoleProps{
		Env:       o.Env,
		Request:   rc.Headers,
		User:      rc.User,
		Operation: op,
		Actions:   actions,
		Type:      sp.Type,
		OldName:   name,
		OldData:   oldData,
		NewName:   name,
	}, newName, o.Logger)
}

// Create runs the create sequence (§4.11) for a New/Copy/Link payload.
func (o *Orchestrator) Create(ctx context.Context, rc RequestContext, typeName string, op model.Operation) (*model.Diff, error) {
	h, sp, err := o.openAndLoadSpecs(ctx, rc, typeName, false)
	if err != nil {
		return nil, err
	}
	defer func() {
		if *h != nil {
			(*h).Release()
		}
	}()

	sourceName := ""
	if op.Entity != nil {
		switch op.Entity.Kind {
		case "copy":
			sourceName = op.Entity.CopyName
		case "link":
			sourceName = op.Entity.LinkName
		}
	}
	old, err := o.loadEntity(ctx, *h, sp, sourceName, rc, model.OpCreate, op.Actions, false)
	if err != nil {
		return nil, err
	}

	name := op.Name
	if name == "" && sp.Type != nil && sp.Type.NameGenerated != "never" {
		list, err := (*h).List(ctx)
		if err != nil {
			return nil, err
		}
		generated, err := o.Engine.RenderStr(sp.Type.NameGenerator, map[string]any{"old": map[string]any{"list": toAnyList(list)}}, false)
		if err != nil {
			return nil, yacerr.WrapSpecsError(err, "evaluating name_generator")
		}
		name, _ = generated.(string)
	}
	newEnt, err := o.loadEntity(ctx, *h, sp, name, rc, model.OpCreate, op.Actions, true)
	if err != nil {
		return nil, err
	}
	newEnt.Perms = o.permsFor(sp, name, old.Data, rc, model.OpCreate, op.Actions, true)

	if err := o.validate(op, sp, old, newEnt, true); err != nil {
		return nil, err
	}

	(*h).Release()
	*h = nil

	if err := o.fireHook(ctx, sp, model.HookCreateBefore, rc, op, old, newEnt); err != nil {
		return nil, err
	}

	w, err := o.Backend.Writer(ctx, &rc.User, sp.Type.Details)
	if err != nil {
		return nil, err
	}
	defer (*w).Release()

	var diff *model.Diff
	newYAML := ""
	if op.Entity != nil && op.Entity.Kind == "new" {
		newYAML = op.Entity.YAML
	}
	msg := fmt.Sprintf("create %s/%s", typeName, name)
	switch {
	case op.Entity != nil && op.Entity.Kind == "copy":
		diff, err = (*w).Copy(ctx, name, sourceName, msg)
	case op.Entity != nil && op.Entity.Kind == "link":
		diff, err = (*w).Link(ctx, name, sourceName, msg)
	default:
		diff, err = (*w).Write(ctx, name, "", newYAML, msg)
	}
	if err != nil {
		return nil, err
	}

	if err := o.fireHook(ctx, sp, model.HookCreateAfter, rc, op, old, newEnt); err != nil {
		return nil, err
	}
	return diff, nil
}

// Change runs the change sequence (§4.11) for a Replace/Update payload.
func (o *Orchestrator) Change(ctx context.Context, rc RequestContext, typeName, name string, op model.Operation) (*model.Diff, error) {
	h, sp, err := o.openAndLoadSpecs(ctx, rc, typeName, false)
	if err != nil {
		return nil, err
	}
	defer func() {
		if *h != nil {
			(*h).Release()
		}
	}()

	old, err := o.loadEntity(ctx, *h, sp, name, rc, model.OpChange, op.Actions, false)
	if err != nil {
		return nil, err
	}

	newName := op.Name
	if newName == "" {
		newName = name
	}
	newEnt := old
	if newName != name {
		newEnt, err = o.loadEntity(ctx, *h, sp, newName, rc, model.OpChange, op.Actions, true)
		if err != nil {
			return nil, err
		}
		newEnt.Perms = o.permsFor(sp, newName, old.Data, rc, model.OpChange, op.Actions, true)
	} else {
		newEnt.Perms = o.permsFor(sp, newName, old.Data, rc, model.OpChange, op.Actions, true)
	}

	newYAML, err := o.applyChangePayload(op.Entity, old.YAML)
	if err != nil {
		return nil, err
	}
	newEnt.Data = yamlstore.LoadAsDict(newYAML, false)

	op.Name = newName
	if err := o.validate(op, sp, old, newEnt, true); err != nil {
		return nil, err
	}

	(*h).Release()
	*h = nil

	if err := o.fireHook(ctx, sp, model.HookChangeBefore, rc, op, old, newEnt); err != nil {
		return nil, err
	}

	w, err := o.Backend.Writer(ctx, &rc.User, sp.Type.Details)
	if err != nil {
		return nil, err
	}
	defer (*w).Release()

	msg := fmt.Sprintf("change %s/%s", typeName, name)
	var diff *model.Diff
	if newName != name {
		diff, err = (*w).WriteRename(ctx, name, newName, old.YAML, newYAML, msg)
	} else {
		diff, err = (*w).Write(ctx, name, old.YAML, newYAML, msg)
	}
	if err != nil {
		return nil, err
	}

	if err := o.fireHook(ctx, sp, model.HookChangeAfter, rc, op, old, newEnt); err != nil {
		return nil, err
	}
	return diff, nil
}

func (o *Orchestrator) applyChangePayload(e *model.EntityPayload, oldYAML string) (string, error) {
	if e == nil {
		return oldYAML, nil
	}
	switch e.Kind {
	case "replace":
		return e.YAMLNew, nil
	case "update":
		out, err := yamlstore.Update(oldYAML, e.Data)
		if yamlstore.IsConflict(err) {
			return "", yacerr.NewRequestConflict("%v", err)
		}
		return out, err
	default:
		return oldYAML, nil
	}
}

// Delete runs the delete sequence (§4.11).
func (o *Orchestrator) Delete(ctx context.Context, rc RequestContext, typeName, name string) error {
	h, sp, err := o.openAndLoadSpecs(ctx, rc, typeName, false)
	if err != nil {
		return err
	}
	defer func() {
		if *h != nil {
			(*h).Release()
		}
	}()

	old, err := o.loadEntity(ctx, *h, sp, name, rc, model.OpDelete, nil, false)
	if err != nil {
		return err
	}

	op := model.Operation{Kind: model.OpDelete, TypeName: typeName, Name: name, User: rc.User}
	if err := o.validate(op, sp, old, model.Entity{}, true); err != nil {
		return err
	}

	(*h).Release()
	*h = nil

	if err := o.fireHook(ctx, sp, model.HookDeleteBefore, rc, op, old, model.Entity{}); err != nil {
		return err
	}

	w, err := o.Backend.Writer(ctx, &rc.User, sp.Type.Details)
	if err != nil {
		return err
	}
	defer (*w).Release()

	if err := (*w).Delete(ctx, name, fmt.Sprintf("delete %s/%s", typeName, name)); err != nil {
		return err
	}

	return o.fireHook(ctx, sp, model.HookDeleteAfter, rc, op, old, model.Entity{})
}

// Read loads one entity for the GET detail/yaml endpoints (no write
// steps; §4.11 "steps 5-7 are skipped").
func (o *Orchestrator) Read(ctx context.Context, rc RequestContext, typeName, name string) (*model.Specs, model.Entity, error) {
	h, sp, err := o.openAndLoadSpecs(ctx, rc, typeName, true)
	if err != nil {
		return nil, model.Entity{}, err
	}
	defer (*h).Release()

	ent, err := o.loadEntity(ctx, *h, sp, name, rc, model.OpRead, nil, false)
	if err != nil {
		return nil, model.Entity{}, err
	}

	op := model.Operation{Kind: model.OpRead, TypeName: typeName, Name: name, User: rc.User}
	if err := o.validate(op, sp, ent, model.Entity{}, true); err != nil {
		return nil, model.Entity{}, err
	}
	return sp, ent, nil
}

// List loads every entity of a type for the GET list endpoint.
func (o *Orchestrator) List(ctx context.Context, rc RequestContext, typeName string) (*model.Specs, []string, error) {
	h, sp, err := o.openAndLoadSpecs(ctx, rc, typeName, true)
	if err != nil {
		return nil, nil, err
	}
	defer (*h).Release()

	op := model.Operation{Kind: model.OpRead, TypeName: typeName, User: rc.User}
	sv := validator.Spec{Specs: sp, Type: sp.Type, Engine: o.Engine, Reg: o.Registry, Logger: o.Logger}
	if err := validator.TestLs(o.Registry, op, sv); err != nil {
		return nil, nil, err
	}

	names, err := (*h).List(ctx)
	if err != nil {
		return nil, nil, err
	}
	return sp, names, nil
}

// Validate runs the full validator pipeline without raising, for the
// POST /validate dry-run endpoint (§6.1, §4.9's raise_on_error=false path).
func (o *Orchestrator) Validate(ctx context.Context, rc RequestContext, typeName string, op model.Operation) (*model.ValidationResult, error) {
	h, sp, err := o.openAndLoadSpecs(ctx, rc, typeName, true)
	if err != nil {
		return nil, err
	}
	defer (*h).Release()

	old, err := o.loadEntity(ctx, *h, sp, op.Name, rc, op.Kind, op.Actions, false)
	if err != nil {
		return nil, err
	}
	newEnt := old
	if op.Entity != nil {
		newYAML, err := o.applyChangePayload(op.Entity, old.YAML)
		if err == nil {
			newEnt.Data = yamlstore.LoadAsDict(newYAML, false)
		}
	}

	sv := validator.Spec{Specs: sp, Type: sp.Type, Engine: o.Engine, Reg: o.Registry, Logger: o.Logger, SchemaOut: &validator.Schema{}}
	result, err := validator.TestAll(o.Registry, op, sv, validator.Entities{Old: old, New: newEnt}, false)
	if err != nil {
		return nil, err
	}

	reqValid, reqMessage := specs.ValidateHeaders(sp.Request, rc.Headers)

	out := &model.ValidationResult{
		Request: model.RequestValidation{Valid: reqValid, Message: reqMessage},
	}
	if result.Schema != nil {
		out.Schemas = *result.Schema
	}
	return out, nil
}

func (o *Orchestrator) validate(op model.Operation, sp *model.Specs, old, newEnt model.Entity, raiseOnError bool) error {
	sv := validator.Spec{Specs: sp, Type: sp.Type, Engine: o.Engine, Reg: o.Registry, Logger: o.Logger}
	_, err := validator.TestAll(o.Registry, op, sv, validator.Entities{Old: old, New: newEnt}, raiseOnError)
	return err
}

func (o *Orchestrator) fireHook(ctx context.Context, sp *model.Specs, hook model.Hook, rc RequestContext, op model.Operation, old, newEnt model.Entity) error {
	props := action.Props{
		Env:       o.Env,
		Request:   rc.Headers,
		User:      rc.User,
		Operation: op.Kind,
		Type:      sp.Type,
		OldName:   old.Name,
		OldData:   old.Data,
		NewName:   newEnt.Name,
		NewData:   newEnt.Data,
	}
	return action.Dispatch(ctx, o.Registry, sp.Type, hook, op.Actions, props)
}

// RunAction runs one arbitrary action (§4.10, §6.1's POST .../run/{action}).
func (o *Orchestrator) RunAction(ctx context.Context, rc RequestContext, typeName, name, actionName string) error {
	h, sp, err := o.openAndLoadSpecs(ctx, rc, typeName, false)
	if err != nil {
		return err
	}
	defer (*h).Release()

	old, err := o.loadEntity(ctx, *h, sp, name, rc, model.OpArbitrary, []string{actionName}, false)
	if err != nil {
		return err
	}

	op := model.Operation{Kind: model.OpArbitrary, TypeName: typeName, Name: name, Actions: []string{actionName}, User: rc.User}
	if err := o.validate(op, sp, old, model.Entity{}, true); err != nil {
		return err
	}

	return o.fireHook(ctx, sp, model.HookArbitrary, rc, op, old, model.Entity{})
}

// ListDetailed lists entities of typeName matching search (substring,
// case-insensitive), paginated by skip/limit, with preview Options and
// Perms resolved per entity, for GET /entity/{type} (§6.1).
func (o *Orchestrator) ListDetailed(ctx context.Context, rc RequestContext, typeName, search string, skip, limit int) (*model.Specs, []model.ListedEntity, error) {
	h, sp, err := o.openAndLoadSpecs(ctx, rc, typeName, true)
	if err != nil {
		return nil, nil, err
	}
	defer (*h).Release()

	op := model.Operation{Kind: model.OpRead, TypeName: typeName, User: rc.User}
	sv := validator.Spec{Specs: sp, Type: sp.Type, Engine: o.Engine, Reg: o.Registry, Logger: o.Logger}
	if err := validator.TestLs(o.Registry, op, sv); err != nil {
		return nil, nil, err
	}

	names, err := (*h).List(ctx)
	if err != nil {
		return nil, nil, err
	}

	var filtered []string
	needle := strings.ToLower(search)
	for _, n := range names {
		if needle == "" || strings.Contains(strings.ToLower(n), needle) {
			filtered = append(filtered, n)
		}
	}

	if skip > len(filtered) {
		skip = len(filtered)
	}
	end := skip + limit
	if limit <= 0 || end > len(filtered) {
		end = len(filtered)
	}
	page := filtered[skip:end]

	out := make([]model.ListedEntity, 0, len(page))
	for _, n := range page {
		ent, err := o.loadEntity(ctx, *h, sp, n, rc, model.OpRead, nil, false)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, model.ListedEntity{
			Name:    n,
			Link:    ent.Link,
			Options: previewOptions(sp.Type, ent.Data),
			Perms:   ent.Perms,
		})
	}
	return sp, out, nil
}

// previewOptions resolves a type's listed preview fields (§3 "options")
// against one entity's data: the option's own key, else the value of an
// alias key present in the data (aliases are tried in Go map order, so
// which one wins when several are present is not defined), else its
// configured default.
func previewOptions(t *model.Type, data map[string]any) map[string]any {
	if t == nil {
		return nil
	}
	out := map[string]any{}
	for _, opt := range t.Options {
		if v, ok := data[opt.Name]; ok {
			out[opt.Name] = v
			continue
		}
		found := false
		for _, aliasKey := range opt.Aliases {
			if v, ok := data[aliasKey]; ok {
				out[opt.Name] = v
				found = true
				break
			}
		}
		if !found {
			out[opt.Name] = opt.Default
		}
	}
	return out
}

// Types loads the active specification with no type selected and returns
// every declared type, for the GET /entity discovery endpoint (§6.1).
func (o *Orchestrator) Types(ctx context.Context, rc RequestContext) ([]model.Type, error) {
	h, sp, err := o.openAndLoadSpecs(ctx, rc, "", true)
	if err != nil {
		return nil, err
	}
	defer (*h).Release()
	return sp.Types, nil
}

// Hash returns the repository's current commit hash, the data version
// token surfaced to clients by GET /status (§6.1, GLOSSARY "Hash").
func (o *Orchestrator) Hash(ctx context.Context, rc RequestContext) (string, error) {
	h, err := o.Backend.Reader(ctx, &rc.User, map[string]any{}, true)
	if err != nil {
		return "", err
	}
	defer (*h).Release()
	return (*h).GetHash(ctx)
}

// Logs collects one entity's log entries across every log facility its
// type configures, for GET /entity/{type}/{name}/logs (§6.1).
func (o *Orchestrator) Logs(ctx context.Context, rc RequestContext, typeName, name string) ([]model.Log, error) {
	h, sp, err := o.openAndLoadSpecs(ctx, rc, typeName, true)
	if err != nil {
		return nil, err
	}
	defer (*h).Release()

	ent, err := o.loadEntity(ctx, *h, sp, name, rc, model.OpRead, nil, false)
	if err != nil {
		return nil, err
	}
	op := model.Operation{Kind: model.OpRead, TypeName: typeName, Name: name, User: rc.User}
	if err := o.validate(op, sp, ent, model.Entity{}, true); err != nil {
		return nil, err
	}

	return logs.CollectAll(ctx, o.Registry, sp.Type, logs.Props{
		Env:     o.Env,
		Request: rc.Headers,
		User:    rc.User,
		Type:    sp.Type,
		Name:    name,
		Data:    ent.Data,
	})
}

func toAnyList(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
