package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/goodtune/yacgo/internal/model"
	"github.com/goodtune/yacgo/internal/plugin"
	"github.com/goodtune/yacgo/internal/repo"
	"github.com/goodtune/yacgo/internal/tmpl"
	"github.com/goodtune/yacgo/internal/validator"
)

// memBackend is a minimal in-memory repo.Backend/Handle fake used to drive
// the orchestrator end to end without a real git working tree.
type memBackend struct {
	specs    string
	entities map[string]string
}

func newMemBackend(spec string) *memBackend {
	return &memBackend{specs: spec, entities: map[string]string{}}
}

func (b *memBackend) Reader(ctx context.Context, user *model.User, details map[string]any, dirty bool) (*repo.Handle, error) {
	var h repo.Handle = &memHandle{b: b}
	return &h, nil
}

func (b *memBackend) Writer(ctx context.Context, user *model.User, details map[string]any) (*repo.Handle, error) {
	var h repo.Handle = &memHandle{b: b}
	return &h, nil
}

type memHandle struct{ b *memBackend }

func (h *memHandle) Release()                             {}
func (h *memHandle) UpdateDetails(details map[string]any)  {}
func (h *memHandle) GetHash(ctx context.Context) (string, error) {
	return "deadbeef", nil
}
func (h *memHandle) List(ctx context.Context) ([]string, error) {
	var out []string
	for n := range h.b.entities {
		out = append(out, n)
	}
	return out, nil
}
func (h *memHandle) Exists(ctx context.Context, name string) (bool, error) {
	_, ok := h.b.entities[name]
	return ok, nil
}
func (h *memHandle) IsLink(ctx context.Context, name string) (bool, error) { return false, nil }
func (h *memHandle) GetLink(ctx context.Context, name string) (string, error) {
	return "", nil
}
func (h *memHandle) GetSpecs(ctx context.Context, path string) (string, error) {
	return h.b.specs, nil
}
func (h *memHandle) Get(ctx context.Context, name string) (string, error) {
	return h.b.entities[name], nil
}
func (h *memHandle) Write(ctx context.Context, name, contentOld, contentNew, msg string) (*model.Diff, error) {
	h.b.entities[name] = contentNew
	return &model.Diff{Name: name, Hash: "deadbeef", Patch: msg}, nil
}
func (h *memHandle) WriteRename(ctx context.Context, nameOld, nameNew, contentOld, contentNew, msg string) (*model.Diff, error) {
	delete(h.b.entities, nameOld)
	h.b.entities[nameNew] = contentNew
	return &model.Diff{Name: nameNew, Hash: "deadbeef", Patch: msg}, nil
}
func (h *memHandle) Copy(ctx context.Context, nameDest, nameSrc, msg string) (*model.Diff, error) {
	h.b.entities[nameDest] = h.b.entities[nameSrc]
	return &model.Diff{Name: nameDest, Hash: "deadbeef", Patch: msg}, nil
}
func (h *memHandle) Link(ctx context.Context, nameLink, nameSrc, msg string) (*model.Diff, error) {
	h.b.entities[nameLink] = h.b.entities[nameSrc]
	return &model.Diff{Name: nameLink, Hash: "deadbeef", Patch: msg}, nil
}
func (h *memHandle) Delete(ctx context.Context, name, msg string) error {
	delete(h.b.entities, name)
	return nil
}

const testSpecYAML = `
version: v1.0
types:
  - name: widget
    name_generated: never
    create: true
    change: true
    delete: true
    options:
      - name: color
        default: "unknown"
roles:
  - all:widget:all: "true"
`

func newTestOrchestrator(spec string) (*Orchestrator, *memBackend) {
	b := newMemBackend(spec)
	engine := tmpl.New(tmpl.BuiltinFunctions(), false)
	reg := plugin.NewRegistry()
	validator.RegisterBuiltins(reg)
	return &Orchestrator{
		Backend:  b,
		SpecPath: ".spec.yaml",
		Env:      map[string]any{},
		Engine:   engine,
		Registry: reg,
	}, b
}

func TestOrchestratorCreateReadDeleteLifecycle(t *testing.T) {
	o, _ := newTestOrchestrator(testSpecYAML)
	ctx := context.Background()
	rc := RequestContext{}

	op := model.Operation{
		Kind: model.OpCreate,
		Name: "widget-1",
		Entity: &model.EntityPayload{
			Kind: "new",
			YAML: "color: red\n",
		},
	}
	diff, err := o.Create(ctx, rc, "widget", op)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if diff.Name != "widget-1" {
		t.Fatalf("expected diff for widget-1, got %+v", diff)
	}

	sp, ent, err := o.Read(ctx, rc, "widget", "widget-1")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if sp.Type == nil || sp.Type.Name != "widget" {
		t.Fatalf("expected widget type resolved, got %+v", sp.Type)
	}
	if ent.Data["color"] != "red" {
		t.Fatalf("expected color=red, got %v", ent.Data)
	}

	if err := o.Delete(ctx, rc, "widget", "widget-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, _, err := o.Read(ctx, rc, "widget", "widget-1"); err == nil {
		t.Fatal("expected read of a deleted entity to fail")
	}
}

func TestOrchestratorCreateRejectsDuplicateName(t *testing.T) {
	o, _ := newTestOrchestrator(testSpecYAML)
	ctx := context.Background()
	rc := RequestContext{}

	op := model.Operation{Kind: model.OpCreate, Name: "widget-1", Entity: &model.EntityPayload{Kind: "new", YAML: "color: red\n"}}
	if _, err := o.Create(ctx, rc, "widget", op); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := o.Create(ctx, rc, "widget", op); err == nil {
		t.Fatal("expected second create of the same name to conflict")
	}
}

func TestOrchestratorListDetailedSearchAndPagination(t *testing.T) {
	o, _ := newTestOrchestrator(testSpecYAML)
	ctx := context.Background()
	rc := RequestContext{}

	for _, name := range []string{"alpha", "beta", "alphabet"} {
		op := model.Operation{Kind: model.OpCreate, Name: name, Entity: &model.EntityPayload{Kind: "new", YAML: "color: red\n"}}
		if _, err := o.Create(ctx, rc, "widget", op); err != nil {
			t.Fatalf("create %q failed: %v", name, err)
		}
	}

	_, out, err := o.ListDetailed(ctx, rc, "widget", "alpha", 0, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 matches for \"alpha\", got %d: %+v", len(out), out)
	}
	for _, e := range out {
		if !strings.Contains(e.Name, "alpha") {
			t.Errorf("unexpected match %q for search \"alpha\"", e.Name)
		}
		if e.Options["color"] != "red" {
			t.Errorf("expected preview option color=red, got %v", e.Options)
		}
	}

	_, paged, err := o.ListDetailed(ctx, rc, "widget", "", 0, 1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(paged) != 1 {
		t.Fatalf("expected limit=1 to return exactly 1 entity, got %d", len(paged))
	}
}

func TestOrchestratorTypesAndHash(t *testing.T) {
	o, _ := newTestOrchestrator(testSpecYAML)
	ctx := context.Background()
	rc := RequestContext{}

	types, err := o.Types(ctx, rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(types) != 1 || types[0].Name != "widget" {
		t.Fatalf("expected exactly the widget type, got %+v", types)
	}

	hash, err := o.Hash(ctx, rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash != "deadbeef" {
		t.Fatalf("expected deadbeef, got %q", hash)
	}
}

func TestOrchestratorValidateDoesNotMutateRepository(t *testing.T) {
	o, b := newTestOrchestrator(testSpecYAML)
	ctx := context.Background()
	rc := RequestContext{}

	op := model.Operation{
		Kind: model.OpCreate,
		Name: "widget-1",
		Entity: &model.EntityPayload{
			Kind: "new",
			YAML: "color: red\n",
		},
	}
	result, err := o.Validate(ctx, rc, "widget", op)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Request.Valid {
		t.Errorf("expected request to be valid with no header patterns declared, got %q", result.Request.Message)
	}
	if len(b.entities) != 0 {
		t.Fatalf("expected validate to leave the repository untouched, got %v", b.entities)
	}
}

func TestPreviewOptionsResolvesAliasThenDefault(t *testing.T) {
	ty := &model.Type{
		Options: []model.TypeOption{
			{Name: "color", Default: "unknown", Aliases: map[string]string{"legacy": "colour"}},
		},
	}

	out := previewOptions(ty, map[string]any{"colour": "blue"})
	if out["color"] != "blue" {
		t.Fatalf("expected alias resolution to find colour=blue, got %v", out)
	}

	out = previewOptions(ty, map[string]any{})
	if out["color"] != "unknown" {
		t.Fatalf("expected default fallback, got %v", out)
	}

	out = previewOptions(ty, map[string]any{"color": "green"})
	if out["color"] != "green" {
		t.Fatalf("expected direct field to win, got %v", out)
	}
}

func TestPreviewOptionsNilType(t *testing.T) {
	if out := previewOptions(nil, map[string]any{"x": 1}); out != nil {
		t.Fatalf("expected nil for a nil type, got %v", out)
	}
}

func TestToAnyList(t *testing.T) {
	out := toAnyList([]string{"a", "b"})
	if len(out) != 2 || out[0] != "a" || out[1] != "b" {
		t.Fatalf("unexpected conversion: %v", out)
	}
}
