package action

import (
	"context"
	"testing"

	"github.com/goodtune/yacgo/internal/model"
	"github.com/goodtune/yacgo/internal/plugin"
	"github.com/goodtune/yacgo/internal/yacerr"
)

type recordingPlugin struct {
	ran bool
	err error
}

func (p *recordingPlugin) Run(ctx context.Context, details map[string]any, props Props) error {
	p.ran = true
	return p.err
}

func typeWithAction(name string, force bool, hooks ...model.Hook) *model.Type {
	return &model.Type{
		Name: "widget",
		Actions: []model.TypeAction{
			{Name: name, Force: force, Hooks: hooks, Plugin: "recorder"},
		},
	}
}

func TestDispatchRunsForcedActionWithoutBeingRequested(t *testing.T) {
	reg := plugin.NewRegistry()
	p := &recordingPlugin{}
	Register(reg, "recorder", p)

	ty := typeWithAction("notify", true, model.HookCreateAfter)
	err := Dispatch(context.Background(), reg, ty, model.HookCreateAfter, nil, Props{Type: ty})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.ran {
		t.Error("expected forced action to run")
	}
}

func TestDispatchSkipsForceOnArbitraryHook(t *testing.T) {
	reg := plugin.NewRegistry()
	p := &recordingPlugin{}
	Register(reg, "recorder", p)

	ty := typeWithAction("notify", true, model.HookArbitrary)
	err := Dispatch(context.Background(), reg, ty, model.HookArbitrary, nil, Props{Type: ty})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ran {
		t.Error("expected force to have no effect on an arbitrary hook")
	}
}

func TestDispatchRunsExplicitlyRequestedAction(t *testing.T) {
	reg := plugin.NewRegistry()
	p := &recordingPlugin{}
	Register(reg, "recorder", p)

	ty := typeWithAction("notify", false, model.HookArbitrary)
	err := Dispatch(context.Background(), reg, ty, model.HookArbitrary, []string{"notify"}, Props{Type: ty})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.ran {
		t.Error("expected requested action to run")
	}
}

func TestDispatchSkipsActionNotMatchingHook(t *testing.T) {
	reg := plugin.NewRegistry()
	p := &recordingPlugin{}
	Register(reg, "recorder", p)

	ty := typeWithAction("notify", true, model.HookDeleteAfter)
	err := Dispatch(context.Background(), reg, ty, model.HookCreateAfter, nil, Props{Type: ty})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ran {
		t.Error("expected action hooked to delete:after not to run on create:after")
	}
}

func TestDispatchUnknownPluginErrors(t *testing.T) {
	reg := plugin.NewRegistry()
	ty := typeWithAction("notify", true, model.HookCreateAfter)
	err := Dispatch(context.Background(), reg, ty, model.HookCreateAfter, nil, Props{Type: ty})
	if err == nil {
		t.Fatal("expected error for unregistered plugin")
	}
}

func TestDispatchPropagates4xxErrorsVerbatim(t *testing.T) {
	reg := plugin.NewRegistry()
	clientErr := yacerr.NewRequestError("bad input")
	p := &recordingPlugin{err: clientErr}
	Register(reg, "recorder", p)

	ty := typeWithAction("notify", true, model.HookCreateAfter)
	err := Dispatch(context.Background(), reg, ty, model.HookCreateAfter, nil, Props{Type: ty})
	if err != clientErr {
		t.Fatalf("expected 4xx error to propagate unchanged, got %v", err)
	}
}

func TestDispatchNilTypeIsNoop(t *testing.T) {
	reg := plugin.NewRegistry()
	if err := Dispatch(context.Background(), reg, nil, model.HookCreateAfter, nil, Props{}); err != nil {
		t.Fatalf("expected nil type to be a no-op, got %v", err)
	}
}
