package logs

import (
	"context"
	"testing"

	"github.com/goodtune/yacgo/internal/model"
	"github.com/goodtune/yacgo/internal/plugin"
)

type fakeLogPlugin struct {
	entries []model.Log
	err     error
}

func (p fakeLogPlugin) Collect(ctx context.Context, details map[string]any, props Props) ([]model.Log, error) {
	return p.entries, p.err
}

func TestCollectAllConcatenatesInDeclarationOrder(t *testing.T) {
	reg := plugin.NewRegistry()
	Register(reg, "alpha", fakeLogPlugin{entries: []model.Log{{Name: "a1"}, {Name: "a2"}}})
	Register(reg, "beta", fakeLogPlugin{entries: []model.Log{{Name: "b1"}}})

	ty := &model.Type{
		Name: "widget",
		Logs: []model.TypeLog{
			{Name: "first", Plugin: "alpha"},
			{Name: "second", Plugin: "beta"},
		},
	}

	out, err := CollectAll(context.Background(), reg, ty, Props{Name: "w1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 || out[0].Name != "a1" || out[2].Name != "b1" {
		t.Fatalf("unexpected order/count: %+v", out)
	}
}

func TestCollectAllNilTypeReturnsNil(t *testing.T) {
	reg := plugin.NewRegistry()
	out, err := CollectAll(context.Background(), reg, nil, Props{})
	if err != nil || out != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", out, err)
	}
}

func TestCollectAllUnregisteredPluginErrors(t *testing.T) {
	reg := plugin.NewRegistry()
	ty := &model.Type{Name: "widget", Logs: []model.TypeLog{{Name: "first", Plugin: "missing"}}}
	if _, err := CollectAll(context.Background(), reg, ty, Props{}); err == nil {
		t.Error("expected error for unregistered log plugin")
	}
}

func TestCollectAllNoLogsReturnsEmpty(t *testing.T) {
	reg := plugin.NewRegistry()
	ty := &model.Type{Name: "widget"}
	out, err := CollectAll(context.Background(), reg, ty, Props{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty result, got %+v", out)
	}
}
