package plugin

import "testing"

type fakeOrderable struct {
	late bool
	rank int
}

func (f fakeOrderable) Order() (bool, int) { return f.late, f.rank }

func TestRegisterAndGetModule(t *testing.T) {
	r := NewRegistry()
	r.Register(KindAction, "noop", "impl-a")

	impl, ok := r.GetModule(KindAction, "noop")
	if !ok || impl != "impl-a" {
		t.Fatalf("expected impl-a, got %v (ok=%v)", impl, ok)
	}

	if _, ok := r.GetModule(KindAction, "missing"); ok {
		t.Error("expected missing plugin to be absent")
	}
}

func TestRequire(t *testing.T) {
	r := NewRegistry()
	r.Register(KindValidator, "a", "impl-a")

	if err := r.Require(KindValidator, []string{"a"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := r.Require(KindValidator, []string{"a", "b"}); err == nil {
		t.Error("expected error for missing plugin b")
	}
}

func TestGetModulesSortedOrdersByRankAndLateness(t *testing.T) {
	r := NewRegistry()
	r.Register(KindValidator, "late-2", fakeOrderable{late: true, rank: 2})
	r.Register(KindValidator, "late-1", fakeOrderable{late: true, rank: 1})
	r.Register(KindValidator, "early", fakeOrderable{late: false, rank: 0})

	early := r.GetModulesSorted(KindValidator, false)
	if len(early) != 1 {
		t.Fatalf("expected 1 early plugin, got %d", len(early))
	}

	late := r.GetModulesSorted(KindValidator, true)
	if len(late) != 2 {
		t.Fatalf("expected 2 late plugins, got %d", len(late))
	}
	if late[0].(fakeOrderable).rank != 1 || late[1].(fakeOrderable).rank != 2 {
		t.Errorf("expected rank order [1,2], got %+v", late)
	}
}

func TestGetModulesSortedCacheInvalidatesOnRegister(t *testing.T) {
	r := NewRegistry()
	r.Register(KindAction, "a", fakeOrderable{late: false, rank: 0})
	first := r.GetModulesSorted(KindAction, false)
	if len(first) != 1 {
		t.Fatalf("expected 1, got %d", len(first))
	}

	r.Register(KindAction, "b", fakeOrderable{late: false, rank: 1})
	second := r.GetModulesSorted(KindAction, false)
	if len(second) != 2 {
		t.Fatalf("expected cache to refresh to 2 after new register, got %d", len(second))
	}
}
