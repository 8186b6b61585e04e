package command

import (
	"context"
	"reflect"
	"testing"
)

func noopVariant() []Variant {
	return []Variant{{
		Fn: func(context.Context, []any) (any, error) { return nil, nil },
	}}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	h := HandlerMap{"open": noopVariant()}

	r.Register("diff.open", "open", h, "void")

	reg, ok := r.Get("diff.open")
	if !ok {
		t.Fatal("Get() after Register returned ok=false")
	}
	if reg.ID != "diff.open" || reg.Method != "open" || reg.Return != "void" {
		t.Errorf("registration = %+v", reg)
	}
	if !r.Has("diff.open") {
		t.Error("Has() = false for registered id")
	}
	if r.Has("diff.close") {
		t.Error("Has() = true for unregistered id")
	}
}

func TestRegistryLastRegistrationWins(t *testing.T) {
	r := NewRegistry()
	first := HandlerMap{"a": noopVariant()}
	second := HandlerMap{"b": noopVariant()}

	r.Register("cmd", "a", first, "void")
	r.Register("cmd", "b", second, "string")

	reg, _ := r.Get("cmd")
	if reg.Method != "b" || reg.Return != "string" {
		t.Errorf("second registration did not replace first: %+v", reg)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry()
	h := HandlerMap{"m": noopVariant()}
	for _, id := range []string{"workspace.folders", "diff.open", "diff.closeAll"} {
		r.Register(id, "m", h, "")
	}

	want := []string{"diff.closeAll", "diff.open", "workspace.folders"}
	if got := r.List(); !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestRegistryUnregisterAndClear(t *testing.T) {
	r := NewRegistry()
	h := HandlerMap{"m": noopVariant()}
	r.Register("one", "m", h, "")
	r.Register("two", "m", h, "")

	r.Unregister("one")
	if r.Has("one") {
		t.Error("Has() = true after Unregister")
	}
	if !r.Has("two") {
		t.Error("Unregister removed an unrelated id")
	}

	r.Clear()
	if r.Count() != 0 {
		t.Errorf("Count() = %d after Clear, want 0", r.Count())
	}
}
