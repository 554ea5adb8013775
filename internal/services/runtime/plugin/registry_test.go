package plugin

import (
	"errors"
	"reflect"
	"testing"

	"github.com/louisbranch/arkomp/pkg/operator"
)

func TestRegistryRegisterGetDeregister(t *testing.T) {
	r := NewRegistry()
	p, _ := loadFake(t, "crow", operator.Constructor(newConstructor))

	replaced, err := r.Register(p)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if replaced != nil {
		t.Fatalf("expected nothing replaced, got %v", replaced.Name())
	}
	got, err := r.Get("crow")
	if err != nil || got != p {
		t.Fatalf("get = %v, %v", got, err)
	}

	removed, err := r.Deregister("crow")
	if err != nil || removed != p {
		t.Fatalf("deregister = %v, %v", removed, err)
	}
	if _, err := r.Get("crow"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
	if _, err := r.Deregister("crow"); err == nil || err.Error() != "Plugin is not in registry: crow" {
		t.Fatalf("unexpected deregister error %v", err)
	}
}

func TestRegistryOverwriteReturnsReplaced(t *testing.T) {
	r := NewRegistry()
	first, _ := loadFake(t, "crow", operator.Constructor(newConstructor))
	second, _ := loadFake(t, "crow", operator.Constructor(newConstructor))

	if _, err := r.Register(first); err != nil {
		t.Fatalf("register first: %v", err)
	}
	replaced, err := r.Register(second)
	if err != nil {
		t.Fatalf("register second: %v", err)
	}
	if replaced != first {
		t.Fatal("expected first plugin returned as replaced")
	}
	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1", r.Len())
	}
	got, _ := r.Get("crow")
	if got != second {
		t.Fatal("expected last registration to win")
	}
}

func TestRegistryRejectsUnnamed(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Register(nil); !errors.Is(err, ErrPluginRequired) {
		t.Fatalf("expected ErrPluginRequired, got %v", err)
	}
	if _, err := r.Register(NewOperatorPlugin(" ", nil)); !errors.Is(err, ErrPluginRequired) {
		t.Fatalf("expected ErrPluginRequired, got %v", err)
	}
}

func TestRegistryNamesAndClose(t *testing.T) {
	r := NewRegistry()
	b, libB := loadFake(t, "beta", operator.Constructor(newConstructor))
	a, libA := loadFake(t, "alpha", operator.Constructor(newConstructor))
	r.Register(b)
	r.Register(a)

	if got := r.Names(); !reflect.DeepEqual(got, []string{"alpha", "beta"}) {
		t.Fatalf("names = %v", got)
	}
	list := r.List()
	if len(list) != 2 || list[0] != a || list[1] != b {
		t.Fatalf("unexpected list order")
	}

	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("len = %d after close", r.Len())
	}
	if !libA.isClosed() || !libB.isClosed() {
		t.Fatal("expected modules released on close")
	}
}
