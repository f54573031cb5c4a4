package factory

import (
	"testing"
	"time"
)

type endpoint struct {
	URL     string
	Timeout time.Duration
}

type endpointConf struct {
	URL     string        `json:"url"`
	Timeout time.Duration `json:"timeout"`
	Retries int           `json:"retries"`
}

// Test registry registration and instantiation using Decode.
func TestRegistry_Create(t *testing.T) {
	reg := NewRegistry[*endpoint]()
	if err := reg.Register("http", func(conf map[string]any) (*endpoint, error) {
		var c endpointConf
		if err := Decode(conf, &c); err != nil {
			return nil, err
		}
		return &endpoint{URL: c.URL, Timeout: c.Timeout}, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	inst, err := reg.Create(ModuleConfig{Type: "http", Conf: map[string]any{"url": "http://est", "timeout": "3s"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inst.URL != "http://est" || inst.Timeout != 3*time.Second {
		t.Fatalf("unexpected instance %+v", inst)
	}
}

// Test duplicate registration and unknown type errors.
func TestRegistry_Errors(t *testing.T) {
	reg := NewRegistry[int]()
	if err := reg.Register("x", func(map[string]any) (int, error) { return 1, nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register("x", func(map[string]any) (int, error) { return 2, nil }); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := reg.Register("z", nil); err == nil {
		t.Fatal("expected nil factory error")
	}
	if _, err := reg.Create(ModuleConfig{Type: "y"}); err == nil {
		t.Fatal("expected unknown type error")
	}
}

func TestRegistry_Names(t *testing.T) {
	reg := NewRegistry[int]()
	for _, n := range []string{"prometheus", "influx", "nop"} {
		if err := reg.Register(n, func(map[string]any) (int, error) { return 0, nil }); err != nil {
			t.Fatalf("register %s: %v", n, err)
		}
	}
	got := reg.Names()
	want := []string{"influx", "nop", "prometheus"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("names = %v, want %v", got, want)
		}
	}
}

func TestDecode_WeakTypes(t *testing.T) {
	var c endpointConf
	if err := Decode(map[string]any{"retries": "4"}, &c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Retries != 4 {
		t.Fatalf("expected 4 retries, got %d", c.Retries)
	}
}
