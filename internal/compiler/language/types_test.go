package language

import (
	"testing"
)

// TestTypeKeys verifies that structurally equal types share a key and
// structurally distinct types do not.
func TestTypeKeys(t *testing.T) {
	tests := []struct {
		name  string
		a     Type
		b     Type
		equal bool
	}{
		{
			name:  "same named type",
			a:     NewNamedType("app.Logger"),
			b:     NewNamedType("app.Logger"),
			equal: true,
		},
		{
			name:  "different paths",
			a:     NewNamedType("app.Logger"),
			b:     NewNamedType("app.Config"),
			equal: false,
		},
		{
			name:  "generic instantiation",
			a:     NewNamedType("app.Pool", NewNamedType("app.Conn")),
			b:     NewNamedType("app.Pool", NewNamedType("app.Conn")),
			equal: true,
		},
		{
			name:  "different generic args",
			a:     NewNamedType("app.Pool", NewNamedType("app.Conn")),
			b:     NewNamedType("app.Pool", NewNamedType("app.Socket")),
			equal: false,
		},
		{
			name:  "shared vs mutable ref",
			a:     NewRef(NewNamedType("app.Logger")),
			b:     NewMutRef(NewNamedType("app.Logger")),
			equal: false,
		},
		{
			name:  "result type",
			a:     NewResult(NewNamedType("app.User"), NewNamedType("app.AuthError")),
			b:     NewResult(NewNamedType("app.User"), NewNamedType("app.AuthError")),
			equal: true,
		},
		{
			name:  "generic param vs named type with same spelling",
			a:     NewGenericParam("T"),
			b:     NewNamedType("T"),
			equal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equals(tt.b); got != tt.equal {
				t.Errorf("Equals() = %v, want %v", got, tt.equal)
			}
			if got := tt.a.Key() == tt.b.Key(); got != tt.equal {
				t.Errorf("Key() equality = %v, want %v (%q vs %q)", got, tt.equal, tt.a.Key(), tt.b.Key())
			}
		})
	}
}

// TestFreeParams verifies encounter-order collection of unassigned generics.
func TestFreeParams(t *testing.T) {
	typ := NewResult(
		NewNamedType("app.Pool", NewGenericParam("T"), NewGenericParam("U")),
		NewNamedType("app.PoolError", NewGenericParam("T")),
	)
	got := FreeParams(typ)
	want := []string{"T", "U"}
	if len(got) != len(want) {
		t.Fatalf("FreeParams() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("FreeParams() = %v, want %v", got, want)
		}
	}

	if IsConcrete(typ) {
		t.Error("expected type with free parameters not to be concrete")
	}
	if !IsConcrete(NewNamedType("app.Logger")) {
		t.Error("expected parameterless named type to be concrete")
	}
}

// TestSubstitute verifies substitution leaves unbound parameters untouched
// and never mutates the input.
func TestSubstitute(t *testing.T) {
	tmpl := NewNamedType("app.Pool", NewGenericParam("T"), NewGenericParam("U"))
	got := Substitute(tmpl, map[string]Type{"T": NewNamedType("app.Conn")})

	want := NewNamedType("app.Pool", NewNamedType("app.Conn"), NewGenericParam("U"))
	if !got.Equals(want) {
		t.Errorf("Substitute() = %s, want %s", got, want)
	}
	if !tmpl.Args[0].Equals(NewGenericParam("T")) {
		t.Error("Substitute() mutated its input")
	}
}

func TestMatchTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template Type
		concrete Type
		ok       bool
		bindings map[string]string
	}{
		{
			name:     "single parameter",
			template: NewNamedType("app.Pool", NewGenericParam("T")),
			concrete: NewNamedType("app.Pool", NewNamedType("app.Conn")),
			ok:       true,
			bindings: map[string]string{"T": "app.Conn"},
		},
		{
			name:     "nested concrete sub-type",
			template: NewNamedType("app.Cache", NewGenericParam("V")),
			concrete: NewNamedType("app.Cache", NewNamedType("app.List", NewNamedType("app.User"))),
			ok:       true,
			bindings: map[string]string{"V": "app.List<app.User>"},
		},
		{
			name:     "path mismatch",
			template: NewNamedType("app.Pool", NewGenericParam("T")),
			concrete: NewNamedType("app.Cache", NewNamedType("app.Conn")),
			ok:       false,
		},
		{
			name:     "arity mismatch",
			template: NewNamedType("app.Pool", NewGenericParam("T")),
			concrete: NewNamedType("app.Pool"),
			ok:       false,
		},
		{
			name: "repeated parameter must bind consistently",
			template: NewNamedType("app.Pair",
				NewGenericParam("T"), NewGenericParam("T")),
			concrete: NewNamedType("app.Pair",
				NewNamedType("app.Conn"), NewNamedType("app.Socket")),
			ok: false,
		},
		{
			name:     "literal equality for non-parameter leaves",
			template: NewNamedType("app.Pool", NewNamedType("app.Conn")),
			concrete: NewNamedType("app.Pool", NewNamedType("app.Conn")),
			ok:       true,
			bindings: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bindings, ok := MatchTemplate(tt.template, tt.concrete)
			if ok != tt.ok {
				t.Fatalf("MatchTemplate() ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if len(bindings) != len(tt.bindings) {
				t.Fatalf("bindings = %v, want %v", bindings, tt.bindings)
			}
			for name, key := range tt.bindings {
				bound, present := bindings[name]
				if !present || bound.Key() != key {
					t.Errorf("binding %s = %v, want %s", name, bound, key)
				}
			}
		})
	}
}

func TestEquivalenceMapping(t *testing.T) {
	tests := []struct {
		name    string
		a       Type
		b       Type
		ok      bool
		mapping map[string]string
	}{
		{
			name:    "identical shape, renamed parameters",
			a:       NewNamedType("app.PoolError", NewGenericParam("T")),
			b:       NewNamedType("app.PoolError", NewGenericParam("E")),
			ok:      true,
			mapping: map[string]string{"T": "E"},
		},
		{
			name: "two parameters in order",
			a:    NewNamedType("app.Pair", NewGenericParam("A"), NewGenericParam("B")),
			b:    NewNamedType("app.Pair", NewGenericParam("X"), NewGenericParam("Y")),
			ok:   true,
			mapping: map[string]string{
				"A": "X",
				"B": "Y",
			},
		},
		{
			name: "repeated parameter on one side only",
			a:    NewNamedType("app.Pair", NewGenericParam("A"), NewGenericParam("A")),
			b:    NewNamedType("app.Pair", NewGenericParam("X"), NewGenericParam("Y")),
			ok:   false,
		},
		{
			name: "shape mismatch",
			a:    NewNamedType("app.PoolError", NewGenericParam("T")),
			b:    NewNamedType("app.CacheError", NewGenericParam("T")),
			ok:   false,
		},
		{
			name: "parameter against concrete type",
			a:    NewNamedType("app.PoolError", NewGenericParam("T")),
			b:    NewNamedType("app.PoolError", NewNamedType("app.Conn")),
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapping, ok := EquivalenceMapping(tt.a, tt.b)
			if ok != tt.ok {
				t.Fatalf("EquivalenceMapping() ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			for from, to := range tt.mapping {
				if mapping[from] != to {
					t.Errorf("mapping[%s] = %s, want %s", from, mapping[from], to)
				}
			}
		})
	}
}
