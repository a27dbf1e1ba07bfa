package constructible

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vireo-lang/vireo/internal/compiler/blueprint"
	"github.com/vireo-lang/vireo/internal/compiler/component"
	"github.com/vireo-lang/vireo/internal/compiler/componentdb"
	"github.com/vireo-lang/vireo/internal/compiler/computation"
	"github.com/vireo-lang/vireo/internal/compiler/diagnostics"
	"github.com/vireo-lang/vireo/internal/compiler/language"
	"github.com/vireo-lang/vireo/internal/compiler/oracle"
)

type fixture struct {
	registry *componentdb.Db
	index    *Db
	sink     *diagnostics.Sink
}

func newFixture(t *testing.T, o oracle.TypeOracle, bp *blueprint.Blueprint) *fixture {
	t.Helper()
	sink := diagnostics.NewSink()
	scopes := bp.ScopeGraph()
	registry := componentdb.Build(bp, scopes, computation.NewStore(), o, sink)
	require.False(t, sink.HasErrors(), "registration diagnostics: %v", sink.All())
	index := New(registry, scopes, sink)
	index.Populate()
	return &fixture{registry: registry, index: index, sink: sink}
}

func TestScopeChainLookup(t *testing.T) {
	o := oracle.NewStaticOracle()
	o.RegisterCallable(&oracle.Signature{Path: "app.NewPool", Output: language.MustParseType("app.Pool")})
	o.RegisterCallable(&oracle.Signature{Path: "app.NewSession", Output: language.MustParseType("app.Session")})

	bp := blueprint.New()
	root := bp.Root()
	root.Constructor("app.NewPool", component.Singleton, component.NeverClone)
	api := root.Nest("api")
	admin := root.Nest("admin")
	api.Constructor("app.NewSession", component.RequestScoped, component.NeverClone)

	f := newFixture(t, o, bp)

	// A root registration is visible from any descendant scope.
	_, mode, ok := f.index.Lookup(api.Scope(), language.MustParseType("app.Pool"))
	require.True(t, ok)
	assert.Equal(t, component.Move, mode)

	// References resolve through the constructibility of the referent.
	_, mode, ok = f.index.Lookup(api.Scope(), language.MustParseType("&app.Pool"))
	require.True(t, ok)
	assert.Equal(t, component.SharedBorrow, mode)

	// A sibling scope's registration is invisible.
	_, _, ok = f.index.Lookup(admin.Scope(), language.MustParseType("app.Session"))
	assert.False(t, ok)
}

func TestFallibleConstructorIndexesMatchers(t *testing.T) {
	o := oracle.NewStaticOracle()
	o.RegisterCallable(&oracle.Signature{
		Path:   "app.NewConn",
		Output: language.MustParseType("Result<app.Conn, app.ConnError>"),
	})

	bp := blueprint.New()
	conn := bp.Root().Constructor("app.NewConn", component.RequestScoped, component.NeverClone)

	f := newFixture(t, o, bp)
	connID, _ := f.registry.ComponentOfDeclaration(conn.Index)
	pair, _ := f.registry.MatchersOf(connID)

	id, _, ok := f.index.Lookup(bp.Root().Scope(), language.MustParseType("app.Conn"))
	require.True(t, ok)
	assert.Equal(t, pair.Ok, id)

	id, _, ok = f.index.Lookup(bp.Root().Scope(), language.MustParseType("app.ConnError"))
	require.True(t, ok)
	assert.Equal(t, pair.Err, id)

	// The raw result resolves to the constructor itself.
	id, _, ok = f.index.Lookup(bp.Root().Scope(), language.MustParseType("Result<app.Conn, app.ConnError>"))
	require.True(t, ok)
	assert.Equal(t, connID, id)
}

func TestResolveOrSpecialize(t *testing.T) {
	o := oracle.NewStaticOracle()
	o.RegisterCallable(&oracle.Signature{Path: "app.NewPool", Output: language.MustParseType("app.Pool")})
	o.RegisterCallable(&oracle.Signature{
		Path:   "app.NewRepo",
		Inputs: []language.Type{language.MustParseType("&app.Pool")},
		Output: language.MustParseType("app.Repo<$T>"),
	})

	bp := blueprint.New()
	root := bp.Root()
	root.Constructor("app.NewPool", component.Singleton, component.NeverClone)
	root.Constructor("app.NewRepo", component.RequestScoped, component.NeverClone)

	f := newFixture(t, o, bp)
	want := language.MustParseType("app.Repo<app.User>")

	// No exact entry exists before specialization.
	_, _, ok := f.index.Lookup(root.Scope(), want)
	assert.False(t, ok)

	id, mode, ok := f.index.ResolveOrSpecialize(root.Scope(), want)
	require.True(t, ok)
	assert.Equal(t, component.Move, mode)
	assert.Equal(t, want.String(), f.registry.OutputOf(id).String())

	// Specialization is idempotent: the same request resolves to the same id.
	again, _, ok := f.index.ResolveOrSpecialize(root.Scope(), want)
	require.True(t, ok)
	assert.Equal(t, id, again)

	assert.False(t, f.sink.HasErrors())
}

func TestMissingConstructorDiagnostic(t *testing.T) {
	o := oracle.NewStaticOracle()
	o.RegisterCallable(&oracle.Signature{
		Path:   "app.Handler",
		Inputs: []language.Type{language.MustParseType("app.Missing")},
		Output: language.Response(),
	})

	bp := blueprint.New()
	bp.Root().Route("GET", "/home", "app.Handler")

	f := newFixture(t, o, bp)
	require.Equal(t, 1, f.sink.Len())
	d := f.sink.All()[0]
	assert.Equal(t, diagnostics.ErrMissingConstructor, d.Code)
	assert.Equal(t, "app.Handler", d.Component)
	assert.Equal(t, "app.Missing", d.Type)
}

func TestSingletonUniqueness(t *testing.T) {
	t.Run("conflicting producers are ambiguous", func(t *testing.T) {
		o := oracle.NewStaticOracle()
		o.RegisterCallable(&oracle.Signature{Path: "app.NewPool", Output: language.MustParseType("app.Pool")})
		o.RegisterCallable(&oracle.Signature{Path: "app.NewPoolFromEnv", Output: language.MustParseType("app.Pool")})

		bp := blueprint.New()
		root := bp.Root()
		root.Constructor("app.NewPool", component.Singleton, component.NeverClone)
		root.Nest("api").Constructor("app.NewPoolFromEnv", component.Singleton, component.NeverClone)

		f := newFixture(t, o, bp)
		f.index.Check()
		require.Equal(t, 1, f.sink.Len())
		assert.Equal(t, diagnostics.ErrAmbiguousSingleton, f.sink.All()[0].Code)
	})

	t.Run("identical registrations point at the common ancestor", func(t *testing.T) {
		o := oracle.NewStaticOracle()
		o.RegisterCallable(&oracle.Signature{Path: "app.NewPool", Output: language.MustParseType("app.Pool")})

		bp := blueprint.New()
		root := bp.Root()
		root.Nest("api").Constructor("app.NewPool", component.Singleton, component.NeverClone)
		root.Nest("admin").Constructor("app.NewPool", component.Singleton, component.NeverClone)

		f := newFixture(t, o, bp)
		f.index.Check()
		require.Equal(t, 1, f.sink.Len())
		d := f.sink.All()[0]
		assert.Equal(t, diagnostics.ErrDuplicatedSingleton, d.Code)
		assert.Contains(t, d.Suggestion, "`root`")
	})
}

func TestLifecycleLayering(t *testing.T) {
	o := oracle.NewStaticOracle()
	o.RegisterCallable(&oracle.Signature{Path: "app.NewSession", Output: language.MustParseType("app.Session")})
	o.RegisterCallable(&oracle.Signature{
		Path:   "app.NewCache",
		Inputs: []language.Type{language.MustParseType("&app.Session")},
		Output: language.MustParseType("app.Cache"),
	})

	bp := blueprint.New()
	root := bp.Root()
	root.Constructor("app.NewSession", component.RequestScoped, component.NeverClone)
	root.Constructor("app.NewCache", component.Singleton, component.NeverClone)

	f := newFixture(t, o, bp)
	f.index.Check()
	require.Equal(t, 1, f.sink.Len())
	d := f.sink.All()[0]
	assert.Equal(t, diagnostics.ErrLifecycleLayering, d.Code)
	assert.Equal(t, "app.NewCache", d.Component)
}

func TestObserverPurity(t *testing.T) {
	o := oracle.NewStaticOracle()
	o.RegisterCallable(&oracle.Signature{
		Path:   "app.NewSession",
		Output: language.MustParseType("Result<app.Session, app.SessionError>"),
	})
	o.RegisterCallable(&oracle.Signature{
		Path: "app.ObserveErrors",
		Inputs: []language.Type{
			language.MustParseType("&vireo.Error"),
			language.MustParseType("&app.Session"),
		},
	})

	bp := blueprint.New()
	root := bp.Root()
	root.Constructor("app.NewSession", component.RequestScoped, component.NeverClone)
	root.ErrorObserver("app.ObserveErrors")

	f := newFixture(t, o, bp)
	f.index.Check()
	require.Equal(t, 1, f.sink.Len())
	d := f.sink.All()[0]
	assert.Equal(t, diagnostics.ErrImpureErrorObserver, d.Code)
	assert.Equal(t, []string{"app.Session"}, d.Chain)
}

func TestMutableRefMisuse(t *testing.T) {
	register := func(o *oracle.StaticOracle) {
		o.RegisterCallable(&oracle.Signature{Path: "app.NewCounter", Output: language.MustParseType("app.Counter")})
		o.RegisterCallable(&oracle.Signature{
			Path:   "app.Handler",
			Inputs: []language.Type{language.MustParseType("&mut app.Counter")},
			Output: language.Response(),
		})
	}

	cases := []struct {
		name      string
		lifecycle component.Lifecycle
		cloning   component.CloningStrategy
		wantErr   bool
	}{
		{"singleton target", component.Singleton, component.NeverClone, true},
		{"transient target", component.Transient, component.NeverClone, true},
		{"request-scoped cloneable target", component.RequestScoped, component.CloneIfNecessary, true},
		{"request-scoped never-clone target", component.RequestScoped, component.NeverClone, false},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			o := oracle.NewStaticOracle()
			register(o)

			bp := blueprint.New()
			root := bp.Root()
			root.Constructor("app.NewCounter", tt.lifecycle, tt.cloning)
			root.Route("GET", "/count", "app.Handler")

			f := newFixture(t, o, bp)
			f.index.Check()
			if !tt.wantErr {
				assert.False(t, f.sink.HasErrors())
				return
			}
			require.Equal(t, 1, f.sink.Len())
			assert.Equal(t, diagnostics.ErrIllegalMutableRef, f.sink.All()[0].Code)
		})
	}
}
