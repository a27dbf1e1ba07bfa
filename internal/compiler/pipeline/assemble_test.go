package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vireo-lang/vireo/internal/compiler/blueprint"
	"github.com/vireo-lang/vireo/internal/compiler/component"
	"github.com/vireo-lang/vireo/internal/compiler/componentdb"
	"github.com/vireo-lang/vireo/internal/compiler/computation"
	"github.com/vireo-lang/vireo/internal/compiler/constructible"
	"github.com/vireo-lang/vireo/internal/compiler/diagnostics"
	"github.com/vireo-lang/vireo/internal/compiler/language"
	"github.com/vireo-lang/vireo/internal/compiler/oracle"
)

type fixture struct {
	registry  *componentdb.Db
	index     *constructible.Db
	assembler *Assembler
	sink      *diagnostics.Sink
}

func newFixture(t *testing.T, o oracle.TypeOracle, bp *blueprint.Blueprint) *fixture {
	t.Helper()
	sink := diagnostics.NewSink()
	scopes := bp.ScopeGraph()
	registry := componentdb.Build(bp, scopes, computation.NewStore(), o, sink)
	index := constructible.New(registry, scopes, sink)
	index.Populate()
	index.Check()
	require.False(t, sink.HasErrors(), "pre-assembly diagnostics: %v", sink.All())
	return &fixture{
		registry:  registry,
		index:     index,
		assembler: New(registry, index, scopes, sink),
		sink:      sink,
	}
}

func TestFallibleRouteEndToEnd(t *testing.T) {
	o := oracle.NewStaticOracle()
	o.RegisterCallable(&oracle.Signature{
		Path:   "app.NewX",
		Output: language.MustParseType("Result<app.X, app.E>"),
	})
	o.RegisterCallable(&oracle.Signature{
		Path:   "app.HandleE",
		Inputs: []language.Type{language.MustParseType("&app.E")},
		Output: language.Response(),
	})
	o.RegisterCallable(&oracle.Signature{
		Path:   "app.Handler",
		Inputs: []language.Type{language.MustParseType("app.X")},
		Output: language.Response(),
	})

	bp := blueprint.New()
	root := bp.Root()
	x := root.Constructor("app.NewX", component.Transient, component.CloneIfNecessary)
	root.ErrorHandlerFor(x, "app.HandleE")
	bp.Root().Route("GET", "/x", "app.Handler")

	f := newFixture(t, o, bp)
	pipelines := f.assembler.AssembleAll(bp)
	require.False(t, f.sink.HasErrors(), "diagnostics: %v", f.sink.All())
	require.Len(t, pipelines, 1)

	p := pipelines[0]
	require.Len(t, p.Stages, 2)
	assert.Equal(t, "stage_0_wrap_noop", p.Stages[0].Name)
	assert.Equal(t, "stage_1_handler", p.Stages[1].Name)

	// The handler stage resolves app.X through the Ok matcher; the fallible
	// constructor node carries the full failure path.
	handlerStage := p.Stages[1]
	xID, _ := f.registry.ComponentOfDeclaration(x.Index)
	ctorIdx := handlerStage.Graph.NodeByComponent(xID)
	require.GreaterOrEqual(t, ctorIdx, 0)
	branch := handlerStage.Graph.Nodes[ctorIdx].Branch
	require.NotNil(t, branch)
	assert.NotEqual(t, componentdb.Invalid, branch.Handler)
	pair, _ := f.registry.MatchersOf(xID)
	assert.Equal(t, pair.Ok, branch.OkMatcher)
	assert.Equal(t, pair.Err, branch.ErrMatcher)
	assert.NotEqual(t, componentdb.Invalid, branch.Upcast)

	// The middle's single binding names the node producing app.X.
	require.Len(t, handlerStage.Bindings, 1)
	assert.Equal(t, "app.X", handlerStage.Bindings[0].Type.String())
	assert.Equal(t, component.Move, handlerStage.Bindings[0].Mode)
}

func TestStateThreading(t *testing.T) {
	o := oracle.NewStaticOracle()
	o.RegisterCallable(&oracle.Signature{
		Path:   "app.NewSession",
		Output: language.MustParseType("app.Session"),
	})
	o.RegisterCallable(&oracle.Signature{
		Path: "app.Auth",
		Inputs: []language.Type{
			language.Next(language.NewGenericParam("S")),
			language.MustParseType("&app.Session"),
		},
		Output: language.Response(),
	})
	o.RegisterCallable(&oracle.Signature{
		Path:   "app.Handler",
		Inputs: []language.Type{language.MustParseType("app.Session")},
		Output: language.Response(),
	})

	bp := blueprint.New()
	root := bp.Root()
	root.Constructor("app.NewSession", component.RequestScoped, component.NeverClone)
	root.Wrap("app.Auth")
	root.Route("GET", "/me", "app.Handler")

	f := newFixture(t, o, bp)
	pipelines := f.assembler.AssembleAll(bp)
	require.False(t, f.sink.HasErrors(), "diagnostics: %v", f.sink.All())
	require.Len(t, pipelines, 1)

	p := pipelines[0]
	require.Len(t, p.Stages, 3)

	// The session crosses from the auth stage into the handler stage, so the
	// auth stage's continuation state carries it.
	authState := p.Stages[1].State
	require.NotNil(t, authState)
	require.Len(t, authState.Fields, 1)
	assert.Equal(t, "app.Session", authState.Fields[0].Type.String())
	assert.Equal(t, "vireo.generated.get_me_stage1_state", authState.Type.String())

	// The auth middleware's continuation was specialized to the state type.
	authComp := f.registry.ComputationOf(p.Stages[1].Middle)
	state, ok := language.IsContinuation(authComp.Inputs[0])
	require.True(t, ok)
	assert.Equal(t, authState.Type.String(), state.String())

	// The handler stage receives the session instead of rebuilding it.
	var providedSession bool
	for _, n := range p.Stages[2].Graph.Nodes {
		if n.Provided && f.registry.OutputOf(n.ID).String() == "app.Session" {
			providedSession = true
		}
	}
	assert.True(t, providedSession)

	// Exactly one stage builds the session.
	builds := 0
	for _, st := range p.Stages {
		for _, n := range st.Graph.Nodes {
			if !n.Provided && f.registry.OutputOf(n.ID).String() == "app.Session" {
				builds++
			}
		}
	}
	assert.Equal(t, 1, builds)
}

func TestOwnershipConflicts(t *testing.T) {
	register := func(o *oracle.StaticOracle) {
		o.RegisterCallable(&oracle.Signature{
			Path:   "app.NewToken",
			Output: language.MustParseType("app.Token"),
		})
		o.RegisterCallable(&oracle.Signature{
			Path:   "app.Handler",
			Inputs: []language.Type{language.MustParseType("app.Token")},
			Output: language.Response(),
		})
		o.RegisterCallable(&oracle.Signature{
			Path: "app.Audit",
			Inputs: []language.Type{
				language.Response(),
				language.MustParseType("app.Token"),
			},
			Output: language.Response(),
		})
	}

	t.Run("never-clone conflict is a hard error", func(t *testing.T) {
		o := oracle.NewStaticOracle()
		register(o)

		bp := blueprint.New()
		root := bp.Root()
		root.Constructor("app.NewToken", component.RequestScoped, component.NeverClone)
		root.PostProcess("app.Audit")
		root.Route("GET", "/t", "app.Handler")

		f := newFixture(t, o, bp)
		pipelines := f.assembler.AssembleAll(bp)
		assert.Empty(t, pipelines)
		require.Equal(t, 1, f.sink.Len())
		d := f.sink.All()[0]
		assert.Equal(t, diagnostics.ErrOwnershipConflict, d.Code)
		assert.Equal(t, "app.Handler", d.Component)
		assert.Equal(t, "app.Token", d.Type)
	})

	t.Run("clone-if-necessary records a duplicate site", func(t *testing.T) {
		o := oracle.NewStaticOracle()
		register(o)

		bp := blueprint.New()
		root := bp.Root()
		root.Constructor("app.NewToken", component.RequestScoped, component.CloneIfNecessary)
		root.PostProcess("app.Audit")
		root.Route("GET", "/t", "app.Handler")

		f := newFixture(t, o, bp)
		pipelines := f.assembler.AssembleAll(bp)
		require.False(t, f.sink.HasErrors(), "diagnostics: %v", f.sink.All())
		require.Len(t, pipelines, 1)

		// The handler moves the token inside the outer stage's continuation,
		// so the duplicate is inserted at that stage's middle position,
		// before the post-processor runs.
		outer := pipelines[0].Stages[0]
		dups, ok := outer.Duplicates[language.MustParseType("app.Token").Key()]
		require.True(t, ok)
		assert.Equal(t, []int{0}, dups)
	})
}

func TestMissingErrorHandlerReportedOnWiring(t *testing.T) {
	o := oracle.NewStaticOracle()
	o.RegisterCallable(&oracle.Signature{
		Path:   "app.NewX",
		Output: language.MustParseType("Result<app.X, app.E>"),
	})
	o.RegisterCallable(&oracle.Signature{
		Path:   "app.Handler",
		Inputs: []language.Type{language.MustParseType("app.X")},
		Output: language.Response(),
	})

	bp := blueprint.New()
	root := bp.Root()
	root.Constructor("app.NewX", component.RequestScoped, component.NeverClone)
	root.Route("GET", "/x", "app.Handler")

	f := newFixture(t, o, bp)
	pipelines := f.assembler.AssembleAll(bp)
	assert.Empty(t, pipelines)
	require.Equal(t, 1, f.sink.Len())
	d := f.sink.All()[0]
	assert.Equal(t, diagnostics.ErrMissingErrorHandler, d.Code)
	assert.Equal(t, "app.NewX", d.Component)
	assert.Equal(t, "app.E", d.Type)
}

func TestDeterministicAssembly(t *testing.T) {
	build := func() ([]*Pipeline, *fixture) {
		o := oracle.NewStaticOracle()
		o.RegisterCallable(&oracle.Signature{
			Path:   "app.NewSession",
			Output: language.MustParseType("app.Session"),
		})
		o.RegisterCallable(&oracle.Signature{
			Path: "app.Auth",
			Inputs: []language.Type{
				language.Next(language.NewGenericParam("S")),
				language.MustParseType("&app.Session"),
			},
			Output: language.Response(),
		})
		o.RegisterCallable(&oracle.Signature{
			Path:   "app.Handler",
			Inputs: []language.Type{language.MustParseType("app.Session")},
			Output: language.Response(),
		})

		bp := blueprint.New()
		root := bp.Root()
		root.Constructor("app.NewSession", component.RequestScoped, component.NeverClone)
		root.Wrap("app.Auth")
		root.Route("GET", "/me", "app.Handler")

		f := newFixture(t, o, bp)
		return f.assembler.AssembleAll(bp), f
	}

	first, _ := build()
	second, _ := build()
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	require.Len(t, second[0].Stages, len(first[0].Stages))
	for i := range first[0].Stages {
		assert.Equal(t, first[0].Stages[i].Name, second[0].Stages[i].Name)
		assert.Len(t, second[0].Stages[i].Graph.Nodes, len(first[0].Stages[i].Graph.Nodes))
		for j := range first[0].Stages[i].Graph.Nodes {
			assert.Equal(t, first[0].Stages[i].Graph.Nodes[j].Name, second[0].Stages[i].Graph.Nodes[j].Name)
		}
	}
}
