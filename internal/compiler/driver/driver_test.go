package driver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vireo-lang/vireo/internal/compiler/blueprint"
	"github.com/vireo-lang/vireo/internal/compiler/component"
	"github.com/vireo-lang/vireo/internal/compiler/diagnostics"
	"github.com/vireo-lang/vireo/internal/compiler/language"
	"github.com/vireo-lang/vireo/internal/compiler/oracle"
)

func basicOracle() *oracle.StaticOracle {
	o := oracle.NewStaticOracle()
	o.RegisterCallable(&oracle.Signature{
		Path:   "app.NewSession",
		Output: language.MustParseType("app.Session"),
	})
	o.RegisterCallable(&oracle.Signature{
		Path:   "app.Handler",
		Inputs: []language.Type{language.MustParseType("app.Session")},
		Output: language.Response(),
	})
	return o
}

func TestCompileProducesPipelines(t *testing.T) {
	bp := blueprint.New()
	root := bp.Root()
	root.Constructor("app.NewSession", component.RequestScoped, component.NeverClone)
	root.Route("GET", "/me", "app.Handler")

	res := Compile(bp, basicOracle(), zap.NewNop())
	require.True(t, res.Ok(), "diagnostics: %v", res.Diagnostics)
	require.Len(t, res.Pipelines, 1)
	assert.Equal(t, "GET", res.Pipelines[0].Method)
	assert.Equal(t, "/me", res.Pipelines[0].Pattern)
	assert.Empty(t, res.Diagnostics)
}

func TestCompileStopsAtFirstFailingPhase(t *testing.T) {
	o := oracle.NewStaticOracle()
	o.RegisterCallable(&oracle.Signature{
		Path:   "app.Handler",
		Inputs: []language.Type{language.MustParseType("app.Session")},
		Output: language.Response(),
	})

	bp := blueprint.New()
	bp.Root().Route("GET", "/me", "app.Handler")

	res := Compile(bp, o, nil)
	require.False(t, res.Ok())
	assert.Nil(t, res.Pipelines)
	require.Equal(t, 1, len(res.Diagnostics))
	assert.Equal(t, diagnostics.ErrMissingConstructor, res.Diagnostics[0].Code)
}

func TestUnusedConstructorWarning(t *testing.T) {
	o := basicOracle()
	o.RegisterCallable(&oracle.Signature{
		Path:   "app.NewCache",
		Output: language.MustParseType("app.Cache"),
	})

	bp := blueprint.New()
	root := bp.Root()
	root.Constructor("app.NewSession", component.RequestScoped, component.NeverClone)
	root.Constructor("app.NewCache", component.Singleton, component.NeverClone)
	root.Route("GET", "/me", "app.Handler")

	res := Compile(bp, o, nil)
	require.True(t, res.Ok())
	require.Len(t, res.Pipelines, 1)
	require.Equal(t, 1, len(res.Diagnostics))
	d := res.Diagnostics[0]
	assert.Equal(t, diagnostics.WarnUnusedComponent, d.Code)
	assert.Equal(t, diagnostics.SeverityWarning, d.Severity)
	assert.Equal(t, "app.NewCache", d.Component)
}

const manifestYAML = `
callables:
  - path: app.NewSession
    output: app.Session
  - path: app.Handler
    inputs: ["app.Session"]
    output: vireo.Response
blueprint:
  constructors:
    - path: app.NewSession
      lifecycle: request-scoped
  routes:
    - method: GET
      path: /me
      handler: app.Handler
`

func TestCompileManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yml")
	require.NoError(t, os.WriteFile(path, []byte(manifestYAML), 0o644))

	res, err := CompileManifest(path, nil)
	require.NoError(t, err)
	require.True(t, res.Ok(), "diagnostics: %v", res.Diagnostics)
	require.Len(t, res.Pipelines, 1)
	assert.Equal(t, "/me", res.Pipelines[0].Pattern)
}

func TestCompileManifestMissingFile(t *testing.T) {
	_, err := CompileManifest(filepath.Join(t.TempDir(), "nope.yml"), nil)
	assert.Error(t, err)
}
