// Package driver sequences the resolution phases: registry construction,
// the constructible fixpoint, the global consistency checks, and per-route
// pipeline assembly. Each phase only runs if the previous one produced no
// errors, so later diagnostics never cascade from earlier ones.
package driver

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vireo-lang/vireo/internal/compiler/blueprint"
	"github.com/vireo-lang/vireo/internal/compiler/component"
	"github.com/vireo-lang/vireo/internal/compiler/componentdb"
	"github.com/vireo-lang/vireo/internal/compiler/computation"
	"github.com/vireo-lang/vireo/internal/compiler/constructible"
	"github.com/vireo-lang/vireo/internal/compiler/diagnostics"
	"github.com/vireo-lang/vireo/internal/compiler/oracle"
	"github.com/vireo-lang/vireo/internal/compiler/pipeline"
)

// Result is the outcome of a compilation: the assembled pipelines, one per
// route, and every diagnostic emitted along the way. Pipelines is nil when
// any phase reported an error.
type Result struct {
	Pipelines   []*pipeline.Pipeline
	Diagnostics diagnostics.List
}

// Ok reports whether the compilation produced no errors. Warnings do not
// fail a compilation.
func (r *Result) Ok() bool {
	return !r.Diagnostics.HasErrors()
}

// Compile resolves a blueprint against a type oracle.
func Compile(bp *blueprint.Blueprint, o oracle.TypeOracle, logger *zap.Logger) *Result {
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := diagnostics.NewSink()
	scopes := bp.ScopeGraph()

	registry := componentdb.Build(bp, scopes, computation.NewStore(), o, sink)
	logger.Debug("component registry built",
		zap.Int("declarations", len(bp.Declarations())),
		zap.Int("components", registry.Len()),
		zap.Int("diagnostics", sink.Len()))
	if sink.HasErrors() {
		return &Result{Diagnostics: sink.All()}
	}

	index := constructible.New(registry, scopes, sink)
	index.Populate()
	index.Check()
	logger.Debug("constructible index settled",
		zap.Int("components", registry.Len()),
		zap.Int("diagnostics", sink.Len()))
	if sink.HasErrors() {
		return &Result{Diagnostics: sink.All()}
	}

	asm := pipeline.New(registry, index, scopes, sink)
	pipelines := asm.AssembleAll(bp)
	logger.Debug("pipelines assembled",
		zap.Int("routes", len(bp.Routes())),
		zap.Int("pipelines", len(pipelines)),
		zap.Int("diagnostics", sink.Len()))
	if sink.HasErrors() {
		return &Result{Diagnostics: sink.All()}
	}

	warnUnused(bp, registry, index, sink)
	return &Result{Pipelines: pipelines, Diagnostics: sink.All()}
}

// CompileManifest loads a manifest file and compiles its blueprint.
func CompileManifest(path string, logger *zap.Logger) (*Result, error) {
	m, err := blueprint.LoadManifest(path)
	if err != nil {
		return nil, err
	}
	o, err := m.Oracle()
	if err != nil {
		return nil, err
	}
	bp, err := m.Build()
	if err != nil {
		return nil, err
	}
	return Compile(bp, o, logger), nil
}

// warnUnused flags registered constructors the fixpoint never reached: no
// handler, middleware, or other constructor asked for their output, so no
// pipeline can ever invoke them.
func warnUnused(bp *blueprint.Blueprint, registry *componentdb.Db, index *constructible.Db, sink *diagnostics.Sink) {
	for _, d := range bp.Declarations() {
		if d.Role != component.Constructor {
			continue
		}
		id, ok := registry.ComponentOfDeclaration(d.Index)
		if !ok || index.Visited(id) {
			continue
		}
		path, scopeLabel := registry.AttributeTo(id)
		sink.Push(&diagnostics.Diagnostic{
			Code:      diagnostics.WarnUnusedComponent,
			Severity:  diagnostics.SeverityWarning,
			Message:   fmt.Sprintf("`%s` is registered but nothing depends on its output", path),
			Component: path,
			Scope:     scopeLabel,
			Type:      registry.OutputOf(id).String(),
			Suggestion: fmt.Sprintf(
				"remove the registration for `%s`, or add a component that consumes `%s`", path, registry.OutputOf(id)),
		})
	}
}
