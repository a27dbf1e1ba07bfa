package blueprint

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/vireo-lang/vireo/internal/compiler/component"
	"github.com/vireo-lang/vireo/internal/compiler/language"
	"github.com/vireo-lang/vireo/internal/compiler/oracle"
)

// Manifest is the on-disk description of an application: the resolved
// callable signatures (the oracle's answers) and the blueprint registrations.
type Manifest struct {
	Callables    []CallableManifest   `mapstructure:"callables"`
	Capabilities []CapabilityManifest `mapstructure:"capabilities"`
	Blueprint    GroupManifest        `mapstructure:"blueprint"`
}

// CallableManifest is a resolved callable signature.
type CallableManifest struct {
	Path   string   `mapstructure:"path"`
	Inputs []string `mapstructure:"inputs"`
	Output string   `mapstructure:"output"`
}

// CapabilityManifest grants capabilities to a type.
type CapabilityManifest struct {
	Type       string   `mapstructure:"type"`
	Implements []string `mapstructure:"implements"`
}

// ConstructorManifest registers a constructor.
type ConstructorManifest struct {
	Path         string `mapstructure:"path"`
	Lifecycle    string `mapstructure:"lifecycle"`
	Cloning      string `mapstructure:"cloning"`
	ErrorHandler string `mapstructure:"error_handler"`
}

// PrebuiltManifest registers a caller-supplied value. Lifecycle defaults to
// singleton: most prebuilt state outlives individual requests.
type PrebuiltManifest struct {
	Type      string `mapstructure:"type"`
	Lifecycle string `mapstructure:"lifecycle"`
	Cloning   string `mapstructure:"cloning"`
}

// RouteManifest registers a request handler.
type RouteManifest struct {
	Method       string `mapstructure:"method"`
	Path         string `mapstructure:"path"`
	Handler      string `mapstructure:"handler"`
	ErrorHandler string `mapstructure:"error_handler"`
}

// GroupManifest is one node of the route-group tree.
type GroupManifest struct {
	Label          string                `mapstructure:"label"`
	Constructors   []ConstructorManifest `mapstructure:"constructors"`
	Prebuilt       []PrebuiltManifest    `mapstructure:"prebuilt"`
	Wrap           []string              `mapstructure:"wrap"`
	PreProcess     []string              `mapstructure:"pre_process"`
	PostProcess    []string              `mapstructure:"post_process"`
	ErrorObservers []string              `mapstructure:"error_observers"`
	Routes         []RouteManifest       `mapstructure:"routes"`
	Groups         []GroupManifest       `mapstructure:"groups"`
}

// LoadManifest reads a YAML manifest from the given path.
func LoadManifest(path string) (*Manifest, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := v.Unmarshal(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// Oracle builds a static type oracle from the manifest's callable and
// capability sections.
func (m *Manifest) Oracle() (*oracle.StaticOracle, error) {
	o := oracle.NewStaticOracle()
	for _, c := range m.Callables {
		inputs := make([]language.Type, len(c.Inputs))
		for i, in := range c.Inputs {
			t, err := language.ParseType(in)
			if err != nil {
				return nil, fmt.Errorf("callable %s: input %d: %w", c.Path, i, err)
			}
			inputs[i] = t
		}
		var output language.Type
		if c.Output != "" && c.Output != "unit" {
			t, err := language.ParseType(c.Output)
			if err != nil {
				return nil, fmt.Errorf("callable %s: output: %w", c.Path, err)
			}
			output = t
		}
		o.RegisterCallable(&oracle.Signature{Path: c.Path, Inputs: inputs, Output: output})
	}
	for _, cap := range m.Capabilities {
		t, err := language.ParseType(cap.Type)
		if err != nil {
			return nil, fmt.Errorf("capability for %s: %w", cap.Type, err)
		}
		for _, name := range cap.Implements {
			o.Grant(t, name)
		}
	}
	return o, nil
}

// Build turns the manifest's blueprint section into a Blueprint.
func (m *Manifest) Build() (*Blueprint, error) {
	bp := New()
	if err := buildGroup(bp.Root(), &m.Blueprint); err != nil {
		return nil, err
	}
	return bp, nil
}

func buildGroup(g *Group, gm *GroupManifest) error {
	for _, c := range gm.Constructors {
		lc, err := parseLifecycle(c.Lifecycle)
		if err != nil {
			return fmt.Errorf("constructor %s: %w", c.Path, err)
		}
		cloning, err := parseCloning(c.Cloning)
		if err != nil {
			return fmt.Errorf("constructor %s: %w", c.Path, err)
		}
		d := g.Constructor(c.Path, lc, cloning)
		if c.ErrorHandler != "" {
			g.ErrorHandlerFor(d, c.ErrorHandler)
		}
	}
	for _, p := range gm.Prebuilt {
		t, err := language.ParseType(p.Type)
		if err != nil {
			return fmt.Errorf("prebuilt %s: %w", p.Type, err)
		}
		lc := component.Singleton
		if p.Lifecycle != "" {
			lc, err = parseLifecycle(p.Lifecycle)
			if err != nil {
				return fmt.Errorf("prebuilt %s: %w", p.Type, err)
			}
		}
		cloning, err := parseCloning(p.Cloning)
		if err != nil {
			return fmt.Errorf("prebuilt %s: %w", p.Type, err)
		}
		g.Prebuilt(t, lc, cloning)
	}
	for _, path := range gm.Wrap {
		g.Wrap(path)
	}
	for _, path := range gm.PreProcess {
		g.PreProcess(path)
	}
	for _, path := range gm.PostProcess {
		g.PostProcess(path)
	}
	for _, path := range gm.ErrorObservers {
		g.ErrorObserver(path)
	}
	for _, r := range gm.Routes {
		d := g.Route(r.Method, r.Path, r.Handler)
		if r.ErrorHandler != "" {
			g.ErrorHandlerFor(d, r.ErrorHandler)
		}
	}
	for i := range gm.Groups {
		child := &gm.Groups[i]
		label := child.Label
		if label == "" {
			label = fmt.Sprintf("group %d", i)
		}
		if err := buildGroup(g.Nest(label), child); err != nil {
			return err
		}
	}
	return nil
}

func parseLifecycle(s string) (component.Lifecycle, error) {
	switch s {
	case "singleton":
		return component.Singleton, nil
	case "request-scoped", "":
		return component.RequestScoped, nil
	case "transient":
		return component.Transient, nil
	default:
		return 0, fmt.Errorf("unknown lifecycle %q", s)
	}
}

func parseCloning(s string) (component.CloningStrategy, error) {
	switch s {
	case "never-clone", "":
		return component.NeverClone, nil
	case "clone-if-necessary":
		return component.CloneIfNecessary, nil
	default:
		return 0, fmt.Errorf("unknown cloning strategy %q", s)
	}
}
