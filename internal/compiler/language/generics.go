package language

// FreeParams returns the names of all unassigned generic parameters in t,
// in the order they are first encountered during a left-to-right traversal.
func FreeParams(t Type) []string {
	var names []string
	seen := make(map[string]bool)
	collectFreeParams(t, &names, seen)
	return names
}

func collectFreeParams(t Type, names *[]string, seen map[string]bool) {
	switch typ := t.(type) {
	case *GenericParam:
		if !seen[typ.Name] {
			seen[typ.Name] = true
			*names = append(*names, typ.Name)
		}
	case *NamedType:
		for _, a := range typ.Args {
			collectFreeParams(a, names, seen)
		}
	case *RefType:
		collectFreeParams(typ.Elem, names, seen)
	case *ResultType:
		collectFreeParams(typ.Ok, names, seen)
		collectFreeParams(typ.Err, names, seen)
	}
}

// IsConcrete reports whether t contains no unassigned generic parameters.
func IsConcrete(t Type) bool {
	return len(FreeParams(t)) == 0
}

// Substitute replaces every generic parameter in t that has an entry in
// bindings with the bound type. Parameters without a binding are left
// untouched. The input type is never mutated.
func Substitute(t Type, bindings map[string]Type) Type {
	switch typ := t.(type) {
	case *GenericParam:
		if bound, ok := bindings[typ.Name]; ok {
			return bound
		}
		return typ
	case *NamedType:
		if len(typ.Args) == 0 {
			return typ
		}
		args := make([]Type, len(typ.Args))
		for i, a := range typ.Args {
			args[i] = Substitute(a, bindings)
		}
		return &NamedType{Path: typ.Path, Args: args}
	case *RefType:
		return &RefType{Elem: Substitute(typ.Elem, bindings), Mutable: typ.Mutable}
	case *ResultType:
		return &ResultType{Ok: Substitute(typ.Ok, bindings), Err: Substitute(typ.Err, bindings)}
	default:
		return t
	}
}

// MatchTemplate checks whether concrete is an instance of template.
//
// The match is structural: named types must agree on path and arity, and each
// generic parameter in the template binds to the concrete sub-type at the
// same position. A parameter that occurs more than once must bind to equal
// types everywhere it appears. Returns the bindings on success.
func MatchTemplate(template, concrete Type) (map[string]Type, bool) {
	bindings := make(map[string]Type)
	if !matchTemplate(template, concrete, bindings) {
		return nil, false
	}
	return bindings, true
}

func matchTemplate(template, concrete Type, bindings map[string]Type) bool {
	switch tmpl := template.(type) {
	case *GenericParam:
		if prev, ok := bindings[tmpl.Name]; ok {
			return prev.Equals(concrete)
		}
		bindings[tmpl.Name] = concrete
		return true
	case *NamedType:
		c, ok := concrete.(*NamedType)
		if !ok || tmpl.Path != c.Path || len(tmpl.Args) != len(c.Args) {
			return false
		}
		for i, a := range tmpl.Args {
			if !matchTemplate(a, c.Args[i], bindings) {
				return false
			}
		}
		return true
	case *RefType:
		c, ok := concrete.(*RefType)
		if !ok || tmpl.Mutable != c.Mutable {
			return false
		}
		return matchTemplate(tmpl.Elem, c.Elem, bindings)
	case *ResultType:
		c, ok := concrete.(*ResultType)
		if !ok {
			return false
		}
		return matchTemplate(tmpl.Ok, c.Ok, bindings) && matchTemplate(tmpl.Err, c.Err, bindings)
	default:
		return false
	}
}

// EquivalenceMapping computes a renaming of a's generic parameters into b's.
//
// Both types are traversed in lockstep, assigning each side's free parameters
// a canonical positional index in the order encountered. The two types are
// equivalent iff their shapes match modulo that index renaming. On success
// the returned map translates a's parameter names into b's.
func EquivalenceMapping(a, b Type) (map[string]string, bool) {
	mapping := make(map[string]string)
	reverse := make(map[string]string)
	if !equivalent(a, b, mapping, reverse) {
		return nil, false
	}
	return mapping, true
}

func equivalent(a, b Type, mapping, reverse map[string]string) bool {
	switch at := a.(type) {
	case *GenericParam:
		bt, ok := b.(*GenericParam)
		if !ok {
			return false
		}
		if prev, seen := mapping[at.Name]; seen {
			return prev == bt.Name
		}
		if prev, seen := reverse[bt.Name]; seen {
			return prev == at.Name
		}
		mapping[at.Name] = bt.Name
		reverse[bt.Name] = at.Name
		return true
	case *NamedType:
		bt, ok := b.(*NamedType)
		if !ok || at.Path != bt.Path || len(at.Args) != len(bt.Args) {
			return false
		}
		for i, arg := range at.Args {
			if !equivalent(arg, bt.Args[i], mapping, reverse) {
				return false
			}
		}
		return true
	case *RefType:
		bt, ok := b.(*RefType)
		if !ok || at.Mutable != bt.Mutable {
			return false
		}
		return equivalent(at.Elem, bt.Elem, mapping, reverse)
	case *ResultType:
		bt, ok := b.(*ResultType)
		if !ok {
			return false
		}
		return equivalent(at.Ok, bt.Ok, mapping, reverse) &&
			equivalent(at.Err, bt.Err, mapping, reverse)
	default:
		return false
	}
}
