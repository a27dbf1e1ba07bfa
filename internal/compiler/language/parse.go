package language

import (
	"fmt"
	"strings"
)

// ParseType parses the textual type syntax used by blueprint manifests:
//
//	app.Logger
//	app.Pool<app.Conn>
//	&app.Logger
//	&mut app.Session
//	Result<app.User, app.AuthError>
//	$T                  (an unassigned generic parameter)
//	vireo.Next<$S>
//	unit
func ParseType(s string) (Type, error) {
	p := &typeParser{input: s}
	t, err := p.parse()
	if err != nil {
		return nil, err
	}
	p.skipSpaces()
	if p.pos != len(p.input) {
		return nil, fmt.Errorf("unexpected trailing input at %d in %q", p.pos, s)
	}
	return t, nil
}

// MustParseType is ParseType for statically known inputs; it panics on error.
func MustParseType(s string) Type {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}

type typeParser struct {
	input string
	pos   int
}

func (p *typeParser) parse() (Type, error) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return nil, fmt.Errorf("unexpected end of input in %q", p.input)
	}

	if p.input[p.pos] == '&' {
		p.pos++
		mutable := false
		if p.hasWord("mut") {
			p.pos += len("mut")
			mutable = true
		}
		elem, err := p.parse()
		if err != nil {
			return nil, err
		}
		return &RefType{Elem: elem, Mutable: mutable}, nil
	}

	if p.input[p.pos] == '$' {
		p.pos++
		name := p.ident()
		if name == "" {
			return nil, fmt.Errorf("expected generic parameter name at %d in %q", p.pos, p.input)
		}
		return &GenericParam{Name: name}, nil
	}

	path := p.ident()
	if path == "" {
		return nil, fmt.Errorf("expected type path at %d in %q", p.pos, p.input)
	}

	var args []Type
	p.skipSpaces()
	if p.pos < len(p.input) && p.input[p.pos] == '<' {
		p.pos++
		for {
			arg, err := p.parse()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			p.skipSpaces()
			if p.pos >= len(p.input) {
				return nil, fmt.Errorf("unterminated generic argument list in %q", p.input)
			}
			if p.input[p.pos] == ',' {
				p.pos++
				continue
			}
			if p.input[p.pos] == '>' {
				p.pos++
				break
			}
			return nil, fmt.Errorf("unexpected %q at %d in %q", p.input[p.pos], p.pos, p.input)
		}
	}

	if path == "Result" {
		if len(args) != 2 {
			return nil, fmt.Errorf("Result takes exactly two arguments, got %d in %q", len(args), p.input)
		}
		return &ResultType{Ok: args[0], Err: args[1]}, nil
	}
	return &NamedType{Path: path, Args: args}, nil
}

func (p *typeParser) skipSpaces() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) hasWord(word string) bool {
	rest := p.input[p.pos:]
	return strings.HasPrefix(rest, word) &&
		(len(rest) == len(word) || !isIdentChar(rest[len(word)]))
}

func (p *typeParser) ident() string {
	start := p.pos
	for p.pos < len(p.input) && isIdentChar(p.input[p.pos]) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func isIdentChar(c byte) bool {
	return c == '.' || c == '_' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
