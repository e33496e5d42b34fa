package evaluator

import (
	"github.com/sansecio/hexpat/ast"
	"github.com/sansecio/hexpat/pattern"
)

// lookup resolves an rvalue path to a value. Patterns are returned unloaded
// so that containers can be passed around.
func (s *state) lookup(r *ast.RValue) (value, error) {
	head := r.Path[0]
	var cur value
	switch head.Name {
	case "this":
		c := s.container(0)
		if c == nil {
			return value{}, errorf(Unknown, r, "'this' used outside of a type")
		}
		cur = patternOf(c)
	case "parent":
		c := s.container(1)
		if c == nil {
			return value{}, errorf(Unknown, r, "'parent' used outside of a nested type")
		}
		cur = patternOf(c)
	case "$":
		cur = uintValue(*s.dollar())
	default:
		v, ok := s.find(head.Name)
		if !ok {
			return value{}, errorf(Unknown, r, "unknown variable '%s'", head.Name)
		}
		cur = v
	}

	for _, part := range r.Path[1:] {
		var err error
		if part.Index != nil {
			cur, err = s.index(cur, part.Index, r)
		} else {
			cur, err = s.field(cur, part.Name, r)
		}
		if err != nil {
			return value{}, err
		}
	}
	return cur, nil
}

// container returns the n-th enclosing type being placed, innermost first.
func (s *state) container(n int) pattern.Pattern {
	for i := len(s.frames) - 1; i >= 0; i-- {
		f := s.frames[i]
		if f.container == nil {
			continue
		}
		if n == 0 {
			return f.container
		}
		n--
	}
	return nil
}

// variable finds a non-pattern variable by name, innermost scope first.
func (s *state) variable(name string) (*variable, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if v, ok := s.frames[i].locals[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// find resolves a name against locals and already placed members, innermost
// scope first.
func (s *state) find(name string) (value, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		f := s.frames[i]
		if v, ok := f.locals[name]; ok {
			return v.val, true
		}
		var members []pattern.Pattern
		switch c := f.container.(type) {
		case *pattern.Struct:
			members = c.Members
		case *pattern.Union:
			members = c.Members
		case nil:
			if i == 0 {
				members = s.roots
			}
		}
		for j := len(members) - 1; j >= 0; j-- {
			if members[j].Common().Name == name {
				return patternOf(members[j]), true
			}
		}
	}
	return value{}, false
}

func (s *state) index(cur value, idx ast.Node, r *ast.RValue) (value, error) {
	i, err := s.evalUint(idx)
	if err != nil {
		return value{}, err
	}
	switch cur.kind {
	case kindString:
		if i >= uint64(len(cur.s)) {
			return value{}, errorf(OutOfBounds, r, "index %d is out of range for a string of length %d", i, len(cur.s))
		}
		return charOf(rune(cur.s[i])), nil
	case kindPattern:
	default:
		return value{}, errorf(TypeMismatch, r, "a %s cannot be indexed", cur.kind)
	}

	switch p := cur.p.(type) {
	case *pattern.StaticArray:
		if i >= p.Count {
			return value{}, errorf(OutOfBounds, r, "index %d is out of range for '%s' with %d entries", i, p.Name, p.Count)
		}
		e := p.Entry(i)
		s.parents[e] = p
		return patternOf(e), nil
	case *pattern.DynamicArray:
		if i >= uint64(len(p.Entries)) {
			return value{}, errorf(OutOfBounds, r, "index %d is out of range for '%s' with %d entries", i, p.Name, len(p.Entries))
		}
		return patternOf(p.Entries[i]), nil
	case *pattern.String, *pattern.WideString:
		str, err := s.load(p, r)
		if err != nil {
			return value{}, err
		}
		runes := []rune(str.s)
		if i >= uint64(len(runes)) {
			return value{}, errorf(OutOfBounds, r, "index %d is out of range for '%s'", i, p.Common().Name)
		}
		return charOf(runes[i]), nil
	}
	return value{}, errorf(TypeMismatch, r, "'%s' is not an array", cur.p.Common().Name)
}

func (s *state) field(cur value, name string, r *ast.RValue) (value, error) {
	if cur.kind != kindPattern {
		return value{}, errorf(TypeMismatch, r, "a %s has no member '%s'", cur.kind, name)
	}
	p := cur.p
	if ptr, ok := p.(*pattern.Pointer); ok && name != "parent" {
		p = ptr.Pointee
	}
	if name == "parent" {
		parent := s.parentOf(p)
		if parent == nil {
			return value{}, errorf(Unknown, r, "'%s' has no parent", p.Common().Name)
		}
		return patternOf(parent), nil
	}

	var (
		m  pattern.Pattern
		ok bool
	)
	switch c := p.(type) {
	case *pattern.Struct:
		m, ok = c.Member(name)
	case *pattern.Union:
		m, ok = c.Member(name)
	case *pattern.Bitfield:
		var f *pattern.BitfieldField
		if f, ok = c.Field(name); ok {
			m = f
		}
	}
	if !ok {
		return value{}, errorf(Unknown, r, "'%s' has no member '%s'", p.Common().Name, name)
	}
	return patternOf(m), nil
}

// parentOf returns the container p was placed in.
func (s *state) parentOf(p pattern.Pattern) pattern.Pattern {
	for i := len(s.frames) - 1; i > 0; i-- {
		if s.frames[i].container != p {
			continue
		}
		for j := i - 1; j > 0; j-- {
			if c := s.frames[j].container; c != nil {
				return c
			}
		}
		return nil
	}
	return s.parents[p]
}

// placing returns the frame of the type whose body `$` belongs to, or nil
// at the top level and inside functions.
func (s *state) placing() *frame {
	for i := len(s.frames) - 1; i > 0; i-- {
		f := s.frames[i]
		if f.function {
			return nil
		}
		if f.container != nil {
			return f
		}
	}
	return nil
}

func (s *state) assign(a *ast.Assignment) error {
	if a.Name == "$" {
		cursor := s.dollar()
		v, err := s.assignedValue(a, uintValue(*cursor))
		if err != nil {
			return err
		}
		off, err := s.toOffset(v, a)
		if err != nil {
			return err
		}
		if f := s.placing(); f != nil && off < f.start {
			return errorf(TypeMismatch, a, "cannot move $ to 0x%X, before the start of the type at 0x%X", off, f.start)
		}
		*cursor = off
		return nil
	}

	local, ok := s.variable(a.Name)
	if !ok {
		if _, ok := s.find(a.Name); ok {
			return errorf(TypeMismatch, a, "cannot assign to pattern '%s'", a.Name)
		}
		return errorf(Unknown, a, "unknown variable '%s'", a.Name)
	}
	v, err := s.assignedValue(a, local.val)
	if err != nil {
		return err
	}
	if v, err = s.convert(v, local.typ, a); err != nil {
		return err
	}
	local.val = v
	return nil
}

// assignedValue computes the new value of a plain or compound assignment.
func (s *state) assignedValue(a *ast.Assignment, old value) (value, error) {
	if a.Op == ast.OpNone {
		return s.eval(a.Value)
	}
	l, err := s.scalar(old, a)
	if err != nil {
		return value{}, err
	}
	r, err := s.evalScalar(a.Value)
	if err != nil {
		return value{}, err
	}
	return operate(&ast.MathematicalExpression{Position: a.Position, Op: a.Op, Left: a.Value, Right: a.Value}, l, r)
}
