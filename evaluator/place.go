package evaluator

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/sansecio/hexpat/ast"
	"github.com/sansecio/hexpat/pattern"
)

// resolved is a type declaration with aliases and endianness overrides
// followed down to its body.
type resolved struct {
	body ast.Node
	name string
	// order is the byte order in effect for the body.
	order binary.ByteOrder
	// explicit is set when a declaration in the chain chose the byte order.
	explicit bool
	// attrs holds the attribute lists of the chain, innermost first.
	attrs [][]*ast.Attribute
}

func (s *state) resolve(decl *ast.TypeDecl, order binary.ByteOrder) (resolved, error) {
	r := resolved{order: order}
	for t := decl; ; {
		if r.name == "" {
			r.name = t.Name
		}
		if t.Endian != nil {
			r.order, r.explicit = t.Endian, true
		}
		if len(t.Attributes) > 0 {
			r.attrs = append([][]*ast.Attribute{t.Attributes}, r.attrs...)
		}
		if t.IsForward() {
			return r, errorf(BadForwardDecl, decl, "type '%s' is declared but never defined", t.DisplayName())
		}
		next, ok := t.Type.(*ast.TypeDecl)
		if !ok {
			r.body = t.Type
			break
		}
		t = next
	}
	if r.name == "" {
		if bt, ok := r.body.(*ast.BuiltinType); ok {
			r.name = bt.Type.String()
		}
	}
	return r, nil
}

// placeDecl places a variable, array or pointer declaration into the
// innermost frame. Members without an explicit placement advance the cursor.
// Inside functions and type bodies, placed declarations become locals.
func (s *state) placeDecl(node ast.Node, order binary.ByteOrder) error {
	var (
		name      string
		placement ast.Node
		attrs     []*ast.Attribute
		doc       string
	)
	switch d := node.(type) {
	case *ast.VariableDecl:
		name, placement, attrs, doc = d.Name, d.Placement, d.Attributes, d.Doc
	case *ast.ArrayVariableDecl:
		name, placement, attrs, doc = d.Name, d.Placement, d.Attributes, d.Doc
	case *ast.PointerVariableDecl:
		name, placement, attrs, doc = d.Name, d.Placement, d.Attributes, d.Doc
	default:
		return errorf(TypeMismatch, node, "cannot place %T", node)
	}

	f := s.top()
	offset := *s.dollar()
	if placement != nil {
		v, err := s.evalUint(placement)
		if err != nil {
			return err
		}
		offset = v
	}

	saved := s.cursor
	var p pattern.Pattern
	var err error
	switch d := node.(type) {
	case *ast.VariableDecl:
		p, err = s.placeType(d.Type, d.Name, offset, order, d)
	case *ast.ArrayVariableDecl:
		p, err = s.placeArray(d, offset, order)
	case *ast.PointerVariableDecl:
		p, err = s.placePointer(d, offset, order)
	}
	if err != nil {
		return locate(err, node)
	}
	if err := s.decorate(p, attrs, doc, node); err != nil {
		return err
	}

	end := p.Common().End()
	switch {
	case f.function, placement != nil && f.container != nil:
		// Placed members of a type stay outside its span, so they are
		// kept as locals of the body.
		s.cursor = saved
		p.Common().Local = true
		f.locals[name] = &variable{val: patternOf(p)}
		return nil
	default:
		s.cursor = end
		f.furthest = max(f.furthest, end)
	}
	s.add(f, p)
	return nil
}

// placeType creates the pattern for one value of decl at offset.
func (s *state) placeType(decl *ast.TypeDecl, name string, offset uint64, order binary.ByteOrder, node ast.Node) (pattern.Pattern, error) {
	t, err := s.resolve(decl, order)
	if err != nil {
		return nil, err
	}
	if err := s.enter(node); err != nil {
		return nil, err
	}
	defer s.leave()
	if err := s.count(node, 1); err != nil {
		return nil, err
	}

	var p pattern.Pattern
	switch body := t.body.(type) {
	case *ast.BuiltinType:
		p, err = s.placeBuiltin(body.Type, offset, node)
	case *ast.Struct:
		p, err = s.placeStruct(body, offset, t.order, node)
	case *ast.Union:
		p, err = s.placeUnion(body, offset, t.order, node)
	case *ast.Enum:
		p, err = s.placeEnum(body, offset, t.order, node)
	case *ast.Bitfield:
		p, err = s.placeBitfield(body, offset, t.order, node)
	default:
		err = errorf(TypeMismatch, node, "cannot place a value of type '%s'", t.name)
	}
	if err != nil {
		return nil, err
	}

	b := p.Common()
	b.Name, b.TypeName, b.Endian = name, t.name, t.order
	for _, attrs := range t.attrs {
		if err := s.decorate(p, attrs, "", node); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (s *state) placeBuiltin(t ast.ValueType, offset uint64, node ast.Node) (pattern.Pattern, error) {
	size := t.Size()
	if size == 0 {
		return nil, errorf(TypeMismatch, node, "cannot place a value of type '%s'", t)
	}
	if err := s.checkBounds(node, offset, size); err != nil {
		return nil, err
	}
	base := pattern.NewBase(offset, size)
	switch {
	case t.IsUnsigned():
		return &pattern.Unsigned{Base: base}, nil
	case t.IsSigned():
		return &pattern.Signed{Base: base}, nil
	case t.IsFloat():
		return &pattern.Float{Base: base}, nil
	case t == ast.Boolean:
		return &pattern.Boolean{Base: base}, nil
	case t == ast.Character:
		return &pattern.Character{Base: base}, nil
	}
	return &pattern.WideCharacter{Base: base}, nil
}

func (s *state) placeStruct(st *ast.Struct, offset uint64, order binary.ByteOrder, node ast.Node) (pattern.Pattern, error) {
	p := &pattern.Struct{Base: pattern.NewBase(offset, 0)}
	saved := s.cursor
	defer func() { s.cursor = saved }()
	s.cursor = offset

	f := &frame{container: p, start: offset, furthest: offset}
	s.push(f)
	defer s.pop()

	if _, err := s.structBody(st, order, node); err != nil {
		return nil, err
	}
	if end := max(s.cursor, f.furthest); end > offset {
		p.Size = end - offset
	}
	if err := s.checkBounds(node, offset, p.Size); err != nil {
		return nil, err
	}
	return p, nil
}

// structBody places inherited members followed by the struct's own members.
func (s *state) structBody(st *ast.Struct, order binary.ByteOrder, node ast.Node) (ast.ControlFlow, error) {
	for _, inh := range st.Inherits {
		t, err := s.resolve(inh, order)
		if err != nil {
			return ast.FlowNone, err
		}
		parent, ok := t.body.(*ast.Struct)
		if !ok {
			return ast.FlowNone, errorf(TypeMismatch, node, "'%s' can only inherit from structs", t.name)
		}
		if err := s.enter(node); err != nil {
			return ast.FlowNone, err
		}
		flow, err := s.structBody(parent, t.order, node)
		s.leave()
		if err != nil || flow != ast.FlowNone {
			return flow, err
		}
	}
	return s.members(st.Members, order)
}

func (s *state) placeUnion(u *ast.Union, offset uint64, order binary.ByteOrder, node ast.Node) (pattern.Pattern, error) {
	p := &pattern.Union{Base: pattern.NewBase(offset, 0)}
	saved := s.cursor
	defer func() { s.cursor = saved }()
	s.cursor = offset

	f := &frame{container: p, union: true, start: offset, furthest: offset}
	s.push(f)
	defer s.pop()

	if _, err := s.members(u.Members, order); err != nil {
		return nil, err
	}
	p.Size = f.furthest - offset
	return p, nil
}

// members evaluates the body of a struct or union in the innermost frame.
func (s *state) members(nodes []ast.Node, order binary.ByteOrder) (ast.ControlFlow, error) {
	f := s.top()
	for _, node := range nodes {
		if f.union {
			s.cursor = f.start
		}
		flow, err := s.member(node, order)
		if err != nil {
			return flow, locate(err, node)
		}
		if flow != ast.FlowNone {
			return flow, nil
		}
	}
	return ast.FlowNone, nil
}

func (s *state) member(node ast.Node, order binary.ByteOrder) (ast.ControlFlow, error) {
	switch n := node.(type) {
	case *ast.VariableDecl:
		if n.Init != nil {
			return ast.FlowNone, s.declareLocal(n)
		}
		return ast.FlowNone, s.placeDecl(n, order)
	case *ast.ArrayVariableDecl, *ast.PointerVariableDecl:
		return ast.FlowNone, s.placeDecl(n, order)
	case *ast.MultiVariableDecl:
		for _, v := range n.Variables {
			if err := s.placeDecl(v, order); err != nil {
				return ast.FlowNone, err
			}
		}
		return ast.FlowNone, nil
	case *ast.ConditionalStatement:
		ok, err := s.evalBool(n.Cond)
		if err != nil {
			return ast.FlowNone, err
		}
		if ok {
			return s.members(n.True, order)
		}
		return s.members(n.False, order)
	case *ast.ControlFlowStatement:
		return n.Kind, nil
	case *ast.Assignment:
		return ast.FlowNone, s.assign(n)
	case *ast.FunctionCall:
		_, err := s.call(n)
		return ast.FlowNone, err
	}
	return ast.FlowNone, errorf(TypeMismatch, node, "unexpected %T in type body", node)
}

func (s *state) placeEnum(en *ast.Enum, offset uint64, order binary.ByteOrder, node ast.Node) (pattern.Pattern, error) {
	t, err := s.resolve(en.Underlying, order)
	if err != nil {
		return nil, err
	}
	bt, ok := t.body.(*ast.BuiltinType)
	if !ok || !bt.Type.IsInteger() {
		return nil, errorf(TypeMismatch, node, "enum underlying type must be an integer type")
	}
	size := bt.Type.Size()
	if err := s.checkBounds(node, offset, size); err != nil {
		return nil, err
	}
	entries, err := s.enumEntries(en, bt.Type)
	if err != nil {
		return nil, err
	}
	p := &pattern.Enum{Base: pattern.NewBase(offset, size), Entries: entries}
	return p, nil
}

// enumEntries evaluates the enumerator values of en once. Values are stored
// as the raw unsigned bits of the underlying type.
func (s *state) enumEntries(en *ast.Enum, underlying ast.ValueType) ([]pattern.EnumEntry, error) {
	if entries, ok := s.enums[en]; ok {
		return entries, nil
	}
	bits := uint(underlying.Size() * 8)
	next := new(big.Int)
	entries := make([]pattern.EnumEntry, 0, len(en.Entries))
	for _, e := range en.Entries {
		v := next
		if e.Value != nil {
			i, err := s.evalInt(e.Value)
			if err != nil {
				return nil, err
			}
			v = i
		}
		entries = append(entries, pattern.EnumEntry{Name: e.Name, Value: wrapUnsigned(v, bits)})
		next = new(big.Int).Add(v, one)
	}
	s.enums[en] = entries
	return entries, nil
}

// enumerator returns the raw value of the entry called name of the enum decl
// resolves to.
func (s *state) enumerator(decl *ast.TypeDecl, name string, node ast.Node) (value, error) {
	t, err := s.resolve(decl, s.cfg.DefaultEndian)
	if err != nil {
		return value{}, err
	}
	en, ok := t.body.(*ast.Enum)
	if !ok {
		return value{}, errorf(Unknown, node, "'%s' is not an enum", t.name)
	}
	ut, err := s.resolve(en.Underlying, t.order)
	if err != nil {
		return value{}, err
	}
	bt, ok := ut.body.(*ast.BuiltinType)
	if !ok || !bt.Type.IsInteger() {
		return value{}, errorf(TypeMismatch, node, "enum underlying type must be an integer type")
	}
	entries, err := s.enumEntries(en, bt.Type)
	if err != nil {
		return value{}, err
	}
	for _, e := range entries {
		if e.Name == name {
			return unsignedOf(e.Value), nil
		}
	}
	return value{}, errorf(Unknown, node, "enum '%s' has no entry '%s'", t.name, name)
}

func (s *state) placeBitfield(bf *ast.Bitfield, offset uint64, order binary.ByteOrder, node ast.Node) (pattern.Pattern, error) {
	sizes := make([]uint64, len(bf.Fields))
	var total uint64
	for i, field := range bf.Fields {
		n, err := s.evalUint(field.Size)
		if err != nil {
			return nil, locate(err, field)
		}
		if n > 128 {
			return nil, errorf(TypeMismatch, field, "bitfield field '%s' is wider than 128 bits", field.Name)
		}
		sizes[i] = n
		total += n
	}
	containerSize := (total + 7) / 8
	if err := s.checkBounds(node, offset, containerSize); err != nil {
		return nil, err
	}

	p := &pattern.Bitfield{Base: pattern.NewBase(offset, containerSize)}
	var bit uint64
	for i, field := range bf.Fields {
		size := sizes[i]
		if field.Padding {
			bit += size
			continue
		}
		if err := s.count(field, 1); err != nil {
			return nil, err
		}
		f := &pattern.BitfieldField{
			Base:            pattern.NewBase(offset+bit/8, (bit%8+size+7)/8),
			BitOffset:       bit,
			BitSize:         size,
			ContainerOffset: offset,
			ContainerSize:   containerSize,
		}
		f.Name, f.TypeName, f.Endian = field.Name, "bits", order
		if field.Type != nil {
			if err := s.typeField(f, field.Type, order, field); err != nil {
				return nil, err
			}
		}
		if err := s.decorate(f, field.Attributes, field.Doc, field); err != nil {
			return nil, err
		}
		s.parents[f] = p
		p.Fields = append(p.Fields, f)
		bit += size
	}
	return p, nil
}

// typeField sets the value kind of a typed bitfield field.
func (s *state) typeField(f *pattern.BitfieldField, decl *ast.TypeDecl, order binary.ByteOrder, node ast.Node) error {
	t, err := s.resolve(decl, order)
	if err != nil {
		return err
	}
	f.TypeName = t.name
	switch body := t.body.(type) {
	case *ast.BuiltinType:
		switch {
		case body.Type == ast.Boolean:
			f.Kind = pattern.FieldBoolean
		case body.Type.IsSigned():
			f.Kind = pattern.FieldSigned
		case body.Type.IsUnsigned():
			f.Kind = pattern.FieldUnsigned
		default:
			return errorf(TypeMismatch, node, "bitfield field cannot have type '%s'", t.name)
		}
	case *ast.Enum:
		ut, err := s.resolve(body.Underlying, order)
		if err != nil {
			return err
		}
		bt, ok := ut.body.(*ast.BuiltinType)
		if !ok || !bt.Type.IsInteger() {
			return errorf(TypeMismatch, node, "enum underlying type must be an integer type")
		}
		entries, err := s.enumEntries(body, bt.Type)
		if err != nil {
			return err
		}
		f.Kind, f.Entries = pattern.FieldEnum, entries
	default:
		return errorf(TypeMismatch, node, "bitfield field cannot have type '%s'", t.name)
	}
	return nil
}

func (s *state) placePointer(d *ast.PointerVariableDecl, offset uint64, order binary.ByteOrder) (pattern.Pattern, error) {
	st, err := s.resolve(d.SizeType, order)
	if err != nil {
		return nil, err
	}
	bt, ok := st.body.(*ast.BuiltinType)
	if !ok || !bt.Type.IsUnsigned() {
		return nil, errorf(TypeMismatch, d, "pointer size type must be an unsigned integer type")
	}
	size := bt.Type.Size()
	if err := s.checkBounds(d, offset, size); err != nil {
		return nil, err
	}
	if err := s.count(d, 1); err != nil {
		return nil, err
	}

	p := &pattern.Pointer{Base: pattern.NewBase(offset, size)}
	p.Name, p.Endian = d.Name, st.order
	addr, err := p.Address(s.reader)
	if err != nil && s.dryRun {
		addr, err = 0, nil
	}
	if err != nil {
		return nil, outOfBounds(d, offset, "reading pointer '%s': %v", d.Name, err)
	}

	target := addr
	if attr, ok := d.Attribute("pointer_base"); ok {
		v, err := s.callNamed(attr.Arg(0), []value{uintValue(addr)}, attr)
		if err != nil {
			return nil, err
		}
		if target, err = s.toOffset(v, attr); err != nil {
			return nil, err
		}
		p.PointerBase = int64(target - addr)
	}

	pointee, err := s.placeType(d.Type, "*"+d.Name, target, order, d)
	if err != nil {
		return nil, err
	}
	p.Pointee = pointee
	p.TypeName = pointee.Common().TypeName + "*"
	s.parents[pointee] = p
	return p, nil
}

// elementKind decides how an array of t is represented.
type elementKind uint8

const (
	elemDynamic elementKind = iota
	elemStatic
	elemChar
	elemWideChar
	elemPadding
)

func arrayKind(body ast.Node) elementKind {
	switch b := body.(type) {
	case *ast.BuiltinType:
		switch b.Type {
		case ast.Character:
			return elemChar
		case ast.Character16:
			return elemWideChar
		case ast.Padding:
			return elemPadding
		}
		return elemStatic
	case *ast.Enum, *ast.Bitfield:
		return elemStatic
	}
	return elemDynamic
}

func (s *state) placeArray(d *ast.ArrayVariableDecl, offset uint64, order binary.ByteOrder) (pattern.Pattern, error) {
	t, err := s.resolve(d.Type, order)
	if err != nil {
		return nil, err
	}
	if err := s.count(d, 1); err != nil {
		return nil, err
	}
	kind := arrayKind(t.body)

	if kind == elemPadding {
		n, err := s.evalUint(d.Size)
		if err != nil {
			return nil, err
		}
		if err := s.checkBounds(d, offset, n); err != nil {
			return nil, err
		}
		p := &pattern.Padding{Base: pattern.NewBase(offset, n)}
		p.Name, p.TypeName = d.Name, "padding"
		return p, nil
	}

	var entries []pattern.Pattern
	switch {
	case d.While:
		entries, err = s.whileEntries(d, offset, t.order)
	case d.Size == nil:
		entries, err = s.terminatedEntries(d, offset, t.order)
	default:
		var n uint64
		if n, err = s.evalUint(d.Size); err != nil {
			return nil, err
		}
		if n > s.cfg.ArrayLimit {
			return nil, errorf(Limit, d, "array '%s' has %d entries, more than the limit of %d", d.Name, n, s.cfg.ArrayLimit)
		}
		if kind != elemDynamic {
			return s.fixedArray(d, t, kind, offset, n)
		}
		entries, err = s.countedEntries(d, offset, t.order, n)
	}
	if err != nil {
		return nil, err
	}
	return s.arrayOf(d, t, kind, offset, entries)
}

// fixedArray builds a sized array of fixed-size elements without placing
// every entry.
func (s *state) fixedArray(d *ast.ArrayVariableDecl, t resolved, kind elementKind, offset, n uint64) (pattern.Pattern, error) {
	switch kind {
	case elemChar, elemWideChar:
		width := uint64(1)
		if kind == elemWideChar {
			width = 2
		}
		return s.placeString(d, t, kind, offset, n*width)
	}
	if n == 0 {
		p := &pattern.DynamicArray{Base: pattern.NewBase(offset, 0)}
		p.Name, p.TypeName = d.Name, fmt.Sprintf("%s[0]", t.name)
		return p, nil
	}
	tmpl, err := s.placeType(d.Type, "", offset, t.order, d)
	if err != nil {
		return nil, err
	}
	stride := tmpl.Common().Size
	if err := s.checkBounds(d, offset, stride*n); err != nil {
		return nil, err
	}
	p := &pattern.StaticArray{Base: pattern.NewBase(offset, stride*n), Template: tmpl, Count: n}
	p.Name, p.TypeName = d.Name, fmt.Sprintf("%s[%d]", t.name, n)
	return p, nil
}

func (s *state) placeString(d *ast.ArrayVariableDecl, t resolved, kind elementKind, offset, size uint64) (pattern.Pattern, error) {
	if err := s.checkBounds(d, offset, size); err != nil {
		return nil, err
	}
	base := pattern.NewBase(offset, size)
	base.Name, base.TypeName, base.Endian = d.Name, fmt.Sprintf("%s[%d]", t.name, size/max(1, t.width())), t.order
	if kind == elemWideChar {
		return &pattern.WideString{Base: base, DisplayLimit: s.cfg.StringDisplayLimit}, nil
	}
	return &pattern.String{Base: base, DisplayLimit: s.cfg.StringDisplayLimit}, nil
}

func (t resolved) width() uint64 {
	if bt, ok := t.body.(*ast.BuiltinType); ok {
		return bt.Type.Size()
	}
	return 0
}

// arrayOf wraps individually placed entries. Character entries collapse into
// a string and fixed-size entries into a static array.
func (s *state) arrayOf(d *ast.ArrayVariableDecl, t resolved, kind elementKind, offset uint64, entries []pattern.Pattern) (pattern.Pattern, error) {
	var size uint64
	if len(entries) > 0 {
		size = entries[len(entries)-1].Common().End() - offset
	}
	n := uint64(len(entries))
	switch {
	case kind == elemChar || kind == elemWideChar:
		return s.placeString(d, t, kind, offset, size)
	case kind == elemStatic && n > 0:
		p := &pattern.StaticArray{Base: pattern.NewBase(offset, size), Template: entries[0], Count: n}
		p.Name, p.TypeName = d.Name, fmt.Sprintf("%s[%d]", t.name, n)
		return p, nil
	}
	p := &pattern.DynamicArray{Base: pattern.NewBase(offset, size), Entries: entries}
	p.Name, p.TypeName = d.Name, fmt.Sprintf("%s[%d]", t.name, n)
	for i, e := range entries {
		e.Common().Name = fmt.Sprintf("[%d]", i)
		s.parents[e] = p
	}
	return p, nil
}

func (s *state) countedEntries(d *ast.ArrayVariableDecl, offset uint64, order binary.ByteOrder, n uint64) ([]pattern.Pattern, error) {
	entries := make([]pattern.Pattern, 0, min(n, 1024))
	pos := offset
	for i := range n {
		if err := s.interrupted(d); err != nil {
			return nil, err
		}
		e, err := s.placeType(d.Type, fmt.Sprintf("[%d]", i), pos, order, d)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
		pos = e.Common().End()
	}
	return entries, nil
}

// whileEntries places entries while the array condition holds. The
// condition sees `$` at the next entry. The array ends early at the end of
// the data or when an entry would not fit.
func (s *state) whileEntries(d *ast.ArrayVariableDecl, offset uint64, order binary.ByteOrder) ([]pattern.Pattern, error) {
	cursor := s.dollar()
	saved := *cursor
	defer func() { *cursor = saved }()

	var entries []pattern.Pattern
	pos := offset
	for i := uint64(0); ; i++ {
		if err := s.interrupted(d); err != nil {
			return nil, err
		}
		if i >= s.cfg.ArrayLimit {
			return nil, errorf(Limit, d, "array '%s' exceeded the limit of %d entries", d.Name, s.cfg.ArrayLimit)
		}
		if pos >= s.size {
			break
		}
		*cursor = pos
		ok, err := s.evalBool(d.Size)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		e, err := s.placeType(d.Type, fmt.Sprintf("[%d]", i), pos, order, d)
		if IsKind(err, OutOfBounds) {
			break
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
		if e.Common().Size == 0 {
			break
		}
		pos = e.Common().End()
	}
	return entries, nil
}

// terminatedEntries places entries up to and including the first one whose
// bytes are all zero.
func (s *state) terminatedEntries(d *ast.ArrayVariableDecl, offset uint64, order binary.ByteOrder) ([]pattern.Pattern, error) {
	var entries []pattern.Pattern
	pos := offset
	for i := uint64(0); ; i++ {
		if err := s.interrupted(d); err != nil {
			return nil, err
		}
		if i >= s.cfg.ArrayLimit {
			return nil, errorf(Limit, d, "array '%s' exceeded the limit of %d entries", d.Name, s.cfg.ArrayLimit)
		}
		e, err := s.placeType(d.Type, fmt.Sprintf("[%d]", i), pos, order, d)
		if err != nil {
			var ee *Error
			if errors.As(err, &ee) && ee.Kind == OutOfBounds {
				ee.Message = fmt.Sprintf("no terminator found for array '%s' before the end of the data", d.Name)
			}
			return nil, err
		}
		entries = append(entries, e)
		raw, err := pattern.Bytes(e, s.reader)
		if err != nil {
			return nil, outOfBounds(d, pos, "reading array entry: %v", err)
		}
		if allZero(raw) {
			return entries, nil
		}
		pos = e.Common().End()
	}
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
