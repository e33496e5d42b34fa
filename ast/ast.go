// Package ast defines the Abstract Syntax Tree of the pattern language.
package ast

import (
	"encoding/binary"
	"math/big"
)

// Node is implemented by every AST node.
type Node interface {
	Loc() Location
	Clone() Node
}

// Position is embedded in every node and records where it was parsed.
type Position struct {
	Location Location
}

// Loc returns the source location of the node.
func (p Position) Loc() Location { return p.Location }

// Program is the result of parsing: top-level statements in source order plus
// the named type table.
type Program struct {
	Statements []Node
	Types      map[string]*TypeDecl
	Functions  map[string]*FunctionDefinition
	Pragmas    []Pragma
}

// Pragma is a `#pragma name value` directive.
type Pragma struct {
	Name  string
	Value string
	Loc   Location
}

// Pragma returns the value of the last pragma called name.
func (p *Program) Pragma(name string) (string, bool) {
	for i := len(p.Pragmas) - 1; i >= 0; i-- {
		if p.Pragmas[i].Name == name {
			return p.Pragmas[i].Value, true
		}
	}
	return "", false
}

// Attribute is a `[[name(args)]]` annotation.
type Attribute struct {
	Position
	Name string
	Args []string
}

func (a *Attribute) Clone() Node {
	c := *a
	c.Args = append([]string(nil), a.Args...)
	return &c
}

// Arg returns the i-th argument or "".
func (a *Attribute) Arg(i int) string {
	if i < len(a.Args) {
		return a.Args[i]
	}
	return ""
}

// Attributable is embedded by nodes that accept attributes.
type Attributable struct {
	Attributes []*Attribute
}

// Attribute returns the last attribute called name.
func (a *Attributable) Attribute(name string) (*Attribute, bool) {
	for i := len(a.Attributes) - 1; i >= 0; i-- {
		if a.Attributes[i].Name == name {
			return a.Attributes[i], true
		}
	}
	return nil, false
}

// AddAttribute appends attr.
func (a *Attributable) AddAttribute(attr *Attribute) {
	a.Attributes = append(a.Attributes, attr)
}

func (a Attributable) clone() Attributable {
	if a.Attributes == nil {
		return Attributable{}
	}
	out := make([]*Attribute, len(a.Attributes))
	for i, attr := range a.Attributes {
		out[i] = attr.Clone().(*Attribute)
	}
	return Attributable{Attributes: out}
}

// Literal is a constant in an expression.
type Literal struct {
	Position
	Value Constant
}

func (l *Literal) Clone() Node {
	c := *l
	if l.Value.Int != nil {
		c.Value.Int = new(big.Int).Set(l.Value.Int)
	}
	return &c
}

// PathPart is one step of an rvalue path: a member name or a subscript.
type PathPart struct {
	Name  string
	Index Node
}

// RValue is a reference like `hdr.entries[2].size`, `this`, `parent.x` or `$`.
type RValue struct {
	Position
	Path []PathPart
}

func (r *RValue) Clone() Node {
	c := *r
	c.Path = make([]PathPart, len(r.Path))
	for i, p := range r.Path {
		c.Path[i] = PathPart{Name: p.Name, Index: cloneNode(p.Index)}
	}
	return &c
}

// IsDollar reports whether r is the bare `$` cursor.
func (r *RValue) IsDollar() bool {
	return len(r.Path) == 1 && r.Path[0].Name == "$" && r.Path[0].Index == nil
}

// ScopeResolution references a constant inside a type, e.g. `Color::Red`.
type ScopeResolution struct {
	Position
	Type *TypeDecl
	Name string
}

func (s *ScopeResolution) Clone() Node {
	c := *s
	return &c
}

// MathematicalExpression is a binary operation, or a unary one when Left is nil.
type MathematicalExpression struct {
	Position
	Op    Operator
	Left  Node
	Right Node
}

func (m *MathematicalExpression) Clone() Node {
	return &MathematicalExpression{Position: m.Position, Op: m.Op, Left: cloneNode(m.Left), Right: cloneNode(m.Right)}
}

// TernaryExpression is `cond ? a : b`.
type TernaryExpression struct {
	Position
	Cond  Node
	True  Node
	False Node
}

func (t *TernaryExpression) Clone() Node {
	return &TernaryExpression{Position: t.Position, Cond: cloneNode(t.Cond), True: cloneNode(t.True), False: cloneNode(t.False)}
}

// Cast converts Value to a builtin type, e.g. `u8(x)`.
type Cast struct {
	Position
	Type  *TypeDecl
	Value Node
}

func (c *Cast) Clone() Node {
	return &Cast{Position: c.Position, Type: cloneType(c.Type), Value: cloneNode(c.Value)}
}

// FunctionCall invokes a user or builtin function. Scope is the namespace the
// call appears in; lookup tries it from the innermost namespace outwards.
type FunctionCall struct {
	Position
	Name  string
	Scope []string
	Args  []Node
}

func (f *FunctionCall) Clone() Node {
	return &FunctionCall{Position: f.Position, Name: f.Name, Scope: append([]string(nil), f.Scope...), Args: cloneNodes(f.Args)}
}

// Param is a function parameter. A nil Type means `auto`.
type Param struct {
	Name string
	Type *TypeDecl
}

// FunctionDefinition is `fn name(params) { body }`.
type FunctionDefinition struct {
	Position
	Name   string
	Params []Param
	Body   []Node
}

func (f *FunctionDefinition) Clone() Node {
	c := &FunctionDefinition{Position: f.Position, Name: f.Name, Body: cloneNodes(f.Body)}
	for _, p := range f.Params {
		c.Params = append(c.Params, Param{Name: p.Name, Type: cloneType(p.Type)})
	}
	return c
}

// Assignment is `name = expr` or `name op= expr`; Name may be `$`.
type Assignment struct {
	Position
	Name  string
	Op    Operator
	Value Node
}

func (a *Assignment) Clone() Node {
	return &Assignment{Position: a.Position, Name: a.Name, Op: a.Op, Value: cloneNode(a.Value)}
}

// CompoundStatement groups statements without opening a scope.
type CompoundStatement struct {
	Position
	Statements []Node
}

func (c *CompoundStatement) Clone() Node {
	return &CompoundStatement{Position: c.Position, Statements: cloneNodes(c.Statements)}
}

// ConditionalStatement is `if (cond) { … } else { … }`.
type ConditionalStatement struct {
	Position
	Cond  Node
	True  []Node
	False []Node
}

func (c *ConditionalStatement) Clone() Node {
	return &ConditionalStatement{Position: c.Position, Cond: cloneNode(c.Cond), True: cloneNodes(c.True), False: cloneNodes(c.False)}
}

// WhileStatement is a `while` loop; `for` loops set Post to their step.
type WhileStatement struct {
	Position
	Cond Node
	Body []Node
	Post Node
}

func (w *WhileStatement) Clone() Node {
	return &WhileStatement{Position: w.Position, Cond: cloneNode(w.Cond), Body: cloneNodes(w.Body), Post: cloneNode(w.Post)}
}

// ControlFlow is the kind of a ControlFlowStatement.
type ControlFlow uint8

const (
	FlowNone ControlFlow = iota
	FlowReturn
	FlowBreak
	FlowContinue
)

func (c ControlFlow) String() string {
	switch c {
	case FlowReturn:
		return "return"
	case FlowBreak:
		return "break"
	case FlowContinue:
		return "continue"
	default:
		return "none"
	}
}

// ControlFlowStatement is `return [expr]`, `break` or `continue`.
type ControlFlowStatement struct {
	Position
	Kind  ControlFlow
	Value Node
}

func (c *ControlFlowStatement) Clone() Node {
	return &ControlFlowStatement{Position: c.Position, Kind: c.Kind, Value: cloneNode(c.Value)}
}

// TypeDecl names a type. Named declarations live in Program.Types and are
// shared by every reference; anonymous ones (Name == "") wrap a builtin or add
// an endianness override to another type. A forward declaration has a nil
// Type until Complete is called.
type TypeDecl struct {
	Position
	Attributable
	Name    string
	Type    Node
	Endian  binary.ByteOrder
	Forward bool
}

// Clone returns d itself for named declarations, which are shared.
func (d *TypeDecl) Clone() Node {
	return cloneType(d)
}

// Complete fills in the body of a forward declaration in place.
func (d *TypeDecl) Complete(body Node) {
	d.Type = body
	d.Forward = false
}

// IsForward reports whether d has no body yet.
func (d *TypeDecl) IsForward() bool {
	return d.Forward || d.Type == nil
}

// Builtin returns the builtin type d resolves to, following aliases.
func (d *TypeDecl) Builtin() (ValueType, bool) {
	for t := d; t != nil; {
		switch n := t.Type.(type) {
		case *BuiltinType:
			return n.Type, true
		case *TypeDecl:
			t = n
		default:
			return InvalidType, false
		}
	}
	return InvalidType, false
}

// DisplayName returns the name shown for patterns of this type.
func (d *TypeDecl) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	switch n := d.Type.(type) {
	case *BuiltinType:
		return n.Type.String()
	case *TypeDecl:
		return n.DisplayName()
	}
	return ""
}

// BuiltinType is a builtin value type such as u32.
type BuiltinType struct {
	Position
	Type ValueType
}

func (b *BuiltinType) Clone() Node {
	c := *b
	return &c
}

// Struct is a sequential record. Members of Inherits are placed first.
type Struct struct {
	Position
	Members  []Node
	Inherits []*TypeDecl
}

func (s *Struct) Clone() Node {
	return &Struct{Position: s.Position, Members: cloneNodes(s.Members), Inherits: append([]*TypeDecl(nil), s.Inherits...)}
}

// Union places all members at the same offset.
type Union struct {
	Position
	Members []Node
}

func (u *Union) Clone() Node {
	return &Union{Position: u.Position, Members: cloneNodes(u.Members)}
}

// EnumEntry is one enumerator. A nil Value means previous + 1.
type EnumEntry struct {
	Name  string
	Value Node
}

// Enum maps values of an underlying integer type to names.
type Enum struct {
	Position
	Underlying *TypeDecl
	Entries    []EnumEntry
}

func (e *Enum) Clone() Node {
	c := &Enum{Position: e.Position, Underlying: cloneType(e.Underlying)}
	for _, entry := range e.Entries {
		c.Entries = append(c.Entries, EnumEntry{Name: entry.Name, Value: cloneNode(entry.Value)})
	}
	return c
}

// BitfieldField is `name : bits;` inside a bitfield. Type is nil for plain
// unsigned fields, otherwise bool, a signed builtin or an enum.
type BitfieldField struct {
	Position
	Attributable
	Name    string
	Size    Node
	Type    *TypeDecl
	Padding bool
	Doc     string
}

func (f *BitfieldField) Clone() Node {
	c := *f
	c.Attributable = f.Attributable.clone()
	c.Size = cloneNode(f.Size)
	c.Type = cloneType(f.Type)
	return &c
}

// Bitfield packs fields into consecutive bits.
type Bitfield struct {
	Position
	Fields []*BitfieldField
}

func (b *Bitfield) Clone() Node {
	c := &Bitfield{Position: b.Position}
	for _, f := range b.Fields {
		c.Fields = append(c.Fields, f.Clone().(*BitfieldField))
	}
	return c
}

// Direction marks `in`/`out` variables.
type Direction uint8

const (
	DirNone Direction = iota
	DirIn
	DirOut
)

// VariableDecl declares a single variable. Placement is the `@` expression;
// Init the initializer of a local variable.
type VariableDecl struct {
	Position
	Attributable
	Name      string
	Type      *TypeDecl
	Placement Node
	Init      Node
	Direction Direction
	Doc       string
}

func (v *VariableDecl) Clone() Node {
	c := *v
	c.Attributable = v.Attributable.clone()
	c.Type = cloneType(v.Type)
	c.Placement = cloneNode(v.Placement)
	c.Init = cloneNode(v.Init)
	return &c
}

// ArrayVariableDecl declares `T name[size]`. While is set for
// `[while(cond)]` arrays, a nil Size means an unsized (null-terminated) array.
type ArrayVariableDecl struct {
	Position
	Attributable
	Name      string
	Type      *TypeDecl
	Size      Node
	While     bool
	Placement Node
	Doc       string
}

func (a *ArrayVariableDecl) Clone() Node {
	c := *a
	c.Attributable = a.Attributable.clone()
	c.Type = cloneType(a.Type)
	c.Size = cloneNode(a.Size)
	c.Placement = cloneNode(a.Placement)
	return &c
}

// PointerVariableDecl declares `T *name : SizeType`.
type PointerVariableDecl struct {
	Position
	Attributable
	Name      string
	Type      *TypeDecl
	SizeType  *TypeDecl
	Placement Node
	Doc       string
}

func (p *PointerVariableDecl) Clone() Node {
	c := *p
	c.Attributable = p.Attributable.clone()
	c.Type = cloneType(p.Type)
	c.SizeType = cloneType(p.SizeType)
	c.Placement = cloneNode(p.Placement)
	return &c
}

// MultiVariableDecl is `T a, b, c;`.
type MultiVariableDecl struct {
	Position
	Variables []*VariableDecl
}

func (m *MultiVariableDecl) Clone() Node {
	c := &MultiVariableDecl{Position: m.Position}
	for _, v := range m.Variables {
		c.Variables = append(c.Variables, v.Clone().(*VariableDecl))
	}
	return c
}

// TypeOperator is `sizeof(x)` or `addressof(x)`. Exactly one of Expr and Type
// is set.
type TypeOperator struct {
	Position
	Op   Operator
	Expr Node
	Type *TypeDecl
}

func (t *TypeOperator) Clone() Node {
	return &TypeOperator{Position: t.Position, Op: t.Op, Expr: cloneNode(t.Expr), Type: cloneType(t.Type)}
}

func cloneNode(n Node) Node {
	if n == nil {
		return nil
	}
	return n.Clone()
}

func cloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

func cloneType(d *TypeDecl) *TypeDecl {
	if d == nil || d.Name != "" {
		return d
	}
	c := *d
	c.Attributable = d.Attributable.clone()
	c.Type = cloneNode(d.Type)
	return &c
}
