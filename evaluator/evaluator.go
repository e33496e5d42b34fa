// Package evaluator executes parsed pattern programs against a byte source
// and builds the resulting pattern tree.
package evaluator

import (
	"context"
	"encoding/binary"
	"errors"
	"maps"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/sansecio/hexpat/ast"
	"github.com/sansecio/hexpat/pattern"
	"github.com/sansecio/hexpat/provider"
)

// Config bounds an evaluation. Pragmas in the program override these values.
type Config struct {
	DefaultEndian binary.ByteOrder
	// PatternLimit caps the number of patterns created.
	PatternLimit uint64
	// ArrayLimit caps array entries and loop iterations.
	ArrayLimit uint64
	// RecursionDepth caps nested type placements and function calls.
	RecursionDepth int
	// StringDisplayLimit truncates formatted strings; zero disables it.
	StringDisplayLimit uint64
}

// DefaultConfig returns the limits used when no Config is given.
func DefaultConfig() Config {
	return Config{
		DefaultEndian:      binary.LittleEndian,
		PatternLimit:       1 << 20,
		ArrayLimit:         1 << 24,
		RecursionDepth:     32,
		StringDisplayLimit: 128,
	}
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithConfig replaces the default limits.
func WithConfig(cfg Config) Option {
	return func(e *Evaluator) { e.cfg = cfg }
}

// WithLogger sets the logger console output and diagnostics are written to.
func WithLogger(l *zap.Logger) Option {
	return func(e *Evaluator) { e.log = l }
}

// WithInVariables supplies values for `in` variables. Supported types are Go
// integers, *big.Int, floats, bool and string.
func WithInVariables(vars map[string]any) Option {
	return func(e *Evaluator) { e.in = maps.Clone(vars) }
}

// Evaluator evaluates programs against one byte source. Evaluate must not be
// called concurrently; Console and OutVariables may be.
type Evaluator struct {
	src provider.ByteSource
	cfg Config
	log *zap.Logger
	in  map[string]any

	mu      sync.Mutex
	console []string
	out     map[string]any
}

// New returns an Evaluator reading from src.
func New(src provider.ByteSource, opts ...Option) *Evaluator {
	e := &Evaluator{
		src: src,
		cfg: DefaultConfig(),
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.DefaultEndian == nil {
		e.cfg.DefaultEndian = binary.LittleEndian
	}
	return e
}

// Evaluate runs prog and returns the pattern tree. Out-of-bounds errors in
// top-level placements are recorded as pattern.Error entries; any other
// error aborts the evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, prog *ast.Program) (*pattern.Tree, error) {
	e.mu.Lock()
	e.console = nil
	e.out = map[string]any{}
	e.mu.Unlock()

	cfg, err := e.configure(prog)
	if err != nil {
		return nil, err
	}
	if !e.src.IsReadable() {
		return nil, &Error{Kind: OutOfBounds, Message: "byte source is not readable"}
	}

	s := newState(ctx, e, prog, cfg)
	for _, stmt := range prog.Statements {
		if err := s.interrupted(stmt); err != nil {
			return nil, err
		}
		if err := s.topLevel(stmt); err != nil {
			return nil, locate(err, stmt)
		}
	}

	e.mu.Lock()
	for name, v := range s.global().locals {
		if v.dir == ast.DirOut {
			e.out[name] = v.val.goValue()
		}
	}
	e.mu.Unlock()

	e.log.Debug("evaluation finished",
		zap.Int("roots", len(s.roots)),
		zap.Uint64("patterns", s.patterns))
	return pattern.NewTree(s.roots, s.reader), nil
}

// Console returns the lines printed by the last evaluation.
func (e *Evaluator) Console() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.console...)
}

// OutVariables returns the final values of `out` variables of the last
// evaluation. Integers are *big.Int.
func (e *Evaluator) OutVariables() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return maps.Clone(e.out)
}

func (e *Evaluator) print(line string, warning bool) {
	e.mu.Lock()
	e.console = append(e.console, line)
	e.mu.Unlock()
	if warning {
		e.log.Warn(line, zap.String("source", "pattern"))
		return
	}
	e.log.Info(line, zap.String("source", "pattern"))
}

func (s *state) print(line string, warning bool) {
	if s.quiet {
		return
	}
	s.Evaluator.print(line, warning)
}

// configure applies the program's pragmas to the evaluator's config.
func (e *Evaluator) configure(prog *ast.Program) (Config, error) {
	cfg := e.cfg
	for _, p := range prog.Pragmas {
		bad := func(err error) error {
			return &Error{Kind: TypeMismatch, Message: "invalid value '" + p.Value + "' for pragma " + p.Name, Loc: p.Loc, Err: err}
		}
		switch p.Name {
		case "endian":
			switch p.Value {
			case "little":
				cfg.DefaultEndian = binary.LittleEndian
			case "big":
				cfg.DefaultEndian = binary.BigEndian
			case "native":
				cfg.DefaultEndian = nativeEndian()
			default:
				return cfg, bad(nil)
			}
		case "pattern_limit", "array_limit":
			n, err := strconv.ParseUint(p.Value, 0, 64)
			if err != nil {
				return cfg, bad(err)
			}
			if p.Name == "pattern_limit" {
				cfg.PatternLimit = n
			} else {
				cfg.ArrayLimit = n
			}
		case "eval_depth":
			n, err := strconv.Atoi(p.Value)
			if err != nil || n < 0 {
				return cfg, bad(err)
			}
			cfg.RecursionDepth = n
		case "magic", "MIME", "description", "author", "once":
		default:
			e.log.Debug("ignoring unknown pragma", zap.String("pragma", p.Name))
		}
	}
	return cfg, nil
}

func nativeEndian() binary.ByteOrder {
	if binary.NativeEndian.Uint16([]byte{0, 1}) == 1 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// sourceReader reads pattern offsets from a byte source by translating them
// into absolute addresses.
type sourceReader struct {
	src provider.ByteSource
}

func (r sourceReader) ReadAt(offset uint64, out []byte) error {
	return r.src.Read(r.src.BaseAddress()+r.src.PageAddress()+offset, out)
}

// variable is a local or global variable that is not part of the tree.
type variable struct {
	// typ is nil for auto parameters.
	typ *ast.TypeDecl
	val value
	dir ast.Direction
}

// frame is one level of the scope stack: the global scope, a type being
// placed or a function call.
type frame struct {
	container pattern.Pattern
	locals    map[string]*variable
	function  bool
	// dollar is the function-local copy of the cursor.
	dollar uint64

	union    bool
	start    uint64
	furthest uint64
}

// state is the mutable part of one evaluation. Custom formatters run on a
// fresh state so they can be called while the tree is being read.
type state struct {
	*Evaluator
	ctx    context.Context
	prog   *ast.Program
	cfg    Config
	reader sourceReader
	size   uint64

	frames   []*frame
	cursor   uint64
	depth    int
	patterns uint64
	roots    []pattern.Pattern
	parents  map[pattern.Pattern]pattern.Pattern
	enums    map[*ast.Enum][]pattern.EnumEntry

	// dryRun disables bounds checks while sizeof measures a type.
	dryRun bool
	// quiet discards console output.
	quiet bool
}

func newState(ctx context.Context, e *Evaluator, prog *ast.Program, cfg Config) *state {
	return &state{
		Evaluator: e,
		ctx:       ctx,
		prog:      prog,
		cfg:       cfg,
		reader:    sourceReader{src: e.src},
		size:      e.src.Size(),
		frames:    []*frame{{locals: map[string]*variable{}}},
		parents:   map[pattern.Pattern]pattern.Pattern{},
		enums:     map[*ast.Enum][]pattern.EnumEntry{},
	}
}

func (s *state) global() *frame { return s.frames[0] }

func (s *state) top() *frame { return s.frames[len(s.frames)-1] }

func (s *state) push(f *frame) {
	if f.locals == nil {
		f.locals = map[string]*variable{}
	}
	s.frames = append(s.frames, f)
}

func (s *state) pop() {
	s.frames = s.frames[:len(s.frames)-1]
}

// add appends p to the container of f.
func (s *state) add(f *frame, p pattern.Pattern) {
	switch c := f.container.(type) {
	case *pattern.Struct:
		c.Members = append(c.Members, p)
	case *pattern.Union:
		c.Members = append(c.Members, p)
	case nil:
		if !f.function {
			s.roots = append(s.roots, p)
		}
		return
	}
	s.parents[p] = f.container
}

// enter accounts for one level of nesting.
func (s *state) enter(node ast.Node) error {
	if s.depth >= s.cfg.RecursionDepth {
		return errorf(Limit, node, "recursion depth exceeded the limit of %d", s.cfg.RecursionDepth)
	}
	s.depth++
	return nil
}

func (s *state) leave() { s.depth-- }

// count accounts for n new patterns.
func (s *state) count(node ast.Node, n uint64) error {
	s.patterns += n
	if s.patterns > s.cfg.PatternLimit {
		return errorf(Limit, node, "pattern count exceeded the limit of %d", s.cfg.PatternLimit)
	}
	return nil
}

func (s *state) interrupted(node ast.Node) error {
	if err := s.ctx.Err(); err != nil {
		e := errorf(Interrupted, node, "evaluation interrupted")
		e.Err = err
		return e
	}
	return nil
}

// checkBounds fails when [offset, offset+size) is not inside the source.
func (s *state) checkBounds(node ast.Node, offset, size uint64) error {
	if s.dryRun {
		return nil
	}
	if offset > s.size || size > s.size-offset {
		return outOfBounds(node, offset, "reading %d bytes at 0x%X exceeds the data size 0x%X", size, offset, s.size)
	}
	return nil
}

// dollar returns the cursor `$` refers to in the current frame. The cursor
// is an absolute offset, also inside type bodies.
func (s *state) dollar() *uint64 {
	for i := len(s.frames) - 1; i > 0; i-- {
		f := s.frames[i]
		if f.function {
			return &f.dollar
		}
		if f.container != nil {
			break
		}
	}
	return &s.cursor
}

func (s *state) topLevel(node ast.Node) error {
	switch n := node.(type) {
	case *ast.TypeDecl, *ast.FunctionDefinition:
		return nil
	case *ast.VariableDecl:
		if n.Placement == nil {
			return s.declareGlobal(n)
		}
		return s.recoverPlacement(n.Name, n.Type, s.placeDecl(n, s.cfg.DefaultEndian))
	case *ast.ArrayVariableDecl:
		return s.recoverPlacement(n.Name, n.Type, s.placeDecl(n, s.cfg.DefaultEndian))
	case *ast.PointerVariableDecl:
		return s.recoverPlacement(n.Name, n.Type, s.placeDecl(n, s.cfg.DefaultEndian))
	}
	_, _, err := s.exec([]ast.Node{node})
	return err
}

// recoverPlacement turns an out-of-bounds error of a top-level placement
// into an Error pattern.
func (s *state) recoverPlacement(name string, typ *ast.TypeDecl, err error) error {
	var e *Error
	if err == nil || !errors.As(err, &e) || e.Kind != OutOfBounds {
		return err
	}
	p := &pattern.Error{Base: pattern.NewBase(min(e.Offset, s.size), 0), Message: e.Message}
	p.Name, p.TypeName = name, typ.DisplayName()
	s.roots = append(s.roots, p)
	s.log.Warn("placement failed",
		zap.String("variable", name),
		zap.Uint64("offset", e.Offset),
		zap.String("error", e.Message))
	return nil
}

func (s *state) declareGlobal(v *ast.VariableDecl) error {
	val, err := s.initialValue(v)
	if err != nil {
		return err
	}
	if v.Direction == ast.DirIn {
		if x, ok := s.in[v.Name]; ok {
			in, err := fromGo(x)
			if err != nil {
				return errorf(TypeMismatch, v, "in variable '%s': %v", v.Name, err)
			}
			if val, err = s.convert(in, v.Type, v); err != nil {
				return err
			}
		}
	}
	s.global().locals[v.Name] = &variable{typ: v.Type, val: val, dir: v.Direction}
	return nil
}
