package evaluator

import (
	"strings"

	"github.com/sansecio/hexpat/ast"
)

// function finds a user function, trying the caller's namespaces from the
// innermost outwards.
func (s *state) function(name string, scope []string) (*ast.FunctionDefinition, bool) {
	for i := len(scope); i >= 0; i-- {
		key := name
		if i > 0 {
			key = strings.Join(scope[:i], "::") + "::" + name
		}
		if fn, ok := s.prog.Functions[key]; ok {
			return fn, true
		}
	}
	return nil, false
}

func (s *state) call(c *ast.FunctionCall) (value, error) {
	fn, user := s.function(c.Name, c.Scope)
	b, native := builtins[c.Name]
	if !user && !native {
		return value{}, errorf(Unknown, c, "unknown function '%s'", c.Name)
	}

	args := make([]value, len(c.Args))
	for i, arg := range c.Args {
		v, err := s.eval(arg)
		if err != nil {
			return value{}, err
		}
		args[i] = v
	}
	if user {
		return s.invoke(fn, args, c)
	}
	if len(args) < b.min || (b.max >= 0 && len(args) > b.max) {
		return value{}, errorf(TypeMismatch, c, "wrong number of arguments for '%s': %d", c.Name, len(args))
	}
	return b.fn(s, c, args)
}

// callNamed calls the function referenced by an attribute argument.
func (s *state) callNamed(name string, args []value, node ast.Node) (value, error) {
	if fn, ok := s.function(name, nil); ok {
		return s.invoke(fn, args, node)
	}
	if b, ok := builtins[name]; ok {
		return b.fn(s, &ast.FunctionCall{Position: ast.Position{Location: node.Loc()}, Name: name}, args)
	}
	return value{}, errorf(Unknown, node, "unknown function '%s'", name)
}

func (s *state) invoke(fn *ast.FunctionDefinition, args []value, node ast.Node) (value, error) {
	if len(args) != len(fn.Params) {
		return value{}, errorf(TypeMismatch, node, "function '%s' expects %d arguments, got %d", fn.Name, len(fn.Params), len(args))
	}
	if err := s.enter(node); err != nil {
		return value{}, err
	}
	defer s.leave()

	f := &frame{function: true, dollar: *s.dollar(), locals: make(map[string]*variable, len(args))}
	for i, p := range fn.Params {
		v, err := s.convert(args[i], p.Type, node)
		if err != nil {
			return value{}, err
		}
		f.locals[p.Name] = &variable{typ: p.Type, val: v}
	}

	s.push(f)
	defer s.pop()
	flow, ret, err := s.exec(fn.Body)
	if err != nil {
		return value{}, err
	}
	if flow != ast.FlowReturn {
		return value{}, nil
	}
	return ret, nil
}

// exec runs statements until one of them changes the control flow.
func (s *state) exec(stmts []ast.Node) (ast.ControlFlow, value, error) {
	for _, stmt := range stmts {
		flow, v, err := s.statement(stmt)
		if err != nil {
			return flow, value{}, locate(err, stmt)
		}
		if flow != ast.FlowNone {
			return flow, v, nil
		}
	}
	return ast.FlowNone, value{}, nil
}

func (s *state) statement(node ast.Node) (ast.ControlFlow, value, error) {
	switch n := node.(type) {
	case *ast.VariableDecl:
		return ast.FlowNone, value{}, s.declare(n)
	case *ast.MultiVariableDecl:
		for _, v := range n.Variables {
			if err := s.declare(v); err != nil {
				return ast.FlowNone, value{}, err
			}
		}
	case *ast.ArrayVariableDecl, *ast.PointerVariableDecl:
		return ast.FlowNone, value{}, s.placeDecl(n, s.cfg.DefaultEndian)
	case *ast.Assignment:
		return ast.FlowNone, value{}, s.assign(n)
	case *ast.FunctionCall:
		_, err := s.call(n)
		return ast.FlowNone, value{}, err
	case *ast.ConditionalStatement:
		ok, err := s.evalBool(n.Cond)
		if err != nil {
			return ast.FlowNone, value{}, err
		}
		if ok {
			return s.exec(n.True)
		}
		return s.exec(n.False)
	case *ast.WhileStatement:
		return s.loop(n)
	case *ast.CompoundStatement:
		return s.exec(n.Statements)
	case *ast.ControlFlowStatement:
		if n.Kind != ast.FlowReturn || n.Value == nil {
			return n.Kind, value{}, nil
		}
		v, err := s.eval(n.Value)
		return n.Kind, v, err
	default:
		return ast.FlowNone, value{}, errorf(TypeMismatch, node, "unexpected %T in function body", node)
	}
	return ast.FlowNone, value{}, nil
}

func (s *state) loop(n *ast.WhileStatement) (ast.ControlFlow, value, error) {
	for i := uint64(0); ; i++ {
		if err := s.interrupted(n); err != nil {
			return ast.FlowNone, value{}, err
		}
		if i >= s.cfg.ArrayLimit {
			return ast.FlowNone, value{}, errorf(Limit, n, "loop exceeded the limit of %d iterations", s.cfg.ArrayLimit)
		}
		ok, err := s.evalBool(n.Cond)
		if err != nil {
			return ast.FlowNone, value{}, err
		}
		if !ok {
			return ast.FlowNone, value{}, nil
		}
		flow, v, err := s.exec(n.Body)
		if err != nil || flow == ast.FlowReturn {
			return flow, v, err
		}
		if flow == ast.FlowBreak {
			return ast.FlowNone, value{}, nil
		}
		if n.Post != nil {
			if _, _, err := s.statement(n.Post); err != nil {
				return ast.FlowNone, value{}, err
			}
		}
	}
}

// declare handles a variable declaration inside a function. Scalars become
// locals; other types are placed at the function's cursor.
func (s *state) declare(v *ast.VariableDecl) error {
	if v.Placement == nil && (v.Init != nil || s.isScalar(v.Type)) {
		return s.declareLocal(v)
	}
	return s.placeDecl(v, s.cfg.DefaultEndian)
}

func (s *state) isScalar(typ *ast.TypeDecl) bool {
	t, err := s.resolve(typ, s.cfg.DefaultEndian)
	if err != nil {
		return false
	}
	_, ok := s.builtinOf(t)
	return ok
}

func (s *state) declareLocal(v *ast.VariableDecl) error {
	val, err := s.initialValue(v)
	if err != nil {
		return err
	}
	s.top().locals[v.Name] = &variable{typ: v.Type, val: val}
	return nil
}

func (s *state) initialValue(v *ast.VariableDecl) (value, error) {
	if v.Init != nil {
		val, err := s.eval(v.Init)
		if err != nil {
			return value{}, err
		}
		return s.convert(val, v.Type, v)
	}
	t, err := s.resolve(v.Type, s.cfg.DefaultEndian)
	if err != nil {
		return value{}, err
	}
	if vt, ok := s.builtinOf(t); ok {
		if z := zeroValue(vt); z.kind != kindVoid {
			return z, nil
		}
	}
	return value{}, errorf(TypeMismatch, v, "variable '%s' of type '%s' needs an initializer", v.Name, t.name)
}
