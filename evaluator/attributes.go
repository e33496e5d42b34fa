package evaluator

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sansecio/hexpat/ast"
	"github.com/sansecio/hexpat/pattern"
)

// decorate applies a doc comment and attributes to a placed pattern.
func (s *state) decorate(p pattern.Pattern, attrs []*ast.Attribute, doc string, node ast.Node) error {
	b := p.Common()
	if doc = strings.TrimSpace(doc); doc != "" {
		b.Comment = doc
	}
	singleColor := false
	for _, a := range attrs {
		switch a.Name {
		case "name", "hex::spec_name":
			b.DisplayName = a.Arg(0)
		case "comment":
			b.Comment = a.Arg(0)
		case "color":
			c, err := parseColor(a.Arg(0))
			if err != nil {
				return errorf(TypeMismatch, a, "invalid color '%s'", a.Arg(0))
			}
			b.SetColor(c)
		case "hidden":
			b.Visibility = pattern.Hidden
		case "highlight_hidden":
			b.Visibility = pattern.HighlightHidden
		case "tree_hidden":
			b.Visibility = pattern.TreeHidden
		case "inline":
			b.Inline = true
		case "single_color":
			singleColor = true
		case "format", "format_read":
			f, err := s.formatter(a.Arg(0), a)
			if err != nil {
				return err
			}
			b.Formatter = f
		case "pointer_base":
			// applied while placing the pointer
		case "hex::favorite":
			b.Favorite = true
		case "hex::group":
			b.Group = a.Arg(0)
		case "hex::visualize":
			b.Visualizer = slices.Clone(a.Args)
		case "hex::inline_visualize":
			b.InlineVisualizer = slices.Clone(a.Args)
		default:
			s.log.Debug("ignoring unknown attribute",
				zap.String("attribute", a.Name),
				zap.String("variable", b.Name),
				zap.Stringer("loc", a.Loc()))
		}
	}
	if singleColor {
		recolor(p, b.Color)
	}
	return nil
}

// parseColor turns RRGGBB into the palette's ARGB layout with the default
// alpha.
func parseColor(s string) (uint32, error) {
	s = strings.TrimPrefix(s, "#")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	if len(s) != 6 {
		return 0, strconv.ErrRange
	}
	r, g, b := uint32(v>>16)&0xFF, uint32(v>>8)&0xFF, uint32(v)&0xFF
	return 0x70000000 | b<<16 | g<<8 | r, nil
}

// recolor gives every descendant of p the same color. Pointees keep theirs.
func recolor(p pattern.Pattern, color uint32) {
	switch t := p.(type) {
	case *pattern.Pointer:
		return
	case *pattern.StaticArray:
		t.Template.Common().SetColor(color)
		recolor(t.Template, color)
		return
	}
	for _, c := range p.Children() {
		c.Common().SetColor(color)
		recolor(c, color)
	}
}

// formatter returns a pattern.Formatter calling the user function name. The
// function runs on a fresh, quiet state so formatting never touches an
// evaluation in progress or the console of a finished one.
func (s *state) formatter(name string, node ast.Node) (pattern.Formatter, error) {
	fn, ok := s.function(name, nil)
	if !ok {
		return nil, errorf(Unknown, node, "unknown formatter function '%s'", name)
	}
	e, prog, cfg := s.Evaluator, s.prog, s.cfg
	return func(p pattern.Pattern) (string, error) {
		fs := newState(context.Background(), e, prog, cfg)
		fs.quiet = true
		v, err := fs.invoke(fn, []value{patternOf(p)}, node)
		if err != nil {
			return "", err
		}
		if v.kind == kindVoid {
			return "", errorf(TypeMismatch, node, "formatter '%s' does not return a value", name)
		}
		return fs.toString(v, node)
	}, nil
}
