package pattern

import "sort"

// Tree is an immutable snapshot of the patterns produced by one evaluation.
// It is safe for concurrent readers.
type Tree struct {
	roots  []Pattern
	reader Reader
}

// NewTree takes ownership of roots. Patterns must not be modified afterwards.
func NewTree(roots []Pattern, r Reader) *Tree {
	for _, p := range roots {
		seal(p)
	}
	return &Tree{roots: roots, reader: r}
}

// Roots returns the top-level patterns in placement order.
func (t *Tree) Roots() []Pattern { return t.roots }

// Reader returns the reader the tree's values are read through.
func (t *Tree) Reader() Reader { return t.reader }

// Format returns the formatted value of p read through the tree's reader.
func (t *Tree) Format(p Pattern) string { return Format(p, t.reader) }

// Len returns the number of patterns. A static array counts as one.
func (t *Tree) Len() int {
	n := 0
	t.Walk(func(p Pattern, _ int) bool {
		n++
		_, isArray := p.(*StaticArray)
		return !isArray
	})
	return n
}

// Walk calls fn for every pattern in depth-first order. Children are skipped
// when fn returns false.
func (t *Tree) Walk(fn func(p Pattern, depth int) bool) {
	for _, p := range t.roots {
		walk(p, 0, fn)
	}
}

func walk(p Pattern, depth int, fn func(Pattern, int) bool) {
	if !fn(p, depth) {
		return
	}
	if a, ok := p.(*StaticArray); ok {
		for i := range a.Count {
			walk(a.Entry(i), depth+1, fn)
		}
		return
	}
	for _, c := range p.Children() {
		walk(c, depth+1, fn)
	}
}

// HighlightAt returns the color of the innermost highlighted pattern covering
// offset.
func (t *Tree) HighlightAt(offset uint64) (uint32, bool) {
	p := t.find(offset, true)
	if p == nil {
		return 0, false
	}
	return p.Common().Color, true
}

// PatternAt returns the innermost visible pattern covering offset, or nil.
func (t *Tree) PatternAt(offset uint64) Pattern {
	return t.find(offset, false)
}

func (t *Tree) find(offset uint64, highlight bool) Pattern {
	for _, p := range t.roots {
		if q := lookup(p, offset, highlight); q != nil {
			return q
		}
	}
	return nil
}

func extentOf(b *Base) span {
	if b.extent != nil {
		return *b.extent
	}
	return span{b.Offset, b.End()}
}

// seal records for every pattern the span covered by it and its
// descendants, pointees included.
func seal(p Pattern) span {
	b := p.Common()
	s := span{b.Offset, b.End()}
	if _, isArray := p.(*StaticArray); !isArray {
		for _, c := range p.Children() {
			cs := seal(c)
			if cs.start == cs.end {
				continue
			}
			if s.start == s.end {
				s = cs
				continue
			}
			s.start = min(s.start, cs.start)
			s.end = max(s.end, cs.end)
		}
	}
	b.extent = &s
	return s
}

func lookup(p Pattern, offset uint64, highlight bool) Pattern {
	b := p.Common()
	if b.Visibility == Hidden {
		return nil
	}
	if ext := extentOf(b); offset < ext.start || offset >= ext.end {
		return nil
	}

	switch v := p.(type) {
	case *StaticArray:
		if stride := v.Stride(); stride > 0 && v.Contains(offset) {
			if i := (offset - v.Offset) / stride; i < v.Count {
				if q := lookup(v.Entry(i), offset, highlight); q != nil {
					return q
				}
			}
		}
	case *DynamicArray:
		entries := v.Entries
		i := sort.Search(len(entries), func(i int) bool {
			return entries[i].Common().End() > offset
		})
		if i < len(entries) && entries[i].Common().Contains(offset) {
			if q := lookup(entries[i], offset, highlight); q != nil {
				return q
			}
		}
		if ext := extentOf(b); ext.start < v.Offset || ext.end > v.End() {
			for _, e := range entries {
				if q := lookup(e, offset, highlight); q != nil {
					return q
				}
			}
		}
	default:
		for _, c := range p.Children() {
			if q := lookup(c, offset, highlight); q != nil {
				return q
			}
		}
	}

	if !b.Contains(offset) {
		return nil
	}
	if highlight && b.Visibility == HighlightHidden {
		return nil
	}
	return p
}
