package pattern

import (
	"bytes"
	"cmp"
	"slices"
	"strings"
)

// SortKey selects the property Compare orders by.
type SortKey uint8

const (
	SortName SortKey = iota
	SortStart
	SortEnd
	SortSize
	SortValue
	SortType
	SortColor
	SortComment
)

var sortKeyNames = map[string]SortKey{
	"name":    SortName,
	"start":   SortStart,
	"end":     SortEnd,
	"size":    SortSize,
	"value":   SortValue,
	"type":    SortType,
	"color":   SortColor,
	"comment": SortComment,
}

// ParseSortKey returns the key called name.
func ParseSortKey(name string) (SortKey, bool) {
	k, ok := sortKeyNames[strings.ToLower(name)]
	return k, ok
}

func (k SortKey) String() string {
	for name, key := range sortKeyNames {
		if key == k {
			return name
		}
	}
	return "unknown"
}

// Compare orders a and b by key. Value comparison reads the raw bytes through
// r; unreadable patterns sort first.
func Compare(a, b Pattern, key SortKey, r Reader) int {
	x, y := a.Common(), b.Common()
	switch key {
	case SortName:
		return strings.Compare(x.Label(), y.Label())
	case SortStart:
		return cmp.Compare(x.Offset, y.Offset)
	case SortEnd:
		return cmp.Compare(x.End(), y.End())
	case SortSize:
		return cmp.Compare(x.Size, y.Size)
	case SortValue:
		av, _ := Bytes(a, r)
		bv, _ := Bytes(b, r)
		return bytes.Compare(av, bv)
	case SortType:
		return strings.Compare(x.TypeName, y.TypeName)
	case SortColor:
		return cmp.Compare(x.Color, y.Color)
	case SortComment:
		return strings.Compare(x.Comment, y.Comment)
	}
	return 0
}

// Sort orders ps in place by key. The sort is stable.
func Sort(ps []Pattern, key SortKey, r Reader, descending bool) {
	slices.SortStableFunc(ps, func(a, b Pattern) int {
		c := Compare(a, b, key, r)
		if descending {
			return -c
		}
		return c
	})
}

// Equal reports whether a and b, and their children, compare equal under
// every sort key. Colors taken from the palette are not compared.
func Equal(a, b Pattern, r Reader) bool {
	for key := SortName; key <= SortComment; key++ {
		if key == SortColor && !(a.Common().manualColor && b.Common().manualColor) {
			continue
		}
		if Compare(a, b, key, r) != 0 {
			return false
		}
	}
	ac, bc := a.Children(), b.Children()
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if !Equal(ac[i], bc[i], r) {
			return false
		}
	}
	return true
}
