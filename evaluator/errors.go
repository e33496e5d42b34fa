package evaluator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sansecio/hexpat/ast"
)

// Kind classifies evaluation errors.
type Kind uint8

const (
	// Unknown is used for names that do not resolve.
	Unknown Kind = iota
	OutOfBounds
	DivByZero
	BadCast
	Limit
	Interrupted
	BadForwardDecl
	TypeMismatch
	// UserAbort is raised by std::assert and std::error.
	UserAbort
)

var kindNames = [...]string{
	Unknown:        "unknown",
	OutOfBounds:    "out of bounds",
	DivByZero:      "division by zero",
	BadCast:        "bad cast",
	Limit:          "limit exceeded",
	Interrupted:    "interrupted",
	BadForwardDecl: "bad forward declaration",
	TypeMismatch:   "type mismatch",
	UserAbort:      "aborted",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Error is returned by Evaluate. Only OutOfBounds errors raised by a
// top-level placement are recovered from; they become pattern.Error entries
// in the tree instead.
type Error struct {
	Kind      Kind
	Offset    uint64
	HasOffset bool
	Message   string
	Loc       ast.Location
	// Err is the underlying cause, such as a context error or a read error.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Loc.Line > 0 {
		b.WriteString(e.Loc.String())
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.HasOffset {
		fmt.Fprintf(&b, " (at 0x%X)", e.Offset)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func errorf(kind Kind, node ast.Node, format string, args ...any) *Error {
	e := &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
	if node != nil {
		e.Loc = node.Loc()
	}
	return e
}

func outOfBounds(node ast.Node, offset uint64, format string, args ...any) *Error {
	e := errorf(OutOfBounds, node, format, args...)
	e.Offset, e.HasOffset = offset, true
	return e
}

// locate attaches the location of node to err when it has none yet.
func locate(err error, node ast.Node) error {
	var e *Error
	if node != nil && errors.As(err, &e) && e.Loc.Line == 0 {
		e.Loc = node.Loc()
	}
	return err
}
