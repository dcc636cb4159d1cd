package analyze

import (
	"fmt"
	"reflect"

	"tlog.app/go/errors"
	"tlog.app/go/loc"

	"github.com/slowlang/quad/compiler/ast"
)

type (
	// SemanticError is a type or scope violation found in the source.
	// Err is one of the Err* kinds below.
	SemanticError struct {
		Pos    ast.Pos
		Err    error
		Detail string
	}

	// InternalError is a generator bug. It's raised with panic, never returned.
	InternalError struct {
		Msg  string
		From loc.PC
	}

	UnsupportedNodeError struct{ T ast.Node }
)

var (
	ErrUndeclaredVar      = errors.New("undeclared variable")
	ErrUndeclaredFunc     = errors.New("undeclared function")
	ErrRedeclaredVar      = errors.New("redeclared variable")
	ErrRedeclaredFunc     = errors.New("redeclared function")
	ErrRedeclaredParam    = errors.New("redeclared parameter")
	ErrIncompatibleTypes  = errors.New("incompatible types")
	ErrIncompatibleAssign = errors.New("incompatible assignment")
	ErrArgCount           = errors.New("wrong argument count")
	ErrArgType            = errors.New("wrong argument type")
	ErrCondition          = errors.New("non-integer condition")
	ErrVoidInExpr         = errors.New("void function used in expression")
	ErrReturnOutside      = errors.New("return outside of function")
	ErrReturnValue        = errors.New("return value in void function")
	ErrMissingReturn      = errors.New("missing return value")
	ErrReturnType         = errors.New("incompatible return type")
	ErrBadLiteral         = errors.New("bad literal")
)

func semantic(pos ast.Pos, kind error, f string, args ...any) *SemanticError {
	return &SemanticError{
		Pos:    pos,
		Err:    kind,
		Detail: fmt.Sprintf(f, args...),
	}
}

func (e *SemanticError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v: %v", e.Pos, e.Err)
	}

	return fmt.Sprintf("%v: %v: %v", e.Pos, e.Err, e.Detail)
}

func (e *SemanticError) Unwrap() error { return e.Err }

func internal(f string, args ...any) *InternalError {
	return &InternalError{
		Msg:  fmt.Sprintf(f, args...),
		From: loc.Caller(1),
	}
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal compiler error: %v (at %v)", e.Msg, e.From)
}

func (e UnsupportedNodeError) Error() string {
	return fmt.Sprintf("unsupported node: %v", reflect.TypeOf(e.T))
}
