package vm

import (
	"fmt"

	"tlog.app/go/errors"

	"github.com/slowlang/quad/compiler/ir"
)

type (
	// Fault is a runtime error. It stops the machine.
	Fault struct {
		IP   int
		Quad ir.Quad
		Err  error
	}
)

var (
	ErrDivisionByZero  = errors.New("division by zero")
	ErrInvalidAddress  = errors.New("invalid address")
	ErrUnknownOperator = errors.New("unknown operator")
	ErrNoFrame         = errors.New("no activation record")
	ErrUninitialized   = errors.New("uninitialized value")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrReadOnly        = errors.New("write to constant")
	ErrStrayEndproc    = errors.New("endproc outside of function")
	ErrBadJump         = errors.New("jump out of program")
	ErrNotLoaded       = errors.New("no program loaded")
	ErrHalted          = errors.New("machine halted")
)

func (f *Fault) Error() string {
	return fmt.Sprintf("fault at %d %v: %v", f.IP, f.Quad, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }
