package vm

import (
	"strconv"

	"tlog.app/go/errors"

	"github.com/slowlang/quad/compiler/tp"
)

// Values are int64, float64 or string.

func zero(t tp.Type) any {
	switch t {
	case tp.Int:
		return int64(0)
	case tp.Float:
		return float64(0)
	case tp.String:
		return ""
	}

	return nil
}

// convert makes v fit a cell of type t. Int widens to float, nothing narrows.
// Void cells (parameters) take anything.
func convert(v any, t tp.Type) (any, error) {
	switch x := v.(type) {
	case int64:
		switch t {
		case tp.Int, tp.Void:
			return x, nil
		case tp.Float:
			return float64(x), nil
		}
	case float64:
		switch t {
		case tp.Float, tp.Void:
			return x, nil
		}
	case string:
		switch t {
		case tp.String, tp.Void:
			return x, nil
		}
	}

	return nil, errors.Wrap(ErrTypeMismatch, "%T into %v", v, t)
}

func truth(v any) (bool, error) {
	switch x := v.(type) {
	case int64:
		return x != 0, nil
	case float64:
		return x != 0, nil
	}

	return false, errors.Wrap(ErrTypeMismatch, "condition %T", v)
}

// Format renders a value the way PRINT does.
func Format(v any) string {
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	case nil:
		return "nil"
	}

	return "?"
}

func binary(op tp.Op, l, r any) (any, error) {
	switch l := l.(type) {
	case int64:
		switch r := r.(type) {
		case int64:
			return intOp(op, l, r)
		case float64:
			return floatOp(op, float64(l), r)
		}
	case float64:
		switch r := r.(type) {
		case int64:
			return floatOp(op, l, float64(r))
		case float64:
			return floatOp(op, l, r)
		}
	case string:
		if r, ok := r.(string); ok {
			return stringOp(op, l, r)
		}
	}

	return nil, errors.Wrap(ErrTypeMismatch, "%T %v %T", l, op, r)
}

func intOp(op tp.Op, l, r int64) (any, error) {
	switch op {
	case tp.Add:
		return l + r, nil
	case tp.Sub:
		return l - r, nil
	case tp.Mul:
		return l * r, nil
	case tp.Div:
		if r == 0 {
			return nil, ErrDivisionByZero
		}

		return l / r, nil
	case tp.Gt:
		return b2i(l > r), nil
	case tp.Lt:
		return b2i(l < r), nil
	case tp.Ge:
		return b2i(l >= r), nil
	case tp.Le:
		return b2i(l <= r), nil
	case tp.Eq:
		return b2i(l == r), nil
	case tp.Ne:
		return b2i(l != r), nil
	}

	return nil, errors.Wrap(ErrUnknownOperator, "%v on int", op)
}

func floatOp(op tp.Op, l, r float64) (any, error) {
	switch op {
	case tp.Add:
		return l + r, nil
	case tp.Sub:
		return l - r, nil
	case tp.Mul:
		return l * r, nil
	case tp.Div:
		if r == 0 {
			return nil, ErrDivisionByZero
		}

		return l / r, nil
	case tp.Gt:
		return b2i(l > r), nil
	case tp.Lt:
		return b2i(l < r), nil
	case tp.Ge:
		return b2i(l >= r), nil
	case tp.Le:
		return b2i(l <= r), nil
	case tp.Eq:
		return b2i(l == r), nil
	case tp.Ne:
		return b2i(l != r), nil
	}

	return nil, errors.Wrap(ErrUnknownOperator, "%v on float", op)
}

func stringOp(op tp.Op, l, r string) (any, error) {
	switch op {
	case tp.Add:
		return l + r, nil
	case tp.Eq:
		return b2i(l == r), nil
	case tp.Ne:
		return b2i(l != r), nil
	}

	return nil, errors.Wrap(ErrUnknownOperator, "%v on string", op)
}

func b2i(x bool) int64 {
	if x {
		return 1
	}

	return 0
}
