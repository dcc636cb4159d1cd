package analyze

import (
	"context"
	"strconv"

	"tlog.app/go/errors"

	"github.com/slowlang/quad/compiler/ast"
	"github.com/slowlang/quad/compiler/ir"
	"github.com/slowlang/quad/compiler/symtab"
	"github.com/slowlang/quad/compiler/tp"
)

// item is an entry of the work stack: a pending operator or an operand.
type item struct {
	isOp bool
	op   tp.Op

	addr ir.Addr
	typ  tp.Type
}

func (g *Generator) pushOperand(a ir.Addr, t tp.Type) {
	g.stack = append(g.stack, item{addr: a, typ: t})
}

func (g *Generator) pushOperator(op tp.Op) {
	g.stack = append(g.stack, item{isOp: true, op: op})
}

func (g *Generator) pop() item {
	if len(g.stack) == 0 {
		panic(internal("empty work stack"))
	}

	x := g.stack[len(g.stack)-1]
	g.stack = g.stack[:len(g.stack)-1]

	return x
}

func (g *Generator) popOperand() item {
	x := g.pop()
	if x.isOp {
		panic(internal("operand expected, got operator %v", x.op))
	}

	return x
}

func (g *Generator) popOperator() tp.Op {
	x := g.pop()
	if !x.isOp {
		panic(internal("operator expected, got operand %v", x.addr))
	}

	return x.op
}

// reduceExpression folds "left op right" on top of the stack into a fresh temporary.
func (g *Generator) reduceExpression(pos ast.Pos) error {
	r := g.popOperand()
	op := g.popOperator()
	l := g.popOperand()

	if l.typ == tp.Error || r.typ == tp.Error {
		g.pushOperand(ir.Nil, tp.Error)
		return nil
	}

	t := tp.Result(l.typ, op, r.typ)
	if t == tp.Error {
		g.errorf(pos, ErrIncompatibleTypes, "%v %v %v", l.typ, op, r.typ)
		g.pushOperand(ir.Nil, tp.Error)

		return nil
	}

	tmp, err := g.space.Temp(t)
	if err != nil {
		return errors.Wrap(err, "temporary")
	}

	g.emit(op, l.addr, r.addr, tmp)
	g.pushOperand(tmp, t)

	return nil
}

// reduceAssignment stores the operand on top of the stack into target.
func (g *Generator) reduceAssignment(ctx context.Context, fn *symtab.Func, target ast.Ident) error {
	v := g.popOperand()

	dst, err := g.resolve(ctx, fn, target)
	if err != nil {
		return err
	}

	if dst == nil || v.typ == tp.Error {
		return nil
	}

	if !tp.Assignable(dst.Type, v.typ) {
		g.errorf(target.Pos, ErrIncompatibleAssign, "%v (%v) = %v", target.Name, dst.Type, v.typ)
		return nil
	}

	if dst.Param && dst.Type != v.typ {
		v.addr, err = g.widen(v.addr, dst.Type)
		if err != nil {
			return err
		}
	}

	g.emit(tp.Assign, v.addr, ir.Nil, dst.Addr)

	return nil
}

// widen copies a into a new temporary of type t.
// Parameter cells are untyped, so values stored there are converted first.
func (g *Generator) widen(a ir.Addr, t tp.Type) (ir.Addr, error) {
	tmp, err := g.space.Temp(t)
	if err != nil {
		return ir.Nil, errors.Wrap(err, "temporary")
	}

	g.emit(tp.Assign, a, ir.Nil, tmp)

	return tmp, nil
}

// readDefault is the value READ stores into a cell of type t.
func readDefault(t tp.Type) any {
	switch t {
	case tp.Float:
		return float64(0)
	case tp.String:
		return ""
	}

	return int64(0)
}

// resolve finds the variable named by id. An undeclared name is reported once
// and then declared as int in fn, so later uses don't repeat the error.
// It returns nil var if the name couldn't be resolved.
func (g *Generator) resolve(ctx context.Context, fn *symtab.Func, id ast.Ident) (*symtab.Var, error) {
	if v, ok := g.dir.Resolve(fn, id.Name); ok {
		return v, nil
	}

	g.errorf(id.Pos, ErrUndeclaredVar, "%v", id.Name)

	_, err := g.dir.DeclareIn(fn, id.Name, tp.Int)
	if err != nil {
		return nil, err
	}

	return nil, nil
}

func (g *Generator) expr(ctx context.Context, fn *symtab.Func, x *ast.Expr) (err error) {
	err = g.exp(ctx, fn, x.First)
	if err != nil {
		return err
	}

	for _, r := range x.Rest {
		err = g.binary(ctx, fn, x.Pos, r.Op, func() error { return g.exp(ctx, fn, r.X) })
		if err != nil {
			return err
		}
	}

	return nil
}

func (g *Generator) exp(ctx context.Context, fn *symtab.Func, x *ast.Exp) (err error) {
	err = g.term(ctx, fn, x.First)
	if err != nil {
		return err
	}

	for _, r := range x.Rest {
		err = g.binary(ctx, fn, x.Pos, r.Op, func() error { return g.term(ctx, fn, r.X) })
		if err != nil {
			return err
		}
	}

	return nil
}

func (g *Generator) term(ctx context.Context, fn *symtab.Func, x *ast.Term) (err error) {
	err = g.factor(ctx, fn, x.First)
	if err != nil {
		return err
	}

	for _, r := range x.Rest {
		err = g.binary(ctx, fn, x.Pos, r.Op, func() error { return g.factor(ctx, fn, r.X) })
		if err != nil {
			return err
		}
	}

	return nil
}

// binary pushes op, compiles the right operand and folds the pair.
// The left operand is already on the stack, so chains fold left to right.
func (g *Generator) binary(ctx context.Context, fn *symtab.Func, pos ast.Pos, opname string, right func() error) error {
	op, ok := tp.ParseOp(opname)
	if !ok || !(op.Arith() || op.Relational()) {
		panic(internal("unknown operator %q", opname))
	}

	g.pushOperator(op)

	err := right()
	if err != nil {
		return err
	}

	return g.reduceExpression(pos)
}

func (g *Generator) factor(ctx context.Context, fn *symtab.Func, x *ast.Factor) error {
	switch {
	case x.Paren != nil:
		return g.expr(ctx, fn, x.Paren)
	case x.Lit != nil:
		return g.literal(ctx, x.Lit, "")
	case x.Var != nil:
		v, err := g.resolve(ctx, fn, *x.Var)
		if err != nil {
			return err
		}

		if v == nil {
			g.pushOperand(ir.Nil, tp.Error)
			return nil
		}

		g.pushOperand(v.Addr, v.Type)

		return nil
	case x.Call != nil:
		return g.call(ctx, fn, x.Call, true)
	case x.Signed != nil:
		return g.signed(ctx, fn, x)
	}

	panic(internal("%v", UnsupportedNodeError{T: x}))
}

func (g *Generator) signed(ctx context.Context, fn *symtab.Func, x *ast.Factor) error {
	if lit := x.Signed.Lit; lit != nil && lit.Kind != ast.StringLit {
		return g.literal(ctx, lit, x.Sign)
	}

	if x.Sign == "+" {
		err := g.factor(ctx, fn, x.Signed)
		if err != nil {
			return err
		}

		v := g.stack[len(g.stack)-1]
		if v.typ != tp.Error && !v.typ.Numeric() {
			g.errorf(x.Pos, ErrIncompatibleTypes, "unary + %v", v.typ)
			g.stack[len(g.stack)-1] = item{addr: ir.Nil, typ: tp.Error}
		}

		return nil
	}

	// -x is compiled as 0 - x with a zero of int type; the cube widens it if x is float.
	zero, err := g.space.Constant(int64(0), tp.Int)
	if err != nil {
		return errors.Wrap(err, "constant")
	}

	g.pushOperand(zero, tp.Int)
	g.pushOperator(tp.Sub)

	err = g.factor(ctx, fn, x.Signed)
	if err != nil {
		return err
	}

	return g.reduceExpression(x.Pos)
}

func (g *Generator) literal(ctx context.Context, x *ast.Lit, sign string) (err error) {
	var v any
	var t tp.Type

	text := x.Text
	if sign == "-" {
		text = "-" + text
	}

	switch x.Kind {
	case ast.IntLit:
		t = tp.Int
		v, err = strconv.ParseInt(text, 10, 64)
	case ast.FloatLit:
		t = tp.Float
		v, err = strconv.ParseFloat(text, 64)
	case ast.StringLit:
		t = tp.String
		v = x.Text
	default:
		panic(internal("%v", UnsupportedNodeError{T: x}))
	}

	if err != nil {
		g.errorf(x.Pos, ErrBadLiteral, "%v", text)
		g.pushOperand(ir.Nil, tp.Error)

		return nil
	}

	a, err := g.space.Constant(v, t)
	if err != nil {
		return errors.Wrap(err, "constant")
	}

	g.pushOperand(a, t)

	return nil
}
