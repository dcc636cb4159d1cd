package analyze

import (
	"context"

	"tlog.app/go/errors"

	"github.com/slowlang/quad/compiler/ast"
	"github.com/slowlang/quad/compiler/ir"
	"github.com/slowlang/quad/compiler/mem"
	"github.com/slowlang/quad/compiler/symtab"
	"github.com/slowlang/quad/compiler/tp"
)

func (g *Generator) stmts(ctx context.Context, fn *symtab.Func, l []ast.Stmt) error {
	for _, s := range l {
		err := g.stmt(ctx, fn, s)
		if err != nil {
			return err
		}
	}

	return nil
}

func (g *Generator) stmt(ctx context.Context, fn *symtab.Func, s ast.Stmt) (err error) {
	switch s := s.(type) {
	case *ast.Assign:
		err = g.expr(ctx, fn, s.Value)
		if err != nil {
			return errors.Wrap(err, "assign %v", s.Target.Name)
		}

		return g.reduceAssignment(ctx, fn, s.Target)
	case *ast.CallStmt:
		return g.call(ctx, fn, s.Call, false)
	case *ast.Print:
		return g.print(ctx, fn, s)
	case *ast.Read:
		return g.read(ctx, fn, s)
	case *ast.If:
		return g.ifStmt(ctx, fn, s)
	case *ast.While:
		return g.while(ctx, fn, s)
	case *ast.Return:
		return g.ret(ctx, fn, s)
	case *ast.Block:
		return g.stmts(ctx, fn, s.Stmts)
	}

	panic(internal("%v", UnsupportedNodeError{T: s}))
}

func (g *Generator) print(ctx context.Context, fn *symtab.Func, s *ast.Print) error {
	for _, a := range s.Args {
		err := g.expr(ctx, fn, a)
		if err != nil {
			return errors.Wrap(err, "print")
		}

		v := g.popOperand()
		if v.typ == tp.Error {
			continue
		}

		g.emit(tp.Print, ir.Nil, ir.Nil, v.addr)
	}

	return nil
}

func (g *Generator) read(ctx context.Context, fn *symtab.Func, s *ast.Read) error {
	for _, id := range s.Targets {
		v, err := g.resolve(ctx, fn, id)
		if err != nil {
			return err
		}

		if v == nil {
			continue
		}

		def := ir.Nil

		if v.Param {
			// parameter cells are untyped, so give the default explicitly
			def, err = g.space.Constant(readDefault(v.Type), v.Type)
			if err != nil {
				return errors.Wrap(err, "constant")
			}
		}

		g.emit(tp.Read, def, ir.Nil, v.Addr)
	}

	return nil
}

// cond compiles a condition and emits GOTOF with an open target.
func (g *Generator) cond(ctx context.Context, fn *symtab.Func, x *ast.Expr) (int, error) {
	err := g.expr(ctx, fn, x)
	if err != nil {
		return 0, errors.Wrap(err, "condition")
	}

	v := g.popOperand()

	if v.typ != tp.Int && v.typ != tp.Error {
		g.errorf(x.Pos, ErrCondition, "got %v", v.typ)
	}

	return g.emit(tp.GotoF, v.addr, ir.Nil, ir.Nil), nil
}

func (g *Generator) ifStmt(ctx context.Context, fn *symtab.Func, s *ast.If) error {
	gotof, err := g.cond(ctx, fn, s.Cond)
	if err != nil {
		return errors.Wrap(err, "if")
	}

	err = g.stmts(ctx, fn, s.Then.Stmts)
	if err != nil {
		return err
	}

	if s.Else == nil {
		g.patch(gotof, len(g.quads))

		return nil
	}

	skip := g.emit(tp.Goto, ir.Nil, ir.Nil, ir.Nil)

	g.patch(gotof, len(g.quads))

	err = g.stmts(ctx, fn, s.Else.Stmts)
	if err != nil {
		return err
	}

	g.patch(skip, len(g.quads))

	return nil
}

func (g *Generator) while(ctx context.Context, fn *symtab.Func, s *ast.While) error {
	start := len(g.quads)

	gotof, err := g.cond(ctx, fn, s.Cond)
	if err != nil {
		return errors.Wrap(err, "while")
	}

	err = g.stmts(ctx, fn, s.Body.Stmts)
	if err != nil {
		return err
	}

	g.emit(tp.Goto, ir.Nil, ir.Nil, ir.Addr(start))
	g.patch(gotof, len(g.quads))

	return nil
}

func (g *Generator) ret(ctx context.Context, fn *symtab.Func, s *ast.Return) error {
	switch {
	case fn.Name == symtab.Global:
		g.errorf(s.Pos, ErrReturnOutside, "")
		return nil
	case fn.Void() && s.Value != nil:
		g.errorf(s.Pos, ErrReturnValue, "%v", fn.Name)
		return nil
	case fn.Void():
		g.emit(tp.Return, ir.Nil, ir.Nil, ir.Nil)
		return nil
	case s.Value == nil:
		g.errorf(s.Pos, ErrMissingReturn, "%v returns %v", fn.Name, fn.Ret)
		return nil
	}

	err := g.expr(ctx, fn, s.Value)
	if err != nil {
		return errors.Wrap(err, "return")
	}

	v := g.popOperand()
	if v.typ == tp.Error {
		return nil
	}

	if !tp.Assignable(fn.Ret, v.typ) {
		g.errorf(s.Pos, ErrReturnType, "%v returns %v, got %v", fn.Name, fn.Ret, v.typ)
		return nil
	}

	g.emit(tp.Return, v.addr, ir.Nil, ir.Nil)

	return nil
}

// call emits ERA, one PARAM per argument and GOSUB.
// The ERA size and GOSUB target are filled in by resolveCalls once every body is laid out.
// If value is set the result is pushed as an operand.
func (g *Generator) call(ctx context.Context, fn *symtab.Func, c *ast.Call, value bool) (err error) {
	callee, ok := g.dir.Func(c.Name.Name)
	if !ok || callee.Name == symtab.Global {
		g.errorf(c.Name.Pos, ErrUndeclaredFunc, "%v", c.Name.Name)

		return g.discardArgs(ctx, fn, c, value)
	}

	if value && callee.Void() {
		g.errorf(c.Pos, ErrVoidInExpr, "%v", callee.Name)

		return g.discardArgs(ctx, fn, c, value)
	}

	if len(c.Args) != len(callee.Params) {
		g.errorf(c.Pos, ErrArgCount, "%v takes %d, got %d", callee.Name, len(callee.Params), len(c.Args))
	}

	if fn.Name != symtab.Global {
		err = g.spill(fn)
		if err != nil {
			return errors.Wrap(err, "call %v", callee.Name)
		}
	}

	era := g.emit(tp.Era, ir.Nil, ir.Nil, ir.Nil)

	g.pending.Set(era)
	g.callee[era] = callee

	for i, a := range c.Args {
		err = g.expr(ctx, fn, a)
		if err != nil {
			return errors.Wrap(err, "call %v: arg %d", callee.Name, i)
		}

		v := g.popOperand()

		if i >= len(callee.Params) || v.typ == tp.Error {
			continue
		}

		p := callee.Params[i]

		if !tp.Assignable(p.Type, v.typ) {
			g.errorf(a.Pos, ErrArgType, "%v arg %d (%v): %v", callee.Name, i, p.Name, v.typ)
			continue
		}

		if p.Type != v.typ {
			v.addr, err = g.widen(v.addr, p.Type)
			if err != nil {
				return err
			}
		}

		g.emit(tp.Param, v.addr, ir.Addr(i), ir.Nil)
	}

	res := ir.Nil

	if !callee.Void() {
		res, err = g.space.Temp(callee.Ret)
		if err != nil {
			return errors.Wrap(err, "temporary")
		}
	}

	at := g.emit(tp.Gosub, ir.Nil, ir.Nil, res)

	g.pending.Set(at)
	g.callee[at] = callee

	if value {
		g.pushOperand(res, callee.Ret)
	}

	return nil
}

// spill moves temporaries waiting on the work stack into private cells of fn.
// The TEMPORAL segment is shared by all activations,
// so a recursive call would overwrite them before they are used.
func (g *Generator) spill(fn *symtab.Func) error {
	for i, x := range g.stack {
		if x.isOp || x.typ == tp.Error {
			continue
		}

		seg, err := g.space.Segment(x.addr)
		if err != nil {
			return errors.Wrap(err, "operand")
		}

		if seg != mem.Temporal {
			continue
		}

		a, err := g.dir.Spill(fn, x.typ)
		if err != nil {
			return errors.Wrap(err, "spill")
		}

		g.emit(tp.Assign, x.addr, ir.Nil, a)
		g.stack[i].addr = a
	}

	return nil
}

// discardArgs still checks the arguments of a call that can't be emitted.
func (g *Generator) discardArgs(ctx context.Context, fn *symtab.Func, c *ast.Call, value bool) error {
	for _, a := range c.Args {
		err := g.expr(ctx, fn, a)
		if err != nil {
			return err
		}

		g.popOperand()
	}

	if value {
		g.pushOperand(ir.Nil, tp.Error)
	}

	return nil
}
