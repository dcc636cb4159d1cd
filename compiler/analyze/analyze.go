package analyze

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/quad/compiler/ast"
	"github.com/slowlang/quad/compiler/ir"
	"github.com/slowlang/quad/compiler/mem"
	"github.com/slowlang/quad/compiler/set"
	"github.com/slowlang/quad/compiler/symtab"
	"github.com/slowlang/quad/compiler/tp"
)

type (
	// Space is the part of the address space the generator allocates from.
	Space interface {
		Temp(t tp.Type) (ir.Addr, error)
		Constant(v any, t tp.Type) (ir.Addr, error)
		Constants() []ir.Const
		Segment(a ir.Addr) (mem.Segment, error)
	}

	// Generator type-checks a CST and emits quadruples in one pass.
	// A Generator is good for one compilation.
	Generator struct {
		space Space
		dir   *symtab.Directory

		quads []ir.Quad
		stack []item

		pending set.Bits[int] // ERA and GOSUB quads waiting for their callee
		callee  map[int]*symtab.Func

		errs []error
	}
)

func New(space Space, dir *symtab.Directory) *Generator {
	return &Generator{
		space:   space,
		dir:     dir,
		pending: set.MakeBits(0),
		callee:  map[int]*symtab.Func{},
	}
}

// Analyze compiles x. errs holds semantic errors; p is nil if there are any.
// err is reserved for fatal conditions such as memory exhaustion.
func (g *Generator) Analyze(ctx context.Context, x *ast.Program) (p *ir.Program, errs []error, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "analyze: program", "name", x.Name.Name)
	defer func() {
		tr.Finish("quads", len(g.quads), "errs", len(errs), "err", &err)
	}()

	err = g.declare(ctx, x)
	if err != nil {
		return nil, nil, errors.Wrap(err, "declare")
	}

	global, _ := g.dir.Func(symtab.Global)

	err = g.stmts(ctx, global, x.Main.Stmts)
	if err != nil {
		return nil, nil, errors.Wrap(err, "main")
	}

	g.emit(tp.Halt, ir.Nil, ir.Nil, ir.Nil)

	for _, f := range x.Funcs {
		fn, ok := g.dir.Func(f.Name.Name)
		if !ok || fn.Entry != ir.Nil || fn.Name == symtab.Global {
			continue // redeclared
		}

		fn.Entry = ir.Addr(len(g.quads))

		tr.V("layout").Printw("function entry", "name", fn.Name, "entry", fn.Entry)

		err = g.stmts(ctx, fn, f.Body)
		if err != nil {
			return nil, nil, errors.Wrap(err, "func %v", fn.Name)
		}

		g.emit(tp.EndProc, ir.Nil, ir.Nil, ir.Nil)
	}

	g.resolveCalls(ctx)

	if len(g.stack) != 0 {
		panic(internal("work stack not empty: %d items", len(g.stack)))
	}

	if tr.If("dump_quads") {
		for i, q := range g.quads {
			tr.Printw("quad", "i", i, "q", q)
		}
	}

	if len(g.errs) != 0 {
		return nil, g.errs, nil
	}

	p = &ir.Program{
		Quads:  g.quads,
		Consts: g.space.Constants(),
	}

	for _, fn := range g.dir.Funcs() {
		p.Funcs = append(p.Funcs, fn.Info())
	}

	return p, nil, nil
}

// declare fills the directory: globals, then every function signature with
// its parameters and locals, so calls can be checked before bodies are laid out.
func (g *Generator) declare(ctx context.Context, x *ast.Program) (err error) {
	global, _ := g.dir.Func(symtab.Global)

	err = g.declareVars(ctx, global, x.Vars)
	if err != nil {
		return err
	}

	for _, f := range x.Funcs {
		ret := tp.Void

		if !f.Void() {
			ret, _ = tp.ParseType(f.Ret.Name)
		}

		if !g.dir.Declare(f.Name.Name, ret) {
			g.errorf(f.Name.Pos, ErrRedeclaredFunc, "%v", f.Name.Name)
			continue
		}

		fn := g.dir.Current()

		for _, prm := range f.Params {
			t, _ := tp.ParseType(prm.Type.Name)

			ok, err := g.dir.DeclareParam(prm.Name.Name, t)
			if err != nil {
				return errors.Wrap(err, "func %v", fn.Name)
			}

			if !ok {
				g.errorf(prm.Name.Pos, ErrRedeclaredParam, "%v in %v", prm.Name.Name, fn.Name)
			}
		}

		err = g.declareVars(ctx, fn, f.Vars)
		if err != nil {
			return errors.Wrap(err, "func %v", fn.Name)
		}
	}

	return g.dir.SetCurrent(symtab.Global)
}

func (g *Generator) declareVars(ctx context.Context, fn *symtab.Func, vars []*ast.VarDecl) error {
	for _, d := range vars {
		t, _ := tp.ParseType(d.Type.Name)

		for _, id := range d.Names {
			ok, err := g.dir.DeclareIn(fn, id.Name, t)
			if err != nil {
				return err
			}

			if !ok {
				g.errorf(id.Pos, ErrRedeclaredVar, "%v", id.Name)
			}
		}
	}

	return nil
}

// resolveCalls fills in every ERA size and GOSUB target,
// now that all bodies are laid out and record sizes are final.
func (g *Generator) resolveCalls(ctx context.Context) {
	tr := tlog.SpanFromContext(ctx)

	tr.V("layout").Printw("resolve calls", "pending", &g.pending)

	for _, at := range g.pending.Slice() {
		fn := g.callee[at]
		q := &g.quads[at]

		switch q.Op {
		case tp.Era:
			q.L = ir.Addr(fn.Size())
		case tp.Gosub:
			if fn.Entry == ir.Nil {
				panic(internal("call to %v at %d: function has no entry", fn.Name, at))
			}

			q.L = fn.Entry

			tr.V("layout").Printw("resolve call", "at", at, "func", fn.Name, "entry", fn.Entry)
		default:
			panic(internal("resolve %v at %d: not a call", q.Op, at))
		}

		g.pending.Clear(at)
	}

	if n := g.pending.Size(); n != 0 {
		panic(internal("%d calls left unresolved", n))
	}
}

func (g *Generator) emit(op tp.Op, l, r, res ir.Addr) int {
	g.quads = append(g.quads, ir.Q(op, l, r, res))

	return len(g.quads) - 1
}

// patch sets the target of the jump at i. Each jump is patched once.
func (g *Generator) patch(i int, target int) {
	q := &g.quads[i]

	if !q.Op.Jump() {
		panic(internal("patch %v at %d: not a jump", q.Op, i))
	}

	if q.Res != ir.Nil {
		panic(internal("patch %v at %d: already points to %v", q.Op, i, q.Res))
	}

	q.Res = ir.Addr(target)
}

func (g *Generator) errorf(pos ast.Pos, kind error, f string, args ...any) {
	g.errs = append(g.errs, semantic(pos, kind, f, args...))
}
