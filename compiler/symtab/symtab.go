package symtab

import (
	"tlog.app/go/errors"
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/quad/compiler/ir"
	"github.com/slowlang/quad/compiler/mem"
	"github.com/slowlang/quad/compiler/tp"
)

type (
	Var struct {
		Name  string
		Type  tp.Type
		Addr  ir.Addr
		Param bool
	}

	// Table is one flat scope. Names keep declaration order.
	Table struct {
		vars  map[string]*Var
		names []string
	}

	Func struct {
		Name   string
		Ret    tp.Type
		Params []*Var
		Locals *Table

		// hidden cells that keep temporaries alive across calls
		spills []*Var

		Entry ir.Addr
	}

	// Directory is the function directory.
	// The synthetic Global function holds top-level variables.
	Directory struct {
		space *mem.Space

		funcs map[string]*Func
		order []*Func

		cur *Func
	}
)

const Global = "global"

var ErrUnknownFunc = errors.New("unknown function")

func NewTable() *Table {
	return &Table{vars: map[string]*Var{}}
}

func (t *Table) Add(v *Var) bool {
	if _, ok := t.vars[v.Name]; ok {
		return false
	}

	t.vars[v.Name] = v
	t.names = append(t.names, v.Name)

	return true
}

func (t *Table) Get(name string) (*Var, bool) {
	v, ok := t.vars[name]
	return v, ok
}

func (t *Table) Len() int { return len(t.names) }

// Vars returns variables in declaration order.
func (t *Table) Vars() []*Var {
	r := make([]*Var, len(t.names))

	for i, n := range t.names {
		r[i] = t.vars[n]
	}

	return r
}

func NewDirectory(space *mem.Space) *Directory {
	d := &Directory{space: space}
	d.Reset()

	return d
}

// Reset forgets every declaration and makes the global scope current.
// It doesn't touch the address space.
func (d *Directory) Reset() {
	g := &Func{Name: Global, Ret: tp.Void, Locals: NewTable(), Entry: ir.Nil}

	d.funcs = map[string]*Func{Global: g}
	d.order = nil
	d.cur = g
}

// Declare adds a function and makes it current.
// It returns false if the name is taken.
func (d *Directory) Declare(name string, ret tp.Type) bool {
	if _, ok := d.funcs[name]; ok {
		return false
	}

	f := &Func{Name: name, Ret: ret, Locals: NewTable(), Entry: ir.Nil}

	d.funcs[name] = f
	d.order = append(d.order, f)
	d.cur = f

	d.space.EnterFunction()

	return true
}

// SetCurrent switches the scope used by declarations and lookups.
func (d *Directory) SetCurrent(name string) error {
	f, ok := d.funcs[name]
	if !ok {
		return errors.Wrap(ErrUnknownFunc, "%v", name)
	}

	d.cur = f

	return nil
}

func (d *Directory) Current() *Func { return d.cur }

func (d *Directory) Func(name string) (*Func, bool) {
	f, ok := d.funcs[name]
	return f, ok
}

// Funcs returns user functions in declaration order, without Global.
func (d *Directory) Funcs() []*Func { return d.order }

func (d *Directory) Globals() *Table { return d.funcs[Global].Locals }

// DeclareParam adds the next parameter of the current function.
// Parameter i is placed at the i-th parameter address.
func (d *Directory) DeclareParam(name string, t tp.Type) (bool, error) {
	f := d.cur

	if _, ok := f.Locals.Get(name); ok {
		return false, nil
	}

	a, err := d.space.Assign(t, mem.Parameter)
	if err != nil {
		return false, errors.Wrap(err, "param %v", name)
	}

	v := &Var{Name: name, Type: t, Addr: a, Param: true}

	f.Locals.Add(v)
	f.Params = append(f.Params, v)

	return true, nil
}

// DeclareVar adds a variable to the global table or to the current function.
func (d *Directory) DeclareVar(name string, t tp.Type, global bool) (bool, error) {
	f := d.cur

	if global {
		f = d.funcs[Global]
	}

	return d.DeclareIn(f, name, t)
}

// DeclareIn adds a variable to the table of f.
// Variables of the Global function are placed in the GLOBAL segment, others in LOCAL.
func (d *Directory) DeclareIn(f *Func, name string, t tp.Type) (bool, error) {
	seg := mem.Local

	if f.Name == Global {
		seg = mem.Global
	}

	if _, ok := f.Locals.Get(name); ok {
		return false, nil
	}

	a, err := d.space.Assign(t, seg)
	if err != nil {
		return false, errors.Wrap(err, "var %v", name)
	}

	f.Locals.Add(&Var{Name: name, Type: t, Addr: a})

	return true, nil
}

// Lookup resolves name in the current function, then in the global table.
func (d *Directory) Lookup(name string) (*Var, bool) {
	return d.Resolve(d.cur, name)
}

// Resolve looks name up in f, then in the global table.
// There are no nested scopes.
func (d *Directory) Resolve(f *Func, name string) (*Var, bool) {
	if v, ok := f.Locals.Get(name); ok {
		return v, true
	}

	return d.funcs[Global].Locals.Get(name)
}

// Spill reserves a nameless LOCAL cell of type t in the record of f,
// right after the named locals and previous spills of that type.
func (d *Directory) Spill(f *Func, t tp.Type) (ir.Addr, error) {
	r, ok := d.space.Layout().Range(mem.Local, t)
	if !ok {
		return ir.Nil, errors.New("no local range for %v", t)
	}

	a := r.Lo

	next := func(v *Var) {
		if !v.Param && v.Type == t && v.Addr >= a {
			a = v.Addr + 1
		}
	}

	for _, v := range f.Locals.Vars() {
		next(v)
	}

	for _, v := range f.spills {
		next(v)
	}

	if a > r.Hi {
		return ir.Nil, errors.Wrap(mem.ErrMemoryExhausted, "%v: spill %v", f.Name, t)
	}

	f.spills = append(f.spills, &Var{Type: t, Addr: a})

	return a, nil
}

// Size is the activation record size: parameters, locals and spills.
func (f *Func) Size() int {
	return f.Locals.Len() + len(f.spills)
}

func (f *Func) Void() bool { return f.Ret == tp.Void }

// Info converts f to its compiled form.
func (f *Func) Info() ir.Func {
	ps := make([]tp.Type, len(f.Params))

	for i, p := range f.Params {
		ps[i] = p.Type
	}

	return ir.Func{
		Name:   f.Name,
		Ret:    f.Ret,
		Params: ps,
		Size:   f.Size(),
		Entry:  f.Entry,
	}
}

func (v *Var) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 4)
	b = e.AppendString(b, "name")
	b = e.AppendString(b, v.Name)
	b = e.AppendString(b, "type")
	b = v.Type.TlogAppend(b)
	b = e.AppendKeyInt64(b, "addr", int64(v.Addr))
	b = e.AppendString(b, "kind")

	if v.Param {
		b = e.AppendString(b, "param")
	} else {
		b = e.AppendString(b, "var")
	}

	return b
}
