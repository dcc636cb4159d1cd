package vm

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/quad/compiler/ir"
	"github.com/slowlang/quad/compiler/mem"
	"github.com/slowlang/quad/compiler/tp"
)

type (
	State int8

	// VM executes a Program one quadruple at a time.
	// It's not safe for concurrent use.
	VM struct {
		l mem.Layout

		strict   bool
		maxDepth int

		prog  *ir.Program
		funcs map[int]ir.Func // by entry

		ip    int
		state State
		steps int64

		global store
		temp   store
		consts store

		pending []*frame // made by ERA, filled by PARAM
		frames  []*frame // activated by GOSUB

		out []string
	}

	Option func(m *VM)
)

const (
	Running State = iota
	Halted
)

const (
	DefaultMaxDepth = 10000

	checkEvery = 1024
)

var ErrStackOverflow = errors.New("call stack overflow")

// Strict makes ENDPROC outside of any function a fault.
// By default it halts the machine.
func Strict() Option {
	return func(m *VM) { m.strict = true }
}

// MaxDepth limits active plus pending activation records. Zero means no limit.
func MaxDepth(n int) Option {
	return func(m *VM) { m.maxDepth = n }
}

func New(l mem.Layout, opts ...Option) *VM {
	m := &VM{
		l:        l,
		maxDepth: DefaultMaxDepth,
		state:    Halted,
	}

	for _, o := range opts {
		o(m)
	}

	return m
}

// Load resets the machine and installs p with its constant table.
func (m *VM) Load(p *ir.Program) error {
	consts := make(store, len(p.Consts))

	for _, c := range p.Consts {
		r, err := m.l.Find(c.Addr)
		if err != nil || r.Segment != mem.Constant {
			return errors.Wrap(ErrInvalidAddress, "constant %v", c.Addr)
		}

		v, err := convert(c.Value, r.Type)
		if err != nil {
			return errors.Wrap(err, "constant %v", c.Addr)
		}

		consts[c.Addr] = v
	}

	m.prog = p
	m.funcs = make(map[int]ir.Func, len(p.Funcs))

	for _, f := range p.Funcs {
		m.funcs[int(f.Entry)] = f
	}

	m.ip = 0
	m.state = Running
	m.steps = 0

	m.global = store{}
	m.temp = store{}
	m.consts = consts

	m.pending = m.pending[:0]
	m.frames = m.frames[:0]

	m.out = nil

	return nil
}

// Execute runs until HALT, a fault, or ctx is done.
// out is the PRINT log so far, also on error.
func (m *VM) Execute(ctx context.Context) (out []string, err error) {
	if m.prog == nil {
		return nil, ErrNotLoaded
	}

	if m.state == Halted {
		return m.out, ErrHalted
	}

	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "vm: execute", "quads", len(m.prog.Quads))
	defer func() {
		tr.Finish("steps", m.steps, "out", len(m.out), "err", &err)
	}()

	quads := m.prog.Quads

	for m.state == Running {
		if m.steps%checkEvery == 0 {
			if err = ctx.Err(); err != nil {
				return m.out, errors.Wrap(err, "at %d after %d steps", m.ip, m.steps)
			}
		}

		if m.ip == len(quads) {
			m.state = Halted
			break
		}

		q := quads[m.ip]

		if tr.If("vm_step") {
			tr.Printw("step", "ip", m.ip, "q", q, "depth", len(m.frames))
		}

		err = m.step(q)
		if err != nil {
			f := &Fault{IP: m.ip, Quad: q, Err: err}
			m.state = Halted

			return m.out, f
		}

		m.steps++
	}

	return m.out, nil
}

func (m *VM) step(q ir.Quad) (err error) {
	next := m.ip + 1

	switch q.Op {
	case tp.Add, tp.Sub, tp.Mul, tp.Div, tp.Gt, tp.Lt, tp.Ge, tp.Le, tp.Eq, tp.Ne:
		l, err := m.load(q.L)
		if err != nil {
			return err
		}

		r, err := m.load(q.R)
		if err != nil {
			return err
		}

		v, err := binary(q.Op, l, r)
		if err != nil {
			return err
		}

		err = m.store(q.Res, v)
		if err != nil {
			return err
		}
	case tp.Assign:
		v, err := m.load(q.L)
		if err != nil {
			return err
		}

		err = m.store(q.Res, v)
		if err != nil {
			return err
		}
	case tp.Print:
		v, err := m.load(q.Res)
		if err != nil {
			return err
		}

		m.out = append(m.out, Format(v))
	case tp.Read:
		err = m.read(q)
		if err != nil {
			return err
		}
	case tp.Goto:
		next = int(q.Res)
	case tp.GotoF, tp.GotoT:
		c, err := m.load(q.L)
		if err != nil {
			return err
		}

		t, err := truth(c)
		if err != nil {
			return err
		}

		if t == (q.Op == tp.GotoT) {
			next = int(q.Res)
		}
	case tp.Era:
		if m.maxDepth != 0 && len(m.frames)+len(m.pending) >= m.maxDepth {
			return errors.Wrap(ErrStackOverflow, "depth %d", len(m.frames))
		}

		m.pending = append(m.pending, newFrame(int(q.L)))
	case tp.Param:
		v, err := m.load(q.L)
		if err != nil {
			return err
		}

		err = m.storeParam(q.R, v)
		if err != nil {
			return err
		}
	case tp.Gosub:
		if len(m.pending) == 0 {
			return errors.Wrap(ErrNoFrame, "gosub without era")
		}

		f := m.pending[len(m.pending)-1]
		m.pending = m.pending[:len(m.pending)-1]

		fn := m.funcs[int(q.L)]

		f.name = fn.Name
		f.params = fn.Params
		f.ret = next
		f.result = q.Res

		err = f.bind(m.l.ParamBase())
		if err != nil {
			return err
		}

		m.frames = append(m.frames, f)

		next = int(q.L)
	case tp.Return:
		next, err = m.ret(q)
		if err != nil {
			return err
		}
	case tp.EndProc:
		if len(m.frames) == 0 {
			if m.strict {
				return ErrStrayEndproc
			}

			m.state = Halted

			return nil
		}

		f := m.frames[len(m.frames)-1]
		m.frames = m.frames[:len(m.frames)-1]

		next = f.ret
	case tp.Halt:
		m.state = Halted

		return nil
	default:
		return errors.Wrap(ErrUnknownOperator, "%v", q.Op)
	}

	if next < 0 || next > len(m.prog.Quads) {
		return errors.Wrap(ErrBadJump, "to %d", next)
	}

	m.ip = next

	return nil
}

// read stores the default carried in L, or the zero value of the target.
func (m *VM) read(q ir.Quad) error {
	r, _, err := m.segment(q.Res)
	if err != nil {
		return err
	}

	v := zero(m.cellType(r, q.Res))

	if q.L != ir.Nil {
		v, err = m.load(q.L)
		if err != nil {
			return err
		}
	}

	return m.store(q.Res, v)
}

// ret reads the value in the callee context, pops the record
// and writes the value in the caller context.
func (m *VM) ret(q ir.Quad) (next int, err error) {
	f, err := m.top()
	if err != nil {
		return 0, errors.Wrap(err, "return")
	}

	var v any

	if q.L != ir.Nil {
		v, err = m.load(q.L)
		if err != nil {
			return 0, err
		}
	}

	m.frames = m.frames[:len(m.frames)-1]

	if v != nil && f.result != ir.Nil {
		err = m.store(f.result, v)
		if err != nil {
			return 0, errors.Wrap(err, "return from %v", f.name)
		}
	}

	return f.ret, nil
}

func (m *VM) State() State { return m.state }

func (m *VM) IP() int { return m.ip }

// Output returns the PRINT log.
func (m *VM) Output() []string { return m.out }

// Depth is the number of active records.
func (m *VM) Depth() int { return len(m.frames) }

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Halted:
		return "halted"
	}

	return "state(?)"
}
