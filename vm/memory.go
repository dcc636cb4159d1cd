package vm

import (
	"tlog.app/go/errors"

	"github.com/slowlang/quad/compiler/ir"
	"github.com/slowlang/quad/compiler/mem"
	"github.com/slowlang/quad/compiler/tp"
)

type (
	store map[ir.Addr]any

	// frame is an activation record: private LOCAL and PARAMETER cells
	// plus where to come back to.
	frame struct {
		name   string
		size   int
		params []tp.Type
		cells  store

		ret    int
		result ir.Addr
	}
)

func newFrame(size int) *frame {
	return &frame{
		size:   size,
		cells:  make(store, size),
		result: ir.Nil,
	}
}

func (m *VM) top() (*frame, error) {
	if len(m.frames) == 0 {
		return nil, ErrNoFrame
	}

	return m.frames[len(m.frames)-1], nil
}

// segment finds the range of a and the store that holds it.
// Frame-relative cells come from the active record.
func (m *VM) segment(a ir.Addr) (mem.Range, store, error) {
	r, err := m.l.Find(a)
	if err != nil {
		return r, nil, errors.Wrap(ErrInvalidAddress, "%v", a)
	}

	switch r.Segment {
	case mem.Global:
		return r, m.global, nil
	case mem.Temporal:
		return r, m.temp, nil
	case mem.Constant:
		return r, m.consts, nil
	}

	f, err := m.top()
	if err != nil {
		return r, nil, errors.Wrap(err, "%v %v", r.Segment, a)
	}

	err = f.check(r, a)
	if err != nil {
		return r, nil, err
	}

	return r, f.cells, nil
}

func (f *frame) check(r mem.Range, a ir.Addr) error {
	if int(a-r.Lo) >= f.size {
		return errors.Wrap(ErrInvalidAddress, "%v outside of %v frame (size %d)", a, f.name, f.size)
	}

	return nil
}

// cellType is the type values stored at a are converted to.
// Parameter cells take the declared type of the active function.
func (m *VM) cellType(r mem.Range, a ir.Addr) tp.Type {
	if r.Segment != mem.Parameter {
		return r.Type
	}

	f, err := m.top()
	if err != nil {
		return r.Type
	}

	i := int(a - r.Lo)
	if i < len(f.params) {
		return f.params[i]
	}

	return r.Type
}

// bind converts the arguments passed so far to the declared parameter types.
func (f *frame) bind(base ir.Addr) error {
	for i, t := range f.params {
		a := base + ir.Addr(i)

		v, ok := f.cells[a]
		if !ok {
			continue
		}

		v, err := convert(v, t)
		if err != nil {
			return errors.Wrap(err, "%v param %d", f.name, i)
		}

		f.cells[a] = v
	}

	return nil
}

func (m *VM) load(a ir.Addr) (any, error) {
	r, s, err := m.segment(a)
	if err != nil {
		return nil, err
	}

	if v, ok := s[a]; ok {
		return v, nil
	}

	switch r.Segment {
	case mem.Constant, mem.Parameter:
		return nil, errors.Wrap(ErrUninitialized, "%v %v", r.Segment, a)
	}

	return zero(r.Type), nil
}

func (m *VM) store(a ir.Addr, v any) error {
	r, s, err := m.segment(a)
	if err != nil {
		return err
	}

	if r.Segment == mem.Constant {
		return errors.Wrap(ErrReadOnly, "%v", a)
	}

	v, err = convert(v, m.cellType(r, a))
	if err != nil {
		return errors.Wrap(err, "store %v", a)
	}

	s[a] = v

	return nil
}

// storeParam writes argument i into the record prepared by the last ERA.
func (m *VM) storeParam(i ir.Addr, v any) error {
	if len(m.pending) == 0 {
		return errors.Wrap(ErrNoFrame, "param %v without era", i)
	}

	f := m.pending[len(m.pending)-1]

	r, ok := m.l.Range(mem.Parameter, tp.Void)
	if !ok {
		return errors.Wrap(ErrInvalidAddress, "no parameter segment")
	}

	a := r.Lo + i
	if i < 0 || a > r.Hi {
		return errors.Wrap(ErrInvalidAddress, "param %v", i)
	}

	err := f.check(r, a)
	if err != nil {
		return err
	}

	f.cells[a] = v

	return nil
}
