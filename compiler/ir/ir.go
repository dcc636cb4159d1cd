package ir

import (
	"strconv"

	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/quad/compiler/tp"
)

type (
	// Addr is a virtual address, or an instruction index for jumps and GOSUB.
	Addr int

	// Quad is a four-address instruction.
	// Jumps keep the target in Res, ERA keeps the frame size in L,
	// PARAM keeps the parameter index in R, GOSUB keeps the entry in L.
	Quad struct {
		Op  tp.Op
		L   Addr
		R   Addr
		Res Addr
	}

	// Const is a materialized literal. Value is int64, float64 or string.
	Const struct {
		Addr  Addr
		Type  tp.Type
		Value any
	}

	Func struct {
		Name   string
		Ret    tp.Type
		Params []tp.Type
		Size   int
		Entry  Addr
	}

	// Program is everything the VM needs: code, constants and the function directory.
	Program struct {
		Quads  []Quad
		Consts []Const
		Funcs  []Func
	}
)

const Nil Addr = -1

func Q(op tp.Op, l, r, res Addr) Quad {
	return Quad{Op: op, L: l, R: r, Res: res}
}

func (a Addr) String() string {
	if a == Nil {
		return "_"
	}

	return strconv.Itoa(int(a))
}

// String returns the textual form (op, l, r, res), with _ for absent operands.
func (q Quad) String() string {
	return string(q.Append(nil))
}

func (q Quad) Append(b []byte) []byte {
	b = append(b, '(')
	b = append(b, q.Op.String()...)

	for _, a := range [...]Addr{q.L, q.R, q.Res} {
		b = append(b, ", "...)

		if a == Nil {
			b = append(b, '_')
		} else {
			b = strconv.AppendInt(b, int64(a), 10)
		}
	}

	return append(b, ')')
}

func (q Quad) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 4)
	b = e.AppendString(b, "op")
	b = e.AppendString(b, q.Op.String())
	b = e.AppendKeyInt64(b, "l", int64(q.L))
	b = e.AppendKeyInt64(b, "r", int64(q.R))
	b = e.AppendKeyInt64(b, "res", int64(q.Res))

	return b
}

// Func returns the directory entry for name.
func (p *Program) Func(name string) (Func, bool) {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f, true
		}
	}

	return Func{}, false
}

// FuncAt returns the function whose body starts at ip.
func (p *Program) FuncAt(ip Addr) (Func, bool) {
	for _, f := range p.Funcs {
		if f.Entry == ip {
			return f, true
		}
	}

	return Func{}, false
}

// Text renders one quadruple per line.
func (p *Program) Text() string {
	var b []byte

	for _, q := range p.Quads {
		b = q.Append(b)
		b = append(b, '\n')
	}

	return string(b)
}
