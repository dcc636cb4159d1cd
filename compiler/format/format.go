package format

import (
	"context"
	"strconv"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"

	"github.com/slowlang/quad/compiler/ir"
	"github.com/slowlang/quad/compiler/set"
	"github.com/slowlang/quad/compiler/tp"
)

// Program appends the listing of p: quadruples with their indices,
// then the function directory and the constant table.
// Jump targets are marked with '>', function entries get a label line.
func Program(ctx context.Context, b []byte, p *ir.Program) (_ []byte, err error) {
	targets, err := jumpTargets(p)
	if err != nil {
		return nil, err
	}

	entries := map[ir.Addr]string{}

	for _, f := range p.Funcs {
		entries[f.Entry] = f.Name
	}

	b = append(b, "quads:\n"...)

	for i, q := range p.Quads {
		if name, ok := entries[ir.Addr(i)]; ok {
			b = app(b, 0, "%s:\n", name)
		}

		mark := ' '
		if targets.IsSet(i) {
			mark = '>'
		}

		b = app(b, 1, "%c %4d  ", mark, i)
		b = q.Append(b)
		b = append(b, '\n')
	}

	if len(p.Funcs) != 0 {
		b = append(b, "\nfuncs:\n"...)

		for _, f := range p.Funcs {
			b = Func(b, 1, f)
		}
	}

	if len(p.Consts) != 0 {
		b = append(b, "\nconsts:\n"...)

		for _, c := range p.Consts {
			b = Const(b, 1, c)
		}
	}

	return b, nil
}

func Func(b []byte, d int, f ir.Func) []byte {
	b = app(b, d, "%s(", f.Name)

	for i, t := range f.Params {
		if i != 0 {
			b = append(b, ", "...)
		}

		b = append(b, t.String()...)
	}

	b = append(b, ')')

	if f.Ret != tp.Void {
		b = app(b, 0, " %v", f.Ret)
	}

	return app(b, 0, "  size %d  entry %v\n", f.Size, f.Entry)
}

func Const(b []byte, d int, c ir.Const) []byte {
	b = app(b, d, "%5d  %-6v  ", c.Addr, c.Type)

	if s, ok := c.Value.(string); ok {
		b = strconv.AppendQuote(b, s)
	} else {
		b = app(b, 0, "%v", c.Value)
	}

	return append(b, '\n')
}

func jumpTargets(p *ir.Program) (set.Bits[int], error) {
	s := set.MakeBits(0)

	for i, q := range p.Quads {
		var to ir.Addr

		switch {
		case q.Op.Jump():
			to = q.Res
		case q.Op == tp.Gosub:
			to = q.L
		default:
			continue
		}

		if to < 0 || int(to) > len(p.Quads) {
			return s, errors.New("quad %d: %v: target %v out of program", i, q.Op, to)
		}

		s.Set(int(to))
	}

	return s, nil
}

func app(b []byte, d int, f string, args ...any) []byte {
	const tabs = "\t\t\t\t\t\t\t\t"
	b = append(b, tabs[:d]...)
	b = hfmt.Appendf(b, f, args...)
	return b
}
