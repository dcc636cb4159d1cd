package vm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tlog.app/go/errors"

	"github.com/slowlang/quad/compiler/ir"
	"github.com/slowlang/quad/compiler/mem"
	"github.com/slowlang/quad/compiler/tp"
)

const n = ir.Nil

func run(t *testing.T, p *ir.Program, opts ...Option) (*VM, []string, error) {
	t.Helper()

	m := New(mem.DefaultLayout(), opts...)

	err := m.Load(p)
	require.NoError(t, err)

	out, err := m.Execute(context.Background())

	return m, out, err
}

func consts(kv ...any) (r []ir.Const) {
	for i := 0; i < len(kv); i += 2 {
		c := ir.Const{Addr: ir.Addr(kv[i].(int)), Value: kv[i+1]}

		switch kv[i+1].(type) {
		case int64:
			c.Type = tp.Int
		case float64:
			c.Type = tp.Float
		case string:
			c.Type = tp.String
		}

		r = append(r, c)
	}

	return r
}

func assertFault(t *testing.T, err error, kind error, ip int) {
	t.Helper()

	var f *Fault
	if assert.True(t, errors.As(err, &f), "got %v", err) {
		assert.Equal(t, ip, f.IP)
	}

	assert.True(t, errors.Is(err, kind), "want %v, got %v", kind, err)
}

func TestArith(t *testing.T) {
	_, out, err := run(t, &ir.Program{
		Quads: []ir.Quad{
			ir.Q(tp.Add, 13000, 13001, 9000),
			ir.Q(tp.Div, 13000, 13001, 9001),
			ir.Q(tp.Div, 13000, 14000, 10000),
			ir.Q(tp.Lt, 13001, 14000, 9002),
			ir.Q(tp.Add, 15000, 15001, 11000),
			ir.Q(tp.Eq, 15000, 15000, 9003),
			ir.Q(tp.Print, n, n, 9000),
			ir.Q(tp.Print, n, n, 9001),
			ir.Q(tp.Print, n, n, 10000),
			ir.Q(tp.Print, n, n, 9002),
			ir.Q(tp.Print, n, n, 11000),
			ir.Q(tp.Print, n, n, 9003),
			ir.Q(tp.Halt, n, n, n),
		},
		Consts: consts(13000, int64(7), 13001, int64(2), 14000, 2.5, 15000, "ab", 15001, "cd"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"9", "3", "2.8", "1", "abcd", "1"}, out)
}

func TestWidenOnStore(t *testing.T) {
	m, out, err := run(t, &ir.Program{
		Quads: []ir.Quad{
			ir.Q(tp.Assign, 13000, n, 2000),
			ir.Q(tp.Print, n, n, 2000),
			ir.Q(tp.Halt, n, n, n),
		},
		Consts: consts(13000, int64(3)),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"3"}, out)
	assert.Equal(t, float64(3), m.Snapshot().Global[2000])
}

func TestDivisionByZero(t *testing.T) {
	_, out, err := run(t, &ir.Program{
		Quads: []ir.Quad{
			ir.Q(tp.Print, n, n, 13000),
			ir.Q(tp.Div, 13000, 13001, 9000),
			ir.Q(tp.Print, n, n, 9000),
		},
		Consts: consts(13000, int64(10), 13001, int64(0)),
	})

	assertFault(t, err, ErrDivisionByZero, 1)
	assert.Equal(t, []string{"10"}, out)

	_, _, err = run(t, &ir.Program{
		Quads: []ir.Quad{
			ir.Q(tp.Div, 14000, 14001, 10000),
		},
		Consts: consts(14000, 1.5, 14001, 0.0),
	})

	assertFault(t, err, ErrDivisionByZero, 0)
}

func TestJumps(t *testing.T) {
	// i = 0; while i < 3 { print(i); i = i + 1 }
	_, out, err := run(t, &ir.Program{
		Quads: []ir.Quad{
			ir.Q(tp.Assign, 13000, n, 1000),
			ir.Q(tp.Lt, 1000, 13001, 9000),
			ir.Q(tp.GotoF, 9000, n, 7),
			ir.Q(tp.Print, n, n, 1000),
			ir.Q(tp.Add, 1000, 13002, 9001),
			ir.Q(tp.Assign, 9001, n, 1000),
			ir.Q(tp.Goto, n, n, 1),
			ir.Q(tp.GotoT, 13002, n, 9),
			ir.Q(tp.Print, n, n, 13000),
			ir.Q(tp.Halt, n, n, n),
		},
		Consts: consts(13000, int64(0), 13001, int64(3), 13002, int64(1)),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"0", "1", "2"}, out)
}

func TestCallProtocol(t *testing.T) {
	// print(add(inc(1), 2)) with add(a, b) = a + b and inc(n) = n + 1
	m, out, err := run(t, &ir.Program{
		Quads: []ir.Quad{
			ir.Q(tp.Era, 2, n, n),
			ir.Q(tp.Era, 1, n, n),
			ir.Q(tp.Param, 13000, 0, n),
			ir.Q(tp.Gosub, 12, n, 9000),
			ir.Q(tp.Param, 9000, 0, n),
			ir.Q(tp.Param, 13001, 1, n),
			ir.Q(tp.Gosub, 9, n, 9001),
			ir.Q(tp.Print, n, n, 9001),
			ir.Q(tp.Halt, n, n, n),

			// add
			ir.Q(tp.Add, 5000, 5001, 9002),
			ir.Q(tp.Return, 9002, n, n),
			ir.Q(tp.EndProc, n, n, n),

			// inc
			ir.Q(tp.Add, 5000, 13000, 9003),
			ir.Q(tp.Return, 9003, n, n),
			ir.Q(tp.EndProc, n, n, n),
		},
		Consts: consts(13000, int64(1), 13001, int64(2)),
		Funcs: []ir.Func{
			{Name: "add", Ret: tp.Int, Params: []tp.Type{tp.Int, tp.Int}, Size: 2, Entry: 9},
			{Name: "inc", Ret: tp.Int, Params: []tp.Type{tp.Int}, Size: 1, Entry: 12},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"4"}, out)
	assert.Equal(t, Halted, m.State())
	assert.Equal(t, 0, m.Depth())
}

func TestParamTypes(t *testing.T) {
	// h(x: float) called with an int: x / 2 is float division, read resets x to 0.0
	_, out, err := run(t, &ir.Program{
		Quads: []ir.Quad{
			ir.Q(tp.Era, 1, n, n),
			ir.Q(tp.Param, 13000, 0, n),
			ir.Q(tp.Gosub, 4, n, n),
			ir.Q(tp.Halt, n, n, n),

			ir.Q(tp.Div, 5000, 13001, 10000),
			ir.Q(tp.Print, n, n, 10000),
			ir.Q(tp.Assign, 13001, n, 5000),
			ir.Q(tp.Div, 5000, 13002, 10001),
			ir.Q(tp.Print, n, n, 10001),
			ir.Q(tp.Read, n, n, 5000),
			ir.Q(tp.Print, n, n, 5000),
			ir.Q(tp.EndProc, n, n, n),
		},
		Consts: consts(13000, int64(3), 13001, int64(2), 13002, int64(4)),
		Funcs: []ir.Func{
			{Name: "h", Ret: tp.Void, Params: []tp.Type{tp.Float}, Size: 1, Entry: 4},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"1.5", "0.5", "0"}, out)
}

func TestEndProc(t *testing.T) {
	p := &ir.Program{
		Quads: []ir.Quad{
			ir.Q(tp.Print, n, n, 13000),
			ir.Q(tp.EndProc, n, n, n),
			ir.Q(tp.Print, n, n, 13000),
		},
		Consts: consts(13000, "x"),
	}

	m, out, err := run(t, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, out)
	assert.Equal(t, 1, m.IP())

	_, out, err = run(t, p, Strict())
	assertFault(t, err, ErrStrayEndproc, 1)
	assert.Equal(t, []string{"x"}, out)
}

func TestRead(t *testing.T) {
	_, out, err := run(t, &ir.Program{
		Quads: []ir.Quad{
			ir.Q(tp.Read, 13000, n, 2000),
			ir.Q(tp.Read, n, n, 1000),
			ir.Q(tp.Read, n, n, 3000),
			ir.Q(tp.Print, n, n, 2000),
			ir.Q(tp.Print, n, n, 1000),
			ir.Q(tp.Print, n, n, 3000),
			ir.Q(tp.Halt, n, n, n),
		},
		Consts: consts(13000, int64(42)),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"42", "0", ""}, out)
}

func TestFaults(t *testing.T) {
	for _, tc := range []struct {
		name  string
		quads []ir.Quad
		err   error
		ip    int
	}{
		{"local_no_frame", []ir.Quad{ir.Q(tp.Assign, 13000, n, 5100)}, ErrNoFrame, 0},
		{"param_no_era", []ir.Quad{ir.Q(tp.Param, 13000, 0, n)}, ErrNoFrame, 0},
		{"gosub_no_era", []ir.Quad{ir.Q(tp.Gosub, 0, n, n)}, ErrNoFrame, 0},
		{"return_no_frame", []ir.Quad{ir.Q(tp.Return, n, n, n)}, ErrNoFrame, 0},
		{"unset_param", []ir.Quad{
			ir.Q(tp.Era, 1, n, n),
			ir.Q(tp.Gosub, 2, n, n),
			ir.Q(tp.Print, n, n, 5000),
		}, ErrUninitialized, 2},
		{"param_outside_frame", []ir.Quad{
			ir.Q(tp.Era, 1, n, n),
			ir.Q(tp.Param, 13000, 1, n),
		}, ErrInvalidAddress, 1},
		{"invalid_address", []ir.Quad{ir.Q(tp.Print, n, n, 99999)}, ErrInvalidAddress, 0},
		{"write_constant", []ir.Quad{ir.Q(tp.Assign, 13000, n, 13000)}, ErrReadOnly, 0},
		{"narrowing", []ir.Quad{ir.Q(tp.Assign, 14000, n, 1000)}, ErrTypeMismatch, 0},
		{"string_condition", []ir.Quad{ir.Q(tp.GotoF, 15000, n, 0)}, ErrTypeMismatch, 0},
		{"unknown_operator", []ir.Quad{ir.Q(tp.Op(100), n, n, n)}, ErrUnknownOperator, 0},
		{"bad_jump", []ir.Quad{ir.Q(tp.Goto, n, n, 5)}, ErrBadJump, 0},
	} {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			_, _, err := run(t, &ir.Program{
				Quads:  tc.quads,
				Consts: consts(13000, int64(1), 14000, 1.5, 15000, "s"),
			})

			assertFault(t, err, tc.err, tc.ip)
		})
	}
}

func TestStackOverflow(t *testing.T) {
	_, _, err := run(t, &ir.Program{
		Quads: []ir.Quad{
			ir.Q(tp.Era, 0, n, n),
			ir.Q(tp.Gosub, 0, n, n),
		},
	}, MaxDepth(10))

	assertFault(t, err, ErrStackOverflow, 0)
}

func TestContextDeadline(t *testing.T) {
	m := New(mem.DefaultLayout())

	err := m.Load(&ir.Program{
		Quads: []ir.Quad{
			ir.Q(tp.Goto, n, n, 0),
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = m.Execute(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Equal(t, Running, m.State())
}

func TestLifecycle(t *testing.T) {
	m := New(mem.DefaultLayout())

	_, err := m.Execute(context.Background())
	assert.ErrorIs(t, err, ErrNotLoaded)

	p := &ir.Program{
		Quads:  []ir.Quad{ir.Q(tp.Print, n, n, 13000)},
		Consts: consts(13000, int64(1)),
	}

	require.NoError(t, m.Load(p))

	out, err := m.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, out)

	_, err = m.Execute(context.Background())
	assert.ErrorIs(t, err, ErrHalted)

	require.NoError(t, m.Load(p))

	out, err = m.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, out)

	err = m.Load(&ir.Program{Consts: consts(1000, int64(1))})
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestSnapshot(t *testing.T) {
	m := New(mem.DefaultLayout())

	err := m.Load(&ir.Program{
		Quads: []ir.Quad{
			ir.Q(tp.Assign, 13000, n, 1000),
			ir.Q(tp.Era, 2, n, n),
			ir.Q(tp.Param, 13000, 0, n),
			ir.Q(tp.Gosub, 4, n, n),
			ir.Q(tp.Assign, 5000, n, 5100),
			ir.Q(tp.Add, 5100, 5000, 9000),
			ir.Q(tp.Goto, n, n, 6),
		},
		Consts: consts(13000, int64(5)),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = m.Execute(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, Snapshot{
		State:    Running,
		IP:       6,
		Depth:    1,
		Global:   map[ir.Addr]any{1000: int64(5)},
		Temporal: map[ir.Addr]any{9000: int64(10)},
		Constant: map[ir.Addr]any{13000: int64(5)},
		Frame:    map[ir.Addr]any{5000: int64(5), 5100: int64(5)},
	}, m.Snapshot())
}
