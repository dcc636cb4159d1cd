package vm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tlog.app/go/errors"

	"github.com/slowlang/quad/compiler"
	"github.com/slowlang/quad/compiler/mem"
	"github.com/slowlang/quad/vm"
)

func compileAndRun(t *testing.T, text string, opts ...vm.Option) ([]string, error) {
	t.Helper()

	ctx := context.Background()

	res, err := compiler.Compile(ctx, t.Name(), []byte(text))
	require.NoError(t, err)
	require.NoError(t, res.Err())

	m := vm.New(mem.DefaultLayout(), opts...)

	err = m.Load(res.Program)
	require.NoError(t, err)

	return m.Execute(ctx)
}

func TestPrograms(t *testing.T) {
	for _, tc := range []struct {
		name string
		text string
		out  []string
	}{
		{"assign_print", `program p; var x: int; main { x = 5; print(x); } end`, []string{"5"}},
		{"call_with_return", `program p;
func suma(a: int, b: int): int {
	return a + b;
}
main {
	print(suma(15, 25));
}
end`, []string{"40"}},
		{"recursion_isolation", `program p;
func f(n: int) {
	print(n);
	if (n > 0) {
		f(n - 1);
		if (n < 3) { print(n); }
	}
}
main { f(3); }
end`, []string{"3", "2", "1", "0", "1", "2"}},
		{"factorial", `program p;
func fact(n: int): int {
	if (n <= 1) { return 1; }
	return n * fact(n - 1);
}
main { print(fact(5)); }
end`, []string{"120"}},
		{"nested_call_args", `program p;
func inc(n: int): int { return n + 1; }
func add(a: int, b: int): int { return a + b; }
main {
	print(inc(inc(1)));
	print(add(inc(1), inc(2)));
}
end`, []string{"3", "5"}},
		{"float_widening", `program p; var f: float;
func half(x: float): float { return x / 2; }
main {
	f = 3;
	print(f);
	print(half(3));
	print(7 / 2, 7 / 2.0);
}
end`, []string{"3", "1.5", "3", "3.5"}},
		{"while_loop", `program p; var i, s: int;
main {
	i = 1;
	while (i <= 10) do {
		s = s + i;
		i = i + 1;
	}
	print(s);
}
end`, []string{"55"}},
		{"if_else", `program p; var x: int;
main {
	x = 3;
	if (x > 5) { print("big"); } else { print("small"); }
	if (x != 3) { print("never"); }
	print("done");
}
end`, []string{"small", "done"}},
		{"strings", `program p; var s: string;
main {
	s = "hello, " + "world";
	print(s);
	print(s == "hello, world");
}
end`, []string{"hello, world", "1"}},
		{"locals_per_frame", `program p; var g: int;
func f(n: int) {
	var k: int;
	k = n * 10;
	if (n > 0) { f(n - 1); }
	print(k);
}
main { f(2); }
end`, []string{"0", "10", "20"}},
		{"void_early_return", `program p;
func f(n: int) {
	if (n > 0) { print("pos"); return; }
	print("non-pos");
}
main { f(1); f(0); }
end`, []string{"pos", "non-pos"}},
		{"read_default", `program p; var x: int; y: float;
main { x = 5; read(x, y); print(x, y); }
end`, []string{"0", "0"}},
		{"unary_minus", `program p; var a: int;
main { a = 4; print(-a, -2.5, - -a); }
end`, []string{"-4", "-2.5", "4"}},
		{"param_assign_widens", `program p;
func f(x: float) {
	x = 5;
	print(x / 2);
}
main { f(1.0); }
end`, []string{"2.5"}},
		{"read_param", `program p;
func f(a: int, s: string) {
	read(a, s);
	print(a, s, a + 1);
}
main { f(7, "x"); }
end`, []string{"0", "", "1"}},
		{"fib", `program p;
func fib(n: int): int {
	if (n < 2) { return n; }
	return fib(n - 1) + fib(n - 2);
}
main { print(fib(6), fib(10)); }
end`, []string{"8", "55"}},
		{"temp_live_across_call", `program p;
func g(n: int): int {
	if (n == 0) { return 0; }
	return n * 2 + g(n - 1);
}
main { print(g(3)); }
end`, []string{"12"}},
		{"comments", `program p; // header
// main comment
main { print(1); } end`, []string{"1"}},
	} {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			out, err := compileAndRun(t, tc.text)
			require.NoError(t, err)

			assert.Equal(t, tc.out, out)
		})
	}
}

func TestBackpatchRun(t *testing.T) {
	ctx := context.Background()

	res, err := compiler.Compile(ctx, t.Name(), []byte(`program p; var x, a: int;
main {
	x = -1;
	if (x > 0) { a = 1; } else { a = 2; }
}
end`))
	require.NoError(t, err)
	require.NoError(t, res.Err())

	m := vm.New(mem.DefaultLayout())

	err = m.Load(res.Program)
	require.NoError(t, err)

	_, err = m.Execute(ctx)
	require.NoError(t, err)

	s := m.Snapshot()
	assert.Equal(t, int64(-1), s.Global[1000])
	assert.Equal(t, int64(2), s.Global[1001])
}

func TestDivisionByZeroProgram(t *testing.T) {
	out, err := compileAndRun(t, `program p; var x: int;
main {
	print("before");
	x = 0;
	print(10 / x);
	print("after");
}
end`)

	assert.True(t, errors.Is(err, vm.ErrDivisionByZero), "got %v", err)
	assert.Equal(t, []string{"before"}, out)

	var f *vm.Fault
	require.True(t, errors.As(err, &f))
	assert.Equal(t, "/", f.Quad.Op.String())
}

func TestIdempotentRun(t *testing.T) {
	const text = `program p; var i: int;
func sq(n: int): int { return n * n; }
main { i = 0; while (i < 4) { print(sq(i)); i = i + 1; } }
end`

	first, err := compileAndRun(t, text)
	require.NoError(t, err)

	second, err := compileAndRun(t, text)
	require.NoError(t, err)

	assert.Equal(t, []string{"0", "1", "4", "9"}, first)
	assert.Equal(t, first, second)
}
