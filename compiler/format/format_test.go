package format

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/quad/compiler/ir"
	"github.com/slowlang/quad/compiler/tp"
)

func TestProgram(t *testing.T) {
	const n = ir.Nil

	p := &ir.Program{
		Quads: []ir.Quad{
			ir.Q(tp.Era, 1, n, n),
			ir.Q(tp.Param, 13000, 0, n),
			ir.Q(tp.Gosub, 4, n, 9000),
			ir.Q(tp.Halt, n, n, n),
			ir.Q(tp.Return, 5000, n, n),
			ir.Q(tp.EndProc, n, n, n),
		},
		Consts: []ir.Const{
			{Addr: 13000, Type: tp.Int, Value: int64(7)},
			{Addr: 15000, Type: tp.String, Value: "hi"},
		},
		Funcs: []ir.Func{
			{Name: "id", Ret: tp.Int, Params: []tp.Type{tp.Int}, Size: 1, Entry: 4},
		},
	}

	b, err := Program(context.Background(), nil, p)
	require.NoError(t, err)

	assert.Equal(t, `quads:
	     0  (ERA, 1, _, _)
	     1  (PARAM, 13000, 0, _)
	     2  (GOSUB, 4, _, 9000)
	     3  (HALT, _, _, _)
id:
	>    4  (RETURN, 5000, _, _)
	     5  (ENDPROC, _, _, _)

funcs:
	id(int) int  size 1  entry 4

consts:
	13000  int     7
	15000  string  "hi"
`, string(b))
}

func TestBadTarget(t *testing.T) {
	p := &ir.Program{
		Quads: []ir.Quad{
			ir.Q(tp.Goto, ir.Nil, ir.Nil, 7),
		},
	}

	_, err := Program(context.Background(), nil, p)
	assert.Error(t, err)
}
