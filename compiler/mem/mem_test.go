package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tlog.app/go/errors"

	"github.com/slowlang/quad/compiler/ir"
	"github.com/slowlang/quad/compiler/tp"
)

func TestDisjoint(t *testing.T) {
	l := DefaultLayout()
	require.NoError(t, l.Validate())

	s, err := NewSpace(l)
	require.NoError(t, err)

	for a := ir.Addr(0); a <= 16500; a++ {
		owners := 0

		for _, r := range l {
			if a >= r.Lo && a <= r.Hi {
				owners++
			}
		}

		seg, serr := s.Segment(a)
		typ, terr := s.Type(a)

		switch owners {
		case 0:
			assert.True(t, errors.Is(serr, ErrInvalidAddress), "addr %d", a)
			assert.True(t, errors.Is(terr, ErrInvalidAddress), "addr %d", a)
		case 1:
			require.NoError(t, serr)
			require.NoError(t, terr)

			r, _ := l.Find(a)
			assert.Equal(t, r.Segment, seg)
			assert.Equal(t, r.Type, typ)
		default:
			t.Fatalf("address %d owned by %d ranges", a, owners)
		}
	}
}

func TestAssign(t *testing.T) {
	s, err := NewSpace(DefaultLayout())
	require.NoError(t, err)

	a, err := s.Assign(tp.Int, Global)
	require.NoError(t, err)
	assert.Equal(t, ir.Addr(1000), a)

	a, err = s.Assign(tp.Int, Global)
	require.NoError(t, err)
	assert.Equal(t, ir.Addr(1001), a)

	a, err = s.Assign(tp.Float, Global)
	require.NoError(t, err)
	assert.Equal(t, ir.Addr(2000), a)

	a, err = s.Temp(tp.String)
	require.NoError(t, err)
	assert.Equal(t, ir.Addr(11000), a)

	a, err = s.Assign(tp.Float, Parameter)
	require.NoError(t, err)
	assert.Equal(t, ir.Addr(5000), a)

	a, err = s.Assign(tp.Int, Parameter)
	require.NoError(t, err)
	assert.Equal(t, ir.Addr(5001), a)

	a, err = s.Assign(tp.Int, Local)
	require.NoError(t, err)
	assert.Equal(t, ir.Addr(5100), a)

	s.EnterFunction()

	a, err = s.Assign(tp.Int, Parameter)
	require.NoError(t, err)
	assert.Equal(t, ir.Addr(5000), a)

	a, err = s.Assign(tp.Int, Local)
	require.NoError(t, err)
	assert.Equal(t, ir.Addr(5100), a)

	a, err = s.Assign(tp.Int, Global)
	require.NoError(t, err)
	assert.Equal(t, ir.Addr(1002), a, "globals are not frame relative")

	_, err = s.Assign(tp.Void, Global)
	assert.Error(t, err)
}

func TestExhausted(t *testing.T) {
	l := DefaultLayout()

	for i, r := range l {
		if r.Segment == Temporal && r.Type == tp.Int {
			l[i].Hi = r.Lo + 1
		}
	}

	s, err := NewSpace(l)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = s.Temp(tp.Int)
		require.NoError(t, err)
	}

	_, err = s.Temp(tp.Int)
	assert.True(t, errors.Is(err, ErrMemoryExhausted), "got %v", err)

	_, err = s.Temp(tp.Float)
	assert.NoError(t, err)
}

func TestConstants(t *testing.T) {
	s, err := NewSpace(DefaultLayout())
	require.NoError(t, err)

	a, err := s.Constant(int64(5), tp.Int)
	require.NoError(t, err)

	b, err := s.Constant(int64(5), tp.Int)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	f, err := s.Constant(float64(5), tp.Float)
	require.NoError(t, err)
	assert.NotEqual(t, a, f)

	str, err := s.Constant("5", tp.String)
	require.NoError(t, err)

	assert.Equal(t, []ir.Const{
		{Addr: 13000, Type: tp.Int, Value: int64(5)},
		{Addr: 14000, Type: tp.Float, Value: float64(5)},
		{Addr: str, Type: tp.String, Value: "5"},
	}, s.Constants())

	assert.Equal(t, 1, s.Used(Constant, tp.Int))

	s.Reset()

	assert.Empty(t, s.Constants())

	a, err = s.Constant(int64(7), tp.Int)
	require.NoError(t, err)
	assert.Equal(t, ir.Addr(13000), a)
}

func TestValidate(t *testing.T) {
	l := DefaultLayout()
	l[1].Lo = 1999
	assert.True(t, errors.Is(l.Validate(), ErrBadLayout))

	l = DefaultLayout()
	l[0].Hi = l[0].Lo - 1
	assert.True(t, errors.Is(l.Validate(), ErrBadLayout))

	l = DefaultLayout()[1:]
	assert.True(t, errors.Is(l.Validate(), ErrBadLayout))

	assert.True(t, errors.Is(Layout{}.Validate(), ErrBadLayout))

	_, err := NewSpace(Layout{})
	assert.Error(t, err)
}

func TestLayoutTOML(t *testing.T) {
	data, err := DefaultLayout().Encode()
	require.NoError(t, err)

	l, err := ParseLayout(data)
	require.NoError(t, err)
	assert.Equal(t, DefaultLayout(), l)
	assert.Equal(t, ir.Addr(5000), l.ParamBase())

	_, err = ParseLayout([]byte(`
[[range]]
segment = "heap"
type = "int"
lo = 1
hi = 2
`))
	assert.True(t, errors.Is(err, ErrBadLayout), "got %v", err)

	_, err = ParseLayout([]byte(`[[range]]
segment = "global"
type = "int"
lo = 1
hi = 2
`))
	assert.True(t, errors.Is(err, ErrBadLayout), "incomplete layout: %v", err)
}
