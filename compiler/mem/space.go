package mem

import (
	"sort"

	"tlog.app/go/errors"

	"github.com/slowlang/quad/compiler/ir"
	"github.com/slowlang/quad/compiler/tp"
)

type (
	// Space hands out addresses from a Layout.
	// It's owned by one compilation and must be Reset before the next one.
	Space struct {
		l Layout

		next map[key]ir.Addr

		consts map[constKey]ir.Addr
		values []ir.Const
	}

	key struct {
		s Segment
		t tp.Type
	}

	constKey struct {
		t tp.Type
		v any
	}
)

func NewSpace(l Layout) (*Space, error) {
	err := l.Validate()
	if err != nil {
		return nil, err
	}

	s := &Space{l: l}
	s.Reset()

	return s, nil
}

func (s *Space) Layout() Layout { return s.l }

// Reset restarts every counter and forgets all constants.
func (s *Space) Reset() {
	s.next = make(map[key]ir.Addr, len(s.l))

	for _, r := range s.l {
		s.next[key{r.Segment, r.Type}] = r.Lo
	}

	s.consts = map[constKey]ir.Addr{}
	s.values = s.values[:0]
}

// EnterFunction restarts the frame-relative counters.
// Each activation record has private LOCAL and PARAMETER storage,
// so every function body allocates from the start of those ranges.
func (s *Space) EnterFunction() {
	for _, r := range s.l {
		if r.Segment.FrameRelative() {
			s.next[key{r.Segment, r.Type}] = r.Lo
		}
	}
}

// Assign allocates the next address of type t in segment seg.
func (s *Space) Assign(t tp.Type, seg Segment) (ir.Addr, error) {
	if seg == Parameter {
		t = tp.Void
	}

	r, ok := s.l.Range(seg, t)
	if !ok {
		return ir.Nil, errors.New("no range for %v/%v", seg, t)
	}

	k := key{seg, r.Type}

	a := s.next[k]
	if a > r.Hi {
		return ir.Nil, errors.Wrap(ErrMemoryExhausted, "%v/%v", seg, t)
	}

	s.next[k] = a + 1

	return a, nil
}

func (s *Space) Temp(t tp.Type) (ir.Addr, error) {
	return s.Assign(t, Temporal)
}

// Constant returns the address of literal v of type t, allocating it on first use.
// v must be int64, float64 or string.
func (s *Space) Constant(v any, t tp.Type) (ir.Addr, error) {
	k := constKey{t, v}

	if a, ok := s.consts[k]; ok {
		return a, nil
	}

	a, err := s.Assign(t, Constant)
	if err != nil {
		return ir.Nil, err
	}

	s.consts[k] = a
	s.values = append(s.values, ir.Const{Addr: a, Type: t, Value: v})

	return a, nil
}

// Constants returns the constant table ordered by address.
func (s *Space) Constants() []ir.Const {
	r := make([]ir.Const, len(s.values))
	copy(r, s.values)

	sort.Slice(r, func(i, j int) bool { return r[i].Addr < r[j].Addr })

	return r
}

// Used reports how many addresses were taken from the (segment, type) range.
func (s *Space) Used(seg Segment, t tp.Type) int {
	r, ok := s.l.Range(seg, t)
	if !ok {
		return 0
	}

	return int(s.next[key{seg, r.Type}] - r.Lo)
}

func (s *Space) Segment(a ir.Addr) (Segment, error) {
	r, err := s.l.Find(a)
	if err != nil {
		return 0, err
	}

	return r.Segment, nil
}

func (s *Space) Type(a ir.Addr) (tp.Type, error) {
	r, err := s.l.Find(a)
	if err != nil {
		return tp.Error, err
	}

	return r.Type, nil
}
