package mem

import (
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"tlog.app/go/errors"

	"github.com/slowlang/quad/compiler/ir"
	"github.com/slowlang/quad/compiler/tp"
)

type (
	Segment int8

	// Range is a contiguous block of addresses [Lo, Hi] owned by one (segment, type) pair.
	// Parameter ranges are shared by all types and carry tp.Void.
	Range struct {
		Segment Segment
		Type    tp.Type
		Lo, Hi  ir.Addr
	}

	// Layout is the address map shared by the generator and the VM.
	Layout []Range

	layoutFile struct {
		Range []layoutRange `toml:"range"`
	}

	layoutRange struct {
		Segment string `toml:"segment"`
		Type    string `toml:"type,omitempty"`
		Lo      int    `toml:"lo"`
		Hi      int    `toml:"hi"`
	}
)

const (
	Global Segment = iota
	Local
	Parameter
	Temporal
	Constant

	numSegments
)

var segNames = [...]string{
	Global:    "global",
	Local:     "local",
	Parameter: "parameter",
	Temporal:  "temporal",
	Constant:  "constant",
}

var (
	ErrInvalidAddress  = errors.New("invalid address")
	ErrMemoryExhausted = errors.New("memory exhausted")
	ErrBadLayout       = errors.New("bad layout")
)

func (s Segment) String() string {
	if s < 0 || s >= numSegments {
		return "segment(?)"
	}

	return segNames[s]
}

// FrameRelative reports whether addresses of s live in activation records.
func (s Segment) FrameRelative() bool {
	return s == Local || s == Parameter
}

func ParseSegment(n string) (Segment, bool) {
	for s, sn := range segNames {
		if sn == n {
			return Segment(s), true
		}
	}

	return 0, false
}

func DefaultLayout() Layout {
	return Layout{
		{Global, tp.Int, 1000, 1999},
		{Global, tp.Float, 2000, 2999},
		{Global, tp.String, 3000, 3999},

		{Parameter, tp.Void, 5000, 5099},

		{Local, tp.Int, 5100, 5999},
		{Local, tp.Float, 6000, 6999},
		{Local, tp.String, 7000, 7999},

		{Temporal, tp.Int, 9000, 9999},
		{Temporal, tp.Float, 10000, 10999},
		{Temporal, tp.String, 11000, 11999},

		{Constant, tp.Int, 13000, 13999},
		{Constant, tp.Float, 14000, 14999},
		{Constant, tp.String, 15000, 15999},
	}
}

// Validate checks that ranges are well formed, disjoint, and that every
// (segment, type) pair the compiler allocates from is present exactly once.
func (l Layout) Validate() error {
	if len(l) == 0 {
		return errors.Wrap(ErrBadLayout, "empty")
	}

	sorted := make(Layout, len(l))
	copy(sorted, l)

	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Lo < sorted[j].Lo })

	for i, r := range sorted {
		if r.Lo < 0 || r.Hi < r.Lo {
			return errors.Wrap(ErrBadLayout, "%v: inverted bounds", r)
		}

		if i != 0 && sorted[i-1].Hi >= r.Lo {
			return errors.Wrap(ErrBadLayout, "%v overlaps %v", sorted[i-1], r)
		}
	}

	seen := map[[2]int]bool{}

	for _, r := range l {
		k := [2]int{int(r.Segment), int(r.Type)}
		if seen[k] {
			return errors.Wrap(ErrBadLayout, "duplicate range for %v/%v", r.Segment, r.Type)
		}

		seen[k] = true
	}

	for s := Global; s < numSegments; s++ {
		if s == Parameter {
			if !seen[[2]int{int(s), int(tp.Void)}] {
				return errors.Wrap(ErrBadLayout, "no %v range", s)
			}

			continue
		}

		for _, t := range []tp.Type{tp.Int, tp.Float, tp.String} {
			if !seen[[2]int{int(s), int(t)}] {
				return errors.Wrap(ErrBadLayout, "no %v/%v range", s, t)
			}
		}
	}

	return nil
}

// Find returns the range containing a.
func (l Layout) Find(a ir.Addr) (Range, error) {
	for _, r := range l {
		if a >= r.Lo && a <= r.Hi {
			return r, nil
		}
	}

	return Range{}, errors.Wrap(ErrInvalidAddress, "%d", a)
}

// Range returns the range of the (segment, type) pair.
// Parameter ranges match any type.
func (l Layout) Range(s Segment, t tp.Type) (Range, bool) {
	for _, r := range l {
		if r.Segment == s && (r.Type == t || s == Parameter) {
			return r, true
		}
	}

	return Range{}, false
}

// ParamBase is the first parameter address; parameter i lives at ParamBase+i.
func (l Layout) ParamBase() ir.Addr {
	r, ok := l.Range(Parameter, tp.Void)
	if !ok {
		return ir.Nil
	}

	return r.Lo
}

func (r Range) String() string {
	return r.Segment.String() + "/" + r.Type.String() + "[" + r.Lo.String() + "-" + r.Hi.String() + "]"
}

func (r Range) Size() int {
	return int(r.Hi-r.Lo) + 1
}

func LoadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read layout")
	}

	return ParseLayout(data)
}

func ParseLayout(data []byte) (Layout, error) {
	var f layoutFile

	err := toml.Unmarshal(data, &f)
	if err != nil {
		return nil, errors.Wrap(err, "parse layout")
	}

	l := make(Layout, 0, len(f.Range))

	for i, r := range f.Range {
		s, ok := ParseSegment(r.Segment)
		if !ok {
			return nil, errors.Wrap(ErrBadLayout, "range %d: unknown segment %q", i, r.Segment)
		}

		t := tp.Void

		if s != Parameter {
			t, ok = tp.ParseType(r.Type)
			if !ok {
				return nil, errors.Wrap(ErrBadLayout, "range %d: unknown type %q", i, r.Type)
			}
		}

		l = append(l, Range{Segment: s, Type: t, Lo: ir.Addr(r.Lo), Hi: ir.Addr(r.Hi)})
	}

	err = l.Validate()
	if err != nil {
		return nil, err
	}

	return l, nil
}

// Encode renders the layout in the format ParseLayout reads.
func (l Layout) Encode() ([]byte, error) {
	f := layoutFile{Range: make([]layoutRange, len(l))}

	for i, r := range l {
		f.Range[i] = layoutRange{
			Segment: r.Segment.String(),
			Lo:      int(r.Lo),
			Hi:      int(r.Hi),
		}

		if r.Segment != Parameter {
			f.Range[i].Type = r.Type.String()
		}
	}

	return toml.Marshal(f)
}
