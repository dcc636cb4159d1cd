package vm

import (
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/quad/compiler/ir"
)

type (
	// Snapshot is a copy of the machine memory.
	// Frame holds the cells of the innermost active record.
	Snapshot struct {
		State    State           `yaml:"state"`
		IP       int             `yaml:"ip"`
		Depth    int             `yaml:"depth"`
		Global   map[ir.Addr]any `yaml:"global,omitempty"`
		Temporal map[ir.Addr]any `yaml:"temporal,omitempty"`
		Constant map[ir.Addr]any `yaml:"constant,omitempty"`
		Frame    map[ir.Addr]any `yaml:"frame,omitempty"`
	}
)

func (m *VM) Snapshot() Snapshot {
	s := Snapshot{
		State:    m.state,
		IP:       m.ip,
		Depth:    len(m.frames),
		Global:   m.global.copy(),
		Temporal: m.temp.copy(),
		Constant: m.consts.copy(),
	}

	if f, err := m.top(); err == nil {
		s.Frame = f.cells.copy()
	}

	return s
}

func (s store) copy() map[ir.Addr]any {
	if len(s) == 0 {
		return nil
	}

	r := make(map[ir.Addr]any, len(s))

	for a, v := range s {
		r[a] = v
	}

	return r
}

func (s State) MarshalYAML() (any, error) {
	return s.String(), nil
}

func (s State) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, s.String())
}
