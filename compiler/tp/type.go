package tp

import "tlog.app/go/tlog/tlwire"

type (
	Type int8

	Op int8
)

const (
	Error Type = iota
	Int
	Float
	String
	Void

	numTypes
)

// Expression and assignment operators come first so the cube can index them.
const (
	Add Op = iota
	Sub
	Mul
	Div

	Gt
	Lt
	Ge
	Le
	Eq
	Ne

	Assign

	numCubeOps
)

// Control tags understood only by the VM.
const (
	Print Op = numCubeOps + iota
	Read
	Goto
	GotoF
	GotoT
	Gosub
	Param
	Era
	Return
	EndProc
	Halt

	numOps
)

var typeNames = [...]string{
	Error:  "error",
	Int:    "int",
	Float:  "float",
	String: "string",
	Void:   "void",
}

var opNames = [...]string{
	Add:     "+",
	Sub:     "-",
	Mul:     "*",
	Div:     "/",
	Gt:      ">",
	Lt:      "<",
	Ge:      ">=",
	Le:      "<=",
	Eq:      "==",
	Ne:      "!=",
	Assign:  "=",
	Print:   "PRINT",
	Read:    "READ",
	Goto:    "GOTO",
	GotoF:   "GOTOF",
	GotoT:   "GOTOT",
	Gosub:   "GOSUB",
	Param:   "PARAM",
	Era:     "ERA",
	Return:  "RETURN",
	EndProc: "ENDPROC",
	Halt:    "HALT",
}

// ParseType returns the declarable type named s.
// Error and Void are never declarable, so they are reported as not found.
func ParseType(s string) (Type, bool) {
	switch s {
	case "int":
		return Int, true
	case "float":
		return Float, true
	case "string":
		return String, true
	}

	return Error, false
}

// ParseOp returns the operator spelled s, expression operators and VM tags alike.
func ParseOp(s string) (Op, bool) {
	for op, n := range opNames {
		if n == s {
			return Op(op), true
		}
	}

	return 0, false
}

func (t Type) String() string {
	if t < 0 || t >= numTypes {
		return "type(?)"
	}

	return typeNames[t]
}

// Valued reports whether t can be held by a memory cell.
func (t Type) Valued() bool {
	return t == Int || t == Float || t == String
}

func (t Type) Numeric() bool {
	return t == Int || t == Float
}

func (t Type) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, t.String())
}

func (op Op) String() string {
	if op < 0 || op >= numOps {
		return "op(?)"
	}

	return opNames[op]
}

func (op Op) Arith() bool {
	return op >= Add && op <= Div
}

func (op Op) Relational() bool {
	return op >= Gt && op <= Ne
}

// Jump reports whether Res of a quadruple with op is an instruction index.
func (op Op) Jump() bool {
	return op == Goto || op == GotoF || op == GotoT
}

func (op Op) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, op.String())
}
