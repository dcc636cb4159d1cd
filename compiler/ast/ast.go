package ast

import "strconv"

// Concrete syntax tree. There is one node type per grammar rule.
type (
	Node interface{}

	Stmt = Node

	Pos struct {
		Off  int
		Line int
		Col  int
	}

	Ident struct {
		Pos  Pos
		Name string
	}

	TypeName struct {
		Pos  Pos
		Name string
	}

	Program struct {
		Pos  Pos
		Name Ident

		Vars  []*VarDecl
		Funcs []*FuncDecl
		Main  *Block
	}

	VarDecl struct {
		Pos   Pos
		Names []Ident
		Type  TypeName
	}

	FuncDecl struct {
		Pos    Pos
		Name   Ident
		Params []*Param
		Ret    *TypeName // nil or "void" for procedures

		Vars []*VarDecl
		Body []Stmt
	}

	Param struct {
		Pos  Pos
		Name Ident
		Type TypeName
	}

	Block struct {
		Pos   Pos
		Stmts []Stmt
	}

	Assign struct {
		Pos    Pos
		Target Ident
		Value  *Expr
	}

	CallStmt struct {
		Pos  Pos
		Call *Call
	}

	Print struct {
		Pos  Pos
		Args []*Expr
	}

	Read struct {
		Pos     Pos
		Targets []Ident
	}

	If struct {
		Pos  Pos
		Cond *Expr
		Then *Block
		Else *Block
	}

	While struct {
		Pos  Pos
		Cond *Expr
		Body *Block
	}

	Return struct {
		Pos   Pos
		Value *Expr
	}

	// Expr is exp {relop exp}.
	Expr struct {
		Pos   Pos
		First *Exp
		Rest  []ExpTail
	}

	ExpTail struct {
		Op string
		X  *Exp
	}

	// Exp is term {("+"|"-") term}.
	Exp struct {
		Pos   Pos
		First *Term
		Rest  []TermTail
	}

	TermTail struct {
		Op string
		X  *Term
	}

	// Term is factor {("*"|"/") factor}.
	Term struct {
		Pos   Pos
		First *Factor
		Rest  []FactorTail
	}

	FactorTail struct {
		Op string
		X  *Factor
	}

	// Factor holds exactly one alternative.
	// A signed factor keeps the sign in Sign and the operand in Signed.
	Factor struct {
		Pos Pos

		Sign   string
		Signed *Factor

		Paren *Expr
		Lit   *Lit
		Var   *Ident
		Call  *Call
	}

	Lit struct {
		Pos  Pos
		Kind LitKind
		Text string
	}

	LitKind int

	Call struct {
		Pos  Pos
		Name Ident
		Args []*Expr
	}
)

const (
	IntLit LitKind = iota
	FloatLit
	StringLit
)

func (p Pos) String() string {
	return strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Col)
}

// Void reports whether the function returns nothing.
func (f *FuncDecl) Void() bool {
	return f.Ret == nil || f.Ret.Name == "void"
}
