package front

import (
	"context"
	"fmt"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/slowlang/quad/compiler/ast"
)

type (
	parser struct {
		toks []Token
	}

	UnexpectedError struct {
		Got  Token
		Want []string
	}
)

var relops = []string{">", "<", ">=", "<=", "==", "!="}

// Parse builds the concrete syntax tree from toks.
// It stops at the first syntax error, so at most one error is returned.
func Parse(ctx context.Context, toks []Token) (x *ast.Program, errs []error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "front: parse", "tokens", len(toks))
	defer func() {
		tr.Finish("errs", len(errs))
	}()

	if len(toks) == 0 || toks[len(toks)-1].Kind != EOF {
		toks = append(toks, Token{Kind: EOF})
	}

	p := &parser{toks: toks}

	x, _, err := p.parseProgram(ctx, 0)
	if err != nil {
		return nil, []error{err}
	}

	return x, nil
}

func (p *parser) parseProgram(ctx context.Context, st int) (x *ast.Program, i int, err error) {
	tk, i, err := p.expect(ctx, st, "program")
	if err != nil {
		return
	}

	x = &ast.Program{Pos: tk.Pos}

	x.Name, i, err = p.ident(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "program name")
	}

	_, i, err = p.expect(ctx, i, ";")
	if err != nil {
		return
	}

	if p.is(i, "var") {
		x.Vars, i, err = p.parseVars(ctx, i)
		if err != nil {
			return nil, i, errors.Wrap(err, "globals")
		}
	}

	for p.is(i, "func") {
		var f *ast.FuncDecl

		f, i, err = p.parseFunc(ctx, i)
		if err != nil {
			return nil, i, err
		}

		x.Funcs = append(x.Funcs, f)
	}

	_, i, err = p.expect(ctx, i, "main")
	if err != nil {
		return
	}

	x.Main, i, err = p.parseBlock(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "main")
	}

	_, i, err = p.expect(ctx, i, "end")
	if err != nil {
		return
	}

	tk, i = p.next(ctx, i)
	if tk.Kind != EOF {
		return nil, i, NewUnexpected(tk, EOF.String())
	}

	return x, i, nil
}

func (p *parser) parseVars(ctx context.Context, st int) (vars []*ast.VarDecl, i int, err error) {
	_, i, err = p.expect(ctx, st, "var")
	if err != nil {
		return
	}

	for {
		var d *ast.VarDecl

		d, i, err = p.parseVarDecl(ctx, i)
		if err != nil {
			return nil, i, err
		}

		vars = append(vars, d)

		// a statement can start with an identifier too
		if p.toks[i].Kind != Ident || !p.is(i+1, ",", ":") {
			return vars, i, nil
		}
	}
}

func (p *parser) parseVarDecl(ctx context.Context, st int) (x *ast.VarDecl, i int, err error) {
	x = &ast.VarDecl{Pos: p.toks[st].Pos}
	i = st

	for {
		var id ast.Ident

		id, i, err = p.ident(ctx, i)
		if err != nil {
			return nil, i, err
		}

		x.Names = append(x.Names, id)

		if !p.is(i, ",") {
			break
		}

		i++
	}

	_, i, err = p.expect(ctx, i, ":")
	if err != nil {
		return
	}

	x.Type, i, err = p.parseType(ctx, i, false)
	if err != nil {
		return
	}

	_, i, err = p.expect(ctx, i, ";")
	if err != nil {
		return
	}

	return x, i, nil
}

func (p *parser) parseType(ctx context.Context, st int, void bool) (x ast.TypeName, i int, err error) {
	tk, i := p.next(ctx, st)

	if tk.Kind == Keyword {
		switch tk.Text {
		case "int", "float", "string":
			return ast.TypeName{Pos: tk.Pos, Name: tk.Text}, i, nil
		case "void":
			if void {
				return ast.TypeName{Pos: tk.Pos, Name: tk.Text}, i, nil
			}
		}
	}

	want := []string{"int", "float", "string"}
	if void {
		want = append(want, "void")
	}

	return x, st, NewUnexpected(tk, want...)
}

func (p *parser) parseFunc(ctx context.Context, st int) (x *ast.FuncDecl, i int, err error) {
	tk, i, err := p.expect(ctx, st, "func")
	if err != nil {
		return
	}

	x = &ast.FuncDecl{Pos: tk.Pos}

	x.Name, i, err = p.ident(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "func name")
	}

	defer func() {
		if err != nil {
			err = errors.Wrap(err, "func %v", x.Name.Name)
		}
	}()

	_, i, err = p.expect(ctx, i, "(")
	if err != nil {
		return
	}

	for !p.is(i, ")") {
		if len(x.Params) != 0 {
			_, i, err = p.expect(ctx, i, ",")
			if err != nil {
				return
			}
		}

		prm := &ast.Param{Pos: p.toks[i].Pos}

		prm.Name, i, err = p.ident(ctx, i)
		if err != nil {
			return
		}

		_, i, err = p.expect(ctx, i, ":")
		if err != nil {
			return
		}

		prm.Type, i, err = p.parseType(ctx, i, false)
		if err != nil {
			return
		}

		x.Params = append(x.Params, prm)
	}

	i++ // )

	if p.is(i, ":") {
		var ret ast.TypeName

		ret, i, err = p.parseType(ctx, i+1, true)
		if err != nil {
			return
		}

		x.Ret = &ret
	}

	_, i, err = p.expect(ctx, i, "{")
	if err != nil {
		return
	}

	if p.is(i, "var") {
		x.Vars, i, err = p.parseVars(ctx, i)
		if err != nil {
			return
		}
	}

	x.Body, i, err = p.parseStmts(ctx, i)
	if err != nil {
		return
	}

	_, i, err = p.expect(ctx, i, "}")
	if err != nil {
		return
	}

	return x, i, nil
}

func (p *parser) parseBlock(ctx context.Context, st int) (x *ast.Block, i int, err error) {
	tk, i, err := p.expect(ctx, st, "{")
	if err != nil {
		return
	}

	x = &ast.Block{Pos: tk.Pos}

	x.Stmts, i, err = p.parseStmts(ctx, i)
	if err != nil {
		return nil, i, err
	}

	_, i, err = p.expect(ctx, i, "}")
	if err != nil {
		return
	}

	return x, i, nil
}

func (p *parser) parseStmts(ctx context.Context, st int) (l []ast.Stmt, i int, err error) {
	i = st

	for !p.is(i, "}") && p.toks[i].Kind != EOF {
		var s ast.Stmt

		s, i, err = p.parseStatement(ctx, i)
		if err != nil {
			return nil, i, err
		}

		l = append(l, s)
	}

	return l, i, nil
}

func (p *parser) parseStatement(ctx context.Context, st int) (x ast.Stmt, i int, err error) {
	tk, _ := p.next(ctx, st)

	switch tk.Kind {
	case Ident:
		if p.is(st+1, "(") {
			return p.parseCallStmt(ctx, st)
		}

		return p.parseAssign(ctx, st)
	case Keyword:
		switch tk.Text {
		case "print":
			return p.parsePrint(ctx, st)
		case "read":
			return p.parseRead(ctx, st)
		case "if":
			return p.parseIf(ctx, st)
		case "while":
			return p.parseWhile(ctx, st)
		case "return":
			return p.parseReturn(ctx, st)
		}
	}

	return nil, st, NewUnexpected(tk, "statement")
}

func (p *parser) parseAssign(ctx context.Context, st int) (x ast.Stmt, i int, err error) {
	a := &ast.Assign{Pos: p.toks[st].Pos}

	a.Target, i, err = p.ident(ctx, st)
	if err != nil {
		return
	}

	_, i, err = p.expect(ctx, i, "=")
	if err != nil {
		return
	}

	a.Value, i, err = p.parseExpr(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "assign %v", a.Target.Name)
	}

	_, i, err = p.expect(ctx, i, ";")
	if err != nil {
		return
	}

	return a, i, nil
}

func (p *parser) parseCallStmt(ctx context.Context, st int) (x ast.Stmt, i int, err error) {
	c, i, err := p.parseCall(ctx, st)
	if err != nil {
		return
	}

	_, i, err = p.expect(ctx, i, ";")
	if err != nil {
		return
	}

	return &ast.CallStmt{Pos: c.Pos, Call: c}, i, nil
}

func (p *parser) parsePrint(ctx context.Context, st int) (x ast.Stmt, i int, err error) {
	tk, i, err := p.expect(ctx, st, "print")
	if err != nil {
		return
	}

	pr := &ast.Print{Pos: tk.Pos}

	_, i, err = p.expect(ctx, i, "(")
	if err != nil {
		return
	}

	for {
		var e *ast.Expr

		e, i, err = p.parseExpr(ctx, i)
		if err != nil {
			return nil, i, errors.Wrap(err, "print")
		}

		pr.Args = append(pr.Args, e)

		if !p.is(i, ",") {
			break
		}

		i++
	}

	_, i, err = p.expect(ctx, i, ")")
	if err != nil {
		return
	}

	_, i, err = p.expect(ctx, i, ";")
	if err != nil {
		return
	}

	return pr, i, nil
}

func (p *parser) parseRead(ctx context.Context, st int) (x ast.Stmt, i int, err error) {
	tk, i, err := p.expect(ctx, st, "read")
	if err != nil {
		return
	}

	r := &ast.Read{Pos: tk.Pos}

	_, i, err = p.expect(ctx, i, "(")
	if err != nil {
		return
	}

	for {
		var id ast.Ident

		id, i, err = p.ident(ctx, i)
		if err != nil {
			return nil, i, errors.Wrap(err, "read")
		}

		r.Targets = append(r.Targets, id)

		if !p.is(i, ",") {
			break
		}

		i++
	}

	_, i, err = p.expect(ctx, i, ")")
	if err != nil {
		return
	}

	_, i, err = p.expect(ctx, i, ";")
	if err != nil {
		return
	}

	return r, i, nil
}

func (p *parser) parseCond(ctx context.Context, st int) (x *ast.Expr, i int, err error) {
	_, i, err = p.expect(ctx, st, "(")
	if err != nil {
		return
	}

	x, i, err = p.parseExpr(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "condition")
	}

	_, i, err = p.expect(ctx, i, ")")
	if err != nil {
		return
	}

	return x, i, nil
}

func (p *parser) parseIf(ctx context.Context, st int) (x ast.Stmt, i int, err error) {
	tk, i, err := p.expect(ctx, st, "if")
	if err != nil {
		return
	}

	s := &ast.If{Pos: tk.Pos}

	s.Cond, i, err = p.parseCond(ctx, i)
	if err != nil {
		return
	}

	s.Then, i, err = p.parseBlock(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "then")
	}

	if p.is(i, "else") {
		s.Else, i, err = p.parseBlock(ctx, i+1)
		if err != nil {
			return nil, i, errors.Wrap(err, "else")
		}
	}

	if p.is(i, ";") {
		i++
	}

	return s, i, nil
}

func (p *parser) parseWhile(ctx context.Context, st int) (x ast.Stmt, i int, err error) {
	tk, i, err := p.expect(ctx, st, "while")
	if err != nil {
		return
	}

	s := &ast.While{Pos: tk.Pos}

	s.Cond, i, err = p.parseCond(ctx, i)
	if err != nil {
		return
	}

	if p.is(i, "do") {
		i++
	}

	s.Body, i, err = p.parseBlock(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "while body")
	}

	if p.is(i, ";") {
		i++
	}

	return s, i, nil
}

func (p *parser) parseReturn(ctx context.Context, st int) (x ast.Stmt, i int, err error) {
	tk, i, err := p.expect(ctx, st, "return")
	if err != nil {
		return
	}

	r := &ast.Return{Pos: tk.Pos}

	if !p.is(i, ";") {
		r.Value, i, err = p.parseExpr(ctx, i)
		if err != nil {
			return nil, i, errors.Wrap(err, "return")
		}
	}

	_, i, err = p.expect(ctx, i, ";")
	if err != nil {
		return
	}

	return r, i, nil
}

func (p *parser) parseExpr(ctx context.Context, st int) (x *ast.Expr, i int, err error) {
	x = &ast.Expr{Pos: p.toks[st].Pos}

	x.First, i, err = p.parseExp(ctx, st)
	if err != nil {
		return nil, i, err
	}

	for p.is(i, relops...) {
		op := p.toks[i].Text

		var r *ast.Exp

		r, i, err = p.parseExp(ctx, i+1)
		if err != nil {
			return nil, i, err
		}

		x.Rest = append(x.Rest, ast.ExpTail{Op: op, X: r})
	}

	return x, i, nil
}

func (p *parser) parseExp(ctx context.Context, st int) (x *ast.Exp, i int, err error) {
	x = &ast.Exp{Pos: p.toks[st].Pos}

	x.First, i, err = p.parseTerm(ctx, st)
	if err != nil {
		return nil, i, err
	}

	for p.is(i, "+", "-") {
		op := p.toks[i].Text

		var r *ast.Term

		r, i, err = p.parseTerm(ctx, i+1)
		if err != nil {
			return nil, i, err
		}

		x.Rest = append(x.Rest, ast.TermTail{Op: op, X: r})
	}

	return x, i, nil
}

func (p *parser) parseTerm(ctx context.Context, st int) (x *ast.Term, i int, err error) {
	x = &ast.Term{Pos: p.toks[st].Pos}

	x.First, i, err = p.parseFactor(ctx, st)
	if err != nil {
		return nil, i, err
	}

	for p.is(i, "*", "/") {
		op := p.toks[i].Text

		var r *ast.Factor

		r, i, err = p.parseFactor(ctx, i+1)
		if err != nil {
			return nil, i, err
		}

		x.Rest = append(x.Rest, ast.FactorTail{Op: op, X: r})
	}

	return x, i, nil
}

func (p *parser) parseFactor(ctx context.Context, st int) (x *ast.Factor, i int, err error) {
	tk, i := p.next(ctx, st)

	x = &ast.Factor{Pos: tk.Pos}

	switch tk.Kind {
	case Punct:
		switch tk.Text {
		case "(":
			x.Paren, i, err = p.parseExpr(ctx, i)
			if err != nil {
				return nil, i, err
			}

			_, i, err = p.expect(ctx, i, ")")
			if err != nil {
				return nil, i, err
			}

			return x, i, nil
		case "+", "-":
			x.Sign = tk.Text

			x.Signed, i, err = p.parseFactor(ctx, i)
			if err != nil {
				return nil, i, err
			}

			return x, i, nil
		}
	case Int, Float, String:
		kind := map[Kind]ast.LitKind{Int: ast.IntLit, Float: ast.FloatLit, String: ast.StringLit}[tk.Kind]

		x.Lit = &ast.Lit{Pos: tk.Pos, Kind: kind, Text: tk.Text}

		return x, i, nil
	case Ident:
		if p.is(i, "(") {
			x.Call, i, err = p.parseCall(ctx, st)
			if err != nil {
				return nil, i, err
			}

			return x, i, nil
		}

		x.Var = &ast.Ident{Pos: tk.Pos, Name: tk.Text}

		return x, i, nil
	}

	return nil, st, NewUnexpected(tk, "expression")
}

func (p *parser) parseCall(ctx context.Context, st int) (x *ast.Call, i int, err error) {
	x = &ast.Call{Pos: p.toks[st].Pos}

	x.Name, i, err = p.ident(ctx, st)
	if err != nil {
		return nil, i, err
	}

	_, i, err = p.expect(ctx, i, "(")
	if err != nil {
		return nil, i, err
	}

	for !p.is(i, ")") {
		if len(x.Args) != 0 {
			_, i, err = p.expect(ctx, i, ",")
			if err != nil {
				return nil, i, err
			}
		}

		var a *ast.Expr

		a, i, err = p.parseExpr(ctx, i)
		if err != nil {
			return nil, i, errors.Wrap(err, "call %v: arg %d", x.Name.Name, len(x.Args))
		}

		x.Args = append(x.Args, a)
	}

	return x, i + 1, nil
}

func (p *parser) ident(ctx context.Context, st int) (x ast.Ident, i int, err error) {
	tk, i := p.next(ctx, st)
	if tk.Kind != Ident {
		return x, st, NewUnexpected(tk, Ident.String())
	}

	return ast.Ident{Pos: tk.Pos, Name: tk.Text}, i, nil
}

func (p *parser) expect(ctx context.Context, st int, text string) (tk Token, i int, err error) {
	tk, i = p.next(ctx, st)

	if (tk.Kind == Punct || tk.Kind == Keyword) && tk.Text == text {
		return tk, i, nil
	}

	return tk, st, NewUnexpected(tk, fmt.Sprintf("%q", text))
}

// is reports whether the token at i is punctuation or a keyword spelled as one of texts.
func (p *parser) is(i int, texts ...string) bool {
	tk := p.toks[i]

	if tk.Kind != Punct && tk.Kind != Keyword {
		return false
	}

	for _, t := range texts {
		if tk.Text == t {
			return true
		}
	}

	return false
}

// next returns the token at st. EOF is sticky.
func (p *parser) next(ctx context.Context, st int) (tk Token, i int) {
	if tr := tlog.SpanFromContext(ctx); tr.If("next_token") {
		defer func(st int) {
			tr.Printw("next token", "st", st, "tk", tk.Text, "kind", tk.Kind, "i", i, "from", loc.Callers(1, 3))
		}(st)
	}

	tk = p.toks[st]

	if tk.Kind == EOF {
		return tk, st
	}

	return tk, st + 1
}

func NewUnexpected(got Token, want ...string) error {
	return &UnexpectedError{
		Got:  got,
		Want: want,
	}
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("%v: unexpected %v, want %v", e.Got.Pos, e.Got, strings.Join(e.Want, " or "))
}
