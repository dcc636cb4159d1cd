package front

import (
	"context"
	"fmt"

	"tlog.app/go/tlog"

	"github.com/slowlang/quad/compiler/ast"
)

type (
	Kind int

	Token struct {
		Kind Kind
		Text string
		Pos  ast.Pos
	}

	LexError struct {
		Pos ast.Pos
		Msg string
	}
)

const (
	EOF Kind = iota
	Ident
	Keyword
	Int
	Float
	String
	Punct
)

var kindNames = [...]string{
	EOF:     "end of file",
	Ident:   "identifier",
	Keyword: "keyword",
	Int:     "int literal",
	Float:   "float literal",
	String:  "string literal",
	Punct:   "punctuation",
}

var keywords = map[string]bool{
	"program": true,
	"var":     true,
	"func":    true,
	"main":    true,
	"end":     true,
	"int":     true,
	"float":   true,
	"string":  true,
	"void":    true,
	"print":   true,
	"read":    true,
	"if":      true,
	"else":    true,
	"while":   true,
	"do":      true,
	"return":  true,
}

// Lex splits text into tokens. The last token is always EOF.
// Lexical errors are collected and the offending input skipped.
func Lex(ctx context.Context, text []byte) (toks []Token, errs []error) {
	l := lexer{b: text, line: 1, lineStart: 0}

	for {
		tk, err := l.next()
		if err != nil {
			errs = append(errs, err)
			continue
		}

		toks = append(toks, tk)

		if tk.Kind == EOF {
			break
		}
	}

	if tr := tlog.SpanFromContext(ctx); tr.If("dump_tokens") {
		for _, tk := range toks {
			tr.Printw("token", "kind", tk.Kind, "text", tk.Text, "pos", tk.Pos)
		}
	}

	return toks, errs
}

type lexer struct {
	b []byte
	i int

	line      int
	lineStart int
}

func (l *lexer) pos(i int) ast.Pos {
	return ast.Pos{Off: i, Line: l.line, Col: i - l.lineStart + 1}
}

func (l *lexer) skipSpaces() {
	for l.i < len(l.b) {
		switch c := l.b[l.i]; {
		case c == '\n':
			l.i++
			l.line++
			l.lineStart = l.i
		case c == ' ' || c == '\t' || c == '\r':
			l.i++
		case c == '/' && l.i+1 < len(l.b) && l.b[l.i+1] == '/':
			for l.i < len(l.b) && l.b[l.i] != '\n' {
				l.i++
			}
		default:
			return
		}
	}
}

func (l *lexer) next() (Token, error) {
	l.skipSpaces()

	st := l.i
	pos := l.pos(st)

	if st == len(l.b) {
		return Token{Kind: EOF, Pos: pos}, nil
	}

	c := l.b[st]

	switch {
	case isLetter(c):
		e := skipIdent(l.b, st)
		l.i = e

		k := Ident
		if keywords[string(l.b[st:e])] {
			k = Keyword
		}

		return Token{Kind: k, Text: string(l.b[st:e]), Pos: pos}, nil
	case isDigit(c):
		return l.number(st, pos), nil
	case c == '"':
		return l.str(st, pos)
	}

	switch c {
	case '>', '<', '=', '!':
		if st+1 < len(l.b) && l.b[st+1] == '=' {
			l.i = st + 2
			return Token{Kind: Punct, Text: string(l.b[st:l.i]), Pos: pos}, nil
		}

		if c == '!' {
			l.i = st + 1
			return Token{}, &LexError{Pos: pos, Msg: "unexpected character '!'"}
		}

		fallthrough
	case '+', '-', '*', '/', '(', ')', '{', '}', ';', ':', ',':
		l.i = st + 1
		return Token{Kind: Punct, Text: string(c), Pos: pos}, nil
	}

	l.i = st + 1

	return Token{}, &LexError{Pos: pos, Msg: fmt.Sprintf("unrecognized character %q", c)}
}

func (l *lexer) number(st int, pos ast.Pos) Token {
	i := skipNum(l.b, st)
	k := Int

	if i+1 < len(l.b) && l.b[i] == '.' && isDigit(l.b[i+1]) {
		i = skipNum(l.b, i+1)
		k = Float
	}

	l.i = i

	return Token{Kind: k, Text: string(l.b[st:i]), Pos: pos}
}

func (l *lexer) str(st int, pos ast.Pos) (Token, error) {
	i := st + 1

	for i < len(l.b) && l.b[i] != '"' && l.b[i] != '\n' {
		i++
	}

	if i == len(l.b) || l.b[i] != '"' {
		l.i = i
		return Token{}, &LexError{Pos: pos, Msg: "unterminated string"}
	}

	l.i = i + 1

	return Token{Kind: String, Text: string(l.b[st+1 : i]), Pos: pos}, nil
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "kind(?)"
	}

	return kindNames[k]
}

func (t Token) String() string {
	if t.Kind == EOF {
		return t.Kind.String()
	}

	return fmt.Sprintf("%q", t.Text)
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%v: %v", e.Pos, e.Msg)
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func skipNum(b []byte, i int) int {
	for i < len(b) && isDigit(b[i]) {
		i++
	}

	return i
}

func skipIdent(b []byte, i int) int {
	for i < len(b) && (isLetter(b[i]) || isDigit(b[i])) {
		i++
	}

	return i
}
