package compiler

import (
	"context"
	"os"

	"go.uber.org/multierr"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/quad/compiler/analyze"
	"github.com/slowlang/quad/compiler/front"
	"github.com/slowlang/quad/compiler/ir"
	"github.com/slowlang/quad/compiler/mem"
	"github.com/slowlang/quad/compiler/symtab"
)

type (
	// Result holds the error lists of each stage.
	// Only the first non-empty list is filled, later stages don't run.
	// Program is set when all lists are empty.
	Result struct {
		LexErrors      []error
		ParseErrors    []error
		SemanticErrors []error

		Program *ir.Program
	}

	Option func(c *config)

	config struct {
		layout mem.Layout
	}
)

func WithLayout(l mem.Layout) Option {
	return func(c *config) { c.layout = l }
}

func CompileFile(ctx context.Context, name string, opts ...Option) (*Result, error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Compile(ctx, name, text, opts...)
}

// Compile runs the pipeline on text. err is only returned for fatal
// conditions, such as a bad layout or memory exhaustion;
// source errors are reported in the Result.
func Compile(ctx context.Context, name string, text []byte, opts ...Option) (res *Result, err error) {
	c := config{layout: mem.DefaultLayout()}

	for _, o := range opts {
		o(&c)
	}

	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile", "name", name, "size", len(text))
	defer tr.Finish("err", &err)

	space, err := mem.NewSpace(c.layout)
	if err != nil {
		return nil, errors.Wrap(err, "layout")
	}

	res = &Result{}

	toks, errs := front.Lex(ctx, text)
	if len(errs) != 0 {
		res.LexErrors = errs
		return res, nil
	}

	x, errs := front.Parse(ctx, toks)
	if len(errs) != 0 {
		res.ParseErrors = errs
		return res, nil
	}

	g := analyze.New(space, symtab.NewDirectory(space))

	p, errs, err := g.Analyze(ctx, x)
	if err != nil {
		return nil, errors.Wrap(err, "analyze")
	}

	if len(errs) != 0 {
		res.SemanticErrors = errs
		return res, nil
	}

	res.Program = p

	return res, nil
}

// Err combines all reported errors into one, or returns nil.
func (r *Result) Err() error {
	return multierr.Combine(
		multierr.Combine(r.LexErrors...),
		multierr.Combine(r.ParseErrors...),
		multierr.Combine(r.SemanticErrors...),
	)
}

func (r *Result) OK() bool {
	return r.Program != nil
}
