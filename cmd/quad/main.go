package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/quad/compiler"
	"github.com/slowlang/quad/compiler/format"
	"github.com/slowlang/quad/compiler/mem"
	"github.com/slowlang/quad/vm"
)

func main() {
	compileCmd := &cli.Command{
		Name:        "compile",
		Description: "compile source files and print the quadruple listing",
		Action:      compileAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			layoutFlag(),
		},
	}

	runCmd := &cli.Command{
		Name:        "run",
		Description: "compile and execute source files",
		Action:      runAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			layoutFlag(),
			cli.NewFlag("timeout", time.Duration(0), "stop execution after this long, 0 for no limit"),
			cli.NewFlag("strict", false, "fault on ENDPROC outside of a function"),
			cli.NewFlag("dump", false, "print memory snapshot as yaml after execution"),
		},
	}

	layoutCmd := &cli.Command{
		Name:        "layout",
		Description: "print the effective address layout as toml",
		Action:      layoutAct,
		Flags: []*cli.Flag{
			layoutFlag(),
		},
	}

	app := &cli.Command{
		Name:        "quad",
		Description: "quad compiles programs into quadruples and runs them",
		Commands: []*cli.Command{
			compileCmd,
			runCmd,
			layoutCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func layoutFlag() *cli.Flag {
	return cli.NewFlag("layout", "", "address layout toml file, built-in layout if empty")
}

func loadLayout(c *cli.Command) (mem.Layout, error) {
	name := c.String("layout")
	if name == "" {
		return mem.DefaultLayout(), nil
	}

	l, err := mem.LoadLayout(name)
	if err != nil {
		return nil, errors.Wrap(err, "load layout")
	}

	return l, nil
}

func compileAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	l, err := loadLayout(c)
	if err != nil {
		return err
	}

	var b []byte

	for _, a := range c.Args {
		res, err := compiler.CompileFile(ctx, a, compiler.WithLayout(l))
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		if err = res.Err(); err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		b, err = format.Program(ctx, b[:0], res.Program)
		if err != nil {
			return errors.Wrap(err, "format %v", a)
		}

		fmt.Printf("%s", b)
	}

	return nil
}

func runAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	if d := c.Duration("timeout"); d != 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	l, err := loadLayout(c)
	if err != nil {
		return err
	}

	var opts []vm.Option

	if c.Bool("strict") {
		opts = append(opts, vm.Strict())
	}

	m := vm.New(l, opts...)

	for _, a := range c.Args {
		res, err := compiler.CompileFile(ctx, a, compiler.WithLayout(l))
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		if err = res.Err(); err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		err = m.Load(res.Program)
		if err != nil {
			return errors.Wrap(err, "load %v", a)
		}

		out, err := m.Execute(ctx)

		for _, s := range out {
			fmt.Println(s)
		}

		if c.Bool("dump") {
			d, yerr := yaml.Marshal(m.Snapshot())
			if yerr != nil {
				return errors.Wrap(yerr, "dump")
			}

			fmt.Printf("%s", d)
		}

		if err != nil {
			return errors.Wrap(err, "run %v", a)
		}
	}

	return nil
}

func layoutAct(c *cli.Command) (err error) {
	l, err := loadLayout(c)
	if err != nil {
		return err
	}

	err = l.Validate()
	if err != nil {
		return err
	}

	b, err := l.Encode()
	if err != nil {
		return errors.Wrap(err, "encode")
	}

	fmt.Printf("%s", b)

	return nil
}
