// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Command vmemu runs VM test scripts without a GUI.
//
//	vmemu [flags] script.tst
//	vmemu -dump program.vm|dir
//
// Messages are printed on stdout. vmemu exits with status 1 on the first
// error, including comparison failures.
//
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	vm "github.com/db47h/vmsim"
	"github.com/db47h/vmsim/controller"
	"github.com/db47h/vmsim/internal/config"
	"github.com/db47h/vmsim/script"
	"github.com/db47h/vmsim/vmemu"
	"github.com/k0kubun/pp/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("vmemu", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "vmemu.toml", "configuration `file`")
	dump := fs.Bool("dump", false, "pretty print a linked VM program instead of running a script")
	level := fs.String("log-level", "", "log `level`: trace, debug, info, warn or error")
	builtins := fs.String("builtins", "", "built-in functions `policy`: ask, yes or no")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: vmemu [flags] script.tst\n       vmemu -dump program.vm|dir\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if *level != "" {
		cfg.LogLevel = *level
	}
	if *builtins != "" {
		cfg.Builtins = *builtins
	}
	if err = cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	setupLogging(stderr, cfg.Level())

	loader := vm.Loader{Confirm: confirm(cfg.Builtins, stderr)}
	if *dump {
		p, err := loader.Load(fs.Arg(0))
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		pr := pp.New()
		pr.SetOutput(stdout)
		pr.SetColoringEnabled(isTerminal(stdout))
		pr.Println(p)
		return 0
	}

	c, err := controller.New(controller.Config{
		Simulator:     vmemu.New(loader),
		Parse:         script.ParseFile,
		Stdout:        stdout,
		Speed:         cfg.Speed,
		AnimationMode: cfg.Animation(),
		NumericFormat: cfg.Format(),
	}, fs.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err = c.Run(ctx); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func setupLogging(w io.Writer, level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, NoColor: !isTerminal(w)})
}

// confirm returns the Confirmer for the given built-in policy. The
// N2T_VM_USE_BUILTINS environment variable takes precedence over it.
//
func confirm(policy string, stderr io.Writer) vm.Confirmer {
	switch policy {
	case config.BuiltinsYes:
		return func() bool { return true }
	case config.BuiltinsNo:
		return nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	return func() bool {
		fmt.Fprint(stderr, "No implementation was found for some functions which are called in the VM code.\n"+
			"The VM Emulator provides built-in implementations for the OS functions.\n"+
			"Use the built-in implementations? [y/N] ")
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		return strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y")
	}
}
