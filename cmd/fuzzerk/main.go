// Command fuzzerk runs a FuzzerK program: a small byte-emitting virtual
// machine driven by a named fuzz chain and an I/O bridge (spec §6).
//
// Grounded on the teacher's conformance test driver
// (go/ct/driver/main.go, go/ct/driver/run.go): a urfave/cli app with one
// primary command, flags mapped straight onto driver options, errors
// returned up to main rather than os.Exit'd deep in the call stack.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/fuzzerk/fuzzerk/internal/asm"
	"github.com/fuzzerk/fuzzerk/internal/fuzz"
	"github.com/fuzzerk/fuzzerk/internal/vm"
)

func main() {
	app := &cli.App{
		Name:   "fuzzerk",
		Usage:  "drive a network or file endpoint with an assembled fuzzing program",
		Action: doRun,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "program",
				Usage: "path to a FuzzerK program source file; if unset, a built-in loop-and-send program is used",
			},
			&cli.StringFlag{
				Name:  "fuzzer-config",
				Usage: "path to a fuzzer configuration file registering fuzzers by name",
			},
			&cli.StringFlag{
				Name:  "chain",
				Usage: "name of the fuzz chain the built-in program should read from",
				Value: "default",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "I/O bridge address (none | console | file://PATH | tcp://HOST:PORT)",
				Value: "console",
			},
			&cli.IntFlag{
				Name:  "loops",
				Usage: "iteration count for the built-in program",
				Value: 1,
			},
			&cli.IntFlag{
				Name:  "max-steps",
				Usage: "stop after this many instructions (0 = unlimited)",
			},
			&cli.BoolFlag{
				Name:  "trace",
				Usage: "log every instruction and I/O write to stderr",
			},
		},
	}

	log.SetFlags(0)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func doRun(c *cli.Context) error {
	reg := fuzz.NewRegistry()
	if cfgPath := c.String("fuzzer-config"); cfgPath != "" {
		if err := fuzz.ParseConfig(cfgPath, reg); err != nil {
			return fmt.Errorf("fuzzerk: %w", err)
		}
	}

	chainName := c.String("chain")
	chains := map[string]*fuzz.Chain{}
	if fz, ok := reg.Get(chainName); ok {
		chains[chainName] = fuzz.NewChain(fz)
	} else {
		chains[chainName] = fuzz.NewChain(fuzz.RandomFixedFuzzer{Min: 4, Max: 64, Charset: fuzz.NewPrintables()})
	}

	var source string
	if path := c.String("program"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("fuzzerk: reading program %s: %w", path, err)
		}
		source = string(b)
	} else {
		source = builtinProgram(c.String("addr"), chainName, c.Int("loops"))
	}

	prog, err := asm.Assemble(strings.NewReader(source))
	if err != nil {
		return fmt.Errorf("fuzzerk: assemble: %w", err)
	}

	ctx := vm.NewContext(reg, chains)
	if c.Bool("trace") {
		ctx.Tracer = vm.NewTracer(os.Stderr)
	}

	if err := vm.Run(ctx, prog, c.Int("max-steps")); err != nil {
		return fmt.Errorf("fuzzerk: %w", err)
	}
	return nil
}

// builtinProgram renders spec §6's predefined driver program: open a
// bridge, pull one record from the named fuzz chain, write it, flush,
// and loop loops times.
func builtinProgram(addr, chain string, loops int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "letint loopcnt 0\n")
	fmt.Fprintf(&b, "!label freshstart\n")
	fmt.Fprintf(&b, "iobnew srvX %s\n", addr)
	fmt.Fprintf(&b, "fcget %s fuzzgot\n", chain)
	fmt.Fprintf(&b, "iobwrite srvX fuzzgot\n")
	fmt.Fprintf(&b, "iobflush srvX\n")
	fmt.Fprintf(&b, "inc loopcnt\n")
	fmt.Fprintf(&b, "iflt.i loopcnt %d goto freshstart\n", loops)
	return b.String()
}
