// Falcon CLI - runs compiled register-code artifacts.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/hydrogen18/falcon/host"
	"github.com/hydrogen18/falcon/manifest"
	"github.com/hydrogen18/falcon/vm"
)

func main() {
	verbose := flag.Int("v", 0, "Log verbosity (0-2)")
	dumpStatus := flag.Bool("dump-status", false, "Dump per-opcode execution counts after the run")
	disasm := flag.Bool("disasm", false, "Disassemble the artifact instead of running it")
	configDir := flag.String("config", ".", "Directory containing falcon.toml")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: falcon [options] program.fcode [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a compiled Falcon register-code artifact. Arguments are parsed\n")
		fmt.Fprintf(os.Stderr, "as integers or floats when possible, strings otherwise.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  falcon sum.fcode 100         # run sum(100)\n")
		fmt.Fprintf(os.Stderr, "  falcon -disasm sum.fcode     # show the register code\n")
		fmt.Fprintf(os.Stderr, "  falcon -dump-status f.fcode  # opcode counts after the run\n")
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := manifest.LoadOrDefault(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "falcon: %v\n", err)
		os.Exit(1)
	}
	verbosity := *verbose
	if verbosity == 0 {
		verbosity = cfg.Log.Verbosity
	}
	commonlog.Configure(verbosity, nil)

	if err := run(cfg, flag.Arg(0), flag.Args()[1:], *dumpStatus, *disasm); err != nil {
		fmt.Fprintf(os.Stderr, "falcon: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *manifest.Manifest, path string, rawArgs []string, dumpStatus, disasm bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	rt := host.NewRuntime()
	fn, err := vm.UnmarshalFunction(data, nil)
	if err != nil {
		return err
	}
	defer host.Release(fn)

	if disasm {
		code, ok := host.FunctionOf(fn).Code.(*vm.RegisterCode)
		if !ok {
			return fmt.Errorf("%s carries no register code", path)
		}
		fmt.Print(vm.Disassemble(code))
		return nil
	}

	e := vm.NewEvaluator(rt)
	e.Trace = cfg.Engine.Trace
	if cfg.Engine.OpLimit > 0 {
		e.OpLimit = cfg.Engine.OpLimit
	}
	if cfg.Cache.Enabled {
		cache, cerr := vm.OpenCodeCache(cfg.CachePath())
		if cerr != nil {
			return cerr
		}
		defer cache.Close()
		e.Cache = cache
	}

	args := host.MakeTuple(len(rawArgs))
	for i, raw := range rawArgs {
		host.TupleSet(args, i, parseArg(raw))
	}
	defer host.Release(args)

	res, err := e.Eval(fn, args)
	if err != nil {
		return err
	}
	defer host.Release(res)

	fmt.Println(host.Repr(res))
	if dumpStatus {
		e.DumpStatus()
	}
	return nil
}

// parseArg converts a command-line argument to a host value.
func parseArg(raw string) *host.Object {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return host.NewInt(i)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return host.NewFloat(f)
	}
	return host.NewString(raw)
}
