package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"integrator/emu/log"
)

type mode byte

const (
	runMode     mode = iota // Run a Lua script
	verifyMode              // Run the built-in checks
	configMode              // Print the effective configuration
	versionMode             // Show version
)

type (
	CLI struct {
		Run     Run       `cmd:"" help:"Run a Lua scenario script against the integrator."`
		Verify  Verify    `cmd:"" help:"Run the built-in register checks."`
		Config  ConfigCmd `cmd:"" help:"Print the effective configuration as TOML." name:"config"`
		Version Version   `cmd:"" help:"Show integrator version."`

		Log        logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`
		ConfigFile string     `name:"config" help:"${config_help}" type:"existingfile" placeholder:"FILE"`
		Profile    string     `name:"profile" help:"${profile_help}" enum:"none,cpu,mem" default:"none"`

		mode mode
	}

	Run struct {
		Script string `arg:"" name:"SCRIPT.lua" help:"Lua script to run." type:"existingfile"`

		Bus        string   `name:"bus" help:"${bus_help}" placeholder:"mmio|spi"`
		Exec       string   `name:"exec" short:"e" help:"Lua code to run before the script." placeholder:"CODE"`
		Restore    string   `name:"restore" help:"Load a device state written by --state before running." type:"existingfile" placeholder:"FILE"`
		Trace      *outfile `name:"trace" help:"Write bus trace as NDJSON." placeholder:"FILE|stdout|stderr"`
		TraceEdges bool     `name:"trace-edges" help:"Also trace the device state after every clock edge (requires --trace)."`
		State      *outfile `name:"state" help:"Dump device state as JSON at exit." placeholder:"FILE|stdout|stderr"`
	}

	Verify struct {
		Bus   []string `name:"bus" help:"${bus_help}" sep:"," default:"mmio,spi"`
		Trace *outfile `name:"trace" help:"Write bus trace as NDJSON." placeholder:"FILE|stdout|stderr"`
	}

	ConfigCmd struct {
		Save string `name:"save" help:"Write the configuration to FILE instead of printing it." type:"path" placeholder:"FILE"`
	}
	Version   struct{}
)

var vars = kong.Vars{
	"log_help":     "Enable debug logging for specified modules.",
	"config_help":  "Load configuration from a TOML file.",
	"profile_help": "Write a CPU or memory profile in the current directory.",
	"bus_help":     "Register bus binding, overrides the configuration.",
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("integrator"),
		kong.Description("Register-level model of the integrator peripheral."),
		kong.UsageOnError(),
		kong.Help(printHelp),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")
	checkf(ctx.Error, "failed to parse command line")

	switch ctx.Command() {
	case "verify":
		cfg.mode = verifyMode
	case "config":
		cfg.mode = configMode
	case "version":
		cfg.mode = versionMode
	default:
		cfg.mode = runMode
	}
	return cfg
}

func printHelp(options kong.HelpOptions, ctx *kong.Context) error {
	if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
		return err
	}
	if ctx.Command() == "" || strings.HasPrefix(ctx.Command(), "run") || ctx.Command() == "verify" {
		loggingHelp := `
Log modules:
  The --log flag accepts a comma-separated list of modules.

  Valid log modules are:
%s

  As a special case, the following values are accepted:
    - no                     Disable all logging.
    - all                    Enable all logs.
`
		var strs []string
		for _, m := range log.ModuleNames() {
			strs = append(strs, "    - "+m)
		}

		fmt.Fprintf(os.Stderr, loggingHelp, strings.Join(strs, "\n"))
	}

	return nil
}

type logModMask log.ModuleMask

// Decode decodes a comma-separated list of module names into a module mask.
//
// Implements kong.MapperValue interface.
func (lm logModMask) Decode(ctx *kong.DecodeContext) error {
	nolog := false
	allLogs := false

	tok := ctx.Scan.Pop()
	for _, v := range strings.Split(tok.Value.(string), ",") {
		switch v {
		case "all":
			allLogs = true
		case "no":
			nolog = true
		default:
			mod, ok := log.ModuleByName(v)
			if !ok {
				return fmt.Errorf("unknown log module %s", v)
			}
			lm |= logModMask(mod.Mask())
		}
	}

	if nolog {
		if allLogs {
			return fmt.Errorf("cannot use 'all' and 'no' together")
		}
		if lm != 0 {
			return fmt.Errorf("cannot combine 'no' with other log modules")
		}
		log.Disable()
		return nil
	}

	if allLogs {
		lm = logModMask(log.ModuleMaskAll)
	}

	log.EnableDebugModules(log.ModuleMask(lm))
	return nil
}

type outfile struct {
	w     io.Writer
	name  string
	close func() error
}

// Decode decodes FILE|stdout|stderr into an io.WriteCloser
// that writes to that file.
//
// Implements kong.MapperValue interface.
func (f *outfile) Decode(ctx *kong.DecodeContext) error {
	tok := ctx.Scan.Pop()
	f.name = tok.Value.(string)
	f.close = func() error { return nil }

	switch f.name {
	case "stdout":
		f.w = os.Stdout
	case "stderr":
		f.w = os.Stderr
	default:
		fd, err := os.Create(f.name)
		if err != nil {
			return err
		}
		f.w = fd
		f.close = fd.Close
	}
	return nil
}

func (f *outfile) String() string              { return f.name }
func (f *outfile) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *outfile) Close() error                { return f.close() }

func checkf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	fatalf(format+".\n"+err.Error(), args...)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal error:")
	fmt.Fprintf(os.Stderr, "\n\t%s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
