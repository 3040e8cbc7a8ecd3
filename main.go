package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"

	"github.com/BurntSushi/toml"
	"github.com/pkg/profile"

	"integrator/emu"
	"integrator/emu/log"
)

func main() {
	log.SetOutput(os.Stderr)

	args := parseArgs(os.Args[1:])
	cfg := loadConfig(args.ConfigFile)

	checkf(dispatch(args, cfg), "integrator failed")
}

func dispatch(args CLI, cfg emu.Config) error {
	switch args.Profile {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch args.mode {
	case runMode:
		return runMain(ctx, args.Run, cfg)
	case verifyMode:
		return verifyMain(ctx, args.Verify, cfg)
	case configMode:
		if args.Config.Save != "" {
			return emu.SaveConfig(args.Config.Save, cfg)
		}
		return toml.NewEncoder(os.Stdout).Encode(cfg)
	case versionMode:
		printVersion()
	}
	return nil
}

// loadConfig returns the default configuration, or the one in path if not
// empty, and enables the debug log modules it lists.
func loadConfig(path string) emu.Config {
	cfg := emu.DefaultConfig()
	if path != "" {
		var err error
		cfg, err = emu.LoadConfig(path)
		checkf(err, "failed to load configuration")
	}

	for _, name := range cfg.Log.Modules {
		mod, ok := log.ModuleByName(name)
		if !ok {
			fatalf("configuration: unknown log module %s", name)
		}
		log.EnableDebugModules(mod.Mask())
	}
	return cfg
}

func printVersion() {
	version := "(devel)"
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		version = bi.Main.Version
	}
	fmt.Println("integrator", version)
}
