package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/go-faster/errors"

	"integrator/emu"
	"integrator/emu/log"
	"integrator/emu/script"
	"integrator/hw/snapshot"
)

// runMain runs a Lua script on a fresh session.
func runMain(ctx context.Context, args Run, cfg emu.Config) error {
	if args.Trace != nil {
		defer args.Trace.Close()
		cfg.TraceOut = args.Trace
	}
	if args.State != nil {
		defer args.State.Close()
	}
	if args.Bus != "" {
		cfg.Bus.Kind = args.Bus
	}

	sess, err := emu.NewSession(cfg)
	if err != nil {
		return err
	}
	log.AddContext(sess.Clock)
	defer log.RemoveContext(sess.Clock)

	if args.TraceEdges {
		if args.Trace == nil {
			return errors.New("--trace-edges requires --trace")
		}
		sess.TraceEdges()
	}

	// Script output is what the user asked for.
	log.EnableDebugModules(script.ModScript.Mask())

	r := script.NewRunner(sess)
	defer r.Close()

	sess.Reset()
	if args.Restore != "" {
		snap, err := loadState(args.Restore)
		if err != nil {
			return err
		}
		sess.Restore(snap)
	}

	runErr := func() error {
		if args.Exec != "" {
			if err := r.RunString(ctx, "--exec", args.Exec); err != nil {
				return err
			}
		}
		return r.RunFile(ctx, args.Script)
	}()

	st := sess.Device.Stats()
	log.ModEmu.InfoZ("script done").
		String("script", args.Script).
		Uint64("cycles", sess.Clock.Cycle()).
		Stringer("simtime", time.Duration(sess.Clock.Now()*float64(time.Second))).
		Uint64("samples", st.Samples).
		Uint64("clamps", st.Clamps).
		Uint64("wraps", st.Wraps).
		End()

	if args.State != nil {
		buf := append(sess.Snapshot().Marshal(), '\n')
		if _, err := args.State.Write(buf); err != nil {
			return errors.Wrap(err, "write state")
		}
	}
	return runErr
}

// loadState reads a device state written by --state.
func loadState(path string) (*snapshot.Integrator, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "load state")
	}
	snap := &snapshot.Integrator{}
	if err := snap.Unmarshal(buf); err != nil {
		return nil, errors.Wrapf(err, "load state %s", path)
	}
	return snap, nil
}

// verifyMain runs the built-in checks on each requested bus and prints a
// summary table.
func verifyMain(ctx context.Context, args Verify, cfg emu.Config) error {
	if args.Trace != nil {
		defer args.Trace.Close()
		cfg.TraceOut = args.Trace
	}

	results, err := emu.Verify(ctx, cfg, args.Bus)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "BUS\tCHECK\tCYCLES\tRESULT")
	failed := 0
	for _, r := range results {
		res := "ok"
		if !r.Passed() {
			res = "FAIL: " + r.Err.Error()
			failed++
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.Bus, r.Check, r.Cycles, res)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if failed != 0 {
		return errors.Errorf("%d/%d checks failed", failed, len(results))
	}
	return nil
}
