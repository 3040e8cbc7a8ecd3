// Package script runs Lua scenarios against an integrator session.
//
// Scripts see the register addresses as REG_<NAME> globals and drive the
// session with the following functions:
//
//	reset()              reset the device and the bus
//	write_reg(addr, val) write a register
//	read_reg(addr)       read a register
//	read_acc()           read ACC_LOW then ACC_HIGH, as a signed integer
//	clock(n)             run the clock for n cycles
//	cycles()             current cycle number
//	log(msg)             log msg through the "script" log module
package script

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	lua "github.com/yuin/gopher-lua"

	"integrator/emu"
	"integrator/emu/log"
	"integrator/hw/hwdefs"
)

var ModScript = log.NewModule("script")

// Runner executes scripts on a session. It owns a Lua state, so it must be
// closed after use. A Runner is not safe for concurrent use.
type Runner struct {
	L    *lua.LState
	sess *emu.Session
}

func NewRunner(sess *emu.Session) *Runner {
	r := &Runner{
		L:    lua.NewState(),
		sess: sess,
	}

	for addr := uint8(0); addr < hwdefs.NumRegs; addr++ {
		r.L.SetGlobal("REG_"+hwdefs.RegName(addr), lua.LNumber(addr))
	}

	funcs := map[string]lua.LGFunction{
		"reset":     r.reset,
		"write_reg": r.writeReg,
		"read_reg":  r.readReg,
		"read_acc":  r.readAcc,
		"clock":     r.clock,
		"cycles":    r.cycles,
		"log":       r.log,
	}
	for name, fn := range funcs {
		r.L.SetGlobal(name, r.L.NewFunction(fn))
	}
	return r
}

func (r *Runner) Close() {
	r.L.Close()
}

// RunFile runs the script at path. ctx can be used to interrupt a running
// script.
func (r *Runner) RunFile(ctx context.Context, path string) error {
	r.L.SetContext(ctx)
	defer r.L.RemoveContext()

	if err := r.L.DoFile(path); err != nil {
		return errors.Wrapf(err, "script %s", path)
	}
	return nil
}

// RunString runs src, name is used in error messages.
func (r *Runner) RunString(ctx context.Context, name, src string) error {
	r.L.SetContext(ctx)
	defer r.L.RemoveContext()

	fn, err := r.L.Load(strings.NewReader(src), name)
	if err != nil {
		return errors.Wrapf(err, "script %s", name)
	}
	r.L.Push(fn)
	if err := r.L.PCall(0, lua.MultRet, nil); err != nil {
		return errors.Wrapf(err, "script %s", name)
	}
	return nil
}

func checkByte(L *lua.LState, n int) uint8 {
	v := L.CheckInt(n)
	if v < 0 || v > 0xFF {
		L.ArgError(n, fmt.Sprintf("value out of byte range: %d", v))
	}
	return uint8(v)
}

func (r *Runner) reset(L *lua.LState) int {
	r.sess.Reset()
	return 0
}

func (r *Runner) writeReg(L *lua.LState) int {
	addr := checkByte(L, 1)
	// Accept signed samples, write_reg(REG_INPUT, -5) is common.
	v := L.CheckInt(2)
	if v < -128 || v > 0xFF {
		L.ArgError(2, fmt.Sprintf("value out of byte range: %d", v))
	}
	r.sess.WriteReg(addr, uint8(v))
	return 0
}

func (r *Runner) readReg(L *lua.LState) int {
	addr := checkByte(L, 1)
	L.Push(lua.LNumber(r.sess.ReadReg(addr)))
	return 1
}

func (r *Runner) readAcc(L *lua.LState) int {
	L.Push(lua.LNumber(r.sess.ReadAcc()))
	return 1
}

func (r *Runner) clock(L *lua.LState) int {
	n := L.OptInt(1, 1)
	if n < 0 {
		L.ArgError(1, "negative cycle count")
	}
	r.sess.ClockCycles(uint64(n))
	return 0
}

func (r *Runner) cycles(L *lua.LState) int {
	L.Push(lua.LNumber(r.sess.Clock.Cycle()))
	return 1
}

func (r *Runner) log(L *lua.LState) int {
	ModScript.InfoZ(L.CheckString(1)).
		String("bus", r.sess.BusKind()).
		End()
	return 0
}
