package emu

import (
	"strings"

	"github.com/sarchlab/akita/v4/sim"

	"integrator/emu/log"
	"integrator/hw"
	"integrator/hw/snapshot"
)

// Session wires an integrator to a clock and a bus binding. It is the
// harness through which scripts and checks access the device: every method
// advances the clock as the real bus would.
//
// A session is not safe for concurrent use.
type Session struct {
	Device *hw.Integrator
	Clock  *Clock
	Bus    Bus

	// Tracer, if not nil, receives every bus transaction.
	Tracer *Tracer

	cfg Config
}

// NewSession creates a device and its harness. The device is reset but the
// clock hasn't run yet.
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}

	dev := hw.NewIntegrator()
	// akita names are CamelCase: MMIOClock, SPIClock.
	clk := NewClock(strings.ToUpper(cfg.Bus.Kind)+"Clock", cfg.Clock.FreqMHz)
	bus, err := NewBus(cfg.Bus, dev, clk)
	if err != nil {
		return nil, err
	}
	// Bus interfaces tick before the device so that a write committed
	// during an edge is seen by the device on that same edge.
	clk.Attach(dev)

	s := &Session{
		Device: dev,
		Clock:  clk,
		Bus:    bus,
		cfg:    cfg,
	}
	if cfg.TraceOut != nil {
		s.Tracer = NewTracer(cfg.TraceOut)
	}

	log.ModEmu.DebugZ("session created").
		String("bus", cfg.Bus.Kind).
		End()
	return s, nil
}

// BusKind returns the name of the bus binding.
func (s *Session) BusKind() string { return s.cfg.Bus.Kind }

// Reset resets the device and the bus, then lets the clock run for the
// configured number of cycles.
func (s *Session) Reset() {
	s.Tracer.Reset(s.BusKind(), s.Clock.Cycle())
	s.Bus.Reset()
	s.Clock.Cycles(s.cfg.Clock.ResetCycles)
}

func (s *Session) WriteReg(addr, val uint8) {
	s.Tracer.Write(s.BusKind(), s.Clock.Cycle(), addr, val)
	s.Bus.WriteReg(addr, val)
}

func (s *Session) ReadReg(addr uint8) uint8 {
	start := s.Clock.Cycle()
	val := s.Bus.ReadReg(addr)
	s.Tracer.Read(s.BusKind(), start, addr, val)
	return val
}

// ClockCycles lets the clock run for n cycles without bus activity.
func (s *Session) ClockCycles(n uint64) {
	s.Tracer.Clock(s.BusKind(), s.Clock.Cycle(), n)
	s.Clock.Cycles(n)
}

// TraceEdges adds the device state after every clock edge to the trace. It
// does nothing if the session has no tracer.
func (s *Session) TraceEdges() {
	if s.Tracer == nil {
		return
	}
	s.Clock.AcceptHook(edgeHook{s})
}

type edgeHook struct{ s *Session }

// Func implements sim.Hook.
func (h edgeHook) Func(ctx sim.HookCtx) {
	if ctx.Pos != HookPosClockEdge {
		return
	}
	h.s.Tracer.Edge(h.s.BusKind(), ctx.Item.(uint64), h.s.Device.Acc(), h.s.Device.Status())
}

// Restore loads a device state, previously obtained with Snapshot. The
// bus interface is not affected.
func (s *Session) Restore(snap *snapshot.Integrator) {
	s.Device.Restore(snap)
}

// Snapshot returns the device state.
func (s *Session) Snapshot() *snapshot.Integrator {
	return s.Device.Snapshot()
}
